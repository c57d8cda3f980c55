package server

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"TrendChart/internal/service/ratelimit"
	"TrendChart/pkg/config"
	xhttp "TrendChart/pkg/http"
	pkgkafka "TrendChart/pkg/kafka"
	applogger "TrendChart/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	httpServer *xhttp.Server
	limiter    *ratelimit.Limiter
	consumer   *pkgkafka.Consumer
	kh         pkgkafka.MessageHandler
	queue      jobQueue
}

type jobQueue interface {
	Start() error
	Stop(ctx context.Context) error
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, l *applogger.Logger, httpServer *xhttp.Server) *App {
	return &App{
		cfg:        cfg,
		l:          l,
		httpServer: httpServer,
	}
}

// SetConsumer attaches the Kafka chart job consumer.
func (a *App) SetConsumer(c *pkgkafka.Consumer, h pkgkafka.MessageHandler) {
	a.consumer = c
	a.kh = h
}

// SetJobQueue attaches the Redis chart job queue.
func (a *App) SetJobQueue(q jobQueue) { a.queue = q }

// SetRateLimiter attaches the limiter whose idle keys are pruned while the app runs.
func (a *App) SetRateLimiter(l *ratelimit.Limiter) { a.limiter = l }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts the application and blocks until ctx is done.
func (a *App) RunContext(ctx context.Context) error {
	a.l.Info("app starting",
		applogger.String("env", a.cfg.Environment),
		applogger.String("timezone", a.cfg.Chart.Timezone),
		applogger.String("cache", a.cacheLabel()),
		applogger.Bool("kafka", a.consumer != nil),
		applogger.Bool("queue", a.queue != nil),
	)

	if a.limiter != nil {
		go a.limiter.Run(ctx, 3*time.Minute, 5*time.Minute)
	}

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		if err := a.consumer.Start(); err != nil {
			return fmt.Errorf("kafka consumer: %w", err)
		}
		a.l.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	if a.queue != nil {
		if err := a.queue.Start(); err != nil {
			return fmt.Errorf("job queue: %w", err)
		}
	}

	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}

	<-ctx.Done()
	a.l.Info("shutdown signal received")
	return a.shutdown()
}

// shutdown gracefully stops all services.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	var firstErr error
	if err := a.httpServer.Stop(ctx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
		firstErr = err
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if a.queue != nil {
		if err := a.queue.Stop(ctx); err != nil {
			a.l.Warn("job queue stop error", applogger.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	// flush aggregated error logs while the producer is still open
	a.l.RemoveCollector()
	a.l.Info("shutdown complete")
	return firstErr
}

func (a *App) cacheLabel() string {
	if !a.cfg.Cache.Enabled {
		return "disabled"
	}
	return a.cfg.Cache.Backend
}
