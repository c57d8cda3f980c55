package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"TrendChart/internal/domain/models"
	"TrendChart/internal/service/metrics"
	"TrendChart/internal/services/trend"
	"TrendChart/internal/usecase"
	xhttp "TrendChart/pkg/http"
	xlogger "TrendChart/pkg/logger"
	"TrendChart/pkg/queue"
)

// ChartGenerator is what the handler needs from the chart use case.
type ChartGenerator interface {
	GenerateResponse(ctx context.Context, p usecase.GenerateParams) (*models.ChartResponse, error)
}

// Pinger is a dependency whose health is reported by /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ChartsEchoHandler serves chart generation over HTTP.
type ChartsEchoHandler struct {
	logger *xlogger.Logger
	gen    ChartGenerator
	checks map[string]Pinger
}

func NewChartsEchoHandler(logger *xlogger.Logger, gen ChartGenerator) *ChartsEchoHandler {
	return &ChartsEchoHandler{logger: logger, gen: gen, checks: make(map[string]Pinger)}
}

// AddHealthCheck reports p under name in /healthz.
func (h *ChartsEchoHandler) AddHealthCheck(name string, p Pinger) {
	if p != nil {
		h.checks[name] = p
	}
}

func (h *ChartsEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	g := e.Group("/api/charts")
	g.GET("/generate", h.Generate)
	g.POST("/generate", h.Generate)
}

// Generate binds a ChartRequest from the query string (GET) or JSON body (POST).
func (h *ChartsEchoHandler) Generate(c echo.Context) error {
	const endpoint = "generate"
	start := time.Now()
	defer func() { metrics.EndpointLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.ChartRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		metrics.EndpointErrors.WithLabelValues(endpoint).Inc()
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.gen.GenerateResponse(c.Request().Context(), usecase.ParamsFromRequest("http", req))
	if err != nil {
		metrics.EndpointErrors.WithLabelValues(endpoint).Inc()
		return xhttp.AppErrorResponse(c, h.mapError(err))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.SuccessResponse(c, res)
}

func (h *ChartsEchoHandler) mapError(err error) error {
	var pe *trend.ParamError
	switch {
	case errors.As(err, &pe):
		return xhttp.InvalidParameterError(pe.Param, pe.Error()).WithParam("value", pe.Value).WithError(err)
	case errors.Is(err, trend.ErrInvalidParameter):
		return xhttp.InvalidParameterError("", err.Error()).WithError(err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return xhttp.UnavailableError("request canceled").WithError(err)
	default:
		h.logger.Error("chart usecase error", xlogger.Error(err))
		return xhttp.InternalError("chart generation failed").WithError(err)
	}
}

// queueStatser is implemented by the Redis job queue.
type queueStatser interface {
	Stats(ctx context.Context) (queue.Stats, error)
}

// Health reports ok unless a registered dependency fails its ping. Dependencies that
// expose queue stats have them listed under "queues".
func (h *ChartsEchoHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(h.checks))
	queues := make(map[string]queue.Stats)
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			deps[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
		if qs, ok := p.(queueStatser); ok {
			if st, err := qs.Stats(ctx); err == nil {
				queues[name] = st
			}
		}
	}
	body := map[string]interface{}{"dependencies": deps}
	if len(queues) > 0 {
		body["queues"] = queues
	}
	return xhttp.DataResponse(c, status, body)
}
