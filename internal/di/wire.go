//go:build wireinject
// +build wireinject

package di

import (
	"TrendChart/pkg/config"
	"TrendChart/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,
		ProvideLocation,

		// Chart core
		ProvideChartCache,
		ProvideRenderer,
		ProvideChartGenerator,

		// Redis job queue
		ProvideQueueRedisClient,
		ProvideJobStore,
		ProvideJobQueue,
		ProvideChartJobs,
		ProvideChartJobsHandler,

		// HTTP transport
		ProvideChartsHandler,
		ProvideRateLimiter,
		ProvideHTTPServer,

		// Kafka transport
		ProvideKafkaProducer,
		ProvideResultPublisher,
		ProvideKafkaConsumer,
		ProvideKafkaChartHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil, nil
}
