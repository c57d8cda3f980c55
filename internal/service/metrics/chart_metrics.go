package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	EndpointLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "trendchart",
			Subsystem: "api",
			Name:      "latency_seconds",
			Help:      "Latency of chart endpoints",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	EndpointErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trendchart",
			Subsystem: "api",
			Name:      "errors_total",
			Help:      "Errors by chart endpoint",
		},
		[]string{"endpoint"},
	)

	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trendchart",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Chart cache lookups by result (hit, miss, error)",
		},
		[]string{"result"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(EndpointLatency, EndpointErrors, CacheLookups)
	})
}
