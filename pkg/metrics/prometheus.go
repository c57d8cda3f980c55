package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	chartsGenerated *prometheus.CounterVec
	chartPoints     prometheus.Histogram
	observations    *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	latency         *prometheus.HistogramVec
}

// New creates a recorder registered with the default Prometheus registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a recorder registered with reg.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		chartsGenerated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendchart_charts_generated_total",
				Help: "Total number of charts generated",
			},
			[]string{"source"},
		),
		chartPoints: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "trendchart_chart_points",
				Help:    "Number of non-empty buckets per generated chart",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
			},
		),
		observations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendchart_observations_total",
				Help: "Total number of observations received, by result",
			},
			[]string{"result"},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendchart_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trendchart_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordChart records a generated chart and its number of plotted points.
func (r *Recorder) RecordChart(source string, points int) {
	r.chartsGenerated.WithLabelValues(source).Inc()
	r.chartPoints.Observe(float64(points))
}

// RecordObservations records how many observations were aggregated and how many were dropped.
func (r *Recorder) RecordObservations(accepted, dropped int) {
	if accepted > 0 {
		r.observations.WithLabelValues("accepted").Add(float64(accepted))
	}
	if dropped > 0 {
		r.observations.WithLabelValues("dropped").Add(float64(dropped))
	}
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
