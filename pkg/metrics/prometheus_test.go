package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewWithRegistry(reg)

	r.RecordChart("http", 4)
	r.RecordChart("http", 2)
	r.RecordChart("kafka", 0)
	r.RecordObservations(10, 3)
	r.RecordObservations(0, 0)
	r.RecordError("invalid_parameter")
	r.RecordLatency("generate", 0.01)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.chartsGenerated.WithLabelValues("http")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.chartsGenerated.WithLabelValues("kafka")))
	assert.Equal(t, 10.0, testutil.ToFloat64(r.observations.WithLabelValues("accepted")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.observations.WithLabelValues("dropped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("invalid_parameter")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.latency, "trendchart_operation_duration_seconds"))
}

func TestRecorderRegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewWithRegistry(reg)
	assert.Panics(t, func() { NewWithRegistry(reg) })
}
