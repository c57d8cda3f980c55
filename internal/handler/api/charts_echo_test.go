package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TrendChart/internal/domain/models"
	"TrendChart/internal/services/render"
	"TrendChart/internal/usecase"
	xhttp "TrendChart/pkg/http"
	xlogger "TrendChart/pkg/logger"
	"TrendChart/pkg/queue"
)

type nopMetrics struct{}

func (nopMetrics) RecordChart(string, int)       {}
func (nopMetrics) RecordObservations(int, int)   {}
func (nopMetrics) RecordError(string)            {}
func (nopMetrics) RecordLatency(string, float64) {}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()
	gen := usecase.NewChartGenerator(render.NewDatasetRenderer(), nopMetrics{},
		usecase.WithClock(func() time.Time { return time.Date(2024, 1, 31, 9, 0, 0, 0, time.UTC) }),
	)
	e := echo.New()
	NewChartsEchoHandler(xlogger.Nop(), gen).RegisterRoutes(e)
	return e
}

func do(e *echo.Echo, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var env envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

func itoa(v int64) string { return strconv.FormatInt(v, 10) }

func TestGenerateGET(t *testing.T) {
	e := newTestServer(t)
	jan10 := time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC).UnixMilli()
	jan11 := time.Date(2024, 1, 11, 10, 0, 0, 0, time.UTC).UnixMilli()

	req := httptest.NewRequest(http.MethodGet,
		"/api/charts/generate?dateInterval=7&dataRange=30&date="+itoa(jan10)+"&date="+itoa(jan11)+"&count=2&count=5", nil)
	rec, env := do(e, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var chart models.ChartResponse
	require.NoError(t, json.Unmarshal(env.Data, &chart))
	assert.Equal(t, "2023-12-27", chart.LowerBound)
	assert.Equal(t, "2024-01-31", chart.UpperBound)
	assert.Equal(t, "2023-12-26", chart.DisplayMin)
	assert.Equal(t, "2024-02-01", chart.DisplayMax)
	assert.Equal(t, 600, chart.Width)
	assert.Equal(t, 300, chart.Height)
	assert.Equal(t, "Date Field Trending Chart", chart.Title)
	require.Len(t, chart.Series, 2)
	assert.Equal(t, "2024-01-10", chart.Series[0].Date)
	assert.Equal(t, "2024-01-17", chart.Series[1].Date)
	assert.Equal(t, int64(7), chart.Total)
}

func TestGeneratePOST(t *testing.T) {
	e := newTestServer(t)
	jan25 := time.Date(2024, 1, 25, 0, 0, 0, 0, time.UTC).UnixMilli()
	jan30 := time.Date(2024, 1, 30, 15, 0, 0, 0, time.UTC).UnixMilli()
	body := `{"dateInterval":7,"dataRange":14,"date":[` + itoa(jan25) + `,` + itoa(jan30) + `],"count":[3,4],"title":"Bugs"}`

	req := httptest.NewRequest(http.MethodPost, "/api/charts/generate", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec, env := do(e, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var chart models.ChartResponse
	require.NoError(t, json.Unmarshal(env.Data, &chart))
	assert.Equal(t, "Bugs", chart.Title)
	require.Len(t, chart.Series, 1)
	assert.Equal(t, int64(7), chart.Series[0].Count)
	assert.Equal(t, []string{"2024-01-17", "2024-01-24", "2024-01-31"}, chart.Ticks)
}

func TestGenerateValidation(t *testing.T) {
	e := newTestServer(t)
	for _, q := range []string{
		"dataRange=30",
		"dateInterval=0&dataRange=30",
		"dateInterval=-7&dataRange=30",
		"dateInterval=7&dataRange=-1",
		"dateInterval=7&count=-3",
		"dateInterval=abc",
	} {
		req := httptest.NewRequest(http.MethodGet, "/api/charts/generate?"+q, nil)
		rec, env := do(e, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
		assert.Equal(t, http.StatusBadRequest, env.Status, q)
	}
}

func TestGenerateValidationUsesJSONNames(t *testing.T) {
	e := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/charts/generate?dateInterval=0&dataRange=30", nil)
	rec, env := do(e, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var errs []xhttp.ValidationError
	require.NoError(t, json.Unmarshal(env.Data, &errs))
	require.Len(t, errs, 1)
	assert.Equal(t, "ERR_REQUIRED", errs[0].Code)
	assert.Equal(t, "dateInterval", errs[0].Field)
	assert.Equal(t, "dateInterval is required", errs[0].Message)
}

func TestGenerateUnknownTimeZone(t *testing.T) {
	e := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/charts/generate?dateInterval=7&tz=Mars/Base", nil)
	rec, env := do(e, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var errs []map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &errs))
	require.Len(t, errs, 1)
	assert.Equal(t, "ERR_INVALID_PARAMETER", errs[0]["code"])
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	gen := usecase.NewChartGenerator(render.NewDatasetRenderer(), nopMetrics{})
	h := NewChartsEchoHandler(xlogger.Nop(), gen)
	e := echo.New()
	h.RegisterRoutes(e)

	rec, _ := do(e, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	h.AddHealthCheck("redis", stubPinger{err: errors.New("connection refused")})
	rec, env := do(e, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, string(env.Data), "connection refused")
}

type stubQueue struct{ stubPinger }

func (stubQueue) Stats(context.Context) (queue.Stats, error) {
	return queue.Stats{Queued: 4, Dead: 1}, nil
}

func TestHealthListsQueueStats(t *testing.T) {
	gen := usecase.NewChartGenerator(render.NewDatasetRenderer(), nopMetrics{})
	h := NewChartsEchoHandler(xlogger.Nop(), gen)
	h.AddHealthCheck("queue", stubQueue{})
	e := echo.New()
	h.RegisterRoutes(e)

	rec, env := do(e, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Dependencies map[string]string      `json:"dependencies"`
		Queues       map[string]queue.Stats `json:"queues"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, "ok", body.Dependencies["queue"])
	assert.Equal(t, queue.Stats{Queued: 4, Dead: 1}, body.Queues["queue"])
}
