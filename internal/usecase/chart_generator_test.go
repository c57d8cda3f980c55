package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TrendChart/internal/domain/models"
	domsvc "TrendChart/internal/domain/service"
	icache "TrendChart/internal/service/cache"
	"TrendChart/internal/services/render"
	"TrendChart/internal/services/trend"
)

type fakeMetrics struct {
	mu       sync.Mutex
	charts   map[string]int
	accepted int
	dropped  int
	errors   map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{charts: map[string]int{}, errors: map[string]int{}}
}

func (m *fakeMetrics) RecordChart(source string, _ int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.charts[source]++
}

func (m *fakeMetrics) RecordObservations(accepted, dropped int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accepted += accepted
	m.dropped += dropped
}

func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}

func (m *fakeMetrics) RecordLatency(string, float64) {}

// countingRenderer counts calls so cache hits can be observed.
type countingRenderer struct {
	mu    sync.Mutex
	calls int
	next  domsvc.Renderer
}

func (r *countingRenderer) Render(ctx context.Context, in domsvc.RenderInput) (*models.Chart, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	return r.next.Render(ctx, in)
}

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func ms(y int, m time.Month, d int) int64 {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC).UnixMilli()
}

func newTestGenerator(m *fakeMetrics, opts ...ChartGeneratorOption) *ChartGenerator {
	base := []ChartGeneratorOption{WithClock(fixedClock(time.Date(2024, 1, 31, 15, 30, 0, 0, time.UTC)))}
	return NewChartGenerator(render.NewDatasetRenderer(), m, append(base, opts...)...)
}

func TestGenerateScenario(t *testing.T) {
	m := newFakeMetrics()
	g := newTestGenerator(m)

	chart, err := g.Generate(context.Background(), GenerateParams{
		Source:       "http",
		DateInterval: 7,
		DataRange:    30,
		Dates:        []int64{ms(2024, 1, 10), ms(2024, 1, 11), ms(2024, 1, 25), ms(2024, 1, 30)},
		Counts:       []int64{1, 1, 3, 4},
	})
	require.NoError(t, err)

	assert.Equal(t, time.Date(2023, 12, 27, 0, 0, 0, 0, time.UTC), chart.Axis.LowerBound)
	assert.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), chart.Axis.UpperBound)
	require.Len(t, chart.Series, 3)
	assert.Equal(t, "2024-01-10", chart.Series[0].Label)
	assert.Equal(t, "2024-01-17", chart.Series[1].Label)
	assert.Equal(t, "2024-01-31", chart.Series[2].Label)
	assert.Equal(t, int64(7), chart.Series[2].Value)

	assert.Equal(t, DefaultWidth, chart.Width)
	assert.Equal(t, DefaultHeight, chart.Height)
	assert.Equal(t, DefaultTitle, chart.Labels.Title)
	assert.Equal(t, DefaultTimeAxisLabel, chart.Labels.TimeAxisLabel)
	assert.Equal(t, DefaultValueAxisLabel, chart.Labels.ValueAxisLabel)
	assert.Equal(t, trend.DefaultSeriesName, chart.Labels.SeriesName)

	assert.Equal(t, 1, m.charts["http"])
	assert.Equal(t, 4, m.accepted)
}

func TestGenerateRejectsInvalidIntervalBeforeObservations(t *testing.T) {
	m := newFakeMetrics()
	g := newTestGenerator(m)

	_, err := g.Generate(context.Background(), GenerateParams{
		DateInterval: 0,
		DataRange:    30,
		Dates:        []int64{ms(2024, 1, 10)},
		Counts:       []int64{-5},
	})
	require.Error(t, err)
	var pe *trend.ParamError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "interval", pe.Param)
	assert.Equal(t, 1, m.errors["invalid_parameter"])
	assert.Zero(t, m.accepted)
}

func TestGenerateUnknownTimeZone(t *testing.T) {
	g := newTestGenerator(newFakeMetrics())
	_, err := g.Generate(context.Background(), GenerateParams{DateInterval: 7, TZ: "Nowhere/Atlantis"})
	assert.ErrorIs(t, err, trend.ErrInvalidParameter)
}

func TestGenerateTimeZoneShiftsToday(t *testing.T) {
	// 15:30 UTC on Jan 31 is already Feb 1 in Tokyo.
	g := newTestGenerator(newFakeMetrics())
	chart, err := g.Generate(context.Background(), GenerateParams{DateInterval: 1, DataRange: 0, TZ: "Asia/Tokyo"})
	require.NoError(t, err)
	assert.Equal(t, "2024-02-01", chart.Axis.UpperBound.Format("2006-01-02"))
	assert.Equal(t, "Asia/Tokyo", chart.Location)
	require.Len(t, chart.Ticks, 1)
}

func TestGenerateExcludeFuture(t *testing.T) {
	m := newFakeMetrics()
	g := newTestGenerator(m, WithExcludeFuture(true))

	chart, err := g.Generate(context.Background(), GenerateParams{
		DateInterval: 7,
		DataRange:    14,
		Dates:        []int64{ms(2024, 1, 30), ms(2024, 2, 3)},
		Counts:       []int64{2, 9},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, chart.Dropped)
	assert.Equal(t, int64(2), chart.Total)
	assert.Equal(t, 1, m.dropped)
	assert.Equal(t, 1, m.accepted)
}

func TestGenerateResponseUsesCache(t *testing.T) {
	m := newFakeMetrics()
	r := &countingRenderer{next: render.NewDatasetRenderer()}
	g := NewChartGenerator(r, m,
		WithClock(fixedClock(time.Date(2024, 1, 31, 8, 0, 0, 0, time.UTC))),
		WithCache(icache.NewTTLCache(16, time.Hour), time.Minute),
	)
	p := GenerateParams{Source: "http", DateInterval: 7, DataRange: 30, Dates: []int64{ms(2024, 1, 10)}, Counts: []int64{2}}

	first, err := g.GenerateResponse(context.Background(), p)
	require.NoError(t, err)
	second, err := g.GenerateResponse(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, r.calls)
	assert.Equal(t, "2023-12-27", first.LowerBound)
	assert.Equal(t, []string{"2023-12-27", "2024-01-03", "2024-01-10", "2024-01-17", "2024-01-24", "2024-01-31"}, first.Ticks)

	p.Counts = []int64{3}
	third, err := g.GenerateResponse(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, int64(3), third.Total)
	assert.Equal(t, 2, r.calls)
}

func TestGenerateResponseWithoutCache(t *testing.T) {
	g := newTestGenerator(newFakeMetrics())
	res, err := g.GenerateResponse(context.Background(), GenerateParams{DateInterval: 7, DataRange: 7})
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-24", "2024-01-31"}, res.Ticks)
	assert.Empty(t, res.Series)
}

func TestGenerateResponseDetachedFromCallerCancel(t *testing.T) {
	g := newTestGenerator(newFakeMetrics())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := GenerateParams{DateInterval: 7, DataRange: 7, Dates: []int64{ms(2024, 1, 30)}, Counts: []int64{2}}

	_, err := g.Generate(ctx, p)
	require.ErrorIs(t, err, context.Canceled)

	res, err := g.GenerateResponse(ctx, p)
	require.NoError(t, err)
	require.Len(t, res.Series, 1)
	assert.Equal(t, int64(2), res.Series[0].Count)
}

func TestParamsFromRequest(t *testing.T) {
	req := &models.ChartRequest{
		Width: 800, Height: 400, DateInterval: 3, DataRange: 10,
		Dates: []int64{1}, Counts: []int64{2},
		Title: "Bugs", TimeAxisLabel: "Day", ValueAxisLabel: "Bugs opened",
		TZ: "UTC", ExcludeFuture: true,
	}
	p := ParamsFromRequest("kafka", req)
	assert.Equal(t, "kafka", p.Source)
	assert.Equal(t, 800, p.Width)
	assert.Equal(t, "Bugs", p.Labels.Title)
	assert.Equal(t, "Bugs opened", p.Labels.ValueAxisLabel)
	assert.True(t, p.ExcludeFuture)
}
