package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"TrendChart/internal/domain/models"
	domrepo "TrendChart/internal/domain/repository"
	domsvc "TrendChart/internal/domain/service"
	icache "TrendChart/internal/service/cache"
	"TrendChart/internal/service/metrics"
	"TrendChart/internal/services/trend"
	applogger "TrendChart/pkg/logger"
	"TrendChart/pkg/util"
)

// Defaults applied when a request leaves size or labels empty.
const (
	DefaultWidth          = 600
	DefaultHeight         = 300
	DefaultTitle          = "Date Field Trending Chart"
	DefaultTimeAxisLabel  = "Dates"
	DefaultValueAxisLabel = "Number of Issues"
)

// ChartGenerator aggregates observations onto the aligned day axis and renders the result.
type ChartGenerator struct {
	renderer      domsvc.Renderer
	cache         domrepo.ChartCache
	metrics       domrepo.Metrics
	clock         domrepo.Clock
	loc           *time.Location
	excludeFuture bool
	cacheTTL      time.Duration
	group         singleflight.Group
	l             *applogger.Logger
}

// ChartGeneratorOption configures ChartGenerator.
type ChartGeneratorOption func(*ChartGenerator)

// WithClock overrides the source of "today".
func WithClock(c domrepo.Clock) ChartGeneratorOption {
	return func(g *ChartGenerator) {
		if c != nil {
			g.clock = c
		}
	}
}

// WithLocation sets the default time zone used for day truncation.
func WithLocation(loc *time.Location) ChartGeneratorOption {
	return func(g *ChartGenerator) {
		if loc != nil {
			g.loc = loc
		}
	}
}

// WithCache enables caching of encoded chart responses.
func WithCache(c domrepo.ChartCache, ttl time.Duration) ChartGeneratorOption {
	return func(g *ChartGenerator) {
		g.cache = c
		g.cacheTTL = ttl
	}
}

// WithExcludeFuture makes dropping observations after "today" the default.
func WithExcludeFuture(v bool) ChartGeneratorOption {
	return func(g *ChartGenerator) { g.excludeFuture = v }
}

func NewChartGenerator(renderer domsvc.Renderer, m domrepo.Metrics, opts ...ChartGeneratorOption) *ChartGenerator {
	g := &ChartGenerator{
		renderer: renderer,
		metrics:  m,
		clock:    time.Now,
		loc:      time.UTC,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// SetLogger injects a structured logger.
func (g *ChartGenerator) SetLogger(l *applogger.Logger) { g.l = l }

// GenerateParams are the inputs of one chart request.
type GenerateParams struct {
	Source        string // transport label for metrics: http, kafka, cli
	Width         int
	Height        int
	DateInterval  int
	DataRange     int
	Dates         []int64 // epoch milliseconds
	Counts        []int64
	Labels        models.ChartLabels
	TZ            string
	ExcludeFuture bool
}

// ParamsFromRequest maps a transport request onto GenerateParams.
func ParamsFromRequest(source string, req *models.ChartRequest) GenerateParams {
	return GenerateParams{
		Source:       source,
		Width:        req.Width,
		Height:       req.Height,
		DateInterval: req.DateInterval,
		DataRange:    req.DataRange,
		Dates:        req.Dates,
		Counts:       req.Counts,
		Labels: models.ChartLabels{
			Title:          req.Title,
			TimeAxisLabel:  req.TimeAxisLabel,
			ValueAxisLabel: req.ValueAxisLabel,
		},
		TZ:            req.TZ,
		ExcludeFuture: req.ExcludeFuture,
	}
}

// Generate builds the chart. Invalid parameters fail with trend.ErrInvalidParameter
// before any observation is looked at.
func (g *ChartGenerator) Generate(ctx context.Context, p GenerateParams) (*models.Chart, error) {
	start := time.Now()
	defer func() { g.metrics.RecordLatency("generate", time.Since(start).Seconds()) }()

	loc, err := g.location(p.TZ)
	if err != nil {
		g.metrics.RecordError("invalid_parameter")
		return nil, err
	}
	upper := util.TruncateToDay(g.clock(), loc)
	axis, err := trend.NewAxisRange(p.DataRange, p.DateInterval, upper)
	if err != nil {
		g.metrics.RecordError("invalid_parameter")
		return nil, err
	}

	res, err := trend.AggregateWithOptions(
		trend.ZipMillis(p.Dates, p.Counts, loc),
		upper,
		p.DateInterval,
		trend.AggregateOptions{SeriesName: p.Labels.SeriesName, ExcludeFuture: p.ExcludeFuture || g.excludeFuture},
	)
	if err != nil {
		g.metrics.RecordError("invalid_parameter")
		return nil, err
	}
	g.metrics.RecordObservations(min(len(p.Dates), len(p.Counts))-res.Dropped, res.Dropped)

	lat, err := trend.NewLattice(axis)
	if err != nil {
		return nil, err
	}
	chart, err := g.renderer.Render(ctx, domsvc.RenderInput{
		Series: res.Series,
		Axis:   axis,
		Walker: lat,
		Labels: withDefaultLabels(p.Labels),
		Width:  orDefault(p.Width, DefaultWidth),
		Height: orDefault(p.Height, DefaultHeight),
	})
	if err != nil {
		g.metrics.RecordError("render")
		return nil, fmt.Errorf("render chart: %w", err)
	}
	chart.Dropped = res.Dropped
	g.metrics.RecordChart(sourceLabel(p.Source), len(chart.Series))
	return chart, nil
}

// GenerateResponse returns the wire form of the chart, served from cache when possible.
// Identical concurrent requests share a single computation.
func (g *ChartGenerator) GenerateResponse(ctx context.Context, p GenerateParams) (*models.ChartResponse, error) {
	loc, err := g.location(p.TZ)
	if err != nil {
		g.metrics.RecordError("invalid_parameter")
		return nil, err
	}
	key := g.cacheKey(p, util.TruncateToDay(g.clock(), loc))

	// detached from the first caller so its cancellation does not fail joined callers
	shared := context.WithoutCancel(ctx)
	v, err, joined := g.group.Do(key, func() (interface{}, error) {
		if b, ok := g.cached(key); ok {
			var resp models.ChartResponse
			if err := json.Unmarshal(b, &resp); err == nil {
				return &resp, nil
			}
		}
		chart, err := g.Generate(shared, p)
		if err != nil {
			return nil, err
		}
		resp := models.NewChartResponse(chart)
		g.store(key, resp)
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	if joined && g.l != nil {
		g.l.Debug("chart.generate shared", applogger.String("key", key))
	}
	return v.(*models.ChartResponse), nil
}

func (g *ChartGenerator) cached(key string) ([]byte, bool) {
	if g.cache == nil {
		return nil, false
	}
	b, ok, err := g.cache.GetBytes(key)
	if err != nil {
		metrics.CacheLookups.WithLabelValues("error").Inc()
		if g.l != nil {
			g.l.Warn("chart.generate cache_get_error", applogger.Error(err))
		}
		return nil, false
	}
	if !ok {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}
	metrics.CacheLookups.WithLabelValues("hit").Inc()
	return b, true
}

func (g *ChartGenerator) store(key string, resp *models.ChartResponse) {
	if g.cache == nil {
		return
	}
	b, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if err := g.cache.SetBytes(key, b, g.cacheTTL); err != nil && g.l != nil {
		g.l.Warn("chart.generate cache_set_error", applogger.Error(err))
	}
}

func (g *ChartGenerator) cacheKey(p GenerateParams, upper time.Time) string {
	raw := icache.GenerateKeyWithParams("chart",
		upper.Format(util.DayLayout), upper.Location().String(),
		p.DateInterval, p.DataRange, p.Width, p.Height,
		strconv.Quote(p.Labels.Title), strconv.Quote(p.Labels.SeriesName),
		strconv.Quote(p.Labels.TimeAxisLabel), strconv.Quote(p.Labels.ValueAxisLabel),
		p.ExcludeFuture || g.excludeFuture,
		int64sKey(p.Dates), int64sKey(p.Counts),
	)
	return icache.GenerateKey("chart", icache.HashKey(raw))
}

func (g *ChartGenerator) location(tz string) (*time.Location, error) {
	if tz == "" {
		return g.loc, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown time zone %q", trend.ErrInvalidParameter, tz)
	}
	return loc, nil
}

func withDefaultLabels(l models.ChartLabels) models.ChartLabels {
	if l.Title == "" {
		l.Title = DefaultTitle
	}
	if l.TimeAxisLabel == "" {
		l.TimeAxisLabel = DefaultTimeAxisLabel
	}
	if l.ValueAxisLabel == "" {
		l.ValueAxisLabel = DefaultValueAxisLabel
	}
	return l
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func sourceLabel(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func int64sKey(vs []int64) string {
	b := make([]byte, 0, len(vs)*14)
	for i, v := range vs {
		if i > 0 {
			b = append(b, ',')
		}
		b = strconv.AppendInt(b, v, 10)
	}
	return string(b)
}
