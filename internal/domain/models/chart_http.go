package models

import "time"

// Requests and responses for chart transports (HTTP, Kafka). Defined in domain for reuse.

type ChartRequest struct {
	Width          int     `query:"width" json:"width" default:"600" validate:"gte=1,lte=4096"`
	Height         int     `query:"height" json:"height" default:"300" validate:"gte=1,lte=4096"`
	DateInterval   int     `query:"dateInterval" json:"dateInterval" validate:"required,gte=1,lte=3660"`
	DataRange      int     `query:"dataRange" json:"dataRange" validate:"gte=0,lte=36600"`
	Dates          []int64 `query:"date" json:"date" validate:"max=100000"`
	Counts         []int64 `query:"count" json:"count" validate:"max=100000,dive,gte=0"`
	Title          string  `query:"title" json:"title" default:"Date Field Trending Chart" validate:"max=256"`
	TimeAxisLabel  string  `query:"timeAxisLabel" json:"timeAxisLabel" default:"Dates" validate:"max=128"`
	ValueAxisLabel string  `query:"valueAxisLabel" json:"valueAxisLabel" default:"Number of Issues" validate:"max=128"`
	TZ             string  `query:"tz" json:"tz" validate:"max=64"`
	ExcludeFuture  bool    `query:"excludeFuture" json:"excludeFuture"`
}

// ChartJob is a chart request delivered over Kafka.
type ChartJob struct {
	RequestID string `json:"request_id"`
	ChartRequest
}

// ChartJobType names chart jobs on the Redis job queue.
const ChartJobType = "chart.generate"

// Chart job states.
const (
	JobPending = "pending"
	JobDone    = "done"
	JobFailed  = "failed"
)

// ChartJobResult is published for every consumed ChartJob.
type ChartJobResult struct {
	RequestID   string         `json:"request_id"`
	Status      string         `json:"status"`
	GeneratedAt time.Time      `json:"generated_at"`
	Chart       *ChartResponse `json:"chart,omitempty"`
	Error       string         `json:"error,omitempty"`
}

type ChartResponse struct {
	Title          string           `json:"title"`
	SeriesName     string           `json:"seriesName"`
	TimeAxisLabel  string           `json:"timeAxisLabel"`
	ValueAxisLabel string           `json:"valueAxisLabel"`
	Width          int              `json:"width"`
	Height         int              `json:"height"`
	DateInterval   int              `json:"dateInterval"`
	LowerBound     string           `json:"lowerBound"`
	UpperBound     string           `json:"upperBound"`
	DisplayMin     string           `json:"displayMin"`
	DisplayMax     string           `json:"displayMax"`
	TimeZone       string           `json:"timeZone"`
	Ticks          []string         `json:"ticks"`
	Series         []SeriesPointDTO `json:"series"`
	Total          int64            `json:"total"`
	Dropped        int              `json:"dropped,omitempty"`
}

type SeriesPointDTO struct {
	Date  string `json:"date"`
	Time  int64  `json:"time"` // epoch ms of the bucket
	Count int64  `json:"count"`
}

// NewChartResponse maps a rendered chart to its wire shape.
func NewChartResponse(c *Chart) *ChartResponse {
	if c == nil {
		return nil
	}
	ticks := make([]string, 0, len(c.Ticks))
	for _, t := range c.Ticks {
		ticks = append(ticks, t.Label)
	}
	series := make([]SeriesPointDTO, 0, len(c.Series))
	for _, p := range c.Series {
		series = append(series, SeriesPointDTO{Date: p.Label, Time: p.Date.UnixMilli(), Count: p.Value})
	}
	const layout = "2006-01-02"
	return &ChartResponse{
		Title:          c.Labels.Title,
		SeriesName:     c.Labels.SeriesName,
		TimeAxisLabel:  c.Labels.TimeAxisLabel,
		ValueAxisLabel: c.Labels.ValueAxisLabel,
		Width:          c.Width,
		Height:         c.Height,
		DateInterval:   c.Axis.Interval,
		LowerBound:     c.Axis.LowerBound.Format(layout),
		UpperBound:     c.Axis.UpperBound.Format(layout),
		DisplayMin:     c.DisplayMin.Format(layout),
		DisplayMax:     c.DisplayMax.Format(layout),
		TimeZone:       c.Location,
		Ticks:          ticks,
		Series:         series,
		Total:          c.Total,
		Dropped:        c.Dropped,
	}
}
