package service

import (
	"context"
	"time"

	"TrendChart/internal/domain/models"
)

// TickWalker lets a date-axis renderer walk the tick lattice without knowing the bucketing rule.
type TickWalker interface {
	PreviousTick(from time.Time) time.Time
	NextTick(from time.Time) time.Time
}

// RenderInput is everything a renderer needs: a finished series plus axis parameters.
type RenderInput struct {
	Series models.TimeSeries
	Axis   models.AxisRange
	Walker TickWalker
	Labels models.ChartLabels
	Width  int
	Height int
}

// Renderer turns a finished time series into a renderable artifact.
type Renderer interface {
	Render(ctx context.Context, in RenderInput) (*models.Chart, error)
}
