package render

import (
	"context"
	"fmt"
	"time"

	"TrendChart/internal/domain/models"
	domsvc "TrendChart/internal/domain/service"
	"TrendChart/internal/services/trend"
	"TrendChart/pkg/util"
)

// DatasetRenderer produces the chart dataset (points, ticks, display window) that a
// drawing frontend plots. It never touches pixels.
type DatasetRenderer struct {
	layout string
}

func NewDatasetRenderer() *DatasetRenderer {
	return &DatasetRenderer{layout: util.DayLayout}
}

// Render walks the tick lattice through in.Walker, starting one step past the lower bound's
// predecessor, so any TickWalker implementation can drive the axis.
func (r *DatasetRenderer) Render(ctx context.Context, in domsvc.RenderInput) (*models.Chart, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lat, err := trend.NewLattice(in.Axis)
	if err != nil {
		return nil, err
	}
	if in.Walker == nil {
		in.Walker = lat
	}

	ticks, err := r.walk(in.Walker, in.Axis)
	if err != nil {
		return nil, err
	}

	series := make([]models.DataPoint, 0, len(in.Series.Points))
	for _, p := range in.Series.Points {
		series = append(series, models.DataPoint{Date: p.Bucket, Label: p.Bucket.Format(r.layout), Value: p.Count})
	}

	labels := in.Labels
	if labels.SeriesName == "" {
		labels.SeriesName = in.Series.Name
	}
	lo, hi := trend.DisplayWindow(in.Axis)
	return &models.Chart{
		Labels:     labels,
		Width:      in.Width,
		Height:     in.Height,
		Axis:       in.Axis,
		DisplayMin: lo,
		DisplayMax: hi,
		Ticks:      ticks,
		Series:     series,
		Total:      in.Series.Total(),
		Location:   in.Axis.UpperBound.Location().String(),
	}, nil
}

func (r *DatasetRenderer) walk(w domsvc.TickWalker, axis models.AxisRange) ([]models.Tick, error) {
	// The walk visits span/interval+1 ticks; anything more means the walker disagrees with the axis.
	limit := util.DaysBetween(axis.LowerBound, axis.UpperBound)/axis.Interval + 2
	out := make([]models.Tick, 0, limit)
	t := w.NextTick(axis.LowerBound)
	if !t.Equal(axis.LowerBound) {
		return nil, fmt.Errorf("tick walker starts at %s, expected %s", t.Format(r.layout), axis.LowerBound.Format(r.layout))
	}
	for !t.After(axis.UpperBound) {
		if len(out) == limit {
			return nil, fmt.Errorf("tick walker exceeded %d ticks", limit)
		}
		out = append(out, models.Tick{Date: t, Label: t.Format(r.layout)})
		t = w.NextTick(t.Add(time.Second))
	}
	if last := out[len(out)-1].Date; !last.Equal(axis.UpperBound) {
		return nil, fmt.Errorf("last tick %s does not match upper bound %s", last.Format(r.layout), axis.UpperBound.Format(r.layout))
	}
	return out, nil
}
