package trend

import (
	"sort"
	"time"

	"TrendChart/internal/domain/models"
	"TrendChart/pkg/util"
)

// DefaultSeriesName is used when no series name is supplied.
const DefaultSeriesName = "Issues"

// AggregateOptions tunes Aggregate. The zero value matches the default behaviour.
type AggregateOptions struct {
	SeriesName string
	// ExcludeFuture drops observations dated after the upper bound instead of bucketing them.
	ExcludeFuture bool
}

// AggregateResult is the series plus bookkeeping about what was left out.
type AggregateResult struct {
	Series  models.TimeSeries
	Dropped int
}

// Zip pairs timestamps with counts by position. Extra entries of the longer list are ignored.
func Zip(timestamps []time.Time, counts []int64) []models.Observation {
	n := min(len(timestamps), len(counts))
	out := make([]models.Observation, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, models.Observation{Timestamp: timestamps[i], Count: counts[i]})
	}
	return out
}

// ZipMillis is Zip for epoch-millisecond timestamps.
func ZipMillis(millis []int64, counts []int64, loc *time.Location) []models.Observation {
	n := min(len(millis), len(counts))
	out := make([]models.Observation, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, models.Observation{Timestamp: util.FromUnixMilli(millis[i], loc), Count: counts[i]})
	}
	return out
}

// Bucket returns the axis day ts belongs to: its calendar day snapped forward onto the
// lattice upperBound - k*interval. The result lies in [day, day+interval-1].
// interval must be positive; use Aggregate for validated input.
func Bucket(ts, upperBound time.Time, interval int) time.Time {
	upper := util.TruncateToDay(upperBound, nil)
	day := util.TruncateToDay(ts, upper.Location())
	diff := util.DaysBetween(day, upper)
	return util.OffsetDays(day, util.FloorMod(diff, interval))
}

// Aggregate sums observation counts per bucket and returns them ordered by date.
func Aggregate(obs []models.Observation, upperBound time.Time, interval int) (models.TimeSeries, error) {
	res, err := AggregateWithOptions(obs, upperBound, interval, AggregateOptions{})
	if err != nil {
		return models.TimeSeries{}, err
	}
	return res.Series, nil
}

// AggregateWithOptions is Aggregate with caller options.
func AggregateWithOptions(obs []models.Observation, upperBound time.Time, interval int, opts AggregateOptions) (AggregateResult, error) {
	if err := checkInterval(interval); err != nil {
		return AggregateResult{}, err
	}
	for _, o := range obs {
		if o.Count < 0 {
			return AggregateResult{}, &ParamError{Param: "count", Value: o.Count, Reason: "must not be negative"}
		}
	}

	name := opts.SeriesName
	if name == "" {
		name = DefaultSeriesName
	}
	res := AggregateResult{Series: models.TimeSeries{Name: name}}
	if len(obs) == 0 {
		return res, nil
	}

	upper := util.TruncateToDay(upperBound, nil)
	sums := make(map[time.Time]int64, len(obs))
	for _, o := range obs {
		day := util.TruncateToDay(o.Timestamp, upper.Location())
		if opts.ExcludeFuture && day.After(upper) {
			res.Dropped++
			continue
		}
		b := util.OffsetDays(day, util.FloorMod(util.DaysBetween(day, upper), interval))
		sums[b] += o.Count
	}

	points := make([]models.Point, 0, len(sums))
	for b, c := range sums {
		points = append(points, models.Point{Bucket: b, Count: c})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Bucket.Before(points[j].Bucket) })
	res.Series.Points = points
	return res, nil
}
