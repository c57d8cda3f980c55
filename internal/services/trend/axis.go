package trend

import (
	"iter"
	"time"

	"TrendChart/internal/domain/models"
	"TrendChart/pkg/util"
)

// LowerBound returns the first day of the visible window. The window spans the smallest
// multiple of interval that is >= dataRangeDays, so upperBound always stays a tick.
func LowerBound(dataRangeDays, interval int, upperBound time.Time) (time.Time, error) {
	if err := checkInterval(interval); err != nil {
		return time.Time{}, err
	}
	if err := checkDataRange(dataRangeDays); err != nil {
		return time.Time{}, err
	}
	return util.OffsetDays(util.TruncateToDay(upperBound, nil), -Span(dataRangeDays, interval)), nil
}

// Span is dataRangeDays padded up to a whole number of intervals. Inputs must be valid.
func Span(dataRangeDays, interval int) int {
	padding := 0
	if r := dataRangeDays % interval; r != 0 {
		padding = interval - r
	}
	return dataRangeDays + padding
}

// NewAxisRange computes the aligned visible range ending at upperBound.
func NewAxisRange(dataRangeDays, interval int, upperBound time.Time) (models.AxisRange, error) {
	lower, err := LowerBound(dataRangeDays, interval, upperBound)
	if err != nil {
		return models.AxisRange{}, err
	}
	return models.AxisRange{
		LowerBound: lower,
		UpperBound: util.TruncateToDay(upperBound, nil),
		Interval:   interval,
	}, nil
}

// DisplayWindow pads the axis by a day on each side; renderers treat bounds as exclusive.
func DisplayWindow(axis models.AxisRange) (time.Time, time.Time) {
	return util.OffsetDays(axis.LowerBound, -1), util.OffsetDays(axis.UpperBound, 1)
}

// Lattice is the tick lattice of an axis range. It is congruent with the bucket lattice
// anchored at the upper bound, because the span is a multiple of the interval.
type Lattice struct {
	lower    time.Time
	upper    time.Time
	interval int
}

// NewLattice validates axis and returns its tick lattice.
func NewLattice(axis models.AxisRange) (Lattice, error) {
	if err := checkInterval(axis.Interval); err != nil {
		return Lattice{}, err
	}
	return Lattice{
		lower:    util.TruncateToDay(axis.LowerBound, nil),
		upper:    util.TruncateToDay(axis.UpperBound, nil),
		interval: axis.Interval,
	}, nil
}

// PreviousTick walks the lattice from lowerBound - interval in interval steps and returns the
// last point reached before the next step would no longer be strictly earlier than from.
// Dates at or before lowerBound yield lowerBound - interval.
func (l Lattice) PreviousTick(from time.Time) time.Time {
	from = from.In(l.lower.Location())
	// Count lattice points lower + j*interval (j >= 0) that lie strictly before from.
	d := util.DaysBetween(l.lower, util.TruncateToDay(from, nil))
	if !util.IsMidnight(from) {
		d++
	}
	steps := 0
	if d > 0 {
		steps = util.FloorDiv(d-1, l.interval) + 1
	}
	return util.OffsetDays(l.lower, (steps-1)*l.interval)
}

// NextTick is PreviousTick(from) + interval.
func (l Lattice) NextTick(from time.Time) time.Time {
	return util.OffsetDays(l.PreviousTick(from), l.interval)
}

// Ticks yields lowerBound, lowerBound+interval, ... up to and including upperBound.
// The sequence is lazy and can be ranged over any number of times.
func (l Lattice) Ticks() iter.Seq[time.Time] {
	return func(yield func(time.Time) bool) {
		if l.interval <= 0 {
			return
		}
		for t := l.lower; !t.After(l.upper); t = util.OffsetDays(t, l.interval) {
			if !yield(t) {
				return
			}
		}
	}
}

// TickList materialises Ticks.
func (l Lattice) TickList() []time.Time {
	n := 0
	if l.interval > 0 {
		n = util.DaysBetween(l.lower, l.upper)/l.interval + 1
	}
	out := make([]time.Time, 0, max(n, 0))
	for t := range l.Ticks() {
		out = append(out, t)
	}
	return out
}

func (l Lattice) LowerBound() time.Time { return l.lower }
func (l Lattice) UpperBound() time.Time { return l.upper }
func (l Lattice) Interval() int         { return l.interval }
