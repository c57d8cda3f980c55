package models

import "time"

// Observation is a single raw data point: a count recorded at an instant.
type Observation struct {
	Timestamp time.Time
	Count     int64
}

// Point is one bucket of an aggregated time series.
type Point struct {
	Bucket time.Time // calendar day on the axis lattice
	Count  int64
}

// TimeSeries is ordered by Bucket ascending; buckets are unique.
type TimeSeries struct {
	Name   string
	Points []Point
}

// Total returns the sum of all bucket counts.
func (s TimeSeries) Total() int64 {
	var n int64
	for _, p := range s.Points {
		n += p.Count
	}
	return n
}

// AxisRange is the visible date window of a chart.
// Invariant: UpperBound - LowerBound is a whole multiple of Interval days.
type AxisRange struct {
	LowerBound time.Time
	UpperBound time.Time
	Interval   int
}

// ChartLabels carries caller supplied text; it is passed through untouched.
type ChartLabels struct {
	Title          string
	SeriesName     string
	TimeAxisLabel  string
	ValueAxisLabel string
}

// Tick is a labeled axis position.
type Tick struct {
	Date  time.Time
	Label string
}

// DataPoint is a rendered series point.
type DataPoint struct {
	Date  time.Time
	Label string
	Value int64
}

// Chart is the renderable artifact handed back to transports.
type Chart struct {
	Labels     ChartLabels
	Width      int
	Height     int
	Axis       AxisRange
	DisplayMin time.Time
	DisplayMax time.Time
	Ticks      []Tick
	Series     []DataPoint
	Total      int64
	Dropped    int // observations excluded because they were dated after the upper bound
	Location   string
}
