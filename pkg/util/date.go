package util

import (
	"strconv"
	"time"
)

// DayLayout is the calendar-day format used for axis labels and CLI input.
const DayLayout = "2006-01-02"

// ParseTime tries RFC3339, RFC3339Nano, yyyy-MM-dd and unix milliseconds (any int64, so
// 0 and pre-1970 instants are accepted). Returns (t, true) if any worked.
func ParseTime(s string, loc *time.Location) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if t, err := time.ParseInLocation(DayLayout, s, loc); err == nil {
		return t, true
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return FromUnixMilli(ms, loc), true
	}
	return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, loc *time.Location, def time.Time) time.Time {
	if t, ok := ParseTime(s, loc); ok {
		return t
	}
	return def
}

// FromUnixMilli converts epoch milliseconds to an instant in loc.
func FromUnixMilli(ms int64, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.UnixMilli(ms).In(loc)
}

// TruncateToDay strips the time of day from t, returning midnight of t's civil date in loc.
// A nil loc keeps t's own location.
func TruncateToDay(t time.Time, loc *time.Location) time.Time {
	if loc != nil {
		t = t.In(loc)
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// OffsetDays shifts a calendar day by n days (n may be negative). The result is midnight again,
// so days shortened or lengthened by DST transitions never leak an hour into the date.
func OffsetDays(day time.Time, n int) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d+n, 0, 0, 0, 0, day.Location())
}

const secondsPerDay = 24 * 60 * 60

// DaysBetween returns the signed number of whole civil days b - a. It counts in Unix
// seconds, so dates centuries apart stay exact where time.Duration would saturate.
func DaysBetween(a, b time.Time) int {
	return int((civil(b).Unix() - civil(a).Unix()) / secondsPerDay)
}

// civil maps t's wall-clock date onto UTC midnight, where every day is exactly 24h long.
func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FloorMod is the mathematical modulo: the result is always in [0, n) for n > 0.
func FloorMod(a, n int) int {
	r := a % n
	if r < 0 {
		r += n
	}
	return r
}

// FloorDiv rounds the quotient towards negative infinity.
func FloorDiv(a, n int) int {
	q := a / n
	if (a%n != 0) && ((a < 0) != (n < 0)) {
		q--
	}
	return q
}

// IsMidnight reports whether t carries no time-of-day component.
func IsMidnight(t time.Time) bool {
	return t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0
}
