// Package series provides the paired timestamp/value sequence every source
// returns for a trend.
//
// A TimestampSeries keeps Timestamps and Values at equal length. Producers
// that cannot guarantee this must drop the offending row rather than emit
// mismatched slices; consumers may rely on LengthsEqual holding for any
// series returned across the source contract.
package series

import (
	"slices"
	"sort"
	"time"
)

// TimestampSeries is an ordered sequence of (timestamp, value) pairs for one trend.
type TimestampSeries struct {
	Trend      string
	Timestamps []time.Time
	Values     []float64
}

// New returns an empty series for trend.
func New(trend string) *TimestampSeries {
	return &TimestampSeries{Trend: trend}
}

// Empty returns a series with zero-length, non-nil slices.
func Empty(trend string) *TimestampSeries {
	return &TimestampSeries{
		Trend:      trend,
		Timestamps: []time.Time{},
		Values:     []float64{},
	}
}

// Append adds one pair.
func (s *TimestampSeries) Append(ts time.Time, v float64) {
	s.Timestamps = append(s.Timestamps, ts)
	s.Values = append(s.Values, v)
}

// Len returns the number of pairs. It returns 0 for a series whose
// lengths disagree.
func (s *TimestampSeries) Len() int {
	if !s.LengthsEqual() {
		return 0
	}
	return len(s.Timestamps)
}

// LengthsEqual reports whether the timestamp and value slices have the same length.
func (s *TimestampSeries) LengthsEqual() bool {
	return len(s.Timestamps) == len(s.Values)
}

// Trim removes every pair whose timestamp falls outside [start, end),
// compacting kept pairs in place in a single pass. A series whose
// lengths disagree is emptied.
func (s *TimestampSeries) Trim(start, end time.Time) {
	if !s.LengthsEqual() {
		s.Timestamps, s.Values = s.Timestamps[:0], s.Values[:0]
		return
	}
	w := 0
	for i, ts := range s.Timestamps {
		if ts.Before(start) || !ts.Before(end) {
			continue
		}
		s.Timestamps[w] = ts
		s.Values[w] = s.Values[i]
		w++
	}
	clear(s.Timestamps[w:])
	s.Timestamps = s.Timestamps[:w]
	s.Values = s.Values[:w]
}

// Sort orders the pairs by timestamp ascending. The sort is stable, so
// pairs sharing a timestamp keep their input order.
func (s *TimestampSeries) Sort() {
	if s.IsSorted() {
		return
	}
	sort.Stable(byTime{s})
}

// IsSorted reports whether timestamps are non-decreasing.
func (s *TimestampSeries) IsSorted() bool {
	for i := 1; i < len(s.Timestamps); i++ {
		if s.Timestamps[i].Before(s.Timestamps[i-1]) {
			return false
		}
	}
	return true
}

// Scale multiplies every value by factor.
func (s *TimestampSeries) Scale(factor float64) {
	for i := range s.Values {
		s.Values[i] *= factor
	}
}

// Clone returns a deep copy.
func (s *TimestampSeries) Clone() *TimestampSeries {
	return &TimestampSeries{
		Trend:      s.Trend,
		Timestamps: slices.Clone(s.Timestamps),
		Values:     slices.Clone(s.Values),
	}
}

type byTime struct{ s *TimestampSeries }

func (b byTime) Len() int           { return len(b.s.Timestamps) }
func (b byTime) Less(i, j int) bool { return b.s.Timestamps[i].Before(b.s.Timestamps[j]) }
func (b byTime) Swap(i, j int) {
	b.s.Timestamps[i], b.s.Timestamps[j] = b.s.Timestamps[j], b.s.Timestamps[i]
	b.s.Values[i], b.s.Values[j] = b.s.Values[j], b.s.Values[i]
}
