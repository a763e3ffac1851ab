// Package sources implements the uniform Source contract over delimited text
// files, embedded energy-model databases and remote time-series backends.
//
// Sources never return errors across the contract: any failure degrades to
// an empty result, which callers treat as "no data".
package sources

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/HatiCode/trendlens/pkg/series"
)

// Kind classifies the temporal shape of a source.
type Kind int

const (
	KindNonTimeSeries Kind = iota
	KindTimeSeries
	KindEnergyModel
	KindDatabase
)

var kindNames = map[Kind]string{
	KindNonTimeSeries: "NonTimeSeries",
	KindTimeSeries:    "TimeSeries",
	KindEnergyModel:   "EnergyModel",
	KindDatabase:      "Database",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	for kind, name := range kindNames {
		if strings.EqualFold(name, string(b)) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown source kind %q", b)
}

// Source is implemented by every data source.
type Source interface {
	// Trends lists trend names. The result is cached by the source.
	Trends(ctx context.Context) []string
	// RawSeries returns the parseable values of trend, or an empty slice.
	RawSeries(ctx context.Context, trend string) []float64
	// TimestampSeries returns trend with equal-length timestamps and values.
	TimestampSeries(ctx context.Context, trend string) *series.TimestampSeries
	// Window fetches each trend and trims it to [start, end).
	Window(ctx context.Context, trends []string, start, end time.Time) []*series.TimestampSeries
	Kind(ctx context.Context) Kind
	// Header is the full identifier, usually a path.
	Header() string
	ShortName() string
}

// ShortName returns the last element of header, splitting on either path
// separator.
func ShortName(header string) string {
	if i := strings.LastIndexAny(header, `/\`); i >= 0 {
		return header[i+1:]
	}
	return header
}

// ConfigKeys returns the trend-config selector keys for src in match order:
// the absolute path first, then the file type tag.
func ConfigKeys(src Source) []string {
	header := src.Header()
	keys := make([]string, 0, 2)
	if abs, err := filepath.Abs(header); err == nil && header != "" {
		keys = append(keys, abs)
	} else if header != "" {
		keys = append(keys, header)
	}
	if ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(ShortName(header))), "."); ext != "" {
		keys = append(keys, ext)
	}
	return keys
}

// window fetches every trend through fetch and trims it to [start, end).
// Zero start or end leaves that side unbounded.
func window(ctx context.Context, trends []string, start, end time.Time, fetch func(context.Context, string) *series.TimestampSeries) []*series.TimestampSeries {
	out := make([]*series.TimestampSeries, 0, len(trends))
	for _, trend := range trends {
		s := fetch(ctx, trend)
		if s == nil {
			s = series.Empty(trend)
		}
		trimWindow(s, start, end)
		out = append(out, s)
	}
	return out
}

var (
	minTime = time.Unix(-1<<62, 0)
	maxTime = time.Unix(1<<62, 0)
)

func trimWindow(s *series.TimestampSeries, start, end time.Time) {
	if start.IsZero() {
		start = minTime
	}
	if end.IsZero() {
		end = maxTime
	}
	s.Trim(start, end)
}
