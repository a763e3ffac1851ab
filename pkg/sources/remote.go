package sources

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/HatiCode/trendlens/pkg/adapters"
	"github.com/HatiCode/trendlens/pkg/series"
	"github.com/HatiCode/trendlens/pkg/storage"
)

// Remote exposes queries against a time-series database as trends.
// Each entry of Queries maps a trend name to a backend expression.
// Fetched windows are cached in Cache when set.
type Remote struct {
	Name    string
	Adapter adapters.Adapter
	Queries map[string]string

	// Lookback is the range used by TimestampSeries and RawSeries (default 24h).
	Lookback time.Duration
	// Step is the query resolution (default 1m). Window bounds are aligned to it.
	Step time.Duration

	Cache    storage.Store
	Logger   *slog.Logger
	Observer Observer
	Now      func() time.Time
}

func (r *Remote) Header() string    { return r.Name }
func (r *Remote) ShortName() string { return ShortName(r.Name) }

func (r *Remote) Kind(context.Context) Kind { return KindDatabase }

func (r *Remote) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

func (r *Remote) step() time.Duration {
	if r.Step <= 0 {
		return time.Minute
	}
	return r.Step
}

func (r *Remote) lookback() time.Duration {
	if r.Lookback <= 0 {
		return 24 * time.Hour
	}
	return r.Lookback
}

func (r *Remote) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Trends returns the configured query names, sorted.
func (r *Remote) Trends(context.Context) []string {
	out := make([]string, 0, len(r.Queries))
	for name := range r.Queries {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// bounds resolves zero start/end to the lookback window ending now. The
// query start is aligned down to the step and the end up to the next step,
// so the query always covers [start, end).
func (r *Remote) bounds(start, end time.Time) (time.Time, time.Time) {
	if end.IsZero() {
		end = r.now()
	}
	if start.IsZero() {
		start = end.Add(-r.lookback())
	}
	sec := int(r.step() / time.Second)
	qs := adapters.AlignTimestamp(start, sec)
	qe := adapters.AlignTimestamp(end, sec)
	if qe.Before(end) {
		qe = qe.Add(time.Duration(sec) * time.Second)
	}
	return qs, qe
}

func (r *Remote) fetch(ctx context.Context, trend string, start, end time.Time) *series.TimestampSeries {
	expr, ok := r.Queries[trend]
	if !ok || r.Adapter == nil || !start.Before(end) {
		return series.Empty(trend)
	}

	key := storage.CacheKey(r.Name, trend, start, end)
	if r.Cache != nil {
		snap, found, err := r.Cache.Get(ctx, key)
		if err != nil {
			r.logger().Warn("series cache read failed", "source", r.Name, "trend", trend, "error", err)
		} else if found {
			return snap.Series()
		}
	}

	if r.Observer != nil {
		r.Observer.ObserveRead(r.Name)
	}
	s, err := r.Adapter.Collect(ctx, adapters.Query{
		Expr:        expr,
		Start:       start,
		End:         end,
		StepSeconds: int(r.step() / time.Second),
	})
	if err != nil || s == nil || !s.LengthsEqual() {
		r.logger().Warn("remote query failed", "source", r.Name, "trend", trend, "adapter", r.Adapter.Name(), "error", err)
		return series.Empty(trend)
	}
	s.Trend = trend
	if !s.IsSorted() {
		s.Sort()
	}

	if r.Cache != nil {
		if err := r.Cache.Put(ctx, storage.NewSnapshot(key, r.Name, s, start, end)); err != nil {
			r.logger().Warn("series cache write failed", "source", r.Name, "trend", trend, "error", err)
		}
	}
	return s
}

// TimestampSeries returns the lookback window ending now.
func (r *Remote) TimestampSeries(ctx context.Context, trend string) *series.TimestampSeries {
	start, end := r.bounds(time.Time{}, time.Time{})
	return r.fetch(ctx, trend, start, end)
}

func (r *Remote) RawSeries(ctx context.Context, trend string) []float64 {
	return r.TimestampSeries(ctx, trend).Values
}

// Window pushes the range down to the backend and then trims locally.
func (r *Remote) Window(ctx context.Context, trends []string, start, end time.Time) []*series.TimestampSeries {
	qs, qe := r.bounds(start, end)
	return window(ctx, trends, start, end, func(ctx context.Context, trend string) *series.TimestampSeries {
		return r.fetch(ctx, trend, qs, qe)
	})
}
