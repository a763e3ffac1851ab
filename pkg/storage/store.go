// Package storage caches fetched series snapshots so repeated window
// requests against a remote database do not hit the backend every time.
package storage

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/gosimple/slug"

	"github.com/HatiCode/trendlens/pkg/series"
)

// Snapshot is one fetched window of a trend.
type Snapshot struct {
	Key        string      `json:"key"`
	Source     string      `json:"source"`
	Trend      string      `json:"trend"`
	Start      time.Time   `json:"start"`
	End        time.Time   `json:"end"`
	FetchedAt  time.Time   `json:"fetchedAt"`
	Timestamps []time.Time `json:"timestamps"`
	Values     []float64   `json:"values"`
}

// Series returns a copy of the snapshot data as a series.
func (s Snapshot) Series() *series.TimestampSeries {
	out := series.Empty(s.Trend)
	out.Timestamps = append(out.Timestamps, s.Timestamps...)
	out.Values = append(out.Values, s.Values...)
	return out
}

// NewSnapshot captures ts under key.
func NewSnapshot(key, source string, ts *series.TimestampSeries, start, end time.Time) Snapshot {
	c := ts.Clone()
	return Snapshot{
		Key:        key,
		Source:     source,
		Trend:      ts.Trend,
		Start:      start,
		End:        end,
		FetchedAt:  time.Now(),
		Timestamps: c.Timestamps,
		Values:     c.Values,
	}
}

// Store persists snapshots by key.
type Store interface {
	Put(ctx context.Context, snapshot Snapshot) error
	Get(ctx context.Context, key string) (Snapshot, bool, error)
}

// CacheKey builds a store key for a source, trend and window. The readable
// prefix is a slug; the hash suffix keeps distinct inputs that slugify alike
// apart.
func CacheKey(source, trend string, start, end time.Time) string {
	raw := strings.Join([]string{
		source,
		trend,
		start.UTC().Format(time.RFC3339),
		end.UTC().Format(time.RFC3339),
	}, "\x00")
	h := fnv.New64a()
	h.Write([]byte(raw))

	prefix := slug.Make(source + " " + trend)
	if len(prefix) > 64 {
		prefix = strings.TrimRight(prefix[:64], "-_")
	}
	if prefix == "" {
		prefix = "series"
	}
	return fmt.Sprintf("%s-%016x", prefix, h.Sum64())
}

// ValidKey reports whether key is usable by every store implementation.
func ValidKey(key string) bool {
	return key != "" && slug.IsSlug(key)
}
