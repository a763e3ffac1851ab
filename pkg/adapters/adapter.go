// Package adapters provides connectors to remote time-series databases.
// Each adapter evaluates one query expression over a time range and returns
// the result as a *series.TimestampSeries sorted by timestamp.
//
// Available adapters:
//   - PrometheusAdapter:      Prometheus HTTP API (/api/v1/query_range)
//   - VictoriaMetricsAdapter: VictoriaMetrics Prometheus-compatible API
//   - HTTPAdapter:            any REST API with JSON responses
//
// Adapters only fetch and shape data. Caching, windowing and the source
// contract live in package sources.
package adapters

import (
	"context"
	"time"

	"github.com/HatiCode/trendlens/pkg/series"
)

// Query is one range request against a backend.
type Query struct {
	// Expr is the backend-specific expression (PromQL, MetricsQL, or a
	// value substituted into HTTP templates as {{.Query}}).
	Expr string
	// Start is inclusive, End exclusive.
	Start time.Time
	End   time.Time
	// StepSeconds is the resolution; adapters default to 60 when <= 0.
	StepSeconds int
}

func (q Query) step() int {
	if q.StepSeconds <= 0 {
		return 60
	}
	return q.StepSeconds
}

// Adapter is implemented by every remote backend.
//
// Collect is synchronous and must respect context cancellation and deadlines.
type Adapter interface {
	Collect(ctx context.Context, q Query) (*series.TimestampSeries, error)

	// Name returns a short identifier, e.g. "prometheus" or "http".
	Name() string
}

// AlignTimestamp truncates ts to a multiple of stepSec.
func AlignTimestamp(ts time.Time, stepSec int) time.Time {
	return ts.Truncate(time.Duration(stepSec) * time.Second)
}
