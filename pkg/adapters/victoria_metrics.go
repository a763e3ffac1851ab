package adapters

import (
	"context"
	"errors"
	"net/http"

	"github.com/HatiCode/trendlens/pkg/series"
)

// VictoriaMetricsAdapter evaluates MetricsQL/PromQL range queries against
// VictoriaMetrics through its Prometheus-compatible API. Multiple result
// series are summed per timestamp.
type VictoriaMetricsAdapter struct {
	// ServerURL is the base URL, e.g. http://victoria-metrics:8428
	ServerURL string
	// HTTPClient is optional; if nil a default client with timeout is used.
	HTTPClient *http.Client
}

func (v *VictoriaMetricsAdapter) Name() string { return "victoria-metrics" }

// Collect implements Adapter.
func (v *VictoriaMetricsAdapter) Collect(ctx context.Context, q Query) (*series.TimestampSeries, error) {
	if v.ServerURL == "" {
		return nil, errors.New("victoria metrics adapter: ServerURL is required")
	}
	return queryRange(ctx, v.HTTPClient, v.ServerURL, "victoria-metrics", q)
}
