package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/HatiCode/trendlens/pkg/series"
)

// PrometheusAdapter evaluates range queries against the Prometheus HTTP API.
// If a query returns several series, values sharing a timestamp are SUMMED.
type PrometheusAdapter struct {
	// ServerURL is the base URL, e.g. http://prometheus.monitoring.svc:9090
	ServerURL string
	// HTTPClient is optional; if nil a default client with timeout is used.
	HTTPClient *http.Client
}

func (p *PrometheusAdapter) Name() string { return "prometheus" }

// Collect implements Adapter.
func (p *PrometheusAdapter) Collect(ctx context.Context, q Query) (*series.TimestampSeries, error) {
	if p.ServerURL == "" {
		return nil, errors.New("prometheus adapter: ServerURL is required")
	}
	return queryRange(ctx, p.HTTPClient, p.ServerURL, "prometheus", q)
}

// queryRange issues /api/v1/query_range and aggregates the matrix result.
// Shared by the Prometheus and VictoriaMetrics adapters.
func queryRange(ctx context.Context, cli *http.Client, serverURL, backend string, q Query) (*series.TimestampSeries, error) {
	if q.Expr == "" {
		return nil, fmt.Errorf("%s: empty query expression", backend)
	}
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ServerURL: %w", err)
	}
	u.Path = "/api/v1/query_range"

	params := u.Query()
	params.Set("query", q.Expr)
	params.Set("start", strconv.FormatInt(q.Start.Unix(), 10))
	// query_range is inclusive of end; step back one second to keep [start, end).
	params.Set("end", strconv.FormatInt(q.End.Add(-time.Second).Unix(), 10))
	params.Set("step", strconv.Itoa(q.step()))
	u.RawQuery = params.Encode()

	if cli == nil {
		cli = &http.Client{Timeout: 10 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := cli.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: status %d", backend, resp.StatusCode)
	}

	var pr PrometheusRangeResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", backend, err)
	}
	if pr.Status != "success" {
		return nil, fmt.Errorf("%s status: %s", backend, pr.Status)
	}

	s, err := AggregateRangeResult(pr.Data.Result)
	if err != nil {
		return nil, err
	}
	s.Trend = q.Expr
	return s, nil
}

// PrometheusRangeResponse represents the response from Prometheus (and compatible systems).
type PrometheusRangeResponse struct {
	Status string              `json:"status"`
	Data   PrometheusRangeData `json:"data"`
}

// PrometheusRangeData contains the result data from a range query.
type PrometheusRangeData struct {
	ResultType string                 `json:"resultType"`
	Result     []PrometheusRangeSerie `json:"result"`
}

// PrometheusRangeSerie represents a single time series in the result.
type PrometheusRangeSerie struct {
	Metric map[string]string `json:"metric"`
	// Values is an array of [ <unix_time_float>, "<value_string>" ]
	Values [][]any `json:"values"`
}

// AggregateRangeResult sums all series per timestamp and returns one
// series sorted by time.
func AggregateRangeResult(result []PrometheusRangeSerie) (*series.TimestampSeries, error) {
	acc := make(map[int64]float64)
	for _, s := range result {
		for _, pair := range s.Values {
			if len(pair) != 2 {
				return nil, fmt.Errorf("invalid value pair length: %d", len(pair))
			}

			var tsSec int64
			switch v := pair[0].(type) {
			case float64:
				tsSec = int64(v)
			case json.Number:
				f, _ := v.Float64()
				tsSec = int64(f)
			default:
				return nil, fmt.Errorf("unexpected timestamp type %T", v)
			}

			var val float64
			switch vv := pair[1].(type) {
			case string:
				f, err := strconv.ParseFloat(vv, 64)
				if err != nil {
					return nil, fmt.Errorf("parse value: %w", err)
				}
				val = f
			case float64:
				val = vv
			case json.Number:
				f, _ := vv.Float64()
				val = f
			default:
				return nil, fmt.Errorf("unexpected value type %T", vv)
			}
			acc[tsSec] += val
		}
	}

	keys := make([]int64, 0, len(acc))
	for ts := range acc {
		keys = append(keys, ts)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	out := series.Empty("")
	for _, ts := range keys {
		out.Append(time.Unix(ts, 0).UTC(), acc[ts])
	}
	return out, nil
}
