//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/HatiCode/trendlens/cmd/trendserver/metrics"
	"github.com/HatiCode/trendlens/cmd/trendserver/router"
	"github.com/HatiCode/trendlens/pkg/adapters"
	"github.com/HatiCode/trendlens/pkg/sources"
	"github.com/HatiCode/trendlens/pkg/storage"
	"github.com/HatiCode/trendlens/pkg/workspace"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakePrometheus answers query_range with one point per step in
// [start, end], valued by minute of hour.
func fakePrometheus(t *testing.T, calls *atomic.Int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/query_range" {
			http.NotFound(w, r)
			return
		}
		calls.Add(1)
		start, _ := strconv.ParseInt(r.URL.Query().Get("start"), 10, 64)
		end, _ := strconv.ParseInt(r.URL.Query().Get("end"), 10, 64)
		step, _ := strconv.ParseInt(r.URL.Query().Get("step"), 10, 64)

		var points []string
		for ts := start; ts <= end; ts += step {
			points = append(points, fmt.Sprintf(`[%d,"%d"]`, ts, time.Unix(ts, 0).UTC().Minute()))
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"success","data":{"resultType":"matrix","result":[{"metric":{},"values":[%s]}]}}`,
			strings.Join(points, ","))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func redisAddr(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	c, err := redis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(c); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})
	endpoint, err := c.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("failed to get redis endpoint: %v", err)
	}
	return strings.TrimPrefix(endpoint, "redis://")
}

// TestRemoteSeriesThroughRedisCache drives the HTTP API over a remote
// Prometheus source whose windows are cached in a real Redis.
func TestRemoteSeriesThroughRedisCache(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	var calls atomic.Int64
	prom := fakePrometheus(t, &calls)

	rs, err := storage.NewRedisStore(redisAddr(t), "", 0, time.Minute)
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	defer rs.Close()

	m := metrics.New(prometheus.NewRegistry())
	ws := workspace.New(nil, nil, nil, quiet)
	remote := &sources.Remote{
		Name:     "bms",
		Adapter:  &adapters.PrometheusAdapter{ServerURL: prom.URL},
		Queries:  map[string]string{"Chiller Power [W]": "chiller_power_watts"},
		Lookback: time.Hour,
		Step:     time.Minute,
		Cache:    m.InstrumentStore(rs),
		Logger:   quiet,
		Observer: m,
	}
	if err := ws.Add("bms", remote); err != nil {
		t.Fatal(err)
	}

	api := httptest.NewServer(router.SetupRoutes(ws, m, nil, quiet))
	defer api.Close()

	q := url.Values{}
	q.Set("trend", "Chiller Power [W]")
	q.Set("start", "2024-05-01T10:00:00Z")
	q.Set("end", "2024-05-01T10:05:00Z")
	target := api.URL + "/sources/bms/series?" + q.Encode()

	var first, second []workspace.SeriesView
	for _, dst := range []*[]workspace.SeriesView{&first, &second} {
		resp, err := http.Get(target)
		if err != nil {
			t.Fatalf("GET series: %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			t.Fatalf("status = %d: %s", resp.StatusCode, body)
		}
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			t.Fatalf("decode: %v", err)
		}
		resp.Body.Close()
	}

	if len(first) != 1 || len(first[0].Values) != 5 {
		t.Fatalf("first response = %+v, want 5 points", first)
	}
	if first[0].Values[0] != 0 || first[0].Values[4] != 4 {
		t.Errorf("values = %v, want minutes 0..4", first[0].Values)
	}
	if first[0].Unit != "W" {
		t.Errorf("unit = %q, want W", first[0].Unit)
	}
	if fmt.Sprint(first[0].Values) != fmt.Sprint(second[0].Values) {
		t.Errorf("cached response differs: %v vs %v", first[0].Values, second[0].Values)
	}

	if got := calls.Load(); got != 1 {
		t.Errorf("backend calls = %d, want 1 (second request served from redis)", got)
	}
	if got := testutil.ToFloat64(m.CacheRequests.WithLabelValues("hit")); got != 1 {
		t.Errorf("cache hits = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.SourceReads.WithLabelValues("bms")); got != 1 {
		t.Errorf("source reads = %v, want 1", got)
	}
}
