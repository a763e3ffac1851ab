package router

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/HatiCode/trendlens/pkg/sources"
	"github.com/HatiCode/trendlens/pkg/trendconf"
	"github.com/HatiCode/trendlens/pkg/workspace"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

const siteCSV = "Time,Power [W],OAT (F)\n" +
	"2024-01-01 00:00,1000,50\n" +
	"2024-01-01 01:00,2000,51\n" +
	"2024-01-01 02:00,3000,52\n"

type recordingObserver struct {
	mu     sync.Mutex
	routes []string
}

func (o *recordingObserver) ObserveQuery(route string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.routes = append(o.routes, route)
}

func newHandler(t *testing.T, obs QueryObserver, ready func() error) http.Handler {
	t.Helper()
	path := filepath.Join(t.TempDir(), "site.csv")
	if err := os.WriteFile(path, []byte(siteCSV), 0o644); err != nil {
		t.Fatal(err)
	}
	conf := trendconf.NewConfig()
	if errs := conf.Add("site.tcfg", `type "csv" name "Power [W]" convert "W" "kW"`); len(errs) > 0 {
		t.Fatalf("config errors: %v", errs)
	}
	ws := workspace.New(nil, nil, conf, quiet)
	if err := ws.Add("site", sources.NewDelimited(path, sources.WithLogger(quiet))); err != nil {
		t.Fatal(err)
	}
	return SetupRoutes(ws, obs, ready, quiet)
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealthEndpoint(t *testing.T) {
	var notReady error = errors.New("loading sources")
	h := newHandler(t, nil, func() error { return notReady })

	if w := get(t, h, "/healthz"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("status before ready = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}

	notReady = nil
	w := get(t, h, "/healthz")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if body := w.Body.String(); body != "OK" {
		t.Errorf("body = %q, want %q", body, "OK")
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header should be set")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHandler(t, nil, nil)
	w := get(t, h, "/metrics")
	if w.Code != http.StatusOK {
		t.Errorf("status code = %d, want %d", w.Code, http.StatusOK)
	}
	if w.Header().Get("Content-Type") == "" {
		t.Error("Content-Type header should be set for metrics endpoint")
	}
}

func TestListSources(t *testing.T) {
	h := newHandler(t, nil, nil)
	w := get(t, h, "/sources")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var got []map[string]any
	decode(t, w, &got)
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0]["name"] != "site" || got[0]["shortName"] != "site.csv" || got[0]["kind"] != "TimeSeries" {
		t.Errorf("unexpected source: %v", got[0])
	}
}

func TestListTrends(t *testing.T) {
	h := newHandler(t, nil, nil)

	w := get(t, h, "/sources/site/trends")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var got []workspace.TrendInfo
	decode(t, w, &got)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Unit != "W" || got[0].Target != "kW" {
		t.Errorf("Power trend = %+v, want unit W target kW", got[0])
	}
	if got[1].Unit != "F" {
		t.Errorf("OAT unit = %q, want F", got[1].Unit)
	}

	if w := get(t, h, "/sources/missing/trends"); w.Code != http.StatusNotFound {
		t.Errorf("unknown source status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestGetSeries(t *testing.T) {
	obs := &recordingObserver{}
	h := newHandler(t, obs, nil)

	q := url.Values{}
	q.Add("trend", "Power [W]")
	q.Add("trend", "OAT (F)")
	q.Set("start", "2024-01-01T01:00:00Z")

	w := get(t, h, "/sources/site/series?"+q.Encode())
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
	var got []workspace.SeriesView
	decode(t, w, &got)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Unit != "kW" || len(got[0].Values) != 2 || got[0].Values[0] != 2 || got[0].Values[1] != 3 {
		t.Errorf("Power series = %+v, want [2 3] kW", got[0])
	}
	if len(got[1].Values) != 2 || got[1].Values[0] != 51 {
		t.Errorf("OAT series = %+v", got[1])
	}
	if len(obs.routes) != 1 || obs.routes[0] != "series" {
		t.Errorf("observed routes = %v, want [series]", obs.routes)
	}
}

func TestGetSeries_BadRequests(t *testing.T) {
	h := newHandler(t, nil, nil)

	tests := []struct {
		name       string
		target     string
		wantStatus int
	}{
		{name: "no trend", target: "/sources/site/series", wantStatus: http.StatusBadRequest},
		{name: "bad start", target: "/sources/site/series?trend=x&start=yesterday", wantStatus: http.StatusBadRequest},
		{name: "bad end", target: "/sources/site/series?trend=x&end=soon", wantStatus: http.StatusBadRequest},
		{name: "inverted window", target: "/sources/site/series?trend=x&start=2024-01-02&end=2024-01-01", wantStatus: http.StatusBadRequest},
		{name: "unknown source", target: "/sources/nope/series?trend=x", wantStatus: http.StatusNotFound},
		{name: "unknown trend", target: "/sources/site/series?trend=x", wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := get(t, h, tt.target); w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestGetUnit(t *testing.T) {
	h := newHandler(t, nil, nil)

	w := get(t, h, "/units?trend="+url.QueryEscape("Facility Power [W]"))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var got UnitResponse
	decode(t, w, &got)
	if got.Unit != "W" || got.Target != "kW" {
		t.Errorf("unit response = %+v, want W -> kW", got)
	}

	if w := get(t, h, "/units"); w.Code != http.StatusBadRequest {
		t.Errorf("missing trend status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}
