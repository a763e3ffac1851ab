// Package router configures the trendserver HTTP API.
//
// Routes:
//   - GET /healthz - 200 once sources are loaded, 503 before
//   - GET /metrics - Prometheus metrics
//   - GET /sources - registered sources
//   - GET /sources/{name}/trends - trends with display names and units
//   - GET /sources/{name}/series?trend=..&start=..&end=.. - windowed series
//   - GET /units?trend=.. - implied unit and conversion target of a trend name
//
// start and end accept RFC3339 or any layout the delimited source reads.
// A missing bound leaves that side of the window open.
package router

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/HatiCode/trendlens/pkg/httpx"
	"github.com/HatiCode/trendlens/pkg/sources"
	"github.com/HatiCode/trendlens/pkg/workspace"
)

// Workspace is the query surface the routes serve.
type Workspace interface {
	Sources(ctx context.Context) []workspace.SourceInfo
	Describe(ctx context.Context, name string) ([]workspace.TrendInfo, error)
	Series(ctx context.Context, name string, trends []string, start, end time.Time) ([]workspace.SeriesView, error)
	UnitInfo(trend string) (unit, target string)
}

// QueryObserver records per-route latency. *metrics.Metrics satisfies it.
type QueryObserver interface {
	ObserveQuery(route string, d time.Duration)
}

// UnitResponse is the body of GET /units.
type UnitResponse struct {
	Trend  string `json:"trend"`
	Unit   string `json:"unit"`
	Target string `json:"target,omitempty"`
}

type handlers struct {
	ws     Workspace
	obs    QueryObserver
	logger *slog.Logger
}

// SetupRoutes builds the API handler. ready gates /healthz; obs may be nil.
func SetupRoutes(ws Workspace, obs QueryObserver, ready func() error, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &handlers{ws: ws, obs: obs, logger: logger}

	mux := http.NewServeMux()
	mux.Handle("GET /healthz", httpx.HealthHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /sources", h.timed("sources", h.listSources))
	mux.HandleFunc("GET /sources/{name}/trends", h.timed("trends", h.listTrends))
	mux.HandleFunc("GET /sources/{name}/series", h.timed("series", h.getSeries))
	mux.HandleFunc("GET /units", h.timed("units", h.getUnit))

	return httpx.Wrap(mux, logger)
}

func (h *handlers) timed(route string, fn http.HandlerFunc) http.HandlerFunc {
	if h.obs == nil {
		return fn
	}
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		fn(w, r)
		h.obs.ObserveQuery(route, time.Since(start))
	}
}

func (h *handlers) listSources(w http.ResponseWriter, r *http.Request) {
	h.write(w, r, h.ws.Sources(r.Context()))
}

func (h *handlers) listTrends(w http.ResponseWriter, r *http.Request) {
	infos, err := h.ws.Describe(r.Context(), r.PathValue("name"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.write(w, r, infos)
}

func (h *handlers) getSeries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	trends := q["trend"]
	if len(trends) == 0 {
		httpx.WriteErrorMessage(w, http.StatusBadRequest, "at least one trend parameter required")
		return
	}
	start, err := parseBound(q.Get("start"))
	if err != nil {
		httpx.WriteErrorMessage(w, http.StatusBadRequest, "invalid start: "+err.Error())
		return
	}
	end, err := parseBound(q.Get("end"))
	if err != nil {
		httpx.WriteErrorMessage(w, http.StatusBadRequest, "invalid end: "+err.Error())
		return
	}
	if !start.IsZero() && !end.IsZero() && !start.Before(end) {
		httpx.WriteErrorMessage(w, http.StatusBadRequest, "start must be before end")
		return
	}

	views, err := h.ws.Series(r.Context(), r.PathValue("name"), trends, start, end)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.write(w, r, views)
}

func (h *handlers) getUnit(w http.ResponseWriter, r *http.Request) {
	trend := r.URL.Query().Get("trend")
	if trend == "" {
		httpx.WriteErrorMessage(w, http.StatusBadRequest, "trend parameter required")
		return
	}
	unit, target := h.ws.UnitInfo(trend)
	h.write(w, r, UnitResponse{Trend: trend, Unit: unit, Target: target})
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, workspace.ErrUnknownSource) {
		httpx.WriteErrorMessage(w, http.StatusNotFound, err.Error())
		return
	}
	h.logger.Error("query failed", "path", r.URL.Path, "request_id", httpx.RequestID(r.Context()), "error", err)
	httpx.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
}

func (h *handlers) write(w http.ResponseWriter, r *http.Request, v any) {
	if err := httpx.WriteJSON(w, http.StatusOK, v); err != nil {
		h.logger.Error("failed to write JSON response", "path", r.URL.Path, "error", err)
	}
}

var errBadTime = errors.New("expected RFC3339 or a date such as 2006-01-02 15:04")

func parseBound(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, ok := sources.ParseTime(s); ok {
		return t, nil
	}
	return time.Time{}, errBadTime
}
