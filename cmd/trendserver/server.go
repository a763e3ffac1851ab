package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gosimple/slug"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/HatiCode/trendlens/cmd/trendserver/config"
	"github.com/HatiCode/trendlens/cmd/trendserver/metrics"
	"github.com/HatiCode/trendlens/pkg/adapters"
	"github.com/HatiCode/trendlens/pkg/httpx"
	"github.com/HatiCode/trendlens/pkg/sources"
	"github.com/HatiCode/trendlens/pkg/storage"
	"github.com/HatiCode/trendlens/pkg/trendconf"
	"github.com/HatiCode/trendlens/pkg/units"
	"github.com/HatiCode/trendlens/pkg/workspace"
)

// remoteTimeout bounds a single backend query.
const remoteTimeout = 30 * time.Second

// loadUnits returns the unit catalog and conversion rules, falling back to
// the embedded tables when no file is configured.
func loadUnits(cfg *config.Config) (*units.Catalog, *units.Rules, error) {
	catalog := units.DefaultCatalog()
	rules := units.DefaultRules()
	var err error
	if cfg.UnitsFile != "" {
		if catalog, err = units.LoadCatalogFile(cfg.UnitsFile); err != nil {
			return nil, nil, fmt.Errorf("load units: %w", err)
		}
	}
	if cfg.RulesFile != "" {
		if rules, err = units.LoadRulesFile(cfg.RulesFile); err != nil {
			return nil, nil, fmt.Errorf("load rules: %w", err)
		}
	}
	return catalog, rules, nil
}

// loadTrendConfig loads TREND_CONFIG_DIR. A missing directory yields an
// empty configuration.
func loadTrendConfig(cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) *trendconf.Config {
	if cfg.TrendConfigDir == "" {
		return trendconf.NewConfig()
	}
	conf, err := trendconf.LoadDir(cfg.TrendConfigDir, logger)
	if err != nil {
		logger.Warn("trend config directory unavailable, continuing without transforms", "dir", cfg.TrendConfigDir, "error", err)
		return trendconf.NewConfig()
	}
	m.SetDiscardedConfigs(len(conf.Diagnostics()))
	logger.Info("trend config loaded", "files", len(conf.Files()), "discarded", len(conf.Diagnostics()))
	return conf
}

// newCache builds the remote series cache. The returned func releases it.
func newCache(cfg *config.Config, m *metrics.Metrics) (storage.Store, func() error, error) {
	switch cfg.Storage {
	case "redis":
		rs, err := storage.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CacheTTL)
		if err != nil {
			return nil, nil, err
		}
		return m.InstrumentStore(rs), rs.Close, nil
	default:
		if cfg.CacheTTL <= 0 {
			return m.InstrumentStore(storage.NewMemoryStore()), func() error { return nil }, nil
		}
		ms := storage.NewMemoryStoreWithTTL(cfg.CacheTTL, cfg.CacheTTL/2)
		return m.InstrumentStore(ms), func() error { ms.Stop(); return nil }, nil
	}
}

// sourceName derives a URL-safe workspace name from a path.
func sourceName(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || root == "" {
		rel = filepath.Base(path)
	}
	return slug.Make(filepath.ToSlash(rel))
}

// loadSources registers every configured source with ws. Individual
// failures are logged and skipped; the error reports only fatal setup
// problems.
func loadSources(ctx context.Context, cfg *config.Config, ws *workspace.Workspace, cache storage.Store, m *metrics.Metrics, logger *slog.Logger) error {
	opts := []sources.Option{
		sources.WithRetry(sources.RetryPolicy{Attempts: cfg.RetryAttempts, Delay: cfg.RetryDelay}),
		sources.WithLogger(logger),
		sources.WithObserver(m),
	}

	register := func(name string, src sources.Source) {
		if err := ws.Add(name, src); err != nil {
			logger.Warn("source skipped", "name", name, "error", err)
			return
		}
		kind := src.Kind(ctx)
		m.AddSource(kind.String())
		logger.Info("source registered", "name", name, "kind", kind.String(), "header", src.Header())
	}

	if cfg.DataDir != "" {
		files, err := sources.Discover(cfg.DataDir)
		if err != nil {
			logger.Warn("data directory unavailable", "dir", cfg.DataDir, "error", err)
		}
		for _, path := range files {
			register(sourceName(cfg.DataDir, path), sources.NewDelimited(path, opts...))
		}
	}

	for _, dir := range cfg.EnergyDBs {
		src, err := sources.Open(dir, opts...)
		if err != nil {
			logger.Warn("energy model skipped", "dir", dir, "error", err)
			continue
		}
		register(sourceName("", dir), src)
	}

	if cfg.Remote.Enabled() {
		remote, err := newRemote(cfg.Remote, cache, m, logger)
		if err != nil {
			return fmt.Errorf("remote source: %w", err)
		}
		register(slug.Make(cfg.Remote.Name), remote)
	}

	if len(ws.Names()) == 0 {
		return errors.New("no sources could be registered")
	}
	return nil
}

func newRemote(rc config.Remote, cache storage.Store, m *metrics.Metrics, logger *slog.Logger) (*sources.Remote, error) {
	ad, err := adapters.New(rc.Kind, rc.Adapter)
	if err != nil {
		return nil, err
	}
	cli, err := httpx.NewClient(rc.TLS, remoteTimeout)
	if err != nil {
		return nil, err
	}
	setHTTPClient(ad, cli)

	return &sources.Remote{
		Name:     rc.Name,
		Adapter:  ad,
		Queries:  rc.Trends,
		Lookback: rc.Lookback,
		Step:     rc.Step,
		Cache:    cache,
		Logger:   logger.With("source", rc.Name, "adapter", ad.Name()),
		Observer: m,
	}, nil
}

func setHTTPClient(ad adapters.Adapter, cli *http.Client) {
	switch a := ad.(type) {
	case *adapters.PrometheusAdapter:
		a.HTTPClient = cli
	case *adapters.VictoriaMetricsAdapter:
		a.HTTPClient = cli
	case *adapters.HTTPAdapter:
		a.HTTPClient = cli
	}
}

// startGRPC serves the health service and reflection on addr and returns
// the bound address.
func startGRPC(addr string, hs *health.Server, logger *slog.Logger) (*grpc.Server, net.Addr, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	srv := grpc.NewServer()
	grpc_health_v1.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	go func() {
		logger.Info("grpc health server listening", "address", lis.Addr().String())
		if err := srv.Serve(lis); err != nil {
			logger.Error("grpc server failed", "error", err)
		}
	}()
	return srv, lis.Addr(), nil
}
