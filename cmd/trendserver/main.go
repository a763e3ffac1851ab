// Command trendserver serves a trendlens workspace over HTTP.
//
// At startup it loads the unit tables and trend configuration, then
// registers every delimited file under DATA_DIR, every energy-model
// database in ENERGY_DBS and, when REMOTE_KIND is set, one remote
// time-series source. /healthz and the gRPC health service report ready
// once sources are registered.
//
// Usage:
//
//	trendserver \
//	  -data-dir=/var/lib/trendlens/data \
//	  -trend-config-dir=/etc/trendlens/conf.d \
//	  -remote-kind=prometheus \
//	  -remote-trends='{"OAT [C]":"outdoor_air_temp"}'
//
// Environment variables:
//
//	LISTEN, GRPC_LISTEN      - HTTP and gRPC health listen addresses
//	DATA_DIR, ENERGY_DBS     - local sources
//	TREND_CONFIG_DIR         - trend configuration files (*.tcfg)
//	UNITS_FILE, RULES_FILE   - unit tables (default: built-in)
//	RETRY_ATTEMPTS, RETRY_DELAY
//	STORAGE, REDIS_*, CACHE_TTL - remote series cache
//	REMOTE_KIND, REMOTE_NAME, REMOTE_LOOKBACK, REMOTE_STEP, REMOTE_TRENDS
//	REMOTE_<SETTING>         - adapter settings, e.g. REMOTE_URL, REMOTE_VALUE_PATH
//	LOG_LEVEL, LOG_FORMAT
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/HatiCode/trendlens/cmd/trendserver/config"
	"github.com/HatiCode/trendlens/cmd/trendserver/logger"
	"github.com/HatiCode/trendlens/cmd/trendserver/metrics"
	"github.com/HatiCode/trendlens/cmd/trendserver/router"
	"github.com/HatiCode/trendlens/pkg/httpx"
	"github.com/HatiCode/trendlens/pkg/workspace"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	cfg := config.ParseFlags()

	log := logger.New(cfg)
	slog.SetDefault(log)
	m := metrics.New(prometheus.DefaultRegisterer)

	log.Info("starting trendserver",
		"version", version,
		"listen", cfg.Listen,
		"data_dir", cfg.DataDir,
		"remote", cfg.Remote.Kind,
	)

	catalog, rules, err := loadUnits(cfg)
	if err != nil {
		log.Error("failed to load unit tables", "error", err)
		os.Exit(1)
	}
	conf := loadTrendConfig(cfg, m, log)

	cache, closeCache, err := newCache(cfg, m)
	if err != nil {
		log.Error("failed to create cache", "storage", cfg.Storage, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := closeCache(); err != nil {
			log.Error("failed to close cache", "error", err)
		}
	}()

	ws := workspace.New(catalog, rules, conf, log)

	var ready atomic.Bool
	readyCheck := func() error {
		if !ready.Load() {
			return errors.New("sources not loaded")
		}
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	var grpcServer *grpc.Server
	if cfg.GRPCListen != "" {
		grpcServer, _, err = startGRPC(cfg.GRPCListen, healthServer, log)
		if err != nil {
			log.Error("failed to start grpc server", "address", cfg.GRPCListen, "error", err)
			os.Exit(1)
		}
	}

	httpServer := httpx.NewServer(cfg.Listen, router.SetupRoutes(ws, m, readyCheck, log), log)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- httpServer.Start(cfg.TLS)
	}()

	if err := loadSources(ctx, cfg, ws, cache, m, log); err != nil {
		log.Error("failed to load sources", "error", err)
		os.Exit(1)
	}
	ready.Store(true)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	log.Info("workspace ready", "sources", len(ws.Names()))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig)
	case err := <-serverErr:
		if err != nil {
			log.Error("server failed", "error", err)
		}
	}

	log.Info("shutting down")
	cancel()
	healthServer.Shutdown()
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	if err := httpServer.Stop(10 * time.Second); err != nil {
		log.Error("server shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
