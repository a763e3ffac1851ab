// Package cli implements the trendctl command tree.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/HatiCode/trendlens/pkg/sources"
	"github.com/HatiCode/trendlens/pkg/trendconf"
	"github.com/HatiCode/trendlens/pkg/units"
	"github.com/HatiCode/trendlens/pkg/workspace"
)

type app struct {
	cfgFile string
	output  string
	verbose bool

	settings *Settings
	logger   *slog.Logger
}

// NewRootCmd builds the trendctl command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "trendctl",
		Short:         "Inspect trend files, unit labels and trend configuration",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&a.cfgFile, "config", "", "config file (default is ~/.trendlens/config.yaml)")
	f.StringVarP(&a.output, "output", "o", "", "output format: table, json or yaml (overrides config)")
	f.BoolVarP(&a.verbose, "verbose", "v", false, "log source diagnostics to stderr")

	root.AddCommand(a.trendsCmd(), a.seriesCmd(), a.unitCmd(), a.configCmd(), a.importCmd())
	return root
}

// Execute runs trendctl and exits non-zero on error.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func (a *app) load(cmd *cobra.Command) error {
	s, err := LoadSettings(a.cfgFile)
	if err != nil {
		return err
	}
	a.settings = s

	if !cmd.Flags().Changed("output") {
		a.output = s.Output
	}
	if !validOutput(a.output) {
		return fmt.Errorf("invalid output format %q (use table, json or yaml)", a.output)
	}

	level := parseLevel(s.LogLevel)
	if a.verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	return nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

func (a *app) sourceOptions() []sources.Option {
	return []sources.Option{
		sources.WithRetry(sources.RetryPolicy{
			Attempts: a.settings.RetryAttempts,
			Delay:    time.Duration(a.settings.RetryDelayMs) * time.Millisecond,
		}),
		sources.WithLogger(a.logger),
	}
}

func (a *app) catalog() (*units.Catalog, *units.Rules, error) {
	catalog, rules := units.DefaultCatalog(), units.DefaultRules()
	var err error
	if a.settings.UnitsFile != "" {
		if catalog, err = units.LoadCatalogFile(a.settings.UnitsFile); err != nil {
			return nil, nil, err
		}
	}
	if a.settings.RulesFile != "" {
		if rules, err = units.LoadRulesFile(a.settings.RulesFile); err != nil {
			return nil, nil, err
		}
	}
	return catalog, rules, nil
}

// workspace opens path as the single source of a fresh workspace and
// returns the name it was registered under.
func (a *app) workspace(path string) (*workspace.Workspace, string, error) {
	catalog, rules, err := a.catalog()
	if err != nil {
		return nil, "", err
	}
	conf := trendconf.NewConfig()
	if dir := a.settings.TrendConfigDir; dir != "" {
		if conf, err = trendconf.LoadDir(dir, a.logger); err != nil {
			return nil, "", err
		}
	}

	src, err := sources.Open(path, a.sourceOptions()...)
	if err != nil {
		return nil, "", err
	}
	ws := workspace.New(catalog, rules, conf, a.logger)
	name := src.ShortName()
	if err := ws.Add(name, src); err != nil {
		return nil, "", err
	}
	return ws, name, nil
}

func out(cmd *cobra.Command) io.Writer { return cmd.OutOrStdout() }
