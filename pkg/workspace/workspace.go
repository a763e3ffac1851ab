// Package workspace is the query surface a presentation layer talks to. It
// holds named sources and applies trend-config transforms and unit labels on
// the way out.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/HatiCode/trendlens/pkg/sources"
	"github.com/HatiCode/trendlens/pkg/trendconf"
	"github.com/HatiCode/trendlens/pkg/units"
)

var (
	ErrUnknownSource   = errors.New("unknown source")
	ErrDuplicateSource = errors.New("duplicate source name")
)

// SourceInfo summarizes a registered source.
type SourceInfo struct {
	Name      string       `json:"name" yaml:"name"`
	Header    string       `json:"header" yaml:"header"`
	ShortName string       `json:"shortName" yaml:"shortName"`
	Kind      sources.Kind `json:"kind" yaml:"kind"`
}

// TrendInfo describes one trend of a source.
type TrendInfo struct {
	Name        string `json:"name" yaml:"name"`
	DisplayName string `json:"displayName" yaml:"displayName"`
	// Unit is the unit implied by the trend name, or units.NoUnitFound.
	Unit string `json:"unit" yaml:"unit"`
	// Target is the unit the trend should be shown in, if any.
	Target    string `json:"target,omitempty" yaml:"target,omitempty"`
	Transform string `json:"transform,omitempty" yaml:"transform,omitempty"`
}

// SeriesView is a windowed series ready for plotting.
type SeriesView struct {
	Trend       string      `json:"trend" yaml:"trend"`
	DisplayName string      `json:"displayName" yaml:"displayName"`
	Unit        string      `json:"unit" yaml:"unit"`
	Timestamps  []time.Time `json:"timestamps" yaml:"timestamps"`
	Values      []float64   `json:"values" yaml:"values"`
}

// Workspace is safe for concurrent use.
type Workspace struct {
	catalog *units.Catalog
	rules   *units.Rules
	conf    *trendconf.Config
	logger  *slog.Logger

	mu      sync.RWMutex
	sources map[string]sources.Source
}

// New builds a workspace. Nil arguments fall back to the embedded unit
// tables, an empty trend config and slog.Default().
func New(catalog *units.Catalog, rules *units.Rules, conf *trendconf.Config, logger *slog.Logger) *Workspace {
	if catalog == nil {
		catalog = units.DefaultCatalog()
	}
	if rules == nil {
		rules = units.DefaultRules()
	}
	if conf == nil {
		conf = trendconf.NewConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Workspace{
		catalog: catalog,
		rules:   rules,
		conf:    conf,
		logger:  logger,
		sources: make(map[string]sources.Source),
	}
}

// Add registers src under name.
func (w *Workspace) Add(name string, src sources.Source) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, dup := w.sources[name]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateSource, name)
	}
	w.sources[name] = src
	return nil
}

// Names returns the registered source names, sorted.
func (w *Workspace) Names() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]string, 0, len(w.sources))
	for name := range w.sources {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Source returns the source registered under name.
func (w *Workspace) Source(name string) (sources.Source, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	src, ok := w.sources[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, name)
	}
	return src, nil
}

// Sources summarizes every registered source in name order.
func (w *Workspace) Sources(ctx context.Context) []SourceInfo {
	names := w.Names()
	out := make([]SourceInfo, 0, len(names))
	for _, name := range names {
		src, err := w.Source(name)
		if err != nil {
			continue
		}
		out = append(out, SourceInfo{
			Name:      name,
			Header:    src.Header(),
			ShortName: src.ShortName(),
			Kind:      src.Kind(ctx),
		})
	}
	return out
}

// UnitInfo returns the implied unit of a trend name and the rule-based
// conversion target, if any.
func (w *Workspace) UnitInfo(trend string) (unit, target string) {
	target, _ = w.rules.Resolve(trend)
	return units.Label(trend), target
}

func (w *Workspace) transformFor(src sources.Source, trend string) (trendconf.Transform, bool) {
	return w.conf.MatchAny(trend, sources.ConfigKeys(src)...)
}

// Describe lists the trends of a source with display names and units.
func (w *Workspace) Describe(ctx context.Context, name string) ([]TrendInfo, error) {
	src, err := w.Source(name)
	if err != nil {
		return nil, err
	}

	trends := src.Trends(ctx)
	out := make([]TrendInfo, 0, len(trends))
	for _, trend := range trends {
		unit, target := w.UnitInfo(trend)
		info := TrendInfo{Name: trend, DisplayName: trend, Unit: unit, Target: target}
		if t, ok := w.transformFor(src, trend); ok {
			info.DisplayName = trendconf.DisplayName(t, trend)
			info.Transform = t.String()
			if uc, ok := t.(trendconf.UnitConvert); ok {
				info.Target = uc.To
			}
		}
		out = append(out, info)
	}
	return out, nil
}

// Series fetches trends over [start, end) and applies their transforms.
// A zero start or end leaves that side open. Unit conversions that fail are
// logged and the series is returned in its original unit.
func (w *Workspace) Series(ctx context.Context, name string, trends []string, start, end time.Time) ([]SeriesView, error) {
	src, err := w.Source(name)
	if err != nil {
		return nil, err
	}

	fetched := src.Window(ctx, trends, start, end)
	out := make([]SeriesView, 0, len(fetched))
	for i, s := range fetched {
		trend := trends[i]
		view := SeriesView{Trend: trend, DisplayName: trend, Unit: units.Label(trend)}

		if t, ok := w.transformFor(src, trend); ok {
			view.DisplayName = trendconf.DisplayName(t, trend)
			if err := trendconf.ApplySeries(t, s, w.catalog); err != nil {
				w.logger.Warn("unit conversion skipped", "source", name, "trend", trend, "transform", t.String(), "error", err)
			} else if uc, ok := t.(trendconf.UnitConvert); ok {
				view.Unit = uc.To
			}
		}
		view.Timestamps = s.Timestamps
		view.Values = s.Values
		out = append(out, view)
	}
	return out, nil
}
