package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/HatiCode/trendlens/pkg/sources"
	"github.com/HatiCode/trendlens/pkg/units"
	"github.com/HatiCode/trendlens/pkg/workspace"
)

type trendsReport struct {
	Source string                `json:"source" yaml:"source"`
	Kind   sources.Kind          `json:"kind" yaml:"kind"`
	Trends []workspace.TrendInfo `json:"trends" yaml:"trends"`
}

func (a *app) trendsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trends <file>",
		Short: "List the trends of a delimited file or energy-model database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, name, err := a.workspace(args[0])
			if err != nil {
				return err
			}
			infos, err := ws.Describe(cmd.Context(), name)
			if err != nil {
				return err
			}
			src, _ := ws.Source(name)
			rep := trendsReport{Source: src.Header(), Kind: src.Kind(cmd.Context()), Trends: infos}

			return a.render(out(cmd), rep, func(w io.Writer) {
				fmt.Fprintf(w, "# %s (%s)\n", src.ShortName(), rep.Kind)
				row(w, "TREND", "DISPLAY NAME", "UNIT", "TARGET")
				for _, t := range infos {
					row(w, t.Name, t.DisplayName, t.Unit, dash(t.Target))
				}
			})
		},
	}
}

func (a *app) seriesCmd() *cobra.Command {
	var start, end string
	cmd := &cobra.Command{
		Use:   "series <file> <trend> [trend...]",
		Short: "Print trend values, optionally limited to [start, end)",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parseFlagTime("start", start)
			if err != nil {
				return err
			}
			to, err := parseFlagTime("end", end)
			if err != nil {
				return err
			}

			ws, name, err := a.workspace(args[0])
			if err != nil {
				return err
			}
			views, err := ws.Series(cmd.Context(), name, args[1:], from, to)
			if err != nil {
				return err
			}

			return a.render(out(cmd), views, func(w io.Writer) {
				row(w, "TREND", "UNIT", "TIME", "VALUE")
				for _, v := range views {
					if len(v.Values) == 0 {
						row(w, v.DisplayName, v.Unit, "-", "(no data)")
						continue
					}
					for i, val := range v.Values {
						ts := "-"
						if i < len(v.Timestamps) {
							ts = v.Timestamps[i].Format(time.RFC3339)
						}
						row(w, v.DisplayName, v.Unit, ts, val)
					}
				}
			})
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "window start (RFC3339 or 2006-01-02 15:04)")
	cmd.Flags().StringVar(&end, "end", "", "window end, exclusive")
	return cmd
}

func parseFlagTime(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, ok := sources.ParseTime(value)
	if !ok {
		return time.Time{}, fmt.Errorf("invalid --%s %q", name, value)
	}
	return t, nil
}

type unitReport struct {
	Trend       string   `json:"trend" yaml:"trend"`
	Unit        string   `json:"unit" yaml:"unit"`
	Type        string   `json:"type,omitempty" yaml:"type,omitempty"`
	Target      string   `json:"target,omitempty" yaml:"target,omitempty"`
	Ratio       string   `json:"ratio,omitempty" yaml:"ratio,omitempty"`
	Convertible []string `json:"convertible,omitempty" yaml:"convertible,omitempty"`
}

func (a *app) unitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unit <trend name>",
		Short: "Show the unit implied by a trend name and its conversion target",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, rules, err := a.catalog()
			if err != nil {
				return err
			}
			rep := unitReport{Trend: strings.Join(args, " ")}
			rep.Unit = units.Label(rep.Trend)
			rep.Target, _ = rules.Resolve(rep.Trend)
			if u, ok := catalog.Lookup(rep.Unit); ok {
				rep.Type = u.Type.Name
				rep.Convertible = catalog.Convertible(rep.Unit)
			}
			if rep.Target != "" {
				if r, err := catalog.Ratio(rep.Unit, rep.Target); err == nil {
					rep.Ratio = r.String()
				}
			}

			return a.render(out(cmd), rep, func(w io.Writer) {
				row(w, "unit:", rep.Unit)
				row(w, "type:", dash(rep.Type))
				row(w, "target:", dash(rep.Target))
				row(w, "ratio:", dash(rep.Ratio))
				row(w, "convertible:", dash(strings.Join(rep.Convertible, ", ")))
			})
		},
	}
}

type importReport struct {
	Source   string `json:"source" yaml:"source"`
	Database string `json:"database" yaml:"database"`
	Trends   int    `json:"trends" yaml:"trends"`
}

func (a *app) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <8760-row file> <database dir>",
		Short: "Convert an hourly annual delimited file into an energy-model database",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := sources.NewDelimited(args[0], a.sourceOptions()...)
			n, err := sources.ImportDelimited(cmd.Context(), src, args[1], a.logger)
			if err != nil {
				return err
			}
			rep := importReport{Source: args[0], Database: args[1], Trends: n}
			return a.render(out(cmd), rep, func(w io.Writer) {
				fmt.Fprintf(w, "Imported %d trends from %s into %s\n", n, args[0], args[1])
			})
		},
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
