package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/HatiCode/trendlens/pkg/trendconf"
)

type fileDiagnostic struct {
	File   string   `json:"file" yaml:"file"`
	Errors []string `json:"errors" yaml:"errors"`
}

type checkReport struct {
	Dir       string           `json:"dir" yaml:"dir"`
	Loaded    []string         `json:"loaded" yaml:"loaded"`
	Discarded []fileDiagnostic `json:"discarded" yaml:"discarded"`
}

func (a *app) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Check trend configuration or manage trendctl settings",
	}
	cmd.AddCommand(a.configCheckCmd(), a.configShowCmd(), a.configSetCmd())
	return cmd
}

func (a *app) configCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check [dir]",
		Short: "Parse every trend configuration file under dir and report errors",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := a.settings.TrendConfigDir
			if len(args) == 1 {
				dir = args[0]
			}
			if dir == "" {
				return fmt.Errorf("no directory given and trend_config_dir is not set")
			}

			conf, err := trendconf.LoadDir(dir, a.logger)
			if err != nil {
				return err
			}
			rep := checkReport{Dir: dir, Loaded: conf.Files(), Discarded: []fileDiagnostic{}}
			for _, d := range conf.Diagnostics() {
				fd := fileDiagnostic{File: d.File}
				for _, e := range d.Errors {
					fd.Errors = append(fd.Errors, e.Error())
				}
				rep.Discarded = append(rep.Discarded, fd)
			}

			err = a.render(out(cmd), rep, func(w io.Writer) {
				for _, f := range rep.Loaded {
					fmt.Fprintf(w, "ok\t%s\n", f)
				}
				for _, d := range rep.Discarded {
					fmt.Fprintf(w, "discarded\t%s\n", d.File)
					for _, e := range d.Errors {
						fmt.Fprintf(w, "\t  %s\n", e)
					}
				}
			})
			if err != nil {
				return err
			}
			if n := len(rep.Discarded); n > 0 {
				return fmt.Errorf("%d trend configuration file(s) discarded", n)
			}
			return nil
		},
	}
}

func (a *app) configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show effective settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.output == "json" {
				return a.render(out(cmd), a.settings, nil)
			}
			prev := a.output
			a.output = "yaml"
			defer func() { a.output = prev }()
			return a.render(out(cmd), a.settings, nil)
		},
	}
}

func (a *app) configSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a setting and save it to the config file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.settings.Set(args[0], args[1]); err != nil {
				return err
			}
			if err := SaveSettings(a.settings, a.cfgFile); err != nil {
				return err
			}
			fmt.Fprintln(out(cmd), "Saved config")
			return nil
		},
	}
}
