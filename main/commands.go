/*
 * Copyright 2025 Ted Dunning
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/api/resource"

	"wmtclk/src/config"
	"wmtclk/src/pll"
	"wmtclk/src/support"
	"wmtclk/src/sweep"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "wmtclk",
		Short: "PLL parameter calculator for VT8500/WM8505/WM8650 clocks",
		Long: `wmtclk finds multiplier and divider settings for the PLLs in the VIA
VT8500, WM8505 and WonderMedia WM8650 system-on-chips, and can sweep a
range of rates to show which ones each algorithm reaches exactly.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.String("config", "", "YAML config file")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.Bool("verbose", false, "debug logging")
	pf.Uint64("parent", pll.ParentRate, "parent oscillator rate in Hz")
	pf.StringSlice("solver", pll.Names(), "solvers to run")

	root.AddCommand(newSolveCmd(), newSweepCmd(), newSolversCmd())
	return root
}

// load reads the configuration for cmd, using every flag visible to it.
func load(cmd *cobra.Command) (*config.Config, *logrus.Logger, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	return cfg, cfg.NewLogger(cmd.ErrOrStderr()), nil
}

func newSolversCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "solvers",
		Short: "List the available solvers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range pll.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

// solution is what `solve` prints for one solver and rate.
type solution struct {
	Solver    string     `yaml:"solver"`
	Requested uint64     `yaml:"requested"`
	Result    pll.Result `yaml:"result"`
	Ratio     string     `yaml:"ratio"`
	Error     string     `yaml:"error,omitempty"`
}

func newSolveCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "solve RATE...",
		Short: "Find PLL parameters for each rate (Hz, or with k/M/G suffix)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load(cmd)
			if err != nil {
				return err
			}
			if format != "text" && format != "yaml" {
				return fmt.Errorf("unknown format %q", format)
			}

			var out []solution
			failed := 0
			for _, arg := range args {
				rate, err := parseRate(arg)
				if err != nil {
					return err
				}
				for _, name := range cfg.Solvers {
					s, err := pll.Lookup(name)
					if err != nil {
						return err
					}
					r, err := s.Solve(rate, cfg.ParentRate)
					n, d := support.Ratio(r.Params)
					sol := solution{Solver: name, Requested: rate, Result: r, Ratio: fmt.Sprintf("%d/%d", n, d)}
					if err != nil {
						if !errors.Is(err, pll.ErrNoValidConfiguration) {
							return err
						}
						failed++
						sol.Error = err.Error()
						logger.WithFields(logrus.Fields{"solver": name, "rate": rate}).Debug(err)
					}
					out = append(out, sol)
				}
			}

			if err := writeSolutions(cmd.OutOrStdout(), format, out); err != nil {
				return err
			}
			if failed == len(out) {
				return errors.New("no exact solution found")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "o", "text", "output format: text or yaml")
	return cmd
}

func writeSolutions(w io.Writer, format string, out []solution) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(out); err != nil {
			return err
		}
		return enc.Close()
	}
	for _, s := range out {
		line := fmt.Sprintf("%-12s %11d Hz  %-11s %-26s %11d Hz  ratio %s",
			s.Solver, s.Requested, s.Result.Status, s.Result.Params, s.Result.Rate, s.Ratio)
		if _, err := fmt.Fprintln(w, strings.TrimRight(line, " ")); err != nil {
			return err
		}
	}
	return nil
}

func newSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run each solver over a range of rates and list the exact ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load(cmd)
			if err != nil {
				return err
			}

			var metrics *sweep.Metrics
			if cfg.Sweep.MetricsFile != "" {
				if metrics, err = sweep.NewMetrics(prometheus.NewRegistry()); err != nil {
					return err
				}
			}

			w := cmd.OutOrStdout()
			for _, name := range cfg.Solvers {
				s, err := pll.Lookup(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s range check...\n", name)
				report, err := sweep.Run(cmd.Context(), s, sweep.Config{
					Start:   cfg.Sweep.Start,
					Limit:   cfg.Sweep.Limit,
					Step:    cfg.Sweep.Step,
					Parent:  cfg.ParentRate,
					Workers: cfg.Sweep.Workers,
				}, sweep.WithLogger(logger), sweep.WithMetrics(metrics))
				if err != nil {
					return err
				}
				if _, err := report.WriteTo(w); err != nil {
					return err
				}
			}

			if metrics != nil {
				if err := metrics.WriteFile(cfg.Sweep.MetricsFile); err != nil {
					return fmt.Errorf("writing metrics: %w", err)
				}
				logger.WithField("path", cfg.Sweep.MetricsFile).Info("metrics written")
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.Uint64("start", 0, "first rate in Hz")
	f.Uint64("limit", 4_000_000_000, "rates stop below this (Hz)")
	f.Uint64("step", 1000, "rate step in Hz")
	f.Int("workers", 0, "parallel workers, 0 for one per CPU")
	f.String("metrics-file", "", "write prometheus metrics to this file")
	return cmd
}

// maxRate keeps MilliValue inside an int64.
var maxRate = resource.NewQuantity(math.MaxInt64/1000, resource.DecimalSI)

// parseRate accepts plain Hz or a quantity suffix, e.g. 300M, 37.5M or 4.1G.
// Parsing is exact decimal, so a rate that isn't a whole number of Hz is
// rejected instead of rounded.
func parseRate(s string) (uint64, error) {
	q, err := resource.ParseQuantity(s)
	if err != nil {
		return 0, fmt.Errorf("bad rate %q: %w", s, err)
	}
	if q.Sign() < 0 {
		return 0, fmt.Errorf("bad rate %q: negative", s)
	}
	if q.Cmp(*maxRate) > 0 {
		return 0, fmt.Errorf("bad rate %q: too large", s)
	}
	if q.MilliValue()%1000 != 0 {
		return 0, fmt.Errorf("rate %q is not a whole number of Hz", s)
	}
	return uint64(q.Value()), nil
}
