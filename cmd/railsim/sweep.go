package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/railsim/internal/experiment"
	"github.com/san-kum/railsim/internal/optim"
)

var (
	sweepParams   []string
	sweepMetric   string
	sweepParallel bool
)

func newSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep [consist|loco|train]",
		Short: "run a scenario over a parameter grid and rank the results",
		Args:  cobra.ExactArgs(1),
		RunE:  runSweep,
	}
	addScenarioFlags(cmd)
	cmd.Flags().StringArrayVar(&sweepParams, "param", nil,
		fmt.Sprintf("name=v1,v2,... (repeatable; names: %s)", strings.Join(optim.ParamNames(), ", ")))
	cmd.Flags().StringVar(&sweepMetric, "metric", "energy_fuel", "metric to minimize")
	cmd.Flags().BoolVar(&sweepParallel, "parallel-points", false, "evaluate grid points concurrently")
	return cmd
}

// parseParams turns name=v1,v2 arguments into grid axes.
func parseParams(args []string) ([]string, [][]float64, error) {
	names := make([]string, len(args))
	ranges := make([][]float64, len(args))
	for i, arg := range args {
		name, vals, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, nil, fmt.Errorf("param %q: want name=v1,v2,...", arg)
		}
		names[i] = strings.TrimSpace(name)
		for _, s := range strings.Split(vals, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, nil, fmt.Errorf("param %s: %w", name, err)
			}
			ranges[i] = append(ranges[i], v)
		}
	}
	return names, ranges, nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args[0])
	if err != nil {
		return err
	}
	names, ranges, err := parseParams(sweepParams)
	if err != nil {
		return err
	}
	g, err := optim.NewGridSearch(names, ranges, sweepParallel)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("sweep", "sim", cfg.Sim, "points", len(g.Points()), "metric", sweepMetric)
	points, err := g.Search(cmd.Context(), cfg, experiment.NewRegistry(), sweepMetric)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "RANK\tPARAMS\t%s\tSTATUS\n", strings.ToUpper(sweepMetric))
	for i, p := range points {
		status, value := "ok", fmt.Sprintf("%.6g", p.Value)
		if p.Err != nil {
			status, value = p.Err.Error(), "-"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", i+1, formatParams(p.Params), value, status)
	}
	return w.Flush()
}

func formatParams(p map[string]float64) string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%g", k, p[k])
	}
	return strings.Join(parts, " ")
}
