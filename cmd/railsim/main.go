package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/san-kum/railsim/internal/config"
	"github.com/san-kum/railsim/internal/logging"
)

var (
	dataDir  string
	logLevel string
	logJSON  bool
	// scenario
	configFile   string
	preset       string
	locos        []string
	control      string
	noAssert     bool
	saveInterval int
	powerTrace   string
	speedTrace   string
	linkPath     string
	network      string
	parallel     bool
	trainMass    float64
	trainSpeed   float64
	// run
	trim       bool
	noSave     bool
	dumpConfig string
	// output
	fields    []string
	width     int
	height    int
	outPath   string
	format    string
	simFilter string
	best      string
	limit     int
)

// main registers the commands and flags and executes the root command. It exits with
// status 1 if the command returns an error.
func main() {
	rootCmd := &cobra.Command{
		Use:           "railsim",
		Short:         "freight consist energy simulation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", config.DefaultOutputDir, "run output directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", config.DefaultLogLevel, "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "log as JSON")

	runCmd := &cobra.Command{
		Use:       "run [consist|loco|train]",
		Short:     "run a simulation and save it",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: config.Sims(),
		RunE:      runSimulation,
	}
	addScenarioFlags(runCmd)
	runCmd.Flags().BoolVar(&trim, "trim", false, "trim histories to the last good step when a walk fails")
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not save the run")
	runCmd.Flags().StringVar(&dumpConfig, "dump-config", "", "write the effective config to this path")

	liveCmd := &cobra.Command{
		Use:       "live [consist|loco|train]",
		Short:     "walk a simulation with a live view",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: config.Sims(),
		RunE:      runLive,
	}
	addScenarioFlags(liveCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list saved runs",
		RunE:  listRuns,
	}
	listCmd.Flags().StringVar(&simFilter, "sim", "", "only runs of this sim")
	listCmd.Flags().StringVar(&best, "best", "", "rank successful runs by this metric, lowest first")
	listCmd.Flags().IntVar(&limit, "limit", 10, "number of ranked runs")

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run samples in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringSliceVar(&fields, "fields", []string{"pwr_out_req", "pwr_out"}, "sample fields to plot")
	plotCmd.Flags().IntVar(&width, "width", 80, "chart width")
	plotCmd.Flags().IntVar(&height, "height", 12, "chart height")

	pngCmd := &cobra.Command{
		Use:   "png [run_id]",
		Short: "chart run samples to an image",
		Args:  cobra.ExactArgs(1),
		RunE:  pngRun,
	}
	pngCmd.Flags().StringSliceVar(&fields, "fields", []string{"pwr_out_req", "pwr_out"}, "sample fields to chart")
	pngCmd.Flags().StringVarP(&outPath, "out", "o", "", "image path (default <run_id>.png)")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a run as JSON or YAML",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVarP(&format, "format", "f", "json", "json or yaml")
	exportCmd.Flags().StringVarP(&outPath, "out", "o", "", "output path (default stdout)")

	presetsCmd := &cobra.Command{
		Use:   "presets [sim]",
		Short: "list scenario presets",
		Args:  cobra.MaximumNArgs(1),
		RunE:  listPresets,
	}

	tracesCmd := &cobra.Command{
		Use:   "traces [dir]",
		Short: "write the built-in traces as CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  writeTraces,
	}

	rootCmd.AddCommand(runCmd, liveCmd, listCmd, plotCmd, pngCmd, exportCmd, presetsCmd, tracesCmd, newSweepCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addScenarioFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&configFile, "config", "", "config file path (yaml)")
	f.StringVar(&preset, "preset", "", "use preset configuration")
	f.StringSliceVar(&locos, "locos", nil, "locomotive kinds, lead first")
	f.StringVar(&control, "control", "", "power distribution control")
	f.BoolVar(&noAssert, "no-assert", false, "record deficits instead of failing on power limits")
	f.IntVar(&saveInterval, "save-interval", config.DefaultSaveInterval, "history save interval in steps, 0 for none")
	f.StringVar(&powerTrace, "power-trace", "", "power trace CSV")
	f.StringVar(&speedTrace, "speed-trace", "", "speed trace CSV")
	f.StringVar(&linkPath, "link-path", "", "link path CSV")
	f.StringVar(&network, "network", "", "network YAML")
	f.BoolVar(&parallel, "parallel", false, "walk loco runs concurrently")
	f.Float64Var(&trainMass, "mass", 0, "train mass override, kg")
	f.Float64Var(&trainSpeed, "speed", 0, "constant train speed for power traces, m/s")
}

// loadConfig resolves defaults, then the preset, then the config file, then flags
// that were set explicitly.
func loadConfig(cmd *cobra.Command, sim string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(sim, preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(sim))
		}
	}
	if configFile != "" {
		var err error
		if cfg, err = config.Load(configFile); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}
	cfg.Sim = sim

	f := cmd.Flags()
	if f.Changed("locos") {
		cfg.Consist.Locos = locos
	}
	if f.Changed("control") {
		cfg.Consist.Control = control
	}
	if f.Changed("no-assert") {
		cfg.Consist.AssertLimits = !noAssert
	}
	if f.Changed("save-interval") {
		cfg.SaveInterval = saveInterval
	}
	if f.Changed("power-trace") {
		cfg.Traces.Power = powerTrace
	}
	if f.Changed("speed-trace") {
		cfg.Traces.Speed = speedTrace
	}
	if f.Changed("link-path") {
		cfg.Traces.Link = linkPath
	}
	if f.Changed("network") {
		cfg.Traces.Network = network
	}
	if f.Changed("parallel") {
		cfg.Parallel = parallel
	}
	if f.Changed("mass") {
		m := trainMass
		cfg.Train.Mass = &m
	}
	if f.Changed("speed") {
		v := trainSpeed
		cfg.Train.Speed = &v
	}
	if f.Changed("data") {
		cfg.OutputDir = dataDir
	}
	if f.Changed("log-level") {
		cfg.LogLevel = logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(level string) *slog.Logger {
	if logJSON {
		return logging.NewJSONLogger(level, os.Stderr)
	}
	return logging.NewLogger(level, os.Stderr)
}
