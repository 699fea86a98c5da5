package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/railsim/internal/config"
	"github.com/san-kum/railsim/internal/sim"
	"github.com/san-kum/railsim/internal/storage"
	"github.com/san-kum/railsim/internal/store"
	"github.com/san-kum/railsim/internal/trace"
	"github.com/san-kum/railsim/internal/train"
	"github.com/san-kum/railsim/internal/viz"
)

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	cat, err := st.OpenCatalog(cmd.Context())
	if err != nil {
		return err
	}
	defer cat.Close()

	var runs []storage.RunMetadata
	if best != "" {
		runs, err = cat.Best(cmd.Context(), best, limit)
	} else {
		runs, err = cat.Runs(cmd.Context(), simFilter)
	}
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSIM\tNAME\tTIME\tSTEPS\tFUEL (MJ)\tSTATUS")
	for _, run := range runs {
		status := "ok"
		if run.Error != "" {
			status = "failed"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%.1f\t%s\n",
			run.ID,
			run.Sim,
			run.Name,
			run.Timestamp.Local().Format("2006-01-02 15:04:05"),
			run.Steps,
			run.Metrics["energy_fuel"]/1e6,
			status,
		)
	}
	return w.Flush()
}

func loadRun(runID string) (*storage.RunMetadata, []sim.Sample, error) {
	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return nil, nil, err
	}
	samples, err := st.LoadSamples(runID)
	if err != nil {
		return nil, nil, err
	}
	return meta, samples, nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	meta, samples, err := loadRun(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("sim: %s (%s)\n", meta.Sim, meta.Name)
	fmt.Printf("samples: %d\n\n", len(samples))

	chart, err := viz.Chart(samples, fields, width, height)
	if err != nil {
		return err
	}
	fmt.Println(chart)
	return nil
}

func pngRun(cmd *cobra.Command, args []string) error {
	meta, samples, err := loadRun(args[0])
	if err != nil {
		return err
	}
	path := outPath
	if path == "" {
		path = meta.ID + ".png"
	}
	if err := viz.SavePNG(path, fmt.Sprintf("%s / %s", meta.Sim, meta.Name), samples, fields); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	f, err := store.ParseFormat(format)
	if err != nil {
		return err
	}
	meta, samples, err := loadRun(args[0])
	if err != nil {
		return err
	}

	data := store.ExportData{
		Sim:     meta.Sim,
		Name:    meta.Name,
		Steps:   meta.Steps,
		Error:   meta.Error,
		Metrics: meta.Metrics,
		Samples: samples,
	}
	if outPath == "" {
		return store.ExportStdout(f, data)
	}
	return store.Export(outPath, f, data)
}

func listPresets(cmd *cobra.Command, args []string) error {
	sims := config.Sims()
	if len(args) == 1 {
		sims = args[:1]
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SIM\tPRESET\tLOCOS\tCONTROL\tSAVE INTERVAL")
	for _, kind := range sims {
		names := config.ListPresets(kind)
		if names == nil {
			return fmt.Errorf("unknown sim: %s (available: %v)", kind, config.Sims())
		}
		for _, name := range names {
			cfg := config.GetPreset(kind, name)
			fmt.Fprintf(w, "%s\t%s\t%v\t%s\t%d\n", kind, name, cfg.Consist.Locos, cfg.Consist.Control, cfg.SaveInterval)
		}
	}
	return w.Flush()
}

func writeTraces(cmd *cobra.Command, args []string) error {
	dir := args[0]
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	pt := trace.DefaultPowerTrace()
	if err := pt.SaveCSV(filepath.Join(dir, "power_trace.csv")); err != nil {
		return err
	}
	st := trace.DefaultSpeedTrace()
	if err := st.SaveCSV(filepath.Join(dir, "speed_trace.csv")); err != nil {
		return err
	}

	network := train.DefaultNetwork()
	links := make(trace.LinkPath, len(network))
	for i, l := range network {
		links[i] = l.Idx
	}
	if err := links.SaveCSV(filepath.Join(dir, "link_path.csv")); err != nil {
		return err
	}
	if err := store.Export(filepath.Join(dir, "network.yaml"), store.YAML, network); err != nil {
		return err
	}
	fmt.Printf("wrote traces to %s\n", dir)
	return nil
}
