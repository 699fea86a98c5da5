package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/san-kum/railsim/internal/config"
	"github.com/san-kum/railsim/internal/experiment"
	"github.com/san-kum/railsim/internal/storage"
	"github.com/san-kum/railsim/internal/viz"
)

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args[0])
	if err != nil {
		return err
	}
	logger := newLogger(cfg.LogLevel)

	if dumpConfig != "" {
		if err := config.Save(dumpConfig, cfg); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	ctx := cmd.Context()
	exp := experiment.New(cfg, experiment.NewRegistry(), logger)

	fmt.Printf("running %s simulation...\n", cfg.Sim)
	start := time.Now()
	res, walkErr := exp.Run(ctx)
	if res == nil {
		return walkErr
	}
	elapsed := time.Since(start)

	if walkErr != nil && trim {
		for _, r := range res.Runs {
			if err := r.Walker.TrimFailedSteps(); err != nil {
				logger.Warn("trim failed", "run", r.Name, "err", err)
			}
		}
	}

	var (
		st  *storage.Store
		cat *storage.Catalog
	)
	if !noSave {
		st = storage.New(cfg.OutputDir)
		if cat, err = st.OpenCatalog(ctx); err != nil {
			return err
		}
		defer cat.Close()
	}

	fmt.Printf("completed in %v\n\n", elapsed)
	for _, r := range res.Runs {
		if st != nil {
			meta := storage.RunMetadata{Sim: res.Sim, Name: r.Name, Metrics: r.Metrics}
			if walkErr != nil {
				meta.Error = walkErr.Error()
			}
			runID, err := st.Save(meta, r.Samples)
			if err != nil {
				return err
			}
			saved, err := st.Load(runID)
			if err != nil {
				return err
			}
			if err := cat.Record(ctx, *saved); err != nil {
				return err
			}
			fmt.Printf("run id: %s\n", runID)
		}
		fmt.Println(viz.Summary(res.Sim, r.Name, len(r.Samples), r.Metrics, walkErr))
	}
	return walkErr
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args[0])
	if err != nil {
		return err
	}
	// the view owns the terminal
	if !cmd.Flags().Changed("log-level") {
		cfg.LogLevel = "error"
	}
	exp := experiment.New(cfg, experiment.NewRegistry(), newLogger(cfg.LogLevel))

	total, err := steps(exp)
	if err != nil {
		return err
	}

	feed := viz.NewFeed(cmd.Context())
	runs, _, err := exp.Build(feed)
	if err != nil {
		return err
	}
	run := runs[0]
	feed.Start(run.Walker)

	final, err := tea.NewProgram(viz.NewModel(fmt.Sprintf("%s / %s", cfg.Sim, run.Name), total, feed)).Run()
	feed.Stop()
	if err != nil {
		return err
	}
	m := final.(viz.Model)
	if err := m.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	fmt.Println(viz.Summary(cfg.Sim, run.Name, len(m.Samples()), run.Walker.Metrics(), m.Err()))
	return nil
}

// steps is the number of time steps a full walk of the configured sim takes.
func steps(exp *experiment.Experiment) (int, error) {
	if exp.Config().Sim == config.SimTrain {
		st, err := exp.SpeedTrace()
		if err != nil {
			return 0, err
		}
		return st.Len() - 1, nil
	}
	pt, err := exp.PowerTrace()
	if err != nil {
		return 0, err
	}
	return pt.Len() - 1, nil
}
