// Package experiment turns a config into wired simulations and runs them.
package experiment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/san-kum/railsim/internal/config"
	"github.com/san-kum/railsim/internal/consist"
	"github.com/san-kum/railsim/internal/locomotive"
	"github.com/san-kum/railsim/internal/logging"
	"github.com/san-kum/railsim/internal/sim"
	"github.com/san-kum/railsim/internal/trace"
	"github.com/san-kum/railsim/internal/train"
)

// Recorder keeps every sample it observes.
type Recorder struct {
	Samples []sim.Sample
}

func (r *Recorder) OnStep(s sim.Sample) { r.Samples = append(r.Samples, s) }

// Run is the outcome of one simulation.
type Run struct {
	Name    string
	Walker  sim.Walker
	Samples []sim.Sample
	Metrics map[string]float64
}

type Result struct {
	Sim  string
	Runs []Run
}

type Experiment struct {
	cfg    *config.Config
	reg    *Registry
	logger *slog.Logger
}

func New(cfg *config.Config, reg *Registry, logger *slog.Logger) *Experiment {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Experiment{cfg: cfg, reg: reg, logger: logger}
}

func (e *Experiment) Config() *config.Config { return e.cfg }

// Locos builds the configured locomotives with buffer overrides applied.
func (e *Experiment) Locos() ([]*locomotive.Locomotive, error) {
	locos := make([]*locomotive.Locomotive, len(e.cfg.Consist.Locos))
	for i, name := range e.cfg.Consist.Locos {
		l, err := e.reg.GetLoco(name)
		if err != nil {
			return nil, err
		}
		if b := l.Powertrain.Buffers(); b != nil {
			if v := e.cfg.Buffers.DischargeSpeed; v != nil {
				b.SpeedSocDischBuffer = *v
			}
			if v := e.cfg.Buffers.RegenSpeed; v != nil {
				b.SpeedSocRegenBuffer = *v
			}
		}
		l.AssertLimits = e.cfg.Consist.AssertLimits
		locos[i] = l
	}
	for _, o := range e.cfg.Consist.Traction {
		if err := applyTraction(locos[o.Index], o); err != nil {
			return nil, errors.WithMessagef(err, "traction override: loco idx: %d", o.Index)
		}
	}
	return locos, nil
}

func applyTraction(l *locomotive.Locomotive, o config.TractionOverride) error {
	if o.Mu != nil {
		name := o.MuSideEffect
		if name == "" {
			name = "ForceMax"
		}
		side, err := locomotive.ParseMuSideEffect(name)
		if err != nil {
			return err
		}
		if err := l.SetMu(*o.Mu, side); err != nil {
			return err
		}
	}
	if o.ForceMax != nil {
		name := o.ForceMaxSideEffect
		if name == "" {
			name = "UpdateMu"
		}
		side, err := locomotive.ParseForceMaxSideEffect(name)
		if err != nil {
			return err
		}
		return l.SetForceMax(*o.ForceMax, side)
	}
	return nil
}

func (e *Experiment) Consist() (*consist.Consist, error) {
	locos, err := e.Locos()
	if err != nil {
		return nil, err
	}
	control, err := e.reg.GetControl(e.cfg.Consist.Control)
	if err != nil {
		return nil, err
	}
	c, err := consist.New(locos, e.cfg.Interval(), control)
	if err != nil {
		return nil, err
	}
	c.SetAssertLimits(e.cfg.Consist.AssertLimits)
	return c, nil
}

// PowerTrace loads the configured power trace, or the default one, and applies the
// train mass and speed overrides.
func (e *Experiment) PowerTrace() (trace.PowerTrace, error) {
	pt := trace.DefaultPowerTrace()
	if path := e.cfg.Traces.Power; path != "" {
		var err error
		if pt, err = trace.LoadPowerTrace(path); err != nil {
			return pt, err
		}
	}
	if m := e.cfg.Train.Mass; m != nil {
		mass := *m
		pt.TrainMass = &mass
	}
	if v := e.cfg.Train.Speed; v != nil {
		pt.TrainSpeed = make([]float64, pt.Len())
		for i := range pt.TrainSpeed {
			pt.TrainSpeed[i] = *v
		}
	}
	return pt, nil
}

func (e *Experiment) SpeedTrace() (trace.SpeedTrace, error) {
	if path := e.cfg.Traces.Speed; path != "" {
		return trace.LoadSpeedTrace(path)
	}
	return trace.DefaultSpeedTrace(), nil
}

// Path builds the track the train runs over. Without a link path every link of the
// network is run in order.
func (e *Experiment) Path() (*train.PathTpc, error) {
	network := train.DefaultNetwork()
	if path := e.cfg.Traces.Network; path != "" {
		var err error
		if network, err = config.LoadNetwork(path); err != nil {
			return nil, err
		}
	}
	var links trace.LinkPath
	if path := e.cfg.Traces.Link; path != "" {
		var err error
		if links, err = trace.LoadLinkPath(path); err != nil {
			return nil, err
		}
	} else {
		for _, l := range network {
			links = append(links, l.Idx)
		}
	}
	return train.NewPathTpc(network, links, e.cfg.Train.Params)
}

// Build wires the configured simulations. Each gets its own recorder and metrics;
// extra observers are shared and may be called concurrently for parallel loco runs.
func (e *Experiment) Build(observers ...sim.Observer) ([]Run, []*Recorder, error) {
	var (
		names   []string
		walkers []sim.Walker
		recs    []*Recorder
	)
	opts := func(name string) []sim.Option {
		rec := &Recorder{}
		recs = append(recs, rec)
		names = append(names, name)
		o := []sim.Option{sim.WithLogger(e.logger), sim.WithObserver(rec)}
		for _, m := range e.reg.DefaultMetrics() {
			o = append(o, sim.WithMetric(m))
		}
		for _, obs := range observers {
			o = append(o, sim.WithObserver(obs))
		}
		return o
	}

	switch e.cfg.Sim {
	case config.SimLoco:
		locos, err := e.Locos()
		if err != nil {
			return nil, nil, err
		}
		for i, l := range locos {
			pt, err := e.PowerTrace()
			if err != nil {
				return nil, nil, err
			}
			s, err := sim.NewLocomotiveSimulation(l, pt, e.cfg.Interval(), opts(fmt.Sprintf("%s[%d]", e.cfg.Consist.Locos[i], i))...)
			if err != nil {
				return nil, nil, err
			}
			walkers = append(walkers, s)
		}
	case config.SimConsist:
		c, err := e.Consist()
		if err != nil {
			return nil, nil, err
		}
		pt, err := e.PowerTrace()
		if err != nil {
			return nil, nil, err
		}
		s, err := sim.NewConsistSimulation(c, pt, e.cfg.Interval(), opts("consist")...)
		if err != nil {
			return nil, nil, err
		}
		walkers = append(walkers, s)
	case config.SimTrain:
		c, err := e.Consist()
		if err != nil {
			return nil, nil, err
		}
		path, err := e.Path()
		if err != nil {
			return nil, nil, err
		}
		st, err := e.SpeedTrace()
		if err != nil {
			return nil, nil, err
		}
		s, err := sim.NewSetSpeedTrainSim(c, e.cfg.Train.Params, path, st, e.cfg.Interval(), opts("train")...)
		if err != nil {
			return nil, nil, err
		}
		walkers = append(walkers, s)
	default:
		return nil, nil, errors.Errorf("experiment: unknown sim %q", e.cfg.Sim)
	}

	runs := make([]Run, len(walkers))
	for i, w := range walkers {
		runs[i] = Run{Name: names[i], Walker: w}
	}
	return runs, recs, nil
}

// Run builds and walks the configured simulations. On failure the partial result is
// returned with the error.
func (e *Experiment) Run(ctx context.Context, observers ...sim.Observer) (*Result, error) {
	runs, recs, err := e.Build(observers...)
	if err != nil {
		return nil, err
	}
	e.logger.Info("experiment", "sim", e.cfg.Sim, "runs", len(runs))

	var walkErr error
	if e.cfg.Sim == config.SimLoco {
		vec := make(sim.LocomotiveSimulationVec, len(runs))
		for i, r := range runs {
			vec[i] = r.Walker.(*sim.LocomotiveSimulation)
		}
		walkErr = vec.Walk(ctx, e.cfg.Parallel)
	} else {
		walkErr = runs[0].Walker.Walk(ctx)
	}

	res := &Result{Sim: e.cfg.Sim, Runs: runs}
	for i := range res.Runs {
		res.Runs[i].Samples = recs[i].Samples
		res.Runs[i].Metrics = res.Runs[i].Walker.Metrics()
	}
	return res, walkErr
}
