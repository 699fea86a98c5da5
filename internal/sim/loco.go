package sim

import (
	"context"

	"github.com/pkg/errors"

	"github.com/san-kum/railsim/internal/core"
	"github.com/san-kum/railsim/internal/locomotive"
	"github.com/san-kum/railsim/internal/trace"
)

// LocomotiveSimulation drives a single locomotive through a power trace.
type LocomotiveSimulation struct {
	Loco       *locomotive.Locomotive `json:"loco_unit" yaml:"loco_unit"`
	PowerTrace trace.PowerTrace       `json:"power_trace" yaml:"power_trace"`

	hooks `json:"-" yaml:"-"`
}

func NewLocomotiveSimulation(loco *locomotive.Locomotive, pt trace.PowerTrace, saveInterval *int, opts ...Option) (*LocomotiveSimulation, error) {
	if err := pt.Validate(); err != nil {
		return nil, err
	}
	s := &LocomotiveSimulation{Loco: loco, PowerTrace: pt, hooks: newHooks("loco_sim", opts)}
	s.SetSaveInterval(saveInterval)
	return s, nil
}

// DefaultLocomotiveSimulation runs the default conventional locomotive over the
// default power trace.
func DefaultLocomotiveSimulation(opts ...Option) *LocomotiveSimulation {
	s, err := NewLocomotiveSimulation(locomotive.Default(), trace.DefaultPowerTrace(), core.Interval(1), opts...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *LocomotiveSimulation) SaveInterval() *int { return s.Loco.SaveInterval() }

func (s *LocomotiveSimulation) SetSaveInterval(interval *int) { s.Loco.SetSaveInterval(interval) }

// Index is the last solved time step.
func (s *LocomotiveSimulation) Index() int { return s.Loco.State.I.GetStale() }

func (s *LocomotiveSimulation) Walk(ctx context.Context) error {
	n := s.PowerTrace.Len()
	s.start(n)
	s.Loco.SaveState()
	for s.Index() < n-1 {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.Step(); err != nil {
			return err
		}
	}
	s.finish(s.Index())
	return nil
}

func (s *LocomotiveSimulation) Step() error {
	if err := s.Loco.CheckAndReset("loco_sim"); err != nil {
		return err
	}
	s.Loco.Step()
	i := s.Index()
	if err := s.solveStep(i); err != nil {
		return &core.StepError{Step: i, Time: s.PowerTrace.Time[i], Wrapped: err}
	}
	s.Loco.SaveState()
	s.notify(s.sample(i))
	return nil
}

func (s *LocomotiveSimulation) solveStep(i int) error {
	pt := &s.PowerTrace
	engineOn := pt.Engine(i)
	dt := pt.Dt(i)
	if err := s.Loco.SetPwrAux(engineOn); err != nil {
		return err
	}
	if err := s.Loco.SetCurPwrMaxOut(pt.TrainMass, pt.Speed(i), dt); err != nil {
		return err
	}
	req := pt.Pwr[i]
	if err := s.Loco.SolveEnergyConsumption(req, dt, engineOn); err != nil {
		return err
	}
	out := s.Loco.State.PwrOut.GetStale()
	if !core.AlmostEq(req, out, 0) {
		return errors.Wrapf(core.ErrBalance, "loco_sim: requested %.1f W, achieved %.1f W", req, out)
	}
	return s.Loco.SetCumulative(dt)
}

func (s *LocomotiveSimulation) sample(i int) Sample {
	pt := &s.PowerTrace
	smp := Sample{
		I:         i,
		Time:      pt.Time[i],
		Dt:        pt.Dt(i),
		PwrOutReq: pt.Pwr[i],
		PwrOut:    s.Loco.State.PwrOut.GetStale(),
		PwrFuel:   s.Loco.Powertrain.PwrFuel(),
	}
	if r := s.Loco.Powertrain.RES(); r != nil {
		smp.PwrRES = r.State.PwrOutChemical.GetStale()
	}
	if v := pt.Speed(i); v != nil {
		smp.Speed = *v
	}
	return smp
}

// TrimFailedSteps cuts the trace back to the steps that were solved.
func (s *LocomotiveSimulation) TrimFailedSteps() error {
	return trimTo(s.Index(), s.PowerTrace.Trim)
}

func trimTo(i int, trim func(start, end *int) error) error {
	if i <= 1 {
		return core.Invariantf("walk has not proceeded past the first time step")
	}
	return trim(nil, &i)
}
