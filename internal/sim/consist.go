package sim

import (
	"context"

	"github.com/san-kum/railsim/internal/consist"
	"github.com/san-kum/railsim/internal/core"
	"github.com/san-kum/railsim/internal/trace"
)

// ConsistSimulation drives a consist through a power trace.
type ConsistSimulation struct {
	Consist    *consist.Consist `json:"loco_con" yaml:"loco_con"`
	PowerTrace trace.PowerTrace `json:"power_trace" yaml:"power_trace"`

	hooks `json:"-" yaml:"-"`
}

func NewConsistSimulation(c *consist.Consist, pt trace.PowerTrace, saveInterval *int, opts ...Option) (*ConsistSimulation, error) {
	if err := pt.Validate(); err != nil {
		return nil, err
	}
	s := &ConsistSimulation{Consist: c, PowerTrace: pt, hooks: newHooks("consist_sim", opts)}
	s.SetSaveInterval(saveInterval)
	return s, nil
}

// DefaultConsistSimulation runs the default six locomotive consist over the default
// power trace.
func DefaultConsistSimulation(opts ...Option) *ConsistSimulation {
	s, err := NewConsistSimulation(consist.Default(), trace.DefaultPowerTrace(), core.Interval(1), opts...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *ConsistSimulation) SaveInterval() *int { return s.Consist.SaveInterval() }

func (s *ConsistSimulation) SetSaveInterval(interval *int) { s.Consist.SetSaveInterval(interval) }

func (s *ConsistSimulation) Index() int { return s.Consist.State.I }

func (s *ConsistSimulation) Walk(ctx context.Context) error {
	n := s.PowerTrace.Len()
	s.start(n)
	s.Consist.SaveState()
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

func (s *ConsistSimulation) Step() error {
	if err := s.Consist.CheckAndReset("consist_sim"); err != nil {
		return err
	}
	s.Consist.Step()
	i := s.Index()
	if err := s.solveStep(i); err != nil {
		return &core.StepError{Step: i, Time: s.PowerTrace.Time[i], Wrapped: err}
	}
	s.Consist.SaveState()
	s.notify(s.sample(i))
	return nil
}

func (s *ConsistSimulation) solveStep(i int) error {
	pt := &s.PowerTrace
	on := true
	if err := s.Consist.SetPwrAux(&on); err != nil {
		return err
	}
	dt, speed := pt.Dt(i), pt.Speed(i)
	if err := s.Consist.SetCurPwrMaxOut(pt.TrainMass, speed, dt); err != nil {
		return err
	}
	if err := s.Consist.SolveEnergyConsumption(pt.Pwr[i], pt.TrainMass, speed, dt, pt.Engine(i)); err != nil {
		return err
	}
	return s.Consist.SetCumulative(dt)
}

func (s *ConsistSimulation) sample(i int) Sample {
	st := &s.Consist.State
	smp := Sample{
		I:               i,
		Time:            s.PowerTrace.Time[i],
		Dt:              s.PowerTrace.Dt(i),
		PwrOutReq:       st.PwrOutReq,
		PwrOut:          st.PwrOut,
		PwrFuel:         st.PwrFuel,
		PwrRES:          st.PwrReves,
		PwrOutDeficit:   st.PwrOutDeficit,
		PwrRegenDeficit: st.PwrRegenDeficit,
	}
	if v := s.PowerTrace.Speed(i); v != nil {
		smp.Speed = *v
	}
	return smp
}

func (s *ConsistSimulation) TrimFailedSteps() error {
	return trimTo(s.Index(), s.PowerTrace.Trim)
}
