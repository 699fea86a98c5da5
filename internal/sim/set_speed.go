package sim

import (
	"context"
	"math"

	"github.com/san-kum/railsim/internal/consist"
	"github.com/san-kum/railsim/internal/core"
	"github.com/san-kum/railsim/internal/stale"
	"github.com/san-kum/railsim/internal/trace"
	"github.com/san-kum/railsim/internal/train"
)

// braking curve resolution, s
const brakingDt = 1.0

// SetSpeedTrainSim moves a train along a path at the speeds of a speed trace and
// solves the wheel power that takes.
type SetSpeedTrainSim struct {
	Consist    *consist.Consist    `json:"loco_con" yaml:"loco_con"`
	State      train.State         `json:"state" yaml:"state"`
	History    []train.State       `json:"history,omitempty" yaml:"history,omitempty"`
	SpeedTrace trace.SpeedTrace    `json:"speed_trace" yaml:"speed_trace"`
	Params     train.Params        `json:"train_params" yaml:"train_params"`
	Res        train.Res           `json:"train_res" yaml:"train_res"`
	FricBrake  train.FricBrake     `json:"fric_brake" yaml:"fric_brake"`
	Path       *train.PathTpc      `json:"path_tpc" yaml:"path_tpc"`
	Braking    train.BrakingPoints `json:"braking_points" yaml:"braking_points"`

	saveInterval *int
	hooks `json:"-" yaml:"-"`
}

// NewSetSpeedTrainSim places the train with its tail at the start of path and builds
// the braking curve with the default resistance and friction brake.
func NewSetSpeedTrainSim(c *consist.Consist, params train.Params, path *train.PathTpc, st trace.SpeedTrace, saveInterval *int, opts ...Option) (*SetSpeedTrainSim, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if err := st.Validate(); err != nil {
		return nil, err
	}
	mass, err := c.Mass()
	if err != nil {
		return nil, err
	}
	if mass == nil {
		return nil, core.Invariantf("set_speed_train_sim: consist mass must be set")
	}
	s := &SetSpeedTrainSim{
		Consist:    c,
		State:      train.NewState(params, *mass, st.Speed[0]),
		SpeedTrace: st,
		Params:     params,
		Res:        train.DefaultRes(),
		FricBrake:  train.DefaultFricBrake(),
		Path:       path,
		hooks:      newHooks("set_speed_train_sim", opts),
	}
	s.State.Time.UpdateUnchecked(st.Time[0])
	link, in := path.LinkAt(s.State.Offset.GetStale())
	s.State.LinkIdxFront.UpdateUnchecked(link)
	s.State.OffsetInLink.UpdateUnchecked(in)
	if err := s.RecalcBraking(); err != nil {
		return nil, err
	}
	s.SetSaveInterval(saveInterval)
	return s, nil
}

// DefaultSetSpeedTrainSim runs the default consist and train over the default path
// and speed trace.
func DefaultSetSpeedTrainSim(opts ...Option) *SetSpeedTrainSim {
	path, err := train.DefaultPath()
	if err != nil {
		panic(err)
	}
	s, err := NewSetSpeedTrainSim(consist.Default(), train.DefaultParams(), path, trace.DefaultSpeedTrace(), core.Interval(1), opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// RecalcBraking rebuilds the braking curve after a change to the path, resistance or
// friction brake, and checks the train's current speed against it.
func (s *SetSpeedTrainSim) RecalcBraking() error {
	if err := s.Braking.Recalc(&s.State, &s.Params, &s.FricBrake, &s.Res, s.Path, brakingDt); err != nil {
		return err
	}
	limit, target, err := s.Braking.CalcSpeeds(s.State.Offset.GetStale(), s.State.Speed.GetStale(), s.FricBrake.AdjRampUpTime())
	if err != nil {
		return err
	}
	s.State.SpeedLimit.UpdateUnchecked(limit)
	s.State.SpeedTarget.UpdateUnchecked(target)
	return nil
}

func (s *SetSpeedTrainSim) SaveInterval() *int { return s.saveInterval }

func (s *SetSpeedTrainSim) SetSaveInterval(interval *int) {
	s.saveInterval = interval
	s.Consist.SetSaveInterval(interval)
	s.FricBrake.SaveInterval = interval
}

func (s *SetSpeedTrainSim) Index() int { return s.State.I.GetStale() }

func (s *SetSpeedTrainSim) Walk(ctx context.Context) error {
	n := s.SpeedTrace.Len()
	s.start(n)
	s.SaveState()
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

func (s *SetSpeedTrainSim) Step() error {
	const loc = "set_speed_train_sim"
	if err := s.State.CheckAndReset(loc); err != nil {
		return err
	}
	if err := s.Consist.CheckAndReset(loc); err != nil {
		return err
	}
	if err := s.FricBrake.CheckAndReset(loc); err != nil {
		return err
	}
	if err := s.State.Step(); err != nil {
		return err
	}
	s.Consist.Step()
	if err := s.FricBrake.Step(); err != nil {
		return err
	}
	i := s.Index()
	if err := s.solveStep(i); err != nil {
		return &core.StepError{Step: i, Time: s.SpeedTrace.Time[i], Wrapped: err}
	}
	s.SaveState()
	s.notify(s.sample(i))
	return nil
}

func (s *SetSpeedTrainSim) SaveState() {
	if core.ShouldSave(s.saveInterval, s.Index()) {
		s.History = append(s.History, s.State)
	}
	s.Consist.SaveState()
	s.FricBrake.SaveState()
}

func (s *SetSpeedTrainSim) solveStep(i int) error {
	const loc = "set_speed_train_sim"
	st := &s.SpeedTrace
	dt := st.Time[i] - s.State.Time.GetStale()
	if err := s.State.Dt.Update(dt, loc+".dt"); err != nil {
		return err
	}
	if err := s.State.MarkStaticFresh(loc); err != nil {
		return err
	}

	engineOn := st.Engine(i)
	if err := s.Consist.SetPwrAux(engineOn); err != nil {
		return err
	}
	mass := s.State.MassCompound()
	speedPrev := s.State.Speed.GetStale()
	if err := s.Consist.SetCurPwrMaxOut(&mass, &speedPrev, dt); err != nil {
		return err
	}
	if err := s.Res.Update(&s.State, s.Path, &s.Params, core.Fwd); err != nil {
		return err
	}
	if err := s.FricBrake.SetCurForceMaxOut(dt); err != nil {
		return err
	}
	if err := s.solveRequiredPwr(i, dt, mass); err != nil {
		return err
	}
	whl, err := s.State.PwrWhlOut.Get(loc + ".pwr_whl_out")
	if err != nil {
		return err
	}
	speed := st.Speed[i]
	if err := s.Consist.SolveEnergyConsumption(whl, &mass, &speed, dt, engineOn); err != nil {
		return err
	}

	dist := st.Mean(i) * dt
	for _, err := range []error{
		stale.Increment(&s.State.Time, dt, loc+".time"),
		s.State.Speed.Update(speed, loc+".speed"),
		stale.Increment(&s.State.Offset, dist, loc+".offset"),
		stale.Increment(&s.State.TotalDist, math.Abs(dist), loc+".total_dist"),
	} {
		if err != nil {
			return err
		}
	}
	offset := s.State.Offset.GetStale()
	link, in := s.Path.LinkAt(offset)
	if err := s.State.LinkIdxFront.Update(link, loc+".link_idx_front"); err != nil {
		return err
	}
	if err := s.State.OffsetInLink.Update(in, loc+".offset_in_link"); err != nil {
		return err
	}
	limit, target, err := s.Braking.CalcSpeeds(offset, speed, s.FricBrake.AdjRampUpTime())
	if err != nil {
		return err
	}
	if err := s.State.SpeedLimit.Update(limit, loc+".speed_limit"); err != nil {
		return err
	}
	if err := s.State.SpeedTarget.Update(target, loc+".speed_target"); err != nil {
		return err
	}
	return s.Consist.SetCumulative(dt)
}

// solveRequiredPwr finds the wheel power that holds the trace speed against
// resistance, bounded by the consist's traction and dynamic braking capability.
// Braking beyond the locomotives goes to the friction brake.
func (s *SetSpeedTrainSim) solveRequiredPwr(i int, dt, mass float64) error {
	const loc = "set_speed_train_sim"
	st := &s.SpeedTrace
	cs := &s.Consist.State
	posMax := math.Min(cs.PwrOutMax, math.Max(0, s.State.PwrWhlOut.GetStale()+cs.PwrRateOutMax*dt))
	negMax := math.Max(0, cs.PwrDynBrakeMax)

	resNet, err := s.State.ResNet()
	if err != nil {
		return err
	}
	vMean := st.Mean(i)
	vPrev, v := st.Speed[i-1], st.Speed[i]
	pwrRes := resNet * vMean
	pwrAccel := mass / (2 * dt) * (v*v - vPrev*vPrev)
	req := pwrAccel + pwrRes
	whl := core.Clamp(req, -negMax, posMax)

	var force, pos, neg float64
	if req < whl && vMean > 0 {
		force = (whl - req) / vMean
	}
	if whl >= 0 {
		pos = whl * dt
	} else {
		neg = -whl * dt
	}
	for _, err := range []error{
		s.State.PwrRes.Update(pwrRes, loc+".pwr_res"),
		s.State.PwrAccel.Update(pwrAccel, loc+".pwr_accel"),
		s.State.PwrWhlOut.Update(whl, loc+".pwr_whl_out"),
		s.FricBrake.Apply(force),
		stale.Increment(&s.State.EnergyWhlOutPos, pos, loc+".energy_whl_out_pos"),
		stale.Increment(&s.State.EnergyWhlOutNeg, neg, loc+".energy_whl_out_neg"),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *SetSpeedTrainSim) sample(i int) Sample {
	cs := &s.Consist.State
	return Sample{
		I:               i,
		Time:            s.SpeedTrace.Time[i],
		Dt:              s.SpeedTrace.Dt(i),
		PwrOutReq:       s.State.PwrWhlOut.GetStale(),
		PwrOut:          cs.PwrOut,
		PwrFuel:         cs.PwrFuel,
		PwrRES:          cs.PwrReves,
		PwrOutDeficit:   cs.PwrOutDeficit,
		PwrRegenDeficit: cs.PwrRegenDeficit,
		Speed:           s.SpeedTrace.Speed[i],
	}
}

func (s *SetSpeedTrainSim) TrimFailedSteps() error {
	return trimTo(s.Index(), s.SpeedTrace.Trim)
}

var (
	_ Walker = (*LocomotiveSimulation)(nil)
	_ Walker = (*ConsistSimulation)(nil)
	_ Walker = (*SetSpeedTrainSim)(nil)
)
