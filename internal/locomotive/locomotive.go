// Package locomotive wraps one powertrain with locomotive-level mass, tractive force
// and auxiliary load bookkeeping.
package locomotive

import (
	"encoding/json"
	"math"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/railsim/internal/core"
	"github.com/san-kum/railsim/internal/powertrain"
	"github.com/san-kum/railsim/internal/stale"
	"github.com/san-kum/railsim/internal/units"
)

// Locomotive owns one powertrain variant. Mass, traction coefficient and force max
// are kept consistent through their setters: force_max == mu * mass * g whenever mu
// and mass are both set.
type Locomotive struct {
	Powertrain powertrain.Type
	State      State
	History    []State
	// fail when a request exceeds capability
	AssertLimits bool
	// constant aux load, W
	PwrAuxOffset float64
	// aux power per unit of absolute wheel power
	PwrAuxTractionCoeff float64

	mass         *float64
	mu           *float64
	ballastMass  *float64
	baselineMass *float64
	forceMax     float64
	saveInterval *int
}

var (
	_ core.Stepper        = (*Locomotive)(nil)
	_ core.StateSaver     = (*Locomotive)(nil)
	_ core.CheckResetter  = (*Locomotive)(nil)
	_ core.SaveIntervaler = (*Locomotive)(nil)
)

// New builds a locomotive from a powertrain and parameter bundle and validates it.
func New(pt powertrain.Type, p Params, saveInterval *int) (*Locomotive, error) {
	l := &Locomotive{
		Powertrain:          pt,
		AssertLimits:        true,
		PwrAuxOffset:        p.PwrAuxOffset,
		PwrAuxTractionCoeff: p.PwrAuxTractionCoeff,
		mass:                p.Mass,
		forceMax:            p.ForceMax,
	}
	if err := l.Init(); err != nil {
		return nil, err
	}
	l.SetSaveInterval(saveInterval)
	return l, nil
}

func mustNew(pt powertrain.Type, p Params) *Locomotive {
	l, err := New(pt, p, core.Interval(1))
	if err != nil {
		panic(err)
	}
	return l
}

// Default returns a Tier 4 conventional locomotive.
func Default() *Locomotive {
	return mustNew(powertrain.NewConventional(powertrain.DefaultConventional()), DefaultParams())
}

func DefaultBatteryElectric() *Locomotive {
	mass := 194.6e3
	return mustNew(powertrain.NewBatteryElectric(powertrain.DefaultBatteryElectric()), Params{
		PwrAuxOffset:        8.55e3,
		PwrAuxTractionCoeff: 540e-6,
		ForceMax:            667.2e3,
		Mass:                &mass,
	})
}

func DefaultHybrid() *Locomotive {
	return mustNew(powertrain.NewHybrid(powertrain.DefaultHybrid()), DefaultParams())
}

// Dummy returns a locomotive with effectively unlimited power and no mass.
func Dummy() *Locomotive {
	l := mustNew(powertrain.NewDummy(), Params{
		PwrAuxOffset:        50e3,
		PwrAuxTractionCoeff: 0.01,
		ForceMax:            50e6,
	})
	l.saveInterval = nil
	return l
}

// Init validates the powertrain and the mass and force invariants.
func (l *Locomotive) Init() error {
	if err := l.Powertrain.Validate(); err != nil {
		return err
	}
	if _, err := l.Mass(); err != nil {
		return err
	}
	return l.CheckForceMax()
}

func (l *Locomotive) Kind() powertrain.Kind { return l.Powertrain.Kind }

// Mass returns the set mass, the derived mass, or nil. When both exist they must
// agree.
func (l *Locomotive) Mass() (*float64, error) {
	derived, err := l.DerivedMass()
	if err != nil {
		return nil, err
	}
	switch {
	case derived != nil && l.mass != nil:
		if !core.AlmostEq(*l.mass, *derived, 0) {
			return nil, core.Invariantf("loco: set mass %.1f kg does not match derived mass %.1f kg", *l.mass, *derived)
		}
		return l.mass, nil
	case l.mass != nil:
		return l.mass, nil
	default:
		return derived, nil
	}
}

// DerivedMass sums baseline, ballast and powertrain component masses. Either all of
// them are set or none are. A Dummy has no derived mass.
func (l *Locomotive) DerivedMass() (*float64, error) {
	ptMass, err := l.Powertrain.Mass()
	if err != nil {
		return nil, err
	}
	switch {
	case l.baselineMass != nil && l.ballastMass != nil:
		if l.Kind() == powertrain.KindDummy {
			return nil, core.Invariantf("loco: baseline and ballast mass must be nil for %s", l.Kind())
		}
		if ptMass == nil {
			return nil, core.Invariantf("loco: baseline and ballast masses are set so %s component masses must be set too", l.Kind())
		}
		total := *ptMass + *l.baselineMass + *l.ballastMass
		return &total, nil
	case l.baselineMass == nil && l.ballastMass == nil:
		if ptMass != nil && l.Kind() != powertrain.KindDummy {
			return nil, core.Invariantf("loco: baseline and ballast masses are nil so %s component masses must be nil too", l.Kind())
		}
		return nil, nil
	default:
		return nil, core.Invariantf("loco: baseline and ballast masses must both be set or both be nil")
	}
}

// SetMass sets mass directly, or from the derived mass when m is nil, then updates
// force max from mu. Component masses inconsistent with m are cleared.
func (l *Locomotive) SetMass(m *float64, side MassSideEffect) error {
	if side != MassSideEffectNone {
		return core.Invariantf("loco: only MassSideEffectNone is allowed at the locomotive level")
	}
	derived, err := l.DerivedMass()
	if err != nil {
		return err
	}
	if m != nil {
		if derived != nil && *derived != *m {
			l.ExpungeMassFields()
		}
		v := *m
		l.mass = &v
	} else {
		if derived == nil {
			return core.Invariantf("loco: not all mass fields are set and no mass was provided")
		}
		l.mass = derived
	}
	if l.mu == nil {
		return core.Invariantf("loco: expected mu to be set")
	}
	l.forceMax = *l.mu * *l.mass * units.Gravity
	return nil
}

// ExpungeMassFields clears baseline, ballast and component masses.
func (l *Locomotive) ExpungeMassFields() {
	l.Powertrain.ExpungeMassFields()
	l.baselineMass = nil
	l.ballastMass = nil
}

// SetMassComponents sets baseline and ballast mass together and revalidates mass.
func (l *Locomotive) SetMassComponents(baseline, ballast *float64) error {
	prevBaseline, prevBallast := l.baselineMass, l.ballastMass
	l.baselineMass, l.ballastMass = baseline, ballast
	if _, err := l.Mass(); err != nil {
		l.baselineMass, l.ballastMass = prevBaseline, prevBallast
		return err
	}
	return nil
}

func (l *Locomotive) BaselineMass() *float64 { return l.baselineMass }

func (l *Locomotive) BallastMass() *float64 { return l.ballastMass }

// ForceMax returns the max tractive force after checking it against mu and mass.
func (l *Locomotive) ForceMax() (float64, error) {
	if err := l.CheckForceMax(); err != nil {
		return 0, err
	}
	return l.forceMax, nil
}

// SetForceMax sets force max and resolves mu and mass per the side effect. A rejected
// call leaves the locomotive unchanged.
func (l *Locomotive) SetForceMax(f float64, side ForceMaxSideEffect) error {
	switch side {
	case ForceMaxMass:
		if l.mu == nil {
			return core.Invariantf("loco: expected traction coefficient to be set")
		}
		m := f / (*l.mu * units.Gravity)
		// sets force max from mu and m, which is f
		return l.SetMass(&m, MassSideEffectNone)
	case ForceMaxUpdateMu:
		if l.mass == nil {
			l.mu = nil
		} else {
			mu := f / (*l.mass * units.Gravity)
			l.mu = &mu
		}
	case ForceMaxSetMuToNone:
		l.mu = nil
	case ForceMaxSetMassToNone:
		l.mass = nil
	case ForceMaxSetMassAndMuToNone:
		l.mu = nil
		l.mass = nil
	default:
		return core.Invariantf("loco: unknown force max side effect %d", side)
	}
	l.forceMax = f
	return nil
}

// CheckForceMax fails when mu and mass are set but disagree with force max.
func (l *Locomotive) CheckForceMax() error {
	if l.mu == nil || l.mass == nil {
		return nil
	}
	want := *l.mu * *l.mass * units.Gravity
	if !core.AlmostEq(l.forceMax, want, 0) {
		return core.Invariantf("loco: force max %.1f N != mu %.4f * mass %.1f kg * g = %.1f N", l.forceMax, *l.mu, *l.mass, want)
	}
	return nil
}

// Mu returns the traction coefficient after checking force max consistency.
func (l *Locomotive) Mu() (*float64, error) {
	if err := l.CheckForceMax(); err != nil {
		return nil, err
	}
	return l.mu, nil
}

// SetMu sets the traction coefficient and resolves mass or force max per the side
// effect. A rejected call leaves the locomotive unchanged.
func (l *Locomotive) SetMu(mu float64, side MuSideEffect) error {
	switch side {
	case MuMass:
		prev := l.mu
		l.mu = &mu
		m := l.forceMax / (mu * units.Gravity)
		if err := l.SetMass(&m, MassSideEffectNone); err != nil {
			l.mu = prev
			return err
		}
		return nil
	case MuForceMax:
		m, err := l.Mass()
		if err != nil {
			return err
		}
		if m == nil {
			return core.Invariantf("loco: expected mass to be set")
		}
		l.forceMax = mu * units.Gravity * *m
	case MuSetMassToNone:
		l.mass = nil
	default:
		return core.Invariantf("loco: unknown mu side effect %d", side)
	}
	l.mu = &mu
	return nil
}

// PwrRated is the nameplate power of the energy sources.
func (l *Locomotive) PwrRated() float64 {
	p, _ := l.Powertrain.PwrRated()
	return p
}

func (l *Locomotive) SaveInterval() *int { return l.saveInterval }

// SetSaveInterval sets the history interval and cascades it to every component.
func (l *Locomotive) SetSaveInterval(interval *int) {
	l.saveInterval = interval
	l.Powertrain.SetSaveInterval(interval)
}

// SetPwrAux sets this step's aux load from the previous step's wheel power. A nil
// engineOn means on.
func (l *Locomotive) SetPwrAux(engineOn *bool) error {
	aux := 0.0
	if engineOn == nil || *engineOn {
		aux = l.PwrAuxOffset + l.PwrAuxTractionCoeff*math.Abs(l.State.PwrOut.GetStale())
	}
	return l.State.PwrAux.Update(aux, "loco.pwr_aux")
}

// SetCurPwrMaxOut solves this step's traction, ramp and regen capability. Train mass
// and speed are required by variants with energy storage.
func (l *Locomotive) SetCurPwrMaxOut(trainMass, trainSpeed *float64, dt float64) error {
	aux, err := l.State.PwrAux.Get("loco.pwr_aux")
	if err != nil {
		return err
	}
	c, err := l.Powertrain.SetCurPwrMaxOut(powertrain.CapabilityInput{
		PwrAux:     aux,
		TrainMass:  trainMass,
		TrainSpeed: trainSpeed,
		Dt:         dt,
	})
	if err != nil {
		return errors.WithMessagef(err, "%s", l.Kind())
	}
	if l.Kind() == powertrain.KindConventional && c.PwrRegenMax != 0 {
		return core.Invariantf("loco: conventional regen max must be zero, got %.1f W", c.PwrRegenMax)
	}
	if err := l.State.PwrOutMax.Update(c.PwrOutMax, "loco.pwr_out_max"); err != nil {
		return err
	}
	if err := l.State.PwrRateOutMax.Update(c.PwrRateOutMax, "loco.pwr_rate_out_max"); err != nil {
		return err
	}
	return l.State.PwrRegenMax.Update(c.PwrRegenMax, "loco.pwr_regen_max")
}

// SolveEnergyConsumption records the wheel power and solves the powertrain for it. A
// nil engineOn means on.
func (l *Locomotive) SolveEnergyConsumption(pwrOutReq, dt float64, engineOn *bool) error {
	if err := l.State.PwrOut.Update(pwrOutReq, "loco.pwr_out"); err != nil {
		return err
	}
	aux, err := l.State.PwrAux.Get("loco.pwr_aux")
	if err != nil {
		return err
	}
	on := engineOn == nil || *engineOn
	err = l.Powertrain.SolveEnergyConsumption(powertrain.SolveInput{
		PwrOutReq:    pwrOutReq,
		Dt:           dt,
		EngineOn:     on,
		PwrAux:       aux,
		AssertLimits: l.AssertLimits,
	})
	return errors.WithMessagef(err, "%s", l.Kind())
}

func (l *Locomotive) SetCumulative(dt float64) error {
	for _, t := range []struct {
		energy, pwr *stale.Cell[float64]
		loc         string
	}{
		{&l.State.EnergyOut, &l.State.PwrOut, "loco.energy_out"},
		{&l.State.EnergyAux, &l.State.PwrAux, "loco.energy_aux"},
	} {
		p, err := t.pwr.Get(t.loc)
		if err != nil {
			return err
		}
		if err := stale.Increment(t.energy, p*dt, t.loc); err != nil {
			return err
		}
	}
	return l.Powertrain.SetCumulative(dt)
}

func (l *Locomotive) Step() {
	l.State.I.UpdateUnchecked(l.State.I.GetStale() + 1)
	l.Powertrain.Step()
}

func (l *Locomotive) SaveState() {
	if core.ShouldSave(l.saveInterval, l.State.I.GetStale()) {
		l.History = append(l.History, l.State)
	}
	l.Powertrain.SaveState()
}

func (l *Locomotive) CheckAndReset(loc string) error {
	if err := stale.CheckAndResetAll(loc+".loco", &l.State); err != nil {
		return err
	}
	return l.Powertrain.CheckAndReset(loc + ".loco")
}

func (l *Locomotive) EnergyLoss() float64 { return l.Powertrain.EnergyLoss() }

// wire is the persisted shape of a Locomotive.
type wire struct {
	LocoType            powertrain.Type `json:"loco_type" yaml:"loco_type"`
	State               State           `json:"state" yaml:"state"`
	History             []State         `json:"history,omitempty" yaml:"history,omitempty"`
	AssertLimits        bool            `json:"assert_limits" yaml:"assert_limits"`
	PwrAuxOffset        float64         `json:"pwr_aux_offset" yaml:"pwr_aux_offset"`
	PwrAuxTractionCoeff float64         `json:"pwr_aux_traction_coeff" yaml:"pwr_aux_traction_coeff"`
	ForceMax            float64         `json:"force_max" yaml:"force_max"`
	Mass                *float64        `json:"mass,omitempty" yaml:"mass,omitempty"`
	Mu                  *float64        `json:"mu,omitempty" yaml:"mu,omitempty"`
	BallastMass         *float64        `json:"ballast_mass,omitempty" yaml:"ballast_mass,omitempty"`
	BaselineMass        *float64        `json:"baseline_mass,omitempty" yaml:"baseline_mass,omitempty"`
	SaveInterval        *int            `json:"save_interval,omitempty" yaml:"save_interval,omitempty"`
}

func (l *Locomotive) toWire() wire {
	return wire{
		LocoType:            l.Powertrain,
		State:               l.State,
		History:             l.History,
		AssertLimits:        l.AssertLimits,
		PwrAuxOffset:        l.PwrAuxOffset,
		PwrAuxTractionCoeff: l.PwrAuxTractionCoeff,
		ForceMax:            l.forceMax,
		Mass:                l.mass,
		Mu:                  l.mu,
		BallastMass:         l.ballastMass,
		BaselineMass:        l.baselineMass,
		SaveInterval:        l.saveInterval,
	}
}

func (l *Locomotive) fromWire(w wire) error {
	*l = Locomotive{
		Powertrain:          w.LocoType,
		State:               w.State,
		History:             w.History,
		AssertLimits:        w.AssertLimits,
		PwrAuxOffset:        w.PwrAuxOffset,
		PwrAuxTractionCoeff: w.PwrAuxTractionCoeff,
		forceMax:            w.ForceMax,
		mass:                w.Mass,
		mu:                  w.Mu,
		ballastMass:         w.BallastMass,
		baselineMass:        w.BaselineMass,
	}
	if err := l.Init(); err != nil {
		return err
	}
	l.SetSaveInterval(w.SaveInterval)
	return nil
}

func (l Locomotive) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.toWire())
}

func (l *Locomotive) UnmarshalJSON(data []byte) error {
	w := wire{AssertLimits: true}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	return l.fromWire(w)
}

func (l Locomotive) MarshalYAML() (any, error) {
	return l.toWire(), nil
}

func (l *Locomotive) UnmarshalYAML(node *yaml.Node) error {
	w := wire{AssertLimits: true}
	if err := node.Decode(&w); err != nil {
		return err
	}
	return l.fromWire(w)
}
