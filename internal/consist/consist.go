// Package consist models a set of locomotives controlled as a unit: it splits one
// requested power across them, aggregates their limits and checks the power balance.
package consist

import (
	"encoding/json"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/railsim/internal/core"
	"github.com/san-kum/railsim/internal/locomotive"
	"github.com/san-kum/railsim/internal/powertrain"
)

// Consist owns an ordered list of locomotives. Order matters for RESGreedy and
// FrontAndBack.
type Consist struct {
	Locos   []*locomotive.Locomotive
	Control Control
	State   State
	History []State

	assertLimits bool
	saveInterval *int
}

var (
	_ core.Stepper        = (*Consist)(nil)
	_ core.StateSaver     = (*Consist)(nil)
	_ core.CheckResetter  = (*Consist)(nil)
	_ core.SaveIntervaler = (*Consist)(nil)
)

// New builds a consist and validates the mass of its locomotives.
func New(locos []*locomotive.Locomotive, saveInterval *int, control Control) (*Consist, error) {
	c := &Consist{
		Locos:        locos,
		Control:      control,
		assertLimits: true,
	}
	if err := c.Init(); err != nil {
		return nil, err
	}
	c.SetSaveInterval(saveInterval)
	return c, nil
}

// Default returns a conventional, a battery electric and a hybrid locomotive followed
// by three more conventional locomotives.
func Default() *Consist {
	c, err := New([]*locomotive.Locomotive{
		locomotive.Default(),
		locomotive.DefaultBatteryElectric(),
		locomotive.DefaultHybrid(),
		locomotive.Default(),
		locomotive.Default(),
		locomotive.Default(),
	}, core.Interval(1), RESGreedy)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Consist) Init() error {
	if len(c.Locos) == 0 {
		return core.Invariantf("consist: at least one locomotive is required")
	}
	if _, err := ParseControl(string(c.Control)); err != nil {
		return err
	}
	if _, err := c.Mass(); err != nil {
		return err
	}
	c.SetPwrDynBrakeMax()
	return nil
}

func (c *Consist) AssertLimits() bool { return c.assertLimits }

// SetAssertLimits sets limit assertion on the consist and every locomotive.
func (c *Consist) SetAssertLimits(v bool) {
	c.assertLimits = v
	for _, l := range c.Locos {
		l.AssertLimits = v
	}
}

func (c *Consist) SaveInterval() *int { return c.saveInterval }

// SetSaveInterval sets the history interval and cascades it to every locomotive.
func (c *Consist) SetSaveInterval(interval *int) {
	c.saveInterval = interval
	for _, l := range c.Locos {
		l.SetSaveInterval(interval)
	}
}

// NResEquipped counts locomotives with reversible energy storage.
func (c *Consist) NResEquipped() int {
	n := 0
	for _, l := range c.Locos {
		if l.Powertrain.RES() != nil {
			n++
		}
	}
	return n
}

// ForceMax is the sum of locomotive tractive force limits.
func (c *Consist) ForceMax() (float64, error) {
	var total float64
	for i, l := range c.Locos {
		f, err := l.ForceMax()
		if err != nil {
			return 0, errors.WithMessagef(err, "loco idx: %d, loco type: %s", i, l.Kind())
		}
		total += f
	}
	return total, nil
}

// Mass is the sum of locomotive masses. Either every locomotive has a mass or none
// does.
func (c *Consist) Mass() (*float64, error) {
	var total float64
	set := 0
	for i, l := range c.Locos {
		m, err := l.Mass()
		if err != nil {
			return nil, errors.WithMessagef(err, "loco idx: %d", i)
		}
		if m != nil {
			total += *m
			set++
		}
	}
	switch set {
	case 0:
		return nil, nil
	case len(c.Locos):
		return &total, nil
	default:
		return nil, core.Invariantf("consist: locomotive masses must all be set or all be nil (%d of %d set)", set, len(c.Locos))
	}
}

func (c *Consist) PwrRated() float64 {
	var total float64
	for _, l := range c.Locos {
		total += l.PwrRated()
	}
	return total
}

// EnergyFuel is the cumulative fuel energy over all locomotives.
func (c *Consist) EnergyFuel() float64 {
	var total float64
	for _, l := range c.Locos {
		if fc := l.Powertrain.FuelConverter(); fc != nil {
			total += fc.State.EnergyFuel.GetStale()
		}
	}
	return total
}

// NetEnergyRES is the cumulative chemical energy drawn from all storage.
func (c *Consist) NetEnergyRES() float64 {
	var total float64
	for _, l := range c.Locos {
		if r := l.Powertrain.RES(); r != nil {
			total += r.State.EnergyOutChemical.GetStale()
		}
	}
	return total
}

func (c *Consist) EnergyLoss() float64 {
	var total float64
	for _, l := range c.Locos {
		total += l.EnergyLoss()
	}
	return total
}

func (c *Consist) SetPwrAux(engineOn *bool) error {
	for i, l := range c.Locos {
		if err := l.SetPwrAux(engineOn); err != nil {
			return errors.WithMessagef(err, "loco idx: %d", i)
		}
	}
	return nil
}

// SetPwrDynBrakeMax sums the static dynamic braking limits.
func (c *Consist) SetPwrDynBrakeMax() {
	var total float64
	for _, l := range c.Locos {
		total += l.Powertrain.PwrDynBrakeMax()
	}
	c.State.PwrDynBrakeMax = total
}

// SetCurPwrMaxOut solves each locomotive's capability and aggregates it. Train mass
// is apportioned to storage-equipped locomotives by their share of usable storage
// energy so that their buffers cover the whole train.
func (c *Consist) SetCurPwrMaxOut(trainMass, trainSpeed *float64, dt float64) error {
	var usableTotal float64
	for _, l := range c.Locos {
		if r := l.Powertrain.RES(); r != nil {
			usableTotal += r.EnergyUsable()
		}
	}
	var s State
	for i, l := range c.Locos {
		var mass *float64
		if usableTotal > 0 && trainMass != nil {
			var usable float64
			if r := l.Powertrain.RES(); r != nil {
				usable = r.EnergyUsable()
			}
			m := usable / usableTotal * *trainMass
			mass = &m
		}
		if err := l.SetCurPwrMaxOut(mass, trainSpeed, dt); err != nil {
			return errors.WithMessagef(err, "loco idx: %d, loco type: %s", i, l.Kind())
		}
		out, err := l.State.PwrOutMax.Get("consist.loco.pwr_out_max")
		if err != nil {
			return err
		}
		rate, err := l.State.PwrRateOutMax.Get("consist.loco.pwr_rate_out_max")
		if err != nil {
			return err
		}
		regen, err := l.State.PwrRegenMax.Get("consist.loco.pwr_regen_max")
		if err != nil {
			return err
		}
		s.PwrOutMax += out
		s.PwrRateOutMax += rate
		s.PwrRegenMax += regen
		switch l.Kind() {
		case powertrain.KindHybrid, powertrain.KindBatteryElectric:
			s.PwrOutMaxReves += out
		case powertrain.KindDummy:
			s.PwrOutMaxReves += powertrain.DummyPwr
		}
	}
	c.State.PwrOutMax = s.PwrOutMax
	c.State.PwrRateOutMax = s.PwrRateOutMax
	c.State.PwrRegenMax = s.PwrRegenMax
	c.State.PwrOutMaxReves = s.PwrOutMaxReves
	c.State.PwrOutMaxNonReves = s.PwrOutMax - s.PwrOutMaxReves
	return nil
}

// SolveEnergyConsumption distributes pwrOutReq across the locomotives and solves
// each. With limits asserted, a request beyond capability or an allocation that does
// not sum to the request fails. Otherwise the request is clamped to capability and
// the shortfall is recorded.
func (c *Consist) SolveEnergyConsumption(pwrOutReq float64, trainMass, trainSpeed *float64, dt float64, engineOn *bool) error {
	s := &c.State
	if c.assertLimits {
		if !core.AlmostLE(-pwrOutReq, s.PwrDynBrakeMax, 0) {
			return core.Limitf("consist: braking power %.5f MW exceeds max dynamic brake power %.5f MW", -pwrOutReq/1e6, s.PwrDynBrakeMax/1e6)
		}
		if !core.AlmostLE(pwrOutReq, s.PwrOutMax, 0) {
			return core.Limitf("consist: power %.5f MW exceeds max power %.5f MW", pwrOutReq/1e6, s.PwrOutMax/1e6)
		}
	}

	s.PwrOutReq = pwrOutReq
	s.PwrOutDeficit = max(0, pwrOutReq-s.PwrOutMaxReves)
	s.PwrRegenDeficit = max(0, -pwrOutReq-s.PwrRegenMax)
	c.SetPwrDynBrakeMax()

	target := pwrOutReq
	if !c.assertLimits {
		target = core.Clamp(pwrOutReq, -s.PwrDynBrakeMax, s.PwrOutMax)
	}
	s.PwrOutUnmet = max(pwrOutReq-target, target-pwrOutReq)

	shares := make([]Share, len(c.Locos))
	for i, l := range c.Locos {
		shares[i] = Share{
			Pos: l.State.PwrOutMax.GetStale(),
			Neg: l.Powertrain.PwrDynBrakeMax(),
			RES: l.Powertrain.RES() != nil,
		}
	}
	vec, err := c.Control.Distribute(target, shares)
	if err != nil {
		return err
	}
	s.PwrOut = floats.Sum(vec)
	if c.assertLimits && !core.AlmostEq(s.PwrOutReq, s.PwrOut, 0) {
		return errors.Wrapf(core.ErrBalance, "consist: requested %.6f MW, distributed %.6f MW, deficit %.6f MW, allocation %v",
			s.PwrOutReq/1e6, s.PwrOut/1e6, s.PwrOutDeficit/1e6, vec)
	}

	for i, l := range c.Locos {
		if err := l.SolveEnergyConsumption(vec[i], dt, engineOn); err != nil {
			return errors.WithMessagef(err, "loco idx: %d, loco type: %s", i, l.Kind())
		}
	}

	s.PwrFuel, s.PwrReves = 0, 0
	for _, l := range c.Locos {
		s.PwrFuel += l.Powertrain.PwrFuel()
		if r := l.Powertrain.RES(); r != nil {
			s.PwrReves += r.State.PwrOutChemical.GetStale()
		}
	}

	s.EnergyOut += s.PwrOut * dt
	if s.PwrOut >= 0 {
		s.EnergyOutPos += s.PwrOut * dt
	} else {
		s.EnergyOutNeg -= s.PwrOut * dt
	}
	s.EnergyFuel += s.PwrFuel * dt
	s.EnergyRes += s.PwrReves * dt
	return nil
}

func (c *Consist) SetCumulative(dt float64) error {
	for i, l := range c.Locos {
		if err := l.SetCumulative(dt); err != nil {
			return errors.WithMessagef(err, "loco idx: %d", i)
		}
	}
	return nil
}

func (c *Consist) Step() {
	for _, l := range c.Locos {
		l.Step()
	}
	c.State.I++
}

func (c *Consist) SaveState() {
	if !core.ShouldSave(c.saveInterval, c.State.I) {
		return
	}
	c.History = append(c.History, c.State)
	for _, l := range c.Locos {
		l.SaveState()
	}
}

func (c *Consist) CheckAndReset(loc string) error {
	for i, l := range c.Locos {
		if err := l.CheckAndReset(loc + ".consist"); err != nil {
			return errors.WithMessagef(err, "loco idx: %d", i)
		}
	}
	return nil
}

type wire struct {
	LocoVec      []*locomotive.Locomotive `json:"loco_vec" yaml:"loco_vec"`
	Pdct         Control                  `json:"pdct" yaml:"pdct"`
	AssertLimits bool                     `json:"assert_limits" yaml:"assert_limits"`
	State        State                    `json:"state" yaml:"state"`
	History      []State                  `json:"history,omitempty" yaml:"history,omitempty"`
	SaveInterval *int                     `json:"save_interval,omitempty" yaml:"save_interval,omitempty"`
}

func (c *Consist) toWire() wire {
	return wire{
		LocoVec:      c.Locos,
		Pdct:         c.Control,
		AssertLimits: c.assertLimits,
		State:        c.State,
		History:      c.History,
		SaveInterval: c.saveInterval,
	}
}

func (c *Consist) fromWire(w wire) error {
	*c = Consist{
		Locos:   w.LocoVec,
		Control: w.Pdct,
		State:   w.State,
		History: w.History,
	}
	if err := c.Init(); err != nil {
		return err
	}
	c.SetAssertLimits(w.AssertLimits)
	c.SetSaveInterval(w.SaveInterval)
	return nil
}

func (c Consist) MarshalJSON() ([]byte, error) { return json.Marshal(c.toWire()) }

func (c *Consist) UnmarshalJSON(data []byte) error {
	w := wire{AssertLimits: true, Pdct: RESGreedy}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	return c.fromWire(w)
}

func (c Consist) MarshalYAML() (any, error) { return c.toWire(), nil }

func (c *Consist) UnmarshalYAML(node *yaml.Node) error {
	w := wire{AssertLimits: true, Pdct: RESGreedy}
	if err := node.Decode(&w); err != nil {
		return err
	}
	return c.fromWire(w)
}
