package powertrain

import (
	"encoding/json"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/railsim/internal/core"
)

// Kind names a powertrain variant. The string values are the tags used in persisted
// object graphs.
type Kind string

const (
	KindConventional    Kind = "ConventionalLoco"
	KindHybrid          Kind = "HybridLoco"
	KindBatteryElectric Kind = "BatteryElectricLoco"
	KindDummy           Kind = "DummyLoco"
)

// Kinds lists every powertrain variant.
var Kinds = []Kind{KindConventional, KindHybrid, KindBatteryElectric, KindDummy}

// Type is a tagged union over the powertrain variants. Exactly one variant pointer is
// set and it matches Kind. The variant cannot change after construction.
type Type struct {
	Kind            Kind             `json:"kind" yaml:"kind"`
	Conventional    *Conventional    `json:"conventional,omitempty" yaml:"conventional,omitempty"`
	Hybrid          *Hybrid          `json:"hybrid,omitempty" yaml:"hybrid,omitempty"`
	BatteryElectric *BatteryElectric `json:"battery_electric,omitempty" yaml:"battery_electric,omitempty"`
	Dummy           *Dummy           `json:"dummy,omitempty" yaml:"dummy,omitempty"`
}

func NewConventional(c *Conventional) Type { return Type{Kind: KindConventional, Conventional: c} }

func NewHybrid(h *Hybrid) Type { return Type{Kind: KindHybrid, Hybrid: h} }

func NewBatteryElectric(b *BatteryElectric) Type {
	return Type{Kind: KindBatteryElectric, BatteryElectric: b}
}

func NewDummy() Type { return Type{Kind: KindDummy, Dummy: &Dummy{}} }

// Validate checks that exactly the variant named by Kind is present.
func (t *Type) Validate() error {
	set := 0
	for _, ok := range []bool{t.Conventional != nil, t.Hybrid != nil, t.BatteryElectric != nil, t.Dummy != nil} {
		if ok {
			set++
		}
	}
	if set != 1 {
		return core.Invariantf("powertrain: exactly one variant must be set, got %d", set)
	}
	var match bool
	switch t.Kind {
	case KindConventional:
		match = t.Conventional != nil
	case KindHybrid:
		match = t.Hybrid != nil
	case KindBatteryElectric:
		match = t.BatteryElectric != nil
	case KindDummy:
		match = t.Dummy != nil
	default:
		return core.Invariantf("powertrain: unknown kind %q", t.Kind)
	}
	if !match {
		return core.Invariantf("powertrain: kind %q does not match the populated variant", t.Kind)
	}
	return nil
}

// UnmarshalJSON decodes and validates the union.
func (t *Type) UnmarshalJSON(data []byte) error {
	type plain Type
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*t = Type(p)
	return t.Validate()
}

// UnmarshalYAML decodes and validates the union.
func (t *Type) UnmarshalYAML(node *yaml.Node) error {
	type plain Type
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*t = Type(p)
	return t.Validate()
}

func (t *Type) unknown() error {
	return core.Invariantf("powertrain: unhandled kind %q", t.Kind)
}

// CapabilityInput carries the inputs of a capability query.
type CapabilityInput struct {
	PwrAux     float64
	TrainMass  *float64
	TrainSpeed *float64
	Dt         float64
}

// Capability is one step's max traction power, ramp rate and regen power at the wheels.
type Capability struct {
	PwrOutMax     float64
	PwrRateOutMax float64
	PwrRegenMax   float64
}

// SetCurPwrMaxOut solves the active variant's capability for this step.
func (t *Type) SetCurPwrMaxOut(in CapabilityInput) (Capability, error) {
	var edrv *ElectricDrivetrain
	switch t.Kind {
	case KindConventional:
		if err := t.Conventional.setCurPwrMaxOut(in.PwrAux, in.Dt); err != nil {
			return Capability{}, err
		}
		edrv = &t.Conventional.EDrv
	case KindHybrid:
		mass, speed, err := requireMassSpeed(t.Kind, in.TrainMass, in.TrainSpeed)
		if err != nil {
			return Capability{}, err
		}
		if err := t.Hybrid.setCurPwrMaxOut(in.PwrAux, mass, speed, in.Dt); err != nil {
			return Capability{}, err
		}
		edrv = &t.Hybrid.EDrv
	case KindBatteryElectric:
		mass, speed, err := requireMassSpeed(t.Kind, in.TrainMass, in.TrainSpeed)
		if err != nil {
			return Capability{}, err
		}
		if err := t.BatteryElectric.setCurPwrMaxOut(in.PwrAux, mass, speed, in.Dt); err != nil {
			return Capability{}, err
		}
		edrv = &t.BatteryElectric.EDrv
	case KindDummy:
		return Capability{PwrOutMax: DummyPwr, PwrRateOutMax: DummyPwr, PwrRegenMax: DummyPwr}, nil
	default:
		return Capability{}, t.unknown()
	}
	var c Capability
	var err error
	if c.PwrOutMax, err = edrv.State.PwrMechOutMax.Get("edrv.pwr_mech_out_max"); err != nil {
		return Capability{}, err
	}
	if c.PwrRateOutMax, err = edrv.State.PwrRateOutMax.Get("edrv.pwr_rate_out_max"); err != nil {
		return Capability{}, err
	}
	if c.PwrRegenMax, err = edrv.State.PwrMechRegenMax.Get("edrv.pwr_mech_regen_max"); err != nil {
		return Capability{}, err
	}
	return c, nil
}

// SolveInput carries the inputs of an energy consumption solve.
type SolveInput struct {
	PwrOutReq    float64
	Dt           float64
	EngineOn     bool
	PwrAux       float64
	AssertLimits bool
}

// SolveEnergyConsumption routes the requested wheel power through the active variant.
func (t *Type) SolveEnergyConsumption(in SolveInput) error {
	switch t.Kind {
	case KindConventional:
		return t.Conventional.solveEnergyConsumption(in.PwrOutReq, in.Dt, in.EngineOn, in.PwrAux, in.AssertLimits)
	case KindHybrid:
		return t.Hybrid.solveEnergyConsumption(in.PwrOutReq, in.Dt, in.PwrAux, in.AssertLimits)
	case KindBatteryElectric:
		return t.BatteryElectric.solveEnergyConsumption(in.PwrOutReq, in.Dt, in.PwrAux, in.AssertLimits)
	case KindDummy:
		return nil
	default:
		return t.unknown()
	}
}

type component interface {
	core.Stepper
	core.StateSaver
	core.CheckResetter
	SetCumulative(dt float64) error
}

func (t *Type) components() ([]component, error) {
	switch t.Kind {
	case KindConventional:
		c := t.Conventional
		return []component{&c.FC, &c.Gen, &c.EDrv}, nil
	case KindHybrid:
		h := t.Hybrid
		return []component{&h.FC, &h.Gen, &h.RES, &h.EDrv}, nil
	case KindBatteryElectric:
		b := t.BatteryElectric
		return []component{&b.RES, &b.EDrv}, nil
	case KindDummy:
		return nil, nil
	default:
		return nil, t.unknown()
	}
}

func (t *Type) Step() {
	cs, _ := t.components()
	for _, c := range cs {
		c.Step()
	}
}

func (t *Type) SaveState() {
	cs, _ := t.components()
	for _, c := range cs {
		c.SaveState()
	}
}

func (t *Type) CheckAndReset(loc string) error {
	cs, err := t.components()
	if err != nil {
		return err
	}
	for _, c := range cs {
		if err := c.CheckAndReset(loc); err != nil {
			return err
		}
	}
	return nil
}

func (t *Type) SetCumulative(dt float64) error {
	cs, err := t.components()
	if err != nil {
		return err
	}
	for _, c := range cs {
		if err := c.SetCumulative(dt); err != nil {
			return err
		}
	}
	return nil
}

// SetSaveInterval cascades the history save interval to every component.
func (t *Type) SetSaveInterval(interval *int) {
	if fc := t.FuelConverter(); fc != nil {
		fc.SaveInterval = interval
	}
	if g := t.Generator(); g != nil {
		g.SaveInterval = interval
	}
	if r := t.RES(); r != nil {
		r.SaveInterval = interval
	}
	if e := t.EDrv(); e != nil {
		e.SaveInterval = interval
	}
}

// EnergyLoss is the cumulative energy lost across all components.
func (t *Type) EnergyLoss() float64 {
	var loss float64
	if fc := t.FuelConverter(); fc != nil {
		loss += fc.State.EnergyLoss.GetStale()
	}
	if g := t.Generator(); g != nil {
		loss += g.State.EnergyLoss.GetStale()
	}
	if r := t.RES(); r != nil {
		loss += r.State.EnergyLoss.GetStale()
	}
	if e := t.EDrv(); e != nil {
		loss += e.State.EnergyLoss.GetStale()
	}
	return loss
}

// PwrRated is the nameplate power of the energy sources.
func (t *Type) PwrRated() (float64, error) {
	switch t.Kind {
	case KindConventional:
		return t.Conventional.FC.PwrOutMax, nil
	case KindHybrid:
		return t.Hybrid.FC.PwrOutMax + t.Hybrid.RES.PwrOutMax, nil
	case KindBatteryElectric:
		return t.BatteryElectric.RES.PwrOutMax, nil
	case KindDummy:
		return DummyPwr, nil
	default:
		return 0, t.unknown()
	}
}

// PwrDynBrakeMax is the dynamic braking capability at the wheels.
func (t *Type) PwrDynBrakeMax() float64 {
	if e := t.EDrv(); e != nil {
		return e.PwrOutMax
	}
	return DummyPwr
}

// Mass is the total of the component masses: nil when none are set, an invariant
// error when only some are.
func (t *Type) Mass() (*float64, error) {
	switch t.Kind {
	case KindConventional:
		return t.Conventional.mass()
	case KindHybrid:
		return t.Hybrid.mass()
	case KindBatteryElectric:
		return t.BatteryElectric.mass()
	case KindDummy:
		return t.Dummy.mass()
	default:
		return nil, t.unknown()
	}
}

// ExpungeMassFields clears every component mass.
func (t *Type) ExpungeMassFields() {
	switch t.Kind {
	case KindConventional:
		t.Conventional.expungeMassFields()
	case KindHybrid:
		t.Hybrid.expungeMassFields()
	case KindBatteryElectric:
		t.BatteryElectric.expungeMassFields()
	}
}

func (t *Type) FuelConverter() *FuelConverter {
	switch t.Kind {
	case KindConventional:
		return &t.Conventional.FC
	case KindHybrid:
		return &t.Hybrid.FC
	}
	return nil
}

func (t *Type) Generator() *Generator {
	switch t.Kind {
	case KindConventional:
		return &t.Conventional.Gen
	case KindHybrid:
		return &t.Hybrid.Gen
	}
	return nil
}

func (t *Type) RES() *ReversibleEnergyStorage {
	switch t.Kind {
	case KindHybrid:
		return &t.Hybrid.RES
	case KindBatteryElectric:
		return &t.BatteryElectric.RES
	}
	return nil
}

// Buffers is the storage control of variants that have one.
func (t *Type) Buffers() *BufferControls {
	switch t.Kind {
	case KindHybrid:
		return &t.Hybrid.Controls
	case KindBatteryElectric:
		return &t.BatteryElectric.Controls
	}
	return nil
}

func (t *Type) EDrv() *ElectricDrivetrain {
	switch t.Kind {
	case KindConventional:
		return &t.Conventional.EDrv
	case KindHybrid:
		return &t.Hybrid.EDrv
	case KindBatteryElectric:
		return &t.BatteryElectric.EDrv
	}
	return nil
}

// PwrFuel is this step's fuel power, zero for variants without a fuel converter.
func (t *Type) PwrFuel() float64 {
	if fc := t.FuelConverter(); fc != nil {
		return fc.State.PwrFuel.GetStale()
	}
	return 0
}

// PwrRES is this step's storage electrical output, zero without storage.
func (t *Type) PwrRES() float64 {
	if r := t.RES(); r != nil {
		return r.State.PwrOutElectrical.GetStale()
	}
	return 0
}
