package powertrain

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/railsim/internal/core"
	"github.com/san-kum/railsim/internal/stale"
	"github.com/san-kum/railsim/internal/units"
)

func ptr(v float64) *float64 { return &v }

// advance runs one full step of the powertrain at the given wheel power.
func advance(t *testing.T, pt *Type, req float64, mass, speed *float64) {
	t.Helper()
	if err := pt.CheckAndReset("loco"); err != nil {
		t.Fatalf("check and reset: %v", err)
	}
	pt.Step()
	if _, err := pt.SetCurPwrMaxOut(CapabilityInput{PwrAux: 1e4, TrainMass: mass, TrainSpeed: speed, Dt: 1}); err != nil {
		t.Fatalf("capability: %v", err)
	}
	if err := pt.SolveEnergyConsumption(SolveInput{PwrOutReq: req, Dt: 1, EngineOn: true, PwrAux: 1e4, AssertLimits: true}); err != nil {
		t.Fatalf("solve: %v", err)
	}
	if err := pt.SetCumulative(1); err != nil {
		t.Fatalf("cumulative: %v", err)
	}
	pt.SaveState()
}

func TestCurve(t *testing.T) {
	c, err := NewCurve([]float64{0, 1}, []float64{0.5, 0.9})
	if err != nil {
		t.Fatalf("new curve: %v", err)
	}

	tests := []struct {
		x    float64
		want float64
	}{
		{-1, 0.5},
		{0, 0.5},
		{0.5, 0.7},
		{1, 0.9},
		{2, 0.9},
	}
	for _, tt := range tests {
		got, err := c.At(tt.x)
		if err != nil {
			t.Fatalf("At(%v): %v", tt.x, err)
		}
		if math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("At(%v) = %v, want %v", tt.x, got, tt.want)
		}
	}
	if c.Min() != 0.5 {
		t.Errorf("expected min 0.5, got %v", c.Min())
	}

	k := ConstCurve(0.8)
	if v, _ := k.At(123); v != 0.8 {
		t.Errorf("expected constant 0.8, got %v", v)
	}

	if _, err := NewCurve([]float64{0, 1}, []float64{0.5, 1.2}); !errors.Is(err, core.ErrInvariant) {
		t.Errorf("expected invariant error for efficiency above 1, got %v", err)
	}
	if _, err := NewCurve([]float64{0}, nil); !errors.Is(err, core.ErrInvariant) {
		t.Errorf("expected invariant error for mismatched lengths, got %v", err)
	}
}

func TestCurveMaxOut(t *testing.T) {
	c, err := NewCurve([]float64{0, 1}, []float64{0.5, 0.9})
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"no input", 0, 0},
		{"input covers rated output", 2e6, 1e6},
		// out/(0.5+0.4*out/1e6) = 1e6
		{"operating point", 1e6, 1e6 / 1.2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.MaxOut(tt.in, 1e6, 1e6)
			if err != nil {
				t.Fatal(err)
			}
			if math.Abs(got-tt.want) > 1e-3 {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestFuelConverterRamp(t *testing.T) {
	fc := DefaultFuelConverter()
	if err := fc.CheckAndReset("t"); err != nil {
		t.Fatal(err)
	}
	if err := fc.SetCurPwrOutMax(1); err != nil {
		t.Fatal(err)
	}
	got, _ := fc.State.PwrOutMax.Get("t")
	if got != fc.PwrOutMaxInit {
		t.Errorf("expected init power %v from rest, got %v", fc.PwrOutMaxInit, got)
	}

	fc = DefaultFuelConverter()
	fc.State.PwrBrake = stale.New(1e6)
	if err := fc.CheckAndReset("t"); err != nil {
		t.Fatal(err)
	}
	if err := fc.SetCurPwrOutMax(2); err != nil {
		t.Fatal(err)
	}
	got, _ = fc.State.PwrOutMax.Get("t")
	want := 1e6 + fc.RampRate()*2
	if math.Abs(got-want) > 1e-6 {
		t.Errorf("expected ramped power %v, got %v", want, got)
	}
}

func TestFuelConverterEngineOff(t *testing.T) {
	fc := DefaultFuelConverter()
	_ = fc.CheckAndReset("t")
	_ = fc.SetCurPwrOutMax(1)
	err := fc.SolveEnergyConsumption(1e5, 1, false, true)
	if !errors.Is(err, core.ErrInvariant) {
		t.Errorf("expected invariant error with engine off, got %v", err)
	}
}

func TestElectricDrivetrainRegenSplit(t *testing.T) {
	e := DefaultElectricDrivetrain()
	_ = e.CheckAndReset("t")
	if err := e.SetCurPwrMaxOut(1e6, ptr(2e5)); err != nil {
		t.Fatal(err)
	}
	if err := e.SetPwrInReq(-5e5, true); err != nil {
		t.Fatal(err)
	}
	prop, _ := e.State.PwrMechPropOut.Get("t")
	dyn, _ := e.State.PwrMechDynBrake.Get("t")
	elec, _ := e.State.PwrElecPropIn.Get("t")
	if prop != -2e5 {
		t.Errorf("expected regen -2e5, got %v", prop)
	}
	if dyn != 3e5 {
		t.Errorf("expected dynamic brake 3e5, got %v", dyn)
	}
	if elec >= 0 || elec < prop {
		t.Errorf("expected regen electrical power in (%v, 0), got %v", prop, elec)
	}
}

func TestTypeValidate(t *testing.T) {
	tests := []struct {
		name    string
		pt      Type
		wantErr bool
	}{
		{"conventional", NewConventional(DefaultConventional()), false},
		{"hybrid", NewHybrid(DefaultHybrid()), false},
		{"battery electric", NewBatteryElectric(DefaultBatteryElectric()), false},
		{"dummy", NewDummy(), false},
		{"empty", Type{Kind: KindDummy}, true},
		{"mismatch", Type{Kind: KindHybrid, Conventional: DefaultConventional()}, true},
		{"two variants", Type{Kind: KindDummy, Dummy: &Dummy{}, Conventional: DefaultConventional()}, true},
		{"unknown kind", Type{Kind: "SteamLoco", Dummy: &Dummy{}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.pt.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, core.ErrInvariant) {
				t.Errorf("expected invariant error, got %v", err)
			}
		})
	}
}

func TestTypeDecodeValidates(t *testing.T) {
	tests := []struct {
		name    string
		decode  func([]byte, any) error
		doc     string
		wantErr bool
	}{
		{"json dummy", json.Unmarshal, `{"kind":"DummyLoco","dummy":{}}`, false},
		{"json mismatch", json.Unmarshal, `{"kind":"HybridLoco","dummy":{}}`, true},
		{"yaml dummy", yaml.Unmarshal, "kind: DummyLoco\ndummy: {}\n", false},
		{"yaml mismatch", yaml.Unmarshal, "kind: HybridLoco\ndummy: {}\n", true},
		{"yaml no variant", yaml.Unmarshal, "kind: DummyLoco\n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var pt Type
			err := tt.decode([]byte(tt.doc), &pt)
			if tt.wantErr {
				if !errors.Is(err, core.ErrInvariant) {
					t.Errorf("expected invariant error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if pt.Kind != KindDummy || pt.Dummy == nil {
				t.Errorf("unexpected decode %+v", pt)
			}
		})
	}
}

func TestConventionalWalk(t *testing.T) {
	pt := NewConventional(DefaultConventional())
	for _, req := range []float64{0, 1e5, 2e5, 2.5e5, -1e5} {
		advance(t, &pt, req, nil, nil)
	}
	fc := pt.FuelConverter()
	if fc.State.I.GetStale() != 5 {
		t.Errorf("expected step 5, got %d", fc.State.I.GetStale())
	}
	if fc.State.EnergyFuel.GetStale() <= fc.State.EnergyBrake.GetStale() {
		t.Error("expected fuel energy to exceed brake energy")
	}
	if pt.EnergyLoss() <= 0 {
		t.Error("expected positive energy loss")
	}
	if dyn := pt.EDrv().State.PwrMechDynBrake.GetStale(); dyn != 1e5 {
		t.Errorf("expected conventional braking to be all dynamic, got %v", dyn)
	}
}

func TestConventionalRampsToRatedPower(t *testing.T) {
	pt := NewConventional(DefaultConventional())
	last := 0.0
	for i := 1; i <= 60; i++ {
		if err := pt.CheckAndReset("loco"); err != nil {
			t.Fatal(err)
		}
		pt.Step()
		c, err := pt.SetCurPwrMaxOut(CapabilityInput{PwrAux: 1e4, Dt: 1})
		if err != nil {
			t.Fatal(err)
		}
		if c.PwrOutMax < last {
			t.Fatalf("step %d: capability %v below last output %v", i, c.PwrOutMax, last)
		}
		if err := pt.SolveEnergyConsumption(SolveInput{PwrOutReq: c.PwrOutMax, Dt: 1, EngineOn: true, PwrAux: 1e4, AssertLimits: true}); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if err := pt.SetCumulative(1); err != nil {
			t.Fatal(err)
		}
		pt.SaveState()
		last = c.PwrOutMax
	}
	if last < 2.5e6 {
		t.Errorf("expected to ramp past 2.5 MW, stalled at %v", last)
	}
}

func TestConventionalPowerLimit(t *testing.T) {
	pt := NewConventional(DefaultConventional())
	_ = pt.CheckAndReset("loco")
	capab, err := pt.SetCurPwrMaxOut(CapabilityInput{Dt: 1})
	if err != nil {
		t.Fatal(err)
	}
	if capab.PwrRegenMax != 0 {
		t.Errorf("expected no regen for conventional, got %v", capab.PwrRegenMax)
	}
	err = pt.SolveEnergyConsumption(SolveInput{PwrOutReq: capab.PwrOutMax * 1.01, Dt: 1, EngineOn: true, AssertLimits: true})
	if !errors.Is(err, core.ErrPowerLimit) {
		t.Errorf("expected power limit error, got %v", err)
	}
}

func TestBufferedCapabilityMonotonic(t *testing.T) {
	const trainMass = 1e7
	vDisch := DefaultBufferControls().SpeedSocDischBuffer

	tests := []struct {
		name  string
		kind  Kind
		soc   float64
		regen bool
	}{
		{"bel discharge", KindBatteryElectric, 0.2, false},
		{"bel regen", KindBatteryElectric, 0.85, true},
		{"hybrid discharge", KindHybrid, 0.2, false},
		{"hybrid regen", KindHybrid, 0.85, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev := math.NaN()
			for speed := 0.0; speed <= vDisch+5; speed += 0.5 {
				var pt Type
				if tt.kind == KindHybrid {
					pt = NewHybrid(DefaultHybrid())
				} else {
					pt = NewBatteryElectric(DefaultBatteryElectric())
				}
				pt.RES().State.Soc = stale.New(tt.soc)
				_ = pt.CheckAndReset("loco")
				res := pt.RES()
				if _, err := pt.SetCurPwrMaxOut(CapabilityInput{TrainMass: ptr(trainMass), TrainSpeed: ptr(speed), Dt: 1}); err != nil {
					t.Fatal(err)
				}
				var cur float64
				if tt.regen {
					cur = res.State.PwrChargeMax.GetStale()
				} else {
					cur = res.State.PwrDischMax.GetStale()
				}
				if !math.IsNaN(prev) {
					if tt.regen && cur > prev+1e-6 {
						t.Fatalf("charge capability rose from %v to %v at %v m/s", prev, cur, speed)
					}
					if !tt.regen && cur < prev-1e-6 {
						t.Fatalf("discharge capability fell from %v to %v at %v m/s", prev, cur, speed)
					}
				}
				prev = cur
			}
		})
	}
}

func TestBufferReducesCapability(t *testing.T) {
	capAt := func(speed float64) Capability {
		pt := NewBatteryElectric(DefaultBatteryElectric())
		pt.RES().State.Soc = stale.New(0.2)
		_ = pt.CheckAndReset("loco")
		c, err := pt.SetCurPwrMaxOut(CapabilityInput{TrainMass: ptr(1e7), TrainSpeed: ptr(speed), Dt: 1})
		if err != nil {
			t.Fatal(err)
		}
		return c
	}
	slow, fast := capAt(0), capAt(50*units.MPH)
	if slow.PwrOutMax >= fast.PwrOutMax {
		t.Errorf("expected buffered capability at rest %v below capability above buffer speed %v", slow.PwrOutMax, fast.PwrOutMax)
	}
}

func TestBufferedVariantsRequireMassAndSpeed(t *testing.T) {
	for _, pt := range []Type{NewHybrid(DefaultHybrid()), NewBatteryElectric(DefaultBatteryElectric())} {
		_, err := pt.SetCurPwrMaxOut(CapabilityInput{TrainSpeed: ptr(1), Dt: 1})
		if !errors.Is(err, core.ErrInvariant) {
			t.Errorf("%s: expected invariant error without mass, got %v", pt.Kind, err)
		}
	}
}

func TestBatteryElectricWalk(t *testing.T) {
	pt := NewBatteryElectric(DefaultBatteryElectric())
	pt.RES().State.Soc = stale.New(0.5)
	soc0 := 0.5
	for _, req := range []float64{1e6, 1e6, 1e6} {
		advance(t, &pt, req, ptr(1e7), ptr(20))
	}
	if pt.RES().State.Soc.GetStale() >= soc0 {
		t.Error("expected soc to drop while discharging")
	}
	if pt.PwrFuel() != 0 {
		t.Error("expected no fuel use for battery electric")
	}
	advance(t, &pt, -5e5, ptr(1e7), ptr(20))
	if pt.PwrRES() >= 0 {
		t.Errorf("expected storage to charge under regen, got %v", pt.PwrRES())
	}
}

func TestHybridWalk(t *testing.T) {
	pt := NewHybrid(DefaultHybrid())
	for _, req := range []float64{5e5, 1.5e6, 1.5e6} {
		advance(t, &pt, req, ptr(1e7), ptr(20))
	}
	if pt.PwrFuel() <= 0 {
		t.Error("expected hybrid to burn fuel when demand exceeds storage share")
	}
	if pt.PwrRES() <= 0 {
		t.Error("expected hybrid storage to discharge")
	}
}

func TestDummy(t *testing.T) {
	pt := NewDummy()
	c, err := pt.SetCurPwrMaxOut(CapabilityInput{Dt: 1})
	if err != nil {
		t.Fatal(err)
	}
	if c.PwrOutMax != DummyPwr || c.PwrRegenMax != DummyPwr || c.PwrRateOutMax != DummyPwr {
		t.Errorf("expected unlimited capability, got %+v", c)
	}
	if m, err := pt.Mass(); err != nil || m != nil {
		t.Errorf("expected no derived mass, got %v, %v", m, err)
	}
}

func TestMassAllOrNone(t *testing.T) {
	c := DefaultConventional()
	pt := NewConventional(c)
	if m, err := pt.Mass(); err != nil || m != nil {
		t.Fatalf("expected nil mass, got %v, %v", m, err)
	}
	c.FC.Mass = ptr(1e4)
	if _, err := pt.Mass(); !errors.Is(err, core.ErrInvariant) {
		t.Errorf("expected invariant error for partial masses, got %v", err)
	}
	c.Gen.Mass = ptr(5e3)
	m, err := pt.Mass()
	if err != nil || *m != 1.5e4 {
		t.Errorf("expected 1.5e4, got %v, %v", m, err)
	}
	pt.ExpungeMassFields()
	if m, _ := pt.Mass(); m != nil {
		t.Errorf("expected nil mass after expunge, got %v", *m)
	}
}
