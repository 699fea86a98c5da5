package train

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/san-kum/railsim/internal/core"
	"github.com/san-kum/railsim/internal/trace"
	"github.com/san-kum/railsim/internal/units"
)

func TestDefaultPath(t *testing.T) {
	path, err := DefaultPath()
	if err != nil {
		t.Fatalf("default path: %v", err)
	}

	want := []SpeedLimit{{Offset: 0, Limit: 25}, {Offset: 15_000, Limit: 22}}
	if diff := cmp.Diff(want, path.SpeedPoints); diff != "" {
		t.Errorf("speed points (-want +got):\n%s", diff)
	}
	if path.OffsetBegin() != 0 || path.OffsetEnd() != 20_000 {
		t.Errorf("path spans [%v, %v], want [0, 20000]", path.OffsetBegin(), path.OffsetEnd())
	}

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"grade ahead of breakpoint", path.Grade(4_000, core.Fwd), 0.002},
		{"grade behind breakpoint", path.Grade(4_000, core.Bwd), 0},
		{"grade on second link", path.Grade(12_000, core.Fwd), -0.001},
		{"curve", path.Curve(12_200, core.Fwd), 3e-4},
		{"elevation mid climb", path.Elev(5_000), 2},
		{"elevation at top", path.Elev(7_000), 4},
		{"elevation at end", path.Elev(20_000), -6},
		{"speed limit", path.SpeedLimitAt(16_000), 22},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if math.Abs(tt.got-tt.want) > 1e-9 {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}

	idx, in := path.LinkAt(12_000)
	if idx != 2 || math.Abs(in-2_000) > 1e-9 {
		t.Errorf("LinkAt(12000) = (%d, %v), want (2, 2000)", idx, in)
	}
	idx, in = path.LinkAt(20_000)
	if idx != 2 || math.Abs(in-10_000) > 1e-9 {
		t.Errorf("LinkAt(20000) = (%d, %v), want (2, 10000)", idx, in)
	}
}

func TestSpeedSetSelection(t *testing.T) {
	p := DefaultParams()
	p.TrainType = Passenger
	path, err := NewPathTpc(DefaultNetwork(), trace.LinkPath{1, 2}, p)
	if err != nil {
		t.Fatal(err)
	}
	want := []SpeedLimit{{Offset: 0, Limit: 25}, {Offset: 10_000, Limit: 35}}
	if diff := cmp.Diff(want, path.SpeedPoints); diff != "" {
		t.Errorf("passenger speed points (-want +got):\n%s", diff)
	}
}

func TestSpeedSetApplies(t *testing.T) {
	p := DefaultParams()
	tests := []struct {
		name string
		set  SpeedSet
		want bool
	}{
		{"unconditional", SpeedSet{}, true},
		{"other train type", SpeedSet{TrainType: Passenger}, false},
		{"heavy train", SpeedSet{SpeedParams: []SpeedParam{{LimitVal: 1e6, LimitType: LimitMassTotal, CompareType: CompareGreaterThan}}}, true},
		{"light train only", SpeedSet{SpeedParams: []SpeedParam{{LimitVal: 1e6, LimitType: LimitMassTotal, CompareType: CompareLessThan}}}, false},
		{"axle count", SpeedSet{SpeedParams: []SpeedParam{{LimitVal: 400, LimitType: LimitAxleCount, CompareType: CompareEqual}}}, true},
		{"every param must hold", SpeedSet{SpeedParams: []SpeedParam{
			{LimitVal: 400, LimitType: LimitAxleCount, CompareType: CompareGreaterOrEqual},
			{LimitVal: 100 * units.Ton, LimitType: LimitMassPerBrake, CompareType: CompareLessOrEqual},
		}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.SpeedSetApplies(&tt.set); got != tt.want {
				t.Errorf("SpeedSetApplies = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewPathTpcErrors(t *testing.T) {
	tests := []struct {
		name    string
		network Network
		path    trace.LinkPath
	}{
		{"missing link", DefaultNetwork(), trace.LinkPath{1, 3}},
		{"reserved index", DefaultNetwork(), trace.LinkPath{0}},
		{"unsorted grades", Network{{
			Idx: 1, Length: 100,
			Grades:    []Breakpoint{{0, 0}, {50, 0.01}, {40, 0}},
			Curves:    []Breakpoint{{0, 0}},
			SpeedSets: []SpeedSet{{Limits: []SpeedLimit{{0, 10}}}},
		}}, trace.LinkPath{1}},
		{"no applicable speed set", Network{{
			Idx: 1, Length: 100,
			Grades:    []Breakpoint{{0, 0}},
			Curves:    []Breakpoint{{0, 0}},
			SpeedSets: []SpeedSet{{TrainType: Commuter, Limits: []SpeedLimit{{0, 10}}}},
		}}, trace.LinkPath{1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPathTpc(tt.network, tt.path, DefaultParams())
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, core.ErrInvariant) && !errors.Is(err, core.ErrTraceData) {
				t.Errorf("unexpected error class: %v", err)
			}
		})
	}
}

func splitGradePath(t *testing.T) *PathTpc {
	t.Helper()
	path, err := NewPathTpc(Network{{
		Idx:       1,
		Length:    1_000,
		Grades:    []Breakpoint{{0, 0}, {500, 0.01}},
		Curves:    []Breakpoint{{0, 0}},
		SpeedSets: []SpeedSet{{Limits: []SpeedLimit{{0, 10}}}},
	}}, trace.LinkPath{1}, DefaultParams())
	if err != nil {
		t.Fatal(err)
	}
	return path
}

func TestResistanceMethods(t *testing.T) {
	path := splitGradePath(t)
	p := DefaultParams()
	p.Length = 100
	const mass = 1e6
	weight := mass * units.Gravity

	tests := []struct {
		name      string
		method    Method
		offset    float64
		wantGrade float64
	}{
		{"point on flat", Point, 400, 0},
		{"strap on flat", Strap, 400, 0},
		{"point on climb", Point, 550, 0.01},
		{"strap straddling", Strap, 550, 0.005},
		{"strap fully on climb", Strap, 700, 0.01},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := DefaultRes()
			r.Method = tt.method
			f, err := r.Calc(path, &p, mass, tt.offset, 10, core.Fwd)
			if err != nil {
				t.Fatal(err)
			}
			want := weight * math.Sin(math.Atan(tt.wantGrade))
			if math.Abs(f.Grade-want) > 1e-6 {
				t.Errorf("grade force = %v, want %v", f.Grade, want)
			}
			if math.Abs(f.Rolling-0.0008*weight) > 1e-6 {
				t.Errorf("rolling = %v", f.Rolling)
			}
			if math.Abs(f.Bearing-(40e3+400*10)) > 1e-9 || math.Abs(f.Flange-2000) > 1e-9 {
				t.Errorf("bearing %v flange %v", f.Bearing, f.Flange)
			}
			if math.Abs(f.Net()-(f.Rolling+f.Bearing+f.Flange+f.Grade+f.Curve)) > 1e-9 {
				t.Errorf("net does not sum terms")
			}
		})
	}

	r := Res{Method: "rope"}
	if _, err := r.Calc(path, &p, mass, 100, 0, core.Fwd); !errors.Is(err, core.ErrInvariant) {
		t.Errorf("unknown method: got %v", err)
	}
}

func TestResUpdateStaleness(t *testing.T) {
	path, err := DefaultPath()
	if err != nil {
		t.Fatal(err)
	}
	p := DefaultParams()
	s := NewState(p, 1e6, 10)
	r := DefaultRes()

	if err := s.CheckAndReset("test"); err != nil {
		t.Fatalf("fresh state should pass the first boundary: %v", err)
	}
	if _, err := s.ResNet(); !errors.Is(err, core.ErrStaleRead) {
		t.Fatalf("reading resistance before update: got %v, want stale read", err)
	}
	if err := r.Update(&s, path, &p, core.Fwd); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ResNet(); err != nil {
		t.Fatalf("reading after update: %v", err)
	}
	if err := r.Update(&s, path, &p, core.Fwd); !errors.Is(err, core.ErrDoubleWrite) {
		t.Fatalf("second update in one step: got %v, want double write", err)
	}
}

func TestFricBrakeRamp(t *testing.T) {
	fb := NewFricBrake(1_000, 10, 0.6)
	if got := fb.AdjRampUpTime(); math.Abs(got-6) > 1e-12 {
		t.Errorf("AdjRampUpTime = %v, want 6", got)
	}

	forces := []float64{100, 200, 300}
	for step, want := range forces {
		if err := fb.CheckAndReset("test"); err != nil {
			t.Fatal(err)
		}
		if err := fb.Step(); err != nil {
			t.Fatal(err)
		}
		if err := fb.SetCurForceMaxOut(1); err != nil {
			t.Fatal(err)
		}
		if err := fb.Apply(1e9); err != nil {
			t.Fatal(err)
		}
		if got := fb.State.Force.GetStale(); math.Abs(got-want) > 1e-9 {
			t.Errorf("step %d: force = %v, want %v", step+1, got, want)
		}
	}

	instant := DefaultFricBrake()
	if err := instant.CheckAndReset("test"); err != nil {
		t.Fatal(err)
	}
	if err := instant.SetCurForceMaxOut(1); err != nil {
		t.Fatal(err)
	}
	if got := instant.State.ForceMaxCurr.GetStale(); math.Abs(got-600_000*units.LBF) > 1e-6 {
		t.Errorf("no ramp: force max = %v", got)
	}
}

// flatCurve builds the braking curve of a flat 1 km path limited to 10 m/s for a
// 1e6 kg train decelerating at 0.1 m/s^2.
func flatCurve(t *testing.T) (*BrakingPoints, *PathTpc) {
	t.Helper()
	path, err := NewPathTpc(Network{{
		Idx:       1,
		Length:    1_000,
		Grades:    []Breakpoint{{0, 0}},
		Curves:    []Breakpoint{{0, 0}},
		SpeedSets: []SpeedSet{{Limits: []SpeedLimit{{0, 10}}}},
	}}, trace.LinkPath{1}, DefaultParams())
	if err != nil {
		t.Fatal(err)
	}
	p := DefaultParams()
	p.Length = 100
	p.TowedMassStatic = 1e6
	p.MassRot = 0
	s := NewState(p, 0, 0)
	brake := NewFricBrake(1e5, 0, 0.6)
	res := Res{Method: Point}

	var bp BrakingPoints
	if err := bp.Recalc(&s, &p, &brake, &res, path, 1); err != nil {
		t.Fatal(err)
	}
	return &bp, path
}

func TestBrakingCurveShape(t *testing.T) {
	bp, path := flatCurve(t)
	pts := bp.Points

	if diff := cmp.Diff(BrakingPoint{Offset: path.OffsetEnd()}, pts[0]); diff != "" {
		t.Errorf("first point (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(BrakingPoint{Offset: 0, SpeedLimit: 10, SpeedTarget: 10}, pts[len(pts)-1]); diff != "" {
		t.Errorf("last point (-want +got):\n%s", diff)
	}
	for i := 1; i < len(pts); i++ {
		if pts[i].Offset >= pts[i-1].Offset {
			t.Fatalf("points not descending at %d: %v then %v", i, pts[i-1].Offset, pts[i].Offset)
		}
		if pts[i].SpeedLimit > 10+1e-9 {
			t.Errorf("point %d exceeds path limit: %v", i, pts[i].SpeedLimit)
		}
	}
	// constant deceleration: distance to stop is v^2 / 2a
	for _, pt := range pts {
		if pt.SpeedLimit >= 10-1e-9 {
			continue
		}
		want := pt.SpeedLimit * pt.SpeedLimit / (2 * 0.1)
		if got := path.OffsetEnd() - pt.Offset; math.Abs(got-want) > 1e-6 {
			t.Errorf("at %.3f m/s stopping distance = %v, want %v", pt.SpeedLimit, got, want)
		}
	}
	if bp.Cursor() != len(pts)-1 {
		t.Errorf("cursor = %d, want %d", bp.Cursor(), len(pts)-1)
	}
}

func TestCalcSpeeds(t *testing.T) {
	bp, _ := flatCurve(t)
	last := len(bp.Points) - 1

	limit, target, err := bp.CalcSpeeds(100, 5, 0)
	if err != nil {
		t.Fatal(err)
	}
	if limit != 10 || target != 10 || bp.Cursor() != last {
		t.Errorf("early on path: limit %v target %v cursor %d", limit, target, bp.Cursor())
	}

	t.Run("lookahead sees the stop", func(t *testing.T) {
		_, target, err := bp.CalcSpeeds(400, 10, 20)
		if err != nil {
			t.Fatal(err)
		}
		if target != 0 {
			t.Errorf("target = %v, want 0", target)
		}
	})

	limit, _, err = bp.CalcSpeeds(990, 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if limit < 1 || limit > math.Sqrt(2*0.1*10)+0.1 {
		t.Errorf("near the end limit = %v", limit)
	}
	advanced := bp.Cursor()
	if advanced >= last {
		t.Fatalf("cursor did not advance: %d", advanced)
	}

	t.Run("cursor is forward only", func(t *testing.T) {
		if _, _, err := bp.CalcSpeeds(100, 0.5, 0); err != nil {
			t.Fatal(err)
		}
		if bp.Cursor() != advanced {
			t.Errorf("cursor moved back from %d to %d", advanced, bp.Cursor())
		}
	})

	t.Run("speed above the curve", func(t *testing.T) {
		_, _, err := bp.CalcSpeeds(995, 5, 0)
		if !errors.Is(err, core.ErrSpeedLimit) {
			t.Errorf("got %v, want speed limit violation", err)
		}
	})
}

func TestBrakingInfeasible(t *testing.T) {
	downhill, err := NewPathTpc(Network{{
		Idx:       1,
		Length:    1_000,
		Grades:    []Breakpoint{{0, -0.05}},
		Curves:    []Breakpoint{{0, 0}},
		SpeedSets: []SpeedSet{{Limits: []SpeedLimit{{0, 10}}}},
	}}, trace.LinkPath{1}, DefaultParams())
	if err != nil {
		t.Fatal(err)
	}
	p := DefaultParams()
	p.TowedMassStatic = 1e6
	s := NewState(p, 0, 0)
	brake := NewFricBrake(1e5, 0, 0.6)
	res := Res{Method: Point}

	var bp BrakingPoints
	err = bp.Recalc(&s, &p, &brake, &res, downhill, 1)
	if !errors.Is(err, core.ErrInfeasible) {
		t.Fatalf("got %v, want infeasible", err)
	}

	if _, _, err := bp.CalcSpeeds(0, 0, 0); !errors.Is(err, core.ErrInvariant) {
		t.Errorf("query before recalc: got %v", err)
	}
}
