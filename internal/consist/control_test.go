package consist

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/railsim/internal/core"
)

func mixedShares() []Share {
	return []Share{
		{Pos: 2e6, Neg: 5e6},
		{Pos: 3e6, Neg: 5e6, RES: true},
		{Pos: 1.5e6, Neg: 5e6, RES: true},
		{Pos: 2e6, Neg: 5e6},
		{Pos: 0, Neg: 5e6},
		{Pos: 2e6, Neg: 4e6},
	}
}

func TestDistributeConservation(t *testing.T) {
	shares := mixedShares()
	var posCap, negCap float64
	for _, s := range shares {
		posCap += s.Pos
		negCap += s.Neg
	}
	for _, c := range Controls {
		for _, frac := range []float64{-1, -0.7, -0.01, 0.001, 0.25, 0.5, 0.9, 1} {
			req := frac * posCap
			if frac < 0 {
				req = frac * negCap
			}
			t.Run(string(c), func(t *testing.T) {
				out, err := c.Distribute(req, shares)
				if err != nil {
					t.Fatalf("distribute %v: %v", req, err)
				}
				if sum := floats.Sum(out); !core.AlmostEq(sum, req, 1e-6) {
					t.Errorf("sum %v != request %v", sum, req)
				}
				for i, v := range out {
					if v*req < 0 {
						t.Errorf("loco %d allocation %v has the wrong sign for %v", i, v, req)
					}
					limit := shares[i].Pos
					if req < 0 {
						limit = shares[i].Neg
					}
					if math.Abs(v) > limit*(1+1e-9) {
						t.Errorf("loco %d allocation %v exceeds capability %v", i, v, limit)
					}
				}
			})
		}
	}
}

func TestDistributeZero(t *testing.T) {
	for _, c := range Controls {
		out, err := c.Distribute(0, mixedShares())
		if err != nil {
			t.Fatal(err)
		}
		for i, v := range out {
			if v != 0 {
				t.Errorf("%s: loco %d got %v for zero request", c, i, v)
			}
		}
	}
}

func TestDistributePolicies(t *testing.T) {
	shares := []Share{
		{Pos: 1e6},
		{Pos: 2e6, RES: true},
		{Pos: 1e6},
		{Pos: 3e6},
	}
	tests := []struct {
		name    string
		control Control
		req     float64
		want    []float64
	}{
		{"proportional", Proportional, 3.5e6, []float64{0.5e6, 1e6, 0.5e6, 1.5e6}},
		{"res greedy within storage", RESGreedy, 1.5e6, []float64{0, 1.5e6, 0, 0}},
		{"res greedy spills over", RESGreedy, 3e6, []float64{0.2e6, 2e6, 0.2e6, 0.6e6}},
		{"front and back within ends", FrontAndBack, 2e6, []float64{0.5e6, 0, 0, 1.5e6}},
		{"front and back spills to interior", FrontAndBack, 5e6, []float64{1e6, 2 * 1e6 / 3, 1e6 / 3, 3e6}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.control.Distribute(tt.req, shares)
			if err != nil {
				t.Fatal(err)
			}
			for i := range tt.want {
				if math.Abs(got[i]-tt.want[i]) > 1e-6 {
					t.Errorf("loco %d: got %v, want %v (all %v)", i, got[i], tt.want[i], got)
				}
			}
		})
	}
}

func TestDistributeSingleLoco(t *testing.T) {
	for _, c := range Controls {
		out, err := c.Distribute(-2e6, []Share{{Pos: 1e6, Neg: 3e6}})
		if err != nil {
			t.Fatal(err)
		}
		if out[0] != -2e6 {
			t.Errorf("%s: expected whole request on the only loco, got %v", c, out[0])
		}
	}
}

func TestDistributeNoCapability(t *testing.T) {
	_, err := Proportional.Distribute(1e5, []Share{{Pos: 0}, {Pos: 0}})
	if !errors.Is(err, core.ErrPowerLimit) {
		t.Errorf("expected power limit error, got %v", err)
	}
	if _, err := Control("Bogus").Distribute(1, []Share{{Pos: 1}}); !errors.Is(err, core.ErrInvariant) {
		t.Errorf("expected invariant error for unknown control, got %v", err)
	}
}

func TestParseControl(t *testing.T) {
	for _, c := range Controls {
		got, err := ParseControl(string(c))
		if err != nil || got != c {
			t.Errorf("ParseControl(%q) = %q, %v", c, got, err)
		}
	}
	if _, err := ParseControl("Greedy"); err == nil {
		t.Error("expected error for unknown control")
	}
}
