package powertrain

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"

	"github.com/san-kum/railsim/internal/core"
)

// Curve is a piecewise-linear lookup held constant beyond its end points. A curve
// with a single point is constant everywhere.
type Curve struct {
	X []float64 `json:"x" yaml:"x"`
	Y []float64 `json:"y" yaml:"y"`

	fit *interp.PiecewiseLinear
}

// NewCurve validates and fits a curve.
func NewCurve(x, y []float64) (Curve, error) {
	c := Curve{X: x, Y: y}
	if err := c.init(); err != nil {
		return Curve{}, err
	}
	return c, nil
}

// ConstCurve returns a curve with value y everywhere.
func ConstCurve(y float64) Curve {
	return Curve{X: []float64{0}, Y: []float64{y}}
}

func (c *Curve) init() error {
	if len(c.X) == 0 || len(c.X) != len(c.Y) {
		return core.Invariantf("curve: x and y must be non-empty and equal length (%d, %d)", len(c.X), len(c.Y))
	}
	for _, v := range c.Y {
		if v <= 0 || v > 1 {
			return core.Invariantf("curve: efficiency %g outside (0, 1]", v)
		}
	}
	if len(c.X) == 1 {
		return nil
	}
	pl := &interp.PiecewiseLinear{}
	if err := pl.Fit(c.X, c.Y); err != nil {
		return errors.Wrapf(core.ErrInvariant, "curve: %v", err)
	}
	c.fit = pl
	return nil
}

// At evaluates the curve at x.
func (c *Curve) At(x float64) (float64, error) {
	if len(c.X) == 1 {
		return c.Y[0], nil
	}
	if c.fit == nil {
		if err := c.init(); err != nil {
			return 0, err
		}
	}
	return c.fit.Predict(x), nil
}

// Min is the lowest value of the curve.
func (c *Curve) Min() float64 {
	if len(c.Y) == 0 {
		return 1
	}
	return floats.Min(c.Y)
}

// MaxOut is the largest output in [0, outMax] whose input out/At(out/scale) does not
// exceed in. Input must rise with output over the curve.
func (c *Curve) MaxOut(in, scale, outMax float64) (float64, error) {
	if in <= 0 || outMax <= 0 {
		return 0, nil
	}
	need := func(out float64) (float64, error) {
		eta, err := c.At(out / scale)
		if err != nil {
			return 0, err
		}
		return out / eta, nil
	}
	n, err := need(outMax)
	if err != nil {
		return 0, err
	}
	if n <= in {
		return outMax, nil
	}
	lo, hi := 0.0, outMax
	for range 64 {
		mid := 0.5 * (lo + hi)
		if n, err = need(mid); err != nil {
			return 0, err
		}
		if n <= in {
			lo = mid
		} else {
			hi = mid
		}
	}
	return lo, nil
}
