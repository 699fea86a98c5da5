package consist_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/railsim/internal/consist"
	"github.com/san-kum/railsim/internal/core"
	"github.com/san-kum/railsim/internal/locomotive"
	"github.com/san-kum/railsim/internal/powertrain"
	"github.com/san-kum/railsim/internal/units"
)

func f64(v float64) *float64 { return &v }

// step runs one consist step at the given request.
func step(c *consist.Consist, req float64) error {
	if err := c.CheckAndReset("test"); err != nil {
		return err
	}
	c.Step()
	if err := c.SetPwrAux(nil); err != nil {
		return err
	}
	mass, speed := f64(1e6*units.LB), f64(10*units.MPH)
	if err := c.SetCurPwrMaxOut(mass, speed, 1); err != nil {
		return err
	}
	if err := c.SolveEnergyConsumption(req, mass, speed, 1, nil); err != nil {
		return err
	}
	if err := c.SetCumulative(1); err != nil {
		return err
	}
	c.SaveState()
	return nil
}

var _ = Describe("Consist", func() {
	var c *consist.Consist

	BeforeEach(func() {
		c = consist.Default()
	})

	Describe("Default", func() {
		It("has the mixed six-locomotive composition", func() {
			kinds := make([]powertrain.Kind, len(c.Locos))
			for i, l := range c.Locos {
				kinds[i] = l.Kind()
			}
			Expect(kinds).To(Equal([]powertrain.Kind{
				powertrain.KindConventional,
				powertrain.KindBatteryElectric,
				powertrain.KindHybrid,
				powertrain.KindConventional,
				powertrain.KindConventional,
				powertrain.KindConventional,
			}))
			Expect(c.NResEquipped()).To(Equal(2))
		})

		It("sums locomotive masses", func() {
			m, err := c.Mass()
			Expect(err).NotTo(HaveOccurred())
			Expect(*m).To(BeNumerically("~", 5*195_000+194.6e3, 1e-6))
		})

		It("sums static dynamic braking capability", func() {
			Expect(c.State.PwrDynBrakeMax).To(BeNumerically("~", 6*5e6, 1))
		})
	})

	Describe("mass consistency", func() {
		It("rejects a mix of set and unset masses", func() {
			p := locomotive.DefaultParams()
			p.Mass = nil
			massless, err := locomotive.New(powertrain.NewConventional(powertrain.DefaultConventional()), p, nil)
			Expect(err).NotTo(HaveOccurred())
			_, err = consist.New([]*locomotive.Locomotive{locomotive.Default(), massless}, nil, consist.Proportional)
			Expect(err).To(MatchError(core.ErrInvariant))
		})

		It("rejects a dummy alongside a locomotive with mass", func() {
			m, err := locomotive.Dummy().Mass()
			Expect(err).NotTo(HaveOccurred())
			Expect(m).To(BeNil())

			_, err = consist.New([]*locomotive.Locomotive{locomotive.Default(), locomotive.Dummy()}, nil, consist.Proportional)
			Expect(err).To(MatchError(core.ErrInvariant))
		})

		It("rejects an empty consist", func() {
			_, err := consist.New(nil, nil, consist.Proportional)
			Expect(err).To(MatchError(core.ErrInvariant))
		})
	})

	Describe("cascading settings", func() {
		It("cascades save interval to every locomotive", func() {
			c.SetSaveInterval(core.Interval(5))
			for _, l := range c.Locos {
				Expect(*l.SaveInterval()).To(Equal(5))
				Expect(*l.Powertrain.EDrv().SaveInterval).To(Equal(5))
			}
		})

		It("cascades assert limits to every locomotive", func() {
			c.SetAssertLimits(false)
			for _, l := range c.Locos {
				Expect(l.AssertLimits).To(BeFalse())
			}
		})
	})

	Describe("SolveEnergyConsumption", func() {
		It("delivers exactly the requested power", func() {
			for _, req := range []float64{0, 5e5, 1e6, 1.5e6, -5e5} {
				Expect(step(c, req)).To(Succeed())
				Expect(c.State.PwrOut).To(BeNumerically("~", req, 1e-6))
				var sum float64
				for _, l := range c.Locos {
					sum += l.State.PwrOut.GetStale()
				}
				Expect(sum).To(BeNumerically("~", req, 1e-6))
			}
			Expect(c.State.I).To(Equal(5))
			Expect(c.History).To(HaveLen(5))
			Expect(c.State.EnergyOutNeg).To(BeNumerically("~", 5e5, 1e-6))
			Expect(c.EnergyFuel()).To(BeNumerically(">", 0))
		})

		It("has no deficit within storage capability", func() {
			Expect(step(c, 1.5e6)).To(Succeed())
			Expect(c.State.PwrOutDeficit).To(BeZero())
		})

		It("fails with a power limit error beyond capability", func() {
			err := step(c, 1e9)
			Expect(err).To(MatchError(core.ErrPowerLimit))
		})

		It("fails when braking exceeds dynamic brake capability", func() {
			err := step(c, -1e9)
			Expect(err).To(MatchError(core.ErrPowerLimit))
		})

		It("records the shortfall instead of failing when limits are off", func() {
			c.SetAssertLimits(false)
			Expect(step(c, 1e9)).To(Succeed())
			Expect(c.State.PwrOutUnmet).To(BeNumerically("~", 1e9-c.State.PwrOutMax, 1))
			Expect(c.State.PwrOutDeficit).To(BeNumerically(">", 0))
			Expect(c.State.PwrOut).To(BeNumerically("~", c.State.PwrOutMax, 1e-3))
		})
	})

	Describe("distribution policies", func() {
		DescribeTable("conserve the request",
			func(control consist.Control, req float64) {
				c.Control = control
				Expect(step(c, req)).To(Succeed())
				Expect(c.State.PwrOut).To(BeNumerically("~", req, 1e-6))
			},
			Entry("proportional traction", consist.Proportional, 1.2e6),
			Entry("proportional braking", consist.Proportional, -2e6),
			Entry("res greedy traction", consist.RESGreedy, 1.2e6),
			Entry("front and back traction", consist.FrontAndBack, 1.2e6),
			Entry("front and back braking", consist.FrontAndBack, -8e6),
		)

		It("puts traction on storage first under RESGreedy", func() {
			Expect(step(c, 1e6)).To(Succeed())
			Expect(c.Locos[1].State.PwrOut.GetStale()).To(BeNumerically("~", 1e6, 1e-6))
			Expect(c.Locos[0].State.PwrOut.GetStale()).To(BeZero())
		})
	})

	It("round trips through JSON", func() {
		data, err := json.Marshal(c)
		Expect(err).NotTo(HaveOccurred())
		var got consist.Consist
		Expect(json.Unmarshal(data, &got)).To(Succeed())
		Expect(got.Locos).To(HaveLen(6))
		Expect(got.Control).To(Equal(consist.RESGreedy))
		Expect(got.AssertLimits()).To(BeTrue())
	})
})
