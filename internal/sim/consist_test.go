package sim_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/railsim/internal/consist"
	"github.com/san-kum/railsim/internal/core"
	"github.com/san-kum/railsim/internal/sim"
	"github.com/san-kum/railsim/internal/trace"
)

type counter struct{ samples []sim.Sample }

func (c *counter) OnStep(s sim.Sample) { c.samples = append(c.samples, s) }

var _ = Describe("ConsistSimulation", func() {
	var (
		ctx context.Context
		obs *counter
		cs  *sim.ConsistSimulation
	)

	BeforeEach(func() {
		ctx = context.Background()
		obs = &counter{}
		cs = sim.DefaultConsistSimulation(sim.WithObserver(obs))
	})

	Context("with the default consist and power trace", func() {
		BeforeEach(func() {
			Expect(cs.Walk(ctx)).To(Succeed())
		})

		It("walks to the last sample", func() {
			Expect(cs.Index()).To(Equal(cs.PowerTrace.Len() - 1))
			Expect(cs.Consist.History).To(HaveLen(cs.PowerTrace.Len()))
			Expect(obs.samples).To(HaveLen(cs.PowerTrace.Len() - 1))
		})

		It("never leaves a deficit", func() {
			for _, st := range cs.Consist.History {
				Expect(st.PwrOutDeficit).To(BeZero(), "step %d", st.I)
			}
		})

		It("delivers exactly the requested energy", func() {
			var want float64
			for i := 1; i < cs.PowerTrace.Len(); i++ {
				want += cs.PowerTrace.Pwr[i] * cs.PowerTrace.Dt(i)
			}
			Expect(cs.Consist.State.EnergyOut).To(BeNumerically("~", want, want*1e-9))

			var locos float64
			for _, l := range cs.Consist.Locos {
				locos += l.State.EnergyOut.GetStale()
			}
			Expect(locos).To(BeNumerically("~", want, want*1e-9))
		})

		It("burns fuel and draws on storage", func() {
			Expect(cs.Consist.EnergyFuel()).To(BeNumerically(">", 0))
			Expect(cs.Consist.NetEnergyRES()).To(BeNumerically(">", 0))
		})

		It("trims only the last sample of a finished walk", func() {
			Expect(cs.TrimFailedSteps()).To(Succeed())
			Expect(cs.PowerTrace.Len()).To(Equal(699))
		})
	})

	Context("with a request beyond capability", func() {
		const bad = 250

		BeforeEach(func() {
			pt := trace.DefaultPowerTrace()
			pt.Pwr[bad] = 1e9
			var err error
			cs, err = sim.NewConsistSimulation(consist.Default(), pt, core.Interval(1))
			Expect(err).NotTo(HaveOccurred())
		})

		It("fails with a power limit error at that step", func() {
			err := cs.Walk(ctx)
			Expect(err).To(MatchError(core.ErrPowerLimit))

			var stepErr *core.StepError
			Expect(errors.As(err, &stepErr)).To(BeTrue())
			Expect(stepErr.Step).To(Equal(bad))
			Expect(stepErr.Time).To(Equal(float64(bad)))
			Expect(err.Error()).To(HavePrefix("time step: 250 (t=250.0 s)"))
			Expect(cs.Index()).To(Equal(bad))
		})

		It("trims the trace to the solved steps", func() {
			Expect(cs.Walk(ctx)).NotTo(Succeed())
			Expect(cs.TrimFailedSteps()).To(Succeed())
			Expect(cs.PowerTrace.Len()).To(Equal(bad))
			Expect(cs.PowerTrace.Pwr).NotTo(ContainElement(1e9))
		})

		It("records the unmet power when limits are not asserted", func() {
			cs.Consist.SetAssertLimits(false)
			Expect(cs.Walk(ctx)).To(Succeed())
			st := cs.Consist.History[bad]
			Expect(st.PwrOutUnmet).To(BeNumerically(">", 0))
			Expect(st.PwrOut).To(BeNumerically("~", st.PwrOutMax, 1))
		})
	})

	It("refuses to trim before the walk has started", func() {
		Expect(cs.TrimFailedSteps()).To(MatchError(core.ErrInvariant))
	})

	It("stops on a cancelled context", func() {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		Expect(cs.Walk(cctx)).To(MatchError(context.Canceled))
		Expect(cs.Index()).To(BeZero())
	})

	It("cascades the save interval", func() {
		cs.SetSaveInterval(core.Interval(100))
		Expect(cs.Walk(ctx)).To(Succeed())
		Expect(cs.Consist.History).To(HaveLen(7))
		Expect(cs.Consist.Locos[0].History).To(HaveLen(7))
	})
})
