package pipeline_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/milosim/timing/pipeline"
	"github.com/sarchlab/milosim/timing/warp"
)

var _ = Describe("BarrierUnit", func() {
	var (
		unit  *pipeline.BarrierUnit
		warps []*warp.Warp
	)

	BeforeEach(func() {
		unit = pipeline.NewBarrierUnit()
		warps = make([]*warp.Warp, 3)
		for i := range warps {
			warps[i] = warp.New(i)
			warps[i].Start(0)
		}
	})

	It("should stall an arriving warp", func() {
		unit.Arrive(warps[0])
		Expect(warps[0].State).To(Equal(warp.StateWaitBarrier))
		Expect(warps[0].BarrierEpoch).To(Equal(unit.GlobalEpoch()))
	})

	It("should not release while a participant is still running", func() {
		unit.Arrive(warps[0])
		unit.Arrive(warps[1])
		Expect(unit.TryResolve(warps)).To(BeFalse())
		Expect(warps[0].State).To(Equal(warp.StateWaitBarrier))
	})

	It("should release every waiter once all participants arrive", func() {
		for _, w := range warps {
			unit.Arrive(w)
		}
		Expect(unit.TryResolve(warps)).To(BeTrue())
		for _, w := range warps {
			Expect(w.State).To(Equal(warp.StateReady))
		}
	})

	It("should flip the global epoch on release", func() {
		before := unit.GlobalEpoch()
		for _, w := range warps {
			unit.Arrive(w)
		}
		unit.TryResolve(warps)
		Expect(unit.GlobalEpoch()).To(Equal(!before))
	})

	It("should ignore idle and exited warps", func() {
		warps[2].State = warp.StateExited
		unit.Arrive(warps[0])
		unit.Arrive(warps[1])
		Expect(unit.TryResolve(warps)).To(BeTrue())
	})

	It("should resolve a single-warp barrier immediately", func() {
		solo := []*warp.Warp{warps[0]}
		unit.Arrive(warps[0])
		Expect(unit.TryResolve(solo)).To(BeTrue())
		Expect(warps[0].State).To(Equal(warp.StateReady))
	})

	It("should not count a stale-epoch arrival toward a new barrier", func() {
		// First barrier instance completes.
		for _, w := range warps {
			unit.Arrive(w)
		}
		unit.TryResolve(warps)

		// A fast warp re-arrives under the new epoch; a warp whose local
		// epoch still shows the old value must not satisfy it.
		unit.Arrive(warps[0])
		warps[1].State = warp.StateWaitBarrier
		warps[1].BarrierEpoch = !unit.GlobalEpoch()
		warps[2].State = warp.StateWaitBarrier
		warps[2].BarrierEpoch = unit.GlobalEpoch()

		Expect(unit.TryResolve(warps)).To(BeFalse())
	})

	It("should count arrivals and releases", func() {
		for _, w := range warps {
			unit.Arrive(w)
		}
		unit.TryResolve(warps)
		stats := unit.Stats()
		Expect(stats.Arrivals).To(Equal(uint64(3)))
		Expect(stats.Releases).To(Equal(uint64(1)))
	})
})
