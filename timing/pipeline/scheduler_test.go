package pipeline_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/milosim/timing/pipeline"
)

var _ = Describe("Scheduler", func() {
	var sched *pipeline.Scheduler

	all := func(int) bool { return true }

	BeforeEach(func() {
		sched = pipeline.NewScheduler(4)
	})

	It("should pick the first eligible warp from the pointer", func() {
		w := sched.Pick(all)
		Expect(w).To(Equal(0))
		Expect(sched.RRPtr()).To(Equal(1))
	})

	It("should hold the same warp greedily while it stays eligible", func() {
		Expect(sched.Pick(all)).To(Equal(0))
		ptr := sched.RRPtr()

		for i := 0; i < 5; i++ {
			Expect(sched.Pick(all)).To(Equal(0))
		}
		// The greedy hold must not move the round-robin pointer.
		Expect(sched.RRPtr()).To(Equal(ptr))
	})

	It("should fall to round robin when the held warp goes ineligible", func() {
		Expect(sched.Pick(all)).To(Equal(0))

		w := sched.Pick(func(id int) bool { return id != 0 })
		Expect(w).To(Equal(1))
		Expect(sched.RRPtr()).To(Equal(2))
	})

	It("should maintain rr_ptr = (w+1) mod N after every fresh search", func() {
		for i := 0; i < 10; i++ {
			sched.Invalidate()
			w := sched.Pick(all)
			Expect(sched.RRPtr()).To(Equal((w + 1) % 4))
		}
	})

	It("should wrap the search past the last slot", func() {
		sched.Invalidate()
		Expect(sched.Pick(func(id int) bool { return id == 3 })).To(Equal(3))
		Expect(sched.RRPtr()).To(Equal(0))
	})

	It("should return -1 when nothing is eligible", func() {
		Expect(sched.Pick(func(int) bool { return false })).To(Equal(-1))
		Expect(sched.Last()).To(Equal(-1))
	})

	It("should drop the greedy hold on Invalidate", func() {
		Expect(sched.Pick(all)).To(Equal(0))
		sched.Invalidate()
		Expect(sched.Last()).To(Equal(-1))

		// The next pick searches from the pointer instead of re-holding.
		Expect(sched.Pick(all)).To(Equal(1))
	})
})
