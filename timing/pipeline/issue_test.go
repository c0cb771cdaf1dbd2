package pipeline_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/milosim/insts"
	"github.com/sarchlab/milosim/timing/pipeline"
	"github.com/sarchlab/milosim/timing/warp"
)

func alu(rd, rs1, rs2 uint8) *insts.Instruction {
	return &insts.Instruction{
		Op: insts.OpADD, Class: insts.ClassALU,
		Rd: rd, Rs1: rs1, Rs2: rs2, Pred: insts.PredAlways,
	}
}

var _ = Describe("IssueUnit", func() {
	var (
		sb   *pipeline.Scoreboard
		unit *pipeline.IssueUnit
		w    *warp.Warp
	)

	BeforeEach(func() {
		sb = pipeline.NewScoreboard(2)
		unit = pipeline.NewIssueUnit(sb)
		w = warp.New(0)
		w.Start(0)
	})

	Describe("CanIssue", func() {
		It("should allow a clean instruction", func() {
			Expect(unit.CanIssue(w, alu(1, 2, 3))).To(Equal(pipeline.BlockNone))
		})

		It("should block on a pending source", func() {
			sb.SetReg(0, 2)
			Expect(unit.CanIssue(w, alu(1, 2, 3))).To(Equal(pipeline.BlockScoreboard))
		})

		It("should block on a pending destination", func() {
			sb.SetReg(0, 1)
			Expect(unit.CanIssue(w, alu(1, 2, 3))).To(Equal(pipeline.BlockScoreboard))
		})

		It("should block on a pending guard predicate", func() {
			sb.SetPred(0, 2)
			inst := alu(1, 2, 3)
			inst.Pred = 2
			Expect(unit.CanIssue(w, inst)).To(Equal(pipeline.BlockScoreboard))
		})

		It("should not block on other warps' reservations", func() {
			sb.SetReg(1, 2)
			Expect(unit.CanIssue(w, alu(1, 2, 3))).To(Equal(pipeline.BlockNone))
		})

		It("should block global memory ops without a free transaction slot", func() {
			load := &insts.Instruction{
				Op: insts.OpLDR, Class: insts.ClassLSU,
				Rd: 1, Rs1: 2, Pred: insts.PredAlways,
			}
			for w.FreeIDs.Len() > 0 {
				_, _ = w.FreeIDs.Pop()
			}
			Expect(unit.CanIssue(w, load)).To(Equal(pipeline.BlockTransID))

			w.FreeIDs.Push(0)
			Expect(unit.CanIssue(w, load)).To(Equal(pipeline.BlockNone))
		})

		It("should not require a transaction slot for shared memory", func() {
			lds := &insts.Instruction{
				Op: insts.OpLDS, Class: insts.ClassLSU,
				Rd: 1, Rs1: 2, Pred: insts.PredAlways,
			}
			for w.FreeIDs.Len() > 0 {
				_, _ = w.FreeIDs.Pop()
			}
			Expect(unit.CanIssue(w, lds)).To(Equal(pipeline.BlockNone))
		})
	})

	Describe("CanPair", func() {
		fpu := func(rd, rs1, rs2 uint8) *insts.Instruction {
			return &insts.Instruction{
				Op: insts.OpFADD, Class: insts.ClassFPU,
				Rd: rd, Rs1: rs1, Rs2: rs2, Pred: insts.PredAlways,
			}
		}

		It("should pair independent instructions of different classes", func() {
			Expect(unit.CanPair(alu(1, 2, 3), fpu(4, 5, 6))).To(BeTrue())
		})

		It("should never pair two instructions of the same class", func() {
			Expect(unit.CanPair(alu(1, 2, 3), alu(4, 5, 6))).To(BeFalse())
		})

		It("should never pair control instructions", func() {
			bra := &insts.Instruction{Op: insts.OpBRA, Class: insts.ClassCTRL, Pred: insts.PredAlways}
			Expect(unit.CanPair(bra, alu(1, 2, 3))).To(BeFalse())
			Expect(unit.CanPair(alu(1, 2, 3), bra)).To(BeFalse())
		})

		It("should refuse RAW pairs", func() {
			Expect(unit.CanPair(alu(4, 2, 3), fpu(5, 4, 6))).To(BeFalse())
		})

		It("should refuse WAW pairs", func() {
			Expect(unit.CanPair(alu(4, 2, 3), fpu(4, 5, 6))).To(BeFalse())
		})

		It("should refuse a pair where the second reads the first's predicate", func() {
			setp := &insts.Instruction{
				Op: insts.OpISETP, Class: insts.ClassALU,
				Rd: 1, Rs1: 2, Rs2: 3, Pred: insts.PredAlways,
			}
			guarded := fpu(4, 5, 6)
			guarded.Pred = 1
			Expect(unit.CanPair(setp, guarded)).To(BeFalse())
		})
	})

	Describe("Reserve", func() {
		It("should set the destination register bit", func() {
			unit.Reserve(0, alu(9, 1, 2))
			Expect(sb.RegPending(0, 9)).To(BeTrue())
		})

		It("should set the destination predicate bit for SETP", func() {
			setp := &insts.Instruction{
				Op: insts.OpISETP, Class: insts.ClassALU,
				Rd: 3, Rs1: 1, Rs2: 2, Pred: insts.PredAlways,
			}
			unit.Reserve(0, setp)
			Expect(sb.PredPending(0, 3)).To(BeTrue())
			Expect(sb.RegPending(0, 3)).To(BeFalse())
		})
	})
})
