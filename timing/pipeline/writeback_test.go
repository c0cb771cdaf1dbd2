package pipeline_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/milosim/emu"
	"github.com/sarchlab/milosim/insts"
	"github.com/sarchlab/milosim/timing/pipeline"
)

var _ = Describe("WritebackArbiter", func() {
	var (
		rf  *emu.RegFile
		pf  *emu.PredFile
		sb  *pipeline.Scoreboard
		col *pipeline.Collector
		arb *pipeline.WritebackArbiter
	)

	value := func(v uint32) emu.Vector {
		var vec emu.Vector
		for i := range vec {
			vec[i] = v
		}
		return vec
	}

	completion := func(class pipeline.WBClass, rd uint8, ready uint64, v uint32) *pipeline.Completion {
		return &pipeline.Completion{
			Class:      class,
			WarpID:     0,
			Inst:       alu(rd, 1, 2),
			ReadyCycle: ready,
			Mask:       emu.FullMask,
			Value:      value(v),
			WriteReg:   true,
			ClearSB:    true,
			Retire:     true,
		}
	}

	BeforeEach(func() {
		rf = emu.NewRegFile(2)
		pf = emu.NewPredFile(2)
		sb = pipeline.NewScoreboard(2)
		col = pipeline.NewCollector(2, rf, pf)
		arb = pipeline.NewWritebackArbiter(rf, pf, sb, col)
	})

	It("should hold a completion until its ready cycle", func() {
		sb.SetReg(0, 5)
		arb.Push(completion(pipeline.WBALU, 5, 3, 11))

		arb.Tick(2)
		Expect(sb.RegPending(0, 5)).To(BeTrue())

		arb.Tick(3)
		Expect(sb.RegPending(0, 5)).To(BeFalse())
		Expect(rf.Read(0, 5)[0]).To(Equal(uint32(11)))
	})

	It("should drain each class queue in order", func() {
		// The second ALU completion is ready earlier but must wait behind
		// the queue head.
		arb.Push(completion(pipeline.WBALU, 5, 10, 1))
		arb.Push(completion(pipeline.WBALU, 6, 1, 2))

		arb.Tick(5)
		Expect(rf.Read(0, 6)[0]).To(Equal(uint32(0)))

		arb.Tick(10)
		Expect(rf.Read(0, 5)[0]).To(Equal(uint32(1)))
		Expect(rf.Read(0, 6)[0]).To(Equal(uint32(2)))
	})

	It("should give the bank write port to the higher-priority class", func() {
		// Registers 5 and 9 share bank 1; memory beats ALU for the port.
		arb.Push(completion(pipeline.WBALU, 9, 1, 7))
		arb.Push(completion(pipeline.WBMem, 5, 1, 8))

		arb.Tick(1)
		Expect(rf.Read(0, 5)[0]).To(Equal(uint32(8)))
		Expect(rf.Read(0, 9)[0]).To(Equal(uint32(0)))
		Expect(arb.Stats().BankStalls).To(Equal(uint64(1)))

		arb.Tick(2)
		Expect(rf.Read(0, 9)[0]).To(Equal(uint32(7)))
	})

	It("should commit different banks in the same cycle", func() {
		arb.Push(completion(pipeline.WBALU, 9, 1, 7))
		arb.Push(completion(pipeline.WBMem, 6, 1, 8))

		arb.Tick(1)
		Expect(rf.Read(0, 9)[0]).To(Equal(uint32(7)))
		Expect(rf.Read(0, 6)[0]).To(Equal(uint32(8)))
		Expect(arb.Stats().BankStalls).To(BeZero())
	})

	It("should only write lanes in the completion mask", func() {
		c := completion(pipeline.WBALU, 5, 1, 9)
		c.Mask = 0x1
		arb.Push(c)
		arb.Tick(1)

		Expect(rf.Read(0, 5)[0]).To(Equal(uint32(9)))
		Expect(rf.Read(0, 5)[1]).To(Equal(uint32(0)))
	})

	It("should drain shadows without touching architectural state", func() {
		sb.SetReg(0, 5)
		arb.Push(&pipeline.Completion{
			Class:      pipeline.WBALU,
			WarpID:     0,
			Inst:       alu(5, 1, 2),
			ReadyCycle: 1,
			Shadow:     true,
		})

		arb.Tick(1)
		Expect(sb.RegPending(0, 5)).To(BeFalse())
		Expect(rf.Read(0, 5)).To(Equal(emu.Vector{}))
		Expect(arb.Stats().Squashed).To(Equal(uint64(1)))
		Expect(arb.Stats().Retired).To(BeZero())
	})

	It("should commit predicate results without a bank port", func() {
		setp := &insts.Instruction{
			Op: insts.OpISETP, Class: insts.ClassALU,
			Rd: 2, Rs1: 1, Rs2: 3, Pred: insts.PredAlways,
		}
		sb.SetPred(0, 2)

		// An ALU register write to bank 1 and the SETP commit coexist.
		arb.Push(completion(pipeline.WBMem, 5, 1, 3))
		arb.Push(&pipeline.Completion{
			Class:      pipeline.WBALU,
			WarpID:     0,
			Inst:       setp,
			ReadyCycle: 1,
			Mask:       emu.FullMask,
			PredBits:   0xFF,
			WritePred:  true,
			ClearSB:    true,
			Retire:     true,
		})

		arb.Tick(1)
		Expect(pf.Read(0, 2)).To(Equal(uint32(0xFF)))
		Expect(sb.PredPending(0, 2)).To(BeFalse())
		Expect(arb.Stats().BankStalls).To(BeZero())
	})

	It("should split a load across partial completions", func() {
		load := &insts.Instruction{
			Op: insts.OpLDR, Class: insts.ClassLSU,
			Rd: 5, Rs1: 1, Pred: insts.PredAlways,
		}
		sb.SetReg(0, 5)

		arb.Push(&pipeline.Completion{
			Class: pipeline.WBMem, WarpID: 0, Inst: load,
			ReadyCycle: 1, Mask: 0x1, Value: value(10), WriteReg: true,
		})
		arb.Tick(1)
		Expect(sb.RegPending(0, 5)).To(BeTrue())

		arb.Push(&pipeline.Completion{
			Class: pipeline.WBMem, WarpID: 0, Inst: load,
			ReadyCycle: 2, Mask: 0x2, Value: value(20), WriteReg: true,
			ClearSB: true, Retire: true,
		})
		arb.Tick(2)
		Expect(sb.RegPending(0, 5)).To(BeFalse())
		Expect(rf.Read(0, 5)[0]).To(Equal(uint32(10)))
		Expect(rf.Read(0, 5)[1]).To(Equal(uint32(20)))
		Expect(arb.Stats().Retired).To(Equal(uint64(1)))
	})

	It("should report pending completions", func() {
		Expect(arb.Pending()).To(BeZero())
		arb.Push(completion(pipeline.WBALU, 5, 100, 1))
		Expect(arb.Pending()).To(Equal(1))
	})
})
