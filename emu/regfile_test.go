package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/milosim/emu"
)

var _ = Describe("RegFile", func() {
	var rf *emu.RegFile

	BeforeEach(func() {
		rf = emu.NewRegFile(2)
	})

	It("should read back written lanes", func() {
		rf.Write(0, 5, vec(99), emu.FullMask)
		Expect(rf.Read(0, 5)[0]).To(Equal(uint32(99)))
		Expect(rf.Read(0, 5)[31]).To(Equal(uint32(99)))
	})

	It("should only write lanes in the mask", func() {
		rf.Write(0, 5, vec(7), 0x3)
		Expect(rf.Read(0, 5)[1]).To(Equal(uint32(7)))
		Expect(rf.Read(0, 5)[2]).To(Equal(uint32(0)))
	})

	It("should keep register zero hardwired", func() {
		rf.Write(0, 0, vec(123), emu.FullMask)
		Expect(rf.Read(0, 0)).To(Equal(emu.Vector{}))
	})

	It("should isolate warps", func() {
		rf.Write(0, 3, vec(1), emu.FullMask)
		Expect(rf.Read(1, 3)).To(Equal(emu.Vector{}))
	})

	It("should map registers to banks modulo the bank count", func() {
		Expect(emu.Bank(0)).To(Equal(0))
		Expect(emu.Bank(5)).To(Equal(1))
		Expect(emu.Bank(63)).To(Equal(3))
	})
})

var _ = Describe("PredFile", func() {
	var pf *emu.PredFile

	BeforeEach(func() {
		pf = emu.NewPredFile(2)
	})

	It("should read PT as all lanes true", func() {
		Expect(pf.Read(0, 7)).To(Equal(emu.FullMask))
	})

	It("should merge writes under the lane mask", func() {
		pf.Write(0, 2, 0xFFFFFFFF, 0x0000FFFF)
		Expect(pf.Read(0, 2)).To(Equal(uint32(0x0000FFFF)))

		pf.Write(0, 2, 0x0, 0x000000FF)
		Expect(pf.Read(0, 2)).To(Equal(uint32(0x0000FF00)))
	})

	It("should ignore writes to PT", func() {
		pf.Write(0, 7, 0, emu.FullMask)
		Expect(pf.Read(0, 7)).To(Equal(emu.FullMask))
	})
})
