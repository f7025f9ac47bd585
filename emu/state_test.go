package emu_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ripsim/emu"
	"github.com/sarchlab/ripsim/insts"
)

var _ = Describe("RegFile", func() {
	var regFile *emu.RegFile

	BeforeEach(func() {
		regFile = &emu.RegFile{}
	})

	It("should keep x0 at zero for every write", func() {
		for _, v := range []uint32{1, 0xffffffff, 0x80000000} {
			Expect(regFile.Write(0, v)).To(Succeed())
			Expect(regFile.Read(0)).To(Equal(uint32(0)))
		}
	})

	It("should read back written values", func() {
		for i := uint8(1); i < emu.NumRegs; i++ {
			Expect(regFile.Write(i, uint32(i)*3)).To(Succeed())
		}
		for i := uint8(1); i < emu.NumRegs; i++ {
			Expect(regFile.Read(i)).To(Equal(uint32(i) * 3))
		}
	})

	It("should reject indices above 31", func() {
		_, err := regFile.Read(32)
		Expect(errors.Is(err, emu.ErrInvalidRegister)).To(BeTrue())

		err = regFile.Write(40, 1)
		var idxErr *emu.RegisterIndexError
		Expect(errors.As(err, &idxErr)).To(BeTrue())
		Expect(idxErr.Index).To(Equal(uint8(40)))
	})

	It("should snapshot and reset", func() {
		regFile.WriteReg(5, 7)
		snap := regFile.Snapshot()
		regFile.Reset()

		Expect(snap[5]).To(Equal(uint32(7)))
		Expect(regFile.ReadReg(5)).To(Equal(uint32(0)))
	})
})

var _ = Describe("CSRFile", func() {
	var csrs *emu.CSRFile

	BeforeEach(func() {
		csrs = emu.NewCSRFile()
		Expect(csrs.Write(0x300, 0b1010)).To(Succeed())
	})

	It("should swap on csrrw and return the old value", func() {
		old, err := csrs.Exchange(insts.OpCSRRW, 0x300, 0xff)
		Expect(err).NotTo(HaveOccurred())
		Expect(old).To(Equal(uint32(0b1010)))
		Expect(csrs.Read(0x300)).To(Equal(uint32(0xff)))
	})

	It("should set bits on csrrs", func() {
		_, err := csrs.Exchange(insts.OpCSRRSI, 0x300, 0b0101)
		Expect(err).NotTo(HaveOccurred())
		Expect(csrs.Read(0x300)).To(Equal(uint32(0b1111)))
	})

	It("should clear bits on csrrc", func() {
		_, err := csrs.Exchange(insts.OpCSRRC, 0x300, 0b0010)
		Expect(err).NotTo(HaveOccurred())
		Expect(csrs.Read(0x300)).To(Equal(uint32(0b1000)))
	})

	It("should reject addresses outside the 12-bit space", func() {
		_, err := csrs.Read(emu.NumCSRs)
		Expect(errors.Is(err, emu.ErrInvalidCSR)).To(BeTrue())
	})

	It("should reject non-CSR ops", func() {
		_, err := csrs.Exchange(insts.OpADD, 0x300, 1)
		Expect(errors.Is(err, emu.ErrUnsupportedOp)).To(BeTrue())
	})
})

var _ = Describe("Memory", func() {
	var memory *emu.Memory

	BeforeEach(func() {
		memory = emu.NewMemory(0x1000, 64)
	})

	It("should be little-endian", func() {
		Expect(memory.Write32(0x1000, 0xdeadbeef)).To(Succeed())

		Expect(memory.Read8(0x1000)).To(Equal(uint8(0xef)))
		Expect(memory.Read8(0x1003)).To(Equal(uint8(0xde)))
		Expect(memory.Read16(0x1002)).To(Equal(uint16(0xdead)))
	})

	It("should compose words from bytes and half-words", func() {
		Expect(memory.Write16(0x1010, 0x5678)).To(Succeed())
		Expect(memory.Write8(0x1012, 0x34)).To(Succeed())
		Expect(memory.Write8(0x1013, 0x12)).To(Succeed())

		Expect(memory.Read32(0x1010)).To(Equal(uint32(0x12345678)))
	})

	It("should read unwritten memory as zero", func() {
		Expect(memory.Read32(0x1020)).To(Equal(uint32(0)))
	})

	DescribeTable("out-of-range accesses",
		func(addr uint32, width int) {
			var err error
			switch width {
			case 1:
				_, err = memory.Read8(addr)
			case 2:
				err = memory.Write16(addr, 1)
			default:
				_, err = memory.Read32(addr)
			}

			Expect(errors.Is(err, emu.ErrOutOfBounds)).To(BeTrue())
			var oob *emu.OutOfBoundsError
			Expect(errors.As(err, &oob)).To(BeTrue())
			Expect(oob.Addr).To(Equal(addr))
		},
		Entry("below base", uint32(0xfff), 1),
		Entry("past the end", uint32(0x1040), 1),
		Entry("straddling the end", uint32(0x103f), 2),
		Entry("word at the last byte", uint32(0x103d), 4),
	)

	It("should load a program image", func() {
		Expect(memory.LoadProgram(0x1000, image(0x00500813, 0x00300893))).To(Succeed())

		Expect(memory.Read32(0x1000)).To(Equal(uint32(0x00500813)))
		Expect(memory.Read32(0x1004)).To(Equal(uint32(0x00300893)))
	})

	It("should reject images larger than memory", func() {
		err := memory.LoadProgram(0x1000, make([]byte, 65))
		Expect(errors.Is(err, emu.ErrOutOfBounds)).To(BeTrue())
	})

	It("should handle large sparse memories", func() {
		big := emu.NewMemory(0, 1<<29)
		Expect(big.Write32(1<<28, 42)).To(Succeed())
		Expect(big.Read32(1 << 28)).To(Equal(uint32(42)))
	})
})
