package emu_test

import (
	"errors"

	"github.com/google/go-cmp/cmp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ripsim/emu"
	"github.com/sarchlab/ripsim/insts"
)

var _ = Describe("Emulator", func() {
	var (
		e    *emu.Emulator
		base uint32
	)

	BeforeEach(func() {
		e = emu.NewEmulator(nil, nil, nil)
		base = e.Memory().Base()
	})

	run := func(words ...uint32) {
		Expect(e.LoadProgram(base, image(words...))).To(Succeed())
		Expect(e.Run()).To(Succeed())
	}

	reg := func(idx uint8) uint32 {
		return e.RegFile().ReadReg(idx)
	}

	Describe("NewEmulator", func() {
		It("should create default state", func() {
			Expect(e.RegFile()).NotTo(BeNil())
			Expect(e.CSRFile()).NotTo(BeNil())
			Expect(e.Memory().Base()).To(Equal(emu.DefaultMemoryBase))
			Expect(e.PC()).To(Equal(emu.DefaultMemoryBase))
		})

		It("should use the state it is given", func() {
			regFile := &emu.RegFile{}
			memory := emu.NewMemory(0, 4096)

			e = emu.NewEmulator(regFile, nil, memory)

			Expect(e.RegFile()).To(BeIdenticalTo(regFile))
			Expect(e.Memory()).To(BeIdenticalTo(memory))
		})
	})

	Describe("LoadProgram", func() {
		It("should write the image and point the PC at it", func() {
			Expect(e.LoadProgram(base+0x100, image(0x00500813))).To(Succeed())

			Expect(e.PC()).To(Equal(base + 0x100))
			Expect(e.Memory().Read32(base + 0x100)).To(Equal(uint32(0x00500813)))
		})

		It("should fail on a word that does not decode", func() {
			err := e.LoadProgram(base, image(0x00500813, 0x00000003))

			Expect(errors.Is(err, insts.ErrUnknownInstruction)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("0x80000004"))
		})

		It("should treat zero words as padding", func() {
			Expect(e.LoadProgram(base, image(0x00500813, 0, 0))).To(Succeed())
		})
	})

	Describe("Run", func() {
		It("should run two independent addi instructions", func() {
			run(0x00500813, 0x00300893)

			want := [emu.NumRegs]uint32{}
			want[16] = 5
			want[17] = 3
			Expect(cmp.Diff(want, e.RegFile().Snapshot())).To(BeEmpty())
			Expect(e.InstructionCount()).To(Equal(uint64(2)))
			Expect(e.PC()).To(Equal(base + 8))
		})

		It("should see the result of the previous instruction", func() {
			run(insts.ADDI(16, 0, 5), insts.ADDI(17, 16, 3))

			Expect(reg(17)).To(Equal(uint32(8)))
		})

		It("should shift arithmetic and logical", func() {
			run(
				insts.ADDI(16, 0, -8),
				insts.Shift(insts.OpSRAI, 17, 16, 2),
				insts.Shift(insts.OpSRLI, 18, 16, 2),
			)

			Expect(int32(reg(17))).To(Equal(int32(-2)))
			Expect(reg(18)).To(Equal(uint32(1073741822)))
		})

		It("should divide by zero without trapping", func() {
			run(
				insts.ADDI(5, 0, 7),
				insts.RType(insts.OpDIV, 6, 5, 0),
				insts.RType(insts.OpDIVU, 7, 5, 0),
			)

			Expect(int32(reg(6))).To(Equal(int32(-1)))
			Expect(reg(7)).To(Equal(uint32(0xffffffff)))
		})

		It("should loop on a backward branch", func() {
			run(
				insts.ADDI(5, 0, 10),
				insts.ADDI(6, 0, 0),
				insts.RType(insts.OpADD, 6, 6, 5),
				insts.ADDI(5, 5, -1),
				insts.Branch(insts.OpBNE, 5, 0, -8),
			)

			Expect(reg(6)).To(Equal(uint32(55)))
			Expect(e.InstructionCount()).To(Equal(uint64(2 + 3*10)))
		})

		It("should call and return", func() {
			run(
				insts.ADDI(10, 0, 5),
				insts.JAL(1, 12),
				insts.ADDI(11, 10, 0),
				insts.JAL(0, 12),
				insts.ADDI(10, 10, 1),
				insts.JALR(0, 1, 0),
			)

			Expect(reg(10)).To(Equal(uint32(6)))
			Expect(reg(11)).To(Equal(uint32(6)))
			Expect(reg(1)).To(Equal(base + 8))
		})

		It("should store and load words", func() {
			run(
				insts.LUI(5, 0x80001),
				insts.ADDI(6, 0, -42),
				insts.SW(6, 5, 8),
				insts.LW(7, 5, 8),
			)

			Expect(int32(reg(7))).To(Equal(int32(-42)))
			Expect(e.Memory().Read32(0x80001008)).To(Equal(uint32(0xffffffd6)))
		})

		It("should compute pc-relative addresses with auipc", func() {
			run(insts.ADDI(0, 0, 0), insts.AUIPC(5, 1))

			Expect(reg(5)).To(Equal(base + 4 + 0x1000))
		})

		It("should read-modify-write CSRs", func() {
			run(
				insts.ADDI(5, 0, 0b1100),
				insts.CSR(insts.OpCSRRW, 0, 0x340, 5),
				insts.CSR(insts.OpCSRRSI, 6, 0x340, 0b0011),
				insts.CSR(insts.OpCSRRC, 7, 0x340, 5),
			)

			Expect(reg(6)).To(Equal(uint32(0b1100)))
			Expect(reg(7)).To(Equal(uint32(0b1111)))
			Expect(e.CSRFile().Read(0x340)).To(Equal(uint32(0b0011)))
		})

		It("should fail on an out-of-range load", func() {
			Expect(e.LoadProgram(base, image(insts.LW(5, 0, 0)))).To(Succeed())

			err := e.Run()

			Expect(errors.Is(err, emu.ErrOutOfBounds)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("lw"))
		})

		It("should stop at the instruction limit", func() {
			e = emu.NewEmulator(nil, nil, nil, emu.WithMaxInstructions(3))
			Expect(e.LoadProgram(base, image(insts.JAL(0, 0)))).To(Succeed())

			err := e.Run()

			Expect(err).To(MatchError(emu.ErrMaxInstructions))
			Expect(e.InstructionCount()).To(Equal(uint64(3)))
		})
	})

	Describe("Step", func() {
		It("should report the executed instruction", func() {
			Expect(e.LoadProgram(base, image(0x00500813))).To(Succeed())

			result := e.Step()

			Expect(result.Err).NotTo(HaveOccurred())
			Expect(result.Halted).To(BeFalse())
			Expect(result.PC).To(Equal(base))
			Expect(result.Inst.Op).To(Equal(insts.OpADDI))

			Expect(e.Step().Halted).To(BeTrue())
		})
	})
})
