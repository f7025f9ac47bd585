package insts_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ripsim/insts"
)

var _ = Describe("Decoder", func() {
	var decoder *insts.Decoder

	BeforeEach(func() {
		decoder = insts.NewDecoder()
	})

	decode := func(word uint32) insts.Instruction {
		inst, err := decoder.Decode(word)
		Expect(err).NotTo(HaveOccurred())
		Expect(inst.Raw).To(Equal(word))
		return inst
	}

	Describe("I-type arithmetic", func() {
		// addi x16, x0, 5 -> 13 08 50 00
		It("should decode addi x16, x0, 5", func() {
			inst := decode(0x00500813)

			Expect(inst.Op).To(Equal(insts.OpADDI))
			Expect(inst.Format).To(Equal(insts.FormatI))
			Expect(inst.Rd).To(Equal(uint8(16)))
			Expect(inst.Rs1).To(Equal(uint8(0)))
			Expect(inst.Imm).To(Equal(uint32(5)))
		})

		// addi x16, x0, -8 -> 13 08 80 ff
		It("should keep the raw immediate of addi x16, x0, -8", func() {
			inst := decode(0xff800813)

			Expect(inst.Op).To(Equal(insts.OpADDI))
			Expect(inst.Imm).To(Equal(uint32(0xff8)))
			Expect(inst.SignedImm()).To(Equal(uint32(0xfffffff8)))
		})

		// srai x17, x16, 2 -> 93 58 28 40
		It("should decode srai with the shift amount as immediate", func() {
			inst := decode(0x40285893)

			Expect(inst.Op).To(Equal(insts.OpSRAI))
			Expect(inst.Rd).To(Equal(uint8(17)))
			Expect(inst.Rs1).To(Equal(uint8(16)))
			Expect(inst.Imm).To(Equal(uint32(2)))
			Expect(inst.Rs2).To(Equal(uint8(0)))
		})

		// srli x17, x16, 2 -> 93 58 28 00
		It("should decode srli", func() {
			inst := decode(0x00285893)
			Expect(inst.Op).To(Equal(insts.OpSRLI))
			Expect(inst.Imm).To(Equal(uint32(2)))
		})

		It("should reject a shift immediate with a bad funct7", func() {
			_, err := decoder.Decode(0x20285893)
			Expect(errors.Is(err, insts.ErrUnknownInstruction)).To(BeTrue())
		})
	})

	Describe("R-type", func() {
		// add x5, x3, x4 -> b3 82 41 00
		It("should decode add", func() {
			inst := decode(0x004182b3)

			Expect(inst.Op).To(Equal(insts.OpADD))
			Expect(inst.Format).To(Equal(insts.FormatR))
			Expect(inst.Rd).To(Equal(uint8(5)))
			Expect(inst.Rs1).To(Equal(uint8(3)))
			Expect(inst.Rs2).To(Equal(uint8(4)))
		})

		It("should decode sub by funct7", func() {
			Expect(decode(0x404182b3).Op).To(Equal(insts.OpSUB))
		})

		It("should decode xor and or", func() {
			Expect(decode(0x01184933).Op).To(Equal(insts.OpXOR))
			Expect(decode(0x01186933).Op).To(Equal(insts.OpOR))
		})

		It("should decode the M extension", func() {
			// mul x3, x1, x2
			Expect(decode(0x022081b3).Op).To(Equal(insts.OpMUL))
		})
	})

	Describe("memory", func() {
		It("should decode lw x5, 8(x2)", func() {
			inst := decode(0x00812283)
			Expect(inst.Op).To(Equal(insts.OpLW))
			Expect(inst.Rd).To(Equal(uint8(5)))
			Expect(inst.Rs1).To(Equal(uint8(2)))
			Expect(inst.Imm).To(Equal(uint32(8)))
		})

		It("should decode sw x5, 8(x2)", func() {
			inst := decode(0x00512423)
			Expect(inst.Op).To(Equal(insts.OpSW))
			Expect(inst.Format).To(Equal(insts.FormatS))
			Expect(inst.Rs1).To(Equal(uint8(2)))
			Expect(inst.Rs2).To(Equal(uint8(5)))
			Expect(inst.Rd).To(Equal(uint8(0)))
			Expect(inst.Imm).To(Equal(uint32(8)))
		})

		It("should reject byte loads", func() {
			_, err := decoder.Decode(0x00000003) // lb x0, 0(x0)
			Expect(err).To(HaveOccurred())

			var decodeErr *insts.DecodeError
			Expect(errors.As(err, &decodeErr)).To(BeTrue())
			Expect(decodeErr.Word).To(Equal(uint32(0x00000003)))
		})
	})

	Describe("control transfer", func() {
		It("should decode jal x1, 8", func() {
			inst := decode(0x008000ef)
			Expect(inst.Op).To(Equal(insts.OpJAL))
			Expect(inst.Format).To(Equal(insts.FormatJ))
			Expect(inst.Rd).To(Equal(uint8(1)))
			Expect(inst.Imm).To(Equal(uint32(8)))
		})

		It("should decode beq x0, x0, -4", func() {
			inst := decode(0xfe000ee3)
			Expect(inst.Op).To(Equal(insts.OpBEQ))
			Expect(inst.Imm).To(Equal(uint32(0x1ffc)))
			Expect(int32(inst.SignedImm())).To(Equal(int32(-4)))
		})
	})

	Describe("system", func() {
		It("should decode environment calls and returns", func() {
			Expect(decode(0x00000073).Op).To(Equal(insts.OpECALL))
			Expect(decode(0x00100073).Op).To(Equal(insts.OpEBREAK))
			Expect(decode(0x30200073).Op).To(Equal(insts.OpMRET))
		})

		It("should decode fence as addi x0, x0, 0", func() {
			inst := decode(0x0ff0000f)
			Expect(inst.Op).To(Equal(insts.OpADDI))
			Expect(inst.Rd).To(Equal(uint8(0)))
			Expect(inst.Rs1).To(Equal(uint8(0)))
			Expect(inst.Imm).To(Equal(uint32(0)))
		})

		It("should decode lui", func() {
			inst := decode(0x123452b7)
			Expect(inst.Op).To(Equal(insts.OpLUI))
			Expect(inst.Rd).To(Equal(uint8(5)))
			Expect(inst.Imm).To(Equal(uint32(0x12345000)))
		})
	})

	Describe("unprogrammed memory", func() {
		It("should fail on an all-zero word", func() {
			_, err := decoder.Decode(0)
			Expect(err).To(MatchError(insts.ErrUnknownInstruction))
		})
	})

	Describe("round trip", func() {
		It("should reproduce every supported op", func() {
			for _, op := range insts.Ops() {
				want := sampleInstruction(op)

				word, err := insts.Encode(want)
				Expect(err).NotTo(HaveOccurred())

				got, err := decoder.Decode(word)
				Expect(err).NotTo(HaveOccurred(), op.String())
				got.Raw = 0
				Expect(got).To(Equal(want), op.String())
			}
		})
	})
})

// sampleInstruction builds a decoded-form instruction with fields that are
// meaningful for op's format.
func sampleInstruction(op insts.Op) insts.Instruction {
	inst := insts.Instruction{Op: op, Format: op.Format()}

	switch op.Format() {
	case insts.FormatR:
		inst.Rd, inst.Rs1, inst.Rs2 = 5, 6, 7
	case insts.FormatI:
		inst.Rd, inst.Rs1, inst.Imm = 9, 10, 0x801
		switch op {
		case insts.OpSLLI, insts.OpSRLI, insts.OpSRAI:
			inst.Imm = 31
		case insts.OpECALL:
			inst.Rd, inst.Rs1, inst.Imm = 0, 0, 0
		case insts.OpEBREAK:
			inst.Rd, inst.Rs1, inst.Imm = 0, 0, 1
		case insts.OpURET:
			inst.Rd, inst.Rs1, inst.Imm = 0, 0, 0x002
		case insts.OpSRET:
			inst.Rd, inst.Rs1, inst.Imm = 0, 0, 0x102
		case insts.OpMRET:
			inst.Rd, inst.Rs1, inst.Imm = 0, 0, 0x302
		}
	case insts.FormatS:
		inst.Rs1, inst.Rs2, inst.Imm = 2, 3, 0xfa5
	case insts.FormatB:
		inst.Rs1, inst.Rs2, inst.Imm = 4, 8, 0x1a56
	case insts.FormatU:
		inst.Rd, inst.Imm = 11, 0xabcde000
	case insts.FormatJ:
		inst.Rd, inst.Imm = 1, 0x1a5a56
	}

	return inst
}
