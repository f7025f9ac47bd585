package insts

import (
	"errors"
	"fmt"
)

// Major opcodes, inst[6:0].
const (
	opcodeLoad    = 0b0000011
	opcodeMiscMem = 0b0001111
	opcodeOpImm   = 0b0010011
	opcodeAUIPC   = 0b0010111
	opcodeStore   = 0b0100011
	opcodeOp      = 0b0110011
	opcodeLUI     = 0b0110111
	opcodeBranch  = 0b1100011
	opcodeJALR    = 0b1100111
	opcodeJAL     = 0b1101111
	opcodeSystem  = 0b1110011
)

const (
	funct7Base = 0b0000000
	funct7Alt  = 0b0100000
	funct7Mul  = 0b0000001
)

// ErrUnknownInstruction is returned for words that do not encode a supported
// instruction.
var ErrUnknownInstruction = errors.New("unknown instruction")

// DecodeError describes a word the decoder rejected.
type DecodeError struct {
	Word   uint32
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode 0x%08x: %s", e.Word, e.Reason)
}

// Unwrap lets errors.Is match ErrUnknownInstruction.
func (e *DecodeError) Unwrap() error { return ErrUnknownInstruction }

func unknown(word uint32, format string, args ...any) error {
	return &DecodeError{Word: word, Reason: fmt.Sprintf(format, args...)}
}

// Decoder decodes RV32IM machine code into instructions.
type Decoder struct{}

// NewDecoder creates a new RISC-V instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes a 32-bit instruction word.
func (d *Decoder) Decode(word uint32) (Instruction, error) {
	inst := Instruction{
		Rd:  Rd(word),
		Rs1: Rs1(word),
		Rs2: Rs2(word),
		Raw: word,
	}

	var err error
	switch opcode := Opcode(word); opcode {
	case opcodeLoad:
		err = d.decodeLoad(word, &inst)
	case opcodeMiscMem:
		err = d.decodeMiscMem(word, &inst)
	case opcodeOpImm:
		err = d.decodeOpImm(word, &inst)
	case opcodeAUIPC:
		inst.Op = OpAUIPC
		inst.Imm = ImmU(word)
	case opcodeLUI:
		inst.Op = OpLUI
		inst.Imm = ImmU(word)
	case opcodeStore:
		err = d.decodeStore(word, &inst)
	case opcodeOp:
		err = d.decodeOp(word, &inst)
	case opcodeBranch:
		err = d.decodeBranch(word, &inst)
	case opcodeJALR:
		if Funct3(word) != 0 {
			return Instruction{}, unknown(word, "jalr with funct3=%03b", Funct3(word))
		}
		inst.Op = OpJALR
		inst.Imm = ImmI(word)
	case opcodeJAL:
		inst.Op = OpJAL
		inst.Imm = ImmJ(word)
	case opcodeSystem:
		err = d.decodeSystem(word, &inst)
	default:
		return Instruction{}, unknown(word, "unsupported opcode %07b", opcode)
	}

	if err != nil {
		return Instruction{}, err
	}

	inst.Format = inst.Op.Format()
	d.clearUnusedFields(&inst)

	return inst, nil
}

// clearUnusedFields zeroes register fields the format does not encode, so
// immediate bits never masquerade as register numbers.
func (d *Decoder) clearUnusedFields(inst *Instruction) {
	switch inst.Format {
	case FormatI:
		inst.Rs2 = 0
	case FormatS, FormatB:
		inst.Rd = 0
	case FormatU, FormatJ:
		inst.Rs1 = 0
		inst.Rs2 = 0
	}
}

func (d *Decoder) decodeLoad(word uint32, inst *Instruction) error {
	switch Funct3(word) {
	case 0b010:
		inst.Op = OpLW
		inst.Imm = ImmI(word)
		return nil
	default:
		return unknown(word, "load with funct3=%03b is not implemented", Funct3(word))
	}
}

// decodeMiscMem decodes fence and fence.i, both modelled as addi x0, x0, 0.
func (d *Decoder) decodeMiscMem(word uint32, inst *Instruction) error {
	switch Funct3(word) {
	case 0b000, 0b001:
		inst.Op = OpADDI
		inst.Rd = 0
		inst.Rs1 = 0
		inst.Imm = 0
		return nil
	default:
		return unknown(word, "misc-mem with funct3=%03b", Funct3(word))
	}
}

func (d *Decoder) decodeOpImm(word uint32, inst *Instruction) error {
	inst.Imm = ImmI(word)

	switch Funct3(word) {
	case 0b000:
		inst.Op = OpADDI
	case 0b010:
		inst.Op = OpSLTI
	case 0b011:
		inst.Op = OpSLTIU
	case 0b100:
		inst.Op = OpXORI
	case 0b110:
		inst.Op = OpORI
	case 0b111:
		inst.Op = OpANDI
	case 0b001:
		if Funct7(word) != funct7Base {
			return unknown(word, "slli with funct7=%07b", Funct7(word))
		}
		inst.Op = OpSLLI
		inst.Imm = uint32(Rs2(word))
	case 0b101:
		switch Funct7(word) {
		case funct7Base:
			inst.Op = OpSRLI
		case funct7Alt:
			inst.Op = OpSRAI
		default:
			return unknown(word, "shift-right immediate with funct7=%07b", Funct7(word))
		}
		inst.Imm = uint32(Rs2(word))
	}

	return nil
}

func (d *Decoder) decodeStore(word uint32, inst *Instruction) error {
	switch Funct3(word) {
	case 0b010:
		inst.Op = OpSW
		inst.Imm = ImmS(word)
		return nil
	default:
		return unknown(word, "store with funct3=%03b is not implemented", Funct3(word))
	}
}

// rOps maps {funct7, funct3} to R-type operations.
var rOps = map[[2]uint32]Op{
	{funct7Base, 0b000}: OpADD,
	{funct7Alt, 0b000}:  OpSUB,
	{funct7Base, 0b001}: OpSLL,
	{funct7Base, 0b010}: OpSLT,
	{funct7Base, 0b011}: OpSLTU,
	{funct7Base, 0b100}: OpXOR,
	{funct7Base, 0b101}: OpSRL,
	{funct7Alt, 0b101}:  OpSRA,
	{funct7Base, 0b110}: OpOR,
	{funct7Base, 0b111}: OpAND,
	{funct7Mul, 0b000}:  OpMUL,
	{funct7Mul, 0b001}:  OpMULH,
	{funct7Mul, 0b010}:  OpMULHSU,
	{funct7Mul, 0b011}:  OpMULHU,
	{funct7Mul, 0b100}:  OpDIV,
	{funct7Mul, 0b101}:  OpDIVU,
	{funct7Mul, 0b110}:  OpREM,
	{funct7Mul, 0b111}:  OpREMU,
}

func (d *Decoder) decodeOp(word uint32, inst *Instruction) error {
	op, ok := rOps[[2]uint32{Funct7(word), Funct3(word)}]
	if !ok {
		return unknown(word, "op with funct7=%07b funct3=%03b", Funct7(word), Funct3(word))
	}
	inst.Op = op
	return nil
}

func (d *Decoder) decodeBranch(word uint32, inst *Instruction) error {
	inst.Imm = ImmB(word)

	switch Funct3(word) {
	case 0b000:
		inst.Op = OpBEQ
	case 0b001:
		inst.Op = OpBNE
	case 0b100:
		inst.Op = OpBLT
	case 0b101:
		inst.Op = OpBGE
	case 0b110:
		inst.Op = OpBLTU
	case 0b111:
		inst.Op = OpBGEU
	default:
		return unknown(word, "branch with funct3=%03b", Funct3(word))
	}

	return nil
}

func (d *Decoder) decodeSystem(word uint32, inst *Instruction) error {
	inst.Imm = ImmI(word)

	switch Funct3(word) {
	case 0b000:
		switch funct12 := ImmI(word); funct12 {
		case 0x000:
			inst.Op = OpECALL
		case 0x001:
			inst.Op = OpEBREAK
		case 0x002:
			inst.Op = OpURET
		case 0x102:
			inst.Op = OpSRET
		case 0x302:
			inst.Op = OpMRET
		default:
			return unknown(word, "system funct12=0x%03x", funct12)
		}
	case 0b001:
		inst.Op = OpCSRRW
	case 0b010:
		inst.Op = OpCSRRS
	case 0b011:
		inst.Op = OpCSRRC
	case 0b101:
		inst.Op = OpCSRRWI
	case 0b110:
		inst.Op = OpCSRRSI
	case 0b111:
		inst.Op = OpCSRRCI
	default:
		return unknown(word, "system funct3=%03b", Funct3(word))
	}

	return nil
}
