package insts

import "fmt"

// EncodeR assembles an R-type word.
func EncodeR(opcode, funct3, funct7 uint32, rd, rs1, rs2 uint8) uint32 {
	return funct7<<25 | uint32(rs2&0x1f)<<20 | uint32(rs1&0x1f)<<15 |
		(funct3&0x7)<<12 | uint32(rd&0x1f)<<7 | opcode&0x7f
}

// EncodeI assembles an I-type word. Only the low 12 bits of imm are used.
func EncodeI(opcode, funct3 uint32, rd, rs1 uint8, imm uint32) uint32 {
	return (imm&0xfff)<<20 | uint32(rs1&0x1f)<<15 | (funct3&0x7)<<12 |
		uint32(rd&0x1f)<<7 | opcode&0x7f
}

// EncodeS assembles an S-type word. Only the low 12 bits of imm are used.
func EncodeS(opcode, funct3 uint32, rs1, rs2 uint8, imm uint32) uint32 {
	return (imm>>5&0x7f)<<25 | uint32(rs2&0x1f)<<20 | uint32(rs1&0x1f)<<15 |
		(funct3&0x7)<<12 | (imm&0x1f)<<7 | opcode&0x7f
}

// EncodeB assembles a B-type word from a byte offset. Bit 0 of imm is dropped.
func EncodeB(opcode, funct3 uint32, rs1, rs2 uint8, imm uint32) uint32 {
	return (imm>>12&1)<<31 | (imm>>5&0x3f)<<25 | uint32(rs2&0x1f)<<20 |
		uint32(rs1&0x1f)<<15 | (funct3&0x7)<<12 | (imm>>1&0xf)<<8 |
		(imm>>11&1)<<7 | opcode&0x7f
}

// EncodeU assembles a U-type word. imm holds the value of bits 31:12 in place.
func EncodeU(opcode uint32, rd uint8, imm uint32) uint32 {
	return imm&0xfffff000 | uint32(rd&0x1f)<<7 | opcode&0x7f
}

// EncodeJ assembles a J-type word from a byte offset. Bit 0 of imm is dropped.
func EncodeJ(opcode uint32, rd uint8, imm uint32) uint32 {
	return (imm>>20&1)<<31 | (imm>>1&0x3ff)<<21 | (imm>>11&1)<<20 |
		(imm>>12&0xff)<<12 | uint32(rd&0x1f)<<7 | opcode&0x7f
}

// encoding is the fixed opcode/funct part of an operation.
type encoding struct {
	opcode uint32
	funct3 uint32
	funct7 uint32
}

var encodings = [numOps]encoding{
	OpADDI:  {opcodeOpImm, 0b000, 0},
	OpSLTI:  {opcodeOpImm, 0b010, 0},
	OpSLTIU: {opcodeOpImm, 0b011, 0},
	OpXORI:  {opcodeOpImm, 0b100, 0},
	OpORI:   {opcodeOpImm, 0b110, 0},
	OpANDI:  {opcodeOpImm, 0b111, 0},
	OpSLLI:  {opcodeOpImm, 0b001, funct7Base},
	OpSRLI:  {opcodeOpImm, 0b101, funct7Base},
	OpSRAI:  {opcodeOpImm, 0b101, funct7Alt},

	OpLW:     {opcodeLoad, 0b010, 0},
	OpJALR:   {opcodeJALR, 0b000, 0},
	OpECALL:  {opcodeSystem, 0b000, 0},
	OpEBREAK: {opcodeSystem, 0b000, 0},
	OpURET:   {opcodeSystem, 0b000, 0},
	OpSRET:   {opcodeSystem, 0b000, 0},
	OpMRET:   {opcodeSystem, 0b000, 0},
	OpCSRRW:  {opcodeSystem, 0b001, 0},
	OpCSRRS:  {opcodeSystem, 0b010, 0},
	OpCSRRC:  {opcodeSystem, 0b011, 0},
	OpCSRRWI: {opcodeSystem, 0b101, 0},
	OpCSRRSI: {opcodeSystem, 0b110, 0},
	OpCSRRCI: {opcodeSystem, 0b111, 0},

	OpADD:    {opcodeOp, 0b000, funct7Base},
	OpSUB:    {opcodeOp, 0b000, funct7Alt},
	OpSLL:    {opcodeOp, 0b001, funct7Base},
	OpSLT:    {opcodeOp, 0b010, funct7Base},
	OpSLTU:   {opcodeOp, 0b011, funct7Base},
	OpXOR:    {opcodeOp, 0b100, funct7Base},
	OpSRL:    {opcodeOp, 0b101, funct7Base},
	OpSRA:    {opcodeOp, 0b101, funct7Alt},
	OpOR:     {opcodeOp, 0b110, funct7Base},
	OpAND:    {opcodeOp, 0b111, funct7Base},
	OpMUL:    {opcodeOp, 0b000, funct7Mul},
	OpMULH:   {opcodeOp, 0b001, funct7Mul},
	OpMULHSU: {opcodeOp, 0b010, funct7Mul},
	OpMULHU:  {opcodeOp, 0b011, funct7Mul},
	OpDIV:    {opcodeOp, 0b100, funct7Mul},
	OpDIVU:   {opcodeOp, 0b101, funct7Mul},
	OpREM:    {opcodeOp, 0b110, funct7Mul},
	OpREMU:   {opcodeOp, 0b111, funct7Mul},

	OpSW: {opcodeStore, 0b010, 0},

	OpJAL: {opcodeJAL, 0, 0},

	OpBEQ:  {opcodeBranch, 0b000, 0},
	OpBNE:  {opcodeBranch, 0b001, 0},
	OpBLT:  {opcodeBranch, 0b100, 0},
	OpBGE:  {opcodeBranch, 0b101, 0},
	OpBLTU: {opcodeBranch, 0b110, 0},
	OpBGEU: {opcodeBranch, 0b111, 0},

	OpLUI:   {opcodeLUI, 0, 0},
	OpAUIPC: {opcodeAUIPC, 0, 0},
}

// systemFunct12 holds the fixed immediate of the privileged SYSTEM ops.
var systemFunct12 = map[Op]uint32{
	OpECALL:  0x000,
	OpEBREAK: 0x001,
	OpURET:   0x002,
	OpSRET:   0x102,
	OpMRET:   0x302,
}

// Encode assembles inst back into its machine word. Register fields the
// format does not use are ignored.
func Encode(inst Instruction) (uint32, error) {
	if !inst.Op.Valid() {
		return 0, fmt.Errorf("encode: invalid op %d", inst.Op)
	}

	e := encodings[inst.Op]

	switch inst.Op.Format() {
	case FormatR:
		return EncodeR(e.opcode, e.funct3, e.funct7, inst.Rd, inst.Rs1, inst.Rs2), nil
	case FormatI:
		if f12, ok := systemFunct12[inst.Op]; ok {
			return EncodeI(e.opcode, e.funct3, 0, 0, f12), nil
		}
		imm := inst.Imm
		switch inst.Op {
		case OpSLLI, OpSRLI, OpSRAI:
			imm = e.funct7<<5 | inst.Imm&0x1f
		}
		return EncodeI(e.opcode, e.funct3, inst.Rd, inst.Rs1, imm), nil
	case FormatS:
		return EncodeS(e.opcode, e.funct3, inst.Rs1, inst.Rs2, inst.Imm), nil
	case FormatB:
		return EncodeB(e.opcode, e.funct3, inst.Rs1, inst.Rs2, inst.Imm), nil
	case FormatU:
		return EncodeU(e.opcode, inst.Rd, inst.Imm), nil
	case FormatJ:
		return EncodeJ(e.opcode, inst.Rd, inst.Imm), nil
	default:
		return 0, fmt.Errorf("encode: op %s has no format", inst.Op)
	}
}

// MustEncode is Encode for statically known instructions; it panics on error.
func MustEncode(inst Instruction) uint32 {
	word, err := Encode(inst)
	if err != nil {
		panic(err)
	}
	return word
}

// Convenience encoders used by tests and the benchmark programs. Immediates
// are signed byte offsets or values.

// ADDI encodes addi rd, rs1, imm.
func ADDI(rd, rs1 uint8, imm int32) uint32 { return iType(OpADDI, rd, rs1, imm) }

// IType encodes any I-type arithmetic, load, jalr or CSR operation.
func IType(op Op, rd, rs1 uint8, imm int32) uint32 { return iType(op, rd, rs1, imm) }

func iType(op Op, rd, rs1 uint8, imm int32) uint32 {
	return MustEncode(Instruction{Op: op, Rd: rd, Rs1: rs1, Imm: uint32(imm) & 0xfff})
}

// RType encodes an R-type operation.
func RType(op Op, rd, rs1, rs2 uint8) uint32 {
	return MustEncode(Instruction{Op: op, Rd: rd, Rs1: rs1, Rs2: rs2})
}

// LW encodes lw rd, imm(rs1).
func LW(rd, rs1 uint8, imm int32) uint32 { return iType(OpLW, rd, rs1, imm) }

// SW encodes sw rs2, imm(rs1).
func SW(rs2, rs1 uint8, imm int32) uint32 {
	return MustEncode(Instruction{Op: OpSW, Rs1: rs1, Rs2: rs2, Imm: uint32(imm) & 0xfff})
}

// Branch encodes a conditional branch with a byte offset relative to its PC.
func Branch(op Op, rs1, rs2 uint8, offset int32) uint32 {
	return MustEncode(Instruction{Op: op, Rs1: rs1, Rs2: rs2, Imm: uint32(offset) & 0x1ffe})
}

// JAL encodes jal rd, offset.
func JAL(rd uint8, offset int32) uint32 {
	return MustEncode(Instruction{Op: OpJAL, Rd: rd, Imm: uint32(offset) & 0x1ffffe})
}

// JALR encodes jalr rd, imm(rs1).
func JALR(rd, rs1 uint8, imm int32) uint32 { return iType(OpJALR, rd, rs1, imm) }

// LUI encodes lui rd, upper where upper is the 20-bit value for bits 31:12.
func LUI(rd uint8, upper uint32) uint32 {
	return MustEncode(Instruction{Op: OpLUI, Rd: rd, Imm: upper << 12})
}

// AUIPC encodes auipc rd, upper.
func AUIPC(rd uint8, upper uint32) uint32 {
	return MustEncode(Instruction{Op: OpAUIPC, Rd: rd, Imm: upper << 12})
}

// Shift encodes slli, srli or srai.
func Shift(op Op, rd, rs1 uint8, shamt uint8) uint32 {
	return MustEncode(Instruction{Op: op, Rd: rd, Rs1: rs1, Imm: uint32(shamt & 0x1f)})
}

// CSR encodes a CSR operation; src is rs1 or, for the immediate forms, zimm.
func CSR(op Op, rd uint8, csr uint16, src uint8) uint32 {
	return MustEncode(Instruction{Op: op, Rd: rd, Rs1: src, Imm: uint32(csr) & 0xfff})
}

// System encodes ecall, ebreak, uret, sret or mret.
func System(op Op) uint32 { return MustEncode(Instruction{Op: op}) }
