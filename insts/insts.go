// Package insts provides RV32IM instruction definitions and decoding.
package insts

import "fmt"

// Op represents a RISC-V operation.
type Op uint8

// Supported operations. The zero value is OpUnknown.
const (
	OpUnknown Op = iota

	// I-type arithmetic
	OpADDI
	OpSLTI
	OpSLTIU
	OpXORI
	OpORI
	OpANDI
	OpSLLI
	OpSRLI
	OpSRAI

	// I-type load, jump and system
	OpLW
	OpJALR
	OpECALL
	OpEBREAK
	OpURET
	OpSRET
	OpMRET
	OpCSRRW
	OpCSRRS
	OpCSRRC
	OpCSRRWI
	OpCSRRSI
	OpCSRRCI

	// R-type
	OpADD
	OpSUB
	OpSLL
	OpSLT
	OpSLTU
	OpXOR
	OpSRL
	OpSRA
	OpOR
	OpAND
	OpMUL
	OpMULH
	OpMULHSU
	OpMULHU
	OpDIV
	OpDIVU
	OpREM
	OpREMU

	// S-type
	OpSW

	// J-type
	OpJAL

	// B-type
	OpBEQ
	OpBNE
	OpBLT
	OpBGE
	OpBLTU
	OpBGEU

	// U-type
	OpLUI
	OpAUIPC

	numOps
)

// Format represents an instruction encoding format.
type Format uint8

// Instruction formats.
const (
	FormatUnknown Format = iota
	FormatR
	FormatI
	FormatS
	FormatB
	FormatU
	FormatJ
)

var formatNames = [...]string{
	FormatUnknown: "?",
	FormatR:       "R",
	FormatI:       "I",
	FormatS:       "S",
	FormatB:       "B",
	FormatU:       "U",
	FormatJ:       "J",
}

// String returns the single-letter format name.
func (f Format) String() string {
	if int(f) < len(formatNames) {
		return formatNames[f]
	}
	return "?"
}

// ImmWidth returns the bit width of the format's immediate, the position its
// sign bit is replicated from. R and U formats return 0.
func (f Format) ImmWidth() uint {
	switch f {
	case FormatI, FormatS:
		return 12
	case FormatB:
		return 13
	case FormatJ:
		return 21
	default:
		return 0
	}
}

// opKind is the static metadata for one Op.
type opKind struct {
	mnemonic string
	format   Format

	writesRd bool
	readsRs1 bool
	readsRs2 bool

	isLoad   bool
	isStore  bool
	isBranch bool
	isJump   bool
	isCSR    bool

	// flushes marks ops that resolve control flow in EX and discard the
	// younger instructions behind them.
	flushes bool
}

var (
	kindIArith = opKind{format: FormatI, writesRd: true, readsRs1: true}
	kindR      = opKind{format: FormatR, writesRd: true, readsRs1: true, readsRs2: true}
	kindBranch = opKind{format: FormatB, readsRs1: true, readsRs2: true, isBranch: true, flushes: true}
	kindSystem = opKind{format: FormatI}
	kindCSR    = opKind{format: FormatI, writesRd: true, readsRs1: true, isCSR: true}
	kindCSRImm = opKind{format: FormatI, writesRd: true, isCSR: true}
)

func named(k opKind, mnemonic string) opKind {
	k.mnemonic = mnemonic
	return k
}

// opKinds is indexed by Op.
var opKinds = [numOps]opKind{
	OpUnknown: {mnemonic: "unknown"},

	OpADDI:  named(kindIArith, "addi"),
	OpSLTI:  named(kindIArith, "slti"),
	OpSLTIU: named(kindIArith, "sltiu"),
	OpXORI:  named(kindIArith, "xori"),
	OpORI:   named(kindIArith, "ori"),
	OpANDI:  named(kindIArith, "andi"),
	OpSLLI:  named(kindIArith, "slli"),
	OpSRLI:  named(kindIArith, "srli"),
	OpSRAI:  named(kindIArith, "srai"),

	OpLW: {mnemonic: "lw", format: FormatI, writesRd: true, readsRs1: true, isLoad: true},
	OpJALR: {
		mnemonic: "jalr", format: FormatI, writesRd: true, readsRs1: true,
		isJump: true, flushes: true,
	},
	OpECALL:  {mnemonic: "ecall", format: FormatI, flushes: true},
	OpEBREAK: {mnemonic: "ebreak", format: FormatI, flushes: true},
	OpURET:   named(kindSystem, "uret"),
	OpSRET:   named(kindSystem, "sret"),
	OpMRET:   named(kindSystem, "mret"),

	OpCSRRW:  named(kindCSR, "csrrw"),
	OpCSRRS:  named(kindCSR, "csrrs"),
	OpCSRRC:  named(kindCSR, "csrrc"),
	OpCSRRWI: named(kindCSRImm, "csrrwi"),
	OpCSRRSI: named(kindCSRImm, "csrrsi"),
	OpCSRRCI: named(kindCSRImm, "csrrci"),

	OpADD:    named(kindR, "add"),
	OpSUB:    named(kindR, "sub"),
	OpSLL:    named(kindR, "sll"),
	OpSLT:    named(kindR, "slt"),
	OpSLTU:   named(kindR, "sltu"),
	OpXOR:    named(kindR, "xor"),
	OpSRL:    named(kindR, "srl"),
	OpSRA:    named(kindR, "sra"),
	OpOR:     named(kindR, "or"),
	OpAND:    named(kindR, "and"),
	OpMUL:    named(kindR, "mul"),
	OpMULH:   named(kindR, "mulh"),
	OpMULHSU: named(kindR, "mulhsu"),
	OpMULHU:  named(kindR, "mulhu"),
	OpDIV:    named(kindR, "div"),
	OpDIVU:   named(kindR, "divu"),
	OpREM:    named(kindR, "rem"),
	OpREMU:   named(kindR, "remu"),

	OpSW: {mnemonic: "sw", format: FormatS, readsRs1: true, readsRs2: true, isStore: true},

	OpJAL: {mnemonic: "jal", format: FormatJ, writesRd: true, isJump: true, flushes: true},

	OpBEQ:  named(kindBranch, "beq"),
	OpBNE:  named(kindBranch, "bne"),
	OpBLT:  named(kindBranch, "blt"),
	OpBGE:  named(kindBranch, "bge"),
	OpBLTU: named(kindBranch, "bltu"),
	OpBGEU: named(kindBranch, "bgeu"),

	OpLUI:   {mnemonic: "lui", format: FormatU, writesRd: true},
	OpAUIPC: {mnemonic: "auipc", format: FormatU, writesRd: true},
}

func (op Op) kind() opKind {
	if op >= numOps {
		return opKinds[OpUnknown]
	}
	return opKinds[op]
}

// String returns the assembler mnemonic.
func (op Op) String() string { return op.kind().mnemonic }

// Format returns the encoding format of the operation.
func (op Op) Format() Format { return op.kind().format }

// Valid reports whether op is a known operation.
func (op Op) Valid() bool { return op > OpUnknown && op < numOps }

// IsLoad reports whether op reads data memory.
func (op Op) IsLoad() bool { return op.kind().isLoad }

// IsStore reports whether op writes data memory.
func (op Op) IsStore() bool { return op.kind().isStore }

// IsBranch reports whether op is a conditional branch.
func (op Op) IsBranch() bool { return op.kind().isBranch }

// IsJump reports whether op is an unconditional jump (jal, jalr).
func (op Op) IsJump() bool { return op.kind().isJump }

// IsCSR reports whether op accesses a control/status register.
func (op Op) IsCSR() bool { return op.kind().isCSR }

// FlushesPipeline reports whether op discards younger in-flight instructions
// when it resolves in the execute stage.
func (op Op) FlushesPipeline() bool { return op.kind().flushes }

// Ops returns every supported operation in declaration order.
func Ops() []Op {
	ops := make([]Op, 0, numOps-1)
	for op := OpUnknown + 1; op < numOps; op++ {
		ops = append(ops, op)
	}
	return ops
}

// Instruction represents a decoded RISC-V instruction. Instructions are values
// and are never modified after decoding.
type Instruction struct {
	Op     Op     // Operation
	Format Format // Encoding format

	Rd  uint8 // Destination register
	Rs1 uint8 // First source register
	Rs2 uint8 // Second source register

	// Imm is the immediate gathered from the encoding, not yet sign-extended.
	// U-type immediates are already in their final position (bits 31:12).
	Imm uint32

	// Raw is the encoded word the instruction was decoded from.
	Raw uint32
}

// WritesRd reports whether the instruction produces a register result.
func (i Instruction) WritesRd() bool { return i.Op.kind().writesRd }

// ReadsRs1 reports whether the instruction consumes rs1.
func (i Instruction) ReadsRs1() bool { return i.Op.kind().readsRs1 }

// ReadsRs2 reports whether the instruction consumes rs2.
func (i Instruction) ReadsRs2() bool { return i.Op.kind().readsRs2 }

// FlushesPipeline reports whether the instruction flushes on resolution.
func (i Instruction) FlushesPipeline() bool { return i.Op.FlushesPipeline() }

// SignedImm returns the immediate sign-extended per the instruction format.
func (i Instruction) SignedImm() uint32 {
	if w := i.Op.Format().ImmWidth(); w > 0 {
		return SignExtend(i.Imm, w)
	}
	return i.Imm
}

// String renders the instruction in assembler syntax.
func (i Instruction) String() string {
	imm := int32(i.SignedImm())
	switch {
	case i.Op.IsLoad():
		return fmt.Sprintf("%s x%d, %d(x%d)", i.Op, i.Rd, imm, i.Rs1)
	case i.Op.IsStore():
		return fmt.Sprintf("%s x%d, %d(x%d)", i.Op, i.Rs2, imm, i.Rs1)
	case i.Op.IsCSR():
		csr := i.Imm & 0xfff
		if i.Op.kind().readsRs1 {
			return fmt.Sprintf("%s x%d, 0x%x, x%d", i.Op, i.Rd, csr, i.Rs1)
		}
		return fmt.Sprintf("%s x%d, 0x%x, %d", i.Op, i.Rd, csr, i.Rs1)
	}

	switch i.Format {
	case FormatR:
		return fmt.Sprintf("%s x%d, x%d, x%d", i.Op, i.Rd, i.Rs1, i.Rs2)
	case FormatI:
		switch i.Op {
		case OpECALL, OpEBREAK, OpURET, OpSRET, OpMRET:
			return i.Op.String()
		}
		return fmt.Sprintf("%s x%d, x%d, %d", i.Op, i.Rd, i.Rs1, imm)
	case FormatB:
		return fmt.Sprintf("%s x%d, x%d, %d", i.Op, i.Rs1, i.Rs2, imm)
	case FormatU:
		return fmt.Sprintf("%s x%d, 0x%x", i.Op, i.Rd, i.Imm>>12)
	case FormatJ:
		return fmt.Sprintf("%s x%d, %d", i.Op, i.Rd, imm)
	default:
		return fmt.Sprintf("unknown 0x%08x", i.Raw)
	}
}
