// Package emu provides functional RV32IM emulation: architectural state,
// execution units and a single-cycle reference emulator.
package emu

import (
	"math"

	"github.com/sarchlab/ripsim/insts"
)

// ALU implements the RV32I integer and RV32M multiply/divide operations.
// It is stateless; operands arrive already resolved (register values or
// sign-extended immediates) so the same unit serves both engines.
type ALU struct{}

// NewALU creates a new ALU.
func NewALU() *ALU {
	return &ALU{}
}

// Execute computes op on a and b. For immediate forms b is the
// sign-extended immediate, for shifts only its low five bits are used.
func (u *ALU) Execute(op insts.Op, a, b uint32) (uint32, error) {
	switch op {
	case insts.OpADD, insts.OpADDI:
		return a + b, nil
	case insts.OpSUB:
		return a - b, nil
	case insts.OpSLT, insts.OpSLTI:
		return boolToWord(int32(a) < int32(b)), nil
	case insts.OpSLTU, insts.OpSLTIU:
		return boolToWord(a < b), nil
	case insts.OpXOR, insts.OpXORI:
		return a ^ b, nil
	case insts.OpOR, insts.OpORI:
		return a | b, nil
	case insts.OpAND, insts.OpANDI:
		return a & b, nil
	case insts.OpSLL, insts.OpSLLI:
		return a << (b & 0x1f), nil
	case insts.OpSRL, insts.OpSRLI:
		return a >> (b & 0x1f), nil
	case insts.OpSRA, insts.OpSRAI:
		return uint32(int32(a) >> (b & 0x1f)), nil

	case insts.OpMUL:
		return uint32(int64(int32(a)) * int64(int32(b))), nil
	case insts.OpMULH:
		return uint32(uint64(int64(int32(a))*int64(int32(b))) >> 32), nil
	case insts.OpMULHSU:
		return uint32(uint64(int64(int32(a))*int64(b)) >> 32), nil
	case insts.OpMULHU:
		return uint32(uint64(a) * uint64(b) >> 32), nil
	case insts.OpDIV:
		return div(a, b), nil
	case insts.OpDIVU:
		if b == 0 {
			return math.MaxUint32, nil
		}
		return a / b, nil
	case insts.OpREM:
		return rem(a, b), nil
	case insts.OpREMU:
		if b == 0 {
			return a, nil
		}
		return a % b, nil

	default:
		return 0, &UnsupportedOpError{Op: op, Unit: "alu"}
	}
}

// div is signed division without traps: x/0 is -1 and MIN/-1 is MIN.
func div(a, b uint32) uint32 {
	sa, sb := int32(a), int32(b)
	switch {
	case sb == 0:
		return math.MaxUint32
	case sa == math.MinInt32 && sb == -1:
		return a
	default:
		return uint32(sa / sb)
	}
}

// rem is the signed remainder matching div: x%0 is x and MIN%-1 is 0.
func rem(a, b uint32) uint32 {
	sa, sb := int32(a), int32(b)
	switch {
	case sb == 0:
		return a
	case sa == math.MinInt32 && sb == -1:
		return 0
	default:
		return uint32(sa % sb)
	}
}

func boolToWord(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
