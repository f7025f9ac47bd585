package emu

import "github.com/sarchlab/ripsim/insts"

// BranchUnit evaluates conditional branch predicates and computes
// control-transfer targets.
type BranchUnit struct{}

// NewBranchUnit creates a new BranchUnit.
func NewBranchUnit() *BranchUnit {
	return &BranchUnit{}
}

// Taken reports whether a conditional branch with operands a and b is taken.
// beq, bne, blt and bge compare signed; bltu and bgeu compare unsigned.
func (u *BranchUnit) Taken(op insts.Op, a, b uint32) (bool, error) {
	switch op {
	case insts.OpBEQ:
		return a == b, nil
	case insts.OpBNE:
		return a != b, nil
	case insts.OpBLT:
		return int32(a) < int32(b), nil
	case insts.OpBGE:
		return int32(a) >= int32(b), nil
	case insts.OpBLTU:
		return a < b, nil
	case insts.OpBGEU:
		return a >= b, nil
	default:
		return false, &UnsupportedOpError{Op: op, Unit: "branch"}
	}
}

// Resolution is the outcome of a control-transfer instruction.
type Resolution struct {
	Taken  bool
	Target uint32 // destination when Taken
	Link   uint32 // pc+4, written to rd by jal and jalr
}

// NextPC returns the address execution continues at.
func (r Resolution) NextPC(pc uint32) uint32 {
	if r.Taken {
		return r.Target
	}
	return pc + 4
}

// Resolve evaluates the control-transfer instruction at pc. rs1 and rs2 are
// the resolved source operands and imm the sign-extended immediate. ecall and
// ebreak resolve as not taken since trap delivery is not modelled.
func (u *BranchUnit) Resolve(op insts.Op, pc, rs1, rs2, imm uint32) (Resolution, error) {
	res := Resolution{Link: pc + 4}

	switch {
	case op == insts.OpJAL:
		res.Taken = true
		res.Target = pc + imm
	case op == insts.OpJALR:
		res.Taken = true
		res.Target = (rs1 + imm) &^ 1
	case op.IsBranch():
		taken, err := u.Taken(op, rs1, rs2)
		if err != nil {
			return Resolution{}, err
		}
		res.Taken = taken
		res.Target = pc + imm
	case op == insts.OpECALL, op == insts.OpEBREAK:
	default:
		return Resolution{}, &UnsupportedOpError{Op: op, Unit: "branch"}
	}

	return res, nil
}
