package emu

import (
	"fmt"

	"github.com/sarchlab/ripsim/insts"
)

// ExecResult is what the execute step produces for one instruction.
type ExecResult struct {
	// Value is the rd result, or the effective address for lw and sw.
	Value uint32

	// StoreValue is the data sw writes.
	StoreValue uint32

	// Control is set for instructions that resolve control flow, with
	// Resolution describing where execution continues.
	Control    bool
	Resolution Resolution
}

// Executor applies the execute-stage semantics of every supported op. The
// pipeline and the single-cycle emulator share it, so both engines compute
// identical results for identical operands.
type Executor struct {
	alu    *ALU
	branch *BranchUnit
	csrs   *CSRFile
}

// NewExecutor creates an executor that performs CSR instructions on csrs.
func NewExecutor(csrs *CSRFile) *Executor {
	return &Executor{
		alu:    NewALU(),
		branch: NewBranchUnit(),
		csrs:   csrs,
	}
}

// Execute computes inst fetched from pc with resolved source operands rs1
// and rs2. Memory is not touched; loads and stores only get their address.
func (x *Executor) Execute(inst insts.Instruction, pc, rs1, rs2 uint32) (ExecResult, error) {
	imm := inst.SignedImm()
	op := inst.Op

	switch {
	case op.IsLoad():
		return ExecResult{Value: rs1 + imm}, nil
	case op.IsStore():
		return ExecResult{Value: rs1 + imm, StoreValue: rs2}, nil
	case op.FlushesPipeline():
		res, err := x.branch.Resolve(op, pc, rs1, rs2, imm)
		if err != nil {
			return ExecResult{}, fmt.Errorf("pc 0x%08x: %w", pc, err)
		}
		return ExecResult{Value: res.Link, Control: true, Resolution: res}, nil
	case op.IsCSR():
		return x.executeCSR(inst, pc, rs1)
	}

	switch op {
	case insts.OpLUI:
		return ExecResult{Value: inst.Imm}, nil
	case insts.OpAUIPC:
		return ExecResult{Value: pc + inst.Imm}, nil
	case insts.OpURET, insts.OpSRET, insts.OpMRET:
		return ExecResult{}, nil
	}

	b := rs2
	if op.Format() == insts.FormatI {
		b = imm
	}

	v, err := x.alu.Execute(op, rs1, b)
	if err != nil {
		return ExecResult{}, fmt.Errorf("pc 0x%08x: %w", pc, err)
	}
	return ExecResult{Value: v}, nil
}

func (x *Executor) executeCSR(inst insts.Instruction, pc, rs1 uint32) (ExecResult, error) {
	src := rs1
	switch inst.Op {
	case insts.OpCSRRWI, insts.OpCSRRSI, insts.OpCSRRCI:
		src = uint32(inst.Rs1)
	}

	old, err := x.csrs.Exchange(inst.Op, inst.Imm&0xfff, src)
	if err != nil {
		return ExecResult{}, fmt.Errorf("pc 0x%08x: %w", pc, err)
	}
	return ExecResult{Value: old}, nil
}
