// Package pipeline provides the 5-stage pipeline implementation for timing simulation.
package pipeline

import (
	"fmt"
	"io"

	"github.com/sarchlab/ripsim/insts"
)

// Stage identifies a pipeline position.
type Stage int

// Pipeline stages in program order.
const (
	StageIF Stage = iota
	StageDE
	StageEX
	StageMA
	StageWB

	NumStages = 5
)

var stageNames = [NumStages]string{"IF", "DE", "EX", "MA", "WB"}

// String returns the two-letter stage name.
func (s Stage) String() string {
	if s < 0 || s >= NumStages {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageNames[s]
}

// Slot is the content of one stage. An invalid slot is a bubble; its PC
// still records the address fetch was attempted at.
type Slot struct {
	// Valid indicates if this slot holds an instruction.
	Valid bool

	// PC is the fetch address of the instruction.
	PC uint32

	// Inst is the decoded instruction.
	Inst insts.Instruction

	// PredictedPC is the next PC chosen at fetch time.
	PredictedPC uint32
}

// State is the per-cycle snapshot of the pipeline: one slot per stage plus
// the values each stage latches for the stage after it.
//
// Latched values belong to the instruction that produced them and are read
// by the next stage in the following cycle, before being overwritten.
type State struct {
	slots [NumStages]Slot

	// Decode-stage outputs.
	DERs1Val uint32
	DERs2Val uint32
	DEImmVal uint32

	// Execute-stage outputs. EXRdVal is the effective address for lw and sw.
	EXRdVal    uint32
	EXStoreVal uint32

	// Memory-stage output.
	MARdVal uint32

	branchPC      uint32
	branchPending bool
}

// Push advances every slot one stage and places slot in IF. The WB slot
// retires.
func (s *State) Push(slot Slot) {
	copy(s.slots[StageDE:], s.slots[StageIF:StageWB])
	s.slots[StageIF] = slot
}

// PushBack advances only the back end for a stall cycle: WB takes MA, MA
// takes EX and EX becomes a bubble. IF and DE hold their instructions.
func (s *State) PushBack() {
	s.slots[StageWB] = s.slots[StageMA]
	s.slots[StageMA] = s.slots[StageEX]
	s.slots[StageEX] = Slot{PC: s.slots[StageEX].PC}
}

// Invalidate turns stage into a bubble.
func (s *State) Invalidate(stage Stage) {
	s.slots[stage].Valid = false
	s.slots[stage].Inst = insts.Instruction{}
}

// IsEmpty reports whether every stage is a bubble.
func (s *State) IsEmpty() bool {
	for i := range s.slots {
		if s.slots[i].Valid {
			return false
		}
	}
	return true
}

// Slot returns the content of stage.
func (s *State) Slot(stage Stage) Slot {
	return s.slots[stage]
}

// Valid reports whether stage holds an instruction.
func (s *State) Valid(stage Stage) bool {
	return s.slots[stage].Valid
}

// PC returns the PC recorded in stage, also for bubbles.
func (s *State) PC(stage Stage) uint32 {
	return s.slots[stage].PC
}

// SetBranchPC records a redirect the driver applies at the end of the cycle.
func (s *State) SetBranchPC(pc uint32) {
	s.branchPC = pc
	s.branchPending = true
}

// TakeBranchPC returns and clears the pending redirect.
func (s *State) TakeBranchPC() (uint32, bool) {
	if !s.branchPending {
		return 0, false
	}
	s.branchPending = false
	return s.branchPC, true
}

// Reset empties every stage and clears the latches.
func (s *State) Reset() {
	*s = State{}
}

// Dump writes one line per stage followed by the latched values.
func (s *State) Dump(w io.Writer) {
	for stage := StageIF; stage < NumStages; stage++ {
		slot := s.slots[stage]
		if !slot.Valid {
			fmt.Fprintf(w, "%s 0x%08x: -\n", stage, slot.PC)
			continue
		}
		fmt.Fprintf(w, "%s 0x%08x: %s\n", stage, slot.PC, slot.Inst)
	}
	fmt.Fprintf(w, "DE rs1=0x%08x rs2=0x%08x imm=0x%08x\n", s.DERs1Val, s.DERs2Val, s.DEImmVal)
	fmt.Fprintf(w, "EX rd=0x%08x store=0x%08x\n", s.EXRdVal, s.EXStoreVal)
	fmt.Fprintf(w, "MA rd=0x%08x\n", s.MARdVal)
}
