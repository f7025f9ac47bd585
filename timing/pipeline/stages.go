package pipeline

import (
	"fmt"

	"github.com/sarchlab/ripsim/emu"
	"github.com/sarchlab/ripsim/insts"
)

// FetchStage handles instruction fetch from memory.
type FetchStage struct {
	memory  *emu.Memory
	decoder *insts.Decoder

	endAddress uint32
	hasEnd     bool
}

// NewFetchStage creates a new fetch stage.
func NewFetchStage(memory *emu.Memory) *FetchStage {
	return &FetchStage{
		memory:  memory,
		decoder: insts.NewDecoder(),
	}
}

// SetEndAddress makes every fetch at or past end report end of program.
func (s *FetchStage) SetEndAddress(end uint32) {
	s.endAddress = end
	s.hasEnd = true
}

// FetchResult holds the result of one fetch.
type FetchResult struct {
	// Inst is valid when OK is set.
	Inst insts.Instruction
	OK   bool

	// EndOfProgram is set when the PC is outside memory or the configured
	// range, or points at an all-zero word.
	EndOfProgram bool

	// Fault is the decode error for a non-zero word that is not a supported
	// instruction.
	Word  uint32
	Fault error
}

// Fetch reads and decodes the instruction at the given PC.
func (s *FetchStage) Fetch(pc uint32) FetchResult {
	if s.hasEnd && pc >= s.endAddress {
		return FetchResult{EndOfProgram: true}
	}
	if !s.memory.Contains(pc, 4) {
		return FetchResult{EndOfProgram: true}
	}

	word, err := s.memory.Read32(pc)
	if err != nil || word == 0 {
		return FetchResult{EndOfProgram: true}
	}

	inst, err := s.decoder.Decode(word)
	if err != nil {
		return FetchResult{Word: word, Fault: err}
	}

	return FetchResult{Inst: inst, OK: true, Word: word}
}

// DecodeStage handles operand resolution for the instruction in DE.
type DecodeStage struct {
	regFile *emu.RegFile
	hazard  *HazardUnit
}

// NewDecodeStage creates a new decode stage.
func NewDecodeStage(regFile *emu.RegFile, hazard *HazardUnit) *DecodeStage {
	return &DecodeStage{
		regFile: regFile,
		hazard:  hazard,
	}
}

// Decode latches the source operands and the sign-extended immediate of the
// DE instruction. Operands come from EX, then MA, then the register file.
func (s *DecodeStage) Decode(st *State) ForwardingResult {
	inst := st.Slot(StageDE).Inst
	fwd := s.hazard.DetectForwarding(st, inst)

	st.DERs1Val = s.hazard.GetForwardedValue(fwd.Rs1, s.regFile.ReadReg(inst.Rs1), st)
	st.DERs2Val = s.hazard.GetForwardedValue(fwd.Rs2, s.regFile.ReadReg(inst.Rs2), st)
	st.DEImmVal = inst.SignedImm()

	return fwd
}

// ExecuteStage handles ALU operations, address calculation and control
// resolution.
type ExecuteStage struct {
	exec *emu.Executor
}

// NewExecuteStage creates a new execute stage using exec.
func NewExecuteStage(exec *emu.Executor) *ExecuteStage {
	return &ExecuteStage{exec: exec}
}

// Execute computes the EX instruction from the operands DE latched last
// cycle and latches the result.
func (s *ExecuteStage) Execute(st *State) (emu.ExecResult, error) {
	slot := st.Slot(StageEX)

	res, err := s.exec.Execute(slot.Inst, slot.PC, st.DERs1Val, st.DERs2Val)
	if err != nil {
		return emu.ExecResult{}, err
	}

	st.EXRdVal = res.Value
	st.EXStoreVal = res.StoreValue

	return res, nil
}

// MemoryStage handles data memory access.
type MemoryStage struct {
	lsu *emu.LoadStoreUnit
}

// NewMemoryStage creates a new memory stage.
func NewMemoryStage(memory *emu.Memory) *MemoryStage {
	return &MemoryStage{lsu: emu.NewLoadStoreUnit(memory)}
}

// Access performs the load or store of the MA instruction at the address EX
// computed. Every other instruction passes the EX result through.
func (s *MemoryStage) Access(st *State) error {
	slot := st.Slot(StageMA)
	op := slot.Inst.Op

	switch {
	case op.IsStore():
		if err := s.lsu.Store(op, st.EXRdVal, st.EXStoreVal); err != nil {
			return fmt.Errorf("pc 0x%08x %s: %w", slot.PC, op, err)
		}
		st.MARdVal = st.EXRdVal
	case op.IsLoad():
		v, err := s.lsu.Load(op, st.EXRdVal)
		if err != nil {
			return fmt.Errorf("pc 0x%08x %s: %w", slot.PC, op, err)
		}
		st.MARdVal = v
	default:
		st.MARdVal = st.EXRdVal
	}

	return nil
}

// WritebackStage handles register writeback.
type WritebackStage struct {
	regFile *emu.RegFile
}

// NewWritebackStage creates a new writeback stage.
func NewWritebackStage(regFile *emu.RegFile) *WritebackStage {
	return &WritebackStage{regFile: regFile}
}

// Writeback writes the MA result to rd if the WB instruction produces one.
func (s *WritebackStage) Writeback(st *State) {
	inst := st.Slot(StageWB).Inst
	if inst.WritesRd() {
		s.regFile.WriteReg(inst.Rd, st.MARdVal)
	}
}
