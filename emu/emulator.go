package emu

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/ripsim/insts"
)

// ErrMaxInstructions is returned by Run when the instruction limit is hit
// before the program ends.
var ErrMaxInstructions = errors.New("max instructions reached")

// StepResult represents the result of executing a single instruction.
type StepResult struct {
	// Halted is true when the PC holds no program instruction, which is the
	// normal end of a run. Nothing was executed.
	Halted bool

	// PC and Inst identify the executed instruction.
	PC   uint32
	Inst insts.Instruction

	// Err is set if a fatal error occurred during execution.
	Err error
}

// Emulator executes RV32IM instructions one at a time, completing each one
// before the next starts. It serves as the reference the pipeline is checked
// against.
type Emulator struct {
	regFile *RegFile
	csrs    *CSRFile
	memory  *Memory
	decoder *insts.Decoder

	// Execution units
	exec *Executor
	lsu  *LoadStoreUnit

	logger logrus.FieldLogger

	// program holds the instructions decoded ahead of time, keyed by address.
	program map[uint32]insts.Instruction

	pc               uint32
	instructionCount uint64
	maxInstructions  uint64 // 0 means no limit
}

// EmulatorOption is a functional option for configuring the Emulator.
type EmulatorOption func(*Emulator)

// WithLogger sets the logger used for per-instruction tracing.
func WithLogger(logger logrus.FieldLogger) EmulatorOption {
	return func(e *Emulator) {
		e.logger = logger
	}
}

// WithMaxInstructions sets the maximum number of instructions to execute.
// A value of 0 means no limit.
func WithMaxInstructions(max uint64) EmulatorOption {
	return func(e *Emulator) {
		e.maxInstructions = max
	}
}

// NewEmulator creates an emulator over the given state. Nil arguments are
// replaced with fresh zeroed state and a default memory.
func NewEmulator(
	regFile *RegFile,
	csrs *CSRFile,
	memory *Memory,
	opts ...EmulatorOption,
) *Emulator {
	if regFile == nil {
		regFile = &RegFile{}
	}
	if csrs == nil {
		csrs = NewCSRFile()
	}
	if memory == nil {
		memory = NewDefaultMemory()
	}

	e := &Emulator{
		regFile: regFile,
		csrs:    csrs,
		memory:  memory,
		decoder: insts.NewDecoder(),
		exec:    NewExecutor(csrs),
		lsu:     NewLoadStoreUnit(memory),
		program: make(map[uint32]insts.Instruction),
		pc:      memory.Base(),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = newDefaultLogger()
	}

	return e
}

func newDefaultLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetLevel(logrus.WarnLevel)
	return l
}

// RegFile returns the emulator's register file.
func (e *Emulator) RegFile() *RegFile {
	return e.regFile
}

// CSRFile returns the emulator's CSR file.
func (e *Emulator) CSRFile() *CSRFile {
	return e.csrs
}

// Memory returns the emulator's memory.
func (e *Emulator) Memory() *Memory {
	return e.memory
}

// PC returns the address of the next instruction.
func (e *Emulator) PC() uint32 {
	return e.pc
}

// SetPC moves execution to pc.
func (e *Emulator) SetPC(pc uint32) {
	e.pc = pc
}

// InstructionCount returns the number of instructions executed.
func (e *Emulator) InstructionCount() uint64 {
	return e.instructionCount
}

// LoadProgram copies image to addr, decodes every word of it ahead of time
// and sets the PC to addr. All-zero words are padding and end the program if
// reached. Any other word that fails to decode makes the image unusable and
// is returned as an error.
func (e *Emulator) LoadProgram(addr uint32, image []byte) error {
	if err := e.memory.LoadProgram(addr, image); err != nil {
		return fmt.Errorf("load program: %w", err)
	}

	for off := 0; off+4 <= len(image); off += 4 {
		word := binary.LittleEndian.Uint32(image[off:])
		if word == 0 {
			continue
		}

		pc := addr + uint32(off)
		inst, err := e.decoder.Decode(word)
		if err != nil {
			return fmt.Errorf("load program: pc 0x%08x: %w", pc, err)
		}
		e.program[pc] = inst
	}

	e.pc = addr
	return nil
}

// Step executes a single instruction.
func (e *Emulator) Step() StepResult {
	pc := e.pc
	inst, ok := e.program[pc]
	if !ok {
		return StepResult{Halted: true, PC: pc}
	}

	if e.maxInstructions > 0 && e.instructionCount >= e.maxInstructions {
		return StepResult{PC: pc, Inst: inst, Err: ErrMaxInstructions}
	}

	if err := e.execute(pc, inst); err != nil {
		return StepResult{PC: pc, Inst: inst, Err: err}
	}

	e.instructionCount++

	e.logger.WithFields(logrus.Fields{
		"pc":   fmt.Sprintf("0x%08x", pc),
		"inst": inst.String(),
	}).Trace("retired")

	return StepResult{PC: pc, Inst: inst}
}

// Run executes instructions until the PC leaves the program or a fatal
// error occurs.
func (e *Emulator) Run() error {
	for {
		result := e.Step()
		if result.Halted {
			return nil
		}
		if result.Err != nil {
			return result.Err
		}
	}
}

// execute runs every stage of one instruction and advances the PC.
func (e *Emulator) execute(pc uint32, inst insts.Instruction) error {
	rs1 := e.regFile.ReadReg(inst.Rs1)
	rs2 := e.regFile.ReadReg(inst.Rs2)

	res, err := e.exec.Execute(inst, pc, rs1, rs2)
	if err != nil {
		return err
	}

	value := res.Value
	switch {
	case inst.Op.IsLoad():
		value, err = e.lsu.Load(inst.Op, res.Value)
		if err != nil {
			return fmt.Errorf("pc 0x%08x %s: %w", pc, inst.Op, err)
		}
	case inst.Op.IsStore():
		if err := e.lsu.Store(inst.Op, res.Value, res.StoreValue); err != nil {
			return fmt.Errorf("pc 0x%08x %s: %w", pc, inst.Op, err)
		}
	}

	if inst.WritesRd() {
		e.regFile.WriteReg(inst.Rd, value)
	}

	if res.Control {
		e.pc = res.Resolution.NextPC(pc)
	} else {
		e.pc = pc + 4
	}

	return nil
}
