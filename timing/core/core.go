// Package core assembles a runnable machine from a configuration and a
// program. It wraps either the 5-stage pipeline or the single-cycle
// emulator behind one interface.
package core

import (
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/ripsim/config"
	"github.com/sarchlab/ripsim/emu"
	"github.com/sarchlab/ripsim/loader"
	"github.com/sarchlab/ripsim/timing/pipeline"
)

// Stats holds performance statistics for the core.
type Stats struct {
	// Cycles is the total number of cycles simulated. For the single-cycle
	// engine it equals Instructions.
	Cycles uint64
	// Instructions is the number of instructions retired.
	Instructions uint64
	// Stalls is the number of stall cycles.
	Stalls uint64
	// Flushes is the number of pipeline flushes.
	Flushes uint64
	// DataHazards is the number of decodes that needed forwarding.
	DataHazards uint64
	// BranchPredictions and BranchMispredictions count control transfers
	// resolved in EX.
	BranchPredictions    uint64
	BranchMispredictions uint64
	// DecodeFaults is the number of undecodable words fetched.
	DecodeFaults uint64

	// Predictor holds the predictor's own counters, nil without one.
	Predictor *pipeline.BranchPredictorStats

	// SimulatedSeconds is Cycles at the configured clock.
	SimulatedSeconds float64
}

// CPI returns the cycles per instruction.
func (s Stats) CPI() float64 {
	if s.Instructions == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Instructions)
}

// Print writes a human-readable report.
func (s Stats) Print(w io.Writer) {
	fmt.Fprintf(w, "Total Instructions: %d\n", s.Instructions)
	fmt.Fprintf(w, "Total Cycles: %d\n", s.Cycles)
	fmt.Fprintf(w, "CPI: %.2f\n", s.CPI())
	fmt.Fprintf(w, "Simulated time: %.9f s\n", s.SimulatedSeconds)
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Pipeline Events:\n")
	fmt.Fprintf(w, "  Stalls:         %d\n", s.Stalls)
	fmt.Fprintf(w, "  Flushes:        %d\n", s.Flushes)
	fmt.Fprintf(w, "  Data hazards:   %d\n", s.DataHazards)
	fmt.Fprintf(w, "  Branches:       %d\n", s.BranchPredictions)
	fmt.Fprintf(w, "  Mispredictions: %d\n", s.BranchMispredictions)
	fmt.Fprintf(w, "  Decode faults:  %d\n", s.DecodeFaults)

	if s.Predictor != nil {
		fmt.Fprintf(w, "\n")
		fmt.Fprintf(w, "Branch Predictor:\n")
		fmt.Fprintf(w, "  Accuracy:     %.1f%%\n", s.Predictor.Accuracy())
		fmt.Fprintf(w, "  BTB hit rate: %.1f%%\n", s.Predictor.BTBHitRate())
	}
}

// Option configures a Core.
type Option func(*Core)

// WithLogger sets the logger handed to the engine.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *Core) {
		c.logger = logger
	}
}

// WithTrace dumps the pipeline state to w every cycle. It has no effect on
// the single-cycle engine.
func WithTrace(w io.Writer) Option {
	return func(c *Core) {
		c.trace = w
	}
}

// Core represents a loaded CPU model.
type Core struct {
	config *config.Config

	regFile *emu.RegFile
	csrs    *emu.CSRFile
	memory  *emu.Memory

	// Exactly one of pipeline and emulator is set.
	pipeline *pipeline.Pipeline
	emulator *emu.Emulator

	logger logrus.FieldLogger
	trace  io.Writer

	halted bool
}

// New builds the machine described by cfg and loads prog into it.
func New(cfg *config.Config, prog *loader.Program, opts ...Option) (*Core, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	c := &Core{
		config:  cfg,
		regFile: &emu.RegFile{},
		csrs:    emu.NewCSRFile(),
		memory:  emu.NewMemory(cfg.MemoryBase, cfg.MemorySize),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		c.logger = l
	}

	if cfg.StackPointer != nil {
		c.regFile.WriteReg(emu.RegSP, *cfg.StackPointer)
	}

	if err := prog.LoadInto(c.memory); err != nil {
		return nil, fmt.Errorf("load program: %w", err)
	}

	start := prog.Entry
	if cfg.StartAddress != nil {
		start = *cfg.StartAddress
	}

	var err error
	if cfg.SingleCycle {
		err = c.buildEmulator(prog, start)
	} else {
		err = c.buildPipeline(start)
	}
	if err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Core) buildEmulator(prog *loader.Program, start uint32) error {
	c.emulator = emu.NewEmulator(c.regFile, c.csrs, c.memory,
		emu.WithLogger(c.logger),
		emu.WithMaxInstructions(c.config.MaxCycles),
	)

	for _, seg := range prog.Code() {
		if err := c.emulator.LoadProgram(seg.Addr, c.codeImage(seg)); err != nil {
			return err
		}
	}
	c.emulator.SetPC(start)

	return nil
}

// codeImage returns the part of seg below the configured end address.
func (c *Core) codeImage(seg loader.Segment) []byte {
	end := c.config.EndAddress
	if end == nil || *end >= seg.Addr+uint32(len(seg.Data)) {
		return seg.Data
	}
	if *end <= seg.Addr {
		return nil
	}
	return seg.Data[:*end-seg.Addr]
}

func (c *Core) buildPipeline(start uint32) error {
	opts := []pipeline.PipelineOption{
		pipeline.WithCSRFile(c.csrs),
		pipeline.WithLogger(c.logger),
		pipeline.WithStartAddress(start),
		pipeline.WithMaxCycles(c.config.MaxCycles),
	}

	kind, ok, err := c.config.PredictorKind()
	if err != nil {
		return err
	}
	if ok {
		bp, err := pipeline.NewBranchPredictor(kind, c.config.BranchPredictor)
		if err != nil {
			return err
		}
		opts = append(opts, pipeline.WithBranchPredictor(bp))
	}

	if c.config.EndAddress != nil {
		opts = append(opts, pipeline.WithEndAddress(*c.config.EndAddress))
	}
	if c.config.StrictDecode {
		opts = append(opts, pipeline.WithStrictDecode())
	}
	if c.trace != nil {
		opts = append(opts, pipeline.WithTrace(c.trace))
	}

	c.pipeline = pipeline.NewPipeline(c.regFile, c.memory, opts...)
	return nil
}

// Pipeline returns the pipeline, nil for the single-cycle engine.
func (c *Core) Pipeline() *pipeline.Pipeline {
	return c.pipeline
}

// Emulator returns the single-cycle engine, nil for the pipeline.
func (c *Core) Emulator() *emu.Emulator {
	return c.emulator
}

// RegFile returns the register file.
func (c *Core) RegFile() *emu.RegFile {
	return c.regFile
}

// CSRFile returns the CSR file.
func (c *Core) CSRFile() *emu.CSRFile {
	return c.csrs
}

// Memory returns the memory.
func (c *Core) Memory() *emu.Memory {
	return c.memory
}

// PC returns the next fetch address.
func (c *Core) PC() uint32 {
	if c.pipeline != nil {
		return c.pipeline.PC()
	}
	return c.emulator.PC()
}

// Halted returns true once the program has finished.
func (c *Core) Halted() bool {
	if c.pipeline != nil {
		return c.pipeline.Halted()
	}
	return c.halted
}

// Step advances one cycle of the pipeline or one instruction of the
// single-cycle engine. It returns false once the program has finished.
func (c *Core) Step() (bool, error) {
	if c.pipeline != nil {
		if err := c.pipeline.Tick(); err != nil {
			return false, err
		}
		return !c.pipeline.Halted(), nil
	}

	if c.halted {
		return false, nil
	}
	res := c.emulator.Step()
	if res.Err != nil {
		return false, res.Err
	}
	c.halted = res.Halted
	return !c.halted, nil
}

// RunCycles steps up to n times. Returns true if still running.
func (c *Core) RunCycles(n uint64) (bool, error) {
	if c.pipeline != nil {
		return c.pipeline.RunCycles(n)
	}

	for i := uint64(0); i < n; i++ {
		running, err := c.Step()
		if err != nil || !running {
			return running, err
		}
	}
	return !c.halted, nil
}

// Run executes until the program finishes or a fatal error occurs.
func (c *Core) Run() error {
	if c.pipeline != nil {
		return c.pipeline.Run()
	}

	err := c.emulator.Run()
	if err == nil {
		c.halted = true
	}
	return err
}

// Stats returns performance statistics for the core.
func (c *Core) Stats() Stats {
	var s Stats

	if c.pipeline != nil {
		ps := c.pipeline.Stats()
		s = Stats{
			Cycles:               ps.Cycles,
			Instructions:         ps.Instructions,
			Stalls:               ps.Stalls,
			Flushes:              ps.Flushes,
			DataHazards:          ps.DataHazards,
			BranchPredictions:    ps.BranchPredictions,
			BranchMispredictions: ps.BranchMispredictions,
			DecodeFaults:         ps.DecodeFaults,
		}
		if bp := c.pipeline.BranchPredictor(); bp != nil {
			bs := bp.Stats()
			s.Predictor = &bs
		}
	} else {
		n := c.emulator.InstructionCount()
		s = Stats{Cycles: n, Instructions: n}
	}

	s.SimulatedSeconds = float64(s.Cycles) / float64(c.config.Frequency)
	return s
}

// DumpRegisters writes the register file and the PC.
func (c *Core) DumpRegisters(w io.Writer) {
	regs := c.regFile.Snapshot()
	for i := 0; i < emu.NumRegs; i += 4 {
		fmt.Fprintf(w, "x%-2d 0x%08x  x%-2d 0x%08x  x%-2d 0x%08x  x%-2d 0x%08x\n",
			i, regs[i], i+1, regs[i+1], i+2, regs[i+2], i+3, regs[i+3])
	}
	fmt.Fprintf(w, "pc  0x%08x\n", c.PC())
}

// ErrNoPipeline is returned by DumpPipeline for the single-cycle engine.
var ErrNoPipeline = errors.New("single-cycle engine has no pipeline")

// DumpPipeline writes the stage contents.
func (c *Core) DumpPipeline(w io.Writer) error {
	if c.pipeline == nil {
		return ErrNoPipeline
	}
	c.pipeline.State().Dump(w)
	return nil
}
