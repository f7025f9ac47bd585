package pipeline

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/ripsim/emu"
)

// ErrMaxCycles is returned by Run when the cycle limit is reached before the
// pipeline drains.
var ErrMaxCycles = errors.New("max cycles reached")

// Statistics holds pipeline performance statistics.
type Statistics struct {
	// Cycles is the total number of cycles simulated. The final cycle that
	// only observes the empty pipeline is not counted.
	Cycles uint64
	// Instructions is the number of instructions completed (retired).
	Instructions uint64
	// Stalls is the number of load-use stall cycles.
	Stalls uint64
	// Flushes is the number of times IF and DE were discarded.
	Flushes uint64
	// DataHazards is the number of decodes that took an operand from EX or MA.
	DataHazards uint64
	// BranchPredictions is the number of control transfers resolved in EX.
	BranchPredictions uint64
	// BranchMispredictions is the number of control transfers whose fetch-time
	// next PC was wrong.
	BranchMispredictions uint64
	// DecodeFaults is the number of non-zero words fetched on the correct
	// path that did not decode.
	DecodeFaults uint64
}

// CPI returns the cycles per instruction.
func (s Statistics) CPI() float64 {
	if s.Instructions == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Instructions)
}

// PipelineOption is a functional option for configuring the Pipeline.
type PipelineOption func(*Pipeline)

// WithBranchPredictor consults bp at fetch and trains it in EX. Without a
// predictor every control transfer flushes IF and DE when it resolves.
func WithBranchPredictor(bp BranchPredictor) PipelineOption {
	return func(p *Pipeline) {
		p.branchPredictor = bp
	}
}

// WithCSRFile sets the CSR file CSR instructions operate on.
func WithCSRFile(csrs *emu.CSRFile) PipelineOption {
	return func(p *Pipeline) {
		p.csrs = csrs
	}
}

// WithLogger sets the logger. Forwarding is logged at trace level, the
// per-cycle stage summary at debug level and decode faults at warn level.
func WithLogger(logger logrus.FieldLogger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithTrace dumps the full pipeline state to w after every cycle.
func WithTrace(w io.Writer) PipelineOption {
	return func(p *Pipeline) {
		p.trace = w
	}
}

// WithStrictDecode makes an undecodable word on the correct path a fatal
// error instead of a bubble.
func WithStrictDecode() PipelineOption {
	return func(p *Pipeline) {
		p.strictDecode = true
	}
}

// WithStartAddress sets the address of the first fetch. The default is the
// memory base.
func WithStartAddress(addr uint32) PipelineOption {
	return func(p *Pipeline) {
		p.pc = addr
	}
}

// WithEndAddress ends the program when fetch reaches addr or beyond.
func WithEndAddress(addr uint32) PipelineOption {
	return func(p *Pipeline) {
		p.fetchStage.SetEndAddress(addr)
	}
}

// WithMaxCycles bounds Run. A value of 0 means no limit.
func WithMaxCycles(n uint64) PipelineOption {
	return func(p *Pipeline) {
		p.maxCycles = n
	}
}

// Pipeline implements a 5-stage in-order pipelined CPU model.
// Stages: Fetch (IF) -> Decode (DE) -> Execute (EX) -> Memory (MA) -> Writeback (WB)
type Pipeline struct {
	state State

	// Pipeline stages
	fetchStage     *FetchStage
	decodeStage    *DecodeStage
	executeStage   *ExecuteStage
	memoryStage    *MemoryStage
	writebackStage *WritebackStage

	// Hazard detection
	hazardUnit *HazardUnit

	// Branch prediction, nil for the always-flush policy
	branchPredictor BranchPredictor

	// Shared resources
	regFile *emu.RegFile
	csrs    *emu.CSRFile
	memory  *emu.Memory

	logger       logrus.FieldLogger
	trace        io.Writer
	strictDecode bool
	maxCycles    uint64

	// Program counter
	pc uint32

	// stallNext requests a load-use stall for the next cycle.
	stallNext bool

	// faultPC remembers the last reported decode fault so that refetching
	// the same word while the pipeline drains is reported once.
	faultPC      uint32
	faultPending bool

	// Statistics
	stats Statistics

	// Execution state
	halted bool
}

// NewPipeline creates a new 5-stage pipeline.
func NewPipeline(regFile *emu.RegFile, memory *emu.Memory, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		fetchStage:     NewFetchStage(memory),
		memoryStage:    NewMemoryStage(memory),
		writebackStage: NewWritebackStage(regFile),
		hazardUnit:     NewHazardUnit(),
		regFile:        regFile,
		memory:         memory,
		pc:             memory.Base(),
	}

	// Apply options
	for _, opt := range opts {
		opt(p)
	}

	if p.csrs == nil {
		p.csrs = emu.NewCSRFile()
	}
	if p.logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		p.logger = l
	}

	p.decodeStage = NewDecodeStage(regFile, p.hazardUnit)
	p.executeStage = NewExecuteStage(emu.NewExecutor(p.csrs))

	return p
}

// PC returns the address of the next fetch.
func (p *Pipeline) PC() uint32 {
	return p.pc
}

// SetPC sets the address of the next fetch.
func (p *Pipeline) SetPC(pc uint32) {
	p.pc = pc
}

// State returns the pipeline state for inspection.
func (p *Pipeline) State() *State {
	return &p.state
}

// RegFile returns the register file.
func (p *Pipeline) RegFile() *emu.RegFile {
	return p.regFile
}

// CSRFile returns the CSR file.
func (p *Pipeline) CSRFile() *emu.CSRFile {
	return p.csrs
}

// BranchPredictor returns the configured predictor, or nil.
func (p *Pipeline) BranchPredictor() BranchPredictor {
	return p.branchPredictor
}

// Stats returns pipeline statistics.
func (p *Pipeline) Stats() Statistics {
	return p.stats
}

// Halted returns true once the pipeline has drained.
func (p *Pipeline) Halted() bool {
	return p.halted
}

// Run executes the pipeline until it drains or a fatal error occurs.
func (p *Pipeline) Run() error {
	for !p.halted {
		if p.maxCycles > 0 && p.stats.Cycles >= p.maxCycles {
			return fmt.Errorf("pc 0x%08x after %d cycles: %w", p.pc, p.stats.Cycles, ErrMaxCycles)
		}
		if err := p.Tick(); err != nil {
			return err
		}
	}
	return nil
}

// RunCycles executes the pipeline for the specified number of cycles.
// Returns true if still running, false if halted.
func (p *Pipeline) RunCycles(cycles uint64) (bool, error) {
	for i := uint64(0); i < cycles && !p.halted; i++ {
		if err := p.Tick(); err != nil {
			return false, err
		}
	}
	return !p.halted, nil
}

// Tick executes one pipeline cycle.
//
// The cycle first advances the pipeline: a new instruction is fetched into
// IF and every older one moves a stage on, or, during a load-use stall, only
// EX, MA and WB advance. The stages then run in reverse order
// (WB→MA→EX→DE) so each one reads the values the stage ahead of it latched
// in the previous cycle before they are overwritten.
//
// Hazard handling:
//   - Operands are forwarded from EX, then MA, then read from the register file
//   - A load followed by a consumer of its result stalls DE for one cycle
//   - Control transfers resolve in EX and flush IF and DE when the fetch-time
//     next PC was wrong (always, without a predictor)
//
// A pending redirect takes effect after the stages, so the next fetch uses
// the resolved target.
func (p *Pipeline) Tick() error {
	if p.halted {
		return nil
	}

	if p.stallNext {
		p.stallNext = false
		p.state.PushBack()
		p.stats.Stalls++
	} else if err := p.fetch(); err != nil {
		return err
	}

	if p.state.Valid(StageWB) {
		p.writebackStage.Writeback(&p.state)
		p.stats.Instructions++
	}

	if p.state.Valid(StageMA) {
		if err := p.memoryStage.Access(&p.state); err != nil {
			return fmt.Errorf("cycle %d: %w", p.stats.Cycles+1, err)
		}
	}

	if p.state.Valid(StageEX) {
		if err := p.execute(); err != nil {
			return fmt.Errorf("cycle %d: %w", p.stats.Cycles+1, err)
		}
	}

	if p.state.Valid(StageDE) {
		p.decode()
	}

	p.dump()

	if p.state.IsEmpty() {
		p.halted = true
		return nil
	}

	p.stats.Cycles++

	if next, ok := p.state.TakeBranchPC(); ok {
		p.pc = next
	}

	return nil
}

// fetch fetches at the PC and pushes the result into IF.
func (p *Pipeline) fetch() error {
	pc := p.pc
	res := p.fetchStage.Fetch(pc)
	slot := Slot{PC: pc}

	switch {
	case res.OK:
		next := pc + 4
		if p.branchPredictor != nil && (res.Inst.Op.IsBranch() || res.Inst.Op.IsJump()) {
			next = p.branchPredictor.Predict(pc)
		}

		slot.Valid = true
		slot.Inst = res.Inst
		slot.PredictedPC = next
		p.pc = next
		p.faultPending = false

	case res.Fault != nil && !p.speculative():
		if err := p.reportFault(pc, res); err != nil {
			return err
		}
	}

	p.state.Push(slot)
	return nil
}

// speculative reports whether a control transfer that has not resolved yet
// precedes the instruction being fetched.
func (p *Pipeline) speculative() bool {
	for _, stage := range []Stage{StageIF, StageDE} {
		slot := p.state.Slot(stage)
		if slot.Valid && slot.Inst.FlushesPipeline() {
			return true
		}
	}
	return false
}

func (p *Pipeline) reportFault(pc uint32, res FetchResult) error {
	if p.strictDecode {
		return fmt.Errorf("fetch pc 0x%08x: %w", pc, res.Fault)
	}

	if p.faultPending && p.faultPC == pc {
		return nil
	}
	p.faultPending = true
	p.faultPC = pc
	p.stats.DecodeFaults++

	p.logger.WithFields(logrus.Fields{
		"pc":   fmt.Sprintf("0x%08x", pc),
		"word": fmt.Sprintf("0x%08x", res.Word),
	}).WithError(res.Fault).Warn("undecodable instruction, fetching a bubble")

	return nil
}

// execute runs EX and resolves control transfers.
func (p *Pipeline) execute() error {
	res, err := p.executeStage.Execute(&p.state)
	if err != nil {
		return err
	}

	if res.Control {
		p.resolveControl(p.state.Slot(StageEX), res.Resolution)
	}
	return nil
}

// resolveControl compares the resolved next PC with the one fetch followed
// and redirects when they differ. Without a predictor the younger stages
// are always discarded.
func (p *Pipeline) resolveControl(slot Slot, res emu.Resolution) {
	actual := res.NextPC(slot.PC)
	op := slot.Inst.Op
	p.stats.BranchPredictions++

	mispredicted := actual != slot.PredictedPC
	if mispredicted {
		p.stats.BranchMispredictions++
	}

	if p.branchPredictor == nil {
		p.flush(actual)
		return
	}

	if op.IsBranch() || op.IsJump() {
		p.branchPredictor.Update(slot.PC, res.Taken, res.Target)
	}

	if mispredicted {
		p.flush(actual)
	}
}

// flush discards IF and DE and redirects fetch to target.
func (p *Pipeline) flush(target uint32) {
	p.state.Invalidate(StageIF)
	p.state.Invalidate(StageDE)
	p.state.SetBranchPC(target)
	p.stats.Flushes++
}

// decode runs DE and requests a stall when it consumes a load still in EX.
func (p *Pipeline) decode() {
	fwd := p.decodeStage.Decode(&p.state)

	if p.hazardUnit.DetectLoadUseHazard(&p.state) {
		p.stallNext = true
		return
	}

	if fwd.Any() {
		p.stats.DataHazards++
		if !p.logEnabled(logrus.TraceLevel) {
			return
		}
		slot := p.state.Slot(StageDE)
		p.logger.WithFields(logrus.Fields{
			"pc":   fmt.Sprintf("0x%08x", slot.PC),
			"inst": slot.Inst.String(),
			"rs1":  fwd.Rs1.String(),
			"rs2":  fwd.Rs2.String(),
		}).Trace("forwarded operands")
	}
}

// dump emits the per-cycle trace.
func (p *Pipeline) dump() {
	if p.trace != nil {
		fmt.Fprintf(p.trace, "cycle %d pc 0x%08x\n", p.stats.Cycles+1, p.pc)
		p.state.Dump(p.trace)
		p.dumpRegs(p.trace)
	}

	if p.logEnabled(logrus.DebugLevel) {
		p.logger.WithField("cycle", p.stats.Cycles+1).Debug(p.summary())
	}
}

// logEnabled reports whether the logger emits level. Loggers that cannot
// tell are assumed to emit everything.
func (p *Pipeline) logEnabled(level logrus.Level) bool {
	switch l := p.logger.(type) {
	case *logrus.Logger:
		return l.IsLevelEnabled(level)
	case *logrus.Entry:
		return l.Logger.IsLevelEnabled(level)
	default:
		return true
	}
}

// summary renders one line with the PC and instruction of each stage.
func (p *Pipeline) summary() string {
	var b strings.Builder
	for stage := StageIF; stage < NumStages; stage++ {
		if stage > StageIF {
			b.WriteString(" | ")
		}
		slot := p.state.Slot(stage)
		if !slot.Valid {
			fmt.Fprintf(&b, "%s -", stage)
			continue
		}
		fmt.Fprintf(&b, "%s %08x %s", stage, slot.PC, slot.Inst)
	}
	return b.String()
}

func (p *Pipeline) dumpRegs(w io.Writer) {
	regs := p.regFile.Snapshot()
	for i := 0; i < emu.NumRegs; i += 4 {
		fmt.Fprintf(w, "x%-2d %08x  x%-2d %08x  x%-2d %08x  x%-2d %08x\n",
			i, regs[i], i+1, regs[i+1], i+2, regs[i+2], i+3, regs[i+3])
	}
}
