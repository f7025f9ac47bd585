package pipeline

import (
	"fmt"
	"strings"
)

// BranchPredictor guesses the next PC of a control-transfer instruction at
// fetch time and learns from the outcome once it resolves in EX. Recovering
// from a wrong guess is the pipeline's job.
type BranchPredictor interface {
	// Predict returns the predicted next PC for the instruction at pc.
	Predict(pc uint32) uint32
	// Update records the resolved outcome of the instruction at pc.
	Update(pc uint32, taken bool, target uint32)
	// Stats returns the accumulated statistics.
	Stats() BranchPredictorStats
	// Reset clears all predictor state and statistics.
	Reset()
}

// PredictorKind selects a BranchPredictor implementation.
type PredictorKind int

// Predictor kinds.
const (
	PredictorNone PredictorKind = iota
	PredictorOneBit
	PredictorTwoBit
	PredictorGshare
)

var predictorKindNames = map[PredictorKind]string{
	PredictorNone:   "none",
	PredictorOneBit: "onebit",
	PredictorTwoBit: "twobit",
	PredictorGshare: "gshare",
}

// String returns the name accepted by ParsePredictorKind.
func (k PredictorKind) String() string {
	if name, ok := predictorKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("PredictorKind(%d)", int(k))
}

// ParsePredictorKind maps a predictor name to its kind. "no" is accepted as
// an alias of "none".
func ParsePredictorKind(name string) (PredictorKind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "no", "none", "":
		return PredictorNone, nil
	case "onebit", "1bit":
		return PredictorOneBit, nil
	case "twobit", "2bit":
		return PredictorTwoBit, nil
	case "gshare":
		return PredictorGshare, nil
	default:
		return 0, fmt.Errorf("unknown branch predictor %q", name)
	}
}

// BranchPredictorConfig holds configuration for the branch predictor.
type BranchPredictorConfig struct {
	// BHTSize is the number of entries in the Branch History Table.
	// Must be a power of 2. Default is 1024.
	BHTSize uint32 `json:"bht_size" yaml:"bht_size"`
	// BTBSize is the number of entries in the Branch Target Buffer.
	// Must be a power of 2. Default is 256.
	BTBSize uint32 `json:"btb_size" yaml:"btb_size"`
	// HistoryBits is the global history length used by gshare. Default is 10.
	HistoryBits uint32 `json:"history_bits" yaml:"history_bits"`
}

// DefaultBranchPredictorConfig returns a default configuration.
func DefaultBranchPredictorConfig() BranchPredictorConfig {
	return BranchPredictorConfig{
		BHTSize:     1024,
		BTBSize:     256,
		HistoryBits: 10,
	}
}

func (c BranchPredictorConfig) withDefaults() BranchPredictorConfig {
	d := DefaultBranchPredictorConfig()
	if c.BHTSize == 0 {
		c.BHTSize = d.BHTSize
	}
	if c.BTBSize == 0 {
		c.BTBSize = d.BTBSize
	}
	if c.HistoryBits == 0 {
		c.HistoryBits = d.HistoryBits
	}
	return c
}

// Validate checks that the table sizes are powers of two.
func (c BranchPredictorConfig) Validate() error {
	c = c.withDefaults()
	if c.BHTSize&(c.BHTSize-1) != 0 {
		return fmt.Errorf("bht size %d is not a power of two", c.BHTSize)
	}
	if c.BTBSize&(c.BTBSize-1) != 0 {
		return fmt.Errorf("btb size %d is not a power of two", c.BTBSize)
	}
	if c.HistoryBits > 31 {
		return fmt.Errorf("history length %d exceeds 31 bits", c.HistoryBits)
	}
	return nil
}

// NewBranchPredictor creates the predictor of the given kind. PredictorNone
// returns a NonePredictor, not nil.
func NewBranchPredictor(kind PredictorKind, config BranchPredictorConfig) (BranchPredictor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch kind {
	case PredictorNone:
		return NewNonePredictor(), nil
	case PredictorOneBit:
		return NewOneBitPredictor(config), nil
	case PredictorTwoBit:
		return NewTwoBitPredictor(config), nil
	case PredictorGshare:
		return NewGsharePredictor(config), nil
	default:
		return nil, fmt.Errorf("unknown branch predictor kind %d", int(kind))
	}
}

// BranchPredictorStats holds statistics for the branch predictor.
type BranchPredictorStats struct {
	// Predictions is the total number of branch predictions made.
	Predictions uint64
	// Correct is the number of resolved outcomes whose direction matched
	// the predictor's state.
	Correct uint64
	// Mispredictions is the number of outcomes whose direction did not.
	Mispredictions uint64
	// BTBHits is the number of BTB hits.
	BTBHits uint64
	// BTBMisses is the number of BTB misses.
	BTBMisses uint64
}

// Accuracy returns the prediction accuracy as a percentage.
func (s BranchPredictorStats) Accuracy() float64 {
	total := s.Correct + s.Mispredictions
	if total == 0 {
		return 0
	}
	return float64(s.Correct) / float64(total) * 100
}

// BTBHitRate returns the BTB hit rate as a percentage.
func (s BranchPredictorStats) BTBHitRate() float64 {
	total := s.BTBHits + s.BTBMisses
	if total == 0 {
		return 0
	}
	return float64(s.BTBHits) / float64(total) * 100
}

// NonePredictor always predicts the sequential PC and never learns.
type NonePredictor struct {
	stats BranchPredictorStats
}

// NewNonePredictor creates a NonePredictor.
func NewNonePredictor() *NonePredictor {
	return &NonePredictor{}
}

// Predict returns pc+4.
func (p *NonePredictor) Predict(pc uint32) uint32 {
	p.stats.Predictions++
	return pc + 4
}

// Update only counts the outcome against the always-not-taken guess.
func (p *NonePredictor) Update(_ uint32, taken bool, _ uint32) {
	if taken {
		p.stats.Mispredictions++
	} else {
		p.stats.Correct++
	}
}

// Stats returns the branch predictor statistics.
func (p *NonePredictor) Stats() BranchPredictorStats { return p.stats }

// Reset clears the statistics.
func (p *NonePredictor) Reset() { p.stats = BranchPredictorStats{} }

// btbEntry represents an entry in the Branch Target Buffer.
type btbEntry struct {
	valid  bool
	pc     uint32 // The PC of the branch instruction
	target uint32 // The target address
}

// btb is a direct-mapped Branch Target Buffer.
type btb struct {
	entries []btbEntry
	mask    uint32
}

func newBTB(size uint32) *btb {
	return &btb{entries: make([]btbEntry, size), mask: size - 1}
}

func (b *btb) lookup(pc uint32) (uint32, bool) {
	e := b.entries[(pc>>2)&b.mask]
	if e.valid && e.pc == pc {
		return e.target, true
	}
	return 0, false
}

func (b *btb) insert(pc, target uint32) {
	b.entries[(pc>>2)&b.mask] = btbEntry{valid: true, pc: pc, target: target}
}

func (b *btb) reset() {
	for i := range b.entries {
		b.entries[i] = btbEntry{}
	}
}

// counterPredictor is a table of saturating counters paired with a BTB. It
// is the shared engine of the one-bit, two-bit and gshare predictors, which
// differ in counter width and in whether a global history is mixed into the
// table index.
type counterPredictor struct {
	counters []uint8
	mask     uint32
	max      uint8 // saturation value
	initial  uint8

	// history is XORed into the index. historyMask is 0 when no history is
	// kept.
	history     uint32
	historyMask uint32

	btb *btb

	stats BranchPredictorStats
}

func newCounterPredictor(config BranchPredictorConfig, saturate, initial uint8) counterPredictor {
	config = config.withDefaults()
	p := counterPredictor{
		counters: make([]uint8, config.BHTSize),
		mask:     config.BHTSize - 1,
		max:      saturate,
		initial:  initial,
		btb:      newBTB(config.BTBSize),
	}
	p.resetCounters()
	return p
}

func (p *counterPredictor) index(pc uint32) uint32 {
	return ((pc >> 2) ^ p.history) & p.mask
}

func (p *counterPredictor) resetCounters() {
	for i := range p.counters {
		p.counters[i] = p.initial
	}
}

// taken reports the direction a counter encodes: the upper half of its
// range is taken.
func (p *counterPredictor) taken(counter uint8) bool {
	return counter > p.max/2
}

// Predict returns the BTB target when the counter says taken and the BTB
// knows the target, pc+4 otherwise.
func (p *counterPredictor) Predict(pc uint32) uint32 {
	p.stats.Predictions++

	target, hit := p.btb.lookup(pc)
	if hit {
		p.stats.BTBHits++
	} else {
		p.stats.BTBMisses++
	}

	if hit && p.taken(p.counters[p.index(pc)]) {
		return target
	}
	return pc + 4
}

// Update trains the counter, records taken targets in the BTB and shifts
// the outcome into the history.
func (p *counterPredictor) Update(pc uint32, taken bool, target uint32) {
	idx := p.index(pc)
	counter := p.counters[idx]

	if p.taken(counter) == taken {
		p.stats.Correct++
	} else {
		p.stats.Mispredictions++
	}

	switch {
	case taken && counter < p.max:
		p.counters[idx] = counter + 1
	case !taken && counter > 0:
		p.counters[idx] = counter - 1
	}

	if taken {
		p.btb.insert(pc, target)
	}

	if p.historyMask != 0 {
		p.history <<= 1
		if taken {
			p.history |= 1
		}
		p.history &= p.historyMask
	}
}

// Stats returns the branch predictor statistics.
func (p *counterPredictor) Stats() BranchPredictorStats {
	return p.stats
}

// Reset clears all predictor state and statistics.
func (p *counterPredictor) Reset() {
	p.resetCounters()
	p.btb.reset()
	p.history = 0
	p.stats = BranchPredictorStats{}
}

// OneBitPredictor remembers the last outcome of each indexed branch. It
// starts out predicting not taken.
type OneBitPredictor struct {
	counterPredictor
}

// NewOneBitPredictor creates a one-bit predictor.
func NewOneBitPredictor(config BranchPredictorConfig) *OneBitPredictor {
	return &OneBitPredictor{counterPredictor: newCounterPredictor(config, 1, 0)}
}

// TwoBitPredictor implements a 2-bit saturating counter (bimodal) predictor
// with a Branch Target Buffer (BTB).
//
// Counter states: 0=Strongly Not Taken, 1=Weakly Not Taken,
// 2=Weakly Taken, 3=Strongly Taken. Counters start weakly taken.
type TwoBitPredictor struct {
	counterPredictor
}

// NewTwoBitPredictor creates a two-bit predictor.
func NewTwoBitPredictor(config BranchPredictorConfig) *TwoBitPredictor {
	return &TwoBitPredictor{counterPredictor: newCounterPredictor(config, 3, 2)}
}

// GsharePredictor indexes two-bit counters with the PC XORed with a global
// history of recent outcomes.
type GsharePredictor struct {
	counterPredictor
}

// NewGsharePredictor creates a gshare predictor.
func NewGsharePredictor(config BranchPredictorConfig) *GsharePredictor {
	config = config.withDefaults()
	g := &GsharePredictor{counterPredictor: newCounterPredictor(config, 3, 2)}
	g.historyMask = uint32(1)<<config.HistoryBits - 1
	return g
}

// History returns the global history register.
func (g *GsharePredictor) History() uint32 {
	return g.history
}
