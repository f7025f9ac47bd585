package pipeline

import "github.com/sarchlab/ripsim/insts"

// ForwardSource indicates where a decode-stage operand comes from.
type ForwardSource int

const (
	// ForwardNone means no forwarding needed - use register file value.
	ForwardNone ForwardSource = iota
	// ForwardFromEX means forward the execute-stage result.
	ForwardFromEX
	// ForwardFromMA means forward the memory-stage result.
	ForwardFromMA
)

// String returns a short name for traces.
func (f ForwardSource) String() string {
	switch f {
	case ForwardFromEX:
		return "EX"
	case ForwardFromMA:
		return "MA"
	default:
		return "RF"
	}
}

// ForwardingResult contains forwarding decisions for both source operands.
type ForwardingResult struct {
	Rs1 ForwardSource
	Rs2 ForwardSource
}

// Any reports whether either operand is forwarded.
func (r ForwardingResult) Any() bool {
	return r.Rs1 != ForwardNone || r.Rs2 != ForwardNone
}

// HazardUnit detects data hazards and determines forwarding/stall signals.
type HazardUnit struct{}

// NewHazardUnit creates a new hazard detection unit.
func NewHazardUnit() *HazardUnit {
	return &HazardUnit{}
}

// DetectForwarding decides the source of each operand inst reads while it
// sits in DE. Sources inst does not read are left at ForwardNone.
func (h *HazardUnit) DetectForwarding(s *State, inst insts.Instruction) ForwardingResult {
	result := ForwardingResult{}

	if inst.ReadsRs1() {
		result.Rs1 = h.detectForwardForReg(s, inst.Rs1)
	}
	if inst.ReadsRs2() {
		result.Rs2 = h.detectForwardForReg(s, inst.Rs2)
	}

	return result
}

// detectForwardForReg checks if a specific register needs forwarding.
func (h *HazardUnit) detectForwardForReg(s *State, reg uint8) ForwardSource {
	// x0 always reads as 0, no need to forward
	if reg == 0 {
		return ForwardNone
	}

	// Priority: EX has precedence over MA (younger producer, more recent value)
	if producesReg(s.Slot(StageEX), reg) {
		return ForwardFromEX
	}

	if producesReg(s.Slot(StageMA), reg) {
		return ForwardFromMA
	}

	return ForwardNone
}

func producesReg(slot Slot, reg uint8) bool {
	return slot.Valid && slot.Inst.WritesRd() && slot.Inst.Rd == reg
}

// DetectLoadUseHazard reports whether the instruction in DE reads the
// destination of a load in EX. The load value only exists after the memory
// stage, so DE must wait one cycle.
func (h *HazardUnit) DetectLoadUseHazard(s *State) bool {
	ex := s.Slot(StageEX)
	de := s.Slot(StageDE)

	if !ex.Valid || !de.Valid || !ex.Inst.Op.IsLoad() {
		return false
	}

	loadRd := ex.Inst.Rd
	if loadRd == 0 {
		return false
	}

	if de.Inst.ReadsRs1() && de.Inst.Rs1 == loadRd {
		return true
	}
	if de.Inst.ReadsRs2() && de.Inst.Rs2 == loadRd {
		return true
	}

	return false
}

// GetForwardedValue returns the value to use based on forwarding decision.
func (h *HazardUnit) GetForwardedValue(
	forward ForwardSource,
	originalValue uint32,
	s *State,
) uint32 {
	switch forward {
	case ForwardFromEX:
		return s.EXRdVal
	case ForwardFromMA:
		return s.MARdVal
	default:
		return originalValue
	}
}
