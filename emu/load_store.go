package emu

import "github.com/sarchlab/ripsim/insts"

// LoadStoreUnit performs the data-memory half of loads and stores. Effective
// addresses are computed by the caller.
type LoadStoreUnit struct {
	memory *Memory
}

// NewLoadStoreUnit creates a new LoadStoreUnit connected to memory.
func NewLoadStoreUnit(memory *Memory) *LoadStoreUnit {
	return &LoadStoreUnit{memory: memory}
}

// Load reads the value op loads from addr. lw returns the word as a signed
// 32-bit value, which on RV32 is the word itself.
func (lsu *LoadStoreUnit) Load(op insts.Op, addr uint32) (uint32, error) {
	switch op {
	case insts.OpLW:
		v, err := lsu.memory.Read32(addr)
		if err != nil {
			return 0, err
		}
		return uint32(int32(v)), nil
	default:
		return 0, &UnsupportedOpError{Op: op, Unit: "load"}
	}
}

// Store writes value to addr as op prescribes.
func (lsu *LoadStoreUnit) Store(op insts.Op, addr, value uint32) error {
	switch op {
	case insts.OpSW:
		return lsu.memory.Write32(addr, value)
	default:
		return &UnsupportedOpError{Op: op, Unit: "store"}
	}
}
