package emu

// Register numbers with a conventional ABI role.
const (
	RegZero uint8 = 0
	RegRA   uint8 = 1
	RegSP   uint8 = 2

	// NumRegs is the number of general-purpose registers.
	NumRegs = 32
)

// RegFile represents the RV32 general-purpose register file.
// X[0] is hardwired to zero: it always reads as 0 and writes are discarded.
type RegFile struct {
	X [NumRegs]uint32
}

// Read returns the value of register idx.
func (r *RegFile) Read(idx uint8) (uint32, error) {
	if idx >= NumRegs {
		return 0, &RegisterIndexError{Index: idx}
	}
	if idx == RegZero {
		return 0, nil
	}
	return r.X[idx], nil
}

// Write stores value into register idx. Writes to x0 are ignored.
func (r *RegFile) Write(idx uint8, value uint32) error {
	if idx >= NumRegs {
		return &RegisterIndexError{Index: idx}
	}
	if idx == RegZero {
		return nil
	}
	r.X[idx] = value
	return nil
}

// ReadReg reads a register the caller already knows is in range, such as a
// decoded 5-bit field. Out-of-range indices read as 0.
func (r *RegFile) ReadReg(idx uint8) uint32 {
	v, err := r.Read(idx)
	if err != nil {
		return 0
	}
	return v
}

// WriteReg writes a register the caller already knows is in range.
// Out-of-range indices and x0 are ignored.
func (r *RegFile) WriteReg(idx uint8, value uint32) {
	_ = r.Write(idx, value)
}

// Snapshot returns a copy of all 32 registers.
func (r *RegFile) Snapshot() [NumRegs]uint32 {
	s := r.X
	s[RegZero] = 0
	return s
}

// Reset clears every register.
func (r *RegFile) Reset() {
	r.X = [NumRegs]uint32{}
}
