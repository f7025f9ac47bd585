package emu

import (
	"fmt"

	"github.com/sarchlab/ripsim/insts"
)

// NumCSRs is the size of the 12-bit CSR address space.
const NumCSRs = 4096

// CSRFile holds the control and status registers as flat storage.
type CSRFile struct {
	regs [NumCSRs]uint32
}

// NewCSRFile creates a zeroed CSR file.
func NewCSRFile() *CSRFile {
	return &CSRFile{}
}

// Read returns the value of CSR addr.
func (c *CSRFile) Read(addr uint32) (uint32, error) {
	if addr >= NumCSRs {
		return 0, fmt.Errorf("read csr 0x%x: %w", addr, ErrInvalidCSR)
	}
	return c.regs[addr], nil
}

// Write stores value into CSR addr.
func (c *CSRFile) Write(addr uint32, value uint32) error {
	if addr >= NumCSRs {
		return fmt.Errorf("write csr 0x%x: %w", addr, ErrInvalidCSR)
	}
	c.regs[addr] = value
	return nil
}

// Exchange performs the read-modify-write of a CSR instruction and returns
// the previous CSR value, which is the instruction's rd result. src is the
// rs1 value for csrrw/csrrs/csrrc and the 5-bit zimm for the immediate forms.
func (c *CSRFile) Exchange(op insts.Op, addr uint32, src uint32) (uint32, error) {
	old, err := c.Read(addr)
	if err != nil {
		return 0, err
	}

	var next uint32
	switch op {
	case insts.OpCSRRW, insts.OpCSRRWI:
		next = src
	case insts.OpCSRRS, insts.OpCSRRSI:
		next = old | src
	case insts.OpCSRRC, insts.OpCSRRCI:
		next = old &^ src
	default:
		return 0, &UnsupportedOpError{Op: op, Unit: "csr"}
	}

	if err := c.Write(addr, next); err != nil {
		return 0, err
	}
	return old, nil
}

// Reset clears every CSR.
func (c *CSRFile) Reset() {
	c.regs = [NumCSRs]uint32{}
}
