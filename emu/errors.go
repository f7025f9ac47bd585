package emu

import (
	"errors"
	"fmt"

	"github.com/sarchlab/ripsim/insts"
)

// Fatal error classes. They are never recovered by the engines.
var (
	// ErrOutOfBounds reports a memory access outside the configured range.
	ErrOutOfBounds = errors.New("memory access out of bounds")

	// ErrInvalidRegister reports a register index outside 0-31.
	ErrInvalidRegister = errors.New("invalid register index")

	// ErrInvalidCSR reports a CSR address outside the 12-bit space.
	ErrInvalidCSR = errors.New("invalid CSR address")

	// ErrUnsupportedOp reports a decoded op without an execution handler.
	ErrUnsupportedOp = errors.New("unsupported operation")
)

// OutOfBoundsError names the offending access.
type OutOfBoundsError struct {
	Addr  uint32
	Width uint32
	Base  uint32
	Size  uint32
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("%d-byte access at 0x%08x outside [0x%08x, 0x%08x)",
		e.Width, e.Addr, e.Base, uint64(e.Base)+uint64(e.Size))
}

// Unwrap lets errors.Is match ErrOutOfBounds.
func (e *OutOfBoundsError) Unwrap() error { return ErrOutOfBounds }

// RegisterIndexError names the rejected register index.
type RegisterIndexError struct {
	Index uint8
}

func (e *RegisterIndexError) Error() string {
	return fmt.Sprintf("register x%d does not exist", e.Index)
}

// Unwrap lets errors.Is match ErrInvalidRegister.
func (e *RegisterIndexError) Unwrap() error { return ErrInvalidRegister }

// UnsupportedOpError names an op that reached a unit without a handler.
type UnsupportedOpError struct {
	Op   insts.Op
	Unit string
}

func (e *UnsupportedOpError) Error() string {
	return fmt.Sprintf("%s cannot execute %s", e.Unit, e.Op)
}

// Unwrap lets errors.Is match ErrUnsupportedOp.
func (e *UnsupportedOpError) Unwrap() error { return ErrUnsupportedOp }
