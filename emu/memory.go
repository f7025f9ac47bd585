package emu

import (
	"encoding/binary"
	"fmt"

	"github.com/sarchlab/akita/v4/mem/mem"
)

// Default memory geometry.
const (
	DefaultMemoryBase uint32 = 0x80000000
	DefaultMemorySize uint32 = 1 << 20
)

// Memory is a flat little-endian byte-addressable store covering
// [base, base+size). Storage is allocated lazily, so large sizes are cheap.
type Memory struct {
	base    uint32
	size    uint32
	storage *mem.Storage
}

// NewMemory creates a memory of size bytes starting at address base.
func NewMemory(base, size uint32) *Memory {
	return &Memory{
		base:    base,
		size:    size,
		storage: mem.NewStorage(uint64(size)),
	}
}

// NewDefaultMemory creates a 1 MiB memory at DefaultMemoryBase.
func NewDefaultMemory() *Memory {
	return NewMemory(DefaultMemoryBase, DefaultMemorySize)
}

// Base returns the lowest valid address.
func (m *Memory) Base() uint32 { return m.base }

// Size returns the number of addressable bytes.
func (m *Memory) Size() uint32 { return m.size }

// Contains reports whether an access of width bytes at addr is in range.
func (m *Memory) Contains(addr, width uint32) bool {
	if addr < m.base {
		return false
	}
	return uint64(addr-m.base)+uint64(width) <= uint64(m.size)
}

// offset translates addr into a storage offset after a bounds check.
func (m *Memory) offset(addr, width uint32) (uint64, error) {
	if !m.Contains(addr, width) {
		return 0, &OutOfBoundsError{Addr: addr, Width: width, Base: m.base, Size: m.size}
	}
	return uint64(addr - m.base), nil
}

func (m *Memory) read(addr, width uint32) ([]byte, error) {
	off, err := m.offset(addr, width)
	if err != nil {
		return nil, err
	}

	data, err := m.storage.Read(off, uint64(width))
	if err != nil {
		return nil, fmt.Errorf("read 0x%08x: %w", addr, err)
	}
	return data, nil
}

func (m *Memory) write(addr uint32, data []byte) error {
	off, err := m.offset(addr, uint32(len(data)))
	if err != nil {
		return err
	}

	if err := m.storage.Write(off, data); err != nil {
		return fmt.Errorf("write 0x%08x: %w", addr, err)
	}
	return nil
}

// Read8 reads a byte.
func (m *Memory) Read8(addr uint32) (uint8, error) {
	data, err := m.read(addr, 1)
	if err != nil {
		return 0, err
	}
	return data[0], nil
}

// Read16 reads a little-endian half-word.
func (m *Memory) Read16(addr uint32) (uint16, error) {
	data, err := m.read(addr, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(data), nil
}

// Read32 reads a little-endian word.
func (m *Memory) Read32(addr uint32) (uint32, error) {
	data, err := m.read(addr, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(data), nil
}

// Write8 writes a byte.
func (m *Memory) Write8(addr uint32, value uint8) error {
	return m.write(addr, []byte{value})
}

// Write16 writes a little-endian half-word.
func (m *Memory) Write16(addr uint32, value uint16) error {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, value)
	return m.write(addr, buf)
}

// Write32 writes a little-endian word.
func (m *Memory) Write32(addr uint32, value uint32) error {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, value)
	return m.write(addr, buf)
}

// LoadProgram copies image into memory starting at addr.
func (m *Memory) LoadProgram(addr uint32, image []byte) error {
	if len(image) == 0 {
		return nil
	}
	if uint64(len(image)) > uint64(m.size) {
		return &OutOfBoundsError{Addr: addr, Width: m.size, Base: m.base, Size: m.size}
	}
	return m.write(addr, image)
}

// Zero clears length bytes starting at addr, as for an ELF BSS region.
func (m *Memory) Zero(addr, length uint32) error {
	if length == 0 {
		return nil
	}
	return m.write(addr, make([]byte, length))
}
