// Package loader reads RV32 programs, either raw little-endian images or ELF
// executables, and places them in simulator memory.
package loader

import (
	"bytes"
	"debug/elf"
	"fmt"
	"io"
	"os"

	"github.com/sarchlab/ripsim/emu"
)

// SegmentFlags represents memory protection flags for a segment.
type SegmentFlags uint32

const (
	// SegmentFlagExecute indicates the segment is executable.
	SegmentFlagExecute SegmentFlags = 1 << iota
	// SegmentFlagWrite indicates the segment is writable.
	SegmentFlagWrite
	// SegmentFlagRead indicates the segment is readable.
	SegmentFlagRead
)

// Segment represents a loadable piece of a program.
type Segment struct {
	// Addr is the address the segment is loaded at.
	Addr uint32
	// Data contains the segment contents from the file.
	Data []byte
	// MemSize is the size in memory (may be larger than len(Data) for BSS).
	MemSize uint32
	// Flags contains the segment protection flags.
	Flags SegmentFlags
}

// Executable reports whether the segment holds code.
func (s Segment) Executable() bool {
	return s.Flags&SegmentFlagExecute != 0
}

// Program represents a loaded program ready for execution.
type Program struct {
	// Entry is the address where execution should begin.
	Entry uint32
	// Segments contains all loadable segments.
	Segments []Segment
	// ELF is set when the program came from an ELF file.
	ELF bool
}

var elfMagic = []byte(elf.ELFMAG)

// Flat wraps a raw image loaded at base. The image is both code and data and
// execution starts at base.
func Flat(image []byte, base uint32) *Program {
	return &Program{
		Entry: base,
		Segments: []Segment{{
			Addr:    base,
			Data:    image,
			MemSize: uint32(len(image)),
			Flags:   SegmentFlagRead | SegmentFlagWrite | SegmentFlagExecute,
		}},
	}
}

// Parse detects the ELF magic and parses data as an ELF executable, or
// treats it as a flat image at base otherwise.
func Parse(data []byte, base uint32) (*Program, error) {
	if bytes.HasPrefix(data, elfMagic) {
		return ParseELF(bytes.NewReader(data))
	}
	return Flat(data, base), nil
}

// LoadFile reads the program at path. See Parse.
func LoadFile(path string, base uint32) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read program: %w", err)
	}

	prog, err := Parse(data, base)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return prog, nil
}

// Load parses the RV32 ELF executable at path.
func Load(path string) (*Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ELF file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return ParseELF(f)
}

// ParseELF parses a little-endian 32-bit RISC-V ELF executable.
func ParseELF(r io.ReaderAt) (*Program, error) {
	f, err := elf.NewFile(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ELF file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if f.Class != elf.ELFCLASS32 {
		return nil, fmt.Errorf("not a 32-bit ELF file")
	}
	if f.Data != elf.ELFDATA2LSB {
		return nil, fmt.Errorf("not a little-endian ELF file")
	}
	if f.Machine != elf.EM_RISCV {
		return nil, fmt.Errorf("not a RISC-V ELF file (machine type: %v)", f.Machine)
	}

	prog := &Program{
		Entry: uint32(f.Entry),
		ELF:   true,
	}

	for _, phdr := range f.Progs {
		if phdr.Type != elf.PT_LOAD {
			continue
		}

		seg, err := readSegment(phdr)
		if err != nil {
			return nil, err
		}
		prog.Segments = append(prog.Segments, seg)
	}

	return prog, nil
}

func readSegment(phdr *elf.Prog) (Segment, error) {
	data := make([]byte, phdr.Filesz)
	if phdr.Filesz > 0 {
		n, err := phdr.ReadAt(data, 0)
		if err != nil && err != io.EOF {
			return Segment{}, fmt.Errorf("failed to read segment at 0x%x: %w", phdr.Vaddr, err)
		}
		if uint64(n) != phdr.Filesz {
			return Segment{}, fmt.Errorf("short read for segment at 0x%x: got %d bytes, expected %d",
				phdr.Vaddr, n, phdr.Filesz)
		}
	}

	var flags SegmentFlags
	if phdr.Flags&elf.PF_X != 0 {
		flags |= SegmentFlagExecute
	}
	if phdr.Flags&elf.PF_W != 0 {
		flags |= SegmentFlagWrite
	}
	if phdr.Flags&elf.PF_R != 0 {
		flags |= SegmentFlagRead
	}

	return Segment{
		Addr:    uint32(phdr.Vaddr),
		Data:    data,
		MemSize: uint32(phdr.Memsz),
		Flags:   flags,
	}, nil
}

// LoadInto copies every segment into memory and zeroes the part of each
// segment the file does not cover.
func (p *Program) LoadInto(memory *emu.Memory) error {
	for _, seg := range p.Segments {
		if err := memory.LoadProgram(seg.Addr, seg.Data); err != nil {
			return fmt.Errorf("segment 0x%08x: %w", seg.Addr, err)
		}

		fileSize := uint32(len(seg.Data))
		if seg.MemSize > fileSize {
			if err := memory.Zero(seg.Addr+fileSize, seg.MemSize-fileSize); err != nil {
				return fmt.Errorf("segment 0x%08x: %w", seg.Addr, err)
			}
		}
	}
	return nil
}

// Code returns the executable segments.
func (p *Program) Code() []Segment {
	var code []Segment
	for _, seg := range p.Segments {
		if seg.Executable() {
			code = append(code, seg)
		}
	}
	return code
}
