// Package loader provides ELF binary loading for 32-bit big-endian PowerPC
// executables.
package loader

import (
	"debug/elf"
	"errors"
	"fmt"
	"io"

	"github.com/sarchlab/ppcemu/mem"
)

// ErrBadSegment is returned when a segment does not fit guest memory.
var ErrBadSegment = errors.New("segment outside guest memory")

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

// DefaultStackTop is the initial stack pointer, near the end of MEM2. The
// 16 bytes above it hold the back chain and the caller's argument area.
const DefaultStackTop = 0x41FFF000

// DefaultStackSize is the default stack size (8MB).
const DefaultStackSize = 8 * 1024 * 1024

// Segment represents a loadable segment from an ELF binary.
type Segment struct {
	// VirtAddr is the guest address where this segment should be loaded.
	VirtAddr uint32
	// Data contains the segment contents from the file.
	Data []byte
	// MemSize is the size in memory (may be larger than len(Data) for BSS).
	MemSize uint32
	// Flags contains the segment protection flags.
	Flags SegmentFlags
}

// Program represents a loaded ELF program ready for execution.
type Program struct {
	// EntryPoint is the guest address where execution should begin.
	EntryPoint uint32
	// Segments contains all loadable segments from the ELF file.
	Segments []Segment
	// InitialSP is the initial stack pointer value.
	InitialSP uint32
}

// Load parses a PowerPC ELF binary and returns a Program ready for
// installing into guest memory.
func Load(path string) (*Program, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ELF file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return parse(f)
}

// Parse reads a PowerPC ELF binary from r.
func Parse(r io.ReaderAt) (*Program, error) {
	f, err := elf.NewFile(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ELF file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return parse(f)
}

func parse(f *elf.File) (*Program, error) {
	if f.Class != elf.ELFCLASS32 {
		return nil, fmt.Errorf("not a 32-bit ELF file")
	}
	if f.Data != elf.ELFDATA2MSB {
		return nil, fmt.Errorf("not a big-endian ELF file")
	}
	if f.Machine != elf.EM_PPC {
		return nil, fmt.Errorf("not a PowerPC ELF file (machine type: %v)", f.Machine)
	}

	prog := &Program{
		EntryPoint: uint32(f.Entry),
		InitialSP:  DefaultStackTop,
	}

	for _, phdr := range f.Progs {
		if phdr.Type != elf.PT_LOAD {
			continue
		}

		data := make([]byte, phdr.Filesz)
		if phdr.Filesz > 0 {
			n, err := phdr.ReadAt(data, 0)
			if err != nil && err != io.EOF {
				return nil, fmt.Errorf("failed to read segment at 0x%x: %w", phdr.Vaddr, err)
			}
			if uint64(n) != phdr.Filesz {
				return nil, fmt.Errorf("short read for segment at 0x%x: got %d bytes, expected %d",
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

		prog.Segments = append(prog.Segments, Segment{
			VirtAddr: uint32(phdr.Vaddr),
			Data:     data,
			MemSize:  uint32(phdr.Memsz),
			Flags:    flags,
		})
	}

	return prog, nil
}

// Install copies every segment into space and zeroes its BSS. Segments in
// manual regions are committed first.
func (p *Program) Install(space *mem.Space) error {
	for _, seg := range p.Segments {
		if seg.MemSize == 0 {
			continue
		}
		if err := install(space, seg); err != nil {
			return err
		}
	}
	return nil
}

func install(space *mem.Space, seg Segment) error {
	end := uint64(seg.VirtAddr) + uint64(seg.MemSize)

	region, ok := space.RegionFor(seg.VirtAddr)
	if !ok || end > uint64(region.End) || uint64(len(seg.Data)) > uint64(seg.MemSize) {
		return fmt.Errorf("%w: 0x%08X+0x%x", ErrBadSegment, seg.VirtAddr, seg.MemSize)
	}

	if region.Manual {
		page := uint64(space.PageSize())
		first := uint64(seg.VirtAddr) &^ (page - 1)
		last := (end + page - 1) &^ (page - 1)
		if !space.Commit(uint32(first), uint32(last-first)) {
			return fmt.Errorf("%w: cannot commit 0x%08X+0x%x", ErrBadSegment, seg.VirtAddr, seg.MemSize)
		}
	}

	image := make([]byte, seg.MemSize)
	copy(image, seg.Data)
	space.WriteBytes(seg.VirtAddr, image)
	return nil
}
