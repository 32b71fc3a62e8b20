package jit

import (
	"errors"
	"unsafe"
)

// ErrArenaFull is returned when a translation does not fit the arena.
var ErrArenaFull = errors.New("code arena full")

// ErrNoExec is returned where generated code cannot be executed.
var ErrNoExec = errors.New("executable code arena not supported on this platform")

// DefaultArenaSize is the arena size used when none is configured.
const DefaultArenaSize = 16 << 20

// codeAlign is the alignment of every translation in the arena.
const codeAlign = 16

// Arena is a bump allocator for translated code. Code is only ever
// appended; Reset drops everything at once.
type Arena struct {
	mem  []byte
	used int
	exec bool
}

// NewArena creates an arena on the Go heap. Its code can be inspected
// and disassembled but not run.
func NewArena(size int) *Arena {
	return &Arena{mem: make([]byte, size)}
}

// Executable reports whether code placed in the arena can be entered.
func (a *Arena) Executable() bool {
	return a.exec
}

// Next returns the offset the next translation will be placed at.
func (a *Arena) Next() int {
	return a.used
}

// Place copies code into the arena at Next and returns its offset.
func (a *Arena) Place(code []byte) (int, error) {
	offset := a.used
	if offset+len(code) > len(a.mem) {
		return 0, ErrArenaFull
	}

	if a.exec {
		if err := a.writable(offset, len(code), true); err != nil {
			return 0, err
		}
	}
	copy(a.mem[offset:], code)
	if a.exec {
		if err := a.writable(offset, len(code), false); err != nil {
			return 0, err
		}
	}

	a.used = (offset + len(code) + codeAlign - 1) &^ (codeAlign - 1)
	if a.used > len(a.mem) {
		a.used = len(a.mem)
	}
	return offset, nil
}

// Code returns the n bytes at offset.
func (a *Arena) Code(offset, n int) []byte {
	return a.mem[offset : offset+n]
}

// Bytes returns everything placed so far.
func (a *Arena) Bytes() []byte {
	return a.mem[:a.used]
}

// Addr returns the host address of offset.
func (a *Arena) Addr(offset int) uintptr {
	return uintptr(unsafe.Pointer(&a.mem[offset]))
}

// Reset forgets every translation.
func (a *Arena) Reset() {
	a.used = 0
}

// Close releases an executable arena's mapping.
func (a *Arena) Close() error {
	if !a.exec || a.mem == nil {
		return nil
	}
	err := unmapCode(a.mem)
	a.mem = nil
	return err
}

// writable flips the pages covering n bytes at offset between read-write
// and read-execute.
func (a *Arena) writable(offset, n int, on bool) error {
	pageSize := hostPageSize()
	first := offset &^ (pageSize - 1)
	last := (offset + n + pageSize - 1) &^ (pageSize - 1)
	return protectCode(a.mem[first:min(last, len(a.mem))], on)
}
