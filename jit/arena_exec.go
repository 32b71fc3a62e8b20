//go:build linux && amd64

package jit

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func hostPageSize() int {
	return unix.Getpagesize()
}

// NewExecArena maps an arena whose code can be entered. Pages are
// read-execute except while a translation is being copied in.
func NewExecArena(size int) (*Arena, error) {
	pageSize := hostPageSize()
	size = (size + pageSize - 1) &^ (pageSize - 1)

	m, err := unix.Mmap(-1, 0, size,
		unix.PROT_READ|unix.PROT_EXEC,
		unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("mapping code arena: %w", err)
	}

	return &Arena{mem: m, exec: true}, nil
}

func protectCode(b []byte, writable bool) error {
	prot := unix.PROT_READ | unix.PROT_EXEC
	if writable {
		prot = unix.PROT_READ | unix.PROT_WRITE
	}
	return unix.Mprotect(b, prot)
}

func unmapCode(b []byte) error {
	return unix.Munmap(b)
}
