package jit

import "unsafe"

// enter calls translated code at code with RDI pointing at the core and
// returns the exit code left in RAX.
//
//go:noescape
func enter(code uintptr, core unsafe.Pointer) uint64
