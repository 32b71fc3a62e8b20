// Package hle bridges guest calls to host functions.
//
// Guest code reaches a host function through sc with the function's ID in
// GPR0. Arguments and results follow the PowerPC EABI: integer words in
// GPR3 to GPR10 and then on the caller's stack, 64-bit integers in
// aligned register pairs, and floating-point values in FPR1 to FPR8.
// Arguments that do not fit in registers share one overflow area on the
// caller's stack, with 64-bit values 8-byte aligned.
package hle

import (
	"github.com/sarchlab/ppcemu/cpu"
	"github.com/sarchlab/ppcemu/mem"
)

const (
	firstGPR = 3
	lastGPR  = 10
	firstFPR = 1
	lastFPR  = 8
)

// stackArgBase is the offset from GPR1 of the first argument word past
// GPR10. It skips the caller's back chain and the one built by the call
// stub, 8 bytes each.
const stackArgBase = 8 + 8

// Args is a cursor over the arguments of one call. Each getter consumes
// the next argument of its kind; each Put writes the next one, for calls
// from the host into guest code.
type Args struct {
	core     *cpu.Core
	space    *mem.Space
	gpr      int
	fpr      int
	overflow uint32 // bytes of the stack area consumed
	words    int
}

// NewArgs starts at the first argument of a plain function.
func NewArgs(core *cpu.Core, space *mem.Space) *Args {
	return &Args{core: core, space: space, gpr: firstGPR, fpr: firstFPR}
}

// NewMemberArgs starts past the receiver in GPR3.
func NewMemberArgs(core *cpu.Core, space *mem.Space) *Args {
	a := NewArgs(core, space)
	a.gpr++
	a.words++
	return a
}

// Core returns the core the arguments are read from.
func (a *Args) Core() *cpu.Core {
	return a.core
}

// Space returns guest memory, for pointer arguments.
func (a *Args) Space() *mem.Space {
	return a.space
}

// Receiver returns the object pointer of a member call.
func (a *Args) Receiver() uint32 {
	return a.core.GPR[firstGPR]
}

// Words returns how many integer argument words have been consumed,
// counting a skipped pair-alignment register.
func (a *Args) Words() int {
	return a.words
}

// stackSlot reserves size bytes of the overflow area, aligned to size,
// and returns their guest address.
func (a *Args) stackSlot(size uint32) uint32 {
	a.overflow = (a.overflow + size - 1) &^ (size - 1)
	addr := a.core.GPR[1] + stackArgBase + a.overflow
	a.overflow += size
	return addr
}

func (a *Args) next() uint32 {
	a.words++
	if a.gpr > lastGPR {
		return mem.Read[uint32](a.space, a.stackSlot(4))
	}
	a.gpr++
	return a.core.GPR[a.gpr-1]
}

func (a *Args) put(v uint32) {
	a.words++
	if a.gpr > lastGPR {
		mem.Write(a.space, a.stackSlot(4), v)
		return
	}
	a.gpr++
	a.core.GPR[a.gpr-1] = v
}

// alignPair moves the cursor to an odd register so a 64-bit value starts
// a GPR3:GPR4, GPR5:GPR6 ... pair. A pair that no longer fits goes to the
// stack, 8-byte aligned.
func (a *Args) alignPair() {
	switch {
	case a.gpr == lastGPR:
		a.gpr++
		a.words++
		a.overflow = (a.overflow + 7) &^ 7
	case a.gpr > lastGPR:
		a.overflow = (a.overflow + 7) &^ 7
	case a.gpr%2 == 0:
		a.gpr++
		a.words++
	}
}

// Word reads a 32-bit integer or pointer.
func (a *Args) Word() uint32 {
	return a.next()
}

// Int reads a signed 32-bit integer.
func (a *Args) Int() int32 {
	return int32(a.next())
}

// Bool reads a boolean word.
func (a *Args) Bool() bool {
	return a.next() != 0
}

// DWord reads a 64-bit integer, high word first.
func (a *Args) DWord() uint64 {
	a.alignPair()
	hi := a.next()
	lo := a.next()
	return uint64(hi)<<32 | uint64(lo)
}

// Float64 reads a double. Past FPR8 it comes from the stack.
func (a *Args) Float64() float64 {
	if a.fpr > lastFPR {
		return mem.Read[float64](a.space, a.stackSlot(8))
	}
	a.fpr++
	return a.core.FPR[a.fpr-1].Paired0()
}

// Float32 reads a single. The register holds it widened to double.
func (a *Args) Float32() float32 {
	return cpu.Narrow(a.Float64())
}

// String reads a pointer to a NUL-terminated guest string. A null
// pointer reads as "".
func (a *Args) String() string {
	return CString(a.space, a.next())
}

// PutWord writes the next integer word.
func (a *Args) PutWord(v uint32) {
	a.put(v)
}

// PutDWord writes the next 64-bit integer into an aligned pair.
func (a *Args) PutDWord(v uint64) {
	a.alignPair()
	a.put(uint32(v >> 32))
	a.put(uint32(v))
}

// PutFloat64 writes the next double.
func (a *Args) PutFloat64(v float64) {
	if a.fpr > lastFPR {
		mem.Write(a.space, a.stackSlot(8), v)
		return
	}
	a.fpr++
	a.core.FPR[a.fpr-1].SetPaired0(v)
}

// PutFloat32 writes the next single, widened to double.
func (a *Args) PutFloat32(v float32) {
	a.PutFloat64(cpu.Extend(v))
}

// CString reads the NUL-terminated string at addr.
func CString(space *mem.Space, addr uint32) string {
	if addr == 0 {
		return ""
	}

	var b []byte
	for ; ; addr++ {
		c := mem.Read[uint8](space, addr)
		if c == 0 {
			return string(b)
		}
		b = append(b, c)
	}
}
