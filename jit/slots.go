package jit

import (
	"unsafe"

	"github.com/sarchlab/ppcemu/cpu"
)

// Slot is a field of cpu.Core addressed relative to the core pointer.
type Slot struct {
	Offset int32
	Wide   bool // 64-bit field
}

var layout cpu.Core

var (
	slotCR  = Slot{Offset: int32(unsafe.Offsetof(layout.CR))}
	slotLR  = Slot{Offset: int32(unsafe.Offsetof(layout.LR))}
	slotCTR = Slot{Offset: int32(unsafe.Offsetof(layout.CTR))}
	slotCIA = Slot{Offset: int32(unsafe.Offsetof(layout.CIA))}
	slotNIA = Slot{Offset: int32(unsafe.Offsetof(layout.NIA))}
)

// fprSlot addresses the PS0 bits of floating-point register n.
func fprSlot(n uint32) Slot {
	base := unsafe.Offsetof(layout.FPR) + uintptr(n&31)*unsafe.Sizeof(layout.FPR[0])
	return Slot{Offset: int32(base + unsafe.Offsetof(layout.FPR[0].PS0)), Wide: true}
}
