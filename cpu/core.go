// Package cpu holds the architectural state of one emulated PowerPC core
// and the floating-point status engine that keeps its FPSCR consistent.
package cpu

import (
	"fmt"

	"github.com/sarchlab/ppcemu/fpenv"
)

// Core is the architectural state of one PowerPC core. The fixed-size
// register fields come first so translated code can address them at
// constant offsets.
type Core struct {
	// GPR holds general-purpose registers r0-r31.
	GPR [32]uint32

	// FPR holds floating-point registers f0-f31.
	FPR [32]FPR

	// CR is the condition register, field 0 in the top nibble.
	CR uint32

	// LR is the link register.
	LR uint32

	// CTR is the count register.
	CTR uint32

	// FPSCR is the floating-point status and control register.
	FPSCR FPSCR

	// CIA is the address of the instruction being executed.
	CIA uint32

	// NIA is the address of the next instruction.
	NIA uint32

	// ID identifies the core within the machine.
	ID int

	// Env is the core's floating-point environment. Its rounding mode
	// follows FPSCR[RN].
	Env *fpenv.Env
}

// NewCore creates a core with zeroed registers and a fresh environment.
func NewCore(id int) *Core {
	return &Core{
		ID:  id,
		Env: fpenv.New(),
	}
}

// Reset clears every register and the environment, keeping the core ID.
func (c *Core) Reset() {
	id, env := c.ID, c.Env
	*c = Core{ID: id, Env: env}
	env.Clear()
	c.SyncRounding()
}

// SyncRounding makes the environment's rounding mode follow FPSCR[RN].
func (c *Core) SyncRounding() {
	c.Env.SetRounding(c.FPSCR.RN())
}

// SetFPSCR replaces the FPSCR, recomputes the summary bits and resyncs
// the rounding mode.
func (c *Core) SetFPSCR(v FPSCR) {
	c.FPSCR = v.UpdateFEXVX()
	c.SyncRounding()
}

// CRField returns condition register field n (0-7).
func (c *Core) CRField(n uint32) uint32 {
	return c.CR >> (4 * (7 - n&7)) & 0xF
}

// SetCRField replaces condition register field n.
func (c *Core) SetCRField(n, v uint32) {
	shift := 4 * (7 - n&7)
	c.CR = c.CR&^(0xF<<shift) | (v&0xF)<<shift
}

// CRBit returns condition register bit bi in PowerPC numbering.
func (c *Core) CRBit(bi uint32) bool {
	return c.CR&(1<<(31-bi&31)) != 0
}

// UpdateCR1 mirrors the FPSCR exception summary into CR field 1.
func (c *Core) UpdateCR1() {
	c.SetCRField(1, c.FPSCR.CR1())
}

// String summarises the control registers for debug output.
func (c *Core) String() string {
	return fmt.Sprintf("core%d cia=%08x nia=%08x lr=%08x ctr=%08x cr=%08x fpscr=%08x",
		c.ID, c.CIA, c.NIA, c.LR, c.CTR, c.CR, uint32(c.FPSCR))
}
