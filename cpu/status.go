package cpu

import (
	"math"

	"github.com/sarchlab/ppcemu/fpenv"
)

// UpdateFEXVX recomputes the VX and FEX summary bits.
func (f FPSCR) UpdateFEXVX() FPSCR {
	f &^= FPSCRVX | FPSCRFEX
	if f.Any(FPSCRInvalid) {
		f |= FPSCRVX
	}

	enabled := f.Has(FPSCRVX|FPSCRVE) ||
		f.Has(FPSCROX|FPSCROE) ||
		f.Has(FPSCRUX|FPSCRUE) ||
		f.Has(FPSCRZX|FPSCRZE) ||
		f.Has(FPSCRXX|FPSCRXE)
	if enabled {
		f |= FPSCRFEX
	}
	return f
}

// UpdateFXFEXVX recomputes VX and FEX and sets FX when an exception bit
// that was clear in old is now set.
func UpdateFXFEXVX(old, cur FPSCR) FPSCR {
	cur = cur.UpdateFEXVX()
	if (old^cur)&cur&FPSCRExceptions != 0 {
		cur |= FPSCRFX
	}
	return cur
}

// Screen ORs an instruction's invalid-operation causes into the sticky bits
// and reports whether an enabled exception suppresses the result. A
// suppressing zero-divide also sets ZX. When suppressed the returned value
// already has its summary bits recomputed.
func Screen(old, invalid FPSCR, zeroDivide bool) (FPSCR, bool) {
	cur := old | invalid&FPSCRInvalid

	switch {
	case invalid != 0 && cur.Has(FPSCRVE):
		return UpdateFXFEXVX(old, cur), true
	case zeroDivide && cur.Has(FPSCRZE):
		cur |= FPSCRZX
		return UpdateFXFEXVX(old, cur), true
	}
	return cur, false
}

// Transition merges the environment's exceptions for one committed result
// into cur and recomputes the summary bits against old. FI reflects this
// operation alone and FR whether it rounded away from zero.
func Transition(old, cur FPSCR, flags fpenv.Flags, roundedUp bool) FPSCR {
	if flags&fpenv.Underflow != 0 {
		cur |= FPSCRUX
	}
	if flags&fpenv.Overflow != 0 {
		cur |= FPSCROX
	}
	if flags&fpenv.DivideByZero != 0 {
		cur |= FPSCRZX
	}

	cur &^= FPSCRFI | FPSCRFR
	if flags&fpenv.Inexact != 0 {
		cur |= FPSCRFI | FPSCRXX
		if roundedUp {
			cur |= FPSCRFR
		}
	}

	return UpdateFXFEXVX(old, cur)
}

// UpdateFPSCR merges and clears the core's environment flags.
func (c *Core) UpdateFPSCR(old FPSCR) {
	c.FPSCR = Transition(old, c.FPSCR, c.Env.Flags(), c.Env.RoundedUp())
	c.Env.Clear()
}

// ClassifyDouble returns the FPRF class of v.
func ClassifyDouble(v float64) uint32 {
	b := Bits64(v)
	switch {
	case b.IsNaN():
		return FPRFQNaN
	case b.IsZero():
		if b.Sign() != 0 {
			return FPRFNegZero
		}
		return FPRFPosZero
	}

	class := FPRFPositive
	if math.Signbit(v) {
		class = FPRFNegative
	}
	switch {
	case b.IsInf():
		class |= FPRFUnordered
	case b.IsDenormal():
		class |= FPRFClass
	}
	return class
}

// ClassifySingle returns the FPRF class of v judged as a binary32 value.
func ClassifySingle(v float32) uint32 {
	b := Bits32(v)
	switch {
	case b.IsNaN():
		return FPRFQNaN
	case b.IsZero():
		if b.Sign() != 0 {
			return FPRFNegZero
		}
		return FPRFPosZero
	}

	class := FPRFPositive
	if b.Sign() != 0 {
		class = FPRFNegative
	}
	switch {
	case b.IsInf():
		class |= FPRFUnordered
	case b.IsDenormal():
		class |= FPRFClass
	}
	return class
}

// SetFPRF stores a result class.
func (c *Core) SetFPRF(class uint32) {
	c.FPSCR = c.FPSCR.WithFPRF(class)
}
