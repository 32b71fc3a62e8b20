package cpu

import "github.com/sarchlab/ppcemu/fpenv"

// FPSCR is the floating-point status and control register. Bit constants
// use host numbering (bit 0 is the least significant), which is PowerPC
// bit 31-n.
type FPSCR uint32

// FPSCR bits.
const (
	FPSCRRN     FPSCR = 3 << 0 // rounding mode
	FPSCRNI     FPSCR = 1 << 2 // non-IEEE mode
	FPSCRXE     FPSCR = 1 << 3 // inexact enable
	FPSCRZE     FPSCR = 1 << 4 // zero-divide enable
	FPSCRUE     FPSCR = 1 << 5 // underflow enable
	FPSCROE     FPSCR = 1 << 6 // overflow enable
	FPSCRVE     FPSCR = 1 << 7 // invalid-operation enable
	FPSCRVXCVI  FPSCR = 1 << 8
	FPSCRVXSQRT FPSCR = 1 << 9
	FPSCRVXSOFT FPSCR = 1 << 10
	FPSCRFPRF   FPSCR = 0x1F << 12
	FPSCRFI     FPSCR = 1 << 17
	FPSCRFR     FPSCR = 1 << 18
	FPSCRVXVC   FPSCR = 1 << 19
	FPSCRVXIMZ  FPSCR = 1 << 20
	FPSCRVXZDZ  FPSCR = 1 << 21
	FPSCRVXIDI  FPSCR = 1 << 22
	FPSCRVXISI  FPSCR = 1 << 23
	FPSCRVXSNAN FPSCR = 1 << 24
	FPSCRXX     FPSCR = 1 << 25
	FPSCRZX     FPSCR = 1 << 26
	FPSCRUX     FPSCR = 1 << 27
	FPSCROX     FPSCR = 1 << 28
	FPSCRVX     FPSCR = 1 << 29
	FPSCRFEX    FPSCR = 1 << 30
	FPSCRFX     FPSCR = 1 << 31
)

const fprfShift = 12

// FPSCRInvalid is every invalid-operation sub-cause.
const FPSCRInvalid = FPSCRVXSNAN | FPSCRVXISI | FPSCRVXIDI | FPSCRVXZDZ |
	FPSCRVXIMZ | FPSCRVXVC | FPSCRVXSOFT | FPSCRVXSQRT | FPSCRVXCVI

// FPSCRExceptions is every sticky exception bit whose 0→1 transition sets FX.
const FPSCRExceptions = FPSCROX | FPSCRUX | FPSCRZX | FPSCRXX | FPSCRInvalid

// FPRF result classes. The low four bits form the FPCC condition code
// FL FG FE FU.
const (
	FPRFUnordered uint32 = 1 << 0
	FPRFEqual     uint32 = 1 << 1
	FPRFPositive  uint32 = 1 << 2
	FPRFNegative  uint32 = 1 << 3
	FPRFClass     uint32 = 1 << 4
	FPRFQNaN      uint32 = FPRFClass | FPRFUnordered
	FPRFPosInf    uint32 = FPRFPositive | FPRFUnordered
	FPRFNegInf    uint32 = FPRFNegative | FPRFUnordered
	FPRFPosNormal uint32 = FPRFPositive
	FPRFNegNormal uint32 = FPRFNegative
	FPRFPosDenorm uint32 = FPRFClass | FPRFPositive
	FPRFNegDenorm uint32 = FPRFClass | FPRFNegative
	FPRFPosZero   uint32 = FPRFEqual
	FPRFNegZero   uint32 = FPRFClass | FPRFEqual
)

// Has reports whether every bit in bits is set.
func (f FPSCR) Has(bits FPSCR) bool {
	return f&bits == bits
}

// Any reports whether any bit in bits is set.
func (f FPSCR) Any(bits FPSCR) bool {
	return f&bits != 0
}

// RN returns the rounding mode field.
func (f FPSCR) RN() fpenv.RoundingMode {
	return fpenv.RoundingMode(f & FPSCRRN)
}

// FPRF returns the result classification field.
func (f FPSCR) FPRF() uint32 {
	return uint32(f&FPSCRFPRF) >> fprfShift
}

// WithFPRF replaces the result classification field.
func (f FPSCR) WithFPRF(v uint32) FPSCR {
	return f&^FPSCRFPRF | FPSCR(v<<fprfShift)&FPSCRFPRF
}

// Field returns 4-bit field n, where field 0 holds FX FEX VX OX.
func (f FPSCR) Field(n uint32) uint32 {
	return uint32(f>>(4*(7-n&7))) & 0xF
}

// WithField replaces 4-bit field n.
func (f FPSCR) WithField(n, v uint32) FPSCR {
	shift := 4 * (7 - n&7)
	return f&^(0xF<<shift) | FPSCR(v&0xF)<<shift
}

// CR1 returns the four bits mirrored into condition register field 1.
func (f FPSCR) CR1() uint32 {
	return uint32(f) >> 28
}
