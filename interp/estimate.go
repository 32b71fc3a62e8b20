package interp

import (
	"math"

	"github.com/sarchlab/ppcemu/cpu"
	"github.com/sarchlab/ppcemu/fpenv"
	"github.com/sarchlab/ppcemu/insts"
)

// Reciprocal estimate table. Each of the 32 segments covers 1/32 of the
// mantissa range and is linear with the given base and slope.
var (
	reciprocalBase = [32]int64{
		0x7ff800, 0x783800, 0x70ea00, 0x6a0800,
		0x638800, 0x5d6200, 0x579000, 0x520800,
		0x4cc800, 0x47ca00, 0x430800, 0x3e8000,
		0x3a2c00, 0x360800, 0x321400, 0x2e4a00,
		0x2aa800, 0x272c00, 0x23d600, 0x209e00,
		0x1d8800, 0x1a9000, 0x17ae00, 0x14f800,
		0x124400, 0x0fbe00, 0x0d3800, 0x0ade00,
		0x088400, 0x065000, 0x041c00, 0x020c00,
	}

	reciprocalSlope = [32]int64{
		0x3e1, 0x3a7, 0x371, 0x340,
		0x313, 0x2ea, 0x2c4, 0x2a0,
		0x27f, 0x261, 0x245, 0x22a,
		0x212, 0x1fb, 0x1e5, 0x1d1,
		0x1be, 0x1ac, 0x19b, 0x18b,
		0x17c, 0x16e, 0x15b, 0x15b,
		0x143, 0x143, 0x12d, 0x12d,
		0x11a, 0x11a, 0x108, 0x106,
	}
)

// Exponent band inside which the reciprocal is representable as a
// single-precision normal.
const (
	estimateMinExponent = 895
	estimateMaxExponent = 1150
)

// EstimateReciprocal returns the hardware's reciprocal estimate of v.
// Operands whose reciprocal leaves single-precision range saturate and
// raise overflow or underflow in env.
func EstimateReciprocal(env *fpenv.Env, v float64) float64 {
	b := cpu.Bits64(v)

	switch {
	case b.IsZero():
		return math.Copysign(math.Inf(1), v)
	case b.IsInf():
		return math.Copysign(0, v)
	case b.IsNaN():
		return cpu.Extend(cpu.Narrow(cpu.Quiet(v)))
	case b.Exponent() < estimateMinExponent:
		env.Raise(fpenv.Overflow | fpenv.Inexact)
		return math.Copysign(math.MaxFloat32, v)
	case b.Exponent() > estimateMaxExponent:
		env.Raise(fpenv.Underflow | fpenv.Inexact)
		return math.Copysign(0, v)
	}

	idx := int64(b.Mantissa() >> 37)
	seg, off := idx/1024, idx%1024
	mantissa := uint64(reciprocalBase[seg]-(reciprocalSlope[seg]*off+1)/2) << 29

	return b.WithExponent(0x7FD - b.Exponent()).WithMantissa(mantissa).Float()
}

// fres stores the single-precision reciprocal estimate of frB. An inexact
// estimate sets FI without XX.
func (in *Interpreter) fres(inst insts.Instruction) {
	core := in.core

	b := core.FPR[inst.FRB()].Value()
	bb := cpu.Bits64(b)

	var invalid cpu.FPSCR
	if bb.IsSignallingNaN() {
		invalid = cpu.FPSCRVXSNAN
	}
	zeroDivide := bb.IsZero()

	old := core.FPSCR
	cur, suppress := cpu.Screen(old, invalid, zeroDivide)
	core.FPSCR = cur

	if !suppress {
		env := core.Env

		var d float32
		if invalid != 0 {
			d = cpu.DefaultNaN32
		} else {
			d = in.toSingle(EstimateReciprocal(env, b))
		}
		in.commitSingle(inst.FRD(), d)

		if zeroDivide {
			core.FPSCR |= cpu.FPSCRZX
		}

		inexact := env.Test(fpenv.Inexact)
		env.Lower(fpenv.Inexact)
		core.UpdateFPSCR(old)
		if inexact {
			core.FPSCR |= cpu.FPSCRFI
		}
	}

	in.record(inst)
}

// frsqrte stores the reciprocal square root of frB.
func (in *Interpreter) frsqrte(inst insts.Instruction) {
	core := in.core

	b := core.FPR[inst.FRB()].Value()
	bb := cpu.Bits64(b)

	var invalid cpu.FPSCR
	if bb.IsSignallingNaN() {
		invalid = cpu.FPSCRVXSNAN
	} else if bb.Sign() != 0 && !bb.IsZero() {
		invalid = cpu.FPSCRVXSQRT
	}
	zeroDivide := bb.IsZero()

	old := core.FPSCR
	cur, suppress := cpu.Screen(old, invalid, zeroDivide)
	core.FPSCR = cur

	if !suppress {
		env := core.Env

		var d float64
		switch {
		case invalid != 0:
			d = cpu.DefaultNaN
		case bb.IsNaN():
			d = b
		default:
			// A correctly rounded 1/sqrt, not a table estimate.
			d = env.Div(1, env.Sqrt(b))
		}
		in.commitDouble(inst.FRD(), d)

		if zeroDivide {
			core.FPSCR |= cpu.FPSCRZX
		}
		core.UpdateFPSCR(old)
	}

	in.record(inst)
}
