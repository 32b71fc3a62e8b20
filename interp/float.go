package interp

import (
	"math"

	"github.com/sarchlab/ppcemu/cpu"
	"github.com/sarchlab/ppcemu/fpenv"
	"github.com/sarchlab/ppcemu/insts"
)

// record copies the FPSCR summary into CR1 for the dot forms.
func (in *Interpreter) record(inst insts.Instruction) {
	if inst.Rc() {
		in.core.UpdateCR1()
	}
}

// toSingle narrows a double result the way single-precision instructions
// store it. NaNs are quieted and narrowed bit-wise.
func (in *Interpreter) toSingle(d float64) float32 {
	if math.IsNaN(d) {
		return cpu.Narrow(cpu.Quiet(d))
	}
	return in.core.Env.ToFloat32(d)
}

// commitSingle writes a single-precision result to both paired slots and
// classifies it as binary32.
func (in *Interpreter) commitSingle(frD uint32, d float32) {
	in.core.FPR[frD].SetSingle(d)
	in.core.SetFPRF(cpu.ClassifySingle(d))
}

// commitDouble writes a double-precision result.
func (in *Interpreter) commitDouble(frD uint32, d float64) {
	in.core.FPR[frD].SetValue(d)
	in.core.SetFPRF(cpu.ClassifyDouble(d))
}

type arithOp uint8

const (
	arithAdd arithOp = iota
	arithSub
	arithMul
	arithDiv
)

// arithInvalid returns the invalid-operation causes of a op b and whether
// the operation is a true divide by zero.
func arithInvalid(op arithOp, a, b float64) (cpu.FPSCR, bool) {
	ab, bb := cpu.Bits64(a), cpu.Bits64(b)

	var invalid cpu.FPSCR
	if ab.IsSignallingNaN() || bb.IsSignallingNaN() {
		invalid |= cpu.FPSCRVXSNAN
	}

	zeroDivide := false
	switch op {
	case arithAdd:
		if ab.IsInf() && bb.IsInf() && ab.Sign() != bb.Sign() {
			invalid |= cpu.FPSCRVXISI
		}
	case arithSub:
		if ab.IsInf() && bb.IsInf() && ab.Sign() == bb.Sign() {
			invalid |= cpu.FPSCRVXISI
		}
	case arithMul:
		if (ab.IsInf() && bb.IsZero()) || (ab.IsZero() && bb.IsInf()) {
			invalid |= cpu.FPSCRVXIMZ
		}
	case arithDiv:
		if ab.IsInf() && bb.IsInf() {
			invalid |= cpu.FPSCRVXIDI
		}
		if ab.IsZero() && bb.IsZero() {
			invalid |= cpu.FPSCRVXZDZ
		}
		zeroDivide = invalid&(cpu.FPSCRVXZDZ|cpu.FPSCRVXSNAN) == 0 && bb.IsZero()
	}

	return invalid, zeroDivide
}

// arithmetic implements the add, subtract, multiply and divide families.
// Single-precision forms compute in double precision and round the result
// once more to single.
func (in *Interpreter) arithmetic(inst insts.Instruction, op arithOp, single bool) {
	core := in.core

	a := core.FPR[inst.FRA()].Value()
	var b float64
	if op == arithMul {
		b = core.FPR[inst.FRC()].Value()
	} else {
		b = core.FPR[inst.FRB()].Value()
	}

	invalid, zeroDivide := arithInvalid(op, a, b)

	old := core.FPSCR
	cur, suppress := cpu.Screen(old, invalid, zeroDivide)
	core.FPSCR = cur

	if !suppress {
		var d float64
		switch {
		case math.IsNaN(a):
			d = cpu.Quiet(a)
		case math.IsNaN(b):
			d = cpu.Quiet(b)
		case invalid != 0:
			d = cpu.DefaultNaN
		default:
			d = in.compute(op, a, b, single)
		}

		if single {
			in.commitSingle(inst.FRD(), in.toSingle(d))
		} else {
			in.commitDouble(inst.FRD(), d)
		}
		core.UpdateFPSCR(old)
	}

	in.record(inst)
}

func (in *Interpreter) compute(op arithOp, a, b float64, single bool) float64 {
	env := in.core.Env

	switch op {
	case arithAdd:
		return env.Add(a, b)
	case arithSub:
		return env.Sub(a, b)
	case arithMul:
		if single {
			roundForMultiply(&a, &b)
		}
		return env.Mul(a, b)
	default:
		return env.Div(a, b)
	}
}

func (in *Interpreter) fadd(inst insts.Instruction)  { in.arithmetic(inst, arithAdd, false) }
func (in *Interpreter) fadds(inst insts.Instruction) { in.arithmetic(inst, arithAdd, true) }
func (in *Interpreter) fsub(inst insts.Instruction)  { in.arithmetic(inst, arithSub, false) }
func (in *Interpreter) fsubs(inst insts.Instruction) { in.arithmetic(inst, arithSub, true) }
func (in *Interpreter) fmul(inst insts.Instruction)  { in.arithmetic(inst, arithMul, false) }
func (in *Interpreter) fmuls(inst insts.Instruction) { in.arithmetic(inst, arithMul, true) }
func (in *Interpreter) fdiv(inst insts.Instruction)  { in.arithmetic(inst, arithDiv, false) }
func (in *Interpreter) fdivs(inst insts.Instruction) { in.arithmetic(inst, arithDiv, true) }

// roundForMultiply rounds the frC operand of a single-precision multiply
// to the 24-bit mantissa the hardware multiplier consumes. The rounding
// ignores FPSCR[RN]. Powers of two may move into a so that the product of
// a fused operation keeps its precision.
func roundForMultiply(a, c *float64) {
	const roundBit = uint64(1) << 27

	ab, cb := cpu.Bits64(*a), cpu.Bits64(*c)

	if uint64(cb)&(roundBit<<1-1) == 0 {
		return
	}

	// A zero or infinite a fixes the product regardless of c.
	if ab.IsZero() || ab.IsInf() {
		return
	}

	if cb.IsDenormal() {
		sign := cb.Sign()
		for cb.Exponent() == 0 {
			cb <<= 1
			if ab.Exponent() == 0 {
				return
			}
			ab = ab.WithExponent(ab.Exponent() - 1)
		}
		cb = cb.WithSign(sign)
	}

	cb &^= cpu.Float64Bits(roundBit - 1)
	cb += cb & cpu.Float64Bits(roundBit)

	if cb.IsInf() {
		cb = cb.WithExponent(cb.Exponent() - 1)
		switch {
		case ab.Exponent() == 0:
			sign := ab.Sign()
			ab = (ab << 1).WithSign(sign)
		case ab.Exponent() < cpu.Float64ExponentMax-1:
			ab = ab.WithExponent(ab.Exponent() + 1)
		}
	}

	*a, *c = ab.Float(), cb.Float()
}

type fmaFlags uint8

const (
	fmaSubtract fmaFlags = 1 << iota
	fmaNegate
	fmaSingle
)

// fusedMultiplyAdd implements the fmadd family: d = ±(a*c ± b) with one
// rounding.
func (in *Interpreter) fusedMultiplyAdd(inst insts.Instruction, flags fmaFlags) {
	core := in.core

	a := core.FPR[inst.FRA()].Value()
	b := core.FPR[inst.FRB()].Value()
	c := core.FPR[inst.FRC()].Value()

	addend := b
	if flags&fmaSubtract != 0 {
		addend = -b
	}

	ab, bb, cb := cpu.Bits64(a), cpu.Bits64(b), cpu.Bits64(c)

	var invalid cpu.FPSCR
	if ab.IsSignallingNaN() || bb.IsSignallingNaN() || cb.IsSignallingNaN() {
		invalid |= cpu.FPSCRVXSNAN
	}
	vximz := (ab.IsInf() && cb.IsZero()) || (ab.IsZero() && cb.IsInf())
	if vximz {
		invalid |= cpu.FPSCRVXIMZ
	}
	if !vximz && !ab.IsNaN() && !cb.IsNaN() &&
		(ab.IsInf() || cb.IsInf()) && bb.IsInf() &&
		(ab.Sign()^cb.Sign() != 0) != math.Signbit(addend) {
		invalid |= cpu.FPSCRVXISI
	}

	old := core.FPSCR
	cur, suppress := cpu.Screen(old, invalid, false)
	core.FPSCR = cur

	if !suppress {
		var d float64
		switch {
		case ab.IsNaN():
			d = cpu.Quiet(a)
		case bb.IsNaN():
			d = cpu.Quiet(b)
		case cb.IsNaN():
			d = cpu.Quiet(c)
		case invalid&(cpu.FPSCRVXISI|cpu.FPSCRVXIMZ) != 0:
			d = cpu.DefaultNaN
		default:
			if flags&fmaSingle != 0 {
				roundForMultiply(&a, &c)
			}
			d = core.Env.FMA(a, c, addend)
			if flags&fmaNegate != 0 {
				d = -d
			}
		}

		frd := &core.FPR[inst.FRD()]
		if flags&fmaSingle != 0 {
			d = cpu.Extend(in.toSingle(d))
			frd.SetPaired0(d)
			frd.SetPaired1(d)
		} else {
			frd.SetValue(d)
		}
		// Tininess is detected after rounding, so a result that rounds up to
		// the smallest normal does not set UX.
		core.SetFPRF(cpu.ClassifyDouble(d))
		core.UpdateFPSCR(old)
	}

	in.record(inst)
}

func (in *Interpreter) fmadd(inst insts.Instruction)   { in.fusedMultiplyAdd(inst, 0) }
func (in *Interpreter) fmadds(inst insts.Instruction)  { in.fusedMultiplyAdd(inst, fmaSingle) }
func (in *Interpreter) fmsub(inst insts.Instruction)   { in.fusedMultiplyAdd(inst, fmaSubtract) }
func (in *Interpreter) fmsubs(inst insts.Instruction)  { in.fusedMultiplyAdd(inst, fmaSubtract|fmaSingle) }
func (in *Interpreter) fnmadd(inst insts.Instruction)  { in.fusedMultiplyAdd(inst, fmaNegate) }
func (in *Interpreter) fnmadds(inst insts.Instruction) { in.fusedMultiplyAdd(inst, fmaNegate|fmaSingle) }
func (in *Interpreter) fnmsub(inst insts.Instruction)  { in.fusedMultiplyAdd(inst, fmaNegate|fmaSubtract) }
func (in *Interpreter) fnmsubs(inst insts.Instruction) { in.fusedMultiplyAdd(inst, fmaNegate|fmaSubtract|fmaSingle) }

// fsel selects frC when frA is greater than or equal to zero and frB
// otherwise. A NaN frA selects frB. The FPSCR is untouched.
func (in *Interpreter) fsel(inst insts.Instruction) {
	core := in.core

	a := core.FPR[inst.FRA()].Value()
	d := core.FPR[inst.FRB()].Value()
	if a >= 0 {
		d = core.FPR[inst.FRC()].Value()
	}
	core.FPR[inst.FRD()].SetValue(d)

	in.record(inst)
}

// roundToInteger rounds b to an integral value under mode.
func roundToInteger(b float64, mode fpenv.RoundingMode) float64 {
	switch mode {
	case fpenv.Zero:
		return math.Trunc(b)
	case fpenv.Positive:
		return math.Ceil(b)
	case fpenv.Negative:
		return math.Floor(b)
	default:
		return math.RoundToEven(b)
	}
}

// convertToWord implements fctiw and fctiwz. The integer goes to the low
// word of frD and the high word is set to 0xFFF80000, with bit 0 set for
// a -0.0 source. FPRF is not updated.
func (in *Interpreter) convertToWord(inst insts.Instruction, mode fpenv.RoundingMode) {
	core := in.core

	b := core.FPR[inst.FRB()].Value()
	bb := cpu.Bits64(b)

	var invalid cpu.FPSCR
	if bb.IsSignallingNaN() {
		invalid |= cpu.FPSCRVXSNAN
	}

	var bi int32
	inexact := false
	switch {
	case bb.IsNaN():
		invalid |= cpu.FPSCRVXCVI
		bi = math.MinInt32
	case b > math.MaxInt32:
		invalid |= cpu.FPSCRVXCVI
		bi = math.MaxInt32
	case b < math.MinInt32:
		invalid |= cpu.FPSCRVXCVI
		bi = math.MinInt32
	default:
		r := roundToInteger(b, mode)
		bi = int32(r)
		inexact = bb.Exponent() < 1075 && r != b
	}

	old := core.FPSCR
	cur, suppress := cpu.Screen(old, invalid, false)
	core.FPSCR = cur

	if suppress {
		core.FPSCR &^= cpu.FPSCRFI | cpu.FPSCRFR
	} else {
		frd := &core.FPR[inst.FRD()]
		frd.SetWord1(uint32(bi))

		hi := uint32(0xFFF80000)
		if cpu.IsNegativeZero(b) {
			hi |= 1
		}
		frd.SetWord0(hi)

		core.UpdateFPSCR(old)
		if inexact {
			core.FPSCR = cpu.UpdateFXFEXVX(old, core.FPSCR|cpu.FPSCRFI|cpu.FPSCRXX)
		}
	}

	in.record(inst)
}

func (in *Interpreter) fctiw(inst insts.Instruction) {
	in.convertToWord(inst, in.core.FPSCR.RN())
}

func (in *Interpreter) fctiwz(inst insts.Instruction) {
	in.convertToWord(inst, fpenv.Zero)
}

// frsp rounds frB to single precision under the current rounding mode.
func (in *Interpreter) frsp(inst insts.Instruction) {
	core := in.core

	b := core.FPR[inst.FRB()].Value()

	var invalid cpu.FPSCR
	if cpu.IsSignallingNaN(b) {
		invalid = cpu.FPSCRVXSNAN
	}

	old := core.FPSCR
	cur, suppress := cpu.Screen(old, invalid, false)
	core.FPSCR = cur

	if !suppress {
		in.commitSingle(inst.FRD(), in.toSingle(b))
		core.UpdateFPSCR(old)
	}

	in.record(inst)
}

const signBit = uint64(1) << 63

// The sign operations and fmr work on the raw register bits.

func (in *Interpreter) fabs(inst insts.Instruction) {
	in.core.FPR[inst.FRD()].SetBits(in.core.FPR[inst.FRB()].Bits() &^ signBit)
	in.record(inst)
}

func (in *Interpreter) fnabs(inst insts.Instruction) {
	in.core.FPR[inst.FRD()].SetBits(in.core.FPR[inst.FRB()].Bits() | signBit)
	in.record(inst)
}

func (in *Interpreter) fneg(inst insts.Instruction) {
	in.core.FPR[inst.FRD()].SetBits(in.core.FPR[inst.FRB()].Bits() ^ signBit)
	in.record(inst)
}

func (in *Interpreter) fmr(inst insts.Instruction) {
	in.core.FPR[inst.FRD()].SetBits(in.core.FPR[inst.FRB()].Bits())
	in.record(inst)
}
