// Package fpenv provides a per-core floating-point environment.
//
// Go exposes no access to the host FPU control and status registers, so each
// emulated core owns an Env that carries the current rounding mode and the
// accumulated IEEE-754 exception flags. Every arithmetic operation a guest
// instruction performs goes through the Env, which rounds the exact result
// under the selected mode and records overflow, underflow, divide-by-zero
// and inexact exactly as an IEEE-754 FPU with default (non-trapping)
// exception handling would.
//
// Tininess is detected after rounding.
//
// An Env is not safe for concurrent use; it belongs to one core.
package fpenv

import (
	"math"
	"math/big"
	"strings"
)

// RoundingMode selects how inexact results are rounded. The numeric values
// match the PowerPC FPSCR[RN] encoding.
type RoundingMode uint8

// Rounding modes.
const (
	Nearest  RoundingMode = iota // round to nearest, ties to even
	Zero                         // round toward zero
	Positive                     // round toward +infinity
	Negative                     // round toward -infinity
)

func (m RoundingMode) String() string {
	switch m {
	case Nearest:
		return "nearest"
	case Zero:
		return "zero"
	case Positive:
		return "positive"
	case Negative:
		return "negative"
	default:
		return "invalid"
	}
}

// ParseRoundingMode converts a mode name produced by String back into a
// RoundingMode.
func ParseRoundingMode(s string) (RoundingMode, bool) {
	for m := Nearest; m <= Negative; m++ {
		if strings.EqualFold(s, m.String()) {
			return m, true
		}
	}
	return Nearest, false
}

// Flags is a set of IEEE-754 exception flags.
type Flags uint8

// Exception flags.
const (
	Overflow Flags = 1 << iota
	Underflow
	DivideByZero
	Inexact
)

// All is the set of every exception flag.
const All = Overflow | Underflow | DivideByZero | Inexact

func (f Flags) String() string {
	if f == 0 {
		return "none"
	}
	var names []string
	for _, n := range []struct {
		f    Flags
		name string
	}{
		{Overflow, "overflow"},
		{Underflow, "underflow"},
		{DivideByZero, "divbyzero"},
		{Inexact, "inexact"},
	} {
		if f&n.f != 0 {
			names = append(names, n.name)
		}
	}
	return strings.Join(names, "|")
}

// Env is the floating-point environment of one core.
type Env struct {
	mode  RoundingMode
	flags Flags

	// roundedUp records whether the last inexact rounding increased the
	// magnitude of its result.
	roundedUp bool
}

// New creates an environment with round-to-nearest and no flags raised.
func New() *Env {
	return &Env{}
}

// SetRounding changes the rounding mode used by subsequent operations.
func (e *Env) SetRounding(m RoundingMode) {
	e.mode = m & 3
}

// Rounding returns the current rounding mode.
func (e *Env) Rounding() RoundingMode {
	return e.mode
}

// Flags returns the exception flags raised since the last Clear.
func (e *Env) Flags() Flags {
	return e.flags
}

// Test reports whether any flag in f is raised.
func (e *Env) Test(f Flags) bool {
	return e.flags&f != 0
}

// Raise sets flags as if an operation had signalled them.
func (e *Env) Raise(f Flags) {
	e.flags |= f
}

// Lower clears the flags in f and leaves the others raised.
func (e *Env) Lower(f Flags) {
	e.flags &^= f
}

// RoundedUp reports whether the last inexact rounding since Clear moved
// the result away from zero.
func (e *Env) RoundedUp() bool {
	return e.roundedUp
}

// Clear resets all exception flags. The rounding mode is preserved.
func (e *Env) Clear() {
	e.flags = 0
	e.roundedUp = false
}

// format describes a binary interchange format.
type format struct {
	prec       uint
	emin, emax int

	minNormal *big.Float // 2^emin
	overflow  *big.Float // 2^(emax+1)
	max       float64
}

func newFormat(prec uint, emin, emax int, max float64) *format {
	one := big.NewFloat(1)
	return &format{
		prec:      prec,
		emin:      emin,
		emax:      emax,
		minNormal: new(big.Float).SetMantExp(one, emin),
		overflow:  new(big.Float).SetMantExp(one, emax+1),
		max:       max,
	}
}

var (
	binary64 = newFormat(53, -1022, 1023, math.MaxFloat64)
	binary32 = newFormat(24, -126, 127, math.MaxFloat32)
)

const (
	// exactPrec holds any sum or fused product-sum of binary64 values
	// without rounding.
	exactPrec = 4352

	// workPrec is used for quotients, which are never exact in general.
	// It is more than twice the binary64 precision plus two, so a round-to-odd
	// intermediate followed by a final rounding is correctly rounded.
	workPrec = 256
)

// magnitudeMode maps the rounding mode onto the magnitude of a value with
// the given sign.
func (e *Env) magnitudeMode(neg bool) big.RoundingMode {
	switch e.mode {
	case Zero:
		return big.ToZero
	case Positive:
		if neg {
			return big.ToZero
		}
		return big.AwayFromZero
	case Negative:
		if neg {
			return big.AwayFromZero
		}
		return big.ToZero
	default:
		return big.ToNearestEven
	}
}

// zeroSum is the sign of an exact zero sum of operands with opposite signs.
func (e *Env) zeroSum() float64 {
	if e.mode == Negative {
		return math.Copysign(0, -1)
	}
	return 0
}

// markSticky turns a value truncated toward zero into its round-to-odd
// form by forcing the least significant bit of its mantissa to one.
func markSticky(x *big.Float) {
	if x.Acc() == big.Exact || x.Sign() == 0 {
		return
	}

	neg := x.Signbit()
	prec := int(x.Prec())

	mant := new(big.Float)
	exp := x.MantExp(mant)
	mant.Abs(mant)
	mant.SetMantExp(mant, prec)

	bits, _ := mant.Int(nil)
	bits.SetBit(bits, 0, 1)

	x.SetInt(bits)
	x.SetMantExp(x, exp-prec)
	if neg {
		x.Neg(x)
	}
}

// round rounds a finite non-zero value, exact or in round-to-odd form, into
// format f under the current mode and records the resulting flags.
func (e *Env) round(x *big.Float, f *format) float64 {
	neg := x.Signbit()
	mag := new(big.Float).Abs(x)
	mode := e.magnitudeMode(neg)

	r := new(big.Float).SetPrec(f.prec).SetMode(mode).Set(mag)

	var result float64
	switch {
	case r.Cmp(f.overflow) >= 0:
		e.flags |= Overflow | Inexact
		if mode == big.ToZero {
			result = f.max
			e.roundedUp = false
		} else {
			result = math.Inf(1)
			e.roundedUp = true
		}

	case r.Cmp(f.minNormal) < 0:
		// Tiny after rounding. Re-round with the exponent clamped at emin by
		// biasing the value into the lowest binade and removing the bias.
		y := new(big.Float).SetPrec(exactPrec+64).SetMode(big.ToZero).Add(mag, f.minNormal)
		markSticky(y)

		yr := new(big.Float).SetPrec(f.prec).SetMode(mode).Set(y)
		acc := yr.Acc()
		yr.Sub(yr, f.minNormal)
		result, _ = yr.Float64()

		if acc != big.Exact {
			e.flags |= Underflow | Inexact
			e.roundedUp = acc == big.Above
		}

	default:
		acc := r.Acc()
		result, _ = r.Float64()
		if acc != big.Exact {
			e.flags |= Inexact
			e.roundedUp = acc == big.Above
		}
	}

	if neg {
		result = math.Copysign(result, -1)
	}
	return result
}

func isSpecial(x float64) bool {
	return math.IsNaN(x) || math.IsInf(x, 0)
}

func exact(x float64) *big.Float {
	return new(big.Float).SetFloat64(x)
}

// Add returns a+b rounded to binary64.
func (e *Env) Add(a, b float64) float64 {
	if isSpecial(a) || isSpecial(b) {
		return a + b
	}

	if a == 0 && b == 0 {
		if math.Signbit(a) == math.Signbit(b) {
			return a
		}
		return e.zeroSum()
	}
	if a == 0 {
		return b
	}
	if b == 0 {
		return a
	}

	sum := new(big.Float).SetPrec(exactPrec).SetMode(big.ToZero).Add(exact(a), exact(b))
	if sum.Sign() == 0 {
		return e.zeroSum()
	}
	return e.round(sum, binary64)
}

// Sub returns a-b rounded to binary64.
func (e *Env) Sub(a, b float64) float64 {
	return e.Add(a, -b)
}

// Mul returns a*b rounded to binary64.
func (e *Env) Mul(a, b float64) float64 {
	if isSpecial(a) || isSpecial(b) || a == 0 || b == 0 {
		return a * b
	}

	prod := new(big.Float).SetPrec(2*binary64.prec).Mul(exact(a), exact(b))
	return e.round(prod, binary64)
}

// Div returns a/b rounded to binary64. A finite non-zero dividend over a
// zero divisor raises DivideByZero.
func (e *Env) Div(a, b float64) float64 {
	if isSpecial(a) || isSpecial(b) || a == 0 || b == 0 {
		if b == 0 && a != 0 && !isSpecial(a) {
			e.flags |= DivideByZero
		}
		return a / b
	}

	quo := new(big.Float).SetPrec(workPrec).SetMode(big.ToZero).Quo(exact(a), exact(b))
	markSticky(quo)
	return e.round(quo, binary64)
}

// FMA returns a*b+c with a single rounding to binary64.
func (e *Env) FMA(a, b, c float64) float64 {
	if isSpecial(a) || isSpecial(b) || isSpecial(c) {
		return math.FMA(a, b, c)
	}
	if a == 0 || b == 0 {
		return e.Add(a*b, c)
	}

	prod := new(big.Float).SetPrec(2*binary64.prec).Mul(exact(a), exact(b))
	if c == 0 {
		return e.round(prod, binary64)
	}

	sum := new(big.Float).SetPrec(exactPrec).SetMode(big.ToZero).Add(prod, exact(c))
	if sum.Sign() == 0 {
		return e.zeroSum()
	}
	return e.round(sum, binary64)
}

// Sqrt returns the square root of x rounded to binary64.
func (e *Env) Sqrt(x float64) float64 {
	if isSpecial(x) || x <= 0 {
		return math.Sqrt(x)
	}

	s := math.Sqrt(x)
	sq := new(big.Float).SetPrec(2*binary64.prec).Mul(exact(s), exact(s))
	cmp := sq.Cmp(exact(x))
	if cmp == 0 {
		return s
	}

	e.flags |= Inexact
	switch e.mode {
	case Zero, Negative:
		if cmp > 0 {
			s = math.Nextafter(s, 0)
		}
		e.roundedUp = false
	case Positive:
		if cmp < 0 {
			s = math.Nextafter(s, math.Inf(1))
		}
		e.roundedUp = true
	default:
		e.roundedUp = cmp > 0
	}
	return s
}

// ToFloat32 narrows x to binary32 under the current rounding mode.
func (e *Env) ToFloat32(x float64) float32 {
	if isSpecial(x) || x == 0 {
		return float32(x)
	}
	return float32(e.round(exact(x), binary32))
}

// RoundToSingle narrows x to binary32 and widens the result back.
func (e *Env) RoundToSingle(x float64) float64 {
	return float64(e.ToFloat32(x))
}
