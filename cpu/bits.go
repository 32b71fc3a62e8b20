package cpu

import "math"

// Float64Bits is a read/write view of a binary64 value's fields.
type Float64Bits uint64

// Binary64 field layout.
const (
	Float64ExponentMax  = 0x7FF
	Float64ExponentBias = 1023
	float64MantissaBits = 52
	float64MantissaMask = 1<<float64MantissaBits - 1
	float64QuietBit     = 1 << (float64MantissaBits - 1)
	float64SignBit      = 1 << 63
)

// Bits64 returns the bit view of v.
func Bits64(v float64) Float64Bits {
	return Float64Bits(math.Float64bits(v))
}

// Float returns the value the bits encode.
func (b Float64Bits) Float() float64 { return math.Float64frombits(uint64(b)) }

// Sign returns 1 for negative values.
func (b Float64Bits) Sign() uint64 { return uint64(b) >> 63 }

// Exponent returns the biased exponent.
func (b Float64Bits) Exponent() uint64 { return uint64(b) >> float64MantissaBits & Float64ExponentMax }

// Mantissa returns the stored fraction bits.
func (b Float64Bits) Mantissa() uint64 { return uint64(b) & float64MantissaMask }

// WithSign replaces the sign bit.
func (b Float64Bits) WithSign(s uint64) Float64Bits {
	return b&^float64SignBit | Float64Bits(s&1)<<63
}

// WithExponent replaces the biased exponent.
func (b Float64Bits) WithExponent(e uint64) Float64Bits {
	return b&^(Float64ExponentMax<<float64MantissaBits) |
		Float64Bits(e&Float64ExponentMax)<<float64MantissaBits
}

// WithMantissa replaces the fraction bits.
func (b Float64Bits) WithMantissa(m uint64) Float64Bits {
	return b&^float64MantissaMask | Float64Bits(m&float64MantissaMask)
}

func (b Float64Bits) IsNaN() bool {
	return b.Exponent() == Float64ExponentMax && b.Mantissa() != 0
}

// IsSignallingNaN reports a NaN with the quiet bit clear.
func (b Float64Bits) IsSignallingNaN() bool {
	return b.IsNaN() && b&float64QuietBit == 0
}

func (b Float64Bits) IsInf() bool {
	return b.Exponent() == Float64ExponentMax && b.Mantissa() == 0
}

func (b Float64Bits) IsZero() bool {
	return b&^float64SignBit == 0
}

func (b Float64Bits) IsDenormal() bool {
	return b.Exponent() == 0 && b.Mantissa() != 0
}

// Float32Bits is a read/write view of a binary32 value's fields.
type Float32Bits uint32

// Binary32 field layout.
const (
	Float32ExponentMax  = 0xFF
	Float32ExponentBias = 127
	float32MantissaBits = 23
	float32MantissaMask = 1<<float32MantissaBits - 1
	float32QuietBit     = 1 << (float32MantissaBits - 1)
	float32SignBit      = 1 << 31
)

// Bits32 returns the bit view of v.
func Bits32(v float32) Float32Bits {
	return Float32Bits(math.Float32bits(v))
}

func (b Float32Bits) Float() float32   { return math.Float32frombits(uint32(b)) }
func (b Float32Bits) Sign() uint32     { return uint32(b) >> 31 }
func (b Float32Bits) Exponent() uint32 { return uint32(b) >> float32MantissaBits & Float32ExponentMax }
func (b Float32Bits) Mantissa() uint32 { return uint32(b) & float32MantissaMask }
func (b Float32Bits) IsNaN() bool      { return b.Exponent() == Float32ExponentMax && b.Mantissa() != 0 }
func (b Float32Bits) IsInf() bool      { return b.Exponent() == Float32ExponentMax && b.Mantissa() == 0 }
func (b Float32Bits) IsZero() bool     { return b&^float32SignBit == 0 }
func (b Float32Bits) IsDenormal() bool { return b.Exponent() == 0 && b.Mantissa() != 0 }
func (b Float32Bits) IsSignallingNaN() bool {
	return b.IsNaN() && b&float32QuietBit == 0
}

// IsSignallingNaN reports whether v is a signalling NaN.
func IsSignallingNaN(v float64) bool {
	return Bits64(v).IsSignallingNaN()
}

// IsNegativeZero reports whether v is -0.0.
func IsNegativeZero(v float64) bool {
	return math.Float64bits(v) == float64SignBit
}

// Quiet returns the NaN v with its quiet bit set.
func Quiet(v float64) float64 {
	return math.Float64frombits(math.Float64bits(v) | float64QuietBit)
}

// DefaultNaN is the NaN produced by an invalid operation with no NaN
// operand.
var DefaultNaN = math.Float64frombits(0x7FF8000000000000)

// DefaultNaN32 is the single-precision default NaN.
var DefaultNaN32 = math.Float32frombits(0x7FC00000)

// Narrow converts v to single precision. NaNs are converted bit-wise,
// keeping the sign and the upper fraction bits, so a quiet NaN stays quiet
// and its payload survives. Other values convert normally.
func Narrow(v float64) float32 {
	b := Bits64(v)
	if !b.IsNaN() {
		return float32(v)
	}
	bits := uint32(b.Sign())<<31 | Float32ExponentMax<<float32MantissaBits |
		uint32(b.Mantissa()>>(float64MantissaBits-float32MantissaBits))
	return math.Float32frombits(bits)
}

// Extend widens a single-precision value. NaNs keep their payload and
// their quiet bit.
func Extend(v float32) float64 {
	b := Bits32(v)
	if !b.IsNaN() {
		return float64(v)
	}
	bits := uint64(b.Sign())<<63 | Float64ExponentMax<<float64MantissaBits |
		uint64(b.Mantissa())<<(float64MantissaBits-float32MantissaBits)
	return math.Float64frombits(bits)
}
