package cpu

import "math"

// FPR is one floating-point register. PS0 holds the double-precision value
// as a raw bit pattern; every double, integer-word and paired view reads
// and writes that same storage. PS1 is the second paired-single slot.
type FPR struct {
	PS0 uint64
	PS1 uint64
}

// Value returns the register as a double.
func (r *FPR) Value() float64 { return math.Float64frombits(r.PS0) }

// SetValue stores a double.
func (r *FPR) SetValue(v float64) { r.PS0 = math.Float64bits(v) }

// Bits returns the raw 64-bit pattern.
func (r *FPR) Bits() uint64 { return r.PS0 }

// SetBits stores a raw 64-bit pattern.
func (r *FPR) SetBits(v uint64) { r.PS0 = v }

// Word0 returns the most significant 32 bits.
func (r *FPR) Word0() uint32 { return uint32(r.PS0 >> 32) }

// Word1 returns the least significant 32 bits.
func (r *FPR) Word1() uint32 { return uint32(r.PS0) }

// SetWord0 replaces the most significant 32 bits.
func (r *FPR) SetWord0(v uint32) { r.PS0 = r.PS0&0xFFFFFFFF | uint64(v)<<32 }

// SetWord1 replaces the least significant 32 bits.
func (r *FPR) SetWord1(v uint32) { r.PS0 = r.PS0&^0xFFFFFFFF | uint64(v) }

// Paired0 is the first paired-single slot. It aliases Value.
func (r *FPR) Paired0() float64 { return r.Value() }

// SetPaired0 stores the first paired-single slot.
func (r *FPR) SetPaired0(v float64) { r.SetValue(v) }

// Paired1 is the second paired-single slot.
func (r *FPR) Paired1() float64 { return math.Float64frombits(r.PS1) }

// SetPaired1 stores the second paired-single slot.
func (r *FPR) SetPaired1(v float64) { r.PS1 = math.Float64bits(v) }

// SetSingle stores a single-precision result in both paired slots.
func (r *FPR) SetSingle(v float32) {
	d := Extend(v)
	r.SetPaired0(d)
	r.SetPaired1(d)
}
