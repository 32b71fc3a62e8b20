package interp

import (
	"math"

	"github.com/sarchlab/ppcemu/cpu"
	"github.com/sarchlab/ppcemu/insts"
)

// mffs copies the FPSCR into the low word of frD.
func (in *Interpreter) mffs(inst insts.Instruction) {
	in.core.FPR[inst.FRD()].SetWord1(uint32(in.core.FPSCR))
	in.record(inst)
}

// fpscrBit converts a PowerPC bit number into an FPSCR mask.
func fpscrBit(crbD uint32) cpu.FPSCR {
	return 1 << (31 - crbD&31)
}

func (in *Interpreter) mtfsb0(inst insts.Instruction) {
	core := in.core

	core.FPSCR = (core.FPSCR &^ fpscrBit(inst.CRBD())).UpdateFEXVX()
	if inst.CRBD() >= 30 {
		core.SyncRounding()
	}

	in.record(inst)
}

func (in *Interpreter) mtfsb1(inst insts.Instruction) {
	core := in.core

	old := core.FPSCR
	core.FPSCR = cpu.UpdateFXFEXVX(old, old|fpscrBit(inst.CRBD()))
	if inst.CRBD() >= 30 {
		core.SyncRounding()
	}

	in.record(inst)
}

// mtfsf copies the fields of frB's low word selected by FM into the FPSCR.
// FM bit 0 (least significant) selects the lowest field.
func (in *Interpreter) mtfsf(inst insts.Instruction) {
	core := in.core

	value := cpu.FPSCR(core.FPR[inst.FRB()].Word1())
	fm := inst.FM()

	fpscr := core.FPSCR
	for field := uint32(0); field < 8; field++ {
		if fm&(1<<field) != 0 {
			mask := cpu.FPSCR(0xF) << (4 * field)
			fpscr = fpscr&^mask | value&mask
		}
	}
	core.FPSCR = fpscr.UpdateFEXVX()
	if fm&1 != 0 {
		core.SyncRounding()
	}

	in.record(inst)
}

// mtfsfi sets FPSCR field crfD to an immediate.
func (in *Interpreter) mtfsfi(inst insts.Instruction) {
	core := in.core

	core.FPSCR = core.FPSCR.WithField(inst.CRFD(), inst.IMM()).UpdateFEXVX()
	if inst.CRFD() == 7 {
		core.SyncRounding()
	}

	in.record(inst)
}

// mcrfs copies FPSCR field crfS into CR field crfD and clears the sticky
// exception bits it contained.
func (in *Interpreter) mcrfs(inst insts.Instruction) {
	core := in.core

	field := inst.CRFS()
	core.SetCRField(inst.CRFD(), core.FPSCR.Field(field))

	mask := cpu.FPSCR(0xF) << (4 * (7 - field))
	core.FPSCR = (core.FPSCR &^ (mask & (cpu.FPSCRExceptions | cpu.FPSCRFX))).UpdateFEXVX()
}

// Floating compare condition codes, in CR field order.
const (
	compareLess      uint32 = 8
	compareGreater   uint32 = 4
	compareEqual     uint32 = 2
	compareUnordered uint32 = 1
)

func compareFloat(a, b float64) uint32 {
	switch {
	case math.IsNaN(a) || math.IsNaN(b):
		return compareUnordered
	case a < b:
		return compareLess
	case a > b:
		return compareGreater
	default:
		return compareEqual
	}
}

// compare sets FPCC and CR field crfD from frA compared with frB. An
// ordered compare also treats any NaN operand as an invalid compare.
func (in *Interpreter) compare(inst insts.Instruction, ordered bool) {
	core := in.core

	a := core.FPR[inst.FRA()].Value()
	b := core.FPR[inst.FRB()].Value()
	cc := compareFloat(a, b)

	old := core.FPSCR
	fpscr := old.WithFPRF(old.FPRF()&^0xF | cc)

	snan := cpu.IsSignallingNaN(a) || cpu.IsSignallingNaN(b)
	if snan {
		fpscr |= cpu.FPSCRVXSNAN
	}
	if ordered && cc == compareUnordered && (!snan || !old.Has(cpu.FPSCRVE)) {
		fpscr |= cpu.FPSCRVXVC
	}

	core.FPSCR = cpu.UpdateFXFEXVX(old, fpscr)
	core.SetCRField(inst.CRFD(), cc)
}

func (in *Interpreter) fcmpu(inst insts.Instruction) { in.compare(inst, false) }
func (in *Interpreter) fcmpo(inst insts.Instruction) { in.compare(inst, true) }
