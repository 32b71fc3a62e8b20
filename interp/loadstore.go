package interp

import (
	"github.com/sarchlab/ppcemu/cpu"
	"github.com/sarchlab/ppcemu/insts"
	"github.com/sarchlab/ppcemu/mem"
)

// effectiveAddress computes (rA|0) + d.
func (in *Interpreter) effectiveAddress(inst insts.Instruction) uint32 {
	ea := uint32(inst.D())
	if ra := inst.RA(); ra != 0 {
		ea += in.core.GPR[ra]
	}
	return ea
}

// lfs loads a single and widens it into both paired slots.
func (in *Interpreter) lfs(inst insts.Instruction) {
	v := mem.Read[float32](in.space, in.effectiveAddress(inst))
	in.core.FPR[inst.FRD()].SetSingle(v)
}

func (in *Interpreter) lfd(inst insts.Instruction) {
	v := mem.Read[uint64](in.space, in.effectiveAddress(inst))
	in.core.FPR[inst.FRD()].SetBits(v)
}

// stfs narrows frS without rounding-mode effects or FPSCR updates.
func (in *Interpreter) stfs(inst insts.Instruction) {
	v := cpu.Narrow(in.core.FPR[inst.FRS()].Value())
	mem.Write(in.space, in.effectiveAddress(inst), v)
}

func (in *Interpreter) stfd(inst insts.Instruction) {
	mem.Write(in.space, in.effectiveAddress(inst), in.core.FPR[inst.FRS()].Bits())
}
