package interp

import (
	"github.com/sarchlab/ppcemu/insts"
)

// link saves the return address when the instruction's LK bit is set.
func (in *Interpreter) link(inst insts.Instruction) {
	if inst.LK() {
		in.core.LR = in.core.CIA + 4
	}
}

// conditionMet decrements CTR when the BO field asks for it and then
// evaluates the branch condition.
func (in *Interpreter) conditionMet(inst insts.Instruction, useCTR bool) bool {
	core := in.core
	bo := inst.BranchBO()

	if useCTR && bo.UsesCTR() {
		core.CTR--
	}

	ctr := core.CTR
	if !useCTR {
		bo |= insts.BOIgnoreCTR
	}
	return bo.Taken(ctr, core.CRBit(inst.BI()))
}

// b branches to a relative or absolute target.
func (in *Interpreter) b(inst insts.Instruction) {
	core := in.core

	target := uint32(inst.BranchOffset())
	if !inst.AA() {
		target += core.CIA
	}

	in.link(inst)
	core.NIA = target
}

// bc is the conditional relative or absolute branch.
func (in *Interpreter) bc(inst insts.Instruction) {
	core := in.core

	if !in.conditionMet(inst, true) {
		return
	}

	target := uint32(inst.CondOffset())
	if !inst.AA() {
		target += core.CIA
	}
	in.link(inst)
	core.NIA = target
}

// bclr branches to LR. The target is read before the link update so
// blrl calls through the old LR. A skipped branch leaves LR alone.
func (in *Interpreter) bclr(inst insts.Instruction) {
	core := in.core

	if !in.conditionMet(inst, true) {
		return
	}

	target := core.LR &^ 3
	in.link(inst)
	core.NIA = target
}

// bcctr branches to CTR. CTR is never decremented.
func (in *Interpreter) bcctr(inst insts.Instruction) {
	core := in.core

	if !in.conditionMet(inst, false) {
		return
	}

	in.link(inst)
	core.NIA = core.CTR &^ 3
}
