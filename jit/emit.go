package jit

import (
	"fmt"
	"unsafe"

	"github.com/sarchlab/ppcemu/cpu"
	"github.com/sarchlab/ppcemu/insts"
)

// Exit tells the dispatcher why translated code returned. The guest
// address to continue at is always in the core's NIA.
type Exit uint32

// Exit codes returned in RAX.
const (
	// ExitBranch continues at NIA, translating it if needed.
	ExitBranch Exit = iota
	// ExitInterrupt services the pending interrupt and then resumes.
	ExitInterrupt
	// ExitFallback interprets the instruction at NIA.
	ExitFallback
)

func (e Exit) String() string {
	switch e {
	case ExitBranch:
		return "branch"
	case ExitInterrupt:
		return "interrupt"
	case ExitFallback:
		return "fallback"
	}
	return fmt.Sprintf("Exit(%d)", uint32(e))
}

// emitter translates one instruction. It returns false when it cannot,
// before emitting anything.
type emitter func(a *Assembler, inst insts.Instruction) bool

var emitters = [insts.NumOps]emitter{
	insts.OpB:     (*Assembler).b,
	insts.OpBC:    (*Assembler).bc,
	insts.OpBCLR:  (*Assembler).bclr,
	insts.OpBCCTR: (*Assembler).bcctr,
	insts.OpFMR:   (*Assembler).fmr,
	insts.OpFNEG:  (*Assembler).fneg,
	insts.OpFABS:  (*Assembler).fabs,
	insts.OpFNABS: (*Assembler).fnabs,
}

// Translated reports whether op has an emitter.
func Translated(op insts.Op) bool {
	return op < insts.NumOps && emitters[op] != nil
}

// exit writes cached guest state back and returns code to the dispatcher
// with NIA set to nia. Every path out of translated code goes through
// here or through exitDynamic.
func (a *Assembler) exit(code Exit, nia uint32) {
	a.writeBack()
	a.movStoreImm(slotNIA, nia)
	a.movImm32(RAX, uint32(code))
	a.ret()
}

// exitDynamic leaves for the word-aligned address held in r.
func (a *Assembler) exitDynamic(r Reg) {
	a.writeBack()
	a.andImm(r, ^uint32(3))
	a.movStore(slotNIA, r)
	a.movImm32(RAX, uint32(ExitBranch))
	a.ret()
}

// exitTo leaves for a statically known address, jumping straight into
// its translation when there is one.
func (a *Assembler) exitTo(target uint32) {
	if offset, ok := a.link(target); ok && target != 0 {
		a.writeBack()
		a.jmpArena(offset)
		return
	}
	a.exit(ExitBranch, target)
}

// checkpoint makes the core state canonical and leaves for the
// dispatcher when an interrupt is pending. The current instruction is
// the resume point, so it runs again once the handler returns.
func (a *Assembler) checkpoint() {
	a.flush()

	skip := a.newLabel()
	a.movImm64(RAX, uint64(uintptr(unsafe.Pointer(cpu.InterruptFlagAddr()))))
	a.cmpIndirectZero(RAX)
	a.jcc(condE, skip)
	a.exit(ExitInterrupt, a.cia)
	a.bind(skip)
}

// fallback hands the current instruction to the interpreter.
func (a *Assembler) fallback() {
	a.exit(ExitFallback, a.cia)
}

// linkReturn stores the return address when LK is set.
func (a *Assembler) linkReturn(inst insts.Instruction) {
	if inst.LK() {
		a.movStoreImm(slotLR, a.cia+4)
	}
}

// b is the unconditional branch.
func (a *Assembler) b(inst insts.Instruction) bool {
	a.checkpoint()
	a.movStoreImm(slotCIA, a.cia)

	target := uint32(inst.BranchOffset())
	if !inst.AA() {
		target += a.cia
	}

	a.linkReturn(inst)
	a.exitTo(target)
	return true
}

// branchTarget selects where a conditional branch takes its destination
// from.
type branchTarget int

const (
	targetImmediate branchTarget = iota
	targetLR
	targetCTR
)

// conditional emits the shared body of bc, bclr and bcctr.
func (a *Assembler) conditional(inst insts.Instruction, target branchTarget) {
	a.checkpoint()
	a.movStoreImm(slotCIA, a.cia)

	// The hand-off register is loaded before LR is written so that blrl
	// calls through the old LR.
	var handoff Reg
	switch target {
	case targetLR:
		handoff = a.tmp()
		a.movLoad(handoff, slotLR)
	case targetCTR:
		handoff = a.tmp()
		a.movLoad(handoff, slotCTR)
	}

	bo := inst.BranchBO()
	if target == targetCTR {
		bo |= insts.BOIgnoreCTR
	}

	fail := a.newLabel()
	if bo.UsesCTR() {
		a.decMem(slotCTR)
		if bo.WantCTRZero() {
			a.jcc(condNE, fail)
		} else {
			a.jcc(condE, fail)
		}
	}
	if bo.UsesCond() {
		a.testMemImm(slotCR, 1<<(31-inst.BI()))
		if bo.WantCond() {
			a.jcc(condE, fail)
		} else {
			a.jcc(condNE, fail)
		}
	}

	// LR is written only on the taken path.
	a.linkReturn(inst)
	if target == targetImmediate {
		dest := uint32(inst.CondOffset())
		if !inst.AA() {
			dest += a.cia
		}
		a.exitTo(dest)
	} else {
		a.exitDynamic(handoff)
	}

	if bo.UsesCTR() || bo.UsesCond() {
		a.bind(fail)
		a.exitTo(a.cia + 4)
	}
}

func (a *Assembler) bc(inst insts.Instruction) bool {
	a.conditional(inst, targetImmediate)
	return true
}

func (a *Assembler) bclr(inst insts.Instruction) bool {
	a.conditional(inst, targetLR)
	return true
}

// bcctr never decrements CTR.
func (a *Assembler) bcctr(inst insts.Instruction) bool {
	a.conditional(inst, targetCTR)
	return true
}

// floatMove copies frB to frD, optionally changing the sign bit. Record
// forms need the FPSCR and are left to the interpreter.
func (a *Assembler) floatMove(inst insts.Instruction, op bitOp, modify bool) bool {
	if inst.Rc() {
		return false
	}

	src := a.guest(fprSlot(inst.FRB()))
	dst := a.define(fprSlot(inst.FRD()))
	a.movReg(dst, src, true)
	if modify {
		a.bitImm(op, dst, 63)
	}
	return true
}

func (a *Assembler) fmr(inst insts.Instruction) bool   { return a.floatMove(inst, 0, false) }
func (a *Assembler) fneg(inst insts.Instruction) bool  { return a.floatMove(inst, bitComplement, true) }
func (a *Assembler) fabs(inst insts.Instruction) bool  { return a.floatMove(inst, bitReset, true) }
func (a *Assembler) fnabs(inst insts.Instruction) bool { return a.floatMove(inst, bitSet, true) }
