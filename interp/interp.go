// Package interp provides a functional PowerPC interpreter.
//
// The interpreter executes one instruction at a time against a cpu.Core,
// fetching from a mem.Space. Handlers are looked up in a fixed table indexed
// by insts.Op. It is both a standalone execution engine and the fallback the
// JIT uses for instructions it does not translate.
package interp

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/sarchlab/ppcemu/cpu"
	"github.com/sarchlab/ppcemu/insts"
	"github.com/sarchlab/ppcemu/mem"
)

// ErrUnimplemented is returned for instruction words with no handler.
var ErrUnimplemented = errors.New("unimplemented instruction")

// ErrMaxInstructions is returned once the instruction limit is reached.
var ErrMaxInstructions = errors.New("max instructions reached")

// StepResult represents the result of executing a single instruction.
type StepResult struct {
	// Exited is true once the core branched to guest address 0.
	Exited bool

	// Err is set if an error occurred during execution.
	Err error
}

type handler func(in *Interpreter, inst insts.Instruction)

// handlers is populated once and indexed by decoded opcode.
var handlers = [insts.NumOps]handler{
	insts.OpB:       (*Interpreter).b,
	insts.OpBC:      (*Interpreter).bc,
	insts.OpBCLR:    (*Interpreter).bclr,
	insts.OpBCCTR:   (*Interpreter).bcctr,
	insts.OpFADD:    (*Interpreter).fadd,
	insts.OpFADDS:   (*Interpreter).fadds,
	insts.OpFSUB:    (*Interpreter).fsub,
	insts.OpFSUBS:   (*Interpreter).fsubs,
	insts.OpFMUL:    (*Interpreter).fmul,
	insts.OpFMULS:   (*Interpreter).fmuls,
	insts.OpFDIV:    (*Interpreter).fdiv,
	insts.OpFDIVS:   (*Interpreter).fdivs,
	insts.OpFRES:    (*Interpreter).fres,
	insts.OpFRSQRTE: (*Interpreter).frsqrte,
	insts.OpFSEL:    (*Interpreter).fsel,
	insts.OpFMADD:   (*Interpreter).fmadd,
	insts.OpFMADDS:  (*Interpreter).fmadds,
	insts.OpFMSUB:   (*Interpreter).fmsub,
	insts.OpFMSUBS:  (*Interpreter).fmsubs,
	insts.OpFNMADD:  (*Interpreter).fnmadd,
	insts.OpFNMADDS: (*Interpreter).fnmadds,
	insts.OpFNMSUB:  (*Interpreter).fnmsub,
	insts.OpFNMSUBS: (*Interpreter).fnmsubs,
	insts.OpFCTIW:   (*Interpreter).fctiw,
	insts.OpFCTIWZ:  (*Interpreter).fctiwz,
	insts.OpFRSP:    (*Interpreter).frsp,
	insts.OpFABS:    (*Interpreter).fabs,
	insts.OpFNABS:   (*Interpreter).fnabs,
	insts.OpFNEG:    (*Interpreter).fneg,
	insts.OpFMR:     (*Interpreter).fmr,
	insts.OpFCMPU:   (*Interpreter).fcmpu,
	insts.OpFCMPO:   (*Interpreter).fcmpo,
	insts.OpMFFS:    (*Interpreter).mffs,
	insts.OpMTFSB0:  (*Interpreter).mtfsb0,
	insts.OpMTFSB1:  (*Interpreter).mtfsb1,
	insts.OpMTFSF:   (*Interpreter).mtfsf,
	insts.OpMTFSFI:  (*Interpreter).mtfsfi,
	insts.OpMCRFS:   (*Interpreter).mcrfs,
	insts.OpLFS:     (*Interpreter).lfs,
	insts.OpLFD:     (*Interpreter).lfd,
	insts.OpSTFS:    (*Interpreter).stfs,
	insts.OpSTFD:    (*Interpreter).stfd,
}

// Implemented reports whether op has an interpreter handler.
func Implemented(op insts.Op) bool {
	return op == insts.OpSC || op < insts.NumOps && handlers[op] != nil
}

// Interpreter executes PowerPC instructions functionally.
type Interpreter struct {
	core    *cpu.Core
	space   *mem.Space
	decoder *insts.Decoder
	log     logr.Logger

	interruptHandler cpu.InterruptHandler
	syscallHandler   SyscallHandler

	// Execution state
	instructionCount uint64
	maxInstructions  uint64 // 0 means no limit
}

// Option is a functional option for configuring the Interpreter.
type Option func(*Interpreter)

// WithLogger sets the logger.
func WithLogger(l logr.Logger) Option {
	return func(in *Interpreter) {
		in.log = l
	}
}

// WithMaxInstructions sets the maximum number of instructions to execute.
// A value of 0 means no limit.
func WithMaxInstructions(max uint64) Option {
	return func(in *Interpreter) {
		in.maxInstructions = max
	}
}

// WithInterruptHandler sets the handler called when a branch observes a
// pending interrupt.
func WithInterruptHandler(h cpu.InterruptHandler) Option {
	return func(in *Interpreter) {
		in.interruptHandler = h
	}
}

// New creates an interpreter for core fetching from space.
func New(core *cpu.Core, space *mem.Space, opts ...Option) *Interpreter {
	in := &Interpreter{
		core:    core,
		space:   space,
		decoder: insts.NewDecoder(),
		log:     logr.Discard(),
	}

	for _, opt := range opts {
		opt(in)
	}

	return in
}

// Core returns the core currently being executed.
func (in *Interpreter) Core() *cpu.Core {
	return in.core
}

// SetCore switches execution to another core.
func (in *Interpreter) SetCore(core *cpu.Core) {
	in.core = core
}

// Space returns the address space instructions are fetched from.
func (in *Interpreter) Space() *mem.Space {
	return in.space
}

// InstructionCount returns the number of instructions executed.
func (in *Interpreter) InstructionCount() uint64 {
	return in.instructionCount
}

// Step executes the instruction at NIA. A branch that finds an interrupt
// pending does not execute; the handler runs instead and the branch is
// retried on the next Step by whichever core the handler returned.
func (in *Interpreter) Step() StepResult {
	if in.maxInstructions > 0 && in.instructionCount >= in.maxInstructions {
		return StepResult{Err: ErrMaxInstructions}
	}

	core := in.core
	if core.NIA == 0 {
		return StepResult{Exited: true}
	}

	word := mem.Read[uint32](in.space, core.NIA)
	op := in.decoder.Decode(word)

	if op.IsBranch() && in.interruptHandler != nil && cpu.InterruptPending() {
		in.ServiceInterrupt()
		return StepResult{}
	}

	if err := in.execute(word, op); err != nil {
		return StepResult{Err: err}
	}

	return StepResult{Exited: in.core.NIA == 0}
}

// ExecuteWord executes one instruction word as if fetched from NIA,
// without checking for interrupts.
func (in *Interpreter) ExecuteWord(word uint32) error {
	return in.execute(word, in.decoder.Decode(word))
}

func (in *Interpreter) execute(word uint32, op insts.Op) error {
	core := in.core

	h := handlers[op]
	if h == nil && op != insts.OpSC {
		return fmt.Errorf("%w: %s (0x%08X) at 0x%08X", ErrUnimplemented, op, word, core.NIA)
	}

	core.CIA = core.NIA
	core.NIA = core.CIA + 4
	in.instructionCount++

	// Handle sc separately
	if op == insts.OpSC {
		return in.executeSC()
	}

	h(in, insts.Instruction(word))
	return nil
}

// ServiceInterrupt lowers the interrupt flag, calls the handler and
// continues with the core it returns.
func (in *Interpreter) ServiceInterrupt() {
	cpu.ClearInterrupt()
	if in.interruptHandler == nil {
		return
	}

	prev := in.core
	if next := in.interruptHandler(prev); next != nil {
		in.core = next
	}
	in.log.V(1).Info("interrupt serviced", "core", prev.ID, "resume", in.core.NIA, "switched", in.core != prev)
}

// ctxCheckInterval is how many instructions Run executes between checks
// of its context.
const ctxCheckInterval = 1024

// Run executes instructions until the core branches to address 0, an
// error occurs or ctx is done.
func (in *Interpreter) Run(ctx context.Context) error {
	for n := 0; ; n++ {
		if n%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		result := in.Step()
		if result.Err != nil {
			in.log.Error(result.Err, "execution stopped", "core", in.core.ID, "cia", in.core.CIA)
			return result.Err
		}
		if result.Exited {
			return nil
		}
	}
}
