package interp

import (
	"errors"
	"fmt"

	"github.com/sarchlab/ppcemu/cpu"
)

// ErrNoSyscallHandler is returned when sc executes without a handler.
var ErrNoSyscallHandler = errors.New("no system call handler")

// SyscallHandler services the sc instruction.
type SyscallHandler interface {
	// Handle runs the call selected by the core's registers. The call
	// number is in GPR0, arguments start at GPR3 and FPR1, and results
	// are returned in GPR3 (GPR3:GPR4) or FPR1. A handler may end the
	// program by setting NIA to 0.
	Handle(core *cpu.Core) error
}

// WithSyscallHandler sets the handler for sc.
func WithSyscallHandler(h SyscallHandler) Option {
	return func(in *Interpreter) {
		in.syscallHandler = h
	}
}

// executeSC handles sc. NIA already points past the instruction, so the
// call returns to the next instruction unless the handler redirects it.
func (in *Interpreter) executeSC() error {
	core := in.core
	if in.syscallHandler == nil {
		return fmt.Errorf("%w: sc at 0x%08X", ErrNoSyscallHandler, core.CIA)
	}

	if err := in.syscallHandler.Handle(core); err != nil {
		return fmt.Errorf("system call %d at 0x%08X: %w", core.GPR[0], core.CIA, err)
	}
	return nil
}
