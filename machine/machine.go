// Package machine runs a multi-core guest.
//
// Each guest core runs on its own goroutine locked to an OS thread, with
// its own floating-point environment and either an interpreter or a JIT
// runtime. All cores share one address space and one host function
// registry.
package machine

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"github.com/sarchlab/ppcemu/config"
	"github.com/sarchlab/ppcemu/cpu"
	"github.com/sarchlab/ppcemu/hle"
	"github.com/sarchlab/ppcemu/interp"
	"github.com/sarchlab/ppcemu/jit"
	"github.com/sarchlab/ppcemu/mem"
)

// Stats holds execution statistics for one processor.
type Stats struct {
	// Instructions is the number of instructions interpreted.
	Instructions uint64
	// JIT holds dispatcher statistics; zero for the interpreter.
	JIT jit.Stats
}

// Processor is one guest core and the engine that runs it.
type Processor struct {
	// State is the architectural state of the core.
	State *cpu.Core

	interp  *interp.Interpreter
	runtime *jit.Runtime
}

// Run executes the processor until its core branches to address 0.
func (p *Processor) Run(ctx context.Context) error {
	if p.runtime != nil {
		return p.runtime.Run(ctx)
	}
	return p.interp.Run(ctx)
}

// SetEntry points the core at entry with stack pointer sp. LR is cleared
// so that returning from the entry function ends the run.
func (p *Processor) SetEntry(entry, sp uint32) {
	p.State.NIA = entry
	p.State.GPR[1] = sp
	p.State.LR = 0
}

// Stats returns execution statistics.
func (p *Processor) Stats() Stats {
	s := Stats{Instructions: p.interp.InstructionCount()}
	if p.runtime != nil {
		s.JIT = p.runtime.Stats()
	}
	return s
}

// Runtime returns the JIT runtime, or nil under the interpreter.
func (p *Processor) Runtime() *jit.Runtime {
	return p.runtime
}

// Close releases the processor's code arena.
func (p *Processor) Close() error {
	if p.runtime != nil {
		return p.runtime.Close()
	}
	return nil
}

// Machine is a set of processors sharing an address space.
type Machine struct {
	config     *config.Config
	space      *mem.Space
	registry   *hle.Registry
	processors []*Processor
	log        logr.Logger

	interruptHandler cpu.InterruptHandler
	newArena         func(size int) (*jit.Arena, error)
}

// Option is a functional option for configuring the Machine.
type Option func(*Machine)

// WithLogger sets the logger.
func WithLogger(l logr.Logger) Option {
	return func(m *Machine) {
		m.log = l
	}
}

// WithRegistry sets the host function registry. The default registry is
// empty.
func WithRegistry(r *hle.Registry) Option {
	return func(m *Machine) {
		m.registry = r
	}
}

// WithInterruptHandler sets the handler every core calls for a pending
// interrupt.
func WithInterruptHandler(h cpu.InterruptHandler) Option {
	return func(m *Machine) {
		m.interruptHandler = h
	}
}

// WithArenaFactory sets how each JIT runtime gets its code arena. The
// default is jit.NewExecArena.
func WithArenaFactory(f func(size int) (*jit.Arena, error)) Option {
	return func(m *Machine) {
		m.newArena = f
	}
}

// New creates a machine as described by cfg.
func New(cfg *config.Config, space *mem.Space, opts ...Option) (*Machine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	m := &Machine{
		config:   cfg,
		space:    space,
		log:      logr.Discard(),
		newArena: jit.NewExecArena,
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.registry == nil {
		m.registry = hle.NewRegistry(space,
			hle.WithLogger(m.log.WithName("hle")),
			hle.WithTrace(cfg.TraceHLE))
	}

	for i := 0; i < cfg.Cores; i++ {
		p, err := m.newProcessor(i)
		if err != nil {
			m.Close()
			return nil, fmt.Errorf("core %d: %w", i, err)
		}
		m.processors = append(m.processors, p)
	}

	m.log.Info("machine created", "cores", cfg.Cores, "engine", cfg.Engine)
	return m, nil
}

func (m *Machine) newProcessor(id int) (*Processor, error) {
	core := cpu.NewCore(id)
	core.SetFPSCR(cpu.FPSCR(m.config.Rounding()))

	log := m.log.WithValues("core", id)
	in := interp.New(core, m.space,
		interp.WithLogger(log),
		interp.WithMaxInstructions(m.config.MaxInstructions),
		interp.WithSyscallHandler(m.registry),
		interp.WithInterruptHandler(m.interruptHandler),
	)

	p := &Processor{State: core, interp: in}
	if m.config.Engine != config.EngineJIT {
		return p, nil
	}

	arena, err := m.newArena(m.config.ArenaSize)
	if err != nil {
		return nil, err
	}

	rt, err := jit.NewRuntime(in,
		jit.WithLogger(log),
		jit.WithArena(arena),
		jit.WithBlockCache(jit.BlockCacheConfig{
			Entries:       m.config.BlockCacheSize,
			Associativity: m.config.BlockCacheWays,
		}),
		jit.WithMaxBlockInstructions(m.config.MaxBlockInstructions),
	)
	if err != nil {
		return nil, errors.Join(err, arena.Close())
	}
	p.runtime = rt
	return p, nil
}

// Processor returns processor i.
func (m *Machine) Processor(i int) *Processor {
	return m.processors[i]
}

// Processors returns every processor in core ID order.
func (m *Machine) Processors() []*Processor {
	return m.processors
}

// Registry returns the host function registry.
func (m *Machine) Registry() *hle.Registry {
	return m.registry
}

// Space returns the shared address space.
func (m *Machine) Space() *mem.Space {
	return m.space
}

// Run executes every processor whose NIA is set until all have branched
// to address 0. The first error cancels the others and is returned.
func (m *Machine) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, p := range m.processors {
		if p.State.NIA == 0 {
			continue
		}

		g.Go(func() error {
			runtime.LockOSThread()
			defer runtime.UnlockOSThread()

			if err := p.Run(ctx); err != nil {
				return fmt.Errorf("core %d: %w", p.State.ID, err)
			}
			m.log.V(1).Info("core finished", "core", p.State.ID, "cia", fmt.Sprintf("0x%08X", p.State.CIA))
			return nil
		})
	}

	return g.Wait()
}

// Close releases every processor's resources.
func (m *Machine) Close() error {
	var first error
	for _, p := range m.processors {
		if err := p.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
