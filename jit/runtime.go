package jit

import (
	"context"
	"errors"
	"fmt"
	"unsafe"

	"github.com/go-logr/logr"

	"github.com/sarchlab/ppcemu/cpu"
	"github.com/sarchlab/ppcemu/interp"
)

// Stats counts dispatcher events.
type Stats struct {
	Compiled   uint64
	Entered    uint64
	Fallbacks  uint64
	Interrupts uint64
	Flushes    uint64
}

// executor runs the translation at offset on core.
type executor func(arena *Arena, offset int, core *cpu.Core) Exit

func native(arena *Arena, offset int, core *cpu.Core) Exit {
	return Exit(enter(arena.Addr(offset), unsafe.Pointer(core)))
}

// Runtime is the dispatcher. It looks up or compiles the block at the
// core's NIA, enters it, and acts on the exit code. Instructions without
// an emitter run on the interpreter, which also owns the current core
// and the interrupt handler.
type Runtime struct {
	interp   *interp.Interpreter
	compiler *Compiler
	cache    *BlockCache
	arena    *Arena
	execute  executor
	log      logr.Logger

	cacheConfig          BlockCacheConfig
	maxBlockInstructions int

	stats Stats
}

// Option is a functional option for configuring the Runtime.
type Option func(*Runtime)

// WithLogger sets the logger.
func WithLogger(l logr.Logger) Option {
	return func(r *Runtime) {
		r.log = l
	}
}

// WithArena sets the code arena. The default is a new executable arena
// of DefaultArenaSize.
func WithArena(a *Arena) Option {
	return func(r *Runtime) {
		r.arena = a
	}
}

// WithBlockCache sets the block cache geometry.
func WithBlockCache(config BlockCacheConfig) Option {
	return func(r *Runtime) {
		r.cacheConfig = config
	}
}

// WithMaxBlockInstructions bounds the guest instructions per block.
func WithMaxBlockInstructions(n int) Option {
	return func(r *Runtime) {
		r.maxBlockInstructions = n
	}
}

// NewRuntime creates a dispatcher around in. Guest code is fetched from
// the interpreter's address space.
func NewRuntime(in *interp.Interpreter, opts ...Option) (*Runtime, error) {
	r := &Runtime{
		interp:               in,
		log:                  logr.Discard(),
		cacheConfig:          DefaultBlockCacheConfig(),
		maxBlockInstructions: DefaultMaxBlockInstructions,
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.arena == nil {
		arena, err := NewExecArena(DefaultArenaSize)
		if err != nil {
			return nil, err
		}
		r.arena = arena
	}
	if r.execute == nil {
		if !r.arena.Executable() {
			return nil, ErrNoExec
		}
		r.execute = native
	}

	r.compiler = NewCompiler(in.Space(), r.maxBlockInstructions)
	r.cache = NewBlockCache(r.cacheConfig)

	return r, nil
}

// Interpreter returns the fallback interpreter.
func (r *Runtime) Interpreter() *interp.Interpreter {
	return r.interp
}

// Core returns the core currently executing.
func (r *Runtime) Core() *cpu.Core {
	return r.interp.Core()
}

// Stats returns dispatcher statistics.
func (r *Runtime) Stats() Stats {
	return r.stats
}

// BlockCache returns the translation cache.
func (r *Runtime) BlockCache() *BlockCache {
	return r.cache
}

// Arena returns the code arena.
func (r *Runtime) Arena() *Arena {
	return r.arena
}

// Flush drops every translation.
func (r *Runtime) Flush() {
	r.cache.Reset()
	r.arena.Reset()
	r.stats.Flushes++
	r.log.V(1).Info("translations flushed")
}

// Close releases the code arena.
func (r *Runtime) Close() error {
	return r.arena.Close()
}

// block returns the translation for addr, compiling it on a miss.
func (r *Runtime) block(addr uint32) (*Block, error) {
	if b, ok := r.cache.Lookup(addr); ok {
		return b, nil
	}

	b, err := r.compile(addr)
	if errors.Is(err, ErrArenaFull) {
		r.Flush()
		b, err = r.compile(addr)
	}
	if err != nil {
		return nil, err
	}

	r.cache.Insert(b)
	r.stats.Compiled++
	r.log.V(1).Info("compiled block",
		"addr", fmt.Sprintf("0x%08X", addr), "instructions", b.Instructions, "bytes", b.Size)

	return b, nil
}

func (r *Runtime) compile(addr uint32) (*Block, error) {
	b, code, err := r.compiler.Compile(addr, r.arena.Next(), r.cache.Link)
	if err != nil {
		return nil, err
	}
	if len(code) == 0 {
		return b, nil
	}

	offset, err := r.arena.Place(code)
	if err != nil {
		return nil, err
	}
	b.Offset = offset
	return b, nil
}

// ctxCheckInterval is how many exits Run handles between checks of its
// context.
const ctxCheckInterval = 256

// Run executes until the core branches to address 0, an error occurs or
// ctx is done.
func (r *Runtime) Run(ctx context.Context) error {
	for n := 0; ; n++ {
		if n%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		core := r.interp.Core()
		if core.NIA == 0 {
			return nil
		}

		b, err := r.block(core.NIA)
		if err != nil {
			r.log.Error(err, "translation failed", "core", core.ID)
			return err
		}

		exit := ExitFallback
		if b.Size > 0 {
			exit = r.execute(r.arena, b.Offset, core)
			r.stats.Entered++
		}
		r.log.V(2).Info("exit", "core", core.ID, "reason", exit, "nia", core.NIA)

		switch exit {
		case ExitBranch:
		case ExitInterrupt:
			r.stats.Interrupts++
			r.interp.ServiceInterrupt()
		case ExitFallback:
			r.stats.Fallbacks++
			if result := r.interp.Step(); result.Err != nil {
				r.log.Error(result.Err, "execution stopped", "core", core.ID, "cia", core.CIA)
				return result.Err
			}
		default:
			panic(fmt.Sprintf("jit: unknown exit code %d", exit))
		}
	}
}
