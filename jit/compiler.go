package jit

import (
	"errors"
	"fmt"

	"github.com/sarchlab/ppcemu/insts"
	"github.com/sarchlab/ppcemu/mem"
)

// ErrBadFetch is returned when a block starts at an address that is not
// backed by guest memory.
var ErrBadFetch = errors.New("instruction fetch from invalid address")

// DefaultMaxBlockInstructions bounds the guest instructions per block.
const DefaultMaxBlockInstructions = 64

// Block is a translated run of guest instructions.
type Block struct {
	// Addr is the guest address of the first instruction.
	Addr uint32

	// Offset is where the code lives in the arena.
	Offset int

	// Size is the length of the code in bytes. A block of size 0 starts
	// with an instruction that has no emitter and is always interpreted.
	Size int

	// Instructions is the number of guest instructions translated.
	Instructions int
}

// Compiler translates straight-line guest code up to and including the
// first branch.
type Compiler struct {
	space           *mem.Space
	decoder         *insts.Decoder
	maxInstructions int
}

// NewCompiler creates a compiler fetching guest code from space.
func NewCompiler(space *mem.Space, maxInstructions int) *Compiler {
	if maxInstructions <= 0 {
		maxInstructions = DefaultMaxBlockInstructions
	}
	return &Compiler{
		space:           space,
		decoder:         insts.NewDecoder(),
		maxInstructions: maxInstructions,
	}
}

// Compile translates the block at addr for placement at arena offset
// origin. link resolves targets that already have code.
func (c *Compiler) Compile(addr uint32, origin int, link Linker) (*Block, []byte, error) {
	if !c.space.Valid(addr) {
		return nil, nil, fmt.Errorf("%w: 0x%08X", ErrBadFetch, addr)
	}

	block := &Block{Addr: addr}
	a := NewAssembler(origin, link)

	for pc := addr; ; pc += 4 {
		a.begin(pc)

		if block.Instructions == c.maxInstructions || !c.space.Valid(pc) {
			a.exit(ExitBranch, pc)
			break
		}

		word := mem.Read[uint32](c.space, pc)
		op := c.decoder.Decode(word)

		e := emitters[op]
		if e == nil || !e(a, insts.Instruction(word)) {
			if block.Instructions == 0 {
				return block, nil, nil
			}
			a.fallback()
			break
		}

		block.Instructions++
		if op.IsBranch() {
			break
		}
	}

	code := a.Finish()
	block.Size = len(code)
	return block, code, nil
}
