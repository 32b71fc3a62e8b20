// Package jit translates PowerPC guest code into x86-64 host code.
//
// A block runs from its entry address up to and including the first
// branch. Branches and a few register moves are emitted natively; any
// other instruction ends the block with an exit that hands it to the
// interpreter. Translated code addresses the cpu.Core through RDI and
// returns an Exit code in RAX to the Runtime dispatcher.
//
// A block only links directly to code translated before it, so chains of
// linked blocks always end back in the dispatcher.
package jit

import (
	"encoding/binary"
)

// Reg is an x86-64 general-purpose register number.
type Reg uint8

// x86-64 register encoding.
const (
	RAX Reg = iota
	RCX
	RDX
	RBX
	RSP
	RBP
	RSI
	RDI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15
)

// coreReg holds the *cpu.Core for the whole of a translated block. RAX
// carries the exit code and is never handed out.
const coreReg = RDI

// scratch lists the registers emitters may use. All are caller-saved in
// both the System V and the Go assembly conventions.
var scratch = [...]Reg{RCX, RDX, RSI, R8, R9, R10, R11}

type cond byte

const (
	condE  cond = 0x4
	condNE cond = 0x5
)

// Label marks a position in the block for conditional code.
type Label int

type fixup struct {
	pos   int // offset of the rel32 field
	label Label
}

// cacheEntry binds a guest state slot to a host register.
type cacheEntry struct {
	slot  Slot
	reg   Reg
	dirty bool
	use   int // instruction sequence number of the last use
}

// Assembler emits x86-64 code for one translated block. Temporaries are
// handed out per guest instruction and reclaimed by begin. Guest state
// may stay cached in host registers across instructions until a flush.
type Assembler struct {
	code   []byte
	origin int // arena offset the code will be placed at

	labels []int
	fixups []fixup

	temps  uint16
	cached []cacheEntry
	seq    int

	// staleCIA is set while the core's CIA lags behind the instructions
	// emitted since the last flush.
	staleCIA bool
	prevCIA  uint32

	cia  uint32
	link Linker
}

// Linker resolves a guest address to the arena offset of existing
// translated code.
type Linker func(addr uint32) (offset int, ok bool)

// NewAssembler creates an assembler for code placed at origin. link may
// be nil, in which case every static target exits to the dispatcher.
func NewAssembler(origin int, link Linker) *Assembler {
	if link == nil {
		link = func(uint32) (int, bool) { return 0, false }
	}
	return &Assembler{
		code:   make([]byte, 0, 256),
		origin: origin,
		link:   link,
	}
}

// Len returns the number of bytes emitted so far.
func (a *Assembler) Len() int {
	return len(a.code)
}

// begin starts a new guest instruction at cia and reclaims every
// temporary of the previous one.
func (a *Assembler) begin(cia uint32) {
	if a.seq > 0 {
		a.staleCIA = true
		a.prevCIA = a.cia
	}
	a.cia = cia
	a.temps = 0
	a.seq++
}

// Finish patches every label reference and returns the code.
func (a *Assembler) Finish() []byte {
	for _, f := range a.fixups {
		target := a.labels[f.label]
		if target < 0 {
			panic("jit: reference to unbound label")
		}
		binary.LittleEndian.PutUint32(a.code[f.pos:], uint32(int32(target-(f.pos+4))))
	}
	a.fixups = a.fixups[:0]
	return a.code
}

func (a *Assembler) newLabel() Label {
	a.labels = append(a.labels, -1)
	return Label(len(a.labels) - 1)
}

func (a *Assembler) bind(l Label) {
	a.labels[l] = len(a.code)
}

// Register pool

func (a *Assembler) busy() uint16 {
	mask := a.temps
	for _, e := range a.cached {
		mask |= 1 << e.reg
	}
	return mask
}

// free returns an unused scratch register, evicting the oldest cache
// entry not touched by the current instruction when none is left.
func (a *Assembler) free() Reg {
	busy := a.busy()
	for _, r := range scratch {
		if busy&(1<<r) == 0 {
			return r
		}
	}

	for i, e := range a.cached {
		if e.use != a.seq {
			a.evict(i)
			return e.reg
		}
	}
	panic("jit: out of scratch registers")
}

// tmp allocates a temporary for the current instruction.
func (a *Assembler) tmp() Reg {
	r := a.free()
	a.temps |= 1 << r
	return r
}

// Guest register cache

func (a *Assembler) lookup(s Slot) *cacheEntry {
	for i := range a.cached {
		if a.cached[i].slot == s {
			return &a.cached[i]
		}
	}
	return nil
}

// guest returns a host register holding the value of slot s.
func (a *Assembler) guest(s Slot) Reg {
	if e := a.lookup(s); e != nil {
		e.use = a.seq
		return e.reg
	}

	r := a.free()
	a.movLoad(r, s)
	a.cached = append(a.cached, cacheEntry{slot: s, reg: r, use: a.seq})
	return r
}

// define returns a host register that will become the new value of slot
// s. The old value is not loaded.
func (a *Assembler) define(s Slot) Reg {
	if e := a.lookup(s); e != nil {
		e.use = a.seq
		e.dirty = true
		return e.reg
	}

	r := a.free()
	a.cached = append(a.cached, cacheEntry{slot: s, reg: r, dirty: true, use: a.seq})
	return r
}

func (a *Assembler) evict(i int) {
	if e := a.cached[i]; e.dirty {
		a.movStore(e.slot, e.reg)
	}
	a.cached = append(a.cached[:i], a.cached[i+1:]...)
}

// writeBack stores every dirty cached value. The cache keeps its
// contents, so it is safe on a path that other code falls past.
func (a *Assembler) writeBack() {
	if a.staleCIA {
		a.movStoreImm(slotCIA, a.prevCIA)
	}
	for i := range a.cached {
		if e := &a.cached[i]; e.dirty {
			a.movStore(e.slot, e.reg)
		}
	}
}

// flush writes back and forgets the whole cache. It must precede any
// label that more than one path reaches.
func (a *Assembler) flush() {
	a.writeBack()
	a.cached = a.cached[:0]
	a.staleCIA = false
}

// Encoding

func (a *Assembler) emit(b ...byte) {
	a.code = append(a.code, b...)
}

func (a *Assembler) emit32(v uint32) {
	a.code = binary.LittleEndian.AppendUint32(a.code, v)
}

func (a *Assembler) emit64(v uint64) {
	a.code = binary.LittleEndian.AppendUint64(a.code, v)
}

func rexByte(w, r, x, b bool) byte {
	rex := byte(0x40)
	if w {
		rex |= 0x08
	}
	if r {
		rex |= 0x04
	}
	if x {
		rex |= 0x02
	}
	if b {
		rex |= 0x01
	}
	return rex
}

func modRM(mod, reg, rm byte) byte {
	return mod<<6 | (reg&7)<<3 | rm&7
}

// rex emits a REX prefix when the operands need one.
func (a *Assembler) rex(w bool, reg, rm Reg) {
	if b := rexByte(w, reg >= 8, false, rm >= 8); b != 0x40 {
		a.emit(b)
	}
}

// coreOp emits opcode with a [core+disp32] operand and the given reg
// field.
func (a *Assembler) coreOp(w bool, opcode byte, reg Reg, s Slot) {
	a.rex(w, reg, coreReg)
	a.emit(opcode, modRM(2, byte(reg), byte(coreReg)))
	a.emit32(uint32(s.Offset))
}

// movLoad emits mov r, [core+s].
func (a *Assembler) movLoad(r Reg, s Slot) {
	a.coreOp(s.Wide, 0x8B, r, s)
}

// movStore emits mov [core+s], r.
func (a *Assembler) movStore(s Slot, r Reg) {
	a.coreOp(s.Wide, 0x89, r, s)
}

// movStoreImm emits mov dword [core+s], imm.
func (a *Assembler) movStoreImm(s Slot, imm uint32) {
	a.coreOp(false, 0xC7, 0, s)
	a.emit32(imm)
}

// decMem emits dec dword [core+s].
func (a *Assembler) decMem(s Slot) {
	a.coreOp(false, 0xFF, 1, s)
}

// testMemImm emits test dword [core+s], imm.
func (a *Assembler) testMemImm(s Slot, imm uint32) {
	a.coreOp(false, 0xF7, 0, s)
	a.emit32(imm)
}

// movImm32 emits mov r32, imm, clearing the upper half.
func (a *Assembler) movImm32(r Reg, imm uint32) {
	a.rex(false, 0, r)
	a.emit(0xB8 + byte(r&7))
	a.emit32(imm)
}

// movImm64 emits mov r64, imm.
func (a *Assembler) movImm64(r Reg, imm uint64) {
	a.rex(true, 0, r)
	a.emit(0xB8 + byte(r&7))
	a.emit64(imm)
}

// movReg emits mov dst, src.
func (a *Assembler) movReg(dst, src Reg, wide bool) {
	if dst == src {
		return
	}
	a.rex(wide, src, dst)
	a.emit(0x89, modRM(3, byte(src), byte(dst)))
}

// andImm emits and r32, imm.
func (a *Assembler) andImm(r Reg, imm uint32) {
	a.rex(false, 0, r)
	a.emit(0x81, modRM(3, 4, byte(r)))
	a.emit32(imm)
}

// cmpIndirectZero emits cmp dword [r], 0. r must not need a SIB byte or
// a displacement.
func (a *Assembler) cmpIndirectZero(r Reg) {
	if r&7 == RSP || r&7 == RBP {
		panic("jit: cmpIndirectZero base needs SIB or displacement")
	}
	a.rex(false, 0, r)
	a.emit(0x83, modRM(0, 7, byte(r)), 0)
}

// Bit test-and-modify operations, the /digit of 0F BA.
type bitOp byte

const (
	bitSet        bitOp = 5
	bitReset      bitOp = 6
	bitComplement bitOp = 7
)

// bitImm emits bts/btr/btc r64, bit.
func (a *Assembler) bitImm(op bitOp, r Reg, bit uint8) {
	a.rex(true, 0, r)
	a.emit(0x0F, 0xBA, modRM(3, byte(op), byte(r)), bit)
}

// jcc emits a near conditional jump to l.
func (a *Assembler) jcc(c cond, l Label) {
	a.emit(0x0F, 0x80|byte(c))
	a.fixups = append(a.fixups, fixup{pos: len(a.code), label: l})
	a.emit32(0)
}

// jmpArena emits a near jump to another translation in the same arena.
func (a *Assembler) jmpArena(offset int) {
	a.emit(0xE9)
	rel := offset - (a.origin + len(a.code) + 4)
	a.emit32(uint32(int32(rel)))
}

func (a *Assembler) ret() {
	a.emit(0xC3)
}
