// Package insts provides PowerPC instruction definitions and decoding.
//
// This package decodes 32-bit big-endian PowerPC machine words into an
// opcode identifier plus an Instruction value whose bit fields are read
// through named accessors. It supports:
//   - Branches: b, bc, bclr, bcctr (with AA/LK variants)
//   - System call: sc
//   - Floating-point arithmetic, multiply-add, convert, move and compare
//   - FPSCR moves: mffs, mtfsb0, mtfsb1, mtfsf, mtfsfi, mcrfs
//   - Floating-point loads and stores: lfs, lfd, stfs, stfd
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst := insts.Instruction(0xFC22182A) // fadd f1, f2, f3
//	op := decoder.Decode(uint32(inst))
//	fmt.Printf("Op: %v, frD: %d, frA: %d, frB: %d\n", op, inst.FRD(), inst.FRA(), inst.FRB())
package insts
