package jit

import (
	"fmt"
	"strings"

	"golang.org/x/arch/x86/x86asm"
)

// Disassemble renders x86-64 code in Intel syntax, one instruction per
// line. base is the address of code[0] used for branch targets.
func Disassemble(code []byte, base uint64) string {
	var sb strings.Builder

	for offset := 0; offset < len(code); {
		pc := base + uint64(offset)

		inst, err := x86asm.Decode(code[offset:], 64)
		if err != nil {
			fmt.Fprintf(&sb, "0x%04x: db 0x%02x\n", pc, code[offset])
			offset++
			continue
		}

		hexBytes := make([]string, inst.Len)
		for i := range hexBytes {
			hexBytes[i] = fmt.Sprintf("%02x", code[offset+i])
		}
		fmt.Fprintf(&sb, "0x%04x: %-24s %s\n",
			pc, strings.Join(hexBytes, " "), x86asm.IntelSyntax(inst, pc, nil))

		offset += inst.Len
	}

	return sb.String()
}

// Disassemble renders the code of block b.
func (r *Runtime) Disassemble(b *Block) string {
	if b.Size == 0 {
		return ""
	}
	return Disassemble(r.arena.Code(b.Offset, b.Size), uint64(b.Offset))
}
