package hle

import "github.com/sarchlab/ppcemu/cpu"

// ReturnWord returns a 32-bit integer or pointer in GPR3.
func ReturnWord(core *cpu.Core, v uint32) {
	core.GPR[3] = v
}

// ReturnInt returns a signed 32-bit integer in GPR3.
func ReturnInt(core *cpu.Core, v int32) {
	core.GPR[3] = uint32(v)
}

// ReturnBool returns 1 or 0 in GPR3.
func ReturnBool(core *cpu.Core, v bool) {
	if v {
		core.GPR[3] = 1
	} else {
		core.GPR[3] = 0
	}
}

// ReturnDWord returns a 64-bit integer in GPR3:GPR4, high word first.
func ReturnDWord(core *cpu.Core, v uint64) {
	core.GPR[3] = uint32(v >> 32)
	core.GPR[4] = uint32(v)
}

// ReturnFloat64 returns a double in FPR1.
func ReturnFloat64(core *cpu.Core, v float64) {
	core.FPR[1].SetPaired0(v)
}

// ReturnFloat32 returns a single in FPR1, widened to double.
func ReturnFloat32(core *cpu.Core, v float32) {
	core.FPR[1].SetPaired0(cpu.Extend(v))
}
