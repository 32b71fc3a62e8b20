package insts

// Encoders assemble instruction words from their fields. The emulator itself
// only decodes; these exist for loaders, tests and debugging tools that need
// to produce guest code.

// EncodeA builds an A-form word: opcd frD,frA,frB,frC with extended opcode xo.
func EncodeA(opcd, frD, frA, frB, frC, xo uint32, rc bool) uint32 {
	i := Instruction(0).
		With(FieldOPCD, opcd).
		With(FieldRD, frD).
		With(FieldRA, frA).
		With(FieldRB, frB).
		With(FieldRC, frC).
		With(FieldXO5, xo)
	if rc {
		i = i.With(FieldRc, 1)
	}
	return uint32(i)
}

// EncodeX builds an X-form word with a 10-bit extended opcode.
func EncodeX(opcd, d, a, b, xo uint32, rc bool) uint32 {
	i := Instruction(0).
		With(FieldOPCD, opcd).
		With(FieldRD, d).
		With(FieldRA, a).
		With(FieldRB, b).
		With(FieldXO10, xo)
	if rc {
		i = i.With(FieldRc, 1)
	}
	return uint32(i)
}

// EncodeXL builds an XL-form branch-to-register word.
func EncodeXL(bo, bi, xo uint32, lk bool) uint32 {
	i := Instruction(0).
		With(FieldOPCD, primaryXL).
		With(FieldRD, bo).
		With(FieldRA, bi).
		With(FieldXO10, xo)
	if lk {
		i = i.With(FieldLK, 1)
	}
	return uint32(i)
}

// EncodeB builds a B-form conditional branch. offset is in bytes.
func EncodeB(bo, bi uint32, offset int32, aa, lk bool) uint32 {
	i := Instruction(0).
		With(FieldOPCD, primaryBC).
		With(FieldRD, bo).
		With(FieldRA, bi).
		With(FieldBD, uint32(offset)>>2)
	if aa {
		i = i.With(FieldAA, 1)
	}
	if lk {
		i = i.With(FieldLK, 1)
	}
	return uint32(i)
}

// EncodeI builds an I-form unconditional branch. offset is in bytes.
func EncodeI(offset int32, aa, lk bool) uint32 {
	i := Instruction(0).
		With(FieldOPCD, primaryB).
		With(FieldLI, uint32(offset)>>2)
	if aa {
		i = i.With(FieldAA, 1)
	}
	if lk {
		i = i.With(FieldLK, 1)
	}
	return uint32(i)
}

// EncodeD builds a D-form word such as lfs frD, d(rA).
func EncodeD(opcd, d, a uint32, disp int16) uint32 {
	return uint32(Instruction(0).
		With(FieldOPCD, opcd).
		With(FieldRD, d).
		With(FieldRA, a).
		With(FieldD, uint32(uint16(disp))))
}

// EncodeSC builds sc.
func EncodeSC() uint32 {
	return uint32(Instruction(0).With(FieldOPCD, primarySC)) | 2
}

// Opcode numbers for callers of the encoders.
const (
	OpcodeBC   = primaryBC
	OpcodeSC   = primarySC
	OpcodeB    = primaryB
	OpcodeXL   = primaryXL
	OpcodeLFS  = primaryLFS
	OpcodeLFD  = primaryLFD
	OpcodeSTFS = primarySTF
	OpcodeSTFD = primarySTD
	OpcodeFPS  = primaryFPS
	OpcodeFPD  = primaryFPD
)

// Extended opcodes used by the encoders.
const (
	XOBCLR  = 16
	XOBCCTR = 528

	XOFDIV    = 18
	XOFSUB    = 20
	XOFADD    = 21
	XOFSEL    = 23
	XOFRES    = 24
	XOFMUL    = 25
	XOFRSQRTE = 26
	XOFMSUB   = 28
	XOFMADD   = 29
	XOFNMSUB  = 30
	XOFNMADD  = 31

	XOFCMPU  = 0
	XOFRSP   = 12
	XOFCTIW  = 14
	XOFCTIWZ = 15
	XOFCMPO  = 32
	XOMTFSB1 = 38
	XOFNEG   = 40
	XOMCRFS  = 64
	XOMTFSB0 = 70
	XOFMR    = 72
	XOMTFSFI = 134
	XOFNABS  = 136
	XOFABS   = 264
	XOMFFS   = 583
	XOMTFSF  = 711
)

// EncodeMTFSF builds mtfsf FM,frB.
func EncodeMTFSF(fm, frB uint32, rc bool) uint32 {
	i := Instruction(EncodeX(primaryFPD, 0, 0, frB, XOMTFSF, rc)).With(FieldFM, fm)
	return uint32(i)
}

// EncodeMTFSFI builds mtfsfi crfD,IMM.
func EncodeMTFSFI(crfD, imm uint32, rc bool) uint32 {
	i := Instruction(EncodeX(primaryFPD, 0, 0, 0, XOMTFSFI, rc)).
		With(FieldCRFD, crfD).
		With(FieldIMM, imm)
	return uint32(i)
}

// EncodeMCRFS builds mcrfs crfD,crfS.
func EncodeMCRFS(crfD, crfS uint32) uint32 {
	i := Instruction(EncodeX(primaryFPD, 0, 0, 0, XOMCRFS, false)).
		With(FieldCRFD, crfD).
		With(FieldCRFS, crfS)
	return uint32(i)
}

// EncodeFCMP builds fcmpu/fcmpo crfD,frA,frB.
func EncodeFCMP(xo, crfD, frA, frB uint32) uint32 {
	i := Instruction(EncodeX(primaryFPD, 0, frA, frB, xo, false)).
		With(FieldCRFD, crfD)
	return uint32(i)
}
