// Package insts provides PowerPC instruction definitions and decoding.
package insts

// Op identifies a decoded PowerPC instruction.
type Op uint16

// PowerPC opcodes handled by the emulator.
const (
	OpUnknown Op = iota

	// Branch
	OpB
	OpBC
	OpBCLR
	OpBCCTR

	// System call
	OpSC

	// Floating-point arithmetic, double precision
	OpFADD
	OpFSUB
	OpFMUL
	OpFDIV
	OpFSEL
	OpFRSQRTE
	OpFMADD
	OpFMSUB
	OpFNMADD
	OpFNMSUB

	// Floating-point arithmetic, single precision
	OpFADDS
	OpFSUBS
	OpFMULS
	OpFDIVS
	OpFRES
	OpFMADDS
	OpFMSUBS
	OpFNMADDS
	OpFNMSUBS

	// Floating-point convert, move, compare
	OpFCMPU
	OpFCMPO
	OpFRSP
	OpFCTIW
	OpFCTIWZ
	OpFNEG
	OpFMR
	OpFNABS
	OpFABS

	// FPSCR
	OpMFFS
	OpMTFSB0
	OpMTFSB1
	OpMTFSF
	OpMTFSFI
	OpMCRFS

	// Floating-point load/store
	OpLFS
	OpLFD
	OpSTFS
	OpSTFD

	NumOps
)

var opNames = [NumOps]string{
	OpUnknown: "unknown",
	OpB:       "b", OpBC: "bc", OpBCLR: "bclr", OpBCCTR: "bcctr", OpSC: "sc",
	OpFADD: "fadd", OpFSUB: "fsub", OpFMUL: "fmul", OpFDIV: "fdiv",
	OpFSEL: "fsel", OpFRSQRTE: "frsqrte",
	OpFMADD: "fmadd", OpFMSUB: "fmsub", OpFNMADD: "fnmadd", OpFNMSUB: "fnmsub",
	OpFADDS: "fadds", OpFSUBS: "fsubs", OpFMULS: "fmuls", OpFDIVS: "fdivs",
	OpFRES:   "fres",
	OpFMADDS: "fmadds", OpFMSUBS: "fmsubs", OpFNMADDS: "fnmadds", OpFNMSUBS: "fnmsubs",
	OpFCMPU: "fcmpu", OpFCMPO: "fcmpo", OpFRSP: "frsp",
	OpFCTIW: "fctiw", OpFCTIWZ: "fctiwz",
	OpFNEG: "fneg", OpFMR: "fmr", OpFNABS: "fnabs", OpFABS: "fabs",
	OpMFFS: "mffs", OpMTFSB0: "mtfsb0", OpMTFSB1: "mtfsb1",
	OpMTFSF: "mtfsf", OpMTFSFI: "mtfsfi", OpMCRFS: "mcrfs",
	OpLFS: "lfs", OpLFD: "lfd", OpSTFS: "stfs", OpSTFD: "stfd",
}

// String returns the instruction mnemonic.
func (op Op) String() string {
	if op >= NumOps {
		return "invalid"
	}
	return opNames[op]
}

// IsBranch reports whether op belongs to the branch family.
func (op Op) IsBranch() bool {
	return op >= OpB && op <= OpBCCTR
}

// Primary opcodes.
const (
	primaryBC  = 16
	primarySC  = 17
	primaryB   = 18
	primaryXL  = 19
	primaryLFS = 48
	primaryLFD = 50
	primarySTF = 52
	primarySTD = 54
	primaryFPS = 59
	primaryFPD = 63
)

// decodeTables holds the fixed opcode lookup tables. Each table is indexed
// directly by the relevant opcode field.
type decodeTables struct {
	primary [64]Op
	xl      [1024]Op // primary 19, XO10
	fps     [32]Op   // primary 59, XO5
	fpdA    [32]Op   // primary 63, A-form XO5
	fpdX    [1024]Op // primary 63, X-form XO10
}

var tables = buildTables()

func buildTables() *decodeTables {
	t := &decodeTables{}

	t.primary[primaryB] = OpB
	t.primary[primaryBC] = OpBC
	t.primary[primarySC] = OpSC
	t.primary[primaryLFS] = OpLFS
	t.primary[primaryLFD] = OpLFD
	t.primary[primarySTF] = OpSTFS
	t.primary[primarySTD] = OpSTFD

	t.xl[16] = OpBCLR
	t.xl[528] = OpBCCTR

	t.fps[18] = OpFDIVS
	t.fps[20] = OpFSUBS
	t.fps[21] = OpFADDS
	t.fps[24] = OpFRES
	t.fps[25] = OpFMULS
	t.fps[28] = OpFMSUBS
	t.fps[29] = OpFMADDS
	t.fps[30] = OpFNMSUBS
	t.fps[31] = OpFNMADDS

	t.fpdA[18] = OpFDIV
	t.fpdA[20] = OpFSUB
	t.fpdA[21] = OpFADD
	t.fpdA[23] = OpFSEL
	t.fpdA[25] = OpFMUL
	t.fpdA[26] = OpFRSQRTE
	t.fpdA[28] = OpFMSUB
	t.fpdA[29] = OpFMADD
	t.fpdA[30] = OpFNMSUB
	t.fpdA[31] = OpFNMADD

	t.fpdX[0] = OpFCMPU
	t.fpdX[12] = OpFRSP
	t.fpdX[14] = OpFCTIW
	t.fpdX[15] = OpFCTIWZ
	t.fpdX[32] = OpFCMPO
	t.fpdX[38] = OpMTFSB1
	t.fpdX[40] = OpFNEG
	t.fpdX[64] = OpMCRFS
	t.fpdX[70] = OpMTFSB0
	t.fpdX[72] = OpFMR
	t.fpdX[134] = OpMTFSFI
	t.fpdX[136] = OpFNABS
	t.fpdX[264] = OpFABS
	t.fpdX[583] = OpMFFS
	t.fpdX[711] = OpMTFSF

	return t
}

// Decoder decodes PowerPC machine words into opcodes.
type Decoder struct {
	t *decodeTables
}

// NewDecoder creates a new PowerPC instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{t: tables}
}

// Decode returns the opcode of a 32-bit PowerPC instruction word, or
// OpUnknown when the word is not handled.
func (d *Decoder) Decode(word uint32) Op {
	inst := Instruction(word)

	switch inst.OPCD() {
	case primaryXL:
		return d.t.xl[inst.XO10()]
	case primaryFPS:
		return d.t.fps[inst.XO5()]
	case primaryFPD:
		// A-form opcodes take precedence; their XO5 values never collide
		// with the low bits of an X-form XO10 used here.
		if op := d.t.fpdA[inst.XO5()]; op != OpUnknown {
			return op
		}
		return d.t.fpdX[inst.XO10()]
	default:
		return d.t.primary[inst.OPCD()]
	}
}

// Decode decodes a word with the shared tables.
func Decode(word uint32) Op {
	return decoder.Decode(word)
}

var decoder = NewDecoder()
