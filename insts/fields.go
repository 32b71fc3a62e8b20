package insts

// Field names one bit field of a PowerPC instruction word.
type Field uint8

// Instruction fields. Several architectural names share the same bits; the
// accessors below give each one its own name.
const (
	FieldOPCD Field = iota // primary opcode
	FieldRD                // rD / rS / frD / frS / BO / crbD
	FieldRA                // rA / frA / BI / crbA
	FieldRB                // rB / frB / crbB
	FieldRC                // frC
	FieldXO5               // A-form extended opcode
	FieldXO10              // X/XL/XFL-form extended opcode
	FieldRc                // record bit
	FieldLI                // I-form branch target
	FieldAA                // absolute address bit
	FieldLK                // link bit
	FieldBD                // B-form branch displacement
	FieldD                 // D-form displacement
	FieldCRFD              // destination CR field
	FieldCRFS              // source CR / FPSCR field
	FieldFM                // mtfsf field mask
	FieldIMM               // mtfsfi immediate
	numFields
)

type fieldSpec struct {
	name       string
	start, end uint8 // PowerPC bit numbering, bit 0 is the MSB
}

var fieldTable = [numFields]fieldSpec{
	FieldOPCD: {"opcd", 0, 5},
	FieldRD:   {"rd", 6, 10},
	FieldRA:   {"ra", 11, 15},
	FieldRB:   {"rb", 16, 20},
	FieldRC:   {"rc", 21, 25},
	FieldXO5:  {"xo5", 26, 30},
	FieldXO10: {"xo10", 21, 30},
	FieldRc:   {"Rc", 31, 31},
	FieldLI:   {"li", 6, 29},
	FieldAA:   {"aa", 30, 30},
	FieldLK:   {"lk", 31, 31},
	FieldBD:   {"bd", 16, 29},
	FieldD:    {"d", 16, 31},
	FieldCRFD: {"crfd", 6, 8},
	FieldCRFS: {"crfs", 11, 13},
	FieldFM:   {"fm", 7, 14},
	FieldIMM:  {"imm", 16, 19},
}

var (
	fieldShift [numFields]uint8
	fieldMask  [numFields]uint32
)

func init() {
	for f, spec := range fieldTable {
		width := spec.end - spec.start + 1
		fieldShift[f] = 31 - spec.end
		fieldMask[f] = uint32(1)<<width - 1
	}
}

// String returns the field's short name.
func (f Field) String() string {
	if f >= numFields {
		return "invalid"
	}
	return fieldTable[f].name
}

// Width returns the number of bits in the field.
func (f Field) Width() int {
	spec := fieldTable[f]
	return int(spec.end-spec.start) + 1
}

// Instruction is one undecoded 32-bit PowerPC instruction word. It is a
// value type; every accessor is a pure bit extraction.
type Instruction uint32

// Field extracts a named bit field.
func (i Instruction) Field(f Field) uint32 {
	return (uint32(i) >> fieldShift[f]) & fieldMask[f]
}

// With returns a copy of the instruction with field f replaced by v.
func (i Instruction) With(f Field, v uint32) Instruction {
	mask := fieldMask[f] << fieldShift[f]
	return Instruction((uint32(i) &^ mask) | ((v << fieldShift[f]) & mask))
}

func (i Instruction) OPCD() uint32 { return i.Field(FieldOPCD) }
func (i Instruction) RD() uint32   { return i.Field(FieldRD) }
func (i Instruction) RS() uint32   { return i.Field(FieldRD) }
func (i Instruction) RA() uint32   { return i.Field(FieldRA) }
func (i Instruction) RB() uint32   { return i.Field(FieldRB) }
func (i Instruction) FRD() uint32  { return i.Field(FieldRD) }
func (i Instruction) FRS() uint32  { return i.Field(FieldRD) }
func (i Instruction) FRA() uint32  { return i.Field(FieldRA) }
func (i Instruction) FRB() uint32  { return i.Field(FieldRB) }
func (i Instruction) FRC() uint32  { return i.Field(FieldRC) }
func (i Instruction) BO() uint32   { return i.Field(FieldRD) }
func (i Instruction) BI() uint32   { return i.Field(FieldRA) }
func (i Instruction) CRBD() uint32 { return i.Field(FieldRD) }
func (i Instruction) CRFD() uint32 { return i.Field(FieldCRFD) }
func (i Instruction) CRFS() uint32 { return i.Field(FieldCRFS) }
func (i Instruction) FM() uint32   { return i.Field(FieldFM) }
func (i Instruction) IMM() uint32  { return i.Field(FieldIMM) }
func (i Instruction) XO5() uint32  { return i.Field(FieldXO5) }
func (i Instruction) XO10() uint32 { return i.Field(FieldXO10) }
func (i Instruction) LI() uint32   { return i.Field(FieldLI) }
func (i Instruction) BD() uint32   { return i.Field(FieldBD) }

// Rc reports whether the record bit is set.
func (i Instruction) Rc() bool { return i.Field(FieldRc) != 0 }

// AA reports whether the branch target is absolute.
func (i Instruction) AA() bool { return i.Field(FieldAA) != 0 }

// LK reports whether the branch updates the link register.
func (i Instruction) LK() bool { return i.Field(FieldLK) != 0 }

// D returns the sign-extended D-form displacement.
func (i Instruction) D() int32 { return int32(int16(i.Field(FieldD))) }

// BranchOffset returns the sign-extended I-form displacement in bytes.
func (i Instruction) BranchOffset() int32 {
	return SignExtend(i.LI()<<2, 26)
}

// CondOffset returns the sign-extended B-form displacement in bytes.
func (i Instruction) CondOffset() int32 {
	return SignExtend(i.BD()<<2, 16)
}

// SignExtend sign-extends the low bits of v.
func SignExtend(v uint32, bits uint) int32 {
	shift := 32 - bits
	return int32(v<<shift) >> shift
}
