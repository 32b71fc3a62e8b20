package insts

// BO is the branch options field of a conditional branch.
type BO uint32

// BO bits in PowerPC numbering order.
const (
	BOIgnoreCond BO = 1 << 4 // branch regardless of the CR bit
	BOCondTrue   BO = 1 << 3 // branch when the CR bit is set
	BOIgnoreCTR  BO = 1 << 2 // leave CTR alone
	BOCTRZero    BO = 1 << 1 // branch when the decremented CTR is zero
)

// UsesCTR reports whether the branch decrements and tests CTR.
func (b BO) UsesCTR() bool { return b&BOIgnoreCTR == 0 }

// UsesCond reports whether the branch tests a CR bit.
func (b BO) UsesCond() bool { return b&BOIgnoreCond == 0 }

// WantCTRZero reports which CTR outcome takes the branch.
func (b BO) WantCTRZero() bool { return b&BOCTRZero != 0 }

// WantCond reports which CR bit value takes the branch.
func (b BO) WantCond() bool { return b&BOCondTrue != 0 }

// Always reports whether the branch is taken unconditionally.
func (b BO) Always() bool { return !b.UsesCTR() && !b.UsesCond() }

// Taken evaluates the branch condition given the already decremented CTR
// and the tested CR bit.
func (b BO) Taken(ctr uint32, crBit bool) bool {
	ctrOK := !b.UsesCTR() || (ctr == 0) == b.WantCTRZero()
	condOK := !b.UsesCond() || crBit == b.WantCond()
	return ctrOK && condOK
}

// BranchBO returns the instruction's BO field.
func (i Instruction) BranchBO() BO { return BO(i.BO()) }
