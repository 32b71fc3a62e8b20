package interp_test

import (
	"math"
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ppcemu/cpu"
	"github.com/sarchlab/ppcemu/fpenv"
	"github.com/sarchlab/ppcemu/insts"
	"github.com/sarchlab/ppcemu/interp"
)

var (
	sNaN      = math.Float64frombits(0x7FF0000000000001)
	qNaN      = math.Float64frombits(0x7FF8000000000123)
	inf       = math.Inf(1)
	negZero   = math.Copysign(0, -1)
	minNormal = 0x1p-1022
)

// summaryHolds checks VX = OR(VX*) and FEX = OR(sticky & enable).
func summaryHolds(f cpu.FPSCR) bool {
	vx := f.Any(cpu.FPSCRInvalid)
	fex := (vx && f.Has(cpu.FPSCRVE)) ||
		f.Has(cpu.FPSCROX|cpu.FPSCROE) ||
		f.Has(cpu.FPSCRUX|cpu.FPSCRUE) ||
		f.Has(cpu.FPSCRZX|cpu.FPSCRZE) ||
		f.Has(cpu.FPSCRXX|cpu.FPSCRXE)
	return f.Has(cpu.FPSCRVX) == vx && f.Has(cpu.FPSCRFEX) == fex
}

func fpd(xo, frD, frA, frB, frC uint32) uint32 {
	return insts.EncodeA(insts.OpcodeFPD, frD, frA, frB, frC, xo, false)
}

func fps(xo, frD, frA, frB, frC uint32) uint32 {
	return insts.EncodeA(insts.OpcodeFPS, frD, frA, frB, frC, xo, false)
}

func fpx(xo, frD, frA, frB uint32) uint32 {
	return insts.EncodeX(insts.OpcodeFPD, frD, frA, frB, xo, false)
}

var _ = Describe("Floating-point instructions", func() {
	var (
		core *cpu.Core
		in   *interp.Interpreter
	)

	exec := func(word uint32) {
		ExpectWithOffset(1, in.ExecuteWord(word)).To(Succeed())
	}

	BeforeEach(func() {
		core = cpu.NewCore(0)
		core.NIA = codeBase
		in = interp.New(core, nil)
	})

	Describe("Arithmetic", func() {
		It("should match host arithmetic bit for bit in nearest mode", func() {
			values := []float64{1, -1, 3.25, 1e300, -1e-300, 0.1, 7e-310, 2.5e15, -2.5}
			for _, a := range values {
				for _, b := range values {
					core.FPR[1].SetValue(a)
					core.FPR[2].SetValue(b)
					exec(fpd(insts.XOFADD, 3, 1, 2, 0))
					exec(fpd(insts.XOFMUL, 4, 1, 0, 2))
					exec(fpd(insts.XOFDIV, 5, 1, 2, 0))
					exec(fpd(insts.XOFSUB, 6, 1, 2, 0))

					Expect(core.FPR[3].Bits()).To(Equal(math.Float64bits(a+b)), "%v + %v", a, b)
					Expect(core.FPR[4].Bits()).To(Equal(math.Float64bits(a*b)), "%v * %v", a, b)
					Expect(core.FPR[5].Bits()).To(Equal(math.Float64bits(a/b)), "%v / %v", a, b)
					Expect(core.FPR[6].Bits()).To(Equal(math.Float64bits(a-b)), "%v - %v", a, b)
				}
			}
		})

		It("should set FI and XX on an inexact sum", func() {
			core.FPR[1].SetValue(1)
			core.FPR[2].SetValue(0x1p-60)

			exec(fpd(insts.XOFADD, 3, 1, 2, 0))

			Expect(core.FPR[3].Value()).To(Equal(1.0))
			Expect(core.FPSCR.Has(cpu.FPSCRFI | cpu.FPSCRXX | cpu.FPSCRFX)).To(BeTrue())
			Expect(core.FPSCR.Has(cpu.FPSCRFR)).To(BeFalse())
			Expect(core.FPSCR.FPRF()).To(Equal(cpu.FPRFPosNormal))
		})

		It("should set FR when rounding away from zero", func() {
			core.SetFPSCR(cpu.FPSCR(fpenv.Positive))
			core.FPR[1].SetValue(1)
			core.FPR[2].SetValue(0x1p-60)

			exec(fpd(insts.XOFADD, 3, 1, 2, 0))

			Expect(core.FPR[3].Value()).To(Equal(1 + 0x1p-52))
			Expect(core.FPSCR.Has(cpu.FPSCRFR | cpu.FPSCRFI)).To(BeTrue())
		})

		It("should raise VXISI and produce the default NaN for inf - inf", func() {
			core.FPR[1].SetValue(inf)
			core.FPR[2].SetValue(inf)

			exec(fpd(insts.XOFSUB, 3, 1, 2, 0))

			Expect(core.FPR[3].Bits()).To(Equal(uint64(0x7FF8000000000000)))
			Expect(core.FPSCR.Has(cpu.FPSCRVXISI | cpu.FPSCRVX | cpu.FPSCRFX)).To(BeTrue())
			Expect(core.FPSCR.FPRF()).To(Equal(cpu.FPRFQNaN))
		})

		It("should leave frD untouched when an enabled invalid suppresses", func() {
			core.SetFPSCR(cpu.FPSCRVE)
			core.FPR[1].SetValue(inf)
			core.FPR[2].SetValue(0)
			core.FPR[3].SetValue(42)

			exec(fpd(insts.XOFMUL, 3, 1, 0, 2))

			Expect(core.FPR[3].Value()).To(Equal(42.0))
			Expect(core.FPSCR.Has(cpu.FPSCRVXIMZ | cpu.FPSCRVX | cpu.FPSCRFEX | cpu.FPSCRFX)).To(BeTrue())
		})

		It("should raise ZX on a finite divide by zero", func() {
			core.FPR[1].SetValue(-3)
			core.FPR[2].SetValue(0)

			exec(fpd(insts.XOFDIV, 3, 1, 2, 0))

			Expect(core.FPR[3].Value()).To(Equal(math.Inf(-1)))
			Expect(core.FPSCR.Has(cpu.FPSCRZX | cpu.FPSCRFX)).To(BeTrue())
			Expect(core.FPSCR.FPRF()).To(Equal(cpu.FPRFNegInf))
		})

		It("should suppress a divide by zero when ZE is set", func() {
			core.SetFPSCR(cpu.FPSCRZE)
			core.FPR[1].SetValue(1)
			core.FPR[2].SetValue(0)
			core.FPR[3].SetValue(7)

			exec(fpd(insts.XOFDIV, 3, 1, 2, 0))

			Expect(core.FPR[3].Value()).To(Equal(7.0))
			Expect(core.FPSCR.Has(cpu.FPSCRZX | cpu.FPSCRFEX)).To(BeTrue())
		})

		It("should raise VXZDZ for 0 / 0 without ZX", func() {
			core.FPR[1].SetValue(0)
			core.FPR[2].SetValue(0)

			exec(fpd(insts.XOFDIV, 3, 1, 2, 0))

			Expect(math.IsNaN(core.FPR[3].Value())).To(BeTrue())
			Expect(core.FPSCR.Has(cpu.FPSCRVXZDZ)).To(BeTrue())
			Expect(core.FPSCR.Has(cpu.FPSCRZX)).To(BeFalse())
		})

		It("should propagate the first NaN operand quieted", func() {
			core.FPR[1].SetValue(sNaN)
			core.FPR[2].SetValue(qNaN)

			exec(fpd(insts.XOFADD, 3, 1, 2, 0))

			Expect(core.FPR[3].Bits()).To(Equal(uint64(0x7FF8000000000001)))
			Expect(core.FPSCR.Has(cpu.FPSCRVXSNAN)).To(BeTrue())

			exec(fpd(insts.XOFADD, 4, 2, 1, 0))
			Expect(core.FPR[4].Bits()).To(Equal(uint64(0x7FF8000000000123)))
		})

		It("should round single results into both paired slots", func() {
			core.FPR[1].SetValue(1)
			core.FPR[2].SetValue(0x1p-30)

			exec(fps(insts.XOFADD, 3, 1, 2, 0))

			Expect(core.FPR[3].Paired0()).To(Equal(1.0))
			Expect(core.FPR[3].Paired1()).To(Equal(1.0))
			Expect(core.FPSCR.Has(cpu.FPSCRFI)).To(BeTrue())
		})

		It("should classify single results as binary32", func() {
			core.FPR[1].SetValue(0x1p-100)
			core.FPR[2].SetValue(0x1p-40)

			exec(fps(insts.XOFMUL, 3, 1, 0, 2))

			Expect(core.FPR[3].Value()).To(Equal(0x1p-140))
			Expect(core.FPSCR.FPRF()).To(Equal(cpu.FPRFPosDenorm))
		})

		It("should copy the exception summary into CR1 for dot forms", func() {
			core.FPR[1].SetValue(1)
			core.FPR[2].SetValue(0)

			exec(insts.EncodeA(insts.OpcodeFPD, 3, 1, 2, 0, insts.XOFDIV, true))

			Expect(core.CRField(1)).To(Equal(uint32(core.FPSCR) >> 28))
			Expect(core.CRField(1) & 0x8).NotTo(BeZero())
		})
	})

	Describe("roundForMultiply", func() {
		It("should be a no-op when the low 28 bits of c are zero", func() {
			a, c := 3.0, 1.5
			interp.RoundForMultiply(&a, &c)
			Expect(a).To(Equal(3.0))
			Expect(c).To(Equal(1.5))
		})

		It("should round c to 24 mantissa bits", func() {
			a := 2.0
			c := math.Float64frombits(0x3FF0000008000000)
			interp.RoundForMultiply(&a, &c)
			Expect(math.Float64bits(c)).To(Equal(uint64(0x3FF0000010000000)))
			Expect(a).To(Equal(2.0))

			c = math.Float64frombits(0x3FF0000007FFFFFF)
			interp.RoundForMultiply(&a, &c)
			Expect(math.Float64bits(c)).To(Equal(uint64(0x3FF0000000000000)))
		})

		It("should leave a zero first operand alone", func() {
			a := 0.0
			c := math.Float64frombits(0x3FF0000008000000)
			interp.RoundForMultiply(&a, &c)
			Expect(math.Float64bits(c)).To(Equal(uint64(0x3FF0000008000000)))
		})

		It("should move a power of two into a when c rounds to infinity", func() {
			a := 1.0
			c := math.Float64frombits(0x7FEFFFFFFFFFFFFF)
			interp.RoundForMultiply(&a, &c)
			Expect(a).To(Equal(2.0))
			Expect(c).To(Equal(0x1p1023))
		})
	})

	Describe("Fused multiply-add", func() {
		BeforeEach(func() {
			core.FPR[1].SetValue(2)
			core.FPR[2].SetValue(1)
			core.FPR[3].SetValue(3)
		})

		DescribeTable("sign variants",
			func(xo uint32, want float64) {
				exec(fpd(xo, 4, 1, 2, 3))
				Expect(core.FPR[4].Value()).To(Equal(want))
			},
			Entry("fmadd", uint32(insts.XOFMADD), 7.0),
			Entry("fmsub", uint32(insts.XOFMSUB), 5.0),
			Entry("fnmadd", uint32(insts.XOFNMADD), -7.0),
			Entry("fnmsub", uint32(insts.XOFNMSUB), -5.0),
		)

		It("should round once", func() {
			x := 1 + 0x1p-30
			core.FPR[1].SetValue(x)
			core.FPR[3].SetValue(x)
			core.FPR[2].SetValue(-1)

			exec(fpd(insts.XOFMADD, 4, 1, 2, 3))

			Expect(core.FPR[4].Value()).To(Equal(math.FMA(x, x, -1)))
		})

		It("should raise VXISI for inf*c - inf", func() {
			core.FPR[1].SetValue(inf)
			core.FPR[2].SetValue(inf)

			exec(fpd(insts.XOFMSUB, 4, 1, 2, 3))

			Expect(core.FPR[4].Bits()).To(Equal(uint64(0x7FF8000000000000)))
			Expect(core.FPSCR.Has(cpu.FPSCRVXISI)).To(BeTrue())
			Expect(core.FPSCR.Has(cpu.FPSCRVXIMZ)).To(BeFalse())
		})

		It("should report VXIMZ and not VXISI for inf*0 + inf", func() {
			core.FPR[1].SetValue(inf)
			core.FPR[3].SetValue(0)
			core.FPR[2].SetValue(math.Inf(-1))

			exec(fpd(insts.XOFMADD, 4, 1, 2, 3))

			Expect(core.FPSCR.Has(cpu.FPSCRVXIMZ)).To(BeTrue())
			Expect(core.FPSCR.Has(cpu.FPSCRVXISI)).To(BeFalse())
		})

		It("should not flag underflow for a result that rounds up to the smallest normal", func() {
			core.FPR[1].SetValue(minNormal * (1 + 0x1p-27))
			core.FPR[3].SetValue(1 - 0x1p-27)
			core.FPR[2].SetValue(0)

			exec(fpd(insts.XOFMADD, 4, 1, 2, 3))

			Expect(core.FPR[4].Value()).To(Equal(minNormal))
			Expect(core.FPSCR.Has(cpu.FPSCRUX)).To(BeFalse())
			Expect(core.FPSCR.Has(cpu.FPSCRXX | cpu.FPSCRFI)).To(BeTrue())
		})

		It("should store single results in both slots classified as double", func() {
			exec(fps(insts.XOFMADD, 4, 1, 2, 3))

			Expect(core.FPR[4].Paired0()).To(Equal(7.0))
			Expect(core.FPR[4].Paired1()).To(Equal(7.0))
			Expect(core.FPSCR.FPRF()).To(Equal(cpu.FPRFPosNormal))
		})
	})

	Describe("Reciprocal estimates", func() {
		It("should return signed infinity for a zero operand", func() {
			core.FPR[1].SetValue(0)
			exec(fps(insts.XOFRES, 2, 0, 1, 0))
			Expect(core.FPR[2].Value()).To(Equal(inf))
			Expect(core.FPSCR.Has(cpu.FPSCRZX)).To(BeTrue())

			core.FPR[1].SetValue(negZero)
			exec(fps(insts.XOFRES, 2, 0, 1, 0))
			Expect(core.FPR[2].Value()).To(Equal(math.Inf(-1)))
		})

		It("should return signed zero for an infinite operand", func() {
			core.FPR[1].SetValue(math.Inf(-1))
			exec(fps(insts.XOFRES, 2, 0, 1, 0))
			Expect(cpu.IsNegativeZero(core.FPR[2].Value())).To(BeTrue())
		})

		It("should default the NaN for a signalling operand", func() {
			core.FPR[1].SetValue(sNaN)
			exec(fps(insts.XOFRES, 2, 0, 1, 0))

			Expect(core.FPSCR.Has(cpu.FPSCRVXSNAN | cpu.FPSCRVX)).To(BeTrue())
			Expect(core.FPR[2].PS0).To(Equal(uint64(0x7FF8000000000000)))
			Expect(core.FPR[2].PS1).To(Equal(uint64(0x7FF8000000000000)))
		})

		It("should approximate the reciprocal", func() {
			for _, v := range []float64{2, 3, -5, 1.75, 1e10} {
				core.FPR[1].SetValue(v)
				exec(fps(insts.XOFRES, 2, 0, 1, 0))
				Expect(core.FPR[2].Value()).To(BeNumerically("~", 1/v, math.Abs(1/v)/256))
			}
		})

		It("should saturate reciprocals out of single range", func() {
			core.FPR[1].SetValue(1e-300)
			exec(fps(insts.XOFRES, 2, 0, 1, 0))

			Expect(core.FPR[2].Value()).To(Equal(float64(math.MaxFloat32)))
			Expect(core.FPSCR.Has(cpu.FPSCROX)).To(BeTrue())
			Expect(core.FPSCR.Has(cpu.FPSCRXX)).To(BeFalse())
			Expect(core.FPSCR.Has(cpu.FPSCRFI)).To(BeTrue())
		})

		It("should reject negative operands to frsqrte", func() {
			core.FPR[1].SetValue(-4)
			exec(fpd(insts.XOFRSQRTE, 2, 0, 1, 0))

			Expect(math.IsNaN(core.FPR[2].Value())).To(BeTrue())
			Expect(core.FPSCR.Has(cpu.FPSCRVXSQRT | cpu.FPSCRVX)).To(BeTrue())
		})

		It("should compute frsqrte of ordinary and zero operands", func() {
			core.FPR[1].SetValue(4)
			exec(fpd(insts.XOFRSQRTE, 2, 0, 1, 0))
			Expect(core.FPR[2].Value()).To(Equal(0.5))

			core.FPR[1].SetValue(0)
			exec(fpd(insts.XOFRSQRTE, 2, 0, 1, 0))
			Expect(core.FPR[2].Value()).To(Equal(inf))
			Expect(core.FPSCR.Has(cpu.FPSCRZX)).To(BeTrue())
		})
	})

	Describe("Conversion", func() {
		It("should truncate on fctiwz and flag the inexact result", func() {
			core.FPR[1].SetValue(4.5)
			exec(fpx(insts.XOFCTIWZ, 2, 0, 1))

			Expect(core.FPR[2].Word1()).To(Equal(uint32(4)))
			Expect(core.FPR[2].Word0()).To(Equal(uint32(0xFFF80000)))
			Expect(core.FPSCR.Has(cpu.FPSCRFI | cpu.FPSCRXX)).To(BeTrue())
		})

		DescribeTable("fctiw under FPSCR[RN]",
			func(mode fpenv.RoundingMode, v float64, want int32) {
				core.SetFPSCR(cpu.FPSCR(mode))
				core.FPR[1].SetValue(v)
				exec(fpx(insts.XOFCTIW, 2, 0, 1))
				Expect(int32(core.FPR[2].Word1())).To(Equal(want))
			},
			Entry("nearest ties to even down", fpenv.Nearest, 2.5, int32(2)),
			Entry("nearest ties to even up", fpenv.Nearest, 3.5, int32(4)),
			Entry("toward zero", fpenv.Zero, -2.7, int32(-2)),
			Entry("toward +inf", fpenv.Positive, 2.1, int32(3)),
			Entry("toward -inf", fpenv.Negative, -2.1, int32(-3)),
		)

		It("should mark a negative zero source in the high word", func() {
			core.FPR[1].SetValue(negZero)
			exec(fpx(insts.XOFCTIW, 2, 0, 1))
			Expect(core.FPR[2].Word0()).To(Equal(uint32(0xFFF80001)))
			Expect(core.FPR[2].Word1()).To(BeZero())
		})

		DescribeTable("saturation",
			func(v float64, want uint32, snan bool) {
				core.FPR[1].SetValue(v)
				exec(fpx(insts.XOFCTIW, 2, 0, 1))
				Expect(core.FPR[2].Word1()).To(Equal(want))
				Expect(core.FPSCR.Has(cpu.FPSCRVXCVI)).To(BeTrue())
				Expect(core.FPSCR.Has(cpu.FPSCRVXSNAN)).To(Equal(snan))
			},
			Entry("large positive", 3e9, uint32(0x7FFFFFFF), false),
			Entry("large negative", -3e9, uint32(0x80000000), false),
			Entry("quiet NaN", qNaN, uint32(0x80000000), false),
			Entry("signalling NaN", sNaN, uint32(0x80000000), true),
		)

		It("should not update FPRF", func() {
			core.FPSCR = core.FPSCR.WithFPRF(cpu.FPRFNegNormal)
			core.FPR[1].SetValue(2)
			exec(fpx(insts.XOFCTIW, 2, 0, 1))
			Expect(core.FPSCR.FPRF()).To(Equal(cpu.FPRFNegNormal))
		})

		It("should round to single on frsp", func() {
			core.FPR[1].SetValue(1 + 0x1p-30)
			exec(fpx(insts.XOFRSP, 2, 0, 1))

			Expect(core.FPR[2].Paired0()).To(Equal(1.0))
			Expect(core.FPR[2].Paired1()).To(Equal(1.0))
			Expect(core.FPSCR.Has(cpu.FPSCRFI)).To(BeTrue())
		})

		It("should quiet a signalling NaN on frsp", func() {
			core.FPR[1].SetValue(sNaN)
			exec(fpx(insts.XOFRSP, 2, 0, 1))

			Expect(core.FPSCR.Has(cpu.FPSCRVXSNAN)).To(BeTrue())
			Expect(cpu.IsSignallingNaN(core.FPR[2].Value())).To(BeFalse())
			Expect(math.IsNaN(core.FPR[2].Value())).To(BeTrue())
		})
	})

	Describe("Selection and sign operations", func() {
		DescribeTable("fsel",
			func(a float64, want float64) {
				core.FPR[1].SetValue(a)
				core.FPR[2].SetValue(10)
				core.FPR[3].SetValue(20)
				exec(fpd(insts.XOFSEL, 4, 1, 2, 3))
				Expect(core.FPR[4].Value()).To(Equal(want))
				Expect(core.FPSCR).To(BeZero())
			},
			Entry("positive selects frC", 1.0, 20.0),
			Entry("negative zero selects frC", negZero, 20.0),
			Entry("negative selects frB", -1.0, 10.0),
			Entry("NaN selects frB", qNaN, 10.0),
		)

		It("should operate on raw bits", func() {
			core.FPR[1].SetBits(0x7FF0000000000001)

			exec(fpx(insts.XOFNEG, 2, 0, 1))
			exec(fpx(insts.XOFABS, 3, 0, 2))
			exec(fpx(insts.XOFNABS, 4, 0, 1))
			exec(fpx(insts.XOFMR, 5, 0, 1))

			Expect(core.FPR[2].Bits()).To(Equal(uint64(0xFFF0000000000001)))
			Expect(core.FPR[3].Bits()).To(Equal(uint64(0x7FF0000000000001)))
			Expect(core.FPR[4].Bits()).To(Equal(uint64(0xFFF0000000000001)))
			Expect(core.FPR[5].Bits()).To(Equal(uint64(0x7FF0000000000001)))
			Expect(core.FPSCR).To(BeZero())
		})
	})

	Describe("Summary invariants", func() {
		It("should keep VX and FEX consistent across random sequences", func() {
			r := rand.New(rand.NewSource(1))
			operands := []float64{0, negZero, 1, -1, 3, inf, -inf, qNaN, sNaN, minNormal, 1e308, 1e-320, 0.1}
			words := []uint32{
				fpd(insts.XOFADD, 1, 2, 3, 0),
				fpd(insts.XOFSUB, 1, 2, 3, 0),
				fpd(insts.XOFMUL, 1, 2, 0, 3),
				fpd(insts.XOFDIV, 1, 2, 3, 0),
				fps(insts.XOFDIV, 1, 2, 3, 0),
				fps(insts.XOFMUL, 1, 2, 0, 3),
				fpd(insts.XOFMADD, 1, 2, 3, 4),
				fps(insts.XOFNMSUB, 1, 2, 3, 4),
				fps(insts.XOFRES, 1, 0, 3, 0),
				fpd(insts.XOFRSQRTE, 1, 0, 3, 0),
				fpx(insts.XOFCTIW, 1, 0, 3),
				fpx(insts.XOFRSP, 1, 0, 3),
				insts.EncodeFCMP(insts.XOFCMPO, 2, 2, 3),
				insts.EncodeMTFSFI(1, 0xF, false),
				insts.EncodeMTFSFI(0, 0x0, false),
				insts.EncodeMCRFS(3, 1),
				insts.EncodeX(insts.OpcodeFPD, 25, 0, 0, insts.XOMTFSB1, false),
				insts.EncodeX(insts.OpcodeFPD, 24, 0, 0, insts.XOMTFSB1, false),
				insts.EncodeX(insts.OpcodeFPD, 24, 0, 0, insts.XOMTFSB0, false),
			}

			for i := 0; i < 2000; i++ {
				for reg := 2; reg <= 4; reg++ {
					core.FPR[reg].SetValue(operands[r.Intn(len(operands))])
				}
				if r.Intn(8) == 0 {
					core.SetFPSCR(cpu.FPSCR(r.Uint32()) &^ (cpu.FPSCRVX | cpu.FPSCRFEX))
				}

				exec(words[r.Intn(len(words))])
				Expect(summaryHolds(core.FPSCR)).To(BeTrue(), "fpscr=%08x", uint32(core.FPSCR))
				Expect(core.Env.Rounding()).To(Equal(core.FPSCR.RN()))
			}
		})
	})
})
