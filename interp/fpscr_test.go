package interp_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ppcemu/cpu"
	"github.com/sarchlab/ppcemu/fpenv"
	"github.com/sarchlab/ppcemu/insts"
	"github.com/sarchlab/ppcemu/interp"
)

var _ = Describe("FPSCR instructions", func() {
	var (
		core *cpu.Core
		in   *interp.Interpreter
	)

	exec := func(word uint32) {
		ExpectWithOffset(1, in.ExecuteWord(word)).To(Succeed())
	}

	mtfsb := func(xo, bit uint32) uint32 {
		return insts.EncodeX(insts.OpcodeFPD, bit, 0, 0, xo, false)
	}

	BeforeEach(func() {
		core = cpu.NewCore(0)
		in = interp.New(core, nil)
	})

	It("should copy the FPSCR into the low word on mffs", func() {
		core.FPR[1].SetBits(0x1234567800000000)
		core.FPSCR = cpu.FPSCRZX | cpu.FPSCRFX | 2

		exec(insts.EncodeX(insts.OpcodeFPD, 1, 0, 0, insts.XOMFFS, false))

		Expect(core.FPR[1].Word0()).To(Equal(uint32(0x12345678)))
		Expect(core.FPR[1].Word1()).To(Equal(uint32(core.FPSCR)))
	})

	It("should set an exception bit and FX on mtfsb1", func() {
		exec(mtfsb(insts.XOMTFSB1, 5)) // ZX

		Expect(core.FPSCR.Has(cpu.FPSCRZX | cpu.FPSCRFX)).To(BeTrue())
	})

	It("should not set FX when mtfsb1 sets a bit that was already set", func() {
		core.FPSCR = cpu.FPSCRZX
		exec(mtfsb(insts.XOMTFSB1, 5))

		Expect(core.FPSCR.Has(cpu.FPSCRFX)).To(BeFalse())
	})

	It("should follow RN changes made bit by bit", func() {
		exec(mtfsb(insts.XOMTFSB1, 31))
		Expect(core.Env.Rounding()).To(Equal(fpenv.Zero))

		exec(mtfsb(insts.XOMTFSB1, 30))
		Expect(core.Env.Rounding()).To(Equal(fpenv.Negative))

		exec(mtfsb(insts.XOMTFSB0, 31))
		Expect(core.Env.Rounding()).To(Equal(fpenv.Positive))
	})

	It("should recompute VX after mtfsb0 clears the last invalid cause", func() {
		core.SetFPSCR(cpu.FPSCRVXSNAN | cpu.FPSCRVE)
		Expect(core.FPSCR.Has(cpu.FPSCRVX | cpu.FPSCRFEX)).To(BeTrue())

		exec(mtfsb(insts.XOMTFSB0, 7)) // VXSNAN

		Expect(core.FPSCR.Has(cpu.FPSCRVX)).To(BeFalse())
		Expect(core.FPSCR.Has(cpu.FPSCRFEX)).To(BeFalse())
	})

	It("should copy the fields selected by mtfsf and fix the summaries", func() {
		core.FPR[2].SetWord1(uint32(cpu.FPSCRVX | cpu.FPSCROX | cpu.FPSCROE | 3))

		exec(insts.EncodeMTFSF(0xFF, 2, false))

		Expect(core.FPSCR.Has(cpu.FPSCROX | cpu.FPSCROE | cpu.FPSCRFEX)).To(BeTrue())
		Expect(core.FPSCR.Has(cpu.FPSCRVX)).To(BeFalse())
		Expect(core.FPSCR.RN()).To(Equal(fpenv.Negative))
		Expect(core.Env.Rounding()).To(Equal(fpenv.Negative))
	})

	It("should leave unselected fields alone on mtfsf", func() {
		core.FPSCR = cpu.FPSCRZX | cpu.FPSCRXE
		core.FPR[2].SetWord1(0xFFFFFFFF)

		exec(insts.EncodeMTFSF(0x01, 2, false))

		Expect(core.FPSCR.Has(cpu.FPSCRZX)).To(BeTrue())
		Expect(core.FPSCR.Field(7)).To(Equal(uint32(0xF)))
		Expect(core.FPSCR.Field(6)).To(Equal(uint32(0x0)))
	})

	It("should set a field from an immediate on mtfsfi", func() {
		exec(insts.EncodeMTFSFI(7, 2, false))

		Expect(core.FPSCR.RN()).To(Equal(fpenv.Positive))
		Expect(core.Env.Rounding()).To(Equal(fpenv.Positive))
	})

	It("should move a field to CR and clear its sticky bits on mcrfs", func() {
		core.SetFPSCR(cpu.FPSCRUX | cpu.FPSCRZX | cpu.FPSCRZE | cpu.FPSCRFX)
		Expect(core.FPSCR.Has(cpu.FPSCRFEX)).To(BeTrue())

		exec(insts.EncodeMCRFS(2, 1))
		Expect(core.CRField(2)).To(Equal(uint32(0xC)))
		Expect(core.FPSCR.Has(cpu.FPSCRUX)).To(BeFalse())
		Expect(core.FPSCR.Has(cpu.FPSCRZX)).To(BeFalse())
		Expect(core.FPSCR.Has(cpu.FPSCRFEX)).To(BeFalse())
		Expect(core.FPSCR.Has(cpu.FPSCRFX)).To(BeTrue())

		exec(insts.EncodeMCRFS(3, 0))
		Expect(core.CRField(3)).To(Equal(uint32(0x8)))
		Expect(core.FPSCR.Has(cpu.FPSCRFX)).To(BeFalse())
	})

	Describe("Compares", func() {
		DescribeTable("condition codes",
			func(a, b float64, want uint32) {
				core.FPR[1].SetValue(a)
				core.FPR[2].SetValue(b)

				exec(insts.EncodeFCMP(insts.XOFCMPU, 6, 1, 2))

				Expect(core.CRField(6)).To(Equal(want))
				Expect(core.FPSCR.FPRF() & 0xF).To(Equal(want))
			},
			Entry("less", 1.0, 2.0, uint32(8)),
			Entry("greater", 2.0, 1.0, uint32(4)),
			Entry("equal zeros", 0.0, math.Copysign(0, -1), uint32(2)),
			Entry("unordered", math.NaN(), 1.0, uint32(1)),
		)

		It("should only flag signalling NaNs on fcmpu", func() {
			core.FPR[1].SetValue(qNaN)
			exec(insts.EncodeFCMP(insts.XOFCMPU, 0, 1, 1))
			Expect(core.FPSCR.Any(cpu.FPSCRInvalid)).To(BeFalse())

			core.FPR[1].SetValue(sNaN)
			exec(insts.EncodeFCMP(insts.XOFCMPU, 0, 1, 1))
			Expect(core.FPSCR.Has(cpu.FPSCRVXSNAN | cpu.FPSCRVX | cpu.FPSCRFX)).To(BeTrue())
			Expect(core.FPSCR.Has(cpu.FPSCRVXVC)).To(BeFalse())
		})

		It("should flag invalid compares on fcmpo", func() {
			core.FPR[1].SetValue(qNaN)
			exec(insts.EncodeFCMP(insts.XOFCMPO, 0, 1, 1))
			Expect(core.FPSCR.Has(cpu.FPSCRVXVC)).To(BeTrue())
		})

		It("should not add VXVC for a signalling NaN when VE is set", func() {
			core.SetFPSCR(cpu.FPSCRVE)
			core.FPR[1].SetValue(sNaN)
			exec(insts.EncodeFCMP(insts.XOFCMPO, 0, 1, 1))
			Expect(core.FPSCR.Has(cpu.FPSCRVXSNAN)).To(BeTrue())
			Expect(core.FPSCR.Has(cpu.FPSCRVXVC)).To(BeFalse())
		})
	})
})
