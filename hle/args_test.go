package hle_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ppcemu/cpu"
	"github.com/sarchlab/ppcemu/hle"
	"github.com/sarchlab/ppcemu/mem"
)

const stackTop = 0x03000000

var _ = Describe("Args", func() {
	var core *cpu.Core

	BeforeEach(func() {
		requireSpace()
		core = cpu.NewCore(0)
		core.GPR[1] = stackTop
		for r := 3; r <= 10; r++ {
			core.GPR[r] = uint32(r * 0x11)
		}
	})

	It("should read words from GPR3 upward", func() {
		a := hle.NewArgs(core, space)

		Expect(a.Word()).To(Equal(uint32(0x33)))
		Expect(a.Int()).To(Equal(int32(0x44)))
		Expect(a.Bool()).To(BeTrue())
		Expect(a.Words()).To(Equal(3))
	})

	It("should continue on the stack past GPR10", func() {
		mem.Write(space, stackTop+16, uint32(0xAAAA))
		mem.Write(space, stackTop+20, uint32(0xBBBB))
		a := hle.NewArgs(core, space)
		for i := 0; i < 8; i++ {
			a.Word()
		}

		Expect(a.Word()).To(Equal(uint32(0xAAAA)))
		Expect(a.Word()).To(Equal(uint32(0xBBBB)))
	})

	It("should start member calls past the receiver", func() {
		a := hle.NewMemberArgs(core, space)

		Expect(a.Receiver()).To(Equal(uint32(0x33)))
		Expect(a.Word()).To(Equal(uint32(0x44)))
	})

	It("should read 64-bit values from aligned pairs", func() {
		core.GPR[5] = 0x01234567
		core.GPR[6] = 0x89ABCDEF
		a := hle.NewArgs(core, space)

		a.Word()

		Expect(a.DWord()).To(Equal(uint64(0x0123456789ABCDEF)))
		Expect(a.Words()).To(Equal(4))
	})

	It("should read floats from FPR1 independently of GPRs", func() {
		core.FPR[1].SetValue(2.5)
		core.FPR[2].SetValue(0.1)
		a := hle.NewArgs(core, space)

		Expect(a.Word()).To(Equal(uint32(0x33)))
		Expect(a.Float64()).To(Equal(2.5))
		Expect(a.Float32()).To(Equal(float32(0.1)))
		Expect(a.Word()).To(Equal(uint32(0x44)))
	})

	It("should read guest strings", func() {
		space.WriteBytes(stackTop+0x100, []byte("hello\x00"))
		core.GPR[3] = stackTop + 0x100
		core.GPR[4] = 0

		a := hle.NewArgs(core, space)

		Expect(a.String()).To(Equal("hello"))
		Expect(a.String()).To(BeEmpty())
	})

	It("should spill floats past FPR8 into the stack overflow area", func() {
		w := hle.NewArgs(core, space)
		for i := 0; i < 9; i++ {
			w.PutWord(uint32(i))
		}
		for i := 1; i <= 9; i++ {
			w.PutFloat64(float64(i) / 4)
		}
		w.PutWord(0xCCCC)

		Expect(core.FPR[8].Value()).To(Equal(2.0))
		Expect(core.FPR[9].Value()).To(BeZero())
		Expect(mem.Read[uint32](space, stackTop+16)).To(Equal(uint32(8)))
		Expect(mem.Read[float64](space, stackTop+24)).To(Equal(2.25))
		Expect(mem.Read[uint32](space, stackTop+32)).To(Equal(uint32(0xCCCC)))

		r := hle.NewArgs(core, space)
		for i := 0; i < 9; i++ {
			Expect(r.Word()).To(Equal(uint32(i)))
		}
		for i := 1; i <= 9; i++ {
			Expect(r.Float64()).To(Equal(float64(i) / 4))
		}
		Expect(r.Word()).To(Equal(uint32(0xCCCC)))
		Expect(r.Words()).To(Equal(10))
	})

	It("should move a 64-bit value that misses GPR10 to an aligned stack slot", func() {
		w := hle.NewArgs(core, space)
		for i := 0; i < 7; i++ {
			w.PutWord(uint32(i))
		}
		w.PutDWord(0x1122334455667788)

		Expect(mem.Read[uint32](space, stackTop+16)).To(Equal(uint32(0x11223344)))
		Expect(mem.Read[uint32](space, stackTop+20)).To(Equal(uint32(0x55667788)))

		r := hle.NewArgs(core, space)
		for i := 0; i < 7; i++ {
			r.Word()
		}
		Expect(r.DWord()).To(Equal(uint64(0x1122334455667788)))
		Expect(r.Words()).To(Equal(10))
	})

	It("should write arguments where it reads them", func() {
		w := hle.NewArgs(core, space)
		w.PutWord(1)
		w.PutDWord(0x1122334455667788)
		for i := 0; i < 5; i++ {
			w.PutWord(uint32(100 + i))
		}
		w.PutFloat32(float32(math.Inf(-1)))
		w.PutFloat64(3)

		Expect(core.GPR[4]).To(Equal(uint32(0x44)))
		Expect(core.GPR[5]).To(Equal(uint32(0x11223344)))
		Expect(mem.Read[uint32](space, stackTop+16)).To(Equal(uint32(104)))

		r := hle.NewArgs(core, space)
		Expect(r.Word()).To(Equal(uint32(1)))
		Expect(r.DWord()).To(Equal(uint64(0x1122334455667788)))
		for i := 0; i < 5; i++ {
			Expect(r.Word()).To(Equal(uint32(100 + i)))
		}
		Expect(r.Float32()).To(Equal(float32(math.Inf(-1))))
		Expect(r.Float64()).To(Equal(3.0))
	})
})

var _ = Describe("Return values", func() {
	var core *cpu.Core

	BeforeEach(func() {
		core = cpu.NewCore(0)
	})

	It("should return words in GPR3", func() {
		hle.ReturnInt(core, -1)
		Expect(core.GPR[3]).To(Equal(uint32(0xFFFFFFFF)))

		hle.ReturnBool(core, false)
		Expect(core.GPR[3]).To(BeZero())

		hle.ReturnWord(core, 9)
		Expect(core.GPR[3]).To(Equal(uint32(9)))
	})

	It("should return 64-bit values in GPR3:GPR4", func() {
		hle.ReturnDWord(core, 0xDEADBEEF00C0FFEE)

		Expect(core.GPR[3]).To(Equal(uint32(0xDEADBEEF)))
		Expect(core.GPR[4]).To(Equal(uint32(0x00C0FFEE)))
	})

	It("should return floats in FPR1", func() {
		hle.ReturnFloat32(core, 1.5)
		Expect(core.FPR[1].Value()).To(Equal(1.5))

		hle.ReturnFloat64(core, -0.25)
		Expect(core.FPR[1].Value()).To(Equal(-0.25))
	})
})
