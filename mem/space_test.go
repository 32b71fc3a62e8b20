package mem_test

import (
	"math"
	"sync"
	"unsafe"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ppcemu/mem"
)

const (
	mem2Base      = 0x02000000
	overlayBase   = 0xA0000000
	aperturesEnd  = 0xE0000000
	loaderBase    = 0xE6000000
	lockedCacheHi = 0xF600C000
)

var _ = Describe("Region table", func() {
	It("should never overlap", func() {
		regions := mem.Regions()
		for i := range regions {
			for j := i + 1; j < len(regions); j++ {
				a, b := regions[i], regions[j]
				overlap := a.Base < b.End && b.Base < a.End
				Expect(overlap).To(BeFalse(), "%v overlaps %v", a, b)
			}
		}
	})

	It("should mark exactly three regions as manual", func() {
		var manual []string
		for _, r := range mem.Regions() {
			if r.Manual {
				manual = append(manual, r.Name)
			}
		}
		Expect(manual).To(ConsistOf("OverlayArena", "Apertures", "Loader"))
	})
})

var _ = Describe("Space", func() {
	var space *mem.Space

	BeforeEach(func() {
		var err error
		space, err = mem.NewSpace()
		if err != nil {
			Skip("guest address space unavailable: " + err.Error())
		}
	})

	AfterEach(func() {
		if space != nil {
			Expect(space.Close()).To(Succeed())
		}
	})

	Describe("Valid", func() {
		It("should accept always-backed regions", func() {
			Expect(space.Valid(mem2Base)).To(BeTrue())
			Expect(space.Valid(lockedCacheHi - 1)).To(BeTrue())
		})

		It("should reject addresses outside every region", func() {
			Expect(space.Valid(0)).To(BeFalse())
			Expect(space.Valid(lockedCacheHi)).To(BeFalse())
			Expect(space.Valid(0x50000000)).To(BeFalse())
		})

		It("should follow commit state in manual regions", func() {
			Expect(space.Valid(loaderBase)).To(BeFalse())
			Expect(space.Commit(loaderBase, space.PageSize())).To(BeTrue())
			Expect(space.Valid(loaderBase)).To(BeTrue())
			Expect(space.Valid(loaderBase + space.PageSize())).To(BeFalse())
		})
	})

	Describe("Commit", func() {
		It("should succeed idempotently on an identical range", func() {
			size := 4 * space.PageSize()
			Expect(space.Commit(overlayBase, size)).To(BeTrue())
			Expect(space.Commit(overlayBase, size)).To(BeTrue())
		})

		It("should fail on a range straddling two regions", func() {
			page := space.PageSize()
			Expect(space.Commit(aperturesEnd-page, 2*page)).To(BeFalse())
		})

		It("should fail on misaligned or empty ranges", func() {
			page := space.PageSize()
			Expect(space.Commit(overlayBase+1, page)).To(BeFalse())
			Expect(space.Commit(overlayBase, page+1)).To(BeFalse())
			Expect(space.Commit(overlayBase, 0)).To(BeFalse())
		})

		It("should fail on regions that are always backed", func() {
			Expect(space.Commit(mem2Base, space.PageSize())).To(BeFalse())
		})

		It("should discard contents on uncommit", func() {
			page := space.PageSize()
			Expect(space.Commit(overlayBase, page)).To(BeTrue())
			mem.Write[uint32](space, overlayBase, 0xCAFEF00D)

			Expect(space.Uncommit(overlayBase, page)).To(BeTrue())
			Expect(space.Valid(overlayBase)).To(BeFalse())

			Expect(space.Commit(overlayBase, page)).To(BeTrue())
			Expect(mem.Read[uint32](space, overlayBase)).To(BeZero())
		})

		It("should serialise with concurrent accesses", func() {
			page := space.PageSize()
			Expect(space.Commit(overlayBase, page)).To(BeTrue())

			var wg sync.WaitGroup
			for i := 0; i < 4; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					addr := uint32(overlayBase + 8*i)
					for n := 0; n < 1000; n++ {
						mem.Write[uint64](space, addr, uint64(n))
						_ = mem.Read[uint64](space, addr)
					}
				}(i)
			}
			for n := 0; n < 10; n++ {
				Expect(space.Commit(overlayBase+page, page)).To(BeTrue())
				Expect(space.Uncommit(overlayBase+page, page)).To(BeTrue())
			}
			wg.Wait()
		})
	})

	Describe("Translate", func() {
		It("should map guest null to host nil", func() {
			Expect(space.Translate(0) == nil).To(BeTrue())
			Expect(space.Untranslate(nil)).To(BeZero())
		})

		It("should round-trip guest addresses", func() {
			for _, addr := range []uint32{1, mem2Base, 0x12345678, 0xFFFFFFFF} {
				p := space.Translate(addr)
				Expect(space.Untranslate(p)).To(Equal(addr))
				Expect(space.Translate(space.Untranslate(p))).To(Equal(p))
			}
		})

		It("should offset from the reservation base", func() {
			Expect(uintptr(space.Translate(mem2Base))).To(Equal(space.Base() + mem2Base))
		})

		It("should panic on foreign pointers in debug mode", func() {
			mem.Debug = true
			defer func() { mem.Debug = false }()

			var local uint32
			Expect(func() { space.Untranslate(unsafe.Pointer(&local)) }).To(Panic())
		})
	})

	Describe("Typed access", func() {
		It("should store big-endian", func() {
			mem.Write[uint32](space, mem2Base, 0x11223344)

			var raw [4]byte
			space.ReadBytes(mem2Base, raw[:])
			Expect(raw).To(Equal([4]byte{0x11, 0x22, 0x33, 0x44}))
			Expect(mem.Read[uint16](space, mem2Base+2)).To(Equal(uint16(0x3344)))
		})

		It("should round-trip every scalar type", func() {
			mem.Write[int8](space, mem2Base, -5)
			Expect(mem.Read[int8](space, mem2Base)).To(Equal(int8(-5)))

			mem.Write[int16](space, mem2Base, -300)
			Expect(mem.Read[int16](space, mem2Base)).To(Equal(int16(-300)))

			mem.Write[int64](space, mem2Base, math.MinInt64+7)
			Expect(mem.Read[int64](space, mem2Base)).To(Equal(int64(math.MinInt64 + 7)))

			mem.Write[float32](space, mem2Base, 1.5)
			Expect(mem.Read[uint32](space, mem2Base)).To(Equal(uint32(0x3FC00000)))

			mem.Write[float64](space, mem2Base, -2.0)
			Expect(mem.Read[uint64](space, mem2Base)).To(Equal(uint64(0xC000000000000000)))
			Expect(mem.Read[float64](space, mem2Base)).To(Equal(-2.0))
		})

		It("should skip the swap for no-swap accesses", func() {
			mem.WriteNoSwap[uint32](space, mem2Base, 0x11223344)
			Expect(mem.ReadNoSwap[uint32](space, mem2Base)).To(Equal(uint32(0x11223344)))
			Expect(mem.Read[uint32](space, mem2Base)).ToNot(Equal(uint32(0x11223344)))
		})
	})

	It("should report the region of an address", func() {
		r, ok := space.RegionFor(0xF6000010)
		Expect(ok).To(BeTrue())
		Expect(r.Name).To(Equal("LockedCache"))

		_, ok = space.RegionFor(0xF600C000)
		Expect(ok).To(BeFalse())
	})
})

var _ = Describe("Initialise", func() {
	It("should create the process-wide space once", func() {
		defer func() {
			if r := recover(); r != nil {
				Skip("guest address space unavailable")
			}
		}()

		mem.Initialise()
		first := mem.Default()
		mem.Initialise()
		Expect(mem.Default()).To(BeIdenticalTo(first))
	})
})
