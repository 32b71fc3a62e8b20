// Package mem provides the guest's 32-bit address space.
//
// The whole 4 GiB guest range is reserved up front as one host mapping, so a
// guest address translates to a host pointer by adding it to the mapping
// base. Backing is bound to the fixed regions below: some are usable from
// the start, the others are committed and uncommitted page by page at run
// time.
package mem

import "fmt"

// Region is a named, fixed range [Base, End) of the guest address space.
type Region struct {
	Name string
	Base uint32
	End  uint32

	// Manual regions start without backing and need Commit before use.
	Manual bool
}

// Size returns the number of bytes the region spans.
func (r Region) Size() uint32 {
	return r.End - r.Base
}

// Contains reports whether addr lies inside the region.
func (r Region) Contains(addr uint32) bool {
	return addr >= r.Base && addr < r.End
}

func (r Region) String() string {
	return fmt.Sprintf("%s[%08x-%08x)", r.Name, r.Base, r.End)
}

// The region table is part of the guest ABI and never changes.
var regionTable = []Region{
	{Name: "System", Base: 0x01000000, End: 0x02000000},
	{Name: "MEM2", Base: 0x02000000, End: 0x42000000},
	{Name: "OverlayArena", Base: 0xA0000000, End: 0xBC000000, Manual: true},
	{Name: "Apertures", Base: 0xC0000000, End: 0xE0000000, Manual: true},
	{Name: "Foreground", Base: 0xE0000000, End: 0xE4000000},
	{Name: "Loader", Base: 0xE6000000, End: 0xEA000000, Manual: true},
	{Name: "MEM1", Base: 0xF4000000, End: 0xF6000000},
	{Name: "LockedCache", Base: 0xF6000000, End: 0xF600C000},
	{Name: "SharedData", Base: 0xF8000000, End: 0xFB000000},
}

// Regions returns a copy of the region table.
func Regions() []Region {
	out := make([]Region, len(regionTable))
	copy(out, regionTable)
	return out
}
