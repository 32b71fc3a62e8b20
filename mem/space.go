package mem

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/go-logr/logr"
)

// AddressSpaceSize is the size of the guest address range.
const AddressSpaceSize = 1 << 32

// ErrUnsupported is returned when the host cannot reserve the guest range.
var ErrUnsupported = errors.New("mem: guest address space not supported on this host")

// Debug enables the range assertion in Untranslate.
var Debug = false

type region struct {
	Region

	// mu serialises Commit/Uncommit against accesses in flight.
	mu sync.RWMutex

	// committed is a page bitmap; nil for regions that are always backed.
	committed []uint64
}

func (r *region) pageIndex(addr, pageSize uint32) uint32 {
	return (addr - r.Base) / pageSize
}

func (r *region) isCommitted(page uint32) bool {
	return r.committed[page/64]&(1<<(page%64)) != 0
}

func (r *region) setCommitted(page uint32, on bool) {
	if on {
		r.committed[page/64] |= 1 << (page % 64)
	} else {
		r.committed[page/64] &^= 1 << (page % 64)
	}
}

// Space is a reserved guest address space.
type Space struct {
	mapping  []byte
	base     unsafe.Pointer
	pageSize uint32

	regions []*region
	lookup  [256]*region

	log       logr.Logger
	closeOnce sync.Once
}

// Option configures a Space.
type Option func(*Space)

// WithLogger sets the logger used for commit and uncommit tracing.
func WithLogger(l logr.Logger) Option {
	return func(s *Space) {
		s.log = l
	}
}

// NewSpace reserves a 4 GiB host range and backs every region that does not
// need an explicit commit.
func NewSpace(opts ...Option) (*Space, error) {
	s := &Space{
		pageSize: uint32(hostPageSize()),
		log:      logr.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}

	mapping, err := reserve(AddressSpaceSize)
	if err != nil {
		return nil, fmt.Errorf("reserve %d bytes: %w", uint64(AddressSpaceSize), err)
	}
	s.mapping = mapping
	s.base = unsafe.Pointer(&mapping[0])

	for _, def := range regionTable {
		r := &region{Region: def}
		if def.Manual {
			pages := def.Size() / s.pageSize
			r.committed = make([]uint64, (pages+63)/64)
		} else if err := protect(s.slice(def.Base, def.Size()), true); err != nil {
			_ = release(mapping)
			return nil, fmt.Errorf("back region %s: %w", def.Name, err)
		}

		s.regions = append(s.regions, r)
		for top := def.Base >> 24; top <= (def.End-1)>>24; top++ {
			s.lookup[top] = r
		}
	}

	s.log.V(1).Info("address space reserved", "base", uintptr(s.base), "pageSize", s.pageSize)
	return s, nil
}

// Close releases the host reservation. The space must not be used after.
func (s *Space) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = release(s.mapping)
		s.mapping = nil
		s.base = nil
	})
	return err
}

// PageSize returns the commit granularity.
func (s *Space) PageSize() uint32 {
	return s.pageSize
}

// Base returns the host address of guest address 0.
func (s *Space) Base() uintptr {
	return uintptr(s.base)
}

func (s *Space) slice(addr, size uint32) []byte {
	end := uint64(addr) + uint64(size)
	return s.mapping[addr:end:end]
}

func (s *Space) find(addr uint32) *region {
	r := s.lookup[addr>>24]
	if r == nil || !r.Contains(addr) {
		return nil
	}
	return r
}

// RegionFor returns the region containing addr.
func (s *Space) RegionFor(addr uint32) (Region, bool) {
	r := s.find(addr)
	if r == nil {
		return Region{}, false
	}
	return r.Region, true
}

// Valid reports whether addr lies in a region that is always backed or in
// a committed page of a manual region.
func (s *Space) Valid(addr uint32) bool {
	r := s.find(addr)
	if r == nil {
		return false
	}
	if !r.Manual {
		return true
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.isCommitted(r.pageIndex(addr, s.pageSize))
}

// manualRange validates a commit request and returns its region.
func (s *Space) manualRange(addr, size uint32) (*region, bool) {
	if size == 0 || addr%s.pageSize != 0 || size%s.pageSize != 0 {
		return nil, false
	}

	r := s.find(addr)
	if r == nil || !r.Manual {
		return nil, false
	}
	if uint64(addr)+uint64(size) > uint64(r.End) {
		return nil, false
	}
	return r, true
}

// Commit binds backing to [addr, addr+size) inside one manual region. It
// fails for misaligned or empty ranges, ranges outside a manual region and
// ranges that cross a region boundary. Committing an already committed
// range succeeds.
func (s *Space) Commit(addr, size uint32) bool {
	r, ok := s.manualRange(addr, size)
	if !ok {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	first := r.pageIndex(addr, s.pageSize)
	count := size / s.pageSize

	pending := false
	for p := first; p < first+count; p++ {
		if !r.isCommitted(p) {
			pending = true
			break
		}
	}
	if !pending {
		return true
	}

	if err := protect(s.slice(addr, size), true); err != nil {
		s.log.Error(err, "commit failed", "region", r.Name, "addr", addr, "size", size)
		return false
	}
	for p := first; p < first+count; p++ {
		r.setCommitted(p, true)
	}

	s.log.V(1).Info("commit", "region", r.Name, "addr", addr, "size", size)
	return true
}

// Uncommit releases backing for [addr, addr+size). The same range rules as
// Commit apply. Contents of the range are discarded.
func (s *Space) Uncommit(addr, size uint32) bool {
	r, ok := s.manualRange(addr, size)
	if !ok {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	b := s.slice(addr, size)
	if err := discard(b); err != nil {
		s.log.Error(err, "discard failed", "region", r.Name, "addr", addr, "size", size)
		return false
	}
	if err := protect(b, false); err != nil {
		s.log.Error(err, "uncommit failed", "region", r.Name, "addr", addr, "size", size)
		return false
	}

	first := r.pageIndex(addr, s.pageSize)
	for p := first; p < first+size/s.pageSize; p++ {
		r.setCommitted(p, false)
	}

	s.log.V(1).Info("uncommit", "region", r.Name, "addr", addr, "size", size)
	return true
}

// Translate returns the host pointer for a guest address. Guest null maps
// to host nil. No validity check is made.
func (s *Space) Translate(addr uint32) unsafe.Pointer {
	if addr == 0 {
		return nil
	}
	return unsafe.Add(s.base, uintptr(addr))
}

// Untranslate converts a host pointer produced by Translate back into a
// guest address. With Debug set it panics on pointers outside the
// reservation.
func (s *Space) Untranslate(p unsafe.Pointer) uint32 {
	if p == nil {
		return 0
	}

	off := uintptr(p) - uintptr(s.base)
	if Debug && (uintptr(p) < uintptr(s.base) || uint64(off) >= AddressSpaceSize) {
		panic(fmt.Sprintf("mem: host pointer %#x outside guest reservation at %#x", uintptr(p), uintptr(s.base)))
	}
	return uint32(off)
}

// rlock takes the read side of addr's region lock, if it has one.
func (s *Space) rlock(addr uint32) func() {
	r := s.find(addr)
	if r == nil || !r.Manual {
		return func() {}
	}
	r.mu.RLock()
	return r.mu.RUnlock
}

// ReadBytes copies len(dst) guest bytes starting at addr into dst.
func (s *Space) ReadBytes(addr uint32, dst []byte) {
	unlock := s.rlock(addr)
	defer unlock()
	copy(dst, s.slice(addr, uint32(len(dst))))
}

// WriteBytes copies src into guest memory starting at addr.
func (s *Space) WriteBytes(addr uint32, src []byte) {
	unlock := s.rlock(addr)
	defer unlock()
	copy(s.slice(addr, uint32(len(src))), src)
}

var (
	defaultOnce  sync.Once
	defaultSpace *Space
)

// Initialise reserves the process-wide address space. It runs once; later
// calls are no-ops. A reservation failure is fatal.
func Initialise(opts ...Option) {
	defaultOnce.Do(func() {
		s, err := NewSpace(opts...)
		if err != nil {
			panic(fmt.Errorf("mem: initialise: %w", err))
		}
		defaultSpace = s
	})
}

// Default returns the space created by Initialise, or nil before it.
func Default() *Space {
	return defaultSpace
}
