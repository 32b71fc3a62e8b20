package mem

import (
	"encoding/binary"
	"unsafe"
)

// Value is any fixed-size scalar that can live in guest memory.
type Value interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~int8 | ~int16 | ~int32 | ~int64 |
		~float32 | ~float64
}

func rawBytes[T Value](v *T) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(v)), unsafe.Sizeof(*v))
}

// Read loads a big-endian value from guest memory.
func Read[T Value](s *Space, addr uint32) T {
	var v T
	raw := rawBytes(&v)

	unlock := s.rlock(addr)
	src := s.slice(addr, uint32(len(raw)))
	switch len(raw) {
	case 1:
		raw[0] = src[0]
	case 2:
		binary.NativeEndian.PutUint16(raw, binary.BigEndian.Uint16(src))
	case 4:
		binary.NativeEndian.PutUint32(raw, binary.BigEndian.Uint32(src))
	case 8:
		binary.NativeEndian.PutUint64(raw, binary.BigEndian.Uint64(src))
	}
	unlock()

	return v
}

// Write stores v to guest memory in big-endian order.
func Write[T Value](s *Space, addr uint32, v T) {
	raw := rawBytes(&v)

	unlock := s.rlock(addr)
	dst := s.slice(addr, uint32(len(raw)))
	switch len(raw) {
	case 1:
		dst[0] = raw[0]
	case 2:
		binary.BigEndian.PutUint16(dst, binary.NativeEndian.Uint16(raw))
	case 4:
		binary.BigEndian.PutUint32(dst, binary.NativeEndian.Uint32(raw))
	case 8:
		binary.BigEndian.PutUint64(dst, binary.NativeEndian.Uint64(raw))
	}
	unlock()
}

// ReadNoSwap loads a value whose bytes are already in host order.
func ReadNoSwap[T Value](s *Space, addr uint32) T {
	var v T
	raw := rawBytes(&v)

	unlock := s.rlock(addr)
	copy(raw, s.slice(addr, uint32(len(raw))))
	unlock()

	return v
}

// WriteNoSwap stores v without byte swapping.
func WriteNoSwap[T Value](s *Space, addr uint32, v T) {
	raw := rawBytes(&v)

	unlock := s.rlock(addr)
	copy(s.slice(addr, uint32(len(raw))), raw)
	unlock()
}
