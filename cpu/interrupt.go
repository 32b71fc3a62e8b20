package cpu

import "sync/atomic"

// interruptFlag is read by translated code at every branch, so it is a
// plain word rather than an atomic.Uint32.
var interruptFlag uint32

// SetInterrupt raises the process-wide interrupt-pending flag.
func SetInterrupt() {
	atomic.StoreUint32(&interruptFlag, 1)
}

// ClearInterrupt lowers the interrupt-pending flag.
func ClearInterrupt() {
	atomic.StoreUint32(&interruptFlag, 0)
}

// InterruptPending reports whether an interrupt is waiting to be serviced.
func InterruptPending() bool {
	return atomic.LoadUint32(&interruptFlag) != 0
}

// InterruptFlagAddr returns the address of the flag word for generated code.
func InterruptFlagAddr() *uint32 {
	return &interruptFlag
}

// InterruptHandler services a pending interrupt on core and returns the
// core that should continue executing. It may return core itself.
type InterruptHandler func(core *Core) *Core
