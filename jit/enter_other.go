//go:build !amd64

package jit

import "unsafe"

func enter(uintptr, unsafe.Pointer) uint64 {
	panic(ErrNoExec)
}
