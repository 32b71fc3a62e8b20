//go:build !(linux && amd64)

package jit

const defaultPageSize = 4096

func hostPageSize() int {
	return defaultPageSize
}

// NewExecArena is unavailable on this platform.
func NewExecArena(int) (*Arena, error) {
	return nil, ErrNoExec
}

func protectCode([]byte, bool) error {
	return ErrNoExec
}

func unmapCode([]byte) error {
	return nil
}
