//go:build !linux && !darwin

package mem

const defaultPageSize = 4096

func hostPageSize() int {
	return defaultPageSize
}

func reserve(uint64) ([]byte, error) {
	return nil, ErrUnsupported
}

func protect([]byte, bool) error {
	return ErrUnsupported
}

func discard([]byte) error {
	return ErrUnsupported
}

func release([]byte) error {
	return nil
}
