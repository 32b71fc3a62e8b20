//go:build linux || darwin

package mem

import "golang.org/x/sys/unix"

func hostPageSize() int {
	return unix.Getpagesize()
}

// reserve maps size bytes of inaccessible address space without committing
// swap for it.
func reserve(size uint64) ([]byte, error) {
	return unix.Mmap(-1, 0, int(size),
		unix.PROT_NONE,
		unix.MAP_PRIVATE|unix.MAP_ANON|unix.MAP_NORESERVE)
}

func protect(b []byte, writable bool) error {
	prot := unix.PROT_NONE
	if writable {
		prot = unix.PROT_READ | unix.PROT_WRITE
	}
	return unix.Mprotect(b, prot)
}

// discard drops the pages' contents so the host can reclaim them.
func discard(b []byte) error {
	return unix.Madvise(b, unix.MADV_DONTNEED)
}

func release(b []byte) error {
	return unix.Munmap(b)
}
