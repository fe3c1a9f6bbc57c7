//go:build !linux

package z

// Mmap falls back to Calloc on platforms without the anonymous mmap wrappers.
func Mmap(n int) ([]byte, error) {
	return Calloc(n), nil
}

// Munmap releases a block obtained from Mmap.
func Munmap(b []byte) error {
	Free(b)
	return nil
}
