package z

import "sync/atomic"

// MaxArrayLen is a safe maximum length for slices on this architecture.
const MaxArrayLen = 1 << 50

var numBytes int64

// NumAllocBytes returns the number of bytes currently reserved through calls
// to z.Malloc, z.Calloc, z.Realloc and z.Mmap. Depending upon the build flags,
// the reservations could be happening via either Go or jemalloc.
func NumAllocBytes() int64 {
	return atomic.LoadInt64(&numBytes)
}
