// Copyright 2020 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

//go:build !jemalloc

package z

import (
	"fmt"
	"sync/atomic"
)

// Provides versions of Malloc, Calloc, Realloc and Free when cgo is not
// available (e.g. cross compilation). The memory is ordinary Go memory, so
// Free only adjusts the accounting and lets the garbage collector do the
// actual reclamation.

// Malloc reserves a slice of size n.
func Malloc(n int) []byte {
	if n == 0 {
		return nil
	}
	atomic.AddInt64(&numBytes, int64(n))
	return make([]byte, n)
}

// Calloc reserves a zero-filled slice of size n. Go memory is always zeroed,
// so this is the same as Malloc.
func Calloc(n int) []byte {
	return Malloc(n)
}

// CallocNoRef will not give you memory back without jemalloc.
func CallocNoRef(n int) []byte {
	// We do the add here just to stay compatible with a corresponding Free call.
	return nil
}

// Realloc resizes b to size n, preserving content up to the smaller of the
// old and new sizes.
func Realloc(b []byte, n int) []byte {
	if b == nil {
		return Malloc(n)
	}
	if n == 0 {
		return b
	}
	nb := make([]byte, n)
	copy(nb, b)
	atomic.AddInt64(&numBytes, int64(n)-int64(cap(b)))
	return nb
}

// Free releases the accounting for the given slice. The memory itself is
// reclaimed by the garbage collector.
func Free(b []byte) {
	if sz := cap(b); sz != 0 {
		atomic.AddInt64(&numBytes, -int64(sz))
	}
}

func StatsPrint() {
	fmt.Println("Using Go memory")
}
