// Copyright 2020 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

//go:build jemalloc

package z

/*
#cgo LDFLAGS: -L/usr/local/lib -Wl,-rpath,/usr/local/lib -ljemalloc -lm -lstdc++ -pthread -ldl
#include <stdlib.h>
#include <jemalloc/jemalloc.h>
*/
import "C"

import (
	"sync/atomic"
	"unsafe"
)

// Manually managed memory via jemalloc. The returned slices do not live on
// the Go heap and MUST be released by calling Free. Failure to do so will
// result in a memory leak.
//
// Compile jemalloc with ./configure --with-jemalloc-prefix="je_"
// JE_MALLOC_CONF="background_thread:true,metadata_thp:auto"
//
// Compile Go program with `go build -tags=jemalloc` to enable this.

// Malloc reserves a slice of size n. The contents are NOT zeroed. Returns nil
// if jemalloc cannot satisfy the request.
func Malloc(n int) []byte {
	if n == 0 {
		return nil
	}
	ptr := C.je_malloc(C.size_t(n))
	if ptr == nil {
		return nil
	}
	atomic.AddInt64(&numBytes, int64(n))
	return (*[MaxArrayLen]byte)(ptr)[:n:n]
}

// Calloc reserves a zero-filled slice of size n. Returns nil if jemalloc
// cannot satisfy the request.
func Calloc(n int) []byte {
	if n == 0 {
		return nil
	}
	// We need to be conscious of the Cgo pointer passing rules:
	//
	//   https://golang.org/cmd/cgo/#hdr-Passing_pointers
	//
	// Zero out the memory in C before passing it to Go.
	ptr := C.je_calloc(C.size_t(n), 1)
	if ptr == nil {
		return nil
	}
	atomic.AddInt64(&numBytes, int64(n))
	return (*[MaxArrayLen]byte)(ptr)[:n:n]
}

// CallocNoRef does the exact same thing as Calloc with jemalloc enabled.
func CallocNoRef(n int) []byte {
	return Calloc(n)
}

// Realloc resizes b to size n, preserving content up to the smaller of the
// old and new sizes. The slice b is invalid after this call. Returns nil,
// with b still valid, if jemalloc cannot satisfy the request.
func Realloc(b []byte, n int) []byte {
	if b == nil {
		return Malloc(n)
	}
	if n == 0 {
		return b
	}
	ptr := C.je_realloc(unsafe.Pointer(&b[0]), C.size_t(n))
	if ptr == nil {
		return nil
	}
	atomic.AddInt64(&numBytes, int64(n)-int64(cap(b)))
	return (*[MaxArrayLen]byte)(ptr)[:n:n]
}

// Free releases the specified slice back to jemalloc.
func Free(b []byte) {
	if sz := cap(b); sz != 0 {
		if len(b) == 0 {
			b = b[:cap(b)]
		}
		ptr := unsafe.Pointer(&b[0])
		C.je_free(ptr)
		atomic.AddInt64(&numBytes, -int64(sz))
	}
}

func StatsPrint() {
	opts := C.CString("mdablxe")
	C.je_malloc_stats_print(nil, nil, opts)
	C.free(unsafe.Pointer(opts))
}
