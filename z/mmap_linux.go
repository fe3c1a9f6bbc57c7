/*
 * Copyright 2024 Derric Lyns and Contributors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

//go:build linux

package z

import (
	"sync/atomic"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Mmap reserves an anonymous private mapping of size n, zero-filled by the
// kernel. Large blocks served this way stay out of both the Go heap and
// jemalloc arenas. The mapping MUST be released via Munmap.
func Mmap(n int) ([]byte, error) {
	b, err := unix.Mmap(-1, 0, n, unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, errors.Wrapf(err, "while mmap of size: %d", n)
	}
	atomic.AddInt64(&numBytes, int64(n))
	return b, nil
}

// Munmap releases a mapping obtained from Mmap.
func Munmap(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	atomic.AddInt64(&numBytes, -int64(cap(b)))
	return errors.Wrap(unix.Munmap(b), "while munmap")
}
