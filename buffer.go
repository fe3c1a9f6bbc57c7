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

package memtrack

import "github.com/pkg/errors"

// smallBufferSize is an initial allocation minimal capacity.
const smallBufferSize = 64

// Buffer is an append-only byte buffer whose backing memory is reserved
// through a Tracker, so buffer growth shows up in the registry and the
// usage counters. It is NOT thread-safe.
type Buffer struct {
	buf    []byte
	offset int
	tr     *Tracker
	tag    string
}

// NewBuffer allocates a buffer of capacity sz through the tracker. The tag
// is reused for every growth and the final release.
func (t *Tracker) NewBuffer(sz int, tag string) (*Buffer, error) {
	if sz == 0 {
		sz = smallBufferSize
	}
	buf := t.Alloc(sz, tag)
	if buf == nil {
		return nil, errors.Errorf("while allocating buffer of size: %d", sz)
	}
	return &Buffer{buf: buf, tr: t, tag: tag}, nil
}

// Len returns the number of bytes written so far.
func (b *Buffer) Len() int {
	return b.offset
}

// Bytes returns the written bytes. The slice aliases the buffer and is only
// valid until the next Grow, Write or Release.
func (b *Buffer) Bytes() []byte {
	return b.buf[:b.offset]
}

// Grow ensures room for another n bytes, reallocating through the tracker
// when needed.
func (b *Buffer) Grow(n int) error {
	if b.buf == nil {
		return errors.New("buffer has been released")
	}
	if len(b.buf) >= b.offset+n {
		return nil
	}
	sz := 2 * len(b.buf)
	for sz < b.offset+n {
		sz *= 2
	}
	nb := b.tr.Realloc(b.buf, sz, b.tag)
	if nb == nil {
		return errors.Errorf("while growing buffer to size: %d", sz)
	}
	b.buf = nb
	return nil
}

// Write appends p to the buffer, growing it as needed.
func (b *Buffer) Write(p []byte) (int, error) {
	if err := b.Grow(len(p)); err != nil {
		return 0, err
	}
	n := copy(b.buf[b.offset:], p)
	b.offset += n
	return n, nil
}

// Allocate returns a slice of n bytes at the current end of the buffer,
// advancing the write offset past it.
func (b *Buffer) Allocate(n int) ([]byte, error) {
	if err := b.Grow(n); err != nil {
		return nil, err
	}
	slice := b.buf[b.offset : b.offset+n]
	b.offset += n
	return slice, nil
}

// Reset forgets the written data without releasing the backing memory.
func (b *Buffer) Reset() {
	b.offset = 0
}

// Release returns the backing memory to the tracker. The buffer must not be
// used afterwards.
func (b *Buffer) Release() bool {
	if b.buf == nil {
		return false
	}
	ok := b.tr.Free(b.buf, b.tag)
	b.buf = nil
	b.offset = 0
	return ok
}
