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

// block describes one outstanding heap allocation. A block is exclusively
// owned by the registry for as long as it is live; the address is an
// identity key and is never dereferenced. Provenance tags are not stored
// here. buf keeps the backing memory reachable for as long as the record is
// live: without it, a leaked block in the Go build would be collected and
// its address handed out again while the old record still sits in the
// chain. In the jemalloc build the memory is off-heap and the reference is
// inert.
type block struct {
	addr    uintptr
	size    int64
	buf     []byte
	prev    *block
	next    *block
	mmapped bool
}

// registry is the set of all live blocks, reachable from the most recently
// inserted one. Walking prev from the tail visits every live block exactly
// once, in reverse insertion order. The index map gives O(1) lookup by
// address; the chain keeps insertion order for diagnostics.
type registry struct {
	tail  *block
	index map[uintptr]*block
}

func newRegistry() *registry {
	return &registry{index: make(map[uintptr]*block)}
}

// insert appends a block for addr at the tail position. addr must not
// already be live.
func (r *registry) insert(addr uintptr, size int64, buf []byte, mmapped bool) *block {
	b := &block{addr: addr, size: size, buf: buf, mmapped: mmapped, prev: r.tail}
	if r.tail != nil {
		r.tail.next = b
	}
	r.tail = b
	r.index[addr] = b
	return b
}

// remove unlinks the block recorded for addr and reports whether one was
// found. On a miss the registry is left untouched.
func (r *registry) remove(addr uintptr) (*block, bool) {
	b, ok := r.index[addr]
	if !ok {
		return nil, false
	}
	delete(r.index, addr)
	if b.prev != nil {
		b.prev.next = b.next
	}
	if b.next != nil {
		b.next.prev = b.prev
	}
	if r.tail == b {
		r.tail = b.prev
	}
	b.prev, b.next, b.buf = nil, nil, nil
	return b, true
}

func (r *registry) get(addr uintptr) (*block, bool) {
	b, ok := r.index[addr]
	return b, ok
}

// walk visits every live block, most recently inserted first. Returning
// false from fn stops the walk.
func (r *registry) walk(fn func(*block) bool) {
	for b := r.tail; b != nil; b = b.prev {
		if !fn(b) {
			return
		}
	}
}

func (r *registry) len() int {
	return len(r.index)
}
