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

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func walkAddrs(r *registry) []uintptr {
	var out []uintptr
	r.walk(func(b *block) bool {
		out = append(out, b.addr)
		return true
	})
	return out
}

func TestRegistryInsert(t *testing.T) {
	r := newRegistry()
	require.Equal(t, 0, r.len())

	r.insert(0x10, 16, nil, false)
	r.insert(0x20, 32, nil, false)
	r.insert(0x30, 64, nil, false)

	require.Equal(t, 3, r.len())
	require.Equal(t, uintptr(0x30), r.tail.addr)
	// Most recently inserted first.
	require.Equal(t, []uintptr{0x30, 0x20, 0x10}, walkAddrs(r))
}

func TestRegistryRemove(t *testing.T) {
	r := newRegistry()
	r.insert(0x10, 16, nil, false)
	r.insert(0x20, 32, nil, false)
	r.insert(0x30, 64, nil, false)

	// Remove the middle record, chain closes over the gap.
	b, ok := r.remove(0x20)
	require.True(t, ok)
	require.Equal(t, int64(32), b.size)
	require.Equal(t, []uintptr{0x30, 0x10}, walkAddrs(r))

	// Removing the tail moves the tail to its prev.
	_, ok = r.remove(0x30)
	require.True(t, ok)
	require.Equal(t, uintptr(0x10), r.tail.addr)
	require.Equal(t, []uintptr{0x10}, walkAddrs(r))

	_, ok = r.remove(0x10)
	require.True(t, ok)
	require.Nil(t, r.tail)
	require.Equal(t, 0, r.len())
}

func TestRegistryRemoveMiss(t *testing.T) {
	r := newRegistry()
	r.insert(0x10, 16, nil, false)

	b, ok := r.remove(0xdead)
	require.False(t, ok)
	require.Nil(t, b)
	// Miss leaves the registry unmodified.
	require.Equal(t, 1, r.len())
	require.Equal(t, []uintptr{0x10}, walkAddrs(r))
}

func TestRegistryChainInvariant(t *testing.T) {
	r := newRegistry()
	expected := make(map[uintptr]bool)
	next := uintptr(1)

	for i := 0; i < 10000; i++ {
		if len(expected) == 0 || rand.Intn(3) > 0 {
			r.insert(next, int64(rand.Intn(1024)), nil, false)
			expected[next] = true
			next++
		} else {
			for addr := range expected {
				_, ok := r.remove(addr)
				require.True(t, ok)
				delete(expected, addr)
				break
			}
		}
	}

	// The prev chain from the tail visits every live record exactly once.
	seen := make(map[uintptr]bool)
	for _, addr := range walkAddrs(r) {
		require.False(t, seen[addr])
		seen[addr] = true
		require.True(t, expected[addr])
	}
	require.Equal(t, len(expected), len(seen))
	require.Equal(t, len(expected), r.len())
}
