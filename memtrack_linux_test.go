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

package memtrack

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func (t *Tracker) blockMmapped(buf []byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.reg.get(addrOf(buf))
	return ok && b.mmapped
}

func TestMmapRoutingLinux(t *testing.T) {
	tr, err := NewTracker(Config{MmapThreshold: 1 << 12})
	require.NoError(t, err)

	big := tr.Alloc(1<<16, "test")
	small := tr.Alloc(64, "test")

	// Blocks at or past the threshold come from an anonymous mapping, the
	// rest from the allocator.
	require.True(t, tr.blockMmapped(big))
	require.False(t, tr.blockMmapped(small))

	// Real mappings are page-aligned; allocator blocks of 64 bytes are not
	// required to be.
	require.Zero(t, addrOf(big)%uintptr(os.Getpagesize()))

	// Growing an allocator block past the threshold crosses into the mmap
	// path.
	grown := tr.Realloc(small, 1<<13, "test")
	require.True(t, tr.blockMmapped(grown))
	require.Zero(t, addrOf(grown)%uintptr(os.Getpagesize()))

	require.True(t, tr.Free(big, "test"))
	require.True(t, tr.Free(grown, "test"))
	require.Equal(t, 0, tr.NumLive())
}
