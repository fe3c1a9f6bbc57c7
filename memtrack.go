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

// Package memtrack is an instrumented substitute for the raw allocation
// primitives in package z. Every outstanding block is recorded in a live
// registry together with running usage counters, so leaks and allocation
// churn can be inspected at any point without a heap profiler. It is a Go
// port of the cutils C memory layer.
package memtrack

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"unsafe"

	farm "github.com/dgryski/go-farm"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"github.com/derriclyns/memtrack/z"
)

// Logger is the diagnostic side channel. Emitted lines name the operation
// and its provenance tag; they never influence tracker state or return
// values.
type Logger interface {
	Printf(format string, args ...interface{})
}

var defaultLogger Logger = log.New(os.Stderr, "", log.LstdFlags)

// Config is passed to NewTracker.
type Config struct {
	// Instrumented emits one diagnostic line per operation to Logger.
	Instrumented bool

	// Logger receives the diagnostic lines. nil means stderr via the
	// standard library logger.
	Logger Logger

	// MmapThreshold serves blocks of at least this many bytes from
	// anonymous memory maps instead of the allocator. Zero disables the
	// mmap path.
	MmapThreshold int64
}

const flagDefaults = `instrumented=false; mmap-threshold=0`

// Tracker owns the allocation registry and the usage counters. All methods
// are safe for concurrent use: a single mutex guards the registry for the
// duration of each operation and the counters are atomics.
type Tracker struct {
	mu   sync.Mutex
	reg  *registry
	conf Config

	// Metrics holds the usage counters for this tracker.
	Metrics *Metrics
}

// NewTracker returns a new Tracker for the given config.
func NewTracker(conf Config) (*Tracker, error) {
	if conf.MmapThreshold < 0 {
		return nil, errors.Errorf("MmapThreshold can not be negative: %d", conf.MmapThreshold)
	}
	if conf.Logger == nil {
		conf.Logger = defaultLogger
	}
	return &Tracker{
		reg:     newRegistry(),
		conf:    conf,
		Metrics: newMetrics(),
	}, nil
}

// NewTrackerFrom builds a Tracker from a `key=value; ...` options string.
// Valid options: instrumented, mmap-threshold.
func NewTrackerFrom(sf *z.SuperFlag) (*Tracker, error) {
	sf.MergeAndCheckDefault(flagDefaults)
	return NewTracker(Config{
		Instrumented:  sf.GetBool("instrumented"),
		MmapThreshold: sf.GetInt64("mmap-threshold"),
	})
}

// Site returns a "file:line" provenance tag for the caller, standing in for
// the __FILE__/__LINE__ macro pair of the C layer.
func Site() string {
	_, file, line, ok := runtime.Caller(1)
	if !ok {
		return "unknown"
	}
	return fmt.Sprintf("%s:%d", filepath.Base(file), line)
}

func addrOf(b []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(b)))
}

// Alloc reserves size bytes and records the block in the registry. The tag
// identifies the call site for diagnostics; it is never stored with the
// block. A zero size returns nil without touching the registry or the
// counters, as does allocator exhaustion.
func (t *Tracker) Alloc(size int, tag string) []byte {
	if size <= 0 {
		return nil
	}
	buf, mmapped := t.reserve(size, false)
	if buf == nil {
		t.conf.Logger.Printf("[memtrack][alloc][error: out of memory][%s]", tag)
		return nil
	}
	t.record(buf, int64(size), mmapped, tag)
	t.audit("alloc", tag)
	return buf
}

// Calloc reserves a zero-filled block of n*size bytes. The registry record
// and the counters carry size, the element size, not the total block size.
// That reproduces the original cutils accounting, which undercounts for
// n > 1.
func (t *Tracker) Calloc(n, size int, tag string) []byte {
	if n <= 0 || size <= 0 {
		return nil
	}
	total := n * size
	if total/size != n {
		t.conf.Logger.Printf("[memtrack][calloc][error: size overflow][%s]", tag)
		return nil
	}
	buf, mmapped := t.reserve(total, true)
	if buf == nil {
		t.conf.Logger.Printf("[memtrack][calloc][error: out of memory][%s]", tag)
		return nil
	}
	t.record(buf, int64(size), mmapped, tag)
	t.audit("calloc", tag)
	return buf
}

// Realloc resizes b to size bytes, preserving content up to the smaller of
// the old and new sizes. A nil b acts as a fresh Alloc. A zero size returns
// b unchanged with no state change. On exhaustion nil is returned and b
// stays valid, still tracked and still owed a Free.
//
// The original cutils layer left the old registry record in place after a
// resize, double-counting live bytes. Realloc instead retires the old
// record and inserts a fresh one for the returned block; the deallocation
// counters are not touched for the retired record.
func (t *Tracker) Realloc(b []byte, size int, tag string) []byte {
	if cap(b) == 0 {
		// realloc(NULL, size) behaves as malloc(size).
		return t.Alloc(size, tag)
	}
	if size <= 0 {
		return b
	}
	addr := addrOf(b)
	t.mu.Lock()
	old, tracked := t.reg.get(addr)
	oldMmapped := tracked && old.mmapped
	t.mu.Unlock()

	useMmap := t.conf.MmapThreshold > 0 && int64(size) >= t.conf.MmapThreshold
	var nb []byte
	var mmapped bool
	if oldMmapped || useMmap {
		// Crossing in or out of the mmap path; je_realloc can not move a
		// block between the two, so copy by hand.
		nb, mmapped = t.reserve(size, false)
		if nb != nil {
			copy(nb, b)
			if oldMmapped {
				if err := z.Munmap(b); err != nil {
					t.conf.Logger.Printf("[memtrack][realloc][error: %v][%s]", err, tag)
				}
			} else {
				z.Free(b)
			}
		}
	} else {
		nb = z.Realloc(b, size)
	}
	if nb == nil {
		t.conf.Logger.Printf("[memtrack][realloc][error: out of memory][%s]", tag)
		return nil
	}

	t.mu.Lock()
	if tracked {
		t.reg.remove(addr)
	}
	t.reg.insert(addrOf(nb), int64(size), nb, mmapped)
	t.mu.Unlock()

	hash := farm.Fingerprint64([]byte(tag))
	t.Metrics.add(allocs, hash, 1)
	t.Metrics.add(heapAdd, hash, uint64(size))
	t.Metrics.trackTag(tag, uint64(size))
	t.Metrics.trackSize(int64(size))
	t.audit("realloc", tag)
	return nb
}

// Free releases b back to the system allocator and retires its registry
// record. It reports whether a live record was found; false means a double
// free or an untracked pointer and should not be silently ignored. The
// memory is released even when no record matches, so an untracked block is
// not leaked, but the registry and counters stay untouched.
func (t *Tracker) Free(b []byte, tag string) bool {
	if cap(b) == 0 {
		return false
	}
	t.mu.Lock()
	blk, ok := t.reg.remove(addrOf(b))
	t.mu.Unlock()

	if ok {
		hash := farm.Fingerprint64([]byte(tag))
		t.Metrics.add(deallocs, hash, 1)
		t.Metrics.add(heapFree, hash, uint64(blk.size))
	}
	if ok && blk.mmapped {
		if err := z.Munmap(b); err != nil {
			t.conf.Logger.Printf("[memtrack][free][error: %v][%s]", err, tag)
		}
	} else {
		z.Free(b)
	}
	t.audit("free", tag)
	return ok
}

// ZeroInit zero-fills a stack- or caller-resident value before first use,
// the mem_declare helper of the C layer. It reports false for an empty buf
// with the counters untouched; otherwise the stack-initialized counter
// grows by len(buf). Heap usage is not affected.
func (t *Tracker) ZeroInit(buf []byte, tag string) bool {
	if len(buf) == 0 {
		return false
	}
	clear(buf)
	t.Metrics.add(stackInit, farm.Fingerprint64([]byte(tag)), uint64(len(buf)))
	t.audit("declare", tag)
	return true
}

// Size returns the recorded size of a live block, or -1 when b is not
// tracked.
func (t *Tracker) Size(b []byte) int64 {
	if cap(b) == 0 {
		return -1
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if blk, ok := t.reg.get(addrOf(b)); ok {
		return blk.size
	}
	return -1
}

// NumLive returns the number of blocks currently recorded in the registry.
func (t *Tracker) NumLive() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reg.len()
}

// Report returns a point-in-time copy of the usage counters.
func (t *Tracker) Report() Report {
	return t.Metrics.Report()
}

// Leaks summarizes the blocks still live in the registry, most recently
// allocated first.
func (t *Tracker) Leaks() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.reg.len() == 0 {
		return "NO leaks."
	}
	var total int64
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Allocations:\n")
	t.reg.walk(func(b *block) bool {
		total += b.size
		fmt.Fprintf(&buf, "  0x%x: %s\n", b.addr, humanize.IBytes(uint64(b.size)))
		return true
	})
	fmt.Fprintf(&buf, "Total live: %d blocks, %s\n",
		t.reg.len(), humanize.IBytes(uint64(total)))
	return buf.String()
}

// reserve delegates to the system allocator, routing big blocks through
// anonymous mmap when a threshold is configured. Mapped memory is always
// zero-filled by the kernel.
func (t *Tracker) reserve(size int, zeroed bool) ([]byte, bool) {
	if th := t.conf.MmapThreshold; th > 0 && int64(size) >= th {
		if buf, err := z.Mmap(size); err == nil {
			return buf, true
		}
		// Fall back to the allocator when the mapping fails.
	}
	if zeroed {
		return z.Calloc(size), false
	}
	return z.Malloc(size), false
}

func (t *Tracker) record(buf []byte, size int64, mmapped bool, tag string) {
	t.mu.Lock()
	t.reg.insert(addrOf(buf), size, buf, mmapped)
	t.mu.Unlock()

	hash := farm.Fingerprint64([]byte(tag))
	t.Metrics.add(allocs, hash, 1)
	t.Metrics.add(heapAdd, hash, uint64(size))
	t.Metrics.trackTag(tag, uint64(size))
	t.Metrics.trackSize(size)
}

func (t *Tracker) audit(op, tag string) {
	if !t.conf.Instrumented {
		return
	}
	t.conf.Logger.Printf("[memtrack][%s][%s]", op, tag)
}
