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
	"bytes"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/dustin/go-humanize"

	"github.com/derriclyns/memtrack/z"
)

type metricType int

const (
	// The following 2 keep track of how many operations inserted and removed
	// registry records.
	allocs = iota
	deallocs
	// The following 2 keep track of bytes added to and freed from the heap.
	heapAdd
	heapFree
	// This keeps track of bytes zero-initialized in place by ZeroInit.
	stackInit
	// This should be the final enum. Other enums should be set before this.
	doNotUse
)

func stringFor(t metricType) string {
	switch t {
	case allocs:
		return "allocations"
	case deallocs:
		return "deallocations"
	case heapAdd:
		return "heap-added"
	case heapFree:
		return "heap-freed"
	case stackInit:
		return "stack-initialized"
	default:
		return "unidentified"
	}
}

// Metrics holds the usage counters for the lifetime of a tracker instance.
type Metrics struct {
	all [doNotUse][]*uint64

	mu    sync.RWMutex
	sizes *z.HistogramData // Distribution of requested block sizes.
	tags  map[uint64]*tagMetrics
}

// tagMetrics aggregates the allocation activity of one provenance tag.
type tagMetrics struct {
	Tag    string
	Allocs uint64
	Bytes  uint64
}

func newMetrics() *Metrics {
	s := &Metrics{
		sizes: z.NewHistogramData(z.HistogramBounds(3, 30)),
		tags:  make(map[uint64]*tagMetrics),
	}
	for i := 0; i < doNotUse; i++ {
		s.all[i] = make([]*uint64, 256)
		slice := s.all[i]
		for j := range slice {
			slice[j] = new(uint64)
		}
	}
	return s
}

func (p *Metrics) add(t metricType, hash, delta uint64) {
	if p == nil {
		return
	}
	valp := p.all[t]
	// Avoid false sharing by padding at least 64 bytes of space between two
	// atomic counters which would be incremented.
	idx := (hash % 25) * 10
	atomic.AddUint64(valp[idx], delta)
}

func (p *Metrics) get(t metricType) uint64 {
	if p == nil {
		return 0
	}
	valp := p.all[t]
	var total uint64
	for i := range valp {
		total += atomic.LoadUint64(valp[i])
	}
	return total
}

// Allocs is the number of Alloc, Calloc and Realloc calls that inserted a
// registry record.
func (p *Metrics) Allocs() uint64 {
	return p.get(allocs)
}

// Deallocs is the number of Free calls that found and retired a registry
// record.
func (p *Metrics) Deallocs() uint64 {
	return p.get(deallocs)
}

// BytesAdded is the sum of recorded sizes over all successful allocation
// calls. A Realloc counts its new size again; nothing is ever subtracted.
func (p *Metrics) BytesAdded() uint64 {
	return p.get(heapAdd)
}

// BytesFreed is the sum of recorded sizes over all matched Free calls.
func (p *Metrics) BytesFreed() uint64 {
	return p.get(heapFree)
}

// StackInitialized is the sum of sizes zero-filled in place via ZeroInit.
func (p *Metrics) StackInitialized() uint64 {
	return p.get(stackInit)
}

func (p *Metrics) trackSize(size int64) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.sizes.Update(size)
	p.mu.Unlock()
}

func (p *Metrics) trackTag(tag string, size uint64) {
	if p == nil || tag == "" {
		return
	}
	h := xxhash.Sum64String(tag)
	p.mu.Lock()
	tm := p.tags[h]
	if tm == nil {
		tm = &tagMetrics{Tag: tag}
		p.tags[h] = tm
	}
	tm.Allocs++
	tm.Bytes += size
	p.mu.Unlock()
}

// TagMetrics returns the number of allocations and the bytes recorded for
// one provenance tag.
func (p *Metrics) TagMetrics(tag string) (numAllocs, numBytes uint64) {
	if p == nil {
		return 0, 0
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	tm := p.tags[xxhash.Sum64String(tag)]
	if tm == nil {
		return 0, 0
	}
	return tm.Allocs, tm.Bytes
}

// SizeHistogram returns a copy of the requested-size distribution.
func (p *Metrics) SizeHistogram() *z.HistogramData {
	if p == nil {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sizes.Copy()
}

// Clear resets all counters, per-tag aggregates and the size histogram.
func (p *Metrics) Clear() {
	if p == nil {
		return
	}
	for i := 0; i < doNotUse; i++ {
		for j := range p.all[i] {
			atomic.StoreUint64(p.all[i][j], 0)
		}
	}
	p.mu.Lock()
	p.sizes = z.NewHistogramData(z.HistogramBounds(3, 30))
	p.tags = make(map[uint64]*tagMetrics)
	p.mu.Unlock()
}

// Report is a point-in-time copy of the usage counters, exactly as last
// updated, with no rounding or derived computation.
type Report struct {
	Allocations           uint64
	Deallocations         uint64
	HeapBytesAdded        uint64
	HeapBytesFreed        uint64
	StackBytesInitialized uint64
}

// Report snapshots the counters. It has no side effects; two calls with no
// operations in between return identical values.
func (p *Metrics) Report() Report {
	return Report{
		Allocations:           p.get(allocs),
		Deallocations:         p.get(deallocs),
		HeapBytesAdded:        p.get(heapAdd),
		HeapBytesFreed:        p.get(heapFree),
		StackBytesInitialized: p.get(stackInit),
	}
}

func (r Report) String() string {
	return fmt.Sprintf(
		"allocations: %d deallocations: %d heap-added: %s heap-freed: %s stack-initialized: %s",
		r.Allocations, r.Deallocations,
		humanize.IBytes(r.HeapBytesAdded), humanize.IBytes(r.HeapBytesFreed),
		humanize.IBytes(r.StackBytesInitialized))
}

// String returns a string representation of the metrics.
func (p *Metrics) String() string {
	if p == nil {
		return ""
	}
	var buf bytes.Buffer
	for i := 0; i < doNotUse; i++ {
		t := metricType(i)
		switch t {
		case heapAdd, heapFree, stackInit:
			fmt.Fprintf(&buf, "%s: %s ", stringFor(t), humanize.IBytes(p.get(t)))
		default:
			fmt.Fprintf(&buf, "%s: %d ", stringFor(t), p.get(t))
		}
	}
	return buf.String()
}
