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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMetricsAddGet(t *testing.T) {
	m := newMetrics()
	m.add(allocs, 1, 1)
	m.add(allocs, 7, 2)
	m.add(heapAdd, 1, 128)
	require.Equal(t, uint64(3), m.Allocs())
	require.Equal(t, uint64(128), m.BytesAdded())
	require.Equal(t, uint64(0), m.Deallocs())
}

func TestMetricsNil(t *testing.T) {
	var m *Metrics
	m.add(allocs, 0, 1)
	require.Equal(t, uint64(0), m.get(allocs))
	require.Equal(t, "", m.String())
	require.Nil(t, m.SizeHistogram())
	m.Clear()
}

func TestMetricsClear(t *testing.T) {
	m := newMetrics()
	m.add(allocs, 3, 5)
	m.add(stackInit, 3, 64)
	m.trackTag("test", 64)
	m.trackSize(64)

	m.Clear()
	require.Equal(t, Report{}, m.Report())
	numAllocs, numBytes := m.TagMetrics("test")
	require.Equal(t, uint64(0), numAllocs)
	require.Equal(t, uint64(0), numBytes)
	require.Equal(t, int64(0), m.SizeHistogram().Count)
}

func TestMetricsString(t *testing.T) {
	m := newMetrics()
	m.add(allocs, 0, 2)
	m.add(heapAdd, 0, 2048)

	s := m.String()
	require.Contains(t, s, "allocations: 2")
	require.Contains(t, s, "heap-added: 2.0 KiB")
	require.Contains(t, s, "deallocations: 0")
}

func TestStringFor(t *testing.T) {
	require.Equal(t, "allocations", stringFor(allocs))
	require.Equal(t, "stack-initialized", stringFor(stackInit))
	require.Equal(t, "unidentified", stringFor(doNotUse))
}

func TestReportString(t *testing.T) {
	r := Report{
		Allocations:    3,
		HeapBytesAdded: 1024,
	}
	s := r.String()
	require.Contains(t, s, "allocations: 3")
	require.Contains(t, s, "heap-added: 1.0 KiB")
}
