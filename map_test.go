// Copyright 2024 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package swiss

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// toBuiltinMap snapshots the Map's contents into a map[K]V, useful for
// cross-checking against a reference implementation.
func (m *Map[K, V]) toBuiltinMap() map[K]V {
	r := make(map[K]V)
	m.All(func(k K, v V) bool {
		r[k] = v
		return true
	})
	return r
}

// randElement returns an arbitrary element of m, relying on All's
// unspecified order. ok is false only when m is empty.
func (m *Map[K, V]) randElement() (key K, value V, ok bool) {
	m.All(func(k K, v V) bool {
		key, value = k, v
		ok = true
		return false
	})
	return
}

func TestNewMinimumCapacity(t *testing.T) {
	testCases := []struct {
		capacity int
		want     int
	}{
		{0, groupSize},
		{1, groupSize},
		{groupSize, groupSize},
		{groupSize + 1, 2 * groupSize},
		{100, 128},
	}
	for _, c := range testCases {
		t.Run(fmt.Sprintf("capacity=%d", c.capacity), func(t *testing.T) {
			m := New[int, int](c.capacity)
			require.Equal(t, c.want, m.BucketCount())
			require.Equal(t, 0, m.Len())
			require.True(t, m.Empty())
		})
	}
}

func TestBasic(t *testing.T) {
	m := New[int, int](0)
	const count = 200

	e := make(map[int]int)
	for i := 0; i < count; i++ {
		_, err := m.At(i)
		require.ErrorIs(t, err, ErrNotFound)
		require.False(t, m.Contains(i))
		require.Equal(t, 0, m.Count(i))
	}

	// Insert.
	for i := 0; i < count; i++ {
		inserted := m.Insert(i, i+count)
		require.True(t, inserted)
		e[i] = i + count
		v, err := m.At(i)
		require.NoError(t, err)
		require.Equal(t, i+count, v)
		require.Equal(t, i+1, m.Len())
		require.Equal(t, e, m.toBuiltinMap())
	}

	// Insert never overwrites.
	for i := 0; i < count; i++ {
		inserted := m.Insert(i, -1)
		require.False(t, inserted)
		v, err := m.At(i)
		require.NoError(t, err)
		require.Equal(t, i+count, v)
	}

	// Set overwrites.
	for i := 0; i < count; i++ {
		inserted := m.Set(i, i+2*count)
		require.False(t, inserted)
		e[i] = i + 2*count
		v, err := m.At(i)
		require.NoError(t, err)
		require.Equal(t, i+2*count, v)
		require.Equal(t, count, m.Len())
	}
	require.Equal(t, e, m.toBuiltinMap())

	// Erase.
	for i := 0; i < count; i++ {
		require.True(t, m.Erase(i))
		delete(e, i)
		require.Equal(t, count-i-1, m.Len())
		require.False(t, m.Contains(i))
		require.Equal(t, e, m.toBuiltinMap())
	}
	require.True(t, m.Empty())

	// Erasing an absent key is a no-op reporting false.
	require.False(t, m.Erase(12345))
}

func TestValueOperator(t *testing.T) {
	m := New[string, int](0)
	*m.Value("a") = 1
	*m.Value("b") = 2
	*m.Value("a") += 10

	v, err := m.At("a")
	require.NoError(t, err)
	require.Equal(t, 11, v)
	v, err = m.At("b")
	require.NoError(t, err)
	require.Equal(t, 2, v)
	require.Equal(t, 2, m.Len())
}

func TestFindIterator(t *testing.T) {
	m := New[string, int](0)
	m.Insert("a", 1)

	it, ok := m.Find("a")
	require.True(t, ok)
	require.True(t, it.Valid())
	require.Equal(t, "a", it.Key())
	require.Equal(t, 1, it.Value())

	it.SetValue(42)
	v, err := m.At("a")
	require.NoError(t, err)
	require.Equal(t, 42, v)

	_, ok = m.Find("missing")
	require.False(t, ok)
}

func TestEraseIterator(t *testing.T) {
	m := New[string, int](0)
	m.Insert("a", 1)
	m.Insert("b", 2)

	it, ok := m.Find("a")
	require.True(t, ok)
	m.EraseIterator(it)
	require.False(t, m.Contains("a"))
	require.True(t, m.Contains("b"))
	require.Equal(t, 1, m.Len())
}

func TestEraseIteratorWrongMapPanics(t *testing.T) {
	m1 := New[string, int](0)
	m1.Insert("a", 1)
	m2 := New[string, int](0)
	m2.Insert("a", 1)

	it, ok := m1.Find("a")
	require.True(t, ok)

	require.Panics(t, func() {
		m2.EraseIterator(it)
	})
}

func TestLoadFactorNeverExceedsMax(t *testing.T) {
	m := New[int, int](0)
	for i := 0; i < 5000; i++ {
		m.Insert(i, i)
		require.LessOrEqual(t, m.LoadFactor(), m.MaxLoadFactor())
	}
}

func TestMaxLoadFactorIsFixed(t *testing.T) {
	m := New[int, int](0)
	require.Equal(t, 7.0/8.0, m.MaxLoadFactor())
}

func TestReserve(t *testing.T) {
	m := New[int, int](2)
	bucketCount := m.BucketCount()
	require.GreaterOrEqual(t, bucketCount, groupSize)

	m.Insert(1, 1)
	m.Insert(2, 2)

	m.Rehash(16)
	require.Equal(t, 16, m.BucketCount())

	m.Reserve(16)
	require.Equal(t, 32, m.BucketCount())

	// Contents survive every rehash.
	v, err := m.At(1)
	require.NoError(t, err)
	require.Equal(t, 1, v)
	v, err = m.At(2)
	require.NoError(t, err)
	require.Equal(t, 2, v)
}

func TestRehashIsIdempotentNoOp(t *testing.T) {
	m := New[int, int](0)
	for i := 0; i < 10; i++ {
		m.Insert(i, i)
	}
	m.Rehash(64)
	cap1 := m.BucketCount()
	before := m.toBuiltinMap()

	m.Rehash(16) // smaller than current capacity: no-op
	require.Equal(t, cap1, m.BucketCount())
	require.Equal(t, before, m.toBuiltinMap())
}

func TestClear(t *testing.T) {
	m := New[int, int](0)
	for i := 0; i < 1000; i++ {
		m.Insert(i, i)
	}
	bucketCount := m.BucketCount()
	m.Clear()
	require.Equal(t, 0, m.Len())
	require.True(t, m.Empty())
	require.Equal(t, bucketCount, m.BucketCount())
	m.All(func(k, v int) bool {
		require.Fail(t, "should not iterate over a cleared map")
		return true
	})

	// A cleared map accepts new entries normally.
	m.Insert(1, 1)
	v, err := m.At(1)
	require.NoError(t, err)
	require.Equal(t, 1, v)
}

func TestSwap(t *testing.T) {
	a := New[int, int](0)
	a.Insert(1, 1)
	b := New[int, int](0)
	b.Insert(2, 2)
	b.Insert(3, 3)

	a.Swap(b)
	require.Equal(t, 2, a.Len())
	require.True(t, a.Contains(2))
	require.True(t, a.Contains(3))
	require.Equal(t, 1, b.Len())
	require.True(t, b.Contains(1))
}

func TestClone(t *testing.T) {
	m := New[int, int](0)
	for i := 0; i < 50; i++ {
		m.Insert(i, i*i)
	}
	clone := m.Clone()
	require.Equal(t, m.toBuiltinMap(), clone.toBuiltinMap())

	clone.Insert(1000, 1000)
	require.False(t, m.Contains(1000))
}

func TestStats(t *testing.T) {
	m := New[int, int](0)
	for i := 0; i < 100; i++ {
		m.Insert(i, i)
	}
	for i := 0; i < 50; i++ {
		m.Erase(i)
	}
	stats := m.Stats()
	require.Equal(t, 50, stats.Size)
	require.Equal(t, m.BucketCount(), stats.Capacity)
	require.GreaterOrEqual(t, stats.Tombstones, 0)
	require.InDelta(t, float64(stats.Tombstones)/float64(stats.Capacity), stats.TombstonesCapacityRatio, 1e-9)
}

func TestCustomAllocatorClose(t *testing.T) {
	alloc := &countingAllocator[int, int]{}
	m := New[int, int](0, WithAllocator[int, int](alloc))
	for i := 0; i < 100; i++ {
		m.Insert(i, i)
	}
	require.Greater(t, alloc.allocSlots, 0)
	m.Close()
	require.Equal(t, alloc.allocSlots, alloc.freeSlots)
	require.Equal(t, alloc.allocControls, alloc.freeControls)
}

type countingAllocator[K comparable, V any] struct {
	allocSlots, freeSlots       int
	allocControls, freeControls int
}

func (a *countingAllocator[K, V]) AllocSlots(n int) []Slot[K, V] {
	a.allocSlots++
	return make([]Slot[K, V], n)
}

func (a *countingAllocator[K, V]) AllocControls(n int) []ctrl {
	a.allocControls++
	return make([]ctrl, n)
}

func (a *countingAllocator[K, V]) FreeSlots(v []Slot[K, V]) {
	a.freeSlots++
}

func (a *countingAllocator[K, V]) FreeControls(v []ctrl) {
	a.freeControls++
}

func TestRandomOperations(t *testing.T) {
	m := New[int, int](0)
	e := make(map[int]int)
	for i := 0; i < 20000; i++ {
		switch r := rand.Float64(); {
		case r < 0.45: // inserts
			k, v := rand.Intn(2000), rand.Int()
			inserted := m.Insert(k, v)
			if _, present := e[k]; !present {
				require.True(t, inserted)
				e[k] = v
			} else {
				require.False(t, inserted)
			}
		case r < 0.65: // overwrite via Set
			k, v := rand.Intn(2000), rand.Int()
			m.Set(k, v)
			e[k] = v
		case r < 0.85: // erases
			if k, _, ok := m.randElement(); ok {
				require.True(t, m.Erase(k))
				delete(e, k)
			}
		default: // lookups
			if k, v, ok := m.randElement(); ok {
				require.Equal(t, e[k], v)
			}
		}
		require.Equal(t, len(e), m.Len())
	}
	require.Equal(t, e, m.toBuiltinMap())
}

func TestIterateAll(t *testing.T) {
	m := New[int, int](0)
	want := make(map[int]int)
	for i := 0; i < 300; i++ {
		m.Insert(i, i*2)
		want[i] = i * 2
	}
	got := make(map[int]int)
	m.All(func(k, v int) bool {
		got[k] = v
		return true
	})
	require.Equal(t, want, got)
}

func TestIterateEarlyStop(t *testing.T) {
	m := New[int, int](0)
	for i := 0; i < 100; i++ {
		m.Insert(i, i)
	}
	count := 0
	m.All(func(k, v int) bool {
		count++
		return count < 10
	})
	require.Equal(t, 10, count)
}

func TestDegenerateHashAllCollide(t *testing.T) {
	// Every key maps to the same h1/h2: exercises the full length of the
	// probe chain for find, insert and erase.
	m := New[int, int](0, WithHash[int, int](func(int) uint64 { return 0 }))
	const count = 100
	e := make(map[int]int)
	for i := 0; i < count; i++ {
		m.Insert(i, i)
		e[i] = i
	}
	require.Equal(t, e, m.toBuiltinMap())
	for i := 0; i < count; i += 2 {
		require.True(t, m.Erase(i))
		delete(e, i)
	}
	require.Equal(t, e, m.toBuiltinMap())
}
