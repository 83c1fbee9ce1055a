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
	"math/bits"
)

// debug gates verbose probe tracing. Flip to true (or fork with a build
// tag) when chasing a probe-length regression; find and uncheckedPut below
// narrate their probe start and chosen slot through debugf.
const debug = false

func debugf(format string, args ...any) {
	if debug {
		fmt.Printf(format, args...)
	}
}

// Slot holds one key/value pair. It is exposed so that a custom Allocator
// can size its own storage correctly.
type Slot[K comparable, V any] struct {
	Key   K
	Value V
}

// Map is an open-addressing, single-threaded associative container from
// keys of type K to values of type V. It is not safe for concurrent use.
type Map[K comparable, V any] struct {
	ctrls []ctrl
	slots []Slot[K, V]

	// groupMask is numGroups-1; capacity is always (groupMask+1)*groupSize.
	groupMask uintptr

	numEntries    int
	numTombstones int

	hash      HashFunc[K]
	equal     EqualFunc[K]
	allocator Allocator[K, V]
}

// New constructs a Map with at least capacity slots: capacity is rounded up
// to a power of two, and to at least the implementation minimum
// (groupSize). Because of the 7/8 maximum load factor, the table holds at
// most 7/8 of that many entries before its first rehash.
func New[K comparable, V any](capacity int, opts ...Option[K, V]) *Map[K, V] {
	m := &Map[K, V]{
		hash:      defaultHash[K](),
		equal:     defaultEqual[K](),
		allocator: defaultAllocator[K, V]{},
	}
	for _, op := range opts {
		op.apply(m)
	}

	numSlots := nextPow2(uint64(capacity))
	if numSlots < groupSize {
		numSlots = groupSize
	}
	m.allocate(numSlots)
	return m
}

// allocate replaces the Map's storage with freshly allocated, all-empty
// arrays sized for numSlots slots. numSlots must be a power of two and a
// multiple of groupSize.
func (m *Map[K, V]) allocate(numSlots uintptr) {
	m.ctrls = m.allocator.AllocControls(int(numSlots))
	for i := range m.ctrls {
		m.ctrls[i] = ctrlEmpty
	}
	m.slots = m.allocator.AllocSlots(int(numSlots))
	m.groupMask = numSlots/groupSize - 1
	m.numEntries = 0
	m.numTombstones = 0
}

// Close releases the Map's storage back to its Allocator. It is only
// necessary when a non-default Allocator was supplied.
func (m *Map[K, V]) Close() {
	if len(m.slots) > 0 {
		m.allocator.FreeSlots(m.slots)
		m.allocator.FreeControls(m.ctrls)
	}
	m.slots = nil
	m.ctrls = nil
	m.groupMask = 0
	m.numEntries = 0
	m.numTombstones = 0
}

func (m *Map[K, V]) capacity() uintptr {
	return (m.groupMask + 1) * groupSize
}

// Len returns the number of entries in the map.
func (m *Map[K, V]) Len() int { return m.numEntries }

// Size is an alias for Len.
func (m *Map[K, V]) Size() int { return m.numEntries }

// Empty reports whether the map has no entries.
func (m *Map[K, V]) Empty() bool { return m.numEntries == 0 }

// BucketCount returns N, the current capacity in slots.
func (m *Map[K, V]) BucketCount() int { return int(m.capacity()) }

// LoadFactor returns (num_entries + num_tombstones) / N.
func (m *Map[K, V]) LoadFactor() float64 {
	return float64(m.numEntries+m.numTombstones) / float64(m.capacity())
}

// MaxLoadFactor returns the fixed 7/8 design ratio. It is not
// user-settable.
func (m *Map[K, V]) MaxLoadFactor() float64 {
	return float64(maxAvgGroupLoad) / float64(groupSize)
}

// Stats reports introspection data useful for diagnosing churn behavior --
// in particular, whether num_tombstones / N is staying bounded.
type Stats struct {
	Size                    int
	Capacity                int
	Tombstones              int
	TombstonesCapacityRatio float64
}

// Stats returns a snapshot of the Map's size and tombstone bookkeeping.
func (m *Map[K, V]) Stats() Stats {
	c := int(m.capacity())
	var ratio float64
	if c > 0 {
		ratio = float64(m.numTombstones) / float64(c)
	}
	return Stats{
		Size:                    m.numEntries,
		Capacity:                c,
		Tombstones:              m.numTombstones,
		TombstonesCapacityRatio: ratio,
	}
}

// find returns the index of key's slot, or ok=false if key is absent. The
// loop advances one group at a time (g <- (g+1) mod numGroups) and stops
// the instant a group contains an empty slot: if key were present, its
// probe chain could not have skipped over that empty slot during
// insertion.
func (m *Map[K, V]) find(key K) (index uintptr, ok bool) {
	h := m.hash(key)
	seq := makeProbeSeq(h1(h), m.groupMask)
	fp := h2(h)
	debugf("find(%v): %s\n", key, seq)

	for {
		g := groupAt(m.ctrls, seq.offset())
		match := g.matchH2(fp)
		for match != 0 {
			bit := match.first()
			i := seq.offset() + bit
			if m.equal(m.slots[i].Key, key) {
				return i, true
			}
			match = match.clear(bit)
		}
		if g.matchEmpty() != 0 {
			return 0, false
		}
		seq = seq.next()
	}
}

// Find returns an Iterator positioned at key's slot, and ok=true, or a
// zero Iterator and ok=false if key is absent.
func (m *Map[K, V]) Find(key K) (Iterator[K, V], bool) {
	i, ok := m.find(key)
	if !ok {
		return Iterator[K, V]{}, false
	}
	return Iterator[K, V]{m: m, index: i}, true
}

// Contains reports whether key is present.
func (m *Map[K, V]) Contains(key K) bool {
	_, ok := m.find(key)
	return ok
}

// Count returns 1 if key is present, 0 otherwise.
func (m *Map[K, V]) Count(key K) int {
	if m.Contains(key) {
		return 1
	}
	return 0
}

// At returns the value mapped to key, or ErrNotFound if key is absent.
func (m *Map[K, V]) At(key K) (V, error) {
	i, ok := m.find(key)
	if !ok {
		var zero V
		return zero, ErrNotFound
	}
	return m.slots[i].Value, nil
}

// Value returns a pointer to the value mapped to key, inserting a
// zero-valued entry first if key is absent. The returned pointer is
// invalidated by any operation that may rehash.
func (m *Map[K, V]) Value(key K) *V {
	i, _ := m.emplace(key)
	return &m.slots[i].Value
}

// Insert inserts (key, value) if key is absent, and reports whether it did.
// It never overwrites an existing entry -- Insert(k,v1) then Insert(k,v2)
// leaves the value at k equal to v1. Use Set for overwrite-on-exists
// semantics.
func (m *Map[K, V]) Insert(key K, value V) bool {
	i, inserted := m.emplace(key)
	if inserted {
		m.slots[i].Value = value
	}
	return inserted
}

// Emplace is semantically identical to Insert: Go has no piecewise
// in-place construction, so there is no distinct behavior to add. It exists
// so callers porting code from a C++-style emplace/try_emplace API have a
// directly corresponding name.
func (m *Map[K, V]) Emplace(key K, value V) bool {
	return m.Insert(key, value)
}

// TryEmplace mirrors std::unordered_map::try_emplace: like Insert, it never
// overwrites an existing entry.
func (m *Map[K, V]) TryEmplace(key K, value V) bool {
	return m.Insert(key, value)
}

// Set inserts (key, value), overwriting any existing value at key. This is
// an overwrite-on-exists convenience distinct from the non-overwriting
// Insert/Emplace/TryEmplace family.
func (m *Map[K, V]) Set(key K, value V) (inserted bool) {
	if i, ok := m.find(key); ok {
		m.slots[i].Value = value
		return false
	}
	i, _ := m.emplaceAbsent(key)
	m.slots[i].Value = value
	return true
}

// emplace handles a key that may or may not already be present: find
// first; only probe for a fresh slot (and possibly grow/rehash) if the key
// was absent.
func (m *Map[K, V]) emplace(key K) (index uintptr, inserted bool) {
	if i, ok := m.find(key); ok {
		return i, false
	}
	return m.emplaceAbsent(key)
}

// emplaceAbsent handles a key known absent. It grows the table first if
// doing so is required to stay under the max load factor, then places key
// in the first available slot reached by a fresh probe from its start
// group.
func (m *Map[K, V]) emplaceAbsent(key K) (index uintptr, inserted bool) {
	if uintptr(m.numEntries+m.numTombstones+1) > m.capacity()*maxAvgGroupLoad/groupSize {
		m.rehashTo(m.growthCapacityFor(m.numEntries + 1))
	}

	h := m.hash(key)
	i := m.uncheckedPut(h, key)
	return i, true
}

// uncheckedPut places a key known not to already be in the table into the
// first available slot on its probe chain: always the lowest bit index
// within the first group that shows any available bit. It does not check
// for an existing match, and is also used by rehash to relocate entries
// that are by construction unique.
func (m *Map[K, V]) uncheckedPut(h uint64, key K) uintptr {
	seq := makeProbeSeq(h1(h), m.groupMask)
	for {
		g := groupAt(m.ctrls, seq.offset())
		if match := g.matchAvailable(); match != 0 {
			bit := match.first()
			i := seq.offset() + bit
			if m.ctrls[i] == ctrlTombstone {
				m.numTombstones--
			}
			m.ctrls[i] = ctrl(h2(h))
			m.slots[i] = Slot[K, V]{Key: key}
			m.numEntries++
			debugf("put(%v): index=%d\n", key, i)
			return i
		}
		seq = seq.next()
	}
}

// Erase removes key from the map, returning true if it was present.
func (m *Map[K, V]) Erase(key K) bool {
	i, ok := m.find(key)
	if !ok {
		return false
	}
	m.eraseAt(i)
	return true
}

// EraseIterator removes the entry at it. it must have come from Find on
// this same Map without an intervening operation that may have rehashed.
func (m *Map[K, V]) EraseIterator(it Iterator[K, V]) {
	if it.m != m {
		panic("swiss: Iterator does not belong to this Map")
	}
	m.eraseAt(it.index)
}

// eraseAt destroys the pair at index, then reclaims the slot as EMPTY if
// its group already has an empty slot (a probe would stop in this group
// regardless), otherwise leaves a TOMBSTONE so later probes still traverse
// past this slot to reach entries further down the chain.
func (m *Map[K, V]) eraseAt(index uintptr) {
	m.slots[index] = Slot[K, V]{}

	groupBase := index - index%groupSize
	g := groupAt(m.ctrls, groupBase)
	if g.matchEmpty() != 0 {
		m.ctrls[index] = ctrlEmpty
	} else {
		m.ctrls[index] = ctrlTombstone
		m.numTombstones++
	}
	m.numEntries--
}

// growthCapacityFor picks a rehash target capacity such that num_entries
// sits well below the 7/8 threshold afterward: ceil(entries * 32/24) + 1,
// rounded up to a power of two, at least groupSize.
func (m *Map[K, V]) growthCapacityFor(entries int) uintptr {
	n := (uint64(entries)*32 + 23) / 24
	c := nextPow2(n + 1)
	if c < groupSize {
		c = groupSize
	}
	return c
}

// rehashTo reallocates to newCapacity slots and reinserts every live entry:
// allocate fresh, move FULL slots over by their hash (no equality check
// needed -- keys are unique), then swap and release the old storage.
// Tombstones are purged: num_tombstones is 0 immediately after.
func (m *Map[K, V]) rehashTo(newCapacity uintptr) {
	oldCtrls, oldSlots := m.ctrls, m.slots
	oldCapacity := m.capacity()

	m.ctrls = m.allocator.AllocControls(int(newCapacity))
	for i := range m.ctrls {
		m.ctrls[i] = ctrlEmpty
	}
	m.slots = m.allocator.AllocSlots(int(newCapacity))
	m.groupMask = newCapacity/groupSize - 1
	m.numTombstones = 0
	m.numEntries = 0

	for i := uintptr(0); i < oldCapacity; i++ {
		if !oldCtrls[i].isFull() {
			continue
		}
		key := oldSlots[i].Key
		h := m.hash(key)
		j := m.uncheckedPut(h, key)
		m.slots[j].Value = oldSlots[i].Value
	}

	if oldCapacity > 0 {
		m.allocator.FreeSlots(oldSlots)
		m.allocator.FreeControls(oldCtrls)
	}
}

// Reserve ensures the map can hold n entries in total without another
// rehash, rehashing now if the projected load factor would otherwise cross
// the 7/8 threshold: (n + tombstones) * 8 > capacity * 7.
func (m *Map[K, V]) Reserve(n int) {
	if (uintptr(n)+uintptr(m.numTombstones))*groupSize > m.capacity()*maxAvgGroupLoad {
		m.rehashTo(m.growthCapacityFor(n))
	}
}

// Rehash resizes the table to at least n slots (rounded up to a power of
// two, at least groupSize, and at least enough to hold the current entries
// under the max load factor). Calling Rehash again with an n that does not
// exceed the resulting capacity is a no-op on both contents and capacity.
func (m *Map[K, V]) Rehash(n int) {
	target := m.growthCapacityFor(m.numEntries)
	want := nextPow2(uint64(n))
	if want < groupSize {
		want = groupSize
	}
	if want > target {
		target = want
	}
	if target <= m.capacity() {
		return
	}
	m.rehashTo(target)
}

// Clear removes every entry, equivalent to swapping in a freshly
// constructed empty table of the same capacity.
func (m *Map[K, V]) Clear() {
	for i := range m.slots {
		m.slots[i] = Slot[K, V]{}
	}
	for i := range m.ctrls {
		m.ctrls[i] = ctrlEmpty
	}
	m.numEntries = 0
	m.numTombstones = 0
}

// Swap exchanges the contents of m and other in constant time.
func (m *Map[K, V]) Swap(other *Map[K, V]) {
	m.ctrls, other.ctrls = other.ctrls, m.ctrls
	m.slots, other.slots = other.slots, m.slots
	m.groupMask, other.groupMask = other.groupMask, m.groupMask
	m.numEntries, other.numEntries = other.numEntries, m.numEntries
	m.numTombstones, other.numTombstones = other.numTombstones, m.numTombstones
	m.hash, other.hash = other.hash, m.hash
	m.equal, other.equal = other.equal, m.equal
	m.allocator, other.allocator = other.allocator, m.allocator
}

// Clone returns a new Map holding the same entries, sized to this Map's
// live entry count (not a byte-wise copy of the backing arrays), using the
// same hasher, equality predicate and allocator.
func (m *Map[K, V]) Clone() *Map[K, V] {
	dst := &Map[K, V]{
		hash:      m.hash,
		equal:     m.equal,
		allocator: m.allocator,
	}
	dst.allocate(dst.growthCapacityFor(m.numEntries))
	for i := range m.ctrls {
		if !m.ctrls[i].isFull() {
			continue
		}
		s := m.slots[i]
		h := dst.hash(s.Key)
		j := dst.uncheckedPut(h, s.Key)
		dst.slots[j].Value = s.Value
	}
	return dst
}

// All calls yield sequentially for each key and value present in the map,
// in unspecified order. If yield returns false, All stops early. This
// follows the range-over-function iteration convention
// (https://github.com/golang/go/issues/61897).
func (m *Map[K, V]) All(yield func(key K, value V) bool) {
	for i := range m.ctrls {
		if m.ctrls[i].isFull() {
			s := m.slots[i]
			if !yield(s.Key, s.Value) {
				return
			}
		}
	}
}

// nextPow2 returns the smallest power of two >= v, or 1 if v <= 1.
func nextPow2(v uint64) uintptr {
	if v <= 1 {
		return 1
	}
	return uintptr(1) << bits.Len64(v-1)
}
