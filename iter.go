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

// Iterator is a lightweight reference to a single slot, returned by Find
// and consumed by EraseIterator. Like any pointer into a Map's storage, an
// Iterator is invalidated by any operation on that Map that may rehash --
// Insert, Emplace, TryEmplace, Set, Value, Reserve, Rehash, or Clear/Swap.
// Using an Iterator after such an operation is a contract violation, not a
// recoverable error.
//
// The zero Iterator is not valid for any Map; it is what Find returns
// alongside ok=false.
type Iterator[K comparable, V any] struct {
	m     *Map[K, V]
	index uintptr
}

// Valid reports whether it was produced by a successful Find (the zero
// Iterator is never Valid). It does not detect invalidation by a later
// operation on the Map.
func (it Iterator[K, V]) Valid() bool {
	return it.m != nil
}

// Key returns the key at it's slot.
func (it Iterator[K, V]) Key() K {
	return it.m.slots[it.index].Key
}

// Value returns the value at it's slot.
func (it Iterator[K, V]) Value() V {
	return it.m.slots[it.index].Value
}

// SetValue overwrites the value at it's slot in place, without touching
// the control byte or probe position -- the one mutation that does not
// risk invalidating other iterators into the same Map.
func (it Iterator[K, V]) SetValue(v V) {
	it.m.slots[it.index].Value = v
}
