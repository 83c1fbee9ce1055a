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

// Package swiss is a single-threaded, in-memory associative container
// mapping keys of type K to values of type V, built around an
// open-addressing "control byte" table in the style popularized by
// Abseil's SwissTable and the original rigtorp/HashMap2 design.
//
// # Layout
//
// A Map holds two parallel arrays: a slots array of key/value pairs and a
// ctrls array of one control byte per slot. Control bytes come in three
// flavors:
//
//	   empty:     1 0 0 0 0 0 0 0
//	   tombstone: 1 1 1 1 1 1 1 1
//	   full:      0 h h h h h h h   // h is the low 7 bits of hash(key)
//
// The high bit distinguishes available slots (empty or tombstone) from
// occupied ones (full), which is what lets the group scanner compare 8
// control bytes at a time using ordinary 64-bit arithmetic (SWAR -- SIMD
// Within A Register) instead of requiring real vector instructions.
//
// # Probing
//
// Unlike Abseil's quadratic group-level probing, this port uses the linear
// group advance of the original C++ source: starting from the group
// selected by the high bits of hash(key), probing proceeds
// group, group+1, group+2, ... (mod number of groups) until a group
// containing an empty slot is found. That stopping rule is sound only
// because insertion never leaves a gap: every key's home group is reachable
// from its start group without crossing an empty slot (see find in
// map.go).
//
// # Growth
//
// A Map never exceeds a load factor of 7/8 (entries plus tombstones over
// capacity). Insertion that would cross that threshold triggers a rehash
// into a freshly allocated table sized from the live entry count alone;
// when most of the load was tombstones, the new table can be the same size
// as the old one or smaller. Tombstones are purged on every rehash.
//
// # Concurrency
//
// A Map is not safe for concurrent use. All operations must run on a single
// goroutine, or be externally synchronized.
package swiss
