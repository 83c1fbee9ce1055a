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
	"math/bits"
	"strings"
	"unsafe"
)

// groupSize is the group width the control-byte scanner examines at once:
// one 8-byte word loaded from a group-aligned offset into ctrls, scanned
// with ordinary 64-bit arithmetic (SWAR -- SIMD within a register) rather
// than requiring real vector instructions. A width of 1 would also be
// correct but throws away the byte-parallelism an 8-byte load gives for
// free.
const groupSize = 8

// maxAvgGroupLoad is the numerator of the 7/8 maximum load ratio. A table
// with capacity N may hold at most N*maxAvgGroupLoad/groupSize
// live-or-tombstoned slots before a rehash is required.
const maxAvgGroupLoad = 7

const (
	// ctrlEmpty marks a slot that has never been occupied since the table's
	// last rehash, or was reclaimed by erase. High bit set, low 7 clear.
	ctrlEmpty ctrl = 0b1000_0000
	// ctrlTombstone marks a slot that was occupied and erased; probes must
	// continue past it. All bits set.
	ctrlTombstone ctrl = 0b1111_1111
)

const (
	bitsetLSB = 0x0101010101010101
	bitsetMSB = 0x8080808080808080
)

// ctrl is one control byte. Values in [0, 0x80) are FULL(h2); ctrlEmpty and
// ctrlTombstone are the two AVAILABLE sentinels. The high bit distinguishes
// available slots from occupied ones.
type ctrl uint8

func (c ctrl) isFull() bool {
	return c&0x80 == 0
}

func (c ctrl) isAvailable() bool {
	return c&0x80 != 0
}

// bitset is a mask over one group's groupSize control bytes, one bit (the
// high bit of each byte) per slot. It is produced by matchH2, matchEmpty
// and matchAvailable below and consumed by the probe loops in map.go and
// hash.go, which are the only code that interprets which bit means what.
type bitset uint64

// first returns the index, within the group, of the lowest set bit. Used to
// pick a slot deterministically: always the lowest bit index within the
// first group that shows any available bit.
func (b bitset) first() uintptr {
	return uintptr(bits.TrailingZeros64(uint64(b))) >> 3
}

// clear resets bit i (an index in [0, groupSize)), letting callers walk a
// match mask low-bit-first without recomputing it.
func (b bitset) clear(i uintptr) bitset {
	return b &^ (bitset(0x80) << (i << 3))
}

func (b bitset) String() string {
	var sb strings.Builder
	sb.Grow(groupSize)
	for i := 0; i < groupSize; i++ {
		if b&(bitset(0x80)<<(i<<3)) != 0 {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// unsafeGroup is a group-aligned view of groupSize consecutive control
// bytes, addressed as a single uint64. Given a pointer into ctrl, it
// answers "which of these 8 slots match h2" and "which of these 8 slots are
// available" using bit tricks over the loaded word rather than a
// byte-by-byte scan.
type unsafeGroup struct {
	ptr *ctrl
}

func groupAt(ctrls []ctrl, offset uintptr) unsafeGroup {
	return unsafeGroup{ptr: &ctrls[offset]}
}

func (g unsafeGroup) word() uint64 {
	return *(*uint64)(unsafe.Pointer(g.ptr))
}

// matchH2 returns matching(h2): bit i set iff slot i is FULL with
// fingerprint h2.
func (g unsafeGroup) matchH2(h2 uintptr) bitset {
	// This generic matching routine can produce a false-positive match when
	// h2 is 2^N and the control bytes contain a 2^N immediately followed by
	// 2^N+1; the subsequent key comparison absorbs the rare extra check, so
	// it is not a correctness concern.
	v := g.word() ^ (bitsetLSB * uint64(h2))
	return bitset(((v - bitsetLSB) &^ v) & bitsetMSB)
}

// matchEmpty returns empty(): bit i set iff slot i is exactly ctrlEmpty.
func (g unsafeGroup) matchEmpty() bitset {
	v := g.word()
	// empty    is 1000 0000
	// tombstone is 1111 1111
	// A slot is empty iff bit 7 is set and bit 0 is clear.
	return bitset((v &^ (v << 7)) & bitsetMSB)
}

// matchAvailable returns available(): bit i set iff slot i is empty or
// tombstone (high bit set).
func (g unsafeGroup) matchAvailable() bitset {
	return bitset(g.word() & bitsetMSB)
}
