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

import "fmt"

// probeSeq drives a Map's group-by-group probe traversal, walking groups
// linearly: group, group+1, group+2, ... (mod numGroups). This is what
// makes the stopping condition in find ("stop at the first group containing
// an empty slot") sound -- insertion never skips a group when placing an
// entry on its probe chain.
type probeSeq struct {
	groupMask uintptr // numGroups - 1
	group     uintptr // current group index
}

// makeProbeSeq starts a probe at the group selected by h1, the high bits of
// the key's hash.
func makeProbeSeq(h1, groupMask uintptr) probeSeq {
	return probeSeq{groupMask: groupMask, group: h1 & groupMask}
}

// next advances to the next group in the sequence.
func (s probeSeq) next() probeSeq {
	s.group = (s.group + 1) & s.groupMask
	return s
}

// offset is the index of the first slot in the current group.
func (s probeSeq) offset() uintptr {
	return s.group * groupSize
}

func (s probeSeq) String() string {
	return fmt.Sprintf("group=%d groupMask=%d", s.group, s.groupMask)
}

// h1 extracts the high bits of a hash, which select the starting group.
func h1(h uint64) uintptr {
	return uintptr(h >> 7)
}

// h2 extracts the low 7 bits of a hash, the in-slot fingerprint stored in
// the control byte of a FULL slot.
func h2(h uint64) uintptr {
	return uintptr(h & 0x7f)
}
