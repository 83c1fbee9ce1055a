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

import "errors"

// ErrNotFound is returned by At (and AtAs) when the requested key is
// absent. It is a sentinel value so callers can distinguish a miss from a
// key legitimately mapped to the zero value, by comparing with errors.Is.
var ErrNotFound = errors.New("swiss: key not found")
