// Copyright 2018 The gVisor Authors.
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

// Package hostarch provides address and page-alignment primitives shared
// by every layer of the virtual memory subsystem.
package hostarch

// Addr is a virtual address.
type Addr uintptr

const (
	// PageShift is the binary log of the system page size.
	PageShift = 12

	// PageSize is the system page size.
	PageSize = 1 << PageShift

	// PageMask is a mask of the page offset bits.
	PageMask = PageSize - 1
)

// RoundDown rounds v down to the nearest page boundary.
func (v Addr) RoundDown() Addr {
	return v &^ PageMask
}

// RoundUp rounds v up to the nearest page boundary. ok is false if rounding
// up overflows.
func (v Addr) RoundUp() (addr Addr, ok bool) {
	rounded := (v + PageMask) &^ PageMask
	return rounded, rounded >= v
}

// IsPageAligned returns true if v is page-aligned.
func (v Addr) IsPageAligned() bool {
	return v&PageMask == 0
}

// PageOffset returns the offset of v into its containing page.
func (v Addr) PageOffset() uintptr {
	return uintptr(v & PageMask)
}

// MustRoundUpPageSize rounds size up to the nearest page-size multiple. ok
// is false if rounding up overflows.
func MustRoundUpPageSize(size uint64) (rounded uint64, ok bool) {
	r := (size + PageMask) &^ uint64(PageMask)
	return r, r >= size
}

// IsPageAlignedSize returns true if size is a page-size multiple.
func IsPageAlignedSize(size uint64) bool {
	return size&uint64(PageMask) == 0
}
