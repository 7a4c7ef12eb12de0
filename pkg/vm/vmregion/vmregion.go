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

// Package vmregion defines Region, the binding between a range of
// virtual addresses in one address space and a vmobject.Object.
package vmregion

import (
	"duckvm.dev/duckvm/pkg/hostarch"
	"duckvm.dev/duckvm/pkg/vm/vmobject"
	"duckvm.dev/duckvm/pkg/vm/vmprot"
)

// Region binds [Start, Start+Size) in one address space to Object at
// ObjectOffset. It holds a strong reference on Object for its entire
// lifetime, released by Destroy.
//
// Region has no back-pointer to its owning VMSpace and does not unmap
// itself: removing it from a space is done through the space
// (VMSpace.UnmapRegionAt or VMSpace.Destroy), and Destroy only releases
// the object reference.
type Region struct {
	Start        hostarch.Addr
	Size         uint64
	Object       vmobject.Object
	ObjectOffset uint64
	Prot         vmprot.Prot
}

// New creates a Region over object starting at objectOffset, taking a
// strong reference on object.
func New(start hostarch.Addr, size uint64, object vmobject.Object, objectOffset uint64, prot vmprot.Prot) *Region {
	object.IncRef()
	return &Region{
		Start:        start,
		Size:         size,
		Object:       object,
		ObjectOffset: objectOffset,
		Prot:         prot,
	}
}

// End returns the exclusive upper bound of the region.
func (r *Region) End() hostarch.Addr {
	return r.Start + hostarch.Addr(r.Size)
}

// SetProt records a new protection for r. It does not itself touch
// the page table; the caller (VMSpace) is responsible for
// re-invoking platform.PageTable.Map after updating Prot.
func (r *Region) SetProt(prot vmprot.Prot) {
	r.Prot = prot
}

// Destroy releases the region's reference on its object. The region
// must not be used afterward.
func (r *Region) Destroy() {
	r.Object.DecRef()
	r.Object = nil
}
