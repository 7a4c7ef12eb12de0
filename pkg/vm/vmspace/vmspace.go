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

// Package vmspace implements VMSpace, the per-process address space:
// a RangeMap tracking which addresses are in use, an ordered list of
// the Regions bound into those addresses, and the page table those
// regions are published to.
package vmspace

import (
	"context"
	"sort"

	"duckvm.dev/duckvm/pkg/errors/kernerr"
	"duckvm.dev/duckvm/pkg/hostarch"
	"duckvm.dev/duckvm/pkg/klog"
	vmsync "duckvm.dev/duckvm/pkg/sync"
	"duckvm.dev/duckvm/pkg/sync/locking"
	"duckvm.dev/duckvm/pkg/vm/platform"
	"duckvm.dev/duckvm/pkg/vm/rangemap"
	"duckvm.dev/duckvm/pkg/vm/vmobject"
	"duckvm.dev/duckvm/pkg/vm/vmprot"
	"duckvm.dev/duckvm/pkg/vm/vmregion"
)

// spaceLockClass is the coarsest class in the documented lock order:
// every other lock acquired while holding a VMSpace's lock (the shared
// object registry's lock, an object's own permissions lock) must be
// ranked strictly after it.
var spaceLockClass = locking.NewMutexClass("vmspace.VMSpace", 0)

// DefaultProt is the read/write/execute protection a VMSpace's owner
// may use for mappings. No function in this package applies it
// implicitly: every mapping call takes an explicit protection.
var DefaultProt = vmprot.Default

// VMSpace is one process's virtual address space.
type VMSpace struct {
	mu *vmsync.RWMutex

	ranges    *rangemap.RangeMap
	regions   []*vmregion.Region // sorted by Start; non-overlapping by construction
	pageTable platform.PageTable
}

// New creates a VMSpace covering [start, start+size), publishing
// mappings through pageTable.
func New(start hostarch.Addr, size uint64, pageTable platform.PageTable) *VMSpace {
	return &VMSpace{
		mu:        vmsync.NewRWMutex(spaceLockClass),
		ranges:    rangemap.New(start, size),
		pageTable: pageTable,
	}
}

func (s *VMSpace) insertRegion(r *vmregion.Region) {
	idx := sort.Search(len(s.regions), func(i int) bool { return s.regions[i].Start >= r.Start })
	s.regions = append(s.regions, nil)
	copy(s.regions[idx+1:], s.regions[idx:])
	s.regions[idx] = r
}

func (s *VMSpace) removeRegionAt(start hostarch.Addr) *vmregion.Region {
	for i, r := range s.regions {
		if r.Start == start {
			s.regions = append(s.regions[:i], s.regions[i+1:]...)
			return r
		}
	}
	return nil
}

func (s *VMSpace) findRegion(addr hostarch.Addr) *vmregion.Region {
	for _, r := range s.regions {
		if r.Start <= addr && addr < r.End() {
			return r
		}
	}
	return nil
}

func (s *VMSpace) mappingInfo(r *vmregion.Region) platform.MappingInfo {
	return platform.MappingInfo{
		Start: r.Start,
		Size:  r.Size,
		Prot:  r.Prot,
	}
}

// MapObject allocates size bytes of unused address space, binds object
// into it at the given object offset and protection, and publishes the
// mapping. It locks s.mu.Lock for its duration, the space lock being
// the outermost in the documented order.
func (s *VMSpace) MapObject(ctx context.Context, size uint64, object vmobject.Object, objectOffset uint64, prot vmprot.Prot) (hostarch.Addr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	addr, err := s.ranges.Alloc(size)
	if err != nil {
		return 0, err
	}
	return s.bind(ctx, addr, size, object, objectOffset, prot)
}

// MapObjectAt is MapObject with a caller-chosen fixed address. addr
// must be page-aligned; a zero addr combined with a fixed placement
// request is rejected by the syscall layer before reaching here, since
// this package has no notion of "hint vs. fixed."
func (s *VMSpace) MapObjectAt(ctx context.Context, addr hostarch.Addr, size uint64, object vmobject.Object, objectOffset uint64, prot vmprot.Prot) (hostarch.Addr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	got, err := s.ranges.AllocAt(addr, size)
	if err != nil {
		return 0, err
	}
	return s.bind(ctx, got, size, object, objectOffset, prot)
}

// bind constructs a region over [addr, addr+size) and hands it to the
// page table. A page-table map failure is treated as fatal: it implies
// a kernel-side allocator shortfall inconsistent with the RangeMap
// having just granted the range, so the allocation is unwound and
// ENOMEM is reported regardless of the page table's own error.
func (s *VMSpace) bind(ctx context.Context, addr hostarch.Addr, size uint64, object vmobject.Object, objectOffset uint64, prot vmprot.Prot) (hostarch.Addr, error) {
	r := vmregion.New(addr, size, object, objectOffset, prot)
	if err := s.pageTable.Map(ctx, s.mappingInfo(r)); err != nil {
		klog.Warningf("vmspace: page table rejected map of [%#x, %#x): %v", addr, addr+hostarch.Addr(size), err)
		s.ranges.Free(addr, size)
		r.Destroy()
		return 0, kernerr.ENOMEM
	}
	s.insertRegion(r)
	return addr, nil
}

// ReserveRegion marks [addr, addr+size) as used without binding any
// object, for loader placements that only need the range withheld from
// future allocation.
func (s *VMSpace) ReserveRegion(addr hostarch.Addr, size uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ranges.Reserve(addr, size)
}

// GetRegion returns the region starting exactly at addr, or ENOENT if
// no mapping starts there — a strict-start lookup, not a containment
// test. A mid-region address, even one inside a live mapping, is
// ENOENT just like an address outside every mapping.
func (s *VMSpace) GetRegion(addr hostarch.Addr) (*vmregion.Region, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r := s.findRegion(addr)
	if r == nil || r.Start != addr {
		return nil, kernerr.ENOENT
	}
	return r, nil
}

// RegionByObject returns the region in this space bound to object, or
// ENOENT if none is. Used by the shared-memory detach path, where the
// caller only has the shared object's id, not the address it mapped it
// at.
func (s *VMSpace) RegionByObject(object vmobject.Object) (*vmregion.Region, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.regions {
		if r.Object == object {
			return r, nil
		}
	}
	return nil, kernerr.ENOENT
}

// UnmapRegionAt withdraws the mapping starting exactly at addr,
// releasing the address range and the region's object reference.
func (s *VMSpace) UnmapRegionAt(ctx context.Context, addr hostarch.Addr) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.removeRegionAt(addr)
	if r == nil {
		return kernerr.ENOENT
	}
	s.pageTable.Unmap(ctx, s.mappingInfo(r))
	s.ranges.Free(r.Start, r.Size)
	r.Destroy()
	return nil
}

// Mprotect republishes the region starting exactly at addr with a new
// protection, remapping it through the page table.
func (s *VMSpace) Mprotect(ctx context.Context, addr hostarch.Addr, prot vmprot.Prot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.findRegion(addr)
	if r == nil || r.Start != addr {
		return kernerr.ENOENT
	}
	r.SetProt(prot)
	return s.pageTable.Map(ctx, s.mappingInfo(r))
}

// Destroy tears down every region in the space, in ascending address
// order, releasing their object references and withdrawing their
// mappings.
func (s *VMSpace) Destroy(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.regions {
		s.pageTable.Unmap(ctx, s.mappingInfo(r))
		r.Destroy()
	}
	s.regions = nil
}
