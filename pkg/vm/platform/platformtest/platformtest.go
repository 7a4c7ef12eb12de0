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

// Package platformtest provides minimal in-memory fakes for every
// collaborator interface in platform, for use by this module's own
// tests. None of these fakes are suitable for production: FakePageTable
// keeps no actual translations and FakeFrameSource never reclaims
// memory.
package platformtest

import (
	"context"
	"fmt"
	"sync"

	"duckvm.dev/duckvm/pkg/vm/platform"
)

// FakePageTable records every Map/Unmap call it receives, keyed by
// start address, so tests can assert on what was published.
type FakePageTable struct {
	mu       sync.Mutex
	Mappings map[uintptr]platform.MappingInfo
	MapErr   error // if non-nil, Map always fails with this error
}

// NewFakePageTable returns an empty FakePageTable.
func NewFakePageTable() *FakePageTable {
	return &FakePageTable{Mappings: make(map[uintptr]platform.MappingInfo)}
}

// Map implements platform.PageTable.
func (f *FakePageTable) Map(ctx context.Context, info platform.MappingInfo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.MapErr != nil {
		return f.MapErr
	}
	f.Mappings[uintptr(info.Start)] = info
	return nil
}

// Unmap implements platform.PageTable.
func (f *FakePageTable) Unmap(ctx context.Context, info platform.MappingInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Mappings, uintptr(info.Start))
}

// Count returns the number of mappings currently tracked.
func (f *FakePageTable) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Mappings)
}

// FakeFrameSource hands out monotonically increasing frame handles and
// never fails unless Exhausted is set.
type FakeFrameSource struct {
	mu        sync.Mutex
	next      uintptr
	Exhausted bool
}

// AllocFrame implements platform.PhysicalFrameSource.
func (f *FakeFrameSource) AllocFrame(ctx context.Context) (platform.FrameRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Exhausted {
		return platform.FrameRef{}, fmt.Errorf("platformtest: frame source exhausted")
	}
	f.next++
	return platform.FrameRef{Opaque: f.next}, nil
}

// FakeInode is a fixed-content, fixed-size in-memory inode.
type FakeInode struct {
	Content []byte
}

// Size implements platform.Inode.
func (f *FakeInode) Size() uint64 {
	return uint64(len(f.Content))
}

// ReadPage implements platform.Inode.
func (f *FakeInode) ReadPage(ctx context.Context, pageIndex uint64, dst []byte) error {
	start := pageIndex * uint64(len(dst))
	if start >= uint64(len(f.Content)) {
		for i := range dst {
			dst[i] = 0
		}
		return nil
	}
	n := copy(dst, f.Content[start:])
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
	return nil
}

// FakeFileTable resolves fds from a fixed, test-supplied map.
type FakeFileTable struct {
	Files map[int32]platform.Inode
}

// NewFakeFileTable returns a FakeFileTable that resolves each fd in
// files to the given inode.
func NewFakeFileTable(files map[int32]platform.Inode) *FakeFileTable {
	return &FakeFileTable{Files: files}
}

// Lookup implements platform.FileTable.
func (f *FakeFileTable) Lookup(fd int32) (platform.Inode, bool) {
	inode, ok := f.Files[fd]
	return inode, ok
}

// FakeProcessRegistry treats any pid in Live as resolvable.
type FakeProcessRegistry struct {
	Live map[int32]bool
}

// NewFakeProcessRegistry returns a registry where every pid in pids is live.
func NewFakeProcessRegistry(pids ...int32) *FakeProcessRegistry {
	live := make(map[int32]bool, len(pids))
	for _, p := range pids {
		live[p] = true
	}
	return &FakeProcessRegistry{Live: live}
}

// IsLive implements platform.ProcessRegistry.
func (f *FakeProcessRegistry) IsLive(pid int32) bool {
	return f.Live[pid]
}
