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

// Package platform defines the narrow capabilities the virtual memory
// subsystem uses but never implements: the page table / MMU driver, the
// physical frame allocator, filesystem inodes, and the task manager's
// process registry.
//
// Every type here is a consumer-defined interface; production
// implementations live outside this module (in the MMU driver, the
// frame allocator, the filesystem, and the task manager respectively).
// platformtest provides minimal fakes for this module's own tests.
package platform

import (
	"context"

	"duckvm.dev/duckvm/pkg/hostarch"
	"duckvm.dev/duckvm/pkg/vm/vmprot"
)

// MappingInfo is everything a PageTable needs to publish or withdraw a
// mapping. It is a value type rather than a pointer to a region so that
// this package has no dependency on vmregion, and vmregion has none on
// platform.
type MappingInfo struct {
	// Start and Size describe the virtual range being mapped, both
	// page-aligned.
	Start hostarch.Addr
	Size  uint64

	// Prot is the protection to publish.
	Prot vmprot.Prot

	// ObjectID identifies the backing object for logging/debugging; it
	// carries no semantic weight for the PageTable itself.
	ObjectID string
}

// PageTable is the MMU driver's capability to publish or withdraw
// mappings for one address space. The real implementation edits
// hardware page-table entries.
type PageTable interface {
	// Map publishes info as native mappings. The VMSpace lock is held
	// for the duration of this call: implementations must not call
	// back into the VMSpace.
	Map(ctx context.Context, info MappingInfo) error

	// Unmap withdraws any native mappings over info's range. Must not
	// fail: by the time a region is unmapped its VMSpace has already
	// committed to removing it.
	Unmap(ctx context.Context, info MappingInfo)
}

// FrameRef identifies one physical frame. Its internals belong entirely
// to the physical frame allocator.
type FrameRef struct {
	// Opaque is the frame allocator's own handle; this module never
	// interprets it.
	Opaque uintptr
}

// PhysicalFrameSource is the physical frame allocator's capability to
// hand out zero-filled frames for anonymous objects' lazy allocation.
type PhysicalFrameSource interface {
	AllocFrame(ctx context.Context) (FrameRef, error)
}

// Inode is the filesystem's capability for an inode-backed VMObject to
// fetch pages.
type Inode interface {
	// Size returns the inode's current size in bytes.
	Size() uint64

	// ReadPage fills dst (exactly one page) with the contents of the
	// inode at the given page index, reading through to the filesystem
	// on a cache miss.
	ReadPage(ctx context.Context, pageIndex uint64, dst []byte) error
}

// ProcessRegistry is the task manager's capability to validate process
// identifiers, used by shmallow to reject a pid that does not resolve
// to a live process.
type ProcessRegistry interface {
	IsLive(pid int32) bool
}

// FileTable is the task manager's capability to resolve a process's
// file descriptor to the inode-backed file it names, used by mmap
// without MAP_ANONYMOUS. This module never opens or closes descriptors
// itself; it only queries the table it's given.
type FileTable interface {
	// Lookup returns the inode fd names in the calling process, or false
	// if fd does not name an open, inode-backed file.
	Lookup(fd int32) (Inode, bool)
}
