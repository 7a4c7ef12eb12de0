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

// Package vmobject implements the two backing-object kinds a VMRegion
// can bind to: Anonymous, a lazily-frame-backed object that can be
// shared across process address spaces under a registry id, and Inode,
// a read-through wrapper around a filesystem inode. Both satisfy
// Object.
package vmobject

import (
	"context"
	"sync"

	"duckvm.dev/duckvm/pkg/errors/kernerr"
	"duckvm.dev/duckvm/pkg/hostarch"
	"duckvm.dev/duckvm/pkg/klog"
	vmsync "duckvm.dev/duckvm/pkg/sync"
	"duckvm.dev/duckvm/pkg/sync/locking"
	"duckvm.dev/duckvm/pkg/vm/platform"
	"duckvm.dev/duckvm/pkg/vm/refcount"
	"duckvm.dev/duckvm/pkg/vm/vmprot"
)

// registryLockClass sits below a VMSpace's own lock in the documented
// order: a VMSpace may acquire the registry lock while holding its
// own, but the registry must never call back into a space while
// holding it.
var registryLockClass = locking.NewMutexClass("vmobject.Registry", 1)

// Object is anything a VMRegion can bind to: an address-independent
// source of pages, reference counted by the regions that map it.
type Object interface {
	// IncRef adds a strong reference.
	IncRef()

	// DecRef drops a strong reference, destroying the object's
	// physical backing once the count reaches zero.
	DecRef()

	// Fault resolves a page fault at the given page index into the
	// object (page 0, 1, 2, ...), returning the physical frame backing
	// it. The frame may be shared with other mappings of the same object.
	Fault(ctx context.Context, pageOffset uint64) (platform.FrameRef, error)

	// Size returns the object's extent in bytes.
	Size() uint64
}

// Anonymous is a lazily-allocated, zero-fill-on-demand object. Pages
// are not committed until first touched, and committed pages are
// shared by every region that maps the same Anonymous instance
// (private-copy semantics are a VMRegion-level concern via COW, not
// this object's).
type Anonymous struct {
	refcount.AtomicRefCount

	size   uint64
	frames platform.PhysicalFrameSource

	mu     sync.Mutex
	byPage map[uint64]platform.FrameRef
}

// NewAnonymous creates a size-byte anonymous object with no frames
// committed yet.
func NewAnonymous(size uint64, frames platform.PhysicalFrameSource) *Anonymous {
	return &Anonymous{
		size:   size,
		frames: frames,
		byPage: make(map[uint64]platform.FrameRef),
	}
}

// Size implements Object.
func (a *Anonymous) Size() uint64 {
	return a.size
}

// Fault implements Object, committing a fresh zero frame on first
// touch of pageOffset and returning the same frame on every subsequent
// call.
func (a *Anonymous) Fault(ctx context.Context, pageOffset uint64) (platform.FrameRef, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if f, ok := a.byPage[pageOffset]; ok {
		return f, nil
	}
	f, err := a.frames.AllocFrame(ctx)
	if err != nil {
		return platform.FrameRef{}, kernerr.ENOMEM
	}
	a.byPage[pageOffset] = f
	return f, nil
}

// DecRef overrides the embedded AtomicRefCount.DecRef to release the
// object's committed frames once the last reference drops.
func (a *Anonymous) DecRef() {
	a.AtomicRefCount.DecRefWithDestructor(func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.byPage = nil
	})
}

// Inode wraps a filesystem inode as an Object. A faulted page is read
// through to the inode once and cached for the object's lifetime: the
// first Fault for a given page index calls platform.Inode.ReadPage and
// commits a frame for it; every later Fault for that index returns the
// same frame without touching the inode again. There is no write-back:
// the cached content, held in dirty, is never flushed, matching the
// non-goal of omitting a full page cache.
type Inode struct {
	refcount.AtomicRefCount

	inode  platform.Inode
	frames platform.PhysicalFrameSource

	mu     sync.Mutex
	byPage map[uint64]platform.FrameRef
	dirty  map[uint64][]byte
}

// NewInode wraps inode as an Object, reading through to it on fault and
// committing pages to frames from frames.
func NewInode(inode platform.Inode, frames platform.PhysicalFrameSource) *Inode {
	return &Inode{
		inode:  inode,
		frames: frames,
		byPage: make(map[uint64]platform.FrameRef),
		dirty:  make(map[uint64][]byte),
	}
}

// Size implements Object.
func (i *Inode) Size() uint64 {
	return i.inode.Size()
}

// Fault implements Object, reading pageOffset through from the
// underlying inode on first touch and returning the same committed
// frame on every subsequent call.
func (i *Inode) Fault(ctx context.Context, pageOffset uint64) (platform.FrameRef, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if f, ok := i.byPage[pageOffset]; ok {
		return f, nil
	}

	buf := make([]byte, hostarch.PageSize)
	if err := i.inode.ReadPage(ctx, pageOffset, buf); err != nil {
		klog.Warningf("vmobject: Inode.Fault(%d) read failed: %v", pageOffset, err)
		return platform.FrameRef{}, kernerr.EIO
	}
	f, err := i.frames.AllocFrame(ctx)
	if err != nil {
		return platform.FrameRef{}, kernerr.ENOMEM
	}
	i.byPage[pageOffset] = f
	i.dirty[pageOffset] = buf
	return f, nil
}

// DecRef overrides the embedded AtomicRefCount.DecRef to drop the
// object's cached pages once the last reference drops.
func (i *Inode) DecRef() {
	i.AtomicRefCount.DecRefWithDestructor(func() {
		i.mu.Lock()
		defer i.mu.Unlock()
		i.byPage = nil
		i.dirty = nil
	})
}

// Registry is the process-wide table of anonymous objects shared via
// shmcreate/shmattach, along with each object's sharing table: the
// per-pid protection a caller is allowed to attach with, granted via
// shmallow. It is explicitly constructed rather than a package-level
// singleton so tests can run with isolated state.
type Registry struct {
	frames platform.PhysicalFrameSource

	mu      *vmsync.Mutex
	nextID  uint64
	objects map[uint64]*Anonymous
	allowed map[uint64]map[int32]vmprot.Prot
}

// NewRegistry creates an empty shared-object registry backed by frames.
func NewRegistry(frames platform.PhysicalFrameSource) *Registry {
	return &Registry{
		frames:  frames,
		mu:      vmsync.NewMutex(registryLockClass),
		objects: make(map[uint64]*Anonymous),
		allowed: make(map[uint64]map[int32]vmprot.Prot),
	}
}

// Create allocates a new shared anonymous object of the given size,
// owned initially by no process but visible to any pid later allowed
// in via Allow. The creating process must call Allow for its own pid
// (or any pid it intends to let attach) before attach can succeed.
func (r *Registry) Create(size uint64) (id uint64, obj *Anonymous) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id = r.nextID
	obj = NewAnonymous(size, r.frames)
	r.objects[id] = obj
	r.allowed[id] = make(map[int32]vmprot.Prot)
	return id, obj
}

// Allow grants pid permission to attach to id with the given
// protection, overwriting any entry already recorded for pid.
func (r *Registry) Allow(id uint64, pid int32, prot vmprot.Prot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	allowed, ok := r.allowed[id]
	if !ok {
		return kernerr.ENOENT
	}
	allowed[pid] = prot
	return nil
}

// Get returns the shared object for id and the protection pid was
// granted via Allow. A nonexistent id and a permission denial both
// report ENOENT, deliberately not distinguished to an unprivileged
// caller.
func (r *Registry) Get(id uint64, pid int32) (*Anonymous, vmprot.Prot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	obj, ok := r.objects[id]
	if !ok {
		return nil, vmprot.Prot{}, kernerr.ENOENT
	}
	prot, ok := r.allowed[id][pid]
	if !ok {
		return nil, vmprot.Prot{}, kernerr.ENOENT
	}
	return obj, prot, nil
}

// Forget drops the registry's own reference to id, taken implicitly at
// Create, for use once the last region mapping it has gone away and no
// further attaches are possible. Forget is a no-op if id is unknown,
// so a failed Create followed by Forget is always safe.
func (r *Registry) Forget(id uint64) {
	r.mu.Lock()
	obj, ok := r.objects[id]
	delete(r.objects, id)
	delete(r.allowed, id)
	r.mu.Unlock()

	if ok {
		obj.DecRef()
	}
}
