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

// Package vmsyscall implements the process-facing entry points:
// shmcreate, shmattach, shmdetach, shmallow, mmap, munmap and
// mprotect, each as a method on Process.
package vmsyscall

import (
	"context"

	"duckvm.dev/duckvm/pkg/errors/kernerr"
	"duckvm.dev/duckvm/pkg/hostarch"
	"duckvm.dev/duckvm/pkg/klog"
	"duckvm.dev/duckvm/pkg/vm/platform"
	"duckvm.dev/duckvm/pkg/vm/vmobject"
	"duckvm.dev/duckvm/pkg/vm/vmprot"
	"duckvm.dev/duckvm/pkg/vm/vmspace"
)

// Process bundles the per-process state the syscall layer operates on:
// its address space, a handle to the shared-object registry, and the
// running byte counters used to answer accounting queries without
// walking every region on every call.
type Process struct {
	Pid  int32
	Name string

	Space    *vmspace.VMSpace
	Registry *vmobject.Registry
	Procs    platform.ProcessRegistry
	Frames   platform.PhysicalFrameSource
	Files    platform.FileTable

	UsedPmem  uint64
	UsedShmem uint64
}

// NewProcess creates a Process with a fresh address space covering
// [spaceStart, spaceStart+spaceSize), sharing registry, procs, frames
// and files with the rest of the system. frames backs private
// MAP_ANONYMOUS objects this process creates through Mmap; files
// resolves the file descriptors Mmap is given for everything else.
func NewProcess(pid int32, name string, spaceStart hostarch.Addr, spaceSize uint64, pageTable platform.PageTable, registry *vmobject.Registry, procs platform.ProcessRegistry, frames platform.PhysicalFrameSource, files platform.FileTable) *Process {
	return &Process{
		Pid:      pid,
		Name:     name,
		Space:    vmspace.New(spaceStart, spaceSize, pageTable),
		Registry: registry,
		Procs:    procs,
		Frames:   frames,
		Files:    files,
	}
}

// ShmCreate creates a new anonymous shared object of size bytes,
// grants the creating process permission to attach to it, and maps it
// into the creator's own address space: exactly at addr if fixed is
// true (addr must then be non-zero and page-aligned), otherwise at the
// lowest free address, ignoring addr.
func (p *Process) ShmCreate(ctx context.Context, addr hostarch.Addr, size uint64, fixed bool, prot vmprot.Prot) (id uint64, mapped hostarch.Addr, err error) {
	if size == 0 || !hostarch.IsPageAlignedSize(size) {
		return 0, 0, kernerr.EINVAL
	}
	if fixed && (addr == 0 || !addr.IsPageAligned()) {
		return 0, 0, kernerr.EINVAL
	}

	id, obj := p.Registry.Create(size)
	if err := p.Registry.Allow(id, p.Pid, vmprot.RW); err != nil {
		p.Registry.Forget(id)
		return 0, 0, err
	}

	if fixed {
		mapped, err = p.Space.MapObjectAt(ctx, addr, size, obj, 0, prot)
	} else {
		mapped, err = p.Space.MapObject(ctx, size, obj, 0, prot)
	}
	if err != nil {
		p.Registry.Forget(id)
		return 0, 0, err
	}

	p.UsedShmem += size
	return id, mapped, nil
}

// ShmAttach maps the shared object identified by id into the calling
// process's address space under the protection this process was
// granted via ShmAllow, failing with ENOENT if id does not exist or
// this process has not been granted permission at all. A missing
// object and a permission denial are deliberately indistinguishable,
// to keep a caller from probing for valid ids.
func (p *Process) ShmAttach(ctx context.Context, id uint64) (hostarch.Addr, error) {
	obj, prot, err := p.Registry.Get(id, p.Pid)
	if err != nil {
		return 0, err
	}

	addr, err := p.Space.MapObject(ctx, obj.Size(), obj, 0, prot)
	if err != nil {
		return 0, err
	}
	p.UsedShmem += obj.Size()
	return addr, nil
}

// ShmDetach unmaps the region bound to the shared object identified by
// id, wherever in this process's address space it was mapped, and
// purges the object from the registry if this was the last real
// attach (the registry's own founding reference is the only one
// left).
func (p *Process) ShmDetach(ctx context.Context, id uint64) error {
	obj, _, err := p.Registry.Get(id, p.Pid)
	if err != nil {
		klog.Warningf("shmdetach() for %s(%d) failed.", p.Name, p.Pid)
		return err
	}
	r, err := p.Space.RegionByObject(obj)
	if err != nil {
		klog.Warningf("shmdetach() for %s(%d) failed.", p.Name, p.Pid)
		return err
	}
	size := r.Size
	if err := p.Space.UnmapRegionAt(ctx, r.Start); err != nil {
		return err
	}
	p.UsedShmem -= size

	if obj.ReadRefs() == 1 {
		p.Registry.Forget(id)
	}
	return nil
}

// ShmAllow grants pid permission to attach to the shared object
// identified by id with the given protection. perms must request at
// least read or write; write-only and re-delegation (share) requests
// are rejected with EINVAL, as is a pid the task manager does not
// recognize as live. The permission actually recorded always has
// Execute and COW cleared, regardless of what perms sets.
//
// TODO: sharing allowed regions that this process didn't itself
// create (re-delegation) is unimplemented; share is accepted as a
// parameter solely so callers get EINVAL instead of a missing method.
func (p *Process) ShmAllow(id uint64, pid int32, perms vmprot.Prot, share bool) error {
	if !perms.Read && !perms.Write {
		return kernerr.EINVAL
	}
	if perms.Write && !perms.Read {
		return kernerr.EINVAL
	}
	if share {
		return kernerr.EINVAL
	}
	if p.Procs != nil && !p.Procs.IsLive(pid) {
		return kernerr.EINVAL
	}
	return p.Registry.Allow(id, pid, vmprot.Prot{Read: perms.Read, Write: perms.Write})
}

// Mmap maps size bytes into the process's address space. If anonymous
// is true the mapping is backed by a private, zero-fill Anonymous
// object of its own (never registered in the shared registry);
// otherwise fd must name an open, inode-backed file resolved through
// Files, and the mapping is backed by that inode at objectOffset. A
// fd that does not resolve fails with EBADF. If fixed is true, addr
// is used exactly and must be page-aligned and non-zero; otherwise
// addr is treated as an unenforced placement hint and a hint that is
// ultimately ignored is logged, not silently dropped.
func (p *Process) Mmap(ctx context.Context, addr hostarch.Addr, size uint64, prot vmprot.Prot, fixed bool, anonymous bool, fd int32, objectOffset uint64) (hostarch.Addr, error) {
	if size == 0 || !hostarch.IsPageAlignedSize(size) {
		return 0, kernerr.EINVAL
	}

	var object vmobject.Object
	if anonymous {
		object = vmobject.NewAnonymous(size, p.Frames)
	} else {
		if p.Files == nil {
			return 0, kernerr.EBADF
		}
		inode, ok := p.Files.Lookup(fd)
		if !ok {
			return 0, kernerr.EBADF
		}
		object = vmobject.NewInode(inode, p.Frames)
	}

	if fixed {
		if addr == 0 || !addr.IsPageAligned() {
			return 0, kernerr.EINVAL
		}
		got, err := p.Space.MapObjectAt(ctx, addr, size, object, objectOffset, prot)
		if err != nil {
			return 0, err
		}
		p.UsedPmem += size
		return got, nil
	}

	if addr != 0 {
		klog.Warningf("mmap requested address without MAP_FIXED!")
	}
	got, err := p.Space.MapObject(ctx, size, object, objectOffset, prot)
	if err != nil {
		return 0, err
	}
	p.UsedPmem += size
	return got, nil
}

// Munmap withdraws the mapping occupying exactly [addr, addr+length);
// partial unmap of a sub-range is not supported, so a length that
// doesn't match the region found at addr fails with ENOENT rather
// than splitting it. Munmap is the counterpart of Mmap, which always
// adds to UsedPmem regardless of what kind of object backs the
// mapping; shared-memory bookkeeping belongs to ShmDetach alone.
func (p *Process) Munmap(ctx context.Context, addr hostarch.Addr, length uint64) error {
	r, err := p.Space.GetRegion(addr)
	if err != nil || r.Size != length {
		klog.Warningf("memrelease() for %s(%d) failed.", p.Name, p.Pid)
		if err == nil {
			err = kernerr.ENOENT
		}
		return err
	}
	size := r.Size

	if err := p.Space.UnmapRegionAt(ctx, addr); err != nil {
		return err
	}
	p.UsedPmem -= size
	return nil
}

// Mprotect republishes the region starting exactly at addr under a new
// protection.
func (p *Process) Mprotect(ctx context.Context, addr hostarch.Addr, prot vmprot.Prot) error {
	if err := p.Space.Mprotect(ctx, addr, prot); err != nil {
		klog.Warningf("mprotect() for %s(%d) failed.", p.Name, p.Pid)
		return err
	}
	return nil
}
