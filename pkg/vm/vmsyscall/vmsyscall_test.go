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

package vmsyscall

import (
	"context"
	"testing"

	"duckvm.dev/duckvm/pkg/errors/kernerr"
	"duckvm.dev/duckvm/pkg/vm/platform"
	"duckvm.dev/duckvm/pkg/vm/platform/platformtest"
	"duckvm.dev/duckvm/pkg/vm/vmobject"
	"duckvm.dev/duckvm/pkg/vm/vmprot"
)

func newTestProcess(pid int32, name string) *Process {
	registry := vmobject.NewRegistry(&platformtest.FakeFrameSource{})
	procs := platformtest.NewFakeProcessRegistry(1, 2, 3)
	frames := &platformtest.FakeFrameSource{}
	files := platformtest.NewFakeFileTable(nil)
	return NewProcess(pid, name, 0x1000, 0x100000, platformtest.NewFakePageTable(), registry, procs, frames, files)
}

func TestShareAndAttach(t *testing.T) {
	creator := newTestProcess(1, "creator")
	attacher := newTestProcess(2, "attacher")
	attacher.Registry = creator.Registry // same registry, distinct address spaces

	id, addr, err := creator.ShmCreate(context.Background(), 0, 0x1000, false, vmprot.RW)
	if err != nil {
		t.Fatalf("ShmCreate failed: %v", err)
	}
	if addr == 0 {
		t.Fatalf("ShmCreate returned zero address")
	}
	if creator.UsedShmem != 0x1000 {
		t.Errorf("creator.UsedShmem = %#x, want 0x1000", creator.UsedShmem)
	}

	if _, err := attacher.ShmAttach(context.Background(), id); err != kernerr.ENOENT {
		t.Fatalf("ShmAttach before ShmAllow = %v, want ENOENT", err)
	}

	if err := creator.ShmAllow(id, attacher.Pid, vmprot.RW, false); err != nil {
		t.Fatalf("ShmAllow failed: %v", err)
	}

	if _, err := attacher.ShmAttach(context.Background(), id); err != nil {
		t.Fatalf("ShmAttach failed: %v", err)
	}
	if attacher.UsedShmem != 0x1000 {
		t.Errorf("attacher.UsedShmem = %#x, want 0x1000", attacher.UsedShmem)
	}

	if err := attacher.ShmDetach(context.Background(), id); err != nil {
		t.Fatalf("ShmDetach failed: %v", err)
	}
	if attacher.UsedShmem != 0 {
		t.Errorf("attacher.UsedShmem after detach = %#x, want 0", attacher.UsedShmem)
	}

	if _, _, err := creator.Registry.Get(id, creator.Pid); err != nil {
		t.Fatalf("creator's object forgotten after attacher's detach: Get = %v", err)
	}

	if err := creator.ShmDetach(context.Background(), id); err != nil {
		t.Fatalf("creator ShmDetach failed: %v", err)
	}
	if _, _, err := creator.Registry.Get(id, creator.Pid); err != kernerr.ENOENT {
		t.Fatalf("Registry.Get after last detach = %v, want ENOENT (entry should be purged)", err)
	}
}

func TestShmAllowRejectsDeadPid(t *testing.T) {
	creator := newTestProcess(1, "creator")
	id, _, err := creator.ShmCreate(context.Background(), 0, 0x1000, false, vmprot.RW)
	if err != nil {
		t.Fatalf("ShmCreate failed: %v", err)
	}
	if err := creator.ShmAllow(id, 999, vmprot.RW, false); err != kernerr.EINVAL {
		t.Fatalf("ShmAllow(dead pid) = %v, want EINVAL", err)
	}
}

func TestShmAllowRejectsWriteOnly(t *testing.T) {
	creator := newTestProcess(1, "creator")
	id, _, err := creator.ShmCreate(context.Background(), 0, 0x1000, false, vmprot.RW)
	if err != nil {
		t.Fatalf("ShmCreate failed: %v", err)
	}
	if err := creator.ShmAllow(id, 2, vmprot.Prot{Write: true}, false); err != kernerr.EINVAL {
		t.Fatalf("ShmAllow(write-only) = %v, want EINVAL", err)
	}
}

func TestShmAllowRejectsShare(t *testing.T) {
	creator := newTestProcess(1, "creator")
	id, _, err := creator.ShmCreate(context.Background(), 0, 0x1000, false, vmprot.RW)
	if err != nil {
		t.Fatalf("ShmCreate failed: %v", err)
	}
	if err := creator.ShmAllow(id, 2, vmprot.RW, true); err != kernerr.EINVAL {
		t.Fatalf("ShmAllow(share) = %v, want EINVAL", err)
	}
}

func TestMunmapExactMatch(t *testing.T) {
	p := newTestProcess(1, "proc")
	addr, err := p.Mmap(context.Background(), 0, 0x1000, vmprot.RW, false, true, -1, 0)
	if err != nil {
		t.Fatalf("Mmap failed: %v", err)
	}
	if p.UsedPmem != 0x1000 {
		t.Errorf("UsedPmem = %#x, want 0x1000", p.UsedPmem)
	}

	if err := p.Munmap(context.Background(), addr+0x100, 0x1000); err != kernerr.ENOENT {
		t.Fatalf("Munmap(mid-region) = %v, want ENOENT", err)
	}

	if err := p.Munmap(context.Background(), addr, 0x500); err != kernerr.ENOENT {
		t.Fatalf("Munmap(wrong length) = %v, want ENOENT", err)
	}

	if err := p.Munmap(context.Background(), addr, 0x1000); err != nil {
		t.Fatalf("Munmap(exact) failed: %v", err)
	}
	if p.UsedPmem != 0 {
		t.Errorf("UsedPmem after munmap = %#x, want 0", p.UsedPmem)
	}
}

func TestMprotectRepublishes(t *testing.T) {
	p := newTestProcess(1, "proc")
	addr, err := p.Mmap(context.Background(), 0, 0x1000, vmprot.RO, false, true, -1, 0)
	if err != nil {
		t.Fatalf("Mmap failed: %v", err)
	}

	if err := p.Mprotect(context.Background(), addr, vmprot.RW); err != nil {
		t.Fatalf("Mprotect failed: %v", err)
	}
	r, err := p.Space.GetRegion(addr)
	if err != nil {
		t.Fatalf("GetRegion failed: %v", err)
	}
	if r.Prot != vmprot.RW {
		t.Errorf("Prot after Mprotect = %+v, want RW", r.Prot)
	}

	if err := p.Mprotect(context.Background(), addr+0x1000, vmprot.RO); err != kernerr.ENOENT {
		t.Fatalf("Mprotect(unmapped) = %v, want ENOENT", err)
	}
}

func TestMmapFixedZeroAddrIsEinval(t *testing.T) {
	p := newTestProcess(1, "proc")
	if _, err := p.Mmap(context.Background(), 0, 0x1000, vmprot.RW, true, true, -1, 0); err != kernerr.EINVAL {
		t.Fatalf("Mmap(fixed, addr=0) = %v, want EINVAL", err)
	}
}

func TestMmapFixedUnalignedAddrIsEinval(t *testing.T) {
	p := newTestProcess(1, "proc")
	if _, err := p.Mmap(context.Background(), 0x1001, 0x1000, vmprot.RW, true, true, -1, 0); err != kernerr.EINVAL {
		t.Fatalf("Mmap(fixed, unaligned addr) = %v, want EINVAL", err)
	}
}

func TestMmapBadFdIsEbadf(t *testing.T) {
	p := newTestProcess(1, "proc")
	if _, err := p.Mmap(context.Background(), 0, 0x1000, vmprot.RW, false, false, 7, 0); err != kernerr.EBADF {
		t.Fatalf("Mmap(bad fd) = %v, want EBADF", err)
	}
}

func TestMmapInodeBackedFd(t *testing.T) {
	p := newTestProcess(1, "proc")
	inode := &platformtest.FakeInode{Content: make([]byte, 0x1000)}
	p.Files = platformtest.NewFakeFileTable(map[int32]platform.Inode{7: inode})

	addr, err := p.Mmap(context.Background(), 0, 0x1000, vmprot.RO, false, false, 7, 0)
	if err != nil {
		t.Fatalf("Mmap(inode-backed fd) failed: %v", err)
	}
	if p.UsedPmem != 0x1000 {
		t.Errorf("UsedPmem = %#x, want 0x1000", p.UsedPmem)
	}
	if _, err := p.Space.GetRegion(addr); err != nil {
		t.Fatalf("GetRegion after Mmap failed: %v", err)
	}
}

func TestShmCreateFixedUnalignedAddrIsEinval(t *testing.T) {
	p := newTestProcess(1, "proc")
	if _, _, err := p.ShmCreate(context.Background(), 0x1001, 0x1000, true, vmprot.RW); err != kernerr.EINVAL {
		t.Fatalf("ShmCreate(fixed, unaligned addr) = %v, want EINVAL", err)
	}
}
