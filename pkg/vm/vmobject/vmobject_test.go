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

package vmobject

import (
	"context"
	"testing"

	"duckvm.dev/duckvm/pkg/errors/kernerr"
	"duckvm.dev/duckvm/pkg/vm/platform/platformtest"
	"duckvm.dev/duckvm/pkg/vm/vmprot"
)

func TestAnonymousFaultIsStableAndShared(t *testing.T) {
	a := NewAnonymous(8192, &platformtest.FakeFrameSource{})

	f1, err := a.Fault(context.Background(), 0)
	if err != nil {
		t.Fatalf("Fault(0) failed: %v", err)
	}
	f2, err := a.Fault(context.Background(), 0)
	if err != nil {
		t.Fatalf("second Fault(0) failed: %v", err)
	}
	if f1 != f2 {
		t.Errorf("Fault(0) returned different frames on repeat: %v, %v", f1, f2)
	}

	f3, err := a.Fault(context.Background(), 1)
	if err != nil {
		t.Fatalf("Fault(1) failed: %v", err)
	}
	if f3 == f1 {
		t.Errorf("distinct pages got the same frame: %v", f3)
	}
}

func TestAnonymousFaultExhaustion(t *testing.T) {
	a := NewAnonymous(4096, &platformtest.FakeFrameSource{Exhausted: true})
	if _, err := a.Fault(context.Background(), 0); err != kernerr.ENOMEM {
		t.Fatalf("Fault on exhausted frame source = %v, want ENOMEM", err)
	}
}

func TestInodeFaultReadsThroughAndCaches(t *testing.T) {
	content := make([]byte, 8192)
	for i := range content {
		content[i] = byte(i)
	}
	inode := &platformtest.FakeInode{Content: content}
	obj := NewInode(inode, &platformtest.FakeFrameSource{})

	f1, err := obj.Fault(context.Background(), 0)
	if err != nil {
		t.Fatalf("Fault(0) failed: %v", err)
	}
	f2, err := obj.Fault(context.Background(), 0)
	if err != nil {
		t.Fatalf("second Fault(0) failed: %v", err)
	}
	if f1 != f2 {
		t.Errorf("Fault(0) returned different frames on repeat: %v, %v", f1, f2)
	}

	f3, err := obj.Fault(context.Background(), 1)
	if err != nil {
		t.Fatalf("Fault(1) failed: %v", err)
	}
	if f3 == f1 {
		t.Errorf("distinct pages got the same frame: %v", f3)
	}
}

func TestInodeFaultExhaustion(t *testing.T) {
	inode := &platformtest.FakeInode{Content: make([]byte, 4096)}
	obj := NewInode(inode, &platformtest.FakeFrameSource{Exhausted: true})
	if _, err := obj.Fault(context.Background(), 0); err != kernerr.ENOMEM {
		t.Fatalf("Fault on exhausted frame source = %v, want ENOMEM", err)
	}
}

func TestInodeDecRefReleasesPages(t *testing.T) {
	inode := &platformtest.FakeInode{Content: make([]byte, 4096)}
	obj := NewInode(inode, &platformtest.FakeFrameSource{})
	if _, err := obj.Fault(context.Background(), 0); err != nil {
		t.Fatalf("Fault failed: %v", err)
	}
	obj.DecRef()
	if obj.byPage != nil {
		t.Errorf("byPage not released after last DecRef")
	}
	if obj.dirty != nil {
		t.Errorf("dirty not released after last DecRef")
	}
}

func TestRegistryAllowGatesGet(t *testing.T) {
	r := NewRegistry(&platformtest.FakeFrameSource{})
	id, _ := r.Create(4096)

	if _, _, err := r.Get(id, 7); err != kernerr.ENOENT {
		t.Fatalf("Get before Allow = %v, want ENOENT", err)
	}

	if err := r.Allow(id, 7, vmprot.RO); err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	_, prot, err := r.Get(id, 7)
	if err != nil {
		t.Fatalf("Get after Allow failed: %v", err)
	}
	if prot != vmprot.RO {
		t.Errorf("Get returned prot = %+v, want %+v", prot, vmprot.RO)
	}
	if _, _, err := r.Get(id, 9); err != kernerr.ENOENT {
		t.Fatalf("Get for un-allowed pid = %v, want ENOENT", err)
	}
}

func TestRegistryGetUnknownID(t *testing.T) {
	r := NewRegistry(&platformtest.FakeFrameSource{})
	if _, _, err := r.Get(999, 1); err != kernerr.ENOENT {
		t.Fatalf("Get(999) = %v, want ENOENT", err)
	}
}

func TestAnonymousDecRefReleasesFrames(t *testing.T) {
	a := NewAnonymous(4096, &platformtest.FakeFrameSource{})
	if _, err := a.Fault(context.Background(), 0); err != nil {
		t.Fatalf("Fault failed: %v", err)
	}
	a.DecRef()
	if a.byPage != nil {
		t.Errorf("byPage not released after last DecRef")
	}
}

func TestRegistryForgetRemovesID(t *testing.T) {
	r := NewRegistry(&platformtest.FakeFrameSource{})
	id, _ := r.Create(4096)
	r.Allow(id, 1, vmprot.RW)
	r.Forget(id)
	if _, _, err := r.Get(id, 1); err != kernerr.ENOENT {
		t.Fatalf("Get after Forget = %v, want ENOENT", err)
	}
}
