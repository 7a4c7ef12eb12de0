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

// Package refcount provides AtomicRefCount, a reference count for
// VMObjects shared across process address spaces. Unlike a general
// refcounted-object package, there is no weak-reference support: no
// caller of this module ever needs to observe an object after its last
// strong reference drops, so that machinery is omitted entirely.
package refcount

import "sync/atomic"

// AtomicRefCount keeps a reference count using atomic operations and
// calls the destructor exactly once, when the count reaches zero.
//
// The zero value has one implicit reference, so a freshly constructed
// object can be used immediately without a separate "initialize to 1"
// call.
type AtomicRefCount struct {
	// refCount is offset by -1: a stored value of n means n+1 real
	// references are held.
	refCount int64
}

// ReadRefs returns the current number of references. The result is
// racy without external synchronization.
func (r *AtomicRefCount) ReadRefs() int64 {
	return atomic.LoadInt64(&r.refCount) + 1
}

// IncRef increments the reference count.
func (r *AtomicRefCount) IncRef() {
	if v := atomic.AddInt64(&r.refCount, 1); v <= 0 {
		panic("refcount: IncRef on a destroyed object")
	}
}

// DecRefWithDestructor decrements the reference count. When the count
// reaches zero, destroy is called exactly once. destroy may be nil.
func (r *AtomicRefCount) DecRefWithDestructor(destroy func()) {
	switch v := atomic.AddInt64(&r.refCount, -1); {
	case v < -1:
		panic("refcount: DecRef on a non-positive ref count")
	case v == -1:
		if destroy != nil {
			destroy()
		}
	}
}

// DecRef decrements the reference count, running no destructor.
func (r *AtomicRefCount) DecRef() {
	r.DecRefWithDestructor(nil)
}
