// Copyright 2022 The gVisor Authors.
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

package sync

import (
	"sync"

	"duckvm.dev/duckvm/pkg/sync/locking"
)

// Mutex is sync.Mutex with the lock-order validator attached to a
// particular class. Unlike gvisor's generated per-type mutexes, class is
// supplied by the caller at construction so one wrapper type serves any
// class (the registry lock uses Mutex; the space lock uses RWMutex).
type Mutex struct {
	mu    sync.Mutex
	class *locking.MutexClass
}

// NewMutex returns a Mutex belonging to class.
func NewMutex(class *locking.MutexClass) *Mutex {
	return &Mutex{class: class}
}

// Lock locks m.
//
// +checklocksignore
func (m *Mutex) Lock() {
	locking.AddGLock(m.class)
	m.mu.Lock()
}

// Unlock unlocks m.
//
// +checklocksignore
func (m *Mutex) Unlock() {
	m.mu.Unlock()
	locking.DelGLock(m.class)
}

// RWMutex is sync.RWMutex with the lock-order validator attached to a
// particular class.
type RWMutex struct {
	mu    sync.RWMutex
	class *locking.MutexClass
}

// NewRWMutex returns an RWMutex belonging to class.
func NewRWMutex(class *locking.MutexClass) *RWMutex {
	return &RWMutex{class: class}
}

// Lock locks m for writing.
//
// +checklocksignore
func (m *RWMutex) Lock() {
	locking.AddGLock(m.class)
	m.mu.Lock()
}

// Unlock unlocks m.
//
// +checklocksignore
func (m *RWMutex) Unlock() {
	m.mu.Unlock()
	locking.DelGLock(m.class)
}

// RLock locks m for reading.
//
// +checklocksignore
func (m *RWMutex) RLock() {
	locking.AddGLock(m.class)
	m.mu.RLock()
}

// RUnlock undoes a single RLock call.
//
// +checklocksignore
func (m *RWMutex) RUnlock() {
	m.mu.RUnlock()
	locking.DelGLock(m.class)
}
