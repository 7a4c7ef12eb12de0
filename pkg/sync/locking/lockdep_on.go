// Copyright 2021 The gVisor Authors.
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

//go:build lockdep

package locking

import (
	"bytes"
	"fmt"
	"runtime"
	"strconv"
	"sync"
)

var (
	heldMu sync.Mutex
	held   = map[int64][]*MutexClass{}
)

// goroutineID extracts the calling goroutine's id from its own stack
// trace header ("goroutine 123 [running]:"). It is only ever called from
// -tags lockdep test builds, where the extra allocation is acceptable.
func goroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i >= 0 {
		b = b[:i]
	}
	id, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return -1
	}
	return id
}

// AddGLock records that the calling goroutine has acquired a mutex of the
// given class, and panics if doing so violates the documented lock order:
// a class may not be acquired while the goroutine holds a class of equal
// or greater rank.
func AddGLock(class *MutexClass) {
	gid := goroutineID()

	heldMu.Lock()
	defer heldMu.Unlock()

	for _, c := range held[gid] {
		if c.Rank >= class.Rank {
			panic(fmt.Sprintf("lock order violation: goroutine %d acquiring %q (rank %d) while holding %q (rank %d)", gid, class.Name, class.Rank, c.Name, c.Rank))
		}
	}
	held[gid] = append(held[gid], class)
}

// DelGLock records that the calling goroutine has released a mutex of the
// given class.
func DelGLock(class *MutexClass) {
	gid := goroutineID()

	heldMu.Lock()
	defer heldMu.Unlock()

	stack := held[gid]
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == class {
			held[gid] = append(stack[:i], stack[i+1:]...)
			if len(held[gid]) == 0 {
				delete(held, gid)
			}
			return
		}
	}
}
