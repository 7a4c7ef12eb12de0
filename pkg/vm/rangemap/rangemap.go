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

// Package rangemap implements the per-address-space free/used range
// allocator: a sorted, non-overlapping list of page-aligned regions
// covering exactly [start, start+size) of some VMSpace, realized as an
// index-addressed arena rather than a pointer-linked list (design note
// "intrusive linked list → arena+index").
//
// RangeMap is not safe for concurrent use; the owning VMSpace's lock is
// the sole synchronization.
package rangemap

import (
	"fmt"

	"duckvm.dev/duckvm/pkg/errors/kernerr"
	"duckvm.dev/duckvm/pkg/hostarch"
)

// noIdx is the sentinel for "no node" in prev/next links.
const noIdx = -1

type node struct {
	start hostarch.Addr
	size  uint64
	used  bool
	prev  int32
	next  int32
}

func (n *node) end() hostarch.Addr {
	return n.start + hostarch.Addr(n.size)
}

func (n *node) contains(addr hostarch.Addr) bool {
	return n.start <= addr && addr < n.end()
}

// RangeMap is the free/used list for one VMSpace.
type RangeMap struct {
	start hostarch.Addr
	size  uint64

	nodes []node
	free  []int32 // indices into nodes available for reuse
	head  int32

	usedBytes uint64
}

// New creates a RangeMap covering [start, start+size), initially entirely
// free. start and size must be page-aligned and size must be > 0.
func New(start hostarch.Addr, size uint64) *RangeMap {
	if !start.IsPageAligned() || !hostarch.IsPageAlignedSize(size) || size == 0 {
		panic(fmt.Sprintf("rangemap.New: unaligned or empty capacity [%#x, size %#x)", start, size))
	}
	m := &RangeMap{start: start, size: size, head: 0}
	m.nodes = append(m.nodes, node{start: start, size: size, used: false, prev: noIdx, next: noIdx})
	return m
}

// UsedBytes returns the sum of sizes of used nodes.
func (m *RangeMap) UsedBytes() uint64 {
	return m.usedBytes
}

// newNode allocates a slot for n, reusing a freed slot if one is
// available.
func (m *RangeMap) newNode(n node) int32 {
	if len(m.free) > 0 {
		idx := m.free[len(m.free)-1]
		m.free = m.free[:len(m.free)-1]
		m.nodes[idx] = n
		return idx
	}
	m.nodes = append(m.nodes, n)
	return int32(len(m.nodes) - 1)
}

// deleteNode returns idx's slot to the free list.
func (m *RangeMap) deleteNode(idx int32) {
	m.free = append(m.free, idx)
}

func (m *RangeMap) at(idx int32) *node {
	return &m.nodes[idx]
}

// Alloc scans for the lowest free address whose node is large enough
// and returns it. If the node was larger than requested, a new used node
// covering the first size bytes is inserted before it and the original
// node keeps the free remainder.
func (m *RangeMap) Alloc(size uint64) (hostarch.Addr, error) {
	if size == 0 || !hostarch.IsPageAlignedSize(size) {
		panic(fmt.Sprintf("rangemap.Alloc: unaligned or zero size %#x", size))
	}

	cur := m.head
	for cur != noIdx {
		n := m.at(cur)
		if n.used {
			cur = n.next
			continue
		}

		if n.size == size {
			n.used = true
			m.usedBytes += n.size
			return n.start, nil
		}

		if n.size > size {
			newIdx := m.newNode(node{
				start: n.start,
				size:  size,
				used:  true,
				prev:  n.prev,
				next:  cur,
			})
			n = m.at(cur) // newNode may have reallocated m.nodes
			if n.prev != noIdx {
				m.at(n.prev).next = newIdx
			}
			if m.head == cur {
				m.head = newIdx
			}
			n.start += hostarch.Addr(size)
			n.size -= size
			n.prev = newIdx

			m.usedBytes += size
			return m.at(newIdx).start, nil
		}

		cur = n.next
	}

	return 0, kernerr.ENOMEM
}

// AllocAt allocates exactly [addr, addr+size), splitting off a free
// prefix and/or suffix from the enclosing node as needed.
func (m *RangeMap) AllocAt(addr hostarch.Addr, size uint64) (hostarch.Addr, error) {
	if size == 0 || !hostarch.IsPageAlignedSize(size) || !addr.IsPageAligned() {
		panic(fmt.Sprintf("rangemap.AllocAt: unaligned or zero request addr=%#x size=%#x", addr, size))
	}

	cur := m.head
	for cur != noIdx {
		n := m.at(cur)
		if !n.contains(addr) {
			cur = n.next
			continue
		}
		if n.used {
			return 0, kernerr.ENOMEM
		}

		available := uint64(n.end() - addr)
		if available < size {
			return 0, kernerr.ENOMEM
		}

		if n.size == size && n.start == addr {
			n.used = true
			m.usedBytes += n.size
			return n.start, nil
		}

		// Split off a free prefix [n.start, addr) if needed.
		if n.start < addr {
			prefixIdx := m.newNode(node{
				start: n.start,
				size:  uint64(addr - n.start),
				used:  false,
				prev:  n.prev,
				next:  cur,
			})
			n = m.at(cur) // newNode may have reallocated m.nodes
			if n.prev != noIdx {
				m.at(n.prev).next = prefixIdx
			}
			n.prev = prefixIdx
			if m.head == cur {
				m.head = prefixIdx
			}
		}

		// Split off a free suffix [addr+size, n.end()) if needed.
		end := n.end()
		if end > addr+hostarch.Addr(size) {
			suffixIdx := m.newNode(node{
				start: addr + hostarch.Addr(size),
				size:  uint64(end - (addr + hostarch.Addr(size))),
				used:  false,
				prev:  cur,
				next:  n.next,
			})
			n = m.at(cur) // newNode may have reallocated m.nodes
			if n.next != noIdx {
				m.at(n.next).prev = suffixIdx
			}
			n.next = suffixIdx
		}

		n.start = addr
		n.size = size
		n.used = true
		m.usedBytes += size
		return addr, nil
	}

	return 0, kernerr.ENOMEM
}

// Reserve is AllocAt with its return value discarded, for loader
// pre-allocations that only need the range marked used.
func (m *RangeMap) Reserve(addr hostarch.Addr, size uint64) error {
	_, err := m.AllocAt(addr, size)
	return err
}

// Free marks the used node starting exactly at addr as free, coalescing
// with adjacent free neighbors. Mismatched size or a missing node at addr
// are programming errors in the caller (the VMSpace must only free ranges
// it itself allocated) and abort.
func (m *RangeMap) Free(addr hostarch.Addr, size uint64) {
	cur := m.head
	for cur != noIdx {
		n := m.at(cur)
		if n.start != addr || !n.used {
			cur = n.next
			continue
		}
		if n.size != size {
			panic(fmt.Sprintf("rangemap.Free: node at %#x has size %#x, want %#x", addr, n.size, size))
		}

		n.used = false

		if n.prev != noIdx && !m.at(n.prev).used {
			prevIdx := n.prev
			prev := m.at(prevIdx)
			n.prev = prev.prev
			if prev.prev != noIdx {
				m.at(prev.prev).next = cur
			}
			n.start = prev.start
			n.size += prev.size
			if m.head == prevIdx {
				m.head = cur
			}
			m.deleteNode(prevIdx)
		}

		if n.next != noIdx && !m.at(n.next).used {
			nextIdx := n.next
			next := m.at(nextIdx)
			n.next = next.next
			if next.next != noIdx {
				m.at(next.next).prev = cur
			}
			n.size += next.size
			m.deleteNode(nextIdx)
		}

		m.usedBytes -= size
		return
	}

	panic(fmt.Sprintf("rangemap.Free: no used node starts at %#x", addr))
}

// CheckInvariants walks the node list and verifies it is sorted,
// gap-free, non-overlapping, has no two adjacent free nodes, and that
// UsedBytes is consistent with the used nodes. It is meant for test
// builds and deliberately not called from production code paths.
func (m *RangeMap) CheckInvariants() error {
	cur := m.head
	want := m.start
	var usedSum uint64
	var prevUsed = true // so a leading free node isn't flagged as "adjacent to a free predecessor"
	seen := 0

	for cur != noIdx {
		n := m.at(cur)
		seen++
		if seen > len(m.nodes)+1 {
			return fmt.Errorf("node list cycle detected")
		}
		if n.size == 0 {
			return fmt.Errorf("node at %#x has zero size", n.start)
		}
		if n.start != want {
			return fmt.Errorf("gap or overlap: node starts at %#x, want %#x", n.start, want)
		}
		if !n.used && !prevUsed {
			return fmt.Errorf("two adjacent free nodes at or before %#x", n.start)
		}
		if n.used {
			usedSum += n.size
		}
		prevUsed = n.used
		want = n.end()
		cur = n.next
	}

	if want != m.start+hostarch.Addr(m.size) {
		return fmt.Errorf("node list covers up to %#x, want %#x", want, m.start+hostarch.Addr(m.size))
	}
	if usedSum != m.usedBytes {
		return fmt.Errorf("usedBytes=%d, sum of used node sizes=%d", m.usedBytes, usedSum)
	}
	return nil
}
