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

package rangemap

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"

	"duckvm.dev/duckvm/pkg/hostarch"
)

// TestRandomAllocFreeSequencesPreserveInvariants generates random
// sequences of Alloc/Free and checks the node-list invariants after
// every step.
func TestRandomAllocFreeSequencesPreserveInvariants(t *testing.T) {
	const (
		capacitySize = 64 * page
		iterations   = 2000
	)
	rng := rand.New(rand.NewSource(1))

	m := New(0, capacitySize)
	type live struct {
		addr hostarch.Addr
		size uint64
	}
	var allocated []live

	for i := 0; i < iterations; i++ {
		if len(allocated) > 0 && rng.Intn(2) == 0 {
			idx := rng.Intn(len(allocated))
			victim := allocated[idx]
			m.Free(victim.addr, victim.size)
			allocated = append(allocated[:idx], allocated[idx+1:]...)
		} else {
			size := uint64(1+rng.Intn(8)) * page
			addr, err := m.Alloc(size)
			if err == nil {
				allocated = append(allocated, live{addr, size})
			}
		}
		if err := m.CheckInvariants(); err != nil {
			t.Fatalf("iteration %d: CheckInvariants failed: %v (live=%v)", i, err, allocated)
		}
	}
}

// TestRoundTripEquivalence checks that an AllocAt immediately undone by
// a matching Free restores the original node list, across a spread of
// page-aligned (addr, size) pairs, using go-cmp to report exactly which
// node differs when it doesn't.
func TestRoundTripEquivalence(t *testing.T) {
	const capacitySize = 16 * page
	cases := []struct {
		addr hostarch.Addr
		size uint64
	}{
		{0, page},
		{page, page},
		{0, capacitySize},
		{3 * page, 4 * page},
		{capacitySize - page, page},
	}

	for _, c := range cases {
		m := New(0, capacitySize)
		before := liveNodes(m)

		if _, err := m.AllocAt(c.addr, c.size); err != nil {
			t.Fatalf("AllocAt(%#x, %#x) failed: %v", c.addr, c.size, err)
		}
		m.Free(c.addr, c.size)

		after := liveNodes(m)
		if diff := cmp.Diff(before, after, cmp.AllowUnexported(node{})); diff != "" {
			t.Errorf("AllocAt(%#x, %#x) then Free did not restore map (-before +after):\n%s", c.addr, c.size, diff)
		}
	}
}
