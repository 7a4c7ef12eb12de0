// Copyright 2020 The gVisor Authors.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file or at
// https://developers.google.com/open-source/licenses/bsd.

// Package sync re-exports the standard library's synchronization
// primitives, plus Mutex/RWMutex variants that participate in the
// lock-order validator in sync/locking when built with -tags lockdep.
package sync

import (
	"sync"
)

// Aliases of standard library types.
type (
	// Once is an alias of sync.Once.
	Once = sync.Once

	// WaitGroup is an alias of sync.WaitGroup.
	WaitGroup = sync.WaitGroup
)
