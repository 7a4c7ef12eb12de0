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

package klog

import (
	"fmt"
	"io"
	"sync"
)

// Writer is an io.Writer that remembers how many writes to Next have
// failed and, once a write finally succeeds again, prepends a report
// of how many messages were lost in between.
type Writer struct {
	// Next is the underlying writer.
	Next io.Writer

	mu      sync.Mutex
	dropped int
}

// Write implements io.Writer.Write.
func (w *Writer) Write(b []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.dropped > 0 {
		if _, err := fmt.Fprintf(w.Next, "\n*** Dropped %d log messages ***\n", w.dropped); err != nil {
			w.dropped++
			return 0, err
		}
		w.dropped = 0
	}

	n, err := w.Next.Write(b)
	if err != nil {
		w.dropped++
	}
	return n, err
}
