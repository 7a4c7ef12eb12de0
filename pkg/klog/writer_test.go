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
	"testing"
)

type testWriter struct {
	lines []string
	fail  bool
}

func (w *testWriter) Write(b []byte) (int, error) {
	if w.fail {
		return 0, fmt.Errorf("simulated failure")
	}
	w.lines = append(w.lines, string(b))
	return len(b), nil
}

func TestWriterDropsAndReportsMessages(t *testing.T) {
	tw := &testWriter{}
	w := &Writer{Next: tw}

	if _, err := w.Write([]byte("line 1\n")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	tw.fail = true
	if _, err := w.Write([]byte("dropped a\n")); err == nil {
		t.Fatalf("Write should have failed")
	}
	if _, err := w.Write([]byte("dropped b\n")); err == nil {
		t.Fatalf("Write should have failed")
	}

	tw.fail = false
	if _, err := w.Write([]byte("line 2\n")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	want := []string{
		"line 1\n",
		"\n*** Dropped 2 log messages ***\n",
		"line 2\n",
	}
	if len(tw.lines) != len(want) {
		t.Fatalf("got %d lines %v, want %d lines %v", len(tw.lines), tw.lines, len(want), want)
	}
	for i, l := range tw.lines {
		if l != want[i] {
			t.Errorf("line %d: got %q, want %q", i, l, want[i])
		}
	}
}
