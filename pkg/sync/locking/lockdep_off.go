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

//go:build !lockdep

package locking

// AddGLock records that the calling goroutine has acquired a mutex of the
// given class. No-op outside -tags lockdep builds.
//
//go:inline
func AddGLock(class *MutexClass) {}

// DelGLock records that the calling goroutine has released a mutex of the
// given class. No-op outside -tags lockdep builds.
//
//go:inline
func DelGLock(class *MutexClass) {}
