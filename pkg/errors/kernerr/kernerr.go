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

// Package kernerr contains the syscall error codes returned by the virtual
// memory subsystem, exported as *errors.Error pointers instead of bare
// unix.Errno so that callers get fast, allocation-free == comparisons the
// same way linuxerr.ENOENT == linuxerr.ENOENT works.
package kernerr

import (
	"golang.org/x/sys/unix"

	"duckvm.dev/duckvm/pkg/errors"
)

// The errors surfaced by this module. Each is a singleton *errors.Error;
// comparisons should use == against these vars, never errors.New again.
var (
	// ENOMEM is returned on address-space exhaustion or physical-frame
	// shortage.
	ENOMEM = errors.New(unix.ENOMEM, "out of memory")

	// EINVAL is returned for malformed arguments: zero length, unaligned
	// addresses, contradictory permission bits, unsupported flags.
	EINVAL = errors.New(unix.EINVAL, "invalid argument")

	// EBADF is returned for a bad file descriptor passed to mmap.
	EBADF = errors.New(unix.EBADF, "bad file descriptor")

	// ENOEXEC is reserved for the ELF loader; never returned by this
	// module.
	ENOEXEC = errors.New(unix.ENOEXEC, "exec format error")

	// ENOENT is returned for: no such shared object, no such region, or
	// no granted permission. The latter two are deliberately conflated
	// with "no such shared object" in ShmAttach to avoid leaking which
	// ids exist to an unprivileged caller.
	ENOENT = errors.New(unix.ENOENT, "no such entity")

	// EIO is returned from inode-backed page faults.
	EIO = errors.New(unix.EIO, "I/O error")
)

// Is reports whether err is the kernerr singleton target. It compares
// with == only; a wrapped error is not unwrapped.
func Is(err error, target *errors.Error) bool {
	return err == target
}
