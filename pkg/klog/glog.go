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
	"os"
	"runtime"
	"strings"
	"time"
)

// GoogleEmitter formats log lines the way glog does:
//
//	Lmmdd hh:mm:ss.uuuuuu pid file:line] msg...
type GoogleEmitter struct {
	Next io.Writer
}

// pid is cached once; the kernel is single-process from the logger's
// point of view.
var pid = os.Getpid()

// Emit implements Emitter.Emit.
func (g GoogleEmitter) Emit(depth int, level Level, timestamp time.Time, format string, v ...any) {
	var b strings.Builder

	switch level {
	case Debug:
		b.WriteByte('D')
	case Info:
		b.WriteByte('I')
	case Warning:
		b.WriteByte('W')
	}

	_, month, day := timestamp.Date()
	hour, minute, second := timestamp.Clock()
	fmt.Fprintf(&b, "%02d%02d %02d:%02d:%02d.%06d %d ", int(month), day, hour, minute, second, timestamp.Nanosecond()/1000, pid)

	if _, file, line, ok := runtime.Caller(depth + 1); ok {
		if slash := strings.LastIndexByte(file, '/'); slash >= 0 {
			file = file[slash+1:]
		}
		fmt.Fprintf(&b, "%s:%d] ", file, line)
	}

	fmt.Fprintf(&b, format, v...)
	b.WriteByte('\n')

	g.Next.Write([]byte(b.String()))
}
