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

// Package klog is the kernel-wide logging sink. It is deliberately small:
// a Level, an Emitter, and a handful of package-level helpers that format
// through the currently installed Emitter.
package klog

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"
)

// Level is a basic logging level.
type Level int32

const (
	// Warning indicates a problem that does not halt the kernel.
	Warning Level = iota
	// Info is a purely informational message.
	Info
	// Debug is a message only useful when chasing a specific bug.
	Debug
)

func (l Level) String() string {
	switch l {
	case Warning:
		return "warning"
	case Info:
		return "info"
	case Debug:
		return "debug"
	default:
		return "unknown"
	}
}

// Emitter is the interface to something that emits log messages.
type Emitter interface {
	// Emit emits the given message, which was produced at the given
	// call depth, level, and timestamp.
	Emit(depth int, level Level, timestamp time.Time, format string, v ...any)
}

// BasicLogger is the generic implementation of Logger.
type BasicLogger struct {
	Level
	Emitter
}

// Debugf implements Logger.Debugf.
func (l *BasicLogger) Debugf(format string, v ...any) {
	l.DebugfAtDepth(1, format, v...)
}

// Infof implements Logger.Infof.
func (l *BasicLogger) Infof(format string, v ...any) {
	l.InfofAtDepth(1, format, v...)
}

// Warningf implements Logger.Warningf.
func (l *BasicLogger) Warningf(format string, v ...any) {
	l.WarningfAtDepth(1, format, v...)
}

// DebugfAtDepth logs at the debug level, attributing the message to the
// caller depth frames above this one.
func (l *BasicLogger) DebugfAtDepth(depth int, format string, v ...any) {
	if l.IsLogging(Debug) {
		l.Emit(depth+1, Debug, time.Now(), format, v...)
	}
}

// InfofAtDepth logs at the info level, attributing the message to the
// caller depth frames above this one.
func (l *BasicLogger) InfofAtDepth(depth int, format string, v ...any) {
	if l.IsLogging(Info) {
		l.Emit(depth+1, Info, time.Now(), format, v...)
	}
}

// WarningfAtDepth logs at the warning level, attributing the message to
// the caller depth frames above this one.
func (l *BasicLogger) WarningfAtDepth(depth int, format string, v ...any) {
	if l.IsLogging(Warning) {
		l.Emit(depth+1, Warning, time.Now(), format, v...)
	}
}

// IsLogging implements Logger.IsLogging.
func (l *BasicLogger) IsLogging(level Level) bool {
	return atomic.LoadInt32((*int32)(&l.Level)) >= int32(level)
}

// Logger is implemented by anything that can log messages.
type Logger interface {
	Debugf(format string, v ...any)
	Infof(format string, v ...any)
	Warningf(format string, v ...any)
	IsLogging(level Level) bool
}

// log is the global logger.
var log atomic.Pointer[BasicLogger]

func init() {
	log.Store(&BasicLogger{Level: Warning, Emitter: GoogleEmitter{&Writer{Next: os.Stderr}}})
}

// Log returns the global logger.
func Log() *BasicLogger {
	return log.Load()
}

// SetTarget sets the current logging target.
func SetTarget(target Logger) {
	bl, ok := target.(*BasicLogger)
	if !ok {
		bl = &BasicLogger{Emitter: loggerEmitter{target}}
	}
	log.Store(bl)
}

// loggerEmitter adapts an arbitrary Logger to the Emitter interface so
// SetTarget can accept anything implementing Logger.
type loggerEmitter struct {
	Logger
}

// Emit implements Emitter.Emit.
func (e loggerEmitter) Emit(_ int, level Level, _ time.Time, format string, v ...any) {
	msg := fmt.Sprintf(format, v...)
	switch level {
	case Debug:
		e.Logger.Debugf("%s", msg)
	case Info:
		e.Logger.Infof("%s", msg)
	default:
		e.Logger.Warningf("%s", msg)
	}
}

// SetLevel sets the logging level of the global logger.
func SetLevel(level Level) {
	atomic.StoreInt32((*int32)(&Log().Level), int32(level))
}

// Debugf logs at the debug level to the global logger.
func Debugf(format string, v ...any) { Log().DebugfAtDepth(1, format, v...) }

// Infof logs at the info level to the global logger.
func Infof(format string, v ...any) { Log().InfofAtDepth(1, format, v...) }

// Warningf logs at the warning level to the global logger.
func Warningf(format string, v ...any) { Log().WarningfAtDepth(1, format, v...) }

// IsLogging reports whether the global logger would emit at level.
func IsLogging(level Level) bool { return Log().IsLogging(level) }
