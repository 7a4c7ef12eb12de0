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

// duckvmd boots the virtual memory subsystem's configuration and
// logging, reporting what it would start with in an info-level banner;
// with the default "warning" log level the banner is not shown. It
// does not itself
// provide a page table, physical frame source, or filesystem: those
// are host-specific collaborators a real kernel build supplies through
// pkg/vm/platform's interfaces.
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"

	"duckvm.dev/duckvm/pkg/bootconfig"
	"duckvm.dev/duckvm/pkg/klog"
)

var configPath = flag.String("config", "", "path to a TOML boot config file; if empty, defaults are used")

func main() {
	flag.Parse()

	conf, err := bootconfig.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "duckvmd: loading config: %v\n", err)
		os.Exit(1)
	}

	klog.SetTarget(&klog.BasicLogger{Emitter: klog.GoogleEmitter{Next: os.Stderr}})
	if lvl, ok := parseLevel(conf.LogLevel); ok {
		klog.SetLevel(lvl)
	}

	const delim = "**************** duckvm ****************"
	klog.Infof(delim)
	klog.Infof("address space [%#x, %#x), registry hint %d, %s, %d CPUs, PID %d",
		conf.SpaceStart, conf.SpaceStart+conf.SpaceSize, conf.RegistryHint, runtime.Version(), runtime.NumCPU(), os.Getpid())
	klog.Infof(delim)
}

func parseLevel(s string) (klog.Level, bool) {
	switch s {
	case "warning":
		return klog.Warning, true
	case "info":
		return klog.Info, true
	case "debug":
		return klog.Debug, true
	default:
		return 0, false
	}
}
