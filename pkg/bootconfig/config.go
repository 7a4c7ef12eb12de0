// Copyright 2018 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package bootconfig loads the handful of knobs the virtual memory
// subsystem needs at boot: where a fresh address space starts and how
// big it is, and how many shared anonymous objects the registry should
// expect to hold.
package bootconfig

import "github.com/BurntSushi/toml"

// Config is the boot-time configuration for the virtual memory
// subsystem. Everything here has a sensible default; a boot config file
// is optional.
type Config struct {
	// SpaceStart is the first usable virtual address of any new
	// VMSpace, in bytes. Must be page-aligned.
	SpaceStart uint64 `toml:"space_start"`

	// SpaceSize is the number of bytes a new VMSpace spans, starting at
	// SpaceStart. Must be page-aligned.
	SpaceSize uint64 `toml:"space_size"`

	// RegistryHint is an initial size hint for the shared anonymous
	// object registry; it does not bound the registry's eventual size.
	RegistryHint int `toml:"registry_hint"`

	// LogLevel selects the global logger's verbosity: "warning", "info",
	// or "debug".
	LogLevel string `toml:"log_level"`
}

// Default returns the configuration used when no boot config file is
// present.
func Default() Config {
	return Config{
		SpaceStart:   0x1000,
		SpaceSize:    1 << 32,
		RegistryHint: 64,
		LogLevel:     "warning",
	}
}

// Load reads a boot config file at path, filling in any field the file
// omits from Default().
func Load(path string) (Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}
	if _, err := toml.DecodeFile(path, &c); err != nil {
		return Config{}, err
	}
	return c, nil
}
