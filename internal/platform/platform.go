// Copyright 2026 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package platform identifies the host distribution and maps it to the
// package-manager family used to install Fluent Bit.
package platform

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/shirou/gopsutil/host"
	"gopkg.in/ini.v1"
)

const DefaultOSReleasePath = "/etc/os-release"

// Identity is the (distribution id, version) pair of the host, e.g.
// ("ubuntu", "22.04") or ("centos", "7").
type Identity struct {
	ID      string
	Version string
}

func (i Identity) String() string {
	if i.Version == "" {
		return i.ID
	}
	return i.ID + " " + i.Version
}

// UnknownError is returned when the host descriptor is missing or has no ID.
type UnknownError struct {
	Source string
	Err    error
}

func (e *UnknownError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unable to identify the operating system from %s: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("unable to identify the operating system from %s: no ID field", e.Source)
}

func (e *UnknownError) Unwrap() error {
	return e.Err
}

type Detector interface {
	Detect(ctx context.Context) (Identity, error)
}

// OSRelease reads the identity from an os-release(5) file.
type OSRelease struct {
	Path string
}

func (o OSRelease) path() string {
	if o.Path == "" {
		return DefaultOSReleasePath
	}
	return o.Path
}

func (o OSRelease) Detect(ctx context.Context) (Identity, error) {
	data, err := os.ReadFile(o.path())
	if err != nil {
		return Identity{}, &UnknownError{Source: o.path(), Err: err}
	}
	return ParseOSRelease(o.path(), data)
}

// ParseOSRelease parses KEY=VALUE lines. Values may be double quoted.
func ParseOSRelease(source string, data []byte) (Identity, error) {
	f, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment:     true,
		SkipUnrecognizableLines: true,
		Insensitive:             false,
	}, data)
	if err != nil {
		return Identity{}, &UnknownError{Source: source, Err: err}
	}
	section := f.Section(ini.DefaultSection)
	id := normalize(section.Key("ID").String())
	if id == "" {
		return Identity{}, &UnknownError{Source: source}
	}
	return Identity{
		ID:      strings.ToLower(id),
		Version: normalize(section.Key("VERSION_ID").String()),
	}, nil
}

func normalize(v string) string {
	return strings.Trim(strings.TrimSpace(v), `"'`)
}

// Host reads the identity through gopsutil, which consults the same
// descriptor plus distribution-specific fallbacks.
type Host struct{}

func (Host) Detect(ctx context.Context) (Identity, error) {
	name, _, version, err := host.PlatformInformationWithContext(ctx)
	if err != nil {
		return Identity{}, &UnknownError{Source: "host platform information", Err: err}
	}
	if name == "" {
		return Identity{}, &UnknownError{Source: "host platform information"}
	}
	return Identity{ID: strings.ToLower(name), Version: version}, nil
}

// NewDetector returns the detector for a configured source: "os-release"
// or "host".
func NewDetector(source, osReleasePath string) (Detector, error) {
	switch source {
	case "", "os-release":
		return OSRelease{Path: osReleasePath}, nil
	case "host":
		return Host{}, nil
	default:
		return nil, fmt.Errorf("unknown platform source %q", source)
	}
}
