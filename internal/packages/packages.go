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

// Package packages installs and removes the td-agent-bit package together
// with the apt or yum repository it comes from.
package packages

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/blang/semver"
	"github.com/omnivector-solutions/charm-fluentbit/internal/command"
	"github.com/omnivector-solutions/charm-fluentbit/internal/logs"
	"github.com/omnivector-solutions/charm-fluentbit/internal/platform"
	"go.uber.org/multierr"
)

const (
	DefaultPackage        = "td-agent-bit"
	DefaultYumRepoPath    = "/etc/yum.repos.d/td-agent-bit.repo"
	DefaultScratchKeyPath = "/tmp/fluentbit.key"
)

// debianRepository pins the apt source and package version for one release.
type debianRepository struct {
	Line    string
	Version string
}

var debianRepositories = map[string]debianRepository{
	"18.04": {
		Line:    "deb https://packages.fluentbit.io/ubuntu/bionic bionic main",
		Version: "1.8.15",
	},
	"20.04": {
		Line:    "deb https://packages.fluentbit.io/ubuntu/focal focal main",
		Version: "1.9.10",
	},
	"22.04": {
		Line:    "deb https://packages.fluentbit.io/ubuntu/jammy jammy main",
		Version: "1.9.10",
	},
}

const rpmVersion = "1.9.10"

var yumRepoTemplate = template.Must(template.New("yumRepo").Parse(`[td-agent-bit]
name = TD Agent Bit
baseurl = https://packages.fluentbit.io/centos/$releasever/$basearch/
gpgcheck = 1
gpgkey = file://{{.KeyPath}}
enabled = 1
`))

// UnsupportedVersionError is returned when a supported distribution runs a
// release that has no pinned repository.
type UnsupportedVersionError struct {
	Identity platform.Identity
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("unsupported %s version %q", e.Identity.ID, e.Identity.Version)
}

// OperationError is returned when a package-manager step fails. Output holds
// the diagnostic output of the failing command, if any.
type OperationError struct {
	Op     string
	Args   []string
	Output string
	Err    error
}

func (e *OperationError) Error() string {
	if len(e.Args) == 0 {
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s failed: command %q: %v\ncommand output: %s", e.Op, e.Args, e.Err, e.Output)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// Installer manages the td-agent-bit package through apt or yum.
type Installer struct {
	Package        string
	SigningKeyPath string
	YumRepoPath    string
	ScratchKeyPath string
	Retry          RetryPolicy
	RunCommand     command.RunFunc
	Logger         logs.Logger
}

func (i *Installer) packageName() string {
	if i.Package == "" {
		return DefaultPackage
	}
	return i.Package
}

func (i *Installer) yumRepoPath() string {
	if i.YumRepoPath == "" {
		return DefaultYumRepoPath
	}
	return i.YumRepoPath
}

func (i *Installer) scratchKeyPath() string {
	if i.ScratchKeyPath == "" {
		return DefaultScratchKeyPath
	}
	return i.ScratchKeyPath
}

func (i *Installer) run(ctx context.Context, op string, args ...string) error {
	out, err := command.Exec(ctx, i.RunCommand, args[0], args[1:]...)
	if err != nil {
		return &OperationError{Op: op, Args: args, Output: out, Err: err}
	}
	return nil
}

// Install configures the package repository for p and installs the pinned
// package version.
func (i *Installer) Install(ctx context.Context, p platform.Identity) error {
	family, err := p.Family()
	if err != nil {
		return err
	}
	switch f := family.(type) {
	case platform.Debian:
		return i.installDebian(ctx, p, f)
	case platform.RPM:
		return i.installRPM(ctx, f)
	default:
		return &platform.UnsupportedError{Identity: p}
	}
}

func (i *Installer) installDebian(ctx context.Context, p platform.Identity, f platform.Debian) error {
	repo, ok := debianRepositories[f.Version]
	if !ok {
		return &UnsupportedVersionError{Identity: p}
	}
	i.Logger.Debugf("Configuring APT to install fluentbit on Ubuntu %s", f.Version)
	if err := i.run(ctx, "adding signing key", "apt-key", "add", i.SigningKeyPath); err != nil {
		return err
	}
	if err := i.run(ctx, "adding repository", "add-apt-repository", "--yes", repo.Line); err != nil {
		return err
	}
	i.Logger.Debugf("Installing %s=%s", i.packageName(), repo.Version)
	return i.retry(ctx, func() error {
		return i.run(ctx, "installing package", "apt-get", "install", "--yes", fmt.Sprintf("%s=%s", i.packageName(), repo.Version))
	})
}

func (i *Installer) installRPM(ctx context.Context, f platform.RPM) error {
	i.Logger.Debugf("Configuring yum to install fluentbit on %s %s", f.ID, f.Version)
	key, err := os.ReadFile(i.SigningKeyPath)
	if err != nil {
		return &OperationError{Op: "reading signing key", Err: err}
	}
	var repo bytes.Buffer
	if err := yumRepoTemplate.Execute(&repo, struct{ KeyPath string }{i.scratchKeyPath()}); err != nil {
		return &OperationError{Op: "rendering yum repository", Err: err}
	}
	if err := writeFile(i.yumRepoPath(), repo.Bytes()); err != nil {
		return &OperationError{Op: "setting yum repository", Err: err}
	}
	if err := writeFile(i.scratchKeyPath(), key); err != nil {
		return &OperationError{Op: "copying signing key", Err: err}
	}
	pkg := fmt.Sprintf("%s-%s", i.packageName(), rpmVersion)
	i.Logger.Debugf("Installing %s", pkg)
	return i.retry(ctx, func() error {
		return i.run(ctx, "installing package", "yum", "install", "--assumeyes", pkg)
	})
}

// Uninstall purges the package and removes its repository. Every step is
// attempted; the returned error combines all failures. On an Ubuntu release
// without a pinned repository the package is still purged.
func (i *Installer) Uninstall(ctx context.Context, p platform.Identity) error {
	family, err := p.Family()
	if err != nil {
		return err
	}
	switch f := family.(type) {
	case platform.Debian:
		i.Logger.Debugf("Removing fluentbit package")
		err = multierr.Append(err, i.run(ctx, "purging package", "apt-get", "purge", "--yes", i.packageName()))
		repo, ok := debianRepositories[f.Version]
		if !ok {
			return multierr.Append(err, &UnsupportedVersionError{Identity: p})
		}
		i.Logger.Debugf("Removing fluentbit repository")
		err = multierr.Append(err, i.run(ctx, "removing repository", "add-apt-repository", "--remove", "--yes", repo.Line))
	case platform.RPM:
		i.Logger.Debugf("Removing fluentbit package")
		err = multierr.Append(err, i.run(ctx, "removing package", "yum", "remove", "--assumeyes", i.packageName()))
		i.Logger.Debugf("Removing fluentbit repository")
		if rmErr := os.Remove(i.yumRepoPath()); rmErr != nil && !os.IsNotExist(rmErr) {
			err = multierr.Append(err, &OperationError{Op: "removing yum repository", Err: rmErr})
		}
	}
	return err
}

// InstalledVersion reports the version of the installed package.
func (i *Installer) InstalledVersion(ctx context.Context, p platform.Identity) (semver.Version, error) {
	family, err := p.Family()
	if err != nil {
		return semver.Version{}, err
	}
	var args []string
	switch family.(type) {
	case platform.Debian:
		args = []string{"dpkg-query", "--show", "--showformat=${Version}", i.packageName()}
	case platform.RPM:
		args = []string{"rpm", "--query", "--queryformat=%{VERSION}", i.packageName()}
	}
	out, err := command.Exec(ctx, i.RunCommand, args[0], args[1:]...)
	if err != nil {
		return semver.Version{}, &OperationError{Op: "querying package version", Args: args, Output: out, Err: err}
	}
	v, err := semver.ParseTolerant(StripTildeSuffix(strings.TrimSpace(out)))
	if err != nil {
		return semver.Version{}, fmt.Errorf("could not parse version of %s from %q: %w", i.packageName(), out, err)
	}
	return v, nil
}

// PinnedVersion returns the version Install would install on p.
func PinnedVersion(p platform.Identity) (semver.Version, error) {
	family, err := p.Family()
	if err != nil {
		return semver.Version{}, err
	}
	switch f := family.(type) {
	case platform.Debian:
		repo, ok := debianRepositories[f.Version]
		if !ok {
			return semver.Version{}, &UnsupportedVersionError{Identity: p}
		}
		return semver.ParseTolerant(repo.Version)
	default:
		return semver.ParseTolerant(rpmVersion)
	}
}

// StripTildeSuffix strips off everything after the first ~ character. We see
// version numbers with tildes on debian (e.g. 1.9.10~focal) and the semver
// library doesn't parse them out properly.
func StripTildeSuffix(version string) string {
	if ind := strings.Index(version, "~"); ind != -1 {
		return version[:ind]
	}
	return version
}

func writeFile(path string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %q: %w", path, err)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		return fmt.Errorf("failed to write file to %q: %w", path, err)
	}
	return nil
}
