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

package packages

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/blang/semver"
	"github.com/google/go-cmp/cmp"
	"github.com/omnivector-solutions/charm-fluentbit/internal/logs"
	"github.com/omnivector-solutions/charm-fluentbit/internal/platform"
)

// fakeRunner records every command and fails the ones whose joined argv
// contains a key of failures.
type fakeRunner struct {
	calls    [][]string
	failures map[string][]string
	output   string
}

func (f *fakeRunner) run(cmd *exec.Cmd) (string, error) {
	f.calls = append(f.calls, cmd.Args)
	joined := strings.Join(cmd.Args, " ")
	for substr, outputs := range f.failures {
		if strings.Contains(joined, substr) && len(outputs) > 0 {
			out := outputs[0]
			f.failures[substr] = outputs[1:]
			return out, fmt.Errorf("exit status 100")
		}
	}
	return f.output, nil
}

func newInstaller(t *testing.T, f *fakeRunner) *Installer {
	t.Helper()
	dir := t.TempDir()
	key := filepath.Join(dir, "fluentbit.key")
	if err := os.WriteFile(key, []byte("-----BEGIN PGP PUBLIC KEY BLOCK-----\n"), 0644); err != nil {
		t.Fatal(err)
	}
	return &Installer{
		SigningKeyPath: key,
		YumRepoPath:    filepath.Join(dir, "yum.repos.d", "td-agent-bit.repo"),
		ScratchKeyPath: filepath.Join(dir, "scratch", "fluentbit.key"),
		RunCommand:     f.run,
		Logger:         logs.Discard(),
	}
}

func TestInstallDebianSelectsPinnedRepository(t *testing.T) {
	tests := []struct {
		version string
		repo    string
		pkg     string
	}{
		{"18.04", "deb https://packages.fluentbit.io/ubuntu/bionic bionic main", "td-agent-bit=1.8.15"},
		{"20.04", "deb https://packages.fluentbit.io/ubuntu/focal focal main", "td-agent-bit=1.9.10"},
		{"22.04", "deb https://packages.fluentbit.io/ubuntu/jammy jammy main", "td-agent-bit=1.9.10"},
	}
	for _, tc := range tests {
		t.Run(tc.version, func(t *testing.T) {
			f := &fakeRunner{}
			i := newInstaller(t, f)
			if err := i.Install(context.Background(), platform.Identity{ID: "ubuntu", Version: tc.version}); err != nil {
				t.Fatalf("Install() got error: %v", err)
			}
			want := [][]string{
				{"apt-key", "add", i.SigningKeyPath},
				{"add-apt-repository", "--yes", tc.repo},
				{"apt-get", "install", "--yes", tc.pkg},
			}
			if diff := cmp.Diff(want, f.calls); diff != "" {
				t.Errorf("Install() commands returned unexpected diff (-want +got):\n%s", diff)
			}
		})
	}
}

func TestInstallDebianUnsupportedVersion(t *testing.T) {
	f := &fakeRunner{}
	i := newInstaller(t, f)
	err := i.Install(context.Background(), platform.Identity{ID: "ubuntu", Version: "16.04"})
	var unsupported *UnsupportedVersionError
	if !errors.As(err, &unsupported) {
		t.Fatalf("Install() error = %v, want *UnsupportedVersionError", err)
	}
	if len(f.calls) != 0 {
		t.Errorf("Install() ran %v, want no commands", f.calls)
	}
}

func TestInstallUnsupportedPlatform(t *testing.T) {
	f := &fakeRunner{}
	i := newInstaller(t, f)
	err := i.Install(context.Background(), platform.Identity{ID: "arch"})
	var unsupported *platform.UnsupportedError
	if !errors.As(err, &unsupported) {
		t.Fatalf("Install() error = %v, want *platform.UnsupportedError", err)
	}
	if len(f.calls) != 0 {
		t.Errorf("Install() ran %v, want no commands", f.calls)
	}
	if _, err := os.Stat(i.YumRepoPath); !os.IsNotExist(err) {
		t.Errorf("Install() touched %s, want no filesystem side effects", i.YumRepoPath)
	}
}

func TestInstallRPM(t *testing.T) {
	for _, id := range []string{"centos", "rocky"} {
		t.Run(id, func(t *testing.T) {
			f := &fakeRunner{}
			i := newInstaller(t, f)
			if err := i.Install(context.Background(), platform.Identity{ID: id, Version: "8"}); err != nil {
				t.Fatalf("Install() got error: %v", err)
			}
			want := [][]string{{"yum", "install", "--assumeyes", "td-agent-bit-1.9.10"}}
			if diff := cmp.Diff(want, f.calls); diff != "" {
				t.Errorf("Install() commands returned unexpected diff (-want +got):\n%s", diff)
			}
			repo, err := os.ReadFile(i.YumRepoPath)
			if err != nil {
				t.Fatalf("yum repository was not written: %v", err)
			}
			if !strings.Contains(string(repo), "gpgkey = file://"+i.ScratchKeyPath+"\n") {
				t.Errorf("yum repository %q does not reference the scratch key", repo)
			}
			if _, err := os.Stat(i.ScratchKeyPath); err != nil {
				t.Errorf("signing key was not copied: %v", err)
			}
		})
	}
}

func TestInstallPackageManagerFailure(t *testing.T) {
	f := &fakeRunner{failures: map[string][]string{
		"apt-get install": {"E: Unable to locate package td-agent-bit"},
	}}
	i := newInstaller(t, f)
	i.Retry = RetryPolicy{Attempts: 3}
	err := i.Install(context.Background(), platform.Identity{ID: "ubuntu", Version: "22.04"})
	var opErr *OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("Install() error = %v, want *OperationError", err)
	}
	if !strings.Contains(opErr.Output, "Unable to locate package") {
		t.Errorf("OperationError.Output = %q, want the command output", opErr.Output)
	}
	if got := len(f.calls); got != 3 {
		t.Errorf("Install() ran %d commands, want 3 (permanent failures are not retried)", got)
	}
}

func TestInstallRetriesTransientFailure(t *testing.T) {
	f := &fakeRunner{failures: map[string][]string{
		"yum install": {
			"Cannot retrieve repository metadata (repomd.xml)",
			"Cannot retrieve repository metadata (repomd.xml)",
		},
	}}
	i := newInstaller(t, f)
	i.Retry = RetryPolicy{Attempts: 3}
	if err := i.Install(context.Background(), platform.Identity{ID: "centos", Version: "7"}); err != nil {
		t.Fatalf("Install() got error: %v", err)
	}
	if got := len(f.calls); got != 3 {
		t.Errorf("Install() ran %d commands, want 3", got)
	}
}

func TestInstallRetryGivesUp(t *testing.T) {
	f := &fakeRunner{failures: map[string][]string{
		"yum install": {"Resource temporarily unavailable", "Resource temporarily unavailable", "Resource temporarily unavailable"},
	}}
	i := newInstaller(t, f)
	i.Retry = RetryPolicy{Attempts: 1}
	err := i.Install(context.Background(), platform.Identity{ID: "centos", Version: "7"})
	var opErr *OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("Install() error = %v, want *OperationError", err)
	}
	if got := len(f.calls); got != 2 {
		t.Errorf("Install() ran %d commands, want 2", got)
	}
}

func TestInstallRPMMissingSigningKey(t *testing.T) {
	f := &fakeRunner{}
	i := newInstaller(t, f)
	i.SigningKeyPath = filepath.Join(t.TempDir(), "missing.key")
	err := i.Install(context.Background(), platform.Identity{ID: "rocky", Version: "9"})
	var opErr *OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("Install() error = %v, want *OperationError", err)
	}
	if len(f.calls) != 0 {
		t.Errorf("Install() ran %v, want no commands", f.calls)
	}
	if _, err := os.Stat(i.YumRepoPath); !os.IsNotExist(err) {
		t.Errorf("Install() wrote %s without a signing key", i.YumRepoPath)
	}
}

func TestUninstallDebianUnpinnedReleaseStillPurges(t *testing.T) {
	f := &fakeRunner{}
	i := newInstaller(t, f)
	err := i.Uninstall(context.Background(), platform.Identity{ID: "ubuntu", Version: "16.04"})
	var unsupported *UnsupportedVersionError
	if !errors.As(err, &unsupported) {
		t.Fatalf("Uninstall() error = %v, want *UnsupportedVersionError", err)
	}
	want := [][]string{{"apt-get", "purge", "--yes", "td-agent-bit"}}
	if diff := cmp.Diff(want, f.calls); diff != "" {
		t.Errorf("Uninstall() commands returned unexpected diff (-want +got):\n%s", diff)
	}
}

func TestUninstallDebian(t *testing.T) {
	f := &fakeRunner{failures: map[string][]string{
		"apt-get purge": {"E: dpkg was interrupted"},
	}}
	i := newInstaller(t, f)
	err := i.Uninstall(context.Background(), platform.Identity{ID: "ubuntu", Version: "20.04"})
	if err == nil {
		t.Fatal("Uninstall() got nil error, want the purge failure")
	}
	want := [][]string{
		{"apt-get", "purge", "--yes", "td-agent-bit"},
		{"add-apt-repository", "--remove", "--yes", "deb https://packages.fluentbit.io/ubuntu/focal focal main"},
	}
	if diff := cmp.Diff(want, f.calls); diff != "" {
		t.Errorf("Uninstall() commands returned unexpected diff (-want +got):\n%s", diff)
	}
}

func TestUninstallRPM(t *testing.T) {
	f := &fakeRunner{}
	i := newInstaller(t, f)
	if err := i.Install(context.Background(), platform.Identity{ID: "centos", Version: "7"}); err != nil {
		t.Fatal(err)
	}
	f.calls = nil
	if err := i.Uninstall(context.Background(), platform.Identity{ID: "centos", Version: "7"}); err != nil {
		t.Fatalf("Uninstall() got error: %v", err)
	}
	want := [][]string{{"yum", "remove", "--assumeyes", "td-agent-bit"}}
	if diff := cmp.Diff(want, f.calls); diff != "" {
		t.Errorf("Uninstall() commands returned unexpected diff (-want +got):\n%s", diff)
	}
	if _, err := os.Stat(i.YumRepoPath); !os.IsNotExist(err) {
		t.Errorf("Uninstall() left %s behind", i.YumRepoPath)
	}
}

func TestInstalledVersion(t *testing.T) {
	tests := []struct {
		identity platform.Identity
		output   string
		command  string
		want     semver.Version
	}{
		{platform.Identity{ID: "ubuntu", Version: "20.04"}, "1.9.10~focal", "dpkg-query", semver.MustParse("1.9.10")},
		{platform.Identity{ID: "centos", Version: "7"}, "1.9.10\n", "rpm", semver.MustParse("1.9.10")},
	}
	for _, tc := range tests {
		f := &fakeRunner{output: tc.output}
		i := newInstaller(t, f)
		got, err := i.InstalledVersion(context.Background(), tc.identity)
		if err != nil {
			t.Errorf("InstalledVersion(%v) got error: %v", tc.identity, err)
			continue
		}
		if !got.Equals(tc.want) {
			t.Errorf("InstalledVersion(%v) = %v, want %v", tc.identity, got, tc.want)
		}
		if f.calls[0][0] != tc.command {
			t.Errorf("InstalledVersion(%v) ran %v, want %s", tc.identity, f.calls[0], tc.command)
		}
	}
}

func TestPinnedVersionsParse(t *testing.T) {
	for version := range debianRepositories {
		if _, err := PinnedVersion(platform.Identity{ID: "ubuntu", Version: version}); err != nil {
			t.Errorf("pinned version for ubuntu %s does not parse: %v", version, err)
		}
	}
	if _, err := PinnedVersion(platform.Identity{ID: "rocky", Version: "9"}); err != nil {
		t.Errorf("pinned rpm version does not parse: %v", err)
	}
}

func TestStripTildeSuffix(t *testing.T) {
	for in, want := range map[string]string{"1.9.10~focal": "1.9.10", "1.9.10": "1.9.10", "~": ""} {
		if got := StripTildeSuffix(in); got != want {
			t.Errorf("StripTildeSuffix(%q) = %q, want %q", in, got, want)
		}
	}
}
