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

package fluentbitops

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/blang/semver"
	"github.com/google/go-cmp/cmp"
	"github.com/omnivector-solutions/charm-fluentbit/confgenerator/fluentbit"
	"github.com/omnivector-solutions/charm-fluentbit/internal/config"
	"github.com/omnivector-solutions/charm-fluentbit/internal/logs"
	"github.com/omnivector-solutions/charm-fluentbit/internal/packages"
	"github.com/omnivector-solutions/charm-fluentbit/internal/platform"
	"github.com/omnivector-solutions/charm-fluentbit/internal/service"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeDetector struct {
	id  platform.Identity
	err error
}

func (d fakeDetector) Detect(context.Context) (platform.Identity, error) {
	return d.id, d.err
}

type fakeInstaller struct {
	installErr   error
	uninstallErr error
	version      semver.Version
	installed    []platform.Identity
	uninstalled  []platform.Identity
}

func (i *fakeInstaller) Install(_ context.Context, p platform.Identity) error {
	i.installed = append(i.installed, p)
	return i.installErr
}

func (i *fakeInstaller) Uninstall(_ context.Context, p platform.Identity) error {
	i.uninstalled = append(i.uninstalled, p)
	return i.uninstallErr
}

func (i *fakeInstaller) InstalledVersion(context.Context, platform.Identity) (semver.Version, error) {
	return i.version, nil
}

type fakeRenderer struct {
	err      error
	rendered []fluentbit.RenderContext
}

func (r *fakeRenderer) Write(_ context.Context, rc fluentbit.RenderContext) error {
	r.rendered = append(r.rendered, rc)
	return r.err
}

type fakeSupervisor struct {
	active   bool
	restarts int
	stops    int
}

func (s *fakeSupervisor) Restart(context.Context) bool {
	s.restarts++
	return s.active
}

func (s *fakeSupervisor) Stop(context.Context) {
	s.stops++
}

func (s *fakeSupervisor) IsActive(context.Context) bool {
	return s.active
}

var focal = platform.Identity{ID: "ubuntu", Version: "20.04"}

func newOps(d fakeDetector, i *fakeInstaller, r *fakeRenderer, s *fakeSupervisor) (*FluentbitOps, *observer.ObservedLogs) {
	core, observed := observer.New(zapcore.DebugLevel)
	return &FluentbitOps{
		Detector:   d,
		Installer:  i,
		Renderer:   r,
		Supervisor: s,
		Logger:     logs.FromZap(zap.New(core)),
	}, observed
}

func TestInstall(t *testing.T) {
	tests := []struct {
		name       string
		detector   fakeDetector
		installErr error
		want       bool
		wantErr    bool
	}{
		{name: "success", detector: fakeDetector{id: focal}, want: true},
		{
			name:     "unknown platform",
			detector: fakeDetector{err: &platform.UnknownError{Source: "/etc/os-release", Err: os.ErrNotExist}},
			wantErr:  true,
		},
		{
			name:       "unsupported platform",
			detector:   fakeDetector{id: platform.Identity{ID: "arch"}},
			installErr: &platform.UnsupportedError{Identity: platform.Identity{ID: "arch"}},
		},
		{
			name:       "unsupported version",
			detector:   fakeDetector{id: platform.Identity{ID: "ubuntu", Version: "16.04"}},
			installErr: &packages.UnsupportedVersionError{Identity: platform.Identity{ID: "ubuntu", Version: "16.04"}},
			wantErr:    true,
		},
		{
			name:       "package manager failure",
			detector:   fakeDetector{id: focal},
			installErr: &packages.OperationError{Op: "installing package", Output: "E: Unable to locate package", Err: errors.New("exit status 100")},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ops, _ := newOps(tc.detector, &fakeInstaller{installErr: tc.installErr}, &fakeRenderer{}, &fakeSupervisor{})
			got, err := ops.Install(context.Background())
			if got != tc.want || (err != nil) != tc.wantErr {
				t.Errorf("Install() = %v, %v; want %v, error %v", got, err, tc.want, tc.wantErr)
			}
		})
	}
}

func TestInstallUnknownPlatformSkipsInstaller(t *testing.T) {
	inst := &fakeInstaller{}
	ops, _ := newOps(fakeDetector{err: &platform.UnknownError{Source: "/etc/os-release"}}, inst, &fakeRenderer{}, &fakeSupervisor{})
	_, err := ops.Install(context.Background())
	var unknown *platform.UnknownError
	if !errors.As(err, &unknown) {
		t.Fatalf("Install() returned %v, want a *platform.UnknownError", err)
	}
	if len(inst.installed) != 0 {
		t.Errorf("installer was called with %v", inst.installed)
	}
}

func TestConfigure(t *testing.T) {
	r := &fakeRenderer{}
	s := &fakeSupervisor{active: true}
	ops, observed := newOps(fakeDetector{id: focal}, &fakeInstaller{}, r, s)
	entries := []fluentbit.Entry{
		{Kind: "input", Settings: fluentbit.Settings{{Key: "name", Value: "tail"}}},
		{Kind: "parser", Settings: fluentbit.Settings{{Key: "name", Value: "p1"}}},
		{Kind: "input", Settings: fluentbit.Settings{{Key: "name", Value: "gelf"}}},
		{Kind: "metric", Settings: fluentbit.Settings{{Key: "name", Value: "cpu"}}},
	}
	if err := ops.Configure(context.Background(), entries); err != nil {
		t.Fatalf("Configure() returned error: %v", err)
	}
	want := []fluentbit.RenderContext{{
		Inputs:  []fluentbit.Settings{{{Key: "name", Value: "tail"}}, {{Key: "name", Value: "gelf"}}},
		Parsers: []fluentbit.Settings{{{Key: "name", Value: "p1"}}},
	}}
	if diff := cmp.Diff(want, r.rendered); diff != "" {
		t.Errorf("rendered contexts (-want +got):\n%s", diff)
	}
	if s.restarts != 1 {
		t.Errorf("service restarted %d times, want 1", s.restarts)
	}
	if n := observed.FilterLevelExact(zapcore.WarnLevel).FilterMessageSnippet(`"metric"`).Len(); n != 1 {
		t.Errorf("got %d warnings about the unknown entry, want 1", n)
	}
}

func TestConfigureRenderFailure(t *testing.T) {
	renderErr := &fluentbit.RenderError{File: "/etc/td-agent-bit/td-agent-bit.conf", Err: os.ErrPermission}
	s := &fakeSupervisor{active: true}
	ops, _ := newOps(fakeDetector{id: focal}, &fakeInstaller{}, &fakeRenderer{err: renderErr}, s)
	err := ops.Configure(context.Background(), nil)
	var got *fluentbit.RenderError
	if !errors.As(err, &got) {
		t.Fatalf("Configure() returned %v, want a *fluentbit.RenderError", err)
	}
	if s.restarts != 0 {
		t.Errorf("service restarted %d times after a render failure, want 0", s.restarts)
	}
}

func TestConfigureRestartFailureIsLogged(t *testing.T) {
	ops, observed := newOps(fakeDetector{id: focal}, &fakeInstaller{}, &fakeRenderer{}, &fakeSupervisor{})
	if err := ops.Configure(context.Background(), nil); err != nil {
		t.Fatalf("Configure() returned error: %v", err)
	}
	if observed.FilterLevelExact(zapcore.ErrorLevel).Len() != 1 {
		t.Errorf("restart failure was not logged: %v", observed.All())
	}
}

func TestConfigureEmptyWritesFiles(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Files.MainConfig = filepath.Join(dir, "td-agent-bit.conf")
	cfg.Files.ParserConfig = filepath.Join(dir, "charm-parsers.conf")
	var commands [][]string
	run := func(cmd *exec.Cmd) (string, error) {
		commands = append(commands, cmd.Args)
		return "active\n", nil
	}
	ops, err := New(cfg, run, logs.Discard())
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	if err := ops.Configure(context.Background(), []fluentbit.Entry{}); err != nil {
		t.Fatalf("Configure([]) returned error: %v", err)
	}
	for _, p := range []string{cfg.Files.MainConfig, cfg.Files.ParserConfig} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("%s was not written: %v", p, err)
		}
	}
	want := [][]string{
		{"systemctl", "restart", service.DefaultUnit},
		{"systemctl", "is-active", service.DefaultUnit},
	}
	if diff := cmp.Diff(want, commands); diff != "" {
		t.Errorf("commands (-want +got):\n%s", diff)
	}
}

func TestUninstall(t *testing.T) {
	inst := &fakeInstaller{uninstallErr: &packages.OperationError{Op: "purging package", Err: errors.New("exit status 100")}}
	ops, observed := newOps(fakeDetector{id: focal}, inst, &fakeRenderer{}, &fakeSupervisor{})
	if err := ops.Uninstall(context.Background()); err != nil {
		t.Fatalf("Uninstall() returned error: %v", err)
	}
	if diff := cmp.Diff([]platform.Identity{focal}, inst.uninstalled); diff != "" {
		t.Errorf("uninstalled platforms (-want +got):\n%s", diff)
	}
	if observed.FilterLevelExact(zapcore.ErrorLevel).Len() != 1 {
		t.Errorf("uninstall failure was not logged: %v", observed.All())
	}

	ops, _ = newOps(fakeDetector{err: &platform.UnknownError{Source: "/etc/os-release"}}, inst, &fakeRenderer{}, &fakeSupervisor{})
	if err := ops.Uninstall(context.Background()); err == nil {
		t.Error("Uninstall() with an unknown platform succeeded, want error")
	}
}

func TestSupervisorDelegation(t *testing.T) {
	s := &fakeSupervisor{active: true}
	ops, _ := newOps(fakeDetector{id: focal}, &fakeInstaller{}, &fakeRenderer{}, s)
	if !ops.Restart(context.Background()) || !ops.IsActive(context.Background()) {
		t.Error("Restart() or IsActive() = false, want true")
	}
	ops.Stop(context.Background())
	if s.restarts != 1 || s.stops != 1 {
		t.Errorf("restarts = %d, stops = %d; want 1 each", s.restarts, s.stops)
	}
}

func TestWorkloadVersion(t *testing.T) {
	ops, _ := newOps(fakeDetector{id: focal}, &fakeInstaller{version: semver.MustParse("1.9.10")}, &fakeRenderer{}, &fakeSupervisor{})
	got, err := ops.WorkloadVersion(context.Background())
	if err != nil {
		t.Fatalf("WorkloadVersion() returned error: %v", err)
	}
	if got != "1.9.10" {
		t.Errorf("WorkloadVersion() = %q, want 1.9.10", got)
	}
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Service.Backend = "upstart"
	if _, err := New(cfg, nil, logs.Discard()); err == nil {
		t.Error("New() succeeded with an unknown backend, want error")
	}
}
