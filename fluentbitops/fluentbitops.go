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

// Package fluentbitops installs, configures and supervises Fluent Bit on the
// unit's host.
package fluentbitops

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/blang/semver"
	"github.com/omnivector-solutions/charm-fluentbit/confgenerator/fluentbit"
	"github.com/omnivector-solutions/charm-fluentbit/internal/command"
	"github.com/omnivector-solutions/charm-fluentbit/internal/config"
	"github.com/omnivector-solutions/charm-fluentbit/internal/logs"
	"github.com/omnivector-solutions/charm-fluentbit/internal/packages"
	"github.com/omnivector-solutions/charm-fluentbit/internal/platform"
	"github.com/omnivector-solutions/charm-fluentbit/internal/service"
)

// Installer installs and removes the Fluent Bit package.
type Installer interface {
	Install(ctx context.Context, p platform.Identity) error
	Uninstall(ctx context.Context, p platform.Identity) error
	InstalledVersion(ctx context.Context, p platform.Identity) (semver.Version, error)
}

// Renderer writes the Fluent Bit configuration files.
type Renderer interface {
	Write(ctx context.Context, rc fluentbit.RenderContext) error
}

// Supervisor controls the Fluent Bit service.
type Supervisor interface {
	Restart(ctx context.Context) bool
	Stop(ctx context.Context)
	IsActive(ctx context.Context) bool
}

// FluentbitOps holds no state of its own; every call detects the platform
// afresh.
type FluentbitOps struct {
	Detector   platform.Detector
	Installer  Installer
	Renderer   Renderer
	Supervisor Supervisor
	Logger     logs.Logger
}

// New wires the components described by cfg. Commands are run through run.
func New(cfg config.Config, run command.RunFunc, logger logs.Logger) (*FluentbitOps, error) {
	detector, err := platform.NewDetector(cfg.Platform.Source, cfg.Platform.OSRelease)
	if err != nil {
		return nil, err
	}
	controller, err := service.NewController(cfg.Service.Backend, run)
	if err != nil {
		return nil, err
	}
	return &FluentbitOps{
		Detector: detector,
		Installer: &packages.Installer{
			Package:        cfg.Packages.Package,
			SigningKeyPath: cfg.Packages.SigningKey,
			YumRepoPath:    cfg.Packages.YumRepo,
			ScratchKeyPath: cfg.Packages.ScratchKey,
			Retry: packages.RetryPolicy{
				Attempts: cfg.Packages.Retries,
				Interval: time.Duration(cfg.Packages.RetryIntervalSeconds) * time.Second,
			},
			RunCommand: run,
			Logger:     logger,
		},
		Renderer: fluentbit.Renderer{
			MainPath:   cfg.Files.MainConfig,
			ParserPath: cfg.Files.ParserConfig,
			Service: fluentbit.Service{
				Flush:        cfg.Service.Flush,
				LogLevel:     cfg.Service.LogLevel,
				ParsersFiles: cfg.Service.ParsersFiles,
			},
		},
		Supervisor: &service.Supervisor{
			Unit:       cfg.Service.Unit,
			Controller: controller,
			Logger:     logger,
		},
		Logger: logger,
	}, nil
}

// Install installs the pinned Fluent Bit package. It reports false with a nil
// error when the platform is not supported or a package-manager step failed;
// both are logged. An undetectable platform or an unsupported release of a
// supported distribution is returned as an error.
func (o *FluentbitOps) Install(ctx context.Context) (bool, error) {
	p, err := o.Detector.Detect(ctx)
	if err != nil {
		return false, err
	}
	o.Logger.Debugf("Installing fluentbit on %s", p)

	err = o.Installer.Install(ctx, p)
	var unsupported *platform.UnsupportedError
	var opErr *packages.OperationError
	switch {
	case err == nil:
		o.Logger.Infof("Fluentbit installed on %s", p)
		return true, nil
	case errors.As(err, &unsupported):
		o.Logger.Errorf("Unsupported OS for fluentbit: %s", p)
		return false, nil
	case errors.As(err, &opErr):
		o.Logger.Errorf("Error installing fluentbit: %v", err)
		return false, nil
	default:
		return false, err
	}
}

// Configure renders entries into the Fluent Bit configuration files and
// restarts the service. Entries of unknown kinds are skipped with a warning.
// A failed restart is logged, not returned.
func (o *FluentbitOps) Configure(ctx context.Context, entries []fluentbit.Entry) error {
	rc, unrecognized := fluentbit.Classify(entries)
	for _, e := range unrecognized {
		o.Logger.Warnf("Ignoring configuration entry of unknown kind %q", e.Kind)
	}
	o.Logger.Debugf("Rendering %d inputs, %d filters, %d outputs, %d parsers, %d multiline parsers",
		len(rc.Inputs), len(rc.Filters), len(rc.Outputs), len(rc.Parsers), len(rc.MultilineParsers))
	if err := o.Renderer.Write(ctx, rc); err != nil {
		return fmt.Errorf("failed to write fluentbit configuration: %w", err)
	}
	if !o.Restart(ctx) {
		o.Logger.Errorf("Fluentbit is not running after reconfiguration")
	}
	return nil
}

// Restart restarts the service and reports whether it is active afterwards.
func (o *FluentbitOps) Restart(ctx context.Context) bool {
	return o.Supervisor.Restart(ctx)
}

// Stop stops and disables the service.
func (o *FluentbitOps) Stop(ctx context.Context) {
	o.Supervisor.Stop(ctx)
}

// IsActive reports whether the service is running.
func (o *FluentbitOps) IsActive(ctx context.Context) bool {
	return o.Supervisor.IsActive(ctx)
}

// Uninstall removes the package and its repository. Only a failure to detect
// the platform is returned; everything else is logged.
func (o *FluentbitOps) Uninstall(ctx context.Context) error {
	p, err := o.Detector.Detect(ctx)
	if err != nil {
		return err
	}
	if err := o.Installer.Uninstall(ctx, p); err != nil {
		o.Logger.Errorf("Error uninstalling fluentbit: %v", err)
	}
	return nil
}

// WorkloadVersion returns the version of the installed Fluent Bit package.
func (o *FluentbitOps) WorkloadVersion(ctx context.Context) (string, error) {
	p, err := o.Detector.Detect(ctx)
	if err != nil {
		return "", err
	}
	v, err := o.Installer.InstalledVersion(ctx, p)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}
