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

// Package status derives the unit's workload status from a series of checks
// and reports it to the Juju agent.
package status

import (
	"context"
	"fmt"

	"github.com/omnivector-solutions/charm-fluentbit/internal/command"
	"github.com/omnivector-solutions/charm-fluentbit/internal/logs"
)

// Juju workload status names.
const (
	Maintenance = "maintenance"
	Active      = "active"
	Blocked     = "blocked"
	Waiting     = "waiting"
)

type Status struct {
	Name    string
	Message string
}

func (s Status) String() string {
	return fmt.Sprintf("%s: %s", s.Name, s.Message)
}

// CheckError is returned by a failing Check. Status is what the unit
// should report because of it.
type CheckError struct {
	Status Status
}

func (e *CheckError) Error() string {
	return e.Status.Message
}

type Check interface {
	Name() string
	Run(ctx context.Context) error
}

// Checks run in order; the first failure decides the status.
type Checks []Check

// Evaluate returns the status of the first failing check, or ok when all of
// them pass.
func (c Checks) Evaluate(ctx context.Context, logger logs.Logger, ok Status) Status {
	for _, check := range c {
		err := check.Run(ctx)
		if err == nil {
			logger.Debugf("%s - Result: PASS", check.Name())
			continue
		}
		if checkErr, isCheckErr := err.(*CheckError); isCheckErr {
			logger.Infof("%s - Result: FAIL, Status: %s", check.Name(), checkErr.Status)
			return checkErr.Status
		}
		logger.Errorf("%s - Result: ERROR, Detail: %v", check.Name(), err)
		return Status{Name: Blocked, Message: fmt.Sprintf("%s check failed", check.Name())}
	}
	return ok
}

// InstalledCheck fails until the package was installed successfully.
type InstalledCheck struct {
	Installed bool
}

func (InstalledCheck) Name() string { return "Installed Check" }

func (c InstalledCheck) Run(context.Context) error {
	if !c.Installed {
		return &CheckError{Status: Status{Name: Maintenance, Message: "Fluentbit not installed"}}
	}
	return nil
}

// ServiceCheck fails while the Fluent Bit service is not active.
type ServiceCheck struct {
	Service interface {
		IsActive(ctx context.Context) bool
	}
}

func (ServiceCheck) Name() string { return "Service Check" }

func (c ServiceCheck) Run(ctx context.Context) error {
	if !c.Service.IsActive(ctx) {
		return &CheckError{Status: Status{Name: Maintenance, Message: "Fluentbit installed but not running"}}
	}
	return nil
}

// Started is the status of a unit whose checks all pass.
var Started = Status{Name: Active, Message: "Fluentbit started"}

// Reporter sets the unit status with the status-set hook tool.
type Reporter struct {
	RunCommand command.RunFunc
	Logger     logs.Logger
}

func (r Reporter) Set(ctx context.Context, s Status) error {
	r.Logger.Debugf("Setting unit status to %s", s)
	if _, err := command.Exec(ctx, r.RunCommand, "status-set", s.Name, s.Message); err != nil {
		return fmt.Errorf("failed to set unit status: %w", err)
	}
	return nil
}
