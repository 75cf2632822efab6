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

// Package service supervises the Fluent Bit systemd unit.
package service

import (
	"context"
	"strings"

	"github.com/omnivector-solutions/charm-fluentbit/internal/logs"
)

const (
	DefaultUnit = "td-agent-bit.service"
	// ActiveState is the state systemd reports for a running unit.
	ActiveState = "active"
)

// Controller issues the init-system requests for a unit.
type Controller interface {
	Restart(ctx context.Context, unit string) error
	// DisableNow disables the unit and stops it.
	DisableNow(ctx context.Context, unit string) error
	ActiveState(ctx context.Context, unit string) (string, error)
}

type Supervisor struct {
	Unit       string
	Controller Controller
	Logger     logs.Logger
}

func (s *Supervisor) unit() string {
	if s.Unit == "" {
		return DefaultUnit
	}
	return s.Unit
}

// Restart restarts the unit, starting it if it was not running, and reports
// whether it is active afterwards.
func (s *Supervisor) Restart(ctx context.Context) bool {
	s.Logger.Debugf("Restarting %s", s.unit())
	if err := s.Controller.Restart(ctx, s.unit()); err != nil {
		s.Logger.Errorf("Error restarting fluentbit: %v", err)
		return false
	}
	return s.IsActive(ctx)
}

// Stop stops and disables the unit. Failures are only logged.
func (s *Supervisor) Stop(ctx context.Context) {
	s.Logger.Debugf("Stopping %s", s.unit())
	if err := s.Controller.DisableNow(ctx, s.unit()); err != nil {
		s.Logger.Errorf("Error stopping fluentbit: %v", err)
	}
}

// IsActive reports whether the unit is active. Any failure to query it,
// including an unknown unit, counts as not active.
func (s *Supervisor) IsActive(ctx context.Context) bool {
	state, err := s.Controller.ActiveState(ctx, s.unit())
	if err != nil {
		s.Logger.Errorf("Error checking fluentbit service: %v", err)
		return false
	}
	return strings.ToLower(strings.TrimSpace(state)) == ActiveState
}
