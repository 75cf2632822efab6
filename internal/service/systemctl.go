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

package service

import (
	"context"

	"github.com/omnivector-solutions/charm-fluentbit/internal/command"
)

// Systemctl drives the unit through the systemctl binary.
type Systemctl struct {
	RunCommand command.RunFunc
}

func (s Systemctl) Restart(ctx context.Context, unit string) error {
	_, err := command.Exec(ctx, s.RunCommand, "systemctl", "restart", unit)
	return err
}

func (s Systemctl) DisableNow(ctx context.Context, unit string) error {
	_, err := command.Exec(ctx, s.RunCommand, "systemctl", "disable", "--now", unit)
	return err
}

// ActiveState returns the output of systemctl is-active. systemctl exits
// non-zero for every state other than active, which surfaces as an error.
func (s Systemctl) ActiveState(ctx context.Context, unit string) (string, error) {
	return command.Exec(ctx, s.RunCommand, "systemctl", "is-active", unit)
}
