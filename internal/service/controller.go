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
	"fmt"

	"github.com/omnivector-solutions/charm-fluentbit/internal/command"
)

// NewController returns the controller for a configured backend:
// "systemctl" or "dbus".
func NewController(backend string, run command.RunFunc) (Controller, error) {
	switch backend {
	case "", "systemctl":
		return Systemctl{RunCommand: run}, nil
	case "dbus":
		return DBus{NewConn: NewDBusAPI}, nil
	default:
		return nil, fmt.Errorf("unknown service backend %q", backend)
	}
}
