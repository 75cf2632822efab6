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

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/omnivector-solutions/charm-fluentbit/internal/command"
)

// hookTools runs the Juju hook tools available to a hook process.
type hookTools struct {
	RunCommand command.RunFunc
}

func (t hookTools) IsLeader(ctx context.Context) (bool, error) {
	out, err := command.Exec(ctx, t.RunCommand, "is-leader", "--format=json")
	if err != nil {
		return false, err
	}
	leader, err := strconv.ParseBool(strings.TrimSpace(out))
	if err != nil {
		return false, fmt.Errorf("unexpected is-leader output %q: %w", out, err)
	}
	return leader, nil
}

func (t hookTools) ApplicationVersionSet(ctx context.Context, version string) error {
	_, err := command.Exec(ctx, t.RunCommand, "application-version-set", version)
	return err
}

// RelationGet reads key from unit's data bag on the relation of the running
// hook. An empty unit means the remote unit of the hook.
func (t hookTools) RelationGet(ctx context.Context, key, unit string) (string, error) {
	args := []string{"--format=json", key}
	if unit != "" {
		args = append(args, unit)
	}
	out, err := command.Exec(ctx, t.RunCommand, "relation-get", args...)
	if err != nil {
		return "", err
	}
	return decodeRelationValue(out)
}

// decodeRelationValue unwraps the JSON string relation-get prints; an unset
// key prints null.
func decodeRelationValue(out string) (string, error) {
	out = strings.TrimSpace(out)
	if out == "" {
		return "", nil
	}
	var v *string
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		return "", fmt.Errorf("unexpected relation-get output %q: %w", out, err)
	}
	if v == nil {
		return "", nil
	}
	return *v, nil
}
