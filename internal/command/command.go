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

// Package command runs external programs (package managers, systemctl, hook
// tools) and reports their combined output.
package command

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/omnivector-solutions/charm-fluentbit/internal/logs"
)

// RunFunc runs cmd to completion and returns its combined output. Tests
// replace it to observe and script the commands a component issues.
type RunFunc func(cmd *exec.Cmd) (string, error)

// Error is returned when a command could not be started or exited non-zero.
type Error struct {
	Args   []string
	Output string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("command %q failed: %v\ncommand output: %s", e.Args, e.Err, e.Output)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Run is the RunFunc used outside of tests.
func Run(cmd *exec.Cmd) (string, error) {
	if cmd == nil {
		return "", nil
	}
	setProcAttr(cmd)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), &Error{Args: cmd.Args, Output: string(out), Err: err}
	}
	return string(out), nil
}

// Logged wraps run so every invocation and every failure is logged.
func Logged(logger logs.Logger, run RunFunc) RunFunc {
	return func(cmd *exec.Cmd) (string, error) {
		logger.Debugf("Running command: %s", cmd.Args)
		out, err := run(cmd)
		if err != nil {
			logger.Errorf("Command %s failed, \ncommand output: %s\ncommand error: %s", cmd.Args, out, err)
		}
		return out, err
	}
}

// Exec builds the command name args... bound to ctx and runs it with run.
func Exec(ctx context.Context, run RunFunc, name string, args ...string) (string, error) {
	return run(exec.CommandContext(ctx, name, args...))
}
