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
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds how often a transient package-manager failure is retried.
type RetryPolicy struct {
	Attempts int
	Interval time.Duration
}

var transientOutputs = []string{
	"Could not get lock",
	"Unable to acquire the dpkg frontend lock",
	"Resource temporarily unavailable",
	"Hash Sum mismatch",
	"Mirror sync in progress?",
	"Clearsigned file isn't valid",
	"Cannot retrieve repository metadata",
}

// isRetriableInstallError checks to see if the error may be transient.
func isRetriableInstallError(err error) bool {
	var opErr *OperationError
	if !errors.As(err, &opErr) {
		return false
	}
	for _, s := range transientOutputs {
		if strings.Contains(opErr.Output, s) {
			return true
		}
	}
	return false
}

// retry runs installFunc, retrying failures that look transient.
func (i *Installer) retry(ctx context.Context, installFunc func() error) error {
	if i.Retry.Attempts <= 0 {
		return installFunc()
	}
	attempt := func() error {
		err := installFunc()
		if err != nil && !isRetriableInstallError(err) {
			return backoff.Permanent(err)
		}
		if err != nil {
			i.Logger.Warnf("Transient package manager failure, retrying: %v", err)
		}
		// Returning a non-permanent error triggers retries.
		return err
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(i.Retry.Interval), uint64(i.Retry.Attempts)), ctx)
	return backoff.Retry(attempt, policy)
}
