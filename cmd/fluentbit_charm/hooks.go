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
	"os"

	"github.com/omnivector-solutions/charm-fluentbit/confgenerator/fluentbit"
	"github.com/omnivector-solutions/charm-fluentbit/internal/logs"
	"github.com/omnivector-solutions/charm-fluentbit/internal/state"
	"github.com/omnivector-solutions/charm-fluentbit/internal/status"
	"github.com/omnivector-solutions/charm-fluentbit/relation"
)

type operations interface {
	Install(ctx context.Context) (bool, error)
	Configure(ctx context.Context, entries []fluentbit.Entry) error
	Restart(ctx context.Context) bool
	Stop(ctx context.Context)
	IsActive(ctx context.Context) bool
	Uninstall(ctx context.Context) error
	WorkloadVersion(ctx context.Context) (string, error)
}

type charm struct {
	ops      operations
	store    state.Store
	reporter status.Reporter
	tools    hookTools
	logger   logs.Logger
}

func (c *charm) setStatus(ctx context.Context, s status.Status) {
	if err := c.reporter.Set(ctx, s); err != nil {
		c.logger.Errorf("%v", err)
	}
}

func (c *charm) install(ctx context.Context) error {
	c.setStatus(ctx, status.Status{Name: status.Maintenance, Message: "Installing Fluentbit"})
	ok, err := c.ops.Install(ctx)
	if err != nil || !ok {
		c.setStatus(ctx, status.Status{Name: status.Blocked, Message: "Error installing Fluentbit"})
		return err
	}
	if _, err := c.store.Update(func(s *state.State) { s.Installed = true }); err != nil {
		return err
	}
	c.setWorkloadVersion(ctx)
	c.setStatus(ctx, status.Status{Name: status.Active, Message: "Fluentbit installed"})
	return nil
}

func (c *charm) upgradeCharm(ctx context.Context) error {
	c.setStatus(ctx, status.Status{Name: status.Maintenance, Message: "Upgrading Fluentbit"})
	c.setWorkloadVersion(ctx)
	c.setStatus(ctx, status.Status{Name: status.Active, Message: "Fluentbit upgraded"})
	return nil
}

// setWorkloadVersion publishes the installed package version. Only the
// leader may set it.
func (c *charm) setWorkloadVersion(ctx context.Context) {
	leader, err := c.tools.IsLeader(ctx)
	if err != nil {
		c.logger.Warnf("Could not determine leadership: %v", err)
		return
	}
	if !leader {
		return
	}
	v, err := c.ops.WorkloadVersion(ctx)
	if err != nil {
		c.logger.Warnf("Could not determine the fluentbit version: %v", err)
		return
	}
	if err := c.tools.ApplicationVersionSet(ctx, v); err != nil {
		c.logger.Warnf("Could not set the workload version: %v", err)
	}
}

func (c *charm) configChanged(ctx context.Context) error {
	st, err := c.store.Load()
	if err != nil {
		return err
	}
	if st.Configuration != "" {
		entries, err := relation.Decode(st.Configuration)
		if err != nil {
			return err
		}
		if err := c.ops.Configure(ctx, entries); err != nil {
			return err
		}
	}
	return c.checkStatus(ctx)
}

func (c *charm) start(ctx context.Context) error {
	if !c.ops.Restart(ctx) {
		c.logger.Errorf("Fluentbit did not start")
	}
	return c.checkStatus(ctx)
}

func (c *charm) stop(ctx context.Context) error {
	c.ops.Stop(ctx)
	return nil
}

func (c *charm) remove(ctx context.Context) error {
	if err := c.ops.Uninstall(ctx); err != nil {
		return err
	}
	_, err := c.store.Update(func(s *state.State) { s.Installed = false })
	return err
}

func (c *charm) updateStatus(ctx context.Context) error {
	return c.checkStatus(ctx)
}

// relationChanged stores and applies the configuration published by the
// remote unit. payloadFile, when set, replaces relation-get.
func (c *charm) relationChanged(ctx context.Context, payloadFile string) error {
	var payload string
	if payloadFile != "" {
		data, err := os.ReadFile(payloadFile)
		if err != nil {
			return err
		}
		payload = string(data)
	} else {
		var err error
		if payload, err = c.tools.RelationGet(ctx, relation.ConfigurationKey, os.Getenv("JUJU_REMOTE_UNIT")); err != nil {
			return err
		}
	}
	c.logger.Debugf("## relation-changed: received: %s", payload)
	entries, err := relation.Decode(payload)
	if err != nil {
		return err
	}
	if entries == nil {
		return nil
	}
	if _, err := c.store.Update(func(s *state.State) { s.Configuration = payload }); err != nil {
		return err
	}
	if err := c.ops.Configure(ctx, entries); err != nil {
		return err
	}
	return c.checkStatus(ctx)
}

func (c *charm) checkStatus(ctx context.Context) error {
	st, err := c.store.Load()
	if err != nil {
		return err
	}
	checks := status.Checks{
		status.InstalledCheck{Installed: st.Installed},
		status.ServiceCheck{Service: c.ops},
	}
	c.setStatus(ctx, checks.Evaluate(ctx, c.logger, status.Started))
	return nil
}
