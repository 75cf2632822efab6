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

// fluentbit_charm runs the hooks of the Fluent Bit charm. Juju invokes it
// through the charm's dispatch script, either with the hook name as the
// first argument or with JUJU_DISPATCH_PATH set.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kardianos/osext"
	"github.com/omnivector-solutions/charm-fluentbit/fluentbitops"
	"github.com/omnivector-solutions/charm-fluentbit/internal/command"
	"github.com/omnivector-solutions/charm-fluentbit/internal/config"
	"github.com/omnivector-solutions/charm-fluentbit/internal/logs"
	"github.com/omnivector-solutions/charm-fluentbit/internal/state"
	"github.com/omnivector-solutions/charm-fluentbit/internal/status"
	"github.com/omnivector-solutions/charm-fluentbit/internal/version"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := buildRootCmd(newCharm)
	args := dispatchArgs(os.Args[1:], os.Getenv("JUJU_DISPATCH_PATH"))
	if len(os.Args) == 1 && !handles(rootCmd, args) {
		// Dispatched for a hook the charm does not observe.
		return
	}
	rootCmd.SetArgs(args)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// dispatchArgs derives the hook to run from JUJU_DISPATCH_PATH (e.g.
// "hooks/install") when no arguments were given.
func dispatchArgs(args []string, dispatchPath string) []string {
	if len(args) > 0 || dispatchPath == "" {
		return args
	}
	return []string{filepath.Base(dispatchPath)}
}

func handles(rootCmd *cobra.Command, args []string) bool {
	cmd, _, err := rootCmd.Find(args)
	return err == nil && cmd != rootCmd
}

type options struct {
	configPath string
	charmDir   string
}

// newCharm wires the hook handlers to the host.
func newCharm(opts options) (*charm, error) {
	if opts.charmDir == "" {
		// The hook binary ships inside the charm.
		dir, err := osext.ExecutableFolder()
		if err != nil {
			return nil, fmt.Errorf("could not determine the charm directory: %w", err)
		}
		opts.charmDir = dir
	}
	cfg, err := config.Load(opts.configPath, opts.charmDir)
	if err != nil {
		return nil, err
	}
	logger, err := logs.New(logs.Options{
		File:       cfg.Logging.File,
		Level:      cfg.Logging.Level,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	})
	if err != nil {
		return nil, err
	}
	run := command.Logged(logger, command.Run)
	ops, err := fluentbitops.New(cfg, run, logger)
	if err != nil {
		return nil, err
	}
	return &charm{
		ops:      ops,
		store:    state.Store{Path: cfg.State.Path},
		reporter: status.Reporter{RunCommand: run, Logger: logger},
		tools:    hookTools{RunCommand: run},
		logger:   logger,
	}, nil
}

func buildRootCmd(build func(options) (*charm, error)) *cobra.Command {
	var (
		opts  options
		c     *charm
		input string
	)
	rootCmd := &cobra.Command{
		Use:           "fluentbit_charm",
		Short:         "Run a hook of the Fluent Bit charm",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			c, err = build(opts)
			return err
		},
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "",
		"Path to the charm's YAML configuration; defaults apply when empty")
	rootCmd.PersistentFlags().StringVar(&opts.charmDir, "charm-dir", os.Getenv("JUJU_CHARM_DIR"),
		"Charm directory that relative paths resolve against")

	hook := func(use, short string, run func(*charm, context.Context) error) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				c.logger.Debugf("## Running %s hook", use)
				return run(c, cmd.Context())
			},
		}
	}
	relationChanged := hook("fluentbit-relation-changed", "Apply the configuration received over the relation",
		func(c *charm, ctx context.Context) error { return c.relationChanged(ctx, input) })
	relationChanged.Flags().StringVar(&input, "payload-file", "",
		"Read the configuration payload from this file instead of relation-get")

	rootCmd.AddCommand(
		hook("install", "Install Fluent Bit", (*charm).install),
		hook("upgrade-charm", "Upgrade the charm", (*charm).upgradeCharm),
		hook("config-changed", "Re-apply the stored configuration", (*charm).configChanged),
		hook("start", "Start Fluent Bit", (*charm).start),
		hook("stop", "Stop Fluent Bit", (*charm).stop),
		hook("remove", "Uninstall Fluent Bit", (*charm).remove),
		hook("update-status", "Report the unit status", (*charm).updateStatus),
		relationChanged,
	)
	return rootCmd
}
