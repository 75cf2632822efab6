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

// Package config loads the operator configuration of the charm.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
	"github.com/omnivector-solutions/charm-fluentbit/confgenerator/fluentbit"
	"github.com/omnivector-solutions/charm-fluentbit/internal/packages"
	"github.com/omnivector-solutions/charm-fluentbit/internal/platform"
	"github.com/omnivector-solutions/charm-fluentbit/internal/service"
)

type Config struct {
	Platform Platform `yaml:"platform"`
	Packages Packages `yaml:"packages"`
	Service  Service  `yaml:"service"`
	Files    Files    `yaml:"files"`
	Logging  Logging  `yaml:"logging"`
	State    State    `yaml:"state"`
}

type Platform struct {
	// Source is "os-release" or "host".
	Source    string `yaml:"source" validate:"oneof=os-release host"`
	OSRelease string `yaml:"os_release" validate:"required"`
}

type Packages struct {
	Package              string `yaml:"package" validate:"required"`
	SigningKey           string `yaml:"signing_key" validate:"required"`
	YumRepo              string `yaml:"yum_repo" validate:"required"`
	ScratchKey           string `yaml:"scratch_key" validate:"required"`
	Retries              int    `yaml:"retries" validate:"min=0,max=20"`
	RetryIntervalSeconds int    `yaml:"retry_interval_seconds" validate:"min=0"`
}

type Service struct {
	Unit         string   `yaml:"unit" validate:"required"`
	Backend      string   `yaml:"backend" validate:"oneof=systemctl dbus"`
	LogLevel     string   `yaml:"log_level" validate:"oneof=off error warn info debug trace"`
	Flush        int      `yaml:"flush" validate:"min=1"`
	ParsersFiles []string `yaml:"parsers_files" validate:"dive,required"`
}

type Files struct {
	MainConfig   string `yaml:"main_config" validate:"required"`
	ParserConfig string `yaml:"parser_config" validate:"required"`
}

type Logging struct {
	// File is the charm log file. Logs go to stderr when it is empty.
	File       string `yaml:"file"`
	Level      string `yaml:"level" validate:"oneof=debug info warn error"`
	MaxSizeMB  int    `yaml:"max_size_mb" validate:"min=0"`
	MaxBackups int    `yaml:"max_backups" validate:"min=0"`
}

type State struct {
	Path string `yaml:"path" validate:"required"`
}

func Default() Config {
	return Config{
		Platform: Platform{
			Source:    "os-release",
			OSRelease: platform.DefaultOSReleasePath,
		},
		Packages: Packages{
			Package:              packages.DefaultPackage,
			SigningKey:           filepath.Join("templates", "fluentbit.key"),
			YumRepo:              packages.DefaultYumRepoPath,
			ScratchKey:           packages.DefaultScratchKeyPath,
			Retries:              3,
			RetryIntervalSeconds: 10,
		},
		Service: Service{
			Unit:         service.DefaultUnit,
			Backend:      "systemctl",
			LogLevel:     "info",
			Flush:        1,
			ParsersFiles: []string{fluentbit.DefaultParsersFile},
		},
		Files: Files{
			MainConfig:   fluentbit.DefaultMainPath,
			ParserConfig: fluentbit.DefaultParserPath,
		},
		Logging: Logging{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		State: State{
			Path: ".fluentbit-state.yaml",
		},
	}
}

var validate = validator.New()

// Parse decodes input over the defaults and validates the result. Unknown
// fields are rejected.
func Parse(input []byte) (Config, error) {
	cfg := Default()
	if len(bytes.TrimSpace(input)) == 0 {
		return cfg, nil
	}
	if err := yaml.UnmarshalWithOptions(input, &cfg, yaml.DisallowUnknownField()); err != nil {
		return Config{}, fmt.Errorf("the charm config file is not valid YAML. detailed error: %s", yaml.FormatError(err, false, true))
	}
	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid charm config: %w", err)
	}
	return cfg, nil
}

// Load reads the config file at path, or uses the defaults when path is
// empty, and resolves relative file paths against charmDir.
func Load(path, charmDir string) (Config, error) {
	var input []byte
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read charm config: %w", err)
		}
		input = data
	}
	cfg, err := Parse(input)
	if err != nil {
		return Config{}, err
	}
	cfg.resolve(charmDir)
	return cfg, nil
}

func (c *Config) resolve(charmDir string) {
	if charmDir == "" {
		return
	}
	for _, p := range []*string{
		&c.Packages.SigningKey,
		&c.State.Path,
		&c.Logging.File,
	} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(charmDir, *p)
		}
	}
}
