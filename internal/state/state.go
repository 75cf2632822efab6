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

// Package state persists what the charm remembers between hooks.
package state

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
)

type State struct {
	Installed bool `yaml:"installed"`
	// Configuration is the last configuration payload received over the
	// relation, kept verbatim.
	Configuration string `yaml:"configuration,omitempty"`
}

// Store reads and writes State as a YAML file.
type Store struct {
	Path string
}

// Load returns the zero State if nothing was saved yet.
func (s Store) Load() (State, error) {
	var st State
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("failed to read charm state: %w", err)
	}
	if err := yaml.Unmarshal(data, &st); err != nil {
		return State{}, fmt.Errorf("failed to parse charm state %s: %w", s.Path, err)
	}
	return st, nil
}

func (s Store) Save(st State) error {
	data, err := yaml.Marshal(st)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0755); err != nil {
		return err
	}
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write charm state: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("failed to replace charm state: %w", err)
	}
	return nil
}

// Update loads the state, applies fn and saves the result.
func (s Store) Update(fn func(*State)) (State, error) {
	st, err := s.Load()
	if err != nil {
		return st, err
	}
	fn(&st)
	return st, s.Save(st)
}
