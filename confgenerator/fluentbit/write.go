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

package fluentbit

import (
	"context"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
)

type pendingFile struct {
	path    string
	content string
}

// writeFiles stages every file next to its destination and renames them into
// place only once all of them are staged.
func writeFiles(ctx context.Context, files ...pendingFile) (err error) {
	staged := make([]string, 0, len(files))
	defer func() {
		if err != nil {
			for _, name := range staged {
				os.Remove(name)
			}
		}
	}()
	for _, f := range files {
		name, err := stage(f)
		if err != nil {
			return &RenderError{File: f.path, Err: err}
		}
		staged = append(staged, name)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for i, f := range files {
		if err := os.Rename(staged[i], f.path); err != nil {
			return &RenderError{File: f.path, Err: err}
		}
	}
	return nil
}

func stage(f pendingFile) (name string, err error) {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return "", err
	}
	defer func() {
		err = multierr.Append(err, tmp.Close())
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()
	if _, err := tmp.WriteString(f.content); err != nil {
		return "", err
	}
	if err := tmp.Sync(); err != nil {
		return "", err
	}
	if err := tmp.Chmod(0644); err != nil {
		return "", err
	}
	return tmp.Name(), nil
}
