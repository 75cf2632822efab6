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

// Package relation encodes the configuration exchanged over the fluentbit
// relation. The requiring charm publishes a JSON list of directives under
// ConfigurationKey in its unit data bag.
package relation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/omnivector-solutions/charm-fluentbit/confgenerator/fluentbit"
)

const (
	Name             = "fluentbit"
	ConfigurationKey = "configuration"
)

// Decode parses a relation payload. An empty payload carries no entries.
func Decode(payload string) ([]fluentbit.Entry, error) {
	if strings.TrimSpace(payload) == "" {
		return nil, nil
	}
	entries, err := fluentbit.ParseEntries([]byte(payload))
	if err != nil {
		return nil, fmt.Errorf("invalid %s relation data: %w", ConfigurationKey, err)
	}
	return entries, nil
}

// Encode produces the payload a requiring charm sets under ConfigurationKey.
func Encode(entries []fluentbit.Entry) (string, error) {
	if entries == nil {
		entries = []fluentbit.Entry{}
	}
	var b strings.Builder
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(entries); err != nil {
		return "", err
	}
	return strings.TrimSuffix(b.String(), "\n"), nil
}
