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
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-yaml"
)

// A Setting is one `key value` line of a stanza.
type Setting struct {
	Key   string
	Value string
}

// Settings keep the order they were supplied in; Fluent Bit allows a key to
// repeat within a stanza.
type Settings []Setting

// An Entry is a single configuration directive, e.g. {"input": {"name": "tail"}}.
type Entry struct {
	// Kind is the directive key as supplied: input, filter, output, parser or
	// multiline_parser, in any case.
	Kind     string
	Settings Settings
}

// ParseEntries decodes a JSON or YAML list of single-key mappings. The value
// of each mapping is either a mapping of settings or a list of [key, value]
// pairs. A setting whose value is a list expands into one line per element.
//
// Valid JSON is decoded with JSON string escapes, and a key repeated within
// one object keeps its first position and its last value. Anything else is
// parsed as YAML.
func ParseEntries(data []byte) ([]Entry, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	var raw interface{}
	if trimmed[0] == '[' && json.Valid(trimmed) {
		var err error
		if raw, err = decodeJSON(trimmed); err != nil {
			return nil, fmt.Errorf("failed to parse configuration entries: %w", err)
		}
	} else if err := yaml.UnmarshalWithOptions(data, &raw, yaml.UseOrderedMap()); err != nil {
		return nil, fmt.Errorf("failed to parse configuration entries: %w", err)
	}
	if raw == nil {
		return nil, nil
	}
	list, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("configuration must be a list of entries, got %T", raw)
	}
	entries := make([]Entry, 0, len(list))
	for i, item := range list {
		m, ok := item.(yaml.MapSlice)
		if !ok {
			return nil, fmt.Errorf("entry %d: must be a mapping, got %T", i, item)
		}
		if len(m) != 1 {
			return nil, fmt.Errorf("entry %d: must have exactly one key, got %d", i, len(m))
		}
		kind := fmt.Sprint(m[0].Key)
		settings, err := parseSettings(m[0].Value)
		if err != nil {
			return nil, fmt.Errorf("entry %d (%s): %w", i, kind, err)
		}
		entries = append(entries, Entry{Kind: kind, Settings: settings})
	}
	return entries, nil
}

// decodeJSON walks the token stream of a JSON document into the same shapes
// the YAML decoder produces, so objects stay ordered.
func decodeJSON(data []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeJSONValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("unexpected data after the top-level value")
	}
	return v, nil
}

func decodeJSONValue(dec *json.Decoder) (interface{}, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	d, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}
	switch d {
	case '[':
		list := []interface{}{}
		for dec.More() {
			v, err := decodeJSONValue(dec)
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return list, nil
	case '{':
		m := yaml.MapSlice{}
		index := map[string]int{}
		for dec.More() {
			kt, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, ok := kt.(string)
			if !ok {
				return nil, fmt.Errorf("object key must be a string, got %v", kt)
			}
			v, err := decodeJSONValue(dec)
			if err != nil {
				return nil, err
			}
			if j, ok := index[key]; ok {
				m[j].Value = v
				continue
			}
			index[key] = len(m)
			m = append(m, yaml.MapItem{Key: key, Value: v})
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unexpected delimiter %v", d)
	}
}

func parseSettings(v interface{}) (Settings, error) {
	var s Settings
	switch v := v.(type) {
	case nil:
		return s, nil
	case yaml.MapSlice:
		for _, item := range v {
			var err error
			if s, err = appendSetting(s, item.Key, item.Value); err != nil {
				return nil, err
			}
		}
	case []interface{}:
		for _, pair := range v {
			var err error
			switch p := pair.(type) {
			case []interface{}:
				if len(p) != 2 {
					return nil, fmt.Errorf("setting pair must have 2 elements, got %d", len(p))
				}
				s, err = appendSetting(s, p[0], p[1])
			case yaml.MapSlice:
				if len(p) != 1 {
					return nil, fmt.Errorf("setting mapping must have exactly one key, got %d", len(p))
				}
				s, err = appendSetting(s, p[0].Key, p[0].Value)
			default:
				return nil, fmt.Errorf("setting must be a [key, value] pair, got %T", pair)
			}
			if err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("settings must be a mapping or a list of pairs, got %T", v)
	}
	return s, nil
}

func appendSetting(s Settings, k, v interface{}) (Settings, error) {
	key, err := scalar(k)
	if err != nil {
		return nil, fmt.Errorf("setting key: %w", err)
	}
	if values, ok := v.([]interface{}); ok {
		for _, elem := range values {
			value, err := scalar(elem)
			if err != nil {
				return nil, fmt.Errorf("setting %q: %w", key, err)
			}
			s = append(s, Setting{Key: key, Value: value})
		}
		return s, nil
	}
	value, err := scalar(v)
	if err != nil {
		return nil, fmt.Errorf("setting %q: %w", key, err)
	}
	return append(s, Setting{Key: key, Value: value}), nil
}

func scalar(v interface{}) (string, error) {
	switch v := v.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case yaml.MapSlice, map[string]interface{}, map[interface{}]interface{}, []interface{}:
		return "", fmt.Errorf("nested value %v is not supported", v)
	default:
		return fmt.Sprint(v), nil
	}
}

// MarshalJSON encodes the entry as a single-key object. Settings are written
// as an object unless a key repeats, in which case they become a list of
// [key, value] pairs so that nothing is lost.
func (e Entry) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	if err := writeJSONString(&b, e.Kind); err != nil {
		return nil, err
	}
	b.WriteByte(':')
	pairs := e.Settings.hasDuplicateKeys()
	if pairs {
		b.WriteByte('[')
	} else {
		b.WriteByte('{')
	}
	for i, s := range e.Settings {
		if i > 0 {
			b.WriteByte(',')
		}
		if pairs {
			b.WriteByte('[')
		}
		if err := writeJSONString(&b, s.Key); err != nil {
			return nil, err
		}
		if pairs {
			b.WriteByte(',')
		} else {
			b.WriteByte(':')
		}
		if err := writeJSONString(&b, s.Value); err != nil {
			return nil, err
		}
		if pairs {
			b.WriteByte(']')
		}
	}
	if pairs {
		b.WriteByte(']')
	} else {
		b.WriteByte('}')
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// writeJSONString writes s as a JSON string without HTML escaping, which
// would mangle the named groups of parser regexes.
func writeJSONString(b *bytes.Buffer, s string) error {
	enc := json.NewEncoder(b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	b.Truncate(b.Len() - 1)
	return nil
}

func (s Settings) hasDuplicateKeys() bool {
	seen := make(map[string]bool, len(s))
	for _, setting := range s {
		k := strings.ToLower(setting.Key)
		if seen[k] {
			return true
		}
		seen[k] = true
	}
	return false
}
