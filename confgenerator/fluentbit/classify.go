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

import "strings"

// Directive kinds, compared case-insensitively.
const (
	KindInput           = "input"
	KindFilter          = "filter"
	KindOutput          = "output"
	KindParser          = "parser"
	KindMultilineParser = "multiline_parser"
)

// A RenderContext holds the settings of every entry bucketed by kind, each
// bucket in input order.
type RenderContext struct {
	Inputs           []Settings
	Filters          []Settings
	Outputs          []Settings
	Parsers          []Settings
	MultilineParsers []Settings
}

// Classify buckets entries by their lower-cased kind. Entries of any other
// kind are not rendered; they are returned so the caller can report them.
func Classify(entries []Entry) (RenderContext, []Entry) {
	var rc RenderContext
	var unrecognized []Entry
	for _, e := range entries {
		switch strings.ToLower(e.Kind) {
		case KindInput:
			rc.Inputs = append(rc.Inputs, e.Settings)
		case KindFilter:
			rc.Filters = append(rc.Filters, e.Settings)
		case KindOutput:
			rc.Outputs = append(rc.Outputs, e.Settings)
		case KindParser:
			rc.Parsers = append(rc.Parsers, e.Settings)
		case KindMultilineParser:
			rc.MultilineParsers = append(rc.MultilineParsers, e.Settings)
		default:
			unrecognized = append(unrecognized, e)
		}
	}
	return rc, unrecognized
}
