// Copyright 2020 Google LLC
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

// Package fluentbit classifies configuration directives and generates the
// Fluent Bit main and parser configuration files from them.
package fluentbit

import (
	"context"
	"fmt"
	"strings"
	"text/template"
)

const (
	DefaultMainPath   = "/etc/td-agent-bit/td-agent-bit.conf"
	DefaultParserPath = "/etc/td-agent-bit/charm-parsers.conf"
	// DefaultParsersFile is the parser file shipped with the package,
	// resolved relative to the main configuration.
	DefaultParsersFile = "parsers.conf"
)

var mainConfTemplate = template.Must(
	template.New("fluentBitMainConf").
		Funcs(template.FuncMap{
			"section": renderSection,
		}).
		Parse(`{{section "SERVICE" .Service}}
{{- range .Inputs}}

{{section "INPUT" .}}
{{- end}}
{{- range .Filters}}

{{section "FILTER" .}}
{{- end}}
{{- range .Outputs}}

{{section "OUTPUT" .}}
{{- end}}
`))

var parserConfTemplate = template.Must(
	template.New("fluentBitParserConf").
		Funcs(template.FuncMap{
			"section": renderSection,
		}).
		Parse(`{{- range .Parsers -}}
{{section "PARSER" .}}

{{end -}}
{{- range .MultilineParsers -}}
{{section "MULTILINE_PARSER" .}}

{{end -}}
`))

// RenderError is returned when a configuration file cannot be generated or
// written.
type RenderError struct {
	File string
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("failed to render %s: %v", e.File, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// renderSection formats one stanza with its keys padded to the longest key.
func renderSection(kind string, settings Settings) (string, error) {
	var width int
	for _, s := range settings {
		if err := validateSetting(s); err != nil {
			return "", fmt.Errorf("[%s]: %w", kind, err)
		}
		if len(s.Key) > width {
			width = len(s.Key)
		}
	}
	lines := []string{fmt.Sprintf("[%s]", kind)}
	for _, s := range settings {
		line := fmt.Sprintf("    %-*s %s", width, s.Key, s.Value)
		lines = append(lines, strings.TrimRight(line, " "))
	}
	return strings.Join(lines, "\n"), nil
}

func validateSetting(s Setting) error {
	switch {
	case s.Key == "":
		return fmt.Errorf("empty setting key")
	case strings.ContainsAny(s.Key, " \t\r\n"):
		return fmt.Errorf("setting key %q contains whitespace", s.Key)
	case strings.ContainsAny(s.Value, "\r\n"):
		return fmt.Errorf("value of setting %q contains a line break", s.Key)
	}
	return nil
}

// Service holds the [SERVICE] settings of the main configuration.
type Service struct {
	Flush    int
	LogLevel string
	// ParsersFiles are loaded before the charm's own parser file.
	ParsersFiles []string
}

// Renderer generates and writes the main and parser configuration files.
type Renderer struct {
	MainPath   string
	ParserPath string
	Service    Service
}

func (r Renderer) mainPath() string {
	if r.MainPath == "" {
		return DefaultMainPath
	}
	return r.MainPath
}

func (r Renderer) parserPath() string {
	if r.ParserPath == "" {
		return DefaultParserPath
	}
	return r.ParserPath
}

func (r Renderer) serviceSettings() Settings {
	flush := r.Service.Flush
	if flush <= 0 {
		flush = 1
	}
	logLevel := r.Service.LogLevel
	if logLevel == "" {
		logLevel = "info"
	}
	s := Settings{
		{Key: "Flush", Value: fmt.Sprint(flush)},
		{Key: "Daemon", Value: "off"},
		{Key: "Log_Level", Value: logLevel},
	}
	files := r.Service.ParsersFiles
	if files == nil {
		files = []string{DefaultParsersFile}
	}
	var haveCharmParsers bool
	for _, f := range files {
		s = append(s, Setting{Key: "Parsers_File", Value: f})
		haveCharmParsers = haveCharmParsers || f == r.parserPath()
	}
	if !haveCharmParsers {
		s = append(s, Setting{Key: "Parsers_File", Value: r.parserPath()})
	}
	return s
}

func (r Renderer) generateMain(rc RenderContext) (string, error) {
	data := struct {
		RenderContext
		Service Settings
	}{rc, r.serviceSettings()}
	var mainConfigBuilder strings.Builder
	if err := mainConfTemplate.Execute(&mainConfigBuilder, data); err != nil {
		return "", &RenderError{File: r.mainPath(), Err: err}
	}
	return mainConfigBuilder.String(), nil
}

func (r Renderer) generateParser(rc RenderContext) (string, error) {
	var parserConfigBuilder strings.Builder
	if err := parserConfTemplate.Execute(&parserConfigBuilder, rc); err != nil {
		return "", &RenderError{File: r.parserPath(), Err: err}
	}
	return parserConfigBuilder.String(), nil
}

// Generate returns the contents of the main and parser configuration files.
func (r Renderer) Generate(rc RenderContext) (mainConfig string, parserConfig string, err error) {
	mainConfig, err = r.generateMain(rc)
	if err != nil {
		return "", "", err
	}

	parserConfig, err = r.generateParser(rc)
	if err != nil {
		return "", "", err
	}

	return mainConfig, parserConfig, nil
}

// Write generates both files and replaces them on disk. Neither file is
// replaced unless both were generated and staged successfully.
func (r Renderer) Write(ctx context.Context, rc RenderContext) error {
	mainConfig, parserConfig, err := r.Generate(rc)
	if err != nil {
		return err
	}
	return writeFiles(ctx,
		pendingFile{path: r.parserPath(), content: parserConfig},
		pendingFile{path: r.mainPath(), content: mainConfig},
	)
}

// Paths returns the main and parser configuration paths.
func (r Renderer) Paths() (mainPath, parserPath string) {
	return r.mainPath(), r.parserPath()
}
