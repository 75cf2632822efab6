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

package logs

import (
	"fmt"

	"github.com/omnivector-solutions/charm-fluentbit/internal/version"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Logger interface {
	Debugf(format string, v ...any)
	Infof(format string, v ...any)
	Warnf(format string, v ...any)
	Errorf(format string, v ...any)
}

type ZapLogger struct {
	logger *zap.SugaredLogger
}

// Options controls where the charm log goes and how it is rotated.
type Options struct {
	// File is the log file path. Empty means stderr.
	File       string
	Level      string
	MaxSizeMB  int
	MaxBackups int
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.MessageKey = "message"
	cfg.TimeKey = "time"
	cfg.EncodeTime = zapcore.RFC3339TimeEncoder
	return cfg
}

// New builds a JSON logger writing to a size-rotated file.
func New(opts Options) (*ZapLogger, error) {
	level, err := zapcore.ParseLevel(opts.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
	}
	if opts.File == "" {
		cfg := zap.NewProductionConfig()
		cfg.EncoderConfig = encoderConfig()
		cfg.Level = zap.NewAtomicLevelAt(level)
		cfg.OutputPaths = []string{"stderr"}
		logger, err := cfg.Build(zap.AddCallerSkip(1))
		if err != nil {
			return nil, err
		}
		return wrap(logger), nil
	}
	sink := zapcore.AddSync(&lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		Compress:   false,
	})
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), sink, level)
	return wrap(zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))), nil
}

func wrap(logger *zap.Logger) *ZapLogger {
	return &ZapLogger{
		logger: logger.Sugar().With(zap.String("charm-version", version.Version)),
	}
}

// FromZap adapts an existing zap logger, typically an observer in tests.
func FromZap(logger *zap.Logger) *ZapLogger {
	return &ZapLogger{logger: logger.Sugar()}
}

func Discard() *ZapLogger {
	observedZapCore, _ := observer.New(zap.InfoLevel)
	return FromZap(zap.New(observedZapCore))
}

func Default() *ZapLogger {
	logger, err := zap.NewProduction()
	if err != nil {
		return Discard()
	}
	return wrap(logger)
}

func (f ZapLogger) Debugf(format string, v ...any) {
	f.logger.Debugf(format, v...)
}

func (f ZapLogger) Infof(format string, v ...any) {
	f.logger.Infof(format, v...)
}

func (f ZapLogger) Warnf(format string, v ...any) {
	f.logger.Warnf(format, v...)
}

func (f ZapLogger) Errorf(format string, v ...any) {
	f.logger.Errorf(format, v...)
}

// Sync flushes buffered entries.
func (f ZapLogger) Sync() error {
	return f.logger.Sync()
}
