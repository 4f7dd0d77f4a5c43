// Package logging sets up the operator-facing log: what browser is being tested, which downloads
// and builds are running, and any degraded behavior such as an unreachable test page catalog.
//
// Per-test debug output is not written here; it is captured by the test framework and only shown
// for failed tests (or all tests with --debug-all).
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options control the operator log.
type Options struct {
	// Level is a zap level name such as "debug" or "warn". Unknown values mean "info".
	Level string
	// File, if set, receives a JSON copy of the log, rotated by size.
	File string
}

const (
	maxFileSizeMB  = 20
	maxFileBackups = 3
)

// New creates a logger that writes human-readable lines to console and, optionally, JSON lines to
// Options.File.
func New(opts Options, console zapcore.WriteSyncer) *zap.Logger {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
		level.SetLevel(zap.InfoLevel)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(consoleEncoder(), console, level),
	}
	if opts.File != "" {
		fileWriter := zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    maxFileSizeMB,
			MaxBackups: maxFileBackups,
		})
		cores = append(cores, zapcore.NewCore(jsonEncoder(), fileWriter, level))
	}
	return zap.New(zapcore.NewTee(cores...))
}

// NewConsole is New writing to a locked standard error.
func NewConsole(opts Options) *zap.Logger {
	return New(opts, zapcore.Lock(os.Stderr))
}

func consoleEncoder() zapcore.Encoder {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	cfg.CallerKey = ""
	return zapcore.NewConsoleEncoder(cfg)
}

func jsonEncoder() zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	return zapcore.NewJSONEncoder(cfg)
}
