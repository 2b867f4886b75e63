// Package logging contains the structured logger setup shared by every component.
package logging

import (
	"testing"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// Logger is the subset of the sugared zap API components log through.
type Logger interface {
	Debugw(msg string, keysAndValues ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
}

// NewLoggerConfig returns a new default logger config.
func NewLoggerConfig() zap.Config {
	// zap's production config, but console encoded with colored levels and no stacktraces.
	return zap.Config{
		Level:    zap.NewAtomicLevelAt(zap.InfoLevel),
		Encoding: "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		DisableStacktrace: true,
		OutputPaths:       []string{"stdout"},
		ErrorOutputPaths:  []string{"stderr"},
	}
}

// Options selects the level and encoding of a logger.
type Options struct {
	// Level is a zap level name such as "debug" or "info". Empty means info.
	Level string `yaml:"level"`
	// JSON switches the encoder from console to JSON.
	JSON bool `yaml:"json"`
}

// New builds a named logger from options.
func New(name string, opts Options) (*zap.SugaredLogger, error) {
	cfg := NewLoggerConfig()

	if opts.Level != "" {
		level, err := zapcore.ParseLevel(opts.Level)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing log level %q", opts.Level)
		}
		cfg.Level = zap.NewAtomicLevelAt(level)
	}

	if opts.JSON {
		cfg.Encoding = "json"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, errors.Wrap(err, "building logger")
	}

	return logger.Sugar().Named(name), nil
}

// NewLogger returns a new logger that outputs Info+ logs to stdout.
func NewLogger(name string) *zap.SugaredLogger {
	logger, err := New(name, Options{})
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return logger
}

// NewDebugLogger returns a new logger that outputs Debug+ logs to stdout.
func NewDebugLogger(name string) *zap.SugaredLogger {
	logger, err := New(name, Options{Level: "debug"})
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return logger
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

// NewTestLogger returns a new logger that writes Debug+ logs through tb.
func NewTestLogger(tb testing.TB) *zap.SugaredLogger {
	logger, _ := NewObservedTestLogger(tb)
	return logger
}

// NewObservedTestLogger is like NewTestLogger but also saves logs to an in memory observer.
func NewObservedTestLogger(tb testing.TB) (*zap.SugaredLogger, *observer.ObservedLogs) {
	observerCore, observedLogs := observer.New(zap.LevelEnablerFunc(zapcore.DebugLevel.Enabled))
	testCore := zaptest.NewLogger(tb, zaptest.Level(zapcore.DebugLevel)).Core()

	return zap.New(zapcore.NewTee(testCore, observerCore)).Sugar(), observedLogs
}
