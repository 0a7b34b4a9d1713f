// Package logging builds the zap loggers used by pipexec programs.
// Libraries never build their own logger: they accept a *zap.Logger in
// their Config and fall back to zap.NewNop.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vnykmshr/pipexec/pkg/common/errors"
)

// Config selects level, encoding and sinks.
type Config struct {
	Level       string   `envconfig:"LEVEL" default:"info" yaml:"level"`
	Development bool     `envconfig:"DEV" default:"false" yaml:"development"`
	OutputPaths []string `envconfig:"OUTPUT" default:"stderr" yaml:"output_paths"`
}

// DefaultConfig logs JSON at info level to stderr.
func DefaultConfig() Config {
	return Config{
		Level:       "info",
		OutputPaths: []string{"stderr"},
	}
}

// DevelopmentConfig logs colored console lines at debug level.
func DevelopmentConfig() Config {
	return Config{
		Level:       "debug",
		Development: true,
		OutputPaths: []string{"stderr"},
	}
}

// New builds a logger from cfg.
func New(cfg Config) (*zap.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	if len(cfg.OutputPaths) == 0 {
		cfg.OutputPaths = DefaultConfig().OutputPaths
	}

	zcfg := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       cfg.Development,
		Encoding:          encoding(cfg.Development),
		EncoderConfig:     encoderConfig(cfg.Development),
		OutputPaths:       cfg.OutputPaths,
		ErrorOutputPaths:  []string{"stderr"},
		DisableStacktrace: !cfg.Development,
	}
	return zcfg.Build()
}

// NewDefault builds a logger from DefaultConfig, or a no-op logger if that
// fails.
func NewDefault() *zap.Logger {
	l, err := New(DefaultConfig())
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// NewDevelopment is NewDefault for DevelopmentConfig.
func NewDevelopment() *zap.Logger {
	l, err := New(DevelopmentConfig())
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// ParseLevel accepts zap level names ("debug", "info", "warn", "error",
// ...). An empty string means info.
func ParseLevel(level string) (zapcore.Level, error) {
	if level == "" {
		return zapcore.InfoLevel, nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel, errors.NewValidationError("logging", "Level", level, err.Error()).
			WithHint("use debug, info, warn or error")
	}
	return l, nil
}

func encoding(development bool) string {
	if development {
		return "console"
	}
	return "json"
}

func encoderConfig(development bool) zapcore.EncoderConfig {
	if development {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.EncodeDuration = zapcore.StringDurationEncoder
		return cfg
	}

	return zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}
