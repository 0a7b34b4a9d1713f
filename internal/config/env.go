// Package config loads pipexec program settings: process-wide options from
// the environment and topology descriptions from YAML files.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/vnykmshr/pipexec/internal/logging"
)

// EnvPrefix prefixes every environment variable, e.g. PIPEXEC_LOG_LEVEL.
const EnvPrefix = "PIPEXEC"

// Env holds settings read from the environment.
type Env struct {
	Log logging.Config `envconfig:"LOG"`

	// MetricsAddr serves /metrics when set, e.g. ":9090".
	MetricsAddr      string `envconfig:"METRICS_ADDR"`
	MetricsNamespace string `envconfig:"METRICS_NAMESPACE" default:"pipexec"`

	// RedisAddr enables snapshot publishing when set.
	RedisAddr   string        `envconfig:"REDIS_ADDR"`
	RedisPrefix string        `envconfig:"REDIS_PREFIX" default:"pipexec"`
	SnapshotTTL time.Duration `envconfig:"SNAPSHOT_TTL" default:"1m"`

	ErrorBuffer int `envconfig:"ERROR_BUFFER" default:"64"`
}

// LoadEnv reads Env from PIPEXEC_* variables, applying defaults.
func LoadEnv() (*Env, error) {
	var env Env
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}
	return &env, nil
}

// DefaultEnv returns the settings LoadEnv produces with an empty
// environment.
func DefaultEnv() *Env {
	return &Env{
		Log:              logging.DefaultConfig(),
		MetricsNamespace: "pipexec",
		RedisPrefix:      "pipexec",
		SnapshotTTL:      time.Minute,
		ErrorBuffer:      64,
	}
}
