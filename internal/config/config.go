// Package config loads and validates client configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. DYNHANDLERS_WORKER_TYPE_NAME.
const EnvPrefix = "DYNHANDLERS"

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Worker   WorkerConfig   `mapstructure:"worker"`
	Progress ProgressConfig `mapstructure:"progress"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// WorkerConfig names the worker type and the members resolved on it at runtime.
type WorkerConfig struct {
	TypeName    string `mapstructure:"type_name"`
	EventName   string `mapstructure:"event_name"`
	HandlerName string `mapstructure:"handler_name"`
	Method      string `mapstructure:"method"`
}

// ProgressConfig tunes the run event hub.
type ProgressConfig struct {
	BufferSize     int  `mapstructure:"buffer_size"`
	MaxBatchEvents int  `mapstructure:"max_batch_events"`
	MaxBatchWaitMs int  `mapstructure:"max_batch_wait_ms"`
	LogEvents      bool `mapstructure:"log_events"`
	Metrics        bool `mapstructure:"metrics"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from an optional file plus environment overrides.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("worker.type_name", "external.Worker")
	v.SetDefault("worker.event_name", "ProgressUpdate")
	v.SetDefault("worker.handler_name", "OnProgressUpdate")
	v.SetDefault("worker.method", "DoWork")
	v.SetDefault("progress.buffer_size", 1024)
	v.SetDefault("progress.max_batch_events", 100)
	v.SetDefault("progress.max_batch_wait_ms", 250)
	v.SetDefault("progress.log_events", false)
	v.SetDefault("progress.metrics", true)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Worker.TypeName == "" {
		return fmt.Errorf("worker.type_name must be set")
	}
	if c.Worker.EventName == "" {
		return fmt.Errorf("worker.event_name must be set")
	}
	if c.Worker.HandlerName == "" {
		return fmt.Errorf("worker.handler_name must be set")
	}
	if c.Worker.Method == "" {
		return fmt.Errorf("worker.method must be set")
	}
	if c.Progress.BufferSize <= 0 {
		return fmt.Errorf("progress.buffer_size must be > 0")
	}
	if c.Progress.MaxBatchEvents <= 0 {
		return fmt.Errorf("progress.max_batch_events must be > 0")
	}
	if c.Progress.MaxBatchWaitMs <= 0 {
		return fmt.Errorf("progress.max_batch_wait_ms must be > 0")
	}
	return nil
}

// MaxBatchWait converts the batch wait setting to a duration.
func (c Config) MaxBatchWait() time.Duration {
	return time.Duration(c.Progress.MaxBatchWaitMs) * time.Millisecond
}
