// Package config loads Cascade engine configuration from TOML files and
// CASCADE_-prefixed environment variables via Viper.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/teranos/cascade/errors"
)

// Config is the root engine configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Executor ExecutorConfig `mapstructure:"executor"`
	Batch    BatchConfig    `mapstructure:"batch"`
	Log      LogConfig      `mapstructure:"log"`
}

// DatabaseConfig configures the SQLite backing store.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ExecutorConfig configures job acquisition and execution.
type ExecutorConfig struct {
	Workers             int `mapstructure:"workers"`               // concurrent job workers (default: 4)
	PollIntervalSeconds int `mapstructure:"poll_interval_seconds"` // how often to look for due jobs (default: 5)
	LockDurationSeconds int `mapstructure:"lock_duration_seconds"` // acquisition lease length (default: 300)
	RetryBackoffSeconds int `mapstructure:"retry_backoff_seconds"` // reschedule delay after a failed run (default: 10)
}

// BatchConfig configures bulk-operation decomposition defaults.
type BatchConfig struct {
	JobsPerSeed                int `mapstructure:"jobs_per_seed"`                 // max execution jobs per seed run (default: 100)
	InvocationsPerJob          int `mapstructure:"invocations_per_job"`           // work units per execution job (default: 1)
	MonitorPollIntervalSeconds int `mapstructure:"monitor_poll_interval_seconds"` // completion poll interval (default: 30)
}

// LogConfig configures logger output.
type LogConfig struct {
	JSON bool `mapstructure:"json"` // structured JSON output instead of console
}

// PollInterval returns the executor poll interval as a duration.
func (c ExecutorConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// LockDuration returns the acquisition lease length as a duration.
func (c ExecutorConfig) LockDuration() time.Duration {
	return time.Duration(c.LockDurationSeconds) * time.Second
}

// RetryBackoff returns the failed-run reschedule delay as a duration.
func (c ExecutorConfig) RetryBackoff() time.Duration {
	return time.Duration(c.RetryBackoffSeconds) * time.Second
}

// MonitorPollInterval returns the batch completion poll interval as a
// duration.
func (c BatchConfig) MonitorPollInterval() time.Duration {
	return time.Duration(c.MonitorPollIntervalSeconds) * time.Second
}

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "cascade.db")

	v.SetDefault("executor.workers", 4)
	v.SetDefault("executor.poll_interval_seconds", 5)
	v.SetDefault("executor.lock_duration_seconds", 300)
	v.SetDefault("executor.retry_backoff_seconds", 10)

	v.SetDefault("batch.jobs_per_seed", 100)
	v.SetDefault("batch.invocations_per_job", 1)
	v.SetDefault("batch.monitor_poll_interval_seconds", 30)

	v.SetDefault("log.json", false)
}

// Load reads configuration from the optional file path, layered over
// defaults and CASCADE_-prefixed environment variables. An empty path
// loads defaults and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix("CASCADE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", path)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	return &config, nil
}
