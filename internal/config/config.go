// Package config provides configuration loading from an optional YAML file
// and environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults for the DLP job waiter. They reproduce the polling schedule of the
// k-anonymity sample: a ten minute budget and 2s..60s exponential backoff.
const (
	DefaultJobTimeout      = 10 * time.Minute
	DefaultBackoffInitial  = 2 * time.Second
	DefaultBackoffMax      = 60 * time.Second
	DefaultRefetchInterval = time.Second
	DefaultPullMaxMessages = 10
)

// SamplesConfig holds configuration shared by every sample command.
type SamplesConfig struct {
	Endpoint        string    `yaml:"endpoint"`        // API endpoint override (e.g. a regional or emulator endpoint)
	CredentialsFile string    `yaml:"credentialsFile"` // service account key; empty uses application default credentials
	MetricsPort     string    `yaml:"metricsPort"`     // empty disables the metrics server
	Verbose         bool      `yaml:"verbose"`
	DLP             DLPConfig `yaml:"dlp"`
}

// DLPConfig controls how long-running DLP jobs are awaited.
type DLPConfig struct {
	JobTimeout      time.Duration `yaml:"jobTimeout"`
	BackoffInitial  time.Duration `yaml:"backoffInitial"`
	BackoffMax      time.Duration `yaml:"backoffMax"`
	RefetchInterval time.Duration `yaml:"refetchInterval"`
	PullMaxMessages int           `yaml:"pullMaxMessages"`
}

// LoadSamplesConfig loads configuration from path (if non-empty) and then
// applies environment overrides. Environment variables win over the file.
func LoadSamplesConfig(path string) (*SamplesConfig, error) {
	cfg := &SamplesConfig{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	cfg.Endpoint = GetEnv("CLOUD_SAMPLES_ENDPOINT", cfg.Endpoint)
	cfg.CredentialsFile = GetEnv("GOOGLE_APPLICATION_CREDENTIALS", cfg.CredentialsFile)
	cfg.MetricsPort = GetEnv("METRICS_PORT", cfg.MetricsPort)
	cfg.Verbose = GetBoolEnv("CLOUD_SAMPLES_VERBOSE", cfg.Verbose)
	cfg.DLP.JobTimeout = GetDurationEnv("DLP_JOB_TIMEOUT", cfg.DLP.JobTimeout)
	cfg.DLP.BackoffInitial = GetDurationEnv("DLP_BACKOFF_INITIAL", cfg.DLP.BackoffInitial)
	cfg.DLP.BackoffMax = GetDurationEnv("DLP_BACKOFF_MAX", cfg.DLP.BackoffMax)
	cfg.DLP.RefetchInterval = GetDurationEnv("DLP_REFETCH_INTERVAL", cfg.DLP.RefetchInterval)
	cfg.DLP.PullMaxMessages = GetIntEnv("PUBSUB_MAX_MESSAGES", cfg.DLP.PullMaxMessages)

	cfg.DLP = cfg.DLP.withDefaults()
	return cfg, nil
}

// withDefaults fills in zero values with defaults.
func (c DLPConfig) withDefaults() DLPConfig {
	if c.JobTimeout <= 0 {
		c.JobTimeout = DefaultJobTimeout
	}
	if c.BackoffInitial <= 0 {
		c.BackoffInitial = DefaultBackoffInitial
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = DefaultBackoffMax
	}
	if c.RefetchInterval <= 0 {
		c.RefetchInterval = DefaultRefetchInterval
	}
	if c.PullMaxMessages <= 0 {
		c.PullMaxMessages = DefaultPullMaxMessages
	}
	return c
}
