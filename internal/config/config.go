package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
)

// rawConfig mirrors Config with pointer fields for values whose zero
// value is a valid setting, so defaults only apply when a field is
// actually absent from the file.
type rawConfig struct {
	Config
	MaxRetriesPtr     *int  `json:"maxRetries"`
	MetricsEnabledPtr *bool `json:"metricsEnabled"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var raw rawConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg := &raw.Config
	if raw.MaxRetriesPtr != nil {
		cfg.MaxRetries = *raw.MaxRetriesPtr
	} else {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if raw.MetricsEnabledPtr != nil {
		cfg.MetricsEnabled = *raw.MetricsEnabledPtr
	} else {
		cfg.MetricsEnabled = DefaultMetricsEnabled
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// applyDefaults sets default values for unset fields
func applyDefaults(cfg *Config) {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.HTTPPort == 0 {
		cfg.HTTPPort = DefaultHTTPPort
	}
	if cfg.WSPort == 0 {
		cfg.WSPort = DefaultWSPort
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if cfg.BatchWindow == 0 {
		cfg.BatchWindow = DefaultBatchWindow
	}
	if cfg.MaxBatchSize == 0 {
		cfg.MaxBatchSize = DefaultMaxBatchSize
	}
	if cfg.QueryTimeout == 0 {
		cfg.QueryTimeout = DefaultQueryTimeout
	}
	if cfg.RetryBaseDelay == 0 {
		cfg.RetryBaseDelay = DefaultRetryBaseDelay
	}
}

// validate checks the configuration for errors
func validate(cfg *Config) error {
	if cfg.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}

	u, err := url.Parse(cfg.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("endpoint must be a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("endpoint scheme must be http or https")
	}

	if cfg.HTTPPort < 1 || cfg.HTTPPort > 65535 {
		return fmt.Errorf("httpPort must be between 1 and 65535")
	}

	if cfg.WSPort < 1 || cfg.WSPort > 65535 {
		return fmt.Errorf("wsPort must be between 1 and 65535")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("logLevel must be one of: debug, info, warn, error")
	}

	if cfg.BatchWindow < 1 {
		return fmt.Errorf("batchWindow must be positive")
	}

	if cfg.MaxBatchSize < 1 {
		return fmt.Errorf("maxBatchSize must be positive")
	}

	if cfg.QueryTimeout < 1 {
		return fmt.Errorf("queryTimeout must be positive")
	}

	if cfg.MaxRetries < 0 {
		return fmt.Errorf("maxRetries must be non-negative")
	}

	if cfg.RetryBaseDelay < 1 {
		return fmt.Errorf("retryBaseDelay must be positive")
	}

	if cfg.Cache != nil && cfg.Cache.Enabled {
		if cfg.Cache.TTL <= 0 {
			return fmt.Errorf("cache.ttl must be positive when cache is enabled")
		}
		if cfg.Cache.Size <= 0 {
			return fmt.Errorf("cache.size must be positive when cache is enabled")
		}
	}

	return nil
}
