package config

import "time"

// Config represents the main configuration structure
type Config struct {
	Host           string            `json:"host"`
	HTTPPort       int               `json:"httpPort"`
	WSPort         int               `json:"wsPort"`
	LogLevel       string            `json:"logLevel"`
	Endpoint       string            `json:"endpoint"`
	Headers        map[string]string `json:"headers,omitempty"`
	BatchWindow    int               `json:"batchWindow"`    // ms - time a batch stays open before forced flush
	MaxBatchSize   int               `json:"maxBatchSize"`   // item count that forces an immediate flush
	QueryTimeout   int               `json:"queryTimeout"`   // ms - per-attempt network timeout
	MaxRetries     int               `json:"maxRetries"`     // transient-error retries after the first attempt
	RetryBaseDelay int               `json:"retryBaseDelay"` // ms - base of the exponential backoff
	MetricsEnabled bool              `json:"metricsEnabled"`
	Cache          *CacheConfig      `json:"cache,omitempty"`
}

// CacheConfig represents the transport response cache configuration
type CacheConfig struct {
	Enabled bool `json:"enabled"`
	TTL     int  `json:"ttl"`  // seconds
	Size    int  `json:"size"` // number of entries
}

// Default values
const (
	DefaultHost           = "localhost"
	DefaultHTTPPort       = 8080
	DefaultWSPort         = 8081
	DefaultLogLevel       = "info"
	DefaultBatchWindow    = 10 // ms
	DefaultMaxBatchSize   = 50
	DefaultQueryTimeout   = 30000 // ms
	DefaultMaxRetries     = 3
	DefaultRetryBaseDelay = 1000 // ms
	DefaultMetricsEnabled = true
)

// GetBatchWindowDuration returns the batch window as time.Duration
func (c *Config) GetBatchWindowDuration() time.Duration {
	return time.Duration(c.BatchWindow) * time.Millisecond
}

// GetQueryTimeoutDuration returns the per-attempt timeout as time.Duration
func (c *Config) GetQueryTimeoutDuration() time.Duration {
	return time.Duration(c.QueryTimeout) * time.Millisecond
}

// GetRetryBaseDelayDuration returns the backoff base as time.Duration
func (c *Config) GetRetryBaseDelayDuration() time.Duration {
	return time.Duration(c.RetryBaseDelay) * time.Millisecond
}

// IsCacheEnabled returns true if the response cache is configured and enabled
func (c *Config) IsCacheEnabled() bool {
	return c.Cache != nil && c.Cache.Enabled
}

// GetTTLDuration returns cache TTL as time.Duration
func (c *CacheConfig) GetTTLDuration() time.Duration {
	return time.Duration(c.TTL) * time.Second
}
