// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Server  ServerConfig  `mapstructure:"server"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Crawler CrawlerConfig `mapstructure:"crawler"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	ReadTimeout     int    `mapstructure:"read_timeout"`     // seconds
	WriteTimeout    int    `mapstructure:"write_timeout"`    // seconds
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // seconds
}

// Addr returns the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type CacheConfig struct {
	TTLHours        int          `mapstructure:"ttl_hours"`
	CleanupInterval int          `mapstructure:"cleanup_interval"` // minutes
	Memory          MemoryConfig `mapstructure:"memory"`
	Redis           RedisConfig  `mapstructure:"redis"`
}

// TTL returns the configured entry lifetime as a duration.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

type MemoryConfig struct {
	MaxEntries int `mapstructure:"max_entries"`
}

type RedisConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Address        string `mapstructure:"address"`
	Password       string `mapstructure:"password"`
	DB             int    `mapstructure:"db"`
	KeyPrefix      string `mapstructure:"key_prefix"`
	ProbeInterval  int    `mapstructure:"probe_interval"`  // seconds between re-probes while degraded
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds per round trip
}

// CrawlerConfig holds the rendering and extraction settings. Engine selects
// the page renderer: "chrome" drives a headless browser, "static" fetches the
// page over plain HTTP.
type CrawlerConfig struct {
	Engine         string `mapstructure:"engine"`
	Headless       bool   `mapstructure:"headless"`
	PoolSize       int    `mapstructure:"pool_size"`
	AcquireTimeout int    `mapstructure:"acquire_timeout"` // seconds to wait for a render slot
	NavTimeout     int    `mapstructure:"nav_timeout"`     // seconds per navigation attempt
	MaxRetries     int    `mapstructure:"max_retries"`     // transient failures only
	RetryBackoff   int    `mapstructure:"retry_backoff"`   // milliseconds, doubled per attempt
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
