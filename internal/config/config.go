// Package config assembles the per-chain configuration the crawler needs
// to run: RPC endpoints, the watched contract, batching and confirmation
// parameters, plus the ambient database, logging, retry, and metrics
// settings that wrap the core crawl loop.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/chainwatch/evmcrawler/internal/common"
)

const (
	defaultPollingInterval = 2 * time.Second
	defaultRestartDelay    = 10 * time.Second
	defaultRetryDelay      = time.Second
	defaultInitialBackoff  = 250 * time.Millisecond
	defaultMaxBackoff      = 30 * time.Second
)

// ChainConfig describes one chain this process crawls. Exactly one is
// active per process, selected by the NETWORK environment variable.
type ChainConfig struct {
	ChainID               string   `yaml:"chain_id" json:"chain_id" toml:"chain_id"`
	Name                  string   `yaml:"name" json:"name" toml:"name"`
	RPCURLs               []string `yaml:"rpc_urls" json:"rpc_urls" toml:"rpc_urls"`
	ContractAddress       string   `yaml:"contract_address" json:"contract_address" toml:"contract_address"`
	StartBlock            uint64   `yaml:"start_block" json:"start_block" toml:"start_block"`
	RequiredConfirmations uint64   `yaml:"required_confirmations" json:"required_confirmations" toml:"required_confirmations"`
	ReorgDepth            uint64   `yaml:"reorg_depth" json:"reorg_depth" toml:"reorg_depth"`
	BatchSize             uint64   `yaml:"batch_size" json:"batch_size" toml:"batch_size"`
	PollingInterval       Duration `yaml:"polling_interval" json:"polling_interval" toml:"polling_interval"`
	RestartDelay          Duration `yaml:"restart_delay" json:"restart_delay" toml:"restart_delay"`
	MaxRetries            int      `yaml:"max_retries" json:"max_retries" toml:"max_retries"`
	RetryDelay            Duration `yaml:"retry_delay" json:"retry_delay" toml:"retry_delay"`
}

const (
	defaultRequiredConfirmations = 12
	defaultReorgDepth            = 12
	defaultBatchSize             = 100
	defaultMaxRetries            = 5
)

// ApplyDefaults fills in optional chain configuration fields.
func (c *ChainConfig) ApplyDefaults() {
	if c.RequiredConfirmations == 0 {
		c.RequiredConfirmations = defaultRequiredConfirmations
	}
	if c.ReorgDepth == 0 {
		c.ReorgDepth = defaultReorgDepth
	}
	if c.BatchSize == 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.PollingInterval.Duration == 0 {
		c.PollingInterval.Duration = defaultPollingInterval
	}
	if c.RestartDelay.Duration == 0 {
		c.RestartDelay.Duration = defaultRestartDelay
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.RetryDelay.Duration == 0 {
		c.RetryDelay.Duration = defaultRetryDelay
	}
	c.ContractAddress = common.ToLowerWithTrim(c.ContractAddress)
	for i := range c.RPCURLs {
		c.RPCURLs[i] = strings.TrimSpace(c.RPCURLs[i])
	}
}

// Validate checks the chain configuration is usable.
func (c *ChainConfig) Validate() error {
	if c.ChainID == "" {
		return fmt.Errorf("chain_id is required")
	}
	if len(c.RPCURLs) == 0 {
		return fmt.Errorf("at least one rpc url is required")
	}
	if c.ContractAddress == "" {
		return fmt.Errorf("contract_address is required")
	}
	if c.RequiredConfirmations == 0 {
		return fmt.Errorf("required_confirmations must be > 0")
	}
	if c.ReorgDepth == 0 {
		return fmt.Errorf("reorg_depth must be > 0")
	}
	if c.BatchSize == 0 {
		return fmt.Errorf("batch_size must be > 0")
	}
	return nil
}

// RetryConfig governs the exponential backoff applied around individual RPC
// calls, independent of the pool's endpoint-failover behavior.
type RetryConfig struct {
	MaxAttempts       int      `yaml:"max_attempts" json:"max_attempts" toml:"max_attempts"`
	InitialBackoff    Duration `yaml:"initial_backoff" json:"initial_backoff" toml:"initial_backoff"`
	MaxBackoff        Duration `yaml:"max_backoff" json:"max_backoff" toml:"max_backoff"`
	BackoffMultiplier float64  `yaml:"backoff_multiplier" json:"backoff_multiplier" toml:"backoff_multiplier"`
}

// ApplyDefaults fills in optional retry configuration fields.
func (r *RetryConfig) ApplyDefaults() {
	if r.MaxAttempts == 0 {
		r.MaxAttempts = 3
	}
	if r.InitialBackoff.Duration == 0 {
		r.InitialBackoff.Duration = defaultInitialBackoff
	}
	if r.MaxBackoff.Duration == 0 {
		r.MaxBackoff.Duration = defaultMaxBackoff
	}
	if r.BackoffMultiplier == 0 {
		r.BackoffMultiplier = 2
	}
}

// DatabaseConfig mirrors the predecessor framework's SQLite tuning knobs.
type DatabaseConfig struct {
	Path               string `yaml:"path" json:"path" toml:"path"`
	JournalMode        string `yaml:"journal_mode" json:"journal_mode" toml:"journal_mode"`
	Synchronous        string `yaml:"synchronous" json:"synchronous" toml:"synchronous"`
	BusyTimeout        int    `yaml:"busy_timeout" json:"busy_timeout" toml:"busy_timeout"`
	CacheSize          int    `yaml:"cache_size" json:"cache_size" toml:"cache_size"`
	MaxOpenConnections int    `yaml:"max_open_connections" json:"max_open_connections" toml:"max_open_connections"`
	MaxIdleConnections int    `yaml:"max_idle_connections" json:"max_idle_connections" toml:"max_idle_connections"`
	EnableForeignKeys  bool   `yaml:"enable_foreign_keys" json:"enable_foreign_keys" toml:"enable_foreign_keys"`
}

// ApplyDefaults sets default values for optional database configuration fields.
func (d *DatabaseConfig) ApplyDefaults() {
	if d.JournalMode == "" {
		d.JournalMode = "WAL"
	}
	if d.Synchronous == "" {
		d.Synchronous = "NORMAL"
	}
	if d.BusyTimeout == 0 {
		d.BusyTimeout = 5000
	}
	if d.CacheSize == 0 {
		d.CacheSize = 10000
	}
	if d.MaxOpenConnections == 0 {
		d.MaxOpenConnections = 25
	}
	if d.MaxIdleConnections == 0 {
		d.MaxIdleConnections = 5
	}
}

// MaintenanceConfig governs periodic WAL checkpointing and VACUUM against
// the SQLite database while the crawler runs.
type MaintenanceConfig struct {
	Enabled           bool     `yaml:"enabled" json:"enabled" toml:"enabled"`
	CheckInterval     Duration `yaml:"check_interval" json:"check_interval" toml:"check_interval"`
	VacuumOnStartup   bool     `yaml:"vacuum_on_startup" json:"vacuum_on_startup" toml:"vacuum_on_startup"`
	WALCheckpointMode string   `yaml:"wal_checkpoint_mode" json:"wal_checkpoint_mode" toml:"wal_checkpoint_mode"`
}

// ApplyDefaults fills in optional maintenance configuration fields.
func (m *MaintenanceConfig) ApplyDefaults() {
	if m.CheckInterval.Duration == 0 {
		m.CheckInterval.Duration = 30 * time.Minute
	}
	if m.WALCheckpointMode == "" {
		m.WALCheckpointMode = "TRUNCATE"
	}
}

// LoggingConfig configures the component loggers.
type LoggingConfig struct {
	Level       string `yaml:"level" json:"level" toml:"level"`
	Development bool   `yaml:"development" json:"development" toml:"development"`
}

func (l *LoggingConfig) ApplyDefaults() {
	if l.Level == "" {
		l.Level = "info"
	}
}

// MetricsConfig configures the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled       bool   `yaml:"enabled" json:"enabled" toml:"enabled"`
	ListenAddress string `yaml:"listen_address" json:"listen_address" toml:"listen_address"`
	Path          string `yaml:"path" json:"path" toml:"path"`
}

func (m *MetricsConfig) ApplyDefaults() {
	if m.ListenAddress == "" {
		m.ListenAddress = ":9090"
	}
	if m.Path == "" {
		m.Path = "/metrics"
	}
}

// Config is the complete process configuration: one active chain plus the
// ambient stack wrapped around it.
type Config struct {
	Network     string            `yaml:"network" json:"network" toml:"network"`
	Chain       ChainConfig       `yaml:"chain" json:"chain" toml:"chain"`
	Retry       RetryConfig       `yaml:"retry" json:"retry" toml:"retry"`
	DB          DatabaseConfig    `yaml:"db" json:"db" toml:"db"`
	Logging     LoggingConfig     `yaml:"logging" json:"logging" toml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics" json:"metrics" toml:"metrics"`
	Maintenance MaintenanceConfig `yaml:"maintenance" json:"maintenance" toml:"maintenance"`
}

// ApplyDefaults fills in every optional field across the whole configuration.
func (c *Config) ApplyDefaults() {
	c.Chain.ApplyDefaults()
	c.Retry.ApplyDefaults()
	c.DB.ApplyDefaults()
	c.Logging.ApplyDefaults()
	c.Metrics.ApplyDefaults()
	c.Maintenance.ApplyDefaults()
}

// Validate checks the whole configuration is usable.
func (c *Config) Validate() error {
	if c.Network == "" {
		return fmt.Errorf("network is required")
	}
	if err := c.Chain.Validate(); err != nil {
		return fmt.Errorf("chain: %w", err)
	}
	if c.DB.Path == "" {
		return fmt.Errorf("db.path is required")
	}
	return nil
}
