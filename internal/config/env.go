package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// FromEnv assembles a Config from environment variables, per the NETWORK
// selector and the <NETWORK>_* variable family documented in SPEC_FULL.md.
func FromEnv() (*Config, error) {
	network := strings.TrimSpace(os.Getenv("NETWORK"))
	if network == "" {
		return nil, fmt.Errorf("NETWORK environment variable is required")
	}
	prefix := strings.ToUpper(network) + "_"

	cfg := &Config{
		Network: network,
		Chain: ChainConfig{
			Name: network,
		},
		DB: DatabaseConfig{
			Path: envOrDefault("CHAIN_DB_PATH", "./data/"+network+".sqlite"),
		},
		Logging: LoggingConfig{
			Level: envOrDefault("LOG_LEVEL", "info"),
		},
		Metrics: MetricsConfig{
			Enabled:       envBool(os.Getenv("METRICS_ENABLED")),
			ListenAddress: os.Getenv("METRICS_LISTEN_ADDRESS"),
			Path:          os.Getenv("METRICS_PATH"),
		},
		Maintenance: MaintenanceConfig{
			Enabled:           envBool(os.Getenv("DB_MAINTENANCE_ENABLED")),
			VacuumOnStartup:   envBool(os.Getenv("DB_MAINTENANCE_VACUUM_ON_STARTUP")),
			WALCheckpointMode: os.Getenv("DB_MAINTENANCE_WAL_CHECKPOINT_MODE"),
		},
	}

	maintenanceInterval, err := envMillis("DB_MAINTENANCE_CHECK_INTERVAL_MS")
	if err != nil {
		return nil, err
	}
	cfg.Maintenance.CheckInterval.Duration = maintenanceInterval

	cfg.Chain.ChainID = os.Getenv(prefix + "CHAIN_ID")
	cfg.Chain.ContractAddress = os.Getenv(prefix + "CONTRACT_ADDRESS")

	if rpcURLs := os.Getenv(prefix + "RPC_URLS"); rpcURLs != "" {
		for _, u := range strings.Split(rpcURLs, ",") {
			u = strings.TrimSpace(u)
			if u != "" {
				cfg.Chain.RPCURLs = append(cfg.Chain.RPCURLs, u)
			}
		}
	}

	if cfg.Chain.StartBlock, err = envUint64(prefix+"START_BLOCK", 0); err != nil {
		return nil, err
	}
	if cfg.Chain.RequiredConfirmations, err = envUint64(prefix+"REQUIRED_CONFIRMATIONS", 0); err != nil {
		return nil, err
	}
	if cfg.Chain.ReorgDepth, err = envUint64(prefix+"REORG_DEPTH", 0); err != nil {
		return nil, err
	}
	if cfg.Chain.BatchSize, err = envUint64(prefix+"BATCH_SIZE", 0); err != nil {
		return nil, err
	}
	if cfg.Chain.MaxRetries, err = envInt(prefix+"MAX_RETRIES", 0); err != nil {
		return nil, err
	}
	if cfg.Chain.PollingInterval.Duration, err = envMillis(prefix + "POLLING_INTERVAL_MS"); err != nil {
		return nil, err
	}
	if cfg.Chain.RestartDelay.Duration, err = envMillis(prefix + "RESTART_DELAY_MS"); err != nil {
		return nil, err
	}
	if cfg.Chain.RetryDelay.Duration, err = envMillis(prefix + "RETRY_DELAY_MS"); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(v string) bool {
	b, _ := strconv.ParseBool(v)
	return b
}

func envUint64(key string, fallback uint64) (uint64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envMillis(key string) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, nil
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return time.Duration(ms) * time.Millisecond, nil
}
