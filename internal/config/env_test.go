package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func clearNetworkEnv(t *testing.T, prefix string) {
	t.Helper()
	for _, key := range []string{
		"NETWORK", prefix + "CHAIN_ID", prefix + "RPC_URLS", prefix + "CONTRACT_ADDRESS",
		prefix + "START_BLOCK", prefix + "REQUIRED_CONFIRMATIONS", prefix + "REORG_DEPTH",
		prefix + "BATCH_SIZE", prefix + "POLLING_INTERVAL_MS", prefix + "RESTART_DELAY_MS",
		prefix + "MAX_RETRIES", prefix + "RETRY_DELAY_MS",
		"CHAIN_DB_PATH", "LOG_LEVEL", "METRICS_ENABLED",
	} {
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestFromEnvRequiresNetwork(t *testing.T) {
	clearNetworkEnv(t, "SEPOLIA_")
	_, err := FromEnv()
	require.Error(t, err)
}

func TestFromEnvAppliesDefaultsAndParsesLists(t *testing.T) {
	clearNetworkEnv(t, "SEPOLIA_")
	t.Setenv("NETWORK", "sepolia")
	t.Setenv("SEPOLIA_CHAIN_ID", "11155111")
	t.Setenv("SEPOLIA_CONTRACT_ADDRESS", "0xAbCdEf0000000000000000000000000000000001")
	t.Setenv("SEPOLIA_RPC_URLS", "https://a.example, https://b.example")

	cfg, err := FromEnv()
	require.NoError(t, err)

	require.Equal(t, "sepolia", cfg.Network)
	require.Equal(t, "11155111", cfg.Chain.ChainID)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Chain.RPCURLs)
	require.Equal(t, "0xabcdef0000000000000000000000000000000001", cfg.Chain.ContractAddress)
	require.Equal(t, uint64(defaultRequiredConfirmations), cfg.Chain.RequiredConfirmations)
	require.Equal(t, uint64(defaultReorgDepth), cfg.Chain.ReorgDepth)
	require.Equal(t, uint64(defaultBatchSize), cfg.Chain.BatchSize)
}

func TestFromEnvRejectsNonNumericOverride(t *testing.T) {
	clearNetworkEnv(t, "SEPOLIA_")
	t.Setenv("NETWORK", "sepolia")
	t.Setenv("SEPOLIA_CHAIN_ID", "11155111")
	t.Setenv("SEPOLIA_CONTRACT_ADDRESS", "0x1")
	t.Setenv("SEPOLIA_RPC_URLS", "https://a.example")
	t.Setenv("SEPOLIA_START_BLOCK", "not-a-number")

	_, err := FromEnv()
	require.Error(t, err)
}
