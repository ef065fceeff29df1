package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const yamlFixture = `
network: mainnet
chain:
  chain_id: "1"
  rpc_urls:
    - "https://rpc.example.com"
  contract_address: "0xABCDEF0000000000000000000000000000000000"
  start_block: 1000
db:
  path: ./data/crawler.sqlite
`

const jsonFixture = `{
  "network": "mainnet",
  "chain": {
    "chain_id": "1",
    "rpc_urls": ["https://rpc.example.com"],
    "contract_address": "0xABCDEF0000000000000000000000000000000000",
    "start_block": 1000
  },
  "db": {"path": "./data/crawler.sqlite"}
}`

const tomlFixture = `
network = "mainnet"

[chain]
chain_id = "1"
rpc_urls = ["https://rpc.example.com"]
contract_address = "0xABCDEF0000000000000000000000000000000000"
start_block = 1000

[db]
path = "./data/crawler.sqlite"
`

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func assertLoadedChain(t *testing.T, cfg *Config) {
	t.Helper()
	require.Equal(t, "mainnet", cfg.Network)
	require.Equal(t, "1", cfg.Chain.ChainID)
	require.Equal(t, []string{"https://rpc.example.com"}, cfg.Chain.RPCURLs)
	require.Equal(t, "0xabcdef0000000000000000000000000000000000", cfg.Chain.ContractAddress)
	require.Equal(t, uint64(1000), cfg.Chain.StartBlock)
	require.Equal(t, uint64(defaultRequiredConfirmations), cfg.Chain.RequiredConfirmations)
	require.Equal(t, "./data/crawler.sqlite", cfg.DB.Path)
}

func TestLoadFromYAML(t *testing.T) {
	path := writeFixture(t, "config.yaml", yamlFixture)

	cfg, err := LoadFromYAML(path)
	require.NoError(t, err)
	assertLoadedChain(t, cfg)
}

func TestLoadFromJSON(t *testing.T) {
	path := writeFixture(t, "config.json", jsonFixture)

	cfg, err := LoadFromJSON(path)
	require.NoError(t, err)
	assertLoadedChain(t, cfg)
}

func TestLoadFromTOML(t *testing.T) {
	path := writeFixture(t, "config.toml", tomlFixture)

	cfg, err := LoadFromTOML(path)
	require.NoError(t, err)
	assertLoadedChain(t, cfg)
}

func TestLoadFromFileDispatchesByExtension(t *testing.T) {
	yamlPath := writeFixture(t, "config.yml", yamlFixture)
	cfg, err := LoadFromFile(yamlPath)
	require.NoError(t, err)
	assertLoadedChain(t, cfg)

	jsonPath := writeFixture(t, "config.json", jsonFixture)
	cfg, err = LoadFromFile(jsonPath)
	require.NoError(t, err)
	assertLoadedChain(t, cfg)

	tomlPath := writeFixture(t, "config.toml", tomlFixture)
	cfg, err = LoadFromFile(tomlPath)
	require.NoError(t, err)
	assertLoadedChain(t, cfg)
}

func TestLoadFromFileRejectsUnsupportedExtension(t *testing.T) {
	path := writeFixture(t, "config.ini", "network=mainnet")

	_, err := LoadFromFile(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported config file format")
}

func TestLoadFromYAMLMissingFile(t *testing.T) {
	_, err := LoadFromYAML(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadFromYAMLFailsValidationWhenChainIncomplete(t *testing.T) {
	path := writeFixture(t, "config.yaml", `
network: mainnet
chain:
  chain_id: "1"
db:
  path: ./data/crawler.sqlite
`)

	_, err := LoadFromYAML(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid configuration")
}
