package crawler

import (
	"context"
	"database/sql"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/chainwatch/evmcrawler/internal/blockcache"
	"github.com/chainwatch/evmcrawler/internal/checkpoint"
	"github.com/chainwatch/evmcrawler/internal/config"
	"github.com/chainwatch/evmcrawler/internal/db"
	"github.com/chainwatch/evmcrawler/internal/eventparser"
	"github.com/chainwatch/evmcrawler/internal/logger"
	"github.com/chainwatch/evmcrawler/internal/rpcpool"
	"github.com/chainwatch/evmcrawler/internal/store/migrations"
	"github.com/chainwatch/evmcrawler/internal/txstore"
)

// fakePool is a scripted stand-in for *rpcpool.Pool: no dialing, no
// failover, just the canned responses a test wires up.
type fakePool struct {
	head   uint64
	blocks map[uint64]*rpcpool.BlockInfo
	logs   []types.Log
}

func (f *fakePool) GetHeadBlockNumber(ctx context.Context) (uint64, error) {
	return f.head, nil
}

func (f *fakePool) GetBlock(ctx context.Context, number uint64) (*rpcpool.BlockInfo, error) {
	return f.blocks[number], nil
}

func (f *fakePool) GetBlocks(ctx context.Context, numbers []uint64) (map[uint64]*rpcpool.BlockInfo, error) {
	out := make(map[uint64]*rpcpool.BlockInfo, len(numbers))
	for _, n := range numbers {
		out[n] = f.blocks[n]
	}
	return out, nil
}

func (f *fakePool) QueryLogs(ctx context.Context, contract common.Address, fromBlock, toBlock uint64, topic0s []common.Hash) ([]types.Log, error) {
	return f.logs, nil
}

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	path := t.TempDir() + "/crawler_test.db"
	require.NoError(t, migrations.RunMigrations(path))

	conn, err := db.NewSQLiteDB(path)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

func testChain() config.ChainConfig {
	c := config.ChainConfig{
		ChainID:         "1",
		ContractAddress: "0x3333",
		StartBlock:      1000,
	}
	c.ApplyDefaults()
	return c
}

func newTestCrawler(t *testing.T, chain config.ChainConfig, pool *fakePool) (*Crawler, *checkpoint.Store, *txstore.Store) {
	t.Helper()

	conn := setupTestDB(t)
	log := logger.NewNopLogger().WithComponent("test")
	cp := checkpoint.New(conn)
	txs := txstore.New(conn, log)
	registry := eventparser.NewRegistry(log)
	eventparser.RegisterDefaults(registry)
	cache := blockcache.New()

	cr := newWithSource(chain, pool, registry, cache, cp, txs, log)
	return cr, cp, txs
}

// sampleCrawlerEvent builds a parsed Deposit event at the given block
// number, with a distinct tx hash derived from it so repeated calls never
// collide on uniqueness.
func sampleCrawlerEvent(blockNumber uint64) *eventparser.ParsedEvent {
	user := common.HexToAddress("0x1111")
	token := common.HexToAddress("0x2222")
	raw := big.NewInt(1_000_000_000_000_000_000)
	txHash := crypto.Keccak256Hash([]byte{byte(blockNumber), byte(blockNumber >> 8), byte(blockNumber >> 16)})

	return &eventparser.ParsedEvent{
		Operation:       eventparser.OperationDeposit,
		Address:         user,
		TokenAddress:    &token,
		ContractAddress: common.HexToAddress("0x3333"),
		RawAmount:       raw,
		Decimals:        18,
		Amount:          eventparser.FormatAmount(raw, 18),
		BlockNumber:     blockNumber,
		BlockHash:       common.BigToHash(big.NewInt(int64(blockNumber))),
		TxHash:          txHash,
		LogIndex:        0,
	}
}

// depositLog builds a raw log matching the Deposit event shape so it can be
// round-tripped through the registry the same way the crawler loop does.
func depositLog(blockNumber uint64, txHash common.Hash) types.Log {
	topic0 := crypto.Keccak256Hash([]byte(eventparser.DepositSignature))
	user := common.HexToAddress("0x1111")
	token := common.HexToAddress("0x2222")

	data := make([]byte, 64)
	amount := big.NewInt(1_000_000_000_000_000_000)
	copy(data[32-len(amount.Bytes()):32], amount.Bytes())
	data[63] = 18

	return types.Log{
		Address:     token,
		Topics:      []common.Hash{topic0, common.BytesToHash(user.Bytes()), common.BytesToHash(token.Bytes())},
		Data:        data,
		BlockNumber: blockNumber,
		TxHash:      txHash,
	}
}
