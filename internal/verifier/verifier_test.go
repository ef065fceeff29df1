package verifier

import (
	"context"
	"database/sql"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/chainwatch/evmcrawler/internal/config"
	"github.com/chainwatch/evmcrawler/internal/db"
	"github.com/chainwatch/evmcrawler/internal/eventparser"
	"github.com/chainwatch/evmcrawler/internal/logger"
	"github.com/chainwatch/evmcrawler/internal/rpcpool"
	"github.com/chainwatch/evmcrawler/internal/store/migrations"
	"github.com/chainwatch/evmcrawler/internal/txstore"
)

// fakePool scripts the handful of rpcpool.Pool methods Verify depends on.
type fakePool struct {
	head    uint64
	block   *rpcpool.BlockInfo
	receipt *types.Receipt
}

func (f *fakePool) GetHeadBlockNumber(ctx context.Context) (uint64, error) { return f.head, nil }

func (f *fakePool) GetBlock(ctx context.Context, number uint64) (*rpcpool.BlockInfo, error) {
	return f.block, nil
}

func (f *fakePool) GetTransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return f.receipt, nil
}

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	path := t.TempDir() + "/verifier_test.db"
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

func depositLog(contract, user, token common.Address, txHash common.Hash) *types.Log {
	topic0 := crypto.Keccak256Hash([]byte(eventparser.DepositSignature))

	data := make([]byte, 64)
	amount := big.NewInt(1_000_000_000_000_000_000)
	copy(data[32-len(amount.Bytes()):32], amount.Bytes())
	data[63] = 18

	return &types.Log{
		Address: contract,
		Topics:  []common.Hash{topic0, common.BytesToHash(user.Bytes()), common.BytesToHash(token.Bytes())},
		Data:    data,
		TxHash:  txHash,
	}
}

func newTestVerifier(t *testing.T, chain config.ChainConfig, pool *fakePool) (*Verifier, *txstore.Store) {
	t.Helper()

	conn := setupTestDB(t)
	log := logger.NewNopLogger().WithComponent("test")
	txs := txstore.New(conn, log)
	registry := eventparser.NewRegistry(log)
	eventparser.RegisterDefaults(registry)

	v := New(log)
	v.registerChain(chain, pool, registry, txs)
	return v, txs
}

func TestVerifyReturnsUnsupportedChain(t *testing.T) {
	v, _ := newTestVerifier(t, testChain(), &fakePool{})

	result, err := v.Verify(context.Background(), "999", common.HexToHash("0xdead"))
	require.NoError(t, err)
	require.False(t, result.Found)
	require.Equal(t, "unsupported chain", result.Message)
}

func TestVerifyReturnsAlreadyPresent(t *testing.T) {
	chain := testChain()
	v, txs := newTestVerifier(t, chain, &fakePool{})

	txHash := common.HexToHash("0xdead")
	event := &eventparser.ParsedEvent{
		Operation:       eventparser.OperationDeposit,
		Address:         common.HexToAddress("0x1111"),
		ContractAddress: common.HexToAddress("0x3333"),
		RawAmount:       big.NewInt(1),
		Decimals:        18,
		Amount:          eventparser.FormatAmount(big.NewInt(1), 18),
		BlockNumber:     1005,
		BlockHash:       common.HexToHash("0xblock"),
		TxHash:          txHash,
	}
	row := txstore.NewRow(chain.ChainID, event, 1010, common.HexToHash("0xblock"), 0, chain.RequiredConfirmations)
	require.NoError(t, txs.Insert(context.Background(), row))

	result, err := v.Verify(context.Background(), chain.ChainID, txHash)
	require.NoError(t, err)
	require.True(t, result.Found)
	require.Equal(t, "already present", result.Message)
}

func TestVerifyReturnsNotOnChainWhenReceiptMissing(t *testing.T) {
	chain := testChain()
	v, _ := newTestVerifier(t, chain, &fakePool{head: 1010, receipt: nil})

	result, err := v.Verify(context.Background(), chain.ChainID, common.HexToHash("0xdead"))
	require.NoError(t, err)
	require.False(t, result.Found)
	require.Equal(t, "not on chain", result.Message)
}

func TestVerifyReturnsNotTrackedWhenNoLogMatchesContract(t *testing.T) {
	chain := testChain()
	otherContract := common.HexToAddress("0x9999")
	txHash := common.HexToHash("0xdead")
	receipt := &types.Receipt{
		BlockNumber: big.NewInt(1005),
		Logs:        []*types.Log{depositLog(otherContract, common.HexToAddress("0x1111"), common.HexToAddress("0x2222"), txHash)},
	}
	v, _ := newTestVerifier(t, chain, &fakePool{head: 1010, receipt: receipt})

	result, err := v.Verify(context.Background(), chain.ChainID, txHash)
	require.NoError(t, err)
	require.False(t, result.Found)
	require.Equal(t, "not tracked contract", result.Message)
}

func TestVerifySavesEventAndReturnsRow(t *testing.T) {
	chain := testChain()
	contract := common.HexToAddress(chain.ContractAddress)
	txHash := common.HexToHash("0xdead")
	eventLog := depositLog(contract, common.HexToAddress("0x1111"), common.HexToAddress("0x2222"), txHash)
	eventLog.BlockNumber = 1005
	receipt := &types.Receipt{
		BlockNumber: big.NewInt(1005),
		Logs:        []*types.Log{eventLog},
	}
	pool := &fakePool{
		head:    1010,
		receipt: receipt,
		block:   &rpcpool.BlockInfo{Number: 1005, Hash: common.HexToHash("0xblockhash"), Timestamp: 1_700_000_000},
	}
	v, txs := newTestVerifier(t, chain, pool)

	result, err := v.Verify(context.Background(), chain.ChainID, txHash)
	require.NoError(t, err)
	require.True(t, result.Found)
	require.NotNil(t, result.Row)
	require.Equal(t, "saved 1 rows", result.Message)

	fetched, err := txs.ByHash(context.Background(), result.Row.TransactionHash)
	require.NoError(t, err)
	require.NotNil(t, fetched)
	require.Equal(t, uint64(6), fetched.Confirmations)
}
