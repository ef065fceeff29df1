// Package verifier implements the fallback read-path: given a chain and a
// transaction hash the live crawler hasn't (yet) seen, fetch its receipt
// directly, decode any tracked events, and persist them through the same
// upsert path the crawler loop uses. It shares txstore's uniqueness and
// upsert semantics and therefore cannot violate the table's invariants,
// even running concurrently with the crawler against the same chain.
package verifier

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/chainwatch/evmcrawler/internal/config"
	"github.com/chainwatch/evmcrawler/internal/eventparser"
	"github.com/chainwatch/evmcrawler/internal/logger"
	"github.com/chainwatch/evmcrawler/internal/metrics"
	"github.com/chainwatch/evmcrawler/internal/rpcpool"
	"github.com/chainwatch/evmcrawler/internal/txstore"
)

// Result is the outcome of one Verify call.
type Result struct {
	Found   bool
	Row     *txstore.Transaction
	Message string
}

// rpcSource is the subset of *rpcpool.Pool Verify depends on, broken out so
// tests can substitute a fake chain instead of dialing anything.
type rpcSource interface {
	GetHeadBlockNumber(ctx context.Context) (uint64, error)
	GetBlock(ctx context.Context, number uint64) (*rpcpool.BlockInfo, error)
	GetTransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Verifier holds one pool/registry/store per chain it can service.
type Verifier struct {
	chains map[string]chainDeps
	log    *logger.Logger
}

type chainDeps struct {
	config   config.ChainConfig
	contract common.Address
	pool     rpcSource
	registry *eventparser.Registry
	txs      *txstore.Store
}

// New creates an empty verifier. Register each chain it should be able to
// service with RegisterChain.
func New(log *logger.Logger) *Verifier {
	return &Verifier{chains: make(map[string]chainDeps), log: log}
}

// RegisterChain makes chainID servicable by Verify.
func (v *Verifier) RegisterChain(chain config.ChainConfig, pool *rpcpool.Pool, registry *eventparser.Registry, txs *txstore.Store) {
	v.registerChain(chain, pool, registry, txs)
}

// registerChain is RegisterChain with the RPC source taken as an interface.
func (v *Verifier) registerChain(chain config.ChainConfig, pool rpcSource, registry *eventparser.Registry, txs *txstore.Store) {
	v.chains[chain.ChainID] = chainDeps{
		config:   chain,
		contract: common.HexToAddress(chain.ContractAddress),
		pool:     pool,
		registry: registry,
		txs:      txs,
	}
}

// Verify looks up txHash against chainID, falling back to an on-demand RPC
// fetch and persist when the crawler has not (yet) recorded it.
func (v *Verifier) Verify(ctx context.Context, chainID string, txHash common.Hash) (*Result, error) {
	deps, known := v.chains[chainID]
	if !known {
		return &Result{Found: false, Message: "unsupported chain"}, nil
	}

	if existing, err := deps.txs.ByHash(ctx, txHash); err != nil {
		return nil, err
	} else if existing != nil {
		metrics.VerifierInvocationInc(chainID, "already_present")
		return &Result{Found: true, Row: existing, Message: "already present"}, nil
	}

	receipt, err := deps.pool.GetTransactionReceipt(ctx, txHash)
	if err != nil {
		return nil, err
	}
	if receipt == nil {
		metrics.VerifierInvocationInc(chainID, "not_found")
		return &Result{Found: false, Message: "not on chain"}, nil
	}

	logs := make([]types.Log, 0, len(receipt.Logs))
	for _, l := range receipt.Logs {
		if l.Address != deps.contract {
			continue
		}
		logs = append(logs, *l)
	}
	if len(logs) == 0 {
		metrics.VerifierInvocationInc(chainID, "not_tracked")
		return &Result{Found: false, Message: "not tracked contract"}, nil
	}

	events := deps.registry.ParseAll(logs)
	if len(events) == 0 {
		metrics.VerifierInvocationInc(chainID, "no_events")
		return &Result{Found: false, Message: "receipt carries no tracked events"}, nil
	}

	head, err := deps.pool.GetHeadBlockNumber(ctx)
	if err != nil {
		return nil, err
	}

	block, err := deps.pool.GetBlock(ctx, receipt.BlockNumber.Uint64())
	if err != nil {
		return nil, err
	}
	if block == nil {
		return nil, fmt.Errorf("block %d for tx %s not available from any endpoint", receipt.BlockNumber.Uint64(), txHash.Hex())
	}

	var first *txstore.Transaction
	for _, event := range events {
		row := txstore.NewRow(chainID, event, head, block.Hash, int64(block.Timestamp)*1000, deps.config.RequiredConfirmations)
		if err := deps.txs.Insert(ctx, row); err != nil {
			return nil, err
		}
		if first == nil {
			first = row
		}
	}

	metrics.VerifierInvocationInc(chainID, "saved")
	return &Result{Found: true, Row: first, Message: fmt.Sprintf("saved %d rows", len(events))}, nil
}
