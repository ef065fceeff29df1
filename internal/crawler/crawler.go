// Package crawler runs the per-chain cycle that turns RPC log queries into
// confirmed rows: compute the head, probe for a reorg, fetch and parse
// logs, fill in any block metadata the cache is missing, persist, advance
// the checkpoint, trim the cache, and pace itself before the next cycle.
// Exactly one Crawler runs per chain; it owns its block cache and is the
// only writer allowed to delete transaction rows.
package crawler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ethereum/go-ethereum/core/types"

	"github.com/chainwatch/evmcrawler/internal/blockcache"
	"github.com/chainwatch/evmcrawler/internal/checkpoint"
	"github.com/chainwatch/evmcrawler/internal/config"
	"github.com/chainwatch/evmcrawler/internal/eventparser"
	"github.com/chainwatch/evmcrawler/internal/logger"
	"github.com/chainwatch/evmcrawler/internal/metrics"
	"github.com/chainwatch/evmcrawler/internal/rpcpool"
	"github.com/chainwatch/evmcrawler/internal/txstore"
)

// rpcSource is the subset of *rpcpool.Pool the crawler loop depends on. It
// exists so tests can drive runCycle/probeReorg/bootstrap against a fake
// chain without dialing anything.
type rpcSource interface {
	GetHeadBlockNumber(ctx context.Context) (uint64, error)
	GetBlock(ctx context.Context, number uint64) (*rpcpool.BlockInfo, error)
	GetBlocks(ctx context.Context, numbers []uint64) (map[uint64]*rpcpool.BlockInfo, error)
	QueryLogs(ctx context.Context, contract common.Address, fromBlock, toBlock uint64, topic0s []common.Hash) ([]types.Log, error)
}

// Crawler is the state machine for one chain.
type Crawler struct {
	chain    config.ChainConfig
	contract common.Address

	pool        rpcSource
	registry    *eventparser.Registry
	cache       *blockcache.Cache
	checkpoints *checkpoint.Store
	txs         *txstore.Store
	log         *logger.Logger

	mu                 sync.Mutex
	running            bool
	lastProcessedBlock uint64
}

// New wires together one chain's crawler from its already-constructed
// components. None of the components are owned exclusively by the
// crawler except the block cache.
func New(
	chain config.ChainConfig,
	pool *rpcpool.Pool,
	registry *eventparser.Registry,
	cache *blockcache.Cache,
	checkpoints *checkpoint.Store,
	txs *txstore.Store,
	log *logger.Logger,
) *Crawler {
	return newWithSource(chain, pool, registry, cache, checkpoints, txs, log)
}

// newWithSource is New with the RPC source taken as an interface, letting
// tests substitute a fake chain.
func newWithSource(
	chain config.ChainConfig,
	pool rpcSource,
	registry *eventparser.Registry,
	cache *blockcache.Cache,
	checkpoints *checkpoint.Store,
	txs *txstore.Store,
	log *logger.Logger,
) *Crawler {
	return &Crawler{
		chain:       chain,
		contract:    common.HexToAddress(chain.ContractAddress),
		pool:        pool,
		registry:    registry,
		cache:       cache,
		checkpoints: checkpoints,
		txs:         txs,
		log:         log,
	}
}

// Stop requests the loop exit after its current cycle finishes persisting.
func (c *Crawler) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
}

func (c *Crawler) isRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Run loads the checkpoint, then repeatedly runs cycles until ctx is
// canceled or Stop is called. A cycle's error is logged and triggers a
// retryDelay pause, up to maxRetries consecutive failures, after which the
// crawler backs off for a full restartDelay before trying again.
func (c *Crawler) Run(ctx context.Context) error {
	if err := c.bootstrap(ctx); err != nil {
		return fmt.Errorf("failed to bootstrap checkpoint for chain %s: %w", c.chain.ChainID, err)
	}

	c.mu.Lock()
	c.running = true
	c.mu.Unlock()

	consecutiveFailures := 0

	for c.isRunning() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		start := time.Now()
		caughtUp, err := c.runCycle(ctx)
		metrics.CycleDurationObserve(c.chain.ChainID, time.Since(start))

		if err != nil {
			consecutiveFailures++
			c.log.Errorf("cycle failed for chain %s (failure %d/%d): %v", c.chain.ChainID, consecutiveFailures, c.chain.MaxRetries, err)

			wait := c.chain.RetryDelay.Duration
			if consecutiveFailures >= c.chain.MaxRetries {
				wait = c.chain.RestartDelay.Duration
				consecutiveFailures = 0
			}
			if !sleepCtx(ctx, wait) {
				return ctx.Err()
			}
			continue
		}

		consecutiveFailures = 0
		metrics.CycleCompletedInc(c.chain.ChainID)

		wait := c.chain.PollingInterval.Duration
		if caughtUp {
			wait = c.chain.RestartDelay.Duration
		}
		if !sleepCtx(ctx, wait) {
			return ctx.Err()
		}
	}

	return nil
}

// sleepCtx sleeps for d, returning false if ctx was canceled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

// bootstrap loads lastProcessedBlock from the checkpoint store, falling
// back to MAX(blockNumber) from the transaction table, and finally to
// startBlock-1 on a fully cold start. The resolved value is written back
// to the checkpoint store so later reads are consistent.
func (c *Crawler) bootstrap(ctx context.Context) error {
	if n, ok, err := c.checkpoints.Get(ctx, c.chain.ChainID); err != nil {
		return err
	} else if ok {
		c.lastProcessedBlock = n
		return nil
	}

	if n, ok, err := c.txs.MaxBlockNumber(ctx, c.chain.ChainID); err != nil {
		return err
	} else if ok {
		c.lastProcessedBlock = n
		return c.checkpoints.Set(ctx, c.chain.ChainID, n)
	}

	start := uint64(0)
	if c.chain.StartBlock > 0 {
		start = c.chain.StartBlock - 1
	}
	c.lastProcessedBlock = start
	return c.checkpoints.Set(ctx, c.chain.ChainID, start)
}
