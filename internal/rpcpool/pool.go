// Package rpcpool is a façade over a chain's ordered list of RPC endpoints.
// Every operation is expressed as a function of one endpoint's client and
// run through executeWithFailover, which iterates endpoints in order on a
// classified set of recoverable errors and surfaces anything else
// immediately, matching the predecessor's single-endpoint retry policy
// widened across N endpoints instead of one.
package rpcpool

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/sync/errgroup"

	"github.com/chainwatch/evmcrawler/internal/config"
	"github.com/chainwatch/evmcrawler/internal/logger"
	"github.com/chainwatch/evmcrawler/internal/metrics"
)

// maxParallelBlockFetches bounds the fan-out used when filling in
// metadata for blocks missing from the cache; it exists so a large gap
// after a cold start does not open hundreds of connections at once.
const maxParallelBlockFetches = 8

// Pool iterates a chain's configured endpoints, memoizing a dialed client
// per endpoint string so repeated calls do not pay connection setup twice.
type Pool struct {
	chainID   string
	endpoints []string
	retry     config.RetryConfig
	log       *logger.Logger

	mu      sync.Mutex
	clients map[string]*client
}

// New creates a pool over endpoints, in the priority order they should be
// tried. Connections are dialed lazily on first use.
func New(chainID string, endpoints []string, retry config.RetryConfig, log *logger.Logger) (*Pool, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("rpcpool: at least one endpoint is required for chain %s", chainID)
	}
	return &Pool{
		chainID:   chainID,
		endpoints: endpoints,
		retry:     retry,
		log:       log,
		clients:   make(map[string]*client),
	}, nil
}

// Close closes every dialed connection.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.clients {
		c.close()
	}
}

func (p *Pool) provider(ctx context.Context, endpoint string) (*client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.clients[endpoint]; ok {
		return c, nil
	}

	c, err := dial(ctx, endpoint, p.retry)
	if err != nil {
		return nil, err
	}
	p.clients[endpoint] = c
	return c, nil
}

// executeWithFailover runs f against each endpoint in order, returning the
// first successful result. A recoverable error (after that endpoint's own
// retries are exhausted) advances to the next endpoint; any other error
// propagates immediately without trying the remaining endpoints.
func executeWithFailover[T any](ctx context.Context, p *Pool, f func(*client) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for i, endpoint := range p.endpoints {
		c, err := p.provider(ctx, endpoint)
		if err != nil {
			lastErr = err
			if !recoverableError(err) {
				return zero, err
			}
			continue
		}

		result, err := f(c)
		if err == nil {
			metrics.RPCEndpointHealthSet(p.chainID, endpoint, true)
			return result, nil
		}

		metrics.RPCEndpointHealthSet(p.chainID, endpoint, false)
		lastErr = err

		if !recoverableError(err) {
			return zero, err
		}

		if i < len(p.endpoints)-1 {
			p.log.Warnf("endpoint %s failed recoverably, failing over: %v", endpoint, err)
			metrics.RPCFailoverInc(p.chainID)
		}
	}

	return zero, fmt.Errorf("all %d endpoints exhausted for chain %s: %w", len(p.endpoints), p.chainID, lastErr)
}

// GetHeadBlockNumber returns the current chain head.
func (p *Pool) GetHeadBlockNumber(ctx context.Context) (uint64, error) {
	return executeWithFailover(ctx, p, func(c *client) (uint64, error) {
		return c.getHeadBlockNumber(ctx)
	})
}

// GetBlock returns block metadata for number, or nil if the node has not
// yet seen it.
func (p *Pool) GetBlock(ctx context.Context, number uint64) (*BlockInfo, error) {
	return executeWithFailover(ctx, p, func(c *client) (*BlockInfo, error) {
		return c.getBlock(ctx, number)
	})
}

// GetBlocks fetches metadata for several block numbers concurrently,
// bounded to maxParallelBlockFetches in flight, used to fill in the block
// cache for blocks a crawl cycle observed via logs but never fetched a
// header for directly.
func (p *Pool) GetBlocks(ctx context.Context, numbers []uint64) (map[uint64]*BlockInfo, error) {
	results := make(map[uint64]*BlockInfo, len(numbers))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelBlockFetches)

	for _, n := range numbers {
		number := n
		g.Go(func() error {
			info, err := p.GetBlock(gctx, number)
			if err != nil {
				return fmt.Errorf("failed to fetch block %d: %w", number, err)
			}
			mu.Lock()
			results[number] = info
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// GetTransactionReceipt returns the receipt for txHash, or nil if unknown.
func (p *Pool) GetTransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return executeWithFailover(ctx, p, func(c *client) (*types.Receipt, error) {
		return c.getTransactionReceipt(ctx, txHash)
	})
}

// QueryLogs returns logs for contract in [fromBlock, toBlock] restricted to
// topics[0] matching one of the given topic0 hashes.
func (p *Pool) QueryLogs(ctx context.Context, contract common.Address, fromBlock, toBlock uint64, topic0s []common.Hash) ([]types.Log, error) {
	return executeWithFailover(ctx, p, func(c *client) ([]types.Log, error) {
		return c.queryLogs(ctx, contract, fromBlock, toBlock, [][]common.Hash{topic0s})
	})
}
