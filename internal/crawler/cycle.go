package crawler

import (
	"context"

	"github.com/chainwatch/evmcrawler/internal/metrics"
)

// runCycle executes one pass of the state machine described in the
// crawler loop's contract: head, reorg probe (restarting at step 1 on a
// detected reorg), fetch, populate, persist, advance, trim. It returns
// true once toBlock reaches the current head, signaling the caller should
// pace with restartDelay rather than pollingInterval.
func (c *Crawler) runCycle(ctx context.Context) (caughtUp bool, err error) {
	for {
		head, err := c.pool.GetHeadBlockNumber(ctx)
		if err != nil {
			return false, err
		}

		fromBlock := c.lastProcessedBlock + 1
		toBlock := fromBlock + c.chain.BatchSize - 1
		if toBlock > head {
			toBlock = head
		}
		if fromBlock > head {
			return true, nil
		}

		reorgPoint, detected, err := c.probeReorg(ctx)
		if err != nil {
			return false, err
		}
		if detected {
			if err := c.rollback(ctx, reorgPoint); err != nil {
				return false, err
			}
			continue
		}

		logs, err := c.pool.QueryLogs(ctx, c.contract, fromBlock, toBlock, c.registry.Topics())
		if err != nil {
			return false, err
		}
		events := c.registry.ParseAll(logs)

		if err := c.populateMissingBlocks(ctx, events, fromBlock, toBlock, head); err != nil {
			return false, err
		}

		if err := c.persist(ctx, events, head); err != nil {
			return false, err
		}

		c.lastProcessedBlock = toBlock
		if err := c.checkpoints.Set(ctx, c.chain.ChainID, toBlock); err != nil {
			return false, err
		}
		metrics.LastProcessedBlockSet(c.chain.ChainID, toBlock)

		var keepAbove uint64
		if head > c.chain.ReorgDepth {
			keepAbove = head - c.chain.ReorgDepth
		}
		c.cache.Prune(keepAbove)

		return toBlock == head, nil
	}
}
