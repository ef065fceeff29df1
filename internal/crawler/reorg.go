package crawler

import (
	"context"
	"fmt"

	"github.com/chainwatch/evmcrawler/internal/blockcache"
	"github.com/chainwatch/evmcrawler/internal/metrics"
)

// probeReorg walks back from lastProcessedBlock up to reorgDepth-1 blocks,
// comparing the cached hash at each height against the current canonical
// block. It keeps walking past the first divergence to find the deepest
// one, and stops as soon as a height's hash matches (below that point the
// chain is known good) or startBlock is reached.
func (c *Crawler) probeReorg(ctx context.Context) (reorgPoint uint64, detected bool, err error) {
	for i := uint64(0); i < c.chain.ReorgDepth; i++ {
		if c.lastProcessedBlock < i+c.chain.StartBlock {
			break
		}
		height := c.lastProcessedBlock - i
		if height < c.chain.StartBlock {
			break
		}

		entry, ok := c.cache.Get(height)
		if !ok {
			continue
		}

		canonical, err := c.pool.GetBlock(ctx, height)
		if err != nil {
			return 0, false, err
		}
		if canonical == nil {
			continue
		}

		if canonical.Hash.Hex() != entry.Hash {
			detected = true
			reorgPoint = height
			continue
		}

		c.cache.Put(height, blockcache.Entry{
			Hash:       canonical.Hash.Hex(),
			ParentHash: canonical.ParentHash.Hex(),
			BlockTime:  int64(canonical.Timestamp) * 1000,
		})
		break
	}

	return reorgPoint, detected, nil
}

// rollback deletes every row at or above R and rewinds the checkpoint to
// R-1 in a single transaction, so a crash between the two can never leave
// a checkpoint pointing past rows that were already deleted, and then
// drops the corresponding cache entries.
func (c *Crawler) rollback(ctx context.Context, reorgPoint uint64) error {
	var newCheckpoint uint64
	if reorgPoint > 0 {
		newCheckpoint = reorgPoint - 1
	}

	tx, err := c.txs.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin rollback transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil {
			c.log.Errorf("failed to rollback reorg transaction: %v", rbErr)
		}
	}()

	deleted, err := c.txs.DeleteFromBlockTx(ctx, tx, c.chain.ChainID, reorgPoint)
	if err != nil {
		return err
	}
	if err := c.checkpoints.SetTx(ctx, tx, c.chain.ChainID, newCheckpoint); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rollback transaction: %w", err)
	}

	c.lastProcessedBlock = newCheckpoint
	c.cache.Drop(reorgPoint)

	c.log.Warnf("reorg detected on chain %s at block %d, rolled back %d rows", c.chain.ChainID, reorgPoint, deleted)
	metrics.ReorgDetectedInc(c.chain.ChainID)
	metrics.RowsRolledBackInc(c.chain.ChainID, deleted)

	return nil
}
