package crawler

import (
	"context"

	"github.com/chainwatch/evmcrawler/internal/blockcache"
	"github.com/chainwatch/evmcrawler/internal/eventparser"
)

// populateMissingBlocks fetches and caches the block metadata needed for
// this cycle: every block that produced an event (to stamp blockHash and
// blockTime on its row) and every block still inside the reorg window (so
// the next cycle's reorg probe has something to compare against). Blocks
// already in the cache are not re-fetched.
func (c *Crawler) populateMissingBlocks(ctx context.Context, events []*eventparser.ParsedEvent, fromBlock, toBlock, head uint64) error {
	needed := make(map[uint64]struct{})

	for _, event := range events {
		needed[event.BlockNumber] = struct{}{}
	}

	var reorgWindowStart uint64
	if head > c.chain.ReorgDepth-1 {
		reorgWindowStart = head - c.chain.ReorgDepth + 1
	}
	for n := fromBlock; n <= toBlock; n++ {
		if n >= reorgWindowStart {
			needed[n] = struct{}{}
		}
	}

	var missing []uint64
	for n := range needed {
		if _, ok := c.cache.Get(n); !ok {
			missing = append(missing, n)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	blocks, err := c.pool.GetBlocks(ctx, missing)
	if err != nil {
		return err
	}

	for n, info := range blocks {
		if info == nil {
			c.log.Warnf("block %d not yet visible on any endpoint", n)
			continue
		}
		c.cache.Put(n, blockcache.Entry{
			Hash:       info.Hash.Hex(),
			ParentHash: info.ParentHash.Hex(),
			BlockTime:  int64(info.Timestamp) * 1000,
		})
	}

	return nil
}
