package crawler

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chainwatch/evmcrawler/internal/eventparser"
	"github.com/chainwatch/evmcrawler/internal/metrics"
	"github.com/chainwatch/evmcrawler/internal/txstore"
)

// persist builds a row for each parsed event and persists the whole batch
// plus the confirmation-refresh step as a single transaction (an observer
// of the database sees either all of a cycle's writes or none of them).
func (c *Crawler) persist(ctx context.Context, events []*eventparser.ParsedEvent, head uint64) error {
	rows := make([]*txstore.Transaction, 0, len(events))

	for _, event := range events {
		entry, ok := c.cache.Get(event.BlockNumber)
		if !ok {
			// populateMissingBlocks already attempted a refetch for every
			// block referenced by this cycle's events; if the entry is
			// still absent here, skip the row per the missing-block
			// invariant instead of refetching a second time.
			c.log.Errorf("no cached block metadata for block %d, tx %s, skipping row", event.BlockNumber, event.TxHash.Hex())
			continue
		}

		rows = append(rows, txstore.NewRow(c.chain.ChainID, event, head, common.HexToHash(entry.Hash), entry.BlockTime, c.chain.RequiredConfirmations))
	}

	perOperation, updated, err := c.txs.PersistBatch(ctx, c.chain.ChainID, rows, head)
	if err != nil {
		return err
	}

	for operation, count := range perOperation {
		metrics.EventsPersistedInc(c.chain.ChainID, operation, count)
	}
	if updated > 0 {
		metrics.ConfirmationsUpdatedInc(c.chain.ChainID, updated)
	}

	return nil
}
