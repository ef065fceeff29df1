package crawler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chainwatch/evmcrawler/internal/txstore"
)

func TestBootstrapFallsBackToStartBlockMinusOne(t *testing.T) {
	chain := testChain()
	cr, cp, _ := newTestCrawler(t, chain, &fakePool{head: 1010})

	require.NoError(t, cr.bootstrap(context.Background()))
	require.Equal(t, uint64(999), cr.lastProcessedBlock)

	n, ok, err := cp.Get(context.Background(), chain.ChainID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(999), n)
}

func TestBootstrapUsesExistingCheckpoint(t *testing.T) {
	chain := testChain()
	cr, cp, _ := newTestCrawler(t, chain, &fakePool{head: 1010})

	require.NoError(t, cp.Set(context.Background(), chain.ChainID, 1005))
	require.NoError(t, cr.bootstrap(context.Background()))
	require.Equal(t, uint64(1005), cr.lastProcessedBlock)
}

func TestBootstrapFallsBackToMaxBlockNumberFromTxStore(t *testing.T) {
	chain := testChain()
	cr, cp, txs := newTestCrawler(t, chain, &fakePool{head: 1010})

	event := sampleCrawlerEvent(1008)
	row := txstore.NewRow(chain.ChainID, event, 1010, event.BlockHash, 0, chain.RequiredConfirmations)
	require.NoError(t, txs.Insert(context.Background(), row))

	require.NoError(t, cr.bootstrap(context.Background()))
	require.Equal(t, uint64(1008), cr.lastProcessedBlock)

	n, ok, err := cp.Get(context.Background(), chain.ChainID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(1008), n)
}
