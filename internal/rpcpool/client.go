package rpcpool

import (
	"context"
	"fmt"
	"math/big"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"

	"github.com/chainwatch/evmcrawler/internal/config"
	"github.com/chainwatch/evmcrawler/internal/metrics"
)

// BlockInfo is the nullable block metadata used by the crawler's reorg
// probe and block cache.
type BlockInfo struct {
	Number     uint64
	Hash       common.Hash
	ParentHash common.Hash
	Timestamp  uint64
}

// client wraps one endpoint's connection. It never fails over by itself;
// the Pool decides when to move to the next endpoint.
type client struct {
	endpoint string
	eth      *ethclient.Client
	retry    config.RetryConfig
}

func dial(ctx context.Context, endpoint string, retry config.RetryConfig) (*client, error) {
	rpcClient, err := gethrpc.DialContext(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", endpoint, err)
	}
	return &client{
		endpoint: endpoint,
		eth:      ethclient.NewClient(rpcClient),
		retry:    retry,
	}, nil
}

func (c *client) close() {
	c.eth.Close()
}

func (c *client) instrumented(ctx context.Context, method string, fn func() error) error {
	start := time.Now()
	metrics.RPCMethodInc(method)
	err := retryWithBackoff(ctx, c.retry, method, fn)
	metrics.RPCMethodDuration(method, time.Since(start))
	if err != nil {
		metrics.RPCMethodError(method, "error")
	}
	return err
}

func (c *client) getHeadBlockNumber(ctx context.Context) (uint64, error) {
	var head uint64
	err := c.instrumented(ctx, "eth_blockNumber", func() error {
		n, err := c.eth.BlockNumber(ctx)
		if err != nil {
			return err
		}
		head = n
		return nil
	})
	return head, err
}

func (c *client) getBlock(ctx context.Context, number uint64) (*BlockInfo, error) {
	var info *BlockInfo
	err := c.instrumented(ctx, "eth_getBlockByNumber", func() error {
		header, err := c.eth.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
		if err != nil {
			return err
		}
		if header == nil {
			info = nil
			return nil
		}
		info = &BlockInfo{
			Number:     header.Number.Uint64(),
			Hash:       header.Hash(),
			ParentHash: header.ParentHash,
			Timestamp:  header.Time,
		}
		return nil
	})
	return info, err
}

func (c *client) getTransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	var receipt *types.Receipt
	err := c.instrumented(ctx, "eth_getTransactionReceipt", func() error {
		r, err := c.eth.TransactionReceipt(ctx, txHash)
		if err != nil {
			return err
		}
		receipt = r
		return nil
	})
	return receipt, err
}

func (c *client) queryLogs(ctx context.Context, contract common.Address, fromBlock, toBlock uint64, topics [][]common.Hash) ([]types.Log, error) {
	var logs []types.Log
	err := c.instrumented(ctx, "eth_getLogs", func() error {
		query := ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(fromBlock),
			ToBlock:   new(big.Int).SetUint64(toBlock),
			Addresses: []common.Address{contract},
			Topics:    topics,
		}
		l, err := c.eth.FilterLogs(ctx, query)
		if err != nil {
			return err
		}
		logs = l
		return nil
	})
	return logs, err
}
