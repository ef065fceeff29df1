package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/chainwatch/evmcrawler/internal/blockcache"
	"github.com/chainwatch/evmcrawler/internal/checkpoint"
	internalcommon "github.com/chainwatch/evmcrawler/internal/common"
	"github.com/chainwatch/evmcrawler/internal/config"
	"github.com/chainwatch/evmcrawler/internal/crawler"
	"github.com/chainwatch/evmcrawler/internal/db"
	"github.com/chainwatch/evmcrawler/internal/eventparser"
	"github.com/chainwatch/evmcrawler/internal/logger"
	"github.com/chainwatch/evmcrawler/internal/metrics"
	"github.com/chainwatch/evmcrawler/internal/rpcpool"
	"github.com/chainwatch/evmcrawler/internal/store/migrations"
	"github.com/chainwatch/evmcrawler/internal/txstore"
	"github.com/chainwatch/evmcrawler/internal/verifier"
)

const (
	version = "0.1.0"
	banner  = `
╔═══════════════════════════════════════════╗
║              evmcrawler v%s             ║
║   Single-chain EVM deposit/withdraw feed   ║
╚═══════════════════════════════════════════╝
`
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "crawler",
	Short:   "evmcrawler - EVM chain event crawler",
	Long:    `evmcrawler watches one EVM-compatible chain for Deposit/Withdraw events and keeps a confirmation-aware ledger of them.`,
	Version: version,
	RunE:    run,
}

var verifyCmd = &cobra.Command{
	Use:   "verify [txHash]",
	Short: "Run the fallback verifier against a single transaction",
	Args:  cobra.ExactArgs(1),
	RunE:  runVerify,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a config file (overrides environment-derived configuration)")
	rootCmd.AddCommand(verifyCmd)
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromFile(configPath)
	}
	return config.FromEnv()
}

func run(cmd *cobra.Command, args []string) error {
	fmt.Printf(banner, version)

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nshutting down gracefully...")
		cancel()
	}()

	log := logger.NewComponentLoggerFromConfig(internalcommon.ComponentCrawler, logger.Config{Level: cfg.Logging.Level, Development: cfg.Logging.Development})

	log.Info("running database migrations...")
	if err := migrations.RunMigrations(cfg.DB.Path); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	database, err := db.NewSQLiteDBFromConfig(cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	maintenance := db.NewMaintenanceCoordinator(cfg.DB.Path, database, &cfg.Maintenance, log)
	if err := maintenance.Start(ctx); err != nil {
		return fmt.Errorf("failed to start db maintenance: %w", err)
	}
	defer func() {
		if err := maintenance.Stop(); err != nil {
			log.Warnf("failed to stop db maintenance: %v", err)
		}
	}()

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(&cfg.Metrics, logger.NewComponentLoggerFromConfig(internalcommon.ComponentMetrics, logger.Config{Level: cfg.Logging.Level}))
		if err := metricsServer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		defer func() {
			if err := metricsServer.Stop(ctx); err != nil {
				log.Warnf("failed to stop metrics server: %v", err)
			}
		}()
		log.Infof("metrics server listening on %s%s", cfg.Metrics.ListenAddress, cfg.Metrics.Path)
	}

	checkpoints := checkpoint.New(database)
	txs := txstore.New(database, logger.NewComponentLoggerFromConfig(internalcommon.ComponentTxStore, logger.Config{Level: cfg.Logging.Level}))

	pool, err := rpcpool.New(cfg.Chain.ChainID, cfg.Chain.RPCURLs, cfg.Retry, logger.NewComponentLoggerFromConfig(internalcommon.ComponentRPCPool, logger.Config{Level: cfg.Logging.Level}))
	if err != nil {
		return fmt.Errorf("failed to create rpc pool: %w", err)
	}
	defer pool.Close()

	registry := eventparser.NewRegistry(logger.NewComponentLoggerFromConfig(internalcommon.ComponentParser, logger.Config{Level: cfg.Logging.Level}))
	eventparser.RegisterDefaults(registry)

	cache := blockcache.New()

	c := crawler.New(cfg.Chain, pool, registry, cache, checkpoints, txs, logger.NewComponentLoggerFromConfig(internalcommon.ComponentCrawler, logger.Config{Level: cfg.Logging.Level}))

	log.Infof("starting crawler for chain %s (contract %s, start block %d)", cfg.Chain.ChainID, cfg.Chain.ContractAddress, cfg.Chain.StartBlock)
	if err := c.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("crawler stopped with error: %w", err)
	}

	log.Info("crawler stopped")
	return nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx := context.Background()
	log := logger.NewComponentLoggerFromConfig(internalcommon.ComponentVerifier, logger.Config{Level: cfg.Logging.Level})

	database, err := db.NewSQLiteDBFromConfig(cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	txs := txstore.New(database, log)

	pool, err := rpcpool.New(cfg.Chain.ChainID, cfg.Chain.RPCURLs, cfg.Retry, log)
	if err != nil {
		return fmt.Errorf("failed to create rpc pool: %w", err)
	}
	defer pool.Close()

	registry := eventparser.NewRegistry(log)
	eventparser.RegisterDefaults(registry)

	v := verifier.New(log)
	v.RegisterChain(cfg.Chain, pool, registry, txs)

	result, err := v.Verify(ctx, cfg.Chain.ChainID, common.HexToHash(args[0]))
	if err != nil {
		return fmt.Errorf("verify failed: %w", err)
	}

	fmt.Printf("found=%v message=%q\n", result.Found, result.Message)
	return nil
}
