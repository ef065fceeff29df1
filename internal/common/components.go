package common

const (
	ComponentCrawler    = "crawler"
	ComponentRPCPool    = "rpc-pool"
	ComponentParser     = "parser"
	ComponentBlockCache = "block-cache"
	ComponentCheckpoint = "checkpoint"
	ComponentTxStore    = "tx-store"
	ComponentVerifier   = "verifier"
	ComponentMetrics    = "metrics"
)

var AllComponents = map[string]struct{}{
	ComponentCrawler:    {},
	ComponentRPCPool:    {},
	ComponentParser:     {},
	ComponentBlockCache: {},
	ComponentCheckpoint: {},
	ComponentTxStore:    {},
	ComponentVerifier:   {},
	ComponentMetrics:    {},
}
