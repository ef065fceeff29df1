// Package metrics exposes the Prometheus instrumentation shared by the RPC
// pool, the crawler loop and the fallback verifier. Metrics are registered
// once at package init via promauto and updated through the small Inc/Set
// helpers below, so callers never touch a prometheus.Collector directly.
package metrics

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	dbQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evmcrawler_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"db", "operation"},
	)

	dbQueryTime = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "evmcrawler_db_query_duration_seconds",
			Help:    "Duration of database queries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"db", "operation"},
	)

	dbErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evmcrawler_db_errors_total",
			Help: "Total number of database errors",
		},
		[]string{"db", "error_type"},
	)

	rpcMethodCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evmcrawler_rpc_calls_total",
			Help: "Total number of RPC calls by method",
		},
		[]string{"method"},
	)

	rpcMethodDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "evmcrawler_rpc_call_duration_seconds",
			Help:    "Duration of RPC calls by method",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	rpcMethodErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evmcrawler_rpc_call_errors_total",
			Help: "Total number of RPC call errors by method and kind",
		},
		[]string{"method", "kind"},
	)

	rpcRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evmcrawler_rpc_retries_total",
			Help: "Total number of RPC retries by operation",
		},
		[]string{"operation"},
	)

	rpcFailovers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evmcrawler_rpc_endpoint_failovers_total",
			Help: "Total number of times the pool moved to the next RPC endpoint",
		},
		[]string{"chain"},
	)

	rpcEndpointHealth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "evmcrawler_rpc_endpoint_health",
			Help: "RPC endpoint health status (1=healthy, 0=unhealthy)",
		},
		[]string{"chain", "endpoint"},
	)

	// Crawler metrics
	LastProcessedBlock = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "evmcrawler_last_processed_block",
			Help: "The last block number the checkpoint was advanced to",
		},
		[]string{"chain"},
	)

	cyclesCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evmcrawler_crawl_cycles_total",
			Help: "Total number of crawl loop cycles completed",
		},
		[]string{"chain"},
	)

	cycleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "evmcrawler_crawl_cycle_duration_seconds",
			Help:    "Duration of one crawl loop cycle",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"chain"},
	)

	eventsPersisted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evmcrawler_events_persisted_total",
			Help: "Total number of parsed events persisted by operation",
		},
		[]string{"chain", "operation"},
	)

	confirmationsUpdated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evmcrawler_confirmations_updated_total",
			Help: "Total number of rows whose confirmations were recomputed",
		},
		[]string{"chain"},
	)

	reorgsDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evmcrawler_reorgs_detected_total",
			Help: "Total number of reorgs detected, labeled by chain",
		},
		[]string{"chain"},
	)

	rowsRolledBack = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evmcrawler_rows_rolled_back_total",
			Help: "Total number of transaction rows deleted by reorg rollback",
		},
		[]string{"chain"},
	)

	verifierInvocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evmcrawler_verifier_invocations_total",
			Help: "Total number of fallback verifier invocations by outcome",
		},
		[]string{"chain", "outcome"},
	)

	// System metrics
	Uptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "evmcrawler_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)

	Errors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evmcrawler_errors_total",
			Help: "Total number of errors by component and severity",
		},
		[]string{"component", "severity"},
	)

	ComponentHealth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "evmcrawler_component_health",
			Help: "Component health status (1=healthy, 0=unhealthy)",
		},
		[]string{"component"},
	)

	Goroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "evmcrawler_goroutines",
			Help: "Number of active goroutines",
		},
	)

	MemoryUsage = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "evmcrawler_memory_usage_bytes",
			Help: "Memory usage statistics",
		},
		[]string{"type"},
	)

	startTime = time.Now()
)

func DBQueryInc(db string, operation string) {
	dbQueries.WithLabelValues(db, operation).Inc()
}

func DBQueryDuration(db string, operation string, duration time.Duration) {
	dbQueryTime.WithLabelValues(db, operation).Observe(duration.Seconds())
}

func DBErrorsInc(db string, errorType string) {
	dbErrors.WithLabelValues(db, errorType).Inc()
}

// RPCMethodInc counts one call attempt to an RPC method.
func RPCMethodInc(method string) {
	rpcMethodCalls.WithLabelValues(method).Inc()
}

// RPCMethodDuration records how long a call to an RPC method took.
func RPCMethodDuration(method string, d time.Duration) {
	rpcMethodDuration.WithLabelValues(method).Observe(d.Seconds())
}

// RPCMethodError counts one failed call to an RPC method.
func RPCMethodError(method, kind string) {
	rpcMethodErrors.WithLabelValues(method, kind).Inc()
}

// RPCRetryInc counts one retry of operation after a recoverable error.
func RPCRetryInc(operation string) {
	rpcRetries.WithLabelValues(operation).Inc()
}

// RPCFailoverInc counts one pool failover to the next endpoint for chain.
func RPCFailoverInc(chain string) {
	rpcFailovers.WithLabelValues(chain).Inc()
}

// RPCEndpointHealthSet records whether an endpoint answered its last call.
func RPCEndpointHealthSet(chain, endpoint string, healthy bool) {
	v := float64(1)
	if !healthy {
		v = 0
	}
	rpcEndpointHealth.WithLabelValues(chain, endpoint).Set(v)
}

// LastProcessedBlockSet publishes the chain's checkpoint value.
func LastProcessedBlockSet(chain string, blockNumber uint64) {
	LastProcessedBlock.WithLabelValues(chain).Set(float64(blockNumber))
}

// CycleCompletedInc counts one finished crawl loop cycle.
func CycleCompletedInc(chain string) {
	cyclesCompleted.WithLabelValues(chain).Inc()
}

// CycleDurationObserve records how long one crawl loop cycle took.
func CycleDurationObserve(chain string, d time.Duration) {
	cycleDuration.WithLabelValues(chain).Observe(d.Seconds())
}

// EventsPersistedInc counts newly persisted rows by operation.
func EventsPersistedInc(chain, operation string, count int) {
	eventsPersisted.WithLabelValues(chain, operation).Add(float64(count))
}

// ConfirmationsUpdatedInc counts rows whose confirmations changed this cycle.
func ConfirmationsUpdatedInc(chain string, count int) {
	confirmationsUpdated.WithLabelValues(chain).Add(float64(count))
}

// ReorgDetectedInc counts one detected reorg for chain.
func ReorgDetectedInc(chain string) {
	reorgsDetected.WithLabelValues(chain).Inc()
}

// RowsRolledBackInc counts rows deleted by a reorg rollback.
func RowsRolledBackInc(chain string, count int64) {
	rowsRolledBack.WithLabelValues(chain).Add(float64(count))
}

// VerifierInvocationInc counts one fallback verifier call by its outcome
// ("already_present", "not_found", "not_tracked", "no_events", "saved").
func VerifierInvocationInc(chain, outcome string) {
	verifierInvocations.WithLabelValues(chain, outcome).Inc()
}

func ComponentHealthSet(component string, healthy bool) {
	v := float64(1)
	if !healthy {
		v = 0
	}
	ComponentHealth.WithLabelValues(component).Set(v)
}

// UpdateSystemMetrics updates runtime system metrics. Call periodically
// from the metrics server's background loop.
func UpdateSystemMetrics() {
	Uptime.Set(time.Since(startTime).Seconds())
	Goroutines.Set(float64(runtime.NumGoroutine()))

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	MemoryUsage.WithLabelValues("alloc").Set(float64(m.Alloc))
	MemoryUsage.WithLabelValues("total_alloc").Set(float64(m.TotalAlloc))
	MemoryUsage.WithLabelValues("sys").Set(float64(m.Sys))
	MemoryUsage.WithLabelValues("heap_inuse").Set(float64(m.HeapInuse))
}
