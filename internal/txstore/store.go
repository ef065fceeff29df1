// Package txstore persists parsed deposit/withdraw events into a single
// relational table and keeps their confirmation counts current as the
// chain head advances, without ever decrementing a row's confirmations
// outside of a reorg rollback (invariant I3: rows that could regress are
// deleted, not un-confirmed).
package txstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/chainwatch/evmcrawler/internal/eventparser"
	"github.com/chainwatch/evmcrawler/internal/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/russross/meddler"
)

// Store wraps a *sql.DB with the operations the crawler and the fallback
// verifier need against the transactions table.
type Store struct {
	db  *sql.DB
	log *logger.Logger
}

// New wraps an existing database handle.
func New(db *sql.DB, log *logger.Logger) *Store {
	return &Store{db: db, log: log}
}

// NewRow builds a Transaction row from a parsed event, stamping
// confirmations from the supplied head per I2/I3: confirmations is
// clamped to zero and never computed as negative.
func NewRow(chainID string, event *eventparser.ParsedEvent, head uint64, blockHash common.Hash, blockTime int64, requireConfirmations uint64) *Transaction {
	var confirmations uint64
	if head+1 > event.BlockNumber {
		confirmations = head - event.BlockNumber + 1
	}
	if confirmations > requireConfirmations {
		confirmations = requireConfirmations
	}

	now := time.Now().UnixMilli()
	return &Transaction{
		TransactionHash:      event.TxHash,
		ChainID:              chainID,
		Address:              event.Address,
		Operation:            event.Operation,
		RawAmount:            event.RawAmount.String(),
		// Amount is always persisted at fixed scale 18 regardless of the
		// token's native decimals (P7), independent of FormatAmount's
		// native-scale decimal.Decimal used for in-memory arithmetic.
		Amount:               event.Amount.StringFixed(18),
		TokenDecimals:        event.Decimals,
		TokenAddress:         event.TokenAddress,
		ContractAddress:      event.ContractAddress,
		BlockNumber:          event.BlockNumber,
		BlockHash:            blockHash,
		BlockTime:            blockTime,
		Confirmations:        confirmations,
		RequireConfirmations: requireConfirmations,
		Status:               deriveStatus(confirmations, requireConfirmations),
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

// isUniqueViolation recognizes sqlite's unique constraint error so inserts
// replaying an already-seen transactionHash are treated as a no-op rather
// than aborting the batch (I1: transactionHash is globally unique).
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// sqlExecutor is the subset of *sql.DB and *sql.Tx that meddler needs, so
// the insert/recompute logic below can run against either a bare handle or
// a transaction without duplicating it.
type sqlExecutor interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// insertRow persists row against db. If transactionHash already exists the
// insert is silently skipped; this makes the fallback verifier and the
// crawler loop safe to run over the same range without producing duplicate
// rows.
func insertRow(db sqlExecutor, log *logger.Logger, row *Transaction) error {
	if err := meddler.Insert(db, "transactions", row); err != nil {
		if isUniqueViolation(err) {
			log.Debugf("skipping duplicate transaction %s", row.TransactionHash.Hex())
			return nil
		}
		return fmt.Errorf("failed to insert transaction %s: %w", row.TransactionHash.Hex(), err)
	}
	return nil
}

// Insert persists row standalone, for callers outside the crawler's
// batched persist step (the fallback verifier, tests).
func (s *Store) Insert(ctx context.Context, row *Transaction) error {
	return insertRow(s.db, s.log, row)
}

// recomputeConfirmations recomputes confirmations for every row of chainID
// still below its own requireConfirmations, given the current head, against
// db. Per I3, this never needs to decrease a value: candidate rows that
// could have regressed due to a reorg were already removed by
// DeleteFromBlock.
func recomputeConfirmations(db sqlExecutor, chainID string, head uint64) (int, error) {
	var pending []*Transaction
	err := meddler.QueryAll(db, &pending,
		`SELECT * FROM transactions WHERE chain_id = ? AND confirmations < require_confirmations`, chainID)
	if err != nil {
		return 0, fmt.Errorf("failed to load pending transactions for chain %s: %w", chainID, err)
	}

	updated := 0
	for _, row := range pending {
		var confirmations uint64
		if head+1 > row.BlockNumber {
			confirmations = head - row.BlockNumber + 1
		}
		if confirmations > row.RequireConfirmations {
			confirmations = row.RequireConfirmations
		}

		if confirmations == row.Confirmations {
			continue
		}

		row.Confirmations = confirmations
		row.Status = deriveStatus(confirmations, row.RequireConfirmations)
		row.UpdatedAt = time.Now().UnixMilli()

		if err := meddler.Update(db, "transactions", row); err != nil {
			return updated, fmt.Errorf("failed to update confirmations for %s: %w", row.TransactionHash.Hex(), err)
		}
		updated++
	}

	return updated, nil
}

// RecomputeConfirmations recomputes confirmations for chainID standalone,
// outside of a batched persist step.
func (s *Store) RecomputeConfirmations(ctx context.Context, chainID string, head uint64) (int, error) {
	return recomputeConfirmations(s.db, chainID, head)
}

// PersistBatch inserts every row and then recomputes confirmations for
// chainID as a single transaction, so an observer of the database sees
// either all of a crawl cycle's writes or none of them.
func (s *Store) PersistBatch(ctx context.Context, chainID string, rows []*Transaction, head uint64) (map[string]int, int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to begin persist transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.log.Errorf("failed to rollback persist transaction: %v", rbErr)
		}
	}()

	perOperation := make(map[string]int)
	for _, row := range rows {
		if err := insertRow(tx, s.log, row); err != nil {
			return nil, 0, err
		}
		perOperation[row.Operation]++
	}

	updated, err := recomputeConfirmations(tx, chainID, head)
	if err != nil {
		return nil, 0, err
	}

	if err := tx.Commit(); err != nil {
		return nil, 0, fmt.Errorf("failed to commit persist transaction: %w", err)
	}

	return perOperation, updated, nil
}

// ctxExecutor is the subset of *sql.DB and *sql.Tx used by the
// context-aware statements below, so DeleteFromBlock can run standalone or
// as part of a caller-managed transaction.
type ctxExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func deleteFromBlock(ctx context.Context, db ctxExecutor, chainID string, from uint64) (int64, error) {
	res, err := db.ExecContext(ctx,
		`DELETE FROM transactions WHERE chain_id = ? AND block_number >= ?`, chainID, from)
	if err != nil {
		return 0, fmt.Errorf("failed to roll back transactions for chain %s from block %d: %w", chainID, from, err)
	}
	return res.RowsAffected()
}

// DeleteFromBlock removes every row of chainID with blockNumber >= from,
// the only way a row's confirmations may effectively regress (I3: by
// deletion, never by decrementing).
func (s *Store) DeleteFromBlock(ctx context.Context, chainID string, from uint64) (int64, error) {
	return deleteFromBlock(ctx, s.db, chainID, from)
}

// BeginTx starts a transaction against the store's underlying handle, for
// callers (the crawler's reorg rollback) that need to combine a delete here
// with a write to another store sharing the same *sql.DB.
func (s *Store) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, nil)
}

// DeleteFromBlockTx is DeleteFromBlock run against a caller-managed
// transaction.
func (s *Store) DeleteFromBlockTx(ctx context.Context, tx *sql.Tx, chainID string, from uint64) (int64, error) {
	return deleteFromBlock(ctx, tx, chainID, from)
}

// MaxBlockNumber returns the highest blockNumber stored for chainID, used
// to cross-check the checkpoint store on a cold start.
func (s *Store) MaxBlockNumber(ctx context.Context, chainID string) (uint64, bool, error) {
	var max sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(block_number) FROM transactions WHERE chain_id = ?`, chainID).Scan(&max)
	if err != nil {
		return 0, false, fmt.Errorf("failed to read max block for chain %s: %w", chainID, err)
	}
	if !max.Valid {
		return 0, false, nil
	}
	return uint64(max.Int64), true, nil
}

// ByHash returns the row for transactionHash, if any, for verifier
// idempotency checks.
func (s *Store) ByHash(ctx context.Context, txHash common.Hash) (*Transaction, error) {
	var row Transaction
	err := meddler.QueryRow(s.db, &row, `SELECT * FROM transactions WHERE transaction_hash = ?`, strings.ToLower(txHash.Hex()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load transaction %s: %w", txHash.Hex(), err)
	}
	return &row, nil
}

// ParseRawAmount reparses a stored rawAmount back into a big.Int, used by
// callers that need arbitrary-precision arithmetic on an already-persisted
// row rather than re-deriving it from decimal.
func ParseRawAmount(raw string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("invalid raw amount %q", raw)
	}
	return n, nil
}
