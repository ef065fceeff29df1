// Package checkpoint persists the "last fully processed block" per chain
// in a small dedicated SQLite table, exposing only Get/Set as required by
// the checkpoint store contract — no mode or timestamp fields leak into
// the interface the crawler depends on.
package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Store is a chain-keyed key-value store for the last processed block.
type Store struct {
	db *sql.DB
}

// New wraps an existing database handle. The checkpoints table is created
// by the embedded migration that runs at startup.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Get returns the last processed block for chainID, and false if no
// checkpoint has been recorded yet.
func (s *Store) Get(ctx context.Context, chainID string) (uint64, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT last_processed_block FROM checkpoints WHERE chain_id = ?`, chainID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to load checkpoint for chain %s: %w", chainID, err)
	}

	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt checkpoint value %q for chain %s: %w", raw, chainID, err)
	}
	return n, true, nil
}

// ctxExecutor is the subset of *sql.DB and *sql.Tx that Set needs, so it
// can run standalone or as part of a caller-managed transaction.
type ctxExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func setCheckpoint(ctx context.Context, db ctxExecutor, chainID string, blockNumber uint64) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO checkpoints (chain_id, last_processed_block, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(chain_id) DO UPDATE SET
			last_processed_block = excluded.last_processed_block,
			updated_at = excluded.updated_at
	`, chainID, strconv.FormatUint(blockNumber, 10), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to set checkpoint for chain %s: %w", chainID, err)
	}
	return nil
}

// Set persists the last processed block for chainID.
func (s *Store) Set(ctx context.Context, chainID string, blockNumber uint64) error {
	return setCheckpoint(ctx, s.db, chainID, blockNumber)
}

// SetTx is Set run against a caller-managed transaction, used by the
// crawler's reorg rollback so the checkpoint rewind commits atomically
// with the row deletion it depends on.
func (s *Store) SetTx(ctx context.Context, tx *sql.Tx, chainID string, blockNumber uint64) error {
	return setCheckpoint(ctx, tx, chainID, blockNumber)
}
