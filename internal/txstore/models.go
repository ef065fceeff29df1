package txstore

import (
	"github.com/ethereum/go-ethereum/common"
)

// Status mirrors the derived confirmations/requireConfirmations relationship.
// It is never set directly by a caller; Store derives it on every write.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	// StatusFailed is part of the status enum's wire contract but is never
	// assigned by deriveStatus: this store has no path that marks a row
	// failed once inserted.
	StatusFailed Status = "FAILED"
)

// Transaction is one row of the transactions table. Field tags follow the
// meddler convention used throughout this module: snake_case column names,
// with "address"/"hash" meddler types for go-ethereum's address and hash
// wrappers so callers never hand-roll hex parsing.
type Transaction struct {
	ID                   int64           `meddler:"id,pk"`
	TransactionHash      common.Hash     `meddler:"transaction_hash,hash"`
	ChainID              string          `meddler:"chain_id"`
	Address              common.Address  `meddler:"address,address"`
	Operation            string          `meddler:"operation"`
	RawAmount            string          `meddler:"raw_amount"`
	Amount               string          `meddler:"amount"`
	TokenDecimals        uint8           `meddler:"token_decimals"`
	TokenAddress         *common.Address `meddler:"token_address,address"`
	ContractAddress      common.Address  `meddler:"contract_address,address"`
	BlockNumber          uint64          `meddler:"block_number"`
	BlockHash            common.Hash     `meddler:"block_hash,hash"`
	BlockTime            int64           `meddler:"block_time"`
	Confirmations        uint64          `meddler:"confirmations"`
	RequireConfirmations uint64          `meddler:"require_confirmations"`
	Status               Status          `meddler:"status"`
	CreatedAt            int64           `meddler:"created_at"`
	UpdatedAt            int64           `meddler:"updated_at"`
}

// deriveStatus implements invariant I2: status == CONFIRMED iff
// confirmations >= requireConfirmations.
func deriveStatus(confirmations, requireConfirmations uint64) Status {
	if confirmations >= requireConfirmations {
		return StatusConfirmed
	}
	return StatusPending
}
