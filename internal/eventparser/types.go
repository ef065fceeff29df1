// Package eventparser decodes raw contract logs into typed deposit/withdraw
// events, via a flat dispatch table keyed by event name rather than a class
// hierarchy — new event kinds plug in by registering a parser function.
package eventparser

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

const (
	// OperationDeposit identifies a Deposit event's parsed row.
	OperationDeposit = "deposit"
	// OperationWithdraw identifies a Withdraw event's parsed row.
	OperationWithdraw = "withdraw"

	// DefaultDecimals is used when an event's data does not carry an
	// explicit decimals field.
	DefaultDecimals = 18
)

// ParsedEvent is the typed result of decoding one raw log.
type ParsedEvent struct {
	Operation       string
	Address         common.Address // the user carried by the event
	TokenAddress    *common.Address
	ContractAddress common.Address
	RawAmount       *big.Int
	Decimals        uint8
	Amount          decimal.Decimal
	BlockNumber     uint64
	BlockHash       common.Hash
	TxHash          common.Hash
	LogIndex        uint
}

// FormatAmount converts a raw integer amount and a decimals exponent into a
// fixed-scale decimal, never using binary floating point.
func FormatAmount(raw *big.Int, decimals uint8) decimal.Decimal {
	return decimal.NewFromBigInt(raw, 0).Shift(-int32(decimals))
}
