package eventparser

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const (
	// DepositSignature and WithdrawSignature are the two initial event
	// shapes this registry understands:
	// Deposit(user indexed address, tokenAddress indexed address, amount uint256, decimals uint8)
	DepositSignature  = "Deposit(address,address,uint256,uint8)"
	WithdrawSignature = "Withdraw(address,address,uint256,uint8)"

	expectedTopicsCount  = 3  // signature + 2 indexed params
	amountWordSize       = 32
	decimalsWordSize     = 32
	fullDataSize         = amountWordSize + decimalsWordSize
	amountOnlyDataSize   = amountWordSize
)

// RegisterDefaults wires the Deposit and Withdraw parsers into r.
func RegisterDefaults(r *Registry) {
	r.Register("Deposit", DepositSignature, parseDepositOrWithdraw(OperationDeposit))
	r.Register("Withdraw", WithdrawSignature, parseDepositOrWithdraw(OperationWithdraw))
}

// parseDepositOrWithdraw builds a parser for the Deposit/Withdraw shape,
// which is identical for both operations apart from the tagged name.
func parseDepositOrWithdraw(operation string) ParserFunc {
	return func(log *types.Log) (*ParsedEvent, error) {
		if len(log.Topics) != expectedTopicsCount {
			return nil, fmt.Errorf("invalid %s event: expected %d topics, got %d",
				operation, expectedTopicsCount, len(log.Topics))
		}

		if len(log.Data) != fullDataSize && len(log.Data) != amountOnlyDataSize {
			return nil, fmt.Errorf("invalid %s event: expected %d or %d bytes of data, got %d",
				operation, amountOnlyDataSize, fullDataSize, len(log.Data))
		}

		user := common.BytesToAddress(log.Topics[1].Bytes())
		token := common.BytesToAddress(log.Topics[2].Bytes())
		rawAmount := new(big.Int).SetBytes(log.Data[:amountWordSize])

		decimals := uint8(DefaultDecimals)
		if len(log.Data) == fullDataSize {
			decimals = log.Data[fullDataSize-1]
		}

		return &ParsedEvent{
			Operation:       operation,
			Address:         user,
			TokenAddress:    &token,
			ContractAddress: log.Address,
			RawAmount:       rawAmount,
			Decimals:        decimals,
			Amount:          FormatAmount(rawAmount, decimals),
			BlockNumber:     log.BlockNumber,
			BlockHash:       log.BlockHash,
			TxHash:          log.TxHash,
			LogIndex:        log.Index,
		}, nil
	}
}
