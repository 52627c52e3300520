package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// DepositIntent describes one liquidity deposit to settle. An intent is
// consumed by exactly one decision run; concurrent runs over the same intent
// are independent and may both execute unless the caller serializes them
// externally (see LockManager).
type DepositIntent struct {
	ID string // UUID, assigned when the run starts

	// PoolID targets a specific pool. Zero when the engine should select the
	// pool itself.
	PoolID PoolID

	// Amount is the stablecoin amount to deposit, in raw token units.
	Amount *big.Int

	// TickLower/TickUpper bound the liquidity range. Both zero means the
	// engine derives the range from the policy's tick_range_width and
	// position_type.
	TickLower int
	TickUpper int

	Recipient common.Address
	CreatedAt time.Time
}

// HasRange reports whether the intent carries an explicit tick range.
func (i DepositIntent) HasRange() bool {
	return i.TickLower != 0 || i.TickUpper != 0
}

// AmountFloat returns the deposit amount as a float64 for risk heuristics.
func (i DepositIntent) AmountFloat() float64 {
	if i.Amount == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(i.Amount).Float64()
	return f
}

// DepositReceipt is what the execution gateway returns for a submitted
// deposit. The gateway owns all chain-specific encoding, signing, gas, and
// confirmation handling; the core treats the receipt as opaque.
type DepositReceipt struct {
	Success    bool   `json:"success"`
	TxHash     string `json:"tx_hash,omitempty"`
	PositionID string `json:"position_id,omitempty"`
	Error      string `json:"error,omitempty"`
}
