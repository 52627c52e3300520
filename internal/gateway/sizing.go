// Package gateway implements the execution side of a settlement: sizing the
// concentrated-liquidity position exactly and submitting it through an
// external relayer that owns signing, gas, and confirmation handling.
package gateway

import (
	"fmt"
	"math/big"

	"github.com/winverse2755/settlekit/internal/domain"
	"github.com/winverse2755/settlekit/internal/univ3"
)

// PositionPlan is the exact fixed-point sizing of one deposit. Amount0 and
// Amount1 are recomputed from the rounded integer liquidity, not taken from
// the intent: amount -> liquidity -> amount is lossy, and the chain verifies
// the recomputed values with zero tolerance.
type PositionPlan struct {
	TickLower int
	TickUpper int
	Liquidity *big.Int
	Amount0   *big.Int
	Amount1   *big.Int
}

// PlanPosition sizes the position for an intent against a fresh pool state.
// The intent's amount is offered on both sides of the range; the min-of-both
// selection inside LiquidityForAmounts guarantees neither side is exceeded.
func PlanPosition(intent domain.DepositIntent, state domain.PoolState) (PositionPlan, error) {
	if intent.Amount == nil || intent.Amount.Sign() <= 0 {
		return PositionPlan{}, fmt.Errorf("gateway: plan position: non-positive amount")
	}
	if !state.Initialized() {
		return PositionPlan{}, fmt.Errorf("gateway: plan position: pool %s uninitialized", state.PoolID.Hex())
	}

	sqrtLower, err := univ3.SqrtRatioAtTick(intent.TickLower)
	if err != nil {
		return PositionPlan{}, fmt.Errorf("gateway: plan position: lower tick %d: %w", intent.TickLower, err)
	}
	sqrtUpper, err := univ3.SqrtRatioAtTick(intent.TickUpper)
	if err != nil {
		return PositionPlan{}, fmt.Errorf("gateway: plan position: upper tick %d: %w", intent.TickUpper, err)
	}

	liquidity, err := univ3.LiquidityForAmounts(state.SqrtPriceX96, sqrtLower, sqrtUpper, intent.Amount, intent.Amount)
	if err != nil {
		return PositionPlan{}, fmt.Errorf("gateway: plan position: %w", err)
	}
	if liquidity.Sign() <= 0 {
		return PositionPlan{}, fmt.Errorf("gateway: plan position: amount %s yields zero liquidity", intent.Amount)
	}

	amount0, amount1, err := univ3.AmountsForLiquidity(state.SqrtPriceX96, sqrtLower, sqrtUpper, liquidity)
	if err != nil {
		return PositionPlan{}, fmt.Errorf("gateway: plan position: recompute amounts: %w", err)
	}

	return PositionPlan{
		TickLower: intent.TickLower,
		TickUpper: intent.TickUpper,
		Liquidity: liquidity,
		Amount0:   amount0,
		Amount1:   amount1,
	}, nil
}
