package univ3

import (
	"fmt"
	"math/big"

	"github.com/winverse2755/settlekit/internal/domain"
)

// mulDiv computes floor(a * b / denom) with a full-width intermediate
// product. math/big keeps arbitrary precision, so the only requirement is
// that the multiplication strictly precedes the division, matching the
// reference order.
func mulDiv(a, b, denom *big.Int) *big.Int {
	out := new(big.Int).Mul(a, b)
	return out.Div(out, denom)
}

// sortRatios returns (lower, upper), swapping if needed. The reference
// implementation tolerates swapped bounds the same way.
func sortRatios(sqrtA, sqrtB *big.Int) (*big.Int, *big.Int) {
	if sqrtA.Cmp(sqrtB) > 0 {
		return sqrtB, sqrtA
	}
	return sqrtA, sqrtB
}

// LiquidityForAmount0 computes the maximum liquidity received for amount0 of
// token0 over the price range [sqrtA, sqrtB].
//
//	L = amount0 * (sqrtA * sqrtB / Q96) / (sqrtB - sqrtA)
func LiquidityForAmount0(sqrtA, sqrtB, amount0 *big.Int) (*big.Int, error) {
	lower, upper := sortRatios(sqrtA, sqrtB)
	if lower.Sign() <= 0 || lower.Cmp(upper) == 0 {
		return nil, fmt.Errorf("univ3: liquidityForAmount0: %w", domain.ErrInvalidRange)
	}
	intermediate := mulDiv(lower, upper, Q96)
	diff := new(big.Int).Sub(upper, lower)
	return mulDiv(amount0, intermediate, diff), nil
}

// LiquidityForAmount1 computes the maximum liquidity received for amount1 of
// token1 over the price range [sqrtA, sqrtB].
//
//	L = amount1 * Q96 / (sqrtB - sqrtA)
func LiquidityForAmount1(sqrtA, sqrtB, amount1 *big.Int) (*big.Int, error) {
	lower, upper := sortRatios(sqrtA, sqrtB)
	if lower.Sign() <= 0 || lower.Cmp(upper) == 0 {
		return nil, fmt.Errorf("univ3: liquidityForAmount1: %w", domain.ErrInvalidRange)
	}
	diff := new(big.Int).Sub(upper, lower)
	return mulDiv(amount1, Q96, diff), nil
}

// LiquidityForAmounts computes the maximum liquidity for the deposited
// amounts given the current price. When the current price sits outside the
// range, only one token contributes and the single-sided formula applies;
// inside the range, the minimum of both single-sided results is taken so the
// position never requires more than either deposited amount.
func LiquidityForAmounts(sqrtCurrent, sqrtA, sqrtB, amount0, amount1 *big.Int) (*big.Int, error) {
	lower, upper := sortRatios(sqrtA, sqrtB)
	switch {
	case sqrtCurrent.Cmp(lower) <= 0:
		return LiquidityForAmount0(lower, upper, amount0)
	case sqrtCurrent.Cmp(upper) < 0:
		l0, err := LiquidityForAmount0(sqrtCurrent, upper, amount0)
		if err != nil {
			return nil, err
		}
		l1, err := LiquidityForAmount1(lower, sqrtCurrent, amount1)
		if err != nil {
			return nil, err
		}
		if l0.Cmp(l1) < 0 {
			return l0, nil
		}
		return l1, nil
	default:
		return LiquidityForAmount1(lower, upper, amount1)
	}
}

// Amount0ForLiquidity computes the token0 amount spanned by liquidity over
// [sqrtA, sqrtB].
//
//	amount0 = (L << 96) * (sqrtB - sqrtA) / sqrtB / sqrtA
func Amount0ForLiquidity(sqrtA, sqrtB, liquidity *big.Int) (*big.Int, error) {
	lower, upper := sortRatios(sqrtA, sqrtB)
	if lower.Sign() <= 0 {
		return nil, fmt.Errorf("univ3: amount0ForLiquidity: %w", domain.ErrInvalidRange)
	}
	diff := new(big.Int).Sub(upper, lower)
	shifted := new(big.Int).Lsh(liquidity, 96)
	out := mulDiv(shifted, diff, upper)
	return out.Div(out, lower), nil
}

// Amount1ForLiquidity computes the token1 amount spanned by liquidity over
// [sqrtA, sqrtB].
//
//	amount1 = L * (sqrtB - sqrtA) / Q96
func Amount1ForLiquidity(sqrtA, sqrtB, liquidity *big.Int) (*big.Int, error) {
	lower, upper := sortRatios(sqrtA, sqrtB)
	diff := new(big.Int).Sub(upper, lower)
	return mulDiv(liquidity, diff, Q96), nil
}

// AmountsForLiquidity is the inverse of LiquidityForAmounts. The amounts it
// returns for an integer liquidity value are the authoritative deposit
// amounts: amount -> liquidity -> amount is lossy, and the recomputed pair
// (never the original request) is what gets passed to execution.
func AmountsForLiquidity(sqrtCurrent, sqrtA, sqrtB, liquidity *big.Int) (amount0, amount1 *big.Int, err error) {
	lower, upper := sortRatios(sqrtA, sqrtB)
	zero := new(big.Int)
	switch {
	case sqrtCurrent.Cmp(lower) <= 0:
		amount0, err = Amount0ForLiquidity(lower, upper, liquidity)
		return amount0, zero, err
	case sqrtCurrent.Cmp(upper) < 0:
		amount0, err = Amount0ForLiquidity(sqrtCurrent, upper, liquidity)
		if err != nil {
			return nil, nil, err
		}
		amount1, err = Amount1ForLiquidity(lower, sqrtCurrent, liquidity)
		return amount0, amount1, err
	default:
		amount1, err = Amount1ForLiquidity(lower, upper, liquidity)
		return zero, amount1, err
	}
}
