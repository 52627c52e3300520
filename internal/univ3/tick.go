// Package univ3 implements the fixed-point concentrated-liquidity math used
// to size positions and estimate trade cost. Results are checked on-chain
// with zero tolerance, so every operation keeps full-width intermediates and
// mirrors the reference fixed-point implementation's operation order
// bit-for-bit.
package univ3

import (
	"fmt"
	"math/big"

	"github.com/winverse2755/settlekit/internal/domain"
)

// Tick bounds of the geometric price grid. price(tick) = 1.0001^tick.
const (
	MinTick = -887272
	MaxTick = 887272
)

var (
	// Q96 is the fixed-point scale for square-root prices (2^96).
	Q96 = new(big.Int).Lsh(big.NewInt(1), 96)

	// MinSqrtRatio and MaxSqrtRatio are SqrtRatioAtTick at the tick bounds.
	MinSqrtRatio = big.NewInt(4295128739)
	MaxSqrtRatio, _ = new(big.Int).SetString("1461446703485210103287273052203988822378723970342", 10)

	maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	mask32     = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 32), big.NewInt(1))
)

// tickMagics[i] is sqrt(1/1.0001)^(2^(i+1)) in Q128, the multiplier applied
// when bit i+1 of |tick| is set. The bit-0 factor seeds the ladder directly.
var tickMagics = mustParseHexInts(
	"fff97272373d413259a46990580e213a",
	"fff2e50f5f656932ef12357cf3c7fdcc",
	"ffe5caca7e10e4e61c3624eaa0941cd0",
	"ffcb9843d60f6159c9db58835c926644",
	"ff973b41fa98c081472e6896dfb254c0",
	"ff2ea16466c96a3843ec78b326b52861",
	"fe5dee046a99a2a811c461f1969c3053",
	"fcbe86c7900a88aedcffc83b479aa3a4",
	"f987a7253ac413176f2b074cf7815e54",
	"f3392b0822b70005940c7a398e4b70f3",
	"e7159475a2c29b7443b29c7fa6e889d9",
	"d097f3bdfd2022b8845ad8f792aa5825",
	"a9f746462d870fdf8a65dc1f90e061e5",
	"70d869a156d2a1b890bb3df62baf32f7",
	"31be135f97d08fd981231505542fcfa6",
	"9aa508b5b7a84e1c677de54f3e99bc9",
	"5d6af8dedb81196699c329225ee604",
	"2216e584f5fa1ea926041bedfe98",
	"48a170391f7dc42444e8fa2",
)

var tickMagicSeed = mustParseHexInt("fffcb933bd6fad37aa2d162d1a594001")

func mustParseHexInt(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		panic("univ3: bad hex constant " + s)
	}
	return v
}

func mustParseHexInts(ss ...string) []*big.Int {
	out := make([]*big.Int, len(ss))
	for i, s := range ss {
		out[i] = mustParseHexInt(s)
	}
	return out
}

// SqrtRatioAtTick returns sqrt(1.0001^tick) * 2^96 as a Q64.96 fixed-point
// value. The computation walks the binary expansion of |tick| through the
// precomputed Q128 magic ladder, inverts for positive ticks, and rounds the
// final Q128→Q96 shift up, matching the reference implementation exactly.
func SqrtRatioAtTick(tick int) (*big.Int, error) {
	if tick < MinTick || tick > MaxTick {
		return nil, fmt.Errorf("univ3: tick %d: %w", tick, domain.ErrTickRange)
	}

	absTick := tick
	if absTick < 0 {
		absTick = -absTick
	}

	ratio := new(big.Int)
	if absTick&1 != 0 {
		ratio.Set(tickMagicSeed)
	} else {
		ratio.Lsh(big.NewInt(1), 128)
	}
	for i, magic := range tickMagics {
		if absTick&(1<<(i+1)) != 0 {
			ratio.Mul(ratio, magic)
			ratio.Rsh(ratio, 128)
		}
	}

	if tick > 0 {
		ratio.Div(maxUint256, ratio)
	}

	// Round up on the Q128 -> Q96 downshift so the inverse never
	// under-reports the price.
	rem := new(big.Int).And(ratio, mask32)
	ratio.Rsh(ratio, 32)
	if rem.Sign() != 0 {
		ratio.Add(ratio, big.NewInt(1))
	}
	return ratio, nil
}

// TickAtSqrtRatio returns the greatest tick whose sqrt ratio is <= the given
// Q64.96 value. It inverts SqrtRatioAtTick by binary search, which makes the
// tick -> price -> tick round trip exact for every in-range tick.
func TickAtSqrtRatio(sqrtPriceX96 *big.Int) (int, error) {
	if sqrtPriceX96 == nil || sqrtPriceX96.Cmp(MinSqrtRatio) < 0 || sqrtPriceX96.Cmp(MaxSqrtRatio) > 0 {
		return 0, fmt.Errorf("univ3: sqrt price %v: %w", sqrtPriceX96, domain.ErrSqrtPriceRange)
	}

	lo, hi := MinTick, MaxTick
	for lo < hi {
		mid := lo + (hi-lo+1)/2
		ratio, err := SqrtRatioAtTick(mid)
		if err != nil {
			return 0, err
		}
		if ratio.Cmp(sqrtPriceX96) <= 0 {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo, nil
}

// AlignTick floors tick to the nearest multiple of spacing, clamped into the
// valid range. Used when deriving ranges from the current tick.
func AlignTick(tick, spacing int) int {
	if spacing <= 0 {
		return tick
	}
	aligned := (tick / spacing) * spacing
	if tick < 0 && tick%spacing != 0 {
		aligned -= spacing
	}
	if aligned < MinTick {
		aligned += spacing
	}
	if aligned > MaxTick {
		aligned -= spacing
	}
	return aligned
}
