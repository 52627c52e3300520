package univ3

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/winverse2755/settlekit/internal/domain"
)

func ratioAt(t *testing.T, tick int) *big.Int {
	t.Helper()
	r, err := SqrtRatioAtTick(tick)
	require.NoError(t, err)
	return r
}

func TestLiquidityForAmountsSingleSided(t *testing.T) {
	lower := ratioAt(t, -600)
	upper := ratioAt(t, 600)
	amount0 := big.NewInt(1_000_000)
	amount1 := big.NewInt(2_000_000)

	// Current price below the range: token0 only.
	below := ratioAt(t, -1200)
	l, err := LiquidityForAmounts(below, lower, upper, amount0, amount1)
	require.NoError(t, err)
	l0, err := LiquidityForAmount0(lower, upper, amount0)
	require.NoError(t, err)
	require.Equal(t, 0, l.Cmp(l0))

	// Current price above the range: token1 only.
	above := ratioAt(t, 1200)
	l, err = LiquidityForAmounts(above, lower, upper, amount0, amount1)
	require.NoError(t, err)
	l1, err := LiquidityForAmount1(lower, upper, amount1)
	require.NoError(t, err)
	require.Equal(t, 0, l.Cmp(l1))
}

func TestLiquidityForAmountsInRangeTakesMin(t *testing.T) {
	lower := ratioAt(t, -600)
	upper := ratioAt(t, 600)
	current := ratioAt(t, 0)
	amount0 := big.NewInt(1_000_000)
	amount1 := big.NewInt(2_000_000)

	l, err := LiquidityForAmounts(current, lower, upper, amount0, amount1)
	require.NoError(t, err)

	l0, err := LiquidityForAmount0(current, upper, amount0)
	require.NoError(t, err)
	l1, err := LiquidityForAmount1(lower, current, amount1)
	require.NoError(t, err)

	min := l0
	if l1.Cmp(min) < 0 {
		min = l1
	}
	require.Equal(t, 0, l.Cmp(min))
	// The combined result never exceeds either single-sided bound.
	require.LessOrEqual(t, l.Cmp(l0), 0)
	require.LessOrEqual(t, l.Cmp(l1), 0)
}

// TestAmountsRoundTrip verifies the inverse property: recomputing amounts from
// the rounded liquidity never exceeds the originally offered amounts.
func TestAmountsRoundTrip(t *testing.T) {
	cases := []struct {
		name                 string
		currentTick          int
		lowerTick, upperTick int
		amount0, amount1     int64
	}{
		{"in range symmetric", 0, -600, 600, 5_000_000, 5_000_000},
		{"in range skewed", 100, -1200, 1800, 1_000_000, 9_000_000},
		{"below range", -2000, -600, 600, 7_500_000, 0},
		{"above range", 2000, -600, 600, 0, 7_500_000},
		{"wide range", 0, -221160, 221160, 123_456_789, 987_654_321},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			current := ratioAt(t, c.currentTick)
			lower := ratioAt(t, c.lowerTick)
			upper := ratioAt(t, c.upperTick)
			amount0 := big.NewInt(c.amount0)
			amount1 := big.NewInt(c.amount1)

			liq, err := LiquidityForAmounts(current, lower, upper, amount0, amount1)
			require.NoError(t, err)

			got0, got1, err := AmountsForLiquidity(current, lower, upper, liq)
			require.NoError(t, err)
			require.LessOrEqual(t, got0.Cmp(amount0), 0, "amount0 %s exceeds offered %s", got0, amount0)
			require.LessOrEqual(t, got1.Cmp(amount1), 0, "amount1 %s exceeds offered %s", got1, amount1)
		})
	}
}

func TestLiquidityRejectsEmptyRange(t *testing.T) {
	p := ratioAt(t, 0)
	_, err := LiquidityForAmount0(p, p, big.NewInt(1))
	require.ErrorIs(t, err, domain.ErrInvalidRange)

	_, err = LiquidityForAmount1(p, p, big.NewInt(1))
	require.ErrorIs(t, err, domain.ErrInvalidRange)
}

func TestLiquiditySwappedBoundsTolerated(t *testing.T) {
	lower := ratioAt(t, -600)
	upper := ratioAt(t, 600)
	amount := big.NewInt(1_000_000)

	a, err := LiquidityForAmount0(lower, upper, amount)
	require.NoError(t, err)
	b, err := LiquidityForAmount0(upper, lower, amount)
	require.NoError(t, err)
	require.Equal(t, 0, a.Cmp(b))
}
