package risk

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/winverse2755/settlekit/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubReader struct {
	state domain.PoolState
	err   error
}

func (r stubReader) GetPoolState(_ context.Context, _ domain.PoolID) (domain.PoolState, error) {
	return r.state, r.err
}

type fallbackCounter struct{ n int }

func (c *fallbackCounter) RiskFallback(string) { c.n++ }

func poolWithLiquidity(liquidity int64) domain.PoolState {
	return domain.PoolState{
		SqrtPriceX96: new(big.Int).Lsh(big.NewInt(1), 96), // price 1.0
		Liquidity:    big.NewInt(liquidity),
		FeeTier:      domain.FeeTierLow,
		ObservedAt:   time.Now(),
	}
}

func TestAssessDeepPoolExecutes(t *testing.T) {
	s := NewSimulator(nil, DefaultLatencyTable, testLogger(), nil)

	m := s.Assess(poolWithLiquidity(2_000_000), 1000, domain.ScenarioDefault)
	require.Equal(t, domain.DepthDeep, m.LiquidityDepth)
	require.InDelta(t, 0.00025, m.SlippageP50, 1e-9)
	require.InDelta(t, 0.0005, m.SlippageP95, 1e-9)
	require.InDelta(t, 0.001, m.PriceImpact, 1e-5)
	require.Equal(t, 1.0, m.ExecutionConfidence)
	require.Equal(t, domain.ActionExecute, m.RecommendedAction)
}

func TestAssessShallowPoolAborts(t *testing.T) {
	s := NewSimulator(nil, DefaultLatencyTable, testLogger(), nil)

	// Shallow liquidity aborts regardless of how tiny the trade is.
	m := s.Assess(poolWithLiquidity(5_000), 1, domain.ScenarioDefault)
	require.Equal(t, domain.DepthShallow, m.LiquidityDepth)
	require.LessOrEqual(t, m.ExecutionConfidence, 0.5)
	require.Equal(t, domain.ActionAbort, m.RecommendedAction)
}

func TestConfidenceMatchesFactorTable(t *testing.T) {
	// Spec scenario: deep pool, slippage_p95 0.003, impact 0.001 => 1.0.
	m := domain.RiskMetrics{LiquidityDepth: domain.DepthDeep, SlippageP95: 0.003, PriceImpact: 0.001}
	require.Equal(t, 1.0, confidence(m))
	m.ExecutionConfidence = confidence(m)
	require.Equal(t, domain.ActionExecute, recommend(m))

	// Worst dimension dominates: one critical factor collapses confidence.
	m = domain.RiskMetrics{LiquidityDepth: domain.DepthDeep, SlippageP95: 0.06, PriceImpact: 0.001}
	require.InDelta(t, 0.3, confidence(m), 1e-9)
}

// TestConfidenceMonotone verifies that degrading any one risk dimension while
// holding the others fixed never increases confidence.
func TestConfidenceMonotone(t *testing.T) {
	base := domain.RiskMetrics{LiquidityDepth: domain.DepthDeep, SlippageP95: 0.004, PriceImpact: 0.001}
	baseC := confidence(base)

	depths := []domain.LiquidityDepth{domain.DepthDeep, domain.DepthModerate, domain.DepthShallow, domain.DepthNone}
	prev := baseC
	for _, d := range depths {
		m := base
		m.LiquidityDepth = d
		c := confidence(m)
		require.LessOrEqual(t, c, prev, "depth %s", d)
		prev = c
	}

	prev = baseC
	for _, sl := range []float64{0.004, 0.01, 0.03, 0.05, 0.2} {
		m := base
		m.SlippageP95 = sl
		c := confidence(m)
		require.LessOrEqual(t, c, prev, "slippage %v", sl)
		prev = c
	}

	prev = baseC
	for _, im := range []float64{0.001, 0.005, 0.02, 0.05, 0.5} {
		m := base
		m.PriceImpact = im
		c := confidence(m)
		require.LessOrEqual(t, c, prev, "impact %v", im)
		prev = c
	}
}

func TestScenarioScaling(t *testing.T) {
	s := NewSimulator(nil, DefaultLatencyTable, testLogger(), nil)
	state := poolWithLiquidity(2_000_000)

	def := s.Assess(state, 10_000, domain.ScenarioDefault)
	opt := s.Assess(state, 10_000, domain.ScenarioOptimistic)
	pes := s.Assess(state, 10_000, domain.ScenarioPessimistic)

	require.InDelta(t, def.SlippageP50*0.5, opt.SlippageP50, 1e-12)
	require.InDelta(t, def.SlippageP50*2, pes.SlippageP50, 1e-12)

	require.InDelta(t, def.FinalityDelayP95*0.7/1.0, opt.FinalityDelayP95, 1e-9)
	require.InDelta(t, def.FinalityDelayP95*1.5, pes.FinalityDelayP95, 1e-9)
	require.Equal(t, pes.FinalityDelayP95, pes.CapitalAtRiskSeconds)

	// Scenario scales slippage only, never impact.
	require.Equal(t, def.PriceImpact, opt.PriceImpact)
	require.Equal(t, def.PriceImpact, pes.PriceImpact)
}

func TestSlippageCappedAtOne(t *testing.T) {
	s := NewSimulator(nil, DefaultLatencyTable, testLogger(), nil)
	m := s.Assess(poolWithLiquidity(100_000), 1e12, domain.ScenarioDefault)
	require.Equal(t, 1.0, m.SlippageP50)
	require.Equal(t, 1.0, m.SlippageP95)
	require.Equal(t, 1.0, m.PriceImpact)
}

func TestSimulateFallbackOnQueryFailure(t *testing.T) {
	rec := &fallbackCounter{}
	s := NewSimulator(stubReader{err: errors.New("rpc timeout")}, DefaultLatencyTable, testLogger(), rec)

	m := s.Simulate(context.Background(), Params{TradeSize: 1000, Scenario: domain.ScenarioDefault})
	require.True(t, m.Fallback)
	require.Equal(t, domain.DepthShallow, m.LiquidityDepth)
	require.Equal(t, slippageWarning, m.SlippageP95)
	require.Equal(t, impactWarning, m.PriceImpact)
	require.Equal(t, domain.ActionAbort, m.RecommendedAction)
	require.Equal(t, 1, rec.n)
}

func TestSimulateUsesReaderState(t *testing.T) {
	s := NewSimulator(stubReader{state: poolWithLiquidity(2_000_000)}, DefaultLatencyTable, testLogger(), nil)
	m := s.Simulate(context.Background(), Params{TradeSize: 1000, Scenario: domain.ScenarioDefault})
	require.False(t, m.Fallback)
	require.Equal(t, domain.ActionExecute, m.RecommendedAction)
}

func TestZeroLiquidityPool(t *testing.T) {
	s := NewSimulator(nil, DefaultLatencyTable, testLogger(), nil)
	m := s.Assess(poolWithLiquidity(0), 1000, domain.ScenarioDefault)
	require.Equal(t, domain.DepthNone, m.LiquidityDepth)
	require.Equal(t, 1.0, m.SlippageP95)
	require.Equal(t, domain.ActionAbort, m.RecommendedAction)
}
