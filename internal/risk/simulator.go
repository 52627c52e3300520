// Package risk converts pool state and cross-chain timing assumptions into
// quantitative risk metrics. The model is a deliberately risk-averse
// heuristic, not a solver: independent dimensions multiply into a single
// confidence figure, so the worst dimension dominates.
package risk

import (
	"context"
	"log/slog"
	"math"
	"math/big"

	"github.com/winverse2755/settlekit/internal/domain"
)

// Liquidity depth thresholds, in pool liquidity units.
const (
	deepLiquidity     = 1e6
	moderateLiquidity = 1e5
)

// Slippage and price-impact levels that drive the recommendation. Warning
// downgrades execute to wait; critical forces abort.
const (
	slippageWarning  = 0.03
	slippageCritical = 0.05
	impactWarning    = 0.02
	impactCritical   = 0.05
)

// Confidence cut-offs for the recommendation.
const (
	abortConfidence   = 0.5
	executeConfidence = 0.8
)

// Params describes one simulation request.
type Params struct {
	PoolID    domain.PoolID
	TradeSize float64 // stablecoin units committed to the deposit
	Scenario  domain.Scenario
}

// Recorder receives a signal every time the simulator degrades a pool-query
// failure into the conservative fallback, so systemic upstream outages are
// not silently masked.
type Recorder interface {
	RiskFallback(poolID string)
}

// Simulator produces RiskMetrics from fresh pool state and the latency
// model. It never returns an error: upstream failures degrade to a fixed
// conservative fallback.
type Simulator struct {
	reader  domain.PoolStateReader
	latency LatencyTable
	logger  *slog.Logger
	rec     Recorder
}

// NewSimulator creates a Simulator. rec may be nil when no metrics sink is
// wired.
func NewSimulator(reader domain.PoolStateReader, latency LatencyTable, logger *slog.Logger, rec Recorder) *Simulator {
	return &Simulator{
		reader:  reader,
		latency: latency,
		logger:  logger.With(slog.String("component", "risk_simulator")),
		rec:     rec,
	}
}

// Simulate queries fresh pool state and assesses it. On a query failure it
// logs, records the fallback, and returns the conservative metrics; the
// caller always receives a usable RiskMetrics value.
func (s *Simulator) Simulate(ctx context.Context, p Params) domain.RiskMetrics {
	state, err := s.reader.GetPoolState(ctx, p.PoolID)
	if err != nil {
		return s.Degrade(ctx, p.PoolID, p.Scenario, err)
	}
	return s.Assess(state, p.TradeSize, p.Scenario)
}

// Degrade logs and counts a pool-query failure, then returns the
// conservative fallback metrics. Used both by Simulate and by callers that
// query pool state themselves (the catalog's fan-out).
func (s *Simulator) Degrade(ctx context.Context, poolID domain.PoolID, scenario domain.Scenario, err error) domain.RiskMetrics {
	s.logger.WarnContext(ctx, "pool state query failed, using conservative fallback",
		slog.String("pool_id", poolID.Hex()),
		slog.String("error", err.Error()),
	)
	if s.rec != nil {
		s.rec.RiskFallback(poolID.Hex())
	}
	return s.Fallback(scenario)
}

// Assess computes RiskMetrics from an already-fetched pool state snapshot.
// Pure: same inputs always yield the same metrics.
func (s *Simulator) Assess(state domain.PoolState, tradeSize float64, scenario domain.Scenario) domain.RiskMetrics {
	lat := s.latency.Scaled(scenario)
	m := domain.RiskMetrics{
		FinalityDelayP50:     lat.P50,
		FinalityDelayP95:     lat.P95,
		CapitalAtRiskSeconds: lat.P95,
	}

	liquidity := state.LiquidityFloat()
	m.LiquidityDepth = depthOf(liquidity)

	if liquidity > 0 {
		base := tradeSize / (2 * liquidity) * slippageMultiplier(scenario)
		m.SlippageP50 = capUnit(base)
		m.SlippageP95 = capUnit(2 * base) // crude volatility model: p95 = 2x median
		m.PriceImpact = capUnit(priceImpact(state, tradeSize, liquidity))
	} else {
		m.SlippageP50 = 1
		m.SlippageP95 = 1
		m.PriceImpact = 1
	}

	m.ExecutionConfidence = confidence(m)
	m.RecommendedAction = recommend(m)
	return m
}

// Fallback is the fixed conservative stand-in used when pool state cannot be
// read: shallow liquidity with slippage and impact pinned at the warning
// level, which lands on an abort recommendation.
func (s *Simulator) Fallback(scenario domain.Scenario) domain.RiskMetrics {
	lat := s.latency.Scaled(scenario)
	m := domain.RiskMetrics{
		FinalityDelayP50:     lat.P50,
		FinalityDelayP95:     lat.P95,
		CapitalAtRiskSeconds: lat.P95,
		SlippageP50:          slippageWarning / 2,
		SlippageP95:          slippageWarning,
		PriceImpact:          impactWarning,
		LiquidityDepth:       domain.DepthShallow,
		Fallback:             true,
	}
	m.ExecutionConfidence = confidence(m)
	m.RecommendedAction = recommend(m)
	return m
}

// priceImpact estimates the fractional price change of absorbing tradeSize
// into the pool: newSqrtPrice = sqrtPrice + tradeSize/liquidity, impact =
// |new^2 - old^2| / old^2.
func priceImpact(state domain.PoolState, tradeSize, liquidity float64) float64 {
	if state.SqrtPriceX96 == nil || state.SqrtPriceX96.Sign() <= 0 {
		return 1
	}
	oldSqrt := sqrtPriceFloat(state)
	if oldSqrt <= 0 {
		return 1
	}
	newSqrt := oldSqrt + tradeSize/liquidity
	oldPrice := oldSqrt * oldSqrt
	newPrice := newSqrt * newSqrt
	return math.Abs(newPrice-oldPrice) / oldPrice
}

// q96Float is 2^96 as a float64, used to undo the Q64.96 scaling in the
// heuristic (float) portion of the model.
var q96Float = math.Ldexp(1, 96)

// sqrtPriceFloat converts the Q64.96 square-root price to a float64 ratio.
func sqrtPriceFloat(state domain.PoolState) float64 {
	f, _ := new(big.Float).SetInt(state.SqrtPriceX96).Float64()
	return f / q96Float
}

// confidence multiplies the per-dimension factors and clamps to [0,1].
// Degrading any single dimension while holding the rest fixed can only lower
// the product.
func confidence(m domain.RiskMetrics) float64 {
	c := 1.0
	switch m.LiquidityDepth {
	case domain.DepthDeep:
		c *= 1.0
	case domain.DepthModerate:
		c *= 0.8
	case domain.DepthShallow:
		c *= 0.5
	default:
		c *= 0.3
	}

	switch {
	case m.SlippageP95 >= 0.05:
		c *= 0.3
	case m.SlippageP95 >= 0.03:
		c *= 0.6
	case m.SlippageP95 >= 0.01:
		c *= 0.9
	}

	switch {
	case m.PriceImpact >= 0.05:
		c *= 0.3
	case m.PriceImpact >= 0.02:
		c *= 0.7
	case m.PriceImpact >= 0.005:
		c *= 0.95
	}

	return clamp01(c)
}

// recommend maps the metrics to an action. Checks run in fixed order: abort
// conditions first, then wait conditions, otherwise execute.
func recommend(m domain.RiskMetrics) domain.RiskAction {
	switch {
	case m.SlippageP95 >= slippageCritical,
		m.PriceImpact >= impactCritical,
		m.LiquidityDepth == domain.DepthShallow,
		m.LiquidityDepth == domain.DepthNone,
		m.ExecutionConfidence < abortConfidence:
		return domain.ActionAbort
	case m.ExecutionConfidence < executeConfidence,
		m.SlippageP95 >= slippageWarning,
		m.PriceImpact >= impactWarning:
		return domain.ActionWait
	default:
		return domain.ActionExecute
	}
}

func depthOf(liquidity float64) domain.LiquidityDepth {
	switch {
	case liquidity <= 0:
		return domain.DepthNone
	case liquidity >= deepLiquidity:
		return domain.DepthDeep
	case liquidity >= moderateLiquidity:
		return domain.DepthModerate
	default:
		return domain.DepthShallow
	}
}

func capUnit(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}

func clamp01(v float64) float64 {
	return capUnit(v)
}
