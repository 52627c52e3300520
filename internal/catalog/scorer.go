package catalog

import (
	"fmt"
	"math"
	"strings"

	"github.com/winverse2755/settlekit/internal/domain"
)

// Scoring adjustments. The scorer deliberately penalizes slippage and price
// impact twice: once as a soft score deduction and once as a hard
// policy-threshold eligibility check. The double-counting is preserved from
// the original risk-averse design.
const (
	feeTierRankPenalty     = 5
	feeTierUnlistedPenalty = 15

	moderateDepthPenalty = 15
	shallowDepthPenalty  = 30
	noDepthPenalty       = 50

	highSlippagePenalty = 20 // > 3%
	someSlippagePenalty = 10 // > 1%

	highImpactPenalty = 15 // > 2%
	someImpactPenalty = 7  // > 0.5%
)

// ScorePool evaluates one candidate against the policy. Pure: the score and
// the ordered reasons list are exactly reproducible from (pool, risk,
// policy). Score starts at 100, accumulates adjustments, and is clamped to
// [0,100]; every adjustment appends a human-readable reason.
func ScorePool(pool domain.DiscoveredPool, metrics domain.RiskMetrics, policy domain.AgentPolicy) domain.PoolEvaluation {
	eval := domain.PoolEvaluation{
		Pool:     pool,
		Risk:     metrics,
		Score:    100,
		Eligible: true,
	}
	add := func(delta float64, format string, args ...any) {
		eval.Score += delta
		eval.Reasons = append(eval.Reasons, fmt.Sprintf(format, args...))
	}
	exclude := func(format string, args ...any) {
		eval.Eligible = false
		eval.Reasons = append(eval.Reasons, fmt.Sprintf(format, args...))
	}

	sel := policy.Selection

	// Fee tier preference.
	if rank := tierRank(sel.PreferredFeeTiers, pool.FeeTier); rank < 0 {
		add(-feeTierUnlistedPenalty, "fee tier %d not in preferred list (-%d)", pool.FeeTier, feeTierUnlistedPenalty)
	} else if rank == 0 {
		add(0, "fee tier %d is the top preference", pool.FeeTier)
	} else {
		add(float64(-feeTierRankPenalty*rank), "fee tier %d at preference rank %d (-%d)", pool.FeeTier, rank, feeTierRankPenalty*rank)
	}

	if !sel.FeeTierBounds.Allows(pool.FeeTier) {
		exclude("fee tier %d outside allowed bounds [%d, %d]", pool.FeeTier, sel.FeeTierBounds.Min, sel.FeeTierBounds.Max)
	}

	// Liquidity depth.
	switch metrics.LiquidityDepth {
	case domain.DepthDeep:
		add(0, "deep liquidity")
	case domain.DepthModerate:
		add(-moderateDepthPenalty, "moderate liquidity (-%d)", moderateDepthPenalty)
	case domain.DepthShallow:
		add(-shallowDepthPenalty, "shallow liquidity (-%d)", shallowDepthPenalty)
	default:
		add(-noDepthPenalty, "no liquidity (-%d)", noDepthPenalty)
		exclude("pool has no liquidity")
	}

	if liq := pool.State.LiquidityFloat(); sel.MinLiquidity > 0 && liq < sel.MinLiquidity {
		exclude("liquidity %.0f below minimum %.0f", liq, sel.MinLiquidity)
	}

	// Slippage: soft deduction plus the separate hard policy gate.
	switch {
	case metrics.SlippageP95 > 0.03:
		add(-highSlippagePenalty, "slippage %.2f%% above 3%% (-%d)", metrics.SlippageP95*100, highSlippagePenalty)
	case metrics.SlippageP95 > 0.01:
		add(-someSlippagePenalty, "slippage %.2f%% above 1%% (-%d)", metrics.SlippageP95*100, someSlippagePenalty)
	}
	if metrics.SlippageP95 > policy.MaxSlippage {
		exclude("slippage %.2f%% exceeds policy maximum %.2f%%", metrics.SlippageP95*100, policy.MaxSlippage*100)
	}

	// Price impact: same two-level treatment, symmetric to slippage.
	switch {
	case metrics.PriceImpact > 0.02:
		add(-highImpactPenalty, "price impact %.2f%% above 2%% (-%d)", metrics.PriceImpact*100, highImpactPenalty)
	case metrics.PriceImpact > 0.005:
		add(-someImpactPenalty, "price impact %.2f%% above 0.5%% (-%d)", metrics.PriceImpact*100, someImpactPenalty)
	}
	if metrics.PriceImpact > policy.MaxPriceImpact {
		exclude("price impact %.2f%% exceeds policy maximum %.2f%%", metrics.PriceImpact*100, policy.MaxPriceImpact*100)
	}

	// Confidence bonus.
	bonus := math.Floor(metrics.ExecutionConfidence * 10)
	add(bonus, "confidence %.2f (+%.0f)", metrics.ExecutionConfidence, bonus)
	if metrics.ExecutionConfidence < policy.MinConfidence {
		exclude("confidence %.2f below policy minimum %.2f", metrics.ExecutionConfidence, policy.MinConfidence)
	}

	// An uninitialized pool is unconditionally out, whatever it scored.
	if pool.StateErr == nil && !pool.State.Initialized() {
		eval.Score = 0
		exclude("pool is uninitialized")
	}
	if pool.StateErr != nil {
		exclude("pool state unavailable: %v", pool.StateErr)
	}

	eval.Score = clampScore(eval.Score)
	return eval
}

// SelectBest filters eligible evaluations and returns the highest-scoring
// one. Ties break stably by enumeration order. When nothing is eligible it
// returns ok=false and a message aggregating each pool's disqualifying
// reasons.
func SelectBest(evals []domain.PoolEvaluation) (best domain.PoolEvaluation, ok bool, reason string) {
	bestIdx := -1
	for i, e := range evals {
		if !e.Eligible {
			continue
		}
		if bestIdx < 0 || e.Score > evals[bestIdx].Score {
			bestIdx = i
		}
	}
	if bestIdx >= 0 {
		return evals[bestIdx], true, ""
	}

	var sb strings.Builder
	sb.WriteString("no eligible pool")
	for _, e := range evals {
		sb.WriteString(fmt.Sprintf("; %s tier %d: %s",
			e.Pool.PoolID.Hex()[:10], e.Pool.FeeTier, strings.Join(e.Reasons, ", ")))
	}
	return domain.PoolEvaluation{}, false, sb.String()
}

func tierRank(preferred []domain.FeeTier, tier domain.FeeTier) int {
	for i, t := range preferred {
		if t == tier {
			return i
		}
	}
	return -1
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}
