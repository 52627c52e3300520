package domain

// LiquidityDepth buckets pool liquidity into coarse categories used by the
// risk model and the pool scorer.
type LiquidityDepth string

const (
	DepthDeep     LiquidityDepth = "deep"     // >= 1e6 liquidity units
	DepthModerate LiquidityDepth = "moderate" // >= 1e5 liquidity units
	DepthShallow  LiquidityDepth = "shallow"
	DepthNone     LiquidityDepth = "none" // zero liquidity
)

// RiskAction is the simulator's recommended course of action.
type RiskAction string

const (
	ActionExecute RiskAction = "execute"
	ActionWait    RiskAction = "wait"
	ActionAbort   RiskAction = "abort"
)

// Scenario selects the latency/volatility assumptions the simulator runs
// under.
type Scenario string

const (
	ScenarioOptimistic  Scenario = "optimistic"
	ScenarioDefault     Scenario = "default"
	ScenarioPessimistic Scenario = "pessimistic"
)

// RiskMetrics is the quantitative output of one risk simulation. It is a
// derived value: logged with every decision, never persisted on its own.
type RiskMetrics struct {
	// Cross-chain finality delay percentiles, in seconds, after scenario
	// scaling.
	FinalityDelayP50 float64 `json:"finality_delay_p50"`
	FinalityDelayP95 float64 `json:"finality_delay_p95"`
	// CapitalAtRiskSeconds is the window during which committed capital is
	// exposed to market moves; equal to the p95 finality delay.
	CapitalAtRiskSeconds float64 `json:"capital_at_risk_seconds"`

	SlippageP50    float64        `json:"slippage_p50"`
	SlippageP95    float64        `json:"slippage_p95"`
	PriceImpact    float64        `json:"price_impact"`
	LiquidityDepth LiquidityDepth `json:"liquidity_depth"`

	// ExecutionConfidence in [0,1]. Multiplicative across independent risk
	// dimensions, so the worst dimension dominates.
	ExecutionConfidence float64    `json:"execution_confidence"`
	RecommendedAction   RiskAction `json:"recommended_action"`

	// Fallback is true when the metrics are the conservative stand-in used
	// after a pool-state query failure rather than a real simulation.
	Fallback bool `json:"fallback,omitempty"`
}

// ZeroRisk returns the zero-valued sentinel used when no pool was eligible
// for selection: confidence 0, recommendation abort, no simulation performed.
func ZeroRisk() RiskMetrics {
	return RiskMetrics{
		LiquidityDepth:    DepthNone,
		RecommendedAction: ActionAbort,
	}
}
