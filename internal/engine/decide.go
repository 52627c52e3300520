package engine

import (
	"fmt"
	"strings"

	"github.com/winverse2755/settlekit/internal/domain"
)

// decide maps the simulator's verdict to the engine's decision, applying the
// one policy override: when slippage specifically breaches the policy
// threshold, the policy's fallback strategy replaces the simulator's default
// verdict. The override never downgrades an abort the simulator reached on
// its own grounds.
func decide(m domain.RiskMetrics, policy domain.AgentPolicy) (domain.Decision, string) {
	verdict := actionDecision(m.RecommendedAction)

	// The finality window is a structural property of the scenario, so
	// waiting cannot shrink it: a latency breach aborts outright and is not
	// subject to the fallback override.
	if policy.MaxLatencySeconds > 0 && m.FinalityDelayP95 > policy.MaxLatencySeconds {
		return domain.DecisionAbort, abortReason(m, policy)
	}

	if m.SlippageP95 > policy.MaxSlippage {
		switch {
		case policy.Fallback == domain.FallbackAbort:
			return domain.DecisionAbort, abortReason(m, policy)
		case verdict != domain.DecisionAbort:
			return domain.DecisionWait, fmt.Sprintf(
				"slippage %.2f%% exceeds policy maximum %.2f%%, waiting per fallback strategy",
				m.SlippageP95*100, policy.MaxSlippage*100)
		}
	}

	switch verdict {
	case domain.DecisionAbort:
		return verdict, abortReason(m, policy)
	case domain.DecisionWait:
		return verdict, "risk model recommends waiting for better conditions"
	default:
		return verdict, ""
	}
}

// abortReason lists every violated policy threshold in fixed order, omitting
// the satisfied ones. When the abort came purely from the risk model's own
// critical triggers, it names those instead.
func abortReason(m domain.RiskMetrics, policy domain.AgentPolicy) string {
	var parts []string
	if m.ExecutionConfidence < policy.MinConfidence {
		parts = append(parts, fmt.Sprintf("confidence %.2f below minimum %.2f",
			m.ExecutionConfidence, policy.MinConfidence))
	}
	if m.SlippageP95 > policy.MaxSlippage {
		parts = append(parts, fmt.Sprintf("slippage %.2f%% above maximum %.2f%%",
			m.SlippageP95*100, policy.MaxSlippage*100))
	}
	if m.PriceImpact > policy.MaxPriceImpact {
		parts = append(parts, fmt.Sprintf("price impact %.2f%% above maximum %.2f%%",
			m.PriceImpact*100, policy.MaxPriceImpact*100))
	}
	if policy.MaxLatencySeconds > 0 && m.FinalityDelayP95 > policy.MaxLatencySeconds {
		parts = append(parts, fmt.Sprintf("finality delay %.0fs above maximum %.0fs",
			m.FinalityDelayP95, policy.MaxLatencySeconds))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("risk model recommends abort (%s liquidity, confidence %.2f)",
			m.LiquidityDepth, m.ExecutionConfidence)
	}
	return strings.Join(parts, "; ")
}

func actionDecision(a domain.RiskAction) domain.Decision {
	switch a {
	case domain.ActionExecute:
		return domain.DecisionExecute
	case domain.ActionWait:
		return domain.DecisionWait
	default:
		return domain.DecisionAbort
	}
}
