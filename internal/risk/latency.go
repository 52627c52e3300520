package risk

import "github.com/winverse2755/settlekit/internal/domain"

// LatencyTable holds the static cross-chain finality delay percentiles, in
// seconds, for the bridging path (burn, attestation, mint) measured under
// normal network conditions.
type LatencyTable struct {
	P50 float64
	P95 float64
	P99 float64
}

// DefaultLatencyTable models a burn-attest-mint stablecoin bridge: roughly
// 13 minutes typical, half an hour at the tail.
var DefaultLatencyTable = LatencyTable{
	P50: 780,
	P95: 1320,
	P99: 1800,
}

// latencyMultiplier scales the finality delay percentiles per scenario.
func latencyMultiplier(s domain.Scenario) float64 {
	switch s {
	case domain.ScenarioOptimistic:
		return 0.7
	case domain.ScenarioPessimistic:
		return 1.5
	default:
		return 1.0
	}
}

// slippageMultiplier scales the slippage estimate per scenario. It applies to
// slippage only; price impact is a structural property of the pool and does
// not vary with the scenario.
func slippageMultiplier(s domain.Scenario) float64 {
	switch s {
	case domain.ScenarioOptimistic:
		return 0.5
	case domain.ScenarioPessimistic:
		return 2.0
	default:
		return 1.0
	}
}

// Scaled returns the table with all percentiles multiplied by the scenario's
// latency factor.
func (t LatencyTable) Scaled(s domain.Scenario) LatencyTable {
	m := latencyMultiplier(s)
	return LatencyTable{P50: t.P50 * m, P95: t.P95 * m, P99: t.P99 * m}
}
