package domain

import "fmt"

// FallbackStrategy is what the engine does when slippage specifically exceeds
// the policy threshold: wait for better conditions or abort outright. All
// other risk triggers use the simulator's own verdict.
type FallbackStrategy string

const (
	FallbackWait  FallbackStrategy = "wait"
	FallbackAbort FallbackStrategy = "abort"
)

// PositionType selects how the tick range is placed around the current price.
type PositionType string

const (
	PositionBalanced PositionType = "balanced" // symmetric range around current tick
	PositionAbove    PositionType = "above"    // one-sided, entirely above price (token0 only)
	PositionBelow    PositionType = "below"    // one-sided, entirely below price (token1 only)
)

// AgentPolicy holds the hard risk thresholds and retry behaviour for a
// settlement run, plus the selection rules used when the engine picks the
// pool itself. A policy is immutable for the duration of one run; updates
// apply to subsequent runs only.
type AgentPolicy struct {
	// Hard eligibility gates. A breach makes a pool ineligible for selection
	// and shapes the engine's decision.
	MaxSlippage       float64 `json:"max_slippage"`
	MaxPriceImpact    float64 `json:"max_price_impact"`
	MinConfidence     float64 `json:"min_confidence"`
	MaxLatencySeconds float64 `json:"max_latency_seconds"`

	// Retry behaviour for "wait" decisions.
	RetryAttempts     int              `json:"retry_attempts"`
	RetryDelaySeconds float64          `json:"retry_delay_seconds"`
	Fallback          FallbackStrategy `json:"fallback_strategy"`

	// Selection extension, only consulted by the pool catalog.
	Selection SelectionRules `json:"selection"`
}

// SelectionRules are the soft scoring preferences and extra hard gates applied
// during autonomous pool selection.
type SelectionRules struct {
	MinLiquidity float64 `json:"min_liquidity"`
	// PreferredFeeTiers is ordered: index 0 is the top preference. Pools on
	// unlisted tiers are penalized but not excluded.
	PreferredFeeTiers []FeeTier `json:"preferred_fee_tiers"`
	// FeeTierBounds excludes tiers outside [Min, Max] entirely. Zero values
	// disable the corresponding bound.
	FeeTierBounds FeeTierBounds `json:"fee_tier_bounds"`
	// TickRangeWidth is the total width, in tick-spacing multiples, of the
	// liquidity range placed around the current tick.
	TickRangeWidth int          `json:"tick_range_width"`
	PositionType   PositionType `json:"position_type"`
}

// FeeTierBounds is an inclusive fee tier range.
type FeeTierBounds struct {
	Min FeeTier `json:"min"`
	Max FeeTier `json:"max"`
}

// Allows reports whether the tier passes the bounds. Zero bounds allow
// everything.
func (b FeeTierBounds) Allows(f FeeTier) bool {
	if b.Min != 0 && f < b.Min {
		return false
	}
	if b.Max != 0 && f > b.Max {
		return false
	}
	return true
}

// DefaultPolicy returns the conservative built-in policy. Operators tighten or
// relax it via configuration or the policy API.
func DefaultPolicy() AgentPolicy {
	return AgentPolicy{
		MaxSlippage:       0.01,
		MaxPriceImpact:    0.02,
		MinConfidence:     0.7,
		MaxLatencySeconds: 1800,
		RetryAttempts:     3,
		RetryDelaySeconds: 30,
		Fallback:          FallbackWait,
		Selection: SelectionRules{
			MinLiquidity:      1e5,
			PreferredFeeTiers: []FeeTier{FeeTierLow, FeeTierLowest, FeeTierMedium},
			TickRangeWidth:    20,
			PositionType:      PositionBalanced,
		},
	}
}

// Validate checks the policy for internally inconsistent values.
func (p AgentPolicy) Validate() error {
	if p.MaxSlippage < 0 || p.MaxSlippage > 1 {
		return fmt.Errorf("policy: max_slippage %v outside [0,1]", p.MaxSlippage)
	}
	if p.MaxPriceImpact < 0 || p.MaxPriceImpact > 1 {
		return fmt.Errorf("policy: max_price_impact %v outside [0,1]", p.MaxPriceImpact)
	}
	if p.MinConfidence < 0 || p.MinConfidence > 1 {
		return fmt.Errorf("policy: min_confidence %v outside [0,1]", p.MinConfidence)
	}
	if p.RetryAttempts < 0 {
		return fmt.Errorf("policy: retry_attempts %d negative", p.RetryAttempts)
	}
	if p.RetryDelaySeconds < 0 {
		return fmt.Errorf("policy: retry_delay_seconds %v negative", p.RetryDelaySeconds)
	}
	switch p.Fallback {
	case FallbackWait, FallbackAbort:
	default:
		return fmt.Errorf("policy: unknown fallback_strategy %q", p.Fallback)
	}
	if p.Selection.TickRangeWidth < 0 {
		return fmt.Errorf("policy: tick_range_width %d negative", p.Selection.TickRangeWidth)
	}
	return nil
}

// PolicyPatch is a partial policy update. Nil fields leave the current value
// untouched.
type PolicyPatch struct {
	MaxSlippage       *float64          `json:"max_slippage,omitempty"`
	MaxPriceImpact    *float64          `json:"max_price_impact,omitempty"`
	MinConfidence     *float64          `json:"min_confidence,omitempty"`
	MaxLatencySeconds *float64          `json:"max_latency_seconds,omitempty"`
	RetryAttempts     *int              `json:"retry_attempts,omitempty"`
	RetryDelaySeconds *float64          `json:"retry_delay_seconds,omitempty"`
	Fallback          *FallbackStrategy `json:"fallback_strategy,omitempty"`
	MinLiquidity      *float64          `json:"min_liquidity,omitempty"`
	PreferredFeeTiers []FeeTier         `json:"preferred_fee_tiers,omitempty"`
	FeeTierBounds     *FeeTierBounds    `json:"fee_tier_bounds,omitempty"`
	TickRangeWidth    *int              `json:"tick_range_width,omitempty"`
	PositionType      *PositionType     `json:"position_type,omitempty"`
}

// Apply returns a copy of p with the patch fields overlaid.
func (patch PolicyPatch) Apply(p AgentPolicy) AgentPolicy {
	if patch.MaxSlippage != nil {
		p.MaxSlippage = *patch.MaxSlippage
	}
	if patch.MaxPriceImpact != nil {
		p.MaxPriceImpact = *patch.MaxPriceImpact
	}
	if patch.MinConfidence != nil {
		p.MinConfidence = *patch.MinConfidence
	}
	if patch.MaxLatencySeconds != nil {
		p.MaxLatencySeconds = *patch.MaxLatencySeconds
	}
	if patch.RetryAttempts != nil {
		p.RetryAttempts = *patch.RetryAttempts
	}
	if patch.RetryDelaySeconds != nil {
		p.RetryDelaySeconds = *patch.RetryDelaySeconds
	}
	if patch.Fallback != nil {
		p.Fallback = *patch.Fallback
	}
	if patch.MinLiquidity != nil {
		p.Selection.MinLiquidity = *patch.MinLiquidity
	}
	if patch.PreferredFeeTiers != nil {
		p.Selection.PreferredFeeTiers = append([]FeeTier(nil), patch.PreferredFeeTiers...)
	}
	if patch.FeeTierBounds != nil {
		p.Selection.FeeTierBounds = *patch.FeeTierBounds
	}
	if patch.TickRangeWidth != nil {
		p.Selection.TickRangeWidth = *patch.TickRangeWidth
	}
	if patch.PositionType != nil {
		p.Selection.PositionType = *patch.PositionType
	}
	return p
}
