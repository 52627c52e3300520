package engine

import (
	"fmt"

	"github.com/winverse2755/settlekit/internal/domain"
	"github.com/winverse2755/settlekit/internal/univ3"
)

// rangeForPolicy derives the [tickLower, tickUpper] liquidity range from the
// policy's selection rules and the pool's current tick, aligned to the
// pool's tick spacing and clamped to the valid tick range.
func rangeForPolicy(state domain.PoolState, spacing int, rules domain.SelectionRules) (lower, upper int, err error) {
	if spacing <= 0 {
		return 0, 0, fmt.Errorf("engine: derive range: invalid tick spacing %d", spacing)
	}
	width := rules.TickRangeWidth
	if width <= 0 {
		width = 1
	}
	center := univ3.AlignTick(state.Tick, spacing)
	total := width * spacing

	switch rules.PositionType {
	case domain.PositionAbove:
		lower = center + spacing
		upper = lower + total
	case domain.PositionBelow:
		upper = center
		lower = upper - total
	default: // balanced
		lower = center - total/2
		lower = univ3.AlignTick(lower, spacing)
		upper = lower + total
	}

	lower = clampTick(lower, spacing)
	upper = clampTick(upper, spacing)
	if lower >= upper {
		return 0, 0, fmt.Errorf("engine: derive range: empty range [%d, %d): %w",
			lower, upper, domain.ErrInvalidRange)
	}
	return lower, upper, nil
}

func clampTick(tick, spacing int) int {
	if tick < univ3.MinTick {
		return univ3.AlignTick(univ3.MinTick, spacing)
	}
	if tick > univ3.MaxTick {
		return univ3.AlignTick(univ3.MaxTick, spacing)
	}
	return tick
}
