package gateway

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/winverse2755/settlekit/internal/domain"
)

// DryRunGateway sizes the position exactly like the relayer path but never
// submits anything. The synthetic receipt is deterministic for a given
// intent so previews and tests are reproducible.
type DryRunGateway struct {
	logger *slog.Logger
}

func NewDryRunGateway(logger *slog.Logger) *DryRunGateway {
	return &DryRunGateway{logger: logger.With(slog.String("component", "dryrun_gateway"))}
}

func (g *DryRunGateway) DepositLiquidity(ctx context.Context, intent domain.DepositIntent, pool domain.DiscoveredPool) (domain.DepositReceipt, error) {
	plan, err := PlanPosition(intent, pool.State)
	if err != nil {
		return domain.DepositReceipt{}, err
	}

	// Synthetic tx hash derived from the submission content.
	digest := crypto.Keccak256([]byte(fmt.Sprintf("dryrun|%s|%s|%d|%d|%s",
		intent.ID, pool.PoolID.Hex(), plan.TickLower, plan.TickUpper, plan.Liquidity)))

	g.logger.InfoContext(ctx, "dry-run deposit",
		slog.String("intent_id", intent.ID),
		slog.String("pool_id", pool.PoolID.Hex()),
		slog.Int("tick_lower", plan.TickLower),
		slog.Int("tick_upper", plan.TickUpper),
		slog.String("liquidity", plan.Liquidity.String()),
		slog.String("amount0", plan.Amount0.String()),
		slog.String("amount1", plan.Amount1.String()),
	)
	return domain.DepositReceipt{
		Success:    true,
		TxHash:     fmt.Sprintf("0x%x", digest),
		PositionID: fmt.Sprintf("dryrun-%s", intent.ID),
	}, nil
}

var _ domain.ExecutionGateway = (*DryRunGateway)(nil)
