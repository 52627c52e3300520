package notify

import (
	"context"
	"fmt"

	"github.com/winverse2755/settlekit/internal/domain"
)

// Event types emitted by the settlement engine. Operators subscribe to a
// subset via configuration.
const (
	EventExecutionCompleted = "execution_completed"
	EventExecutionFailed    = "execution_failed"
	EventDecisionAborted    = "decision_aborted"
	EventRiskFallback       = "risk_fallback"
)

// NotifyResult dispatches the notification matching a finished decision run.
// Completed runs and failures get distinct event types so operators can
// subscribe to failures only.
func (n *Notifier) NotifyResult(ctx context.Context, intentID string, res domain.ExecutionResult) error {
	switch res.Status {
	case domain.StatusCompleted:
		msg := fmt.Sprintf("Intent %s settled.\nTx: %s\nPosition: %s\nConfidence: %.2f",
			intentID, res.TxHash, res.PositionID, res.Risk.ExecutionConfidence)
		return n.Notify(ctx, EventExecutionCompleted, "Settlement completed", msg)

	case domain.StatusFailed:
		msg := fmt.Sprintf("Intent %s failed.\nReason: %s", intentID, res.Reason)
		return n.Notify(ctx, EventExecutionFailed, "Settlement failed", msg)

	default:
		msg := fmt.Sprintf("Intent %s aborted.\nReason: %s\nConfidence: %.2f\nAction: %s",
			intentID, res.Reason, res.Risk.ExecutionConfidence, res.Risk.RecommendedAction)
		return n.Notify(ctx, EventDecisionAborted, "Settlement aborted", msg)
	}
}

// NotifyRiskFallback reports a conservative risk fallback. A burst of these
// usually means the pool state endpoint is down.
func (n *Notifier) NotifyRiskFallback(ctx context.Context, poolID string) error {
	msg := fmt.Sprintf("Pool state query failed for %s; the risk model substituted its conservative fallback.", poolID)
	return n.Notify(ctx, EventRiskFallback, "Risk model degraded", msg)
}
