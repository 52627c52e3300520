package domain

import "time"

// ExecutionStatus is the terminal state of one decision run.
type ExecutionStatus string

const (
	StatusCompleted ExecutionStatus = "completed"
	StatusAborted   ExecutionStatus = "aborted"
	StatusFailed    ExecutionStatus = "failed"
)

// ExecutionResult is the terminal record of one decision run. Every error
// category (bad input, upstream failure, policy violation, gateway failure)
// converges on this shape; callers never distinguish exceptions from
// unfavorable decisions.
type ExecutionResult struct {
	Status     ExecutionStatus `json:"status"`
	TxHash     string          `json:"tx_hash,omitempty"`
	PositionID string          `json:"position_id,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	Risk       RiskMetrics     `json:"risk"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Decision is what the engine resolved on one evaluation pass, before any
// retry bookkeeping.
type Decision string

const (
	DecisionExecute Decision = "execute"
	DecisionWait    Decision = "wait"
	DecisionAbort   Decision = "abort"
)

// DecisionLogEntry is one line of the append-only audit trail. Every
// evaluation is recorded, not only the ones that execute. Entries are never
// mutated after append; the log is cleared only by explicit call.
type DecisionLogEntry struct {
	ID         string        `json:"id"` // UUID
	IntentID   string        `json:"intent_id"`
	Timestamp  time.Time     `json:"timestamp"`
	Decision   Decision      `json:"decision"`
	Reason     string        `json:"reason,omitempty"`
	Risk       RiskMetrics   `json:"risk"`
	Policy     AgentPolicy   `json:"policy"` // snapshot at evaluation time
	Intent     DepositIntent `json:"intent"` // snapshot at evaluation time
	RetryCount int           `json:"retry_count"`
}

// PoolEvaluation is the scored assessment of one candidate pool during a
// selection run. Ephemeral; reproducible from (pool, risk, policy).
type PoolEvaluation struct {
	Pool     DiscoveredPool `json:"pool"`
	Risk     RiskMetrics    `json:"risk"`
	Score    float64        `json:"score"` // [0,100]
	Reasons  []string       `json:"reasons"`
	Eligible bool           `json:"eligible"`
}
