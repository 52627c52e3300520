// Package engine is the settlement decision core: it runs the risk model
// over a deposit intent, applies the policy, and drives the
// evaluate/wait/execute state machine with a bounded retry budget and an
// append-only audit log.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/winverse2755/settlekit/internal/catalog"
	"github.com/winverse2755/settlekit/internal/domain"
	"github.com/winverse2755/settlekit/internal/risk"
)

// Observer receives engine lifecycle signals for the metrics layer. All
// methods must be non-blocking.
type Observer interface {
	DecisionRecorded(d domain.Decision)
	RunCompleted(status domain.ExecutionStatus)
}

// Deps bundles the engine's collaborators. Clock defaults to the system
// clock; LogStore and Observer are optional.
type Deps struct {
	Simulator *risk.Simulator
	Catalog   *catalog.Catalog
	Reader    domain.PoolStateReader
	Gateway   domain.ExecutionGateway
	Clock     domain.Clock
	LogStore  domain.DecisionLogStore
	Observer  Observer
	Logger    *slog.Logger
}

// Engine owns the current policy and the decision log. Safe for concurrent
// use; note that concurrent runs over the same intent are independent and
// may both execute (callers serialize externally, see domain.LockManager).
type Engine struct {
	sim      *risk.Simulator
	catalog  *catalog.Catalog
	reader   domain.PoolStateReader
	gateway  domain.ExecutionGateway
	clock    domain.Clock
	store    domain.DecisionLogStore
	obs      Observer
	logger   *slog.Logger
	scenario domain.Scenario

	mu     sync.Mutex
	policy domain.AgentPolicy
	log    []domain.DecisionLogEntry
}

// New creates an Engine with the given starting policy and scenario.
func New(deps Deps, policy domain.AgentPolicy, scenario domain.Scenario) *Engine {
	clock := deps.Clock
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if scenario == "" {
		scenario = domain.ScenarioDefault
	}
	return &Engine{
		sim:      deps.Simulator,
		catalog:  deps.Catalog,
		reader:   deps.Reader,
		gateway:  deps.Gateway,
		clock:    clock,
		store:    deps.LogStore,
		obs:      deps.Observer,
		logger:   deps.Logger.With(slog.String("component", "decision_engine")),
		scenario: scenario,
		policy:   policy,
	}
}

// Preview is the outcome of a side-effect-free simulation.
type Preview struct {
	Risk     domain.RiskMetrics `json:"risk"`
	Decision domain.Decision    `json:"decision"`
	Reason   string             `json:"reason,omitempty"`
}

// EvaluateAndExecute runs the full decision state machine for an intent with
// a known target pool: simulate, log, decide, then execute, wait-and-retry,
// or abort. The retry loop is bounded by the policy's retry_attempts; the
// only suspension point is the retry delay, which returns early on context
// cancellation. Every failure mode converges on an ExecutionResult.
func (e *Engine) EvaluateAndExecute(ctx context.Context, intent domain.DepositIntent) domain.ExecutionResult {
	if intent.ID == "" {
		intent.ID = uuid.NewString()
	}
	if intent.CreatedAt.IsZero() {
		intent.CreatedAt = e.clock.Now()
	}
	policy := e.GetPolicy() // immutable for the duration of this run

	for attempt := 0; ; attempt++ {
		metrics := e.sim.Simulate(ctx, risk.Params{
			PoolID:    intent.PoolID,
			TradeSize: intent.AmountFloat(),
			Scenario:  e.scenario,
		})
		decision, reason := decide(metrics, policy)
		e.appendLog(ctx, intent, decision, reason, metrics, policy, attempt)

		switch decision {
		case domain.DecisionExecute:
			return e.execute(ctx, intent, metrics)

		case domain.DecisionWait:
			if attempt >= policy.RetryAttempts {
				return e.finish(ctx, intent, domain.StatusAborted, "max retries exceeded", metrics)
			}
			delay := time.Duration(policy.RetryDelaySeconds * float64(time.Second))
			e.logger.InfoContext(ctx, "waiting before retry",
				slog.String("intent_id", intent.ID),
				slog.Int("attempt", attempt+1),
				slog.Duration("delay", delay),
				slog.String("reason", reason),
			)
			if err := e.clock.Sleep(ctx, delay); err != nil {
				return e.finish(ctx, intent, domain.StatusAborted,
					fmt.Sprintf("retry cancelled: %v", err), metrics)
			}

		default:
			return e.finish(ctx, intent, domain.StatusAborted, reason, metrics)
		}
	}
}

// SelectAndExecute discovers and scores candidate pools, then runs
// EvaluateAndExecute against the best eligible one. When nothing is
// eligible it aborts immediately with the zero-valued risk sentinel, without
// another simulator pass.
func (e *Engine) SelectAndExecute(ctx context.Context, amount *big.Int, recipient common.Address) domain.ExecutionResult {
	policy := e.GetPolicy()
	intent := domain.DepositIntent{
		ID:        uuid.NewString(),
		Amount:    amount,
		Recipient: recipient,
		CreatedAt: e.clock.Now(),
	}

	evals, err := e.catalog.Evaluate(ctx, intent.AmountFloat(), e.scenario, policy)
	if err != nil {
		return e.finish(ctx, intent, domain.StatusFailed, err.Error(), domain.ZeroRisk())
	}

	best, ok, reason := catalog.SelectBest(evals)
	if !ok {
		sentinel := domain.ZeroRisk()
		e.appendLog(ctx, intent, domain.DecisionAbort, reason, sentinel, policy, 0)
		return e.finish(ctx, intent, domain.StatusAborted, reason, sentinel)
	}

	e.logger.InfoContext(ctx, "pool selected",
		slog.String("intent_id", intent.ID),
		slog.String("pool_id", best.Pool.PoolID.Hex()),
		slog.Uint64("fee_tier", uint64(best.Pool.FeeTier)),
		slog.Float64("score", best.Score),
	)
	intent.PoolID = best.Pool.PoolID
	return e.EvaluateAndExecute(ctx, intent)
}

// SimulateOnly previews the decision for an intent without touching the
// audit log or the gateway.
func (e *Engine) SimulateOnly(ctx context.Context, intent domain.DepositIntent) Preview {
	policy := e.GetPolicy()
	metrics := e.sim.Simulate(ctx, risk.Params{
		PoolID:    intent.PoolID,
		TradeSize: intent.AmountFloat(),
		Scenario:  e.scenario,
	})
	decision, reason := decide(metrics, policy)
	return Preview{Risk: metrics, Decision: decision, Reason: reason}
}

// AllEvaluations exposes the scored candidate list for a hypothetical trade
// size, for inspection endpoints. Read-only.
func (e *Engine) AllEvaluations(ctx context.Context, amount *big.Int) ([]domain.PoolEvaluation, error) {
	var size float64
	if amount != nil {
		f, _ := new(big.Float).SetInt(amount).Float64()
		size = f
	}
	return e.catalog.Evaluate(ctx, size, e.scenario, e.GetPolicy())
}

// execute resolves the target pool, derives a tick range when the intent
// does not carry one, and delegates to the gateway. Gateway calls are never
// retried; any failure here is terminal.
func (e *Engine) execute(ctx context.Context, intent domain.DepositIntent, metrics domain.RiskMetrics) domain.ExecutionResult {
	if intent.PoolID.IsZero() {
		return e.finish(ctx, intent, domain.StatusFailed, domain.ErrMissingPoolKey.Error(), metrics)
	}
	pool, err := e.catalog.ResolvePool(ctx, intent.PoolID)
	if err != nil {
		return e.finish(ctx, intent, domain.StatusFailed, err.Error(), metrics)
	}
	state, err := e.reader.GetPoolState(ctx, intent.PoolID)
	if err != nil {
		return e.finish(ctx, intent, domain.StatusFailed,
			fmt.Sprintf("engine: pool state before execution: %v", err), metrics)
	}
	pool.State = state

	if !intent.HasRange() {
		policy := e.GetPolicy()
		lower, upper, err := rangeForPolicy(state, pool.TickSpacing, policy.Selection)
		if err != nil {
			return e.finish(ctx, intent, domain.StatusFailed, err.Error(), metrics)
		}
		intent.TickLower, intent.TickUpper = lower, upper
	}

	receipt, err := e.gateway.DepositLiquidity(ctx, intent, pool)
	if err != nil {
		return e.finish(ctx, intent, domain.StatusFailed, err.Error(), metrics)
	}
	if !receipt.Success {
		return e.finish(ctx, intent, domain.StatusFailed, receipt.Error, metrics)
	}

	result := domain.ExecutionResult{
		Status:     domain.StatusCompleted,
		TxHash:     receipt.TxHash,
		PositionID: receipt.PositionID,
		Risk:       metrics,
		Timestamp:  e.clock.Now(),
	}
	e.logger.InfoContext(ctx, "deposit executed",
		slog.String("intent_id", intent.ID),
		slog.String("pool_id", intent.PoolID.Hex()),
		slog.String("tx_hash", receipt.TxHash),
		slog.String("position_id", receipt.PositionID),
	)
	if e.obs != nil {
		e.obs.RunCompleted(domain.StatusCompleted)
	}
	return result
}

// GetExecutionHistory returns a copy of the in-memory decision log.
func (e *Engine) GetExecutionHistory() []domain.DecisionLogEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.DecisionLogEntry, len(e.log))
	copy(out, e.log)
	return out
}

// ClearExecutionHistory drops the in-memory decision log. Entries already
// persisted through the log store are untouched.
func (e *Engine) ClearExecutionHistory() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.log = nil
}

// GetPolicy returns the current policy snapshot.
func (e *Engine) GetPolicy() domain.AgentPolicy {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.policy
}

// UpdatePolicy overlays a partial update onto the current policy. The new
// policy must validate; running evaluations keep the snapshot they started
// with.
func (e *Engine) UpdatePolicy(patch domain.PolicyPatch) (domain.AgentPolicy, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	next := patch.Apply(e.policy)
	if err := next.Validate(); err != nil {
		return e.policy, fmt.Errorf("engine: update policy: %w", err)
	}
	e.policy = next
	return next, nil
}

// appendLog records one evaluation in the audit trail. The in-memory log is
// authoritative; a store failure is logged and swallowed.
func (e *Engine) appendLog(ctx context.Context, intent domain.DepositIntent, decision domain.Decision, reason string, metrics domain.RiskMetrics, policy domain.AgentPolicy, retryCount int) {
	entry := domain.DecisionLogEntry{
		ID:         uuid.NewString(),
		IntentID:   intent.ID,
		Timestamp:  e.clock.Now(),
		Decision:   decision,
		Reason:     reason,
		Risk:       metrics,
		Policy:     policy,
		Intent:     intent,
		RetryCount: retryCount,
	}
	e.mu.Lock()
	e.log = append(e.log, entry)
	e.mu.Unlock()

	if e.obs != nil {
		e.obs.DecisionRecorded(decision)
	}
	if e.store != nil {
		if err := e.store.Append(ctx, entry); err != nil {
			e.logger.WarnContext(ctx, "decision log persistence failed",
				slog.String("entry_id", entry.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (e *Engine) finish(ctx context.Context, intent domain.DepositIntent, status domain.ExecutionStatus, reason string, metrics domain.RiskMetrics) domain.ExecutionResult {
	e.logger.InfoContext(ctx, "decision run finished",
		slog.String("intent_id", intent.ID),
		slog.String("status", string(status)),
		slog.String("reason", reason),
	)
	if e.obs != nil {
		e.obs.RunCompleted(status)
	}
	return domain.ExecutionResult{
		Status:    status,
		Reason:    reason,
		Risk:      metrics,
		Timestamp: e.clock.Now(),
	}
}
