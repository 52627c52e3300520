package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/winverse2755/settlekit/internal/catalog"
	"github.com/winverse2755/settlekit/internal/domain"
	"github.com/winverse2755/settlekit/internal/risk"
	"github.com/winverse2755/settlekit/internal/univ3"
)

var (
	testPair = domain.PairSpec{
		Token0: common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Token1: common.HexToAddress("0x2222222222222222222222222222222222222222"),
	}
	testRecipient = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeClock struct {
	now      time.Time
	sleeps   []time.Duration
	sleepErr error
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	return c.sleepErr
}

type stubReader struct {
	def      domain.PoolState
	failures map[domain.PoolID]error
}

func (r *stubReader) GetPoolState(_ context.Context, id domain.PoolID) (domain.PoolState, error) {
	if err, ok := r.failures[id]; ok {
		return domain.PoolState{}, err
	}
	return r.def, nil
}

type stubGateway struct {
	receipt domain.DepositReceipt
	err     error
	intents []domain.DepositIntent
	pools   []domain.DiscoveredPool
}

func (g *stubGateway) DepositLiquidity(_ context.Context, intent domain.DepositIntent, pool domain.DiscoveredPool) (domain.DepositReceipt, error) {
	g.intents = append(g.intents, intent)
	g.pools = append(g.pools, pool)
	if g.err != nil {
		return domain.DepositReceipt{}, g.err
	}
	return g.receipt, nil
}

type countingObserver struct {
	decisions map[domain.Decision]int
	statuses  map[domain.ExecutionStatus]int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{
		decisions: make(map[domain.Decision]int),
		statuses:  make(map[domain.ExecutionStatus]int),
	}
}

func (o *countingObserver) DecisionRecorded(d domain.Decision)    { o.decisions[d]++ }
func (o *countingObserver) RunCompleted(s domain.ExecutionStatus) { o.statuses[s]++ }

// state with price 10000 (sqrt 100) so price impact stays negligible and the
// slippage heuristic can be steered independently through trade size.
func highPriceState(liquidity int64) domain.PoolState {
	sqrt := new(big.Int).Lsh(big.NewInt(100), 96)
	return domain.PoolState{
		SqrtPriceX96: sqrt,
		Tick:         0,
		Liquidity:    big.NewInt(liquidity),
		ObservedAt:   time.Unix(1700000000, 0),
	}
}

func unitPriceState(liquidity int64) domain.PoolState {
	return domain.PoolState{
		SqrtPriceX96: new(big.Int).Lsh(big.NewInt(1), 96),
		Tick:         0,
		Liquidity:    big.NewInt(liquidity),
		ObservedAt:   time.Unix(1700000000, 0),
	}
}

type fixture struct {
	engine  *Engine
	clock   *fakeClock
	gateway *stubGateway
	obs     *countingObserver
}

func newFixture(reader domain.PoolStateReader, policy domain.AgentPolicy) *fixture {
	logger := testLogger()
	sim := risk.NewSimulator(reader, risk.DefaultLatencyTable, logger, nil)
	cat := catalog.New(reader, sim, testPair, nil, logger)
	clock := &fakeClock{now: time.Unix(1700000000, 0).UTC()}
	gateway := &stubGateway{receipt: domain.DepositReceipt{Success: true, TxHash: "0xabc", PositionID: "42"}}
	obs := newCountingObserver()

	eng := New(Deps{
		Simulator: sim,
		Catalog:   cat,
		Reader:    reader,
		Gateway:   gateway,
		Clock:     clock,
		Observer:  obs,
		Logger:    logger,
	}, policy, domain.ScenarioDefault)
	return &fixture{engine: eng, clock: clock, gateway: gateway, obs: obs}
}

func lowTierPoolID() domain.PoolID {
	return univ3.NewPoolKey(testPair, domain.FeeTierLow).ID()
}

func intentFor(amount int64) domain.DepositIntent {
	return domain.DepositIntent{
		PoolID:    lowTierPoolID(),
		Amount:    big.NewInt(amount),
		Recipient: testRecipient,
	}
}

func TestEvaluateAndExecuteCompletes(t *testing.T) {
	f := newFixture(&stubReader{def: unitPriceState(2_000_000)}, domain.DefaultPolicy())

	res := f.engine.EvaluateAndExecute(context.Background(), intentFor(1000))
	require.Equal(t, domain.StatusCompleted, res.Status)
	require.Equal(t, "0xabc", res.TxHash)
	require.Equal(t, "42", res.PositionID)
	require.Empty(t, res.Reason)
	require.Equal(t, domain.ActionExecute, res.Risk.RecommendedAction)

	history := f.engine.GetExecutionHistory()
	require.Len(t, history, 1)
	require.Equal(t, domain.DecisionExecute, history[0].Decision)
	require.Equal(t, 0, history[0].RetryCount)
	require.NotEmpty(t, history[0].ID)
	require.NotEmpty(t, history[0].IntentID)

	require.Equal(t, 1, f.obs.decisions[domain.DecisionExecute])
	require.Equal(t, 1, f.obs.statuses[domain.StatusCompleted])
}

func TestEvaluateAndExecuteDerivesTickRange(t *testing.T) {
	f := newFixture(&stubReader{def: unitPriceState(2_000_000)}, domain.DefaultPolicy())

	res := f.engine.EvaluateAndExecute(context.Background(), intentFor(1000))
	require.Equal(t, domain.StatusCompleted, res.Status)
	require.Len(t, f.gateway.intents, 1)

	// Fee tier 500 has spacing 10; default width 20 spacings, balanced
	// around tick 0.
	got := f.gateway.intents[0]
	require.Equal(t, -100, got.TickLower)
	require.Equal(t, 100, got.TickUpper)
	require.Equal(t, domain.FeeTierLow, f.gateway.pools[0].FeeTier)
	require.True(t, f.gateway.pools[0].State.Initialized(), "gateway must receive a fresh state snapshot")
}

func TestEvaluateAndExecuteKeepsExplicitRange(t *testing.T) {
	f := newFixture(&stubReader{def: unitPriceState(2_000_000)}, domain.DefaultPolicy())

	intent := intentFor(1000)
	intent.TickLower, intent.TickUpper = -60, 120
	res := f.engine.EvaluateAndExecute(context.Background(), intent)
	require.Equal(t, domain.StatusCompleted, res.Status)
	require.Equal(t, -60, f.gateway.intents[0].TickLower)
	require.Equal(t, 120, f.gateway.intents[0].TickUpper)
}

func TestRetryBound(t *testing.T) {
	policy := domain.DefaultPolicy()
	policy.RetryAttempts = 2
	policy.RetryDelaySeconds = 30

	// Deep pool, slippage p95 = 0.03: confidence 0.6 lands in the wait band
	// and slippage also exceeds the policy maximum, so the wait fallback
	// keeps the verdict at wait on every attempt.
	f := newFixture(&stubReader{def: highPriceState(1_000_000)}, policy)

	res := f.engine.EvaluateAndExecute(context.Background(), intentFor(30_000))
	require.Equal(t, domain.StatusAborted, res.Status)
	require.Equal(t, "max retries exceeded", res.Reason)

	require.Len(t, f.clock.sleeps, policy.RetryAttempts, "exactly N retries for retry_attempts=N")
	for _, d := range f.clock.sleeps {
		require.Equal(t, 30*time.Second, d)
	}

	history := f.engine.GetExecutionHistory()
	require.Len(t, history, policy.RetryAttempts+1, "every evaluation is logged, not only the executed ones")
	for i, entry := range history {
		require.Equal(t, domain.DecisionWait, entry.Decision)
		require.Equal(t, i, entry.RetryCount)
	}
	require.Empty(t, f.gateway.intents)
}

func TestRetryCancelledMidChain(t *testing.T) {
	policy := domain.DefaultPolicy()
	policy.RetryAttempts = 5

	f := newFixture(&stubReader{def: highPriceState(1_000_000)}, policy)
	f.clock.sleepErr = context.Canceled

	res := f.engine.EvaluateAndExecute(context.Background(), intentFor(30_000))
	require.Equal(t, domain.StatusAborted, res.Status)
	require.Contains(t, res.Reason, "retry cancelled")
	require.Len(t, f.clock.sleeps, 1, "cancellation must stop the chain at the first suspension")
}

func TestFallbackStrategyOverride(t *testing.T) {
	// Trade sized so the raw verdict is execute (slippage p95 = 0.012,
	// confidence 0.9) while slippage still exceeds the 1% policy maximum.
	t.Run("wait", func(t *testing.T) {
		policy := domain.DefaultPolicy()
		policy.Fallback = domain.FallbackWait
		policy.RetryAttempts = 0

		f := newFixture(&stubReader{def: highPriceState(1_000_000)}, policy)
		res := f.engine.EvaluateAndExecute(context.Background(), intentFor(12_000))
		require.Equal(t, domain.StatusAborted, res.Status) // budget exhausted immediately
		require.Equal(t, "max retries exceeded", res.Reason)

		history := f.engine.GetExecutionHistory()
		require.Len(t, history, 1)
		require.Equal(t, domain.DecisionWait, history[0].Decision)
		require.Contains(t, history[0].Reason, "fallback strategy")
	})

	t.Run("abort", func(t *testing.T) {
		policy := domain.DefaultPolicy()
		policy.Fallback = domain.FallbackAbort

		f := newFixture(&stubReader{def: highPriceState(1_000_000)}, policy)
		res := f.engine.EvaluateAndExecute(context.Background(), intentFor(12_000))
		require.Equal(t, domain.StatusAborted, res.Status)
		require.Contains(t, res.Reason, "slippage")
		require.Empty(t, f.clock.sleeps)
		require.Empty(t, f.gateway.intents)
	})
}

func TestLatencyBoundAborts(t *testing.T) {
	// Conditions that would otherwise execute; only the latency bound is
	// tightened below the default table's p95 finality delay.
	policy := domain.DefaultPolicy()
	policy.MaxLatencySeconds = 1000
	policy.Fallback = domain.FallbackWait // must not soften a latency breach

	f := newFixture(&stubReader{def: unitPriceState(2_000_000)}, policy)
	res := f.engine.EvaluateAndExecute(context.Background(), intentFor(1000))
	require.Equal(t, domain.StatusAborted, res.Status)
	require.Contains(t, res.Reason, "finality delay")
	require.Empty(t, f.clock.sleeps)
	require.Empty(t, f.gateway.intents)

	history := f.engine.GetExecutionHistory()
	require.Len(t, history, 1)
	require.Equal(t, domain.DecisionAbort, history[0].Decision)
}

func TestAbortReasonListsViolatedThresholds(t *testing.T) {
	policy := domain.DefaultPolicy()
	policy.Fallback = domain.FallbackAbort

	f := newFixture(&stubReader{def: unitPriceState(40_000)}, policy)

	// Shallow pool: confidence collapses and slippage/impact pin at 1.0.
	res := f.engine.EvaluateAndExecute(context.Background(), intentFor(10_000))
	require.Equal(t, domain.StatusAborted, res.Status)
	require.Contains(t, res.Reason, "confidence")
	require.Contains(t, res.Reason, "slippage")
	require.Contains(t, res.Reason, "price impact")

	// Fixed order: confidence, then slippage, then impact.
	ci := strings.Index(res.Reason, "confidence")
	si := strings.Index(res.Reason, "slippage")
	pi := strings.Index(res.Reason, "price impact")
	require.Less(t, ci, si)
	require.Less(t, si, pi)
}

func TestMissingPoolKeyIsTerminalFailure(t *testing.T) {
	f := newFixture(&stubReader{def: unitPriceState(2_000_000)}, domain.DefaultPolicy())

	intent := intentFor(1000)
	intent.PoolID = domain.PoolID{}
	res := f.engine.EvaluateAndExecute(context.Background(), intent)
	require.Equal(t, domain.StatusFailed, res.Status)
	require.Equal(t, domain.ErrMissingPoolKey.Error(), res.Reason)
	require.Empty(t, f.clock.sleeps, "missing pool key never retries")
	require.Empty(t, f.gateway.intents)
}

func TestGatewayErrorPreservedVerbatim(t *testing.T) {
	f := newFixture(&stubReader{def: unitPriceState(2_000_000)}, domain.DefaultPolicy())
	f.gateway.err = errors.New("relayer: nonce too low")

	res := f.engine.EvaluateAndExecute(context.Background(), intentFor(1000))
	require.Equal(t, domain.StatusFailed, res.Status)
	require.Equal(t, "relayer: nonce too low", res.Reason)
	require.Equal(t, 1, f.obs.statuses[domain.StatusFailed])
}

func TestGatewayRejectionIsFailure(t *testing.T) {
	f := newFixture(&stubReader{def: unitPriceState(2_000_000)}, domain.DefaultPolicy())
	f.gateway.receipt = domain.DepositReceipt{Success: false, Error: "execution reverted"}

	res := f.engine.EvaluateAndExecute(context.Background(), intentFor(1000))
	require.Equal(t, domain.StatusFailed, res.Status)
	require.Equal(t, "execution reverted", res.Reason)
}

func TestDecisionDeterminism(t *testing.T) {
	f := newFixture(&stubReader{def: unitPriceState(2_000_000)}, domain.DefaultPolicy())

	first := f.engine.EvaluateAndExecute(context.Background(), intentFor(1000))
	second := f.engine.EvaluateAndExecute(context.Background(), intentFor(1000))
	require.Equal(t, first, second, "fake clock makes runs fully reproducible")

	p1 := f.engine.SimulateOnly(context.Background(), intentFor(1000))
	p2 := f.engine.SimulateOnly(context.Background(), intentFor(1000))
	require.Equal(t, p1, p2)
}

func TestSimulateOnlyHasNoSideEffects(t *testing.T) {
	f := newFixture(&stubReader{def: unitPriceState(2_000_000)}, domain.DefaultPolicy())

	preview := f.engine.SimulateOnly(context.Background(), intentFor(1000))
	require.Equal(t, domain.DecisionExecute, preview.Decision)
	require.Empty(t, preview.Reason)
	require.Empty(t, f.engine.GetExecutionHistory())
	require.Empty(t, f.gateway.intents)
}

func TestSelectAndExecute(t *testing.T) {
	f := newFixture(&stubReader{def: unitPriceState(2_000_000)}, domain.DefaultPolicy())

	res := f.engine.SelectAndExecute(context.Background(), big.NewInt(1000), testRecipient)
	require.Equal(t, domain.StatusCompleted, res.Status)
	require.Len(t, f.gateway.intents, 1)
	require.False(t, f.gateway.intents[0].PoolID.IsZero())
	require.Equal(t, testRecipient, f.gateway.intents[0].Recipient)
}

func TestSelectAndExecuteNoEligiblePool(t *testing.T) {
	// Every tier shallow: nothing passes the minimum-liquidity gate.
	f := newFixture(&stubReader{def: unitPriceState(2_000)}, domain.DefaultPolicy())

	res := f.engine.SelectAndExecute(context.Background(), big.NewInt(1000), testRecipient)
	require.Equal(t, domain.StatusAborted, res.Status)
	require.Contains(t, res.Reason, "no eligible pool")
	require.Equal(t, domain.ZeroRisk(), res.Risk, "sentinel risk, no extra simulator pass")
	require.Empty(t, f.gateway.intents)

	history := f.engine.GetExecutionHistory()
	require.Len(t, history, 1)
	require.Equal(t, domain.DecisionAbort, history[0].Decision)
}

func TestHistoryClear(t *testing.T) {
	f := newFixture(&stubReader{def: unitPriceState(2_000_000)}, domain.DefaultPolicy())

	f.engine.EvaluateAndExecute(context.Background(), intentFor(1000))
	require.NotEmpty(t, f.engine.GetExecutionHistory())

	f.engine.ClearExecutionHistory()
	require.Empty(t, f.engine.GetExecutionHistory())
}

func TestUpdatePolicy(t *testing.T) {
	f := newFixture(&stubReader{def: unitPriceState(2_000_000)}, domain.DefaultPolicy())

	maxSlip := 0.02
	updated, err := f.engine.UpdatePolicy(domain.PolicyPatch{MaxSlippage: &maxSlip})
	require.NoError(t, err)
	require.Equal(t, 0.02, updated.MaxSlippage)
	require.Equal(t, 0.02, f.engine.GetPolicy().MaxSlippage)

	bad := -1.0
	_, err = f.engine.UpdatePolicy(domain.PolicyPatch{MinConfidence: &bad})
	require.Error(t, err)
	require.Equal(t, 0.02, f.engine.GetPolicy().MaxSlippage, "failed update must not change the policy")
}

func TestAllEvaluationsPreservesIneligible(t *testing.T) {
	f := newFixture(&stubReader{def: unitPriceState(2_000)}, domain.DefaultPolicy())

	evals, err := f.engine.AllEvaluations(context.Background(), big.NewInt(1000))
	require.NoError(t, err)
	require.Len(t, evals, len(domain.StandardFeeTiers))
	for _, e := range evals {
		require.False(t, e.Eligible)
		require.NotEmpty(t, e.Reasons)
	}
}
