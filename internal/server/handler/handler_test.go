package handler

import (
	"context"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/winverse2755/settlekit/internal/domain"
	"github.com/winverse2755/settlekit/internal/engine"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubSettlement struct {
	result     domain.ExecutionResult
	preview    engine.Preview
	lastIntent domain.DepositIntent
	autoCalls  int
}

func (s *stubSettlement) EvaluateAndExecute(ctx context.Context, intent domain.DepositIntent) domain.ExecutionResult {
	s.lastIntent = intent
	return s.result
}

func (s *stubSettlement) SelectAndExecute(ctx context.Context, amount *big.Int, recipient common.Address) domain.ExecutionResult {
	s.autoCalls++
	return s.result
}

func (s *stubSettlement) SimulateOnly(ctx context.Context, intent domain.DepositIntent) engine.Preview {
	s.lastIntent = intent
	return s.preview
}

type stubPolicy struct {
	policy domain.AgentPolicy
	err    error
}

func (s *stubPolicy) GetPolicy() domain.AgentPolicy { return s.policy }

func (s *stubPolicy) UpdatePolicy(patch domain.PolicyPatch) (domain.AgentPolicy, error) {
	if s.err != nil {
		return s.policy, s.err
	}
	s.policy = patch.Apply(s.policy)
	return s.policy, nil
}

type stubHistory struct {
	entries []domain.DecisionLogEntry
	cleared bool
}

func (s *stubHistory) GetExecutionHistory() []domain.DecisionLogEntry { return s.entries }
func (s *stubHistory) ClearExecutionHistory()                         { s.cleared = true }

func TestSettleRejectsBadInput(t *testing.T) {
	h := NewSettlementHandler(&stubSettlement{}, testLogger())

	tests := []struct {
		name string
		body string
		want string
	}{
		{"malformed json", `{`, "invalid request body"},
		{"zero amount", `{"amount":"0"}`, "positive decimal"},
		{"non-numeric amount", `{"amount":"ten"}`, "positive decimal"},
		{"missing pool id", `{"amount":"1000000"}`, "pool_id is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/settle", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.Settle(rec, req)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Contains(t, rec.Body.String(), tt.want)
		})
	}
}

func TestSettleReturnsEngineResult(t *testing.T) {
	svc := &stubSettlement{result: domain.ExecutionResult{
		Status: domain.StatusCompleted,
		TxHash: "0xabc",
	}}
	h := NewSettlementHandler(svc, testLogger())

	poolID := strings.Repeat("11", 32)
	body := `{"pool_id":"0x` + poolID + `","amount":"1000000","tick_lower":-100,"tick_upper":100}`
	req := httptest.NewRequest(http.MethodPost, "/api/settle", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Settle(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"completed"`)
	require.Contains(t, rec.Body.String(), `"tx_hash":"0xabc"`)
	require.Equal(t, "1000000", svc.lastIntent.Amount.String())
	require.Equal(t, -100, svc.lastIntent.TickLower)
}

func TestSettleAuto(t *testing.T) {
	svc := &stubSettlement{result: domain.ExecutionResult{Status: domain.StatusAborted, Reason: "no eligible pool"}}
	h := NewSettlementHandler(svc, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/settle/auto", strings.NewReader(`{"amount":"500"}`))
	rec := httptest.NewRecorder()
	h.SettleAuto(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, svc.autoCalls)
	require.Contains(t, rec.Body.String(), "no eligible pool")
}

func TestSimulateDoesNotRequirePool(t *testing.T) {
	svc := &stubSettlement{preview: engine.Preview{Decision: domain.DecisionWait, Reason: "conditions unfavorable"}}
	h := NewSettlementHandler(svc, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/simulate", strings.NewReader(`{"amount":"1000000"}`))
	rec := httptest.NewRecorder()
	h.Simulate(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"decision":"wait"`)
}

func TestPolicyRoundTrip(t *testing.T) {
	svc := &stubPolicy{policy: domain.DefaultPolicy()}
	h := NewPolicyHandler(svc, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/policy", nil)
	rec := httptest.NewRecorder()
	h.GetPolicy(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"max_slippage":0.01`)

	req = httptest.NewRequest(http.MethodPut, "/api/policy", strings.NewReader(`{"max_slippage":0.02}`))
	rec = httptest.NewRecorder()
	h.UpdatePolicy(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.InEpsilon(t, 0.02, svc.policy.MaxSlippage, 1e-9)
}

func TestHistoryFilters(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := &stubHistory{entries: []domain.DecisionLogEntry{
		{ID: "a", IntentID: "intent-1", Timestamp: base},
		{ID: "b", IntentID: "intent-2", Timestamp: base.Add(time.Minute)},
		{ID: "c", IntentID: "intent-1", Timestamp: base.Add(2 * time.Minute)},
	}}
	h := NewHistoryHandler(svc, nil, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/history?intent_id=intent-1", nil)
	rec := httptest.NewRecorder()
	h.ListHistory(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"id":"a"`)
	require.NotContains(t, rec.Body.String(), `"id":"b"`)

	since := base.Add(30 * time.Second).Format(time.RFC3339)
	req = httptest.NewRequest(http.MethodGet, "/api/history?since="+since, nil)
	rec = httptest.NewRecorder()
	h.ListHistory(rec, req)
	require.NotContains(t, rec.Body.String(), `"id":"a"`)
	require.Contains(t, rec.Body.String(), `"id":"c"`)

	req = httptest.NewRequest(http.MethodGet, "/api/history?limit=1&offset=1", nil)
	rec = httptest.NewRecorder()
	h.ListHistory(rec, req)
	require.Contains(t, rec.Body.String(), `"id":"b"`)
	require.NotContains(t, rec.Body.String(), `"id":"c"`)
}

func TestHistoryStoreSourceWithoutStore(t *testing.T) {
	h := NewHistoryHandler(&stubHistory{}, nil, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/history?source=store", nil)
	rec := httptest.NewRecorder()
	h.ListHistory(rec, req)
	require.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestClearHistory(t *testing.T) {
	svc := &stubHistory{}
	h := NewHistoryHandler(svc, nil, testLogger())

	req := httptest.NewRequest(http.MethodDelete, "/api/history", nil)
	rec := httptest.NewRecorder()
	h.ClearHistory(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, svc.cleared)
}
