package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/winverse2755/settlekit/internal/domain"
	"github.com/winverse2755/settlekit/internal/engine"
)

// SettlementService defines the decision-engine operations the handler
// requires.
type SettlementService interface {
	EvaluateAndExecute(ctx context.Context, intent domain.DepositIntent) domain.ExecutionResult
	SelectAndExecute(ctx context.Context, amount *big.Int, recipient common.Address) domain.ExecutionResult
	SimulateOnly(ctx context.Context, intent domain.DepositIntent) engine.Preview
}

// SettlementHandler serves the settle and simulate endpoints.
type SettlementHandler struct {
	svc    SettlementService
	logger *slog.Logger
}

// NewSettlementHandler creates a SettlementHandler with the given service
// and logger.
func NewSettlementHandler(svc SettlementService, logger *slog.Logger) *SettlementHandler {
	return &SettlementHandler{
		svc:    svc,
		logger: logHandler(logger, "settlement"),
	}
}

// settleRequest is the body for settle and simulate requests targeting a
// known pool. Amount is a decimal string in raw token units.
type settleRequest struct {
	PoolID    domain.PoolID  `json:"pool_id"`
	Amount    string         `json:"amount"`
	TickLower int            `json:"tick_lower,omitempty"`
	TickUpper int            `json:"tick_upper,omitempty"`
	Recipient common.Address `json:"recipient"`
}

func (req settleRequest) intent() (domain.DepositIntent, string) {
	amount, ok := new(big.Int).SetString(req.Amount, 10)
	if !ok || amount.Sign() <= 0 {
		return domain.DepositIntent{}, "amount must be a positive decimal string"
	}
	return domain.DepositIntent{
		PoolID:    req.PoolID,
		Amount:    amount,
		TickLower: req.TickLower,
		TickUpper: req.TickUpper,
		Recipient: req.Recipient,
	}, ""
}

// Settle runs the full decision state machine against the requested pool and
// returns the terminal result. Unfavorable decisions are reported with 200;
// the result's status field carries the outcome.
// POST /api/settle
func (h *SettlementHandler) Settle(w http.ResponseWriter, r *http.Request) {
	var req settleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	intent, msg := req.intent()
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if intent.PoolID.IsZero() {
		writeError(w, http.StatusBadRequest, "pool_id is required; use /api/settle/auto for automatic pool selection")
		return
	}

	result := h.svc.EvaluateAndExecute(r.Context(), intent)
	h.logger.InfoContext(r.Context(), "settle run finished",
		slog.String("status", string(result.Status)),
		slog.String("tx_hash", result.TxHash),
	)
	writeJSON(w, http.StatusOK, result)
}

// autoSettleRequest is the body for automatic pool selection.
type autoSettleRequest struct {
	Amount    string         `json:"amount"`
	Recipient common.Address `json:"recipient"`
}

// SettleAuto evaluates every discoverable pool, picks the best eligible one,
// and settles into it.
// POST /api/settle/auto
func (h *SettlementHandler) SettleAuto(w http.ResponseWriter, r *http.Request) {
	var req autoSettleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	amount, ok := new(big.Int).SetString(req.Amount, 10)
	if !ok || amount.Sign() <= 0 {
		writeError(w, http.StatusBadRequest, "amount must be a positive decimal string")
		return
	}

	result := h.svc.SelectAndExecute(r.Context(), amount, req.Recipient)
	h.logger.InfoContext(r.Context(), "auto settle run finished",
		slog.String("status", string(result.Status)),
		slog.String("tx_hash", result.TxHash),
	)
	writeJSON(w, http.StatusOK, result)
}

// Simulate runs a side-effect-free risk evaluation: no audit log entry, no
// execution, no retries.
// POST /api/simulate
func (h *SettlementHandler) Simulate(w http.ResponseWriter, r *http.Request) {
	var req settleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	intent, msg := req.intent()
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	writeJSON(w, http.StatusOK, h.svc.SimulateOnly(r.Context(), intent))
}
