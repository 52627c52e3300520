package handler

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"net/http"

	"github.com/winverse2755/settlekit/internal/domain"
)

// PoolDirectory defines the catalog operations the handler requires.
type PoolDirectory interface {
	Discover(ctx context.Context) ([]domain.DiscoveredPool, error)
	ResolvePool(ctx context.Context, id domain.PoolID) (domain.DiscoveredPool, error)
}

// PoolEvaluator scores every discoverable pool for a hypothetical deposit.
type PoolEvaluator interface {
	AllEvaluations(ctx context.Context, amount *big.Int) ([]domain.PoolEvaluation, error)
}

// PoolHandler serves the pool catalog endpoints.
type PoolHandler struct {
	dir    PoolDirectory
	eval   PoolEvaluator
	logger *slog.Logger
}

// NewPoolHandler creates a PoolHandler with the given directory, evaluator,
// and logger.
func NewPoolHandler(dir PoolDirectory, eval PoolEvaluator, logger *slog.Logger) *PoolHandler {
	return &PoolHandler{
		dir:    dir,
		eval:   eval,
		logger: logHandler(logger, "pools"),
	}
}

// listPoolsResponse wraps the discovered pools.
type listPoolsResponse struct {
	Pools []domain.DiscoveredPool `json:"pools"`
}

// listEvaluationsResponse wraps scored pool evaluations, ineligible ones
// included.
type listEvaluationsResponse struct {
	Evaluations []domain.PoolEvaluation `json:"evaluations"`
}

// ListPools enumerates the candidate pools for the configured pair. With an
// amount query parameter it instead returns scored evaluations for a deposit
// of that size.
// GET /api/pools
// GET /api/pools?amount=1000000
func (h *PoolHandler) ListPools(w http.ResponseWriter, r *http.Request) {
	if v := r.URL.Query().Get("amount"); v != "" {
		amount, ok := new(big.Int).SetString(v, 10)
		if !ok || amount.Sign() <= 0 {
			writeError(w, http.StatusBadRequest, "amount must be a positive decimal string")
			return
		}

		evals, err := h.eval.AllEvaluations(r.Context(), amount)
		if err != nil {
			h.logger.ErrorContext(r.Context(), "pool evaluation failed",
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to evaluate pools")
			return
		}
		if evals == nil {
			evals = []domain.PoolEvaluation{}
		}
		writeJSON(w, http.StatusOK, listEvaluationsResponse{Evaluations: evals})
		return
	}

	pools, err := h.dir.Discover(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "pool discovery failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to discover pools")
		return
	}
	if pools == nil {
		pools = []domain.DiscoveredPool{}
	}
	writeJSON(w, http.StatusOK, listPoolsResponse{Pools: pools})
}

// GetPool returns the key material for one pool by ID.
// GET /api/pools/{id}
func (h *PoolHandler) GetPool(w http.ResponseWriter, r *http.Request) {
	var id domain.PoolID
	if err := id.UnmarshalJSON([]byte(`"` + r.PathValue("id") + `"`)); err != nil {
		writeError(w, http.StatusBadRequest, "invalid pool id: "+err.Error())
		return
	}

	pool, err := h.dir.ResolvePool(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrPoolNotFound) {
			writeError(w, http.StatusNotFound, "pool not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "pool lookup failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to resolve pool")
		return
	}

	writeJSON(w, http.StatusOK, pool)
}
