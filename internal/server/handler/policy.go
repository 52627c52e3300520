package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/winverse2755/settlekit/internal/domain"
)

// PolicyService defines the policy operations the handler requires.
type PolicyService interface {
	GetPolicy() domain.AgentPolicy
	UpdatePolicy(patch domain.PolicyPatch) (domain.AgentPolicy, error)
}

// PolicyHandler serves the agent policy endpoints.
type PolicyHandler struct {
	svc    PolicyService
	logger *slog.Logger
}

// NewPolicyHandler creates a PolicyHandler with the given service and logger.
func NewPolicyHandler(svc PolicyService, logger *slog.Logger) *PolicyHandler {
	return &PolicyHandler{
		svc:    svc,
		logger: logHandler(logger, "policy"),
	}
}

// GetPolicy returns the currently active policy.
// GET /api/policy
func (h *PolicyHandler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.GetPolicy())
}

// UpdatePolicy applies a partial policy update. Absent fields keep their
// current values. An update that fails validation leaves the policy
// unchanged and returns 400.
// PUT /api/policy
func (h *PolicyHandler) UpdatePolicy(w http.ResponseWriter, r *http.Request) {
	var patch domain.PolicyPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	updated, err := h.svc.UpdatePolicy(patch)
	if err != nil {
		h.logger.WarnContext(r.Context(), "policy update rejected",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, updated)
}
