package handler

import (
	"log/slog"
	"net/http"

	"github.com/winverse2755/settlekit/internal/domain"
)

// HistoryService exposes the engine's in-memory audit log.
type HistoryService interface {
	GetExecutionHistory() []domain.DecisionLogEntry
	ClearExecutionHistory()
}

// HistoryHandler serves the decision audit-trail endpoints. Reads default to
// the engine's in-memory log for the current process; when a persistent
// store is configured, source=store queries it instead.
type HistoryHandler struct {
	svc    HistoryService
	store  domain.DecisionLogStore // optional
	logger *slog.Logger
}

// NewHistoryHandler creates a HistoryHandler. store may be nil.
func NewHistoryHandler(svc HistoryService, store domain.DecisionLogStore, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{
		svc:    svc,
		store:  store,
		logger: logHandler(logger, "history"),
	}
}

// listHistoryResponse wraps decision log entries.
type listHistoryResponse struct {
	Entries []domain.DecisionLogEntry `json:"entries"`
}

// ListHistory returns decision log entries, newest-first for the store and
// append-order for the in-memory log, filtered by the standard query
// parameters (intent_id, since, until, limit, offset).
// GET /api/history
// GET /api/history?source=store&intent_id=...
func (h *HistoryHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	opts := parseLogOpts(r)

	if r.URL.Query().Get("source") == "store" {
		if h.store == nil {
			writeError(w, http.StatusNotImplemented, "no persistent decision log store is configured")
			return
		}
		entries, err := h.store.List(r.Context(), opts)
		if err != nil {
			h.logger.ErrorContext(r.Context(), "history store query failed",
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to query decision log")
			return
		}
		if entries == nil {
			entries = []domain.DecisionLogEntry{}
		}
		writeJSON(w, http.StatusOK, listHistoryResponse{Entries: entries})
		return
	}

	writeJSON(w, http.StatusOK, listHistoryResponse{Entries: filterEntries(h.svc.GetExecutionHistory(), opts)})
}

// ClearHistory empties the in-memory audit log. Entries already persisted to
// the store are untouched.
// DELETE /api/history
func (h *HistoryHandler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	h.svc.ClearExecutionHistory()
	h.logger.InfoContext(r.Context(), "in-memory decision log cleared")
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// filterEntries applies LogListOpts to an in-memory slice, mirroring the
// store's filter semantics.
func filterEntries(entries []domain.DecisionLogEntry, opts domain.LogListOpts) []domain.DecisionLogEntry {
	out := make([]domain.DecisionLogEntry, 0, len(entries))
	for _, e := range entries {
		if opts.IntentID != "" && e.IntentID != opts.IntentID {
			continue
		}
		if opts.Since != nil && e.Timestamp.Before(*opts.Since) {
			continue
		}
		if opts.Until != nil && e.Timestamp.After(*opts.Until) {
			continue
		}
		out = append(out, e)
	}

	if opts.Offset >= len(out) {
		return []domain.DecisionLogEntry{}
	}
	out = out[opts.Offset:]
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out
}
