package ws

import (
	"context"
	"time"

	"github.com/winverse2755/settlekit/internal/domain"
)

// StreamingStore decorates a DecisionLogStore so that every appended entry
// is also fanned out on the hub's decisions channel. The decision engine
// appends one entry per evaluation, which makes the audit trail the natural
// tap point for live streaming.
type StreamingStore struct {
	inner domain.DecisionLogStore // optional
	hub   *Hub
}

// NewStreamingStore wraps inner. A nil inner yields a stream-only store:
// Append still publishes, reads return nothing.
func NewStreamingStore(inner domain.DecisionLogStore, hub *Hub) *StreamingStore {
	return &StreamingStore{inner: inner, hub: hub}
}

// Append publishes the entry to connected clients, then delegates.
func (s *StreamingStore) Append(ctx context.Context, entry domain.DecisionLogEntry) error {
	s.hub.PublishDecision(entry)
	if s.inner == nil {
		return nil
	}
	return s.inner.Append(ctx, entry)
}

// List delegates to the wrapped store.
func (s *StreamingStore) List(ctx context.Context, opts domain.LogListOpts) ([]domain.DecisionLogEntry, error) {
	if s.inner == nil {
		return nil, nil
	}
	return s.inner.List(ctx, opts)
}

// DeleteBefore delegates to the wrapped store.
func (s *StreamingStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if s.inner == nil {
		return 0, nil
	}
	return s.inner.DeleteBefore(ctx, cutoff)
}

var _ domain.DecisionLogStore = (*StreamingStore)(nil)
