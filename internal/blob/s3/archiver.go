package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/winverse2755/settlekit/internal/domain"
)

// objectPutter uploads one object to the archive bucket. *Client satisfies it.
type objectPutter interface {
	Put(ctx context.Context, key, contentType string, body []byte) error
}

// LogArchiver exports decision-log entries older than a cutoff to JSONL
// objects in the bucket, then prunes them from the primary store. The upload
// happens before the delete, so a failed upload never loses entries.
type LogArchiver struct {
	blob   objectPutter
	store  domain.DecisionLogStore
	logger *slog.Logger
}

// NewLogArchiver creates a LogArchiver over the given store.
func NewLogArchiver(blob objectPutter, store domain.DecisionLogStore, logger *slog.Logger) *LogArchiver {
	return &LogArchiver{
		blob:   blob,
		store:  store,
		logger: logger.With(slog.String("component", "log_archiver")),
	}
}

// Archive exports and prunes all entries timestamped at or before cutoff.
// Returns the number of pruned entries. A run with nothing to archive is a
// no-op, not an error.
func (a *LogArchiver) Archive(ctx context.Context, cutoff time.Time) (int64, error) {
	entries, err := a.store.List(ctx, domain.LogListOpts{Until: &cutoff})
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive query: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(entries)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive marshal: %w", err)
	}

	key := archivePath(time.Now().UTC())
	if err := a.blob.Put(ctx, key, "application/x-ndjson", buf); err != nil {
		return 0, fmt.Errorf("s3blob: archive upload %s: %w", key, err)
	}

	pruned, err := a.store.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive prune: %w", err)
	}

	a.logger.InfoContext(ctx, "decision log archived",
		slog.String("key", key),
		slog.Int("exported", len(entries)),
		slog.Int64("pruned", pruned),
	)
	return pruned, nil
}

// archivePath names one export uniquely. Exported rows are pruned from the
// primary store right after the upload, so two runs must never share a key:
// the object is partitioned by the run date and suffixed with a fresh ID.
//
//	archive/decisions/2026-08-30/1b9d6bcd.jsonl
func archivePath(now time.Time) string {
	return fmt.Sprintf("archive/decisions/%s/%s.jsonl",
		now.Format("2006-01-02"), uuid.NewString()[:8])
}

// marshalJSONL serialises records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
