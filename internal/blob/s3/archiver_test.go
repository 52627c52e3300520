package s3blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/winverse2755/settlekit/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeBlob struct {
	objects map[string][]byte
	err     error
}

func (f *fakeBlob) Put(_ context.Context, key, _ string, body []byte) error {
	if f.err != nil {
		return f.err
	}
	if f.objects == nil {
		f.objects = make(map[string][]byte)
	}
	f.objects[key] = append([]byte(nil), body...)
	return nil
}

type fakeLogStore struct {
	entries      []domain.DecisionLogEntry
	pruneCutoffs []time.Time
}

func (s *fakeLogStore) Append(_ context.Context, e domain.DecisionLogEntry) error {
	s.entries = append(s.entries, e)
	return nil
}

func (s *fakeLogStore) List(_ context.Context, opts domain.LogListOpts) ([]domain.DecisionLogEntry, error) {
	var out []domain.DecisionLogEntry
	for _, e := range s.entries {
		if opts.Until != nil && e.Timestamp.After(*opts.Until) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *fakeLogStore) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.pruneCutoffs = append(s.pruneCutoffs, cutoff)
	var kept []domain.DecisionLogEntry
	var pruned int64
	for _, e := range s.entries {
		if e.Timestamp.After(cutoff) {
			kept = append(kept, e)
			continue
		}
		pruned++
	}
	s.entries = kept
	return pruned, nil
}

func entryAt(i int, ts time.Time) domain.DecisionLogEntry {
	return domain.DecisionLogEntry{
		ID:        fmt.Sprintf("entry-%d", i),
		IntentID:  "intent-1",
		Timestamp: ts,
		Decision:  domain.DecisionExecute,
	}
}

func TestArchiveRunsNeverShareAKey(t *testing.T) {
	blob := &fakeBlob{}
	store := &fakeLogStore{}
	arch := NewLogArchiver(blob, store, testLogger())

	// Two runs on consecutive days of the same month. The first run's rows
	// are pruned from the store after upload, so a key collision would
	// replace the only remaining copy.
	day1 := time.Date(2026, 8, 1, 3, 0, 0, 0, time.UTC)
	store.Append(context.Background(), entryAt(1, day1.Add(-time.Hour)))
	_, err := arch.Archive(context.Background(), day1)
	require.NoError(t, err)

	day2 := day1.AddDate(0, 0, 1)
	store.Append(context.Background(), entryAt(2, day2.Add(-time.Hour)))
	_, err = arch.Archive(context.Background(), day2)
	require.NoError(t, err)

	require.Len(t, blob.objects, 2, "each run must write a distinct object")
	for _, body := range blob.objects {
		require.Equal(t, 1, bytes.Count(body, []byte("\n")))
	}
}

func TestArchivePrunesExactlyTheExportedWindow(t *testing.T) {
	blob := &fakeBlob{}
	store := &fakeLogStore{}
	arch := NewLogArchiver(blob, store, testLogger())

	cutoff := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
	store.Append(context.Background(), entryAt(1, cutoff.Add(-time.Hour)))
	store.Append(context.Background(), entryAt(2, cutoff)) // exactly at the boundary
	store.Append(context.Background(), entryAt(3, cutoff.Add(time.Hour)))

	pruned, err := arch.Archive(context.Background(), cutoff)
	require.NoError(t, err)
	require.EqualValues(t, 2, pruned)

	require.Len(t, store.entries, 1)
	require.Equal(t, "entry-3", store.entries[0].ID)

	require.Len(t, blob.objects, 1)
	for _, body := range blob.objects {
		require.Equal(t, 2, bytes.Count(body, []byte("\n")), "boundary entry must be exported with the pruned batch")
	}
	require.Equal(t, []time.Time{cutoff}, store.pruneCutoffs)
}

func TestArchiveKeepsRowsWhenUploadFails(t *testing.T) {
	blob := &fakeBlob{err: errors.New("bucket unavailable")}
	store := &fakeLogStore{}
	arch := NewLogArchiver(blob, store, testLogger())

	cutoff := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
	store.Append(context.Background(), entryAt(1, cutoff.Add(-time.Hour)))

	_, err := arch.Archive(context.Background(), cutoff)
	require.Error(t, err)
	require.Len(t, store.entries, 1, "a failed upload must not prune")
	require.Empty(t, store.pruneCutoffs)
}

func TestArchiveNoopWhenNothingAged(t *testing.T) {
	blob := &fakeBlob{}
	store := &fakeLogStore{}
	arch := NewLogArchiver(blob, store, testLogger())

	pruned, err := arch.Archive(context.Background(), time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Zero(t, pruned)
	require.Empty(t, blob.objects)
}
