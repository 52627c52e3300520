package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/winverse2755/settlekit/internal/domain"
)

// DecisionLogStore implements domain.DecisionLogStore. The risk metrics and
// the policy/intent snapshots are stored as JSONB so the audit trail keeps
// the full evaluation context without schema churn.
type DecisionLogStore struct {
	pool *pgxpool.Pool
}

// NewDecisionLogStore creates a DecisionLogStore backed by the given pool.
func NewDecisionLogStore(pool *pgxpool.Pool) *DecisionLogStore {
	return &DecisionLogStore{pool: pool}
}

// Append persists one decision-log entry. Entries are immutable once
// written.
func (s *DecisionLogStore) Append(ctx context.Context, entry domain.DecisionLogEntry) error {
	riskJSON, err := json.Marshal(entry.Risk)
	if err != nil {
		return fmt.Errorf("postgres: marshal risk for entry %s: %w", entry.ID, err)
	}
	policyJSON, err := json.Marshal(entry.Policy)
	if err != nil {
		return fmt.Errorf("postgres: marshal policy for entry %s: %w", entry.ID, err)
	}
	intentJSON, err := json.Marshal(entry.Intent)
	if err != nil {
		return fmt.Errorf("postgres: marshal intent for entry %s: %w", entry.ID, err)
	}

	const query = `
		INSERT INTO decision_log (id, intent_id, ts, decision, reason, risk, policy, intent, retry_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err = s.pool.Exec(ctx, query,
		entry.ID, entry.IntentID, entry.Timestamp, string(entry.Decision),
		entry.Reason, riskJSON, policyJSON, intentJSON, entry.RetryCount,
	)
	if err != nil {
		return fmt.Errorf("postgres: append decision %s: %w", entry.ID, err)
	}
	return nil
}

// List returns decision-log entries newest first, with optional intent and
// time filtering plus pagination.
func (s *DecisionLogStore) List(ctx context.Context, opts domain.LogListOpts) ([]domain.DecisionLogEntry, error) {
	query := `SELECT id, intent_id, ts, decision, reason, risk, policy, intent, retry_count
		FROM decision_log WHERE 1=1`
	args := []any{}
	argIdx := 1

	if opts.IntentID != "" {
		query += fmt.Sprintf(" AND intent_id = $%d", argIdx)
		args = append(args, opts.IntentID)
		argIdx++
	}
	if opts.Since != nil {
		query += fmt.Sprintf(" AND ts >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND ts <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY ts DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list decisions: %w", err)
	}
	defer rows.Close()

	var entries []domain.DecisionLogEntry
	for rows.Next() {
		var (
			e          domain.DecisionLogEntry
			decision   string
			riskJSON   []byte
			policyJSON []byte
			intentJSON []byte
		)
		if err := rows.Scan(&e.ID, &e.IntentID, &e.Timestamp, &decision,
			&e.Reason, &riskJSON, &policyJSON, &intentJSON, &e.RetryCount); err != nil {
			return nil, fmt.Errorf("postgres: scan decision entry: %w", err)
		}
		e.Decision = domain.Decision(decision)
		if err := json.Unmarshal(riskJSON, &e.Risk); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal risk for %s: %w", e.ID, err)
		}
		if err := json.Unmarshal(policyJSON, &e.Policy); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal policy for %s: %w", e.ID, err)
		}
		if err := json.Unmarshal(intentJSON, &e.Intent); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal intent for %s: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list decisions rows: %w", err)
	}
	return entries, nil
}

// DeleteBefore removes entries timestamped at or before cutoff and returns
// the count. The comparison is inclusive to match List's Until filter, so the
// archiver prunes exactly the window it exported.
func (s *DecisionLogStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, "DELETE FROM decision_log WHERE ts <= $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete decisions before %s: %w", cutoff, err)
	}
	return tag.RowsAffected(), nil
}

var _ domain.DecisionLogStore = (*DecisionLogStore)(nil)
