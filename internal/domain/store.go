package domain

import (
	"context"
	"time"
)

// PoolStateReader supplies fresh pool state snapshots. Implementations raise
// query failures as errors; degrading a failure into a conservative risk
// value is the risk simulator's responsibility, not this layer's.
type PoolStateReader interface {
	GetPoolState(ctx context.Context, id PoolID) (PoolState, error)
}

// ExecutionGateway submits the liquidity deposit on-chain. It is opaque to
// the core: encoding, signing, gas, and confirmation handling live behind it.
// Submissions are not assumed idempotent, so the engine never retries a
// gateway call.
type ExecutionGateway interface {
	DepositLiquidity(ctx context.Context, intent DepositIntent, pool DiscoveredPool) (DepositReceipt, error)
}

// DecisionLogStore optionally persists audit-trail entries. The in-memory
// log inside the engine is authoritative for one process lifetime; the store
// is the embedding application's durability layer.
type DecisionLogStore interface {
	Append(ctx context.Context, entry DecisionLogEntry) error
	List(ctx context.Context, opts LogListOpts) ([]DecisionLogEntry, error)
	// DeleteBefore prunes entries timestamped at or before cutoff, mirroring
	// the inclusive Until filter of List.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// LogListOpts filters and paginates decision log queries.
type LogListOpts struct {
	IntentID string
	Since    *time.Time
	Until    *time.Time
	Limit    int
	Offset   int
}

// LockManager provides distributed locks. The engine itself performs no
// cross-call deduplication; callers that need at-most-once execution per
// intent serialize through a lock.
type LockManager interface {
	// Acquire returns an unlock function on success, or ErrLockHeld when the
	// lock is already taken.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// Clock abstracts the engine's only suspension point, the retry delay. The
// sleep must return early with the context's error on cancellation so a
// multi-minute retry chain can be abandoned.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// RateLimiter provides distributed rate limiting for the HTTP surface.
type RateLimiter interface {
	// Allow reports whether a request for key is permitted under the limit,
	// counting the request when it is.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// PoolMetaCache caches slow-changing pool metadata discovered on-chain
// (token ordering, tick spacing). Pool state snapshots are deliberately not
// cacheable: they must be fresh per decision run.
type PoolMetaCache interface {
	GetPoolMeta(ctx context.Context, id PoolID) (DiscoveredPool, bool, error)
	SetPoolMeta(ctx context.Context, pool DiscoveredPool, ttl time.Duration) error
}
