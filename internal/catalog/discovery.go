// Package catalog enumerates candidate pools for a token pair, evaluates
// each through the risk simulator, and scores and ranks them for autonomous
// selection.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/winverse2755/settlekit/internal/domain"
	"github.com/winverse2755/settlekit/internal/risk"
	"github.com/winverse2755/settlekit/internal/univ3"
)

// metaCacheTTL bounds how long discovered pool key material (never state
// snapshots) may be reused.
const metaCacheTTL = 10 * time.Minute

// Catalog discovers and evaluates pools for a single token pair.
type Catalog struct {
	reader domain.PoolStateReader
	sim    *risk.Simulator
	pair   domain.PairSpec
	cache  domain.PoolMetaCache // optional
	logger *slog.Logger
}

// New creates a Catalog. cache may be nil.
func New(reader domain.PoolStateReader, sim *risk.Simulator, pair domain.PairSpec, cache domain.PoolMetaCache, logger *slog.Logger) *Catalog {
	return &Catalog{
		reader: reader,
		sim:    sim,
		pair:   pair,
		cache:  cache,
		logger: logger.With(slog.String("component", "pool_catalog")),
	}
}

// Discover enumerates the standard fee tiers, derives the deterministic pool
// identifier for each, and fetches a fresh state snapshot per pool. State
// queries fan out concurrently; a failure on one pool never aborts the
// others, it is recorded on the candidate and later degraded to the
// simulator's conservative fallback. Results preserve the canonical fee-tier
// enumeration order.
func (c *Catalog) Discover(ctx context.Context) ([]domain.DiscoveredPool, error) {
	pools := make([]domain.DiscoveredPool, len(domain.StandardFeeTiers))

	g, gctx := errgroup.WithContext(ctx)
	for i, tier := range domain.StandardFeeTiers {
		key := univ3.NewPoolKey(c.pair, tier)
		pools[i] = domain.DiscoveredPool{
			PoolID:      key.ID(),
			Pair:        domain.PairSpec{Token0: key.Token0, Token1: key.Token1, Extension: key.Extension},
			FeeTier:     tier,
			TickSpacing: key.TickSpacing,
		}

		g.Go(func() error {
			state, err := c.reader.GetPoolState(gctx, pools[i].PoolID)
			if err != nil {
				pools[i].StateErr = err
				return nil // degraded, not fatal
			}
			pools[i].State = state
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("catalog: discover %s/%s: %w", c.pair.Token0.Hex(), c.pair.Token1.Hex(), err)
	}

	if c.cache != nil {
		for _, p := range pools {
			if err := c.cache.SetPoolMeta(ctx, stripState(p), metaCacheTTL); err != nil {
				c.logger.DebugContext(ctx, "pool meta cache write failed",
					slog.String("pool_id", p.PoolID.Hex()),
					slog.String("error", err.Error()),
				)
			}
		}
	}
	return pools, nil
}

// ResolvePool maps a pool ID back to its key material, consulting the meta
// cache before re-deriving from the standard tier enumeration.
func (c *Catalog) ResolvePool(ctx context.Context, id domain.PoolID) (domain.DiscoveredPool, error) {
	if c.cache != nil {
		if pool, ok, err := c.cache.GetPoolMeta(ctx, id); err == nil && ok {
			return pool, nil
		}
	}
	for _, tier := range domain.StandardFeeTiers {
		key := univ3.NewPoolKey(c.pair, tier)
		if key.ID() == id {
			return domain.DiscoveredPool{
				PoolID:      id,
				Pair:        domain.PairSpec{Token0: key.Token0, Token1: key.Token1, Extension: key.Extension},
				FeeTier:     tier,
				TickSpacing: key.TickSpacing,
			}, nil
		}
	}
	return domain.DiscoveredPool{}, fmt.Errorf("catalog: resolve %s: %w", id.Hex(), domain.ErrPoolNotFound)
}

// Evaluate discovers all candidates, runs the risk model per pool, and
// scores each against the policy. The returned slice preserves enumeration
// order; selection tie-breaks rely on it.
func (c *Catalog) Evaluate(ctx context.Context, tradeSize float64, scenario domain.Scenario, policy domain.AgentPolicy) ([]domain.PoolEvaluation, error) {
	pools, err := c.Discover(ctx)
	if err != nil {
		return nil, err
	}

	evals := make([]domain.PoolEvaluation, 0, len(pools))
	for _, pool := range pools {
		var metrics domain.RiskMetrics
		if pool.StateErr != nil {
			metrics = c.sim.Degrade(ctx, pool.PoolID, scenario, pool.StateErr)
		} else {
			metrics = c.sim.Assess(pool.State, tradeSize, scenario)
		}
		evals = append(evals, ScorePool(pool, metrics, policy))
	}
	return evals, nil
}

func stripState(p domain.DiscoveredPool) domain.DiscoveredPool {
	p.State = domain.PoolState{}
	p.StateErr = nil
	return p
}
