package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/winverse2755/settlekit/internal/catalog"
	"github.com/winverse2755/settlekit/internal/domain"
	"github.com/winverse2755/settlekit/internal/engine"
	"github.com/winverse2755/settlekit/internal/metrics"
	"github.com/winverse2755/settlekit/internal/notify"
	"github.com/winverse2755/settlekit/internal/risk"
	"github.com/winverse2755/settlekit/internal/server"
	"github.com/winverse2755/settlekit/internal/server/handler"
	"github.com/winverse2755/settlekit/internal/server/ws"
	"github.com/winverse2755/settlekit/internal/univ3"
)

// lockTTL bounds how long a one-shot run may hold its intent lock. It must
// outlast the full retry budget.
const lockTTL = 15 * time.Minute

// riskRecorder fans fallback signals out to metrics and, when configured,
// the notifier. Notification delivery is fire-and-forget so the simulator
// never blocks on a webhook.
type riskRecorder struct {
	metrics  *metrics.SettlementMetrics
	notifier *notify.Notifier
}

func (r riskRecorder) RiskFallback(poolID string) {
	r.metrics.RiskFallback(poolID)
	if r.notifier != nil {
		go func() {
			_ = r.notifier.NotifyRiskFallback(context.Background(), poolID)
		}()
	}
}

// buildEngine assembles the simulator, catalog, and decision engine from the
// wired dependencies. store overrides deps.LogStore so serve mode can splice
// in the WebSocket stream.
func (a *App) buildEngine(deps *Dependencies, store domain.DecisionLogStore) (*engine.Engine, *catalog.Catalog) {
	sim := risk.NewSimulator(deps.Reader, a.latencyTable(), a.logger, riskRecorder{
		metrics:  deps.Metrics,
		notifier: deps.Notifier,
	})
	cat := catalog.New(deps.Reader, sim, a.cfg.Pair.Spec(), deps.MetaCache, a.logger)

	if store == nil {
		store = deps.LogStore
	}
	eng := engine.New(engine.Deps{
		Simulator: sim,
		Catalog:   cat,
		Reader:    deps.Reader,
		Gateway:   deps.Gateway,
		LogStore:  store,
		Observer:  deps.Metrics,
		Logger:    a.logger,
	}, a.cfg.Policy.Policy(), domain.Scenario(a.cfg.Risk.Scenario))

	return eng, cat
}

// latencyTable overlays configured percentiles on the built-in table.
func (a *App) latencyTable() risk.LatencyTable {
	t := risk.DefaultLatencyTable
	if a.cfg.Risk.LatencyP50 > 0 {
		t.P50 = a.cfg.Risk.LatencyP50
	}
	if a.cfg.Risk.LatencyP95 > 0 {
		t.P95 = a.cfg.Risk.LatencyP95
	}
	if a.cfg.Risk.LatencyP99 > 0 {
		t.P99 = a.cfg.Risk.LatencyP99
	}
	return t
}

// intentFromConfig builds the deposit intent for the one-shot modes. The
// pool ID is derived from the configured fee tier; auto mode ignores it.
func (a *App) intentFromConfig() (domain.DepositIntent, error) {
	amount, ok := new(big.Int).SetString(a.cfg.Settle.Amount, 10)
	if !ok || amount.Sign() <= 0 {
		return domain.DepositIntent{}, fmt.Errorf("app: settle.amount %q is not a positive decimal", a.cfg.Settle.Amount)
	}

	intent := domain.DepositIntent{
		ID:        uuid.NewString(),
		Amount:    amount,
		TickLower: a.cfg.Settle.TickLower,
		TickUpper: a.cfg.Settle.TickUpper,
		Recipient: common.HexToAddress(a.cfg.Settle.Recipient),
	}
	if a.cfg.Settle.FeeTier > 0 {
		key := univ3.NewPoolKey(a.cfg.Pair.Spec(), domain.FeeTier(a.cfg.Settle.FeeTier))
		intent.PoolID = key.ID()
	}
	return intent, nil
}

// acquireLock serializes a one-shot run on the given key when a lock
// manager is wired. The returned release function is always safe to call.
func (a *App) acquireLock(ctx context.Context, deps *Dependencies, key string) (func(), error) {
	if deps.Locks == nil {
		return func() {}, nil
	}
	unlock, err := deps.Locks.Acquire(ctx, key, lockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			return nil, fmt.Errorf("app: another run already holds %s", key)
		}
		return nil, fmt.Errorf("app: acquire lock %s: %w", key, err)
	}
	return unlock, nil
}

// reportResult notifies operators and prints the result to stdout for
// scripting.
func (a *App) reportResult(ctx context.Context, deps *Dependencies, intentID string, res domain.ExecutionResult) error {
	if err := deps.Notifier.NotifyResult(ctx, intentID, res); err != nil {
		a.logger.WarnContext(ctx, "notification failed", slog.String("error", err.Error()))
	}

	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("app: encode result: %w", err)
	}
	fmt.Fprintln(os.Stdout, string(out))

	if res.Status != domain.StatusCompleted {
		return fmt.Errorf("app: settlement %s: %s", res.Status, res.Reason)
	}
	return nil
}

// SettleMode runs one decision cycle against the configured pool and exits.
func (a *App) SettleMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting settle mode")

	intent, err := a.intentFromConfig()
	if err != nil {
		return err
	}

	unlock, err := a.acquireLock(ctx, deps, "pool:"+intent.PoolID.Hex())
	if err != nil {
		return err
	}
	defer unlock()

	eng, _ := a.buildEngine(deps, nil)
	start := time.Now()
	res := eng.EvaluateAndExecute(ctx, intent)
	deps.Metrics.ObserveRunDuration(time.Since(start))

	return a.reportResult(ctx, deps, intent.ID, res)
}

// AutoMode discovers and scores every candidate pool, settles into the best
// eligible one, and exits.
func (a *App) AutoMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting auto mode")

	intent, err := a.intentFromConfig()
	if err != nil {
		return err
	}

	pair := a.cfg.Pair.Spec()
	unlock, err := a.acquireLock(ctx, deps, fmt.Sprintf("auto:%s:%s", pair.Token0.Hex(), pair.Token1.Hex()))
	if err != nil {
		return err
	}
	defer unlock()

	eng, _ := a.buildEngine(deps, nil)
	start := time.Now()
	res := eng.SelectAndExecute(ctx, intent.Amount, intent.Recipient)
	deps.Metrics.ObserveRunDuration(time.Since(start))

	return a.reportResult(ctx, deps, intent.ID, res)
}

// SimulateMode prints the risk preview for the configured deposit without
// touching the audit log or the gateway.
func (a *App) SimulateMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting simulate mode")

	intent, err := a.intentFromConfig()
	if err != nil {
		return err
	}

	eng, _ := a.buildEngine(deps, nil)
	preview := eng.SimulateOnly(ctx, intent)

	out, err := json.MarshalIndent(preview, "", "  ")
	if err != nil {
		return fmt.Errorf("app: encode preview: %w", err)
	}
	fmt.Fprintln(os.Stdout, string(out))
	return nil
}

// ServeMode runs the HTTP + WebSocket API until the context is cancelled.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	if !a.cfg.Server.Enabled {
		return errors.New("app: serve mode requires server.enabled")
	}

	g, ctx := errgroup.WithContext(ctx)

	hub := ws.NewHub(a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	// Splice the WebSocket stream into the audit-log path so every
	// evaluation reaches connected clients.
	eng, cat := a.buildEngine(deps, ws.NewStreamingStore(deps.LogStore, hub))

	health := handler.NewHealthHandler(a.logger)
	for name, ping := range deps.Pings {
		health.AddCheck(name, ping)
	}

	handlers := server.Handlers{
		Health:     health,
		Policy:     handler.NewPolicyHandler(eng, a.logger),
		Settlement: handler.NewSettlementHandler(eng, a.logger),
		Pools:      handler.NewPoolHandler(cat, eng, a.logger),
		History:    handler.NewHistoryHandler(eng, deps.LogStore, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, hub, promhttp.Handler(), deps.Limiter, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	if deps.Archiver != nil {
		g.Go(func() error {
			return a.runArchiver(ctx, deps)
		})
	}

	return g.Wait()
}

// runArchiver moves decision-log rows older than the retention window into
// object storage, once a day.
func (a *App) runArchiver(ctx context.Context, deps *Dependencies) error {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			cutoff := time.Now().UTC().AddDate(0, 0, -a.cfg.S3.RetentionDays)
			n, err := deps.Archiver.Archive(ctx, cutoff)
			if err != nil {
				a.logger.ErrorContext(ctx, "decision log archival failed",
					slog.String("error", err.Error()),
				)
				continue
			}
			a.logger.InfoContext(ctx, "archival cycle finished",
				slog.Int64("entries", n),
				slog.Time("cutoff", cutoff),
			)
		}
	}
}
