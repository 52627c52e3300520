package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	s3blob "github.com/winverse2755/settlekit/internal/blob/s3"
	"github.com/winverse2755/settlekit/internal/cache/redis"
	"github.com/winverse2755/settlekit/internal/chain"
	"github.com/winverse2755/settlekit/internal/config"
	"github.com/winverse2755/settlekit/internal/domain"
	"github.com/winverse2755/settlekit/internal/gateway"
	"github.com/winverse2755/settlekit/internal/metrics"
	"github.com/winverse2755/settlekit/internal/notify"
	"github.com/winverse2755/settlekit/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency the application modes
// need. It is constructed by Wire and torn down by the returned cleanup
// function. Optional subsystems (Postgres, Redis, S3) leave their fields nil
// when disabled.
type Dependencies struct {
	Chain   *chain.Client
	Reader  domain.PoolStateReader
	Gateway domain.ExecutionGateway

	// Durability and coordination, nil when the backing service is disabled.
	LogStore  domain.DecisionLogStore
	MetaCache domain.PoolMetaCache
	Locks     domain.LockManager
	Limiter   domain.RateLimiter
	Archiver  *s3blob.LogArchiver

	Notifier *notify.Notifier
	Metrics  *metrics.SettlementMetrics

	// Pings are connectivity checks for the health endpoint, keyed by
	// dependency name.
	Pings map[string]func(ctx context.Context) error
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		Metrics: metrics.Settlement(),
		Pings:   make(map[string]func(ctx context.Context) error),
	}

	// --- Chain RPC ---
	chainClient, err := chain.Dial(ctx, cfg.Chain.RPCURL)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: chain: %w", err)
	}
	closers = append(closers, chainClient.Close)
	deps.Chain = chainClient
	deps.Pings["chain"] = func(ctx context.Context) error {
		_, err := chainClient.LatestBlockNumber(ctx)
		return err
	}

	reader, err := chain.NewStateReader(chainClient, common.HexToAddress(cfg.Chain.StateViewAddress), logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: state reader: %w", err)
	}
	deps.Reader = reader

	// --- Execution gateway ---
	if cfg.Relayer.DryRun {
		deps.Gateway = gateway.NewDryRunGateway(logger)
	} else {
		deps.Gateway = gateway.NewRelayerGateway(cfg.Relayer.BaseURL, cfg.Relayer.APIKey, logger)
	}

	// --- PostgreSQL (durable decision log) ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		deps.LogStore = postgres.NewDecisionLogStore(pgClient.Pool())
		deps.Pings["postgres"] = pgClient.Pool().Ping
	}

	// --- Redis (meta cache, locks, rate limiting) ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.MetaCache = redis.NewPoolMetaCache(redisClient)
		deps.Locks = redis.NewLockManager(redisClient)
		deps.Limiter = redis.NewRateLimiter(redisClient)
		deps.Pings["redis"] = func(ctx context.Context) error {
			return redisClient.Underlying().Ping(ctx).Err()
		}
	}

	// --- S3 (decision-log archival, needs the Postgres store) ---
	if cfg.S3.Enabled && deps.LogStore != nil {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}

		deps.Archiver = s3blob.NewLogArchiver(s3Client, deps.LogStore, logger)
		deps.Pings["s3"] = s3Client.Health
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
