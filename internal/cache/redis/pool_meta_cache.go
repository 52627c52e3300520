package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"

	"github.com/winverse2755/settlekit/internal/domain"
)

// PoolMetaCache implements domain.PoolMetaCache with JSON-serialized pool
// key material. Only slow-changing metadata is stored; pool state snapshots
// are deliberately never cached, they must be fresh per decision run.
//
// Key schema:
//
//	settle:pool:{poolID} - JSON poolMetaRecord
type PoolMetaCache struct {
	rdb *redis.Client
}

// NewPoolMetaCache creates a PoolMetaCache backed by the given Client.
func NewPoolMetaCache(c *Client) *PoolMetaCache {
	return &PoolMetaCache{rdb: c.Underlying()}
}

type poolMetaRecord struct {
	PoolID      string `json:"pool_id"`
	Token0      string `json:"token0"`
	Token1      string `json:"token1"`
	Extension   string `json:"extension,omitempty"`
	FeeTier     uint32 `json:"fee_tier"`
	TickSpacing int    `json:"tick_spacing"`
}

func poolMetaKey(id domain.PoolID) string {
	return "settle:pool:" + id.Hex()
}

// SetPoolMeta stores the pool's key material with the given TTL.
func (pc *PoolMetaCache) SetPoolMeta(ctx context.Context, pool domain.DiscoveredPool, ttl time.Duration) error {
	rec := poolMetaRecord{
		PoolID:      pool.PoolID.Hex(),
		Token0:      pool.Pair.Token0.Hex(),
		Token1:      pool.Pair.Token1.Hex(),
		FeeTier:     uint32(pool.FeeTier),
		TickSpacing: pool.TickSpacing,
	}
	if pool.Pair.Extension != (common.Address{}) {
		rec.Extension = pool.Pair.Extension.Hex()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("redis: marshal pool meta %s: %w", pool.PoolID.Hex(), err)
	}
	if err := pc.rdb.Set(ctx, poolMetaKey(pool.PoolID), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set pool meta %s: %w", pool.PoolID.Hex(), err)
	}
	return nil
}

// GetPoolMeta looks up the pool's key material. The second return is false
// on a cache miss.
func (pc *PoolMetaCache) GetPoolMeta(ctx context.Context, id domain.PoolID) (domain.DiscoveredPool, bool, error) {
	data, err := pc.rdb.Get(ctx, poolMetaKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.DiscoveredPool{}, false, nil
	}
	if err != nil {
		return domain.DiscoveredPool{}, false, fmt.Errorf("redis: get pool meta %s: %w", id.Hex(), err)
	}

	var rec poolMetaRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return domain.DiscoveredPool{}, false, fmt.Errorf("redis: unmarshal pool meta %s: %w", id.Hex(), err)
	}

	pool := domain.DiscoveredPool{
		PoolID: id,
		Pair: domain.PairSpec{
			Token0: common.HexToAddress(rec.Token0),
			Token1: common.HexToAddress(rec.Token1),
		},
		FeeTier:     domain.FeeTier(rec.FeeTier),
		TickSpacing: rec.TickSpacing,
	}
	if rec.Extension != "" {
		pool.Pair.Extension = common.HexToAddress(rec.Extension)
	}
	return pool, true, nil
}

var _ domain.PoolMetaCache = (*PoolMetaCache)(nil)
