package domain

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// FeeTier is a pool fee expressed in hundredths of a basis point
// (Uniswap convention: 500 = 0.05%, 3000 = 0.3%).
type FeeTier uint32

// Standard fee tiers and their canonical tick spacings.
const (
	FeeTierLowest FeeTier = 100
	FeeTierLow    FeeTier = 500
	FeeTierMedium FeeTier = 3000
	FeeTierHigh   FeeTier = 10000
)

// StandardFeeTiers lists the fee tiers enumerated during pool discovery, in
// canonical order. Discovery and selection tie-breaks depend on this order.
var StandardFeeTiers = []FeeTier{FeeTierLowest, FeeTierLow, FeeTierMedium, FeeTierHigh}

// TickSpacing returns the canonical tick spacing for the fee tier, or 0 for
// non-standard tiers.
func (f FeeTier) TickSpacing() int {
	switch f {
	case FeeTierLowest:
		return 1
	case FeeTierLow:
		return 10
	case FeeTierMedium:
		return 60
	case FeeTierHigh:
		return 200
	default:
		return 0
	}
}

// Percent returns the fee as a fraction (e.g. 0.0005 for the 500 tier).
func (f FeeTier) Percent() float64 {
	return float64(f) / 1_000_000
}

// PoolID is the deterministic 32-byte identifier of a pool, derived as a
// content hash of the canonical pool key tuple.
type PoolID [32]byte

// Hex returns the 0x-prefixed hex form of the pool ID.
func (id PoolID) Hex() string {
	return "0x" + common.Bytes2Hex(id[:])
}

// IsZero reports whether the ID is the zero value.
func (id PoolID) IsZero() bool {
	return id == PoolID{}
}

// MarshalJSON encodes the ID as its 0x-prefixed hex form.
func (id PoolID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.Hex())
}

// UnmarshalJSON decodes a 0x-prefixed hex pool ID.
func (id *PoolID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	raw := common.FromHex(s)
	if len(raw) != 32 {
		return fmt.Errorf("domain: pool id %q: want 32 bytes, got %d", s, len(raw))
	}
	copy(id[:], raw)
	return nil
}

// PairSpec identifies a token pair to discover pools for. Token addresses must
// be given in canonical sorted order (token0 < token1 bytewise); discovery
// normalizes the order if needed.
type PairSpec struct {
	Token0 common.Address
	Token1 common.Address
	// Extension is the optional hook/extension contract bound into the pool
	// key. Zero address for plain pools.
	Extension common.Address
}

// PoolState is an immutable snapshot of on-chain pool state. Snapshots are
// taken fresh for every decision run and never cached across runs; a stale
// snapshot corrupts the risk estimate.
type PoolState struct {
	PoolID       PoolID
	SqrtPriceX96 *big.Int // Q64.96 square-root price
	Tick         int
	Liquidity    *big.Int
	FeeTier      FeeTier
	ObservedAt   time.Time
}

// Initialized reports whether the pool has a non-zero price, i.e. it has been
// initialized on-chain. Uninitialized pools are excluded from selection.
func (s PoolState) Initialized() bool {
	return s.SqrtPriceX96 != nil && s.SqrtPriceX96.Sign() > 0
}

// LiquidityFloat returns the pool liquidity as a float64 for use in the risk
// heuristics. Precision loss is acceptable there; position sizing always goes
// through the fixed-point path.
func (s PoolState) LiquidityFloat() float64 {
	if s.Liquidity == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(s.Liquidity).Float64()
	return f
}

// DiscoveredPool pairs a derived pool identity with its state snapshot.
type DiscoveredPool struct {
	PoolID      PoolID
	Pair        PairSpec
	FeeTier     FeeTier
	TickSpacing int
	State       PoolState
	// StateErr records a pool-state query failure. The risk simulator absorbs
	// it into a conservative fallback; discovery never drops the candidate.
	StateErr error
}
