package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/winverse2755/settlekit/internal/domain"
)

// stateViewABI covers the two read methods of the singleton state-view
// contract: slot0 (price, tick, fees) and active liquidity, both keyed by
// the 32-byte pool ID.
const stateViewABI = `[
  {
    "inputs": [{"internalType": "bytes32", "name": "poolId", "type": "bytes32"}],
    "name": "getSlot0",
    "outputs": [
      {"internalType": "uint160", "name": "sqrtPriceX96", "type": "uint160"},
      {"internalType": "int24", "name": "tick", "type": "int24"},
      {"internalType": "uint24", "name": "protocolFee", "type": "uint24"},
      {"internalType": "uint24", "name": "lpFee", "type": "uint24"}
    ],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "bytes32", "name": "poolId", "type": "bytes32"}],
    "name": "getLiquidity",
    "outputs": [{"internalType": "uint128", "name": "liquidity", "type": "uint128"}],
    "stateMutability": "view",
    "type": "function"
  }
]`

// StateReader reads pool state snapshots through the state-view contract.
// Implements domain.PoolStateReader; it raises query failures as errors and
// leaves the conservative degradation to the risk simulator.
type StateReader struct {
	client *Client
	view   common.Address
	abi    abi.ABI
	logger *slog.Logger
}

// NewStateReader creates a StateReader bound to the state-view contract at
// viewAddr.
func NewStateReader(client *Client, viewAddr common.Address, logger *slog.Logger) (*StateReader, error) {
	parsed, err := abi.JSON(strings.NewReader(stateViewABI))
	if err != nil {
		return nil, fmt.Errorf("chain: parse state view abi: %w", err)
	}
	return &StateReader{
		client: client,
		view:   viewAddr,
		abi:    parsed,
		logger: logger.With(slog.String("component", "chain_reader")),
	}, nil
}

// GetPoolState fetches a fresh slot0 + liquidity snapshot for the pool.
func (r *StateReader) GetPoolState(ctx context.Context, id domain.PoolID) (domain.PoolState, error) {
	slot0, err := r.call(ctx, "getSlot0", [32]byte(id))
	if err != nil {
		return domain.PoolState{}, fmt.Errorf("chain: slot0 for %s: %w", id.Hex(), err)
	}
	if len(slot0) != 4 {
		return domain.PoolState{}, fmt.Errorf("chain: slot0 for %s: %d outputs, want 4", id.Hex(), len(slot0))
	}

	liq, err := r.call(ctx, "getLiquidity", [32]byte(id))
	if err != nil {
		return domain.PoolState{}, fmt.Errorf("chain: liquidity for %s: %w", id.Hex(), err)
	}
	if len(liq) != 1 {
		return domain.PoolState{}, fmt.Errorf("chain: liquidity for %s: %d outputs, want 1", id.Hex(), len(liq))
	}

	sqrtPrice, ok := slot0[0].(*big.Int)
	if !ok {
		return domain.PoolState{}, fmt.Errorf("chain: slot0 for %s: unexpected sqrtPrice type %T", id.Hex(), slot0[0])
	}
	tick, ok := slot0[1].(*big.Int)
	if !ok {
		return domain.PoolState{}, fmt.Errorf("chain: slot0 for %s: unexpected tick type %T", id.Hex(), slot0[1])
	}
	lpFee, ok := slot0[3].(*big.Int)
	if !ok {
		return domain.PoolState{}, fmt.Errorf("chain: slot0 for %s: unexpected lpFee type %T", id.Hex(), slot0[3])
	}
	liquidity, ok := liq[0].(*big.Int)
	if !ok {
		return domain.PoolState{}, fmt.Errorf("chain: liquidity for %s: unexpected type %T", id.Hex(), liq[0])
	}

	state := domain.PoolState{
		PoolID:       id,
		SqrtPriceX96: sqrtPrice,
		Tick:         int(tick.Int64()),
		Liquidity:    liquidity,
		FeeTier:      domain.FeeTier(lpFee.Uint64()),
		ObservedAt:   time.Now().UTC(),
	}
	r.logger.DebugContext(ctx, "pool state snapshot",
		slog.String("pool_id", id.Hex()),
		slog.Int("tick", state.Tick),
		slog.String("liquidity", liquidity.String()),
	)
	return state, nil
}

func (r *StateReader) call(ctx context.Context, method string, args ...any) ([]any, error) {
	data, err := r.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	out, err := r.client.CallContract(ctx, ethereum.CallMsg{To: &r.view, Data: data})
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	vals, err := r.abi.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return vals, nil
}

var _ domain.PoolStateReader = (*StateReader)(nil)
