package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/winverse2755/settlekit/internal/domain"
	"github.com/winverse2755/settlekit/internal/univ3"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPool() domain.DiscoveredPool {
	pair := domain.PairSpec{
		Token0: common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Token1: common.HexToAddress("0x2222222222222222222222222222222222222222"),
	}
	key := univ3.NewPoolKey(pair, domain.FeeTierLow)
	return domain.DiscoveredPool{
		PoolID:      key.ID(),
		Pair:        pair,
		FeeTier:     domain.FeeTierLow,
		TickSpacing: 10,
		State: domain.PoolState{
			SqrtPriceX96: new(big.Int).Lsh(big.NewInt(1), 96),
			Tick:         0,
			Liquidity:    big.NewInt(2_000_000),
			ObservedAt:   time.Now(),
		},
	}
}

func testIntent() domain.DepositIntent {
	return domain.DepositIntent{
		ID:        "intent-1",
		Amount:    big.NewInt(1_000_000),
		TickLower: -100,
		TickUpper: 100,
		Recipient: common.HexToAddress("0x3333333333333333333333333333333333333333"),
	}
}

func TestPlanPositionRecomputesAmounts(t *testing.T) {
	intent := testIntent()
	pool := testPool()

	plan, err := PlanPosition(intent, pool.State)
	require.NoError(t, err)
	require.Positive(t, plan.Liquidity.Sign())

	// The recomputed amounts never exceed what the intent offered.
	require.LessOrEqual(t, plan.Amount0.Cmp(intent.Amount), 0)
	require.LessOrEqual(t, plan.Amount1.Cmp(intent.Amount), 0)

	// Deterministic for the same inputs.
	again, err := PlanPosition(intent, pool.State)
	require.NoError(t, err)
	require.Zero(t, plan.Liquidity.Cmp(again.Liquidity))
}

func TestPlanPositionRejectsBadInput(t *testing.T) {
	pool := testPool()

	intent := testIntent()
	intent.Amount = nil
	_, err := PlanPosition(intent, pool.State)
	require.Error(t, err)

	intent = testIntent()
	uninit := pool.State
	uninit.SqrtPriceX96 = big.NewInt(0)
	_, err = PlanPosition(intent, uninit)
	require.Error(t, err)

	intent = testIntent()
	intent.TickLower = univ3.MinTick - 1
	_, err = PlanPosition(intent, pool.State)
	require.ErrorIs(t, err, domain.ErrTickRange)
}

func TestRelayerGatewaySubmits(t *testing.T) {
	var got depositRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/deposits", r.URL.Path)
		require.Equal(t, "secret", r.Header.Get("X-API-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(depositResponse{Success: true, TxHash: "0xfeed", PositionID: "7"})
	}))
	defer srv.Close()

	g := NewRelayerGateway(srv.URL, "secret", testLogger())
	receipt, err := g.DepositLiquidity(context.Background(), testIntent(), testPool())
	require.NoError(t, err)
	require.True(t, receipt.Success)
	require.Equal(t, "0xfeed", receipt.TxHash)
	require.Equal(t, "7", receipt.PositionID)

	require.Equal(t, "intent-1", got.IntentID)
	require.Equal(t, uint32(500), got.FeeTier)
	require.Equal(t, -100, got.TickLower)
	require.Equal(t, 100, got.TickUpper)
	require.NotEmpty(t, got.Liquidity)
	require.NotEmpty(t, got.Amount0)
	require.NotEmpty(t, got.Amount1)
}

func TestRelayerGatewayRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(depositResponse{Success: false, Error: "insufficient allowance"})
	}))
	defer srv.Close()

	g := NewRelayerGateway(srv.URL, "", testLogger())
	receipt, err := g.DepositLiquidity(context.Background(), testIntent(), testPool())
	require.NoError(t, err, "relayer-level rejection is a receipt, not a transport error")
	require.False(t, receipt.Success)
	require.Equal(t, "insufficient allowance", receipt.Error)
}

func TestRelayerGatewayHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	g := NewRelayerGateway(srv.URL, "", testLogger())
	_, err := g.DepositLiquidity(context.Background(), testIntent(), testPool())
	require.Error(t, err)
	require.Contains(t, err.Error(), "HTTP 502")
}

func TestDryRunGatewayDeterministic(t *testing.T) {
	g := NewDryRunGateway(testLogger())

	first, err := g.DepositLiquidity(context.Background(), testIntent(), testPool())
	require.NoError(t, err)
	require.True(t, first.Success)
	require.NotEmpty(t, first.TxHash)

	second, err := g.DepositLiquidity(context.Background(), testIntent(), testPool())
	require.NoError(t, err)
	require.Equal(t, first, second)
}
