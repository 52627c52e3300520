package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/winverse2755/settlekit/internal/domain"
)

// RelayerGateway submits sized deposits to an external settlement relayer
// over HTTP. The relayer holds the keys and pays gas; this client never sees
// private key material. Implements domain.ExecutionGateway.
type RelayerGateway struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewRelayerGateway creates a gateway against the relayer at baseURL. apiKey
// may be empty when the relayer is unauthenticated (local dev).
func NewRelayerGateway(baseURL, apiKey string, logger *slog.Logger) *RelayerGateway {
	return &RelayerGateway{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger.With(slog.String("component", "relayer_gateway")),
	}
}

// depositRequest is the relayer wire payload. Amounts are the authoritative
// recomputed values from the fixed-point sizing, as decimal strings.
type depositRequest struct {
	IntentID  string `json:"intent_id"`
	PoolID    string `json:"pool_id"`
	Token0    string `json:"token0"`
	Token1    string `json:"token1"`
	FeeTier   uint32 `json:"fee_tier"`
	TickLower int    `json:"tick_lower"`
	TickUpper int    `json:"tick_upper"`
	Liquidity string `json:"liquidity"`
	Amount0   string `json:"amount0"`
	Amount1   string `json:"amount1"`
	Recipient string `json:"recipient"`
}

type depositResponse struct {
	Success    bool   `json:"success"`
	TxHash     string `json:"tx_hash"`
	PositionID string `json:"position_id"`
	Error      string `json:"error"`
}

// DepositLiquidity sizes the position and submits it to the relayer. A
// transport or HTTP-level failure is returned as an error; a relayer-level
// rejection comes back as an unsuccessful receipt.
func (g *RelayerGateway) DepositLiquidity(ctx context.Context, intent domain.DepositIntent, pool domain.DiscoveredPool) (domain.DepositReceipt, error) {
	plan, err := PlanPosition(intent, pool.State)
	if err != nil {
		return domain.DepositReceipt{}, err
	}

	payload := depositRequest{
		IntentID:  intent.ID,
		PoolID:    pool.PoolID.Hex(),
		Token0:    pool.Pair.Token0.Hex(),
		Token1:    pool.Pair.Token1.Hex(),
		FeeTier:   uint32(pool.FeeTier),
		TickLower: plan.TickLower,
		TickUpper: plan.TickUpper,
		Liquidity: plan.Liquidity.String(),
		Amount0:   plan.Amount0.String(),
		Amount1:   plan.Amount1.String(),
		Recipient: intent.Recipient.Hex(),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.DepositReceipt{}, fmt.Errorf("gateway: encode deposit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/deposits", bytes.NewReader(body))
	if err != nil {
		return domain.DepositReceipt{}, fmt.Errorf("gateway: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("X-API-Key", g.apiKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return domain.DepositReceipt{}, fmt.Errorf("gateway: submit deposit: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.DepositReceipt{}, fmt.Errorf("gateway: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return domain.DepositReceipt{}, fmt.Errorf("gateway: relayer rejected submission (HTTP %d): %s",
			resp.StatusCode, string(respBody))
	}

	var out depositResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return domain.DepositReceipt{}, fmt.Errorf("gateway: decode response: %w", err)
	}

	g.logger.InfoContext(ctx, "deposit submitted",
		slog.String("intent_id", intent.ID),
		slog.String("pool_id", pool.PoolID.Hex()),
		slog.Bool("success", out.Success),
		slog.String("tx_hash", out.TxHash),
	)
	return domain.DepositReceipt{
		Success:    out.Success,
		TxHash:     out.TxHash,
		PositionID: out.PositionID,
		Error:      out.Error,
	}, nil
}

var _ domain.ExecutionGateway = (*RelayerGateway)(nil)
