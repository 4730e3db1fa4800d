// Package relayer submits redemption transactions for resolved
// markets through the gasless relayer service.
package relayer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/predictdesk/engine/internal/contracts"
	"github.com/predictdesk/engine/pkg/config"
	"github.com/predictdesk/engine/pkg/httputil"
	"github.com/predictdesk/engine/pkg/logger"
)

// Client talks to the relayer.
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	cfg        config.RelayerConfig
}

// NewClient creates a new relayer client.
func NewClient(cfg config.RelayerConfig, httpClient *httputil.Client, log *logger.Logger) *Client {
	return &Client{httpClient: httpClient, logger: log, cfg: cfg}
}

type redeemPayload struct {
	ConditionID  string  `json:"condition_id"`
	OutcomeIndex int     `json:"outcome_index"`
	Size         float64 `json:"size"`
}

type redeemResponse struct {
	TransactionID string `json:"transactionID"`
	State         string `json:"state"`
	Error         string `json:"error"`
}

// Redeem converts winning outcome shares back to collateral. Returns
// the relayer's transaction reference. The on-chain transfer settles
// asynchronously, so callers track completion through the settlement
// reconciler like any other size-reducing action.
func (c *Client) Redeem(ctx context.Context, conditionID string, outcomeIndex int, size float64) (string, error) {
	body, err := json.Marshal(redeemPayload{
		ConditionID:  conditionID,
		OutcomeIndex: outcomeIndex,
		Size:         size,
	})
	if err != nil {
		return "", &contracts.TransportError{Op: "encode redeem", Err: err}
	}

	resp, err := c.httpClient.Post(ctx, c.cfg.BaseURL+"/redeem", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", &contracts.TransportError{Op: "post redeem", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &contracts.TransportError{Op: "read redeem", Err: err}
	}

	var result redeemResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", &contracts.TransportError{
			Op:  "decode redeem",
			Err: fmt.Errorf("status %d: %w", resp.StatusCode, err),
		}
	}

	if resp.StatusCode != http.StatusOK || result.Error != "" {
		return "", &contracts.ExchangeRejectedError{Message: result.Error}
	}

	c.logger.WithFields(map[string]interface{}{
		"condition_id": conditionID,
		"tx_id":        result.TransactionID,
		"state":        result.State,
	}).Info("Redemption submitted")

	return result.TransactionID, nil
}
