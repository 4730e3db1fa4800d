// Package dataapi is the client for the read-only portfolio data
// service: positions and collateral balance for a wallet.
package dataapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/predictdesk/engine/internal/contracts"
	"github.com/predictdesk/engine/pkg/config"
	"github.com/predictdesk/engine/pkg/httputil"
	"github.com/predictdesk/engine/pkg/logger"
)

// Client fetches portfolio state. The positions endpoint is polled by
// the settlement reconciler, so calls go through a local token-bucket
// limiter to stay inside the provider's quota.
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	cfg        config.DataAPIConfig
	limiter    *rate.Limiter
}

// NewClient creates a new data API client.
func NewClient(cfg config.DataAPIConfig, httpClient *httputil.Client, log *logger.Logger) *Client {
	window := cfg.RateWindow
	if window <= 0 {
		window = time.Second
	}
	limit := cfg.RateLimit
	if limit <= 0 {
		limit = 10
	}

	return &Client{
		httpClient: httpClient,
		logger:     log,
		cfg:        cfg,
		limiter:    rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit),
	}
}

type positionRecord struct {
	Asset        string  `json:"asset"`
	ConditionID  string  `json:"conditionId"`
	OutcomeIndex int     `json:"outcomeIndex"`
	Outcome      string  `json:"outcome"`
	Title        string  `json:"title"`
	Size         float64 `json:"size"`
	AvgPrice     float64 `json:"avgPrice"`
	CurPrice     float64 `json:"curPrice"`
	Redeemable   bool    `json:"redeemable"`
}

// GetPositions returns all open positions for the configured wallet.
func (c *Client) GetPositions(ctx context.Context) ([]contracts.Position, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/positions?user=%s&sizeThreshold=0", c.cfg.BaseURL, url.QueryEscape(c.cfg.Wallet))

	resp, err := c.httpClient.Get(ctx, u)
	if err != nil {
		return nil, &contracts.TransportError{Op: "fetch positions", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &contracts.TransportError{
			Op:  "fetch positions",
			Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(body)),
		}
	}

	var records []positionRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, &contracts.TransportError{Op: "decode positions", Err: err}
	}

	positions := make([]contracts.Position, 0, len(records))
	for _, rec := range records {
		positions = append(positions, contracts.Position{
			Asset:        rec.Asset,
			ConditionID:  rec.ConditionID,
			OutcomeIndex: rec.OutcomeIndex,
			Outcome:      rec.Outcome,
			Title:        rec.Title,
			Size:         rec.Size,
			AvgPrice:     rec.AvgPrice,
			CurPrice:     rec.CurPrice,
			Redeemable:   rec.Redeemable,
		})
	}

	return positions, nil
}

// GetBalance returns the wallet's spendable collateral in dollars.
func (c *Client) GetBalance(ctx context.Context) (float64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	u := fmt.Sprintf("%s/balance?user=%s", c.cfg.BaseURL, url.QueryEscape(c.cfg.Wallet))

	resp, err := c.httpClient.Get(ctx, u)
	if err != nil {
		return 0, &contracts.TransportError{Op: "fetch balance", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return 0, &contracts.TransportError{
			Op:  "fetch balance",
			Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(body)),
		}
	}

	var result struct {
		Balance string `json:"balance"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, &contracts.TransportError{Op: "decode balance", Err: err}
	}

	balance, err := strconv.ParseFloat(result.Balance, 64)
	if err != nil {
		return 0, &contracts.TransportError{
			Op:  "parse balance",
			Err: fmt.Errorf("bad balance %q", result.Balance),
		}
	}

	return balance, nil
}
