// Package clob is the client for the central limit order book API.
// All order-book HTTP calls go through this client; nothing else in
// the codebase talks to the exchange directly.
package clob

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/predictdesk/engine/internal/contracts"
	"github.com/predictdesk/engine/internal/trading"
	"github.com/predictdesk/engine/pkg/config"
	"github.com/predictdesk/engine/pkg/httputil"
	"github.com/predictdesk/engine/pkg/logger"
)

// Client handles communication with the order book API.
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	cfg        config.CLOBConfig
	clock      func() time.Time
}

// NewClient creates a new order book client.
func NewClient(cfg config.CLOBConfig, httpClient *httputil.Client, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log,
		cfg:        cfg,
		clock:      time.Now,
	}
}

// FetchTickSize returns the minimum tick for a token's market.
func (c *Client) FetchTickSize(ctx context.Context, tokenID string) (float64, error) {
	u := fmt.Sprintf("%s/tick-size?token_id=%s", c.cfg.BaseURL, url.QueryEscape(tokenID))

	resp, err := c.httpClient.Get(ctx, u)
	if err != nil {
		return 0, &contracts.TransportError{Op: "fetch tick size", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return 0, &contracts.TransportError{
			Op:  "fetch tick size",
			Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(body)),
		}
	}

	var result tickSizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, &contracts.TransportError{Op: "decode tick size", Err: err}
	}

	tick, err := strconv.ParseFloat(result.MinimumTickSize, 64)
	if err != nil || tick <= 0 {
		return 0, &contracts.TransportError{
			Op:  "parse tick size",
			Err: fmt.Errorf("bad tick %q", result.MinimumTickSize),
		}
	}

	return tick, nil
}

// FetchInstrument returns a market's outcome tokens and live prices.
func (c *Client) FetchInstrument(ctx context.Context, conditionID string) (*contracts.Instrument, error) {
	u := fmt.Sprintf("%s/markets/%s", c.cfg.BaseURL, url.PathEscape(conditionID))

	resp, err := c.httpClient.Get(ctx, u)
	if err != nil {
		return nil, &contracts.TransportError{Op: "fetch market", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &contracts.TransportError{
			Op:  "fetch market",
			Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(body)),
		}
	}

	var result marketResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &contracts.TransportError{Op: "decode market", Err: err}
	}

	if len(result.Tokens) != 2 {
		return nil, &contracts.TransportError{
			Op:  "fetch market",
			Err: fmt.Errorf("expected 2 outcome tokens, got %d", len(result.Tokens)),
		}
	}

	minSize, _ := strconv.ParseFloat(result.MinOrderSize, 64)

	inst := &contracts.Instrument{
		ConditionID:  result.ConditionID,
		Question:     result.Question,
		MinOrderSize: minSize,
	}
	for i, tok := range result.Tokens {
		inst.Outcomes[i] = contracts.OutcomeToken{
			TokenID: tok.TokenID,
			Label:   tok.Outcome,
			Price:   tok.Price,
		}
	}

	return inst, nil
}

// Submit places an order. Implements trading.Exchange. Transport and
// decode failures come back as TransportError; an explicit rejection
// from the book comes back as ExchangeRejectedError.
func (c *Client) Submit(ctx context.Context, req trading.ExchangeRequest) (string, error) {
	payload := orderPayload{
		TokenID:   req.TokenID,
		Side:      string(req.Side),
		Amount:    formatAmount(req.Quantity),
		OrderType: string(req.TIF),
		ClientID:  req.ClientID,
		Owner:     c.cfg.Funder,
	}
	if req.Price > 0 {
		payload.Price = formatPrice(req.Price)
	}
	if req.Expiration > 0 {
		payload.Expiration = req.Expiration
	}

	var result orderResponse
	if err := c.postSigned(ctx, "/order", payload, &result); err != nil {
		return "", err
	}

	if !result.Success {
		return "", &contracts.ExchangeRejectedError{
			Code:    result.ErrorCode,
			Message: result.ErrorMsg,
		}
	}

	c.logger.WithFields(map[string]interface{}{
		"order_id": result.OrderID,
		"token_id": req.TokenID,
		"side":     req.Side,
		"status":   result.Status,
	}).Debug("Order accepted by book")

	return result.OrderID, nil
}

// Cancel withdraws a resting order.
func (c *Client) Cancel(ctx context.Context, orderID string) error {
	var result cancelResponse
	if err := c.postSigned(ctx, "/cancel", cancelPayload{OrderID: orderID}, &result); err != nil {
		return err
	}

	if reason, ok := result.NotCanceled[orderID]; ok {
		return &contracts.ExchangeRejectedError{Code: "not_canceled", Message: reason}
	}

	return nil
}

// postSigned sends an authenticated POST and decodes the response.
// A non-2xx status with a parseable body is an exchange rejection;
// anything else is a transport failure.
func (c *Client) postSigned(ctx context.Context, path string, payload, result interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &contracts.TransportError{Op: "encode " + path, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return &contracts.TransportError{Op: "build " + path, Err: err}
	}

	ts := strconv.FormatInt(c.clock().Unix(), 10)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("POLY_API_KEY", c.cfg.APIKey)
	req.Header.Set("POLY_PASSPHRASE", c.cfg.Passphrase)
	req.Header.Set("POLY_TIMESTAMP", ts)
	req.Header.Set("POLY_SIGNATURE", c.sign(ts, http.MethodPost, path, body))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &contracts.TransportError{Op: "post " + path, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &contracts.TransportError{Op: "read " + path, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != "" {
			return &contracts.ExchangeRejectedError{
				Code:    strconv.Itoa(resp.StatusCode),
				Message: apiErr.Error,
			}
		}
		return &contracts.TransportError{
			Op:  "post " + path,
			Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody)),
		}
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return &contracts.TransportError{Op: "decode " + path, Err: err}
	}

	return nil
}

// sign computes the L2 request signature over timestamp, method, path
// and body with the base64url API secret.
func (c *Client) sign(timestamp, method, path string, body []byte) string {
	key, err := base64.URLEncoding.DecodeString(c.cfg.APISecret)
	if err != nil {
		key = []byte(c.cfg.APISecret)
	}

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(timestamp + method + path))
	mac.Write(body)

	return base64.URLEncoding.EncodeToString(mac.Sum(nil))
}
