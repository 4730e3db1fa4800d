package clob

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/predictdesk/engine/pkg/config"
	"github.com/predictdesk/engine/pkg/logger"
)

const (
	pingInterval          = 10 * time.Second
	readTimeout           = 30 * time.Second
	reconnectInitialDelay = 1 * time.Second
	reconnectMaxDelay     = 30 * time.Second
	maxReconnectAttempts  = 10
)

// TradeEvent is a fill notification from the user channel.
type TradeEvent struct {
	EventType string `json:"event_type"`
	AssetID   string `json:"asset_id"`
	OrderID   string `json:"taker_order_id"`
	Side      string `json:"side"`
	Size      string `json:"size"`
	Price     string `json:"price"`
	Status    string `json:"status"`
}

type wsAuth struct {
	APIKey     string `json:"apiKey"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

type wsSubscribe struct {
	Auth    wsAuth   `json:"auth"`
	Type    string   `json:"type"`
	Markets []string `json:"markets,omitempty"`
}

// WSClient maintains the authenticated user channel. Trade events let
// the settlement reconciler confirm fills ahead of the polling loop.
type WSClient struct {
	cfg    config.CLOBConfig
	logger *logger.Logger

	conn      *websocket.Conn
	connMu    sync.Mutex
	connected bool

	onTrade      func(*TradeEvent)
	onDisconnect func()

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewWSClient creates a new user-channel client.
func NewWSClient(cfg config.CLOBConfig, log *logger.Logger) *WSClient {
	return &WSClient{
		cfg:    cfg,
		logger: log,
		stopCh: make(chan struct{}),
	}
}

// OnTrade registers the fill callback.
func (c *WSClient) OnTrade(fn func(*TradeEvent)) { c.onTrade = fn }

// OnDisconnect registers the disconnect callback.
func (c *WSClient) OnDisconnect(fn func()) { c.onDisconnect = fn }

// Connect establishes the connection, authenticates the user channel
// and starts the read and ping loops.
func (c *WSClient) Connect(ctx context.Context) error {
	if err := c.connect(ctx); err != nil {
		return fmt.Errorf("websocket connect: %w", err)
	}

	c.wg.Add(1)
	go c.readLoop()

	c.wg.Add(1)
	go c.pingLoop()

	c.logger.Info("User channel connected")
	return nil
}

func (c *WSClient) connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	conn, _, err := dialer.DialContext(ctx, c.cfg.WSURL+"/user", nil)
	if err != nil {
		return err
	}

	sub := wsSubscribe{
		Auth: wsAuth{
			APIKey:     c.cfg.APIKey,
			Secret:     c.cfg.APISecret,
			Passphrase: c.cfg.Passphrase,
		},
		Type: "user",
	}
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return fmt.Errorf("subscribe user channel: %w", err)
	}

	c.conn = conn
	c.connected = true

	return nil
}

// Disconnect closes the connection and stops background loops.
func (c *WSClient) Disconnect() error {
	close(c.stopCh)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.connected = false
	}
	c.connMu.Unlock()

	c.wg.Wait()

	if c.onDisconnect != nil {
		c.onDisconnect()
	}

	c.logger.Info("User channel disconnected")
	return nil
}

// IsConnected returns connection status.
func (c *WSClient) IsConnected() bool {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.connected
}

// readLoop consumes messages until the connection drops, then tries to
// reconnect with backoff.
func (c *WSClient) readLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.stopCh:
			return
		default:
		}

		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			if !c.reconnect() {
				return
			}
			continue
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.stopCh:
				return
			default:
			}

			c.logger.WithError(err).Warn("User channel read failed")

			c.connMu.Lock()
			c.conn = nil
			c.connected = false
			c.connMu.Unlock()

			if !c.reconnect() {
				return
			}
			continue
		}

		c.handleMessage(message)
	}
}

// handleMessage dispatches trade events. Other event types on the user
// channel (order placements, cancellations) are ignored here; the
// polling reconciler covers them.
func (c *WSClient) handleMessage(message []byte) {
	var event TradeEvent
	if err := json.Unmarshal(message, &event); err != nil {
		c.logger.WithError(err).Debug("Unparseable user channel message")
		return
	}

	if event.EventType != "trade" {
		return
	}

	if c.onTrade != nil {
		c.onTrade(&event)
	}
}

// reconnect retries the connection with exponential backoff. Returns
// false when the client is stopping or attempts are exhausted.
func (c *WSClient) reconnect() bool {
	delay := reconnectInitialDelay

	for attempt := 1; attempt <= maxReconnectAttempts; attempt++ {
		select {
		case <-c.stopCh:
			return false
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := c.connect(ctx)
		cancel()

		if err == nil {
			c.logger.WithField("attempt", attempt).Info("User channel reconnected")
			return true
		}

		c.logger.WithFields(map[string]interface{}{
			"attempt": attempt,
			"error":   err,
		}).Warn("User channel reconnect failed")

		delay *= 2
		if delay > reconnectMaxDelay {
			delay = reconnectMaxDelay
		}
	}

	c.logger.Error("User channel reconnect attempts exhausted")
	return false
}

// pingLoop keeps the connection alive.
func (c *WSClient) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
					c.logger.WithError(err).Debug("Ping failed")
				}
			}
			c.connMu.Unlock()
		}
	}
}
