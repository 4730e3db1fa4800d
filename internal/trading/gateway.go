package trading

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/predictdesk/engine/internal/contracts"
	"github.com/predictdesk/engine/pkg/logger"
)

// Exchange is the order book boundary. Implemented by the CLOB client.
type Exchange interface {
	Submit(ctx context.Context, req ExchangeRequest) (orderID string, err error)
	Cancel(ctx context.Context, orderID string) error
}

// ExchangeRequest is the wire-level order submission.
type ExchangeRequest struct {
	TokenID string
	Side    contracts.Side

	// Quantity carries dollars for market BUY orders and shares for
	// everything else; QuantityUnit records which. The exchange's
	// market-order semantics consume notional directly on the buy side.
	Quantity     float64
	QuantityUnit contracts.InputUnit

	Price      float64 // zero for market-type orders
	TIF        contracts.TimeInForce
	Expiration int64
	ClientID   string
}

// Journal records submitted orders for audit. Failures never block trading.
type Journal interface {
	SaveSubmitted(ctx context.Context, order *contracts.SubmittedOrder) error
}

// Gateway submits validated orders to the exchange. It performs no
// retries: retry policy belongs to the caller, since a blind resubmit
// risks duplicate fills. One submission may be in flight at a time.
type Gateway struct {
	exchange Exchange
	journal  Journal // optional
	logger   *logger.Logger
	clock    func() time.Time

	mu       sync.Mutex
	inFlight bool
}

// NewGateway creates a new order submission gateway.
func NewGateway(exchange Exchange, journal Journal, log *logger.Logger) *Gateway {
	return &Gateway{
		exchange: exchange,
		journal:  journal,
		logger:   log,
		clock:    time.Now,
	}
}

// Submit sends a validated order to the exchange and returns the
// accepted order. Errors are typed: ExchangeRejectedError when the
// order book declined, TransportError when the call itself failed, and
// ErrSubmitInFlight when a previous submission has not resolved.
func (g *Gateway) Submit(ctx context.Context, order contracts.ValidatedOrder) (*contracts.SubmittedOrder, error) {
	g.mu.Lock()
	if g.inFlight {
		g.mu.Unlock()
		return nil, contracts.ErrSubmitInFlight
	}
	g.inFlight = true
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		g.inFlight = false
		g.mu.Unlock()
	}()

	req := ExchangeRequest{
		TokenID:    order.TokenID,
		Side:       order.Side,
		Price:      order.Price,
		TIF:        order.TIF,
		Expiration: order.Expiration,
		ClientID:   uuid.NewString(),
	}

	// Market BUY quantity is the dollar amount; market SELL and all
	// limit-type orders are sized in shares. This asymmetry follows the
	// exchange contract and must not be collapsed.
	if order.MarketType && order.Side == contracts.SideBuy {
		req.Quantity = order.Notional
		req.QuantityUnit = contracts.UnitDollars
	} else {
		req.Quantity = order.Shares
		req.QuantityUnit = contracts.UnitShares
	}

	orderID, err := g.exchange.Submit(ctx, req)
	if err != nil {
		g.logger.WithFields(map[string]interface{}{
			"token_id":  order.TokenID,
			"side":      order.Side,
			"tif":       order.TIF,
			"client_id": req.ClientID,
			"error":     err,
		}).Error("Order submission failed")
		return nil, err
	}

	submitted := &contracts.SubmittedOrder{
		ValidatedOrder: order,
		OrderID:        orderID,
		ClientID:       req.ClientID,
		SubmittedAt:    g.clock(),
	}

	g.logger.WithFields(map[string]interface{}{
		"order_id": orderID,
		"token_id": order.TokenID,
		"side":     order.Side,
		"tif":      order.TIF,
		"quantity": req.Quantity,
		"unit":     req.QuantityUnit,
	}).Info("Order submitted")

	if g.journal != nil {
		if err := g.journal.SaveSubmitted(ctx, submitted); err != nil {
			g.logger.WithFields(map[string]interface{}{
				"order_id": orderID,
				"error":    err,
			}).Warn("Failed to journal submitted order")
		}
	}

	return submitted, nil
}

// Cancel asks the exchange to cancel an order. Cancellation is an
// explicit user action; nothing in this engine cancels accepted orders
// on its own.
func (g *Gateway) Cancel(ctx context.Context, orderID string) error {
	if err := g.exchange.Cancel(ctx, orderID); err != nil {
		g.logger.WithFields(map[string]interface{}{
			"order_id": orderID,
			"error":    err,
		}).Error("Order cancel failed")
		return err
	}

	g.logger.WithField("order_id", orderID).Info("Order cancelled")
	return nil
}
