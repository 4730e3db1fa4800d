package trading

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/predictdesk/engine/internal/contracts"
	"github.com/predictdesk/engine/internal/quotes"
	"github.com/predictdesk/engine/pkg/config"
	"github.com/predictdesk/engine/pkg/logger"
)

type staticTicks map[string]float64

func (s staticTicks) FetchTickSize(ctx context.Context, tokenID string) (float64, error) {
	return s[tokenID], nil
}

func testInstrument() contracts.Instrument {
	return contracts.Instrument{
		ConditionID: "cond-1",
		Question:    "Will it settle?",
		Outcomes: [2]contracts.OutcomeToken{
			{TokenID: "yes-1", Label: "Yes", Price: 0.25},
			{TokenID: "no-1", Label: "No", Price: 0.76},
		},
		MinOrderSize: 5,
	}
}

func testValidator(t *testing.T) *Validator {
	t.Helper()

	cache := quotes.New(staticTicks{"yes-1": 0.01, "no-1": 0.01}, time.Minute, nil, logger.NewNop())
	cache.Prime("yes-1", 0.01)
	cache.Prime("no-1", 0.01)

	cfg := config.TradingConfig{
		MinNotional:     1.00,
		GTDSafetyBuffer: 60 * time.Second,
	}

	return NewValidator(cache, cfg, logger.NewNop())
}

func rejectReason(t *testing.T, err error) contracts.RejectReason {
	t.Helper()

	var ir *contracts.InputRejectedError
	require.ErrorAs(t, err, &ir)
	return ir.Reason
}

func TestValidate_BuyBelowMinNotional(t *testing.T) {
	v := testValidator(t)

	intent := contracts.OrderIntent{
		Side:    contracts.SideBuy,
		Variant: contracts.VariantMarket,
		TokenID: "yes-1",
		Input:   contracts.DollarInput(0.50),
	}

	_, err := v.Validate(context.Background(), intent, testInstrument(), AccountState{Balance: 100})
	assert.Equal(t, contracts.ReasonBelowMinNotional, rejectReason(t, err))
}

func TestValidate_BuyExceedsBalance(t *testing.T) {
	v := testValidator(t)

	intent := contracts.OrderIntent{
		Side:    contracts.SideBuy,
		Variant: contracts.VariantMarket,
		TokenID: "yes-1",
		Input:   contracts.DollarInput(60),
	}

	_, err := v.Validate(context.Background(), intent, testInstrument(), AccountState{Balance: 50})
	assert.Equal(t, contracts.ReasonInsufficientBalance, rejectReason(t, err))
}

func TestValidate_SellExceedsHolding(t *testing.T) {
	v := testValidator(t)

	intent := contracts.OrderIntent{
		Side:    contracts.SideSell,
		Variant: contracts.VariantMarket,
		TokenID: "yes-1",
		Input:   contracts.ShareInput(15),
	}

	_, err := v.Validate(context.Background(), intent, testInstrument(), AccountState{HeldShares: 10})
	assert.Equal(t, contracts.ReasonInsufficientShares, rejectReason(t, err))
}

func TestValidate_SellBelowMinSize(t *testing.T) {
	v := testValidator(t)

	intent := contracts.OrderIntent{
		Side:    contracts.SideSell,
		Variant: contracts.VariantMarket,
		TokenID: "yes-1",
		Input:   contracts.ShareInput(2),
	}

	_, err := v.Validate(context.Background(), intent, testInstrument(), AccountState{HeldShares: 10})
	assert.Equal(t, contracts.ReasonBelowMinSize, rejectReason(t, err))
}

func TestValidate_ShareDerivation(t *testing.T) {
	v := testValidator(t)

	intent := contracts.OrderIntent{
		Side:    contracts.SideBuy,
		Variant: contracts.VariantMarket,
		TokenID: "yes-1",
		Input:   contracts.DollarInput(20),
	}

	order, err := v.Validate(context.Background(), intent, testInstrument(), AccountState{Balance: 100})
	require.NoError(t, err)

	assert.Equal(t, 80.0, order.Shares, "buy $20 at 0.25 is exactly 80 shares")
	assert.Equal(t, 20.0, order.Notional)
	assert.True(t, order.MarketType)
	assert.Zero(t, order.Price, "pure market orders carry no price")
	assert.Equal(t, contracts.TIFFillAndKill, order.TIF)
}

func TestValidate_SellSharesTakenDirectly(t *testing.T) {
	v := testValidator(t)

	intent := contracts.OrderIntent{
		Side:    contracts.SideSell,
		Variant: contracts.VariantMarket,
		TokenID: "yes-1",
		Input:   contracts.ShareInput(7),
	}

	order, err := v.Validate(context.Background(), intent, testInstrument(), AccountState{HeldShares: 10})
	require.NoError(t, err)

	assert.Equal(t, 7.0, order.Shares)
	assert.Zero(t, order.Notional)
}

func TestValidate_BuyRejectsWrongUnit(t *testing.T) {
	v := testValidator(t)

	intent := contracts.OrderIntent{
		Side:    contracts.SideBuy,
		Variant: contracts.VariantMarket,
		TokenID: "yes-1",
		Input:   contracts.ShareInput(10),
	}

	_, err := v.Validate(context.Background(), intent, testInstrument(), AccountState{Balance: 100})
	assert.Equal(t, contracts.ReasonBadInputUnit, rejectReason(t, err))
}

func TestValidate_LimitRequiresPrice(t *testing.T) {
	v := testValidator(t)

	intent := contracts.OrderIntent{
		Side:    contracts.SideBuy,
		Variant: contracts.VariantLimit,
		TokenID: "yes-1",
		Input:   contracts.DollarInput(10),
	}

	_, err := v.Validate(context.Background(), intent, testInstrument(), AccountState{Balance: 100})
	assert.Equal(t, contracts.ReasonMissingLimitPrice, rejectReason(t, err))
}

func TestValidate_LimitPriceOffTick(t *testing.T) {
	v := testValidator(t)

	intent := contracts.OrderIntent{
		Side:       contracts.SideBuy,
		Variant:    contracts.VariantLimit,
		TokenID:    "yes-1",
		Input:      contracts.DollarInput(10),
		LimitPrice: 0.505,
	}

	_, err := v.Validate(context.Background(), intent, testInstrument(), AccountState{Balance: 100})

	var ir *contracts.InputRejectedError
	require.ErrorAs(t, err, &ir)
	assert.Equal(t, contracts.ReasonPriceOffTick, ir.Reason)
	assert.Contains(t, ir.Message, "1¢", "tick size is quoted in cents")
}

func TestValidate_LimitPriceOutOfBounds(t *testing.T) {
	v := testValidator(t)

	for _, price := range []float64{0.005, 0.995} {
		intent := contracts.OrderIntent{
			Side:       contracts.SideBuy,
			Variant:    contracts.VariantLimit,
			TokenID:    "yes-1",
			Input:      contracts.DollarInput(10),
			LimitPrice: price,
		}

		_, err := v.Validate(context.Background(), intent, testInstrument(), AccountState{Balance: 100})
		assert.Equal(t, contracts.ReasonPriceOutOfBounds, rejectReason(t, err),
			"price %v must be at least one tick from the boundary", price)
	}
}

func TestValidate_LimitUsesEnteredPrice(t *testing.T) {
	v := testValidator(t)

	intent := contracts.OrderIntent{
		Side:       contracts.SideBuy,
		Variant:    contracts.VariantLimit,
		TokenID:    "yes-1",
		Input:      contracts.DollarInput(10),
		LimitPrice: 0.40,
	}

	order, err := v.Validate(context.Background(), intent, testInstrument(), AccountState{Balance: 100})
	require.NoError(t, err)

	assert.Equal(t, 25.0, order.Shares, "$10 at limit 0.40 is 25 shares")
	assert.Equal(t, 0.40, order.Price)
	assert.False(t, order.MarketType)
	assert.Equal(t, contracts.TIFGoodTilCancelled, order.TIF)
}

func TestValidate_MarketBuyWithoutQuote(t *testing.T) {
	v := testValidator(t)

	inst := testInstrument()
	inst.Outcomes[0].Price = 0 // quote missing

	intent := contracts.OrderIntent{
		Side:    contracts.SideBuy,
		Variant: contracts.VariantMarket,
		TokenID: "yes-1",
		Input:   contracts.DollarInput(10),
	}

	_, err := v.Validate(context.Background(), intent, inst, AccountState{Balance: 100})
	assert.Equal(t, contracts.ReasonNoQuote, rejectReason(t, err))
}

func TestValidate_GTDExpiration(t *testing.T) {
	v := testValidator(t).WithClock(func() time.Time {
		return time.Unix(1000, 0)
	})

	intent := contracts.OrderIntent{
		Side:             contracts.SideBuy,
		Variant:          contracts.VariantGoodTilDate,
		TokenID:          "yes-1",
		Input:            contracts.DollarInput(10),
		LimitPrice:       0.40,
		ExpirationWindow: 24 * time.Hour,
	}

	order, err := v.Validate(context.Background(), intent, testInstrument(), AccountState{Balance: 100})
	require.NoError(t, err)

	// now + 60s safety buffer + 24h window
	assert.Equal(t, int64(1000+60+86400), order.Expiration)
	assert.Equal(t, contracts.TIFGoodTilDate, order.TIF)
}

func TestValidate_GTDRequiresWindow(t *testing.T) {
	v := testValidator(t)

	intent := contracts.OrderIntent{
		Side:       contracts.SideBuy,
		Variant:    contracts.VariantGoodTilDate,
		TokenID:    "yes-1",
		Input:      contracts.DollarInput(10),
		LimitPrice: 0.40,
	}

	_, err := v.Validate(context.Background(), intent, testInstrument(), AccountState{Balance: 100})
	assert.Equal(t, contracts.ReasonMissingExpiration, rejectReason(t, err))
}

func TestValidate_FillOrKillIsMarketType(t *testing.T) {
	v := testValidator(t)

	intent := contracts.OrderIntent{
		Side:    contracts.SideBuy,
		Variant: contracts.VariantFillOrKill,
		TokenID: "no-1",
		Input:   contracts.DollarInput(19),
	}

	order, err := v.Validate(context.Background(), intent, testInstrument(), AccountState{Balance: 100})
	require.NoError(t, err)

	assert.True(t, order.MarketType)
	assert.Equal(t, contracts.TIFFillOrKill, order.TIF)
	assert.Equal(t, 25.0, order.Shares, "$19 at live 0.76 is 25 shares")
}

func TestValidate_UnknownOutcome(t *testing.T) {
	v := testValidator(t)

	intent := contracts.OrderIntent{
		Side:    contracts.SideBuy,
		Variant: contracts.VariantMarket,
		TokenID: "nope",
		Input:   contracts.DollarInput(10),
	}

	_, err := v.Validate(context.Background(), intent, testInstrument(), AccountState{Balance: 100})
	assert.Equal(t, contracts.ReasonUnknownOutcome, rejectReason(t, err))
}

func TestValidate_Idempotent(t *testing.T) {
	v := testValidator(t).WithClock(func() time.Time {
		return time.Unix(5000, 0)
	})

	intent := contracts.OrderIntent{
		Side:             contracts.SideBuy,
		Variant:          contracts.VariantGoodTilDate,
		TokenID:          "yes-1",
		Input:            contracts.DollarInput(20),
		LimitPrice:       0.25,
		ExpirationWindow: time.Hour,
	}

	first, err := v.Validate(context.Background(), intent, testInstrument(), AccountState{Balance: 100})
	require.NoError(t, err)
	second, err := v.Validate(context.Background(), intent, testInstrument(), AccountState{Balance: 100})
	require.NoError(t, err)

	assert.Equal(t, first, second, "identical inputs yield an identical order")
}
