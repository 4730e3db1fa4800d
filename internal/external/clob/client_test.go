package clob

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/predictdesk/engine/internal/contracts"
	"github.com/predictdesk/engine/internal/trading"
	"github.com/predictdesk/engine/pkg/config"
	"github.com/predictdesk/engine/pkg/httputil"
	"github.com/predictdesk/engine/pkg/logger"
)

func testClient(baseURL string) *Client {
	cfg := config.CLOBConfig{
		BaseURL:    baseURL,
		APIKey:     "key",
		APISecret:  "c2VjcmV0", // base64url "secret"
		Passphrase: "phrase",
		Funder:     "0xfunder",
	}
	return NewClient(cfg, httputil.New(logger.NewNop()).DisableRetry(), logger.NewNop())
}

func TestFetchTickSize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok-1", r.URL.Query().Get("token_id"))
		json.NewEncoder(w).Encode(tickSizeResponse{MinimumTickSize: "0.01"})
	}))
	defer srv.Close()

	tick, err := testClient(srv.URL).FetchTickSize(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, 0.01, tick)
}

func TestFetchTickSize_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchTickSize(context.Background(), "tok-1")
	assert.True(t, contracts.IsTransport(err))
}

func TestFetchTickSize_BadValue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(tickSizeResponse{MinimumTickSize: "0"})
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchTickSize(context.Background(), "tok-1")
	assert.True(t, contracts.IsTransport(err))
}

func TestFetchInstrument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/markets/cond-1", r.URL.Path)
		json.NewEncoder(w).Encode(marketResponse{
			ConditionID:  "cond-1",
			Question:     "Will it settle?",
			MinOrderSize: "5",
			Tokens: []token{
				{TokenID: "tok-yes", Outcome: "Yes", Price: 0.62},
				{TokenID: "tok-no", Outcome: "No", Price: 0.39},
			},
		})
	}))
	defer srv.Close()

	inst, err := testClient(srv.URL).FetchInstrument(context.Background(), "cond-1")
	require.NoError(t, err)

	assert.Equal(t, "cond-1", inst.ConditionID)
	assert.Equal(t, 5.0, inst.MinOrderSize)
	assert.Equal(t, "tok-yes", inst.Outcomes[0].TokenID)
	assert.Equal(t, 0.39, inst.Outcomes[1].Price)
}

func TestSubmit_Accepted(t *testing.T) {
	var got orderPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/order", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("POLY_API_KEY"))
		assert.NotEmpty(t, r.Header.Get("POLY_SIGNATURE"))
		assert.NotEmpty(t, r.Header.Get("POLY_TIMESTAMP"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(orderResponse{Success: true, OrderID: "ord-1", Status: "live"})
	}))
	defer srv.Close()

	orderID, err := testClient(srv.URL).Submit(context.Background(), trading.ExchangeRequest{
		TokenID:      "tok-1",
		Side:         contracts.SideBuy,
		Quantity:     20.5,
		QuantityUnit: contracts.UnitDollars,
		TIF:          contracts.TIFFillAndKill,
		ClientID:     "cli-1",
	})

	require.NoError(t, err)
	assert.Equal(t, "ord-1", orderID)
	assert.Equal(t, "20.5", got.Amount)
	assert.Equal(t, "FAK", got.OrderType)
	assert.Equal(t, "0xfunder", got.Owner)
	assert.Empty(t, got.Price, "market orders carry no price")
}

func TestSubmit_LimitCarriesPriceAndExpiration(t *testing.T) {
	var got orderPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(orderResponse{Success: true, OrderID: "ord-2"})
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Submit(context.Background(), trading.ExchangeRequest{
		TokenID:      "tok-1",
		Side:         contracts.SideSell,
		Quantity:     25,
		QuantityUnit: contracts.UnitShares,
		Price:        0.4,
		TIF:          contracts.TIFGoodTilDate,
		Expiration:   1700000000,
	})

	require.NoError(t, err)
	assert.Equal(t, "0.4", got.Price)
	assert.Equal(t, int64(1700000000), got.Expiration)
}

func TestSubmit_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(orderResponse{Success: false, ErrorMsg: "not enough balance", ErrorCode: "insufficient"})
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Submit(context.Background(), trading.ExchangeRequest{TokenID: "tok-1"})

	require.Error(t, err)
	assert.True(t, contracts.IsExchangeRejected(err))

	var rejected *contracts.ExchangeRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "insufficient", rejected.Code)
}

func TestSubmit_ErrorStatusWithBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid order"})
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Submit(context.Background(), trading.ExchangeRequest{TokenID: "tok-1"})
	assert.True(t, contracts.IsExchangeRejected(err))
}

func TestSubmit_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	_, err := testClient(srv.URL).Submit(context.Background(), trading.ExchangeRequest{TokenID: "tok-1"})
	assert.True(t, contracts.IsTransport(err))
}

func TestCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cancel", r.URL.Path)
		json.NewEncoder(w).Encode(cancelResponse{Canceled: []string{"ord-1"}})
	}))
	defer srv.Close()

	assert.NoError(t, testClient(srv.URL).Cancel(context.Background(), "ord-1"))
}

func TestCancel_NotCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(cancelResponse{NotCanceled: map[string]string{"ord-1": "already filled"}})
	}))
	defer srv.Close()

	err := testClient(srv.URL).Cancel(context.Background(), "ord-1")
	assert.True(t, contracts.IsExchangeRejected(err))
}
