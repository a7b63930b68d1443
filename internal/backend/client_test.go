package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"swapdesk/internal/asset"
	"swapdesk/internal/config"
	"swapdesk/internal/execution"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(config.BackendConfig{
		BaseURL: srv.URL + "/",
		Token:   "secret",
		Timeout: 2 * time.Second,
		Retry: config.RetryConfig{
			MaxAttempts: 3,
			MinDelay:    time.Millisecond,
			MaxDelay:    5 * time.Millisecond,
		},
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return client
}

func writeEnvelope(w http.ResponseWriter, status int, env map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

func TestClient_GetQuote(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/exchange/quote", r.URL.Path)
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.Equal(t, "USD", r.URL.Query().Get("from"))
		require.Equal(t, "BTC", r.URL.Query().Get("to"))
		require.Equal(t, "100", r.URL.Query().Get("amount"))
		writeEnvelope(w, http.StatusOK, map[string]interface{}{
			"status": "success",
			"data":   map[string]interface{}{"rate": 50000, "convertedAmount": "0.002", "fee": "0.1"},
		})
	}))

	reg := asset.DefaultRegistry()
	usd, _ := reg.Lookup("USD")
	btc, _ := reg.Lookup("BTC")

	res, err := client.GetQuote(context.Background(), usd, btc, decimal.NewFromInt(100))
	require.NoError(t, err)
	require.True(t, res.Rate.Equal(decimal.NewFromInt(50000)))
	require.True(t, res.ConvertedAmount.Equal(decimal.RequireFromString("0.002")))
	require.True(t, res.Fee.Equal(decimal.RequireFromString("0.1")))
}

func TestClient_GetRetriesTransientFailures(t *testing.T) {
	var calls int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			writeEnvelope(w, http.StatusServiceUnavailable, map[string]interface{}{"status": "error", "message": "busy"})
			return
		}
		writeEnvelope(w, http.StatusOK, map[string]interface{}{
			"status": "success",
			"data": []map[string]interface{}{
				{"id": "w1", "currency": "USD", "balance": "500.00", "isFrozen": false},
				{"id": "w2", "currency": "BTC", "balance": "0.5", "isFrozen": true},
			},
		})
	}))

	wallets, err := client.GetWallets(context.Background())
	require.NoError(t, err)
	require.Equal(t, int32(3), atomic.LoadInt32(&calls))
	require.Len(t, wallets, 2)
	require.Equal(t, "w1", wallets[0].WalletID)
	require.True(t, wallets[1].IsFrozen)
}

func TestClient_ClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeEnvelope(w, http.StatusBadRequest, map[string]interface{}{"status": "error", "message": "Unsupported pair"})
	}))

	_, err := client.GetRecentTrades(context.Background(), 5)
	require.Error(t, err)
	require.Equal(t, "Unsupported pair", err.Error())
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_BuySendsOnceAndKeepsMessage(t *testing.T) {
	var calls int32
	var got orderPayload
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/exchange/buy", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeEnvelope(w, http.StatusInternalServerError, map[string]interface{}{"status": "error", "message": "Insufficient balance in wallet"})
	}))

	_, err := client.Buy(context.Background(), execution.Request{
		Asset:           "BTC",
		Amount:          decimal.RequireFromString("100.00"),
		PayCurrency:     "USD",
		WalletID:        "w1",
		SlippageBps:     50,
		DeadlineMinutes: 20,
		Reference:       "ref-1",
	})
	require.Error(t, err)
	require.Equal(t, "Insufficient balance in wallet", err.Error())
	require.True(t, IsAPIError(err))
	require.Equal(t, int32(1), atomic.LoadInt32(&calls), "orders must never be retried")
	require.Equal(t, "BTC", got.Asset)
	require.Equal(t, "USD", got.PayCurrency)
	require.Equal(t, "ref-1", got.Reference)
	require.True(t, got.Amount.Equal(decimal.NewFromInt(100)))
}

func TestClient_SellSuccess(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/exchange/sell", r.URL.Path)
		writeEnvelope(w, http.StatusOK, map[string]interface{}{
			"status": "success",
			"data":   map[string]interface{}{"status": "completed", "executedAmount": "25000.00"},
		})
	}))

	receipt, err := client.Sell(context.Background(), execution.Request{Asset: "BTC", Amount: decimal.RequireFromString("0.5"), PayCurrency: "USD", WalletID: "w2", Reference: "ref-2"})
	require.NoError(t, err)
	require.Equal(t, "completed", receipt.Status)
	require.Equal(t, "ref-2", receipt.Reference)
	require.True(t, receipt.ExecutedAmount.Equal(decimal.NewFromInt(25000)))
}

func TestClient_StatusErrorWithOK(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, map[string]interface{}{"status": "error", "message": "Quote unavailable"})
	}))

	reg := asset.DefaultRegistry()
	usd, _ := reg.Lookup("USD")
	btc, _ := reg.Lookup("BTC")
	_, err := client.GetQuote(context.Background(), usd, btc, decimal.NewFromInt(1))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, "Quote unavailable", apiErr.Error())
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	_, err := NewClient(config.BackendConfig{}, nil)
	require.ErrorIs(t, err, ErrNotConfigured)
}
