package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"swapdesk/internal/asset"
	"swapdesk/internal/config"
	"swapdesk/internal/execution"
	"swapdesk/internal/quote"
	"swapdesk/internal/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	st, err := store.NewSQLite(config.DatabaseConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	svc, err := NewService(st, 16, zaptest.NewLogger(t))
	require.NoError(t, err)
	return svc
}

func buyPair(t *testing.T) asset.Pair {
	t.Helper()
	reg := asset.DefaultRegistry()
	usd, _ := reg.Lookup("USD")
	btc, _ := reg.Lookup("BTC")
	pair, err := asset.ResolvePair(asset.ModeBuy, usd, btc)
	require.NoError(t, err)
	return pair
}

func TestService_JournalsQuoteAndOrderEvents(t *testing.T) {
	svc := newTestService(t)
	pair := buyPair(t)
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	req := quote.Request{SequenceID: 4, Pair: pair, PayAmount: decimal.NewFromInt(100)}
	svc.RecordQuoteEvent(quote.Event{Type: quote.EventIssued, SequenceID: 4, Latest: 4, Request: req, At: at})
	svc.RecordQuoteEvent(quote.Event{
		Type:       quote.EventApplied,
		SequenceID: 4,
		Latest:     4,
		Request:    req,
		Quote:      quote.Quote{SequenceID: 4, Pair: pair, Rate: decimal.NewFromInt(50000), ReceiveAmount: decimal.RequireFromString("0.002")},
		Latency:    120 * time.Millisecond,
		At:         at,
	})
	svc.RecordQuoteEvent(quote.Event{Type: quote.EventDiscarded, SequenceID: 3, Latest: 4, Request: req, At: at})

	order := execution.Order{
		Mode:      asset.ModeBuy,
		Pair:      pair,
		PayAmount: decimal.NewFromInt(100),
		Reference: "ref-1",
		Status:    execution.OrderStatusSubmitted,
		CreatedAt: at,
	}
	svc.RecordOrderSubmitted(order)
	svc.RecordOrder(execution.Result{Order: order, Err: errors.New("Insufficient balance")})
	svc.RecordError("刷新失败", errors.New("timeout"), map[string]interface{}{"op": "refresh"})
	svc.Close()

	ctx := context.Background()
	all, err := svc.ListEvents(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 6)
	require.Equal(t, EventError, all[0].Type)

	applied, err := svc.ListEvents(ctx, EventQuoteApplied, 10)
	require.NoError(t, err)
	require.Len(t, applied, 1)
	require.Equal(t, at, applied[0].Timestamp)

	var qp QuotePayload
	require.NoError(t, json.Unmarshal(applied[0].Payload.(json.RawMessage), &qp))
	require.Equal(t, uint64(4), qp.SequenceID)
	require.Equal(t, "0.002000", qp.ReceiveAmount)
	require.Equal(t, int64(120), qp.LatencyMs)

	failed, err := svc.ListEvents(ctx, EventOrderFailed, 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	var op OrderPayload
	require.NoError(t, json.Unmarshal(failed[0].Payload.(json.RawMessage), &op))
	require.Equal(t, "Insufficient balance", op.Error)
	require.Equal(t, "100.00", op.PayAmount)
}

func TestService_EnqueueAfterCloseIsDropped(t *testing.T) {
	svc := newTestService(t)
	svc.Close()
	svc.Close()
	require.False(t, svc.Enqueue(Event{Type: EventError}))
}

func TestNewService_RequiresStore(t *testing.T) {
	_, err := NewService(nil, 0, nil)
	require.Error(t, err)
}
