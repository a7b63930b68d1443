package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"swapdesk/internal/asset"
	"swapdesk/internal/execution"
	"swapdesk/internal/metrics"
	"swapdesk/internal/monitor"
	"swapdesk/internal/quote"
	"swapdesk/internal/wallet"
)

func TestJournalObserver_FeedsMetricsAndJournal(t *testing.T) {
	_, journal := newJournal(t)
	m := metrics.New()
	obs := newJournalObserver(m, journal, zaptest.NewLogger(t))

	reg := asset.DefaultRegistry()
	usd, _ := reg.Lookup("USD")
	btc, _ := reg.Lookup("BTC")
	pair, err := asset.ResolvePair(asset.ModeBuy, usd, btc)
	require.NoError(t, err)

	order := execution.Order{
		Mode:      asset.ModeBuy,
		Pair:      pair,
		PayAmount: decimal.NewFromInt(100),
		Reference: "ref-1",
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	obs.QuoteEvent(quote.Event{
		Type:       quote.EventApplied,
		SequenceID: 1,
		Latest:     1,
		Quote:      quote.Quote{SequenceID: 1, Pair: pair, Rate: decimal.NewFromInt(50000), ReceiveAmount: decimal.RequireFromString("0.002")},
		Latency:    80 * time.Millisecond,
	})
	obs.OrderSubmitted(order)
	obs.OrderFinished(execution.Result{Order: order, Err: errors.New("Insufficient balance"), Latency: time.Second})
	obs.OrderRejected(order, execution.ErrOrderInFlight)
	obs.WalletRefreshed(wallet.Snapshot{}, nil)
	obs.WalletRefreshed(wallet.Snapshot{}, errors.New("gateway timeout"))
	journal.Close()

	events, err := journal.ListEvents(context.Background(), "", 0)
	require.NoError(t, err)
	types := make([]monitor.EventType, 0, len(events))
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	require.Equal(t, []monitor.EventType{
		monitor.EventError,
		monitor.EventOrderRejected,
		monitor.EventOrderFailed,
		monitor.EventOrderSubmitted,
		monitor.EventQuoteApplied,
	}, types)

	n, err := testutil.GatherAndCount(m.Registry(), "swapdesk_order_results_total")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	n, err = testutil.GatherAndCount(m.Registry(), "swapdesk_wallet_refresh_total")
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestJournalObserver_NilSinks(t *testing.T) {
	obs := newJournalObserver(nil, nil, nil)
	obs.QuoteEvent(quote.Event{Type: quote.EventIssued})
	obs.OrderSubmitted(execution.Order{})
	obs.OrderFinished(execution.Result{})
	obs.OrderRejected(execution.Order{}, errors.New("x"))
	obs.WalletRefreshed(wallet.Snapshot{}, errors.New("x"))
}
