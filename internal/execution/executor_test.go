package execution

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"swapdesk/internal/asset"
	"swapdesk/internal/settings"
)

func TestBuildRequest_MapsLegs(t *testing.T) {
	buy := makeBaseOrder(asset.ModeBuy, "100.129")
	req, err := BuildRequest(buy)
	if err != nil {
		t.Fatalf("BuildRequest returned error: %v", err)
	}
	if req.Asset != "BTC" || req.PayCurrency != "USD" {
		t.Errorf("unexpected legs asset=%s pay=%s", req.Asset, req.PayCurrency)
	}
	if !req.Amount.Equal(decimal.RequireFromString("100.12")) {
		t.Errorf("expected fiat amount truncated to 2dp, got %s", req.Amount)
	}
	if req.SlippageBps != 50 || req.DeadlineMinutes != 20 {
		t.Errorf("settings must pass through unchanged, got %+v", req)
	}

	sell := makeBaseOrder(asset.ModeSell, "0.12345678")
	req, err = BuildRequest(sell)
	if err != nil {
		t.Fatalf("BuildRequest returned error: %v", err)
	}
	if req.Asset != "BTC" || req.PayCurrency != "USD" {
		t.Errorf("unexpected legs asset=%s pay=%s", req.Asset, req.PayCurrency)
	}
	if !req.Amount.Equal(decimal.RequireFromString("0.123456")) {
		t.Errorf("expected crypto amount truncated to 6dp, got %s", req.Amount)
	}
}

func TestBuildRequest_Errors(t *testing.T) {
	order := makeBaseOrder(asset.ModeBuy, "0")
	if _, err := BuildRequest(order); !errors.Is(err, ErrInvalidOrder) || !strings.Contains(err.Error(), "金额") {
		t.Fatalf("expected amount error, got %v", err)
	}

	order = makeBaseOrder(asset.ModeBuy, "10")
	order.WalletID = ""
	if _, err := BuildRequest(order); !errors.Is(err, ErrInvalidOrder) {
		t.Fatalf("expected wallet error, got %v", err)
	}

	order = makeBaseOrder(asset.Mode("hold"), "10")
	if _, err := BuildRequest(order); !errors.Is(err, ErrInvalidOrder) {
		t.Fatalf("expected mode error, got %v", err)
	}
}

func TestExecutorConfirm_SingleFlight(t *testing.T) {
	svc := &mockService{}
	var pending []func()
	exec := NewExecutor(svc, Options{
		Go:           func(f func()) { pending = append(pending, f) },
		NewReference: func() string { return "ref-1" },
	}, nil)

	var results []Result
	done := func(r Result) { results = append(results, r) }

	order, err := exec.Confirm(context.Background(), makeBaseOrder(asset.ModeBuy, "100"), done)
	if err != nil {
		t.Fatalf("Confirm returned error: %v", err)
	}
	if order.Reference != "ref-1" || order.Status != OrderStatusSubmitted {
		t.Errorf("unexpected stamped order %+v", order)
	}
	if !exec.InFlight() {
		t.Fatalf("expected order in flight")
	}

	if _, err := exec.Confirm(context.Background(), makeBaseOrder(asset.ModeBuy, "100"), done); !errors.Is(err, ErrOrderInFlight) {
		t.Fatalf("expected ErrOrderInFlight on double confirm, got %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected exactly one submission, got %d", len(pending))
	}

	pending[0]()
	if exec.InFlight() {
		t.Fatalf("flag must be released after completion")
	}
	if len(svc.calls) != 1 || svc.calls[0] != "Buy" {
		t.Fatalf("unexpected service calls %v", svc.calls)
	}
	if len(results) != 1 || !results[0].Executed || results[0].Order.Status != OrderStatusCompleted {
		t.Fatalf("unexpected result %+v", results)
	}
	if svc.last.Reference != "ref-1" {
		t.Errorf("reference must be forwarded, got %q", svc.last.Reference)
	}
}

func TestExecutorConfirm_FailureKeepsMessageVerbatim(t *testing.T) {
	svc := &mockService{err: errors.New("Insufficient balance in wallet")}
	exec := NewExecutor(svc, Options{Go: func(f func()) { f() }}, nil)

	var got Result
	if _, err := exec.Confirm(context.Background(), makeBaseOrder(asset.ModeSell, "0.5"), func(r Result) { got = r }); err != nil {
		t.Fatalf("Confirm returned error: %v", err)
	}
	if got.Executed || got.Order.Status != OrderStatusFailed {
		t.Fatalf("expected failed result, got %+v", got)
	}
	var execErr *Error
	if !errors.As(got.Err, &execErr) {
		t.Fatalf("expected *Error, got %T", got.Err)
	}
	if got.Err.Error() != "Insufficient balance in wallet" {
		t.Errorf("message must be verbatim, got %q", got.Err.Error())
	}
	if len(svc.calls) != 1 || svc.calls[0] != "Sell" {
		t.Errorf("unexpected calls %v", svc.calls)
	}
	if exec.InFlight() {
		t.Errorf("flag must be released after failure")
	}
}

func TestExecutorConfirm_InvalidOrderDoesNotAcquire(t *testing.T) {
	svc := &mockService{}
	exec := NewExecutor(svc, Options{Go: func(f func()) { f() }}, nil)

	if _, err := exec.Confirm(context.Background(), makeBaseOrder(asset.ModeBuy, "-1"), nil); !errors.Is(err, ErrInvalidOrder) {
		t.Fatalf("expected ErrInvalidOrder, got %v", err)
	}
	if exec.InFlight() || len(svc.calls) != 0 {
		t.Fatalf("invalid order must not reach the service")
	}
}

func TestExecutorConfirm_PanicIsContained(t *testing.T) {
	exec := NewExecutor(panicService{}, Options{Go: func(f func()) { f() }}, nil)

	var got Result
	if _, err := exec.Confirm(context.Background(), makeBaseOrder(asset.ModeBuy, "10"), func(r Result) { got = r }); err != nil {
		t.Fatalf("Confirm returned error: %v", err)
	}
	if got.Err == nil || got.Executed {
		t.Fatalf("expected contained panic as error, got %+v", got)
	}
}

func makeBaseOrder(mode asset.Mode, amount string) Order {
	reg := asset.DefaultRegistry()
	usd, _ := reg.Lookup("USD")
	btc, _ := reg.Lookup("BTC")
	pair, err := asset.ResolvePair(mode, usd, btc)
	if err != nil {
		pair, _ = asset.ResolvePair(asset.ModeBuy, usd, btc)
	}
	return Order{
		Mode:            mode,
		Pair:            pair,
		PayAmount:       decimal.RequireFromString(amount),
		WalletID:        "wallet-usd",
		QuoteSequenceID: 3,
		Settings:        settings.Execution{SlippageBps: 50, DeadlineMinutes: 20},
	}
}

type mockService struct {
	calls []string
	last  Request
	err   error
}

func (m *mockService) Buy(_ context.Context, req Request) (Receipt, error) {
	m.calls = append(m.calls, "Buy")
	m.last = req
	if m.err != nil {
		return Receipt{}, m.err
	}
	return Receipt{Status: "completed", ExecutedAmount: req.Amount}, nil
}

func (m *mockService) Sell(_ context.Context, req Request) (Receipt, error) {
	m.calls = append(m.calls, "Sell")
	m.last = req
	if m.err != nil {
		return Receipt{}, m.err
	}
	return Receipt{Status: "completed", ExecutedAmount: req.Amount}, nil
}

type panicService struct{}

func (panicService) Buy(context.Context, Request) (Receipt, error)  { panic("boom") }
func (panicService) Sell(context.Context, Request) (Receipt, error) { panic("boom") }
