package execution

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"swapdesk/internal/asset"
	"swapdesk/internal/settings"
)

// OrderStatus 表示订单生命周期阶段。
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusSubmitted OrderStatus = "submitted"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusFailed    OrderStatus = "failed"
)

// Order 为用户确认后生成的兑换订单。
type Order struct {
	Mode            asset.Mode
	Pair            asset.Pair
	PayAmount       decimal.Decimal
	ExpectedReceive decimal.Decimal
	WalletID        string
	QuoteSequenceID uint64
	Settings        settings.Execution
	Reference       string
	Status          OrderStatus
	CreatedAt       time.Time
}

// Request 为发往执行服务的请求体。
type Request struct {
	Asset           string
	Amount          decimal.Decimal
	PayCurrency     string
	WalletID        string
	SlippageBps     int
	DeadlineMinutes int
	Reference       string
}

// Receipt 为执行服务的返回。
type Receipt struct {
	Status         string
	ExecutedAmount decimal.Decimal
	Reference      string
}

// Service 执行服务，有副作用，每次确认最多调用一次。
type Service interface {
	Buy(ctx context.Context, req Request) (Receipt, error)
	Sell(ctx context.Context, req Request) (Receipt, error)
}

// Result 为执行结果摘要。
type Result struct {
	Order         Order
	Receipt       Receipt
	Executed      bool
	Err           error
	ExecutionTime time.Time
	Latency       time.Duration
}
