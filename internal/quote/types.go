package quote

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"swapdesk/internal/asset"
)

// RateResult 为报价服务的原始返回。
type RateResult struct {
	Rate            decimal.Decimal
	ConvertedAmount decimal.Decimal
	Fee             decimal.Decimal
}

// RateService 报价服务，幂等无副作用。
type RateService interface {
	GetQuote(ctx context.Context, from, to asset.Asset, amount decimal.Decimal) (RateResult, error)
}

// Input 为驱动报价的输入状态。
type Input struct {
	Pair   asset.Pair
	Amount decimal.Decimal
}

// Equal 判断两个输入是否等价。
func (in Input) Equal(other Input) bool {
	return in.Pair == other.Pair && in.Amount.Equal(other.Amount)
}

// Request 为一次报价请求，SequenceID 单调递增。
type Request struct {
	SequenceID uint64
	Pair       asset.Pair
	PayAmount  decimal.Decimal
	IssuedAt   time.Time
}

// Quote 为已生效的报价。
type Quote struct {
	SequenceID    uint64
	Pair          asset.Pair
	PayAmount     decimal.Decimal
	Rate          decimal.Decimal
	ReceiveAmount decimal.Decimal
	Fee           decimal.Decimal
	ResolvedAt    time.Time
}

// State 描述调度器所处阶段。
type State string

const (
	StateIdle       State = "idle"
	StateDebouncing State = "debouncing"
	StateFetching   State = "fetching"
	StateQuoted     State = "quoted"
	StateFailed     State = "failed"
)

// EventType 描述调度器对外发布的事件。
type EventType string

const (
	EventIssued    EventType = "quote_issued"
	EventApplied   EventType = "quote_applied"
	EventDiscarded EventType = "quote_discarded"
	EventFailed    EventType = "quote_failed"
	EventCleared   EventType = "quote_cleared"
)

// Event 为调度器状态变化通知。
type Event struct {
	Type       EventType
	SequenceID uint64
	Latest     uint64
	Request    Request
	Quote      Quote
	Err        error
	Latency    time.Duration
	At         time.Time
}

// Error 为属于最新请求的报价失败。
type Error struct {
	SequenceID uint64
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("quote #%d: %v", e.SequenceID, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
