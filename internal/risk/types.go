package risk

import (
	"strings"

	"github.com/shopspring/decimal"

	"swapdesk/internal/quote"
)

// StatusType 描述执行资格评估结果状态。
type StatusType string

const (
	StatusProceed StatusType = "proceed"
	StatusDeny    StatusType = "deny"
)

// Reason 为拒绝执行的原因代码。
type Reason string

const (
	ReasonNoQuote           Reason = "no_quote"
	ReasonStaleQuote        Reason = "stale_quote"
	ReasonQuoteMismatch     Reason = "quote_mismatch"
	ReasonNonPositiveAmount Reason = "non_positive_amount"
	ReasonInsufficientFunds Reason = "insufficient_balance"
	ReasonOrderInFlight     Reason = "order_in_flight"
)

var reasonMessages = map[Reason]string{
	ReasonNoQuote:           "暂无可用报价",
	ReasonStaleQuote:        "报价已过期，等待最新报价",
	ReasonQuoteMismatch:     "报价与当前输入不一致",
	ReasonNonPositiveAmount: "金额必须大于0",
	ReasonInsufficientFunds: "余额不足",
	ReasonOrderInFlight:     "已有订单在处理中",
}

// Message 返回面向用户的说明。
func (r Reason) Message() string {
	if msg, ok := reasonMessages[r]; ok {
		return msg
	}
	return string(r)
}

// Input 为执行资格评估输入。
type Input struct {
	Quote         *quote.Quote
	LatestIssued  uint64
	PayAmount     decimal.Decimal
	Available     decimal.Decimal
	OrderInFlight bool
}

// Evaluation 为评估输出。
type Evaluation struct {
	Status  StatusType
	Reasons []Reason
}

// Allowed 判断是否允许执行。
func (e Evaluation) Allowed() bool {
	return e.Status == StatusProceed
}

// Err 在拒绝时返回 *ValidationError。
func (e Evaluation) Err() error {
	if e.Allowed() {
		return nil
	}
	return &ValidationError{Reasons: e.Reasons}
}

// ValidationError 为本地校验失败，不会发往网络。
type ValidationError struct {
	Reasons []Reason
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Reasons))
	for _, r := range e.Reasons {
		parts = append(parts, r.Message())
	}
	return "risk: " + strings.Join(parts, "; ")
}

// Has 判断是否包含指定原因。
func (e *ValidationError) Has(r Reason) bool {
	for _, reason := range e.Reasons {
		if reason == r {
			return true
		}
	}
	return false
}
