package monitor

import (
	"time"
)

// EventType 表示日志事件类型。
type EventType string

const (
	EventQuoteIssued    EventType = "quote_issued"
	EventQuoteApplied   EventType = "quote_applied"
	EventQuoteDiscarded EventType = "quote_discarded"
	EventQuoteFailed    EventType = "quote_failed"
	EventQuoteCleared   EventType = "quote_cleared"
	EventOrderSubmitted EventType = "order_submitted"
	EventOrderCompleted EventType = "order_completed"
	EventOrderFailed    EventType = "order_failed"
	EventOrderRejected  EventType = "order_rejected"
	EventError          EventType = "error"
)

// Event 封装通用日志事件。
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// QuotePayload 记录报价生命周期。
type QuotePayload struct {
	SequenceID    uint64 `json:"sequence_id"`
	Latest        uint64 `json:"latest"`
	Pair          string `json:"pair,omitempty"`
	PayAmount     string `json:"pay_amount,omitempty"`
	Rate          string `json:"rate,omitempty"`
	ReceiveAmount string `json:"receive_amount,omitempty"`
	Error         string `json:"error,omitempty"`
	LatencyMs     int64  `json:"latency_ms,omitempty"`
}

// OrderPayload 记录订单提交与结果。
type OrderPayload struct {
	Reference       string `json:"reference"`
	Mode            string `json:"mode"`
	Pair            string `json:"pair"`
	PayAmount       string `json:"pay_amount"`
	ExpectedReceive string `json:"expected_receive,omitempty"`
	QuoteSequenceID uint64 `json:"quote_sequence_id"`
	SlippageBps     int    `json:"slippage_bps"`
	DeadlineMinutes int    `json:"deadline_minutes"`
	Status          string `json:"status"`
	ExecutedAmount  string `json:"executed_amount,omitempty"`
	Error           string `json:"error,omitempty"`
	LatencyMs       int64  `json:"latency_ms,omitempty"`
}

// ErrorPayload 记录异常。
type ErrorPayload struct {
	Message string                 `json:"message"`
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}
