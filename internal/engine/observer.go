package engine

import (
	"swapdesk/internal/execution"
	"swapdesk/internal/quote"
	"swapdesk/internal/wallet"
)

// Observer 在事件循环上接收引擎事件，实现方不得阻塞。
type Observer interface {
	QuoteEvent(ev quote.Event)
	OrderSubmitted(order execution.Order)
	OrderFinished(result execution.Result)
	OrderRejected(order execution.Order, err error)
	WalletRefreshed(snapshot wallet.Snapshot, err error)
}

// NopObserver 为空实现，可嵌入只关心部分事件的观察者。
type NopObserver struct{}

func (NopObserver) QuoteEvent(quote.Event)                 {}
func (NopObserver) OrderSubmitted(execution.Order)         {}
func (NopObserver) OrderFinished(execution.Result)         {}
func (NopObserver) OrderRejected(execution.Order, error)   {}
func (NopObserver) WalletRefreshed(wallet.Snapshot, error) {}
