package app

import (
	"go.uber.org/zap"

	"swapdesk/internal/engine"
	"swapdesk/internal/execution"
	"swapdesk/internal/metrics"
	"swapdesk/internal/monitor"
	"swapdesk/internal/quote"
	"swapdesk/internal/wallet"
)

// journalObserver 把引擎事件同时写入指标与事件日志，两者都可以为空。
type journalObserver struct {
	metrics *metrics.Metrics
	journal *monitor.Service
	logger  *zap.Logger
}

var _ engine.Observer = (*journalObserver)(nil)

func newJournalObserver(m *metrics.Metrics, journal *monitor.Service, logger *zap.Logger) *journalObserver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &journalObserver{metrics: m, journal: journal, logger: logger}
}

func (o *journalObserver) QuoteEvent(ev quote.Event) {
	o.metrics.QuoteEvent(string(ev.Type), ev.Latency.Seconds())
	if o.journal != nil {
		o.journal.RecordQuoteEvent(ev)
	}
}

func (o *journalObserver) OrderSubmitted(order execution.Order) {
	o.metrics.OrderSubmitted()
	if o.journal != nil {
		o.journal.RecordOrderSubmitted(order)
	}
}

func (o *journalObserver) OrderFinished(result execution.Result) {
	o.metrics.OrderFinished(string(result.Order.Mode), result.Err == nil, result.Latency.Seconds())
	if o.journal != nil {
		o.journal.RecordOrder(result)
	}
}

func (o *journalObserver) OrderRejected(order execution.Order, err error) {
	o.metrics.OrderRejected(string(order.Mode))
	if o.journal != nil {
		o.journal.RecordOrderRejected(order, err)
	}
}

func (o *journalObserver) WalletRefreshed(snapshot wallet.Snapshot, err error) {
	o.metrics.WalletRefresh(err == nil)
	if err == nil {
		return
	}
	o.logger.Warn("钱包刷新失败", zap.Error(err))
	if o.journal != nil {
		o.journal.RecordError("钱包刷新失败", err, map[string]interface{}{
			"wallets": len(snapshot.Wallets),
		})
	}
}
