package monitor

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"swapdesk/internal/execution"
	"swapdesk/internal/quote"
	"swapdesk/internal/store"
)

const (
	defaultBuffer = 256
	writeTimeout  = 5 * time.Second
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS journal_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	event_type TEXT NOT NULL,
	payload TEXT NOT NULL,
	created_at TEXT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_journal_events_type ON journal_events(event_type)`,
}

// Service 负责持久化报价与订单事件。写入在后台协程中进行，不阻塞事件循环。
type Service struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time

	queue     chan Event
	wg        sync.WaitGroup
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// NewService 初始化日志服务，创建所需表结构并启动后台写入。
func NewService(st *store.Store, buffer int, logger *zap.Logger) (*Service, error) {
	if st == nil {
		return nil, fmt.Errorf("monitor: store 不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if buffer <= 0 {
		buffer = defaultBuffer
	}

	if err := st.Migrate(context.Background(), schema...); err != nil {
		return nil, fmt.Errorf("monitor: 初始化表失败: %w", err)
	}

	s := &Service{
		db:     st.DB(),
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		queue:  make(chan Event, buffer),
	}

	s.wg.Add(1)
	go s.writeLoop()

	return s, nil
}

func (s *Service) writeLoop() {
	defer s.wg.Done()
	for event := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := s.Record(ctx, event); err != nil {
			s.logger.Warn("写入日志事件失败",
				zap.String("type", string(event.Type)),
				zap.Error(err),
			)
		}
		cancel()
	}
}

// Record 同步写入单个事件。
func (s *Service) Record(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("monitor: 序列化事件失败: %w", err)
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO journal_events (event_type, payload, created_at) VALUES (?, ?, ?)`,
		string(event.Type), string(payload), event.Timestamp.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("monitor: 写入事件失败: %w", err)
	}

	return nil
}

// Enqueue 异步写入事件，缓冲区满或已关闭时丢弃并返回 false。
func (s *Service) Enqueue(event Event) bool {
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}

	select {
	case s.queue <- event:
		return true
	default:
		s.logger.Warn("日志缓冲区已满，丢弃事件", zap.String("type", string(event.Type)))
		return false
	}
}

// RecordQuoteEvent 记录报价调度器事件。
func (s *Service) RecordQuoteEvent(ev quote.Event) {
	payload := QuotePayload{
		SequenceID: ev.SequenceID,
		Latest:     ev.Latest,
		LatencyMs:  ev.Latency.Milliseconds(),
	}
	if !ev.Request.Pair.Pay.IsZero() {
		payload.Pair = ev.Request.Pair.String()
		payload.PayAmount = ev.Request.PayAmount.String()
	}
	if ev.Type == quote.EventApplied {
		payload.Rate = ev.Quote.Rate.String()
		payload.ReceiveAmount = ev.Quote.Pair.Receive.Format(ev.Quote.ReceiveAmount)
	}
	if ev.Err != nil {
		payload.Error = ev.Err.Error()
	}

	s.Enqueue(Event{
		Type:      EventType(ev.Type),
		Timestamp: ev.At,
		Payload:   payload,
	})
}

// RecordOrderSubmitted 记录已提交的订单。
func (s *Service) RecordOrderSubmitted(order execution.Order) {
	s.Enqueue(Event{
		Type:      EventOrderSubmitted,
		Timestamp: order.CreatedAt,
		Payload:   orderPayload(order),
	})
}

// RecordOrderRejected 记录被本地拒绝的确认。
func (s *Service) RecordOrderRejected(order execution.Order, err error) {
	payload := orderPayload(order)
	if err != nil {
		payload.Error = err.Error()
	}
	s.Enqueue(Event{Type: EventOrderRejected, Payload: payload})
}

// RecordOrder 记录订单执行结果。
func (s *Service) RecordOrder(result execution.Result) {
	payload := orderPayload(result.Order)
	payload.LatencyMs = result.Latency.Milliseconds()
	eventType := EventOrderCompleted
	if result.Err != nil {
		eventType = EventOrderFailed
		payload.Error = result.Err.Error()
	} else {
		payload.ExecutedAmount = result.Receipt.ExecutedAmount.String()
		if result.Receipt.Status != "" {
			payload.Status = result.Receipt.Status
		}
	}
	s.Enqueue(Event{Type: eventType, Payload: payload})
}

// RecordError 记录异常。
func (s *Service) RecordError(msg string, err error, ctxMap map[string]interface{}) {
	payload := ErrorPayload{
		Message: msg,
		Context: ctxMap,
	}
	if err != nil {
		payload.Error = err.Error()
	}
	s.Enqueue(Event{Type: EventError, Payload: payload})
}

func orderPayload(order execution.Order) OrderPayload {
	payload := OrderPayload{
		Reference:       order.Reference,
		Mode:            string(order.Mode),
		Pair:            order.Pair.String(),
		PayAmount:       order.Pair.Pay.Format(order.PayAmount),
		QuoteSequenceID: order.QuoteSequenceID,
		SlippageBps:     order.Settings.SlippageBps,
		DeadlineMinutes: order.Settings.DeadlineMinutes,
		Status:          string(order.Status),
	}
	if !order.ExpectedReceive.IsZero() {
		payload.ExpectedReceive = order.Pair.Receive.Format(order.ExpectedReceive)
	}
	return payload
}

// ListEvents 按类型检索最近事件。
func (s *Service) ListEvents(ctx context.Context, eventType EventType, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT event_type, payload, created_at FROM journal_events`
	args := make([]interface{}, 0, 2)
	if eventType != "" {
		query += ` WHERE event_type = ?`
		args = append(args, string(eventType))
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("monitor: 查询事件失败: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0, limit)
	for rows.Next() {
		var (
			typ     string
			payload string
			created string
		)
		if scanErr := rows.Scan(&typ, &payload, &created); scanErr != nil {
			return nil, fmt.Errorf("monitor: 解析事件失败: %w", scanErr)
		}

		ts, parseErr := time.Parse(time.RFC3339Nano, created)
		if parseErr != nil {
			ts = time.Time{}
		}

		events = append(events, Event{
			Type:      EventType(typ),
			Timestamp: ts,
			Payload:   json.RawMessage(payload),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("monitor: 读取事件失败: %w", err)
	}

	return events, nil
}

// Close 停止接收新事件并等待缓冲区写完。
func (s *Service) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.queue)
		s.mu.Unlock()
		s.wg.Wait()
	})
}
