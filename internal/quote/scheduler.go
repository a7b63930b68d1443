package quote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"swapdesk/internal/asset"
	"swapdesk/internal/clock"
)

const (
	defaultDebounce = 500 * time.Millisecond
	defaultTimeout  = 8 * time.Second
)

// ErrEmptyQuote 表示报价服务既没有给出汇率也没有给出换算金额。
var ErrEmptyQuote = errors.New("quote: rate service returned empty quote")

// Options 控制调度器行为。
type Options struct {
	Debounce time.Duration
	Timeout  time.Duration
	Clock    clock.Clock
	// Dispatch 把回调投递回事件循环，定时器触发与报价返回都经由它执行。
	Dispatch func(func())
	// Go 启动异步报价调用，默认为 go 语句。
	Go       func(func())
	Listener func(Event)
}

// Scheduler 将高频输入收敛为每个稳定输入状态至多一个有效报价。
// 所有方法都必须在同一个事件循环上调用。
type Scheduler struct {
	rates    RateService
	opts     Options
	logger   *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	input    Input
	state    State
	timer    clock.Timer
	timerGen uint64
	issued   uint64
	awaiting uint64
	current  *Quote
	err      error
}

// NewScheduler 创建报价调度器。
func NewScheduler(rates RateService, opts Options, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = defaultDebounce
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Dispatch == nil {
		opts.Dispatch = func(f func()) { f() }
	}
	if opts.Go == nil {
		opts.Go = func(f func()) { go f() }
	}
	if opts.Listener == nil {
		opts.Listener = func(Event) {}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		rates:  rates,
		opts:   opts,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		state:  StateIdle,
	}
}

// Update 提交新的输入状态。金额为空或非正时立即清空报价，不发起请求。
func (s *Scheduler) Update(in Input) {
	if !in.Amount.IsPositive() || in.Pair.Pay.IsZero() || in.Pair.Receive.IsZero() {
		s.input = in
		s.Clear()
		return
	}

	if in.Equal(s.input) && s.state != StateIdle && s.state != StateFailed {
		return
	}

	s.input = in
	s.arm()
}

// Requote 以当前输入重新排队一次报价。
func (s *Scheduler) Requote() {
	if !s.input.Amount.IsPositive() {
		return
	}
	s.arm()
}

// Clear 取消待触发的定时器并作废当前报价与在途请求。
func (s *Scheduler) Clear() {
	s.stopTimer()
	hadState := s.state != StateIdle || s.current != nil
	s.current = nil
	s.err = nil
	s.awaiting = 0
	s.state = StateIdle
	if hadState {
		s.emit(Event{Type: EventCleared, Latest: s.issued})
	}
}

// Current 返回当前有效报价。
func (s *Scheduler) Current() (Quote, bool) {
	if s.current == nil {
		return Quote{}, false
	}
	return *s.current, true
}

// LatestIssued 返回迄今发出的最大序号。
func (s *Scheduler) LatestIssued() uint64 {
	return s.issued
}

// State 返回当前阶段。
func (s *Scheduler) State() State {
	return s.state
}

// Err 返回最新请求的失败原因。
func (s *Scheduler) Err() error {
	return s.err
}

// Input 返回最近一次提交的输入。
func (s *Scheduler) Input() Input {
	return s.input
}

// Close 停止定时器并取消在途请求的上下文；迟到的结果仍会被丢弃。
func (s *Scheduler) Close() {
	s.cancel()
	s.stopTimer()
	s.awaiting = 0
}

func (s *Scheduler) arm() {
	s.stopTimer()
	s.current = nil
	s.err = nil
	s.awaiting = 0
	s.state = StateDebouncing

	s.timerGen++
	gen := s.timerGen
	s.timer = s.opts.Clock.AfterFunc(s.opts.Debounce, func() {
		s.opts.Dispatch(func() { s.fire(gen) })
	})
}

func (s *Scheduler) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	// 已触发但尚未投递的回调会因代数不匹配被忽略
	s.timerGen++
}

func (s *Scheduler) fire(gen uint64) {
	if gen != s.timerGen || s.state != StateDebouncing {
		return
	}
	s.timer = nil

	s.issued++
	req := Request{
		SequenceID: s.issued,
		Pair:       s.input.Pair,
		PayAmount:  s.input.Amount,
		IssuedAt:   s.opts.Clock.Now(),
	}
	s.awaiting = req.SequenceID
	s.state = StateFetching

	s.logger.Debug("发起报价请求",
		zap.Uint64("seq", req.SequenceID),
		zap.String("pair", req.Pair.String()),
		zap.String("amount", req.PayAmount.String()),
	)
	s.emit(Event{Type: EventIssued, SequenceID: req.SequenceID, Latest: s.issued, Request: req})

	s.opts.Go(func() {
		res, err := s.lookup(req)
		s.opts.Dispatch(func() { s.resolve(req, res, err) })
	})
}

func (s *Scheduler) lookup(req Request) (res RateResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("quote: rate service panic: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(s.ctx, s.opts.Timeout)
	defer cancel()

	return s.rates.GetQuote(ctx, req.Pair.Pay, req.Pair.Receive, req.PayAmount)
}

func (s *Scheduler) resolve(req Request, res RateResult, err error) {
	latency := s.opts.Clock.Now().Sub(req.IssuedAt)

	if req.SequenceID != s.issued || req.SequenceID != s.awaiting {
		s.logger.Debug("丢弃过期报价",
			zap.Uint64("seq", req.SequenceID),
			zap.Uint64("latest", s.issued),
			zap.Bool("failed", err != nil),
		)
		s.emit(Event{
			Type:       EventDiscarded,
			SequenceID: req.SequenceID,
			Latest:     s.issued,
			Request:    req,
			Err:        err,
			Latency:    latency,
		})
		return
	}
	s.awaiting = 0

	var q Quote
	if err == nil {
		q, err = buildQuote(req, res, s.opts.Clock.Now())
	}
	if err != nil {
		s.err = &Error{SequenceID: req.SequenceID, Err: err}
		s.current = nil
		s.state = StateFailed
		s.logger.Warn("报价失败",
			zap.Uint64("seq", req.SequenceID),
			zap.String("pair", req.Pair.String()),
			zap.Error(err),
		)
		s.emit(Event{
			Type:       EventFailed,
			SequenceID: req.SequenceID,
			Latest:     s.issued,
			Request:    req,
			Err:        s.err,
			Latency:    latency,
		})
		return
	}

	s.current = &q
	s.state = StateQuoted
	s.emit(Event{
		Type:       EventApplied,
		SequenceID: q.SequenceID,
		Latest:     s.issued,
		Request:    req,
		Quote:      q,
		Latency:    latency,
	})
}

func buildQuote(req Request, res RateResult, now time.Time) (Quote, error) {
	var receive = res.ConvertedAmount
	switch {
	case receive.IsPositive():
		receive = req.Pair.Receive.Round(receive)
	case res.Rate.IsPositive():
		converted, err := asset.Convert(req.Pair, req.PayAmount, res.Rate)
		if err != nil {
			return Quote{}, err
		}
		receive = converted
	default:
		return Quote{}, ErrEmptyQuote
	}

	return Quote{
		SequenceID:    req.SequenceID,
		Pair:          req.Pair,
		PayAmount:     req.PayAmount,
		Rate:          res.Rate,
		ReceiveAmount: receive,
		Fee:           res.Fee,
		ResolvedAt:    now,
	}, nil
}

func (s *Scheduler) emit(ev Event) {
	if ev.At.IsZero() {
		ev.At = s.opts.Clock.Now()
	}
	s.opts.Listener(ev)
}
