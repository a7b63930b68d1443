package execution

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"swapdesk/internal/asset"
)

const defaultTimeout = 30 * time.Second

// Options 控制执行器行为。
type Options struct {
	Timeout time.Duration
	// Dispatch 把完成回调投递回事件循环，飞行标志在回调前于循环上释放。
	Dispatch func(func())
	Go       func(func())
	// NewReference 生成客户端订单引用，默认 UUID。
	NewReference func() string
	Now          func() time.Time
}

// Executor 保证同一时间至多一个订单在途。
type Executor struct {
	svc      Service
	opts     Options
	logger   *zap.Logger
	inFlight atomic.Bool
}

// NewExecutor 创建执行器。
func NewExecutor(svc Service, opts Options, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Dispatch == nil {
		opts.Dispatch = func(f func()) { f() }
	}
	if opts.Go == nil {
		opts.Go = func(f func()) { go f() }
	}
	if opts.NewReference == nil {
		opts.NewReference = uuid.NewString
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Executor{
		svc:    svc,
		opts:   opts,
		logger: logger,
	}
}

// InFlight 判断是否有订单在途。
func (e *Executor) InFlight() bool {
	return e.inFlight.Load()
}

// Confirm 原子地占用飞行标志并异步提交订单，返回已盖章的订单。
// 标志被占用时立即返回 ErrOrderInFlight，不会调用执行服务。
func (e *Executor) Confirm(ctx context.Context, order Order, done func(Result)) (Order, error) {
	if _, err := BuildRequest(order); err != nil {
		return order, err
	}
	if !e.inFlight.CompareAndSwap(false, true) {
		return order, ErrOrderInFlight
	}

	if order.Reference == "" {
		order.Reference = e.opts.NewReference()
	}
	order.Status = OrderStatusSubmitted
	if order.CreatedAt.IsZero() {
		order.CreatedAt = e.opts.Now()
	}

	e.logger.Info("提交兑换订单",
		zap.String("reference", order.Reference),
		zap.String("mode", string(order.Mode)),
		zap.String("pair", order.Pair.String()),
		zap.String("amount", order.Pair.Pay.Format(order.PayAmount)),
		zap.Uint64("quote_seq", order.QuoteSequenceID),
	)

	e.opts.Go(func() {
		result := e.submit(ctx, order)
		e.opts.Dispatch(func() {
			e.inFlight.Store(false)
			if done != nil {
				done(result)
			}
		})
	})

	return order, nil
}

func (e *Executor) submit(ctx context.Context, order Order) (result Result) {
	start := e.opts.Now()
	result = Result{Order: order, ExecutionTime: start}

	defer func() {
		if r := recover(); r != nil {
			result.Err = &Error{Reference: order.Reference, Err: fmt.Errorf("execution service panic: %v", r)}
		}
		result.Latency = e.opts.Now().Sub(start)
		if result.Err != nil {
			result.Order.Status = OrderStatusFailed
			result.Executed = false
			e.logger.Warn("兑换订单失败",
				zap.String("reference", order.Reference),
				zap.Duration("latency", result.Latency),
				zap.Error(result.Err),
			)
			return
		}
		result.Order.Status = OrderStatusCompleted
		result.Executed = true
		e.logger.Info("兑换订单完成",
			zap.String("reference", order.Reference),
			zap.String("status", result.Receipt.Status),
			zap.String("executed_amount", result.Receipt.ExecutedAmount.String()),
			zap.Duration("latency", result.Latency),
		)
	}()

	req, err := BuildRequest(order)
	if err != nil {
		result.Err = err
		return result
	}

	callCtx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	var receipt Receipt
	switch order.Mode {
	case asset.ModeBuy:
		receipt, err = e.svc.Buy(callCtx, req)
	default:
		receipt, err = e.svc.Sell(callCtx, req)
	}
	if err != nil {
		result.Err = &Error{Reference: order.Reference, Err: err}
		return result
	}
	if receipt.Reference == "" {
		receipt.Reference = order.Reference
	}
	result.Receipt = receipt
	return result
}

// BuildRequest 将订单转换为执行请求。金额按支付资产精度截断，与报价使用的金额一致。
func BuildRequest(order Order) (Request, error) {
	if order.Mode != asset.ModeBuy && order.Mode != asset.ModeSell {
		return Request{}, fmt.Errorf("%w: 未知方向 %q", ErrInvalidOrder, order.Mode)
	}
	amount := order.Pair.Pay.Truncate(order.PayAmount)
	if !amount.IsPositive() {
		return Request{}, fmt.Errorf("%w: 金额必须大于0", ErrInvalidOrder)
	}
	if order.WalletID == "" {
		return Request{}, fmt.Errorf("%w: 缺少钱包", ErrInvalidOrder)
	}
	if order.Pair.Pay.IsZero() || order.Pair.Receive.IsZero() {
		return Request{}, fmt.Errorf("%w: 交易对不完整", ErrInvalidOrder)
	}

	return Request{
		Asset:           order.Pair.Crypto().Code,
		Amount:          amount,
		PayCurrency:     order.Pair.Fiat().Code,
		WalletID:        order.WalletID,
		SlippageBps:     order.Settings.SlippageBps,
		DeadlineMinutes: order.Settings.DeadlineMinutes,
		Reference:       order.Reference,
	}, nil
}
