package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"swapdesk/internal/asset"
	"swapdesk/internal/clock"
	"swapdesk/internal/config"
	"swapdesk/internal/execution"
	"swapdesk/internal/quote"
	"swapdesk/internal/risk"
	"swapdesk/internal/settings"
	"swapdesk/internal/wallet"
)

const defaultQueueSize = 256

// ErrMissingDependency 表示构造引擎时缺少必需的协作方。
var ErrMissingDependency = errors.New("engine: missing dependency")

// Deps 为引擎依赖的外部协作方。
type Deps struct {
	Registry  *asset.Registry
	Rates     quote.RateService
	Execution execution.Service
	Wallets   wallet.Service
	History   wallet.HistoryService
	Settings  *settings.Store
}

// Options 控制引擎的运行方式。
type Options struct {
	Clock clock.Clock
	// Dispatch 非空时替代内部事件循环，测试中可设为直接执行。
	Dispatch func(func())
	Go       func(func())
	// NewReference 生成订单引用，默认 UUID。
	NewReference func() string
	Observers    []Observer
	QueueSize    int
}

// Engine 为兑换页面的状态机。所有状态只在事件循环上修改，命令可以从任意 goroutine 调用。
type Engine struct {
	cfg       config.ExchangeConfig
	opts      Options
	logger    *zap.Logger
	clock     clock.Clock
	registry  *asset.Registry
	settings  *settings.Store
	sched     *quote.Scheduler
	exec      *execution.Executor
	book      *wallet.Book
	observers []Observer

	ctx       context.Context
	cancel    context.CancelFunc
	tasks     chan func()
	done      chan struct{}
	closeOnce sync.Once

	// 以下字段只在事件循环上访问
	mode       asset.Mode
	fiat       asset.Asset
	crypto     asset.Asset
	pair       asset.Pair
	amountText string
	amount     decimal.Decimal
	amountErr  error
	wallets    wallet.Snapshot
	banner     Banner
	pending    *execution.Order
	version    uint64

	view    atomic.Pointer[View]
	subsMu  sync.Mutex
	subs    map[uint64]func(View)
	nextSub uint64
}

// New 创建引擎并发布初始视图。
func New(cfg config.ExchangeConfig, deps Deps, opts Options, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch {
	case deps.Registry == nil:
		return nil, fmt.Errorf("%w: registry", ErrMissingDependency)
	case deps.Rates == nil:
		return nil, fmt.Errorf("%w: rate service", ErrMissingDependency)
	case deps.Execution == nil:
		return nil, fmt.Errorf("%w: execution service", ErrMissingDependency)
	case deps.Wallets == nil:
		return nil, fmt.Errorf("%w: wallet service", ErrMissingDependency)
	case deps.Settings == nil:
		return nil, fmt.Errorf("%w: settings", ErrMissingDependency)
	}

	mode := asset.ModeBuy
	if cfg.DefaultMode != "" {
		parsed, err := asset.ParseMode(cfg.DefaultMode)
		if err != nil {
			return nil, err
		}
		mode = parsed
	}
	fiat, err := deps.Registry.LookupKind(cfg.DefaultFiat, asset.KindFiat)
	if err != nil {
		return nil, fmt.Errorf("engine: 默认法币: %w", err)
	}
	crypto, err := deps.Registry.LookupKind(cfg.DefaultCrypto, asset.KindCrypto)
	if err != nil {
		return nil, fmt.Errorf("engine: 默认数字资产: %w", err)
	}
	pair, err := asset.ResolvePair(mode, fiat, crypto)
	if err != nil {
		return nil, err
	}

	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Go == nil {
		opts.Go = func(f func()) { go f() }
	}
	if opts.NewReference == nil {
		opts.NewReference = uuid.NewString
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		cfg:       cfg,
		opts:      opts,
		logger:    logger,
		clock:     opts.Clock,
		registry:  deps.Registry,
		settings:  deps.Settings,
		observers: opts.Observers,
		ctx:       ctx,
		cancel:    cancel,
		tasks:     make(chan func(), opts.QueueSize),
		done:      make(chan struct{}),
		mode:      mode,
		fiat:      fiat,
		crypto:    crypto,
		pair:      pair,
		amount:    decimal.Zero,
		subs:      make(map[uint64]func(View)),
	}

	e.sched = quote.NewScheduler(deps.Rates, quote.Options{
		Debounce: cfg.Debounce,
		Timeout:  cfg.QuoteTimeout,
		Clock:    opts.Clock,
		Dispatch: e.dispatch,
		Go:       opts.Go,
		Listener: e.onQuoteEvent,
	}, logger.Named("quote"))

	e.exec = execution.NewExecutor(deps.Execution, execution.Options{
		Timeout:  cfg.ExecTimeout,
		Dispatch: e.dispatch,
		Go:       opts.Go,
		Now:      opts.Clock.Now,
	}, logger.Named("execution"))

	e.book = wallet.NewBook(deps.Wallets, deps.History, cfg.HistoryLimit, logger.Named("wallet"))

	e.publish()
	return e, nil
}

// Run 驱动事件循环直到 ctx 结束，启动时先刷新一次钱包。
func (e *Engine) Run(ctx context.Context) error {
	if e.opts.Dispatch != nil {
		return errors.New("engine: 已配置外部 Dispatch，不能运行内部循环")
	}
	e.Refresh()
	e.logger.Info("兑换引擎已启动",
		zap.String("mode", string(e.mode)),
		zap.String("pair", e.pair.String()),
	)

	for {
		select {
		case <-ctx.Done():
			e.Close()
			e.logger.Info("兑换引擎已停止")
			return nil
		case task := <-e.tasks:
			task()
		}
	}
}

// Close 取消在途请求并停止报价定时器。不能与 Run 并发调用，Run 退出时会自动调用。
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		close(e.done)
		e.cancel()
		e.sched.Close()
	})
}

func (e *Engine) dispatch(f func()) {
	task := func() {
		f()
		e.publish()
	}
	if e.opts.Dispatch != nil {
		e.opts.Dispatch(task)
		return
	}
	select {
	case e.tasks <- task:
	case <-e.done:
	}
}

// SetPayAmount 更新支付金额文本。
func (e *Engine) SetPayAmount(text string) {
	e.dispatch(func() { e.setAmountText(text) })
}

// SetMode 切换买入或卖出，同时清空金额与报价。
func (e *Engine) SetMode(mode asset.Mode) {
	e.dispatch(func() {
		if mode == e.mode {
			return
		}
		pair, err := asset.ResolvePair(mode, e.fiat, e.crypto)
		if err != nil {
			e.showError(err)
			return
		}
		e.mode = mode
		e.pair = pair
		e.amountText = ""
		e.amount = decimal.Zero
		e.amountErr = nil
		e.requote()
		e.logger.Debug("切换兑换方向", zap.String("mode", string(mode)), zap.String("pair", pair.String()))
	})
}

// SetFiat 选择法币。
func (e *Engine) SetFiat(code string) {
	e.dispatch(func() {
		a, err := e.registry.LookupKind(code, asset.KindFiat)
		if err != nil {
			e.showError(err)
			return
		}
		e.fiat = a
		e.resolvePair()
	})
}

// SetCrypto 选择数字资产。
func (e *Engine) SetCrypto(code string) {
	e.dispatch(func() {
		a, err := e.registry.LookupKind(code, asset.KindCrypto)
		if err != nil {
			e.showError(err)
			return
		}
		e.crypto = a
		e.resolvePair()
	})
}

// UseMax 以支付资产的可用余额填充金额。
func (e *Engine) UseMax() {
	e.dispatch(func() {
		e.setAmountText(e.pair.Pay.Format(e.maxAmount()))
	})
}

// SelectSlippagePreset 选择预设滑点。
func (e *Engine) SelectSlippagePreset(bps int) {
	e.dispatch(func() {
		if err := e.settings.SelectPreset(bps); err != nil {
			e.showError(err)
		}
	})
}

// SetCustomSlippage 设置自定义滑点，非法输入只在设置面板中标记。
func (e *Engine) SetCustomSlippage(text string) {
	e.dispatch(func() {
		if err := e.settings.SetCustomSlippage(text); err != nil {
			e.logger.Debug("自定义滑点无效", zap.String("text", text), zap.Error(err))
		}
	})
}

// SetDeadline 设置截止分钟数。
func (e *Engine) SetDeadline(text string) {
	e.dispatch(func() {
		if err := e.settings.SetDeadline(text); err != nil {
			e.logger.Debug("截止时间无效", zap.String("text", text), zap.Error(err))
		}
	})
}

// Confirm 在允许执行时提交订单。
func (e *Engine) Confirm() {
	e.dispatch(e.confirm)
}

// DismissError 关闭错误提示。
func (e *Engine) DismissError() {
	e.dispatch(func() {
		if e.banner.Kind == BannerError {
			e.banner = Banner{}
		}
	})
}

// Refresh 刷新钱包与成交记录，并按当前输入重新报价。
func (e *Engine) Refresh() {
	e.dispatch(func() {
		e.refresh()
		if e.amount.IsPositive() {
			e.sched.Requote()
		}
	})
}

// Snapshot 返回最近发布的视图。
func (e *Engine) Snapshot() View {
	v := e.view.Load()
	if v == nil {
		return View{}
	}
	return *v
}

// Subscribe 注册视图回调，回调在事件循环上执行。返回的函数用于取消订阅。
func (e *Engine) Subscribe(fn func(View)) (cancel func()) {
	e.subsMu.Lock()
	e.nextSub++
	id := e.nextSub
	e.subs[id] = fn
	e.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.subsMu.Lock()
			delete(e.subs, id)
			e.subsMu.Unlock()
		})
	}
}

func (e *Engine) setAmountText(text string) {
	e.amountText = text
	amount, err := asset.ParseAmount(text)
	switch {
	case err != nil:
		e.amountErr = err
		e.amount = decimal.Zero
	case amount.IsNegative():
		e.amountErr = fmt.Errorf("%w: 金额不能为负", asset.ErrInvalidAmount)
		e.amount = decimal.Zero
	default:
		e.amountErr = nil
		e.amount = e.pair.Pay.Truncate(amount)
	}
	e.requote()
}

func (e *Engine) resolvePair() {
	pair, err := asset.ResolvePair(e.mode, e.fiat, e.crypto)
	if err != nil {
		e.showError(err)
		return
	}
	e.pair = pair
	e.setAmountText(e.amountText)
}

func (e *Engine) requote() {
	e.sched.Update(quote.Input{Pair: e.pair, Amount: e.amount})
}

// payWallet 返回本次订单将扣款的钱包。余额校验、最大金额与订单的 WalletID 都以它为准。
func (e *Engine) payWallet() (wallet.Balance, bool) {
	return e.wallets.WalletFor(e.pair.Pay.Code)
}

func (e *Engine) payAvailable() decimal.Decimal {
	w, ok := e.payWallet()
	if !ok {
		return decimal.Zero
	}
	return w.Available()
}

func (e *Engine) maxAmount() decimal.Decimal {
	available := e.payAvailable()
	return risk.MaxAmount(e.mode, e.pair, available, available)
}

func (e *Engine) evaluate() risk.Evaluation {
	var current *quote.Quote
	if q, ok := e.sched.Current(); ok {
		current = &q
	}
	return risk.Evaluate(risk.Input{
		Quote:         current,
		LatestIssued:  e.sched.LatestIssued(),
		PayAmount:     e.amount,
		Available:     e.payAvailable(),
		OrderInFlight: e.pending != nil || e.exec.InFlight(),
	})
}

func (e *Engine) confirm() {
	order := execution.Order{
		Mode:      e.mode,
		Pair:      e.pair,
		PayAmount: e.amount,
		Settings:  e.settings.Snapshot(),
		Status:    execution.OrderStatusPending,
	}
	if q, ok := e.sched.Current(); ok {
		order.QuoteSequenceID = q.SequenceID
		order.ExpectedReceive = q.ReceiveAmount
	}

	if eval := e.evaluate(); !eval.Allowed() {
		e.reject(order, eval.Err())
		return
	}

	w, ok := e.payWallet()
	if !ok {
		e.reject(order, fmt.Errorf("engine: 没有可用的 %s 钱包", e.pair.Pay.Code))
		return
	}
	order.WalletID = w.WalletID
	order.Reference = e.opts.NewReference()

	e.pending = &order
	stamped, err := e.exec.Confirm(e.ctx, order, e.onOrderDone)
	if err != nil {
		e.pending = nil
		e.reject(order, err)
		return
	}
	if e.pending != nil && e.pending.Reference == stamped.Reference {
		*e.pending = stamped
	}

	e.banner = Banner{Kind: BannerInfo, Message: "订单已提交，等待执行结果"}
	for _, o := range e.observers {
		o.OrderSubmitted(stamped)
	}
}

func (e *Engine) reject(order execution.Order, err error) {
	e.logger.Info("拒绝提交订单",
		zap.String("pair", order.Pair.String()),
		zap.String("amount", order.PayAmount.String()),
		zap.Error(err),
	)
	e.banner = Banner{Kind: BannerError, Message: describe(err)}
	for _, o := range e.observers {
		o.OrderRejected(order, err)
	}
}

func (e *Engine) onOrderDone(result execution.Result) {
	e.pending = nil
	for _, o := range e.observers {
		o.OrderFinished(result)
	}

	if result.Err != nil {
		e.banner = Banner{Kind: BannerError, Message: result.Err.Error()}
		return
	}

	order := result.Order
	e.banner = Banner{
		Kind: BannerSuccess,
		Message: fmt.Sprintf("兑换成功：支付 %s %s，预计获得 %s %s",
			order.Pair.Pay.FormatDisplay(order.PayAmount), order.Pair.Pay.Code,
			order.Pair.Receive.FormatDisplay(order.ExpectedReceive), order.Pair.Receive.Code,
		),
	}
	e.amountText = ""
	e.amount = decimal.Zero
	e.amountErr = nil
	e.requote()
	e.refresh()
}

func (e *Engine) refresh() {
	e.opts.Go(func() {
		snapshot, err := e.book.Refresh(e.ctx)
		e.dispatch(func() { e.applyWallets(snapshot, err) })
	})
}

func (e *Engine) applyWallets(snapshot wallet.Snapshot, err error) {
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			e.banner = Banner{Kind: BannerError, Message: err.Error()}
		}
	} else {
		e.wallets = snapshot
	}
	for _, o := range e.observers {
		o.WalletRefreshed(snapshot, err)
	}
}

func (e *Engine) onQuoteEvent(ev quote.Event) {
	for _, o := range e.observers {
		o.QuoteEvent(ev)
	}
}

func (e *Engine) showError(err error) {
	e.banner = Banner{Kind: BannerError, Message: describe(err)}
}

func describe(err error) string {
	var verr *risk.ValidationError
	if errors.As(err, &verr) {
		parts := make([]string, 0, len(verr.Reasons))
		for _, r := range verr.Reasons {
			parts = append(parts, r.Message())
		}
		return strings.Join(parts, "；")
	}
	if errors.Is(err, execution.ErrOrderInFlight) {
		return risk.ReasonOrderInFlight.Message()
	}
	return err.Error()
}

func (e *Engine) publish() {
	e.version++
	v := e.buildView()
	e.view.Store(&v)

	e.subsMu.Lock()
	fns := make([]func(View), 0, len(e.subs))
	for _, fn := range e.subs {
		fns = append(fns, fn)
	}
	e.subsMu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

func (e *Engine) buildView() View {
	eval := e.evaluate()
	available := e.payAvailable()
	maxAmount := e.maxAmount()

	v := View{
		Version:          e.version,
		Mode:             e.mode,
		Fiat:             e.fiat.Code,
		Crypto:           e.crypto.Code,
		PayAsset:         e.pair.Pay.Code,
		ReceiveAsset:     e.pair.Receive.Code,
		FiatOptions:      codes(e.registry.List(asset.KindFiat)),
		CryptoOptions:    codes(e.registry.List(asset.KindCrypto)),
		PayAmountText:    e.amountText,
		PayAmountValid:   e.amountErr == nil,
		QuoteState:       e.sched.State(),
		LatestIssued:     e.sched.LatestIssued(),
		Available:        e.pair.Pay.FormatDisplay(available),
		MaxAmount:        e.pair.Pay.Format(maxAmount),
		CanExecute:       eval.Allowed(),
		Reasons:          eval.Reasons,
		OrderInFlight:    e.pending != nil || e.exec.InFlight(),
		Banner:           e.banner,
		Settings:         e.settings.View(),
		Wallets:          append([]wallet.Balance(nil), e.wallets.Wallets...),
		Trades:           append([]wallet.Trade(nil), e.wallets.Trades...),
		WalletsUpdatedAt: e.wallets.UpdatedAt,
		UpdatedAt:        e.clock.Now(),
	}
	if e.amount.IsPositive() {
		v.PayAmount = e.pair.Pay.Format(e.amount)
	}
	if q, ok := e.sched.Current(); ok {
		v.QuoteSequence = q.SequenceID
		v.ReceiveAmount = q.Pair.Receive.Format(q.ReceiveAmount)
		v.ReceiveDisplay = q.Pair.Receive.FormatDisplay(q.ReceiveAmount)
		v.Rate = q.Rate.String()
		if !q.Fee.IsZero() {
			v.Fee = q.Fee.String()
		}
	}
	if err := e.sched.Err(); err != nil {
		v.QuoteError = err.Error()
	}
	if e.pending != nil {
		v.PendingOrder = e.pending.Reference
	}
	return v
}

func codes(assets []asset.Asset) []string {
	out := make([]string, 0, len(assets))
	for _, a := range assets {
		out = append(out, a.Code)
	}
	return out
}
