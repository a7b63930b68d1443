package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"swapdesk/internal/asset"
	"swapdesk/internal/backend"
	"swapdesk/internal/config"
	"swapdesk/internal/engine"
	"swapdesk/internal/exchange"
	"swapdesk/internal/log"
	"swapdesk/internal/metrics"
	"swapdesk/internal/monitor"
	"swapdesk/internal/quote"
	"swapdesk/internal/settings"
	"swapdesk/internal/store"
)

const journalBuffer = 256

// App 聚合核心依赖并驱动系统生命周期。
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *store.Store
}

// New 创建 App 实例。
func New(cfg *config.Config, logger *zap.Logger, store *store.Store) *App {
	return &App{
		cfg:    cfg,
		logger: logger,
		store:  store,
	}
}

// Run 组装引擎并运行控制台，直到 ctx 结束或控制台退出。
func (a *App) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	a.logger.Info("兑换系统初始化",
		zap.String("environment", a.cfg.App.Environment),
		zap.String("backend", a.cfg.Backend.BaseURL),
		zap.String("rate_source", a.cfg.Rates.Source),
	)

	registry, err := asset.NewRegistry(a.cfg.Assets.Fiat, a.cfg.Assets.Crypto)
	if err != nil {
		return fmt.Errorf("初始化资产注册表失败: %w", err)
	}

	settingsStore, err := settings.NewStore(a.cfg.Settings)
	if err != nil {
		return fmt.Errorf("初始化设置失败: %w", err)
	}

	client, err := backend.NewClient(a.cfg.Backend, log.Component(a.logger, "backend"))
	if err != nil {
		return fmt.Errorf("初始化后端客户端失败: %w", err)
	}

	rates, err := newRateService(a.cfg.Rates, client, a.logger)
	if err != nil {
		return err
	}

	m := metrics.New()

	journal, err := monitor.NewService(a.store, journalBuffer, log.Component(a.logger, "monitor"))
	if err != nil {
		return fmt.Errorf("初始化事件日志失败: %w", err)
	}
	defer journal.Close()

	eng, err := engine.New(a.cfg.Exchange, engine.Deps{
		Registry:  registry,
		Rates:     rates,
		Execution: client,
		Wallets:   client,
		History:   client,
		Settings:  settingsStore,
	}, engine.Options{
		Observers: []engine.Observer{newJournalObserver(m, journal, log.Component(a.logger, "observer"))},
	}, log.Component(a.logger, "engine"))
	if err != nil {
		return fmt.Errorf("初始化兑换引擎失败: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.cfg.Monitor.Enabled {
		router := newMonitorRouter(journal, a.store, m.Registry(), log.Component(a.logger, "http"))
		startMonitorServer(runCtx, router, a.cfg.Monitor.Port, a.logger)
	}

	console := NewConsole(eng, in, out)
	unsubscribe := eng.Subscribe(console.Render)
	defer unsubscribe()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return eng.Run(gctx)
	})
	g.Go(func() error {
		defer cancel()
		return console.Run(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("系统异常退出: %w", err)
	}
	a.logger.Info("系统收到退出信号，正在停止")
	return nil
}

func newRateService(cfg config.RatesConfig, client *backend.Client, logger *zap.Logger) (quote.RateService, error) {
	switch cfg.Source {
	case config.RateSourceOrderBook:
		books, err := exchange.NewClient(cfg.OrderBook, log.Component(logger, "orderbook"))
		if err != nil {
			return nil, fmt.Errorf("初始化盘口客户端失败: %w", err)
		}
		return exchange.NewRateSource(books, cfg.OrderBook.FeeRate, cfg.OrderBook.FiatProxy, log.Component(logger, "rates")), nil
	default:
		return client, nil
	}
}
