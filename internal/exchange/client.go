package exchange

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	ccxt "github.com/ccxt/ccxt/go/v4"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"swapdesk/internal/config"
	"swapdesk/internal/retry"
)

type fetchFunc func(symbol string, limit int64) (ccxt.OrderBook, error)

// Client 负责拉取公开盘口并实现短期缓存与重试。
type Client struct {
	cfg         config.OrderBookConfig
	logger      *zap.Logger
	fetch       fetchFunc
	loadMarkets func() error
	books       *cache.Cache
	policy      retry.Policy

	marketsMu     sync.Mutex
	marketsLoaded bool
}

// NewClient 根据配置构造公开行情客户端，无需 API 密钥。
func NewClient(cfg config.OrderBookConfig, logger *zap.Logger) (*Client, error) {
	userConfig := map[string]interface{}{
		"enableRateLimit": true,
	}

	var (
		fetch fetchFunc
		load  func() error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Exchange)) {
	case "binance":
		ex := ccxt.NewBinance(userConfig)
		if cfg.UseSandbox {
			ex.SetSandboxMode(true)
		}
		fetch = func(symbol string, limit int64) (ccxt.OrderBook, error) {
			return ex.FetchOrderBook(symbol, ccxt.WithFetchOrderBookLimit(limit))
		}
		load = func() error {
			_, err := ex.LoadMarkets()
			return err
		}
	case "binanceusdm":
		userConfig["options"] = map[string]interface{}{
			"defaultType": "future",
		}
		ex := ccxt.NewBinanceusdm(userConfig)
		if cfg.UseSandbox {
			ex.SetSandboxMode(true)
		}
		fetch = func(symbol string, limit int64) (ccxt.OrderBook, error) {
			return ex.FetchOrderBook(symbol, ccxt.WithFetchOrderBookLimit(limit))
		}
		load = func() error {
			_, err := ex.LoadMarkets()
			return err
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedExchange, cfg.Exchange)
	}

	return newClient(cfg, fetch, load, logger), nil
}

func newClient(cfg config.OrderBookConfig, fetch fetchFunc, load func() error, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if load == nil {
		load = func() error { return nil }
	}
	var books *cache.Cache
	if cfg.CacheTTL > 0 {
		books = cache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
	}
	return &Client{
		cfg:         cfg,
		logger:      logger,
		fetch:       fetch,
		loadMarkets: load,
		books:       books,
		policy:      retry.FromConfig(cfg.Retry, 500*time.Millisecond, 5*time.Second),
	}
}

// FetchOrderBook 获取订单簿快照，命中缓存时不访问交易所。
func (c *Client) FetchOrderBook(ctx context.Context, symbol string) (OrderBookSnapshot, error) {
	if c.books != nil {
		if cached, ok := c.books.Get(symbol); ok {
			return cached.(OrderBookSnapshot), nil
		}
	}

	depth := int64(c.cfg.Depth)
	if depth <= 0 {
		depth = 50
	}

	var raw ccxt.OrderBook
	err := c.callWithRetry(ctx, "fetch_order_book", func() error {
		if err := c.ensureMarketsLoaded(ctx); err != nil {
			return err
		}

		orderBook, err := c.fetch(symbol, depth)
		if err != nil {
			return err
		}

		raw = orderBook
		return nil
	})
	if err != nil {
		return OrderBookSnapshot{}, err
	}

	snapshot := convertOrderBook(symbol, raw)
	if c.books != nil {
		c.books.SetDefault(symbol, snapshot)
	}
	return snapshot, nil
}

func (c *Client) ensureMarketsLoaded(ctx context.Context) error {
	c.marketsMu.Lock()
	defer c.marketsMu.Unlock()

	if c.marketsLoaded {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.loadMarkets(); err != nil {
		return err
	}

	c.marketsLoaded = true
	c.logger.Info("已完成市场元数据加载", zap.String("exchange", c.cfg.Exchange))
	return nil
}

func (c *Client) callWithRetry(ctx context.Context, operation string, fn func() error) error {
	attempts, err := retry.Do(ctx, c.policy, classifyError, fn)
	if err != nil {
		c.logger.Warn("盘口拉取失败",
			zap.String("operation", operation),
			zap.Int("attempts", attempts),
			zap.Error(err),
		)
		return err
	}
	if attempts > 1 {
		c.logger.Info("盘口拉取重试后成功",
			zap.String("operation", operation),
			zap.Int("attempts", attempts),
		)
	}
	return nil
}

func convertOrderBook(symbol string, ob ccxt.OrderBook) OrderBookSnapshot {
	bids := make([]OrderBookLevel, 0, len(ob.Bids))
	for _, level := range ob.Bids {
		if len(level) < 2 {
			continue
		}
		bids = append(bids, OrderBookLevel{Price: level[0], Amount: level[1]})
	}

	asks := make([]OrderBookLevel, 0, len(ob.Asks))
	for _, level := range ob.Asks {
		if len(level) < 2 {
			continue
		}
		asks = append(asks, OrderBookLevel{Price: level[0], Amount: level[1]})
	}

	ts := time.Now().UTC()
	if ob.Timestamp != nil {
		ts = time.UnixMilli(*ob.Timestamp).UTC()
	}

	var nonce int64
	if ob.Nonce != nil {
		nonce = *ob.Nonce
	}

	return OrderBookSnapshot{
		Symbol:    symbol,
		Bids:      bids,
		Asks:      asks,
		Timestamp: ts,
		Nonce:     nonce,
	}
}
