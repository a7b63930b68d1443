package exchange

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"swapdesk/internal/asset"
	"swapdesk/internal/quote"
)

// BookFetcher 提供指定交易对的盘口快照。
type BookFetcher interface {
	FetchOrderBook(ctx context.Context, symbol string) (OrderBookSnapshot, error)
}

// RateSource 沿公开盘口计算可成交汇率，作为后端报价之外的另一种报价来源。
// 汇率统一表示为每单位数字资产的法币价格。
type RateSource struct {
	books   BookFetcher
	feeRate decimal.Decimal
	proxy   map[string]string
	logger  *zap.Logger
}

var _ quote.RateService = (*RateSource)(nil)

// NewRateSource 创建盘口报价源。proxy 将法币映射到交易所的计价货币，例如 USD→USDT。
func NewRateSource(books BookFetcher, feeRate float64, proxy map[string]string, logger *zap.Logger) *RateSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	normalized := make(map[string]string, len(proxy))
	for fiat, quoteCode := range proxy {
		normalized[strings.ToUpper(strings.TrimSpace(fiat))] = strings.ToUpper(strings.TrimSpace(quoteCode))
	}
	return &RateSource{
		books:   books,
		feeRate: decimal.NewFromFloat(feeRate),
		proxy:   normalized,
		logger:  logger,
	}
}

// Symbol 返回交易对在交易所的符号，例如 BTC/USDT。
func (s *RateSource) Symbol(fiat, crypto asset.Asset) string {
	quoteCode := fiat.Code
	if mapped, ok := s.proxy[strings.ToUpper(fiat.Code)]; ok && mapped != "" {
		quoteCode = mapped
	}
	return crypto.Code + "/" + quoteCode
}

// GetQuote 按盘口深度计算 amount 的可成交结果，手续费从收到的资产中扣除。
func (s *RateSource) GetQuote(ctx context.Context, from, to asset.Asset, amount decimal.Decimal) (quote.RateResult, error) {
	if !amount.IsPositive() {
		return quote.RateResult{}, asset.ErrInvalidAmount
	}
	if from.Kind == to.Kind {
		return quote.RateResult{}, fmt.Errorf("%w: %s→%s", ErrUnsupportedPair, from.Code, to.Code)
	}

	buying := from.IsFiat()
	fiat, crypto := from, to
	if !buying {
		fiat, crypto = to, from
	}

	symbol := s.Symbol(fiat, crypto)
	base, quoteCode, _ := strings.Cut(symbol, "/")
	if strings.EqualFold(base, quoteCode) {
		// 数字资产本身就是计价货币，按 1:1 成交
		return s.apply(amount, amount, buying), nil
	}

	book, err := s.books.FetchOrderBook(ctx, symbol)
	if err != nil {
		return quote.RateResult{}, err
	}

	var fill Fill
	if buying {
		fill, err = SpendQuote(book.Asks, amount)
	} else {
		fill, err = SellBase(book.Bids, amount)
	}
	if err != nil {
		s.logger.Debug("盘口深度不足",
			zap.String("symbol", symbol),
			zap.String("amount", amount.String()),
			zap.Int("levels", len(book.Asks)+len(book.Bids)),
		)
		return quote.RateResult{}, fmt.Errorf("%s: %w", symbol, err)
	}

	if buying {
		return s.apply(amount, fill.Base, true), nil
	}
	return s.apply(amount, fill.Quote, false), nil
}

// apply 扣除手续费并给出汇率：买入时 gross 为获得的数字资产，卖出时为获得的法币。
func (s *RateSource) apply(pay, gross decimal.Decimal, buying bool) quote.RateResult {
	fee := gross.Mul(s.feeRate)
	net := gross.Sub(fee)

	var rate decimal.Decimal
	if net.IsPositive() {
		if buying {
			rate = pay.DivRound(net, 8)
		} else {
			rate = net.DivRound(pay, 8)
		}
	}
	return quote.RateResult{
		Rate:            rate,
		ConvertedAmount: net,
		Fee:             fee,
	}
}
