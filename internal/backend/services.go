package backend

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"swapdesk/internal/asset"
	"swapdesk/internal/execution"
	"swapdesk/internal/quote"
	"swapdesk/internal/wallet"
)

var (
	_ quote.RateService     = (*Client)(nil)
	_ execution.Service     = (*Client)(nil)
	_ wallet.Service        = (*Client)(nil)
	_ wallet.HistoryService = (*Client)(nil)
)

type quoteData struct {
	Rate            decimal.Decimal `json:"rate"`
	ConvertedAmount decimal.Decimal `json:"convertedAmount"`
	Fee             decimal.Decimal `json:"fee"`
}

type orderPayload struct {
	Asset           string          `json:"asset"`
	Amount          decimal.Decimal `json:"amount"`
	PayCurrency     string          `json:"payCurrency"`
	WalletID        string          `json:"walletId"`
	SlippageBps     int             `json:"slippageBps,omitempty"`
	DeadlineMinutes int             `json:"deadlineMinutes,omitempty"`
	Reference       string          `json:"reference,omitempty"`
}

type orderData struct {
	Status         string          `json:"status"`
	ExecutedAmount decimal.Decimal `json:"executedAmount"`
	Reference      string          `json:"reference"`
}

type walletData struct {
	ID       string          `json:"id"`
	Currency string          `json:"currency"`
	Balance  decimal.Decimal `json:"balance"`
	IsFrozen bool            `json:"isFrozen"`
}

type tradeData struct {
	Reference   string          `json:"reference"`
	Type        string          `json:"type"`
	Asset       string          `json:"asset"`
	Amount      decimal.Decimal `json:"amount"`
	PayCurrency string          `json:"payCurrency"`
	Price       decimal.Decimal `json:"price"`
	Status      string          `json:"status"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// GetQuote 查询兑换报价，GET /exchange/quote。
func (c *Client) GetQuote(ctx context.Context, from, to asset.Asset, amount decimal.Decimal) (quote.RateResult, error) {
	query := url.Values{}
	query.Set("from", from.Code)
	query.Set("to", to.Code)
	query.Set("amount", amount.String())

	var data quoteData
	if err := c.get(ctx, "get_quote", "/exchange/quote", query, &data); err != nil {
		return quote.RateResult{}, err
	}
	return quote.RateResult{
		Rate:            data.Rate,
		ConvertedAmount: data.ConvertedAmount,
		Fee:             data.Fee,
	}, nil
}

// Buy 提交买入订单，POST /exchange/buy。不做自动重试。
func (c *Client) Buy(ctx context.Context, req execution.Request) (execution.Receipt, error) {
	return c.submitOrder(ctx, "buy", "/exchange/buy", req)
}

// Sell 提交卖出订单，POST /exchange/sell。不做自动重试。
func (c *Client) Sell(ctx context.Context, req execution.Request) (execution.Receipt, error) {
	return c.submitOrder(ctx, "sell", "/exchange/sell", req)
}

func (c *Client) submitOrder(ctx context.Context, operation, path string, req execution.Request) (execution.Receipt, error) {
	payload := orderPayload{
		Asset:           req.Asset,
		Amount:          req.Amount,
		PayCurrency:     req.PayCurrency,
		WalletID:        req.WalletID,
		SlippageBps:     req.SlippageBps,
		DeadlineMinutes: req.DeadlineMinutes,
		Reference:       req.Reference,
	}

	var data orderData
	if err := c.post(ctx, operation, path, payload, &data); err != nil {
		return execution.Receipt{}, err
	}
	if data.Reference == "" {
		data.Reference = req.Reference
	}
	return execution.Receipt{
		Status:         data.Status,
		ExecutedAmount: data.ExecutedAmount,
		Reference:      data.Reference,
	}, nil
}

// GetWallets 查询钱包列表，GET /wallets。
func (c *Client) GetWallets(ctx context.Context) ([]wallet.Balance, error) {
	var data []walletData
	if err := c.get(ctx, "get_wallets", "/wallets", nil, &data); err != nil {
		return nil, err
	}
	out := make([]wallet.Balance, 0, len(data))
	for _, w := range data {
		out = append(out, wallet.Balance{
			WalletID: w.ID,
			Asset:    w.Currency,
			Amount:   w.Balance,
			IsFrozen: w.IsFrozen,
		})
	}
	return out, nil
}

// GetRecentTrades 查询最近成交，GET /exchange/history。
func (c *Client) GetRecentTrades(ctx context.Context, limit int) ([]wallet.Trade, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var data []tradeData
	if err := c.get(ctx, "get_history", "/exchange/history", query, &data); err != nil {
		return nil, err
	}
	out := make([]wallet.Trade, 0, len(data))
	for _, t := range data {
		out = append(out, wallet.Trade{
			Reference:   t.Reference,
			Mode:        t.Type,
			Asset:       t.Asset,
			Amount:      t.Amount,
			PayCurrency: t.PayCurrency,
			Price:       t.Price,
			Status:      t.Status,
			CreatedAt:   t.CreatedAt,
		})
	}
	return out, nil
}
