package wallet

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Balance 为单个钱包余额，由钱包服务维护，此处只读。
type Balance struct {
	WalletID string
	Asset    string
	Amount   decimal.Decimal
	IsFrozen bool
}

// Available 返回可用余额，冻结钱包视为零。
func (b Balance) Available() decimal.Decimal {
	if b.IsFrozen || b.Amount.IsNegative() {
		return decimal.Zero
	}
	return b.Amount
}

// Trade 为最近成交记录，仅用于展示。
type Trade struct {
	Reference   string
	Mode        string
	Asset       string
	Amount      decimal.Decimal
	PayCurrency string
	Price       decimal.Decimal
	Status      string
	CreatedAt   time.Time
}

// Service 提供钱包列表。
type Service interface {
	GetWallets(ctx context.Context) ([]Balance, error)
}

// HistoryService 提供最近成交。
type HistoryService interface {
	GetRecentTrades(ctx context.Context, limit int) ([]Trade, error)
}

// Snapshot 为某一时刻的钱包与成交快照。
type Snapshot struct {
	Wallets   []Balance
	Trades    []Trade
	UpdatedAt time.Time
}

// Available 返回订单实际扣款钱包（见 WalletFor）的可用余额。
// 不同钱包的余额不会相加：一笔订单只从一个钱包扣款。
func (s Snapshot) Available(code string) decimal.Decimal {
	w, ok := s.WalletFor(code)
	if !ok {
		return decimal.Zero
	}
	return w.Available()
}

// Total 汇总指定资产所有未冻结钱包的余额，仅用于展示。
func (s Snapshot) Total(code string) decimal.Decimal {
	total := decimal.Zero
	for _, w := range s.Wallets {
		if strings.EqualFold(w.Asset, code) {
			total = total.Add(w.Available())
		}
	}
	return total
}

// WalletFor 选出用于支付指定资产的钱包：优先未冻结且余额最大者。
func (s Snapshot) WalletFor(code string) (Balance, bool) {
	var (
		best  Balance
		found bool
	)
	for _, w := range s.Wallets {
		if !strings.EqualFold(w.Asset, code) {
			continue
		}
		if !found {
			best, found = w, true
			continue
		}
		if best.IsFrozen && !w.IsFrozen {
			best = w
			continue
		}
		if best.IsFrozen == w.IsFrozen && w.Amount.GreaterThan(best.Amount) {
			best = w
		}
	}
	return best, found
}
