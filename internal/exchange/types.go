package exchange

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderBookLevel 表示盘口档位。
type OrderBookLevel struct {
	Price  float64
	Amount float64
}

// OrderBookSnapshot 为订单簿快照。
type OrderBookSnapshot struct {
	Symbol    string
	Bids      []OrderBookLevel
	Asks      []OrderBookLevel
	Timestamp time.Time
	Nonce     int64
}

// Fill 为沿盘口吃单的结果。
type Fill struct {
	Base   decimal.Decimal
	Quote  decimal.Decimal
	Levels int
}

// VWAP 返回成交均价。
func (f Fill) VWAP() decimal.Decimal {
	if f.Base.IsZero() {
		return decimal.Zero
	}
	return f.Quote.Div(f.Base)
}

// SpendQuote 沿卖盘用 quoteAmount 的计价货币买入基础资产。
func SpendQuote(asks []OrderBookLevel, quoteAmount decimal.Decimal) (Fill, error) {
	remaining := quoteAmount
	var fill Fill
	for _, level := range asks {
		if !remaining.IsPositive() {
			break
		}
		price := decimal.NewFromFloat(level.Price)
		size := decimal.NewFromFloat(level.Amount)
		if !price.IsPositive() || !size.IsPositive() {
			continue
		}
		fill.Levels++
		cost := price.Mul(size)
		if cost.GreaterThanOrEqual(remaining) {
			fill.Base = fill.Base.Add(remaining.DivRound(price, 16))
			fill.Quote = fill.Quote.Add(remaining)
			remaining = decimal.Zero
			break
		}
		fill.Base = fill.Base.Add(size)
		fill.Quote = fill.Quote.Add(cost)
		remaining = remaining.Sub(cost)
	}
	if remaining.IsPositive() {
		return fill, ErrInsufficientDepth
	}
	return fill, nil
}

// SellBase 沿买盘卖出 baseAmount 的基础资产。
func SellBase(bids []OrderBookLevel, baseAmount decimal.Decimal) (Fill, error) {
	remaining := baseAmount
	var fill Fill
	for _, level := range bids {
		if !remaining.IsPositive() {
			break
		}
		price := decimal.NewFromFloat(level.Price)
		size := decimal.NewFromFloat(level.Amount)
		if !price.IsPositive() || !size.IsPositive() {
			continue
		}
		fill.Levels++
		take := decimal.Min(size, remaining)
		fill.Base = fill.Base.Add(take)
		fill.Quote = fill.Quote.Add(take.Mul(price))
		remaining = remaining.Sub(take)
	}
	if remaining.IsPositive() {
		return fill, ErrInsufficientDepth
	}
	return fill, nil
}
