package risk

import (
	"github.com/shopspring/decimal"

	"swapdesk/internal/asset"
	"swapdesk/internal/quote"
)

// CanExecute 判断当前是否允许提交订单。
func CanExecute(q *quote.Quote, latestIssued uint64, payAmount, available decimal.Decimal, orderInFlight bool) bool {
	return Evaluate(Input{
		Quote:         q,
		LatestIssued:  latestIssued,
		PayAmount:     payAmount,
		Available:     available,
		OrderInFlight: orderInFlight,
	}).Allowed()
}

// Evaluate 给出带原因的执行资格评估，原因按固定顺序列出。
func Evaluate(in Input) Evaluation {
	reasons := make([]Reason, 0, 2)

	if !in.PayAmount.IsPositive() {
		reasons = append(reasons, ReasonNonPositiveAmount)
	} else if in.PayAmount.GreaterThan(in.Available) {
		reasons = append(reasons, ReasonInsufficientFunds)
	}

	switch {
	case in.Quote == nil:
		reasons = append(reasons, ReasonNoQuote)
	case in.Quote.SequenceID != in.LatestIssued:
		reasons = append(reasons, ReasonStaleQuote)
	case !in.Quote.PayAmount.Equal(in.PayAmount):
		reasons = append(reasons, ReasonQuoteMismatch)
	}

	if in.OrderInFlight {
		reasons = append(reasons, ReasonOrderInFlight)
	}

	if len(reasons) > 0 {
		return Evaluation{Status: StatusDeny, Reasons: reasons}
	}
	return Evaluation{Status: StatusProceed}
}

// MaxAmount 返回“最大”按钮应填入的金额：买入取法币余额，卖出取数字资产余额。
func MaxAmount(mode asset.Mode, pair asset.Pair, fiatBalance, cryptoBalance decimal.Decimal) decimal.Decimal {
	available := fiatBalance
	if mode == asset.ModeSell {
		available = cryptoBalance
	}
	if available.IsNegative() {
		return decimal.Zero
	}
	return pair.Pay.Truncate(available)
}
