package asset

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/leekchan/accounting"
	"github.com/shopspring/decimal"
)

// ErrInvalidAmount 表示输入无法解析为金额。
var ErrInvalidAmount = errors.New("asset: invalid amount")

// MaxIntegerDigits 为金额整数部分允许的最大位数。
const MaxIntegerDigits = 18

const maxFractionDigits = 18

// 只接受普通十进制写法，不接受科学计数法。
var amountPattern = regexp.MustCompile(`^-?([0-9]*)(?:\.([0-9]*))?$`)

// ParseAmount 解析用户输入的金额，允许千分位逗号与空白；空输入返回零值。
// 整数与小数部分的位数都有上限，超长输入视为非法。
func ParseAmount(text string) (decimal.Decimal, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(text), ",", "")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	if cleaned == "" {
		return decimal.Zero, nil
	}
	if strings.HasSuffix(cleaned, ".") {
		// 用户正在输入小数部分
		cleaned = strings.TrimSuffix(cleaned, ".")
	}
	m := amountPattern.FindStringSubmatch(cleaned)
	if m == nil || (m[1] == "" && m[2] == "") {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, text)
	}
	if len(strings.TrimLeft(m[1], "0")) > MaxIntegerDigits || len(m[2]) > maxFractionDigits {
		return decimal.Zero, fmt.Errorf("%w: 位数过多 %q", ErrInvalidAmount, text)
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, text)
	}
	return d, nil
}

// Truncate 将支付金额按资产精度向下截断，保证不会超过实际输入。
func (a Asset) Truncate(d decimal.Decimal) decimal.Decimal {
	return d.Truncate(a.DisplayDecimals)
}

// Round 按资产展示精度四舍五入。
func (a Asset) Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(a.DisplayDecimals)
}

// Format 以固定小数位输出，不含千分位，用于请求与比较。
func (a Asset) Format(d decimal.Decimal) string {
	return d.StringFixed(a.DisplayDecimals)
}

// FormatDisplay 带千分位的展示格式。
func (a Asset) FormatDisplay(d decimal.Decimal) string {
	ac := accounting.Accounting{
		Symbol:    "",
		Precision: int(a.DisplayDecimals),
		Thousand:  ",",
		Decimal:   ".",
	}
	return ac.FormatMoneyDecimal(d)
}

// Convert 用报价汇率把支付金额换算为接收金额。
// 汇率以“每单位数字资产对应的法币”表示：买入时相除，卖出时相乘。
func Convert(pair Pair, payAmount, rate decimal.Decimal) (decimal.Decimal, error) {
	if !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("asset: 汇率必须为正，当前为 %s", rate)
	}
	var out decimal.Decimal
	if pair.Pay.Kind == KindFiat && pair.Receive.Kind == KindCrypto {
		out = payAmount.Div(rate)
	} else {
		out = payAmount.Mul(rate)
	}
	return pair.Receive.Round(out), nil
}
