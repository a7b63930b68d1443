package asset

import (
	"errors"
	"fmt"
	"strings"
)

// Mode 表示兑换方向。
type Mode string

const (
	ModeBuy  Mode = "buy"
	ModeSell Mode = "sell"
)

// ErrUnknownMode 表示无法识别的兑换方向。
var ErrUnknownMode = errors.New("asset: unknown mode")

// ParseMode 解析方向字符串。
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeBuy:
		return ModeBuy, nil
	case ModeSell:
		return ModeSell, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Opposite 返回相反方向。
func (m Mode) Opposite() Mode {
	if m == ModeBuy {
		return ModeSell
	}
	return ModeBuy
}

// Pair 为一次兑换的支付腿与接收腿。
type Pair struct {
	Pay     Asset
	Receive Asset
}

// Crypto 返回交易对中的数字资产腿。
func (p Pair) Crypto() Asset {
	if p.Pay.Kind == KindCrypto {
		return p.Pay
	}
	return p.Receive
}

// Fiat 返回交易对中的法币腿。
func (p Pair) Fiat() Asset {
	if p.Pay.Kind == KindFiat {
		return p.Pay
	}
	return p.Receive
}

func (p Pair) String() string {
	return p.Pay.Code + "->" + p.Receive.Code
}

// ResolvePair 根据方向决定支付腿与接收腿：买入支付法币，卖出支付数字资产。
func ResolvePair(mode Mode, fiat, crypto Asset) (Pair, error) {
	if fiat.Kind != KindFiat {
		return Pair{}, fmt.Errorf("%w: 法币腿 %s 为 %s", ErrKindMismatch, fiat.Code, fiat.Kind)
	}
	if crypto.Kind != KindCrypto {
		return Pair{}, fmt.Errorf("%w: 数字资产腿 %s 为 %s", ErrKindMismatch, crypto.Code, crypto.Kind)
	}

	switch mode {
	case ModeBuy:
		return Pair{Pay: fiat, Receive: crypto}, nil
	case ModeSell:
		return Pair{Pay: crypto, Receive: fiat}, nil
	default:
		return Pair{}, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
}
