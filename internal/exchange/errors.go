package exchange

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	ccxt "github.com/ccxt/ccxt/go/v4"
)

var (
	// ErrMaintenance 表示交易所处于维护状态，盘口报价暂不可用。
	ErrMaintenance = errors.New("exchange: on maintenance")
	// ErrInsufficientDepth 表示盘口深度不足以覆盖请求金额。
	ErrInsufficientDepth = errors.New("exchange: insufficient order book depth")
	// ErrUnsupportedExchange 表示未接入的交易所。
	ErrUnsupportedExchange = errors.New("exchange: unsupported exchange")
	// ErrUnsupportedPair 表示无法由盘口报价的资产组合。
	ErrUnsupportedPair = errors.New("exchange: unsupported pair")
)

// IsRetryable 判断拉取盘口的错误是否值得重试。
func IsRetryable(err error) bool {
	var ccxtErr *ccxt.Error
	if errors.As(err, &ccxtErr) {
		switch ccxtErr.Type {
		case ccxt.NetworkErrorErrType,
			ccxt.RequestTimeoutErrType,
			ccxt.ExchangeNotAvailableErrType,
			ccxt.RateLimitExceededErrType,
			ccxt.DDoSProtectionErrType,
			ccxt.BadResponseErrType,
			ccxt.NullResponseErrType:
			return true
		}
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// classifyError 把维护状态转换为 ErrMaintenance，其余错误原样返回。
func classifyError(err error) (error, bool) {
	if err == nil {
		return nil, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err, false
	}

	var ccxtErr *ccxt.Error
	if errors.As(err, &ccxtErr) && ccxtErr.Type == ccxt.OnMaintenanceErrType {
		message := strings.TrimSpace(ccxtErr.Message)
		if message == "" {
			message = "exchange under maintenance"
		}
		return fmt.Errorf("%w: %s", ErrMaintenance, message), false
	}

	return err, IsRetryable(err)
}
