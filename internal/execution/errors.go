package execution

import "errors"

var (
	// ErrOrderInFlight 表示已有订单在处理中。
	ErrOrderInFlight = errors.New("execution: order already in flight")
	// ErrInvalidOrder 表示订单字段不完整。
	ErrInvalidOrder = errors.New("execution: invalid order")
)

// Error 为执行服务拒绝订单，Error() 原样返回服务端消息。
type Error struct {
	Reference string
	Err       error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "execution failed"
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}
