package backend

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotConfigured 表示客户端未配置后端地址。
var ErrNotConfigured = errors.New("backend: base url not configured")

// APIError 为后端返回的业务错误，Error() 原样返回服务端消息。
type APIError struct {
	StatusCode int
	Message    string
	Operation  string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("backend: %s failed with status %d", e.Operation, e.StatusCode)
}

// Temporary 判断该错误是否可能在重试后恢复。
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// IsAPIError 判断错误链中是否包含 APIError。
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}
