package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"swapdesk/internal/config"
	"swapdesk/internal/retry"
)

const (
	statusSuccess = "success"
	statusError   = "error"

	maxBodyBytes = 1 << 20
)

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Client 为后端 REST 服务的薄适配层，负责鉴权、限流与幂等请求的重试。
type Client struct {
	cfg     config.BackendConfig
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	policy  retry.Policy
	logger  *zap.Logger
}

// NewClient 创建后端客户端。
func NewClient(cfg config.BackendConfig, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, ErrNotConfigured
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("backend: 解析地址失败: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &Client{
		cfg:     cfg,
		baseURL: base,
		http:    &http.Client{Timeout: timeout},
		limiter: limiter,
		policy:  retry.FromConfig(cfg.Retry, 300*time.Millisecond, 3*time.Second),
		logger:  logger,
	}, nil
}

// get 发起可重试的查询请求。
func (c *Client) get(ctx context.Context, operation, path string, query url.Values, out interface{}) error {
	return c.callWithRetry(ctx, operation, func() error {
		return c.do(ctx, operation, http.MethodGet, path, query, nil, out)
	})
}

// post 发起有副作用的请求，只调用一次。
func (c *Client) post(ctx context.Context, operation, path string, payload, out interface{}) error {
	err := c.do(ctx, operation, http.MethodPost, path, nil, payload, out)
	if err != nil {
		c.logger.Warn("后端调用失败",
			zap.String("operation", operation),
			zap.Error(err),
		)
	}
	return err
}

func (c *Client) do(ctx context.Context, operation, method, path string, query url.Values, payload, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("backend: 编码请求失败: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("backend: 读取响应失败: %w", err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Operation: operation}
		if decodeErr == nil {
			apiErr.Message = env.Message
		}
		return apiErr
	}
	if decodeErr != nil {
		return fmt.Errorf("backend: 解析响应失败: %w", decodeErr)
	}
	if strings.EqualFold(env.Status, statusError) {
		return &APIError{StatusCode: resp.StatusCode, Message: env.Message, Operation: operation}
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("backend: 解析 %s 数据失败: %w", operation, err)
	}
	return nil
}

func (c *Client) callWithRetry(ctx context.Context, operation string, fn func() error) error {
	policy := c.policy
	policy.OnRetry = func(attempt int, wait time.Duration, err error) {
		c.logger.Debug("后端调用失败，等待重试",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	start := time.Now()
	attempts, err := retry.Do(ctx, policy, func(err error) (error, bool) {
		return err, retryable(err)
	}, fn)
	if err != nil {
		c.logger.Warn("后端调用失败",
			zap.String("operation", operation),
			zap.Int("attempts", attempts),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return err
	}
	if attempts > 1 {
		c.logger.Info("后端调用重试后成功",
			zap.String("operation", operation),
			zap.Int("attempts", attempts),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
	return nil
}

func retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
