package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	"swapdesk/internal/config"
)

// Policy 描述指数退避参数。
type Policy struct {
	MaxAttempts int
	MinDelay    time.Duration
	MaxDelay    time.Duration
	// OnRetry 在每次等待前调用，可为空。
	OnRetry func(attempt int, wait time.Duration, err error)
}

// FromConfig 由配置构造策略，未设置的延迟使用给定默认值。
func FromConfig(cfg config.RetryConfig, minDelay, maxDelay time.Duration) Policy {
	p := Policy{
		MaxAttempts: cfg.MaxAttempts,
		MinDelay:    cfg.MinDelay,
		MaxDelay:    cfg.MaxDelay,
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.MinDelay <= 0 {
		p.MinDelay = minDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = maxDelay
	}
	return p
}

// Classifier 将原始错误规整为返回给调用方的错误，并判断能否重试。
type Classifier func(err error) (error, bool)

// Do 执行 fn，失败且可重试时按指数退避再次执行。返回实际尝试次数与最终错误。
// ctx 结束时立即返回 ctx.Err()。
func Do(ctx context.Context, p Policy, classify Classifier, fn func() error) (int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	schedule := p.schedule()
	attempt := 0

	for {
		if err := ctx.Err(); err != nil {
			return attempt, err
		}

		attempt++
		err := fn()
		if err == nil {
			return attempt, nil
		}

		retryable := false
		if classify != nil {
			err, retryable = classify(err)
		}
		if !retryable || attempt >= maxAttempts {
			return attempt, err
		}

		wait := schedule.NextBackOff()
		if p.OnRetry != nil {
			p.OnRetry(attempt, wait, err)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, ctx.Err()
		case <-timer.C:
		}
	}
}

// schedule 构造不带抖动的退避序列：MinDelay 起步，每次翻倍，封顶 MaxDelay。
func (p Policy) schedule() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.MinDelay
	b.RandomizationFactor = 0
	b.Multiplier = 2
	if p.MaxDelay > 0 {
		b.MaxInterval = p.MaxDelay
	}
	b.Reset()
	return b
}
