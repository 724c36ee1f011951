package ratelimit

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Limiter 令牌桶限流器，按每分钟请求数约束对外部模型服务的调用
type Limiter struct {
	rate           float64   // 每秒生成的令牌数
	capacity       float64   // 桶的容量
	tokens         float64   // 当前令牌数
	lastRefillTime time.Time // 上次填充令牌的时间
	mutex          sync.Mutex

	retryWaitTime time.Duration // 首次重试等待时间，之后指数退避
	maxRetries    int
}

// NewLimiter 创建限流器，qpm为每分钟允许的请求数
func NewLimiter(qpm int, capacity int) *Limiter {
	if qpm <= 0 {
		qpm = 60
	}
	if capacity <= 0 {
		capacity = qpm / 2
		if capacity <= 0 {
			capacity = 1
		}
	}

	return &Limiter{
		rate:           float64(qpm) / 60.0,
		capacity:       float64(capacity),
		tokens:         float64(capacity), // 初始填满
		lastRefillTime: time.Now(),
		retryWaitTime:  time.Second,
		maxRetries:     3,
	}
}

// WithRetryPolicy 设置重试策略
func (l *Limiter) WithRetryPolicy(waitTime time.Duration, maxRetries int) *Limiter {
	l.retryWaitTime = waitTime
	l.maxRetries = maxRetries
	return l
}

// refill 根据经过的时间填充令牌，调用方需持有锁
func (l *Limiter) refill() {
	now := time.Now()
	elapsed := now.Sub(l.lastRefillTime).Seconds()
	l.lastRefillTime = now

	l.tokens += elapsed * l.rate
	if l.tokens > l.capacity {
		l.tokens = l.capacity
	}
}

// Wait 阻塞直到取得一个令牌或上下文取消
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		l.mutex.Lock()
		l.refill()

		if l.tokens >= 1.0 {
			l.tokens -= 1.0
			l.mutex.Unlock()
			return nil
		}

		waitTime := time.Duration((1.0 - l.tokens) / l.rate * float64(time.Second))
		l.mutex.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitTime):
		}
	}
}

// Do 在限流与重试策略下执行fn
// 只对瞬时错误（超时、连接中断、配额限制）做指数退避重试
func (l *Limiter) Do(ctx context.Context, fn func() error) error {
	var err error

	for retry := 0; retry <= l.maxRetries; retry++ {
		if err = l.Wait(ctx); err != nil {
			return err
		}

		err = fn()
		if err == nil {
			return nil
		}

		if !isRetryable(err) || retry >= l.maxRetries {
			return err
		}

		backoff := l.retryWaitTime * time.Duration(1<<uint(retry))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}

	return err
}

// isRetryable 判断错误是否值得重试
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()
	for _, marker := range []string{
		"timeout",
		"deadline exceeded",
		"connection reset",
		"connection refused",
		"EOF",
		"429",
		"rate limit",
		"RESOURCE_EXHAUSTED",
		"quota",
		"503",
		"UNAVAILABLE",
	} {
		if strings.Contains(errStr, marker) {
			return true
		}
	}
	return false
}
