package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestWaitWithinCapacity 验证初始令牌充足时Wait不阻塞
func TestWaitWithinCapacity(t *testing.T) {
	limiter := NewLimiter(600, 5)

	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, limiter.Wait(context.Background()))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond, "容量之内的请求不应等待")
}

// TestWaitBlocksWhenExhausted 验证令牌耗尽后按速率等待
func TestWaitBlocksWhenExhausted(t *testing.T) {
	// 600 qpm = 每100ms一个令牌
	limiter := NewLimiter(600, 1)
	require.NoError(t, limiter.Wait(context.Background()))

	start := time.Now()
	require.NoError(t, limiter.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond, "耗尽后应等待令牌再生")
}

// TestWaitCancelledContext 验证等待期间上下文取消立即返回
func TestWaitCancelledContext(t *testing.T) {
	limiter := NewLimiter(1, 1) // 每分钟1个，耗尽后要等很久
	require.NoError(t, limiter.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := limiter.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// TestDoSuccess 验证成功的调用只执行一次
func TestDoSuccess(t *testing.T) {
	limiter := NewLimiter(600, 10)

	calls := 0
	err := limiter.Do(context.Background(), func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

// TestDoRetriesRetryableError 验证瞬时错误触发指数退避重试
func TestDoRetriesRetryableError(t *testing.T) {
	limiter := NewLimiter(6000, 10).WithRetryPolicy(time.Millisecond, 3)

	calls := 0
	err := limiter.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("googleapi: Error 429: rate limit exceeded")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls, "前两次瞬时失败后第三次成功")
}

// TestDoGivesUpAfterMaxRetries 验证重试次数用尽后返回最后的错误
func TestDoGivesUpAfterMaxRetries(t *testing.T) {
	limiter := NewLimiter(6000, 10).WithRetryPolicy(time.Millisecond, 2)

	calls := 0
	wantErr := errors.New("RESOURCE_EXHAUSTED: quota exceeded")
	err := limiter.Do(context.Background(), func() error {
		calls++
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, 3, calls, "初次调用加2次重试")
}

// TestDoNonRetryableError 验证永久性错误不重试
func TestDoNonRetryableError(t *testing.T) {
	limiter := NewLimiter(6000, 10).WithRetryPolicy(time.Millisecond, 3)

	calls := 0
	wantErr := errors.New("invalid argument: bad request")
	err := limiter.Do(context.Background(), func() error {
		calls++
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, 1, calls, "永久性错误应立即返回")
}

// TestIsRetryable 验证瞬时错误标记的识别
func TestIsRetryable(t *testing.T) {
	assert.False(t, isRetryable(nil))
	assert.False(t, isRetryable(errors.New("invalid api key")))
	assert.True(t, isRetryable(errors.New("context deadline exceeded")))
	assert.True(t, isRetryable(errors.New("googleapi: Error 429")))
	assert.True(t, isRetryable(errors.New("RESOURCE_EXHAUSTED")))
	assert.True(t, isRetryable(errors.New("server returned 503")))
}
