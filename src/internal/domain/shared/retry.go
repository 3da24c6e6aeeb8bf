package shared

import (
	"context"
	"errors"
	"time"
)

// DefaultMaxAttempts 條件更新的預設重試次數
const DefaultMaxAttempts = 5

// RetryOnConflict 在條件更新輸掉競爭時重試
//
// 行為：
// - fn 返回 ErrConcurrentModification 時重試，最多 attempts 次
// - 其他錯誤（包含業務錯誤）立即返回
// - 次數用盡後返回最後一次的 ErrConcurrentModification（附帶 attempts 上下文）
// - 每次重試前等待遞增的短暫間隔，ctx 取消時提前結束
func RetryOnConflict(ctx context.Context, attempts int, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn()
		if lastErr == nil || !errors.Is(lastErr, ErrConcurrentModification) {
			return lastErr
		}
		if attempt == attempts {
			break
		}

		backoff := time.Duration(attempt) * 2 * time.Millisecond
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}

	return ErrConcurrentModification.WithContext(
		"attempts", attempts,
		"last_error", lastErr.Error(),
	)
}
