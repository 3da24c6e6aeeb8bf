package shared_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jackyeh168/loyalty_engine/src/internal/domain/shared"
	"github.com/stretchr/testify/assert"
)

// Test 1: 第一次成功不重試
func TestRetryOnConflict_SuccessFirstAttempt(t *testing.T) {
	// Arrange
	calls := 0

	// Act
	err := shared.RetryOnConflict(context.Background(), 3, func() error {
		calls++
		return nil
	})

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

// Test 2: 並發衝突後重試成功
func TestRetryOnConflict_RetriesConcurrentModification(t *testing.T) {
	// Arrange
	calls := 0

	// Act
	err := shared.RetryOnConflict(context.Background(), 3, func() error {
		calls++
		if calls < 3 {
			return shared.ErrConcurrentModification.WithContext("attempt", calls)
		}
		return nil
	})

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

// Test 3: 業務錯誤不重試
func TestRetryOnConflict_DoesNotRetryOtherErrors(t *testing.T) {
	// Arrange
	calls := 0
	businessErr := errors.New("insufficient")

	// Act
	err := shared.RetryOnConflict(context.Background(), 5, func() error {
		calls++
		return businessErr
	})

	// Assert
	assert.ErrorIs(t, err, businessErr)
	assert.Equal(t, 1, calls)
}

// Test 4: 次數用盡返回 ErrConcurrentModification
func TestRetryOnConflict_ExhaustsAttempts(t *testing.T) {
	// Arrange
	calls := 0

	// Act
	err := shared.RetryOnConflict(context.Background(), 4, func() error {
		calls++
		return shared.ErrConcurrentModification
	})

	// Assert
	assert.ErrorIs(t, err, shared.ErrConcurrentModification)
	assert.Equal(t, 4, calls)
}

// Test 5: context 取消時停止重試
func TestRetryOnConflict_StopsOnContextCancel(t *testing.T) {
	// Arrange
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	// Act
	err := shared.RetryOnConflict(ctx, 10, func() error {
		calls++
		cancel()
		return shared.ErrConcurrentModification
	})

	// Assert
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

// Test 6: DomainError WithContext 不改變原錯誤且保留 Is 語義
func TestDomainError_WithContext_IsImmutable(t *testing.T) {
	// Arrange
	base := shared.NewDomainError("X", "base")

	// Act
	withCtx := base.WithContext("k", "v")

	// Assert
	assert.Empty(t, base.Context)
	assert.ErrorIs(t, withCtx, base)
	assert.Contains(t, withCtx.Error(), "k:v")
	assert.Panics(t, func() { _ = base.WithContext("odd") })
}
