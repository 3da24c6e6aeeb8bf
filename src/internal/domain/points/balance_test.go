package points_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackyeh168/loyalty_engine/src/internal/domain/points"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/tenant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTenant(t *testing.T, id string) tenant.Tenant {
	t.Helper()
	handle, err := tenant.NewResolver(tenant.NewStaticRegistry(id)).Resolve(context.Background(), id)
	require.NoError(t, err)
	return handle
}

func mustAmount(t *testing.T, v int) points.PointsAmount {
	t.Helper()
	amount, err := points.NewPositivePointsAmount(v)
	require.NoError(t, err)
	return amount
}

func mustCorrelation(t *testing.T, s string) points.CorrelationID {
	t.Helper()
	id, err := points.NewCorrelationID(s)
	require.NoError(t, err)
	return id
}

func newBalance(t *testing.T) *points.CustomerBalance {
	t.Helper()
	customerID, err := points.CustomerIDFromString("cust-1")
	require.NoError(t, err)
	balance, err := points.NewCustomerBalance(mustTenant(t, "acme"), customerID)
	require.NoError(t, err)
	return balance
}

// Test 1: 新餘額為零
func TestNewCustomerBalance_StartsAtZero(t *testing.T) {
	balance := newBalance(t)

	assert.True(t, balance.Balance().IsZero())
	assert.Equal(t, int64(0), balance.Version())
	assert.Equal(t, "acme", balance.TenantID().String())
	assert.True(t, balance.BelongsTo(mustTenant(t, "acme")))
	assert.False(t, balance.BelongsTo(mustTenant(t, "globex")))
}

// Test 2: 未解析租戶無法建立餘額
func TestNewCustomerBalance_ZeroTenant_ReturnsError(t *testing.T) {
	customerID, _ := points.CustomerIDFromString("cust-1")

	_, err := points.NewCustomerBalance(tenant.Tenant{}, customerID)

	assert.ErrorIs(t, err, tenant.ErrMissingTenant)
}

// Test 3: 入帳產生正數分錄與事件
func TestCustomerBalance_Credit_ProducesEntryAndEvent(t *testing.T) {
	// Arrange
	balance := newBalance(t)

	// Act
	entry, err := balance.Credit(mustAmount(t, 100), points.ReasonEarningRule, mustCorrelation(t, "earn-1"))

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 100, balance.Balance().Value())
	assert.Equal(t, 100, entry.Delta())
	assert.True(t, entry.IsCredit())
	assert.Equal(t, 100, entry.BalanceAfter().Value())
	assert.Equal(t, "earn-1", entry.CorrelationID().String())
	assert.False(t, entry.ID().IsEmpty())

	events := balance.PullEvents()
	require.Len(t, events, 1)
	assert.Equal(t, "points.credited", events[0].EventType())
	assert.Equal(t, "acme/cust-1", events[0].AggregateID())
	assert.Empty(t, balance.PullEvents())
}

// Test 4: 扣帳產生負數分錄
func TestCustomerBalance_Debit_ProducesNegativeEntry(t *testing.T) {
	// Arrange
	balance := newBalance(t)
	_, err := balance.Credit(mustAmount(t, 100), points.ReasonEarningRule, mustCorrelation(t, "earn-1"))
	require.NoError(t, err)

	// Act
	entry, err := balance.Debit(mustAmount(t, 40), points.ReasonRedemption, mustCorrelation(t, "red-1"))

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 60, balance.Balance().Value())
	assert.Equal(t, -40, entry.Delta())
	assert.True(t, entry.IsDebit())
	assert.Equal(t, 40, entry.Magnitude().Value())
	assert.Equal(t, 60, entry.BalanceAfter().Value())
}

// Test 5: 餘額不足時拒絕扣帳且餘額不變
func TestCustomerBalance_Debit_Insufficient_LeavesBalanceUnchanged(t *testing.T) {
	// Arrange
	balance := newBalance(t)
	_, _ = balance.Credit(mustAmount(t, 50), points.ReasonEarningRule, mustCorrelation(t, "earn-1"))
	balance.PullEvents()

	// Act
	entry, err := balance.Debit(mustAmount(t, 80), points.ReasonRedemption, mustCorrelation(t, "red-1"))

	// Assert
	assert.ErrorIs(t, err, points.ErrInsufficientPoints)
	assert.Nil(t, entry)
	assert.Equal(t, 50, balance.Balance().Value())
	assert.Empty(t, balance.PullEvents())
}

// Test 6: 全額扣帳讓餘額歸零
func TestCustomerBalance_Debit_ExactBalance_ReachesZero(t *testing.T) {
	balance := newBalance(t)
	_, _ = balance.Credit(mustAmount(t, 50), points.ReasonEarningRule, mustCorrelation(t, "earn-1"))

	_, err := balance.Debit(mustAmount(t, 50), points.ReasonRedemption, mustCorrelation(t, "red-1"))

	require.NoError(t, err)
	assert.True(t, balance.Balance().IsZero())
}

// Test 7: 無效輸入
func TestCustomerBalance_Credit_InvalidInput(t *testing.T) {
	balance := newBalance(t)
	zero, _ := points.NewPointsAmount(0)

	_, err := balance.Credit(zero, points.ReasonEarningRule, mustCorrelation(t, "c"))
	assert.ErrorIs(t, err, points.ErrInvalidPointsAmount)

	_, err = balance.Credit(mustAmount(t, 1), points.ReasonCode("GIFT"), mustCorrelation(t, "c"))
	assert.ErrorIs(t, err, points.ErrInvalidReasonCode)

	_, err = balance.Credit(mustAmount(t, 1), points.ReasonEarningRule, points.CorrelationID{})
	assert.ErrorIs(t, err, points.ErrInvalidCorrelationID)

	assert.True(t, balance.Balance().IsZero())
}

// Test 8: 重建時負數餘額視為資料損壞
func TestReconstructCustomerBalance_NegativeBalance_IsCorrupted(t *testing.T) {
	customerID, _ := points.CustomerIDFromString("cust-1")
	tenantID, _ := tenant.TenantIDFromString("acme")

	_, err := points.ReconstructCustomerBalance(tenantID, customerID, -5, 3, time.Now(), time.Now())
	assert.ErrorIs(t, err, points.ErrCorruptedBalance)

	balance, err := points.ReconstructCustomerBalance(tenantID, customerID, 5, 3, time.Now(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(3), balance.Version())
	assert.Equal(t, 5, balance.Balance().Value())
}
