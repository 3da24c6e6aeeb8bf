package reward_test

import (
	"context"
	"testing"

	"github.com/jackyeh168/loyalty_engine/src/internal/domain/reward"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/tenant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func acme(t *testing.T) tenant.Tenant {
	t.Helper()
	handle, err := tenant.NewResolver(tenant.NewStaticRegistry("acme")).Resolve(context.Background(), "acme")
	require.NoError(t, err)
	return handle
}

// Test 1: 價格轉為最小貨幣單位
func TestPrice_MinorUnits(t *testing.T) {
	tests := []struct {
		amount   string
		currency string
		expected int64
	}{
		{"12.34", "usd", 1234},
		{"0.5", "EUR", 50},
		{"9.999", "USD", 1000},
		{"1500", "JPY", 1500},
	}

	for _, tt := range tests {
		price, err := reward.ParsePrice(tt.amount, tt.currency)
		require.NoError(t, err)
		assert.Equal(t, tt.expected, price.MinorUnits(), tt.amount+" "+tt.currency)
	}
}

// Test 2: 無效價格
func TestPrice_Invalid(t *testing.T) {
	_, err := reward.ParsePrice("0", "USD")
	assert.ErrorIs(t, err, reward.ErrInvalidPrice)

	_, err = reward.ParsePrice("abc", "USD")
	assert.ErrorIs(t, err, reward.ErrInvalidPrice)

	_, err = reward.ParsePrice("10", "DOLLAR")
	assert.ErrorIs(t, err, reward.ErrInvalidPrice)

	var unpriced reward.Price
	assert.True(t, unpriced.IsZero())
	assert.Equal(t, "", unpriced.String())
}

// Test 3: 建立獎勵
func TestNewReward(t *testing.T) {
	// Arrange
	id, err := reward.RewardIDFromString("mug")
	require.NoError(t, err)
	price, _ := reward.ParsePrice("12.5", "usd")

	// Act
	r, err := reward.NewReward(acme(t), id, " Coffee Mug ", 100, 3, price)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "Coffee Mug", r.Name())
	assert.Equal(t, 100, r.PointsCost())
	assert.Equal(t, 3, r.RemainingQuantity())
	assert.True(t, r.IsPriced())
	assert.True(t, r.InStock())
	assert.Equal(t, "12.50 USD", r.Price().String())
}

// Test 4: 無效獎勵資料
func TestNewReward_Invalid(t *testing.T) {
	id, _ := reward.RewardIDFromString("mug")

	_, err := reward.NewReward(acme(t), id, "Mug", 0, 1, reward.Price{})
	assert.ErrorIs(t, err, reward.ErrInvalidReward)

	_, err = reward.NewReward(acme(t), id, "", 10, 1, reward.Price{})
	assert.ErrorIs(t, err, reward.ErrInvalidReward)

	_, err = reward.NewReward(acme(t), id, "Mug", 10, -1, reward.Price{})
	assert.ErrorIs(t, err, reward.ErrInvalidQuantity)

	_, err = reward.NewReward(tenant.Tenant{}, id, "Mug", 10, 1, reward.Price{})
	assert.ErrorIs(t, err, tenant.ErrMissingTenant)
}

// Test 5: 庫存異動需要非零數量與關聯 ID
func TestNewInventoryAdjustment(t *testing.T) {
	id, _ := reward.RewardIDFromString("mug")

	adj, err := reward.NewInventoryAdjustment(acme(t), id, -1, "red-1")
	require.NoError(t, err)
	assert.Equal(t, -1, adj.Delta())
	assert.Equal(t, "red-1", adj.CorrelationID())

	_, err = reward.NewInventoryAdjustment(acme(t), id, 0, "red-1")
	assert.ErrorIs(t, err, reward.ErrInvalidQuantity)

	_, err = reward.NewInventoryAdjustment(acme(t), id, 1, " ")
	assert.ErrorIs(t, err, reward.ErrInvalidQuantity)
}
