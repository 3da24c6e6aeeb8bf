package events

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/jackyeh168/loyalty_engine/src/internal/domain/points"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/redemption"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/reward"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/tenant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// Test 1: 兌換狀態事件輸出 from / to
func TestLogPublisher_RedemptionStateChanged(t *testing.T) {
	// Arrange
	var buf bytes.Buffer
	p := NewLogPublisher(newLogger(&buf), slog.LevelInfo)
	acme, err := tenant.NewResolver(tenant.NewStaticRegistry("acme")).Resolve(context.Background(), "acme")
	require.NoError(t, err)
	customerID, _ := points.CustomerIDFromString("alice")
	rewardID, _ := reward.RewardIDFromString("mug")
	rd, err := redemption.NewRedemption(acme, customerID, rewardID, "key-1")
	require.NoError(t, err)
	require.NoError(t, rd.MarkBalanceChecked())
	events := rd.PullEvents()
	require.NotEmpty(t, events)

	// Act
	require.NoError(t, p.Publish(events[len(events)-1]))

	// Assert
	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "domain event", line["msg"])
	assert.Equal(t, "redemption.state_changed", line["event_type"])
	assert.Equal(t, "acme", line["tenant_id"])
	assert.Equal(t, "BALANCE_CHECKED", line["to"])
}

// Test 2: 低於 handler 等級的事件不輸出
func TestLogPublisher_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	p := NewLogPublisher(logger, slog.LevelInfo)
	acme, err := tenant.NewResolver(tenant.NewStaticRegistry("acme")).Resolve(context.Background(), "acme")
	require.NoError(t, err)
	customerID, _ := points.CustomerIDFromString("alice")
	rewardID, _ := reward.RewardIDFromString("mug")
	rd, err := redemption.NewRedemption(acme, customerID, rewardID, "key-1")
	require.NoError(t, err)
	require.NoError(t, rd.MarkBalanceChecked())

	for _, event := range rd.PullEvents() {
		require.NoError(t, p.Publish(event))
	}

	assert.Zero(t, buf.Len())
}
