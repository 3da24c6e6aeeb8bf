package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackyeh168/loyalty_engine/src/internal/infrastructure/config"
	"github.com/jackyeh168/loyalty_engine/src/internal/infrastructure/httpapi"
	paymentgw "github.com/jackyeh168/loyalty_engine/src/internal/infrastructure/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Database.DSN = ":memory:"
	return cfg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Test 1: 組裝完成後可處理請求，種子租戶可用
func TestNewApp_ServesSeededTenant(t *testing.T) {
	// Arrange
	seedFile := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(seedFile, []byte(`
tenants:
  - id: acme
    name: Acme
    rewards:
      - id: mug
        name: Mug
        points_cost: 100
        quantity: 5
`), 0o600))
	cfg := testConfig(t)
	cfg.SeedFile = seedFile

	a, err := newApp(cfg, quietLogger())
	require.NoError(t, err)
	defer a.close()
	require.NoError(t, a.seed(context.Background()))
	router := a.router()

	// Act
	health := httptest.NewRecorder()
	router.ServeHTTP(health, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	balanceReq := httptest.NewRequest(http.MethodGet, "/api/customers/alice/balance", nil)
	balanceReq.Header.Set(httpapi.TenantHeader, "acme")
	balance := httptest.NewRecorder()
	router.ServeHTTP(balance, balanceReq)

	unknownReq := httptest.NewRequest(http.MethodGet, "/api/customers/alice/balance", nil)
	unknownReq.Header.Set(httpapi.TenantHeader, "globex")
	unknown := httptest.NewRecorder()
	router.ServeHTTP(unknown, unknownReq)

	// Assert
	assert.Equal(t, http.StatusOK, health.Code)
	assert.Equal(t, http.StatusOK, balance.Code)
	assert.Equal(t, http.StatusForbidden, unknown.Code)
}

// Test 2: 支付閘道依設定選擇
func TestNewGateway(t *testing.T) {
	memory, err := newGateway(config.PaymentConfig{Provider: config.PaymentProviderMemory})
	require.NoError(t, err)
	assert.IsType(t, &paymentgw.MemoryGateway{}, memory)

	httpGateway, err := newGateway(config.PaymentConfig{Provider: config.PaymentProviderHTTP, APIKey: "sk_test"})
	require.NoError(t, err)
	assert.IsType(t, &paymentgw.HTTPGateway{}, httpGateway)

	_, err = newGateway(config.PaymentConfig{Provider: config.PaymentProviderHTTP})
	assert.Error(t, err)

	_, err = newGateway(config.PaymentConfig{Provider: "paypal"})
	assert.Error(t, err)
}
