package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	earningapp "github.com/jackyeh168/loyalty_engine/src/internal/application/earning"
	"github.com/jackyeh168/loyalty_engine/src/internal/application/inventory"
	"github.com/jackyeh168/loyalty_engine/src/internal/application/ledger"
	redemptionapp "github.com/jackyeh168/loyalty_engine/src/internal/application/redemption"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/earning"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/payment"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/points"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/reward"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/shared"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/tenant"
	"github.com/jackyeh168/loyalty_engine/src/internal/infrastructure/metrics"
	paymentgw "github.com/jackyeh168/loyalty_engine/src/internal/infrastructure/payment"
	"github.com/jackyeh168/loyalty_engine/src/internal/infrastructure/persistence"
	earningdb "github.com/jackyeh168/loyalty_engine/src/internal/infrastructure/persistence/earning"
	ledgerdb "github.com/jackyeh168/loyalty_engine/src/internal/infrastructure/persistence/ledger"
	redemptiondb "github.com/jackyeh168/loyalty_engine/src/internal/infrastructure/persistence/redemption"
	rewarddb "github.com/jackyeh168/loyalty_engine/src/internal/infrastructure/persistence/reward"
	"github.com/jackyeh168/loyalty_engine/src/internal/infrastructure/persistence/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ===========================
// 測試輔助
// ===========================

type testServer struct {
	handler http.Handler
	ledger  *ledger.Service
	rules   *earningdb.Repository
	acme    tenant.Tenant
}

func newTestServer(t *testing.T, configure func(*Deps)) *testServer {
	t.Helper()
	db := persistence.SetupTestDB(t, schema.Models()...)
	tx := persistence.NewGORMTransactionManager(db)

	resolver := tenant.NewResolver(tenant.NewStaticRegistry("acme", "globex"))
	acme, err := resolver.Resolve(context.Background(), "acme")
	require.NoError(t, err)

	ledgerService := ledger.NewService(ledgerdb.NewRepository(db), tx, ledger.Options{})
	rules := earningdb.NewRepository(db)
	apply := earningapp.NewApplyRuleUseCase(rules, ledgerService, tx)

	rewards := rewarddb.NewRepository(db)
	mugID, _ := reward.RewardIDFromString("mug")
	mug, err := reward.NewReward(acme, mugID, "Mug", 100, 5, reward.Price{})
	require.NoError(t, err)
	require.NoError(t, rewards.Save(nil, acme, mug))

	coordinator := redemptionapp.NewCoordinator(
		redemptiondb.NewRepository(db),
		rewards,
		ledgerService,
		inventory.NewTracker(rewards, tx),
		paymentgw.NewMemoryGateway(),
		tx,
		redemptionapp.Options{},
	)

	deps := Deps{
		Tenants:     resolver,
		Events:      apply,
		Purchases:   earningapp.NewRecordPurchaseUseCase(apply),
		Redemptions: coordinator,
		Ledger:      ledgerService,
		Metrics:     metrics.NewCollector().Handler(),
	}
	if configure != nil {
		configure(&deps)
	}

	return &testServer{
		handler: NewRouter(deps),
		ledger:  ledgerService,
		rules:   rules,
		acme:    acme,
	}
}

func (s *testServer) do(t *testing.T, method, path, tenantID string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, ok := body.(string)
		if !ok {
			encoded, err := json.Marshal(body)
			require.NoError(t, err)
			raw = string(encoded)
		}
		reader = bytes.NewReader([]byte(raw))
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if tenantID != "" {
		req.Header.Set(TenantHeader, tenantID)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) seedRule(t *testing.T, event earning.EventKey, policy earning.Policy) {
	t.Helper()
	rule, err := earning.NewEarningRule(s.acme, event, policy, true)
	require.NoError(t, err)
	require.NoError(t, s.rules.Save(nil, s.acme, rule))
}

func (s *testServer) credit(t *testing.T, customer string, amount int) {
	t.Helper()
	customerID, err := points.CustomerIDFromString(customer)
	require.NoError(t, err)
	corr, err := points.NewCorrelationID("seed-" + customer)
	require.NoError(t, err)
	_, err = s.ledger.Credit(context.Background(), s.acme, customerID, amount, points.ReasonAdjustment, corr)
	require.NoError(t, err)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

// ===========================
// 租戶
// ===========================

// Test 1: 缺少 X-Tenant-ID → 400
func TestRouter_MissingTenant_BadRequest(t *testing.T) {
	// Arrange
	srv := newTestServer(t, nil)

	// Act
	rec := srv.do(t, http.MethodGet, "/api/customers/alice/balance", "", nil)

	// Assert
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(tenant.ErrCodeMissingTenant), decode[ErrorResponse](t, rec).Code)
}

// Test 2: 未知租戶 → 403
func TestRouter_UnknownTenant_Forbidden(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := srv.do(t, http.MethodGet, "/api/customers/alice/balance", "initech", nil)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, string(tenant.ErrCodeUnknownTenant), decode[ErrorResponse](t, rec).Code)
}

// Test 3: 請求租戶與已驗證身分不一致 → 403
func TestRouter_TenantMismatch_Forbidden(t *testing.T) {
	srv := newTestServer(t, func(d *Deps) {
		d.Authenticate = func(*http.Request) string { return "globex" }
	})

	rec := srv.do(t, http.MethodGet, "/api/customers/alice/balance", "acme", nil)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, string(tenant.ErrCodeTenantMismatch), decode[ErrorResponse](t, rec).Code)
}

// ===========================
// 積分入帳
// ===========================

// Test 4: 事件入帳；重送相同事件 ID 只入帳一次
func TestApplyEvent_CreditsOnce(t *testing.T) {
	// Arrange
	srv := newTestServer(t, nil)
	event, err := earning.NewEventKey("TRANSACTION", "CHECK_IN")
	require.NoError(t, err)
	srv.seedRule(t, event, earning.FixedPolicy{Points: 10})
	body := EventRequest{
		CustomerID: "alice",
		EventType:  "transaction",
		EventName:  "check_in",
		EventID:    "evt-1",
		Payload:    map[string]interface{}{},
	}

	// Act
	first := srv.do(t, http.MethodPost, "/api/events", "acme", body)
	second := srv.do(t, http.MethodPost, "/api/events", "acme", body)

	// Assert
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	firstResp := decode[EarningResponse](t, first)
	assert.True(t, firstResp.Applied)
	assert.Equal(t, 10, firstResp.Points)
	assert.Equal(t, 10, firstResp.Balance)

	require.Equal(t, http.StatusOK, second.Code)
	secondResp := decode[EarningResponse](t, second)
	assert.True(t, secondResp.Duplicate)
	assert.Equal(t, 10, secondResp.Balance)
}

// Test 5: 消費交易套用百分比規則，金額可為字串
func TestRecordPurchase_PercentageRule(t *testing.T) {
	// Arrange
	srv := newTestServer(t, nil)
	policy, err := earning.PolicySpec{Kind: earning.PolicyPercentage, Field: "amount", Percent: "10"}.ToPolicy()
	require.NoError(t, err)
	srv.seedRule(t, earning.PurchaseEvent, policy)

	// Act
	rec := srv.do(t, http.MethodPost, "/api/transactions", "acme",
		`{"customerId":"alice","transactionId":"tx-1","amount":"259.90"}`)

	// Assert
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[EarningResponse](t, rec)
	assert.True(t, resp.Applied)
	assert.Equal(t, 25, resp.Points)
}

// Test 6: 事件內容缺少策略欄位 → 400
func TestApplyEvent_InvalidPayload_BadRequest(t *testing.T) {
	srv := newTestServer(t, nil)
	policy, err := earning.PolicySpec{Kind: earning.PolicyPercentage, Field: "amount", Percent: "10"}.ToPolicy()
	require.NoError(t, err)
	srv.seedRule(t, earning.PurchaseEvent, policy)

	rec := srv.do(t, http.MethodPost, "/api/events", "acme", EventRequest{
		CustomerID: "alice",
		EventType:  "TRANSACTION",
		EventName:  "PURCHASE",
		EventID:    "evt-1",
		Payload:    map[string]interface{}{"total": 10},
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(earning.ErrCodeInvalidPayload), decode[ErrorResponse](t, rec).Code)
}

// Test 7: 無法解析的請求內容 → 400
func TestApplyEvent_MalformedBody_BadRequest(t *testing.T) {
	srv := newTestServer(t, nil)

	malformed := srv.do(t, http.MethodPost, "/api/events", "acme", `{"customerId":`)
	unknownField := srv.do(t, http.MethodPost, "/api/events", "acme", `{"customer":"alice"}`)

	assert.Equal(t, http.StatusBadRequest, malformed.Code)
	assert.Equal(t, string(codeInvalidBody), decode[ErrorResponse](t, malformed).Code)
	assert.Equal(t, http.StatusBadRequest, unknownField.Code)
}

// ===========================
// 兌換
// ===========================

// Test 8: 兌換完成；Idempotency-Key header 重送返回同一筆兌換
func TestRedeem_CompletesAndIsIdempotent(t *testing.T) {
	// Arrange
	srv := newTestServer(t, nil)
	srv.credit(t, "alice", 100)
	body := RedeemRequest{CustomerID: "alice", RewardID: "mug"}

	// Act
	first := srv.do(t, http.MethodPost, "/api/redemptions", "acme", body, IdempotencyKeyHeader, "key-1")
	retry := srv.do(t, http.MethodPost, "/api/redemptions", "acme", body, IdempotencyKeyHeader, "key-1")
	balance := srv.do(t, http.MethodGet, "/api/customers/alice/balance", "acme", nil)

	// Assert
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	firstResp := decode[RedemptionResponse](t, first)
	assert.Equal(t, "COMPLETED", firstResp.State)
	assert.Equal(t, 100, firstResp.PointsCost)

	require.Equal(t, http.StatusOK, retry.Code)
	assert.Equal(t, firstResp.RedemptionID, decode[RedemptionResponse](t, retry).RedemptionID)

	require.Equal(t, http.StatusOK, balance.Code)
	assert.Equal(t, 0, decode[BalanceResponse](t, balance).Balance)

	get := srv.do(t, http.MethodGet, "/api/redemptions/"+firstResp.RedemptionID, "acme", nil)
	require.Equal(t, http.StatusOK, get.Code)
	assert.Equal(t, "COMPLETED", decode[RedemptionResponse](t, get).State)
}

// Test 9: 餘額不足以 200 回傳失敗狀態
func TestRedeem_InsufficientBalance_ReportsFailureState(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.credit(t, "alice", 50)

	rec := srv.do(t, http.MethodPost, "/api/redemptions", "acme",
		RedeemRequest{CustomerID: "alice", RewardID: "mug", IdempotencyKey: "key-1"})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[RedemptionResponse](t, rec)
	assert.Equal(t, "FAILED_INSUFFICIENT_BALANCE", resp.State)
	assert.NotEmpty(t, resp.Reason)
}

// Test 10: 請求無法處理時以錯誤代碼對應狀態碼
func TestRedeem_RequestErrors(t *testing.T) {
	srv := newTestServer(t, nil)

	missingKey := srv.do(t, http.MethodPost, "/api/redemptions", "acme",
		RedeemRequest{CustomerID: "alice", RewardID: "mug"})
	unknownReward := srv.do(t, http.MethodPost, "/api/redemptions", "acme",
		RedeemRequest{CustomerID: "alice", RewardID: "yacht", IdempotencyKey: "key-1"})
	badID := srv.do(t, http.MethodGet, "/api/redemptions/not-a-uuid", "acme", nil)
	unknownID := srv.do(t, http.MethodGet, "/api/redemptions/"+shared.NewEntityID[struct{}]().String(), "acme", nil)

	assert.Equal(t, http.StatusBadRequest, missingKey.Code)
	assert.Equal(t, http.StatusNotFound, unknownReward.Code)
	assert.Equal(t, http.StatusBadRequest, badID.Code)
	assert.Equal(t, http.StatusNotFound, unknownID.Code)
}

// Test 11: 其他租戶看不到兌換
func TestRedeem_OtherTenant_NotFound(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.credit(t, "alice", 100)
	rec := srv.do(t, http.MethodPost, "/api/redemptions", "acme",
		RedeemRequest{CustomerID: "alice", RewardID: "mug", IdempotencyKey: "key-1"})
	require.Equal(t, http.StatusOK, rec.Code)
	id := decode[RedemptionResponse](t, rec).RedemptionID

	other := srv.do(t, http.MethodGet, "/api/redemptions/"+id, "globex", nil)

	assert.Equal(t, http.StatusNotFound, other.Code)
}

// Test 12: 取消已完成的兌換 → 409
func TestCancelRedemption_Completed_Conflict(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.credit(t, "alice", 100)
	rec := srv.do(t, http.MethodPost, "/api/redemptions", "acme",
		RedeemRequest{CustomerID: "alice", RewardID: "mug", IdempotencyKey: "key-1"})
	require.Equal(t, http.StatusOK, rec.Code)
	id := decode[RedemptionResponse](t, rec).RedemptionID

	cancel := srv.do(t, http.MethodPost, "/api/redemptions/"+id+"/cancel", "acme", nil)

	assert.Equal(t, http.StatusConflict, cancel.Code)
	assert.Equal(t, "REDEMPTION_TERMINAL", decode[ErrorResponse](t, cancel).Code)
}

// ===========================
// 餘額查詢與維運
// ===========================

// Test 13: 分錄查詢；limit 無效 → 400
func TestGetEntries(t *testing.T) {
	// Arrange
	srv := newTestServer(t, nil)
	srv.credit(t, "alice", 100)
	rec := srv.do(t, http.MethodPost, "/api/redemptions", "acme",
		RedeemRequest{CustomerID: "alice", RewardID: "mug", IdempotencyKey: "key-1"})
	require.Equal(t, http.StatusOK, rec.Code)

	// Act
	entries := srv.do(t, http.MethodGet, "/api/customers/alice/entries?limit=10", "acme", nil)
	invalid := srv.do(t, http.MethodGet, "/api/customers/alice/entries?limit=ten", "acme", nil)

	// Assert
	require.Equal(t, http.StatusOK, entries.Code)
	resp := decode[EntriesResponse](t, entries)
	require.Len(t, resp.Entries, 2)
	deltas := []int{resp.Entries[0].Delta, resp.Entries[1].Delta}
	assert.ElementsMatch(t, []int{100, -100}, deltas)
	assert.Equal(t, http.StatusBadRequest, invalid.Code)
}

// Test 14: healthz 與 metrics 不需要租戶
func TestOpsEndpoints(t *testing.T) {
	healthy := newTestServer(t, nil)
	unhealthy := newTestServer(t, func(d *Deps) {
		d.Health = func(context.Context) error { return errors.New("database is locked") }
	})

	ok := healthy.do(t, http.MethodGet, "/healthz", "", nil)
	down := unhealthy.do(t, http.MethodGet, "/healthz", "", nil)
	scrape := healthy.do(t, http.MethodGet, "/metrics", "", nil)

	assert.Equal(t, http.StatusOK, ok.Code)
	assert.Equal(t, http.StatusServiceUnavailable, down.Code)
	assert.Equal(t, "unavailable", decode[HealthResponse](t, down).Status)
	assert.Equal(t, http.StatusOK, scrape.Code)
	assert.Contains(t, scrape.Body.String(), "go_goroutines")
}

// Test 15: 錯誤代碼對應（含包裝後的錯誤）
func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrapped: %w", points.ErrInsufficientPoints), http.StatusConflict},
		{reward.ErrOutOfStock.WithContext("reward_id", "mug"), http.StatusConflict},
		{fmt.Errorf("capture: %w", payment.ErrDeclined), http.StatusPaymentRequired},
		{payment.ErrGatewayUnavailable, http.StatusServiceUnavailable},
		{shared.ErrConcurrentModification, http.StatusServiceUnavailable},
		{points.ErrInvariantViolation, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}

	internal := errorResponseOf(points.ErrInvariantViolation.WithContext("customer_id", "alice"), http.StatusInternalServerError)
	assert.Nil(t, internal.Details)
}
