package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/jackyeh168/loyalty_engine/src/internal/domain/points"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/shared"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/tenant"
	"github.com/jackyeh168/loyalty_engine/src/internal/infrastructure/persistence"
	ledgerdb "github.com/jackyeh168/loyalty_engine/src/internal/infrastructure/persistence/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// ===========================
// 測試輔助
// ===========================

type fixture struct {
	db      *gorm.DB
	repo    *ledgerdb.Repository
	service *Service
	tenant  tenant.Tenant
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := persistence.SetupTestDB(t, &ledgerdb.BalanceGORM{}, &ledgerdb.EntryGORM{})
	repo := ledgerdb.NewRepository(db)
	acme, err := tenant.NewResolver(tenant.NewStaticRegistry("acme", "globex")).Resolve(context.Background(), "acme")
	require.NoError(t, err)
	return &fixture{
		db:      db,
		repo:    repo,
		service: NewService(repo, persistence.NewGORMTransactionManager(db), Options{}),
		tenant:  acme,
	}
}

func customer(t *testing.T, id string) points.CustomerID {
	t.Helper()
	c, err := points.CustomerIDFromString(id)
	require.NoError(t, err)
	return c
}

func correlation(t *testing.T, id string) points.CorrelationID {
	t.Helper()
	c, err := points.NewCorrelationID(id)
	require.NoError(t, err)
	return c
}

// recordingPublisher 記錄已發布的事件
type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(event shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

// conflictingRepository 前 N 次 UpdateBalance 模擬輸掉版本競爭
type conflictingRepository struct {
	points.LedgerRepository
	conflicts int
	calls     int
}

func (r *conflictingRepository) UpdateBalance(tx shared.TransactionContext, t tenant.Tenant, balance *points.CustomerBalance) error {
	r.calls++
	if r.calls <= r.conflicts {
		return shared.ErrConcurrentModification
	}
	return r.LedgerRepository.UpdateBalance(tx, t, balance)
}

// ===========================
// Credit / ReserveAndDebit
// ===========================

// Test 1: 首次入帳建立餘額，餘額等於分錄總和
func TestService_Credit_CreatesBalance(t *testing.T) {
	// Arrange
	f := newFixture(t)
	c := customer(t, "cust-1")
	publisher := &recordingPublisher{}
	f.service = NewService(f.repo, persistence.NewGORMTransactionManager(f.db), Options{Publisher: publisher})

	// Act
	first, err := f.service.Credit(context.Background(), f.tenant, c, 70, points.ReasonEarningRule, correlation(t, "e-1"))
	require.NoError(t, err)
	second, err := f.service.Credit(context.Background(), f.tenant, c, 30, points.ReasonEarningRule, correlation(t, "e-2"))
	require.NoError(t, err)

	// Assert
	assert.Equal(t, 70, first.Balance)
	assert.Equal(t, 100, second.Balance)
	assert.False(t, second.Duplicate)
	assert.Equal(t, 30, second.Entry.Delta())

	report, err := f.service.Reconcile(context.Background(), f.tenant, c)
	require.NoError(t, err)
	assert.Equal(t, int64(100), report.EntrySum)
	assert.Equal(t, int64(2), report.EntryCount)

	require.Len(t, publisher.events, 2)
	assert.Equal(t, "points.credited", publisher.events[0].EventType())
}

// Test 2: 相同關聯 ID 重複入帳只產生一筆分錄
func TestService_Credit_DuplicateCorrelation(t *testing.T) {
	f := newFixture(t)
	c := customer(t, "cust-1")
	ctx := context.Background()

	first, err := f.service.Credit(ctx, f.tenant, c, 50, points.ReasonEarningRule, correlation(t, "e-1"))
	require.NoError(t, err)
	replay, err := f.service.Credit(ctx, f.tenant, c, 50, points.ReasonEarningRule, correlation(t, "e-1"))
	require.NoError(t, err)

	assert.True(t, replay.Duplicate)
	assert.Equal(t, first.Entry.ID().String(), replay.Entry.ID().String())
	assert.Equal(t, 50, replay.Balance)

	entries, err := f.service.History(ctx, f.tenant, c, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

// Test 3: 關聯 ID 已用於相反方向時返回 ErrCorrelationConflict
func TestService_CorrelationUsedForOppositeDirection(t *testing.T) {
	f := newFixture(t)
	c := customer(t, "cust-1")
	ctx := context.Background()
	_, err := f.service.Credit(ctx, f.tenant, c, 50, points.ReasonEarningRule, correlation(t, "r-1"))
	require.NoError(t, err)

	_, err = f.service.ReserveAndDebit(ctx, f.tenant, c, 10, points.ReasonRedemption, correlation(t, "r-1"))

	assert.ErrorIs(t, err, points.ErrCorrelationConflict)
	balance, err := f.service.CurrentBalance(ctx, f.tenant, c)
	require.NoError(t, err)
	assert.Equal(t, 50, balance)
}

// Test 4: 餘額不足時扣帳失敗且沒有任何變更
func TestService_ReserveAndDebit_InsufficientBalance(t *testing.T) {
	// Arrange
	f := newFixture(t)
	c := customer(t, "cust-1")
	ctx := context.Background()
	_, err := f.service.Credit(ctx, f.tenant, c, 50, points.ReasonEarningRule, correlation(t, "e-1"))
	require.NoError(t, err)

	// Act
	result, err := f.service.ReserveAndDebit(ctx, f.tenant, c, 100, points.ReasonRedemption, correlation(t, "r-1"))

	// Assert
	assert.Nil(t, result)
	assert.ErrorIs(t, err, points.ErrInsufficientPoints)
	balance, err := f.service.CurrentBalance(ctx, f.tenant, c)
	require.NoError(t, err)
	assert.Equal(t, 50, balance)
	_, err = f.repo.FindEntryByCorrelation(nil, f.tenant, c, correlation(t, "r-1"))
	assert.ErrorIs(t, err, points.ErrEntryNotFound)
}

// Test 5: 沒有任何分錄的顧客扣帳返回餘額不足，餘額讀取為 0
func TestService_UnknownCustomer(t *testing.T) {
	f := newFixture(t)
	c := customer(t, "nobody")

	balance, err := f.service.CurrentBalance(context.Background(), f.tenant, c)
	require.NoError(t, err)
	assert.Equal(t, 0, balance)

	_, err = f.service.ReserveAndDebit(context.Background(), f.tenant, c, 1, points.ReasonRedemption, correlation(t, "r-1"))
	assert.ErrorIs(t, err, points.ErrInsufficientPoints)
}

// Test 6: 非正數金額被拒絕
func TestService_RejectsNonPositiveAmount(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Credit(context.Background(), f.tenant, customer(t, "cust-1"), 0, points.ReasonAdjustment, correlation(t, "a-1"))
	assert.ErrorIs(t, err, points.ErrInvalidPointsAmount)

	_, err = f.service.ReserveAndDebit(context.Background(), f.tenant, customer(t, "cust-1"), -5, points.ReasonRedemption, correlation(t, "a-2"))
	assert.Error(t, err)
}

// Test 7: 並發扣帳：餘額只夠一次時恰好一個成功
func TestService_ConcurrentDebits_ExactlyOneSucceeds(t *testing.T) {
	// Arrange
	f := newFixture(t)
	c := customer(t, "cust-1")
	ctx := context.Background()
	_, err := f.service.Credit(ctx, f.tenant, c, 100, points.ReasonEarningRule, correlation(t, "e-1"))
	require.NoError(t, err)

	// Act
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.service.ReserveAndDebit(ctx, f.tenant, c, 100, points.ReasonRedemption,
				correlation(t, []string{"r-1", "r-2"}[i]))
		}(i)
	}
	wg.Wait()

	// Assert
	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, points.ErrInsufficientPoints)
	}
	assert.Equal(t, 1, succeeded)
	balance, err := f.service.CurrentBalance(ctx, f.tenant, c)
	require.NoError(t, err)
	assert.Equal(t, 0, balance)
}

// Test 8: 版本衝突時重試，次數用盡返回 ErrConcurrentModification
func TestService_RetriesOnConflict(t *testing.T) {
	f := newFixture(t)
	c := customer(t, "cust-1")
	ctx := context.Background()
	_, err := f.service.Credit(ctx, f.tenant, c, 10, points.ReasonEarningRule, correlation(t, "e-1"))
	require.NoError(t, err)

	flaky := &conflictingRepository{LedgerRepository: f.repo, conflicts: 2}
	retrying := NewService(flaky, persistence.NewGORMTransactionManager(f.db), Options{MaxAttempts: 3})
	result, err := retrying.Credit(ctx, f.tenant, c, 5, points.ReasonEarningRule, correlation(t, "e-2"))
	require.NoError(t, err)
	assert.Equal(t, 15, result.Balance)
	assert.Equal(t, 3, flaky.calls)

	exhausted := &conflictingRepository{LedgerRepository: f.repo, conflicts: 10}
	giveUp := NewService(exhausted, persistence.NewGORMTransactionManager(f.db), Options{MaxAttempts: 2})
	_, err = giveUp.Credit(ctx, f.tenant, c, 5, points.ReasonEarningRule, correlation(t, "e-3"))
	assert.True(t, errors.Is(err, shared.ErrConcurrentModification))

	report, err := f.service.Reconcile(ctx, f.tenant, c)
	require.NoError(t, err)
	assert.Equal(t, 15, report.Balance)
	assert.Equal(t, int64(15), report.EntrySum)
}

// Test 9: 餘額與分錄不一致時對帳報告違反
func TestService_Reconcile_DetectsDrift(t *testing.T) {
	// Arrange
	f := newFixture(t)
	ctx := context.Background()
	for _, id := range []string{"cust-1", "cust-2", "cust-3"} {
		_, err := f.service.Credit(ctx, f.tenant, customer(t, id), 20, points.ReasonEarningRule, correlation(t, "e-"+id))
		require.NoError(t, err)
	}
	require.NoError(t, f.db.Model(&ledgerdb.BalanceGORM{}).
		Where("customer_id = ?", "cust-2").
		Update("balance", 999).Error)

	// Act
	report, err := f.service.ReconcileTenant(ctx, f.tenant)

	// Assert
	assert.ErrorIs(t, err, points.ErrInvariantViolation)
	require.NotNil(t, report)
	assert.Equal(t, 3, report.Checked)
	require.Len(t, report.Violations, 1)
	assert.Equal(t, "cust-2", report.Violations[0].CustomerID.String())

	_, err = f.service.Reconcile(ctx, f.tenant, customer(t, "cust-1"))
	assert.NoError(t, err)
}

// Test 10: 租戶隔離：同一顧客 ID 在不同租戶有獨立餘額
func TestService_TenantIsolation(t *testing.T) {
	f := newFixture(t)
	globex, err := tenant.NewResolver(tenant.NewStaticRegistry("globex")).Resolve(context.Background(), "globex")
	require.NoError(t, err)
	c := customer(t, "cust-1")
	ctx := context.Background()

	_, err = f.service.Credit(ctx, f.tenant, c, 40, points.ReasonEarningRule, correlation(t, "e-1"))
	require.NoError(t, err)

	balance, err := f.service.CurrentBalance(ctx, globex, c)
	require.NoError(t, err)
	assert.Equal(t, 0, balance)

	_, err = f.service.Credit(ctx, tenant.Tenant{}, c, 40, points.ReasonEarningRule, correlation(t, "e-2"))
	assert.ErrorIs(t, err, tenant.ErrMissingTenant)
}

// Test 11: 相同關聯 ID 重複扣帳只產生一筆分錄、一次餘額變動（即使重放時餘額已不足）
func TestService_ReserveAndDebit_DuplicateCorrelation(t *testing.T) {
	// Arrange
	f := newFixture(t)
	c := customer(t, "cust-1")
	ctx := context.Background()
	_, err := f.service.Credit(ctx, f.tenant, c, 50, points.ReasonEarningRule, correlation(t, "e-1"))
	require.NoError(t, err)

	// Act
	first, err := f.service.ReserveAndDebit(ctx, f.tenant, c, 30, points.ReasonRedemption, correlation(t, "r-1"))
	require.NoError(t, err)
	replay, err := f.service.ReserveAndDebit(ctx, f.tenant, c, 30, points.ReasonRedemption, correlation(t, "r-1"))
	require.NoError(t, err)

	// Assert
	assert.False(t, first.Duplicate)
	assert.True(t, replay.Duplicate)
	assert.Equal(t, first.Entry.ID().String(), replay.Entry.ID().String())
	assert.Equal(t, 20, first.Balance)
	assert.Equal(t, 20, replay.Balance)

	balance, err := f.service.CurrentBalance(ctx, f.tenant, c)
	require.NoError(t, err)
	assert.Equal(t, 20, balance)

	entries, err := f.service.History(ctx, f.tenant, c, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
