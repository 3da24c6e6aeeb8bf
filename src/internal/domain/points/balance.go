package points

import (
	"time"

	"github.com/jackyeh168/loyalty_engine/src/internal/domain/shared"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/tenant"
)

// ===========================
// CustomerBalance 聚合根
// ===========================

// CustomerBalance 顧客在某租戶下的積分餘額
//
// 不變條件：
// - balance >= 0（由 PointsAmount 保證）
// - balance 等於該 (tenant, customer) 所有分錄 delta 的總和
// - version 單調遞增；Repository 以 version 做條件更新（樂觀鎖）
//
// 聚合根只在記憶體中計算新餘額並產生分錄，
// 原子性由 Repository 的條件更新 + 分錄唯一鍵共同保證。
type CustomerBalance struct {
	tenantID   tenant.TenantID
	customerID CustomerID
	balance    PointsAmount
	version    int64
	createdAt  time.Time
	updatedAt  time.Time

	shared.EventRecorder
}

// NewCustomerBalance 建立餘額為零的新聚合（首次入帳時使用）
func NewCustomerBalance(t tenant.Tenant, customerID CustomerID) (*CustomerBalance, error) {
	if t.IsZero() {
		return nil, tenant.ErrMissingTenant
	}
	if customerID.IsEmpty() {
		return nil, ErrInvalidCustomerID.WithContext("reason", "customer id is empty")
	}
	now := time.Now().UTC()
	return &CustomerBalance{
		tenantID:   t.ID(),
		customerID: customerID,
		balance:    newPointsAmountUnchecked(0),
		version:    0,
		createdAt:  now,
		updatedAt:  now,
	}, nil
}

// ReconstructCustomerBalance 從持久化數據重建（Repository 專用）
//
// 資料庫中的負數餘額視為資料損壞。
func ReconstructCustomerBalance(
	tenantID tenant.TenantID,
	customerID CustomerID,
	balance int,
	version int64,
	createdAt time.Time,
	updatedAt time.Time,
) (*CustomerBalance, error) {
	amount, err := NewPointsAmount(balance)
	if err != nil {
		return nil, ErrCorruptedBalance.WithContext(
			"tenant_id", tenantID.String(),
			"customer_id", customerID.String(),
			"balance", balance,
		)
	}
	return &CustomerBalance{
		tenantID:   tenantID,
		customerID: customerID,
		balance:    amount,
		version:    version,
		createdAt:  createdAt,
		updatedAt:  updatedAt,
	}, nil
}

// --- Getter 方法 ---

func (b *CustomerBalance) TenantID() tenant.TenantID { return b.tenantID }
func (b *CustomerBalance) CustomerID() CustomerID { return b.customerID }
func (b *CustomerBalance) Balance() PointsAmount { return b.balance }
func (b *CustomerBalance) Version() int64 { return b.version }
func (b *CustomerBalance) CreatedAt() time.Time { return b.createdAt }
func (b *CustomerBalance) UpdatedAt() time.Time { return b.updatedAt }

// BelongsTo 是否屬於指定租戶
func (b *CustomerBalance) BelongsTo(t tenant.Tenant) bool {
	return !t.IsZero() && b.tenantID.Equals(t.ID())
}

// ===========================
// 命令方法
// ===========================

// Credit 入帳
//
// 前置條件：amount > 0
// 後置條件：balance 增加 amount，返回待寫入的分錄並記錄 PointsCreditedEvent
func (b *CustomerBalance) Credit(amount PointsAmount, reason ReasonCode, correlationID CorrelationID) (*LedgerEntry, error) {
	if err := b.validateMutation(amount, reason, correlationID); err != nil {
		return nil, err
	}

	newBalance, err := b.balance.Add(amount)
	if err != nil {
		return nil, err
	}

	entry := b.apply(amount.Value(), newBalance, reason, correlationID)
	b.Record(NewPointsCreditedEvent(entry))
	return entry, nil
}

// Debit 扣帳
//
// 業務規則：餘額不足時拒絕，餘額不會變為負數
func (b *CustomerBalance) Debit(amount PointsAmount, reason ReasonCode, correlationID CorrelationID) (*LedgerEntry, error) {
	if err := b.validateMutation(amount, reason, correlationID); err != nil {
		return nil, err
	}

	newBalance, err := b.balance.Subtract(amount)
	if err != nil {
		return nil, ErrInsufficientPoints.WithContext(
			"customer_id", b.customerID.String(),
			"available", b.balance.Value(),
			"requested", amount.Value(),
		)
	}

	entry := b.apply(-amount.Value(), newBalance, reason, correlationID)
	b.Record(NewPointsDebitedEvent(entry))
	return entry, nil
}

// ===========================
// 私有方法
// ===========================

func (b *CustomerBalance) validateMutation(amount PointsAmount, reason ReasonCode, correlationID CorrelationID) error {
	if amount.IsZero() {
		return ErrInvalidPointsAmount.WithContext("reason", "amount must be greater than zero")
	}
	if !reason.IsValid() {
		return ErrInvalidReasonCode.WithContext("input", string(reason))
	}
	if correlationID.IsEmpty() {
		return ErrInvalidCorrelationID.WithContext("reason", "correlation id is empty")
	}
	return nil
}

func (b *CustomerBalance) apply(delta int, newBalance PointsAmount, reason ReasonCode, correlationID CorrelationID) *LedgerEntry {
	now := time.Now().UTC()
	b.balance = newBalance
	b.updatedAt = now
	return &LedgerEntry{
		id:            NewEntryID(),
		tenantID:      b.tenantID,
		customerID:    b.customerID,
		delta:         delta,
		reason:        reason,
		correlationID: correlationID,
		balanceAfter:  newBalance,
		createdAt:     now,
	}
}
