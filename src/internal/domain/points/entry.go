package points

import (
	"time"

	"github.com/jackyeh168/loyalty_engine/src/internal/domain/tenant"
)

// ===========================
// LedgerEntry 帳本分錄（不可變）
// ===========================

// LedgerEntry 一筆已入帳的積分異動
//
// 不變條件：
// - delta != 0（正數為入帳，負數為扣帳）
// - balanceAfter 為寫入該分錄後的餘額
// - 一旦寫入不可修改；更正以補償分錄表達
type LedgerEntry struct {
	id            EntryID
	tenantID      tenant.TenantID
	customerID    CustomerID
	delta         int
	reason        ReasonCode
	correlationID CorrelationID
	balanceAfter  PointsAmount
	createdAt     time.Time
}

// ReconstructLedgerEntry 從持久化數據重建分錄（Repository 專用）
func ReconstructLedgerEntry(
	id EntryID,
	tenantID tenant.TenantID,
	customerID CustomerID,
	delta int,
	reason ReasonCode,
	correlationID CorrelationID,
	balanceAfter PointsAmount,
	createdAt time.Time,
) *LedgerEntry {
	return &LedgerEntry{
		id:            id,
		tenantID:      tenantID,
		customerID:    customerID,
		delta:         delta,
		reason:        reason,
		correlationID: correlationID,
		balanceAfter:  balanceAfter,
		createdAt:     createdAt,
	}
}

// --- Getter 方法 ---

func (e *LedgerEntry) ID() EntryID { return e.id }
func (e *LedgerEntry) TenantID() tenant.TenantID { return e.tenantID }
func (e *LedgerEntry) CustomerID() CustomerID { return e.customerID }
func (e *LedgerEntry) Delta() int { return e.delta }
func (e *LedgerEntry) Reason() ReasonCode { return e.reason }
func (e *LedgerEntry) CorrelationID() CorrelationID { return e.correlationID }
func (e *LedgerEntry) BalanceAfter() PointsAmount { return e.balanceAfter }
func (e *LedgerEntry) CreatedAt() time.Time { return e.createdAt }

// IsCredit 是否為入帳分錄
func (e *LedgerEntry) IsCredit() bool {
	return e.delta > 0
}

// IsDebit 是否為扣帳分錄
func (e *LedgerEntry) IsDebit() bool {
	return e.delta < 0
}

// Magnitude 分錄的絕對值
func (e *LedgerEntry) Magnitude() PointsAmount {
	if e.delta < 0 {
		return newPointsAmountUnchecked(-e.delta)
	}
	return newPointsAmountUnchecked(e.delta)
}
