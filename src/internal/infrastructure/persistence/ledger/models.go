package ledger

import (
	"time"

	"github.com/jackyeh168/loyalty_engine/src/internal/domain/points"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/tenant"
)

// ===========================
// GORM Models
// ===========================

// BalanceGORM 顧客餘額資料表模型
//
// 資料庫約束：
// - (tenant_id, customer_id): 複合主鍵
// - balance >= 0: CHECK 約束（最後一道防線；主要由條件更新保證）
// - version: 樂觀鎖
type BalanceGORM struct {
	TenantID   string    `gorm:"column:tenant_id;type:varchar(128);primaryKey"`
	CustomerID string    `gorm:"column:customer_id;type:varchar(128);primaryKey"`
	Balance    int64     `gorm:"column:balance;not null;default:0;check:chk_balances_non_negative,balance >= 0"`
	Version    int64     `gorm:"column:version;not null;default:0"`
	CreatedAt  time.Time `gorm:"column:created_at;not null"`
	UpdatedAt  time.Time `gorm:"column:updated_at;not null"`
}

// TableName 指定資料表名稱
func (BalanceGORM) TableName() string {
	return "customer_balances"
}

// EntryGORM 帳本分錄資料表模型（只新增，不更新）
//
// 資料庫約束：
// - entry_id: 主鍵（UUID）
// - (tenant_id, customer_id, correlation_id): 唯一索引（冪等錨點）
type EntryGORM struct {
	EntryID       string    `gorm:"column:entry_id;type:varchar(36);primaryKey"`
	TenantID      string    `gorm:"column:tenant_id;type:varchar(128);not null;uniqueIndex:idx_entries_correlation,priority:1;index:idx_entries_customer,priority:1"`
	CustomerID    string    `gorm:"column:customer_id;type:varchar(128);not null;uniqueIndex:idx_entries_correlation,priority:2;index:idx_entries_customer,priority:2"`
	CorrelationID string    `gorm:"column:correlation_id;type:varchar(255);not null;uniqueIndex:idx_entries_correlation,priority:3"`
	Delta         int64     `gorm:"column:delta;not null"`
	Reason        string    `gorm:"column:reason;type:varchar(32);not null"`
	BalanceAfter  int64     `gorm:"column:balance_after;not null"`
	CreatedAt     time.Time `gorm:"column:created_at;not null;index:idx_entries_customer,priority:3"`
}

// TableName 指定資料表名稱
func (EntryGORM) TableName() string {
	return "ledger_entries"
}

// ===========================
// Mapper Functions
// ===========================

func balanceToDomain(m *BalanceGORM) (*points.CustomerBalance, error) {
	tenantID, err := tenant.TenantIDFromString(m.TenantID)
	if err != nil {
		return nil, points.ErrCorruptedBalance.WithContext("tenant_id", m.TenantID)
	}
	customerID, err := points.CustomerIDFromString(m.CustomerID)
	if err != nil {
		return nil, points.ErrCorruptedBalance.WithContext("customer_id", m.CustomerID)
	}
	return points.ReconstructCustomerBalance(
		tenantID,
		customerID,
		int(m.Balance),
		m.Version,
		m.CreatedAt,
		m.UpdatedAt,
	)
}

func balanceToGORM(b *points.CustomerBalance) *BalanceGORM {
	return &BalanceGORM{
		TenantID:   b.TenantID().String(),
		CustomerID: b.CustomerID().String(),
		Balance:    int64(b.Balance().Value()),
		Version:    b.Version(),
		CreatedAt:  b.CreatedAt(),
		UpdatedAt:  b.UpdatedAt(),
	}
}

func entryToDomain(m *EntryGORM) (*points.LedgerEntry, error) {
	id, err := points.EntryIDFromString(m.EntryID)
	if err != nil {
		return nil, err
	}
	tenantID, err := tenant.TenantIDFromString(m.TenantID)
	if err != nil {
		return nil, err
	}
	customerID, err := points.CustomerIDFromString(m.CustomerID)
	if err != nil {
		return nil, err
	}
	correlationID, err := points.NewCorrelationID(m.CorrelationID)
	if err != nil {
		return nil, err
	}
	reason, err := points.ParseReasonCode(m.Reason)
	if err != nil {
		return nil, err
	}
	balanceAfter, err := points.NewPointsAmount(int(m.BalanceAfter))
	if err != nil {
		return nil, points.ErrCorruptedBalance.WithContext("entry_id", m.EntryID, "balance_after", m.BalanceAfter)
	}
	return points.ReconstructLedgerEntry(
		id,
		tenantID,
		customerID,
		int(m.Delta),
		reason,
		correlationID,
		balanceAfter,
		m.CreatedAt,
	), nil
}

func entryToGORM(e *points.LedgerEntry) *EntryGORM {
	return &EntryGORM{
		EntryID:       e.ID().String(),
		TenantID:      e.TenantID().String(),
		CustomerID:    e.CustomerID().String(),
		CorrelationID: e.CorrelationID().String(),
		Delta:         int64(e.Delta()),
		Reason:        e.Reason().String(),
		BalanceAfter:  int64(e.BalanceAfter().Value()),
		CreatedAt:     e.CreatedAt(),
	}
}
