package ledger

import (
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/points"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/shared"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/tenant"
	"github.com/jackyeh168/loyalty_engine/src/internal/infrastructure/persistence"
	"gorm.io/gorm"
)

// ===========================
// GORM LedgerRepository 實作
// ===========================

// Repository GORM 實作的帳本倉儲
//
// 職責：
// - Domain ↔ GORM 轉換（models.go 的 mapper）
// - 條件更新與唯一鍵衝突 → shared.ErrConcurrentModification
// - 所有查詢帶 tenant_id 條件
type Repository struct {
	db *gorm.DB
}

// NewRepository 創建帳本倉儲
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

var _ points.LedgerRepository = (*Repository)(nil)

// FindBalance 查詢顧客餘額
func (r *Repository) FindBalance(tx shared.TransactionContext, t tenant.Tenant, customerID points.CustomerID) (*points.CustomerBalance, error) {
	if err := requireTenant(t); err != nil {
		return nil, err
	}

	var model BalanceGORM
	result := persistence.DBFrom(tx, r.db).
		Where("tenant_id = ? AND customer_id = ?", t.ID().String(), customerID.String()).
		First(&model)
	if result.Error != nil {
		if persistence.IsNotFound(result.Error) {
			return nil, points.ErrBalanceNotFound.WithContext(
				"tenant_id", t.ID().String(),
				"customer_id", customerID.String(),
			)
		}
		return nil, mapError(result.Error)
	}

	return balanceToDomain(&model)
}

// InsertBalance 寫入新的餘額列
//
// 主鍵衝突代表另一個寫入者先建立了同一顧客，返回 ErrConcurrentModification 讓呼叫端重試。
func (r *Repository) InsertBalance(tx shared.TransactionContext, t tenant.Tenant, balance *points.CustomerBalance) error {
	if err := requireOwned(t, balance); err != nil {
		return err
	}

	model := balanceToGORM(balance)
	model.Version = 1
	if err := persistence.DBFrom(tx, r.db).Create(model).Error; err != nil {
		if persistence.IsUniqueConstraintError(err) {
			return shared.ErrConcurrentModification.WithContext(
				"tenant_id", model.TenantID,
				"customer_id", model.CustomerID,
				"reason", "balance row created concurrently",
			)
		}
		return mapError(err)
	}
	return nil
}

// UpdateBalance 條件更新餘額
//
//	UPDATE customer_balances SET balance = ?, version = version + 1
//	WHERE tenant_id = ? AND customer_id = ? AND version = ?
//
// RowsAffected = 0 表示版本已被改變。
func (r *Repository) UpdateBalance(tx shared.TransactionContext, t tenant.Tenant, balance *points.CustomerBalance) error {
	if err := requireOwned(t, balance); err != nil {
		return err
	}

	result := persistence.DBFrom(tx, r.db).Model(&BalanceGORM{}).
		Where("tenant_id = ? AND customer_id = ? AND version = ?",
			t.ID().String(), balance.CustomerID().String(), balance.Version()).
		Updates(map[string]interface{}{
			"balance":    int64(balance.Balance().Value()),
			"version":    gorm.Expr("version + 1"),
			"updated_at": balance.UpdatedAt(),
		})
	if result.Error != nil {
		return mapError(result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrentModification.WithContext(
			"tenant_id", t.ID().String(),
			"customer_id", balance.CustomerID().String(),
			"expected_version", balance.Version(),
		)
	}
	return nil
}

// AppendEntry 寫入分錄
func (r *Repository) AppendEntry(tx shared.TransactionContext, t tenant.Tenant, entry *points.LedgerEntry) error {
	if err := requireTenant(t); err != nil {
		return err
	}
	if !entry.TenantID().Equals(t.ID()) {
		return tenant.ErrTenantMismatch.WithContext(
			"request_tenant", t.ID().String(),
			"entry_tenant", entry.TenantID().String(),
		)
	}

	if err := persistence.DBFrom(tx, r.db).Create(entryToGORM(entry)).Error; err != nil {
		if persistence.IsUniqueConstraintError(err) {
			return shared.ErrConcurrentModification.WithContext(
				"tenant_id", t.ID().String(),
				"customer_id", entry.CustomerID().String(),
				"correlation_id", entry.CorrelationID().String(),
				"reason", "correlation id recorded concurrently",
			)
		}
		return mapError(err)
	}
	return nil
}

// FindEntryByCorrelation 以關聯 ID 查詢分錄
func (r *Repository) FindEntryByCorrelation(tx shared.TransactionContext, t tenant.Tenant, customerID points.CustomerID, correlationID points.CorrelationID) (*points.LedgerEntry, error) {
	if err := requireTenant(t); err != nil {
		return nil, err
	}

	var model EntryGORM
	result := persistence.DBFrom(tx, r.db).
		Where("tenant_id = ? AND customer_id = ? AND correlation_id = ?",
			t.ID().String(), customerID.String(), correlationID.String()).
		First(&model)
	if result.Error != nil {
		if persistence.IsNotFound(result.Error) {
			return nil, points.ErrEntryNotFound.WithContext("correlation_id", correlationID.String())
		}
		return nil, mapError(result.Error)
	}
	return entryToDomain(&model)
}

// ListEntries 列出最近的分錄（新到舊）
func (r *Repository) ListEntries(tx shared.TransactionContext, t tenant.Tenant, customerID points.CustomerID, limit int) ([]*points.LedgerEntry, error) {
	if err := requireTenant(t); err != nil {
		return nil, err
	}

	var models []EntryGORM
	if err := persistence.DBFrom(tx, r.db).
		Where("tenant_id = ? AND customer_id = ?", t.ID().String(), customerID.String()).
		Order("created_at DESC").
		Order("entry_id DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, mapError(err)
	}

	entries := make([]*points.LedgerEntry, 0, len(models))
	for i := range models {
		entry, err := entryToDomain(&models[i])
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// SumEntries 計算分錄總和與筆數
func (r *Repository) SumEntries(tx shared.TransactionContext, t tenant.Tenant, customerID points.CustomerID) (int64, int64, error) {
	if err := requireTenant(t); err != nil {
		return 0, 0, err
	}

	var row struct {
		Total int64
		Count int64
	}
	if err := persistence.DBFrom(tx, r.db).Model(&EntryGORM{}).
		Select("COALESCE(SUM(delta), 0) AS total, COUNT(*) AS count").
		Where("tenant_id = ? AND customer_id = ?", t.ID().String(), customerID.String()).
		Scan(&row).Error; err != nil {
		return 0, 0, mapError(err)
	}
	return row.Total, row.Count, nil
}

// ListBalances 依顧客 ID 遞增分頁
func (r *Repository) ListBalances(tx shared.TransactionContext, t tenant.Tenant, afterCustomerID string, limit int) ([]*points.CustomerBalance, error) {
	if err := requireTenant(t); err != nil {
		return nil, err
	}

	var models []BalanceGORM
	if err := persistence.DBFrom(tx, r.db).
		Where("tenant_id = ? AND customer_id > ?", t.ID().String(), afterCustomerID).
		Order("customer_id ASC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, mapError(err)
	}

	balances := make([]*points.CustomerBalance, 0, len(models))
	for i := range models {
		balance, err := balanceToDomain(&models[i])
		if err != nil {
			return nil, err
		}
		balances = append(balances, balance)
	}
	return balances, nil
}

// ===========================
// 私有輔助方法
// ===========================

func requireTenant(t tenant.Tenant) error {
	if t.IsZero() {
		return tenant.ErrMissingTenant
	}
	return nil
}

func requireOwned(t tenant.Tenant, balance *points.CustomerBalance) error {
	if err := requireTenant(t); err != nil {
		return err
	}
	if !balance.BelongsTo(t) {
		return tenant.ErrTenantMismatch.WithContext(
			"request_tenant", t.ID().String(),
			"balance_tenant", balance.TenantID().String(),
		)
	}
	return nil
}

// mapError 映射 GORM 錯誤到 Domain 錯誤
func mapError(err error) error {
	return points.ErrRepositoryError.WithContext("database_error", err.Error())
}
