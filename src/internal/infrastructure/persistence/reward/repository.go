package reward

import (
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/reward"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/shared"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/tenant"
	"github.com/jackyeh168/loyalty_engine/src/internal/infrastructure/persistence"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ===========================
// GORM RewardRepository 實作
// ===========================

// Repository GORM 實作的獎勵倉儲
type Repository struct {
	db *gorm.DB
}

// NewRepository 創建獎勵倉儲
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

var _ reward.RewardRepository = (*Repository)(nil)

// FindByID 查詢獎勵
func (r *Repository) FindByID(tx shared.TransactionContext, t tenant.Tenant, id reward.RewardID) (*reward.Reward, error) {
	if t.IsZero() {
		return nil, tenant.ErrMissingTenant
	}

	var model RewardGORM
	result := persistence.DBFrom(tx, r.db).
		Where("tenant_id = ? AND reward_id = ?", t.ID().String(), id.String()).
		First(&model)
	if result.Error != nil {
		if persistence.IsNotFound(result.Error) {
			return nil, reward.ErrRewardNotFound.WithContext(
				"tenant_id", t.ID().String(),
				"reward_id", id.String(),
			)
		}
		return nil, mapError(result.Error)
	}
	return toDomain(&model)
}

// Save 寫入或覆寫獎勵主檔
func (r *Repository) Save(tx shared.TransactionContext, t tenant.Tenant, rw *reward.Reward) error {
	if t.IsZero() {
		return tenant.ErrMissingTenant
	}
	if !rw.TenantID().Equals(t.ID()) {
		return tenant.ErrTenantMismatch.WithContext(
			"request_tenant", t.ID().String(),
			"reward_tenant", rw.TenantID().String(),
		)
	}

	if err := persistence.DBFrom(tx, r.db).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tenant_id"}, {Name: "reward_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "points_cost", "remaining_quantity", "price_amount", "price_currency", "updated_at",
		}),
	}).Create(toGORM(rw)).Error; err != nil {
		return mapError(err)
	}
	return nil
}

// AdjustQuantity 條件更新剩餘數量
//
//	UPDATE rewards SET remaining_quantity = remaining_quantity + ?
//	WHERE tenant_id = ? AND reward_id = ? AND remaining_quantity + ? >= 0
//
// RowsAffected = 0 時再查一次區分「不存在」與「庫存不足」。
func (r *Repository) AdjustQuantity(tx shared.TransactionContext, t tenant.Tenant, id reward.RewardID, delta int) error {
	if t.IsZero() {
		return tenant.ErrMissingTenant
	}

	db := persistence.DBFrom(tx, r.db)
	result := db.Model(&RewardGORM{}).
		Where("tenant_id = ? AND reward_id = ? AND remaining_quantity + ? >= 0",
			t.ID().String(), id.String(), delta).
		Updates(map[string]interface{}{
			"remaining_quantity": gorm.Expr("remaining_quantity + ?", delta),
			"updated_at":         db.NowFunc(),
		})
	if result.Error != nil {
		return mapError(result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := db.Model(&RewardGORM{}).
		Where("tenant_id = ? AND reward_id = ?", t.ID().String(), id.String()).
		Count(&count).Error; err != nil {
		return mapError(err)
	}
	if count == 0 {
		return reward.ErrRewardNotFound.WithContext(
			"tenant_id", t.ID().String(),
			"reward_id", id.String(),
		)
	}
	return reward.ErrOutOfStock.WithContext(
		"tenant_id", t.ID().String(),
		"reward_id", id.String(),
		"delta", delta,
	)
}

// FindAdjustment 以關聯 ID 查詢庫存異動，不存在時返回 nil, nil
func (r *Repository) FindAdjustment(tx shared.TransactionContext, t tenant.Tenant, id reward.RewardID, correlationID string) (*reward.InventoryAdjustment, error) {
	if t.IsZero() {
		return nil, tenant.ErrMissingTenant
	}

	var model AdjustmentGORM
	result := persistence.DBFrom(tx, r.db).
		Where("tenant_id = ? AND reward_id = ? AND correlation_id = ?",
			t.ID().String(), id.String(), correlationID).
		Limit(1).
		Find(&model)
	if result.Error != nil {
		return nil, mapError(result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return adjustmentToDomain(&model)
}

// AppendAdjustment 寫入庫存異動
func (r *Repository) AppendAdjustment(tx shared.TransactionContext, t tenant.Tenant, adj *reward.InventoryAdjustment) error {
	if t.IsZero() {
		return tenant.ErrMissingTenant
	}
	if !adj.TenantID().Equals(t.ID()) {
		return tenant.ErrTenantMismatch.WithContext(
			"request_tenant", t.ID().String(),
			"adjustment_tenant", adj.TenantID().String(),
		)
	}

	if err := persistence.DBFrom(tx, r.db).Create(adjustmentToGORM(adj)).Error; err != nil {
		if persistence.IsUniqueConstraintError(err) {
			return shared.ErrConcurrentModification.WithContext(
				"tenant_id", t.ID().String(),
				"reward_id", adj.RewardID().String(),
				"correlation_id", adj.CorrelationID(),
				"reason", "adjustment recorded concurrently",
			)
		}
		return mapError(err)
	}
	return nil
}

// mapError 映射 GORM 錯誤到 Domain 錯誤
func mapError(err error) error {
	return reward.ErrRepositoryError.WithContext("database_error", err.Error())
}
