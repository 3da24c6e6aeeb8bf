package redemption

import (
	"time"

	"github.com/jackyeh168/loyalty_engine/src/internal/domain/redemption"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/shared"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/tenant"
	"github.com/jackyeh168/loyalty_engine/src/internal/infrastructure/persistence"
	"gorm.io/gorm"
)

// ===========================
// GORM RedemptionRepository 實作
// ===========================

// Repository GORM 實作的兌換倉儲
type Repository struct {
	db *gorm.DB
}

// NewRepository 創建兌換倉儲
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

var _ redemption.RedemptionRepository = (*Repository)(nil)

// Insert 寫入新的兌換（version = 1）
func (r *Repository) Insert(tx shared.TransactionContext, t tenant.Tenant, rd *redemption.Redemption) error {
	if err := requireOwned(t, rd); err != nil {
		return err
	}

	model := toGORM(rd)
	model.Version = 1
	if err := persistence.DBFrom(tx, r.db).Create(model).Error; err != nil {
		if persistence.IsUniqueConstraintError(err) {
			return redemption.ErrRedemptionAlreadyExists.WithContext(
				"tenant_id", model.TenantID,
				"idempotency_key", model.IdempotencyKey,
			)
		}
		return mapError(err)
	}
	rd.SetPersistedVersion(1)
	return nil
}

// Update 條件更新整列
//
//	UPDATE redemptions SET ..., version = version + 1
//	WHERE tenant_id = ? AND redemption_id = ? AND version = ?
func (r *Repository) Update(tx shared.TransactionContext, t tenant.Tenant, rd *redemption.Redemption) error {
	if err := requireOwned(t, rd); err != nil {
		return err
	}

	model := toGORM(rd)
	result := persistence.DBFrom(tx, r.db).Model(&RedemptionGORM{}).
		Where("tenant_id = ? AND redemption_id = ? AND version = ?",
			model.TenantID, model.RedemptionID, rd.Version()).
		Updates(map[string]interface{}{
			"state":                 model.State,
			"points_cost":           model.PointsCost,
			"price_amount":          model.PriceAmount,
			"price_currency":        model.PriceCurrency,
			"payment_handle":        model.PaymentHandle,
			"payment_client_token":  model.PaymentClientToken,
			"failure":               model.Failure,
			"failure_reason":        model.FailureReason,
			"points_reserved":       model.PointsReserved,
			"inventory_decremented": model.InventoryDecremented,
			"payment_captured":      model.PaymentCaptured,
			"compensation_pending":  model.CompensationPending,
			"updated_at":            model.UpdatedAt,
			"version":               gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return mapError(result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrentModification.WithContext(
			"tenant_id", model.TenantID,
			"redemption_id", model.RedemptionID,
			"expected_version", rd.Version(),
		)
	}
	rd.SetPersistedVersion(rd.Version() + 1)
	return nil
}

// FindByID 查詢兌換
func (r *Repository) FindByID(tx shared.TransactionContext, t tenant.Tenant, id redemption.RedemptionID) (*redemption.Redemption, error) {
	return r.findOne(tx, t, "redemption_id = ?", id.String())
}

// FindByIdempotencyKey 以冪等鍵查詢兌換
func (r *Repository) FindByIdempotencyKey(tx shared.TransactionContext, t tenant.Tenant, key string) (*redemption.Redemption, error) {
	return r.findOne(tx, t, "idempotency_key = ?", key)
}

// FindNeedingAttention 清理排程的候選兌換（updated_at 舊到新）
func (r *Repository) FindNeedingAttention(tx shared.TransactionContext, t tenant.Tenant, staleBefore time.Time, limit int) ([]*redemption.Redemption, error) {
	if t.IsZero() {
		return nil, tenant.ErrMissingTenant
	}

	active := make([]string, 0, len(redemption.ActiveStates()))
	for _, s := range redemption.ActiveStates() {
		active = append(active, s.String())
	}

	var models []RedemptionGORM
	if err := persistence.DBFrom(tx, r.db).
		Where("tenant_id = ?", t.ID().String()).
		Where(
			r.db.Where("state IN ? AND updated_at < ?", active, staleBefore.UTC()).
				Or("compensation_pending = ?", true),
		).
		Order("updated_at ASC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, mapError(err)
	}

	redemptions := make([]*redemption.Redemption, 0, len(models))
	for i := range models {
		rd, err := toDomain(&models[i])
		if err != nil {
			return nil, err
		}
		redemptions = append(redemptions, rd)
	}
	return redemptions, nil
}

// ===========================
// 私有輔助方法
// ===========================

func (r *Repository) findOne(tx shared.TransactionContext, t tenant.Tenant, query string, arg interface{}) (*redemption.Redemption, error) {
	if t.IsZero() {
		return nil, tenant.ErrMissingTenant
	}

	var model RedemptionGORM
	result := persistence.DBFrom(tx, r.db).
		Where("tenant_id = ?", t.ID().String()).
		Where(query, arg).
		First(&model)
	if result.Error != nil {
		if persistence.IsNotFound(result.Error) {
			return nil, redemption.ErrRedemptionNotFound.WithContext(
				"tenant_id", t.ID().String(),
				"lookup", arg,
			)
		}
		return nil, mapError(result.Error)
	}
	return toDomain(&model)
}

func requireOwned(t tenant.Tenant, rd *redemption.Redemption) error {
	if t.IsZero() {
		return tenant.ErrMissingTenant
	}
	if !rd.TenantID().Equals(t.ID()) {
		return tenant.ErrTenantMismatch.WithContext(
			"request_tenant", t.ID().String(),
			"redemption_tenant", rd.TenantID().String(),
		)
	}
	return nil
}

// mapError 映射 GORM 錯誤到 Domain 錯誤
func mapError(err error) error {
	return redemption.ErrRepositoryError.WithContext("database_error", err.Error())
}
