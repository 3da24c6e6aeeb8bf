package tenant

import (
	"context"
	"time"

	"github.com/jackyeh168/loyalty_engine/src/internal/domain/tenant"
	"github.com/jackyeh168/loyalty_engine/src/internal/infrastructure/persistence"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ===========================
// GORM Model
// ===========================

// TenantGORM 租戶資料表模型
//
// 租戶由外部開通流程建立（種子載入器），核心只讀取。
type TenantGORM struct {
	TenantID  string    `gorm:"column:tenant_id;type:varchar(128);primaryKey"`
	Name      string    `gorm:"column:name;type:varchar(255);not null"`
	Active    bool      `gorm:"column:active;not null;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

// TableName 指定資料表名稱
func (TenantGORM) TableName() string {
	return "tenants"
}

func toRecord(m *TenantGORM) (*tenant.Record, error) {
	id, err := tenant.TenantIDFromString(m.TenantID)
	if err != nil {
		return nil, err
	}
	return &tenant.Record{ID: id, Name: m.Name, Active: m.Active}, nil
}

// ===========================
// Registry 實作
// ===========================

// Registry GORM 租戶登記表，實作 tenant.Registry
type Registry struct {
	db *gorm.DB
}

// NewRegistry 建立 Registry
func NewRegistry(db *gorm.DB) *Registry {
	return &Registry{db: db}
}

// FindTenant 實作 tenant.Registry
func (r *Registry) FindTenant(ctx context.Context, id tenant.TenantID) (*tenant.Record, error) {
	var model TenantGORM
	result := r.db.WithContext(ctx).Where("tenant_id = ?", id.String()).First(&model)
	if result.Error != nil {
		if persistence.IsNotFound(result.Error) {
			return nil, tenant.ErrUnknownTenant.WithContext("tenant_id", id.String())
		}
		return nil, result.Error
	}
	return toRecord(&model)
}

// ListActive 列出所有啟用中的租戶（清理排程與對帳使用）
func (r *Registry) ListActive(ctx context.Context) ([]tenant.Record, error) {
	var models []TenantGORM
	if err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("tenant_id ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}

	records := make([]tenant.Record, 0, len(models))
	for i := range models {
		record, err := toRecord(&models[i])
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	return records, nil
}

// Upsert 寫入或覆寫租戶（種子載入器使用）
func (r *Registry) Upsert(ctx context.Context, record tenant.Record) error {
	now := time.Now().UTC()
	model := TenantGORM{
		TenantID:  record.ID.String(),
		Name:      record.Name,
		Active:    record.Active,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "active", "updated_at"}),
	}).Create(&model).Error
}
