package earning

import (
	"encoding/json"
	"time"

	"github.com/jackyeh168/loyalty_engine/src/internal/domain/earning"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/shared"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/tenant"
	"github.com/jackyeh168/loyalty_engine/src/internal/infrastructure/persistence"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ===========================
// GORM Model
// ===========================

// RuleGORM 積分規則資料表模型
//
// policy 欄位以 JSON 儲存 earning.PolicySpec。
type RuleGORM struct {
	RuleID    string         `gorm:"column:rule_id;type:varchar(36);primaryKey"`
	TenantID  string         `gorm:"column:tenant_id;type:varchar(128);not null;index:idx_rules_event,priority:1"`
	EventType string         `gorm:"column:event_type;type:varchar(64);not null;index:idx_rules_event,priority:2"`
	EventName string         `gorm:"column:event_name;type:varchar(64);not null;index:idx_rules_event,priority:3"`
	Policy    datatypes.JSON `gorm:"column:policy;not null"`
	Active    bool           `gorm:"column:active;not null;default:true"`
	CreatedAt time.Time      `gorm:"column:created_at;not null"`
	UpdatedAt time.Time      `gorm:"column:updated_at;not null"`
}

// TableName 指定資料表名稱
func (RuleGORM) TableName() string {
	return "earning_rules"
}

func toDomain(m *RuleGORM) (*earning.EarningRule, error) {
	id, err := earning.RuleIDFromString(m.RuleID)
	if err != nil {
		return nil, err
	}
	tenantID, err := tenant.TenantIDFromString(m.TenantID)
	if err != nil {
		return nil, err
	}
	var spec earning.PolicySpec
	if err := json.Unmarshal(m.Policy, &spec); err != nil {
		return nil, earning.ErrInvalidPolicy.WithContext("rule_id", m.RuleID, "error", err.Error())
	}
	policy, err := spec.ToPolicy()
	if err != nil {
		return nil, err
	}
	return earning.ReconstructEarningRule(
		id,
		tenantID,
		earning.EventKey{Type: m.EventType, Name: m.EventName},
		policy,
		m.Active,
		m.UpdatedAt,
	), nil
}

func toGORM(r *earning.EarningRule) (*RuleGORM, error) {
	policy, err := json.Marshal(earning.SpecOf(r.Policy()))
	if err != nil {
		return nil, err
	}
	return &RuleGORM{
		RuleID:    r.ID().String(),
		TenantID:  r.TenantID().String(),
		EventType: r.Event().Type,
		EventName: r.Event().Name,
		Policy:    datatypes.JSON(policy),
		Active:    r.IsActive(),
		CreatedAt: r.UpdatedAt().UTC(),
		UpdatedAt: r.UpdatedAt().UTC(),
	}, nil
}

// ===========================
// RuleRepository 實作
// ===========================

// Repository GORM 實作的積分規則倉儲
type Repository struct {
	db *gorm.DB
}

// NewRepository 創建積分規則倉儲
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

var _ earning.RuleRepository = (*Repository)(nil)

// FindActiveRule 查詢事件的啟用規則（updated_at 最新者）
func (r *Repository) FindActiveRule(tx shared.TransactionContext, t tenant.Tenant, event earning.EventKey) (*earning.EarningRule, error) {
	if t.IsZero() {
		return nil, tenant.ErrMissingTenant
	}

	var model RuleGORM
	result := persistence.DBFrom(tx, r.db).
		Where("tenant_id = ? AND event_type = ? AND event_name = ? AND active = ?",
			t.ID().String(), event.Type, event.Name, true).
		Order("updated_at DESC").
		Order("rule_id DESC").
		First(&model)
	if result.Error != nil {
		if persistence.IsNotFound(result.Error) {
			return nil, earning.ErrRuleNotFound.WithContext(
				"tenant_id", t.ID().String(),
				"event", event.String(),
			)
		}
		return nil, earning.ErrRepositoryError.WithContext("database_error", result.Error.Error())
	}
	return toDomain(&model)
}

// Save 寫入或覆寫規則
func (r *Repository) Save(tx shared.TransactionContext, t tenant.Tenant, rule *earning.EarningRule) error {
	if t.IsZero() {
		return tenant.ErrMissingTenant
	}
	if !rule.TenantID().Equals(t.ID()) {
		return tenant.ErrTenantMismatch.WithContext(
			"request_tenant", t.ID().String(),
			"rule_tenant", rule.TenantID().String(),
		)
	}

	model, err := toGORM(rule)
	if err != nil {
		return earning.ErrInvalidPolicy.WithContext("error", err.Error())
	}
	if err := persistence.DBFrom(tx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "rule_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"event_type", "event_name", "policy", "active", "updated_at"}),
	}).Create(model).Error; err != nil {
		return earning.ErrRepositoryError.WithContext("database_error", err.Error())
	}
	return nil
}

// FindByID 查詢規則（種子載入器用來覆寫同一條規則）
func (r *Repository) FindByID(tx shared.TransactionContext, t tenant.Tenant, id earning.RuleID) (*earning.EarningRule, error) {
	var model RuleGORM
	result := persistence.DBFrom(tx, r.db).
		Where("tenant_id = ? AND rule_id = ?", t.ID().String(), id.String()).
		First(&model)
	if result.Error != nil {
		if persistence.IsNotFound(result.Error) {
			return nil, earning.ErrRuleNotFound.WithContext("rule_id", id.String())
		}
		return nil, earning.ErrRepositoryError.WithContext("database_error", result.Error.Error())
	}
	return toDomain(&model)
}
