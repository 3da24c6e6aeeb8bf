package reward

import (
	"time"

	"github.com/jackyeh168/loyalty_engine/src/internal/domain/reward"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/tenant"
)

// ===========================
// GORM Models
// ===========================

// RewardGORM 獎勵資料表模型
//
// 資料庫約束：
// - (tenant_id, reward_id): 複合主鍵
// - remaining_quantity >= 0: CHECK 約束
// - price_amount / price_currency: 可為空（純積分獎勵）；金額以十進位字串保存，避免浮點誤差
type RewardGORM struct {
	TenantID          string    `gorm:"column:tenant_id;type:varchar(128);primaryKey"`
	RewardID          string    `gorm:"column:reward_id;type:varchar(128);primaryKey"`
	Name              string    `gorm:"column:name;type:varchar(255);not null"`
	PointsCost        int       `gorm:"column:points_cost;not null"`
	RemainingQuantity int       `gorm:"column:remaining_quantity;not null;check:chk_rewards_quantity_non_negative,remaining_quantity >= 0"`
	PriceAmount       *string   `gorm:"column:price_amount;type:varchar(32)"`
	PriceCurrency     *string   `gorm:"column:price_currency;type:varchar(3)"`
	CreatedAt         time.Time `gorm:"column:created_at;not null"`
	UpdatedAt         time.Time `gorm:"column:updated_at;not null"`
}

// TableName 指定資料表名稱
func (RewardGORM) TableName() string {
	return "rewards"
}

// AdjustmentGORM 庫存異動資料表模型（只新增）
//
// (tenant_id, reward_id, correlation_id) 唯一：扣減與回補的冪等錨點。
type AdjustmentGORM struct {
	AdjustmentID  string    `gorm:"column:adjustment_id;type:varchar(36);primaryKey"`
	TenantID      string    `gorm:"column:tenant_id;type:varchar(128);not null;uniqueIndex:idx_adjustments_correlation,priority:1"`
	RewardID      string    `gorm:"column:reward_id;type:varchar(128);not null;uniqueIndex:idx_adjustments_correlation,priority:2"`
	CorrelationID string    `gorm:"column:correlation_id;type:varchar(255);not null;uniqueIndex:idx_adjustments_correlation,priority:3"`
	Delta         int       `gorm:"column:delta;not null"`
	CreatedAt     time.Time `gorm:"column:created_at;not null"`
}

// TableName 指定資料表名稱
func (AdjustmentGORM) TableName() string {
	return "inventory_adjustments"
}

// ===========================
// Mapper Functions
// ===========================

func toDomain(m *RewardGORM) (*reward.Reward, error) {
	id, err := reward.RewardIDFromString(m.RewardID)
	if err != nil {
		return nil, err
	}
	tenantID, err := tenant.TenantIDFromString(m.TenantID)
	if err != nil {
		return nil, err
	}

	var price reward.Price
	if m.PriceAmount != nil && m.PriceCurrency != nil {
		price, err = reward.ParsePrice(*m.PriceAmount, *m.PriceCurrency)
		if err != nil {
			return nil, err
		}
	}

	return reward.ReconstructReward(
		id,
		tenantID,
		m.Name,
		m.PointsCost,
		m.RemainingQuantity,
		price,
		m.UpdatedAt,
	), nil
}

func toGORM(r *reward.Reward) *RewardGORM {
	model := &RewardGORM{
		TenantID:          r.TenantID().String(),
		RewardID:          r.ID().String(),
		Name:              r.Name(),
		PointsCost:        r.PointsCost(),
		RemainingQuantity: r.RemainingQuantity(),
		CreatedAt:         r.UpdatedAt().UTC(),
		UpdatedAt:         r.UpdatedAt().UTC(),
	}
	if r.IsPriced() {
		amount := r.Price().Amount().String()
		currency := r.Price().Currency()
		model.PriceAmount = &amount
		model.PriceCurrency = &currency
	}
	return model
}

func adjustmentToDomain(m *AdjustmentGORM) (*reward.InventoryAdjustment, error) {
	id, err := reward.AdjustmentIDFromString(m.AdjustmentID)
	if err != nil {
		return nil, err
	}
	tenantID, err := tenant.TenantIDFromString(m.TenantID)
	if err != nil {
		return nil, err
	}
	rewardID, err := reward.RewardIDFromString(m.RewardID)
	if err != nil {
		return nil, err
	}
	return reward.ReconstructInventoryAdjustment(id, tenantID, rewardID, m.Delta, m.CorrelationID, m.CreatedAt), nil
}

func adjustmentToGORM(a *reward.InventoryAdjustment) *AdjustmentGORM {
	return &AdjustmentGORM{
		AdjustmentID:  a.ID().String(),
		TenantID:      a.TenantID().String(),
		RewardID:      a.RewardID().String(),
		CorrelationID: a.CorrelationID(),
		Delta:         a.Delta(),
		CreatedAt:     a.CreatedAt(),
	}
}
