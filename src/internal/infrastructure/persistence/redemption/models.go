package redemption

import (
	"time"

	"github.com/jackyeh168/loyalty_engine/src/internal/domain/points"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/redemption"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/reward"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/tenant"
)

// ===========================
// GORM Model
// ===========================

// RedemptionGORM 兌換資料表模型
//
// 資料庫約束：
// - redemption_id: 主鍵（UUID）
// - (tenant_id, idempotency_key): 唯一索引
// - (tenant_id, state, updated_at): 清理排程查詢
// - version: 樂觀鎖
type RedemptionGORM struct {
	RedemptionID         string    `gorm:"column:redemption_id;type:varchar(36);primaryKey"`
	TenantID             string    `gorm:"column:tenant_id;type:varchar(128);not null;uniqueIndex:idx_redemptions_idempotency,priority:1;index:idx_redemptions_sweep,priority:1"`
	IdempotencyKey       string    `gorm:"column:idempotency_key;type:varchar(255);not null;uniqueIndex:idx_redemptions_idempotency,priority:2"`
	CustomerID           string    `gorm:"column:customer_id;type:varchar(128);not null"`
	RewardID             string    `gorm:"column:reward_id;type:varchar(128);not null"`
	State                string    `gorm:"column:state;type:varchar(32);not null;index:idx_redemptions_sweep,priority:2"`
	PointsCost           int       `gorm:"column:points_cost;not null;default:0"`
	PriceAmount          *string   `gorm:"column:price_amount;type:varchar(32)"`
	PriceCurrency        *string   `gorm:"column:price_currency;type:varchar(3)"`
	PaymentHandle        string    `gorm:"column:payment_handle;type:varchar(255)"`
	PaymentClientToken   string    `gorm:"column:payment_client_token;type:varchar(255)"`
	Failure              string    `gorm:"column:failure;type:varchar(32)"`
	FailureReason        string    `gorm:"column:failure_reason;type:text"`
	PointsReserved       bool      `gorm:"column:points_reserved;not null;default:false"`
	InventoryDecremented bool      `gorm:"column:inventory_decremented;not null;default:false"`
	PaymentCaptured      bool      `gorm:"column:payment_captured;not null;default:false"`
	CompensationPending  bool      `gorm:"column:compensation_pending;not null;default:false"`
	Version              int64     `gorm:"column:version;not null;default:0"`
	CreatedAt            time.Time `gorm:"column:created_at;not null"`
	UpdatedAt            time.Time `gorm:"column:updated_at;not null;index:idx_redemptions_sweep,priority:3"`
}

// TableName 指定資料表名稱
func (RedemptionGORM) TableName() string {
	return "redemptions"
}

// ===========================
// Mapper Functions
// ===========================

func toDomain(m *RedemptionGORM) (*redemption.Redemption, error) {
	id, err := redemption.RedemptionIDFromString(m.RedemptionID)
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
	rewardID, err := reward.RewardIDFromString(m.RewardID)
	if err != nil {
		return nil, err
	}
	state, err := redemption.ParseState(m.State)
	if err != nil {
		return nil, err
	}

	var failure redemption.State
	if m.Failure != "" {
		failure, err = redemption.ParseState(m.Failure)
		if err != nil {
			return nil, err
		}
	}

	var price reward.Price
	if m.PriceAmount != nil && m.PriceCurrency != nil {
		price, err = reward.ParsePrice(*m.PriceAmount, *m.PriceCurrency)
		if err != nil {
			return nil, err
		}
	}

	return redemption.ReconstructRedemption(redemption.Snapshot{
		ID:                   id,
		TenantID:             tenantID,
		CustomerID:           customerID,
		RewardID:             rewardID,
		IdempotencyKey:       m.IdempotencyKey,
		State:                state,
		PointsCost:           m.PointsCost,
		Price:                price,
		PaymentHandle:        m.PaymentHandle,
		PaymentClientToken:   m.PaymentClientToken,
		Failure:              failure,
		FailureReason:        m.FailureReason,
		PointsReserved:       m.PointsReserved,
		InventoryDecremented: m.InventoryDecremented,
		PaymentCaptured:      m.PaymentCaptured,
		CompensationPending:  m.CompensationPending,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
		Version:              m.Version,
	}), nil
}

func toGORM(r *redemption.Redemption) *RedemptionGORM {
	s := r.Snapshot()
	model := &RedemptionGORM{
		RedemptionID:         s.ID.String(),
		TenantID:             s.TenantID.String(),
		IdempotencyKey:       s.IdempotencyKey,
		CustomerID:           s.CustomerID.String(),
		RewardID:             s.RewardID.String(),
		State:                s.State.String(),
		PointsCost:           s.PointsCost,
		PaymentHandle:        s.PaymentHandle,
		PaymentClientToken:   s.PaymentClientToken,
		Failure:              s.Failure.String(),
		FailureReason:        s.FailureReason,
		PointsReserved:       s.PointsReserved,
		InventoryDecremented: s.InventoryDecremented,
		PaymentCaptured:      s.PaymentCaptured,
		CompensationPending:  s.CompensationPending,
		Version:              s.Version,
		CreatedAt:            s.CreatedAt.UTC(),
		UpdatedAt:            s.UpdatedAt.UTC(),
	}
	if !s.Price.IsZero() {
		amount := s.Price.Amount().String()
		currency := s.Price.Currency()
		model.PriceAmount = &amount
		model.PriceCurrency = &currency
	}
	return model
}
