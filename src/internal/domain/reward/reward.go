package reward

import (
	"strings"
	"time"

	"github.com/jackyeh168/loyalty_engine/src/internal/domain/shared"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/tenant"
)

// ===========================
// 識別碼
// ===========================

// RewardMarker 是 RewardID 的標記類型
type RewardMarker struct{}

// RewardID 獎勵 ID（由外部管理流程指定）
type RewardID = shared.OpaqueID[RewardMarker]

// RewardIDFromString 驗證獎勵 ID
func RewardIDFromString(s string) (RewardID, error) {
	return shared.OpaqueIDFromString[RewardMarker](s, ErrInvalidRewardID)
}

// AdjustmentMarker 是 AdjustmentID 的標記類型
type AdjustmentMarker struct{}

// AdjustmentID 庫存調整 ID
type AdjustmentID = shared.EntityID[AdjustmentMarker]

// AdjustmentIDFromString 解析庫存調整 ID
func AdjustmentIDFromString(s string) (AdjustmentID, error) {
	return shared.EntityIDFromString[AdjustmentMarker](s, ErrInvalidQuantity)
}

// ===========================
// Reward 實體
// ===========================

// Reward 可兌換的獎勵
//
// 不變條件：
// - pointsCost > 0
// - remainingQuantity >= 0（由 Repository 的條件更新保證，永不為負）
//
// 核心只讀取獎勵主檔；remainingQuantity 只能經由 Inventory Tracker 異動。
type Reward struct {
	id                RewardID
	tenantID          tenant.TenantID
	name              string
	pointsCost        int
	remainingQuantity int
	price             Price
	updatedAt         time.Time
}

// NewReward 建立獎勵（種子載入器使用）
func NewReward(t tenant.Tenant, id RewardID, name string, pointsCost, quantity int, price Price) (*Reward, error) {
	if t.IsZero() {
		return nil, tenant.ErrMissingTenant
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidReward.WithContext("reward_id", id.String(), "reason", "name is required")
	}
	if pointsCost <= 0 {
		return nil, ErrInvalidReward.WithContext("reward_id", id.String(), "reason", "points cost must be positive", "points_cost", pointsCost)
	}
	if quantity < 0 {
		return nil, ErrInvalidQuantity.WithContext("reward_id", id.String(), "quantity", quantity)
	}
	return &Reward{
		id:                id,
		tenantID:          t.ID(),
		name:              name,
		pointsCost:        pointsCost,
		remainingQuantity: quantity,
		price:             price,
		updatedAt:         time.Now().UTC(),
	}, nil
}

// ReconstructReward 從持久化數據重建（Repository 專用）
func ReconstructReward(
	id RewardID,
	tenantID tenant.TenantID,
	name string,
	pointsCost int,
	remainingQuantity int,
	price Price,
	updatedAt time.Time,
) *Reward {
	return &Reward{
		id:                id,
		tenantID:          tenantID,
		name:              name,
		pointsCost:        pointsCost,
		remainingQuantity: remainingQuantity,
		price:             price,
		updatedAt:         updatedAt,
	}
}

func (r *Reward) ID() RewardID { return r.id }
func (r *Reward) TenantID() tenant.TenantID { return r.tenantID }
func (r *Reward) Name() string { return r.name }
func (r *Reward) PointsCost() int { return r.pointsCost }
func (r *Reward) RemainingQuantity() int { return r.remainingQuantity }
func (r *Reward) Price() Price { return r.price }
func (r *Reward) UpdatedAt() time.Time { return r.updatedAt }

// IsPriced 是否需要支付
func (r *Reward) IsPriced() bool {
	return !r.price.IsZero()
}

// InStock 是否還有庫存
func (r *Reward) InStock() bool {
	return r.remainingQuantity > 0
}

// ===========================
// InventoryAdjustment（不可變）
// ===========================

// InventoryAdjustment 一筆庫存異動紀錄
//
// (tenant, reward, correlationID) 唯一，讓扣減與回補都可以安全重試。
type InventoryAdjustment struct {
	id            AdjustmentID
	tenantID      tenant.TenantID
	rewardID      RewardID
	delta         int
	correlationID string
	createdAt     time.Time
}

// NewInventoryAdjustment 建立庫存異動
func NewInventoryAdjustment(t tenant.Tenant, rewardID RewardID, delta int, correlationID string) (*InventoryAdjustment, error) {
	if delta == 0 {
		return nil, ErrInvalidQuantity.WithContext("reason", "delta must not be zero")
	}
	correlationID = strings.TrimSpace(correlationID)
	if correlationID == "" {
		return nil, ErrInvalidQuantity.WithContext("reason", "correlation id is required")
	}
	return &InventoryAdjustment{
		id:            shared.NewEntityID[AdjustmentMarker](),
		tenantID:      t.ID(),
		rewardID:      rewardID,
		delta:         delta,
		correlationID: correlationID,
		createdAt:     time.Now().UTC(),
	}, nil
}

// ReconstructInventoryAdjustment 從持久化數據重建
func ReconstructInventoryAdjustment(
	id AdjustmentID,
	tenantID tenant.TenantID,
	rewardID RewardID,
	delta int,
	correlationID string,
	createdAt time.Time,
) *InventoryAdjustment {
	return &InventoryAdjustment{
		id:            id,
		tenantID:      tenantID,
		rewardID:      rewardID,
		delta:         delta,
		correlationID: correlationID,
		createdAt:     createdAt,
	}
}

func (a *InventoryAdjustment) ID() AdjustmentID { return a.id }
func (a *InventoryAdjustment) TenantID() tenant.TenantID { return a.tenantID }
func (a *InventoryAdjustment) RewardID() RewardID { return a.rewardID }
func (a *InventoryAdjustment) Delta() int { return a.delta }
func (a *InventoryAdjustment) CorrelationID() string { return a.correlationID }
func (a *InventoryAdjustment) CreatedAt() time.Time { return a.createdAt }

// ===========================
// Repository 介面
// ===========================

// RewardRepository 獎勵倉儲
type RewardRepository interface {
	// FindByID 查詢獎勵
	// 返回：ErrRewardNotFound
	FindByID(tx shared.TransactionContext, t tenant.Tenant, id RewardID) (*Reward, error)

	// Save 寫入或覆寫獎勵主檔（種子載入）
	Save(tx shared.TransactionContext, t tenant.Tenant, r *Reward) error

	// AdjustQuantity 條件更新剩餘數量：remaining_quantity + delta >= 0
	// 錯誤：ErrOutOfStock（條件不成立）、ErrRewardNotFound
	AdjustQuantity(tx shared.TransactionContext, t tenant.Tenant, id RewardID, delta int) error

	// FindAdjustment 以關聯 ID 查詢庫存異動
	// 返回：nil, nil（不存在）
	FindAdjustment(tx shared.TransactionContext, t tenant.Tenant, id RewardID, correlationID string) (*InventoryAdjustment, error)

	// AppendAdjustment 寫入庫存異動
	// 錯誤：shared.ErrConcurrentModification（相同關聯 ID 已被寫入）
	AppendAdjustment(tx shared.TransactionContext, t tenant.Tenant, adj *InventoryAdjustment) error
}
