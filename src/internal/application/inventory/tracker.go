package inventory

import (
	"context"
	"fmt"

	"github.com/jackyeh168/loyalty_engine/src/internal/domain/reward"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/shared"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/tenant"
)

// ===========================
// Inventory Tracker
// ===========================

// Tracker 獎勵庫存
//
// 每次異動在同一事務內：檢查關聯 ID → 條件更新數量 → 寫入異動紀錄。
// 條件更新 remaining_quantity + delta >= 0 保證數量永不為負；
// 異動紀錄的唯一鍵讓扣減與回補都可以安全重試。
type Tracker struct {
	rewards   reward.RewardRepository
	txManager shared.TransactionManager
}

// NewTracker 創建庫存追蹤器
func NewTracker(rewards reward.RewardRepository, txManager shared.TransactionManager) *Tracker {
	return &Tracker{rewards: rewards, txManager: txManager}
}

// Decrement 扣減 by 件
//
// 錯誤處理：
// - ErrOutOfStock: 剩餘數量 < by（沒有任何變更）
// - ErrRewardNotFound: 獎勵不存在
// - ErrAdjustmentConflict: 關聯 ID 已用於回補
func (t *Tracker) Decrement(ctx context.Context, tn tenant.Tenant, rewardID reward.RewardID, by int, correlationID string) error {
	if by <= 0 {
		return reward.ErrInvalidQuantity.WithContext("by", by)
	}
	if err := t.adjust(ctx, tn, rewardID, -by, correlationID); err != nil {
		return fmt.Errorf("failed to decrement inventory: %w", err)
	}
	return nil
}

// Restore 補償：回補 by 件
func (t *Tracker) Restore(ctx context.Context, tn tenant.Tenant, rewardID reward.RewardID, by int, correlationID string) error {
	if by <= 0 {
		return reward.ErrInvalidQuantity.WithContext("by", by)
	}
	if err := t.adjust(ctx, tn, rewardID, by, correlationID); err != nil {
		return fmt.Errorf("failed to restore inventory: %w", err)
	}
	return nil
}

// Remaining 目前剩餘數量
func (t *Tracker) Remaining(ctx context.Context, tn tenant.Tenant, rewardID reward.RewardID) (int, error) {
	var remaining int
	err := t.txManager.InTransaction(ctx, func(tx shared.TransactionContext) error {
		rw, err := t.rewards.FindByID(tx, tn, rewardID)
		if err != nil {
			return err
		}
		remaining = rw.RemainingQuantity()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to read inventory: %w", err)
	}
	return remaining, nil
}

// Adjusted 關聯 ID 是否已有庫存異動（清理排程判斷扣減是否生效）
func (t *Tracker) Adjusted(ctx context.Context, tn tenant.Tenant, rewardID reward.RewardID, correlationID string) (bool, error) {
	var found bool
	err := t.txManager.InTransaction(ctx, func(tx shared.TransactionContext) error {
		adj, err := t.rewards.FindAdjustment(tx, tn, rewardID, correlationID)
		if err != nil {
			return err
		}
		found = adj != nil
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to find inventory adjustment: %w", err)
	}
	return found, nil
}

func (t *Tracker) adjust(ctx context.Context, tn tenant.Tenant, rewardID reward.RewardID, delta int, correlationID string) error {
	adj, err := reward.NewInventoryAdjustment(tn, rewardID, delta, correlationID)
	if err != nil {
		return err
	}

	return shared.RetryOnConflict(ctx, shared.DefaultMaxAttempts, func() error {
		return t.txManager.InTransaction(ctx, func(tx shared.TransactionContext) error {
			// 1. 已處理過 → no-op
			prior, err := t.rewards.FindAdjustment(tx, tn, rewardID, adj.CorrelationID())
			if err != nil {
				return err
			}
			if prior != nil {
				if (prior.Delta() < 0) != (delta < 0) {
					return reward.ErrAdjustmentConflict.WithContext(
						"reward_id", rewardID.String(),
						"correlation_id", adj.CorrelationID(),
						"prior_delta", prior.Delta(),
					)
				}
				return nil
			}

			// 2. 條件更新
			if err := t.rewards.AdjustQuantity(tx, tn, rewardID, delta); err != nil {
				return err
			}

			// 3. 寫入異動（並發寫入相同關聯 ID → 回滾後重試，走 no-op 路徑）
			return t.rewards.AppendAdjustment(tx, tn, adj)
		})
	})
}
