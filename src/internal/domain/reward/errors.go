package reward

import "github.com/jackyeh168/loyalty_engine/src/internal/domain/shared"

const (
	ErrCodeRewardNotFound    shared.ErrorCode = "REWARD_NOT_FOUND"
	ErrCodeOutOfStock        shared.ErrorCode = "REWARD_OUT_OF_STOCK"
	ErrCodeInvalidRewardID   shared.ErrorCode = "REWARD_ID_INVALID"
	ErrCodeInvalidReward     shared.ErrorCode = "REWARD_INVALID"
	ErrCodeInvalidQuantity   shared.ErrorCode = "REWARD_QUANTITY_INVALID"
	ErrCodeInvalidPrice      shared.ErrorCode = "REWARD_PRICE_INVALID"
	ErrCodeAdjustmentClash   shared.ErrorCode = "INVENTORY_ADJUSTMENT_CONFLICT"
	ErrCodeRepositoryFailure shared.ErrorCode = "REWARD_REPOSITORY_ERROR"
)

var (
	ErrRewardNotFound = shared.NewDomainError(ErrCodeRewardNotFound, "獎勵不存在")

	// ErrOutOfStock 剩餘數量不足
	ErrOutOfStock = shared.NewDomainError(ErrCodeOutOfStock, "獎勵已無庫存")

	ErrInvalidRewardID = shared.NewDomainError(ErrCodeInvalidRewardID, "無效的獎勵 ID")
	ErrInvalidReward   = shared.NewDomainError(ErrCodeInvalidReward, "無效的獎勵資料")
	ErrInvalidQuantity = shared.NewDomainError(ErrCodeInvalidQuantity, "無效的庫存數量")
	ErrInvalidPrice    = shared.NewDomainError(ErrCodeInvalidPrice, "無效的價格")

	// ErrAdjustmentConflict 相同關聯 ID 已用於相反方向的庫存調整
	ErrAdjustmentConflict = shared.NewDomainError(ErrCodeAdjustmentClash, "關聯 ID 已用於不同的庫存調整")

	ErrRepositoryError = shared.NewDomainError(ErrCodeRepositoryFailure, "獎勵倉儲操作失敗")
)
