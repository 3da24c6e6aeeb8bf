package redemption

import "github.com/jackyeh168/loyalty_engine/src/internal/domain/shared"

const (
	ErrCodeInvalidTransition  shared.ErrorCode = "REDEMPTION_INVALID_TRANSITION"
	ErrCodeTerminal           shared.ErrorCode = "REDEMPTION_TERMINAL"
	ErrCodeNotFound           shared.ErrorCode = "REDEMPTION_NOT_FOUND"
	ErrCodeAlreadyExists      shared.ErrorCode = "REDEMPTION_ALREADY_EXISTS"
	ErrCodeInvalidID          shared.ErrorCode = "REDEMPTION_ID_INVALID"
	ErrCodeInvalidState       shared.ErrorCode = "REDEMPTION_STATE_INVALID"
	ErrCodeInvalidIdempotency shared.ErrorCode = "IDEMPOTENCY_KEY_INVALID"
	ErrCodeRepository         shared.ErrorCode = "REDEMPTION_REPOSITORY_ERROR"
)

var (
	// ErrInvalidTransition 違反狀態轉換表
	ErrInvalidTransition = shared.NewDomainError(ErrCodeInvalidTransition, "無效的兌換狀態轉換")

	// ErrRedemptionTerminal 兌換已結束，無法再取消或變更
	ErrRedemptionTerminal = shared.NewDomainError(ErrCodeTerminal, "兌換已結束")

	ErrRedemptionNotFound      = shared.NewDomainError(ErrCodeNotFound, "兌換紀錄不存在")
	ErrRedemptionAlreadyExists = shared.NewDomainError(ErrCodeAlreadyExists, "相同冪等鍵的兌換已存在")
	ErrInvalidRedemptionID     = shared.NewDomainError(ErrCodeInvalidID, "無效的兌換 ID")
	ErrInvalidState            = shared.NewDomainError(ErrCodeInvalidState, "無效的兌換狀態")
	ErrInvalidIdempotencyKey   = shared.NewDomainError(ErrCodeInvalidIdempotency, "無效的冪等鍵")
	ErrRepositoryError         = shared.NewDomainError(ErrCodeRepository, "兌換倉儲操作失敗")
)
