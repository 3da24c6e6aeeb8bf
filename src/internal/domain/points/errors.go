package points

import "github.com/jackyeh168/loyalty_engine/src/internal/domain/shared"

// ===========================
// 錯誤代碼定義
// ===========================

const (
	// 積分數量相關
	ErrCodeNegativePointsAmount shared.ErrorCode = "POINTS_NEGATIVE"
	ErrCodeInvalidPointsAmount  shared.ErrorCode = "POINTS_INVALID"
	ErrCodeInsufficientPoints   shared.ErrorCode = "POINTS_INSUFFICIENT"
	ErrCodePointsOverflow       shared.ErrorCode = "POINTS_OVERFLOW"

	// 識別與輸入相關
	ErrCodeInvalidCustomerID    shared.ErrorCode = "CUSTOMER_ID_INVALID"
	ErrCodeInvalidEntryID       shared.ErrorCode = "ENTRY_ID_INVALID"
	ErrCodeInvalidCorrelationID shared.ErrorCode = "CORRELATION_ID_INVALID"
	ErrCodeInvalidReasonCode    shared.ErrorCode = "REASON_CODE_INVALID"

	// 冪等與不變條件
	ErrCodeCorrelationConflict shared.ErrorCode = "CORRELATION_CONFLICT"
	ErrCodeInvariantViolation  shared.ErrorCode = "LEDGER_INVARIANT_VIOLATION"
	ErrCodeCorruptedBalance    shared.ErrorCode = "BALANCE_CORRUPTED"

	// Repository 相關
	ErrCodeBalanceNotFound shared.ErrorCode = "BALANCE_NOT_FOUND"
	ErrCodeEntryNotFound   shared.ErrorCode = "ENTRY_NOT_FOUND"
	ErrCodeRepositoryError shared.ErrorCode = "LEDGER_REPOSITORY_ERROR"
)

// ===========================
// 預定義錯誤
// ===========================

// 積分數量相關錯誤
var (
	ErrNegativePointsAmount = shared.NewDomainError(ErrCodeNegativePointsAmount, "積分數量不能為負數")
	ErrInvalidPointsAmount  = shared.NewDomainError(ErrCodeInvalidPointsAmount, "無效的積分數量")
	ErrInsufficientPoints   = shared.NewDomainError(ErrCodeInsufficientPoints, "積分餘額不足")
	ErrPointsOverflow       = shared.NewDomainError(ErrCodePointsOverflow, "積分數量溢位")
)

// 識別與輸入相關錯誤
var (
	ErrInvalidCustomerID    = shared.NewDomainError(ErrCodeInvalidCustomerID, "無效的顧客 ID")
	ErrInvalidEntryID       = shared.NewDomainError(ErrCodeInvalidEntryID, "無效的分錄 ID")
	ErrInvalidCorrelationID = shared.NewDomainError(ErrCodeInvalidCorrelationID, "無效的關聯 ID")
	ErrInvalidReasonCode    = shared.NewDomainError(ErrCodeInvalidReasonCode, "無效的分錄原因")
)

// 冪等與不變條件錯誤
var (
	// ErrCorrelationConflict 相同關聯 ID 已被相反方向的分錄使用
	ErrCorrelationConflict = shared.NewDomainError(ErrCodeCorrelationConflict, "關聯 ID 已用於不同的操作")

	// ErrInvariantViolation 餘額與分錄加總不一致
	ErrInvariantViolation = shared.NewDomainError(ErrCodeInvariantViolation, "餘額與分錄加總不一致")

	// ErrCorruptedBalance 資料庫中的餘額資料損壞（負數等）
	ErrCorruptedBalance = shared.NewDomainError(ErrCodeCorruptedBalance, "餘額資料損壞")
)

// Repository 錯誤
var (
	ErrBalanceNotFound = shared.NewDomainError(ErrCodeBalanceNotFound, "顧客餘額不存在")
	ErrEntryNotFound   = shared.NewDomainError(ErrCodeEntryNotFound, "帳本分錄不存在")
	ErrRepositoryError = shared.NewDomainError(ErrCodeRepositoryError, "帳本倉儲操作失敗")
)
