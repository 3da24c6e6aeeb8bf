package earning

import "github.com/jackyeh168/loyalty_engine/src/internal/domain/shared"

// ===========================
// 錯誤代碼定義
// ===========================

const (
	ErrCodeInvalidPayload shared.ErrorCode = "EARNING_PAYLOAD_INVALID"
	ErrCodeInvalidPolicy  shared.ErrorCode = "EARNING_POLICY_INVALID"
	ErrCodeInvalidEvent   shared.ErrorCode = "EARNING_EVENT_INVALID"
	ErrCodeInvalidRuleID  shared.ErrorCode = "EARNING_RULE_ID_INVALID"
	ErrCodeRuleNotFound   shared.ErrorCode = "EARNING_RULE_NOT_FOUND"
	ErrCodeRepository     shared.ErrorCode = "EARNING_REPOSITORY_ERROR"
)

var (
	// ErrInvalidPayload 事件 payload 缺少策略需要的數值欄位，或欄位不是數字
	ErrInvalidPayload = shared.NewDomainError(ErrCodeInvalidPayload, "事件內容無效")

	// ErrInvalidPolicy 規則的策略參數無效（載入或種子資料錯誤）
	ErrInvalidPolicy = shared.NewDomainError(ErrCodeInvalidPolicy, "積分策略無效")

	ErrInvalidEvent    = shared.NewDomainError(ErrCodeInvalidEvent, "無效的事件")
	ErrInvalidRuleID   = shared.NewDomainError(ErrCodeInvalidRuleID, "無效的規則 ID")
	ErrRuleNotFound    = shared.NewDomainError(ErrCodeRuleNotFound, "找不到啟用中的積分規則")
	ErrRepositoryError = shared.NewDomainError(ErrCodeRepository, "積分規則倉儲操作失敗")
)
