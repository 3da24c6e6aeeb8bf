package tenant

import "github.com/jackyeh168/loyalty_engine/src/internal/domain/shared"

// 錯誤代碼
const (
	ErrCodeMissingTenant  shared.ErrorCode = "TENANT_MISSING"
	ErrCodeUnknownTenant  shared.ErrorCode = "TENANT_UNKNOWN"
	ErrCodeTenantMismatch shared.ErrorCode = "TENANT_MISMATCH"
)

var (
	// ErrMissingTenant 請求未攜帶租戶 ID（或格式無效）
	ErrMissingTenant = shared.NewDomainError(ErrCodeMissingTenant, "缺少租戶 ID")

	// ErrUnknownTenant 租戶不存在或已停用
	ErrUnknownTenant = shared.NewDomainError(ErrCodeUnknownTenant, "未知的租戶")

	// ErrTenantMismatch 請求租戶與已驗證身分的租戶不一致
	ErrTenantMismatch = shared.NewDomainError(ErrCodeTenantMismatch, "租戶與已驗證身分不一致")
)
