package payment

import (
	"context"

	"github.com/jackyeh168/loyalty_engine/src/internal/domain/shared"
)

// ===========================
// 錯誤定義
// ===========================

const (
	ErrCodeDeclined           shared.ErrorCode = "PAYMENT_DECLINED"
	ErrCodeGatewayUnavailable shared.ErrorCode = "PAYMENT_GATEWAY_UNAVAILABLE"
	ErrCodeInvalidRequest     shared.ErrorCode = "PAYMENT_REQUEST_INVALID"
	ErrCodeUnknownHandle      shared.ErrorCode = "PAYMENT_HANDLE_UNKNOWN"
)

var (
	// ErrDeclined 閘道拒絕授權（卡片、風控等）
	ErrDeclined = shared.NewDomainError(ErrCodeDeclined, "支付被拒絕")

	// ErrGatewayUnavailable 閘道無回應、逾時或 5xx；可重試
	ErrGatewayUnavailable = shared.NewDomainError(ErrCodeGatewayUnavailable, "支付閘道不可用")

	ErrInvalidRequest = shared.NewDomainError(ErrCodeInvalidRequest, "無效的支付請求")
	ErrUnknownHandle  = shared.NewDomainError(ErrCodeUnknownHandle, "未知的支付授權")
)

// ===========================
// Gateway 介面
// ===========================

// AuthorizationRequest 授權請求
//
// Amount 為最小貨幣單位（例如分）；IdempotencyKey 讓閘道在重試時返回同一筆授權。
type AuthorizationRequest struct {
	Amount         int64
	Currency       string
	IdempotencyKey string
	Metadata       map[string]string
}

// Authorization 授權結果
type Authorization struct {
	// Handle 閘道端的授權識別碼，Capture / Void 使用
	Handle string
	// ClientToken 交給前端完成支付確認的 token（可為空）
	ClientToken string
}

// Gateway 外部支付閘道
//
// 實作：
// - infrastructure/payment.HTTPGateway：Stripe 風格 REST API
// - infrastructure/payment.MemoryGateway：開發與測試
//
// Void 對已作廢的授權必須是 no-op，讓補償可以重複執行。
type Gateway interface {
	Authorize(ctx context.Context, req AuthorizationRequest) (Authorization, error)
	Capture(ctx context.Context, handle string) error
	Void(ctx context.Context, handle string) error
}
