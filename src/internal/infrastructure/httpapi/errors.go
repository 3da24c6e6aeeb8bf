package httpapi

import (
	"errors"
	"net/http"

	"github.com/jackyeh168/loyalty_engine/src/internal/domain/earning"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/payment"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/points"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/redemption"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/reward"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/shared"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/tenant"
)

// ===========================
// 錯誤代碼 → HTTP 狀態碼
// ===========================

var statusByCode = map[shared.ErrorCode]int{
	// 400 輸入無效
	tenant.ErrCodeMissingTenant:          http.StatusBadRequest,
	points.ErrCodeInvalidCustomerID:      http.StatusBadRequest,
	points.ErrCodeInvalidCorrelationID:   http.StatusBadRequest,
	points.ErrCodeInvalidEntryID:         http.StatusBadRequest,
	points.ErrCodeInvalidPointsAmount:    http.StatusBadRequest,
	points.ErrCodeNegativePointsAmount:   http.StatusBadRequest,
	points.ErrCodeInvalidReasonCode:      http.StatusBadRequest,
	points.ErrCodePointsOverflow:         http.StatusBadRequest,
	reward.ErrCodeInvalidRewardID:        http.StatusBadRequest,
	reward.ErrCodeInvalidReward:          http.StatusBadRequest,
	reward.ErrCodeInvalidQuantity:        http.StatusBadRequest,
	reward.ErrCodeInvalidPrice:           http.StatusBadRequest,
	redemption.ErrCodeInvalidID:          http.StatusBadRequest,
	redemption.ErrCodeInvalidIdempotency: http.StatusBadRequest,
	earning.ErrCodeInvalidPayload:        http.StatusBadRequest,
	earning.ErrCodeInvalidEvent:          http.StatusBadRequest,
	earning.ErrCodeInvalidRuleID:         http.StatusBadRequest,
	codeInvalidBody:                      http.StatusBadRequest,

	// 403 租戶
	tenant.ErrCodeUnknownTenant:  http.StatusForbidden,
	tenant.ErrCodeTenantMismatch: http.StatusForbidden,

	// 404
	reward.ErrCodeRewardNotFound: http.StatusNotFound,
	redemption.ErrCodeNotFound:   http.StatusNotFound,
	points.ErrCodeEntryNotFound:  http.StatusNotFound,

	// 409 衝突
	points.ErrCodeCorrelationConflict:   http.StatusConflict,
	points.ErrCodeInsufficientPoints:    http.StatusConflict,
	reward.ErrCodeOutOfStock:            http.StatusConflict,
	reward.ErrCodeAdjustmentClash:       http.StatusConflict,
	redemption.ErrCodeTerminal:          http.StatusConflict,
	redemption.ErrCodeInvalidTransition: http.StatusConflict,

	// 402 支付
	payment.ErrCodeDeclined: http.StatusPaymentRequired,

	// 503 可重試
	shared.ErrCodeConcurrentModification: http.StatusServiceUnavailable,
	shared.ErrCodeStoreUnavailable:       http.StatusServiceUnavailable,
	payment.ErrCodeGatewayUnavailable:    http.StatusServiceUnavailable,
}

const codeInvalidBody shared.ErrorCode = "REQUEST_BODY_INVALID"

var errInvalidBody = shared.NewDomainError(codeInvalidBody, "無效的請求內容")

// ErrorResponse 錯誤回應
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// statusFor 依領域錯誤代碼決定狀態碼；非領域錯誤一律 500
func statusFor(err error) int {
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		if status, ok := statusByCode[domainErr.Code]; ok {
			return status
		}
	}
	return http.StatusInternalServerError
}

func errorResponseOf(err error, status int) ErrorResponse {
	var domainErr *shared.DomainError
	if !errors.As(err, &domainErr) {
		return ErrorResponse{Error: http.StatusText(status)}
	}
	resp := ErrorResponse{
		Error: domainErr.Message,
		Code:  string(domainErr.Code),
	}
	// 500 不回傳內部細節
	if status != http.StatusInternalServerError {
		resp.Details = domainErr.Context
	}
	return resp
}
