package httpapi

import (
	"time"

	earningapp "github.com/jackyeh168/loyalty_engine/src/internal/application/earning"
	redemptionapp "github.com/jackyeh168/loyalty_engine/src/internal/application/redemption"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/points"
	"github.com/shopspring/decimal"
)

// ===========================
// 請求
// ===========================

// EventRequest 業務事件
type EventRequest struct {
	CustomerID string                 `json:"customerId"`
	EventType  string                 `json:"eventType"`
	EventName  string                 `json:"eventName"`
	EventID    string                 `json:"eventId"`
	Payload    map[string]interface{} `json:"payload"`
}

// PurchaseRequest 消費交易；amount 可為數字或字串
type PurchaseRequest struct {
	CustomerID    string          `json:"customerId"`
	TransactionID string          `json:"transactionId"`
	Amount        decimal.Decimal `json:"amount"`
}

// RedeemRequest 兌換請求；idempotencyKey 可改由 Idempotency-Key header 帶入
type RedeemRequest struct {
	CustomerID     string `json:"customerId"`
	RewardID       string `json:"rewardId"`
	IdempotencyKey string `json:"idempotencyKey"`
}

// ===========================
// 回應
// ===========================

// EarningResponse 積分規則套用結果
type EarningResponse struct {
	Applied   bool   `json:"applied"`
	RuleID    string `json:"ruleId,omitempty"`
	Points    int    `json:"points"`
	Balance   int    `json:"balance"`
	Duplicate bool   `json:"duplicate"`
}

// RedemptionResponse 兌換狀態
type RedemptionResponse struct {
	RedemptionID        string `json:"redemptionId"`
	State               string `json:"state"`
	Failure             string `json:"failure,omitempty"`
	Reason              string `json:"reason,omitempty"`
	PaymentClientToken  string `json:"paymentClientToken,omitempty"`
	PointsCost          int    `json:"pointsCost"`
	CompensationPending bool   `json:"compensationPending,omitempty"`
}

// BalanceResponse 顧客餘額
type BalanceResponse struct {
	CustomerID string `json:"customerId"`
	Balance    int    `json:"balance"`
}

// EntryDTO 帳本分錄
type EntryDTO struct {
	ID            string    `json:"id"`
	Delta         int       `json:"delta"`
	Reason        string    `json:"reason"`
	CorrelationID string    `json:"correlationId"`
	BalanceAfter  int       `json:"balanceAfter"`
	CreatedAt     time.Time `json:"createdAt"`
}

// EntriesResponse 顧客分錄（新到舊）
type EntriesResponse struct {
	CustomerID string     `json:"customerId"`
	Entries    []EntryDTO `json:"entries"`
}

// HealthResponse 健康檢查
type HealthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func toEarningResponse(r *earningapp.EarningResult) EarningResponse {
	return EarningResponse{
		Applied:   r.Applied,
		RuleID:    r.RuleID,
		Points:    r.Points,
		Balance:   r.Balance,
		Duplicate: r.Duplicate,
	}
}

func toRedemptionResponse(r *redemptionapp.RedeemResult) RedemptionResponse {
	return RedemptionResponse{
		RedemptionID:        r.RedemptionID,
		State:               r.State.String(),
		Failure:             r.Failure.String(),
		Reason:              r.Reason,
		PaymentClientToken:  r.PaymentClientToken,
		PointsCost:          r.PointsCost,
		CompensationPending: r.CompensationPending,
	}
}

func toEntryDTOs(entries []*points.LedgerEntry) []EntryDTO {
	dtos := make([]EntryDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, EntryDTO{
			ID:            e.ID().String(),
			Delta:         e.Delta(),
			Reason:        e.Reason().String(),
			CorrelationID: e.CorrelationID().String(),
			BalanceAfter:  e.BalanceAfter().Value(),
			CreatedAt:     e.CreatedAt(),
		})
	}
	return dtos
}
