package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	earningapp "github.com/jackyeh168/loyalty_engine/src/internal/application/earning"
	redemptionapp "github.com/jackyeh168/loyalty_engine/src/internal/application/redemption"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/points"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/tenant"
)

// IdempotencyKeyHeader 兌換請求的冪等鍵
const IdempotencyKeyHeader = "Idempotency-Key"

const maxBodyBytes = 1 << 20

// ===========================
// 依賴介面
// ===========================

// EventApplier 套用積分規則（application/earning.ApplyRuleUseCase）
type EventApplier interface {
	Execute(ctx context.Context, t tenant.Tenant, cmd earningapp.EarningEventCommand) (*earningapp.EarningResult, error)
}

// PurchaseRecorder 記錄消費（application/earning.RecordPurchaseUseCase）
type PurchaseRecorder interface {
	Execute(ctx context.Context, t tenant.Tenant, cmd earningapp.RecordPurchaseCommand) (*earningapp.EarningResult, error)
}

// RedemptionService 兌換協調（application/redemption.Coordinator）
type RedemptionService interface {
	Redeem(ctx context.Context, t tenant.Tenant, cmd redemptionapp.RedeemCommand) (*redemptionapp.RedeemResult, error)
	Get(ctx context.Context, t tenant.Tenant, rawID string) (*redemptionapp.RedeemResult, error)
	Cancel(ctx context.Context, t tenant.Tenant, rawID string) (*redemptionapp.RedeemResult, error)
}

// LedgerReader 帳本查詢（application/ledger.Service）
type LedgerReader interface {
	CurrentBalance(ctx context.Context, t tenant.Tenant, customerID points.CustomerID) (int, error)
	History(ctx context.Context, t tenant.Tenant, customerID points.CustomerID, limit int) ([]*points.LedgerEntry, error)
}

// Handler HTTP 處理器
type Handler struct {
	events      EventApplier
	purchases   PurchaseRecorder
	redemptions RedemptionService
	ledger      LedgerReader
	health      func(ctx context.Context) error
	logger      *slog.Logger
}

// ===========================
// 積分入帳
// ===========================

// ApplyEvent POST /api/events
func (h *Handler) ApplyEvent(w http.ResponseWriter, r *http.Request) {
	var req EventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	result, err := h.events.Execute(r.Context(), tenantFrom(r.Context()), earningapp.EarningEventCommand{
		CustomerID: req.CustomerID,
		EventType:  req.EventType,
		EventName:  req.EventName,
		EventID:    req.EventID,
		Payload:    req.Payload,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toEarningResponse(result))
}

// RecordPurchase POST /api/transactions
func (h *Handler) RecordPurchase(w http.ResponseWriter, r *http.Request) {
	var req PurchaseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	result, err := h.purchases.Execute(r.Context(), tenantFrom(r.Context()), earningapp.RecordPurchaseCommand{
		CustomerID:    req.CustomerID,
		TransactionID: req.TransactionID,
		Amount:        req.Amount,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toEarningResponse(result))
}

// ===========================
// 兌換
// ===========================

// Redeem POST /api/redemptions
//
// 兌換結果（含失敗狀態）以 200 回傳；非 2xx 只代表請求本身無法處理。
func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req RedeemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	key := req.IdempotencyKey
	if key == "" {
		key = r.Header.Get(IdempotencyKeyHeader)
	}

	result, err := h.redemptions.Redeem(r.Context(), tenantFrom(r.Context()), redemptionapp.RedeemCommand{
		CustomerID:     req.CustomerID,
		RewardID:       req.RewardID,
		IdempotencyKey: key,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toRedemptionResponse(result))
}

// GetRedemption GET /api/redemptions/{id}
func (h *Handler) GetRedemption(w http.ResponseWriter, r *http.Request) {
	result, err := h.redemptions.Get(r.Context(), tenantFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toRedemptionResponse(result))
}

// CancelRedemption POST /api/redemptions/{id}/cancel
func (h *Handler) CancelRedemption(w http.ResponseWriter, r *http.Request) {
	result, err := h.redemptions.Cancel(r.Context(), tenantFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toRedemptionResponse(result))
}

// ===========================
// 餘額查詢
// ===========================

// GetBalance GET /api/customers/{customerID}/balance
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	customerID, err := points.CustomerIDFromString(chi.URLParam(r, "customerID"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	balance, err := h.ledger.CurrentBalance(r.Context(), tenantFrom(r.Context()), customerID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceResponse{
		CustomerID: customerID.String(),
		Balance:    balance,
	})
}

// GetEntries GET /api/customers/{customerID}/entries?limit=
func (h *Handler) GetEntries(w http.ResponseWriter, r *http.Request) {
	customerID, err := points.CustomerIDFromString(chi.URLParam(r, "customerID"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, r, h.logger, errInvalidBody.WithContext("field", "limit", "value", raw))
			return
		}
	}

	entries, err := h.ledger.History(r.Context(), tenantFrom(r.Context()), customerID, limit)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, EntriesResponse{
		CustomerID: customerID.String(),
		Entries:    toEntryDTOs(entries),
	})
}

// ===========================
// 維運
// ===========================

// Health GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable", Error: err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// ===========================
// Helper Functions
// ===========================

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errInvalidBody.WithContext("error", strings.TrimPrefix(err.Error(), "json: "))
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"error", err,
		)
	}
	writeJSON(w, status, errorResponseOf(err, status))
}
