package earning

import (
	"context"
	"strings"

	"github.com/jackyeh168/loyalty_engine/src/internal/domain/earning"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/tenant"
	"github.com/shopspring/decimal"
)

// RecordPurchaseCommand 消費交易
type RecordPurchaseCommand struct {
	CustomerID    string
	TransactionID string
	Amount        decimal.Decimal
}

// RecordPurchaseUseCase 消費交易觸發 (TRANSACTION, PURCHASE) 規則
//
// payload 為 {"amount": Amount}，事件 ID 為交易 ID。
type RecordPurchaseUseCase struct {
	apply *ApplyRuleUseCase
}

// NewRecordPurchaseUseCase 創建 Use Case 實例
func NewRecordPurchaseUseCase(apply *ApplyRuleUseCase) *RecordPurchaseUseCase {
	return &RecordPurchaseUseCase{apply: apply}
}

// Execute 記錄消費並套用規則
func (uc *RecordPurchaseUseCase) Execute(ctx context.Context, t tenant.Tenant, cmd RecordPurchaseCommand) (*EarningResult, error) {
	if cmd.Amount.IsNegative() {
		return nil, earning.ErrInvalidPayload.WithContext(
			"field", "amount",
			"reason", "purchase amount cannot be negative",
			"transaction_id", cmd.TransactionID,
		)
	}
	return uc.apply.Execute(ctx, t, EarningEventCommand{
		CustomerID: cmd.CustomerID,
		EventType:  earning.PurchaseEvent.Type,
		EventName:  earning.PurchaseEvent.Name,
		EventID:    strings.TrimSpace(cmd.TransactionID),
		Payload:    earning.Payload{"amount": cmd.Amount},
	})
}
