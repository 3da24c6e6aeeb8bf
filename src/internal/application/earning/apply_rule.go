package earning

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackyeh168/loyalty_engine/src/internal/application/ledger"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/earning"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/points"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/shared"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/tenant"
)

// Ledger 積分入帳能力（application/ledger.Service）
type Ledger interface {
	Credit(
		ctx context.Context,
		t tenant.Tenant,
		customerID points.CustomerID,
		amount int,
		reason points.ReasonCode,
		correlationID points.CorrelationID,
	) (*ledger.Result, error)
}

// ===========================
// ApplyRule Use Case
// ===========================

// EarningEventCommand 業務事件
//
// 輸入：
// - CustomerID: 顧客 ID
// - EventType / EventName: 事件分類，例如 (TRANSACTION, PURCHASE)
// - EventID: 事件的唯一識別碼；重送相同 EventID 不會重複入帳
// - Payload: 策略讀取的數值欄位
type EarningEventCommand struct {
	CustomerID string
	EventType  string
	EventName  string
	EventID    string
	Payload    earning.Payload
}

// EarningResult 規則套用結果
//
// Applied = false 表示沒有啟用規則或策略計算為 0 點，沒有任何變更。
type EarningResult struct {
	Applied   bool
	RuleID    string
	Points    int
	Balance   int
	Duplicate bool
}

// ApplyRuleUseCase 依事件套用積分規則
type ApplyRuleUseCase struct {
	rules     earning.RuleRepository
	ledger    Ledger
	txManager shared.TransactionManager
}

// NewApplyRuleUseCase 創建 Use Case 實例
func NewApplyRuleUseCase(rules earning.RuleRepository, ledger Ledger, txManager shared.TransactionManager) *ApplyRuleUseCase {
	return &ApplyRuleUseCase{
		rules:     rules,
		ledger:    ledger,
		txManager: txManager,
	}
}

// Execute 套用規則
//
// 執行流程：
// 1. 驗證輸入（顧客、事件分類、事件 ID）
// 2. 查詢事件的啟用規則；沒有規則 → 不做任何事
// 3. 以策略計算積分；0 點 → 不做任何事
// 4. 以關聯 ID earn:<type>:<name>:<eventID> 入帳（重送為重複 no-op）
//
// 錯誤處理：
// - ErrInvalidEvent: 事件分類或事件 ID 為空
// - ErrInvalidPayload: 策略需要的欄位缺少或不是數字
func (uc *ApplyRuleUseCase) Execute(ctx context.Context, t tenant.Tenant, cmd EarningEventCommand) (*EarningResult, error) {
	// 1. 驗證輸入
	customerID, err := points.CustomerIDFromString(cmd.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("failed to parse customer ID: %w", err)
	}
	event, err := earning.NewEventKey(cmd.EventType, cmd.EventName)
	if err != nil {
		return nil, err
	}
	eventID := strings.TrimSpace(cmd.EventID)
	if eventID == "" {
		return nil, earning.ErrInvalidEvent.WithContext("reason", "event id is required", "event", event.String())
	}
	correlationID, err := points.NewCorrelationID(fmt.Sprintf("earn:%s:%s:%s", event.Type, event.Name, eventID))
	if err != nil {
		return nil, fmt.Errorf("failed to build correlation ID: %w", err)
	}

	// 2. 查詢啟用規則
	var rule *earning.EarningRule
	err = uc.txManager.InTransaction(ctx, func(tx shared.TransactionContext) error {
		var err error
		rule, err = uc.rules.FindActiveRule(tx, t, event)
		return err
	})
	if err != nil {
		if errors.Is(err, earning.ErrRuleNotFound) {
			return &EarningResult{Applied: false}, nil
		}
		return nil, fmt.Errorf("failed to find earning rule: %w", err)
	}

	// 3. 計算積分（純函數）
	amount, err := rule.PointsFor(cmd.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to compute points for rule %s: %w", rule.ID(), err)
	}
	if amount == 0 {
		return &EarningResult{Applied: false, RuleID: rule.ID().String()}, nil
	}

	// 4. 入帳
	credited, err := uc.ledger.Credit(ctx, t, customerID, amount, points.ReasonEarningRule, correlationID)
	if err != nil {
		return nil, err
	}

	return &EarningResult{
		Applied:   true,
		RuleID:    rule.ID().String(),
		Points:    credited.Entry.Delta(),
		Balance:   credited.Balance,
		Duplicate: credited.Duplicate,
	}, nil
}
