package earning

import (
	"strings"
	"time"

	"github.com/jackyeh168/loyalty_engine/src/internal/domain/shared"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/tenant"
)

// RuleMarker 是 RuleID 的標記類型
type RuleMarker struct{}

// RuleID 積分規則 ID
type RuleID = shared.EntityID[RuleMarker]

// NewRuleID 生成新的規則 ID
func NewRuleID() RuleID {
	return shared.NewEntityID[RuleMarker]()
}

// RuleIDFromString 解析規則 ID
func RuleIDFromString(s string) (RuleID, error) {
	return shared.EntityIDFromString[RuleMarker](s, ErrInvalidRuleID)
}

// EventKey 事件分類 (eventType, eventName)，例如 (TRANSACTION, PURCHASE)
type EventKey struct {
	Type string
	Name string
}

// NewEventKey 驗證並正規化事件分類（去空白、轉大寫）
func NewEventKey(eventType, eventName string) (EventKey, error) {
	key := EventKey{
		Type: strings.ToUpper(strings.TrimSpace(eventType)),
		Name: strings.ToUpper(strings.TrimSpace(eventName)),
	}
	if key.Type == "" || key.Name == "" {
		return EventKey{}, ErrInvalidEvent.WithContext(
			"event_type", eventType,
			"event_name", eventName,
		)
	}
	return key, nil
}

// String 返回 "TYPE:NAME"
func (k EventKey) String() string {
	return k.Type + ":" + k.Name
}

// PurchaseEvent 消費交易事件
var PurchaseEvent = EventKey{Type: "TRANSACTION", Name: "PURCHASE"}

// ===========================
// EarningRule 實體（唯讀）
// ===========================

// EarningRule 租戶的積分規則
//
// 規則由外部管理流程建立，核心只讀取；同一事件有多條啟用規則時，
// 取最近更新的一條。
type EarningRule struct {
	id        RuleID
	tenantID  tenant.TenantID
	event     EventKey
	policy    Policy
	active    bool
	updatedAt time.Time
}

// NewEarningRule 建立規則（種子載入器使用）
func NewEarningRule(t tenant.Tenant, event EventKey, policy Policy, active bool) (*EarningRule, error) {
	if t.IsZero() {
		return nil, tenant.ErrMissingTenant
	}
	if policy == nil {
		return nil, ErrInvalidPolicy.WithContext("reason", "policy is required")
	}
	return &EarningRule{
		id:        NewRuleID(),
		tenantID:  t.ID(),
		event:     event,
		policy:    policy,
		active:    active,
		updatedAt: time.Now().UTC(),
	}, nil
}

// ReconstructEarningRule 從持久化數據重建（Repository 專用）
func ReconstructEarningRule(
	id RuleID,
	tenantID tenant.TenantID,
	event EventKey,
	policy Policy,
	active bool,
	updatedAt time.Time,
) *EarningRule {
	return &EarningRule{
		id:        id,
		tenantID:  tenantID,
		event:     event,
		policy:    policy,
		active:    active,
		updatedAt: updatedAt,
	}
}

func (r *EarningRule) ID() RuleID { return r.id }
func (r *EarningRule) TenantID() tenant.TenantID { return r.tenantID }
func (r *EarningRule) Event() EventKey { return r.event }
func (r *EarningRule) Policy() Policy { return r.policy }
func (r *EarningRule) IsActive() bool { return r.active }
func (r *EarningRule) UpdatedAt() time.Time { return r.updatedAt }

// PointsFor 以規則策略計算 payload 的積分
func (r *EarningRule) PointsFor(payload Payload) (int, error) {
	return r.policy.Compute(payload)
}

// ===========================
// Repository 介面
// ===========================

// RuleRepository 積分規則倉儲
type RuleRepository interface {
	// FindActiveRule 查詢事件的啟用規則（最近更新者優先）
	// 返回：ErrRuleNotFound
	FindActiveRule(tx shared.TransactionContext, t tenant.Tenant, event EventKey) (*EarningRule, error)

	// Save 寫入或覆寫規則（種子載入）
	Save(tx shared.TransactionContext, t tenant.Tenant, rule *EarningRule) error
}
