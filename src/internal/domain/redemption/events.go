package redemption

import (
	"time"

	"github.com/google/uuid"
)

// StateChangedEvent 兌換狀態已改變
type StateChangedEvent struct {
	eventID      string
	redemptionID RedemptionID
	tenantID     string
	from         State
	to           State
	occurredAt   time.Time
}

// NewStateChangedEvent 建立狀態改變事件（from 為空代表剛建立）
func NewStateChangedEvent(r *Redemption, from State) *StateChangedEvent {
	return &StateChangedEvent{
		eventID:      uuid.New().String(),
		redemptionID: r.id,
		tenantID:     r.tenantID.String(),
		from:         from,
		to:           r.state,
		occurredAt:   r.updatedAt,
	}
}

// EventID 實現 DomainEvent 介面
func (e *StateChangedEvent) EventID() string {
	return e.eventID
}

// EventType 實現 DomainEvent 介面
func (e *StateChangedEvent) EventType() string {
	return "redemption.state_changed"
}

// OccurredAt 實現 DomainEvent 介面
func (e *StateChangedEvent) OccurredAt() time.Time {
	return e.occurredAt
}

// AggregateID 實現 DomainEvent 介面
func (e *StateChangedEvent) AggregateID() string {
	return e.redemptionID.String()
}

// TenantID 所屬租戶
func (e *StateChangedEvent) TenantID() string {
	return e.tenantID
}

// From 前一個狀態
func (e *StateChangedEvent) From() State {
	return e.from
}

// To 新狀態
func (e *StateChangedEvent) To() State {
	return e.to
}
