package points

import (
	"time"

	"github.com/google/uuid"
)

// ===========================
// 帳本領域事件
// ===========================

// entryEvent 入帳 / 扣帳事件的共同欄位
type entryEvent struct {
	eventID    string
	entry      *LedgerEntry
	occurredAt time.Time
}

func newEntryEvent(entry *LedgerEntry) entryEvent {
	return entryEvent{
		eventID:    uuid.New().String(),
		entry:      entry,
		occurredAt: entry.CreatedAt(),
	}
}

// EventID 實現 DomainEvent 介面
func (e *entryEvent) EventID() string {
	return e.eventID
}

// OccurredAt 實現 DomainEvent 介面
func (e *entryEvent) OccurredAt() time.Time {
	return e.occurredAt
}

// AggregateID 實現 DomainEvent 介面（tenant/customer）
func (e *entryEvent) AggregateID() string {
	return e.entry.TenantID().String() + "/" + e.entry.CustomerID().String()
}

// Entry 觸發事件的分錄
func (e *entryEvent) Entry() *LedgerEntry {
	return e.entry
}

// PointsCreditedEvent 積分已入帳
type PointsCreditedEvent struct {
	entryEvent
}

// NewPointsCreditedEvent 建立入帳事件
func NewPointsCreditedEvent(entry *LedgerEntry) *PointsCreditedEvent {
	return &PointsCreditedEvent{entryEvent: newEntryEvent(entry)}
}

// EventType 實現 DomainEvent 介面
func (e *PointsCreditedEvent) EventType() string {
	return "points.credited"
}

// PointsDebitedEvent 積分已扣帳
type PointsDebitedEvent struct {
	entryEvent
}

// NewPointsDebitedEvent 建立扣帳事件
func NewPointsDebitedEvent(entry *LedgerEntry) *PointsDebitedEvent {
	return &PointsDebitedEvent{entryEvent: newEntryEvent(entry)}
}

// EventType 實現 DomainEvent 介面
func (e *PointsDebitedEvent) EventType() string {
	return "points.debited"
}
