package shared

import "time"

// DomainEvent 領域事件基礎介面
type DomainEvent interface {
	EventID() string       // 事件唯一標識
	EventType() string     // 事件類型
	OccurredAt() time.Time // 發生時間
	AggregateID() string   // 聚合根 ID
}

// EventRecorder 聚合根的待發布事件列表
//
// 嵌入到聚合根中使用；事件在 Repository 持久化成功後以 PullEvents 取出。
type EventRecorder struct {
	events []DomainEvent
}

// Record 添加領域事件
func (r *EventRecorder) Record(event DomainEvent) {
	r.events = append(r.events, event)
}

// PullEvents 取出所有待發布事件並清空列表
func (r *EventRecorder) PullEvents() []DomainEvent {
	events := r.events
	r.events = nil
	return events
}

// EventPublisher 事件發布器介面
// 介面定義在 Domain Layer（使用者），由 Infrastructure 實作
type EventPublisher interface {
	Publish(event DomainEvent) error
}
