package metrics

import (
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/shared"
)

// CountingPublisher 在轉交下一個 publisher 之前計數事件
type CountingPublisher struct {
	next      shared.EventPublisher
	collector *Collector
}

// NewCountingPublisher next 可為 nil（只計數）
func NewCountingPublisher(collector *Collector, next shared.EventPublisher) *CountingPublisher {
	return &CountingPublisher{next: next, collector: collector}
}

// Publish 實作 shared.EventPublisher
func (p *CountingPublisher) Publish(event shared.DomainEvent) error {
	p.collector.ObserveEvent(event)
	if p.next == nil {
		return nil
	}
	return p.next.Publish(event)
}
