package events

import (
	"context"
	"log/slog"

	"github.com/jackyeh168/loyalty_engine/src/internal/domain/points"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/redemption"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/shared"
)

// ===========================
// LogPublisher
// ===========================

// LogPublisher 以結構化日誌輸出領域事件
//
// 沒有外部訊息佇列時的預設 publisher；下游系統可以從日誌收集。
type LogPublisher struct {
	logger *slog.Logger
	level  slog.Level
}

// NewLogPublisher 建立日誌 publisher
func NewLogPublisher(logger *slog.Logger, level slog.Level) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger, level: level}
}

// Publish 實作 shared.EventPublisher
func (p *LogPublisher) Publish(event shared.DomainEvent) error {
	attrs := []slog.Attr{
		slog.String("event_id", event.EventID()),
		slog.String("event_type", event.EventType()),
		slog.String("aggregate_id", event.AggregateID()),
		slog.Time("occurred_at", event.OccurredAt()),
	}

	switch e := event.(type) {
	case *points.PointsCreditedEvent:
		attrs = append(attrs, entryAttrs(e.Entry())...)
	case *points.PointsDebitedEvent:
		attrs = append(attrs, entryAttrs(e.Entry())...)
	case *redemption.StateChangedEvent:
		attrs = append(attrs,
			slog.String("tenant_id", e.TenantID()),
			slog.String("from", e.From().String()),
			slog.String("to", e.To().String()),
		)
	}

	p.logger.LogAttrs(context.Background(), p.level, "domain event", attrs...)
	return nil
}

func entryAttrs(entry *points.LedgerEntry) []slog.Attr {
	return []slog.Attr{
		slog.String("tenant_id", entry.TenantID().String()),
		slog.String("customer_id", entry.CustomerID().String()),
		slog.Int("delta", entry.Delta()),
		slog.String("reason", entry.Reason().String()),
		slog.String("correlation_id", entry.CorrelationID().String()),
		slog.Int("balance_after", entry.BalanceAfter().Value()),
	}
}
