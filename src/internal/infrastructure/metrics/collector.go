package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/jackyeh168/loyalty_engine/src/internal/domain/payment"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/points"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/redemption"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/shared"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "loyalty"

// ===========================
// Prometheus Collector
// ===========================

// Collector 兌換、支付、清理排程與帳本的 Prometheus 指標
//
// 實作 application/redemption.Metrics。
type Collector struct {
	registry *prometheus.Registry

	redemptionsFinished  *prometheus.CounterVec
	compensationFailures prometheus.Counter
	paymentCalls         *prometheus.CounterVec
	paymentLatency       *prometheus.HistogramVec
	sweepRuns            prometheus.Counter
	sweepExamined        prometheus.Counter
	sweepFailed          prometheus.Counter
	sweepDuration        prometheus.Histogram
	events               *prometheus.CounterVec
	pointsMoved          *prometheus.CounterVec
}

// NewCollector 建立並註冊所有指標（含 Go runtime 與 process 指標）
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		redemptionsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "redemption",
			Name:      "finished_total",
			Help:      "Redemptions that reached a terminal state, by state.",
		}, []string{"state"}),
		compensationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "redemption",
			Name:      "compensation_failures_total",
			Help:      "Compensations that failed and were left pending.",
		}),
		paymentCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payment",
			Name:      "calls_total",
			Help:      "Payment gateway calls, by operation and outcome.",
		}, []string{"operation", "outcome"}),
		paymentLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "payment",
			Name:      "call_duration_seconds",
			Help:      "Payment gateway call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		sweepRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "runs_total",
			Help:      "Completed sweep passes.",
		}),
		sweepExamined: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "examined_total",
			Help:      "Stalled or compensation-pending redemptions examined by the sweeper.",
		}),
		sweepFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "failed_total",
			Help:      "Redemptions the sweeper could not recover.",
		}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "duration_seconds",
			Help:      "Sweep pass duration.",
			Buckets:   prometheus.DefBuckets,
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "domain_events_total",
			Help:      "Published domain events, by type.",
		}, []string{"type"}),
		pointsMoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "points_total",
			Help:      "Points credited or debited, by direction and reason.",
		}, []string{"direction", "reason"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.redemptionsFinished,
		c.compensationFailures,
		c.paymentCalls,
		c.paymentLatency,
		c.sweepRuns,
		c.sweepExamined,
		c.sweepFailed,
		c.sweepDuration,
		c.events,
		c.pointsMoved,
	)
	return c
}

// Handler /metrics
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Registry 底層 registry（測試用）
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RedemptionFinished 實作 redemption.Metrics
func (c *Collector) RedemptionFinished(state redemption.State) {
	c.redemptionsFinished.WithLabelValues(state.String()).Inc()
}

// CompensationFailed 實作 redemption.Metrics
func (c *Collector) CompensationFailed() {
	c.compensationFailures.Inc()
}

// PaymentCall 實作 redemption.Metrics
func (c *Collector) PaymentCall(operation string, err error, elapsed time.Duration) {
	c.paymentCalls.WithLabelValues(operation, outcome(err)).Inc()
	c.paymentLatency.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// SweepCompleted 實作 redemption.Metrics
func (c *Collector) SweepCompleted(examined, failed int, elapsed time.Duration) {
	c.sweepRuns.Inc()
	c.sweepExamined.Add(float64(examined))
	c.sweepFailed.Add(float64(failed))
	c.sweepDuration.Observe(elapsed.Seconds())
}

// ObserveEvent 記錄已發布的領域事件
func (c *Collector) ObserveEvent(event shared.DomainEvent) {
	c.events.WithLabelValues(event.EventType()).Inc()

	switch e := event.(type) {
	case *points.PointsCreditedEvent:
		c.pointsMoved.WithLabelValues("credit", e.Entry().Reason().String()).Add(float64(e.Entry().Magnitude().Value()))
	case *points.PointsDebitedEvent:
		c.pointsMoved.WithLabelValues("debit", e.Entry().Reason().String()).Add(float64(e.Entry().Magnitude().Value()))
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, payment.ErrDeclined):
		return "declined"
	case errors.Is(err, payment.ErrGatewayUnavailable):
		return "unavailable"
	case errors.Is(err, payment.ErrUnknownHandle):
		return "unknown_handle"
	default:
		return "error"
	}
}
