package redemption

import (
	"context"
	"time"

	"github.com/jackyeh168/loyalty_engine/src/internal/application/ledger"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/points"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/redemption"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/reward"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/tenant"
)

// ===========================
// 協作者介面
// ===========================

// Ledger 積分帳本（application/ledger.Service）
type Ledger interface {
	CurrentBalance(ctx context.Context, t tenant.Tenant, customerID points.CustomerID) (int, error)
	ReserveAndDebit(ctx context.Context, t tenant.Tenant, customerID points.CustomerID, amount int, reason points.ReasonCode, correlationID points.CorrelationID) (*ledger.Result, error)
	Credit(ctx context.Context, t tenant.Tenant, customerID points.CustomerID, amount int, reason points.ReasonCode, correlationID points.CorrelationID) (*ledger.Result, error)
	FindEntry(ctx context.Context, t tenant.Tenant, customerID points.CustomerID, correlationID points.CorrelationID) (*points.LedgerEntry, error)
}

// Inventory 獎勵庫存（application/inventory.Tracker）
type Inventory interface {
	Decrement(ctx context.Context, t tenant.Tenant, rewardID reward.RewardID, by int, correlationID string) error
	Restore(ctx context.Context, t tenant.Tenant, rewardID reward.RewardID, by int, correlationID string) error
	Adjusted(ctx context.Context, t tenant.Tenant, rewardID reward.RewardID, correlationID string) (bool, error)
}

// Metrics 兌換流程的觀測點（infrastructure/metrics 實作）
type Metrics interface {
	RedemptionFinished(state redemption.State)
	CompensationFailed()
	PaymentCall(operation string, err error, elapsed time.Duration)
	SweepCompleted(examined, failed int, elapsed time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) RedemptionFinished(redemption.State) {}
func (noopMetrics) CompensationFailed() {}
func (noopMetrics) PaymentCall(string, error, time.Duration) {}
func (noopMetrics) SweepCompleted(int, int, time.Duration) {}
