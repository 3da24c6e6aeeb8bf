package redemption

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackyeh168/loyalty_engine/src/internal/domain/redemption"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/shared"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/tenant"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultStaleAfter       = 5 * time.Minute
	DefaultSweepConcurrency = 4
	DefaultSweepBatchSize   = 100
	DefaultSweepSchedule    = "@every 1m"
)

// TenantLister 列出啟用中的租戶（persistence/tenant.Registry）
type TenantLister interface {
	ListActive(ctx context.Context) ([]tenant.Record, error)
}

// SweeperOptions 清理排程選項
type SweeperOptions struct {
	StaleAfter  time.Duration
	Concurrency int
	BatchSize   int
	Logger      *slog.Logger
	Metrics     Metrics
	// Now 測試用時鐘
	Now func() time.Time
}

// SweepReport 單次清理結果
type SweepReport struct {
	Examined  int
	Recovered int
	Failed    int
}

// ===========================
// Sweeper
// ===========================

// Sweeper 收尾停滯或補償待處理的兌換
//
// 逐租戶查詢：未到終態且 updated_at 早於 now - StaleAfter，或 compensation_pending。
// 每筆交給 Coordinator.Recover；並行度以 errgroup.SetLimit 限制。
// 單筆失敗不會中斷整批，下一輪再試。
type Sweeper struct {
	coordinator *Coordinator
	redemptions redemption.RedemptionRepository
	txManager   shared.TransactionManager
	tenants     TenantLister
	resolver    *tenant.Resolver
	opts        SweeperOptions

	mu   sync.Mutex
	cron *cron.Cron
}

// NewSweeper 創建清理排程
func NewSweeper(
	coordinator *Coordinator,
	redemptions redemption.RedemptionRepository,
	txManager shared.TransactionManager,
	tenants TenantLister,
	resolver *tenant.Resolver,
	opts SweeperOptions,
) *Sweeper {
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = DefaultStaleAfter
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultSweepConcurrency
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultSweepBatchSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = noopMetrics{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Sweeper{
		coordinator: coordinator,
		redemptions: redemptions,
		txManager:   txManager,
		tenants:     tenants,
		resolver:    resolver,
		opts:        opts,
	}
}

// SweepOnce 對所有啟用中的租戶執行一輪清理
func (s *Sweeper) SweepOnce(ctx context.Context) (SweepReport, error) {
	start := time.Now()
	var report SweepReport

	records, err := s.tenants.ListActive(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list tenants: %w", err)
	}

	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		t, err := s.resolver.Resolve(ctx, record.ID.String())
		if err != nil {
			s.opts.Logger.Warn("skipping tenant during sweep", "tenant_id", record.ID.String(), "error", err)
			continue
		}
		tenantReport, err := s.SweepTenant(ctx, t)
		report.Examined += tenantReport.Examined
		report.Recovered += tenantReport.Recovered
		report.Failed += tenantReport.Failed
		if err != nil {
			return report, err
		}
	}

	s.opts.Metrics.SweepCompleted(report.Examined, report.Failed, time.Since(start))
	if report.Examined > 0 {
		s.opts.Logger.Info("sweep completed",
			"examined", report.Examined,
			"recovered", report.Recovered,
			"failed", report.Failed,
			"elapsed", time.Since(start),
		)
	}
	return report, nil
}

// SweepTenant 清理單一租戶
func (s *Sweeper) SweepTenant(ctx context.Context, t tenant.Tenant) (SweepReport, error) {
	var report SweepReport

	staleBefore := s.opts.Now().UTC().Add(-s.opts.StaleAfter)
	var stalled []*redemption.Redemption
	err := s.txManager.InTransaction(ctx, func(tx shared.TransactionContext) error {
		var err error
		stalled, err = s.redemptions.FindNeedingAttention(tx, t, staleBefore, s.opts.BatchSize)
		return err
	})
	if err != nil {
		return report, fmt.Errorf("failed to find stalled redemptions: %w", err)
	}
	report.Examined = len(stalled)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for _, rd := range stalled {
		id := rd.ID()
		g.Go(func() error {
			result, err := s.coordinator.Recover(gctx, t, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed++
				s.opts.Logger.Error("failed to recover redemption",
					"tenant_id", t.String(),
					"redemption_id", id.String(),
					"error", err,
				)
				return nil
			}
			report.Recovered++
			s.opts.Logger.Debug("redemption recovered",
				"tenant_id", t.String(),
				"redemption_id", id.String(),
				"state", result.State.String(),
			)
			return nil
		})
	}
	return report, g.Wait()
}

// Start 依 cron 表達式排程（例如 "@every 1m"）
func (s *Sweeper) Start(schedule string) error {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return fmt.Errorf("sweeper already started")
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(schedule, func() {
		if _, err := s.SweepOnce(context.Background()); err != nil {
			s.opts.Logger.Error("sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	c.Start()
	s.cron = c
	s.opts.Logger.Info("sweeper started", "schedule", schedule, "stale_after", s.opts.StaleAfter)
	return nil
}

// Stop 停止排程並等待執行中的清理結束
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c == nil {
		return nil
	}

	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
