package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackyeh168/loyalty_engine/src/internal/domain/points"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/shared"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/tenant"
)

// ===========================
// Points Ledger Service
// ===========================

const (
	// DefaultHistoryLimit History 未指定筆數時的預設值
	DefaultHistoryLimit = 50
	// MaxHistoryLimit History 單次查詢上限
	MaxHistoryLimit = 500

	reconcilePageSize = 200
)

// Result 一次入帳或扣帳的結果
//
// Duplicate = true 表示關聯 ID 已經用過：Entry 是先前那筆分錄，Balance 是目前餘額，
// 這次呼叫沒有產生任何變更。
type Result struct {
	Entry     *points.LedgerEntry
	Balance   int
	Duplicate bool
}

// Options Service 選項
type Options struct {
	// MaxAttempts 條件更新輸掉競爭時的最大嘗試次數（預設 shared.DefaultMaxAttempts）
	MaxAttempts int
	// Publisher 事務提交後發布 PointsCredited / PointsDebited 事件（可為 nil）
	Publisher shared.EventPublisher
	Logger    *slog.Logger
}

// Service 積分帳本
//
// 職責：
// 1. 每次變更在單一事務內完成：重複檢查 → 載入或建立餘額 → 領域運算 → 寫入分錄 → 條件更新
// 2. 版本衝突時以 shared.RetryOnConflict 有限次數重試
// 3. 以關聯 ID 保證冪等：相同關聯 ID 只會產生一筆分錄
//
// 並發安全：
// - 不使用行鎖或全域鎖，依賴 version 條件更新與分錄唯一鍵
// - 同一顧客的兩個並發扣帳最多只有一個成功寫入同一版本
type Service struct {
	repo        points.LedgerRepository
	txManager   shared.TransactionManager
	publisher   shared.EventPublisher
	logger      *slog.Logger
	maxAttempts int
}

// NewService 創建積分帳本
func NewService(repo points.LedgerRepository, txManager shared.TransactionManager, opts Options) *Service {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = shared.DefaultMaxAttempts
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		repo:        repo,
		txManager:   txManager,
		publisher:   opts.Publisher,
		logger:      opts.Logger,
		maxAttempts: opts.MaxAttempts,
	}
}

// Credit 入帳 amount 點
//
// 錯誤處理：
// - ErrInvalidPointsAmount: amount <= 0
// - ErrCorrelationConflict: 關聯 ID 已被扣帳使用
// - shared.ErrConcurrentModification: 重試次數用盡（暫時性錯誤）
func (s *Service) Credit(
	ctx context.Context,
	t tenant.Tenant,
	customerID points.CustomerID,
	amount int,
	reason points.ReasonCode,
	correlationID points.CorrelationID,
) (*Result, error) {
	result, err := s.mutate(ctx, t, customerID, amount, reason, correlationID, false)
	if err != nil {
		return nil, fmt.Errorf("failed to credit points: %w", err)
	}
	return result, nil
}

// ReserveAndDebit 扣帳 amount 點
//
// 餘額不足時返回 ErrInsufficientPoints，且不產生任何變更。
func (s *Service) ReserveAndDebit(
	ctx context.Context,
	t tenant.Tenant,
	customerID points.CustomerID,
	amount int,
	reason points.ReasonCode,
	correlationID points.CorrelationID,
) (*Result, error) {
	result, err := s.mutate(ctx, t, customerID, amount, reason, correlationID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to debit points: %w", err)
	}
	return result, nil
}

// CurrentBalance 目前餘額；沒有任何分錄的顧客為 0
func (s *Service) CurrentBalance(ctx context.Context, t tenant.Tenant, customerID points.CustomerID) (int, error) {
	var balance int
	err := s.txManager.InTransaction(ctx, func(tx shared.TransactionContext) error {
		var err error
		balance, err = s.balanceOf(tx, t, customerID)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to read balance: %w", err)
	}
	return balance, nil
}

// History 最近的分錄（新到舊）
func (s *Service) History(ctx context.Context, t tenant.Tenant, customerID points.CustomerID, limit int) ([]*points.LedgerEntry, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	var entries []*points.LedgerEntry
	err := s.txManager.InTransaction(ctx, func(tx shared.TransactionContext) error {
		var err error
		entries, err = s.repo.ListEntries(tx, t, customerID, limit)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	return entries, nil
}

// FindEntry 以關聯 ID 查詢分錄
//
// 返回：ErrEntryNotFound
func (s *Service) FindEntry(ctx context.Context, t tenant.Tenant, customerID points.CustomerID, correlationID points.CorrelationID) (*points.LedgerEntry, error) {
	var entry *points.LedgerEntry
	err := s.txManager.InTransaction(ctx, func(tx shared.TransactionContext) error {
		var err error
		entry, err = s.repo.FindEntryByCorrelation(tx, t, customerID, correlationID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find entry: %w", err)
	}
	return entry, nil
}

// ===========================
// 對帳
// ===========================

// Reconciliation 單一顧客的對帳結果
type Reconciliation struct {
	CustomerID points.CustomerID
	Balance    int
	EntrySum   int64
	EntryCount int64
}

// Consistent 餘額是否等於分錄總和
func (r Reconciliation) Consistent() bool {
	return int64(r.Balance) == r.EntrySum
}

// Reconcile 以分錄重算餘額
//
// 不一致時返回 ErrInvariantViolation（附帶兩邊的數值）。
func (s *Service) Reconcile(ctx context.Context, t tenant.Tenant, customerID points.CustomerID) (*Reconciliation, error) {
	var report *Reconciliation
	err := s.txManager.InTransaction(ctx, func(tx shared.TransactionContext) error {
		balance, err := s.balanceOf(tx, t, customerID)
		if err != nil {
			return err
		}
		report, err = s.reconcileOne(tx, t, customerID, balance)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reconcile balance: %w", err)
	}
	if !report.Consistent() {
		return report, violation(t, *report)
	}
	return report, nil
}

// TenantReconciliation 租戶對帳報告
type TenantReconciliation struct {
	Checked    int
	Violations []Reconciliation
}

// ReconcileTenant 逐頁檢查租戶下所有餘額
//
// 任一顧客不一致時返回報告與 ErrInvariantViolation。
func (s *Service) ReconcileTenant(ctx context.Context, t tenant.Tenant) (*TenantReconciliation, error) {
	report := &TenantReconciliation{}
	after := ""
	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		var page []*points.CustomerBalance
		var checked []Reconciliation
		err := s.txManager.InTransaction(ctx, func(tx shared.TransactionContext) error {
			var err error
			page, err = s.repo.ListBalances(tx, t, after, reconcilePageSize)
			if err != nil {
				return err
			}
			checked = make([]Reconciliation, 0, len(page))
			for _, balance := range page {
				one, err := s.reconcileOne(tx, t, balance.CustomerID(), balance.Balance().Value())
				if err != nil {
					return err
				}
				checked = append(checked, *one)
			}
			return nil
		})
		if err != nil {
			return report, fmt.Errorf("failed to reconcile tenant %s: %w", t, err)
		}

		for _, one := range checked {
			report.Checked++
			if !one.Consistent() {
				report.Violations = append(report.Violations, one)
				s.logger.Error("ledger invariant violated",
					"tenant_id", t.String(),
					"customer_id", one.CustomerID.String(),
					"balance", one.Balance,
					"entry_sum", one.EntrySum,
				)
			}
		}
		if len(page) < reconcilePageSize {
			break
		}
		after = page[len(page)-1].CustomerID().String()
	}

	if len(report.Violations) > 0 {
		return report, violation(t, report.Violations[0])
	}
	return report, nil
}

// ===========================
// 私有方法
// ===========================

func (s *Service) mutate(
	ctx context.Context,
	t tenant.Tenant,
	customerID points.CustomerID,
	amount int,
	reason points.ReasonCode,
	correlationID points.CorrelationID,
	debit bool,
) (*Result, error) {
	if t.IsZero() {
		return nil, tenant.ErrMissingTenant
	}
	value, err := points.NewPositivePointsAmount(amount)
	if err != nil {
		return nil, err
	}
	if correlationID.IsEmpty() {
		return nil, points.ErrInvalidCorrelationID.WithContext("reason", "correlation id is empty")
	}

	var result *Result
	var events []shared.DomainEvent
	err = shared.RetryOnConflict(ctx, s.maxAttempts, func() error {
		result, events = nil, nil
		return s.txManager.InTransaction(ctx, func(tx shared.TransactionContext) error {
			// 1. 關聯 ID 已使用 → 返回先前結果
			prior, err := s.repo.FindEntryByCorrelation(tx, t, customerID, correlationID)
			if err == nil {
				if prior.IsDebit() != debit {
					return points.ErrCorrelationConflict.WithContext(
						"customer_id", customerID.String(),
						"correlation_id", correlationID.String(),
						"prior_delta", prior.Delta(),
					)
				}
				balance, err := s.balanceOf(tx, t, customerID)
				if err != nil {
					return err
				}
				result = &Result{Entry: prior, Balance: balance, Duplicate: true}
				return nil
			}
			if !errors.Is(err, points.ErrEntryNotFound) {
				return err
			}

			// 2. 載入或建立餘額
			balance, isNew, err := s.loadOrCreate(tx, t, customerID)
			if err != nil {
				return err
			}

			// 3. 領域運算
			var entry *points.LedgerEntry
			if debit {
				entry, err = balance.Debit(value, reason, correlationID)
			} else {
				entry, err = balance.Credit(value, reason, correlationID)
			}
			if err != nil {
				return err
			}

			// 4. 寫入分錄（唯一鍵衝突 → ErrConcurrentModification → 重試時走重複路徑）
			if err := s.repo.AppendEntry(tx, t, entry); err != nil {
				return err
			}

			// 5. 條件更新餘額
			if isNew {
				err = s.repo.InsertBalance(tx, t, balance)
			} else {
				err = s.repo.UpdateBalance(tx, t, balance)
			}
			if err != nil {
				return err
			}

			result = &Result{Entry: entry, Balance: balance.Balance().Value()}
			events = balance.PullEvents()
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.publish(events)
	return result, nil
}

func (s *Service) loadOrCreate(tx shared.TransactionContext, t tenant.Tenant, customerID points.CustomerID) (*points.CustomerBalance, bool, error) {
	balance, err := s.repo.FindBalance(tx, t, customerID)
	if err == nil {
		return balance, false, nil
	}
	if !errors.Is(err, points.ErrBalanceNotFound) {
		return nil, false, err
	}
	balance, err = points.NewCustomerBalance(t, customerID)
	if err != nil {
		return nil, false, err
	}
	return balance, true, nil
}

func (s *Service) balanceOf(tx shared.TransactionContext, t tenant.Tenant, customerID points.CustomerID) (int, error) {
	balance, err := s.repo.FindBalance(tx, t, customerID)
	if err != nil {
		if errors.Is(err, points.ErrBalanceNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return balance.Balance().Value(), nil
}

func (s *Service) reconcileOne(tx shared.TransactionContext, t tenant.Tenant, customerID points.CustomerID, balance int) (*Reconciliation, error) {
	sum, count, err := s.repo.SumEntries(tx, t, customerID)
	if err != nil {
		return nil, err
	}
	return &Reconciliation{
		CustomerID: customerID,
		Balance:    balance,
		EntrySum:   sum,
		EntryCount: count,
	}, nil
}

func (s *Service) publish(events []shared.DomainEvent) {
	if s.publisher == nil {
		return
	}
	for _, event := range events {
		if err := s.publisher.Publish(event); err != nil {
			s.logger.Warn("failed to publish ledger event",
				"event_type", event.EventType(),
				"aggregate_id", event.AggregateID(),
				"error", err,
			)
		}
	}
}

func violation(t tenant.Tenant, r Reconciliation) error {
	return points.ErrInvariantViolation.WithContext(
		"tenant_id", t.String(),
		"customer_id", r.CustomerID.String(),
		"balance", r.Balance,
		"entry_sum", r.EntrySum,
	)
}
