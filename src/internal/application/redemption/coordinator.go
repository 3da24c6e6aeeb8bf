package redemption

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jackyeh168/loyalty_engine/src/internal/domain/payment"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/points"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/redemption"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/reward"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/shared"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/tenant"
	"golang.org/x/sync/singleflight"
)

// DefaultPaymentTimeout 單次支付閘道呼叫的等待上限
const DefaultPaymentTimeout = 10 * time.Second

// Options Coordinator 選項
type Options struct {
	PaymentTimeout time.Duration
	Logger         *slog.Logger
	Metrics        Metrics
	// Publisher 狀態變更事件（可為 nil）
	Publisher shared.EventPublisher
}

// RedeemCommand 兌換請求
type RedeemCommand struct {
	CustomerID     string
	RewardID       string
	IdempotencyKey string
}

// RedeemResult 兌換結果
//
// 業務失敗（餘額不足、售完、支付失敗）不是錯誤：State / Failure / Reason 描述結果。
type RedeemResult struct {
	RedemptionID        string
	State               redemption.State
	Failure             redemption.State
	Reason              string
	PaymentClientToken  string
	PointsCost          int
	CompensationPending bool
}

func resultOf(rd *redemption.Redemption) *RedeemResult {
	return &RedeemResult{
		RedemptionID:        rd.ID().String(),
		State:               rd.State(),
		Failure:             rd.Failure(),
		Reason:              rd.FailureReason(),
		PaymentClientToken:  rd.PaymentClientToken(),
		PointsCost:          rd.PointsCost(),
		CompensationPending: rd.CompensationPending(),
	}
}

// ===========================
// Redemption Coordinator
// ===========================

// Coordinator 兌換 saga 協調者
//
// 步驟：REQUESTED → BALANCE_CHECKED → POINTS_RESERVED → PAYMENT_AUTHORIZED（有價格時）
// → INVENTORY_DECREMENTED → COMPLETED。每一步完成後立即持久化；
// 支付呼叫在預留事務提交之後、任何資料庫事務之外進行。
//
// 補償（反向順序、皆以關聯 ID 冪等）：回補庫存 → 作廢授權 → 退還積分。
// 補償失敗時兌換保留 FAILED_* 並標記 compensation_pending，由 Sweeper 接手。
type Coordinator struct {
	redemptions    redemption.RedemptionRepository
	rewards        reward.RewardRepository
	ledger         Ledger
	inventory      Inventory
	gateway        payment.Gateway
	txManager      shared.TransactionManager
	publisher      shared.EventPublisher
	logger         *slog.Logger
	metrics        Metrics
	paymentTimeout time.Duration

	inflight singleflight.Group
	mu       sync.Mutex
	flights  map[string]*flight
}

// flight 同一冪等鍵合併執行時共用的 context：所有等待者都離開才取消
type flight struct {
	ctx    context.Context
	cancel context.CancelFunc
	live   int
	refs   int
}

// NewCoordinator 創建兌換協調者
func NewCoordinator(
	redemptions redemption.RedemptionRepository,
	rewards reward.RewardRepository,
	ledger Ledger,
	inventory Inventory,
	gateway payment.Gateway,
	txManager shared.TransactionManager,
	opts Options,
) *Coordinator {
	if opts.PaymentTimeout <= 0 {
		opts.PaymentTimeout = DefaultPaymentTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = noopMetrics{}
	}
	return &Coordinator{
		redemptions:    redemptions,
		rewards:        rewards,
		ledger:         ledger,
		inventory:      inventory,
		gateway:        gateway,
		txManager:      txManager,
		publisher:      opts.Publisher,
		logger:         opts.Logger,
		metrics:        opts.Metrics,
		paymentTimeout: opts.PaymentTimeout,
		flights:        make(map[string]*flight),
	}
}

// Redeem 兌換獎勵
//
// 冪等：同一 (tenant, idempotency key) 的重複請求返回既有兌換，不會啟動新的 saga；
// 同一行程內的並發重複請求合併為一次執行；合併後的 saga 只有在所有等待者都取消時才視為取消。
//
// 錯誤處理：
// - ErrInvalidCustomerID / ErrInvalidRewardID / ErrInvalidIdempotencyKey: 輸入無效
// - ErrRewardNotFound: 獎勵不存在
// - 其他錯誤：基礎設施錯誤，兌換停在目前狀態，由 Sweeper 收尾
func (c *Coordinator) Redeem(ctx context.Context, t tenant.Tenant, cmd RedeemCommand) (*RedeemResult, error) {
	if t.IsZero() {
		return nil, tenant.ErrMissingTenant
	}
	customerID, err := points.CustomerIDFromString(cmd.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("failed to parse customer ID: %w", err)
	}
	rewardID, err := reward.RewardIDFromString(cmd.RewardID)
	if err != nil {
		return nil, fmt.Errorf("failed to parse reward ID: %w", err)
	}
	key := strings.TrimSpace(cmd.IdempotencyKey)
	if key == "" || len(key) > redemption.MaxIdempotencyKeyLength {
		return nil, redemption.ErrInvalidIdempotencyKey.WithContext("input", cmd.IdempotencyKey)
	}

	flightKey := t.ID().String() + "\x00" + key
	sagaCtx, leave := c.join(ctx, flightKey)
	defer leave()

	v, err, _ := c.inflight.Do(flightKey, func() (interface{}, error) {
		return c.redeem(sagaCtx, t, customerID, rewardID, key)
	})
	if err != nil {
		return nil, err
	}
	result := *v.(*RedeemResult)
	return &result, nil
}

// join 登記一個等待者並返回共用的 context
func (c *Coordinator) join(ctx context.Context, key string) (context.Context, func()) {
	c.mu.Lock()
	f, ok := c.flights[key]
	if !ok || f.ctx.Err() != nil {
		f = &flight{}
		f.ctx, f.cancel = context.WithCancel(context.WithoutCancel(ctx))
		c.flights[key] = f
	}
	f.refs++
	f.live++
	c.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		f.live--
		if f.live == 0 {
			f.cancel()
		}
	})

	return f.ctx, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if stop() {
			f.live--
		}
		f.refs--
		if f.refs == 0 {
			f.cancel()
			if c.flights[key] == f {
				delete(c.flights, key)
			}
		}
	}
}

// Get 查詢兌換
func (c *Coordinator) Get(ctx context.Context, t tenant.Tenant, rawID string) (*RedeemResult, error) {
	id, err := redemption.RedemptionIDFromString(rawID)
	if err != nil {
		return nil, err
	}
	rd, err := c.load(ctx, t, id)
	if err != nil {
		return nil, err
	}
	return resultOf(rd), nil
}

// Cancel 取消兌換
//
// - REQUESTED / BALANCE_CHECKED → CANCELLED
// - 已預留且未結束 → 補償 → ROLLED_BACK
// - 終態 → ErrRedemptionTerminal
func (c *Coordinator) Cancel(ctx context.Context, t tenant.Tenant, rawID string) (*RedeemResult, error) {
	id, err := redemption.RedemptionIDFromString(rawID)
	if err != nil {
		return nil, err
	}
	rd, err := c.load(ctx, t, id)
	if err != nil {
		return nil, err
	}

	const reason = "cancelled by request"
	switch {
	case rd.IsTerminal():
		return nil, redemption.ErrRedemptionTerminal.WithContext(
			"redemption_id", rd.ID().String(),
			"state", rd.State().String(),
		)
	case !rd.PointsReserved():
		if err := c.cancel(ctx, t, rd, reason); err != nil {
			return nil, err
		}
	case rd.PaymentCaptured():
		return nil, redemption.ErrInvalidTransition.WithContext(
			"redemption_id", rd.ID().String(),
			"reason", "payment already captured",
		)
	default:
		if err := c.compensate(ctx, t, rd, reason); err != nil {
			return nil, err
		}
	}
	return resultOf(rd), nil
}

// Recover 強制收尾一筆停滯或補償待處理的兌換（Sweeper 使用）
//
// 只推進能確認的步驟：查帳本確認扣帳是否生效、查庫存異動確認扣減是否生效，
// 其餘一律補償；所有補償都以關聯 ID 冪等，重複執行沒有副作用。
func (c *Coordinator) Recover(ctx context.Context, t tenant.Tenant, id redemption.RedemptionID) (*RedeemResult, error) {
	rd, err := c.load(ctx, t, id)
	if err != nil {
		return nil, err
	}

	const reason = "recovered after stalling"
	switch {
	case rd.IsTerminal():
		if rd.CompensationPending() {
			err = c.compensate(ctx, t, rd, reason)
		}
	case rd.State() == redemption.StateRequested:
		err = c.cancel(ctx, t, rd, "abandoned before balance check")
	case rd.State() == redemption.StateBalanceChecked:
		err = c.recoverReservation(ctx, t, rd)
	case rd.State() == redemption.StateInventoryDecremented && (rd.Price().IsZero() || rd.PaymentCaptured()):
		err = c.complete(ctx, t, rd)
	default:
		err = c.recoverAndRollback(ctx, t, rd)
	}
	if err != nil {
		return nil, err
	}
	return resultOf(rd), nil
}

// ===========================
// Saga 步驟
// ===========================

func (c *Coordinator) redeem(ctx context.Context, t tenant.Tenant, customerID points.CustomerID, rewardID reward.RewardID, key string) (*RedeemResult, error) {
	rd, rw, err := c.begin(ctx, t, customerID, rewardID, key)
	if err != nil {
		return nil, err
	}
	if rw == nil {
		// 既有兌換：原樣返回
		return resultOf(rd), nil
	}

	if err := c.run(ctx, t, rd, rw); err != nil {
		if errors.Is(err, shared.ErrConcurrentModification) {
			stored, resolved := c.resolveConflict(ctx, t, rd)
			if resolved {
				return resultOf(stored), nil
			}
		}
		c.logger.Error("redemption stalled",
			"tenant_id", t.String(),
			"redemption_id", rd.ID().String(),
			"state", rd.State().String(),
			"error", err,
		)
		return nil, err
	}
	return resultOf(rd), nil
}

// begin 冪等檢查 + 建立 REQUESTED；返回的 reward 為 nil 表示兌換已存在
func (c *Coordinator) begin(ctx context.Context, t tenant.Tenant, customerID points.CustomerID, rewardID reward.RewardID, key string) (*redemption.Redemption, *reward.Reward, error) {
	var rd *redemption.Redemption
	var rw *reward.Reward
	err := c.txManager.InTransaction(ctx, func(tx shared.TransactionContext) error {
		existing, err := c.redemptions.FindByIdempotencyKey(tx, t, key)
		if err == nil {
			rd = existing
			return nil
		}
		if !errors.Is(err, redemption.ErrRedemptionNotFound) {
			return err
		}

		rw, err = c.rewards.FindByID(tx, t, rewardID)
		if err != nil {
			return err
		}
		rd, err = redemption.NewRedemption(t, customerID, rewardID, key)
		if err != nil {
			return err
		}
		if err := rd.SnapshotReward(rw.PointsCost(), rw.Price()); err != nil {
			return err
		}
		return c.redemptions.Insert(tx, t, rd)
	})

	if errors.Is(err, redemption.ErrRedemptionAlreadyExists) {
		// 另一個行程先寫入了相同冪等鍵
		var existing *redemption.Redemption
		findErr := c.txManager.InTransaction(ctx, func(tx shared.TransactionContext) error {
			var err error
			existing, err = c.redemptions.FindByIdempotencyKey(tx, t, key)
			return err
		})
		if findErr != nil {
			return nil, nil, fmt.Errorf("failed to load concurrent redemption: %w", findErr)
		}
		return existing, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start redemption: %w", err)
	}
	if rw != nil {
		c.publish(rd)
	}
	return rd, rw, nil
}

func (c *Coordinator) run(ctx context.Context, t tenant.Tenant, rd *redemption.Redemption, rw *reward.Reward) error {
	// 1. 餘額檢查；售完的獎勵不做任何變更
	if err := ctx.Err(); err != nil {
		return c.cancel(ctx, t, rd, "request cancelled: "+err.Error())
	}
	balance, err := c.ledger.CurrentBalance(ctx, t, rd.CustomerID())
	if err != nil {
		return err
	}
	if balance < rd.PointsCost() {
		return c.fail(ctx, t, rd, redemption.StateFailedInsufficientBalance,
			fmt.Sprintf("balance %d is below cost %d", balance, rd.PointsCost()))
	}
	if !rw.InStock() {
		return c.fail(ctx, t, rd, redemption.StateFailedOutOfStock, "reward is sold out")
	}
	if err := rd.MarkBalanceChecked(); err != nil {
		return err
	}
	if err := c.save(ctx, t, rd); err != nil {
		return err
	}

	// 2. 預留積分（事務在支付之前提交）
	if err := ctx.Err(); err != nil {
		return c.cancel(ctx, t, rd, "request cancelled: "+err.Error())
	}
	correlationID, err := points.NewCorrelationID(rd.CorrelationID())
	if err != nil {
		return err
	}
	if _, err := c.ledger.ReserveAndDebit(ctx, t, rd.CustomerID(), rd.PointsCost(), points.ReasonRedemption, correlationID); err != nil {
		if errors.Is(err, points.ErrInsufficientPoints) {
			return c.fail(ctx, t, rd, redemption.StateFailedInsufficientBalance, "balance changed before reservation")
		}
		return err
	}
	if err := rd.MarkPointsReserved(); err != nil {
		return err
	}
	if err := c.save(ctx, t, rd); err != nil {
		return err
	}

	// 3. 支付授權
	if !rd.Price().IsZero() {
		if err := ctx.Err(); err != nil {
			return c.compensate(ctx, t, rd, "request cancelled: "+err.Error())
		}
		auth, err := c.authorize(ctx, t, rd)
		if err != nil {
			return c.failAndCompensate(ctx, t, rd, redemption.StateFailedPayment, "payment authorization failed: "+err.Error())
		}
		if err := rd.MarkPaymentAuthorized(auth.Handle, auth.ClientToken); err != nil {
			return err
		}
		if err := c.save(ctx, t, rd); err != nil {
			return err
		}
	}

	// 4. 扣減庫存
	if err := ctx.Err(); err != nil {
		return c.compensate(ctx, t, rd, "request cancelled: "+err.Error())
	}
	if err := c.inventory.Decrement(ctx, t, rd.RewardID(), 1, rd.CorrelationID()); err != nil {
		if errors.Is(err, reward.ErrOutOfStock) {
			return c.failAndCompensate(ctx, t, rd, redemption.StateFailedOutOfStock, "reward sold out during redemption")
		}
		if ctx.Err() != nil {
			return c.compensate(ctx, t, rd, "request cancelled: "+ctx.Err().Error())
		}
		return err
	}
	if err := rd.MarkInventoryDecremented(); err != nil {
		return err
	}
	if err := c.save(ctx, t, rd); err != nil {
		return err
	}

	// 5. 請款（失敗與授權失敗同樣處理）
	if !rd.Price().IsZero() {
		if err := c.capture(ctx, rd); err != nil {
			return c.failAndCompensate(ctx, t, rd, redemption.StateFailedPayment, "payment capture failed: "+err.Error())
		}
		rd.MarkPaymentCaptured()
		if err := c.save(ctx, t, rd); err != nil {
			return err
		}
	}

	// 6. 完成
	return c.complete(ctx, t, rd)
}

func (c *Coordinator) complete(ctx context.Context, t tenant.Tenant, rd *redemption.Redemption) error {
	if err := rd.Complete(); err != nil {
		return err
	}
	if err := c.save(ctx, t, rd); err != nil {
		return err
	}
	c.metrics.RedemptionFinished(rd.State())
	return nil
}

// fail 沒有任何步驟生效時的失敗（不需補償）
func (c *Coordinator) fail(ctx context.Context, t tenant.Tenant, rd *redemption.Redemption, failure redemption.State, reason string) error {
	if err := rd.Fail(failure, reason); err != nil {
		return err
	}
	if err := c.save(ctx, t, rd); err != nil {
		return err
	}
	c.metrics.RedemptionFinished(rd.State())
	c.logger.Info("redemption failed",
		"tenant_id", t.String(),
		"redemption_id", rd.ID().String(),
		"state", rd.State().String(),
		"reason", reason,
	)
	return nil
}

func (c *Coordinator) cancel(ctx context.Context, t tenant.Tenant, rd *redemption.Redemption, reason string) error {
	if err := rd.Cancel(reason); err != nil {
		return err
	}
	if err := c.save(ctx, t, rd); err != nil {
		return err
	}
	c.metrics.RedemptionFinished(rd.State())
	return nil
}

func (c *Coordinator) failAndCompensate(ctx context.Context, t tenant.Tenant, rd *redemption.Redemption, failure redemption.State, reason string) error {
	if err := rd.Fail(failure, reason); err != nil {
		return err
	}
	if err := c.save(ctx, t, rd); err != nil {
		return err
	}
	return c.compensate(ctx, t, rd, reason)
}

// compensate 撤銷已生效的步驟
//
// 全部成功 → ROLLED_BACK；任一失敗 → 保留目前狀態並標記 compensation_pending。
// 不受呼叫端取消影響。
func (c *Coordinator) compensate(ctx context.Context, t tenant.Tenant, rd *redemption.Redemption, reason string) error {
	ctx = context.WithoutCancel(ctx)

	var errs []error
	if rd.InventoryDecremented() {
		if err := c.inventory.Restore(ctx, t, rd.RewardID(), 1, rd.RestoreCorrelationID()); err != nil {
			errs = append(errs, err)
		}
	}
	if rd.PaymentHandle() != "" {
		if err := c.void(ctx, rd); err != nil {
			errs = append(errs, err)
		}
	}
	if rd.PointsReserved() {
		if err := c.refund(ctx, t, rd); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		cause := errors.Join(errs...)
		rd.FlagCompensationPending("compensation failed: " + cause.Error())
		c.metrics.CompensationFailed()
		c.logger.Error("redemption compensation failed",
			"tenant_id", t.String(),
			"redemption_id", rd.ID().String(),
			"state", rd.State().String(),
			"error", cause,
		)
		return c.save(ctx, t, rd)
	}

	if rd.PointsReserved() {
		if err := rd.MarkRolledBack(reason); err != nil {
			return err
		}
	}
	if err := c.save(ctx, t, rd); err != nil {
		return err
	}
	c.metrics.RedemptionFinished(rd.State())
	c.logger.Info("redemption rolled back",
		"tenant_id", t.String(),
		"redemption_id", rd.ID().String(),
		"failure", rd.Failure().String(),
		"reason", rd.FailureReason(),
	)
	return nil
}

func (c *Coordinator) refund(ctx context.Context, t tenant.Tenant, rd *redemption.Redemption) error {
	correlationID, err := points.NewCorrelationID(rd.RollbackCorrelationID())
	if err != nil {
		return err
	}
	_, err = c.ledger.Credit(ctx, t, rd.CustomerID(), rd.PointsCost(), points.ReasonRedemptionRollback, correlationID)
	return err
}

// resolveConflict saga 寫入輸給其他寫入者（取消或 Sweeper）時，撤銷本地已生效、
// 但對方看不到的步驟。
//
// 對方已結束兌換（非 COMPLETED 終態）或已標記 compensation_pending 時才撤銷，
// 返回 true 與已儲存的兌換；否則兌換仍屬於這個 saga，交給 Sweeper 收尾。
// 撤銷以與補償相同的關聯 ID 進行，與對方的補償重疊也只生效一次。
func (c *Coordinator) resolveConflict(ctx context.Context, t tenant.Tenant, rd *redemption.Redemption) (*redemption.Redemption, bool) {
	ctx = context.WithoutCancel(ctx)

	stored, err := c.load(ctx, t, rd.ID())
	if err != nil {
		c.logger.Error("failed to reload redemption after conflict",
			"tenant_id", t.String(),
			"redemption_id", rd.ID().String(),
			"error", err,
		)
		return nil, false
	}
	if stored.State() == redemption.StateCompleted || (!stored.IsTerminal() && !stored.CompensationPending()) {
		return nil, false
	}

	var errs []error
	if rd.InventoryDecremented() {
		if err := c.inventory.Restore(ctx, t, rd.RewardID(), 1, rd.RestoreCorrelationID()); err != nil {
			errs = append(errs, err)
		}
	}
	if rd.PaymentHandle() != "" {
		if err := c.void(ctx, rd); err != nil {
			errs = append(errs, err)
		}
	}
	if rd.PointsReserved() {
		if err := c.refund(ctx, t, rd); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		c.metrics.CompensationFailed()
		c.logger.Error("failed to undo steps of a superseded redemption",
			"tenant_id", t.String(),
			"redemption_id", rd.ID().String(),
			"state", stored.State().String(),
			"error", errors.Join(errs...),
		)
		return stored, true
	}
	c.logger.Info("redemption superseded by another writer",
		"tenant_id", t.String(),
		"redemption_id", rd.ID().String(),
		"state", stored.State().String(),
	)
	return stored, true
}

// recoverReservation BALANCE_CHECKED 停滯：扣帳是否已生效決定補償或取消
func (c *Coordinator) recoverReservation(ctx context.Context, t tenant.Tenant, rd *redemption.Redemption) error {
	correlationID, err := points.NewCorrelationID(rd.CorrelationID())
	if err != nil {
		return err
	}
	_, err = c.ledger.FindEntry(ctx, t, rd.CustomerID(), correlationID)
	if errors.Is(err, points.ErrEntryNotFound) {
		return c.cancel(ctx, t, rd, "abandoned before reservation")
	}
	if err != nil {
		return err
	}
	if err := rd.MarkPointsReserved(); err != nil {
		return err
	}
	return c.compensate(ctx, t, rd, "abandoned after reservation")
}

// recoverAndRollback 預留之後停滯：補齊未記錄的支付授權與庫存扣減後補償
func (c *Coordinator) recoverAndRollback(ctx context.Context, t tenant.Tenant, rd *redemption.Redemption) error {
	if !rd.Price().IsZero() && rd.PaymentHandle() == "" && rd.State() == redemption.StatePointsReserved {
		// 以相同冪等鍵重新授權取得 handle，之後作廢
		auth, err := c.authorize(ctx, t, rd)
		switch {
		case err == nil:
			if err := rd.MarkPaymentAuthorized(auth.Handle, auth.ClientToken); err != nil {
				return err
			}
		case errors.Is(err, payment.ErrDeclined):
			// 沒有授權需要作廢
		default:
			return err
		}
	}

	if !rd.InventoryDecremented() {
		adjusted, err := c.inventory.Adjusted(ctx, t, rd.RewardID(), rd.CorrelationID())
		if err != nil {
			return err
		}
		if adjusted {
			if err := rd.MarkInventoryDecremented(); err != nil {
				return err
			}
		}
	}

	return c.compensate(ctx, t, rd, "abandoned after reservation")
}

// ===========================
// 支付閘道呼叫
// ===========================

func (c *Coordinator) authorize(ctx context.Context, t tenant.Tenant, rd *redemption.Redemption) (payment.Authorization, error) {
	payCtx, cancel := context.WithTimeout(ctx, c.paymentTimeout)
	defer cancel()

	start := time.Now()
	auth, err := c.gateway.Authorize(payCtx, payment.AuthorizationRequest{
		Amount:         rd.Price().MinorUnits(),
		Currency:       rd.Price().Currency(),
		IdempotencyKey: rd.ID().String(),
		Metadata: map[string]string{
			"tenant_id":     t.ID().String(),
			"customer_id":   rd.CustomerID().String(),
			"reward_id":     rd.RewardID().String(),
			"redemption_id": rd.ID().String(),
		},
	})
	c.metrics.PaymentCall("authorize", err, time.Since(start))
	return auth, err
}

func (c *Coordinator) capture(ctx context.Context, rd *redemption.Redemption) error {
	payCtx, cancel := context.WithTimeout(ctx, c.paymentTimeout)
	defer cancel()

	start := time.Now()
	err := c.gateway.Capture(payCtx, rd.PaymentHandle())
	c.metrics.PaymentCall("capture", err, time.Since(start))
	return err
}

func (c *Coordinator) void(ctx context.Context, rd *redemption.Redemption) error {
	payCtx, cancel := context.WithTimeout(ctx, c.paymentTimeout)
	defer cancel()

	start := time.Now()
	err := c.gateway.Void(payCtx, rd.PaymentHandle())
	c.metrics.PaymentCall("void", err, time.Since(start))
	if errors.Is(err, payment.ErrUnknownHandle) {
		return nil
	}
	return err
}

// ===========================
// 持久化
// ===========================

func (c *Coordinator) load(ctx context.Context, t tenant.Tenant, id redemption.RedemptionID) (*redemption.Redemption, error) {
	var rd *redemption.Redemption
	err := c.txManager.InTransaction(ctx, func(tx shared.TransactionContext) error {
		var err error
		rd, err = c.redemptions.FindByID(tx, t, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load redemption: %w", err)
	}
	return rd, nil
}

// save 條件更新；狀態一旦改變就要落地，不受呼叫端取消影響
func (c *Coordinator) save(ctx context.Context, t tenant.Tenant, rd *redemption.Redemption) error {
	err := c.txManager.InTransaction(context.WithoutCancel(ctx), func(tx shared.TransactionContext) error {
		return c.redemptions.Update(tx, t, rd)
	})
	if err != nil {
		return fmt.Errorf("failed to save redemption %s: %w", rd.ID(), err)
	}
	c.publish(rd)
	return nil
}

func (c *Coordinator) publish(rd *redemption.Redemption) {
	events := rd.PullEvents()
	if c.publisher == nil {
		return
	}
	for _, event := range events {
		if err := c.publisher.Publish(event); err != nil {
			c.logger.Warn("failed to publish redemption event",
				"event_type", event.EventType(),
				"redemption_id", rd.ID().String(),
				"error", err,
			)
		}
	}
}
