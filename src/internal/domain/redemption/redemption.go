package redemption

import (
	"strings"
	"time"

	"github.com/jackyeh168/loyalty_engine/src/internal/domain/points"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/reward"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/shared"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/tenant"
)

// RedemptionMarker 是 RedemptionID 的標記類型
type RedemptionMarker struct{}

// RedemptionID 兌換 ID；同時作為扣帳關聯 ID 與支付冪等鍵
type RedemptionID = shared.EntityID[RedemptionMarker]

// NewRedemptionID 生成新的兌換 ID
func NewRedemptionID() RedemptionID {
	return shared.NewEntityID[RedemptionMarker]()
}

// RedemptionIDFromString 解析兌換 ID
func RedemptionIDFromString(s string) (RedemptionID, error) {
	return shared.EntityIDFromString[RedemptionMarker](s, ErrInvalidRedemptionID)
}

// MaxIdempotencyKeyLength 冪等鍵最大長度
const MaxIdempotencyKeyLength = 255

// ===========================
// Redemption 聚合根（saga 實例）
// ===========================

// Redemption 一次獎勵兌換
//
// 狀態只能依轉換表前進；終態之後只允許補償完成（FAILED_* → ROLLED_BACK）。
// pointsReserved / inventoryDecremented / paymentHandle 記錄哪些步驟已生效，
// 補償時據此決定要退還積分、回補庫存、作廢授權中的哪幾項。
type Redemption struct {
	id                   RedemptionID
	tenantID             tenant.TenantID
	customerID           points.CustomerID
	rewardID             reward.RewardID
	idempotencyKey       string
	state                State
	pointsCost           int
	price                reward.Price
	paymentHandle        string
	paymentClientToken   string
	failure              State
	failureReason        string
	pointsReserved       bool
	inventoryDecremented bool
	paymentCaptured      bool
	compensationPending  bool
	createdAt            time.Time
	updatedAt            time.Time
	version              int64

	shared.EventRecorder
}

// NewRedemption 建立 REQUESTED 狀態的兌換
func NewRedemption(t tenant.Tenant, customerID points.CustomerID, rewardID reward.RewardID, idempotencyKey string) (*Redemption, error) {
	if t.IsZero() {
		return nil, tenant.ErrMissingTenant
	}
	key := strings.TrimSpace(idempotencyKey)
	if key == "" || len(key) > MaxIdempotencyKeyLength {
		return nil, ErrInvalidIdempotencyKey.WithContext("input", idempotencyKey)
	}
	now := time.Now().UTC()
	r := &Redemption{
		id:             NewRedemptionID(),
		tenantID:       t.ID(),
		customerID:     customerID,
		rewardID:       rewardID,
		idempotencyKey: key,
		state:          StateRequested,
		createdAt:      now,
		updatedAt:      now,
	}
	r.Record(NewStateChangedEvent(r, ""))
	return r, nil
}

// Snapshot 兌換資料的持久化形狀（Repository 專用）
type Snapshot struct {
	ID                   RedemptionID
	TenantID             tenant.TenantID
	CustomerID           points.CustomerID
	RewardID             reward.RewardID
	IdempotencyKey       string
	State                State
	PointsCost           int
	Price                reward.Price
	PaymentHandle        string
	PaymentClientToken   string
	Failure              State
	FailureReason        string
	PointsReserved       bool
	InventoryDecremented bool
	PaymentCaptured      bool
	CompensationPending  bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
	Version              int64
}

// ReconstructRedemption 從持久化數據重建
func ReconstructRedemption(s Snapshot) *Redemption {
	return &Redemption{
		id:                   s.ID,
		tenantID:             s.TenantID,
		customerID:           s.CustomerID,
		rewardID:             s.RewardID,
		idempotencyKey:       s.IdempotencyKey,
		state:                s.State,
		pointsCost:           s.PointsCost,
		price:                s.Price,
		paymentHandle:        s.PaymentHandle,
		paymentClientToken:   s.PaymentClientToken,
		failure:              s.Failure,
		failureReason:        s.FailureReason,
		pointsReserved:       s.PointsReserved,
		inventoryDecremented: s.InventoryDecremented,
		paymentCaptured:      s.PaymentCaptured,
		compensationPending:  s.CompensationPending,
		createdAt:            s.CreatedAt,
		updatedAt:            s.UpdatedAt,
		version:              s.Version,
	}
}

// Snapshot 匯出持久化形狀
func (r *Redemption) Snapshot() Snapshot {
	return Snapshot{
		ID:                   r.id,
		TenantID:             r.tenantID,
		CustomerID:           r.customerID,
		RewardID:             r.rewardID,
		IdempotencyKey:       r.idempotencyKey,
		State:                r.state,
		PointsCost:           r.pointsCost,
		Price:                r.price,
		PaymentHandle:        r.paymentHandle,
		PaymentClientToken:   r.paymentClientToken,
		Failure:              r.failure,
		FailureReason:        r.failureReason,
		PointsReserved:       r.pointsReserved,
		InventoryDecremented: r.inventoryDecremented,
		PaymentCaptured:      r.paymentCaptured,
		CompensationPending:  r.compensationPending,
		CreatedAt:            r.createdAt,
		UpdatedAt:            r.updatedAt,
		Version:              r.version,
	}
}

// --- Getter 方法 ---

func (r *Redemption) ID() RedemptionID { return r.id }
func (r *Redemption) TenantID() tenant.TenantID { return r.tenantID }
func (r *Redemption) CustomerID() points.CustomerID { return r.customerID }
func (r *Redemption) RewardID() reward.RewardID { return r.rewardID }
func (r *Redemption) IdempotencyKey() string { return r.idempotencyKey }
func (r *Redemption) State() State { return r.state }
func (r *Redemption) PointsCost() int { return r.pointsCost }
func (r *Redemption) Price() reward.Price { return r.price }
func (r *Redemption) PaymentHandle() string { return r.paymentHandle }
func (r *Redemption) PaymentClientToken() string { return r.paymentClientToken }
func (r *Redemption) Failure() State { return r.failure }
func (r *Redemption) FailureReason() string { return r.failureReason }
func (r *Redemption) PointsReserved() bool { return r.pointsReserved }
func (r *Redemption) InventoryDecremented() bool { return r.inventoryDecremented }
func (r *Redemption) PaymentCaptured() bool { return r.paymentCaptured }
func (r *Redemption) CompensationPending() bool { return r.compensationPending }
func (r *Redemption) CreatedAt() time.Time { return r.createdAt }
func (r *Redemption) UpdatedAt() time.Time { return r.updatedAt }
func (r *Redemption) Version() int64 { return r.version }

// Age 自建立以來經過的時間
func (r *Redemption) Age(now time.Time) time.Duration {
	return now.Sub(r.createdAt)
}

// IsTerminal 是否已到達終態
func (r *Redemption) IsTerminal() bool {
	return r.state.IsTerminal()
}

// NeedsCompensation 是否有已生效、尚未撤銷的步驟
func (r *Redemption) NeedsCompensation() bool {
	if r.state == StateCompleted || r.state == StateRolledBack || r.state == StateCancelled {
		return false
	}
	return r.pointsReserved || r.inventoryDecremented || r.paymentHandle != ""
}

// CorrelationID 扣帳關聯 ID（= 兌換 ID）
func (r *Redemption) CorrelationID() string {
	return r.id.String()
}

// RollbackCorrelationID 補償入帳的關聯 ID
func (r *Redemption) RollbackCorrelationID() string {
	return r.id.String() + ":rollback"
}

// RestoreCorrelationID 回補庫存的關聯 ID
func (r *Redemption) RestoreCorrelationID() string {
	return r.id.String() + ":restore"
}

// SetPersistedVersion Repository 寫入成功後更新版本號（Repository 專用）
func (r *Redemption) SetPersistedVersion(version int64) {
	r.version = version
}

// ===========================
// 狀態轉換
// ===========================

// SnapshotReward 在 REQUESTED 時記錄獎勵的積分成本與價格
func (r *Redemption) SnapshotReward(pointsCost int, price reward.Price) error {
	if r.state != StateRequested {
		return ErrInvalidTransition.WithContext("from", r.state.String(), "action", "snapshot_reward")
	}
	r.pointsCost = pointsCost
	r.price = price
	return nil
}

// MarkBalanceChecked REQUESTED → BALANCE_CHECKED
func (r *Redemption) MarkBalanceChecked() error {
	return r.transition(StateBalanceChecked)
}

// MarkPointsReserved BALANCE_CHECKED → POINTS_RESERVED
func (r *Redemption) MarkPointsReserved() error {
	if err := r.transition(StatePointsReserved); err != nil {
		return err
	}
	r.pointsReserved = true
	return nil
}

// MarkPaymentAuthorized POINTS_RESERVED → PAYMENT_AUTHORIZED
func (r *Redemption) MarkPaymentAuthorized(handle, clientToken string) error {
	if err := r.transition(StatePaymentAuthorized); err != nil {
		return err
	}
	r.paymentHandle = handle
	r.paymentClientToken = clientToken
	return nil
}

// MarkInventoryDecremented → INVENTORY_DECREMENTED
func (r *Redemption) MarkInventoryDecremented() error {
	if err := r.transition(StateInventoryDecremented); err != nil {
		return err
	}
	r.inventoryDecremented = true
	return nil
}

// MarkPaymentCaptured 記錄支付已請款（狀態不變）
func (r *Redemption) MarkPaymentCaptured() {
	r.paymentCaptured = true
	r.touch()
}

// Complete INVENTORY_DECREMENTED → COMPLETED
func (r *Redemption) Complete() error {
	return r.transition(StateCompleted)
}

// Fail 轉為 FAILED_* 並記錄原因
func (r *Redemption) Fail(failure State, reason string) error {
	if !failure.IsFailure() {
		return ErrInvalidTransition.WithContext("from", r.state.String(), "to", failure.String())
	}
	if err := r.transition(failure); err != nil {
		return err
	}
	r.failure = failure
	r.failureReason = reason
	return nil
}

// MarkRolledBack 所有補償完成 → ROLLED_BACK
//
// 只允許在積分已預留的兌換上；失敗代碼保留原本的 FAILED_*。
func (r *Redemption) MarkRolledBack(reason string) error {
	if !r.pointsReserved {
		return ErrInvalidTransition.WithContext(
			"from", r.state.String(),
			"to", StateRolledBack.String(),
			"reason", "points were never reserved",
		)
	}
	if err := r.transition(StateRolledBack); err != nil {
		return err
	}
	if r.failureReason == "" {
		r.failureReason = reason
	}
	r.compensationPending = false
	return nil
}

// FlagCompensationPending 補償失敗，留給清理排程
func (r *Redemption) FlagCompensationPending(reason string) {
	r.compensationPending = true
	if r.failureReason == "" {
		r.failureReason = reason
	}
	r.touch()
}

// Cancel 預留之前取消 → CANCELLED
//
// 已預留的兌換必須走補償流程（由 Coordinator 處理）。
func (r *Redemption) Cancel(reason string) error {
	if r.state.IsTerminal() {
		return ErrRedemptionTerminal.WithContext("redemption_id", r.id.String(), "state", r.state.String())
	}
	if err := r.transition(StateCancelled); err != nil {
		return err
	}
	r.failureReason = reason
	return nil
}

func (r *Redemption) transition(next State) error {
	if !r.state.CanTransitionTo(next) {
		if r.state.IsTerminal() {
			return ErrRedemptionTerminal.WithContext(
				"redemption_id", r.id.String(),
				"state", r.state.String(),
				"to", next.String(),
			)
		}
		return ErrInvalidTransition.WithContext(
			"redemption_id", r.id.String(),
			"from", r.state.String(),
			"to", next.String(),
		)
	}
	previous := r.state
	r.state = next
	r.touch()
	r.Record(NewStateChangedEvent(r, previous))
	return nil
}

func (r *Redemption) touch() {
	r.updatedAt = time.Now().UTC()
}

// ===========================
// Repository 介面
// ===========================

// RedemptionRepository 兌換倉儲
type RedemptionRepository interface {
	// Insert 寫入新的兌換
	// 錯誤：ErrRedemptionAlreadyExists（相同 (tenant, idempotency key)）
	Insert(tx shared.TransactionContext, t tenant.Tenant, r *Redemption) error

	// Update 條件更新（WHERE version = r.Version()），成功後版本號加一
	// 錯誤：shared.ErrConcurrentModification
	Update(tx shared.TransactionContext, t tenant.Tenant, r *Redemption) error

	// FindByID 返回：ErrRedemptionNotFound
	FindByID(tx shared.TransactionContext, t tenant.Tenant, id RedemptionID) (*Redemption, error)

	// FindByIdempotencyKey 返回：ErrRedemptionNotFound
	FindByIdempotencyKey(tx shared.TransactionContext, t tenant.Tenant, key string) (*Redemption, error)

	// FindNeedingAttention 清理排程：未到終態且 updated_at 早於 staleBefore，
	// 或標記為補償待處理的兌換
	FindNeedingAttention(tx shared.TransactionContext, t tenant.Tenant, staleBefore time.Time, limit int) ([]*Redemption, error)
}
