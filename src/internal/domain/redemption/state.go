package redemption

// ===========================
// State 兌換 saga 狀態
// ===========================

// State 兌換狀態
type State string

const (
	StateRequested            State = "REQUESTED"
	StateBalanceChecked       State = "BALANCE_CHECKED"
	StatePointsReserved       State = "POINTS_RESERVED"
	StatePaymentAuthorized    State = "PAYMENT_AUTHORIZED"
	StateInventoryDecremented State = "INVENTORY_DECREMENTED"
	StateCompleted            State = "COMPLETED"

	StateFailedInsufficientBalance State = "FAILED_INSUFFICIENT_BALANCE"
	StateFailedOutOfStock          State = "FAILED_OUT_OF_STOCK"
	StateFailedPayment             State = "FAILED_PAYMENT"

	StateRolledBack State = "ROLLED_BACK"
	StateCancelled  State = "CANCELLED"
)

// transitions 合法的狀態轉換
//
// FAILED_PAYMENT / FAILED_OUT_OF_STOCK → ROLLED_BACK 只在積分已預留時成立
// （由 Redemption.MarkRolledBack 檢查）。
var transitions = map[State][]State{
	StateRequested: {
		StateBalanceChecked,
		StateFailedInsufficientBalance,
		StateFailedOutOfStock,
		StateCancelled,
	},
	StateBalanceChecked: {
		StatePointsReserved,
		StateFailedInsufficientBalance,
		StateCancelled,
	},
	StatePointsReserved: {
		StatePaymentAuthorized,
		StateInventoryDecremented,
		StateFailedPayment,
		StateFailedOutOfStock,
		StateRolledBack,
	},
	StatePaymentAuthorized: {
		StateInventoryDecremented,
		StateFailedOutOfStock,
		StateFailedPayment,
		StateRolledBack,
	},
	StateInventoryDecremented: {
		StateCompleted,
		StateFailedPayment,
		StateRolledBack,
	},
	StateFailedPayment:    {StateRolledBack},
	StateFailedOutOfStock: {StateRolledBack},
}

// ParseState 解析狀態字串
func ParseState(s string) (State, error) {
	state := State(s)
	if !state.IsValid() {
		return "", ErrInvalidState.WithContext("input", s)
	}
	return state, nil
}

// IsValid 是否為已知狀態
func (s State) IsValid() bool {
	switch s {
	case StateRequested, StateBalanceChecked, StatePointsReserved, StatePaymentAuthorized,
		StateInventoryDecremented, StateCompleted, StateFailedInsufficientBalance,
		StateFailedOutOfStock, StateFailedPayment, StateRolledBack, StateCancelled:
		return true
	}
	return false
}

// IsFailure 是否為 FAILED_* 狀態
func (s State) IsFailure() bool {
	switch s {
	case StateFailedInsufficientBalance, StateFailedOutOfStock, StateFailedPayment:
		return true
	}
	return false
}

// IsTerminal saga 不再前進的狀態
//
// FAILED_* 也是終態；其中積分已預留者仍欠一個補償，完成後轉為 ROLLED_BACK。
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateRolledBack || s == StateCancelled || s.IsFailure()
}

// CanTransitionTo 檢查轉換表
func (s State) CanTransitionTo(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// String 實現 fmt.Stringer
func (s State) String() string {
	return string(s)
}

// ActiveStates 尚未到達終態的狀態（清理排程查詢用）
func ActiveStates() []State {
	return []State{
		StateRequested,
		StateBalanceChecked,
		StatePointsReserved,
		StatePaymentAuthorized,
		StateInventoryDecremented,
	}
}
