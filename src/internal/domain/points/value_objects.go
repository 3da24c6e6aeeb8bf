package points

import (
	"fmt"
	"math"
	"strings"
)

// ===========================
// PointsAmount 積分數量值對象
// ===========================

// PointsAmount 積分數量值對象
// 設計原則：值對象不可變、自我驗證，數值永遠 >= 0
type PointsAmount struct {
	value int
}

// NewPointsAmount 建構函數（checked 版本）
//
// 建構約束：積分數量必須 >= 0（不存在負數積分的概念）
func NewPointsAmount(value int) (PointsAmount, error) {
	if value < 0 {
		return PointsAmount{}, fmt.Errorf(
			"%w: attempted to create PointsAmount with value %d",
			ErrNegativePointsAmount,
			value,
		)
	}
	return PointsAmount{value: value}, nil
}

// NewPositivePointsAmount 建構入帳 / 扣帳用的積分數量（必須 > 0）
//
// 帳本的 credit / reserveAndDebit 只接受正數，零或負數都是無效輸入。
func NewPositivePointsAmount(value int) (PointsAmount, error) {
	if value <= 0 {
		return PointsAmount{}, ErrInvalidPointsAmount.WithContext(
			"value", value,
			"reason", "amount must be greater than zero",
		)
	}
	return PointsAmount{value: value}, nil
}

// newPointsAmountUnchecked 內部建構函數
// 前提條件：調用者必須保證 value >= 0
func newPointsAmountUnchecked(value int) PointsAmount {
	return PointsAmount{value: value}
}

// Value 獲取積分數量
func (p PointsAmount) Value() int {
	return p.value
}

// IsZero 是否為零
func (p PointsAmount) IsZero() bool {
	return p.value == 0
}

// Add 相加（返回新的 PointsAmount）
// 溢位時返回 ErrPointsOverflow
func (p PointsAmount) Add(other PointsAmount) (PointsAmount, error) {
	if p.value > math.MaxInt-other.value {
		return PointsAmount{}, ErrPointsOverflow.WithContext(
			"current", p.value,
			"added", other.value,
		)
	}
	return newPointsAmountUnchecked(p.value + other.value), nil
}

// Subtract 相減（返回新的 PointsAmount）
// 業務規則：不能扣除超過當前數量的積分
func (p PointsAmount) Subtract(other PointsAmount) (PointsAmount, error) {
	if p.value < other.value {
		return PointsAmount{}, fmt.Errorf(
			"%w: cannot subtract %d from %d (insufficient balance)",
			ErrInsufficientPoints,
			other.value,
			p.value,
		)
	}
	return newPointsAmountUnchecked(p.value - other.value), nil
}

// Equals 比較兩個 PointsAmount 是否相等
func (p PointsAmount) Equals(other PointsAmount) bool {
	return p.value == other.value
}

// GreaterThan 判斷是否大於另一個 PointsAmount
func (p PointsAmount) GreaterThan(other PointsAmount) bool {
	return p.value > other.value
}

// LessThan 判斷是否小於另一個 PointsAmount
func (p PointsAmount) LessThan(other PointsAmount) bool {
	return p.value < other.value
}

// GreaterThanOrEqual 判斷是否大於等於另一個 PointsAmount
func (p PointsAmount) GreaterThanOrEqual(other PointsAmount) bool {
	return p.value >= other.value
}

// ===========================
// ReasonCode 帳本分錄原因
// ===========================

// ReasonCode 分錄原因代碼（每筆分錄都歸因於一個原因）
type ReasonCode string

const (
	ReasonEarningRule        ReasonCode = "EARNING_RULE"
	ReasonRedemption         ReasonCode = "REDEMPTION"
	ReasonRedemptionRollback ReasonCode = "REDEMPTION_ROLLBACK"
	ReasonAdjustment         ReasonCode = "ADJUSTMENT"
)

// ParseReasonCode 解析原因代碼
func ParseReasonCode(s string) (ReasonCode, error) {
	code := ReasonCode(strings.ToUpper(strings.TrimSpace(s)))
	if !code.IsValid() {
		return "", ErrInvalidReasonCode.WithContext("input", s)
	}
	return code, nil
}

// IsValid 是否為已知原因
func (r ReasonCode) IsValid() bool {
	switch r {
	case ReasonEarningRule, ReasonRedemption, ReasonRedemptionRollback, ReasonAdjustment:
		return true
	}
	return false
}

// String 實現 fmt.Stringer
func (r ReasonCode) String() string {
	return string(r)
}

// ===========================
// CorrelationID 關聯 ID
// ===========================

// MaxCorrelationIDLength 關聯 ID 最大長度
const MaxCorrelationIDLength = 255

// CorrelationID 冪等錨點
//
// 同一 (tenant, customer) 下相同的 CorrelationID 只會產生一筆分錄；
// 重複呼叫返回先前的結果。
type CorrelationID struct {
	value string
}

// NewCorrelationID 驗證並建立關聯 ID
func NewCorrelationID(s string) (CorrelationID, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" || len(trimmed) > MaxCorrelationIDLength {
		return CorrelationID{}, ErrInvalidCorrelationID.WithContext(
			"input", s,
			"max_length", MaxCorrelationIDLength,
		)
	}
	return CorrelationID{value: trimmed}, nil
}

// String 返回字串
func (c CorrelationID) String() string {
	return c.value
}

// WithSuffix 產生衍生關聯 ID（例如 "<redemptionID>:rollback"）
func (c CorrelationID) WithSuffix(suffix string) CorrelationID {
	return CorrelationID{value: c.value + ":" + suffix}
}

// IsEmpty 是否為零值
func (c CorrelationID) IsEmpty() bool {
	return c.value == ""
}
