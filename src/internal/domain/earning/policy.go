package earning

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// ===========================
// Policy 積分計算策略（封閉變體）
// ===========================

// PolicyKind 策略種類
type PolicyKind string

const (
	PolicyFixed      PolicyKind = "FIXED"
	PolicyPercentage PolicyKind = "PERCENTAGE"
	PolicyTiered     PolicyKind = "TIERED"
)

// Policy 由事件 payload 計算積分的純函數
//
// 封閉變體：只有本套件的 FixedPolicy / PercentagePolicy / TieredPolicy 能實作
// （isPolicy 為未導出方法），持久化層以 PolicyKind 做窮舉轉換。
// 計算結果永遠 >= 0；0 代表「不入帳」。
type Policy interface {
	Kind() PolicyKind
	Compute(payload Payload) (int, error)
	isPolicy()
}

var (
	hundred = decimal.NewFromInt(100)
	// maxPoints 單一事件可計算出的點數上限
	maxPoints = decimal.NewFromInt(math.MaxInt32)
)

// --- FixedPolicy ---

// FixedPolicy 每個事件固定給予 Points 點
type FixedPolicy struct {
	Points int
}

func (FixedPolicy) Kind() PolicyKind { return PolicyFixed }
func (FixedPolicy) isPolicy() {}

// Compute 固定點數，與 payload 無關
func (p FixedPolicy) Compute(Payload) (int, error) {
	return p.Points, nil
}

// --- PercentagePolicy ---

// PercentagePolicy floor(payload[Field] × Percent / 100)，最小為 0
type PercentagePolicy struct {
	Field   string
	Percent decimal.Decimal
}

func (PercentagePolicy) Kind() PolicyKind { return PolicyPercentage }
func (PercentagePolicy) isPolicy() {}

// Compute 依欄位數值的百分比計算
func (p PercentagePolicy) Compute(payload Payload) (int, error) {
	value, err := payload.Number(p.Field)
	if err != nil {
		return 0, err
	}
	points := value.Mul(p.Percent).Div(hundred).Floor()
	if points.IsNegative() {
		return 0, nil
	}
	if points.GreaterThan(maxPoints) {
		return 0, ErrInvalidPayload.WithContext(
			"field", p.Field,
			"reason", "computed points out of range",
			"value", value.String(),
		)
	}
	return int(points.IntPart()), nil
}

// --- TieredPolicy ---

// Tier 門檻：欄位數值 >= Min 時給予 Points 點
type Tier struct {
	Min    decimal.Decimal
	Points int
}

// TieredPolicy 取門檻 <= 數值的最高級距
type TieredPolicy struct {
	Field string
	Tiers []Tier
}

func (TieredPolicy) Kind() PolicyKind { return PolicyTiered }
func (TieredPolicy) isPolicy() {}

// Compute 沒有任何級距符合時返回 0
func (p TieredPolicy) Compute(payload Payload) (int, error) {
	value, err := payload.Number(p.Field)
	if err != nil {
		return 0, err
	}

	best := -1
	for i, tier := range p.Tiers {
		if tier.Min.GreaterThan(value) {
			continue
		}
		if best < 0 || tier.Min.GreaterThan(p.Tiers[best].Min) {
			best = i
		}
	}
	if best < 0 {
		return 0, nil
	}
	return p.Tiers[best].Points, nil
}

// ===========================
// Payload
// ===========================

// Payload 事件內容（JSON 物件）
//
// 數值欄位可為 JSON number（建議以 json.Decoder.UseNumber 解碼）或數字字串。
type Payload map[string]any

// Number 讀取數值欄位
//
// 錯誤：欄位不存在或不是數字 → ErrInvalidPayload
func (p Payload) Number(field string) (decimal.Decimal, error) {
	raw, ok := p[field]
	if !ok || raw == nil {
		return decimal.Zero, ErrInvalidPayload.WithContext("field", field, "reason", "missing")
	}

	var (
		value decimal.Decimal
		err   error
	)
	switch v := raw.(type) {
	case json.Number:
		value, err = decimal.NewFromString(v.String())
	case string:
		value, err = decimal.NewFromString(strings.TrimSpace(v))
	case float64:
		value = decimal.NewFromFloat(v)
	case float32:
		value = decimal.NewFromFloat32(v)
	case int:
		value = decimal.NewFromInt(int64(v))
	case int64:
		value = decimal.NewFromInt(v)
	case decimal.Decimal:
		value = v
	default:
		err = fmt.Errorf("unsupported type %T", raw)
	}
	if err != nil {
		return decimal.Zero, ErrInvalidPayload.WithContext(
			"field", field,
			"reason", "not a number",
			"error", err.Error(),
		)
	}
	return value, nil
}

// ===========================
// PolicySpec 序列化形狀
// ===========================

// PolicySpec 策略的資料形狀（資料庫 JSON 欄位、種子檔）
type PolicySpec struct {
	Kind    PolicyKind `json:"kind" yaml:"kind"`
	Points  int        `json:"points,omitempty" yaml:"points,omitempty"`
	Field   string     `json:"field,omitempty" yaml:"field,omitempty"`
	Percent string     `json:"percent,omitempty" yaml:"percent,omitempty"`
	Tiers   []TierSpec `json:"tiers,omitempty" yaml:"tiers,omitempty"`
}

// TierSpec 級距的資料形狀
type TierSpec struct {
	Min    string `json:"min" yaml:"min"`
	Points int    `json:"points" yaml:"points"`
}

// ToPolicy 驗證並轉換為 Policy
func (s PolicySpec) ToPolicy() (Policy, error) {
	switch PolicyKind(strings.ToUpper(string(s.Kind))) {
	case PolicyFixed:
		if s.Points < 0 {
			return nil, ErrInvalidPolicy.WithContext("kind", s.Kind, "reason", "points must be >= 0")
		}
		return FixedPolicy{Points: s.Points}, nil

	case PolicyPercentage:
		if s.Field == "" {
			return nil, ErrInvalidPolicy.WithContext("kind", s.Kind, "reason", "field is required")
		}
		percent, err := decimal.NewFromString(s.Percent)
		if err != nil || percent.IsNegative() {
			return nil, ErrInvalidPolicy.WithContext("kind", s.Kind, "reason", "percent must be a non-negative number", "percent", s.Percent)
		}
		return PercentagePolicy{Field: s.Field, Percent: percent}, nil

	case PolicyTiered:
		if s.Field == "" || len(s.Tiers) == 0 {
			return nil, ErrInvalidPolicy.WithContext("kind", s.Kind, "reason", "field and tiers are required")
		}
		tiers := make([]Tier, 0, len(s.Tiers))
		for _, ts := range s.Tiers {
			minimum, err := decimal.NewFromString(ts.Min)
			if err != nil || ts.Points < 0 {
				return nil, ErrInvalidPolicy.WithContext("kind", s.Kind, "reason", "invalid tier", "min", ts.Min, "points", ts.Points)
			}
			tiers = append(tiers, Tier{Min: minimum, Points: ts.Points})
		}
		sort.Slice(tiers, func(i, j int) bool { return tiers[i].Min.LessThan(tiers[j].Min) })
		return TieredPolicy{Field: s.Field, Tiers: tiers}, nil
	}
	return nil, ErrInvalidPolicy.WithContext("kind", s.Kind, "reason", "unknown policy kind")
}

// SpecOf 將 Policy 轉回資料形狀
func SpecOf(p Policy) PolicySpec {
	switch v := p.(type) {
	case FixedPolicy:
		return PolicySpec{Kind: PolicyFixed, Points: v.Points}
	case PercentagePolicy:
		return PolicySpec{Kind: PolicyPercentage, Field: v.Field, Percent: v.Percent.String()}
	case TieredPolicy:
		tiers := make([]TierSpec, len(v.Tiers))
		for i, t := range v.Tiers {
			tiers[i] = TierSpec{Min: t.Min.String(), Points: t.Points}
		}
		return PolicySpec{Kind: PolicyTiered, Field: v.Field, Tiers: tiers}
	}
	return PolicySpec{}
}
