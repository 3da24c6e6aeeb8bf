package reward

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Price 獎勵的貨幣價格（可選）
//
// 金額以 decimal 表示，避免浮點誤差；送往支付閘道時轉為最小貨幣單位。
type Price struct {
	amount   decimal.Decimal
	currency string
}

// zeroDecimalCurrencies 沒有小數位的貨幣（ISO 4217）
var zeroDecimalCurrencies = map[string]bool{
	"JPY": true,
	"KRW": true,
	"VND": true,
	"CLP": true,
}

// NewPrice 驗證並建立價格
//
// 金額必須 > 0，幣別為三碼 ISO 代碼。
func NewPrice(amount decimal.Decimal, currency string) (Price, error) {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if len(code) != 3 {
		return Price{}, ErrInvalidPrice.WithContext("currency", currency, "reason", "currency must be a 3-letter ISO code")
	}
	if !amount.IsPositive() {
		return Price{}, ErrInvalidPrice.WithContext("amount", amount.String(), "reason", "amount must be positive")
	}
	return Price{amount: amount, currency: code}, nil
}

// ParsePrice 從字串金額建立價格
func ParsePrice(amount, currency string) (Price, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return Price{}, ErrInvalidPrice.WithContext("amount", amount, "reason", "not a number")
	}
	return NewPrice(value, currency)
}

func (p Price) Amount() decimal.Decimal { return p.amount }
func (p Price) Currency() string { return p.currency }

// IsZero 未設定價格（純積分獎勵）
func (p Price) IsZero() bool {
	return p.currency == ""
}

// MinorUnits 最小貨幣單位的整數金額（例如 12.34 USD → 1234）
//
// 小數位超過幣別精度時四捨五入。
func (p Price) MinorUnits() int64 {
	if zeroDecimalCurrencies[p.currency] {
		return p.amount.Round(0).IntPart()
	}
	return p.amount.Shift(2).Round(0).IntPart()
}

// String 例如 "12.50 USD"
func (p Price) String() string {
	if p.IsZero() {
		return ""
	}
	return p.amount.StringFixed(2) + " " + p.currency
}
