package shared

import (
	"strings"

	"github.com/google/uuid"
)

// ===========================
// EntityID[T] 泛型實體 ID
// ===========================

// EntityID 系統內部產生的實體 ID（UUID）
//
// 泛型參數 T 為標記類型（marker type），讓不同實體的 ID 成為不同類型：
//   type EntryMarker struct{}
//   type EntryID = shared.EntityID[EntryMarker]
//
// EntryID 與 RedemptionID 無法互相賦值或比較（編譯期保證）。
type EntityID[T any] struct {
	value uuid.UUID
}

// NewEntityID 生成新的實體 ID（UUID v4）
func NewEntityID[T any]() EntityID[T] {
	return EntityID[T]{value: uuid.New()}
}

// EntityIDFromString 從字串解析實體 ID
//
// errTemplate 由呼叫端提供（各 bounded context 自己的錯誤），
// 若支援 WithContext 則附加輸入值與解析錯誤。
func EntityIDFromString[T any](s string, errTemplate error) (EntityID[T], error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return EntityID[T]{}, withContext(errTemplate, "input", s, "parse_error", err.Error())
	}
	return EntityID[T]{value: id}, nil
}

// String 轉換為字串表示（小寫 UUID）
func (e EntityID[T]) String() string {
	return e.value.String()
}

// Equals 比較兩個 EntityID 是否相等
func (e EntityID[T]) Equals(other EntityID[T]) bool {
	return e.value == other.value
}

// IsEmpty 判斷是否為零值 ID
func (e EntityID[T]) IsEmpty() bool {
	return e.value == uuid.Nil
}

// ===========================
// OpaqueID[T] 外部不透明 ID
// ===========================

// MaxOpaqueIDLength 外部 ID 最大長度
const MaxOpaqueIDLength = 128

// OpaqueID 由外部系統產生的不透明 ID（租戶、顧客、獎勵）
//
// 與 EntityID 不同，內容不要求是 UUID：只要求非空白、長度上限、
// 不含控制字元。同樣以標記類型區分，CustomerID 與 RewardID 不能混用。
type OpaqueID[T any] struct {
	value string
}

// OpaqueIDFromString 驗證並建立外部 ID
//
// 前後空白會被移除；驗證失敗時返回 errTemplate（附帶上下文）。
func OpaqueIDFromString[T any](s string, errTemplate error) (OpaqueID[T], error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return OpaqueID[T]{}, withContext(errTemplate, "reason", "id cannot be empty")
	}
	if len(trimmed) > MaxOpaqueIDLength {
		return OpaqueID[T]{}, withContext(errTemplate,
			"reason", "id too long",
			"length", len(trimmed),
		)
	}
	for _, r := range trimmed {
		if r < 0x20 || r == 0x7f {
			return OpaqueID[T]{}, withContext(errTemplate,
				"input", trimmed,
				"reason", "id contains control characters",
			)
		}
	}
	return OpaqueID[T]{value: trimmed}, nil
}

// String 返回原始字串
func (o OpaqueID[T]) String() string {
	return o.value
}

// Equals 比較兩個 OpaqueID 是否相等
func (o OpaqueID[T]) Equals(other OpaqueID[T]) bool {
	return o.value == other.value
}

// IsEmpty 判斷是否為零值 ID
func (o OpaqueID[T]) IsEmpty() bool {
	return o.value == ""
}

// withContext 若錯誤支援 WithContext 則附加上下文，否則原樣返回
func withContext(errTemplate error, keyValues ...interface{}) error {
	if domainErr, ok := errTemplate.(interface {
		WithContext(keyValues ...interface{}) error
	}); ok {
		return domainErr.WithContext(keyValues...)
	}
	return errTemplate
}
