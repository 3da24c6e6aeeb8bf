package points

import (
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/shared"
)

// ===========================
// 實體 ID 類型定義
// ===========================

// EntryMarker 是 EntryID 的標記類型
type EntryMarker struct{}

// EntryID 帳本分錄的唯一標識符（系統產生的 UUID）
type EntryID = shared.EntityID[EntryMarker]

// NewEntryID 生成新的分錄 ID
func NewEntryID() EntryID {
	return shared.NewEntityID[EntryMarker]()
}

// EntryIDFromString 從字串解析分錄 ID
func EntryIDFromString(s string) (EntryID, error) {
	return shared.EntityIDFromString[EntryMarker](s, ErrInvalidEntryID)
}

// CustomerMarker 是 CustomerID 的標記類型
type CustomerMarker struct{}

// CustomerID 顧客 ID（由外部身分系統提供，不透明字串）
//
// 顧客主檔屬於外部 CRUD，帳本只以 (tenant, customer) 作為餘額的鍵。
type CustomerID = shared.OpaqueID[CustomerMarker]

// CustomerIDFromString 驗證顧客 ID
func CustomerIDFromString(s string) (CustomerID, error) {
	return shared.OpaqueIDFromString[CustomerMarker](s, ErrInvalidCustomerID)
}
