package tenant

import (
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/shared"
)

// ===========================
// TenantID / Tenant handle
// ===========================

// TenantMarker 是 TenantID 的標記類型
type TenantMarker struct{}

// TenantID 租戶的不透明識別碼（由外部開通流程產生）
type TenantID = shared.OpaqueID[TenantMarker]

// TenantIDFromString 驗證原始租戶 ID 字串
func TenantIDFromString(s string) (TenantID, error) {
	return shared.OpaqueIDFromString[TenantMarker](s, ErrMissingTenant)
}

// Tenant 已驗證的租戶 handle
//
// 設計原則：
// - 欄位全部 unexported，且沒有公開的建構函數
// - 唯一的產生途徑是 Resolver.Resolve（經過 Registry 驗證）
// - 所有 Repository / Use Case 都要求 Tenant，而非原始字串，
//   讓未驗證的跨租戶存取在類型層面無法表達
//
// 零值 Tenant 表示「未解析」，Repository 會拒絕（IsZero）。
type Tenant struct {
	id   TenantID
	name string
}

// ID 租戶 ID
func (t Tenant) ID() TenantID {
	return t.id
}

// Name 租戶顯示名稱
func (t Tenant) Name() string {
	return t.name
}

// IsZero 是否為未解析的零值 handle
func (t Tenant) IsZero() bool {
	return t.id.IsEmpty()
}

// String 返回租戶 ID 字串（日誌用）
func (t Tenant) String() string {
	return t.id.String()
}

// Record 租戶登記資料（Registry 返回，唯讀）
type Record struct {
	ID     TenantID
	Name   string
	Active bool
}
