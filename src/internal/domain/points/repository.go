package points

import (
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/shared"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/tenant"
)

// ===========================
// Ledger Repository 介面
// ===========================

// LedgerRepository 帳本倉儲介面
//
// 設計原則：
// 1. 依賴倒置：Domain Layer 定義介面，Infrastructure Layer 實作
// 2. 租戶隔離：每個方法都要求已驗證的 Tenant handle，查詢一律帶 tenant_id 條件
// 3. 條件寫入：餘額以版本號更新、分錄以 (tenant, customer, correlation) 唯一鍵寫入，
//    輸掉競爭時返回 shared.ErrConcurrentModification，由呼叫端重試
//
// 事務使用範例：
//   txManager.InTransaction(ctx, func(tx shared.TransactionContext) error {
//       balance, _ := repo.FindBalance(tx, t, customerID)
//       entry, _ := balance.Credit(amount, reason, correlationID)
//       if err := repo.UpdateBalance(tx, t, balance); err != nil {
//           return err
//       }
//       return repo.AppendEntry(tx, t, entry)
//   })
type LedgerRepository interface {
	// FindBalance 查詢顧客餘額
	// 返回：ErrBalanceNotFound（從未入帳的顧客）
	FindBalance(tx shared.TransactionContext, t tenant.Tenant, customerID CustomerID) (*CustomerBalance, error)

	// InsertBalance 寫入新的餘額列（首次入帳）
	// 錯誤：shared.ErrConcurrentModification（同一顧客已被並發建立）
	InsertBalance(tx shared.TransactionContext, t tenant.Tenant, balance *CustomerBalance) error

	// UpdateBalance 條件更新餘額（WHERE version = balance.Version()）
	// 後置條件：資料庫中的 version 加一
	// 錯誤：shared.ErrConcurrentModification（版本已被其他寫入者改變）
	UpdateBalance(tx shared.TransactionContext, t tenant.Tenant, balance *CustomerBalance) error

	// AppendEntry 寫入分錄
	// 錯誤：shared.ErrConcurrentModification（相同關聯 ID 已被寫入）
	AppendEntry(tx shared.TransactionContext, t tenant.Tenant, entry *LedgerEntry) error

	// FindEntryByCorrelation 以關聯 ID 查詢分錄（冪等檢查）
	// 返回：ErrEntryNotFound
	FindEntryByCorrelation(tx shared.TransactionContext, t tenant.Tenant, customerID CustomerID, correlationID CorrelationID) (*LedgerEntry, error)

	// ListEntries 列出顧客最近的分錄（新到舊）
	ListEntries(tx shared.TransactionContext, t tenant.Tenant, customerID CustomerID, limit int) ([]*LedgerEntry, error)

	// SumEntries 計算顧客所有分錄 delta 的總和與筆數（對帳用）
	SumEntries(tx shared.TransactionContext, t tenant.Tenant, customerID CustomerID) (sum int64, count int64, err error)

	// ListBalances 依顧客 ID 遞增分頁列出租戶下的餘額（對帳用）
	// afterCustomerID 為空字串時從頭開始
	ListBalances(tx shared.TransactionContext, t tenant.Tenant, afterCustomerID string, limit int) ([]*CustomerBalance, error)
}
