package shared

import "context"

// TransactionContext 事務上下文介面
//
// 設計決策：可選事務參與模式（Optional Transaction Participation）
//
// 行為約定：
// - ctx != nil: 在呼叫者的事務中執行（事務傳播）
// - ctx == nil: 使用 auto-commit 模式（適用於單一讀操作）
//
// Repository 方法約束：
// - 寫操作（Insert / UpdateIfVersion / Append）必須在事務中
// - 讀操作可選擇是否參與事務
//
// 範例：
//   txManager.InTransaction(ctx, func(tx TransactionContext) error {
//       balance, _ := repo.FindBalance(tx, tenant, customerID)
//       entry, _ := balance.Credit(amount, reason, correlationID)
//       return repo.AppendEntry(tx, entry)
//   })
//
// 這是標記介面，Infrastructure Layer 負責實作具體的事務封裝（GORM）。
type TransactionContext interface {
	// 標記介面：僅用於傳遞上下文，不暴露方法
}

// TransactionManager 事務管理器介面
//
// fn 返回錯誤或 panic 時回滾，否則提交。
// context.Context 用於取消與逾時，會傳遞到底層資料庫連線。
type TransactionManager interface {
	InTransaction(ctx context.Context, fn func(tx TransactionContext) error) error
}
