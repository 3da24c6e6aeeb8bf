package persistence

import (
	"context"

	"github.com/jackyeh168/loyalty_engine/src/internal/domain/shared"
	"gorm.io/gorm"
)

// ===========================
// GORM TransactionManager
// ===========================

// GORMTransactionManager 以 gorm.DB.Transaction 實作 shared.TransactionManager
//
// 行為：
// - fn 返回 nil → COMMIT
// - fn 返回錯誤 → ROLLBACK，原樣返回錯誤
// - fn panic → ROLLBACK 後重新 panic（由 GORM 處理）
// - ctx 取消 → 底層連線中止，返回 ctx 錯誤
type GORMTransactionManager struct {
	db *gorm.DB
}

// NewGORMTransactionManager 創建事務管理器
func NewGORMTransactionManager(db *gorm.DB) *GORMTransactionManager {
	return &GORMTransactionManager{db: db}
}

// InTransaction 在事務中執行 fn
func (m *GORMTransactionManager) InTransaction(ctx context.Context, fn func(tx shared.TransactionContext) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewGORMTransactionContext(tx))
	})
}
