package persistence

import (
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/shared"
	"gorm.io/gorm"
)

// ===========================
// GORM TransactionContext 實作
// ===========================

// gormTransactionContext GORM 事務上下文實作
// 設計原則：
// 1. 實作 shared.TransactionContext 介面（標記介面）
// 2. 封裝 *gorm.DB，避免洩漏到 Domain Layer
// 3. 提供 GetDB() 方法供 Infrastructure Layer 內部使用
type gormTransactionContext struct {
	db *gorm.DB
}

// NewGORMTransactionContext 創建 GORM 事務上下文
func NewGORMTransactionContext(db *gorm.DB) shared.TransactionContext {
	return &gormTransactionContext{db: db}
}

// GetDB 獲取 GORM DB 連接（僅供 Infrastructure Layer 內部使用）
// 注意：這個方法不在 shared.TransactionContext 介面中
func (ctx *gormTransactionContext) GetDB() *gorm.DB {
	return ctx.db
}

// GORMTransactionContext 各 Repository 用來取出 *gorm.DB 的介面
type GORMTransactionContext interface {
	shared.TransactionContext
	GetDB() *gorm.DB
}

// DBFrom 從 TransactionContext 取得 GORM DB
//
// tx 為事務上下文時返回事務 DB；nil 或其他實作時返回 fallback（auto-commit）。
func DBFrom(tx shared.TransactionContext, fallback *gorm.DB) *gorm.DB {
	if gormCtx, ok := tx.(GORMTransactionContext); ok {
		return gormCtx.GetDB()
	}
	return fallback
}
