package persistence

import (
	"testing"

	"gorm.io/gorm"
)

// ===========================
// 測試輔助函數
// ===========================

// SetupTestDB 創建測試用的 SQLite in-memory 資料庫
// 使用場景：整合測試，測試 Repository 與真實資料庫的互動
//
// 設計原則：
// 1. 隔離性：每個測試使用獨立的 in-memory DB
// 2. 速度：SQLite in-memory 快速，適合測試
// 3. 真實性：使用真實 SQL 引擎，而非 Mock
//
// models 為需要自動遷移的 GORM 模型；測試結束時自動關閉連線。
func SetupTestDB(t testing.TB, models ...interface{}) *gorm.DB {
	t.Helper()

	// 1. 建立 SQLite in-memory 資料庫（單一連線）
	db, err := Open(Options{DSN: ":memory:"})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	// 2. 自動遷移（創建測試表）
	if len(models) > 0 {
		if err := db.AutoMigrate(models...); err != nil {
			t.Fatalf("Failed to migrate test database: %v", err)
		}
	}

	// 3. 清理：SQLite in-memory 資料庫會在連接關閉時自動清理
	t.Cleanup(func() {
		_ = Close(db)
	})

	return db
}
