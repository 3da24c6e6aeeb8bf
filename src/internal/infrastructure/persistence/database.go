package persistence

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Options 資料庫連線選項
type Options struct {
	// DSN SQLite 連線字串，例如 "file:loyalty.db?_busy_timeout=5000" 或 ":memory:"
	DSN string
	// LogSQL 輸出 SQL（除錯用）
	LogSQL bool
}

// Open 開啟 SQLite 資料庫
//
// 連線池限制為單一連線：SQLite 一次只允許一個寫入者，
// 單一連線讓事務依序執行，條件更新仍是正確性的保證。
// ":memory:" 也需要單一連線，否則每條連線各自擁有一個空資料庫。
func Open(opts Options) (*gorm.DB, error) {
	dsn := strings.TrimSpace(opts.DSN)
	if dsn == "" {
		return nil, fmt.Errorf("database dsn is required")
	}

	logLevel := logger.Silent
	if opts.LogSQL {
		logLevel = logger.Info
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access connection pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	return db, nil
}

// Close 關閉連線池
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping 檢查資料庫連線（健康檢查）
func Ping(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
