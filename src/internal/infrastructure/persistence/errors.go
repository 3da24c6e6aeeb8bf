package persistence

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// ===========================
// GORM 錯誤判斷
// ===========================

// IsUniqueConstraintError 檢查是否為唯一約束錯誤
//
// 支援的資料庫：
// - SQLite: "UNIQUE constraint failed"
// - PostgreSQL: "duplicate key value violates unique constraint"
// - MySQL: "Duplicate entry"
//
// 已知限制：依賴英文錯誤訊息
func IsUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return containsAny(err.Error(),
		"UNIQUE constraint failed",
		"duplicate key value",
		"Duplicate entry",
		"violates unique constraint",
	)
}

// IsNotFound 是否為查無資料
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func containsAny(s string, substrs ...string) bool {
	for _, substr := range substrs {
		if strings.Contains(s, substr) {
			return true
		}
	}
	return false
}
