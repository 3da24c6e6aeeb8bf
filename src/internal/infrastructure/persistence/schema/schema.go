// Package schema 集中管理所有資料表模型的遷移
package schema

import (
	"fmt"

	earningdb "github.com/jackyeh168/loyalty_engine/src/internal/infrastructure/persistence/earning"
	ledgerdb "github.com/jackyeh168/loyalty_engine/src/internal/infrastructure/persistence/ledger"
	redemptiondb "github.com/jackyeh168/loyalty_engine/src/internal/infrastructure/persistence/redemption"
	rewarddb "github.com/jackyeh168/loyalty_engine/src/internal/infrastructure/persistence/reward"
	tenantdb "github.com/jackyeh168/loyalty_engine/src/internal/infrastructure/persistence/tenant"
	"gorm.io/gorm"
)

// Models 所有需要遷移的 GORM 模型
func Models() []interface{} {
	return []interface{}{
		&tenantdb.TenantGORM{},
		&ledgerdb.BalanceGORM{},
		&ledgerdb.EntryGORM{},
		&earningdb.RuleGORM{},
		&rewarddb.RewardGORM{},
		&rewarddb.AdjustmentGORM{},
		&redemptiondb.RedemptionGORM{},
	}
}

// Migrate 建立或更新所有資料表
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
