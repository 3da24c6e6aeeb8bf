package schema

import (
	"testing"

	"github.com/jackyeh168/loyalty_engine/src/internal/infrastructure/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrate_CreatesAllTables(t *testing.T) {
	db := persistence.SetupTestDB(t)

	require.NoError(t, Migrate(db))
	require.NoError(t, Migrate(db), "migration must be repeatable")

	for _, table := range []string{
		"tenants",
		"customer_balances",
		"ledger_entries",
		"earning_rules",
		"rewards",
		"inventory_adjustments",
		"redemptions",
	} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
}
