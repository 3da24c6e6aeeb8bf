package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackyeh168/loyalty_engine/src/internal/domain/earning"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/reward"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/shared"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/tenant"
	"github.com/jackyeh168/loyalty_engine/src/internal/infrastructure/persistence"
	earningdb "github.com/jackyeh168/loyalty_engine/src/internal/infrastructure/persistence/earning"
	rewarddb "github.com/jackyeh168/loyalty_engine/src/internal/infrastructure/persistence/reward"
	"github.com/jackyeh168/loyalty_engine/src/internal/infrastructure/persistence/schema"
	tenantdb "github.com/jackyeh168/loyalty_engine/src/internal/infrastructure/persistence/tenant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
tenants:
  - id: acme
    name: Acme Bar
    rewards:
      - id: mug
        name: Mug
        points_cost: 100
        quantity: 10
      - id: hoodie
        name: Hoodie
        points_cost: 300
        quantity: 2
        price: {amount: "25.00", currency: USD}
    rules:
      - event_type: transaction
        event_name: purchase
        policy: {kind: PERCENTAGE, field: amount, percent: "10"}
      - event_type: SIGNUP
        event_name: WELCOME
        policy: {kind: FIXED, points: 50}
  - id: closed
    active: false
    rewards:
      - id: mug
        points_cost: 1
        quantity: 1
`

type fixture struct {
	loader   *Loader
	registry *tenantdb.Registry
	rewards  *rewarddb.Repository
	rules    *earningdb.Repository
	tx       *persistence.GORMTransactionManager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := persistence.SetupTestDB(t, schema.Models()...)
	f := &fixture{
		registry: tenantdb.NewRegistry(db),
		rewards:  rewarddb.NewRepository(db),
		rules:    earningdb.NewRepository(db),
		tx:       persistence.NewGORMTransactionManager(db),
	}
	f.loader = NewLoader(f.registry, f.rewards, f.rules, f.tx)
	return f
}

func (f *fixture) resolve(t *testing.T, id string) tenant.Tenant {
	t.Helper()
	tn, err := tenant.NewResolver(f.registry).Resolve(context.Background(), id)
	require.NoError(t, err)
	return tn
}

// Test 1: 載入租戶、獎勵與規則
func TestLoader_Load(t *testing.T) {
	// Arrange
	f := newFixture(t)
	file, err := Parse([]byte(sample))
	require.NoError(t, err)

	// Act
	summary, err := f.loader.Load(context.Background(), file)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, Summary{Tenants: 2, Rewards: 2, Rules: 2}, summary)

	acme := f.resolve(t, "acme")
	assert.Equal(t, "Acme Bar", acme.Name())
	hoodieID, _ := reward.RewardIDFromString("hoodie")
	hoodie, err := f.rewards.FindByID(nil, acme, hoodieID)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), hoodie.Price().MinorUnits())

	var rule *earning.EarningRule
	require.NoError(t, f.tx.InTransaction(context.Background(), func(tx shared.TransactionContext) error {
		rule, err = f.rules.FindActiveRule(tx, acme, earning.PurchaseEvent)
		return err
	}))
	assert.Equal(t, earning.PolicyPercentage, rule.Policy().Kind())

	_, err = tenant.NewResolver(f.registry).Resolve(context.Background(), "closed")
	assert.ErrorIs(t, err, tenant.ErrUnknownTenant)
}

// Test 2: 重複載入：規則 ID 穩定，既有獎勵的庫存不被重設
func TestLoader_Reload_IsIdempotent(t *testing.T) {
	// Arrange
	f := newFixture(t)
	file, err := Parse([]byte(sample))
	require.NoError(t, err)
	_, err = f.loader.Load(context.Background(), file)
	require.NoError(t, err)

	acme := f.resolve(t, "acme")
	mugID, _ := reward.RewardIDFromString("mug")
	require.NoError(t, f.rewards.AdjustQuantity(nil, acme, mugID, -3))
	var firstRuleID string
	require.NoError(t, f.tx.InTransaction(context.Background(), func(tx shared.TransactionContext) error {
		rule, err := f.rules.FindActiveRule(tx, acme, earning.PurchaseEvent)
		if err != nil {
			return err
		}
		firstRuleID = rule.ID().String()
		return nil
	}))

	// Act
	summary, err := f.loader.Load(context.Background(), file)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Rewards)
	mug, err := f.rewards.FindByID(nil, acme, mugID)
	require.NoError(t, err)
	assert.Equal(t, 7, mug.RemainingQuantity())

	require.NoError(t, f.tx.InTransaction(context.Background(), func(tx shared.TransactionContext) error {
		rule, err := f.rules.FindActiveRule(tx, acme, earning.PurchaseEvent)
		if err != nil {
			return err
		}
		assert.Equal(t, firstRuleID, rule.ID().String())
		return nil
	}))
}

// Test 3: 無效的種子檔
func TestParse_And_Load_Invalid(t *testing.T) {
	f := newFixture(t)

	_, err := Parse([]byte("tenants:\n  - id: acme\n    colour: red\n"))
	assert.Error(t, err)

	file, err := Parse([]byte("tenants:\n  - id: acme\n    rules:\n      - event_type: X\n        event_name: Y\n        policy: {kind: BOGUS}\n"))
	require.NoError(t, err)
	_, err = f.loader.Load(context.Background(), file)
	assert.ErrorIs(t, err, earning.ErrInvalidPolicy)

	file, err = Parse([]byte("tenants:\n  - id: acme\n    rewards:\n      - id: mug\n        points_cost: 1\n        quantity: -1\n"))
	require.NoError(t, err)
	_, err = f.loader.Load(context.Background(), file)
	assert.ErrorIs(t, err, reward.ErrInvalidQuantity)
}

// Test 4: 從檔案載入
func TestLoader_LoadFile(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	summary, err := f.loader.LoadFile(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, 2, summary.Tenants)
	_, err = f.loader.LoadFile(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
