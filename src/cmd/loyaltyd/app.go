package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	earningapp "github.com/jackyeh168/loyalty_engine/src/internal/application/earning"
	"github.com/jackyeh168/loyalty_engine/src/internal/application/inventory"
	"github.com/jackyeh168/loyalty_engine/src/internal/application/ledger"
	redemptionapp "github.com/jackyeh168/loyalty_engine/src/internal/application/redemption"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/payment"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/tenant"
	"github.com/jackyeh168/loyalty_engine/src/internal/infrastructure/config"
	"github.com/jackyeh168/loyalty_engine/src/internal/infrastructure/events"
	"github.com/jackyeh168/loyalty_engine/src/internal/infrastructure/httpapi"
	"github.com/jackyeh168/loyalty_engine/src/internal/infrastructure/metrics"
	paymentgw "github.com/jackyeh168/loyalty_engine/src/internal/infrastructure/payment"
	"github.com/jackyeh168/loyalty_engine/src/internal/infrastructure/persistence"
	earningdb "github.com/jackyeh168/loyalty_engine/src/internal/infrastructure/persistence/earning"
	ledgerdb "github.com/jackyeh168/loyalty_engine/src/internal/infrastructure/persistence/ledger"
	redemptiondb "github.com/jackyeh168/loyalty_engine/src/internal/infrastructure/persistence/redemption"
	rewarddb "github.com/jackyeh168/loyalty_engine/src/internal/infrastructure/persistence/reward"
	"github.com/jackyeh168/loyalty_engine/src/internal/infrastructure/persistence/schema"
	tenantdb "github.com/jackyeh168/loyalty_engine/src/internal/infrastructure/persistence/tenant"
	"github.com/jackyeh168/loyalty_engine/src/internal/infrastructure/seed"
	"gorm.io/gorm"
)

// app 組裝完成的服務元件
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *gorm.DB

	collector   *metrics.Collector
	tenants     *tenantdb.Registry
	resolver    *tenant.Resolver
	ledger      *ledger.Service
	apply       *earningapp.ApplyRuleUseCase
	purchases   *earningapp.RecordPurchaseUseCase
	coordinator *redemptionapp.Coordinator
	sweeper     *redemptionapp.Sweeper
	seeder      *seed.Loader
}

// newApp 開啟資料庫、建立資料表並組裝所有元件
func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	db, err := persistence.Open(persistence.Options{DSN: cfg.Database.DSN, LogSQL: cfg.Database.LogSQL})
	if err != nil {
		return nil, err
	}
	if err := schema.Migrate(db); err != nil {
		persistence.Close(db)
		return nil, err
	}

	gateway, err := newGateway(cfg.Payment)
	if err != nil {
		persistence.Close(db)
		return nil, err
	}

	txManager := persistence.NewGORMTransactionManager(db)
	collector := metrics.NewCollector()
	publisher := metrics.NewCountingPublisher(collector, events.NewLogPublisher(logger, slog.LevelDebug))

	tenants := tenantdb.NewRegistry(db)
	resolver := tenant.NewResolver(tenants)
	rewards := rewarddb.NewRepository(db)
	rules := earningdb.NewRepository(db)
	redemptions := redemptiondb.NewRepository(db)

	ledgerService := ledger.NewService(ledgerdb.NewRepository(db), txManager, ledger.Options{
		Publisher: publisher,
		Logger:    logger,
	})
	apply := earningapp.NewApplyRuleUseCase(rules, ledgerService, txManager)

	coordinator := redemptionapp.NewCoordinator(
		redemptions,
		rewards,
		ledgerService,
		inventory.NewTracker(rewards, txManager),
		gateway,
		txManager,
		redemptionapp.Options{
			PaymentTimeout: cfg.Payment.Timeout,
			Logger:         logger,
			Metrics:        collector,
			Publisher:      publisher,
		},
	)
	sweeper := redemptionapp.NewSweeper(coordinator, redemptions, txManager, tenants, resolver, redemptionapp.SweeperOptions{
		StaleAfter:  cfg.Redemption.StaleAfter,
		Concurrency: cfg.Sweep.Concurrency,
		BatchSize:   cfg.Sweep.BatchSize,
		Logger:      logger,
		Metrics:     collector,
	})

	return &app{
		cfg:         cfg,
		logger:      logger,
		db:          db,
		collector:   collector,
		tenants:     tenants,
		resolver:    resolver,
		ledger:      ledgerService,
		apply:       apply,
		purchases:   earningapp.NewRecordPurchaseUseCase(apply),
		coordinator: coordinator,
		sweeper:     sweeper,
		seeder:      seed.NewLoader(tenants, rewards, rules, txManager),
	}, nil
}

func newGateway(cfg config.PaymentConfig) (payment.Gateway, error) {
	switch cfg.Provider {
	case config.PaymentProviderHTTP:
		gateway, err := paymentgw.NewHTTPGateway(paymentgw.HTTPGatewayOptions{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Client:  &http.Client{Timeout: cfg.Timeout},
		})
		if err != nil {
			return nil, err
		}
		return gateway, nil
	case config.PaymentProviderMemory:
		return paymentgw.NewMemoryGateway(), nil
	}
	return nil, fmt.Errorf("unknown payment provider %q", cfg.Provider)
}

// seed 載入設定中的種子檔
func (a *app) seed(ctx context.Context) error {
	if a.cfg.SeedFile == "" {
		return nil
	}
	summary, err := a.seeder.LoadFile(ctx, a.cfg.SeedFile)
	if err != nil {
		return err
	}
	a.logger.Info("seed loaded",
		"file", a.cfg.SeedFile,
		"tenants", summary.Tenants,
		"rewards", summary.Rewards,
		"rules", summary.Rules,
	)
	return nil
}

// router HTTP 路由
func (a *app) router() http.Handler {
	return httpapi.NewRouter(httpapi.Deps{
		Tenants:     a.resolver,
		Events:      a.apply,
		Purchases:   a.purchases,
		Redemptions: a.coordinator,
		Ledger:      a.ledger,
		Metrics:     a.collector.Handler(),
		Health: func(context.Context) error {
			return persistence.Ping(a.db)
		},
		CORSOrigins: a.cfg.Server.CORSOrigins,
		Logger:      a.logger,
	})
}

func (a *app) close() {
	if err := persistence.Close(a.db); err != nil {
		a.logger.Warn("failed to close database", "error", err)
	}
}
