// Package httpapi 對外 HTTP 介面
//
// 路由：
//
//	POST /api/events                            業務事件 → 積分規則
//	POST /api/transactions                      消費交易 → (TRANSACTION, PURCHASE) 規則
//	POST /api/redemptions                       兌換（冪等鍵：body 或 Idempotency-Key header）
//	GET  /api/redemptions/{id}                  兌換狀態
//	POST /api/redemptions/{id}/cancel           取消兌換
//	GET  /api/customers/{customerID}/balance    顧客餘額
//	GET  /api/customers/{customerID}/entries    顧客分錄（?limit=）
//	GET  /healthz                               健康檢查
//	GET  /metrics                               Prometheus 指標
//
// /api 下所有路由都需要 X-Tenant-ID。
package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Deps 路由依賴
type Deps struct {
	Tenants     TenantResolver
	Events      EventApplier
	Purchases   PurchaseRecorder
	Redemptions RedemptionService
	Ledger      LedgerReader

	// Metrics /metrics 處理器；nil 時不掛載
	Metrics http.Handler
	// Health 健康檢查（例如資料庫 Ping）；nil 時永遠回報 ok
	Health func(ctx context.Context) error
	// Authenticate 取出已驗證身分所屬的租戶；nil 時不比對
	Authenticate func(*http.Request) string

	CORSOrigins []string
	Logger      *slog.Logger
}

// NewRouter 建立路由
func NewRouter(deps Deps) *chi.Mux {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	origins := deps.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	h := &Handler{
		events:      deps.Events,
		purchases:   deps.Purchases,
		redemptions: deps.Redemptions,
		ledger:      deps.Ledger,
		health:      deps.Health,
		logger:      logger,
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", TenantHeader, IdempotencyKeyHeader},
		MaxAge:         300,
	}))

	r.Get("/healthz", h.Health)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(tenantMiddleware(deps.Tenants, deps.Authenticate, logger))

		r.Post("/events", h.ApplyEvent)
		r.Post("/transactions", h.RecordPurchase)

		r.Route("/redemptions", func(r chi.Router) {
			r.Post("/", h.Redeem)
			r.Get("/{id}", h.GetRedemption)
			r.Post("/{id}/cancel", h.CancelRedemption)
		})

		r.Route("/customers/{customerID}", func(r chi.Router) {
			r.Get("/balance", h.GetBalance)
			r.Get("/entries", h.GetEntries)
		})
	})

	return r
}
