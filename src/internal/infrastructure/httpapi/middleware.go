package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/tenant"
)

// TenantHeader 請求所屬租戶
const TenantHeader = "X-Tenant-ID"

type tenantContextKey struct{}

// TenantResolver 驗證租戶（domain/tenant.Resolver）
type TenantResolver interface {
	ResolveFor(ctx context.Context, raw, authenticated string) (tenant.Tenant, error)
}

// tenantMiddleware 解析 X-Tenant-ID 並放入 context
//
// 缺少 → 400；未知、停用或與已驗證身分不符 → 403。
// authenticate 為 nil 時不比對身分。
func tenantMiddleware(resolver TenantResolver, authenticate func(*http.Request) string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authenticated := ""
			if authenticate != nil {
				authenticated = authenticate(r)
			}

			t, err := resolver.ResolveFor(r.Context(), r.Header.Get(TenantHeader), authenticated)
			if err != nil {
				writeError(w, r, logger, err)
				return
			}

			ctx := context.WithValue(r.Context(), tenantContextKey{}, t)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// tenantFrom 取出已解析的租戶
func tenantFrom(ctx context.Context) tenant.Tenant {
	t, _ := ctx.Value(tenantContextKey{}).(tenant.Tenant)
	return t
}

// requestLogger 以 slog 記錄每個請求
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				level := slog.LevelInfo
				if status >= http.StatusInternalServerError {
					level = slog.LevelWarn
				}
				logger.LogAttrs(r.Context(), level, "http request",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Int("status", status),
					slog.Int("bytes", ww.BytesWritten()),
					slog.Duration("elapsed", time.Since(start)),
					slog.String("request_id", middleware.GetReqID(r.Context())),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
