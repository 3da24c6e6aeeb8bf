package tenant

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ===========================
// Registry 介面
// ===========================

// Registry 已開通租戶的登記表（唯讀）
//
// 實作：
// - infrastructure/persistence/tenant：GORM
// - StaticRegistry：記憶體（開發與測試）
//
// 找不到租戶時返回 ErrUnknownTenant。
type Registry interface {
	FindTenant(ctx context.Context, id TenantID) (*Record, error)
}

// ===========================
// Resolver
// ===========================

// Resolver 租戶上下文解析器
//
// 在任何帳本操作之前驗證租戶；成功時產生 Tenant handle。
type Resolver struct {
	registry Registry
}

// NewResolver 建立 Resolver
func NewResolver(registry Registry) *Resolver {
	return &Resolver{registry: registry}
}

// Resolve 驗證原始租戶 ID
//
// 錯誤：
// - ErrMissingTenant：空字串或格式無效
// - ErrUnknownTenant：未登記或已停用
// - 其他：Registry 失敗（一般服務錯誤）
func (r *Resolver) Resolve(ctx context.Context, raw string) (Tenant, error) {
	id, err := TenantIDFromString(raw)
	if err != nil {
		return Tenant{}, err
	}

	record, err := r.registry.FindTenant(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUnknownTenant) {
			return Tenant{}, err
		}
		return Tenant{}, fmt.Errorf("failed to look up tenant: %w", err)
	}

	if !record.Active {
		return Tenant{}, ErrUnknownTenant.WithContext(
			"tenant_id", id.String(),
			"reason", "tenant is inactive",
		)
	}

	return Tenant{id: record.ID, name: record.Name}, nil
}

// ResolveFor 驗證租戶並比對已驗證身分所屬的租戶
//
// authenticated 為空時等同 Resolve（例如內部呼叫）。
func (r *Resolver) ResolveFor(ctx context.Context, raw, authenticated string) (Tenant, error) {
	t, err := r.Resolve(ctx, raw)
	if err != nil {
		return Tenant{}, err
	}
	if authenticated != "" && authenticated != t.ID().String() {
		return Tenant{}, ErrTenantMismatch.WithContext(
			"request_tenant", t.ID().String(),
			"authenticated_tenant", authenticated,
		)
	}
	return t, nil
}

// ===========================
// StaticRegistry（記憶體實作）
// ===========================

// StaticRegistry 記憶體租戶登記表
type StaticRegistry struct {
	mu      sync.RWMutex
	tenants map[TenantID]Record
}

// NewStaticRegistry 以啟用中的租戶 ID 建立登記表
func NewStaticRegistry(ids ...string) *StaticRegistry {
	reg := &StaticRegistry{tenants: make(map[TenantID]Record)}
	for _, raw := range ids {
		_ = reg.Register(raw, raw, true)
	}
	return reg
}

// Register 登記（或覆寫）租戶
func (s *StaticRegistry) Register(rawID, name string, active bool) error {
	id, err := TenantIDFromString(rawID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants[id] = Record{ID: id, Name: name, Active: active}
	return nil
}

// FindTenant 實作 Registry
func (s *StaticRegistry) FindTenant(_ context.Context, id TenantID) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.tenants[id]
	if !ok {
		return nil, ErrUnknownTenant.WithContext("tenant_id", id.String())
	}
	return &record, nil
}
