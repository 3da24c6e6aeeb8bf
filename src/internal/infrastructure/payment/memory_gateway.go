package payment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackyeh168/loyalty_engine/src/internal/domain/payment"
)

// IntentStatus 記憶體閘道中的授權狀態
type IntentStatus string

const (
	StatusAuthorized IntentStatus = "authorized"
	StatusCaptured   IntentStatus = "captured"
	StatusVoided     IntentStatus = "voided"
)

type intent struct {
	handle   string
	token    string
	amount   int64
	currency string
	metadata map[string]string
	status   IntentStatus
}

// ===========================
// MemoryGateway（開發與測試）
// ===========================

// MemoryGateway 記憶體支付閘道
//
// 以冪等鍵去重授權；可設定下一次或持續的失敗，模擬拒絕、逾時與閘道錯誤。
type MemoryGateway struct {
	mu      sync.Mutex
	seq     int
	byKey   map[string]*intent
	byID    map[string]*intent
	calls   map[string]int
	failing map[string]error
	delay   time.Duration
}

// NewMemoryGateway 創建記憶體支付閘道
func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{
		byKey:   make(map[string]*intent),
		byID:    make(map[string]*intent),
		calls:   make(map[string]int),
		failing: make(map[string]error),
	}
}

// FailWith 讓指定操作（"authorize" / "capture" / "void"）持續返回 err；err 為 nil 時恢復
func (g *MemoryGateway) FailWith(operation string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err == nil {
		delete(g.failing, operation)
		return
	}
	g.failing[operation] = err
}

// SetDelay 每次呼叫前等待 d（或直到 ctx 結束）
func (g *MemoryGateway) SetDelay(d time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.delay = d
}

// Calls 指定操作被呼叫的次數
func (g *MemoryGateway) Calls(operation string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[operation]
}

// Status 授權目前狀態
func (g *MemoryGateway) Status(handle string) (IntentStatus, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	in, ok := g.byID[handle]
	if !ok {
		return "", false
	}
	return in.status, true
}

// Amount 授權金額（最小貨幣單位）與幣別
func (g *MemoryGateway) Amount(handle string) (int64, string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	in, ok := g.byID[handle]
	if !ok {
		return 0, ""
	}
	return in.amount, in.currency
}

// Metadata 授權請求附帶的 metadata
func (g *MemoryGateway) Metadata(handle string) map[string]string {
	g.mu.Lock()
	defer g.mu.Unlock()
	in, ok := g.byID[handle]
	if !ok {
		return nil
	}
	out := make(map[string]string, len(in.metadata))
	for k, v := range in.metadata {
		out[k] = v
	}
	return out
}

// Authorize 實作 payment.Gateway
func (g *MemoryGateway) Authorize(ctx context.Context, req payment.AuthorizationRequest) (payment.Authorization, error) {
	if err := g.begin(ctx, "authorize"); err != nil {
		return payment.Authorization{}, err
	}
	if req.Amount <= 0 || req.Currency == "" || req.IdempotencyKey == "" {
		return payment.Authorization{}, payment.ErrInvalidRequest.WithContext("amount", req.Amount, "currency", req.Currency)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if in, ok := g.byKey[req.IdempotencyKey]; ok {
		return payment.Authorization{Handle: in.handle, ClientToken: in.token}, nil
	}

	g.seq++
	in := &intent{
		handle:   fmt.Sprintf("pi_mem_%d", g.seq),
		amount:   req.Amount,
		currency: req.Currency,
		metadata: req.Metadata,
		status:   StatusAuthorized,
	}
	in.token = in.handle + "_secret"
	g.byKey[req.IdempotencyKey] = in
	g.byID[in.handle] = in
	return payment.Authorization{Handle: in.handle, ClientToken: in.token}, nil
}

// Capture 實作 payment.Gateway
func (g *MemoryGateway) Capture(ctx context.Context, handle string) error {
	if err := g.begin(ctx, "capture"); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	in, ok := g.byID[handle]
	if !ok {
		return payment.ErrUnknownHandle.WithContext("handle", handle)
	}
	switch in.status {
	case StatusCaptured:
		return nil
	case StatusVoided:
		return payment.ErrInvalidRequest.WithContext("handle", handle, "status", string(in.status))
	}
	in.status = StatusCaptured
	return nil
}

// Void 實作 payment.Gateway；重複作廢是 no-op
func (g *MemoryGateway) Void(ctx context.Context, handle string) error {
	if err := g.begin(ctx, "void"); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	in, ok := g.byID[handle]
	if !ok {
		return payment.ErrUnknownHandle.WithContext("handle", handle)
	}
	switch in.status {
	case StatusVoided:
		return nil
	case StatusCaptured:
		return payment.ErrInvalidRequest.WithContext("handle", handle, "status", string(in.status))
	}
	in.status = StatusVoided
	return nil
}

// begin 記錄呼叫、套用延遲與預設失敗
func (g *MemoryGateway) begin(ctx context.Context, operation string) error {
	g.mu.Lock()
	g.calls[operation]++
	delay := g.delay
	failure := g.failing[operation]
	g.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return payment.ErrGatewayUnavailable.WithContext("operation", operation, "cause", ctx.Err().Error())
		}
	}
	if err := ctx.Err(); err != nil {
		return payment.ErrGatewayUnavailable.WithContext("operation", operation, "cause", err.Error())
	}
	return failure
}
