package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/payment"
)

const (
	DefaultBaseURL = "https://api.stripe.com"

	idempotencyKeyHeader = "Idempotency-Key"
	maxErrorBodyBytes    = 64 << 10
)

// HTTPGatewayOptions HTTP 閘道選項
type HTTPGatewayOptions struct {
	BaseURL string
	APIKey  string
	// Client 預設為 10 秒逾時的 http.Client
	Client *http.Client
}

// ===========================
// HTTPGateway（Stripe 風格 REST API）
// ===========================

// HTTPGateway 以 PaymentIntent（capture_method=manual）實作 payment.Gateway
//
// - Authorize → POST /v1/payment_intents
// - Capture   → POST /v1/payment_intents/{id}/capture
// - Void      → POST /v1/payment_intents/{id}/cancel
//
// 每個請求都帶 Idempotency-Key，重試時閘道返回同一筆結果。
type HTTPGateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPGateway 創建 HTTP 支付閘道
func NewHTTPGateway(opts HTTPGatewayOptions) (*HTTPGateway, error) {
	if opts.APIKey == "" {
		return nil, errors.New("payment gateway API key is required")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if _, err := url.Parse(opts.BaseURL); err != nil {
		return nil, errors.Wrapf(err, "invalid payment gateway base URL %q", opts.BaseURL)
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPGateway{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		client:  opts.Client,
	}, nil
}

type paymentIntent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
}

type apiError struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Authorize 建立手動請款的 PaymentIntent
func (g *HTTPGateway) Authorize(ctx context.Context, req payment.AuthorizationRequest) (payment.Authorization, error) {
	if req.Amount <= 0 || req.Currency == "" || req.IdempotencyKey == "" {
		return payment.Authorization{}, payment.ErrInvalidRequest.WithContext(
			"amount", req.Amount,
			"currency", req.Currency,
		)
	}

	form := url.Values{}
	form.Set("amount", strconv.FormatInt(req.Amount, 10))
	form.Set("currency", strings.ToLower(req.Currency))
	form.Set("capture_method", "manual")
	keys := make([]string, 0, len(req.Metadata))
	for k := range req.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		form.Set(fmt.Sprintf("metadata[%s]", k), req.Metadata[k])
	}

	var intent paymentIntent
	if err := g.post(ctx, "/v1/payment_intents", req.IdempotencyKey, form, &intent); err != nil {
		return payment.Authorization{}, errors.Wrap(err, "authorize payment")
	}
	if intent.ID == "" {
		return payment.Authorization{}, errors.Wrap(
			payment.ErrGatewayUnavailable.WithContext("reason", "response missing payment intent id"),
			"authorize payment",
		)
	}
	return payment.Authorization{Handle: intent.ID, ClientToken: intent.ClientSecret}, nil
}

// Capture 請款
func (g *HTTPGateway) Capture(ctx context.Context, handle string) error {
	if handle == "" {
		return payment.ErrUnknownHandle.WithContext("handle", handle)
	}
	path := "/v1/payment_intents/" + url.PathEscape(handle) + "/capture"
	if err := g.post(ctx, path, handle+":capture", url.Values{}, nil); err != nil {
		return errors.Wrapf(err, "capture payment %s", handle)
	}
	return nil
}

// Void 作廢授權；已作廢的授權視為成功
func (g *HTTPGateway) Void(ctx context.Context, handle string) error {
	if handle == "" {
		return payment.ErrUnknownHandle.WithContext("handle", handle)
	}
	path := "/v1/payment_intents/" + url.PathEscape(handle) + "/cancel"
	err := g.post(ctx, path, handle+":cancel", url.Values{}, nil)
	if errors.Is(err, errAlreadyCanceled) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "void payment %s", handle)
	}
	return nil
}

var errAlreadyCanceled = errors.New("payment intent already canceled")

func (g *HTTPGateway) post(ctx context.Context, path, idempotencyKey string, form url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return errors.Wrapf(payment.ErrInvalidRequest.WithContext("path", path, "cause", err.Error()), "post %s", path)
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(idempotencyKeyHeader, idempotencyKey)

	resp, err := g.client.Do(req)
	if err != nil {
		// 網路錯誤、逾時、取消
		return errors.Wrapf(payment.ErrGatewayUnavailable.WithContext("path", path, "cause", err.Error()), "post %s", path)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errors.Wrapf(payment.ErrGatewayUnavailable.WithContext("path", path, "cause", err.Error()), "decode %s response", path)
		}
		return nil
	}

	return classify(resp, path)
}

// classify 將 HTTP 錯誤回應轉為 payment 領域錯誤
func classify(resp *http.Response, path string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	var apiErr apiError
	_ = json.Unmarshal(body, &apiErr)

	details := []interface{}{
		"path", path,
		"status", resp.StatusCode,
		"code", apiErr.Error.Code,
		"message", apiErr.Error.Message,
	}

	switch {
	case resp.StatusCode == http.StatusPaymentRequired || apiErr.Error.Type == "card_error":
		return payment.ErrDeclined.WithContext(details...)
	case resp.StatusCode == http.StatusNotFound:
		return payment.ErrUnknownHandle.WithContext(details...)
	case apiErr.Error.Code == "payment_intent_unexpected_state" && strings.HasSuffix(path, "/cancel"):
		return errors.Mark(payment.ErrInvalidRequest.WithContext(details...), errAlreadyCanceled)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return payment.ErrGatewayUnavailable.WithContext(details...)
	default:
		return payment.ErrInvalidRequest.WithContext(details...)
	}
}
