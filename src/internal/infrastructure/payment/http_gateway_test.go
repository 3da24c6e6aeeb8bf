package payment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jackyeh168/loyalty_engine/src/internal/domain/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	path           string
	idempotencyKey string
	authorization  string
	form           map[string]string
}

func newTestServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*HTTPGateway, *[]recordedRequest) {
	t.Helper()
	var mu sync.Mutex
	var requests []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		form := make(map[string]string)
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		mu.Lock()
		requests = append(requests, recordedRequest{
			path:           r.URL.Path,
			idempotencyKey: r.Header.Get("Idempotency-Key"),
			authorization:  r.Header.Get("Authorization"),
			form:           form,
		})
		mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	gw, err := NewHTTPGateway(HTTPGatewayOptions{BaseURL: srv.URL, APIKey: "sk_test_123"})
	require.NoError(t, err)
	return gw, &requests
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// Test 1: 授權請求帶金額、幣別、metadata 與冪等鍵
func TestHTTPGateway_Authorize_Success(t *testing.T) {
	// Arrange
	gw, requests := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"id":"pi_123","client_secret":"pi_123_secret","status":"requires_capture"}`)
	})

	// Act
	auth, err := gw.Authorize(context.Background(), payment.AuthorizationRequest{
		Amount:         1250,
		Currency:       "USD",
		IdempotencyKey: "redemption-1",
		Metadata:       map[string]string{"reward_id": "mug", "tenant_id": "acme"},
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "pi_123", auth.Handle)
	assert.Equal(t, "pi_123_secret", auth.ClientToken)

	require.Len(t, *requests, 1)
	req := (*requests)[0]
	assert.Equal(t, "/v1/payment_intents", req.path)
	assert.Equal(t, "redemption-1", req.idempotencyKey)
	assert.Equal(t, "Bearer sk_test_123", req.authorization)
	assert.Equal(t, "1250", req.form["amount"])
	assert.Equal(t, "usd", req.form["currency"])
	assert.Equal(t, "manual", req.form["capture_method"])
	assert.Equal(t, "mug", req.form["metadata[reward_id]"])
}

// Test 2: 402 / card_error → ErrDeclined
func TestHTTPGateway_Authorize_Declined(t *testing.T) {
	gw, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusPaymentRequired, `{"error":{"type":"card_error","code":"card_declined","message":"Your card was declined."}}`)
	})

	_, err := gw.Authorize(context.Background(), payment.AuthorizationRequest{
		Amount: 100, Currency: "usd", IdempotencyKey: "k",
	})

	assert.ErrorIs(t, err, payment.ErrDeclined)
}

// Test 3: 5xx 與 429 → ErrGatewayUnavailable
func TestHTTPGateway_ServerErrors_AreUnavailable(t *testing.T) {
	for _, status := range []int{http.StatusInternalServerError, http.StatusBadGateway, http.StatusTooManyRequests} {
		gw, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, status, `{"error":{"type":"api_error","message":"boom"}}`)
		})

		err := gw.Capture(context.Background(), "pi_1")

		assert.ErrorIs(t, err, payment.ErrGatewayUnavailable, "status %d", status)
	}
}

// Test 4: 逾時 → ErrGatewayUnavailable
func TestHTTPGateway_Timeout(t *testing.T) {
	gw, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := gw.Authorize(ctx, payment.AuthorizationRequest{Amount: 100, Currency: "usd", IdempotencyKey: "k"})

	assert.ErrorIs(t, err, payment.ErrGatewayUnavailable)
}

// Test 5: Capture / Void 路徑與冪等鍵
func TestHTTPGateway_CaptureAndVoid_Paths(t *testing.T) {
	gw, requests := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"id":"pi_9","status":"succeeded"}`)
	})

	require.NoError(t, gw.Capture(context.Background(), "pi_9"))
	require.NoError(t, gw.Void(context.Background(), "pi_9"))

	require.Len(t, *requests, 2)
	assert.Equal(t, "/v1/payment_intents/pi_9/capture", (*requests)[0].path)
	assert.Equal(t, "pi_9:capture", (*requests)[0].idempotencyKey)
	assert.Equal(t, "/v1/payment_intents/pi_9/cancel", (*requests)[1].path)
	assert.Equal(t, "pi_9:cancel", (*requests)[1].idempotencyKey)
}

// Test 6: 作廢已作廢的授權視為成功；未知授權 → ErrUnknownHandle
func TestHTTPGateway_Void_AlreadyCanceledAndUnknown(t *testing.T) {
	gw, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/payment_intents/pi_gone/cancel" {
			writeJSON(w, http.StatusNotFound, `{"error":{"type":"invalid_request_error","code":"resource_missing"}}`)
			return
		}
		writeJSON(w, http.StatusBadRequest, `{"error":{"type":"invalid_request_error","code":"payment_intent_unexpected_state"}}`)
	})

	assert.NoError(t, gw.Void(context.Background(), "pi_done"))
	assert.ErrorIs(t, gw.Void(context.Background(), "pi_gone"), payment.ErrUnknownHandle)
}

// Test 7: 缺少 API key 或無效請求
func TestHTTPGateway_InvalidInput(t *testing.T) {
	_, err := NewHTTPGateway(HTTPGatewayOptions{})
	assert.Error(t, err)

	gw, requests := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{}`)
	})
	_, err = gw.Authorize(context.Background(), payment.AuthorizationRequest{Amount: 0, Currency: "usd", IdempotencyKey: "k"})
	assert.ErrorIs(t, err, payment.ErrInvalidRequest)
	assert.Empty(t, *requests)
}
