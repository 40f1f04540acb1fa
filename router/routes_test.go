package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/mstgnz/telepay/handler"
	"github.com/mstgnz/telepay/infra/config"
	"github.com/mstgnz/telepay/infra/response"
	"github.com/mstgnz/telepay/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGateway struct{}

func (stubGateway) FabricToken(ctx context.Context) (*provider.FabricToken, error) {
	return &provider.FabricToken{Token: "Bearer fabric"}, nil
}

func (stubGateway) CheckoutURL(ctx context.Context, req provider.CheckoutRequest) (*provider.CheckoutResponse, error) {
	return &provider.CheckoutResponse{CheckoutURL: "https://pay.example.com/?prepay_id=P1", MerchOrderID: "1", PrepayID: "P1"}, nil
}

func (stubGateway) QueryOrder(ctx context.Context, merchOrderID string) (*provider.OrderStatus, error) {
	return &provider.OrderStatus{MerchOrderID: merchOrderID, Status: provider.StatusPending}, nil
}

func (stubGateway) ParseNotification(body []byte) (*provider.Notification, error) {
	var n provider.Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return nil, provider.ErrInvalidRequest
	}
	n.Status = provider.StatusFromTradeStatus(n.TradeStatus)
	return &n, nil
}

func (stubGateway) KeyLoaded() bool { return true }

func newTestRouter(t *testing.T, apiKey string, whitelist []string) http.Handler {
	t.Helper()
	gw := stubGateway{}
	return New(Options{
		Payments:    handler.NewPaymentHandler(gw, provider.NewValidator(), nil),
		Health:      handler.NewHealthHandler(gw.KeyLoaded, nil, false, "test", "1.0.0"),
		APIKey:      apiKey,
		IPWhitelist: whitelist,
	})
}

func TestRoutes(t *testing.T) {
	r := chi.NewRouter()
	assert.NotPanics(t, func() {
		Routes(r, handler.NewPaymentHandler(stubGateway{}, provider.NewValidator(), nil))
	})

	var patterns []string
	require.NoError(t, chi.Walk(r, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		patterns = append(patterns, method+" "+route)
		return nil
	}))
	assert.ElementsMatch(t, []string{
		"POST /auth",
		"POST /checkout-url",
		"GET /query-order/{id}",
		"GET /notifications/{id}",
	}, patterns)
}

func TestNew(t *testing.T) {
	tests := []struct {
		name           string
		method         string
		path           string
		body           string
		contentType    string
		token          string
		expectedStatus int
	}{
		{"health needs no auth", http.MethodGet, "/health", "", "", "", http.StatusOK},
		{"auth requires token", http.MethodPost, "/auth", "", "", "", http.StatusUnauthorized},
		{"auth with token", http.MethodPost, "/auth", "", "", "secret", http.StatusOK},
		{"wrong token", http.MethodPost, "/auth", "", "", "nope", http.StatusUnauthorized},
		{"checkout url", http.MethodPost, "/checkout-url", `{"title":"Coffee","amount":"12.50"}`, "application/json", "secret", http.StatusOK},
		{"checkout url rejects form", http.MethodPost, "/checkout-url", "title=Coffee", "application/x-www-form-urlencoded", "secret", http.StatusUnsupportedMediaType},
		{"query order", http.MethodGet, "/query-order/1700000000001", "", "", "secret", http.StatusOK},
		{"notifications without journal", http.MethodGet, "/notifications/1700000000001", "", "", "secret", http.StatusServiceUnavailable},
		{"webhook needs no auth", http.MethodPost, "/webhooks/payment", `{"merch_order_id":"1","trade_status":"Completed"}`, "application/json", "", http.StatusOK},
		{"unknown route", http.MethodGet, "/v1/payments", "", "", "secret", http.StatusNotFound},
		{"wrong method", http.MethodGet, "/checkout-url", "", "", "secret", http.StatusMethodNotAllowed},
	}

	r := newTestRouter(t, "secret", nil)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

			var resp response.Response
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.Equal(t, tt.expectedStatus, resp.Code)
		})
	}
}

func TestNew_WebhookWhitelist(t *testing.T) {
	r := newTestRouter(t, "", []string{"10.0.0.0/8"})

	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(`{"merch_order_id":"1"}`))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "192.168.1.5:4000"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(`{"merch_order_id":"1"}`))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "10.1.2.3:4000"
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// the whitelist only guards webhooks
	req = httptest.NewRequest(http.MethodPost, "/auth", nil)
	req.RemoteAddr = "192.168.1.5:4000"
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNewDebug(t *testing.T) {
	r := NewDebug(handler.NewDebugHandler(nil, &config.AppConfig{Port: "8080", APIKey: "k"}), "k")

	tests := []struct {
		name           string
		method         string
		path           string
		body           string
		token          string
		expectedStatus int
	}{
		{"config", http.MethodGet, "/debug/config", "", "k", http.StatusOK},
		{"config without token", http.MethodGet, "/debug/config", "", "", http.StatusUnauthorized},
		{"sign without token", http.MethodPost, "/debug/sign", `{"params":{"appid":"A"}}`, "", http.StatusUnauthorized},
		{"sign with wrong token", http.MethodPost, "/debug/sign", `{"params":{"appid":"A"}}`, "nope", http.StatusUnauthorized},
		{"sign without key", http.MethodPost, "/debug/sign", `{"params":{"appid":"A"}}`, "k", http.StatusServiceUnavailable},
		{"verify without sign", http.MethodPost, "/debug/verify", `{"params":{"appid":"A"}}`, "k", http.StatusBadRequest},
		{"payment routes absent", http.MethodGet, "/checkout-url", "", "k", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.body != "" {
				req.Header.Set("Content-Type", "application/json")
			}
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestNewDebug_BodyLimits(t *testing.T) {
	r := NewDebug(handler.NewDebugHandler(nil, nil), "k")

	req := httptest.NewRequest(http.MethodPost, "/debug/sign", strings.NewReader("params=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer k")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/debug/sign", strings.NewReader(`{"params":{}}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer k")
	req.ContentLength = 2 << 20
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
