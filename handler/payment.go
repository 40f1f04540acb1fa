package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/mstgnz/telepay/infra/journal"
	"github.com/mstgnz/telepay/infra/logger"
	"github.com/mstgnz/telepay/infra/response"
	"github.com/mstgnz/telepay/provider"
	"github.com/mstgnz/telepay/provider/telebirr"
	"github.com/mstgnz/telepay/signer"
)

// NotificationStore keeps received webhook bodies, implemented by *journal.SQLiteJournal
type NotificationStore interface {
	RecordNotification(ctx context.Context, n journal.Notification) (int64, error)
	Notifications(ctx context.Context, merchOrderID string) ([]journal.Notification, error)
}

// PaymentHandler handles payment related HTTP requests
type PaymentHandler struct {
	gateway       provider.PaymentGateway
	validate      *validator.Validate
	notifications NotificationStore
}

// NewPaymentHandler creates a new payment handler. notifications may be nil.
func NewPaymentHandler(gateway provider.PaymentGateway, validate *validator.Validate, notifications NotificationStore) *PaymentHandler {
	return &PaymentHandler{
		gateway:       gateway,
		validate:      validate,
		notifications: notifications,
	}
}

// Auth fetches a fabric token from the gateway
func (h *PaymentHandler) Auth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	token, err := h.gateway.FabricToken(ctx)
	if err != nil {
		writeError(w, r, "Failed to obtain fabric token", err)
		return
	}

	response.Success(w, http.StatusOK, "Fabric token obtained", token)
}

// CheckoutURL creates a preorder and returns the hosted checkout URL
func (h *PaymentHandler) CheckoutURL(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	var req provider.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	req = req.Normalized()

	if err := provider.ValidateCheckoutRequest(h.validate, req); err != nil {
		response.Error(w, http.StatusBadRequest, "Validation error", err)
		return
	}

	resp, err := h.gateway.CheckoutURL(ctx, req)
	if err != nil {
		writeError(w, r, "Failed to create checkout URL", err)
		return
	}

	response.Success(w, http.StatusOK, "Checkout URL created", resp)
}

// QueryOrder returns the gateway state of a merchant order
func (h *PaymentHandler) QueryOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	merchOrderID := chi.URLParam(r, "id")
	if merchOrderID == "" {
		response.Error(w, http.StatusBadRequest, "Missing order ID", nil)
		return
	}

	status, err := h.gateway.QueryOrder(ctx, merchOrderID)
	if err != nil {
		writeError(w, r, "Failed to query order", err)
		return
	}

	response.Success(w, http.StatusOK, "Order status retrieved", status)
}

// HandleWebhook receives payment notifications from the gateway.
// Both JSON and form-urlencoded bodies are accepted.
func (h *PaymentHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	body, err := webhookBody(r)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			response.Error(w, http.StatusRequestEntityTooLarge, "Request body too large", nil)
			return
		}
		response.Error(w, http.StatusBadRequest, "Invalid notification body", err)
		return
	}

	n, err := h.gateway.ParseNotification(body)
	if err != nil {
		writeError(w, r, "Invalid notification", err)
		return
	}

	logger.WithProvider("telebirr").
		SetRequestID(middleware.GetReqID(r.Context())).
		AddField("merch_order_id", n.MerchOrderID).
		AddField("payment_order_id", n.PaymentOrderID).
		AddField("trade_status", n.TradeStatus).
		AddField("status", string(n.Status)).
		Info("Payment notification received")

	if h.notifications != nil {
		_, err := h.notifications.RecordNotification(ctx, journal.Notification{
			MerchOrderID:   n.MerchOrderID,
			PaymentOrderID: n.PaymentOrderID,
			TradeStatus:    n.TradeStatus,
			Payload:        string(body),
		})
		if err != nil {
			logger.Error("Failed to journal notification", err, logger.LogContext{
				Fields: map[string]any{"merch_order_id": n.MerchOrderID},
			})
		}
	}

	response.Success(w, http.StatusOK, "Notification received", map[string]any{
		"merch_order_id": n.MerchOrderID,
		"status":         n.Status,
	})
}

// ListNotifications returns the journaled notifications of a merchant order
func (h *PaymentHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	if h.notifications == nil {
		response.Error(w, http.StatusServiceUnavailable, "Notification journal is disabled", nil)
		return
	}

	merchOrderID := chi.URLParam(r, "id")
	if merchOrderID == "" {
		response.Error(w, http.StatusBadRequest, "Missing order ID", nil)
		return
	}

	list, err := h.notifications.Notifications(ctx, merchOrderID)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to load notifications", err)
		return
	}
	if list == nil {
		list = []journal.Notification{}
	}

	response.Success(w, http.StatusOK, "Notifications retrieved", list)
}

// webhookBody returns the notification as JSON bytes
func webhookBody(r *http.Request) ([]byte, error) {
	if strings.Contains(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
		fields := make(map[string]string, len(r.PostForm))
		for k := range r.PostForm {
			fields[k] = r.PostForm.Get(k)
		}
		return json.Marshal(fields)
	}
	return io.ReadAll(r.Body)
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return http.StatusGatewayTimeout
	case errors.Is(err, provider.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, signer.ErrKeyUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, signer.ErrSigningFailure):
		return http.StatusInternalServerError
	case errors.Is(err, telebirr.ErrGateway):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error(message, err, logger.LogContext{
			Provider:  "telebirr",
			RequestID: middleware.GetReqID(r.Context()),
			Fields:    map[string]any{"path": r.URL.Path, "status": status},
		})
	}
	response.Error(w, status, message, err)
}
