package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the normalized state of a gateway order
type PaymentStatus string

const (
	StatusPending    PaymentStatus = "pending"
	StatusSuccessful PaymentStatus = "successful"
	StatusFailed     PaymentStatus = "failed"
	StatusCancelled  PaymentStatus = "cancelled"
	StatusUnknown    PaymentStatus = "unknown"
)

// StatusFromTradeStatus maps a gateway trade_status value to a PaymentStatus
func StatusFromTradeStatus(tradeStatus string) PaymentStatus {
	switch tradeStatus {
	case "Completed", "SUCCESS", "Success", "PAY_SUCCESS":
		return StatusSuccessful
	case "Paying", "Pending", "PAY_PENDING", "WAIT_PAY":
		return StatusPending
	case "Failure", "Failed", "FAIL", "PAY_FAILED", "Expired", "EXPIRED":
		return StatusFailed
	case "Canceled", "Cancelled", "CLOSED":
		return StatusCancelled
	default:
		return StatusUnknown
	}
}

// Amount is a decimal amount as the gateway expects it ("10", "10.50").
// JSON numbers are accepted and kept verbatim.
type Amount string

// UnmarshalJSON accepts both "12.50" and 12.50
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Amount(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("amount must be a string or number: %w", err)
	}
	*a = Amount(n.String())
	return nil
}

// Decimal returns the exact value of the amount
func (a Amount) Decimal() (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimSpace(string(a)))
}

// CheckoutRequest is what a merchant backend sends to start a checkout
type CheckoutRequest struct {
	Title  string `json:"title" validate:"required,max=256"`
	Amount Amount `json:"amount" validate:"required,amount"`
}

// Normalized trims surrounding whitespace so the validated values are the ones sent
func (r CheckoutRequest) Normalized() CheckoutRequest {
	r.Title = strings.TrimSpace(r.Title)
	r.Amount = Amount(strings.TrimSpace(string(r.Amount)))
	return r
}

// CheckoutResponse carries the hosted checkout URL for the customer
type CheckoutResponse struct {
	CheckoutURL  string `json:"checkout_url"`
	MerchOrderID string `json:"merch_order_id"`
	PrepayID     string `json:"prepay_id"`
}

// FabricToken is the bearer token issued by the gateway token endpoint
type FabricToken struct {
	Token          string `json:"token"`
	EffectiveDate  string `json:"effectiveDate"`
	ExpirationDate string `json:"expirationDate"`
}

// OrderStatus is the result of an order query
type OrderStatus struct {
	MerchOrderID   string         `json:"merch_order_id"`
	PaymentOrderID string         `json:"payment_order_id,omitempty"`
	TradeStatus    string         `json:"trade_status,omitempty"`
	TotalAmount    string         `json:"total_amount,omitempty"`
	TransCurrency  string         `json:"trans_currency,omitempty"`
	TransTime      string         `json:"trans_time,omitempty"`
	Status         PaymentStatus  `json:"status"`
	Raw            map[string]any `json:"raw,omitempty"`
}

// Notification is the webhook body the gateway posts when an order changes state
type Notification struct {
	NotifyURL      string        `json:"notify_url"`
	AppID          string        `json:"appid"`
	NotifyTime     string        `json:"notify_time"`
	MerchCode      string        `json:"merch_code"`
	MerchOrderID   string        `json:"merch_order_id"`
	PaymentOrderID string        `json:"payment_order_id"`
	TotalAmount    Amount        `json:"total_amount"`
	TransID        string        `json:"trans_id"`
	TransCurrency  string        `json:"trans_currency"`
	TradeStatus    string        `json:"trade_status"`
	TransEndTime   string        `json:"trans_end_time"`
	Sign           string        `json:"sign"`
	SignType       string        `json:"sign_type"`
	Status         PaymentStatus `json:"status"`
}

// PaymentGateway is the set of operations the HTTP layer needs from a gateway
type PaymentGateway interface {
	FabricToken(ctx context.Context) (*FabricToken, error)
	CheckoutURL(ctx context.Context, req CheckoutRequest) (*CheckoutResponse, error)
	QueryOrder(ctx context.Context, merchOrderID string) (*OrderStatus, error)
	ParseNotification(body []byte) (*Notification, error)
	KeyLoaded() bool
}
