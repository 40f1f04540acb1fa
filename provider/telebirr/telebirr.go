package telebirr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mstgnz/telepay/infra/config"
	"github.com/mstgnz/telepay/infra/logger"
	"github.com/mstgnz/telepay/provider"
	"github.com/mstgnz/telepay/signer"
)

const (
	// API Endpoints
	endpointToken      = "/payment/v1/token"
	endpointPreOrder   = "/payment/v1/merchant/preOrder"
	endpointQueryOrder = "/payment/v1/merchant/queryOrder"

	methodPreOrder   = "payment.preorder"
	methodQueryOrder = "payment.queryorder"
	apiVersion       = "1.0"

	// Preorder constants
	tradeTypeCheckout    = "Checkout"
	currencyETB          = "ETB"
	timeoutExpress       = "120m"
	businessTypeBuyGoods = "BuyGoods"
	payeeIdentifierType  = "04"
	payeeType            = "5000"

	providerName = "telebirr"
)

// ErrGateway is returned when the gateway rejects a call or answers with something unusable
var ErrGateway = errors.New("telebirr gateway error")

// Client talks to a Telebirr-style H5 C2B gateway
type Client struct {
	cfg      config.GatewayConfig
	signer   *signer.Signer
	http     *provider.GatewayHTTPClient
	validate *validator.Validate
	now      func() time.Time
}

var _ provider.PaymentGateway = (*Client)(nil)

// NewClient creates a gateway client.
// A blank privateKeyPEM is allowed: signing operations then fail with signer.ErrKeyUnavailable.
// httpClient may be nil, in which case one is built from cfg.
func NewClient(cfg config.GatewayConfig, privateKeyPEM string, httpClient *provider.GatewayHTTPClient) (*Client, error) {
	var s *signer.Signer
	if strings.TrimSpace(privateKeyPEM) != "" {
		parsed, err := signer.New(privateKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("telebirr: %w", err)
		}
		s = parsed
	}

	if httpClient == nil {
		httpClient = provider.NewGatewayHTTPClient(
			provider.CreateHTTPClientConfig(cfg.BaseURL, cfg.Timeout, cfg.InsecureSkipVerify),
		)
	}

	return &Client{
		cfg:      cfg,
		signer:   s,
		http:     httpClient,
		validate: provider.NewValidator(),
		now:      time.Now,
	}, nil
}

// KeyLoaded reports whether a signing key is available
func (c *Client) KeyLoaded() bool {
	return c.signer != nil
}

// reply is the common envelope of gateway responses
type reply struct {
	Result     string          `json:"result"`
	Code       flexString      `json:"code"`
	Msg        string          `json:"msg"`
	ErrorCode  flexString      `json:"errorCode"`
	ErrorMsg   string          `json:"errorMsg"`
	BizContent json.RawMessage `json:"biz_content"`
}

func (r reply) err() error {
	if r.ErrorCode != "" {
		return fmt.Errorf("%w: %s %s", ErrGateway, r.ErrorCode, r.ErrorMsg)
	}
	if r.Code != "" && r.Code != "0" {
		return fmt.Errorf("%w: %s %s", ErrGateway, r.Code, r.Msg)
	}
	return nil
}

// flexString decodes either a JSON string or number
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(data)
	return nil
}

// FabricToken requests an access token from the gateway
func (c *Client) FabricToken(ctx context.Context) (*provider.FabricToken, error) {
	resp, err := c.http.SendJSON(ctx, &provider.HTTPRequest{
		Method:   http.MethodPost,
		Endpoint: endpointToken,
		Headers:  map[string]string{"X-APP-Key": c.cfg.FabricAppID},
		Body:     map[string]string{"appSecret": c.cfg.AppSecret},
	})
	if err := c.checkResponse(resp, err); err != nil {
		return nil, fmt.Errorf("fabric token: %w", err)
	}

	var out struct {
		provider.FabricToken
		reply
	}
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, fmt.Errorf("fabric token: %w: invalid response body: %v", ErrGateway, err)
	}
	if err := out.reply.err(); err != nil {
		return nil, fmt.Errorf("fabric token: %w", err)
	}
	if out.Token == "" {
		return nil, fmt.Errorf("fabric token: %w: response has no token", ErrGateway)
	}

	return &out.FabricToken, nil
}

// CreateOrder places a preorder and returns the prepay id and merchant order id
func (c *Client) CreateOrder(ctx context.Context, req provider.CheckoutRequest) (prepayID, merchOrderID string, err error) {
	req = req.Normalized()
	if err := provider.ValidateCheckoutRequest(c.validate, req); err != nil {
		return "", "", err
	}
	if !c.KeyLoaded() {
		return "", "", fmt.Errorf("create order: %w", signer.ErrKeyUnavailable)
	}

	token, err := c.FabricToken(ctx)
	if err != nil {
		return "", "", err
	}

	now := c.now()
	merchOrderID = provider.NewMerchOrderID(now)
	biz := map[string]any{
		"notify_url":            c.cfg.NotifyURL,
		"appid":                 c.cfg.MerchantAppID,
		"merch_code":            c.cfg.MerchantCode,
		"merch_order_id":        merchOrderID,
		"trade_type":            tradeTypeCheckout,
		"title":                 req.Title,
		"total_amount":          string(req.Amount),
		"trans_currency":        currencyETB,
		"timeout_express":       timeoutExpress,
		"business_type":         businessTypeBuyGoods,
		"payee_identifier":      c.cfg.MerchantCode,
		"payee_identifier_type": payeeIdentifierType,
		"payee_type":            payeeType,
		"redirect_url":          c.cfg.RedirectURL,
		"callback_info":         "From web",
	}

	body, err := c.signedRequest(methodPreOrder, now, biz)
	if err != nil {
		return "", "", fmt.Errorf("create order: %w", err)
	}

	r, err := c.post(ctx, endpointPreOrder, token.Token, body)
	if err != nil {
		return "", "", fmt.Errorf("create order: %w", err)
	}

	var result struct {
		PrepayID string `json:"prepay_id"`
	}
	if len(r.BizContent) > 0 {
		if err := json.Unmarshal(r.BizContent, &result); err != nil {
			return "", "", fmt.Errorf("create order: %w: invalid biz_content: %v", ErrGateway, err)
		}
	}
	if result.PrepayID == "" {
		return "", "", fmt.Errorf("create order: %w: response has no prepay_id", ErrGateway)
	}

	logger.WithProvider(providerName).
		AddField("merch_order_id", merchOrderID).
		AddField("prepay_id", result.PrepayID).
		Info("Telebirr preorder created")
	return result.PrepayID, merchOrderID, nil
}

// CheckoutURL places a preorder and builds the signed hosted checkout URL
func (c *Client) CheckoutURL(ctx context.Context, req provider.CheckoutRequest) (*provider.CheckoutResponse, error) {
	prepayID, merchOrderID, err := c.CreateOrder(ctx, req)
	if err != nil {
		return nil, err
	}

	checkoutURL, err := c.buildCheckoutURL(prepayID)
	if err != nil {
		return nil, fmt.Errorf("checkout url: %w", err)
	}

	return &provider.CheckoutResponse{
		CheckoutURL:  checkoutURL,
		MerchOrderID: merchOrderID,
		PrepayID:     prepayID,
	}, nil
}

func (c *Client) buildCheckoutURL(prepayID string) (string, error) {
	nonce := provider.NewNonce()
	timestamp := provider.Timestamp(c.now())

	sig, err := c.signer.Sign(signer.Params{
		"appid":      c.cfg.MerchantAppID,
		"merch_code": c.cfg.MerchantCode,
		"nonce_str":  nonce,
		"prepay_id":  prepayID,
		"timestamp":  timestamp,
	})
	if err != nil {
		return "", err
	}

	// The gateway reads the parameters in this fixed order.
	raw := "appid=" + c.cfg.MerchantAppID +
		"&merch_code=" + c.cfg.MerchantCode +
		"&nonce_str=" + nonce +
		"&prepay_id=" + prepayID +
		"&timestamp=" + timestamp +
		"&sign=" + url.QueryEscape(sig) +
		"&sign_type=" + signer.SignType +
		"&version=" + apiVersion +
		"&trade_type=" + tradeTypeCheckout

	base := c.cfg.WebBaseURL
	switch {
	case strings.HasSuffix(base, "?"), strings.HasSuffix(base, "&"):
	case strings.Contains(base, "?"):
		base += "&"
	default:
		base += "?"
	}
	return base + raw, nil
}

// QueryOrder asks the gateway for the state of a merchant order
func (c *Client) QueryOrder(ctx context.Context, merchOrderID string) (*provider.OrderStatus, error) {
	if strings.TrimSpace(merchOrderID) == "" {
		return nil, fmt.Errorf("%w: merch_order_id is required", provider.ErrInvalidRequest)
	}
	if !c.KeyLoaded() {
		return nil, fmt.Errorf("query order: %w", signer.ErrKeyUnavailable)
	}

	token, err := c.FabricToken(ctx)
	if err != nil {
		return nil, err
	}

	body, err := c.signedRequest(methodQueryOrder, c.now(), map[string]any{
		"appid":          c.cfg.MerchantAppID,
		"merch_code":     c.cfg.MerchantCode,
		"merch_order_id": merchOrderID,
	})
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}

	r, err := c.post(ctx, endpointQueryOrder, token.Token, body)
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}

	raw := map[string]any{}
	if len(r.BizContent) > 0 {
		dec := json.NewDecoder(bytes.NewReader(r.BizContent))
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("query order: %w: invalid biz_content: %v", ErrGateway, err)
		}
	}

	status := &provider.OrderStatus{
		MerchOrderID:   firstString(raw, "merch_order_id"),
		PaymentOrderID: firstString(raw, "payment_order_id"),
		TradeStatus:    firstString(raw, "trade_status", "order_status"),
		TotalAmount:    firstString(raw, "total_amount"),
		TransCurrency:  firstString(raw, "trans_currency"),
		TransTime:      firstString(raw, "trans_time", "trans_end_time"),
		Raw:            raw,
	}
	if status.MerchOrderID == "" {
		status.MerchOrderID = merchOrderID
	}
	status.Status = provider.StatusFromTradeStatus(status.TradeStatus)

	return status, nil
}

// ParseNotification decodes a webhook body. The signature is not verified.
func (c *Client) ParseNotification(body []byte) (*provider.Notification, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("%w: empty notification body", provider.ErrInvalidRequest)
	}

	var n provider.Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return nil, fmt.Errorf("%w: malformed notification: %v", provider.ErrInvalidRequest, err)
	}
	n.Status = provider.StatusFromTradeStatus(n.TradeStatus)

	if n.AppID != "" && n.AppID != c.cfg.MerchantAppID {
		logger.WithProvider(providerName).
			AddField("appid", n.AppID).
			AddField("merch_order_id", n.MerchOrderID).
			Warn("Notification for a different app id")
	}

	return &n, nil
}

// signedRequest builds a request body whose signature covers the top-level
// scalars merged with the biz_content fields
func (c *Client) signedRequest(method string, now time.Time, biz map[string]any) (map[string]any, error) {
	body := map[string]any{
		"timestamp": provider.Timestamp(now),
		"nonce_str": provider.NewNonce(),
		"method":    method,
		"version":   apiVersion,
	}

	params := make(signer.Params, len(body)+len(biz))
	for k, v := range body {
		params[k] = v
	}
	for k, v := range biz {
		params[k] = v
	}

	sig, err := c.signer.Sign(params)
	if err != nil {
		return nil, err
	}

	body["biz_content"] = biz
	body["sign"] = sig
	body["sign_type"] = signer.SignType
	return body, nil
}

func (c *Client) post(ctx context.Context, endpoint, token string, body any) (*reply, error) {
	resp, err := c.http.SendJSON(ctx, &provider.HTTPRequest{
		Method:   http.MethodPost,
		Endpoint: endpoint,
		Headers: map[string]string{
			"X-APP-Key":     c.cfg.FabricAppID,
			"Authorization": token,
		},
		Body: body,
	})
	if err := c.checkResponse(resp, err); err != nil {
		return nil, err
	}

	var r reply
	if err := json.Unmarshal(resp.Body, &r); err != nil {
		return nil, fmt.Errorf("%w: invalid response body: %v", ErrGateway, err)
	}
	if err := r.err(); err != nil {
		return nil, err
	}
	return &r, nil
}

// checkResponse turns transport and HTTP status failures into ErrGateway
func (c *Client) checkResponse(resp *provider.HTTPResponse, err error) error {
	if err == nil {
		return nil
	}
	if resp == nil {
		return fmt.Errorf("%w: %w", ErrGateway, err)
	}

	var r reply
	if json.Unmarshal(resp.Body, &r) == nil {
		if rerr := r.err(); rerr != nil {
			return fmt.Errorf("%w (HTTP %d)", rerr, resp.StatusCode)
		}
	}
	return fmt.Errorf("%w: HTTP %d", ErrGateway, resp.StatusCode)
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			if t != "" {
				return t
			}
		case json.Number:
			return t.String()
		default:
			return fmt.Sprint(t)
		}
	}
	return ""
}
