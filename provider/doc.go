// Package provider holds the gateway-neutral payment types and the outbound
// HTTP client used to reach the gateway.
//
// The PaymentGateway interface is what handlers depend on; the Telebirr
// implementation lives in provider/telebirr:
//
//	httpClient := provider.NewGatewayHTTPClient(provider.CreateHTTPClientConfig(cfg.BaseURL, cfg.Timeout, false))
//	gateway, err := telebirr.NewClient(cfg, privateKeyPEM, httpClient)
//	if err != nil {
//	    return err
//	}
//
//	resp, err := gateway.CheckoutURL(ctx, provider.CheckoutRequest{Title: "Coffee", Amount: "12.50"})
//
// Trade states reported by the gateway are folded into PaymentStatus with
// StatusFromTradeStatus. Checkout requests are validated with the "amount" tag
// registered by NewValidator.
package provider
