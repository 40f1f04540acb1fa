// Package telepay is a small HTTP service that sits between merchant
// applications and the Telebirr mobile-money gateway. It owns the merchant's
// RSA private key, signs every gateway request and hands back ready-to-open
// checkout URLs.
//
// # Architecture
//
//	┌─────────────────┐    ┌─────────────────┐    ┌─────────────────┐
//	│                 │    │                 │    │                 │
//	│  Merchant Apps  │◄──►│     TelePay     │◄──►│    Telebirr     │
//	│                 │    │  (signs + posts)│    │    Gateway      │
//	│                 │    │                 │    │                 │
//	└─────────────────┘    └─────────────────┘    └─────────────────┘
//
// A checkout runs in three gateway calls: a fabric token is requested, a
// signed preorder is created and the returned prepay_id is embedded, together
// with a fresh signature, in the checkout URL the customer is redirected to.
//
// # Signing
//
// Parameters are canonicalized by dropping sign, sign_type and biz_content,
// skipping empty values, sorting the remaining keys and joining them as
// key=value pairs with "&". The canonical string is signed with RSA-PSS
// (SHA-256, MGF1-SHA256, 32 byte salt) and base64 encoded. See package signer.
//
// # Endpoints
//
//	POST /auth                  fabric token
//	POST /checkout-url          preorder + signed checkout URL
//	GET  /query-order/{id}      order state at the gateway
//	POST /webhooks/payment      gateway notifications (no API key)
//	GET  /notifications/{id}    journaled notifications of an order
//	GET  /health                liveness and key status
//
// With DEBUG_PORT set a second listener serves /debug/sign, /debug/verify and
// /debug/config for integration troubleshooting. It requires API_KEY and is
// refused when ENVIRONMENT=production.
//
// # Configuration
//
// Everything is read from the environment (optionally through a .env file):
//
//	APP_PORT=8080
//	TELEBIRR_BASE_URL=https://developerportal.ethiotelebirr.et:38443/apiaccess/payment/gateway
//	TELEBIRR_WEB_BASE_URL=https://developerportal.ethiotelebirr.et:38443/payment/web/paygate?
//	TELEBIRR_FABRIC_APP_ID=...
//	TELEBIRR_APP_SECRET=...
//	TELEBIRR_MERCHANT_APP_ID=...
//	TELEBIRR_MERCHANT_CODE=...
//	TELEBIRR_PRIVATE_KEY_PATH=/run/secrets/telebirr.pem
//	API_KEY=change-me
//	JOURNAL_PATH=/var/lib/telepay/journal.db
//	ENABLE_OPENSEARCH_LOGGING=false
//
// The service starts without a private key; signing routes then answer 503 and
// /health reports degraded.
//
// # Command line
//
//	telepay serve
//	telepay sign --key private.pem --params '{"appid":"A","method":"payment.queryorder"}'
//	telepay verify --pub public.pem --sign <base64> --params -
package telepay
