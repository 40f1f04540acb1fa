// Package handler implements the HTTP handlers of the TelePay API.
//
// Handlers decode and validate the request, call the payment gateway through
// provider.PaymentGateway and write the standard response envelope:
//
//	{"code":200,"success":true,"message":"Checkout URL created","data":{...}}
//
// Domain errors are mapped to status codes in one place: invalid requests 400,
// missing signing key 503, signing failures 500, gateway rejections 502 and
// timeouts 504.
package handler
