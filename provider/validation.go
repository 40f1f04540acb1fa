package provider

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidRequest marks a request rejected before reaching the gateway
var ErrInvalidRequest = errors.New("invalid request")

var amountPattern = regexp.MustCompile(`^\d+(\.\d{1,2})?$`)

// NewValidator returns a validator with the payment-specific tags registered
func NewValidator() *validator.Validate {
	v := validator.New()
	if err := RegisterValidations(v); err != nil {
		panic(err)
	}
	return v
}

// RegisterValidations adds the "amount" tag: a positive decimal with at most two fraction digits
func RegisterValidations(v *validator.Validate) error {
	return v.RegisterValidation("amount", func(fl validator.FieldLevel) bool {
		s := strings.TrimSpace(fl.Field().String())
		if !amountPattern.MatchString(s) {
			return false
		}
		d, err := Amount(s).Decimal()
		return err == nil && d.IsPositive()
	})
}

// ValidateCheckoutRequest checks a checkout request, wrapping failures with ErrInvalidRequest
func ValidateCheckoutRequest(v *validator.Validate, req CheckoutRequest) error {
	if err := v.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s failed '%s'", strings.ToLower(fe.Field()), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}
