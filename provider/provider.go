package provider

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewNonce returns a 32 character alphanumeric nonce
func NewNonce() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewMerchOrderID returns a merchant order id: t in Unix milliseconds
func NewMerchOrderID(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// Timestamp formats t as Unix seconds
func Timestamp(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}
