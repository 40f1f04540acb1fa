package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// GatewayConfig holds everything needed to talk to the payment gateway
type GatewayConfig struct {
	BaseURL            string `validate:"required,url"`
	WebBaseURL         string `validate:"required,url"`
	FabricAppID        string `validate:"required"`
	AppSecret          string `validate:"required"`
	MerchantAppID      string `validate:"required"`
	MerchantCode       string `validate:"required"`
	PrivateKey         string
	PrivateKeyPath     string
	NotifyURL          string        `validate:"omitempty,url"`
	RedirectURL        string        `validate:"omitempty,url"`
	Timeout            time.Duration `validate:"gt=0"`
	InsecureSkipVerify bool
}

// AppConfig represents the application configuration
type AppConfig struct {
	Port           string `validate:"required,numeric"`
	DebugPort      string `validate:"omitempty,numeric"`
	Environment    string `validate:"required"`
	LoggingLevel   string `validate:"oneof=debug info warn error"`
	OpenSearchURL  string
	OpenSearchUser string
	OpenSearchPass string
	EnableLogging  bool
	JournalPath    string
	IPWhitelist    []string
	APIKey         string
	RateLimit      int `validate:"gt=0"`
	Gateway        GatewayConfig
}

// Load builds the configuration from the process environment.
// It is called once at startup and the result is passed to every component.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		Port:           GetEnv("APP_PORT", "8080"),
		DebugPort:      GetEnv("DEBUG_PORT", ""),
		Environment:    GetEnv("ENVIRONMENT", EnvDevelopment),
		LoggingLevel:   strings.ToLower(GetEnv("LOGGING_LEVEL", "info")),
		OpenSearchURL:  GetEnv("OPENSEARCH_URL", "http://localhost:9200"),
		OpenSearchUser: GetEnv("OPENSEARCH_USER", ""),
		OpenSearchPass: GetEnv("OPENSEARCH_PASSWORD", ""),
		EnableLogging:  GetBoolEnv("ENABLE_OPENSEARCH_LOGGING", false),
		JournalPath:    GetEnv("JOURNAL_PATH", ""),
		IPWhitelist:    splitList(GetEnv("IP_WHITELIST", "")),
		APIKey:         GetEnv("API_KEY", ""),
		RateLimit:      GetIntEnv("RATE_LIMIT_PER_MINUTE", 100),
		Gateway: GatewayConfig{
			BaseURL:            strings.TrimRight(GetEnv("TELEBIRR_BASE_URL", "https://developerportal.ethiotelebirr.et:38443/apiaccess/payment/gateway"), "/"),
			WebBaseURL:         GetEnv("TELEBIRR_WEB_BASE_URL", "https://developerportal.ethiotelebirr.et:38443/payment/web/paygate?"),
			FabricAppID:        GetEnv("TELEBIRR_FABRIC_APP_ID", ""),
			AppSecret:          GetEnv("TELEBIRR_APP_SECRET", ""),
			MerchantAppID:      GetEnv("TELEBIRR_MERCHANT_APP_ID", ""),
			MerchantCode:       GetEnv("TELEBIRR_MERCHANT_CODE", ""),
			PrivateKey:         GetEnv("TELEBIRR_PRIVATE_KEY", ""),
			PrivateKeyPath:     GetEnv("TELEBIRR_PRIVATE_KEY_PATH", ""),
			NotifyURL:          GetEnv("TELEBIRR_NOTIFY_URL", ""),
			RedirectURL:        GetEnv("TELEBIRR_REDIRECT_URL", ""),
			Timeout:            GetDurationEnv("TELEBIRR_TIMEOUT", 30*time.Second),
			InsecureSkipVerify: GetBoolEnv("TELEBIRR_INSECURE_SKIP_VERIFY", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct constraints and cross-field rules
func (c *AppConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Gateway.InsecureSkipVerify && c.IsProduction() {
		return errors.New("invalid configuration: TELEBIRR_INSECURE_SKIP_VERIFY cannot be enabled in production")
	}
	if c.DebugPort != "" {
		if c.IsProduction() {
			return errors.New("invalid configuration: DEBUG_PORT cannot be set in production")
		}
		// the debug listener signs arbitrary parameters
		if c.APIKey == "" {
			return errors.New("invalid configuration: DEBUG_PORT requires API_KEY")
		}
	}
	return nil
}

// IsProduction reports whether the service runs against production
func (c *AppConfig) IsProduction() bool {
	return c.Environment == EnvProduction
}

// Redacted returns a copy safe to expose on the debug server
func (c AppConfig) Redacted() AppConfig {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "***REDACTED***"
	}
	c.OpenSearchPass = mask(c.OpenSearchPass)
	c.APIKey = mask(c.APIKey)
	c.Gateway.AppSecret = mask(c.Gateway.AppSecret)
	c.Gateway.PrivateKey = mask(c.Gateway.PrivateKey)
	return c
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetBoolEnv returns the boolean value of an environment variable or a default value
func GetBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// GetIntEnv returns the integer value of an environment variable or a default value
func GetIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// GetDurationEnv accepts Go durations ("45s") or plain seconds ("45")
func GetDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
