package config

import (
	"os"
	"strings"

	"github.com/mstgnz/telepay/infra/logger"
)

// ResolvePrivateKey returns the gateway signing key in PEM form.
// An inline key wins over a key file. A missing or unreadable file is logged
// and reported as absent so the service can still start.
func ResolvePrivateKey(cfg GatewayConfig) (string, bool) {
	if pem := normalizePEM(cfg.PrivateKey); pem != "" {
		return pem, true
	}

	if cfg.PrivateKeyPath == "" {
		logger.Warn("No private key configured, signing requests will fail")
		return "", false
	}

	data, err := os.ReadFile(cfg.PrivateKeyPath)
	if err != nil {
		logger.Error("Failed to read private key file", err, logger.LogContext{
			Fields: map[string]any{"path": cfg.PrivateKeyPath},
		})
		return "", false
	}

	pem := normalizePEM(string(data))
	if pem == "" {
		logger.Warn("Private key file is empty", logger.LogContext{
			Fields: map[string]any{"path": cfg.PrivateKeyPath},
		})
		return "", false
	}
	return pem, true
}

// normalizePEM turns escaped newlines from env files into real ones
func normalizePEM(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	raw = strings.ReplaceAll(raw, `\n`, "\n")
	if !strings.HasSuffix(raw, "\n") {
		raw += "\n"
	}
	return raw
}
