package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
)

// CallLog represents one inbound API call handled by the service
type CallLog struct {
	Timestamp        time.Time `json:"timestamp"`
	RequestID        string    `json:"request_id"`
	Method           string    `json:"method"`
	Endpoint         string    `json:"endpoint"`
	ClientIP         string    `json:"client_ip,omitempty"`
	UserAgent        string    `json:"user_agent,omitempty"`
	StatusCode       int       `json:"status_code"`
	ProcessingTimeMs int64     `json:"processing_time_ms"`
	MerchOrderID     string    `json:"merch_order_id,omitempty"`
	RequestBody      string    `json:"request_body,omitempty"`
	ResponseBody     string    `json:"response_body,omitempty"`
}

// Logger handles OpenSearch logging operations
type Logger struct {
	client *Client
}

// NewLogger creates a new OpenSearch logger
func NewLogger(client *Client) *Logger {
	return &Logger{client: client}
}

// LogCall indexes an API call with secrets redacted
func (l *Logger) LogCall(ctx context.Context, call CallLog) error {
	if call.Timestamp.IsZero() {
		call.Timestamp = time.Now().UTC()
	}
	if call.RequestID == "" {
		call.RequestID = uuid.New().String()
	}
	call.RequestBody = SanitizeForLog(call.RequestBody)
	call.ResponseBody = SanitizeForLog(call.ResponseBody)

	return l.index(ctx, CallLogIndex, call)
}

// LogSystemEvent indexes a system log entry; it satisfies logger.Sink
func (l *Logger) LogSystemEvent(ctx context.Context, entry any) error {
	return l.index(ctx, SystemLogIndex, entry)
}

func (l *Logger) index(ctx context.Context, index string, doc any) error {
	if !l.client.IsEnabled() {
		return nil
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal log: %w", err)
	}

	req := opensearchapi.IndexRequest{
		Index: index,
		Body:  bytes.NewReader(body),
	}

	res, err := req.Do(ctx, l.client.GetClient())
	if err != nil {
		return fmt.Errorf("failed to index log: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("opensearch error: %s", res.String())
	}
	return nil
}

type redaction struct {
	re          *regexp.Regexp
	replacement string
}

var redactions = func() []redaction {
	fields := []string{
		"appSecret", "app_secret", "token", "authorization", "sign",
		"private_key", "privateKey", "password",
	}
	var out []redaction
	for _, field := range fields {
		out = append(out,
			redaction{regexp.MustCompile(fmt.Sprintf(`(?i)("%s"\s*:\s*)"[^"]*"`, field)), `${1}"***REDACTED***"`},
			redaction{regexp.MustCompile(fmt.Sprintf(`(?i)(\b%s=)[^&\s]+`, field)), `${1}***REDACTED***`},
		)
	}
	return out
}()

// SanitizeForLog removes credentials and signatures before shipping data
func SanitizeForLog(data string) string {
	for _, r := range redactions {
		data = r.re.ReplaceAllString(data, r.replacement)
	}
	return data
}
