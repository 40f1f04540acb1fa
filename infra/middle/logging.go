package middle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mstgnz/telepay/infra/journal"
	"github.com/mstgnz/telepay/infra/logger"
	"github.com/mstgnz/telepay/infra/opensearch"
	"github.com/mstgnz/telepay/infra/response"
)

// CallJournal stores API calls, implemented by *journal.SQLiteJournal
type CallJournal interface {
	RecordCall(ctx context.Context, c journal.Call) error
}

// CallIndexer ships API calls, implemented by *opensearch.Logger
type CallIndexer interface {
	LogCall(ctx context.Context, call opensearch.CallLog) error
}

// responseWriter wraps http.ResponseWriter to capture response data
type responseWriter struct {
	http.ResponseWriter
	body       *bytes.Buffer
	statusCode int
	startTime  time.Time
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		body:           &bytes.Buffer{},
		statusCode:     http.StatusOK,
		startTime:      time.Now(),
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.body.Write(b)
	return rw.ResponseWriter.Write(b)
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

// CallLoggingMiddleware records every call to the journal and the indexer.
// Either may be nil. Writes happen off the request path.
func CallLoggingMiddleware(j CallJournal, idx CallIndexer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if j == nil && idx == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := newResponseWriter(w)

			var requestBody []byte
			var readErr error
			if r.Body != nil {
				requestBody, readErr = io.ReadAll(r.Body)
				r.Body = io.NopCloser(bytes.NewReader(requestBody))
			}

			if readErr != nil {
				writeBodyError(rw, readErr)
			} else {
				next.ServeHTTP(rw, r)
			}

			duration := time.Since(rw.startTime).Milliseconds()
			requestID := middleware.GetReqID(r.Context())
			clientIP := GetClientIP(r)
			orderID := extractMerchOrderID(r, requestBody, rw.body.Bytes())

			call := journal.Call{
				RequestID:    requestID,
				Method:       r.Method,
				Endpoint:     r.URL.Path,
				StatusCode:   rw.statusCode,
				DurationMs:   duration,
				MerchOrderID: orderID,
				ClientIP:     clientIP,
				CreatedAt:    rw.startTime.UTC(),
			}
			callLog := opensearch.CallLog{
				Timestamp:        rw.startTime.UTC(),
				RequestID:        requestID,
				Method:           r.Method,
				Endpoint:         r.URL.Path,
				ClientIP:         clientIP,
				UserAgent:        r.UserAgent(),
				StatusCode:       rw.statusCode,
				ProcessingTimeMs: duration,
				MerchOrderID:     orderID,
				RequestBody:      string(requestBody),
				ResponseBody:     rw.body.String(),
			}

			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()

				if j != nil {
					if err := j.RecordCall(ctx, call); err != nil {
						logger.Warn("Failed to journal API call", logger.LogContext{
							RequestID: requestID,
							Fields:    map[string]any{"error": err.Error()},
						})
					}
				}
				if idx != nil {
					if err := idx.LogCall(ctx, callLog); err != nil {
						logger.Warn("Failed to index API call", logger.LogContext{
							RequestID: requestID,
							Fields:    map[string]any{"error": err.Error()},
						})
					}
				}
			}()
		})
	}
}

// writeBodyError rejects a request whose body could not be buffered.
// A body cut off by http.MaxBytesReader is never passed on truncated.
func writeBodyError(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		response.Error(w, http.StatusRequestEntityTooLarge, "Request body too large", nil)
		return
	}
	response.Error(w, http.StatusBadRequest, "Unreadable request body", err)
}

// extractMerchOrderID looks at the route, then the response data, then the request body
func extractMerchOrderID(r *http.Request, requestBody, responseBody []byte) string {
	if id := chi.URLParam(r, "id"); id != "" {
		return id
	}

	var resp struct {
		Data struct {
			MerchOrderID string `json:"merch_order_id"`
		} `json:"data"`
	}
	if json.Unmarshal(responseBody, &resp) == nil && resp.Data.MerchOrderID != "" {
		return resp.Data.MerchOrderID
	}

	var req struct {
		MerchOrderID string `json:"merch_order_id"`
	}
	if json.Unmarshal(requestBody, &req) == nil {
		return req.MerchOrderID
	}
	return ""
}
