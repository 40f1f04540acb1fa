package middle

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/mstgnz/telepay/infra/logger"
	"github.com/mstgnz/telepay/infra/response"
)

var errInternal = errors.New("an unexpected error occurred")

// PanicRecoveryMiddleware logs a panic with its stack and answers 500 with the JSON envelope.
// http.ErrAbortHandler is re-raised so net/http can abort the connection.
func PanicRecoveryMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				logger.Error("Panic recovered", fmt.Errorf("%v", rec), logger.LogContext{
					RequestID: middleware.GetReqID(r.Context()),
					Fields: map[string]any{
						"method": r.Method,
						"path":   r.URL.Path,
						"stack":  string(debug.Stack()),
					},
				})

				w.Header().Set("Cache-Control", "no-store")
				response.Error(w, http.StatusInternalServerError, "Internal server error", errInternal)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
