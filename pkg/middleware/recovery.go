package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	apperrors "roombook/pkg/errors"
	httputil "roombook/pkg/http"
	"roombook/pkg/logger"
)

// Recovery turns a handler panic into a 500. If the response had already
// started, the panic is only logged.
func Recovery(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tracked := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				log.Error("Panic recovered",
					"request_id", RequestID(r.Context()),
					"error", rec,
					"method", r.Method,
					"path", r.URL.Path,
					"response_started", tracked.written,
					"stack", string(debug.Stack()),
				)
				if !tracked.written {
					_ = httputil.WriteError(tracked, apperrors.Internal("panic", fmt.Errorf("%v", rec)))
				}
			}()

			next.ServeHTTP(tracked, r)
		})
	}
}
