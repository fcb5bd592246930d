package middleware

import (
	"errors"
	"net/http"

	"roombook/pkg/auth"
	apperrors "roombook/pkg/errors"
	httputil "roombook/pkg/http"
	"roombook/pkg/logger"
)

// Authenticate rejects requests without a valid bearer token and stores the
// caller's identity in the request context.
func Authenticate(verifier *auth.Verifier, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := auth.BearerToken(r.Header.Get("Authorization"))
			if err != nil {
				rejectUnauthorized(w, log, r, err)
				return
			}

			identity, err := verifier.Verify(raw)
			if err != nil {
				rejectUnauthorized(w, log, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), identity)))
		})
	}
}

func rejectUnauthorized(w http.ResponseWriter, log *logger.Logger, r *http.Request, err error) {
	log.Warn("Authentication failed",
		"request_id", RequestID(r.Context()),
		"path", r.URL.Path,
		"error", err,
	)

	message := "Invalid or expired token"
	if errors.Is(err, auth.ErrMissingToken) {
		message = "Authorization header with bearer token required"
	}

	w.Header().Set("WWW-Authenticate", `Bearer realm="roombook"`)
	_ = httputil.WriteError(w, apperrors.Unauthorized(message))
}
