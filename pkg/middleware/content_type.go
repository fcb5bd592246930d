package middleware

import (
	"mime"
	"net/http"

	apperrors "roombook/pkg/errors"
	httputil "roombook/pkg/http"
	"roombook/pkg/logger"
)

const (
	mediaTypeJSON       = "application/json"
	mediaTypeMergePatch = "application/merge-patch+json"
)

// ContentTypeValidation rejects write requests whose body is not JSON with
// 415. PATCH additionally accepts JSON merge patch.
func ContentTypeValidation(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !acceptsMediaType(r) {
				log.Warn("Invalid Content-Type header",
					"request_id", RequestID(r.Context()),
					"content_type", r.Header.Get("Content-Type"),
					"path", r.URL.Path,
					"method", r.Method,
				)
				_ = httputil.WriteError(w, apperrors.New(apperrors.CodeBadRequest,
					"Content-Type must be application/json", http.StatusUnsupportedMediaType))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func acceptsMediaType(r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		return true
	}

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mediaType == mediaTypeJSON || (r.Method == http.MethodPatch && mediaType == mediaTypeMergePatch)
}
