package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"hireplane/internal/logger"
)

// RequestID attaches a correlation ID to every request. An incoming
// X-Request-ID header is honored so IDs survive proxies; otherwise a fresh
// UUID is minted. The ID is echoed back on the response and placed in the
// request context for log correlation.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}

		w.Header().Set("X-Request-ID", id)
		ctx := logger.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
