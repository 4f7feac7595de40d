package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// IdentityHeader names the header the edge gateway sets after
// authenticating a request.
const IdentityHeader = "X-User-Id"

// Identity lifts the gateway-asserted user id into the request context so
// handlers and the idempotency scope can key off it. Requests without the
// header pass through anonymously; handlers that need an actor reject them.
func Identity() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(IdentityHeader))
			if raw != "" {
				if parsed, err := uuid.Parse(raw); err == nil {
					r = r.WithContext(WithUserID(r.Context(), parsed.String()))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
