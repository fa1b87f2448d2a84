package httpx

import (
	"net/http"
	"strings"

	"github.com/ariefcatur/go-marketplace-orders/internal/auth"
)

// TokenVerifier is satisfied by *auth.Verifier.
type TokenVerifier interface {
	Verify(token string) (auth.Principal, error)
}

func unauthorized(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusUnauthorized, map[string]errorBody{"error": {Kind: "UNAUTHENTICATED", Message: msg}})
}

// RequireAuth rejects requests without a valid bearer token and stores the
// principal in the request context.
func RequireAuth(v TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if h == "" {
				unauthorized(w, "missing Authorization header")
				return
			}
			scheme, token, ok := strings.Cut(h, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
				unauthorized(w, "expected 'Bearer <token>'")
				return
			}
			p, err := v.Verify(token)
			if err != nil {
				unauthorized(w, "invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
		})
	}
}

func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := auth.FromContext(r.Context())
		if err != nil || !p.IsAdmin() {
			writeJSON(w, http.StatusForbidden, map[string]errorBody{"error": {Kind: "UNAUTHORIZED", Message: "admin only"}})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// caller is only used behind RequireAuth.
func caller(r *http.Request) string {
	p, _ := auth.FromContext(r.Context())
	return p.UserID
}
