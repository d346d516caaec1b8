package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dmehra2102/checkout-service/internal/account/application"
	"github.com/dmehra2102/checkout-service/pkg/security"
)

type claimsKey struct{}

// Authenticator rejects requests without a valid bearer access token and
// stores its claims on the request context.
func Authenticator(log *slog.Logger, accounts *application.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				unauthorized(w)
				return
			}
			claims, err := accounts.Authenticate(token)
			if err != nil {
				log.Warn("bearer token rejected", "path", r.URL.Path, "err", err)
				unauthorized(w)
				return
			}
			ctx := context.WithValue(r.Context(), claimsKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func ClaimsFrom(ctx context.Context) (security.AccessClaims, bool) {
	c, ok := ctx.Value(claimsKey{}).(security.AccessClaims)
	return c, ok
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
}
