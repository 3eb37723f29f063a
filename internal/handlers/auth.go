package handlers

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/stanstork/adscope-api/internal/authz"
)

// AuthHandler guards the read surface with account-scoped bearer tokens.
type AuthHandler struct {
	jwtSecret string
	logger    zerolog.Logger
}

func NewAuthHandler(jwtSecret string, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		jwtSecret: jwtSecret,
		logger:    logger.With().Str("handler", "auth").Logger(),
	}
}

func (h *AuthHandler) JWTMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scheme, raw, found := strings.Cut(r.Header.Get("Authorization"), " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(raw) == "" {
			w.Header().Set("WWW-Authenticate", `Bearer realm="adscope"`)
			http.Error(w, "Bearer token required", http.StatusUnauthorized)
			return
		}

		claims, err := authz.ParseToken(h.jwtSecret, strings.TrimSpace(raw))
		if err != nil {
			h.logger.Debug().Err(err).Str("path", r.URL.Path).Msg("rejected bearer token")
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := authz.WithIdentity(r.Context(), claims.AccountID, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
