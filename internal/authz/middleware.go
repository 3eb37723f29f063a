package authz

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/stanstork/adscope-api/internal/metrics"
)

// RequireSignature returns a middleware that admits only requests signed by an active account.
// The body is read once, verified, and handed on unchanged; the account lands on the context.
func RequireSignature(auth *Authenticator, maxBodyBytes int64, m *metrics.Metrics, logger zerolog.Logger) func(http.Handler) http.Handler {
	logger = logger.With().Str("component", "signature_auth").Logger()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					writeRejection(w, http.StatusRequestEntityTooLarge, "request body too large")
					return
				}
				writeRejection(w, http.StatusBadRequest, "failed to read request body")
				return
			}

			account, err := auth.Authenticate(r.Context(),
				r.Header.Get(HeaderAccountID),
				r.Header.Get(HeaderTimestamp),
				r.Header.Get(HeaderSignature),
				body,
			)
			if err != nil {
				var authErr *AuthError
				if errors.As(err, &authErr) {
					m.AuthRejections.WithLabelValues(string(authErr.Reason)).Inc()
					logger.Warn().
						Str("account_id", r.Header.Get(HeaderAccountID)).
						Str("reason", string(authErr.Reason)).
						Msg("Rejected ingest request")
					writeRejection(w, http.StatusUnauthorized, authErr.Error())
					return
				}
				logger.Error().Err(err).Msg("Failed to authenticate ingest request")
				writeRejection(w, http.StatusInternalServerError, "authentication unavailable")
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r.WithContext(WithAccount(r.Context(), account)))
		})
	}
}

func writeRejection(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"message": message,
	})
}
