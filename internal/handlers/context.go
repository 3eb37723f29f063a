package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/stanstork/adscope-api/internal/authz"
)

// requireAccount returns the account the bearer token was issued for.
func requireAccount(w http.ResponseWriter, r *http.Request) (string, bool) {
	accountID, ok := authz.AccountIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing account context", http.StatusUnauthorized)
	}
	return accountID, ok
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// queryLimit reads ?limit= and falls back to def when absent, invalid, or above max.
func queryLimit(r *http.Request, def, max int) int {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return def
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 || parsed > max {
		return def
	}
	return parsed
}
