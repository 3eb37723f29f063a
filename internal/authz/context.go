package authz

import (
	"context"
	"net/http"

	"github.com/stanstork/adscope-api/internal/models"
)

type contextKey string

const (
	accountIDKey contextKey = "account_id"
	userIDKey    contextKey = "user_id"
	accountKey   contextKey = "account"
)

// WithIdentity stores the account and user a read-surface token was issued for.
func WithIdentity(ctx context.Context, accountID, userID string) context.Context {
	if accountID != "" {
		ctx = context.WithValue(ctx, accountIDKey, accountID)
	}
	if userID != "" {
		ctx = context.WithValue(ctx, userIDKey, userID)
	}
	return ctx
}

// WithAccount stores the account resolved from a signed ingest request.
func WithAccount(ctx context.Context, account models.Account) context.Context {
	ctx = context.WithValue(ctx, accountKey, account)
	return context.WithValue(ctx, accountIDKey, account.ID)
}

func AccountIDFromRequest(r *http.Request) (string, bool) {
	aid, ok := r.Context().Value(accountIDKey).(string)
	if !ok || aid == "" {
		return "", false
	}
	return aid, true
}

func UserIDFromRequest(r *http.Request) (string, bool) {
	uid, ok := r.Context().Value(userIDKey).(string)
	if !ok || uid == "" {
		return "", false
	}
	return uid, true
}

func AccountFromRequest(r *http.Request) (models.Account, bool) {
	account, ok := r.Context().Value(accountKey).(models.Account)
	if !ok || account.ID == "" {
		return models.Account{}, false
	}
	return account, true
}
