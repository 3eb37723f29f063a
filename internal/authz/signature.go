package authz

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stanstork/adscope-api/internal/models"
	"github.com/stanstork/adscope-api/internal/repository"
)

const (
	HeaderAccountID = "X-Account-Id"
	HeaderTimestamp = "X-Timestamp"
	HeaderSignature = "X-Signature"
)

// MaxClockSkew bounds both the replay window and tolerated clock drift.
const MaxClockSkew = 5 * time.Minute

type Reason string

const (
	ReasonMissingCredentials Reason = "missing credentials"
	ReasonStaleTimestamp     Reason = "stale or invalid timestamp"
	ReasonUnknownAccount     Reason = "unknown account"
	ReasonInvalidSignature   Reason = "invalid signature"
)

// AuthError rejects a request at the authentication boundary.
type AuthError struct {
	Reason Reason
}

func (e *AuthError) Error() string {
	return string(e.Reason)
}

func reject(reason Reason) error {
	return &AuthError{Reason: reason}
}

// AccountLookup resolves active accounts with their plaintext shared secret.
type AccountLookup interface {
	GetActiveAccount(ctx context.Context, id string) (models.Account, error)
}

// Authenticator checks HMAC signed ingest requests.
type Authenticator struct {
	accounts AccountLookup
	now      func() time.Time
}

func NewAuthenticator(accounts AccountLookup) *Authenticator {
	return &Authenticator{accounts: accounts, now: time.Now}
}

// Authenticate admits a request signed by the claimed account over timestamp+body.
// Rejections are returned as *AuthError; any other error means the account could not be loaded.
func (a *Authenticator) Authenticate(ctx context.Context, accountID, timestamp, signature string, body []byte) (models.Account, error) {
	accountID = strings.TrimSpace(accountID)
	timestamp = strings.TrimSpace(timestamp)
	signature = strings.TrimSpace(signature)
	if accountID == "" || timestamp == "" || signature == "" {
		return models.Account{}, reject(ReasonMissingCredentials)
	}

	sentAt, err := time.Parse(time.RFC3339Nano, timestamp)
	if err != nil {
		return models.Account{}, reject(ReasonStaleTimestamp)
	}
	skew := a.now().Sub(sentAt)
	if skew < 0 {
		skew = -skew
	}
	if skew > MaxClockSkew {
		return models.Account{}, reject(ReasonStaleTimestamp)
	}

	account, err := a.accounts.GetActiveAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.Account{}, reject(ReasonUnknownAccount)
		}
		return models.Account{}, fmt.Errorf("load account: %w", err)
	}

	received, err := hex.DecodeString(strings.ToLower(signature))
	if err != nil {
		return models.Account{}, reject(ReasonInvalidSignature)
	}
	if !hmac.Equal(received, mac(account.Secret, timestamp, body)) {
		return models.Account{}, reject(ReasonInvalidSignature)
	}
	return account, nil
}

// Sign returns the hex signature an agent sends for body at timestamp.
func Sign(secret, timestamp string, body []byte) string {
	return hex.EncodeToString(mac(secret, timestamp, body))
}

func mac(secret, timestamp string, body []byte) []byte {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(timestamp))
	h.Write(body)
	return h.Sum(nil)
}
