package authz

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

var errMissingAccountClaim = errors.New("token has no account claim")

// Claims scope a read-surface token to one account.
type Claims struct {
	AccountID string `json:"aid"`
	jwt.RegisteredClaims
}

// IssueToken signs a read-surface token scoped to one account.
func IssueToken(secret, accountID, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		AccountID: accountID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString([]byte(secret))
}

// ParseToken verifies signature and expiry and requires the account claim.
func ParseToken(secret, raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if claims.ExpiresAt == nil {
		return nil, jwt.NewValidationError("token has no expiry", jwt.ValidationErrorClaimsInvalid)
	}
	if claims.AccountID == "" {
		return nil, errMissingAccountClaim
	}
	return claims, nil
}
