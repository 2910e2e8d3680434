package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "deckly"

// ErrInvalidToken is returned when a bearer token cannot be verified.
var ErrInvalidToken = errors.New("security: invalid token")

// AccountClaims are the JWT claims identifying an account.
type AccountClaims struct {
	Email string `json:"email"`
	Admin bool   `json:"admin"`
	jwt.RegisteredClaims
}

// AccountID returns the subject of the token.
func (c *AccountClaims) AccountID() string {
	if c == nil {
		return ""
	}
	return c.Subject
}

// IssueAccountToken signs an HS256 token for the account.
func IssueAccountToken(secret string, accountID, email string, admin bool, expiry time.Duration, now time.Time) (string, time.Time, error) {
	if strings.TrimSpace(secret) == "" {
		return "", time.Time{}, errors.New("security: missing jwt secret")
	}
	if strings.TrimSpace(accountID) == "" {
		return "", time.Time{}, errors.New("security: missing account id")
	}
	expiresAt := now.Add(expiry).UTC()
	claims := AccountClaims{
		Email: email,
		Admin: admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("security: sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ParseAccountToken verifies the token signature and expiry and returns its claims.
func ParseAccountToken(secret, token string) (*AccountClaims, error) {
	if strings.TrimSpace(secret) == "" || strings.TrimSpace(token) == "" {
		return nil, ErrInvalidToken
	}
	claims := &AccountClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(tokenIssuer))
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.AccountID() == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
