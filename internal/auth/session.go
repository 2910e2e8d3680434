// Package auth resolves bearer tokens into an explicit per-request Session.
package auth

import (
	"context"
	"time"

	"github.com/deckly-app/deckly/internal/config"
	"github.com/deckly-app/deckly/internal/models"
	"github.com/deckly-app/deckly/internal/security"
	"github.com/gin-gonic/gin"
)

const ginSessionKey = "deckly.session"

type sessionContextKey struct{}

// Session is the authenticated account for one request.
type Session struct {
	AccountID string    `json:"account_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Admin     bool      `json:"admin"`
	ExpiresAt time.Time `json:"expires_at"`
}

// WithSession returns a context carrying s.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, s)
}

// FromContext returns the session stored by WithSession.
func FromContext(ctx context.Context) (Session, bool) {
	if ctx == nil {
		return Session{}, false
	}
	s, ok := ctx.Value(sessionContextKey{}).(Session)
	return s, ok
}

// SessionFrom returns the session attached by Middleware.
func SessionFrom(c *gin.Context) (Session, bool) {
	if c == nil {
		return Session{}, false
	}
	if v, ok := c.Get(ginSessionKey); ok {
		if s, okSession := v.(Session); okSession {
			return s, true
		}
	}
	return FromContext(c.Request.Context())
}

// SetSession attaches s to the gin and request contexts.
func SetSession(c *gin.Context, s Session) {
	c.Set(ginSessionKey, s)
	c.Request = c.Request.WithContext(WithSession(c.Request.Context(), s))
}

// IssueToken signs a bearer token for user.
func IssueToken(jwtCfg config.JWTConfig, user models.User, now time.Time) (string, time.Time, error) {
	return security.IssueAccountToken(jwtCfg.Secret, user.ID, user.Email, user.IsAdmin, jwtCfg.Expiry, now)
}
