package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/deckly-app/deckly/internal/config"
	"github.com/deckly-app/deckly/internal/models"
	"github.com/deckly-app/deckly/internal/security"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Middleware validates the bearer token and loads the account on every
// request, so disabling an account takes effect immediately.
func Middleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, errToken := bearerToken(c)
		if errToken != "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errToken})
			return
		}

		claims, errParse := security.ParseAccountToken(jwtCfg.Secret, token)
		if errParse != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var user models.User
		if errFind := db.WithContext(c.Request.Context()).
			Where("id = ?", claims.AccountID()).
			Take(&user).Error; errFind != nil {
			if !errors.Is(errFind, gorm.ErrRecordNotFound) {
				log.WithError(errFind).Error("auth: load account failed")
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "account not found"})
			return
		}
		if user.Disabled {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "account disabled"})
			return
		}

		session := Session{
			AccountID: user.ID,
			Email:     user.Email,
			Name:      user.Name,
			Admin:     user.IsAdmin,
		}
		if claims.ExpiresAt != nil {
			session.ExpiresAt = claims.ExpiresAt.Time
		}
		SetSession(c, session)
		c.Next()
	}
}

// RequireAdmin rejects sessions without admin rights. It must run after Middleware.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := SessionFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if !session.Admin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, string) {
	header := c.GetHeader("Authorization")
	if header == "" {
		// EventSource cannot set headers.
		if token := strings.TrimSpace(c.Query("access_token")); token != "" {
			return token, ""
		}
		return "", "missing authorization header"
	}
	token := strings.TrimPrefix(header, "Bearer ")
	if token == header {
		return "", "invalid authorization format"
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}
