package auth

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/deckly-app/deckly/internal/config"
	"github.com/deckly-app/deckly/internal/db"
	"github.com/deckly-app/deckly/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func setupRouter(t *testing.T) (*gin.Engine, *gorm.DB, config.JWTConfig) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	conn, err := db.Open("file:" + filepath.Join(t.TempDir(), "auth.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	jwtCfg := config.JWTConfig{Secret: "test-secret", Expiry: time.Hour}

	r := gin.New()
	authed := r.Group("/", Middleware(conn, jwtCfg))
	authed.GET("/me", func(c *gin.Context) {
		s, _ := SessionFrom(c)
		c.JSON(http.StatusOK, gin.H{"account_id": s.AccountID})
	})
	authed.GET("/admin", RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r, conn, jwtCfg
}

func do(r *gin.Engine, path, token string) int {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestMiddleware(t *testing.T) {
	r, conn, jwtCfg := setupRouter(t)

	user := models.User{Email: "user@example.com", Password: "x"}
	if errCreate := conn.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}
	token, _, err := IssueToken(jwtCfg, user, time.Now())
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	if code := do(r, "/me", ""); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", code)
	}
	if code := do(r, "/me", "garbage"); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", code)
	}
	if code := do(r, "/me", token); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if code := do(r, "/me?access_token="+token, ""); code != http.StatusOK {
		t.Fatalf("expected query token to work, got %d", code)
	}
	if code := do(r, "/admin", token); code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", code)
	}

	if errUpdate := conn.Model(&user).Update("is_admin", true).Error; errUpdate != nil {
		t.Fatalf("promote: %v", errUpdate)
	}
	if code := do(r, "/admin", token); code != http.StatusNoContent {
		t.Fatalf("expected admin access from stored flag, got %d", code)
	}

	if errUpdate := conn.Model(&user).Update("disabled", true).Error; errUpdate != nil {
		t.Fatalf("disable: %v", errUpdate)
	}
	if code := do(r, "/me", token); code != http.StatusForbidden {
		t.Fatalf("expected 403 for disabled account, got %d", code)
	}
}
