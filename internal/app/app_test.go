package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/deckly-app/deckly/internal/config"
	"github.com/deckly-app/deckly/internal/db"
	"github.com/deckly-app/deckly/internal/generation"
	"github.com/gin-gonic/gin"
)

func TestNewEngineServesHealthAndRejectsAnonymous(t *testing.T) {
	gin.SetMode(gin.TestMode)
	conn, err := db.Open("file:" + filepath.Join(t.TempDir(), "engine.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	gen := generation.GeneratorFunc(func(context.Context, generation.Request) (generation.Response, error) {
		return generation.Response{Success: true, Content: "ok"}, nil
	})
	components := NewComponents(conn, config.JWTConfig{Secret: "s", Expiry: time.Hour}, gen, time.Minute)
	engine := NewEngine(components)

	cases := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodGet, "/v0/proposals", http.StatusUnauthorized},
		{http.MethodGet, "/v0/admin/users", http.StatusUnauthorized},
		{http.MethodGet, "/nope", http.StatusNotFound},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))
		if w.Code != tc.want {
			t.Fatalf("%s %s: expected %d, got %d", tc.method, tc.path, tc.want, w.Code)
		}
	}
}
