package front

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/deckly-app/deckly/internal/config"
	"github.com/deckly-app/deckly/internal/db"
	"github.com/deckly-app/deckly/internal/generation"
	"github.com/deckly-app/deckly/internal/proposal"
	"github.com/deckly-app/deckly/internal/quota"
	"github.com/deckly-app/deckly/internal/ratelimit"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testServer struct {
	engine *gin.Engine
	conn   *gorm.DB
	quota  *quota.Service
	calls  *atomic.Int32
}

func newTestServer(t *testing.T, gen generation.GeneratorFunc, throttle *ratelimit.Manager) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	conn, err := db.Open("file:" + filepath.Join(t.TempDir(), "front.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))

	calls := &atomic.Int32{}
	counted := generation.GeneratorFunc(func(ctx context.Context, req generation.Request) (generation.Response, error) {
		calls.Add(1)
		return gen(ctx, req)
	})

	quotaSvc := quota.NewService(conn)
	proposals := proposal.NewService(conn, quotaSvc, counted, proposal.WithHub(proposal.NewHub(0)))
	t.Cleanup(proposals.Wait)

	r := gin.New()
	RegisterFrontRoutes(r, conn, config.JWTConfig{Secret: "front-secret", Expiry: time.Hour}, Services{
		Quota:             quotaSvc,
		Proposals:         proposals,
		Throttle:          throttle,
		GenerationTimeout: time.Minute,
	})
	return &testServer{engine: r, conn: conn, quota: quotaSvc, calls: calls}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	out := map[string]any{}
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w, out
}

func (s *testServer) signup(t *testing.T, email string) (string, string) {
	t.Helper()
	w, body := s.do(t, http.MethodPost, "/v0/auth/signup", "", gin.H{
		"email":    email,
		"password": "correct-horse",
		"name":     "Tester",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	user := body["user"].(map[string]any)
	return body["token"].(string), user["id"].(string)
}

func validProposal() gin.H {
	return gin.H{
		"title": "Website redesign",
		"details": gin.H{
			"project_name":  "Website redesign",
			"client_name":   "Acme",
			"meeting_notes": "Needs a new landing page and a blog.",
		},
	}
}

func okGenerator(_ context.Context, _ generation.Request) (generation.Response, error) {
	return generation.Response{Success: true, Content: "<h1>Proposal</h1>"}, nil
}

func TestSignupLoginAndMe(t *testing.T) {
	s := newTestServer(t, okGenerator, nil)
	token, id := s.signup(t, "Person@Example.com ")

	w, _ := s.do(t, http.MethodPost, "/v0/auth/signup", "", gin.H{"email": "person@example.com", "password": "correct-horse"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = s.do(t, http.MethodPost, "/v0/auth/login", "", gin.H{"email": "person@example.com", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, body := s.do(t, http.MethodPost, "/v0/auth/login", "", gin.H{"email": "person@example.com", "password": "correct-horse"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, body["token"])

	w, body = s.do(t, http.MethodGet, "/v0/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	session := body["session"].(map[string]any)
	assert.Equal(t, id, session["account_id"])
}

func TestCreateEnforcesQuota(t *testing.T) {
	s := newTestServer(t, okGenerator, nil)
	token, id := s.signup(t, "quota@example.com")
	limit := 1
	require.NoError(t, s.quota.SetIndividualLimit(context.Background(), id, &limit))

	w, _ := s.do(t, http.MethodPost, "/v0/proposals", token, validProposal())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w, body := s.do(t, http.MethodPost, "/v0/proposals", token, validProposal())
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "limit_exceeded", body["code"])
	assert.Equal(t, float64(1), body["limit"])
	assert.Contains(t, body["error"], "limit of 1")

	w, body = s.do(t, http.MethodGet, "/v0/me/quota", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body["limit"])
	assert.Equal(t, float64(1), body["used"])
	assert.Equal(t, float64(0), body["remaining"])
}

func TestCreateRejectsMissingFields(t *testing.T) {
	s := newTestServer(t, okGenerator, nil)
	token, _ := s.signup(t, "fields@example.com")

	w, body := s.do(t, http.MethodPost, "/v0/proposals", token, gin.H{"details": gin.H{"client_name": "Acme"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_error", body["code"])
}

func TestGenerateSyncCompletes(t *testing.T) {
	s := newTestServer(t, okGenerator, nil)
	token, _ := s.signup(t, "gen@example.com")

	w, body := s.do(t, http.MethodPost, "/v0/proposals", token, validProposal())
	require.Equal(t, http.StatusCreated, w.Code)
	id := body["proposal"].(map[string]any)["id"].(string)

	w, body = s.do(t, http.MethodPost, "/v0/proposals/"+id+"/generate", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	p := body["proposal"].(map[string]any)
	assert.Equal(t, "completed", p["status"])
	assert.Equal(t, float64(100), p["progress"])
	assert.Equal(t, "<h1>Proposal</h1>", p["content"])
	assert.Equal(t, int32(1), s.calls.Load())
}

func TestGenerateLogicalFailureMarksError(t *testing.T) {
	s := newTestServer(t, func(context.Context, generation.Request) (generation.Response, error) {
		return generation.Response{Success: false, Error: "model refused"}, nil
	}, nil)
	token, _ := s.signup(t, "fail@example.com")

	_, body := s.do(t, http.MethodPost, "/v0/proposals", token, validProposal())
	id := body["proposal"].(map[string]any)["id"].(string)

	w, body := s.do(t, http.MethodPost, "/v0/proposals/"+id+"/generate", token, nil)
	require.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "generation_failed", body["code"])

	w, body = s.do(t, http.MethodGet, "/v0/proposals/"+id, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	p := body["proposal"].(map[string]any)
	assert.Equal(t, "error", p["status"])
	assert.Equal(t, "model refused", p["error"])
}

func TestProposalsAreScopedToOwner(t *testing.T) {
	s := newTestServer(t, okGenerator, nil)
	owner, _ := s.signup(t, "owner@example.com")
	other, _ := s.signup(t, "other@example.com")

	_, body := s.do(t, http.MethodPost, "/v0/proposals", owner, validProposal())
	id := body["proposal"].(map[string]any)["id"].(string)

	w, _ := s.do(t, http.MethodGet, "/v0/proposals/"+id, other, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w, _ = s.do(t, http.MethodDelete, "/v0/proposals/"+id, other, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, body = s.do(t, http.MethodGet, "/v0/proposals", other, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), body["total"])

	w, _ = s.do(t, http.MethodDelete, "/v0/proposals/"+id, owner, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestGenerateThrottled(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	throttle := ratelimit.NewManager(func() ratelimit.SettingsConfig {
		return ratelimit.SettingsConfig{Limit: 1}
	}, func() time.Time { return now }, nil)
	s := newTestServer(t, okGenerator, throttle)
	token, _ := s.signup(t, "throttle@example.com")

	_, body := s.do(t, http.MethodPost, "/v0/proposals", token, validProposal())
	id := body["proposal"].(map[string]any)["id"].(string)

	w, _ := s.do(t, http.MethodPost, "/v0/proposals/"+id+"/generate", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(t, http.MethodPost, "/v0/proposals/"+id+"/generate", token, nil)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, int32(1), s.calls.Load(), "throttled requests never reach the generator")
}

func TestEventsSnapshotForIdleProposal(t *testing.T) {
	s := newTestServer(t, okGenerator, nil)
	token, _ := s.signup(t, "events@example.com")
	_, body := s.do(t, http.MethodPost, "/v0/proposals", token, validProposal())
	id := body["proposal"].(map[string]any)["id"].(string)

	w, _ := s.do(t, http.MethodGet, "/v0/proposals/"+id+"/events", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "event:progress")
	assert.Contains(t, w.Body.String(), `"status":"draft"`)
}
