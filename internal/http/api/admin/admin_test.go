package admin

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/deckly-app/deckly/internal/analytics"
	"github.com/deckly-app/deckly/internal/auth"
	"github.com/deckly-app/deckly/internal/config"
	"github.com/deckly-app/deckly/internal/db"
	"github.com/deckly-app/deckly/internal/models"
	"github.com/deckly-app/deckly/internal/proposal"
	"github.com/deckly-app/deckly/internal/quota"
	internalsettings "github.com/deckly-app/deckly/internal/settings"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type adminServer struct {
	engine *gin.Engine
	conn   *gorm.DB
	quota  *quota.Service
	jwtCfg config.JWTConfig
	admin  models.User
	token  string
}

func newAdminServer(t *testing.T) *adminServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	conn, err := db.Open("file:" + filepath.Join(t.TempDir(), "admin.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))

	jwtCfg := config.JWTConfig{Secret: "admin-secret", Expiry: time.Hour}
	quotaSvc := quota.NewService(conn)
	r := gin.New()
	RegisterAdminRoutes(r, conn, jwtCfg, Services{
		Quota:     quotaSvc,
		Proposals: proposal.NewService(conn, quotaSvc, nil),
		Analytics: analytics.NewService(conn),
	})

	adminUser := models.User{Email: "root@example.com", Password: "x", IsAdmin: true}
	require.NoError(t, conn.Create(&adminUser).Error)
	token, _, errIssue := auth.IssueToken(jwtCfg, adminUser, time.Now())
	require.NoError(t, errIssue)
	return &adminServer{engine: r, conn: conn, quota: quotaSvc, jwtCfg: jwtCfg, admin: adminUser, token: token}
}

func (s *adminServer) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	return s.doAs(t, s.token, method, path, body)
}

func (s *adminServer) doAs(t *testing.T, token, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var payload []byte
	switch v := body.(type) {
	case nil:
	case string:
		payload = []byte(v)
	default:
		var err error
		payload, err = json.Marshal(v)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
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

func (s *adminServer) createUser(t *testing.T, email string) models.User {
	t.Helper()
	user := models.User{Email: email, Password: "x"}
	require.NoError(t, s.conn.Create(&user).Error)
	return user
}

func TestHealthz(t *testing.T) {
	s := newAdminServer(t)
	w, body := s.doAs(t, "", http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	s := newAdminServer(t)
	user := s.createUser(t, "plain@example.com")
	token, _, err := auth.IssueToken(s.jwtCfg, user, time.Now())
	require.NoError(t, err)

	w, _ := s.doAs(t, "", http.MethodGet, "/v0/admin/limits/default", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w, _ = s.doAs(t, token, http.MethodGet, "/v0/admin/limits/default", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestDefaultLimitRoundTrip(t *testing.T) {
	s := newAdminServer(t)

	w, body := s.do(t, http.MethodGet, "/v0/admin/limits/default", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, body["limit"])

	w, _ = s.do(t, http.MethodPut, "/v0/admin/limits/default", `{"limit": 5}`)
	require.Equal(t, http.StatusOK, w.Code)
	w, body = s.do(t, http.MethodGet, "/v0/admin/limits/default", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(5), body["limit"])

	w, _ = s.do(t, http.MethodPut, "/v0/admin/limits/default", `{"limit": null}`)
	require.Equal(t, http.StatusOK, w.Code)
	w, body = s.do(t, http.MethodGet, "/v0/admin/limits/default", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, body["limit"])
}

func TestSetLimitRejectsInvalidValues(t *testing.T) {
	s := newAdminServer(t)
	user := s.createUser(t, "limits@example.com")

	for _, payload := range []string{`{"limit": -1}`, `{"limit": 1.5}`, `{"limit": "ten"}`, `{}`} {
		w, _ := s.do(t, http.MethodPut, "/v0/admin/users/"+user.ID+"/limit", payload)
		assert.Equal(t, http.StatusBadRequest, w.Code, payload)
	}

	w, body := s.do(t, http.MethodPut, "/v0/admin/users/"+user.ID+"/limit", `{"limit": 0}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), body["individual_limit"])

	w, body = s.do(t, http.MethodGet, "/v0/admin/users/"+user.ID+"/limit", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), body["effective_limit"])
	assert.Equal(t, float64(0), body["used"])
}

func TestBatchLimitModes(t *testing.T) {
	s := newAdminServer(t)
	a := s.createUser(t, "a@example.com")
	b := s.createUser(t, "b@example.com")
	limit := 2
	require.NoError(t, s.quota.SetIndividualLimit(t.Context(), a.ID, &limit))

	w, _ := s.do(t, http.MethodPost, "/v0/admin/limits/batch", `{"mode": "all"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, "limit must be present even when null")

	w, _ = s.do(t, http.MethodPost, "/v0/admin/limits/batch", `{"limit": 3, "mode": "list"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body := s.do(t, http.MethodPost, "/v0/admin/limits/batch", `{"limit": 7, "mode": "null_only"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(2), body["total"], "admin and b have no limit")
	assert.Equal(t, float64(2), body["succeeded"])

	got, err := s.quota.GetIndividualLimit(t.Context(), a.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 2, *got)
	got, err = s.quota.GetIndividualLimit(t.Context(), b.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 7, *got)

	w, body = s.do(t, http.MethodPost, "/v0/admin/limits/batch", gin.H{"limit": nil, "mode": "list", "account_ids": []string{a.ID}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body["succeeded"])
	got, err = s.quota.GetIndividualLimit(t.Context(), a.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUserListIncludesQuota(t *testing.T) {
	s := newAdminServer(t)
	user := s.createUser(t, "listed@example.com")
	require.NoError(t, s.conn.Create(&models.Proposal{UserID: user.ID, Title: "one", Status: models.ProposalStatusDraft}).Error)
	limit := 4
	require.NoError(t, s.quota.SetDefaultLimit(t.Context(), &limit))

	w, body := s.do(t, http.MethodGet, "/v0/admin/users?search=listed", nil)
	require.Equal(t, http.StatusOK, w.Code)
	users := body["users"].([]any)
	require.Len(t, users, 1)
	row := users[0].(map[string]any)
	assert.Equal(t, user.ID, row["id"])
	assert.Nil(t, row["individual_limit"])
	assert.Equal(t, float64(4), row["effective_limit"])
	assert.Equal(t, float64(1), row["proposal_count"])
}

func TestAdminCannotDisableSelf(t *testing.T) {
	s := newAdminServer(t)
	w, _ := s.do(t, http.MethodPost, "/v0/admin/users/"+s.admin.ID+"/disable", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = s.do(t, http.MethodDelete, "/v0/admin/users/"+s.admin.ID, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	other := s.createUser(t, "other@example.com")
	w, _ = s.do(t, http.MethodPost, "/v0/admin/users/"+other.ID+"/disable", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var reloaded models.User
	require.NoError(t, s.conn.Where("id = ?", other.ID).Take(&reloaded).Error)
	assert.True(t, reloaded.Disabled)
}

func TestSettingsValidateAndRefresh(t *testing.T) {
	s := newAdminServer(t)

	w, _ := s.do(t, http.MethodPut, "/v0/admin/settings/"+internalsettings.GenerationRateLimitKey, `{"value": -3}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(t, http.MethodPut, "/v0/admin/settings/"+internalsettings.GenerationRateLimitKey, `{"value": 12}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	raw, ok := internalsettings.DBConfigValue(internalsettings.GenerationRateLimitKey)
	require.True(t, ok)
	assert.JSONEq(t, `12`, string(raw))

	w, _ = s.do(t, http.MethodPost, "/v0/admin/settings", gin.H{"key": internalsettings.RateLimitRedisEnabledKey, "value": "yes"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = s.do(t, http.MethodPost, "/v0/admin/settings", gin.H{"key": internalsettings.RateLimitRedisEnabledKey, "value": true})
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestAnalyticsSummary(t *testing.T) {
	s := newAdminServer(t)
	user := s.createUser(t, "stats@example.com")
	require.NoError(t, s.conn.Create(&models.Proposal{UserID: user.ID, Title: "done", Status: models.ProposalStatusCompleted}).Error)

	w, body := s.do(t, http.MethodGet, "/v0/admin/analytics/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), body["users"])
	assert.Equal(t, float64(1), body["admins"])
	assert.Equal(t, float64(1), body["proposals"])

	w, body = s.do(t, http.MethodGet, "/v0/admin/analytics/top-accounts?limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["accounts"], 1)
}
