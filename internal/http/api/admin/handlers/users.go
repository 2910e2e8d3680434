package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/deckly-app/deckly/internal/auth"
	dbutil "github.com/deckly-app/deckly/internal/db"
	"github.com/deckly-app/deckly/internal/http/api/response"
	"github.com/deckly-app/deckly/internal/models"
	"github.com/deckly-app/deckly/internal/quota"
	"github.com/deckly-app/deckly/internal/security"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// UserHandler manages accounts from the admin dashboard.
type UserHandler struct {
	db    *gorm.DB
	quota *quota.Service
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(db *gorm.DB, quotaSvc *quota.Service) *UserHandler {
	return &UserHandler{db: db, quota: quotaSvc}
}

// createUserRequest defines the request body for account creation.
type createUserRequest struct {
	Email    string          `json:"email"`
	Name     string          `json:"name"`
	Password string          `json:"password"`
	IsAdmin  bool            `json:"is_admin"`
	Limit    json.RawMessage `json:"limit"`
}

// Create creates an account and optionally its individual limit.
func (h *UserHandler) Create(c *gin.Context) {
	var body createUserRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	email := strings.ToLower(strings.TrimSpace(body.Email))
	if email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing email"})
		return
	}
	password := strings.TrimSpace(body.Password)
	if password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing password"})
		return
	}
	var limit *int
	if body.Limit != nil {
		parsed, errParse := quota.ParseLimit(body.Limit)
		if errParse != nil {
			response.Error(c, errParse)
			return
		}
		limit = parsed
	}

	hash, errHash := security.HashPassword(password)
	if errHash != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hash password failed"})
		return
	}

	ctx := c.Request.Context()
	user := models.User{
		Email:    email,
		Name:     strings.TrimSpace(body.Name),
		Password: hash,
		IsAdmin:  body.IsAdmin,
	}
	if errCreate := h.db.WithContext(ctx).Create(&user).Error; errCreate != nil {
		if dbutil.IsUniqueViolation(errCreate) {
			c.JSON(http.StatusConflict, gin.H{"error": "email already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create user failed"})
		return
	}
	if body.Limit != nil {
		if errLimit := h.quota.SetIndividualLimit(ctx, user.ID, limit); errLimit != nil {
			log.WithError(errLimit).WithField("account_id", user.ID).Warn("admin: set initial limit failed")
		}
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":               user.ID,
		"email":            user.Email,
		"name":             user.Name,
		"is_admin":         user.IsAdmin,
		"individual_limit": response.Limit(limit),
	})
}

// List returns accounts with their limits and proposal counts.
func (h *UserHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 200 {
		size = 50
	}
	ctx := c.Request.Context()

	q := h.db.WithContext(ctx).Model(&models.User{})
	if searchQ := strings.TrimSpace(c.Query("search")); searchQ != "" {
		pattern := dbutil.NormalizeLikePattern(h.db, "%"+searchQ+"%")
		q = q.Where(
			dbutil.CaseInsensitiveLikeExpr(h.db, "email")+" OR "+dbutil.CaseInsensitiveLikeExpr(h.db, "name"),
			pattern,
			pattern,
		)
	}
	if disabledQ := strings.TrimSpace(c.Query("disabled")); disabledQ != "" {
		if disabled, errParse := strconv.ParseBool(disabledQ); errParse == nil {
			q = q.Where("disabled = ?", disabled)
		}
	}

	var total int64
	if errCount := q.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count users failed"})
		return
	}
	var rows []models.User
	if errFind := q.Order("created_at DESC").Offset((page - 1) * size).Limit(size).Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list users failed"})
		return
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	limits, errLimits := h.quota.IndividualLimits(ctx, ids)
	if errLimits != nil {
		response.Error(c, errLimits)
		return
	}
	counts, errCounts := h.quota.ProposalCounts(ctx, ids)
	if errCounts != nil {
		response.Error(c, errCounts)
		return
	}
	defaultLimit, errDefault := h.quota.GetDefaultLimit(ctx)
	if errDefault != nil {
		response.Error(c, errDefault)
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		individual := limits[row.ID]
		effective := individual
		if effective == nil {
			effective = defaultLimit
		}
		item := formatUser(row)
		item["individual_limit"] = response.Limit(individual)
		item["effective_limit"] = response.Limit(effective)
		item["proposal_count"] = counts[row.ID]
		out = append(out, item)
	}
	c.JSON(http.StatusOK, gin.H{
		"users":         out,
		"total":         total,
		"page":          page,
		"limit":         size,
		"default_limit": response.Limit(defaultLimit),
	})
}

// Get returns an account with its quota position.
func (h *UserHandler) Get(c *gin.Context) {
	user, ok := h.loadUser(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	individual, errIndividual := h.quota.GetIndividualLimit(ctx, user.ID)
	if errIndividual != nil {
		response.Error(c, errIndividual)
		return
	}
	usage, errUsage := h.quota.GetUsage(ctx, user.ID)
	if errUsage != nil {
		response.Error(c, errUsage)
		return
	}
	out := formatUser(*user)
	out["individual_limit"] = response.Limit(individual)
	out["effective_limit"] = response.Limit(usage.Limit)
	out["proposal_count"] = usage.Used
	c.JSON(http.StatusOK, out)
}

// updateUserRequest defines the request body for account updates.
type updateUserRequest struct {
	Email    *string `json:"email"`
	Name     *string `json:"name"`
	IsAdmin  *bool   `json:"is_admin"`
	Disabled *bool   `json:"disabled"`
}

// Update modifies account fields.
func (h *UserHandler) Update(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	var body updateUserRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	if body.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*body.Email))
		if email == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email"})
			return
		}
		updates["email"] = email
	}
	if body.Name != nil {
		updates["name"] = strings.TrimSpace(*body.Name)
	}
	if body.IsAdmin != nil {
		if !*body.IsAdmin && isSelf(c, id) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot revoke your own admin access"})
			return
		}
		updates["is_admin"] = *body.IsAdmin
	}
	if body.Disabled != nil {
		if *body.Disabled && isSelf(c, id) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot disable your own account"})
			return
		}
		updates["disabled"] = *body.Disabled
	}

	res := h.db.WithContext(c.Request.Context()).Model(&models.User{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		if dbutil.IsUniqueViolation(res.Error) {
			c.JSON(http.StatusConflict, gin.H{"error": "email already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Delete removes an account with its proposals and limit record.
func (h *UserHandler) Delete(c *gin.Context) {
	user, ok := h.loadUser(c)
	if !ok {
		return
	}
	if isSelf(c, user.ID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot delete your own account"})
		return
	}
	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if errDel := tx.Where("user_id = ?", user.ID).Delete(&models.Proposal{}).Error; errDel != nil {
			return errDel
		}
		if errDel := tx.Where("account_id = ?", user.ID).Delete(&models.AccountLimit{}).Error; errDel != nil {
			return errDel
		}
		return tx.Where("id = ?", user.ID).Delete(&models.User{}).Error
	})
	if errTx != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

// Disable blocks an account from signing in.
func (h *UserHandler) Disable(c *gin.Context) {
	h.setDisabled(c, true)
}

// Enable re-allows a disabled account.
func (h *UserHandler) Enable(c *gin.Context) {
	h.setDisabled(c, false)
}

func (h *UserHandler) setDisabled(c *gin.Context, disabled bool) {
	id := strings.TrimSpace(c.Param("id"))
	if disabled && isSelf(c, id) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot disable your own account"})
		return
	}
	res := h.db.WithContext(c.Request.Context()).Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]any{"disabled": disabled, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// changePasswordRequest defines the request body for password changes.
type changePasswordRequest struct {
	Password string `json:"password"`
}

// ChangePassword replaces an account password.
func (h *UserHandler) ChangePassword(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	var body changePasswordRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	password := strings.TrimSpace(body.Password)
	if password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing password"})
		return
	}
	hash, errHash := security.HashPassword(password)
	if errHash != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hash password failed"})
		return
	}
	res := h.db.WithContext(c.Request.Context()).Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]any{"password": hash, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "change password failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *UserHandler) loadUser(c *gin.Context) (*models.User, bool) {
	var user models.User
	errFind := h.db.WithContext(c.Request.Context()).
		Where("id = ?", strings.TrimSpace(c.Param("id"))).
		Take(&user).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return nil, false
	}
	return &user, true
}

func isSelf(c *gin.Context, id string) bool {
	session, ok := auth.SessionFrom(c)
	return ok && session.AccountID == id
}

func formatUser(u models.User) gin.H {
	return gin.H{
		"id":            u.ID,
		"email":         u.Email,
		"name":          u.Name,
		"is_admin":      u.IsAdmin,
		"disabled":      u.Disabled,
		"last_login_at": u.LastLoginAt,
		"created_at":    u.CreatedAt,
		"updated_at":    u.UpdatedAt,
	}
}
