package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/deckly-app/deckly/internal/http/api/response"
	"github.com/deckly-app/deckly/internal/quota"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// LimitHandler reads and writes proposal limits.
type LimitHandler struct {
	quota *quota.Service
}

// NewLimitHandler constructs a LimitHandler.
func NewLimitHandler(quotaSvc *quota.Service) *LimitHandler {
	return &LimitHandler{quota: quotaSvc}
}

// setLimitRequest carries a limit that is null or a non-negative integer.
type setLimitRequest struct {
	Limit json.RawMessage `json:"limit"`
}

// GetDefault returns the system-wide fallback limit.
func (h *LimitHandler) GetDefault(c *gin.Context) {
	limit, errGet := h.quota.GetDefaultLimit(c.Request.Context())
	if errGet != nil {
		response.Error(c, errGet)
		return
	}
	c.JSON(http.StatusOK, gin.H{"limit": response.Limit(limit)})
}

// SetDefault replaces the system-wide fallback limit.
func (h *LimitHandler) SetDefault(c *gin.Context) {
	limit, ok := bindLimit(c)
	if !ok {
		return
	}
	if errSet := h.quota.SetDefaultLimit(c.Request.Context(), limit); errSet != nil {
		response.Error(c, errSet)
		return
	}
	log.WithField("limit", response.Limit(limit)).Info("admin: default proposal limit updated")
	c.JSON(http.StatusOK, gin.H{"limit": response.Limit(limit)})
}

// GetAccount returns an account's individual, default and effective limits.
func (h *LimitHandler) GetAccount(c *gin.Context) {
	ctx := c.Request.Context()
	id := strings.TrimSpace(c.Param("id"))
	individual, errIndividual := h.quota.GetIndividualLimit(ctx, id)
	if errIndividual != nil {
		response.Error(c, errIndividual)
		return
	}
	defaultLimit, errDefault := h.quota.GetDefaultLimit(ctx)
	if errDefault != nil {
		response.Error(c, errDefault)
		return
	}
	usage, errUsage := h.quota.GetUsage(ctx, id)
	if errUsage != nil {
		response.Error(c, errUsage)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"account_id":       id,
		"individual_limit": response.Limit(individual),
		"default_limit":    response.Limit(defaultLimit),
		"effective_limit":  response.Limit(usage.Limit),
		"used":             usage.Used,
		"remaining":        usage.Remaining,
	})
}

// SetAccount replaces an account's individual limit; null inherits the default.
func (h *LimitHandler) SetAccount(c *gin.Context) {
	limit, ok := bindLimit(c)
	if !ok {
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	if errSet := h.quota.SetIndividualLimit(c.Request.Context(), id, limit); errSet != nil {
		response.Error(c, errSet)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account_id": id, "individual_limit": response.Limit(limit)})
}

// batchLimitRequest selects accounts for a batch update.
type batchLimitRequest struct {
	Limit      json.RawMessage `json:"limit"`
	Mode       string          `json:"mode"`
	AccountIDs []string        `json:"account_ids"`
}

// Batch applies one limit to all, unset-only, or listed accounts.
func (h *LimitHandler) Batch(c *gin.Context) {
	var body batchLimitRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.Limit == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit is required; use null to clear"})
		return
	}
	limit, errParse := quota.ParseLimit(body.Limit)
	if errParse != nil {
		response.Error(c, errParse)
		return
	}
	mode := quota.SelectMode(strings.TrimSpace(body.Mode))
	if mode == quota.SelectList && len(body.AccountIDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "account_ids is required for list mode"})
		return
	}
	result, errBatch := h.quota.ApplyBatch(c.Request.Context(), limit, quota.Selector{Mode: mode, AccountIDs: body.AccountIDs})
	if errBatch != nil {
		response.Error(c, errBatch)
		return
	}
	log.WithFields(log.Fields{
		"mode":      mode,
		"total":     result.Total,
		"succeeded": result.Succeeded,
		"failed":    result.Failed,
	}).Info("admin: batch proposal limit applied")
	c.JSON(http.StatusOK, result)
}

func bindLimit(c *gin.Context) (*int, bool) {
	var body setLimitRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return nil, false
	}
	if body.Limit == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit is required; use null to clear"})
		return nil, false
	}
	limit, errParse := quota.ParseLimit(body.Limit)
	if errParse != nil {
		response.Error(c, errParse)
		return nil, false
	}
	return limit, true
}
