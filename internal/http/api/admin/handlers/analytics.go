package handlers

import (
	"net/http"
	"strconv"

	"github.com/deckly-app/deckly/internal/analytics"
	"github.com/deckly-app/deckly/internal/http/api/response"
	"github.com/gin-gonic/gin"
)

// AnalyticsHandler serves dashboard aggregates.
type AnalyticsHandler struct {
	analytics *analytics.Service
}

// NewAnalyticsHandler constructs an AnalyticsHandler.
func NewAnalyticsHandler(svc *analytics.Service) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: svc}
}

// Summary returns headline totals.
func (h *AnalyticsHandler) Summary(c *gin.Context) {
	summary, err := h.analytics.Summary(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// Daily returns per-day proposal counts; ?days= defaults to 30.
func (h *AnalyticsHandler) Daily(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))
	rows, err := h.analytics.Daily(c.Request.Context(), days)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": rows})
}

// TopAccounts returns the heaviest accounts; ?limit= defaults to 10.
func (h *AnalyticsHandler) TopAccounts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	rows, err := h.analytics.TopAccounts(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accounts": rows})
}

// Generations returns generation attempt totals; ?days= defaults to 30.
func (h *AnalyticsHandler) Generations(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))
	stats, err := h.analytics.Generations(c.Request.Context(), days)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
