package handlers

import (
	"net/http"

	"github.com/deckly-app/deckly/internal/auth"
	"github.com/deckly-app/deckly/internal/http/api/response"
	"github.com/deckly-app/deckly/internal/quota"
	"github.com/gin-gonic/gin"
)

// QuotaHandler reports the caller's quota position.
type QuotaHandler struct {
	quota *quota.Service
}

// NewQuotaHandler constructs a QuotaHandler.
func NewQuotaHandler(quotaSvc *quota.Service) *QuotaHandler {
	return &QuotaHandler{quota: quotaSvc}
}

// Get returns {limit, used, remaining}; a null limit means unlimited.
func (h *QuotaHandler) Get(c *gin.Context) {
	session, ok := auth.SessionFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	usage, errUsage := h.quota.GetUsage(c.Request.Context(), session.AccountID)
	if errUsage != nil {
		response.Error(c, errUsage)
		return
	}
	c.JSON(http.StatusOK, usage)
}
