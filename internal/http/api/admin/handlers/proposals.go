package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/deckly-app/deckly/internal/http/api/response"
	"github.com/deckly-app/deckly/internal/models"
	"github.com/deckly-app/deckly/internal/proposal"
	"github.com/gin-gonic/gin"
)

// ProposalHandler lists proposals across all accounts.
type ProposalHandler struct {
	proposals *proposal.Service
}

// NewProposalHandler constructs a ProposalHandler.
func NewProposalHandler(proposals *proposal.Service) *ProposalHandler {
	return &ProposalHandler{proposals: proposals}
}

// List filters by ?status= and ?account_id=.
func (h *ProposalHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	rows, total, err := h.proposals.List(c.Request.Context(), proposal.ListOptions{
		AccountID: strings.TrimSpace(c.Query("account_id")),
		Status:    models.ProposalStatus(strings.TrimSpace(c.Query("status"))),
		Page:      page,
		PageSize:  size,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, response.ProposalSummary(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"proposals": out, "total": total, "page": page})
}

// Get returns any proposal by id.
func (h *ProposalHandler) Get(c *gin.Context) {
	p, err := h.proposals.Get(c.Request.Context(), "", c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"proposal": response.Proposal(p)})
}
