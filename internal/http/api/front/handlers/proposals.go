package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/deckly-app/deckly/internal/auth"
	"github.com/deckly-app/deckly/internal/http/api/response"
	"github.com/deckly-app/deckly/internal/models"
	"github.com/deckly-app/deckly/internal/proposal"
	"github.com/deckly-app/deckly/internal/ratelimit"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const sseKeepAlive = 15 * time.Second

// ProposalHandler serves the account-facing proposal endpoints.
type ProposalHandler struct {
	proposals *proposal.Service
	throttle  *ratelimit.Manager
	timeout   time.Duration
}

// NewProposalHandler constructs a ProposalHandler. timeout bounds each
// generation attempt; zero means no bound.
func NewProposalHandler(proposals *proposal.Service, throttle *ratelimit.Manager, timeout time.Duration) *ProposalHandler {
	return &ProposalHandler{proposals: proposals, throttle: throttle, timeout: timeout}
}

// createProposalRequest defines the create payload.
type createProposalRequest struct {
	Title   string                 `json:"title"`
	Details models.ProposalDetails `json:"details"`
}

// Create stores a new draft after the quota check.
func (h *ProposalHandler) Create(c *gin.Context) {
	session, ok := auth.SessionFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var body createProposalRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	p, errCreate := h.proposals.Create(c.Request.Context(), session.AccountID, proposal.CreateInput{
		Title:   body.Title,
		Details: body.Details,
	})
	if errCreate != nil {
		response.Error(c, errCreate)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"proposal": response.Proposal(p)})
}

// List returns the caller's proposals.
func (h *ProposalHandler) List(c *gin.Context) {
	session, ok := auth.SessionFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	rows, total, errList := h.proposals.List(c.Request.Context(), proposal.ListOptions{
		AccountID: session.AccountID,
		Status:    models.ProposalStatus(strings.TrimSpace(c.Query("status"))),
		Page:      page,
		PageSize:  size,
	})
	if errList != nil {
		response.Error(c, errList)
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, response.ProposalSummary(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"proposals": out, "total": total, "page": page})
}

// Get returns one of the caller's proposals.
func (h *ProposalHandler) Get(c *gin.Context) {
	session, ok := auth.SessionFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	p, errGet := h.proposals.Get(c.Request.Context(), session.AccountID, c.Param("id"))
	if errGet != nil {
		response.Error(c, errGet)
		return
	}
	c.JSON(http.StatusOK, gin.H{"proposal": response.Proposal(p)})
}

// Delete removes one of the caller's proposals.
func (h *ProposalHandler) Delete(c *gin.Context) {
	session, ok := auth.SessionFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if errDelete := h.proposals.Delete(c.Request.Context(), session.AccountID, c.Param("id")); errDelete != nil {
		response.Error(c, errDelete)
		return
	}
	c.Status(http.StatusNoContent)
}

// generateRequest optionally replaces the descriptive fields before generating.
type generateRequest struct {
	Details *models.ProposalDetails `json:"details"`
}

// Generate runs a generation attempt. With ?async=true it returns 202 and
// progress is available from the events stream.
func (h *ProposalHandler) Generate(c *gin.Context) {
	session, ok := auth.SessionFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var body generateRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil && !errors.Is(errBind, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	ctx := c.Request.Context()
	p, errGet := h.proposals.Get(ctx, session.AccountID, c.Param("id"))
	if errGet != nil {
		response.Error(c, errGet)
		return
	}

	if h.throttle != nil {
		res, errAllow := h.throttle.AllowAccount(ctx, session.AccountID)
		if errAllow != nil {
			log.WithError(errAllow).Warn("generate: throttle check failed")
		} else if !res.Allowed {
			retry := res.RetryAfter(h.throttle.Now())
			c.Header("Retry-After", strconv.Itoa(int(retry.Seconds())+1))
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many generation requests, try again shortly"})
			return
		}
	}

	if async, _ := strconv.ParseBool(c.Query("async")); async {
		h.proposals.Start(p.ID, body.Details, h.timeout)
		c.JSON(http.StatusAccepted, gin.H{"proposal_id": p.ID, "status": models.ProposalStatusGenerating})
		return
	}

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}
	result, errGenerate := h.proposals.Generate(ctx, p.ID, body.Details)
	if errGenerate != nil {
		status, payload := response.Status(errGenerate)
		if result.Proposal != nil {
			payload["proposal"] = response.Proposal(result.Proposal)
		}
		c.JSON(status, payload)
		return
	}
	out := gin.H{"proposal": response.Proposal(result.Proposal)}
	if result.Warning != "" {
		out["warning"] = result.Warning
	}
	c.JSON(http.StatusOK, out)
}

// Events streams progress events as server-sent events until the attempt
// finishes or the client goes away.
func (h *ProposalHandler) Events(c *gin.Context) {
	session, ok := auth.SessionFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	hub := h.proposals.Hub()
	if hub == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "progress events are not enabled"})
		return
	}
	ctx := c.Request.Context()
	id := c.Param("id")

	events, cancel := hub.Subscribe(id)
	defer cancel()

	p, errGet := h.proposals.Get(ctx, session.AccountID, id)
	if errGet != nil {
		response.Error(c, errGet)
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	current := proposal.Event{
		ProposalID: p.ID,
		Status:     p.Status,
		Progress:   p.Progress,
		Message:    p.ProgressMessage,
		Error:      p.Error,
		At:         p.UpdatedAt,
	}
	c.SSEvent("progress", current)
	if p.Status != models.ProposalStatusGenerating {
		return
	}

	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()
	c.Stream(func(io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-keepAlive.C:
			c.SSEvent("ping", gin.H{"at": time.Now().UTC()})
			return true
		case ev, open := <-events:
			if !open {
				return false
			}
			c.SSEvent("progress", ev)
			return !ev.Terminal()
		}
	})
}
