// Package response maps domain errors and records onto JSON responses.
package response

import (
	"errors"
	"net/http"

	"github.com/deckly-app/deckly/internal/generation"
	"github.com/deckly-app/deckly/internal/models"
	"github.com/deckly-app/deckly/internal/proposal"
	"github.com/deckly-app/deckly/internal/quota"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Error codes returned alongside the message.
const (
	CodeLimitExceeded = "limit_exceeded"
	CodeValidation    = "validation_error"
	CodeNotFound      = "not_found"
	CodeUnavailable   = "generation_unavailable"
	CodeFailed        = "generation_failed"
	CodeInternal      = "internal_error"
)

// Status returns the HTTP status and body for err.
func Status(err error) (int, gin.H) {
	var exceeded *quota.LimitExceededError
	var failed *generation.FailedError
	switch {
	case errors.As(err, &exceeded):
		return http.StatusForbidden, gin.H{"error": exceeded.Error(), "code": CodeLimitExceeded, "limit": exceeded.Limit}
	case errors.Is(err, quota.ErrValidation), errors.Is(err, proposal.ErrInvalidInput):
		return http.StatusBadRequest, gin.H{"error": err.Error(), "code": CodeValidation}
	case errors.Is(err, proposal.ErrNotFound):
		return http.StatusNotFound, gin.H{"error": "not found", "code": CodeNotFound}
	case proposal.IsQuotaFailure(err):
		return http.StatusForbidden, gin.H{"error": err.Error(), "code": CodeLimitExceeded}
	case errors.Is(err, generation.ErrUnavailable):
		return http.StatusBadGateway, gin.H{"error": generation.ErrUnavailable.Error(), "code": CodeUnavailable}
	case errors.As(err, &failed):
		return http.StatusBadGateway, gin.H{"error": failed.Error(), "code": CodeFailed}
	default:
		return http.StatusInternalServerError, gin.H{"error": "internal error", "code": CodeInternal}
	}
}

// Error writes err as JSON. Unexpected errors are logged and not echoed.
func Error(c *gin.Context, err error) {
	status, body := Status(err)
	if status == http.StatusInternalServerError {
		log.WithError(err).WithField("path", c.FullPath()).Error("request failed")
	}
	c.JSON(status, body)
}

// Proposal formats a proposal record.
func Proposal(p *models.Proposal) gin.H {
	if p == nil {
		return nil
	}
	return gin.H{
		"id":               p.ID,
		"account_id":       p.UserID,
		"title":            p.Title,
		"status":           p.Status,
		"progress":         p.Progress,
		"progress_message": p.ProgressMessage,
		"content":          p.Content,
		"error":            p.Error,
		"details":          p.Details.Data(),
		"created_at":       p.CreatedAt,
		"updated_at":       p.UpdatedAt,
	}
}

// ProposalSummary formats a proposal without its content.
func ProposalSummary(p *models.Proposal) gin.H {
	out := Proposal(p)
	if out != nil {
		delete(out, "content")
		delete(out, "details")
	}
	return out
}

// Limit formats a nullable limit.
func Limit(limit *int) any {
	if limit == nil {
		return nil
	}
	return *limit
}
