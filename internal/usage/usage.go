// Package usage records every call to the generation service with its
// outcome, latency and token consumption.
package usage

import (
	"context"
	"strings"
	"time"

	"github.com/deckly-app/deckly/internal/generation"
	"github.com/deckly-app/deckly/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const recordTimeout = 5 * time.Second

// Recorder wraps a generator and persists one Usage row per call.
type Recorder struct {
	db       *gorm.DB
	next     generation.Generator
	provider string
	model    string
	now      func() time.Time
}

// NewRecorder wraps next. provider and model are stored on every row.
func NewRecorder(db *gorm.DB, next generation.Generator, provider, model string) *Recorder {
	return &Recorder{
		db:       db,
		next:     next,
		provider: strings.TrimSpace(provider),
		model:    strings.TrimSpace(model),
		now:      time.Now,
	}
}

// Generate calls the wrapped generator and records the attempt. Recording
// failures are logged and never change the result.
func (r *Recorder) Generate(ctx context.Context, req generation.Request) (generation.Response, error) {
	if r.next == nil {
		return generation.Response{}, generation.ErrUnavailable
	}
	start := r.now()
	resp, err := r.next.Generate(ctx, req)
	r.record(req, resp, err, start, r.now().Sub(start))
	return resp, err
}

func (r *Recorder) record(req generation.Request, resp generation.Response, errGenerate error, start time.Time, elapsed time.Duration) {
	if r.db == nil {
		return
	}
	row := models.Usage{
		ProposalID:   req.ProposalID,
		UserID:       req.AccountID,
		Provider:     r.provider,
		Model:        r.model,
		Outcome:      outcome(resp, errGenerate),
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
		TotalTokens:  resp.Usage.TotalTokens,
		DurationMs:   elapsed.Milliseconds(),
		RequestedAt:  normalizeTime(start),
		CreatedAt:    time.Now().UTC(),
	}
	if row.TotalTokens == 0 {
		row.TotalTokens = row.InputTokens + row.OutputTokens
	}
	switch row.Outcome {
	case models.GenerationUnavailable:
		row.Error = errGenerate.Error()
	case models.GenerationFailed:
		row.Error = strings.TrimSpace(resp.Error)
	}

	// The caller's context may already be cancelled by a timeout.
	dbCtx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if errCreate := r.db.WithContext(dbCtx).Create(&row).Error; errCreate != nil {
		log.WithError(errCreate).WithField("proposal_id", req.ProposalID).Warn("usage: failed to persist generation record")
	}
}

func outcome(resp generation.Response, err error) models.GenerationOutcome {
	switch {
	case err != nil:
		return models.GenerationUnavailable
	case !resp.Success || strings.TrimSpace(resp.Content) == "":
		return models.GenerationFailed
	default:
		return models.GenerationCompleted
	}
}

func normalizeTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}
