// Package proposal owns the proposal lifecycle: creation behind the quota
// gate and the draft, generating, completed or error state machine.
package proposal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/deckly-app/deckly/internal/generation"
	"github.com/deckly-app/deckly/internal/models"
	"github.com/deckly-app/deckly/internal/quota"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a proposal does not exist or is not visible to the caller.
	ErrNotFound = errors.New("proposal not found")
	// ErrInvalidInput is returned for malformed creation input.
	ErrInvalidInput = errors.New("invalid proposal input")
)

// finalSaveTimeout bounds final-state writes, which outlive the attempt's context.
const finalSaveTimeout = 5 * time.Second

// SaveWarning is surfaced when generation succeeded but the result was not stored.
const SaveWarning = "proposal generated but could not be saved; the content may be lost on reload"

// Generation checkpoints, in emission order.
var checkpoints = struct {
	analyzing, structuring, drafting, finalizing, completed checkpoint
}{
	analyzing:   checkpoint{10, "Analyzing input"},
	structuring: checkpoint{30, "Structuring proposal"},
	drafting:    checkpoint{60, "Drafting proposal content"},
	finalizing:  checkpoint{90, "Finalizing document"},
	completed:   checkpoint{100, "Completed"},
}

type checkpoint struct {
	progress int
	message  string
}

// LimitChecker gates proposal creation.
type LimitChecker interface {
	CheckLimit(ctx context.Context, accountID string) error
}

// CreateInput carries the fields of a new proposal.
type CreateInput struct {
	Title   string
	Details models.ProposalDetails
}

// Result is the outcome of one generation attempt.
type Result struct {
	Proposal *models.Proposal
	Warning  string
}

// Service creates, generates and lists proposals.
//
// Generate does not serialize attempts on the same proposal; callers must.
type Service struct {
	db        *gorm.DB
	limits    LimitChecker
	generator generation.Generator
	reporter  ProgressReporter
	hub       *Hub
	now       func() time.Time

	// persist writes final state; replaced in tests to simulate write failures.
	persist func(ctx context.Context, proposalID string, fields map[string]any) error

	wg sync.WaitGroup
}

// Option customises a Service.
type Option func(*Service)

// WithHub publishes progress events to hub.
func WithHub(hub *Hub) Option {
	return func(s *Service) { s.hub = hub }
}

// WithReporter overrides the progress persistence.
func WithReporter(reporter ProgressReporter) Option {
	return func(s *Service) { s.reporter = reporter }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService constructs a proposal service.
func NewService(db *gorm.DB, limits LimitChecker, generator generation.Generator, opts ...Option) *Service {
	s := &Service{
		db:        db,
		limits:    limits,
		generator: generator,
		reporter:  NewDBReporter(db),
		now:       time.Now,
	}
	s.persist = s.updateFields
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hub returns the progress hub, or nil.
func (s *Service) Hub() *Hub { return s.hub }

// Create checks the account's quota and stores a new draft. The check and the
// insert are not atomic, so concurrent creates can exceed the limit by one.
func (s *Service) Create(ctx context.Context, accountID string, in CreateInput) (*models.Proposal, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, fmt.Errorf("%w: account is required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.Details.MeetingNotes) == "" {
		return nil, fmt.Errorf("%w: meeting notes are required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.Details.ClientName) == "" {
		return nil, fmt.Errorf("%w: client name is required", ErrInvalidInput)
	}
	if s.limits != nil {
		if errLimit := s.limits.CheckLimit(ctx, accountID); errLimit != nil {
			return nil, errLimit
		}
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = strings.TrimSpace(in.Details.ProjectName)
	}
	if title == "" {
		title = "Proposal for " + strings.TrimSpace(in.Details.ClientName)
	}
	now := s.now().UTC()
	p := &models.Proposal{
		UserID:    accountID,
		Title:     title,
		Status:    models.ProposalStatusDraft,
		Details:   datatypes.NewJSONType(in.Details),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if errCreate := s.db.WithContext(ctx).Create(p).Error; errCreate != nil {
		return nil, fmt.Errorf("proposal: create: %w", errCreate)
	}
	return p, nil
}

// Generate runs one generation attempt for an existing proposal. When details
// is non-nil it replaces the descriptive fields; they are stored with the
// attempt's final state and left untouched on a quota-type failure.
//
// A quota-type failure leaves the proposal in its prior state and returns the
// limit error. Any other failure marks the proposal as error and returns the
// failure. On success the proposal is completed; if that final write fails
// the completed proposal is still returned together with a warning.
func (s *Service) Generate(ctx context.Context, proposalID string, details *models.ProposalDetails) (Result, error) {
	p, errLoad := s.load(ctx, proposalID)
	if errLoad != nil {
		return Result{}, errLoad
	}
	prior := checkpointState{status: p.Status, progress: p.Progress, message: p.ProgressMessage, details: p.Details}
	if details != nil {
		p.Details = datatypes.NewJSONType(*details)
	}
	logger := log.WithFields(log.Fields{"proposal_id": p.ID, "account_id": p.UserID})

	s.checkpoint(ctx, p, checkpoints.analyzing)
	s.checkpoint(ctx, p, checkpoints.structuring)
	s.checkpoint(ctx, p, checkpoints.drafting)

	req := generation.Request{
		ProposalID: p.ID,
		AccountID:  p.UserID,
		Title:      p.Title,
		Details:    p.Details.Data(),
	}
	content, errGenerate := generation.Synthesize(ctx, s.generator, req)
	if errGenerate != nil {
		if IsQuotaFailure(errGenerate) {
			var exceeded *quota.LimitExceededError
			if errors.As(errGenerate, &exceeded) {
				errGenerate = exceeded
			}
			logger.WithError(errGenerate).Info("proposal: generation stopped by quota")
			s.restore(ctx, p, prior)
			return Result{Proposal: p}, errGenerate
		}
		logger.WithError(errGenerate).Warn("proposal: generation failed")
		s.fail(ctx, p, errGenerate, details != nil)
		return Result{Proposal: p}, errGenerate
	}

	s.checkpoint(ctx, p, checkpoints.finalizing)

	now := s.now().UTC()
	p.Content = content
	p.Status = models.ProposalStatusCompleted
	p.Progress = checkpoints.completed.progress
	p.ProgressMessage = checkpoints.completed.message
	p.Error = ""
	p.UpdatedAt = now

	result := Result{Proposal: p}
	fields := map[string]any{
		"content":          p.Content,
		"status":           p.Status,
		"progress":         p.Progress,
		"progress_message": p.ProgressMessage,
		"error":            "",
		"updated_at":       now,
	}
	if details != nil {
		fields["details"] = p.Details
	}
	if errSave := s.saveFinal(ctx, p.ID, fields); errSave != nil {
		logger.WithError(errSave).Error("proposal: save generated content failed")
		result.Warning = SaveWarning
	}
	s.publish(Event{ProposalID: p.ID, Status: p.Status, Progress: p.Progress, Message: p.ProgressMessage, At: now})
	return result, nil
}

// Start runs Generate in the background with its own timeout. Wait blocks
// until every started attempt has returned.
func (s *Service) Start(proposalID string, details *models.ProposalDetails, timeout time.Duration) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		if _, err := s.Generate(ctx, proposalID, details); err != nil {
			log.WithError(err).WithField("proposal_id", proposalID).Debug("proposal: background generation ended with error")
		}
	}()
}

// Wait blocks until background generations finish.
func (s *Service) Wait() { s.wg.Wait() }

// IsQuotaFailure reports whether err describes a quota or limit condition.
// Plain rate limiting is not a quota failure.
func IsQuotaFailure(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, quota.ErrLimitExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"quota", "reached your limit"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

type checkpointState struct {
	status   models.ProposalStatus
	progress int
	message  string
	details  datatypes.JSONType[models.ProposalDetails]
}

func (s *Service) checkpoint(ctx context.Context, p *models.Proposal, cp checkpoint) {
	now := s.now().UTC()
	p.Status = models.ProposalStatusGenerating
	p.Progress = cp.progress
	p.ProgressMessage = cp.message
	p.UpdatedAt = now
	ev := Event{ProposalID: p.ID, Status: p.Status, Progress: p.Progress, Message: p.ProgressMessage, At: now}
	if s.reporter != nil {
		if errReport := s.reporter.Report(ctx, ev); errReport != nil {
			log.WithError(errReport).WithFields(log.Fields{
				"proposal_id": p.ID,
				"progress":    cp.progress,
			}).Warn("proposal: persist progress failed")
		}
	}
	s.publish(ev)
}

func (s *Service) restore(ctx context.Context, p *models.Proposal, prior checkpointState) {
	now := s.now().UTC()
	p.Status = prior.status
	p.Progress = prior.progress
	p.ProgressMessage = prior.message
	p.Details = prior.details
	p.UpdatedAt = now
	if errSave := s.saveFinal(ctx, p.ID, map[string]any{
		"status":           p.Status,
		"progress":         p.Progress,
		"progress_message": p.ProgressMessage,
		"updated_at":       now,
	}); errSave != nil {
		log.WithError(errSave).WithField("proposal_id", p.ID).Warn("proposal: restore prior state failed")
	}
	s.publish(Event{ProposalID: p.ID, Status: p.Status, Progress: p.Progress, Message: p.ProgressMessage, At: now})
}

func (s *Service) fail(ctx context.Context, p *models.Proposal, cause error, saveDetails bool) {
	now := s.now().UTC()
	p.Status = models.ProposalStatusError
	p.Error = cause.Error()
	p.UpdatedAt = now
	fields := map[string]any{
		"status":     p.Status,
		"error":      p.Error,
		"updated_at": now,
	}
	if saveDetails {
		fields["details"] = p.Details
	}
	if errSave := s.saveFinal(ctx, p.ID, fields); errSave != nil {
		log.WithError(errSave).WithField("proposal_id", p.ID).Warn("proposal: save error state failed")
	}
	s.publish(Event{ProposalID: p.ID, Status: p.Status, Progress: p.Progress, Error: p.Error, At: now})
}

// saveFinal persists terminal fields on a context detached from the attempt,
// so a timed-out or abandoned attempt still records its outcome.
func (s *Service) saveFinal(ctx context.Context, proposalID string, fields map[string]any) error {
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalSaveTimeout)
	defer cancel()
	return s.persist(saveCtx, proposalID, fields)
}

func (s *Service) publish(ev Event) {
	if s.hub != nil {
		s.hub.Publish(ev)
	}
}

func (s *Service) updateFields(ctx context.Context, proposalID string, fields map[string]any) error {
	res := s.db.WithContext(ctx).
		Model(&models.Proposal{}).
		Where("id = ?", proposalID).
		Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("proposal: save: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Service) load(ctx context.Context, proposalID string) (*models.Proposal, error) {
	proposalID = strings.TrimSpace(proposalID)
	if proposalID == "" {
		return nil, ErrNotFound
	}
	var p models.Proposal
	if errFind := s.db.WithContext(ctx).Where("id = ?", proposalID).Take(&p).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("proposal: load: %w", errFind)
	}
	return &p, nil
}
