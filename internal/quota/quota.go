// Package quota resolves, counts and enforces per-account proposal ceilings.
package quota

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/deckly-app/deckly/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service reads and writes account limits and counts proposals.
//
// CheckLimit is a read-count-compare sequence that is not atomic with the
// caller's subsequent insert. Two concurrent creators can both pass when one
// slot remains.
type Service struct {
	db *gorm.DB

	// setIndividual is swapped in tests to simulate per-account failures.
	setIndividual func(ctx context.Context, accountID string, limit *int) error
	concurrency   int
}

// NewService constructs a quota service backed by db.
func NewService(db *gorm.DB) *Service {
	s := &Service{db: db, concurrency: defaultBatchConcurrency}
	s.setIndividual = s.SetIndividualLimit
	return s
}

// GetIndividualLimit returns the per-account override, or nil when none is set.
func (s *Service) GetIndividualLimit(ctx context.Context, accountID string) (*int, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, validationErr("account id", "is required")
	}
	return s.loadLimit(ctx, accountID)
}

// GetDefaultLimit returns the system-wide fallback, or nil when none is set.
func (s *Service) GetDefaultLimit(ctx context.Context) (*int, error) {
	return s.loadLimit(ctx, models.DefaultLimitAccountID)
}

// GetEffectiveLimit applies individual, then default, then unlimited precedence.
func (s *Service) GetEffectiveLimit(ctx context.Context, accountID string) (*int, error) {
	individual, errIndividual := s.GetIndividualLimit(ctx, accountID)
	if errIndividual != nil {
		return nil, errIndividual
	}
	if individual != nil {
		return individual, nil
	}
	return s.GetDefaultLimit(ctx)
}

// GetProposalCount counts every proposal owned by the account, regardless of status.
func (s *Service) GetProposalCount(ctx context.Context, accountID string) (int64, error) {
	var count int64
	if errCount := s.db.WithContext(ctx).
		Model(&models.Proposal{}).
		Where("user_id = ?", strings.TrimSpace(accountID)).
		Count(&count).Error; errCount != nil {
		return 0, fmt.Errorf("quota: count proposals: %w", errCount)
	}
	return count, nil
}

// CheckLimit returns a *LimitExceededError when the account's usage has
// reached its effective limit. A nil effective limit always passes.
func (s *Service) CheckLimit(ctx context.Context, accountID string) error {
	limit, errLimit := s.GetEffectiveLimit(ctx, accountID)
	if errLimit != nil {
		return errLimit
	}
	if limit == nil {
		return nil
	}
	used, errCount := s.GetProposalCount(ctx, accountID)
	if errCount != nil {
		return errCount
	}
	if used < int64(*limit) {
		return nil
	}
	return &LimitExceededError{Limit: *limit}
}

// SetIndividualLimit upserts the account override. A nil limit clears it back
// to inheriting the default.
func (s *Service) SetIndividualLimit(ctx context.Context, accountID string, limit *int) error {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return validationErr("account id", "is required")
	}
	if accountID == models.DefaultLimitAccountID {
		return validationErr("account id", "is reserved")
	}
	if errValidate := ValidateLimit(limit); errValidate != nil {
		return errValidate
	}
	return s.upsertLimit(ctx, accountID, limit)
}

// SetDefaultLimit upserts the system-wide fallback.
func (s *Service) SetDefaultLimit(ctx context.Context, limit *int) error {
	if errValidate := ValidateLimit(limit); errValidate != nil {
		return errValidate
	}
	return s.upsertLimit(ctx, models.DefaultLimitAccountID, limit)
}

// Usage summarises an account's quota position.
type Usage struct {
	Limit     *int   `json:"limit"`
	Used      int64  `json:"used"`
	Remaining *int64 `json:"remaining"`
}

// GetUsage returns the effective limit, current usage and remaining slots.
func (s *Service) GetUsage(ctx context.Context, accountID string) (Usage, error) {
	limit, errLimit := s.GetEffectiveLimit(ctx, accountID)
	if errLimit != nil {
		return Usage{}, errLimit
	}
	used, errCount := s.GetProposalCount(ctx, accountID)
	if errCount != nil {
		return Usage{}, errCount
	}
	out := Usage{Limit: limit, Used: used}
	if limit != nil {
		remaining := int64(*limit) - used
		if remaining < 0 {
			remaining = 0
		}
		out.Remaining = &remaining
	}
	return out, nil
}

// IndividualLimits returns the overrides stored for the given accounts.
// Accounts without a row are absent from the map.
func (s *Service) IndividualLimits(ctx context.Context, accountIDs []string) (map[string]*int, error) {
	out := make(map[string]*int, len(accountIDs))
	if len(accountIDs) == 0 {
		return out, nil
	}
	var rows []models.AccountLimit
	if errFind := s.db.WithContext(ctx).
		Where("account_id IN ?", accountIDs).
		Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("quota: list limits: %w", errFind)
	}
	for _, row := range rows {
		out[row.AccountID] = row.ProposalLimit
	}
	return out, nil
}

// ProposalCounts returns proposal counts keyed by account.
func (s *Service) ProposalCounts(ctx context.Context, accountIDs []string) (map[string]int64, error) {
	out := make(map[string]int64, len(accountIDs))
	if len(accountIDs) == 0 {
		return out, nil
	}
	type countRow struct {
		UserID string
		Total  int64
	}
	var rows []countRow
	if errFind := s.db.WithContext(ctx).
		Model(&models.Proposal{}).
		Select("user_id, COUNT(*) AS total").
		Where("user_id IN ?", accountIDs).
		Group("user_id").
		Scan(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("quota: count proposals: %w", errFind)
	}
	for _, row := range rows {
		out[row.UserID] = row.Total
	}
	return out, nil
}

func (s *Service) loadLimit(ctx context.Context, accountID string) (*int, error) {
	var row models.AccountLimit
	errFind := s.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Take(&row).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("quota: load limit: %w", errFind)
	}
	return row.ProposalLimit, nil
}

func (s *Service) upsertLimit(ctx context.Context, accountID string, limit *int) error {
	row := models.AccountLimit{AccountID: accountID, ProposalLimit: limit}
	if errUpsert := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "account_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"proposal_limit", "updated_at"}),
		}).
		Create(&row).Error; errUpsert != nil {
		return fmt.Errorf("quota: upsert limit: %w", errUpsert)
	}
	return nil
}
