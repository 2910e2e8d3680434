package proposal

import (
	"context"
	"fmt"
	"strings"

	"github.com/deckly-app/deckly/internal/models"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ListOptions filters proposal listings. An empty AccountID lists every account.
type ListOptions struct {
	AccountID string
	Status    models.ProposalStatus
	Page      int
	PageSize  int
}

// Get returns a proposal owned by accountID. An empty accountID skips the ownership check.
func (s *Service) Get(ctx context.Context, accountID, proposalID string) (*models.Proposal, error) {
	p, err := s.load(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if accountID = strings.TrimSpace(accountID); accountID != "" && p.UserID != accountID {
		return nil, ErrNotFound
	}
	return p, nil
}

// List returns a page of proposals, newest first, and the total match count.
func (s *Service) List(ctx context.Context, opts ListOptions) ([]models.Proposal, int64, error) {
	page := opts.Page
	if page < 1 {
		page = 1
	}
	size := opts.PageSize
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	q := s.db.WithContext(ctx).Model(&models.Proposal{})
	if accountID := strings.TrimSpace(opts.AccountID); accountID != "" {
		q = q.Where("user_id = ?", accountID)
	}
	if opts.Status != "" {
		if !opts.Status.Valid() {
			return nil, 0, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, opts.Status)
		}
		q = q.Where("status = ?", opts.Status)
	}

	var total int64
	if errCount := q.Count(&total).Error; errCount != nil {
		return nil, 0, fmt.Errorf("proposal: count: %w", errCount)
	}
	var rows []models.Proposal
	if errFind := q.Order("created_at DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&rows).Error; errFind != nil {
		return nil, 0, fmt.Errorf("proposal: list: %w", errFind)
	}
	return rows, total, nil
}

// Delete removes a proposal owned by accountID.
func (s *Service) Delete(ctx context.Context, accountID, proposalID string) error {
	q := s.db.WithContext(ctx).Where("id = ?", strings.TrimSpace(proposalID))
	if accountID = strings.TrimSpace(accountID); accountID != "" {
		q = q.Where("user_id = ?", accountID)
	}
	res := q.Delete(&models.Proposal{})
	if res.Error != nil {
		return fmt.Errorf("proposal: delete: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
