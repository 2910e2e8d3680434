package quota

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/deckly-app/deckly/internal/models"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const defaultBatchConcurrency = 8

// SelectMode chooses which accounts a batch limit applies to.
type SelectMode string

// Supported batch selection modes.
const (
	SelectAll      SelectMode = "all"
	SelectNullOnly SelectMode = "null_only"
	SelectList     SelectMode = "list"
)

// Selector picks the accounts for ApplyBatch.
type Selector struct {
	Mode       SelectMode
	AccountIDs []string
}

// BatchResult aggregates per-account outcomes. Failed accounts are not named.
type BatchResult struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// ApplyBatch sets limit on every selected account independently. One
// account's failure does not stop the others.
func (s *Service) ApplyBatch(ctx context.Context, limit *int, selector Selector) (BatchResult, error) {
	if errValidate := ValidateLimit(limit); errValidate != nil {
		return BatchResult{}, errValidate
	}
	accountIDs, errResolve := s.ResolveSelector(ctx, selector)
	if errResolve != nil {
		return BatchResult{}, errResolve
	}

	var succeeded, failed atomic.Int64
	group, groupCtx := errgroup.WithContext(ctx)
	if s.concurrency > 0 {
		group.SetLimit(s.concurrency)
	}
	for _, accountID := range accountIDs {
		group.Go(func() error {
			if errSet := s.setIndividual(groupCtx, accountID, limit); errSet != nil {
				failed.Add(1)
				log.WithError(errSet).WithField("account_id", accountID).Warn("quota: batch limit update failed")
				return nil
			}
			succeeded.Add(1)
			return nil
		})
	}
	_ = group.Wait()

	return BatchResult{
		Total:     len(accountIDs),
		Succeeded: int(succeeded.Load()),
		Failed:    int(failed.Load()),
	}, nil
}

// ResolveSelector turns a selector into a concrete account list.
func (s *Service) ResolveSelector(ctx context.Context, selector Selector) ([]string, error) {
	switch selector.Mode {
	case SelectAll:
		return s.allAccountIDs(ctx)
	case SelectNullOnly:
		return s.nullLimitAccountIDs(ctx)
	case SelectList:
		return selector.AccountIDs, nil
	default:
		return nil, validationErr("mode", fmt.Sprintf("unknown selection mode %q", selector.Mode))
	}
}

func (s *Service) allAccountIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if errPluck := s.db.WithContext(ctx).
		Model(&models.User{}).
		Order("created_at ASC").
		Pluck("id", &ids).Error; errPluck != nil {
		return nil, fmt.Errorf("quota: list accounts: %w", errPluck)
	}
	return ids, nil
}

// nullLimitAccountIDs unions accounts holding an explicit null row with
// accounts that have no row at all. An account appears at most once.
func (s *Service) nullLimitAccountIDs(ctx context.Context) ([]string, error) {
	conn := s.db.WithContext(ctx)

	var explicitNull []string
	if errPluck := conn.
		Model(&models.AccountLimit{}).
		Where("proposal_limit IS NULL AND account_id <> ?", models.DefaultLimitAccountID).
		Where("account_id IN (?)", s.db.Model(&models.User{}).Select("id")).
		Pluck("account_id", &explicitNull).Error; errPluck != nil {
		return nil, fmt.Errorf("quota: list null limits: %w", errPluck)
	}

	var withoutRow []string
	if errPluck := conn.
		Model(&models.User{}).
		Where("id NOT IN (?)", s.db.Model(&models.AccountLimit{}).Select("account_id")).
		Order("created_at ASC").
		Pluck("id", &withoutRow).Error; errPluck != nil {
		return nil, fmt.Errorf("quota: list accounts without limits: %w", errPluck)
	}

	seen := make(map[string]struct{}, len(explicitNull)+len(withoutRow))
	out := make([]string, 0, len(explicitNull)+len(withoutRow))
	for _, group := range [][]string{explicitNull, withoutRow} {
		for _, id := range group {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out, nil
}
