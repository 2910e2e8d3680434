// Package analytics aggregates account and proposal usage for the admin dashboard.
package analytics

import (
	"context"
	"fmt"
	"time"

	dbutil "github.com/deckly-app/deckly/internal/db"
	"github.com/deckly-app/deckly/internal/models"
	"gorm.io/gorm"
)

const (
	defaultDays     = 30
	maxDays         = 366
	defaultTopLimit = 10
	maxTopLimit     = 100
)

// Summary is the dashboard headline.
type Summary struct {
	Users             int64                           `json:"users"`
	DisabledUsers     int64                           `json:"disabled_users"`
	Admins            int64                           `json:"admins"`
	Proposals         int64                           `json:"proposals"`
	ProposalsByStatus map[models.ProposalStatus]int64 `json:"proposals_by_status"`
	ProposalsLastWeek int64                           `json:"proposals_last_week"`
}

// DailyCount is the number of proposals created on one UTC day.
type DailyCount struct {
	Day       string `json:"day"`
	Total     int64  `json:"total"`
	Completed int64  `json:"completed"`
	Failed    int64  `json:"failed"`
}

// AccountUsage ranks an account by proposal count.
type AccountUsage struct {
	AccountID string `json:"account_id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Proposals int64  `json:"proposals" gorm:"column:proposal_count"`
}

// Service runs analytics queries.
type Service struct {
	db  *gorm.DB
	now func() time.Time
}

// NewService constructs an analytics service.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db, now: time.Now}
}

// Summary returns account and proposal totals.
func (s *Service) Summary(ctx context.Context) (Summary, error) {
	conn := s.db.WithContext(ctx)
	out := Summary{ProposalsByStatus: make(map[models.ProposalStatus]int64, 4)}

	if err := conn.Model(&models.User{}).Count(&out.Users).Error; err != nil {
		return Summary{}, fmt.Errorf("analytics: count users: %w", err)
	}
	if err := conn.Model(&models.User{}).Where("disabled = ?", true).Count(&out.DisabledUsers).Error; err != nil {
		return Summary{}, fmt.Errorf("analytics: count disabled users: %w", err)
	}
	if err := conn.Model(&models.User{}).Where("is_admin = ?", true).Count(&out.Admins).Error; err != nil {
		return Summary{}, fmt.Errorf("analytics: count admins: %w", err)
	}

	type statusRow struct {
		Status models.ProposalStatus
		Total  int64
	}
	var rows []statusRow
	if err := conn.Model(&models.Proposal{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error; err != nil {
		return Summary{}, fmt.Errorf("analytics: count proposals by status: %w", err)
	}
	for _, status := range []models.ProposalStatus{
		models.ProposalStatusDraft,
		models.ProposalStatusGenerating,
		models.ProposalStatusCompleted,
		models.ProposalStatusError,
	} {
		out.ProposalsByStatus[status] = 0
	}
	for _, row := range rows {
		out.ProposalsByStatus[row.Status] = row.Total
		out.Proposals += row.Total
	}

	since := s.now().UTC().Add(-7 * 24 * time.Hour)
	if err := conn.Model(&models.Proposal{}).Where("created_at >= ?", since).Count(&out.ProposalsLastWeek).Error; err != nil {
		return Summary{}, fmt.Errorf("analytics: count recent proposals: %w", err)
	}
	return out, nil
}

// Daily returns per-day proposal counts for the last days days, oldest first.
// Days without proposals are included with zero counts.
func (s *Service) Daily(ctx context.Context, days int) ([]DailyCount, error) {
	if days <= 0 {
		days = defaultDays
	}
	if days > maxDays {
		days = maxDays
	}
	today := s.now().UTC().Truncate(24 * time.Hour)
	since := today.AddDate(0, 0, -(days - 1))

	dayExpr := dbutil.DateTruncDayExpr(s.db, "created_at")
	var rows []DailyCount
	if err := s.db.WithContext(ctx).
		Model(&models.Proposal{}).
		Select(fmt.Sprintf(`%s AS day,
			COUNT(*) AS total,
			SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS completed,
			SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS failed`, dayExpr),
			models.ProposalStatusCompleted, models.ProposalStatusError).
		Where("created_at >= ?", since).
		Group(dayExpr).
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("analytics: daily proposals: %w", err)
	}

	byDay := make(map[string]DailyCount, len(rows))
	for _, row := range rows {
		byDay[row.Day] = row
	}
	out := make([]DailyCount, 0, days)
	for d := since; !d.After(today); d = d.AddDate(0, 0, 1) {
		key := d.Format("2006-01-02")
		row, ok := byDay[key]
		if !ok {
			row = DailyCount{Day: key}
		}
		out = append(out, row)
	}
	return out, nil
}

// TopAccounts returns the accounts owning the most proposals.
func (s *Service) TopAccounts(ctx context.Context, limit int) ([]AccountUsage, error) {
	if limit <= 0 {
		limit = defaultTopLimit
	}
	if limit > maxTopLimit {
		limit = maxTopLimit
	}
	var rows []AccountUsage
	if err := s.db.WithContext(ctx).
		Table("proposals").
		Select("proposals.user_id AS account_id, users.email AS email, users.name AS name, COUNT(*) AS proposal_count").
		Joins("LEFT JOIN users ON users.id = proposals.user_id").
		Group("proposals.user_id, users.email, users.name").
		Order("proposal_count DESC, proposals.user_id ASC").
		Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("analytics: top accounts: %w", err)
	}
	return rows, nil
}

// GenerationStats summarizes calls to the generation service.
type GenerationStats struct {
	Since         time.Time `json:"since"`
	Attempts      int64     `json:"attempts"`
	Completed     int64     `json:"completed"`
	Failed        int64     `json:"failed"`
	Unavailable   int64     `json:"unavailable"`
	InputTokens   int64     `json:"input_tokens"`
	OutputTokens  int64     `json:"output_tokens"`
	TotalTokens   int64     `json:"total_tokens"`
	AvgDurationMs int64     `json:"avg_duration_ms"`
}

// Generations aggregates recorded generation attempts over the last days days.
func (s *Service) Generations(ctx context.Context, days int) (GenerationStats, error) {
	if days <= 0 {
		days = defaultDays
	}
	if days > maxDays {
		days = maxDays
	}
	since := s.now().UTC().Truncate(24*time.Hour).AddDate(0, 0, -(days - 1))

	var row struct {
		Attempts      int64
		Completed     int64
		Failed        int64
		Unavailable   int64
		InputTokens   int64
		OutputTokens  int64
		TotalTokens   int64
		TotalDuration int64
	}
	if err := s.db.WithContext(ctx).
		Model(&models.Usage{}).
		Select(`COUNT(*) AS attempts,
			COALESCE(SUM(CASE WHEN outcome = ? THEN 1 ELSE 0 END), 0) AS completed,
			COALESCE(SUM(CASE WHEN outcome = ? THEN 1 ELSE 0 END), 0) AS failed,
			COALESCE(SUM(CASE WHEN outcome = ? THEN 1 ELSE 0 END), 0) AS unavailable,
			COALESCE(SUM(input_tokens), 0) AS input_tokens,
			COALESCE(SUM(output_tokens), 0) AS output_tokens,
			COALESCE(SUM(total_tokens), 0) AS total_tokens,
			COALESCE(SUM(duration_ms), 0) AS total_duration`,
			models.GenerationCompleted, models.GenerationFailed, models.GenerationUnavailable).
		Where("requested_at >= ?", since).
		Scan(&row).Error; err != nil {
		return GenerationStats{}, fmt.Errorf("analytics: generation stats: %w", err)
	}

	out := GenerationStats{
		Since:        since,
		Attempts:     row.Attempts,
		Completed:    row.Completed,
		Failed:       row.Failed,
		Unavailable:  row.Unavailable,
		InputTokens:  row.InputTokens,
		OutputTokens: row.OutputTokens,
		TotalTokens:  row.TotalTokens,
	}
	if row.Attempts > 0 {
		out.AvgDurationMs = row.TotalDuration / row.Attempts
	}
	return out, nil
}
