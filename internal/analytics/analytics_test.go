package analytics

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/deckly-app/deckly/internal/db"
	"github.com/deckly-app/deckly/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalytics(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Open("file:" + filepath.Join(t.TempDir(), "analytics.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))

	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	heavy := models.User{Email: "heavy@example.com", Password: "x", IsAdmin: true}
	light := models.User{Email: "light@example.com", Password: "x", Disabled: true}
	require.NoError(t, conn.Create(&heavy).Error)
	require.NoError(t, conn.Create(&light).Error)

	seed := []struct {
		owner  string
		status models.ProposalStatus
		at     time.Time
	}{
		{heavy.ID, models.ProposalStatusCompleted, now},
		{heavy.ID, models.ProposalStatusError, now},
		{heavy.ID, models.ProposalStatusDraft, now.AddDate(0, 0, -1)},
		{light.ID, models.ProposalStatusCompleted, now.AddDate(0, 0, -20)},
	}
	for _, row := range seed {
		p := models.Proposal{UserID: row.owner, Status: row.status, CreatedAt: row.at, UpdatedAt: row.at}
		require.NoError(t, conn.Create(&p).Error)
	}

	svc := NewService(conn)
	svc.now = func() time.Time { return now }

	summary, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.Users)
	assert.Equal(t, int64(1), summary.DisabledUsers)
	assert.Equal(t, int64(1), summary.Admins)
	assert.Equal(t, int64(4), summary.Proposals)
	assert.Equal(t, int64(2), summary.ProposalsByStatus[models.ProposalStatusCompleted])
	assert.Equal(t, int64(0), summary.ProposalsByStatus[models.ProposalStatusGenerating])
	assert.Equal(t, int64(3), summary.ProposalsLastWeek)

	daily, err := svc.Daily(ctx, 7)
	require.NoError(t, err)
	require.Len(t, daily, 7)
	last := daily[len(daily)-1]
	assert.Equal(t, "2025-03-10", last.Day)
	assert.Equal(t, int64(2), last.Total)
	assert.Equal(t, int64(1), last.Completed)
	assert.Equal(t, int64(1), last.Failed)
	assert.Equal(t, int64(1), daily[len(daily)-2].Total)
	assert.Equal(t, int64(0), daily[0].Total)

	top, err := svc.TopAccounts(ctx, 5)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, heavy.ID, top[0].AccountID)
	assert.Equal(t, "heavy@example.com", top[0].Email)
	assert.Equal(t, int64(3), top[0].Proposals)
}

func TestGenerations(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Open("file:" + filepath.Join(t.TempDir(), "generations.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))

	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	rows := []models.Usage{
		{Outcome: models.GenerationCompleted, InputTokens: 100, OutputTokens: 400, TotalTokens: 500, DurationMs: 3000, RequestedAt: now},
		{Outcome: models.GenerationFailed, DurationMs: 1000, RequestedAt: now.Add(-time.Hour)},
		{Outcome: models.GenerationUnavailable, DurationMs: 2000, RequestedAt: now.AddDate(0, 0, -2)},
		{Outcome: models.GenerationCompleted, TotalTokens: 999, RequestedAt: now.AddDate(0, 0, -40)},
	}
	require.NoError(t, conn.Create(&rows).Error)

	svc := NewService(conn)
	svc.now = func() time.Time { return now }

	stats, err := svc.Generations(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Attempts)
	assert.Equal(t, int64(1), stats.Completed)
	assert.Equal(t, int64(1), stats.Failed)
	assert.Equal(t, int64(1), stats.Unavailable)
	assert.Equal(t, int64(500), stats.TotalTokens)
	assert.Equal(t, int64(2000), stats.AvgDurationMs)

	empty, err := NewService(conn).Generations(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), empty.AvgDurationMs)
}
