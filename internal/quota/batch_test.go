package quota

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/deckly-app/deckly/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestApplyBatchAllCallsSetterOncePerAccount(t *testing.T) {
	ctx := context.Background()
	conn := openTestDB(t)
	svc := NewService(conn)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	var ids []string
	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com", "d@example.com"} {
		ids = append(ids, createUser(t, conn, email).ID)
	}

	var mu sync.Mutex
	calls := make(map[string]int)
	svc.setIndividual = func(ctx context.Context, accountID string, limit *int) error {
		mu.Lock()
		calls[accountID]++
		mu.Unlock()
		if accountID == ids[1] {
			return errors.New("boom")
		}
		return svc.SetIndividualLimit(ctx, accountID, limit)
	}

	result, err := svc.ApplyBatch(ctx, intPtr(3), Selector{Mode: SelectAll})
	require.NoError(t, err)
	assert.Equal(t, 4, result.Total)
	assert.Equal(t, 3, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, result.Total, result.Succeeded+result.Failed)

	require.Len(t, calls, 4)
	for _, id := range ids {
		assert.Equal(t, 1, calls[id], "account %s", id)
	}

	limit, err := svc.GetIndividualLimit(ctx, ids[0])
	require.NoError(t, err)
	require.NotNil(t, limit)
	assert.Equal(t, 3, *limit)
	failedLimit, err := svc.GetIndividualLimit(ctx, ids[1])
	require.NoError(t, err)
	assert.Nil(t, failedLimit)
}

func TestApplyBatchNullOnlySelectsUnsetAccountsOnce(t *testing.T) {
	ctx := context.Background()
	conn := openTestDB(t)
	svc := NewService(conn)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	limited := createUser(t, conn, "limited@example.com")
	explicitNull := createUser(t, conn, "null@example.com")
	noRow := createUser(t, conn, "norow@example.com")
	require.NoError(t, svc.SetIndividualLimit(ctx, limited.ID, intPtr(2)))
	require.NoError(t, svc.SetIndividualLimit(ctx, explicitNull.ID, nil))
	require.NoError(t, svc.SetDefaultLimit(ctx, nil))

	selected, err := svc.ResolveSelector(ctx, Selector{Mode: SelectNullOnly})
	require.NoError(t, err)
	sort.Strings(selected)
	want := []string{explicitNull.ID, noRow.ID}
	sort.Strings(want)
	assert.Equal(t, want, selected)

	result, err := svc.ApplyBatch(ctx, intPtr(9), Selector{Mode: SelectNullOnly})
	require.NoError(t, err)
	assert.Equal(t, BatchResult{Total: 2, Succeeded: 2, Failed: 0}, result)

	limit, err := svc.GetIndividualLimit(ctx, limited.ID)
	require.NoError(t, err)
	require.NotNil(t, limit)
	assert.Equal(t, 2, *limit, "accounts with an explicit limit are untouched")
}

func TestApplyBatchListUsesIDsAsGiven(t *testing.T) {
	ctx := context.Background()
	conn := openTestDB(t)
	svc := NewService(conn)
	user := createUser(t, conn, "list@example.com")

	result, err := svc.ApplyBatch(ctx, nil, Selector{Mode: SelectList, AccountIDs: []string{user.ID, ""}})
	require.NoError(t, err)
	assert.Equal(t, BatchResult{Total: 2, Succeeded: 1, Failed: 1}, result)

	var rows int64
	require.NoError(t, conn.Model(&models.AccountLimit{}).Where("account_id = ?", user.ID).Count(&rows).Error)
	assert.Equal(t, int64(1), rows)
}

func TestApplyBatchRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	svc := NewService(openTestDB(t))

	_, err := svc.ApplyBatch(ctx, intPtr(-5), Selector{Mode: SelectAll})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.ApplyBatch(ctx, intPtr(5), Selector{Mode: "some"})
	assert.ErrorIs(t, err, ErrValidation)
}
