package serviceorders

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	testingpkg "github.com/aristath/techclock/internal/testing"
)

func TestRepository_FindByReference(t *testing.T) {
	db := testingpkg.NewTestDB(t, "timetracking")
	testingpkg.SeedServiceOrder(t, db, 1, "OT-100", "IN_PROGRESS")
	testingpkg.SeedServiceOrder(t, db, 2, "OT-100", "COMPLETED")
	testingpkg.SeedServiceOrder(t, db, 3, "OT-200", "IN_PROGRESS")
	testingpkg.SeedServiceOrder(t, db, 4, "OT-200", "IN_PROGRESS")
	repo := NewRepository(db.Conn(), zerolog.Nop())
	ctx := context.Background()

	ids, err := repo.FindByReference(ctx, "OT-100", StatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids)

	ids, err = repo.FindByReference(ctx, "OT-100")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids)

	ids, err = repo.FindByReference(ctx, "OT-200", StatusInProgress)
	require.NoError(t, err)
	assert.Len(t, ids, 2)

	ids, err = repo.FindByReference(ctx, "OT-999", StatusInProgress)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestRepository_GetAndSetStatus(t *testing.T) {
	db := testingpkg.NewTestDB(t, "timetracking")
	testingpkg.SeedServiceOrder(t, db, 7, "", "SCHEDULED")
	repo := NewRepository(db.Conn(), zerolog.Nop())
	ctx := context.Background()

	order, err := repo.GetOrder(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, order)
	assert.Empty(t, order.ReferenceCode)

	require.NoError(t, repo.SetStatus(ctx, 7, StatusCompleted))
	assert.Equal(t, "COMPLETED", testingpkg.ServiceOrderStatus(t, db, 7))

	assert.Error(t, repo.SetStatus(ctx, 7, Status("CANCELLED")))
	assert.Error(t, repo.SetStatus(ctx, 8, StatusCompleted))

	missing, err := repo.GetOrder(ctx, 8)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRepository_AdvanceStatusOnlyFromListedStatuses(t *testing.T) {
	db := testingpkg.NewTestDB(t, "timetracking")
	testingpkg.SeedServiceOrder(t, db, 1, "", "COMPLETED")
	repo := NewRepository(db.Conn(), zerolog.Nop())

	changed, err := repo.AdvanceStatus(context.Background(), 1, StatusInProgress,
		[]Status{StatusScheduled, StatusAwaitingParts}, "test", "", time.Now())
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, "COMPLETED", testingpkg.ServiceOrderStatus(t, db, 1))
	assert.Equal(t, 0, testingpkg.CountRows(t, db, "service_order_status_log", ""))
}
