package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/freeslots/libs/db"
	"github.com/md-rashed-zaman/freeslots/libs/slots"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a real Postgres when SLOTS_TEST_DATABASE_URL is set.
func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	url := os.Getenv("SLOTS_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("SLOTS_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := db.Open(ctx, url, db.PoolOptions{MaxConns: 2})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	repo := NewRepository(pool)
	require.NoError(t, repo.EnsureSchema(ctx))
	return repo
}

func TestBusyIntervalLifecycle(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	cal := "cal-" + uuid.NewString()
	day := time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC)

	id, err := repo.AddBusy(ctx, cal, day, slots.Span{Start: "14:40", Stop: "15:50"})
	require.NoError(t, err)
	_, err = repo.AddBusy(ctx, cal, day, slots.Span{Start: "10:30", Stop: "10:50"})
	require.NoError(t, err)

	busy, err := repo.ListBusy(ctx, cal, day)
	require.NoError(t, err)
	assert.Equal(t, []slots.Span{{Start: "10:30", Stop: "10:50"}, {Start: "14:40", Stop: "15:50"}}, busy)

	require.NoError(t, repo.DeleteBusy(ctx, cal, id))
	require.ErrorIs(t, repo.DeleteBusy(ctx, cal, id), ErrNotFound)
	require.ErrorIs(t, repo.DeleteBusy(ctx, cal, "not-a-uuid"), ErrNotFound)

	applied, err := repo.ApplyBusyChange(ctx, uuid.NewString(), "calendar.busy.changed.v1", cal, day, []slots.Span{{Start: "09:00", Stop: "09:30"}})
	require.NoError(t, err)
	assert.True(t, applied)
	busy, err = repo.ListBusy(ctx, cal, day)
	require.NoError(t, err)
	assert.Equal(t, []slots.Span{{Start: "09:00", Stop: "09:30"}}, busy)

	applied, err = repo.ApplyBusyChange(ctx, uuid.NewString(), "calendar.busy.changed.v1", cal, day, nil)
	require.NoError(t, err)
	assert.True(t, applied)
	busy, err = repo.ListBusy(ctx, cal, day)
	require.NoError(t, err)
	assert.Empty(t, busy)
}

func TestApplyBusyChangeDeduplicates(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	cal := "cal-" + uuid.NewString()
	day := time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC)
	id := uuid.NewString()

	applied, err := repo.ApplyBusyChange(ctx, id, "calendar.busy.changed.v1", cal, day, []slots.Span{{Start: "10:00", Stop: "11:00"}})
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = repo.ApplyBusyChange(ctx, id, "calendar.busy.changed.v1", cal, day, []slots.Span{{Start: "12:00", Stop: "13:00"}})
	require.NoError(t, err)
	assert.False(t, applied)

	busy, err := repo.ListBusy(ctx, cal, day)
	require.NoError(t, err)
	assert.Equal(t, []slots.Span{{Start: "10:00", Stop: "11:00"}}, busy)
}

func TestApplyBusyChangeFailureLeavesNoInboxEntry(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	cal := "cal-" + uuid.NewString()
	day := time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC)
	id := uuid.NewString()

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err := repo.ApplyBusyChange(cancelled, id, "calendar.busy.changed.v1", cal, day, nil)
	require.Error(t, err)

	applied, err := repo.ApplyBusyChange(ctx, id, "calendar.busy.changed.v1", cal, day, []slots.Span{{Start: "10:00", Stop: "11:00"}})
	require.NoError(t, err)
	assert.True(t, applied, "redelivery after a failed apply must not count as a duplicate")
}
