package quota

import (
	"context"
	"testing"
	"time"

	"github.com/botblock/blocklist-api/internal/models"
	"github.com/botblock/blocklist-api/internal/repository"
	"github.com/botblock/blocklist-api/internal/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLedger(t *testing.T) (*Ledger, *storage.Postgres) {
	t.Helper()

	db, err := storage.NewSQLiteMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewLedger(repository.NewUsageRepository(db)), db
}

func TestCheckAndIncrementDeniesAtLimit(t *testing.T) {
	ledger, _ := newLedger(t)
	ctx := context.Background()
	keyID := uuid.New()

	for i := int64(0); i < models.TierFree.DailyLimit(); i++ {
		admitted, _ := ledger.CheckAndIncrement(ctx, keyID, models.TierFree)
		require.True(t, admitted)
	}

	admitted, resetAt := ledger.CheckAndIncrement(ctx, keyID, models.TierFree)
	assert.False(t, admitted)
	assert.True(t, resetAt.After(time.Now().UTC()))

	// The denied call must not have charged anything.
	snap, err := ledger.Snapshot(ctx, keyID, models.TierFree)
	require.NoError(t, err)
	assert.Equal(t, models.TierFree.DailyLimit(), snap.Used)
	assert.Equal(t, int64(0), snap.Remaining)
}

func TestCheckAndIncrementUnlimitedNeverDenies(t *testing.T) {
	ledger, _ := newLedger(t)
	ctx := context.Background()
	keyID := uuid.New()

	for i := 0; i < 120; i++ {
		admitted, _ := ledger.CheckAndIncrement(ctx, keyID, models.TierUnlimited)
		require.True(t, admitted)
	}

	snap, err := ledger.Snapshot(ctx, keyID, models.TierUnlimited)
	require.NoError(t, err)
	assert.True(t, snap.Unlimited)
	assert.Equal(t, int64(120), snap.Used)
}

func TestUsageResetsAtUTCMidnight(t *testing.T) {
	ledger, _ := newLedger(t)
	ctx := context.Background()
	keyID := uuid.New()

	dayOne := time.Date(2026, 8, 23, 22, 0, 0, 0, time.UTC)
	ledger.WithClock(func() time.Time { return dayOne })

	for i := int64(0); i < models.TierFree.DailyLimit(); i++ {
		admitted, _ := ledger.CheckAndIncrement(ctx, keyID, models.TierFree)
		require.True(t, admitted)
	}
	admitted, _ := ledger.CheckAndIncrement(ctx, keyID, models.TierFree)
	require.False(t, admitted)

	// Cross midnight: day D's spend does not count toward day D+1.
	ledger.WithClock(func() time.Time { return dayOne.Add(3 * time.Hour) })

	admitted, _ = ledger.CheckAndIncrement(ctx, keyID, models.TierFree)
	assert.True(t, admitted)

	snap, err := ledger.Snapshot(ctx, keyID, models.TierFree)
	require.NoError(t, err)
	assert.Equal(t, int64(1), snap.Used)
}

func TestCheckAndIncrementFailsOpen(t *testing.T) {
	ledger, db := newLedger(t)
	keyID := uuid.New()

	// Unreachable persistence: the ledger trades accounting accuracy
	// for availability and admits.
	require.NoError(t, db.Close())

	admitted, resetAt := ledger.CheckAndIncrement(context.Background(), keyID, models.TierFree)
	assert.True(t, admitted)
	assert.False(t, resetAt.IsZero())
}

func TestSnapshotDoesNotMutate(t *testing.T) {
	ledger, _ := newLedger(t)
	ctx := context.Background()
	keyID := uuid.New()

	admitted, _ := ledger.CheckAndIncrement(ctx, keyID, models.TierBasic)
	require.True(t, admitted)

	for i := 0; i < 5; i++ {
		snap, err := ledger.Snapshot(ctx, keyID, models.TierBasic)
		require.NoError(t, err)
		assert.Equal(t, int64(1), snap.Used)
		assert.Equal(t, models.TierBasic.DailyLimit()-1, snap.Remaining)
	}
}

func TestNextUTCMidnight(t *testing.T) {
	now := time.Date(2026, 8, 23, 15, 30, 45, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC), NextUTCMidnight(now))

	// Non-UTC input resolves against the UTC calendar.
	est := time.FixedZone("EST", -5*3600)
	late := time.Date(2026, 8, 23, 20, 0, 0, 0, est) // 01:00 UTC on the 24th
	assert.Equal(t, time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC), NextUTCMidnight(late))
}
