package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"henkan/internal/config"
	"henkan/internal/logging"
	"henkan/internal/usagestats"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "usage.db"), WithLogger(logging.Discard()))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// =============================================================================
// Open and migrations
// =============================================================================

func TestOpenCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subdir", "nested", "usage.db")
	s, err := Open(path, WithLogger(logging.Discard()), WithBusyTimeout(time.Second))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, ValidateSchema(s.DB()))
}

func TestCloseNilDB(t *testing.T) {
	s := &Store{}
	assert.NoError(t, s.Close())
}

func TestMigrationStatus(t *testing.T) {
	s := openTestStore(t)

	status, err := GetMigrationStatus(s.DB())
	require.NoError(t, err)
	assert.Equal(t, 2, status.CurrentVersion)
	assert.Equal(t, 2, status.LatestVersion)
	assert.Empty(t, status.Pending)
	assert.Len(t, status.Applied, 2)

	require.NoError(t, MigrateDB(s.DB()), "migrating twice is a no-op")
}

func TestRollbackMigration(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, RollbackMigration(s.DB()))
	assert.Error(t, ValidateSchema(s.DB()))

	status, err := GetMigrationStatus(s.DB())
	require.NoError(t, err)
	assert.Equal(t, 1, status.CurrentVersion)
	require.Len(t, status.Pending, 1)
	assert.Equal(t, 2, status.Pending[0].Version)

	require.NoError(t, MigrateDB(s.DB()))
	assert.NoError(t, ValidateSchema(s.DB()))
}

// =============================================================================
// Usage counters
// =============================================================================

func TestAddCountsAccumulates(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddCounts(ctx, map[string]int64{
		usagestats.CommitFromConversion: 2,
		usagestats.SessionAllEvent:      5,
	}))
	require.NoError(t, s.AddCounts(ctx, map[string]int64{
		usagestats.CommitFromConversion: 3,
	}))

	n, err := s.Count(ctx, usagestats.CommitFromConversion)
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)

	n, err = s.Count(ctx, "NeverWritten")
	require.NoError(t, err)
	assert.Zero(t, n)

	counters, err := s.Counters(ctx, "CommitFrom")
	require.NoError(t, err)
	require.Len(t, counters, 1)
	assert.Equal(t, usagestats.CommitFromConversion, counters[0].Name)

	all, err := s.Counters(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestAddTimingsMerges(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddTimings(ctx, map[string]usagestats.Timing{
		usagestats.ElapsedTimeUSec: {Count: 2, Total: 30 * time.Microsecond, Min: 10 * time.Microsecond, Max: 20 * time.Microsecond},
		"Empty":                    {},
	}))
	require.NoError(t, s.AddTimings(ctx, map[string]usagestats.Timing{
		usagestats.ElapsedTimeUSec: {Count: 1, Total: 5 * time.Microsecond, Min: 5 * time.Microsecond, Max: 5 * time.Microsecond},
	}))

	timings, err := s.Timings(ctx)
	require.NoError(t, err)
	require.Len(t, timings, 1)

	got := timings[0]
	assert.Equal(t, usagestats.ElapsedTimeUSec, got.Name)
	assert.EqualValues(t, 3, got.Count)
	assert.Equal(t, 35*time.Microsecond, got.Total)
	assert.Equal(t, 5*time.Microsecond, got.Min)
	assert.Equal(t, 20*time.Microsecond, got.Max)
	assert.Equal(t, 35*time.Microsecond/3, got.Average())
}

func TestFlushFromMemory(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	mem := usagestats.NewMemory()
	mem.IncrementCount(usagestats.SessionCreated)
	mem.IncrementCount(usagestats.SessionCreated)
	mem.UpdateTiming(usagestats.ElapsedTimeUSec, 7*time.Microsecond)

	require.NoError(t, usagestats.Flush(ctx, mem, s))
	assert.Empty(t, mem.Counts())

	n, err := s.Count(ctx, usagestats.SessionCreated)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestFlushRestoresOnClosedStore(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Close())

	mem := usagestats.NewMemory()
	mem.IncrementCount(usagestats.SessionCreated)

	err := usagestats.Flush(context.Background(), mem, s)
	require.Error(t, err)
	assert.EqualValues(t, 1, mem.Count(usagestats.SessionCreated))
}

func TestReset(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddCounts(ctx, map[string]int64{"A": 1}))
	require.NoError(t, s.Reset(ctx))

	counters, err := s.Counters(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, counters)
}

// =============================================================================
// Config snapshots
// =============================================================================

func TestConfigSnapshots(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	latest, err := s.LatestConfigSnapshot(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	cfg := config.DefaultConfig()
	wrote, err := s.SaveConfigSnapshot(ctx, cfg, "startup")
	require.NoError(t, err)
	assert.True(t, wrote)

	wrote, err = s.SaveConfigSnapshot(ctx, cfg, "reload")
	require.NoError(t, err)
	assert.False(t, wrote, "unchanged config is not stored twice")

	cfg.Conversion.IncognitoMode = true
	wrote, err = s.SaveConfigSnapshot(ctx, cfg, "command")
	require.NoError(t, err)
	assert.True(t, wrote)

	snaps, err := s.ConfigSnapshots(ctx, 10)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "command", snaps[0].Reason)
	assert.Equal(t, "startup", snaps[1].Reason)

	restored, err := snaps[0].Config()
	require.NoError(t, err)
	assert.True(t, restored.Conversion.IncognitoMode)
	assert.Equal(t, config.Version, restored.Version)
}

func TestVerifyAllSnapshotsFindsTampering(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.SaveConfigSnapshot(ctx, config.DefaultConfig(), "startup")
	require.NoError(t, err)

	corrupted, err := s.VerifyAllSnapshots(ctx)
	require.NoError(t, err)
	assert.Empty(t, corrupted)

	_, err = s.DB().Exec(`UPDATE config_snapshots SET config_data = '{}'`)
	require.NoError(t, err)

	corrupted, err = s.VerifyAllSnapshots(ctx)
	require.NoError(t, err)
	assert.Len(t, corrupted, 1)

	latest, err := s.LatestConfigSnapshot(ctx)
	require.NoError(t, err)
	_, err = latest.Config()
	assert.ErrorIs(t, err, ErrSnapshotCorrupt)
}
