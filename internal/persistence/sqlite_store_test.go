package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_RecordAndLastRun(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	started := time.Now().UTC().Truncate(time.Second)

	first := &Run{
		Action:     "translate",
		Source:     "/media/a.srt",
		Status:     RunFailed,
		ErrorKind:  "Translation",
		Error:      "batch 2 failed",
		StartedAt:  started,
		FinishedAt: started.Add(3 * time.Second),
	}
	require.NoError(t, store.RecordRun(ctx, first))
	assert.NotZero(t, first.ID)

	second := &Run{
		Action:      "translate",
		Source:      "/media/a.srt",
		Destination: "/media/a.en.srt",
		Status:      RunSucceeded,
		Cues:        42,
		StartedAt:   started.Add(time.Minute),
		FinishedAt:  started.Add(time.Minute + 5*time.Second),
	}
	require.NoError(t, store.RecordRun(ctx, second))

	last, ok, err := store.LastRun(ctx, "translate", "/media/a.srt")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, second.ID, last.ID)
	assert.Equal(t, RunSucceeded, last.Status)
	assert.Equal(t, "/media/a.en.srt", last.Destination)
	assert.Equal(t, 42, last.Cues)
	assert.True(t, second.StartedAt.Equal(last.StartedAt), "started_at %v != %v", second.StartedAt, last.StartedAt)
	assert.Equal(t, 5*time.Second, last.Elapsed())

	_, ok, err = store.LastRun(ctx, "generate", "/media/a.srt")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteStore_ListRunsNewestFirst(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	for i, src := range []string{"a.mp4", "b.mp4", "c.mp4"} {
		require.NoError(t, store.RecordRun(ctx, &Run{
			Action:     "generate",
			Source:     src,
			Status:     RunSucceeded,
			StartedAt:  now.Add(time.Duration(i) * time.Minute),
			FinishedAt: now.Add(time.Duration(i) * time.Minute),
		}))
	}

	runs, err := store.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c.mp4", runs[0].Source)
	assert.Equal(t, "b.mp4", runs[1].Source)
}

func TestSQLiteStore_DeleteRunsBefore(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, store.RecordRun(ctx, &Run{Action: "generate", Source: "old", Status: RunSucceeded,
		StartedAt: now.Add(-48 * time.Hour), FinishedAt: now.Add(-48 * time.Hour)}))
	require.NoError(t, store.RecordRun(ctx, &Run{Action: "generate", Source: "new", Status: RunSucceeded,
		StartedAt: now, FinishedAt: now}))

	n, err := store.DeleteRunsBefore(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	runs, err := store.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "new", runs[0].Source)
}

func TestSQLiteStore_ReopenKeepsHistory(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "history.db")
	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.RecordRun(context.Background(), &Run{Action: "generate", Source: "x", Status: RunSucceeded,
		StartedAt: time.Now(), FinishedAt: time.Now()}))
	require.NoError(t, store.Close())

	store, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer store.Close()

	runs, err := store.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestNewSQLiteStore_RequiresPath(t *testing.T) {
	_, err := NewSQLiteStore("  ")
	assert.Error(t, err)
}

func TestMigrationVersion(t *testing.T) {
	assert.Equal(t, 1, migrationVersion("001_init.sql"))
	assert.Equal(t, 12, migrationVersion("12"))
	assert.Equal(t, 0, migrationVersion("init.sql"))
}
