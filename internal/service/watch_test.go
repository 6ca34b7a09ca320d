package service

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lemos/y7converter/internal/config"
	"github.com/lemos/y7converter/internal/errs"
	"github.com/lemos/y7converter/internal/persistence"
)

type call struct {
	action Action
	source string
	dest   string
}

type fakeRunner struct {
	mu    sync.Mutex
	calls []call
	err   map[string]error
}

func (r *fakeRunner) record(action Action, src, dest string) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{action: action, source: src, dest: dest})
	if err := r.err[src]; err != nil {
		return nil, err
	}
	return &Result{Action: action, Source: src, Destination: dest, Cues: 3}, nil
}

func (r *fakeRunner) Generate(_ context.Context, mediaPath, destPath string) (*Result, error) {
	return r.record(ActionGenerate, mediaPath, destPath)
}

func (r *fakeRunner) Translate(_ context.Context, srcPath, destPath string) (*Result, error) {
	return r.record(ActionTranslate, srcPath, destPath)
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func newWatchFixture(t *testing.T) (string, *fakeRunner, *persistence.SQLiteStore, *WatchService) {
	t.Helper()
	dir := t.TempDir()
	store, err := persistence.NewSQLiteStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cfg := testConfig()
	cfg.Watch.Dirs = []string{dir}
	runner := &fakeRunner{err: map[string]error{}}
	return dir, runner, store, NewWatchService(cfg, runner, store, cron.New())
}

func TestRunOnce_SelectsPendingWork(t *testing.T) {
	dir, runner, _, svc := newWatchFixture(t)

	touch(t, filepath.Join(dir, "a.mp4"))
	touch(t, filepath.Join(dir, "b.mkv"))
	touch(t, filepath.Join(dir, "b.srt"))
	touch(t, filepath.Join(dir, "c.srt"))
	touch(t, filepath.Join(dir, "c.en.srt"))
	touch(t, filepath.Join(dir, "d_translated.srt"))
	touch(t, filepath.Join(dir, "e.ass"))
	touch(t, filepath.Join(dir, "e.avi"))
	touch(t, filepath.Join(dir, "notes.txt"))
	touch(t, filepath.Join(dir, ".cache", "hidden.mp4"))
	touch(t, filepath.Join(dir, "season1", "ep1.MKV"))

	summary, err := svc.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []call{
		{ActionGenerate, filepath.Join(dir, "a.mp4"), filepath.Join(dir, "a.srt")},
		{ActionTranslate, filepath.Join(dir, "b.srt"), filepath.Join(dir, "b.en.srt")},
		{ActionGenerate, filepath.Join(dir, "season1", "ep1.MKV"), filepath.Join(dir, "season1", "ep1.srt")},
	}, runner.calls)
	assert.Equal(t, Summary{Found: 3, Succeeded: 3}, summary)
}

func TestRunOnce_RespectsActionSwitches(t *testing.T) {
	dir, runner, _, svc := newWatchFixture(t)
	svc.cfg.Watch.Generate = false

	touch(t, filepath.Join(dir, "a.mp4"))
	touch(t, filepath.Join(dir, "b.srt"))

	_, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, runner.calls, 1)
	assert.Equal(t, ActionTranslate, runner.calls[0].action)
}

func TestRunOnce_SkipsSucceededAndRecordsHistory(t *testing.T) {
	dir, runner, store, svc := newWatchFixture(t)
	touch(t, filepath.Join(dir, "a.mp4"))

	_, err := svc.RunOnce(context.Background())
	require.NoError(t, err)

	summary, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Found: 1, Skipped: 1}, summary)
	assert.Len(t, runner.calls, 1)

	runs, err := store.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, string(ActionGenerate), runs[0].Action)
	assert.Equal(t, persistence.RunSucceeded, runs[0].Status)
	assert.Equal(t, filepath.Join(dir, "a.srt"), runs[0].Destination)
	assert.Equal(t, 3, runs[0].Cues)
}

func TestRunOnce_RetriesOnlyTransientFailures(t *testing.T) {
	dir, runner, store, svc := newWatchFixture(t)
	transient := filepath.Join(dir, "a.srt")
	permanent := filepath.Join(dir, "b.srt")
	touch(t, transient)
	touch(t, permanent)
	runner.err[transient] = errs.New(errs.Translation, "rate limited")
	runner.err[permanent] = errs.New(errs.Format, "not a subtitle")

	summary, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Found: 2, Failed: 2}, summary)

	summary, err = svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Found: 2, Failed: 1, Skipped: 1}, summary)
	require.Len(t, runner.calls, 3)
	assert.Equal(t, transient, runner.calls[2].source)

	last, ok, err := store.LastRun(context.Background(), string(ActionTranslate), permanent)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, persistence.RunFailed, last.Status)
	assert.Equal(t, "Format", last.ErrorKind)
	assert.Contains(t, last.Error, "not a subtitle")
}

func TestRunOnce_DoesNotRecordCanceledRuns(t *testing.T) {
	dir, runner, store, svc := newWatchFixture(t)
	src := filepath.Join(dir, "a.srt")
	touch(t, src)
	runner.err[src] = errs.New(errs.Canceled, "translation was canceled")

	_, err := svc.RunOnce(context.Background())
	require.NoError(t, err)

	_, ok, err := store.LastRun(context.Background(), string(ActionTranslate), src)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRunOnce_StopsWhenCanceled(t *testing.T) {
	dir, runner, _, svc := newWatchFixture(t)
	touch(t, filepath.Join(dir, "a.srt"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.RunOnce(ctx)
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.Canceled))
	assert.Empty(t, runner.calls)
}

func TestRunOnce_PrunesOldHistory(t *testing.T) {
	_, _, store, svc := newWatchFixture(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	svc.now = func() time.Time { return now }

	old := &persistence.Run{Action: "translate", Source: "/old.srt", Status: persistence.RunSucceeded,
		StartedAt: now.Add(-40 * 24 * time.Hour), FinishedAt: now.Add(-40 * 24 * time.Hour)}
	recent := &persistence.Run{Action: "translate", Source: "/new.srt", Status: persistence.RunSucceeded,
		StartedAt: now.Add(-time.Hour), FinishedAt: now.Add(-time.Hour)}
	require.NoError(t, store.RecordRun(ctx, old))
	require.NoError(t, store.RecordRun(ctx, recent))

	_, err := svc.RunOnce(ctx)
	require.NoError(t, err)

	runs, err := store.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "/new.srt", runs[0].Source)
}

func TestRunOnce_MissingDirectory(t *testing.T) {
	_, _, _, svc := newWatchFixture(t)
	svc.cfg.Watch.Dirs = []string{filepath.Join(t.TempDir(), "missing")}

	_, err := svc.RunOnce(context.Background())
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.FileIO))
}

func TestSchedule(t *testing.T) {
	_, _, _, svc := newWatchFixture(t)

	require.NoError(t, svc.Schedule(context.Background()))
	assert.Len(t, svc.cron.Entries(), 1)

	svc.cfg.Watch.Dirs = nil
	err := svc.Schedule(context.Background())
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.Config))
}

func TestIsTranslatedOutput(t *testing.T) {
	cfg := config.Default()
	svc := NewWatchService(cfg, nil, nil, nil)
	target := svc.targetTag()

	assert.True(t, isTranslatedOutput("/m/movie.en.srt", target))
	assert.True(t, isTranslatedOutput("/m/movie.en-US.srt", target))
	assert.True(t, isTranslatedOutput("/m/movie.eng.srt", target))
	assert.True(t, isTranslatedOutput("/m/movie_translated.srt", target))
	assert.False(t, isTranslatedOutput("/m/movie.srt", target))
	assert.False(t, isTranslatedOutput("/m/movie.zh.srt", target))
	assert.False(t, isTranslatedOutput("/m/movie.2019.srt", target))
}
