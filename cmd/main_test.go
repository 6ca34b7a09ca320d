package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lemos/y7converter/internal/config"
	"github.com/lemos/y7converter/internal/errs"
	"github.com/lemos/y7converter/internal/persistence"
	"github.com/lemos/y7converter/internal/service"
	"github.com/lemos/y7converter/internal/subtitle"
	"github.com/lemos/y7converter/pkg/log"
)

type upperTranslator struct {
	gotSource, gotTarget string
}

func (u *upperTranslator) TranslateCues(_ context.Context, cues subtitle.CueList, src, tgt string) (subtitle.CueList, error) {
	u.gotSource, u.gotTarget = src, tgt
	out := make(subtitle.CueList, len(cues))
	for i, c := range cues {
		c.Text = strings.ToUpper(c.Text)
		out[i] = c
	}
	return out, nil
}

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	content := "translation:\n  api_key: sk-test\n  target_lang: Japanese\nwatch:\n  db_path: " +
		filepath.Join(dir, "history.db") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, tr service.CueTranslator, args ...string) (string, error) {
	t.Helper()
	cmd, cc := newRootCommand()
	if tr != nil {
		cc.pipelineOpts = append(cc.pipelineOpts, service.WithTranslatorFactory(
			func(config.TranslationConfig) (service.CueTranslator, error) { return tr, nil },
		))
	}
	t.Cleanup(cc.close)

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestTranslateCommand(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)
	src := filepath.Join(dir, "movie.srt")
	require.NoError(t, os.WriteFile(src, []byte("1\n00:00:01,000 --> 00:00:02,000\nhello\n"), 0o644))

	tr := &upperTranslator{}
	out, err := execute(t, tr, "--config", cfgPath, "translate", src, "--source", "en")
	require.NoError(t, err)

	dest := filepath.Join(dir, "movie.ja.srt")
	assert.Equal(t, dest+"\n", out)
	assert.Equal(t, "en", tr.gotSource)
	assert.Equal(t, "Japanese", tr.gotTarget)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "1\n00:00:01,000 --> 00:00:02,000\nHELLO\n", string(data))
}

func TestTranslateCommand_MissingFile(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, &upperTranslator{}, "--config", writeConfig(t, dir), "translate", filepath.Join(dir, "nope.srt"))
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.FileIO))
}

func TestCommandArgs(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, nil, "--config", writeConfig(t, dir), "generate")
	require.Error(t, err)

	_, err = execute(t, nil, "--config", writeConfig(t, dir), "translate", "a.srt", "b.srt")
	require.Error(t, err)
}

func TestInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("translation:\n  batch_size: 0\n"), 0o644))

	_, err := execute(t, nil, "--config", path, "history")
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.Config))
}

func TestWatchOnceAndHistory(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)
	media := filepath.Join(dir, "media")
	require.NoError(t, os.MkdirAll(media, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(media, "ep1.srt"), []byte("1\n00:00:01,000 --> 00:00:02,000\nhi\n"), 0o644))

	out, err := execute(t, &upperTranslator{}, "--config", cfgPath, "watch", "--once", "--dir", media)
	require.NoError(t, err)
	assert.Equal(t, "found 1, succeeded 1, failed 0, skipped 0\n", out)
	assert.FileExists(t, filepath.Join(media, "ep1.ja.srt"))

	out, err = execute(t, nil, "--config", cfgPath, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "translate")
	assert.Contains(t, out, "succeeded")
	assert.Contains(t, out, filepath.Join(media, "ep1.srt"))
}

func TestRenderRuns(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	var buf bytes.Buffer

	require.NoError(t, renderRuns(&buf, nil, now))
	assert.Equal(t, "No runs recorded\n", buf.String())

	buf.Reset()
	runs := []persistence.Run{{
		Action:     "generate",
		Source:     "/m/a.mp4",
		Status:     persistence.RunFailed,
		ErrorKind:  "Extraction",
		Cues:       1200,
		StartedAt:  now.Add(-2*time.Hour - 3*time.Second),
		FinishedAt: now.Add(-2 * time.Hour),
	}}
	require.NoError(t, renderRuns(&buf, runs, now))
	out := buf.String()
	assert.Contains(t, out, "2 hours ago")
	assert.Contains(t, out, "1,200")
	assert.Contains(t, out, "3s")
	assert.Contains(t, out, "Extraction")
}

func TestLockWatch(t *testing.T) {
	db := filepath.Join(t.TempDir(), "history.db")

	first, err := lockWatch(db)
	require.NoError(t, err)

	_, err = lockWatch(db)
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.Config))

	require.NoError(t, first.Unlock())
	second, err := lockWatch(db)
	require.NoError(t, err)
	require.NoError(t, second.Unlock())
}

func TestSetupLogger_UsesConfiguredLevel(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "logs", "y7.log")
	cc := &commandContext{}
	t.Cleanup(func() { log.InitLogger(log.LevelInfo) })

	require.NoError(t, cc.setupLogger(config.AppConfig{LogLevel: "warn", LogFile: logFile}))
	log.Info("filtered entry")
	log.Warn("kept entry")
	cc.close()

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "filtered entry")
	assert.Contains(t, string(data), "kept entry")
}

func TestSetupLogger_DebugOverridesLevel(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "y7.log")
	cc := &commandContext{}
	t.Cleanup(func() { log.InitLogger(log.LevelInfo) })

	require.NoError(t, cc.setupLogger(config.AppConfig{Debug: true, LogLevel: "error", LogFile: logFile}))
	log.Debug("debug entry")
	cc.close()

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "debug entry")
}
