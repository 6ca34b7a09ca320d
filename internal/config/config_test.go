package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	t.Setenv("DASHSCOPE_API_KEY", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "paraformer-v2", cfg.Recognition.Model)
	assert.Equal(t, []string{"zh", "ja", "en"}, cfg.Recognition.LanguageHints)
	assert.Equal(t, "qwen-mt-plus", cfg.Translation.Model)
	assert.Equal(t, 10, cfg.Translation.BatchSize)
	assert.Equal(t, time.Second, cfg.Translation.Delay())
	assert.Equal(t, "Chinese", cfg.Translation.SourceLang)
	assert.Equal(t, "English", cfg.Translation.TargetLang)
	assert.Equal(t, 120*time.Second, cfg.Media.ExtractTimeoutDuration())
	assert.Equal(t, 60*time.Second, cfg.Media.DefaultTimeoutDuration())
	assert.Equal(t, 300*time.Second, cfg.Media.TranslateTimeoutDuration())
	assert.Equal(t, "uploads/", cfg.Storage.ObjectKeyPrefix)
	assert.True(t, cfg.Storage.UseHTTPS)
	assert.Equal(t, "info", cfg.App.LogLevel)
}

func TestLoad_YAMLFile(t *testing.T) {
	t.Setenv("DASHSCOPE_API_KEY", "")
	path := writeConfig(t, `
file_upload:
  access_key_id: id
  access_key_secret: secret
  bucket_name: media-bucket
  use_https: false
speech_recognition:
  api_key: rec-key
  language_hints: [en]
translation:
  batch_size: 5
  api_delay: 250
  target_lang: Japanese
application:
  debug_mode: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "id", cfg.Storage.AccessKeyID)
	assert.Equal(t, "media-bucket", cfg.Storage.BucketName)
	assert.False(t, cfg.Storage.UseHTTPS)
	assert.Equal(t, "https://oss-cn-hangzhou.aliyuncs.com", cfg.Storage.Endpoint)
	assert.Equal(t, "rec-key", cfg.Recognition.APIKey)
	assert.Equal(t, []string{"en"}, cfg.Recognition.LanguageHints)
	assert.Equal(t, 5, cfg.Translation.BatchSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Translation.Delay())
	assert.Equal(t, "Japanese", cfg.Translation.TargetLang)
	assert.True(t, cfg.App.Debug)
	assert.NoError(t, cfg.Storage.Validate())
}

func TestLoad_APIKeyEnvironmentFallback(t *testing.T) {
	t.Setenv("DASHSCOPE_API_KEY", "env-key")
	t.Setenv("TRANSLATION_API_KEY", "")
	t.Setenv("RECOGNITION_API_KEY", "")
	path := writeConfig(t, `
speech_recognition:
  api_key: file-key
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "file-key", cfg.Recognition.APIKey)
	assert.Equal(t, "env-key", cfg.Translation.APIKey)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("TRANSLATION_BATCH_SIZE", "3")
	t.Setenv("WATCH_DIRS", "/a, /b ,")
	t.Setenv("OSS_USE_HTTPS", "false")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Translation.BatchSize)
	assert.Equal(t, []string{"/a", "/b"}, cfg.Watch.Dirs)
	assert.False(t, cfg.Storage.UseHTTPS)
	assert.Equal(t, "warn", cfg.App.LogLevel)
}

func TestLoad_InvalidValues(t *testing.T) {
	_, err := Load(writeConfig(t, "translation:\n  batch_size: 0\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch_size")

	_, err = Load(writeConfig(t, "watch:\n  cron_expr: not-a-cron\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cron_expr")

	_, err = Load(writeConfig(t, "translation: [broken"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config file")
}

func TestStorageConfig_Validate(t *testing.T) {
	cfg := Default().Storage
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access key")

	cfg.AccessKeyID, cfg.AccessKeySecret = "id", "secret"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket")

	cfg.BucketName = "b"
	assert.NoError(t, cfg.Validate())
}
