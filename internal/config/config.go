package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/lemos/y7converter/pkg/icron"
	"github.com/lemos/y7converter/pkg/log"
)

// Config holds all application configuration.
// Values come from the YAML config file, then an optional .env file and the
// process environment override them.
//
// Environment Variables:
// Object storage (Aliyun OSS):
// - OSS_ACCESS_KEY_ID / OSS_ACCESS_KEY_SECRET: credentials (required for generation)
// - OSS_ENDPOINT: endpoint (default: https://oss-cn-hangzhou.aliyuncs.com)
// - OSS_BUCKET: bucket name (required for generation)
// - OSS_OBJECT_KEY_PREFIX: key prefix (default: uploads/)
//
// Speech recognition / translation (DashScope):
// - DASHSCOPE_API_KEY: fallback API key for both services
// - RECOGNITION_API_KEY, RECOGNITION_MODEL (default: paraformer-v2)
// - TRANSLATION_API_KEY, TRANSLATION_MODEL (default: qwen-mt-plus)
// - TRANSLATION_BATCH_SIZE (default: 10), TRANSLATION_API_DELAY_MS (default: 1000)
// - SOURCE_LANG (default: Chinese), TARGET_LANG (default: English)
//
// Application:
// - FFMPEG_PATH (default: ffmpeg)
// - DEBUG (default: false), LOG_LEVEL (default: info), LOG_FILE (optional)
// - WATCH_DIRS (comma separated), CRON_EXPR (default: */10 * * * *), DB_PATH
type Config struct {
	Storage     StorageConfig     `yaml:"file_upload"`
	Recognition RecognitionConfig `yaml:"speech_recognition"`
	Translation TranslationConfig `yaml:"translation"`
	Media       MediaConfig       `yaml:"media"`
	Watch       WatchConfig       `yaml:"watch"`
	App         AppConfig         `yaml:"application"`
}

// StorageConfig configures the object store that hosts audio for recognition.
type StorageConfig struct {
	AccessKeyID       string `yaml:"access_key_id"`
	AccessKeySecret   string `yaml:"access_key_secret"`
	Endpoint          string `yaml:"endpoint"`
	BucketName        string `yaml:"bucket_name"`
	ObjectKeyPrefix   string `yaml:"object_key_prefix"`
	UseHTTPS          bool   `yaml:"use_https"`
	ConnectionTimeout int    `yaml:"connection_timeout"` // milliseconds
	SocketTimeout     int    `yaml:"socket_timeout"`     // milliseconds
	MaxConnections    int    `yaml:"max_connections"`
}

// Validate reports missing credentials, endpoint or bucket.
func (c StorageConfig) Validate() error {
	if strings.TrimSpace(c.AccessKeyID) == "" || strings.TrimSpace(c.AccessKeySecret) == "" {
		return fmt.Errorf("OSS access key id and secret are required")
	}
	if strings.TrimSpace(c.Endpoint) == "" {
		return fmt.Errorf("OSS endpoint is required")
	}
	if strings.TrimSpace(c.BucketName) == "" {
		return fmt.Errorf("OSS bucket name is required")
	}
	return nil
}

// RecognitionConfig configures the asynchronous speech recognition API.
type RecognitionConfig struct {
	APIKey        string   `yaml:"api_key"`
	BaseURL       string   `yaml:"base_url"`
	Model         string   `yaml:"model"`
	LanguageHints []string `yaml:"language_hints"`
	PollInterval  int      `yaml:"poll_interval_ms"`
	Deadline      int      `yaml:"deadline_seconds"`
	Timeout       int      `yaml:"request_timeout_seconds"`
}

func (c RecognitionConfig) PollEvery() time.Duration {
	return time.Duration(c.PollInterval) * time.Millisecond
}

func (c RecognitionConfig) AwaitDeadline() time.Duration {
	return time.Duration(c.Deadline) * time.Second
}

// TranslationConfig configures the synchronous translation API.
type TranslationConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	BatchSize  int    `yaml:"batch_size"`
	APIDelay   int    `yaml:"api_delay"` // milliseconds
	Timeout    int    `yaml:"request_timeout_seconds"`
	SourceLang string `yaml:"source_lang"`
	TargetLang string `yaml:"target_lang"`
}

func (c TranslationConfig) Delay() time.Duration {
	return time.Duration(c.APIDelay) * time.Millisecond
}

// MediaConfig configures the ffmpeg subprocess and per-action timeouts.
type MediaConfig struct {
	FFmpegPath       string `yaml:"ffmpeg_path"`
	ExtractTimeout   int    `yaml:"extract_timeout_seconds"`
	DefaultTimeout   int    `yaml:"default_timeout_seconds"`
	TranslateTimeout int    `yaml:"translate_timeout_seconds"`
}

func (c MediaConfig) ExtractTimeoutDuration() time.Duration {
	return time.Duration(c.ExtractTimeout) * time.Second
}

func (c MediaConfig) DefaultTimeoutDuration() time.Duration {
	return time.Duration(c.DefaultTimeout) * time.Second
}

func (c MediaConfig) TranslateTimeoutDuration() time.Duration {
	return time.Duration(c.TranslateTimeout) * time.Second
}

// WatchConfig configures the scheduled directory scan.
type WatchConfig struct {
	Dirs          []string `yaml:"dirs"`
	CronExpr      string   `yaml:"cron_expr"`
	DBPath        string   `yaml:"db_path"`
	Generate      bool     `yaml:"generate"`
	Translate     bool     `yaml:"translate"`
	RetentionDays int      `yaml:"retention_days"` // 0 keeps history forever
}

func (c WatchConfig) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

type AppConfig struct {
	Debug    bool   `yaml:"debug_mode"`
	LogLevel string `yaml:"log_level"` // debug, info, warn, error; debug_mode forces debug
	LogFile  string `yaml:"log_file"`
}

// Option is a function type for configuring Config
type Option func(*Config)

// Default returns the configuration used when no file or environment is present.
func Default() Config {
	return Config{
		Storage: StorageConfig{
			Endpoint:          "https://oss-cn-hangzhou.aliyuncs.com",
			ObjectKeyPrefix:   "uploads/",
			UseHTTPS:          true,
			ConnectionTimeout: 30000,
			SocketTimeout:     60000,
			MaxConnections:    100,
		},
		Recognition: RecognitionConfig{
			BaseURL:       "https://dashscope.aliyuncs.com/api/v1",
			Model:         "paraformer-v2",
			LanguageHints: []string{"zh", "ja", "en"},
			PollInterval:  2000,
			Deadline:      600,
			Timeout:       60,
		},
		Translation: TranslationConfig{
			BaseURL:    "https://dashscope.aliyuncs.com/compatible-mode/v1",
			Model:      "qwen-mt-plus",
			BatchSize:  10,
			APIDelay:   1000,
			Timeout:    60,
			SourceLang: "Chinese",
			TargetLang: "English",
		},
		Media: MediaConfig{
			FFmpegPath:       "ffmpeg",
			ExtractTimeout:   120,
			DefaultTimeout:   60,
			TranslateTimeout: 300,
		},
		Watch: WatchConfig{
			CronExpr:      "*/10 * * * *",
			DBPath:        "y7converter.db",
			Generate:      true,
			Translate:     true,
			RetentionDays: 30,
		},
		App: AppConfig{
			LogLevel: "info",
		},
	}
}

// Load reads the YAML file at path (missing file is allowed), applies the
// environment and the options, then validates the result.
func Load(path string, opts ...Option) (*Config, error) {
	// .env is optional; real environment variables win over it
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn("Failed to load .env: %v", err)
	}

	cfg := Default()
	if path == "" {
		path = getEnvString("CONFIG_FILE", "config.yaml")
	}
	if err := cfg.readFile(path); err != nil {
		return nil, err
	}
	cfg.applyEnv()

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	log.Debug("Config loaded from %s: recognition model=%s translation model=%s batch=%d",
		path, cfg.Recognition.Model, cfg.Translation.Model, cfg.Translation.BatchSize)
	return &cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Storage.AccessKeyID = getEnvString("OSS_ACCESS_KEY_ID", c.Storage.AccessKeyID)
	c.Storage.AccessKeySecret = getEnvString("OSS_ACCESS_KEY_SECRET", c.Storage.AccessKeySecret)
	c.Storage.Endpoint = getEnvString("OSS_ENDPOINT", c.Storage.Endpoint)
	c.Storage.BucketName = getEnvString("OSS_BUCKET", c.Storage.BucketName)
	c.Storage.ObjectKeyPrefix = getEnvString("OSS_OBJECT_KEY_PREFIX", c.Storage.ObjectKeyPrefix)
	c.Storage.UseHTTPS = getEnvBool("OSS_USE_HTTPS", c.Storage.UseHTTPS)

	fallbackKey := os.Getenv("DASHSCOPE_API_KEY")
	c.Recognition.APIKey = getEnvString("RECOGNITION_API_KEY", c.Recognition.APIKey)
	if strings.TrimSpace(c.Recognition.APIKey) == "" {
		c.Recognition.APIKey = fallbackKey
	}
	c.Recognition.Model = getEnvString("RECOGNITION_MODEL", c.Recognition.Model)
	if hints := getEnvString("RECOGNITION_LANGUAGE_HINTS", ""); hints != "" {
		c.Recognition.LanguageHints = splitList(hints)
	}

	c.Translation.APIKey = getEnvString("TRANSLATION_API_KEY", c.Translation.APIKey)
	if strings.TrimSpace(c.Translation.APIKey) == "" {
		c.Translation.APIKey = fallbackKey
	}
	c.Translation.Model = getEnvString("TRANSLATION_MODEL", c.Translation.Model)
	c.Translation.BatchSize = getEnvInt("TRANSLATION_BATCH_SIZE", c.Translation.BatchSize)
	c.Translation.APIDelay = getEnvInt("TRANSLATION_API_DELAY_MS", c.Translation.APIDelay)
	c.Translation.SourceLang = getEnvString("SOURCE_LANG", c.Translation.SourceLang)
	c.Translation.TargetLang = getEnvString("TARGET_LANG", c.Translation.TargetLang)

	c.Media.FFmpegPath = getEnvString("FFMPEG_PATH", c.Media.FFmpegPath)

	if dirs := getEnvString("WATCH_DIRS", ""); dirs != "" {
		c.Watch.Dirs = splitList(dirs)
	}
	c.Watch.CronExpr = getEnvString("CRON_EXPR", c.Watch.CronExpr)
	c.Watch.DBPath = getEnvString("DB_PATH", c.Watch.DBPath)

	c.App.Debug = getEnvBool("DEBUG", c.App.Debug)
	c.App.LogLevel = getEnvString("LOG_LEVEL", c.App.LogLevel)
	c.App.LogFile = getEnvString("LOG_FILE", c.App.LogFile)
}

// validate checks values that would break every action. Credentials are
// checked per action by the pipeline so translation works without OSS keys.
func (c *Config) validate() error {
	if c.Translation.BatchSize < 1 {
		return fmt.Errorf("translation batch_size must be greater than 0")
	}
	if c.Translation.APIDelay < 0 {
		return fmt.Errorf("translation api_delay must not be negative")
	}
	if c.Recognition.PollInterval < 1 {
		return fmt.Errorf("speech_recognition poll_interval_ms must be greater than 0")
	}
	if c.Recognition.Deadline < 1 {
		return fmt.Errorf("speech_recognition deadline_seconds must be greater than 0")
	}
	if c.Media.ExtractTimeout < 1 || c.Media.DefaultTimeout < 1 || c.Media.TranslateTimeout < 1 {
		return fmt.Errorf("media timeouts must be greater than 0")
	}
	if c.Watch.RetentionDays < 0 {
		return fmt.Errorf("watch retention_days must not be negative")
	}
	if _, err := icron.Parser.Parse(c.Watch.CronExpr); err != nil {
		return fmt.Errorf("invalid watch cron_expr: %w", err)
	}
	return nil
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool gets a boolean value from environment variables with default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	ret := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			ret = append(ret, p)
		}
	}
	return ret
}
