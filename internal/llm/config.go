package llm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lemos/y7converter/internal/config"
)

// ErrMissingAPIKey is returned by Validate when no API key is configured.
var ErrMissingAPIKey = errors.New("API key is required")

// Config holds the configuration for the chat-completion client.
// Any OpenAI-compatible endpoint works; the defaults target DashScope's
// compatible mode.
type Config struct {
	APIKey  string `json:"api_key"`
	APIURL  string `json:"api_url"`
	Model   string `json:"model"`
	Timeout int    `json:"timeout"`
}

// NewConfig builds a client configuration from the translation settings.
func NewConfig(cfg config.TranslationConfig) *Config {
	return &Config{
		APIKey:  cfg.APIKey,
		APIURL:  strings.TrimRight(cfg.BaseURL, "/"),
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return ErrMissingAPIKey
	}
	if c.APIURL == "" {
		return fmt.Errorf("API URL is required")
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.Timeout < 1 {
		return fmt.Errorf("timeout must be greater than 0")
	}
	return nil
}

// GetHeaders returns the headers for the LLM API request
func (c *Config) GetHeaders() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + c.APIKey,
		"Content-Type":  "application/json",
	}
}
