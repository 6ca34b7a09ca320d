package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Client talks to an OpenAI-compatible chat completion endpoint such as the
// DashScope compatible mode used by the qwen-mt translation models.
// Safe for concurrent use.
type Client struct {
	config     *Config
	httpClient *http.Client
	baseURL    string
}

// NewClient validates config and returns a client bound to its base URL.
//
// Example:
//
//	client, err := llm.NewClient(llm.NewConfig(cfg.Translation))
//	if err != nil {
//		return err
//	}
func NewClient(config *Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	client := &Client{
		config:  config,
		baseURL: config.APIURL,
		httpClient: &http.Client{
			Timeout: time.Duration(config.Timeout) * time.Second,
		},
	}

	return client, nil
}

// ChatCompletion creates a chat completion request to the configured LLM API
func (c *Client) ChatCompletion(ctx context.Context, messages []Message, opts *ChatCompletionOptions) (*ChatResponse, error) {
	if opts == nil {
		opts = NewChatCompletionOptions()
	}

	request := ChatRequest{
		Model:              c.config.Model,
		Messages:           messages,
		TranslationOptions: opts.TranslationOptions,
	}

	response, err := c.makeRequest(ctx, http.MethodPost, "/chat/completions", request)
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}

	return response, nil
}

// Translate sends text to a translation model and returns the translated
// content of the first choice.
//
// Example:
//
//	out, err := client.Translate(ctx, "[1] 你好", "Chinese", "English")
func (c *Client) Translate(ctx context.Context, text string, sourceLang string, targetLang string) (string, error) {
	messages := []Message{
		{Role: "user", Content: text},
	}

	opts := NewChatCompletionOptions().WithTranslation(sourceLang, targetLang)
	response, err := c.ChatCompletion(ctx, messages, opts)
	if err != nil {
		return "", err
	}

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	content := response.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("empty content in response")
	}

	return content, nil
}

// makeRequest posts payload and decodes the chat response. API errors in the
// body win over the HTTP status so the service message is kept.
func (c *Client) makeRequest(ctx context.Context, method, path string, payload any) (*ChatResponse, error) {
	url := c.baseURL + path

	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	headers := c.config.GetHeaders()
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if os.IsTimeout(err) {
			return nil, fmt.Errorf("request timed out: %w", err)
		}
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var chatResponse ChatResponse
	parseErr := json.Unmarshal(responseBody, &chatResponse)

	if chatResponse.Error != nil && chatResponse.Error.Message != "" {
		chatResponse.Error.StatusCode = resp.StatusCode
		return &chatResponse, chatResponse.Error
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &chatResponse, &Error{
			Message:    strings.TrimSpace(string(responseBody)),
			Type:       "http_error",
			StatusCode: resp.StatusCode,
		}
	}

	if parseErr != nil {
		return nil, fmt.Errorf("failed to parse response: %w", parseErr)
	}

	return &chatResponse, nil
}
