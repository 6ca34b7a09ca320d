package llm

import (
	"fmt"
	"net/http"
)

// Message represents a chat message
//
// Role: "system", "user", or "assistant"
// Content: Text content of the message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TranslationOptions selects the language pair for machine-translation
// models such as qwen-mt.
type TranslationOptions struct {
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
}

// ChatRequest represents a chat completion request
// Compatible with OpenAI API format
type ChatRequest struct {
	Model              string              `json:"model"`
	Messages           []Message           `json:"messages"`
	TranslationOptions *TranslationOptions `json:"translation_options,omitempty"`
}

// ChatResponse represents a chat completion response
// Compatible with OpenAI API format
type ChatResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
	Error   *Error   `json:"error,omitempty"`
}

// Choice represents a completion choice
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Usage represents token usage statistics
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Error represents an API error
type Error struct {
	Message    string `json:"message"`
	Type       string `json:"type"`
	Param      string `json:"param,omitempty"`
	Code       string `json:"code,omitempty"`
	StatusCode int    `json:"-"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("LLM API Error: %s (type: %s, code: %s, status: %d)", e.Message, e.Type, e.Code, e.StatusCode)
}

// Unauthorized reports whether the API rejected the credentials.
func (e *Error) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden ||
		e.Type == "authentication_error" || e.Code == "invalid_api_key"
}

// ChatCompletionOptions carries the per-request settings of a completion.
type ChatCompletionOptions struct {
	TranslationOptions *TranslationOptions
}

// NewChatCompletionOptions creates a new chat completion options with defaults
func NewChatCompletionOptions() *ChatCompletionOptions {
	return &ChatCompletionOptions{}
}

// WithTranslation sets the language pair
func (o *ChatCompletionOptions) WithTranslation(source, target string) *ChatCompletionOptions {
	o.TranslationOptions = &TranslationOptions{SourceLang: source, TargetLang: target}
	return o
}
