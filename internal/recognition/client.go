// Package recognition talks to the DashScope asynchronous file
// transcription API.
package recognition

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lemos/y7converter/internal/config"
	"github.com/lemos/y7converter/internal/errs"
	"github.com/lemos/y7converter/pkg/log"
)

const (
	submitPath  = "/services/audio/asr/transcription"
	tasksPath   = "/tasks/"
	maxBodySize = 32 << 20
)

// Client submits audio URLs for transcription and collects the results.
// A Client belongs to one pipeline invocation.
type Client struct {
	config       config.RecognitionConfig
	httpClient   *http.Client
	baseURL      string
	pollInterval time.Duration
}

type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for API and payload requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithPollInterval overrides the configured status polling interval.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		c.pollInterval = d
	}
}

func New(cfg config.RecognitionConfig, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errs.New(errs.Config, "speech recognition base URL is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errs.New(errs.Config, "speech recognition model is required")
	}

	c := &Client{
		config:       cfg,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		pollInterval: cfg.PollEvery(),
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.pollInterval <= 0 {
		c.pollInterval = 2 * time.Second
	}
	return c, nil
}

// Submit starts an asynchronous transcription of the audio at audioURL.
func (c *Client) Submit(ctx context.Context, audioURL string) (*Job, error) {
	if strings.TrimSpace(c.config.APIKey) == "" {
		return nil, errs.New(errs.Auth, "speech recognition API key is not configured")
	}

	request := submitRequest{
		Model: c.config.Model,
		Input: submitInput{FileURLs: []string{audioURL}},
		Parameters: submitParameters{
			LanguageHints: c.config.LanguageHints,
		},
	}

	var resp taskResponse
	if err := c.makeRequest(ctx, http.MethodPost, c.baseURL+submitPath, request, &resp); err != nil {
		return nil, c.requestError(ctx, err, "failed to submit recognition task")
	}
	if resp.Output.TaskID == "" {
		return nil, errs.New(errs.Recognition, "recognition API returned no task id").
			WithContext("request_id", resp.RequestID)
	}

	job := &Job{ID: resp.Output.TaskID, Status: StatusPending}
	if s := resp.Output.TaskStatus; s != "" {
		job.advance(parseStatus(s))
	}
	log.Info("Submitted recognition task %s (%s)", job.ID, job.Status)
	return job, nil
}

// Await polls the job until it reaches a terminal state or deadline passes.
func (c *Client) Await(ctx context.Context, job *Job, deadline time.Duration) (*Result, error) {
	if job == nil || job.ID == "" {
		return nil, errs.New(errs.Recognition, "no recognition job to wait for")
	}

	awaitCtx := ctx
	if deadline > 0 {
		var cancel context.CancelFunc
		awaitCtx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	start := time.Now()
	for {
		var resp taskResponse
		err := c.makeRequest(awaitCtx, http.MethodGet, c.baseURL+tasksPath+job.ID, nil, &resp)
		if err != nil {
			if awaitCtx.Err() != nil {
				return nil, c.awaitDone(ctx, job, deadline)
			}
			return nil, c.requestError(ctx, err, "failed to query recognition task").WithContext("task_id", job.ID)
		}

		previous := job.Status
		if job.advance(parseStatus(resp.Output.TaskStatus)) {
			log.Debug("Recognition task %s: %s -> %s", job.ID, previous, job.Status)
		}

		switch job.Status {
		case StatusSucceeded:
			log.Info("Recognition task %s finished in %s", job.ID, time.Since(start).Round(time.Second))
			return &Result{Job: *job, Outputs: toOutputs(resp.Output.Results)}, nil
		case StatusFailed:
			return nil, errs.Newf(errs.Recognition, "recognition task failed: %s", firstNonEmpty(resp.Output.Message, resp.Message, resp.Output.TaskStatus)).
				WithContext("task_id", job.ID).
				WithContext("code", firstNonEmpty(resp.Output.Code, resp.Code))
		}

		select {
		case <-awaitCtx.Done():
			return nil, c.awaitDone(ctx, job, deadline)
		case <-time.After(c.pollInterval):
		}
	}
}

func (c *Client) awaitDone(ctx context.Context, job *Job, deadline time.Duration) error {
	if ctx.Err() != nil {
		return errs.FromContext(ctx, "waiting for recognition").WithContext("task_id", job.ID)
	}
	return errs.Newf(errs.Timeout, "recognition task did not finish within %s", deadline).
		WithContext("task_id", job.ID).
		WithContext("status", job.Status)
}

func toOutputs(results []taskResult) []Output {
	outputs := make([]Output, 0, len(results))
	for _, r := range results {
		status := StatusSucceeded
		if r.SubtaskStatus != "" {
			status = parseStatus(r.SubtaskStatus)
		}
		outputs = append(outputs, Output{
			FileURL:          r.FileURL,
			TranscriptionURL: r.TranscriptionURL,
			Status:           status,
			Code:             r.Code,
			Message:          r.Message,
		})
	}
	return outputs
}

// apiError is a non-2xx answer from the API.
type apiError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("API request failed with status %d: %s %s", e.StatusCode, e.Code, e.Message)
}

func (c *Client) requestError(ctx context.Context, err error, message string) *errs.Error {
	if ctx.Err() != nil {
		return errs.FromContext(ctx, "speech recognition request")
	}
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		kind := errs.Recognition
		if apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden {
			kind = errs.Auth
		}
		return errs.Wrap(err, kind, message).WithContext("code", apiErr.Code)
	}
	return errs.Wrap(err, errs.Recognition, message)
}

// makeRequest sends a JSON request to the recognition API and decodes the
// JSON answer into out.
func (c *Client) makeRequest(ctx context.Context, method, url string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range c.headers(method == http.MethodPost) {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var failure taskResponse
		_ = json.Unmarshal(responseBody, &failure)
		msg := failure.Message
		if msg == "" {
			msg = strings.TrimSpace(string(responseBody))
		}
		return &apiError{StatusCode: resp.StatusCode, Code: failure.Code, Message: msg}
	}

	if err := json.Unmarshal(responseBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func (c *Client) headers(async bool) map[string]string {
	headers := map[string]string{
		"Authorization": "Bearer " + c.config.APIKey,
		"Content-Type":  "application/json",
	}
	if async {
		headers["X-DashScope-Async"] = "enable"
	}
	return headers
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
