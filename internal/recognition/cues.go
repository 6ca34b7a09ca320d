package recognition

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lemos/y7converter/internal/errs"
	"github.com/lemos/y7converter/internal/subtitle"
	"github.com/lemos/y7converter/pkg/log"
)

const (
	// NoSpeechText is the text of the placeholder cue emitted when the
	// recognizer found nothing.
	NoSpeechText = "no speech detected"

	defaultSentenceLength = 5 * time.Second
)

// NoSpeechCue returns the placeholder cue used for silent media.
func NoSpeechCue() subtitle.Cue {
	return subtitle.Cue{Index: 1, Start: 0, End: defaultSentenceLength, Text: NoSpeechText}
}

// ToCues downloads every transcription payload of result and converts the
// sentences to cues numbered globally in encounter order.
func (c *Client) ToCues(ctx context.Context, result *Result) (subtitle.CueList, error) {
	if result == nil {
		return nil, errs.New(errs.Recognition, "no recognition result")
	}

	var cues subtitle.CueList
	failed := 0
	for _, output := range result.Outputs {
		if output.Status == StatusFailed {
			failed++
			log.Warn("Recognition subtask for %s failed: %s %s", output.FileURL, output.Code, output.Message)
			continue
		}
		if output.TranscriptionURL == "" {
			log.Warn("Recognition subtask for %s has no transcription URL", output.FileURL)
			continue
		}

		payload, err := c.fetchTranscription(ctx, output.TranscriptionURL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, errs.FromContext(ctx, "downloading transcription")
			}
			return nil, errs.Wrap(err, errs.Recognition, "failed to download transcription").
				WithContext("task_id", result.ID)
		}
		cues = appendSentences(cues, payload)
	}

	if len(result.Outputs) > 0 && failed == len(result.Outputs) {
		return nil, errs.Newf(errs.Recognition, "all %d recognition subtasks failed", failed).
			WithContext("task_id", result.ID)
	}
	if len(cues) == 0 {
		log.Warn("No speech recognized in task %s, writing placeholder subtitle", result.ID)
		return subtitle.CueList{NoSpeechCue()}, nil
	}
	return cues, nil
}

func appendSentences(cues subtitle.CueList, payload *transcription) subtitle.CueList {
	for _, t := range payload.Transcripts {
		for _, s := range t.Sentences {
			text := strings.TrimSpace(s.Text)
			if text == "" {
				continue
			}
			start := time.Duration(s.BeginTime) * time.Millisecond
			end := start + defaultSentenceLength
			if s.EndTime != nil {
				end = time.Duration(*s.EndTime) * time.Millisecond
			}
			if end < start {
				end = start
			}
			cues = append(cues, subtitle.Cue{
				Index: len(cues) + 1,
				Start: start,
				End:   end,
				Text:  text,
			})
		}
	}
	return cues
}

// fetchTranscription GETs a payload URL. Payload URLs are pre-signed, so no
// credentials are sent.
func (c *Client) fetchTranscription(ctx context.Context, url string) (*transcription, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transcription: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("transcription download failed with status %d", resp.StatusCode)
	}

	var payload transcription
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to parse transcription: %w", err)
	}
	return &payload, nil
}
