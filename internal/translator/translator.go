// Package translator translates subtitle cues in fixed-size batches through
// a chat-completion translation model.
package translator

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/lemos/y7converter/internal/config"
	"github.com/lemos/y7converter/internal/errs"
	"github.com/lemos/y7converter/internal/lang"
	"github.com/lemos/y7converter/internal/llm"
	"github.com/lemos/y7converter/internal/subtitle"
	"github.com/lemos/y7converter/pkg/log"
)

const (
	DefaultBatchSize = 10
	DefaultDelay     = time.Second
)

// Client sends one prompt to the translation model. *llm.Client implements it.
type Client interface {
	Translate(ctx context.Context, text string, sourceLang string, targetLang string) (string, error)
}

type Translator struct {
	client    Client
	batchSize int
	delay     time.Duration
}

func New(client Client, batchSize int, delay time.Duration) *Translator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if delay < 0 {
		delay = 0
	}
	return &Translator{
		client:    client,
		batchSize: batchSize,
		delay:     delay,
	}
}

// NewFromConfig creates a Translator backed by the configured
// OpenAI-compatible endpoint.
func NewFromConfig(cfg config.TranslationConfig) (*Translator, error) {
	client, err := llm.NewClient(llm.NewConfig(cfg))
	if err != nil {
		if errors.Is(err, llm.ErrMissingAPIKey) {
			return nil, errs.Wrap(err, errs.Auth, "translation API key is not configured")
		}
		return nil, errs.Wrap(err, errs.Config, "invalid translation configuration")
	}
	return New(client, cfg.BatchSize, cfg.Delay()), nil
}

// TranslateCues translates cues batch by batch and returns a list of the same
// length with numbers and timings preserved. Batches run strictly in order
// with the configured delay between them; any batch failure aborts.
func (t *Translator) TranslateCues(
	ctx context.Context,
	cues subtitle.CueList,
	sourceLang string,
	targetLang string,
) (subtitle.CueList, error) {
	if len(cues) == 0 {
		return subtitle.CueList{}, nil
	}

	source, target := t.languagePair(cues, sourceLang, targetLang)
	total := (len(cues) + t.batchSize - 1) / t.batchSize
	log.Info("Translating %d cues from %s to %s in %d batches", len(cues), source, target, total)

	out := make(subtitle.CueList, 0, len(cues))
	for b, start := 0, 0; start < len(cues); b, start = b+1, start+t.batchSize {
		if b > 0 && t.delay > 0 {
			if err := sleep(ctx, t.delay); err != nil {
				return nil, errs.FromContext(ctx, "translation")
			}
		}
		if ctx.Err() != nil {
			return nil, errs.FromContext(ctx, "translation")
		}

		end := min(start+t.batchSize, len(cues))
		batch := cues[start:end]

		raw, err := t.client.Translate(ctx, BuildPrompt(batch), source, target)
		if err != nil {
			return nil, t.batchError(ctx, err, b+1, total).
				WithContext("first_cue", batch[0].Index).
				WithContext("last_cue", batch[len(batch)-1].Index)
		}

		out = append(out, Reassemble(batch, raw)...)
		log.Info("Translated batch %d/%d (cues %d-%d)", b+1, total, batch[0].Index, batch[len(batch)-1].Index)
	}

	return out, nil
}

// languagePair resolves configured names into the names the model expects.
// An "auto" source is detected from the cues when possible.
func (t *Translator) languagePair(cues subtitle.CueList, sourceLang, targetLang string) (string, string) {
	source := lang.ServiceName(sourceLang)
	if source == "" || source == lang.Auto {
		source = lang.Auto
		if detected := lang.Name(subtitle.DetectLanguage(cues)); detected != "" {
			log.Debug("Detected source language %s", detected)
			source = detected
		}
	}
	return source, lang.ServiceName(targetLang)
}

func (t *Translator) batchError(ctx context.Context, err error, batch, total int) *errs.Error {
	if ctx.Err() != nil {
		return errs.FromContext(ctx, "translation")
	}
	var apiErr *llm.Error
	if errors.As(err, &apiErr) && apiErr.Unauthorized() {
		authErr := errs.Wrap(err, errs.Auth, "translation API rejected the credentials")
		return errs.Wrap(authErr, errs.Translation, "translation batch failed").
			WithContext("batch", batch).
			WithContext("batches", total)
	}
	msg := "translation batch failed"
	if strings.Contains(err.Error(), "timed out") {
		msg = "translation request timed out"
	}
	return errs.Wrap(err, errs.Translation, msg).
		WithContext("batch", batch).
		WithContext("batches", total)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
