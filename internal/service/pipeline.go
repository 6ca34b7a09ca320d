package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/lemos/y7converter/internal/config"
	"github.com/lemos/y7converter/internal/errs"
	"github.com/lemos/y7converter/internal/lang"
	"github.com/lemos/y7converter/internal/media"
	"github.com/lemos/y7converter/internal/subtitle"
	"github.com/lemos/y7converter/pkg/file"
	"github.com/lemos/y7converter/pkg/log"
)

// Pipeline runs the generate and translate actions. It holds configuration
// and client factories only, so one Pipeline can serve many invocations.
type Pipeline struct {
	cfg config.Config
	factories
}

type PipelineOption func(*Pipeline)

func WithExtractorFactory(f func(config.MediaConfig) media.Extractor) PipelineOption {
	return func(p *Pipeline) { p.extractor = f }
}

func WithStoreFactory(f func(config.StorageConfig) (ObjectStore, error)) PipelineOption {
	return func(p *Pipeline) { p.store = f }
}

func WithRecognizerFactory(f func(config.RecognitionConfig) (Recognizer, error)) PipelineOption {
	return func(p *Pipeline) { p.recognizer = f }
}

func WithTranslatorFactory(f func(config.TranslationConfig) (CueTranslator, error)) PipelineOption {
	return func(p *Pipeline) { p.translator = f }
}

func NewPipeline(cfg config.Config, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		cfg:       cfg,
		factories: defaultFactories(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Generate transcribes the audio of mediaPath into an SRT file at destPath.
// An empty destPath writes next to the media file.
func (p *Pipeline) Generate(ctx context.Context, mediaPath string, destPath string) (*Result, error) {
	start := time.Now()
	if destPath == "" {
		destPath = file.SubtitlePath(mediaPath)
	}
	log.Info("Generating subtitles for %s -> %s", mediaPath, destPath)

	if err := p.validateGenerate(mediaPath); err != nil {
		return nil, p.fail(ActionGenerate, mediaPath, err)
	}

	audioPath, err := media.TempAudioFile()
	if err != nil {
		return nil, p.fail(ActionGenerate, mediaPath, err)
	}
	defer media.RemoveTemp(audioPath)

	if err := p.extractor(p.cfg.Media).ExtractAudio(ctx, mediaPath, audioPath); err != nil {
		return nil, p.fail(ActionGenerate, mediaPath, err)
	}

	store, err := p.store(p.cfg.Storage)
	if err != nil {
		return nil, p.fail(ActionGenerate, mediaPath, err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("Failed to close object storage client: %v", err)
		}
	}()

	handle, err := store.Upload(ctx, audioPath)
	if err != nil {
		return nil, p.fail(ActionGenerate, mediaPath, err)
	}
	defer p.deleteRemote(ctx, store, handle.Key)

	recognizer, err := p.recognizer(p.cfg.Recognition)
	if err != nil {
		return nil, p.fail(ActionGenerate, mediaPath, err)
	}
	job, err := recognizer.Submit(ctx, handle.URL)
	if err != nil {
		return nil, p.fail(ActionGenerate, mediaPath, err)
	}
	result, err := recognizer.Await(ctx, job, p.cfg.Recognition.AwaitDeadline())
	if err != nil {
		return nil, p.fail(ActionGenerate, mediaPath, err)
	}
	cues, err := recognizer.ToCues(ctx, result)
	if err != nil {
		return nil, p.fail(ActionGenerate, mediaPath, err)
	}

	if err := subtitle.WriteFile(destPath, cues); err != nil {
		return nil, p.fail(ActionGenerate, mediaPath, err)
	}

	return p.done(ActionGenerate, mediaPath, destPath, len(cues), start), nil
}

// Translate translates the SRT file at srcPath into the configured target
// language. An empty destPath derives the name from the target language.
// The destination is written only after every batch succeeded.
func (p *Pipeline) Translate(ctx context.Context, srcPath string, destPath string) (*Result, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Media.TranslateTimeoutDuration())
	defer cancel()

	source, target := p.cfg.Translation.SourceLang, p.cfg.Translation.TargetLang
	if destPath == "" {
		destPath = file.TranslatedPath(srcPath, lang.Code(target))
	}
	log.Info("Translating %s (%s -> %s) -> %s", srcPath, source, target, destPath)

	if samePath(srcPath, destPath) {
		return nil, p.fail(ActionTranslate, srcPath,
			errs.New(errs.Config, "destination must differ from the source subtitle").WithContext("path", destPath))
	}

	tr, err := p.translator(p.cfg.Translation)
	if err != nil {
		return nil, p.fail(ActionTranslate, srcPath, err)
	}

	src, err := subtitle.ReadFile(srcPath)
	if err != nil {
		return nil, p.fail(ActionTranslate, srcPath, err)
	}
	if len(src.Cues) == 0 {
		return nil, p.fail(ActionTranslate, srcPath,
			errs.New(errs.Format, "subtitle file contains no cues").WithContext("path", srcPath))
	}
	log.Debug("Read %d cues from %s (detected language %s)", len(src.Cues), srcPath, src.Language)

	translated, err := tr.TranslateCues(ctx, src.Cues, source, target)
	if err != nil {
		return nil, p.fail(ActionTranslate, srcPath, err)
	}

	if err := subtitle.WriteFile(destPath, translated); err != nil {
		return nil, p.fail(ActionTranslate, srcPath, err)
	}

	return p.done(ActionTranslate, srcPath, destPath, len(translated), start), nil
}

func (p *Pipeline) validateGenerate(mediaPath string) error {
	if err := p.cfg.Storage.Validate(); err != nil {
		return errs.Wrap(err, errs.Config, "object storage is not configured")
	}
	if strings.TrimSpace(p.cfg.Recognition.APIKey) == "" {
		return errs.New(errs.Auth, "speech recognition API key is not configured")
	}
	info, err := os.Stat(mediaPath)
	if err != nil {
		return errs.Wrap(err, errs.FileIO, "media file does not exist").WithContext("path", mediaPath)
	}
	if info.IsDir() {
		return errs.New(errs.FileIO, "media path is a directory").WithContext("path", mediaPath)
	}
	return nil
}

// deleteRemote removes the uploaded object even when ctx is already
// canceled, bounded by the generic timeout.
func (p *Pipeline) deleteRemote(ctx context.Context, store ObjectStore, key string) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.Media.DefaultTimeoutDuration())
	defer cancel()
	if !store.Delete(cleanupCtx, key) {
		log.Warn("Remote object %s was not deleted, remove it manually", key)
	}
}

func (p *Pipeline) done(action Action, src, dest string, cues int, start time.Time) *Result {
	elapsed := time.Since(start).Round(time.Millisecond)
	size := ""
	if info, err := os.Stat(dest); err == nil {
		size = humanize.Bytes(uint64(info.Size()))
	}

	verb := "generated"
	if action == ActionTranslate {
		verb = "translated"
	}
	res := &Result{
		Action:      action,
		Source:      src,
		Destination: dest,
		Cues:        cues,
		Elapsed:     elapsed,
		Description: fmt.Sprintf("%s %s cues into %s (%s) in %s", verb, humanize.Comma(int64(cues)), filepath.Base(dest), size, elapsed),
	}
	log.Info("Done: %s", res.Description)
	return res
}

// fail logs err and returns it with the probable cause attached as "hint".
func (p *Pipeline) fail(action Action, src string, err error) error {
	hint := errs.Advice(err)
	log.Error("%s %s failed: %v", action, src, err)
	log.Info("Hint: %s", hint)

	var typed *errs.Error
	if !errors.As(err, &typed) {
		typed = errs.Wrap(err, errs.Unknown, fmt.Sprintf("%s failed", action))
		err = typed
	}
	typed.WithContext("hint", hint)
	return err
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}
