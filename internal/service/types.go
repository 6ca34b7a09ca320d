package service

import (
	"context"
	"time"

	"github.com/lemos/y7converter/internal/config"
	"github.com/lemos/y7converter/internal/media"
	"github.com/lemos/y7converter/internal/recognition"
	"github.com/lemos/y7converter/internal/storage"
	"github.com/lemos/y7converter/internal/subtitle"
	"github.com/lemos/y7converter/internal/translator"
)

type Action string

const (
	ActionGenerate  Action = "generate"
	ActionTranslate Action = "translate"
)

// Result describes a finished pipeline invocation.
type Result struct {
	Action      Action
	Source      string
	Destination string
	Cues        int
	Elapsed     time.Duration
	Description string
}

// ObjectStore is the remote storage used to hand audio to the recognizer.
type ObjectStore interface {
	Upload(ctx context.Context, localPath string) (storage.UploadHandle, error)
	Delete(ctx context.Context, key string) bool
	Close() error
}

// Recognizer turns a remote audio URL into cues.
type Recognizer interface {
	Submit(ctx context.Context, audioURL string) (*recognition.Job, error)
	Await(ctx context.Context, job *recognition.Job, deadline time.Duration) (*recognition.Result, error)
	ToCues(ctx context.Context, result *recognition.Result) (subtitle.CueList, error)
}

// CueTranslator translates a cue list.
type CueTranslator interface {
	TranslateCues(ctx context.Context, cues subtitle.CueList, sourceLang string, targetLang string) (subtitle.CueList, error)
}

// factories build fresh clients for every invocation.
type factories struct {
	extractor  func(config.MediaConfig) media.Extractor
	store      func(config.StorageConfig) (ObjectStore, error)
	recognizer func(config.RecognitionConfig) (Recognizer, error)
	translator func(config.TranslationConfig) (CueTranslator, error)
}

func defaultFactories() factories {
	return factories{
		extractor: func(cfg config.MediaConfig) media.Extractor {
			return media.NewExtractor(cfg.FFmpegPath, cfg.ExtractTimeoutDuration())
		},
		store: func(cfg config.StorageConfig) (ObjectStore, error) {
			c, err := storage.New(cfg)
			if err != nil {
				return nil, err
			}
			return c, nil
		},
		recognizer: func(cfg config.RecognitionConfig) (Recognizer, error) {
			c, err := recognition.New(cfg)
			if err != nil {
				return nil, err
			}
			return c, nil
		},
		translator: func(cfg config.TranslationConfig) (CueTranslator, error) {
			t, err := translator.NewFromConfig(cfg)
			if err != nil {
				return nil, err
			}
			return t, nil
		},
	}
}

// subtitleExts lists the subtitle formats recognised next to media files.
var subtitleExts = []string{
	".srt", // SubRip
	".ass", // Advanced SubStation Alpha
	".ssa", // SubStation Alpha
	".vtt", // WebVTT
}

// mediaExts lists the containers the watch scan generates subtitles for.
var mediaExts = []string{
	".mkv",  // Matroska Video
	".mp4",  // MPEG-4 Part 14
	".m4v",  // iTunes Video
	".mov",  // QuickTime Movie
	".avi",  // Audio Video Interleave
	".wmv",  // Windows Media Video
	".flv",  // Flash Video
	".webm", // WebM
	".ts",   // MPEG Transport Stream
	".m2ts", // Blu-ray BDAV Transport Stream
	".mpg",  // MPEG Video
	".mpeg", // MPEG Video
	".mp3",  // MPEG audio
	".m4a",  // MPEG-4 audio
	".wav",  // Waveform audio
	".flac", // Free Lossless Audio Codec
}
