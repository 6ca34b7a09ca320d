package media

import (
	"context"
	"time"
)

// Extractor turns a media file into an audio file suitable for recognition.
type Extractor interface {
	ExtractAudio(ctx context.Context, src string, dst string) error
}

func NewExtractor(
	ffmpegCmd string,
	timeout time.Duration,
) Extractor {
	return NewFfmpeg(ffmpegCmd, timeout)
}
