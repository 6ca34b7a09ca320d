package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/lemos/y7converter/internal/errs"
	"github.com/lemos/y7converter/pkg/log"
)

// well-known install locations tried after the configured command
var ffmpegCandidates = []string{
	"/usr/bin/ffmpeg",
	"/usr/local/bin/ffmpeg",
	"/opt/homebrew/bin/ffmpeg",
}

const maxStderrLen = 2000

type ffmpeg struct {
	ffmpegCmd string
	fallbacks []string
	timeout   time.Duration
}

// NewFfmpeg returns an extractor that runs ffmpegCmd with the given timeout.
func NewFfmpeg(ffmpegCmd string, timeout time.Duration) ffmpeg {
	if strings.TrimSpace(ffmpegCmd) == "" {
		ffmpegCmd = "ffmpeg"
	}
	return ffmpeg{
		ffmpegCmd: ffmpegCmd,
		fallbacks: ffmpegCandidates,
		timeout:   timeout,
	}
}

// ExtractAudio converts the audio track of src into mono 16kHz AAC at dst.
func (ff ffmpeg) ExtractAudio(ctx context.Context, src string, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return errs.Wrap(err, errs.FileIO, "media file does not exist").WithContext("path", src)
	}
	if !info.Mode().IsRegular() {
		return errs.New(errs.FileIO, "media path is not a regular file").WithContext("path", src)
	}

	cmdPath, err := ff.locate()
	if err != nil {
		return errs.Wrap(err, errs.Extraction, "ffmpeg not found").WithContext("command", ff.ffmpegCmd)
	}

	runCtx := ctx
	if ff.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, ff.timeout)
		defer cancel()
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, cmdPath, ff.extractAudioArgs(src, dst)...)
	cmd.Stderr = &stderr
	cmd.WaitDelay = 2 * time.Second

	log.Debug("Running %s %s", cmdPath, strings.Join(cmd.Args[1:], " "))
	start := time.Now()
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return errs.FromContext(ctx, "audio extraction")
		}
		if runCtx.Err() != nil {
			return errs.Wrap(runCtx.Err(), errs.Timeout,
				fmt.Sprintf("audio extraction exceeded %s", ff.timeout)).WithContext("path", src)
		}
		return errs.Wrap(err, errs.Extraction, "ffmpeg failed").
			WithContext("path", src).
			WithContext("stderr", tail(stderr.String(), maxStderrLen))
	}

	out, err := os.Stat(dst)
	if err != nil || out.Size() == 0 {
		return errs.New(errs.Extraction, "ffmpeg produced no audio output").
			WithContext("path", src).
			WithContext("stderr", tail(stderr.String(), maxStderrLen))
	}

	log.Info("Extracted audio %s (%s) in %s", filepath.Base(dst),
		humanize.Bytes(uint64(out.Size())), time.Since(start).Round(time.Millisecond))
	return nil
}

// locate resolves the configured command, then the well-known locations.
func (ff ffmpeg) locate() (string, error) {
	candidates := append([]string{ff.ffmpegCmd}, ff.fallbacks...)
	var firstErr error
	for _, c := range candidates {
		p, err := exec.LookPath(c)
		if err == nil {
			return p, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return "", firstErr
}

func (ffmpeg) extractAudioArgs(src string, dst string) []string {
	return []string{
		"-i", src,
		"-vn",            // drop video
		"-acodec", "aac", // re-encode to aac
		"-ar", "16000",
		"-ac", "1",
		"-b:a", "64k",
		"-y",
		dst,
	}
}

// TempAudioFile reserves a temporary path for extracted audio.
func TempAudioFile() (string, error) {
	f, err := os.CreateTemp("", "y7converter_audio_*.aac")
	if err != nil {
		return "", errs.Wrap(err, errs.FileIO, "failed to create temporary audio file")
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		_ = os.Remove(name)
		return "", errs.Wrap(err, errs.FileIO, "failed to create temporary audio file")
	}
	return name, nil
}

// RemoveTemp deletes a temporary file, logging failures.
func RemoveTemp(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("Failed to remove temporary file %s: %v", path, err)
	}
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
