package subtitle

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/lemos/y7converter/internal/errs"
)

// Serialize encodes cues as SRT text. Cues with blank text are skipped; cues
// are separated by one blank line and the output ends with a single newline.
func Serialize(cues CueList) string {
	var sb strings.Builder
	written := 0
	for _, cue := range cues {
		if strings.TrimSpace(cue.Text) == "" {
			continue
		}
		if written > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(strconv.Itoa(cue.Index))
		sb.WriteString("\n")
		sb.WriteString(formatTiming(cue.Start, cue.End))
		sb.WriteString("\n")
		sb.WriteString(cue.Text)
		sb.WriteString("\n")
		written++
	}
	return sb.String()
}

// WriteFile writes cues to path atomically: the content goes to a temporary
// file in the same directory which is then renamed over path.
func WriteFile(path string, cues CueList) error {
	if len(cues) == 0 {
		return errs.New(errs.Format, "subtitle data is empty")
	}
	return WriteText(path, Serialize(cues))
}

// WriteText atomically writes already serialized subtitle text to path.
func WriteText(path string, content string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errs.Wrap(err, errs.FileIO, "failed to create output file").WithContext("path", path)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.WriteString(content); err != nil {
		_ = tmp.Close()
		return errs.Wrap(err, errs.FileIO, "failed to write output file").WithContext("path", path)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errs.Wrap(err, errs.FileIO, "failed to flush output file").WithContext("path", path)
	}
	if err := tmp.Close(); err != nil {
		return errs.Wrap(err, errs.FileIO, "failed to close output file").WithContext("path", path)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return errs.Wrap(err, errs.FileIO, fmt.Sprintf("failed to set mode on %s", tmpPath))
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return errs.Wrap(err, errs.FileIO, "failed to move output file into place").WithContext("path", path)
	}
	committed = true
	return nil
}
