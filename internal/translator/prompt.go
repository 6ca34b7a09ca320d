package translator

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/lemos/y7converter/internal/subtitle"
	"github.com/lemos/y7converter/pkg/log"
)

// inlineBreakerPlaceholder stands in for newlines inside one cue so that
// every cue occupies exactly one prompt line.
const inlineBreakerPlaceholder = "%%inline_breaker%%"

var taggedLinePattern = regexp.MustCompile(`^\[(\d+)\]\s*(.+)$`)

// BuildPrompt renders a batch as "[i] text" lines, i being the 1-based
// position of the cue inside the batch.
func BuildPrompt(batch subtitle.CueList) string {
	lines := make([]string, 0, len(batch))
	for i, cue := range batch {
		text := strings.ReplaceAll(strings.TrimSpace(cue.Text), "\r\n", "\n")
		text = strings.ReplaceAll(text, "\n", inlineBreakerPlaceholder)
		lines = append(lines, "["+strconv.Itoa(i+1)+"] "+text)
	}
	return strings.Join(lines, "\n")
}

// Reassemble maps a raw model response back onto the batch. Cue numbers and
// timings are kept and only the text is replaced.
//
// Tagged lines are matched by their batch position. When the tags do not
// cover every cue exactly once the response is split positionally instead:
// the i-th non-blank line belongs to the i-th cue. Cues left without a line
// keep their source text.
func Reassemble(batch subtitle.CueList, raw string) subtitle.CueList {
	out := make(subtitle.CueList, len(batch))
	copy(out, batch)
	if len(batch) == 0 {
		return out
	}

	lines := responseLines(raw)

	byIndex := make(map[int]string, len(batch))
	for _, line := range lines {
		m := taggedLinePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		idx, err := strconv.Atoi(m[1])
		if err != nil || idx < 1 || idx > len(batch) {
			continue
		}
		byIndex[idx] = m[2]
	}

	if len(byIndex) == len(batch) {
		for idx, text := range byIndex {
			if restored := restoreBreaks(text); restored != "" {
				out[idx-1].Text = restored
			}
		}
		return out
	}

	log.Warn("Translation tags matched %d of %d cues, falling back to line order", len(byIndex), len(batch))
	for i := range out {
		if i >= len(lines) {
			log.Warn("No translation for cue %d, keeping source text", out[i].Index)
			continue
		}
		text := lines[i]
		if m := taggedLinePattern.FindStringSubmatch(text); m != nil {
			text = m[2]
		}
		if restored := restoreBreaks(text); restored != "" {
			out[i].Text = restored
		}
	}
	return out
}

func responseLines(raw string) []string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// restoreBreaks turns inline break markers back into newlines.
func restoreBreaks(text string) string {
	parts := strings.Split(text, inlineBreakerPlaceholder)
	kept := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n")
}
