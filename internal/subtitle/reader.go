package subtitle

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"

	"github.com/lemos/y7converter/internal/errs"
)

var indexPattern = regexp.MustCompile(`^\d+$`)

const utf8BOM = "\uFEFF"

// Parse decodes SRT text into cues.
//
// A numeric line starts a new cue, a timing line sets its start and end, and
// any other non-blank line is appended to its text. A blank line closes the
// cue, which is kept only when its text is non-empty. After the timing line a
// numeric line belongs to the text unless a timing line follows it, in which
// case it starts the next cue. Non-empty input without a single cue is a
// Format error.
func Parse(text string) (CueList, error) {
	text = strings.TrimPrefix(text, utf8BOM)

	var lines []string
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, errs.Wrap(err, errs.Format, "failed to scan subtitle text")
	}

	var (
		cues      CueList
		current   *Cue
		timed     bool
		textLines []string
	)

	flush := func() {
		if current != nil && len(textLines) > 0 {
			current.Text = strings.Join(textLines, "\n")
			cues = append(cues, *current)
		}
		current = nil
		timed = false
		textLines = nil
	}

	for i, line := range lines {
		nextIsTiming := i+1 < len(lines) && timingPattern.MatchString(lines[i+1])

		switch {
		case line == "":
			flush()

		case indexPattern.MatchString(line) && (!timed || nextIsTiming):
			if current != nil && (timed || len(textLines) > 0) {
				flush()
			}
			index, err := strconv.Atoi(line)
			if err != nil {
				return nil, errs.Wrap(err, errs.Format, fmt.Sprintf("invalid cue number %q", line))
			}
			current = &Cue{Index: index}
			textLines = nil

		case !timed && timingPattern.MatchString(line):
			start, end, ok := parseTiming(line)
			if !ok {
				return nil, errs.Newf(errs.Format, "invalid timing line %q", line)
			}
			if current == nil {
				current = &Cue{}
			}
			current.Start, current.End = start, end
			timed = true

		default:
			if current == nil {
				// stray text outside any cue
				continue
			}
			textLines = append(textLines, line)
		}
	}
	flush()

	if len(cues) == 0 && strings.TrimSpace(text) != "" {
		return nil, errs.New(errs.Format, "no subtitle cues found, not an SRT file")
	}
	return cues, nil
}

// ReadFile reads and parses an SRT file and detects its language.
func ReadFile(path string) (*File, error) {
	if !strings.HasSuffix(strings.ToLower(path), ".srt") {
		return nil, errs.Newf(errs.Format, "only SRT subtitle files are supported: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errs.Wrap(err, errs.FileIO, "subtitle file does not exist").WithContext("path", path)
		}
		return nil, errs.Wrap(err, errs.FileIO, "failed to read subtitle file").WithContext("path", path)
	}

	return ReadBytes(data, path)
}

// ReadBytes parses SRT content that did not come from ReadFile.
func ReadBytes(data []byte, path string) (*File, error) {
	cues, err := Parse(string(data))
	if err != nil {
		var e *errs.Error
		if errors.As(err, &e) {
			e.WithContext("path", path)
		}
		return nil, err
	}

	return &File{
		Path:     path,
		Cues:     cues,
		Language: DetectLanguage(cues),
		Format:   "SRT",
	}, nil
}

// DetectLanguage returns the most common language among the cues.
func DetectLanguage(cues CueList) language.Tag {
	if len(cues) == 0 {
		return language.Und
	}

	langMap := make(map[string]int)
	for _, cue := range cues {
		info := whatlanggo.Detect(cue.Text)
		lang := info.Lang.Iso6391()
		if lang == "" {
			continue
		}
		langMap[lang]++
	}

	var topLang string
	var topCount int
	for lang, count := range langMap {
		if count > topCount || (count == topCount && lang < topLang) {
			topLang = lang
			topCount = count
		}
	}
	if topLang == "" {
		return language.Und
	}

	tag, err := language.Parse(topLang)
	if err != nil {
		return language.Und
	}
	return tag
}
