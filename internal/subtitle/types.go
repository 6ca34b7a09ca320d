package subtitle

import (
	"time"

	"golang.org/x/text/language"
)

// Cue is one timed subtitle entry.
type Cue struct {
	Index int           // sequence number, preserved from the source file
	Start time.Duration // millisecond resolution
	End   time.Duration
	Text  string // one or more lines joined by "\n"
}

// CueList is an ordered sequence of cues in display order.
type CueList []Cue

// File is a parsed subtitle file.
type File struct {
	Path     string
	Cues     CueList
	Language language.Tag
	Format   string // e.g. SRT
}
