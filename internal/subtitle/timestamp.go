package subtitle

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"
)

// maxHours keeps the parsed duration inside time.Duration's range.
const maxHours = math.MaxInt64/int64(time.Hour) - 1

var (
	timestampPattern = regexp.MustCompile(`^(\d{2,}):(\d{2}):(\d{2})[,.](\d{3})$`)
	timingPattern    = regexp.MustCompile(`^(\d{2,}:\d{2}:\d{2}[,.]\d{3})\s*-->\s*(\d{2,}:\d{2}:\d{2}[,.]\d{3})$`)
)

// FormatTimestamp formats d as HH:MM:SS,mmm. Hours are not capped at 24 and
// negative durations are clamped to zero.
func FormatTimestamp(d time.Duration) string {
	ms := d.Milliseconds()
	if ms < 0 {
		ms = 0
	}
	hours := ms / 3_600_000
	minutes := (ms % 3_600_000) / 60_000
	seconds := (ms % 60_000) / 1000
	millis := ms % 1000

	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, millis)
}

// ParseTimestamp is the inverse of FormatTimestamp. A period is accepted as
// the millisecond separator.
func ParseTimestamp(s string) (time.Duration, error) {
	m := timestampPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid timestamp %q", s)
	}

	hours, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	if hours > maxHours {
		return 0, fmt.Errorf("invalid timestamp %q: hours out of range", s)
	}
	minutes, _ := strconv.Atoi(m[2])
	seconds, _ := strconv.Atoi(m[3])
	millis, _ := strconv.Atoi(m[4])
	if minutes > 59 || seconds > 59 {
		return 0, fmt.Errorf("invalid timestamp %q: minutes and seconds must be below 60", s)
	}

	return time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second +
		time.Duration(millis)*time.Millisecond, nil
}

// parseTiming parses an "HH:MM:SS,mmm --> HH:MM:SS,mmm" line.
func parseTiming(line string) (time.Duration, time.Duration, bool) {
	m := timingPattern.FindStringSubmatch(line)
	if m == nil {
		return 0, 0, false
	}
	start, err := ParseTimestamp(m[1])
	if err != nil {
		return 0, 0, false
	}
	end, err := ParseTimestamp(m[2])
	if err != nil {
		return 0, 0, false
	}
	return start, end, true
}

func formatTiming(start, end time.Duration) string {
	return FormatTimestamp(start) + " --> " + FormatTimestamp(end)
}
