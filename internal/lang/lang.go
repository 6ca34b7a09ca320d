// Package lang resolves the language names and codes accepted in the
// configuration and on the command line.
package lang

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Auto asks the translation service to detect the source language.
const Auto = "auto"

// names maps the language names used in configuration to ISO 639-1 codes.
var names = map[string]string{
	"chinese":    "zh",
	"中文":         "zh",
	"english":    "en",
	"英文":         "en",
	"japanese":   "ja",
	"korean":     "ko",
	"french":     "fr",
	"german":     "de",
	"spanish":    "es",
	"russian":    "ru",
	"portuguese": "pt",
	"italian":    "it",
	"dutch":      "nl",
	"arabic":     "ar",
	"thai":       "th",
	"vietnamese": "vi",
}

// IsAuto reports whether s requests automatic source language detection.
func IsAuto(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), Auto)
}

// Code returns the ISO 639-1 code for a language name ("Chinese", "英文")
// or code ("ja", "pt-BR", "eng"). It returns "" for unknown languages.
func Code(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == Auto {
		return ""
	}
	if code, ok := names[s]; ok {
		return code
	}
	return NormalizeToken(s)
}

// Resolve returns the tag for a language name or code.
func Resolve(s string) (language.Tag, error) {
	code := Code(s)
	if code == "" {
		return language.Und, fmt.Errorf("unknown language %q", s)
	}
	return language.Make(code), nil
}

// Name returns the English display name of tag, e.g. "Japanese".
func Name(tag language.Tag) string {
	if tag == language.Und {
		return ""
	}
	base, _ := tag.Base()
	return display.English.Languages().Name(language.Make(base.String()))
}

// ServiceName converts a configured language into the English name the
// translation service expects. Auto passes through and unknown values are
// returned unchanged.
func ServiceName(s string) string {
	s = strings.TrimSpace(s)
	if IsAuto(s) {
		return Auto
	}
	tag, err := Resolve(s)
	if err != nil {
		return s
	}
	if name := Name(tag); name != "" {
		return name
	}
	return s
}

// NormalizeToken validates a language token and returns its ISO 639-1 base
// code ("fre"→"fr", "eng"→"en", "chi"→"zh"), or "" when not recognized.
func NormalizeToken(token string) string {
	token = strings.ReplaceAll(strings.TrimSpace(token), "_", "-")
	if token == "" {
		return ""
	}
	switch strings.ToLower(token) {
	case "chs", "cht":
		return "zh"
	}
	tag, err := language.Parse(token)
	if err != nil {
		return ""
	}
	base, conf := tag.Base()
	if conf == language.No {
		return ""
	}
	return base.String()
}

// Matches reports whether a file name token denotes the target language.
func Matches(token string, target language.Tag) bool {
	token = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(token), "_", "-"))
	if token == "" || target == language.Und {
		return false
	}

	base, _ := target.Base()
	targetBase := strings.ToLower(base.String())
	if token == targetBase || strings.HasPrefix(token, targetBase+"-") {
		return true
	}
	return NormalizeToken(token) == targetBase
}
