package file

import (
	"path/filepath"
	"strings"
)

// ReplaceExt swaps the extension of path for ext.
func ReplaceExt(path, ext string) string {
	if path == "" {
		return path
	}

	dir := filepath.Dir(path)
	filename := filepath.Base(path)

	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	lastDot := strings.LastIndex(filename, ".")
	if lastDot <= 0 {
		return filepath.Join(dir, filename+ext)
	}

	return filepath.Join(dir, filename[:lastDot]+ext)
}

// BaseName returns the file name of path without its extension.
func BaseName(path string) string {
	name := filepath.Base(path)
	if lastDot := strings.LastIndex(name, "."); lastDot > 0 {
		return name[:lastDot]
	}
	return name
}

// SubtitlePath is the default subtitle path for a media file:
// "/v/movie.mp4" → "/v/movie.srt".
func SubtitlePath(mediaPath string) string {
	return ReplaceExt(mediaPath, ".srt")
}

// TranslatedPath is the default output of translating srcPath into the
// language with ISO code langCode: "/s/movie.srt" → "/s/movie.en.srt".
// Without a code it becomes "/s/movie_translated.srt".
func TranslatedPath(srcPath, langCode string) string {
	dir := filepath.Dir(srcPath)
	base := BaseName(srcPath)
	if langCode == "" {
		return filepath.Join(dir, base+"_translated.srt")
	}
	return filepath.Join(dir, base+"."+langCode+".srt")
}

// HasExt reports whether path ends with one of exts, ignoring case.
func HasExt(path string, exts ...string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}
