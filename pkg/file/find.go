package file

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// FindFiles walks dir and returns the regular files accepted by match,
// sorted by path. Hidden files and directories are skipped.
func FindFiles(dir string, match func(path string) bool) ([]string, error) {
	var found []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		name := d.Name()
		if path != dir && strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type().IsRegular() && match(path) {
			found = append(found, path)
		}
		return nil
	})

	sort.Strings(found)
	return found, err
}
