package sources

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DelimitedExtensions are the file extensions Discover picks up.
var DelimitedExtensions = []string{".csv", ".tsv", ".txt"}

// Open returns the source for path: an EnergyModel for a badger directory,
// a Delimited source for a regular file.
func Open(path string, opts ...Option) (Source, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	if fi.IsDir() {
		if IsEnergyModelDir(path) {
			return NewEnergyModel(path, opts...), nil
		}
		return nil, fmt.Errorf("open source %s: directory is not an energy model database", path)
	}
	return NewDelimited(path, opts...), nil
}

// Discover lists delimited files under dir, sorted. Energy-model database
// directories are not descended into.
func Discover(dir string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && IsEnergyModelDir(path) {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		for _, want := range DelimitedExtensions {
			if ext == want {
				out = append(out, path)
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover sources in %s: %w", dir, err)
	}
	sort.Strings(out)
	return out, nil
}
