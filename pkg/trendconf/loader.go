// Package trendconf implements the trend configuration language: a small
// DSL that attaches unit conversions, renames and regex find/replace
// rewrites to trends selected by source and name.
//
// A file is a sequence of records:
//
//	type "eso" name "Electricity:Facility [J](Hourly)" convert "J" "kWh"
//	path "/data/site.csv" re "^Zone (.*) Temp" replace "^Zone (.*) Temp" "$1 temperature"
//	type "csv" name "OAT" rename "Outdoor air temperature"
//
// Files are loaded independently: a file with any syntax error contributes
// nothing. The "unit" transform parses but has no effect.
package trendconf

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Extension is the file extension the loader recognizes.
const Extension = ".tcfg"

// FileDiagnostics lists the errors that caused a file to be discarded.
type FileDiagnostics struct {
	File   string
	Errors []error
}

// Config is the merged set of matchers from every valid file.
type Config struct {
	matchers    map[string]*TrendMatcher
	files       []string
	diagnostics []FileDiagnostics
}

// NewConfig returns an empty configuration.
func NewConfig() *Config {
	return &Config{matchers: make(map[string]*TrendMatcher)}
}

// LoadDir recursively loads every *.tcfg file under dir in lexical path
// order. Files with syntax errors are skipped and recorded in Diagnostics.
// An error is returned only when the directory walk itself fails.
func LoadDir(dir string, logger *slog.Logger) (*Config, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := NewConfig()

	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), Extension) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan config dir %s: %w", dir, err)
	}
	sort.Strings(paths)

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			c.diagnostics = append(c.diagnostics, FileDiagnostics{File: path, Errors: []error{err}})
			logger.Warn("trend config unreadable, skipped", "file", path, "error", err)
			continue
		}
		if errs := c.Add(path, string(data)); len(errs) > 0 {
			logger.Warn("trend config has syntax errors, discarded", "file", path, "errors", len(errs))
			for _, e := range errs {
				logger.Debug("trend config diagnostic", "error", e)
			}
			continue
		}
		logger.Debug("trend config loaded", "file", path)
	}
	return c, nil
}

// Add parses src and merges its records. If parsing reports any error the
// file is discarded entirely and the errors are returned.
func (c *Config) Add(file, src string) []error {
	records, errs := Parse(file, src)
	if len(errs) > 0 {
		c.diagnostics = append(c.diagnostics, FileDiagnostics{File: file, Errors: errs})
		return errs
	}
	for _, rec := range records {
		key := rec.Source.Key()
		m := c.matchers[key]
		if m == nil {
			m = newTrendMatcher()
			c.matchers[key] = m
		}
		m.add(rec)
	}
	c.files = append(c.files, file)
	return nil
}

// Matcher returns the matcher registered for a source selector key.
func (c *Config) Matcher(key string) (*TrendMatcher, bool) {
	m, ok := c.matchers[key]
	return m, ok
}

// Match looks up the transform for trend under a single key.
func (c *Config) Match(key, trend string) (Transform, bool) {
	if c == nil {
		return nil, false
	}
	return c.matchers[key].Match(trend)
}

// MatchAny tries keys in order and returns the first transform found.
func (c *Config) MatchAny(trend string, keys ...string) (Transform, bool) {
	for _, k := range keys {
		if t, ok := c.Match(k, trend); ok {
			return t, true
		}
	}
	return nil, false
}

// Keys returns the registered selector keys, sorted.
func (c *Config) Keys() []string {
	out := make([]string, 0, len(c.matchers))
	for k := range c.matchers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Files returns the files that loaded successfully.
func (c *Config) Files() []string { return c.files }

// Diagnostics returns the files that were discarded and why.
func (c *Config) Diagnostics() []FileDiagnostics { return c.diagnostics }
