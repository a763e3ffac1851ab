package trendconf

import "regexp"

type patternTransform struct {
	pattern   *regexp.Regexp
	transform Transform
}

// TrendMatcher holds the transforms registered for one source selector key.
type TrendMatcher struct {
	exact    map[string]Transform
	patterns []patternTransform
}

func newTrendMatcher() *TrendMatcher {
	return &TrendMatcher{exact: make(map[string]Transform)}
}

// add registers a record. Exact names keep their first registration;
// regexes are appended in declaration order.
func (m *TrendMatcher) add(rec Record) {
	if rec.Transform == nil {
		return
	}
	if rec.Trend.IsRegex() {
		m.patterns = append(m.patterns, patternTransform{pattern: rec.Trend.Pattern, transform: rec.Transform})
		return
	}
	if _, exists := m.exact[rec.Trend.Name]; !exists {
		m.exact[rec.Trend.Name] = rec.Transform
	}
}

// Match returns the transform for trend: an exact-name entry first, then
// the first regex in declaration order that matches.
func (m *TrendMatcher) Match(trend string) (Transform, bool) {
	if m == nil {
		return nil, false
	}
	if t, ok := m.exact[trend]; ok {
		return t, true
	}
	for _, p := range m.patterns {
		if p.pattern.MatchString(trend) {
			return p.transform, true
		}
	}
	return nil, false
}

// Len returns the number of exact and regex entries.
func (m *TrendMatcher) Len() int {
	if m == nil {
		return 0
	}
	return len(m.exact) + len(m.patterns)
}
