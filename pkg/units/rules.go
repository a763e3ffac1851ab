package units

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

// ConversionRule maps trend names matching Pattern to the Target unit.
type ConversionRule struct {
	Pattern *regexp.Regexp
	Target  string
}

// Rules is an ordered list of conversion rules; the first match wins.
type Rules struct {
	rules []ConversionRule
}

// LoadRules reads regex;targetUnit records from r. Comment lines, records
// without exactly two fields, empty targets and patterns that fail to
// compile are skipped.
func LoadRules(r io.Reader) (*Rules, error) {
	rs := &Rules{}
	err := scanRecords(r, func(line string) {
		fields := strings.Split(line, ";")
		if len(fields) != 2 {
			return
		}
		pattern, target := strings.TrimSpace(fields[0]), strings.TrimSpace(fields[1])
		if pattern == "" || target == "" {
			return
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return
		}
		rs.rules = append(rs.rules, ConversionRule{Pattern: re, Target: target})
	})
	if err != nil {
		return nil, fmt.Errorf("read conversion rules: %w", err)
	}
	return rs, nil
}

// LoadRulesFile loads conversion rules from path.
func LoadRulesFile(path string) (*Rules, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open conversion rules: %w", err)
	}
	defer f.Close()
	return LoadRules(f)
}

// DefaultRules returns the built-in conversion rules.
func DefaultRules() *Rules {
	f, err := defaults.Open("defaults/rules.txt")
	if err != nil {
		panic(fmt.Sprintf("embedded conversion rules: %v", err))
	}
	defer f.Close()
	rs, err := LoadRules(f)
	if err != nil {
		panic(fmt.Sprintf("embedded conversion rules: %v", err))
	}
	return rs
}

// Resolve returns the target unit of the first rule matching trend.
func (r *Rules) Resolve(trend string) (string, bool) {
	if r == nil {
		return "", false
	}
	for _, rule := range r.rules {
		if rule.Pattern.MatchString(trend) {
			return rule.Target, true
		}
	}
	return "", false
}

// Len returns the number of loaded rules.
func (r *Rules) Len() int {
	if r == nil {
		return 0
	}
	return len(r.rules)
}
