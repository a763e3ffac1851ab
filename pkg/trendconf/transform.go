package trendconf

import (
	"fmt"
	"regexp"

	"github.com/HatiCode/trendlens/pkg/series"
	"github.com/HatiCode/trendlens/pkg/units"
)

// TransformKind tags the Transform variants.
type TransformKind int

const (
	KindUnitConvert TransformKind = iota + 1
	KindRename
	KindFindReplace
)

func (k TransformKind) String() string {
	switch k {
	case KindUnitConvert:
		return "convert"
	case KindRename:
		return "rename"
	case KindFindReplace:
		return "replace"
	default:
		return "unknown"
	}
}

// Transform is an action attached to a matched trend.
type Transform interface {
	Kind() TransformKind
	String() string
}

// UnitConvert rescales values from one catalog unit to another.
type UnitConvert struct {
	From string
	To   string
}

func (UnitConvert) Kind() TransformKind { return KindUnitConvert }
func (t UnitConvert) String() string    { return fmt.Sprintf("convert %q %q", t.From, t.To) }

// Rename replaces the display name.
type Rename struct {
	NewName string
}

func (Rename) Kind() TransformKind { return KindRename }
func (t Rename) String() string    { return fmt.Sprintf("rename %q", t.NewName) }

// FindReplace rewrites the display name with a regex substitution.
// Replace may reference capture groups ($1, ${name}).
type FindReplace struct {
	Find    *regexp.Regexp
	Replace string
}

func (FindReplace) Kind() TransformKind { return KindFindReplace }
func (t FindReplace) String() string {
	return fmt.Sprintf("replace %q %q", t.Find.String(), t.Replace)
}

// DisplayName applies t to a trend name. Transforms that do not touch the
// name return it unchanged.
func DisplayName(t Transform, name string) string {
	switch tt := t.(type) {
	case Rename:
		return tt.NewName
	case FindReplace:
		return tt.Find.ReplaceAllString(name, tt.Replace)
	default:
		return name
	}
}

// ApplySeries applies a UnitConvert transform to s in place, multiplying
// every value by factor(From)/factor(To). Other transforms are no-ops.
func ApplySeries(t Transform, s *series.TimestampSeries, catalog *units.Catalog) error {
	uc, ok := t.(UnitConvert)
	if !ok {
		return nil
	}
	if catalog == nil {
		return fmt.Errorf("convert %s to %s: no unit catalog", uc.From, uc.To)
	}
	return catalog.Convert(s.Values, uc.From, uc.To)
}
