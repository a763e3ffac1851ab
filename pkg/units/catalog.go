// Package units groups trend values by physical quantity.
//
// It provides three pieces that work independently of any source:
//   - Extract/Label guess a unit from a free-form trend name
//   - Catalog loads named units grouped by UnitType and converts between them
//   - Rules map trend names to a preferred target unit
//
// Unit tables are plain text, one record per line:
//
//	-- comment
//	kWh;energy;3600000
//
// Conversion rule tables use regex;targetUnit records with the same comment syntax.
package units

import (
	"bufio"
	"embed"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

//go:embed defaults/*.txt
var defaults embed.FS

var (
	// ErrUnknownUnit is returned when a unit name is not in the catalog.
	ErrUnknownUnit = errors.New("unknown unit")
	// ErrIncompatibleUnits is returned when converting between unit types.
	ErrIncompatibleUnits = errors.New("incompatible unit types")
)

// UnitType is a physical quantity. Identity is by ID.
type UnitType struct {
	Name string
	ID   int
}

// KnownTypes lists the quantities a unit table may reference.
var KnownTypes = []UnitType{
	{Name: "energy", ID: 1},
	{Name: "power", ID: 2},
	{Name: "temperature", ID: 3},
	{Name: "temperature difference", ID: 4},
	{Name: "volume", ID: 5},
	{Name: "volume flow", ID: 6},
	{Name: "mass", ID: 7},
	{Name: "mass flow", ID: 8},
	{Name: "pressure", ID: 9},
	{Name: "length", ID: 10},
	{Name: "area", ID: 11},
	{Name: "velocity", ID: 12},
	{Name: "time", ID: 13},
	{Name: "fraction", ID: 14},
	{Name: "irradiance", ID: 15},
}

func typeByName(name string) (UnitType, bool) {
	for _, t := range KnownTypes {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return UnitType{}, false
}

// Unit is a named unit with a multiplicative factor relative to its type's base unit.
type Unit struct {
	Name   string
	Type   UnitType
	Factor decimal.Decimal
}

// Catalog holds units grouped by type plus a by-name index.
// A Catalog is immutable after loading and safe for concurrent readers.
type Catalog struct {
	byType map[UnitType]map[string]Unit
	byName map[string]Unit
}

// LoadCatalog reads name;typeName;factor records from r. Comment lines
// ("--"), lines without exactly three fields, unknown type names and
// non-numeric factors are skipped. Only a read failure returns an error.
// A later record with an already-seen name replaces the earlier one.
func LoadCatalog(r io.Reader) (*Catalog, error) {
	c := &Catalog{
		byType: make(map[UnitType]map[string]Unit),
		byName: make(map[string]Unit),
	}
	err := scanRecords(r, func(line string) {
		fields := strings.Split(line, ";")
		if len(fields) != 3 {
			return
		}
		name := strings.TrimSpace(fields[0])
		typ, ok := typeByName(strings.TrimSpace(fields[1]))
		if name == "" || !ok {
			return
		}
		factor, err := decimal.NewFromString(strings.TrimSpace(fields[2]))
		if err != nil {
			return
		}
		c.add(Unit{Name: name, Type: typ, Factor: factor})
	})
	if err != nil {
		return nil, fmt.Errorf("read unit table: %w", err)
	}
	return c, nil
}

// LoadCatalogFile loads a unit table from path.
func LoadCatalogFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open unit table: %w", err)
	}
	defer f.Close()
	return LoadCatalog(f)
}

// DefaultCatalog returns the built-in unit table.
func DefaultCatalog() *Catalog {
	f, err := defaults.Open("defaults/units.txt")
	if err != nil {
		panic(fmt.Sprintf("embedded unit table: %v", err))
	}
	defer f.Close()
	c, err := LoadCatalog(f)
	if err != nil {
		panic(fmt.Sprintf("embedded unit table: %v", err))
	}
	return c
}

func (c *Catalog) add(u Unit) {
	if prev, ok := c.byName[u.Name]; ok && prev.Type != u.Type {
		delete(c.byType[prev.Type], u.Name)
	}
	group := c.byType[u.Type]
	if group == nil {
		group = make(map[string]Unit)
		c.byType[u.Type] = group
	}
	group[u.Name] = u
	c.byName[u.Name] = u
}

// Lookup returns the unit registered under name.
func (c *Catalog) Lookup(name string) (Unit, bool) {
	u, ok := c.byName[name]
	return u, ok
}

// Group returns the units of the named type keyed by unit name.
// The returned map must not be modified.
func (c *Catalog) Group(typeName string) map[string]Unit {
	typ, ok := typeByName(typeName)
	if !ok {
		return nil
	}
	return c.byType[typ]
}

// Types returns the unit types that have at least one unit, ordered by ID.
func (c *Catalog) Types() []UnitType {
	out := make([]UnitType, 0, len(c.byType))
	for t, g := range c.byType {
		if len(g) > 0 {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Convertible returns the other units of the same type as name, sorted.
func (c *Catalog) Convertible(name string) []string {
	u, ok := c.byName[name]
	if !ok {
		return nil
	}
	var out []string
	for n := range c.byType[u.Type] {
		if n != name {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

// Ratio returns factor(from)/factor(to), the multiplier that converts a
// value in from into to.
func (c *Catalog) Ratio(from, to string) (decimal.Decimal, error) {
	f, ok := c.byName[from]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrUnknownUnit, from)
	}
	t, ok := c.byName[to]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrUnknownUnit, to)
	}
	if f.Type != t.Type {
		return decimal.Zero, fmt.Errorf("%w: %s is %s, %s is %s", ErrIncompatibleUnits, from, f.Type.Name, to, t.Type.Name)
	}
	if t.Factor.IsZero() {
		return decimal.Zero, fmt.Errorf("unit %q has zero factor", to)
	}
	return f.Factor.DivRound(t.Factor, 16), nil
}

// Convert scales values in place from one unit to another.
func (c *Catalog) Convert(values []float64, from, to string) error {
	r, err := c.Ratio(from, to)
	if err != nil {
		return err
	}
	k := r.InexactFloat64()
	for i := range values {
		values[i] *= k
	}
	return nil
}

// scanRecords calls fn for each non-blank, non-comment line of r, trimmed.
func scanRecords(r io.Reader, fn func(line string)) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		fn(line)
	}
	return sc.Err()
}
