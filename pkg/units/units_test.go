package units

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name   string
		want   string
		wantOK bool
	}{
		{"Trend name (kWh)", "kWh", true},
		{"a (b) [c]", "c", true},
		{"a (b (c))", "b (c)", true},
		{"no brackets here", "", false},
		{"Zone Air Temperature [C]", "C", true},
		{"a [b] (c)", "c", true},
		{"a (b [c] d)", "b [c] d", true},
		{"a {x}", "x", true},
		{"unclosed (kWh", "", false},
		{"stray ) closer", "", false},
		{"stray ) then (W)", "W", true},
		{"a ) (b) ]", "b", true},
		{"empty ()", "", true},
		{"Température (°C)", "°C", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Extract(tt.name)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "kWh", Label("Trend name (kWh)"))
	assert.Equal(t, NoUnitFound, Label("no brackets here"))
	assert.Equal(t, "no unit found", Label("no brackets here"))
}

func TestLoadCatalog(t *testing.T) {
	c, err := LoadCatalog(strings.NewReader("btu/hr;power;0.29307107\ntr;power;3516.8528\n"))
	require.NoError(t, err)

	group := c.Group("power")
	require.Len(t, group, 2)
	assert.True(t, group["btu/hr"].Factor.Equal(decimal.RequireFromString("0.29307107")))
	assert.True(t, group["tr"].Factor.Equal(decimal.RequireFromString("3516.8528")))
	assert.Equal(t, "power", group["tr"].Type.Name)
}

func TestLoadCatalog_SkipsMalformedLines(t *testing.T) {
	input := strings.Join([]string{
		"-- header comment",
		"bogus;unknownType;1.0",
		"kW;power;1000",
		"too;many;fields;here",
		"short;power",
		"nan;power;abc",
		"",
		"W;power;1",
	}, "\n")

	c, err := LoadCatalog(strings.NewReader(input))
	require.NoError(t, err)

	_, ok := c.Lookup("bogus")
	assert.False(t, ok)
	_, ok = c.Lookup("nan")
	assert.False(t, ok)
	assert.Len(t, c.Group("power"), 2)
	assert.Len(t, c.Types(), 1)
}

func TestLoadCatalog_LaterRecordOverwrites(t *testing.T) {
	c, err := LoadCatalog(strings.NewReader("x;power;1\nx;energy;2\n"))
	require.NoError(t, err)

	u, ok := c.Lookup("x")
	require.True(t, ok)
	assert.Equal(t, "energy", u.Type.Name)
	assert.Empty(t, c.Group("power"))
	assert.Len(t, c.Group("energy"), 1)
}

func TestLoadCatalog_IndependentInstances(t *testing.T) {
	a, err := LoadCatalog(strings.NewReader("u;power;1\n"))
	require.NoError(t, err)
	b, err := LoadCatalog(strings.NewReader("u;power;2\n"))
	require.NoError(t, err)

	ua, _ := a.Lookup("u")
	ub, _ := b.Lookup("u")
	assert.True(t, ua.Factor.Equal(decimal.NewFromInt(1)))
	assert.True(t, ub.Factor.Equal(decimal.NewFromInt(2)))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestLoadCatalog_ReadError(t *testing.T) {
	_, err := LoadCatalog(failingReader{})
	assert.Error(t, err)
}

func TestCatalog_Convert(t *testing.T) {
	c := DefaultCatalog()

	values := []float64{1, 2}
	require.NoError(t, c.Convert(values, "kWh", "kBtu"))
	assert.InDelta(t, 3.412141633, values[0], 1e-6)
	assert.InDelta(t, 6.824283266, values[1], 1e-6)

	r, err := c.Ratio("tr", "kW")
	require.NoError(t, err)
	assert.InDelta(t, 3.5168528, r.InexactFloat64(), 1e-9)
}

func TestCatalog_ConvertErrors(t *testing.T) {
	c := DefaultCatalog()

	err := c.Convert([]float64{1}, "kWh", "kW")
	assert.ErrorIs(t, err, ErrIncompatibleUnits)

	err = c.Convert([]float64{1}, "furlong", "kW")
	assert.ErrorIs(t, err, ErrUnknownUnit)
}

func TestCatalog_Convertible(t *testing.T) {
	c, err := LoadCatalog(strings.NewReader("a;power;1\nb;power;2\nc;energy;1\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, c.Convertible("a"))
	assert.Nil(t, c.Convertible("zzz"))
}

func TestLoadRules(t *testing.T) {
	input := strings.Join([]string{
		"-- comment",
		"^Electricity;kWh",
		"([;bad",
		"Gas;therm",
		"Electricity;MWh",
		"NoTarget;",
		"Steam;Heat;kWh",
		";kW",
	}, "\n")

	r, err := LoadRules(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 3, r.Len())

	got, ok := r.Resolve("Electricity:Facility [J]")
	require.True(t, ok)
	assert.Equal(t, "kWh", got, "first matching rule in load order wins")

	got, ok = r.Resolve("NaturalGas:Facility [J]")
	require.True(t, ok)
	assert.Equal(t, "therm", got)

	_, ok = r.Resolve("Zone Air Temperature [C]")
	assert.False(t, ok)

	_, ok = r.Resolve("Steam;Heat")
	assert.False(t, ok, "records with more than two fields are skipped")
}

func TestDefaultRules(t *testing.T) {
	r := DefaultRules()
	got, ok := r.Resolve("Electricity:Facility [J](Hourly)")
	require.True(t, ok)
	assert.Equal(t, "kWh", got)

	var nilRules *Rules
	_, ok = nilRules.Resolve("x")
	assert.False(t, ok)
}
