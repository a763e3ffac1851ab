package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

const siteCSV = "Time,Power [W],OAT (F)\n" +
	"2024-01-01 00:00,1000,50\n" +
	"2024-01-01 01:00,2000,51\n" +
	"2024-01-01 02:00,3000,52\n"

// run executes trendctl with an isolated config file and returns stdout.
func run(t *testing.T, cfgFile string, args ...string) (string, error) {
	t.Helper()
	var stdout bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&stdout)
	root.SetErr(io.Discard)
	root.SetArgs(append([]string{"--config", cfgFile}, args...))
	err := root.Execute()
	return stdout.String(), err
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func setup(t *testing.T) (cfgFile, csv string) {
	t.Helper()
	dir := t.TempDir()
	return filepath.Join(dir, "config.yaml"), writeFile(t, filepath.Join(dir, "site.csv"), siteCSV)
}

func TestTrends_Table(t *testing.T) {
	cfg, csv := setup(t)
	out, err := run(t, cfg, "trends", csv)
	if err != nil {
		t.Fatalf("trends failed: %v", err)
	}
	for _, want := range []string{"# site.csv (TimeSeries)", "TREND", "Power [W]", "kW", "OAT (F)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestTrends_JSONWithTrendConfig(t *testing.T) {
	cfg, csv := setup(t)
	confDir := filepath.Join(filepath.Dir(csv), "conf")
	writeFile(t, filepath.Join(confDir, "site.tcfg"), `type "csv" name "OAT (F)" rename "Outdoor air"`)
	writeFile(t, cfg, fmt.Sprintf("trend_config_dir: %s\n", confDir))

	out, err := run(t, cfg, "trends", csv, "-o", "json")
	if err != nil {
		t.Fatalf("trends failed: %v", err)
	}
	var rep struct {
		Kind   string `json:"kind"`
		Trends []struct {
			Name        string `json:"name"`
			DisplayName string `json:"displayName"`
		} `json:"trends"`
	}
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if rep.Kind != "TimeSeries" || len(rep.Trends) != 2 {
		t.Fatalf("unexpected report: %+v", rep)
	}
	if rep.Trends[1].DisplayName != "Outdoor air" {
		t.Errorf("display name = %q, want %q", rep.Trends[1].DisplayName, "Outdoor air")
	}
}

func TestSeries_Window(t *testing.T) {
	cfg, csv := setup(t)
	out, err := run(t, cfg, "series", csv, "Power [W]", "--start", "2024-01-01 01:00", "-o", "yaml")
	if err != nil {
		t.Fatalf("series failed: %v", err)
	}
	var views []struct {
		Trend  string    `yaml:"trend"`
		Values []float64 `yaml:"values"`
	}
	if err := yaml.Unmarshal([]byte(out), &views); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(views) != 1 || len(views[0].Values) != 2 || views[0].Values[0] != 2000 {
		t.Errorf("unexpected series: %+v", views)
	}

	if _, err := run(t, cfg, "series", csv, "Power [W]", "--end", "later"); err == nil {
		t.Error("expected an error for an invalid --end")
	}
}

func TestUnit(t *testing.T) {
	cfg, _ := setup(t)
	out, err := run(t, cfg, "unit", "Facility", "Power", "[W]", "-o", "json")
	if err != nil {
		t.Fatalf("unit failed: %v", err)
	}
	var rep unitReport
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rep.Trend != "Facility Power [W]" || rep.Unit != "W" || rep.Type != "power" {
		t.Errorf("unexpected report: %+v", rep)
	}
	if rep.Target != "kW" || rep.Ratio != "0.001" {
		t.Errorf("target/ratio = %q/%q, want kW/0.001", rep.Target, rep.Ratio)
	}
}

func TestConfigCheck(t *testing.T) {
	cfg, _ := setup(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.tcfg"), `type "csv" name "x" rename "y"`)
	writeFile(t, filepath.Join(dir, "b.tcfg"), `type "csv" re "([" rename "y"`)

	out, err := run(t, cfg, "config", "check", dir)
	if err == nil {
		t.Fatal("expected an error when a file is discarded")
	}
	if !strings.Contains(out, "a.tcfg") || !strings.Contains(out, "discarded") {
		t.Errorf("unexpected output:\n%s", out)
	}

	clean := t.TempDir()
	writeFile(t, filepath.Join(clean, "a.tcfg"), `type "csv" name "x" rename "y"`)
	if _, err := run(t, cfg, "config", "check", clean); err != nil {
		t.Errorf("clean directory reported error: %v", err)
	}
}

func TestConfigSetAndShow(t *testing.T) {
	cfg, _ := setup(t)

	if _, err := run(t, cfg, "config", "set", "retry_attempts", "2"); err != nil {
		t.Fatalf("config set failed: %v", err)
	}
	if _, err := run(t, cfg, "config", "set", "output", "xml"); err == nil {
		t.Error("expected an error for an invalid output format")
	}

	s, err := LoadSettings(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if s.RetryAttempts != 2 {
		t.Errorf("RetryAttempts = %d, want 2", s.RetryAttempts)
	}

	out, err := run(t, cfg, "config", "show")
	if err != nil {
		t.Fatalf("config show failed: %v", err)
	}
	if !strings.Contains(out, "retry_attempts: 2") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestImport(t *testing.T) {
	cfg, _ := setup(t)
	dir := t.TempDir()

	var b strings.Builder
	b.WriteString("Hour,Electricity [kWh]\n")
	for i := 0; i < 8760; i++ {
		fmt.Fprintf(&b, "%d,%d\n", i, i%24)
	}
	annual := writeFile(t, filepath.Join(dir, "annual.csv"), b.String())
	db := filepath.Join(dir, "model")

	out, err := run(t, cfg, "import", annual, db)
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if !strings.Contains(out, "Imported 1 trends") {
		t.Errorf("unexpected output: %s", out)
	}

	out, err = run(t, cfg, "trends", db, "-o", "json")
	if err != nil {
		t.Fatalf("trends on database failed: %v", err)
	}
	if !strings.Contains(out, `"kind": "EnergyModel"`) || !strings.Contains(out, "Electricity [kWh]") {
		t.Errorf("unexpected output:\n%s", out)
	}

	if _, err := run(t, cfg, "import", filepath.Join(filepath.Dir(cfg), "site.csv"), filepath.Join(dir, "other")); err == nil {
		t.Error("expected an error importing a non-annual file")
	}
}

func TestInvalidOutputFormat(t *testing.T) {
	cfg, csv := setup(t)
	if _, err := run(t, cfg, "trends", csv, "-o", "xml"); err == nil {
		t.Error("expected an error for -o xml")
	}
}
