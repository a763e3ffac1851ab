package config

import (
	"flag"
	"os"
	"reflect"
	"testing"
	"time"
)

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_STR", "from-env")
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_BAD_INT", "not-a-number")
	t.Setenv("TEST_DUR", "90s")
	t.Setenv("TEST_BOOL", "1")

	if got := getEnv("TEST_STR", "default"); got != "from-env" {
		t.Errorf("getEnv() = %q, want %q", got, "from-env")
	}
	if got := getEnv("NONEXISTENT_VAR", "default"); got != "default" {
		t.Errorf("getEnv() = %q, want %q", got, "default")
	}
	if got := getEnvInt("TEST_INT", 10); got != 42 {
		t.Errorf("getEnvInt() = %d, want 42", got)
	}
	if got := getEnvInt("TEST_BAD_INT", 10); got != 10 {
		t.Errorf("getEnvInt() = %d, want 10", got)
	}
	if got := getEnvDuration("TEST_DUR", time.Second); got != 90*time.Second {
		t.Errorf("getEnvDuration() = %v, want 90s", got)
	}
	if got := getEnvBool("TEST_BOOL", false); !got {
		t.Errorf("getEnvBool() = %v, want true", got)
	}
}

func TestToLowerCamelCase(t *testing.T) {
	tests := map[string]string{
		"URL":              "url",
		"VALUE_PATH":       "valuePath",
		"TIMESTAMP_FORMAT": "timestampFormat",
		"TEMPLATE_VARS":    "templateVars",
		"":                 "",
	}
	for in, want := range tests {
		if got := toLowerCamelCase(in); got != want {
			t.Errorf("toLowerCamelCase(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseRemoteConfig(t *testing.T) {
	got := parseRemoteConfig([]string{
		"REMOTE_URL=http://vm:8428",
		"REMOTE_VALUE_PATH=data.#.v",
		"REMOTE_KIND=http",
		"REMOTE_TRENDS={}",
		"REMOTE_TLS_ENABLED=true",
		"HOME=/root",
		"REMOTE_BODY=a=b",
	})
	want := map[string]string{
		"url":       "http://vm:8428",
		"valuePath": "data.#.v",
		"body":      "a=b",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("parseRemoteConfig() = %v, want %v", got, want)
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" /a, ,/b ,")
	want := []string{"/a", "/b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("splitList() = %v, want %v", got, want)
	}
	if splitList("") != nil {
		t.Error("splitList(\"\") should be nil")
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{DataDir: "/data", Storage: "memory", RetryAttempts: 5, RetryDelay: 100 * time.Millisecond}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}, wantErr: false},
		{name: "no sources", mutate: func(c *Config) { c.DataDir = "" }, wantErr: true},
		{name: "bad storage", mutate: func(c *Config) { c.Storage = "disk" }, wantErr: true},
		{name: "zero attempts", mutate: func(c *Config) { c.RetryAttempts = 0 }, wantErr: true},
		{name: "remote without trends", mutate: func(c *Config) {
			c.Remote = Remote{Kind: "prometheus", Lookback: time.Hour, Step: time.Minute}
		}, wantErr: true},
		{name: "remote step exceeds lookback", mutate: func(c *Config) {
			c.Remote = Remote{Kind: "prometheus", Lookback: time.Minute, Step: time.Hour, Trends: map[string]string{"a": "b"}}
		}, wantErr: true},
		{name: "remote only", mutate: func(c *Config) {
			c.DataDir = ""
			c.Remote = Remote{Kind: "prometheus", Lookback: time.Hour, Step: time.Minute, Trends: map[string]string{"a": "b"}}
		}, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Defaults(t *testing.T) {
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	os.Args = []string{"cmd", "-data-dir=/data"}

	cfg := ParseFlags()

	if cfg.Listen != ":8080" {
		t.Errorf("Listen = %q, want %q", cfg.Listen, ":8080")
	}
	if cfg.GRPCListen != ":50051" {
		t.Errorf("GRPCListen = %q, want %q", cfg.GRPCListen, ":50051")
	}
	if cfg.RetryAttempts != 5 {
		t.Errorf("RetryAttempts = %d, want 5", cfg.RetryAttempts)
	}
	if cfg.RetryDelay != 100*time.Millisecond {
		t.Errorf("RetryDelay = %v, want 100ms", cfg.RetryDelay)
	}
	if cfg.Storage != "memory" {
		t.Errorf("Storage = %q, want memory", cfg.Storage)
	}
	if cfg.Remote.Enabled() {
		t.Error("remote source should be disabled by default")
	}
	if cfg.LogFormat != "text" || cfg.LogLevel != "info" {
		t.Errorf("log = %q/%q, want text/info", cfg.LogFormat, cfg.LogLevel)
	}
}

func TestConfig_CustomValues(t *testing.T) {
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	t.Setenv("REMOTE_TRENDS", `{"OAT [C]":"outdoor_temp"}`)
	t.Setenv("REMOTE_URL", "http://prom:9090")
	os.Args = []string{
		"cmd",
		"-listen=:9000",
		"-energy-dbs=/db/a,/db/b",
		"-remote-kind=prometheus",
		"-remote-step=5m",
		"-storage=redis",
		"-log-format=json",
	}

	cfg := ParseFlags()

	if cfg.Listen != ":9000" {
		t.Errorf("Listen = %q, want %q", cfg.Listen, ":9000")
	}
	if !reflect.DeepEqual(cfg.EnergyDBs, []string{"/db/a", "/db/b"}) {
		t.Errorf("EnergyDBs = %v", cfg.EnergyDBs)
	}
	if cfg.Remote.Step != 5*time.Minute {
		t.Errorf("Remote.Step = %v, want 5m", cfg.Remote.Step)
	}
	if cfg.Remote.Trends["OAT [C]"] != "outdoor_temp" {
		t.Errorf("Remote.Trends = %v", cfg.Remote.Trends)
	}
	if cfg.Remote.Adapter["url"] != "http://prom:9090" {
		t.Errorf("Remote.Adapter = %v", cfg.Remote.Adapter)
	}
	if cfg.Storage != "redis" || cfg.LogFormat != "json" {
		t.Errorf("Storage/LogFormat = %q/%q", cfg.Storage, cfg.LogFormat)
	}
}
