// Package config parses trendserver configuration from command-line flags,
// falling back to environment variables and then to defaults.
//
// Remote source settings are read from REMOTE_* variables. Adapter-specific
// keys are converted to camelCase (REMOTE_VALUE_PATH becomes valuePath) and
// REMOTE_TRENDS holds a JSON object mapping trend names to query expressions.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/HatiCode/trendlens/pkg/tls"
)

// Config holds all trendserver configuration.
type Config struct {
	Listen     string
	GRPCListen string
	LogFormat  string
	LogLevel   string
	TLS        tls.Config

	DataDir        string
	EnergyDBs      []string
	TrendConfigDir string
	UnitsFile      string
	RulesFile      string
	RetryAttempts  int
	RetryDelay     time.Duration

	Storage       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	Remote Remote
}

// Remote configures the optional time-series database source.
type Remote struct {
	Name     string
	Kind     string
	Lookback time.Duration
	Step     time.Duration
	TLS      tls.Config
	// Trends maps a trend name to its query expression.
	Trends map[string]string
	// Adapter holds the adapter settings from REMOTE_* variables.
	Adapter map[string]string
}

// Enabled reports whether a remote source is configured.
func (r Remote) Enabled() bool { return r.Kind != "" }

// remoteReserved lists REMOTE_* variables consumed by flags rather than
// passed to the adapter.
var remoteReserved = map[string]bool{
	"REMOTE_NAME":          true,
	"REMOTE_KIND":          true,
	"REMOTE_LOOKBACK":      true,
	"REMOTE_STEP":          true,
	"REMOTE_TRENDS":        true,
	"REMOTE_TLS_ENABLED":   true,
	"REMOTE_TLS_CERT_FILE": true,
	"REMOTE_TLS_KEY_FILE":  true,
	"REMOTE_TLS_CA_FILE":   true,
}

// ParseFlags parses command-line flags and environment variables into a
// Config. It exits the process on invalid configuration.
func ParseFlags() *Config {
	cfg := &Config{}
	var energyDBs, remoteTrends string

	flag.StringVar(&cfg.Listen, "listen", getEnv("LISTEN", ":8080"), "HTTP listen address")
	flag.StringVar(&cfg.GRPCListen, "grpc-listen", getEnv("GRPC_LISTEN", ":50051"), "gRPC health listen address (empty disables)")
	flag.StringVar(&cfg.LogFormat, "log-format", getEnv("LOG_FORMAT", "text"), "Log format: text or json")
	flag.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")

	flag.BoolVar(&cfg.TLS.Enabled, "tls-enabled", getEnvBool("TLS_ENABLED", false), "Enable mTLS for the HTTP server")
	flag.StringVar(&cfg.TLS.CertFile, "tls-cert-file", getEnv("TLS_CERT_FILE", ""), "TLS certificate file")
	flag.StringVar(&cfg.TLS.KeyFile, "tls-key-file", getEnv("TLS_KEY_FILE", ""), "TLS private key file")
	flag.StringVar(&cfg.TLS.CAFile, "tls-ca-file", getEnv("TLS_CA_FILE", ""), "TLS CA certificate file for client verification")

	flag.StringVar(&cfg.DataDir, "data-dir", getEnv("DATA_DIR", ""), "Directory scanned for delimited trend files")
	flag.StringVar(&energyDBs, "energy-dbs", getEnv("ENERGY_DBS", ""), "Comma-separated energy-model database directories")
	flag.StringVar(&cfg.TrendConfigDir, "trend-config-dir", getEnv("TREND_CONFIG_DIR", ""), "Directory of trend configuration files")
	flag.StringVar(&cfg.UnitsFile, "units-file", getEnv("UNITS_FILE", ""), "Unit table (default: built-in)")
	flag.StringVar(&cfg.RulesFile, "rules-file", getEnv("RULES_FILE", ""), "Unit conversion rules (default: built-in)")
	flag.IntVar(&cfg.RetryAttempts, "retry-attempts", getEnvInt("RETRY_ATTEMPTS", 5), "Read attempts per source load")
	flag.DurationVar(&cfg.RetryDelay, "retry-delay", getEnvDuration("RETRY_DELAY", 100*time.Millisecond), "Delay between read attempts")

	flag.StringVar(&cfg.Storage, "storage", getEnv("STORAGE", "memory"), "Remote series cache: memory or redis")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", getEnv("REDIS_ADDR", "localhost:6379"), "Redis server address")
	flag.StringVar(&cfg.RedisPassword, "redis-password", getEnv("REDIS_PASSWORD", ""), "Redis password")
	flag.IntVar(&cfg.RedisDB, "redis-db", getEnvInt("REDIS_DB", 0), "Redis database number")
	flag.DurationVar(&cfg.CacheTTL, "cache-ttl", getEnvDuration("CACHE_TTL", 5*time.Minute), "Remote series cache TTL")

	flag.StringVar(&cfg.Remote.Name, "remote-name", getEnv("REMOTE_NAME", "remote"), "Remote source name")
	flag.StringVar(&cfg.Remote.Kind, "remote-kind", getEnv("REMOTE_KIND", ""), "Remote adapter: prometheus, victoriametrics or http (empty disables)")
	flag.DurationVar(&cfg.Remote.Lookback, "remote-lookback", getEnvDuration("REMOTE_LOOKBACK", 24*time.Hour), "Range of unwindowed remote fetches")
	flag.DurationVar(&cfg.Remote.Step, "remote-step", getEnvDuration("REMOTE_STEP", time.Minute), "Remote query resolution")
	flag.StringVar(&remoteTrends, "remote-trends", getEnv("REMOTE_TRENDS", ""), "JSON object of trend name to query expression")
	flag.BoolVar(&cfg.Remote.TLS.Enabled, "remote-tls-enabled", getEnvBool("REMOTE_TLS_ENABLED", false), "Use mTLS towards the remote backend")
	flag.StringVar(&cfg.Remote.TLS.CertFile, "remote-tls-cert-file", getEnv("REMOTE_TLS_CERT_FILE", ""), "Remote client certificate file")
	flag.StringVar(&cfg.Remote.TLS.KeyFile, "remote-tls-key-file", getEnv("REMOTE_TLS_KEY_FILE", ""), "Remote client private key file")
	flag.StringVar(&cfg.Remote.TLS.CAFile, "remote-tls-ca-file", getEnv("REMOTE_TLS_CA_FILE", ""), "Remote CA certificate file")

	flag.Parse()

	cfg.EnergyDBs = splitList(energyDBs)
	cfg.Remote.Adapter = parseRemoteConfig(os.Environ())

	var err error
	if cfg.Remote.Trends, err = parseTrends(remoteTrends); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	return cfg
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.DataDir == "" && len(c.EnergyDBs) == 0 && !c.Remote.Enabled() {
		return errors.New("at least one of --data-dir, --energy-dbs or --remote-kind is required")
	}
	if c.Storage != "memory" && c.Storage != "redis" {
		return fmt.Errorf("invalid storage %q (must be memory or redis)", c.Storage)
	}
	if c.RetryAttempts < 1 {
		return fmt.Errorf("retry attempts must be >= 1, got %d", c.RetryAttempts)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("retry delay cannot be negative")
	}
	if c.Remote.Enabled() {
		if len(c.Remote.Trends) == 0 {
			return errors.New("remote source needs at least one trend in --remote-trends")
		}
		if c.Remote.Step <= 0 || c.Remote.Lookback <= 0 {
			return errors.New("remote step and lookback must be > 0")
		}
		if c.Remote.Step > c.Remote.Lookback {
			return fmt.Errorf("remote step (%v) cannot exceed lookback (%v)", c.Remote.Step, c.Remote.Lookback)
		}
	}
	if err := c.TLS.Validate(); err != nil {
		return fmt.Errorf("server tls: %w", err)
	}
	if err := c.Remote.TLS.Validate(); err != nil {
		return fmt.Errorf("remote tls: %w", err)
	}
	return nil
}

func parseTrends(raw string) (map[string]string, error) {
	if raw == "" {
		return nil, nil
	}
	var out map[string]string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("invalid REMOTE_TRENDS: %w", err)
	}
	return out, nil
}

// parseRemoteConfig collects REMOTE_* variables not consumed by flags into
// an adapter settings map with camelCase keys.
func parseRemoteConfig(environ []string) map[string]string {
	out := make(map[string]string)
	for _, env := range environ {
		key, value, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(key, "REMOTE_") || remoteReserved[key] {
			continue
		}
		if name := toLowerCamelCase(strings.TrimPrefix(key, "REMOTE_")); name != "" {
			out[name] = value
		}
	}
	return out
}

func toLowerCamelCase(s string) string {
	var b strings.Builder
	for i, part := range strings.Split(strings.ToLower(s), "_") {
		if part == "" {
			continue
		}
		if i > 0 && b.Len() > 0 {
			part = strings.ToUpper(part[:1]) + part[1:]
		}
		b.WriteString(part)
	}
	return b.String()
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}
