package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Settings is the persisted trendctl configuration.
type Settings struct {
	UnitsFile      string `mapstructure:"units_file" yaml:"units_file"`
	RulesFile      string `mapstructure:"rules_file" yaml:"rules_file"`
	TrendConfigDir string `mapstructure:"trend_config_dir" yaml:"trend_config_dir"`
	RetryAttempts  int    `mapstructure:"retry_attempts" yaml:"retry_attempts"`
	RetryDelayMs   int    `mapstructure:"retry_delay_ms" yaml:"retry_delay_ms"`
	Output         string `mapstructure:"output" yaml:"output"`
	LogLevel       string `mapstructure:"log_level" yaml:"log_level"`
}

func defaultSettingsPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".trendlens", "config.yaml"), nil
}

// LoadSettings reads defaults, then the config file, then TRENDLENS_*
// environment variables. A missing config file is not an error.
func LoadSettings(cfgFile string) (*Settings, error) {
	v := viper.New()
	v.SetEnvPrefix("TRENDLENS")
	v.AutomaticEnv()

	v.SetDefault("units_file", "")
	v.SetDefault("rules_file", "")
	v.SetDefault("trend_config_dir", "")
	v.SetDefault("retry_attempts", 5)
	v.SetDefault("retry_delay_ms", 100)
	v.SetDefault("output", "table")
	v.SetDefault("log_level", "warn")

	if cfgFile == "" {
		path, err := defaultSettingsPath()
		if err != nil {
			return nil, err
		}
		cfgFile = path
	}
	v.SetConfigFile(cfgFile)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &s, nil
}

// SaveSettings writes s as YAML to cfgFile, or ~/.trendlens/config.yaml.
func SaveSettings(s *Settings, cfgFile string) error {
	path := cfgFile
	if path == "" {
		var err error
		if path, err = defaultSettingsPath(); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}
	b, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Set assigns one setting by its YAML key.
func (s *Settings) Set(key, val string) error {
	switch key {
	case "units_file":
		s.UnitsFile = val
	case "rules_file":
		s.RulesFile = val
	case "trend_config_dir":
		s.TrendConfigDir = val
	case "retry_attempts":
		i, err := strconv.Atoi(val)
		if err != nil || i < 1 {
			return fmt.Errorf("invalid retry_attempts: %q (want an integer >= 1)", val)
		}
		s.RetryAttempts = i
	case "retry_delay_ms":
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 {
			return fmt.Errorf("invalid retry_delay_ms: %q (want an integer >= 0)", val)
		}
		s.RetryDelayMs = i
	case "output":
		if !validOutput(val) {
			return fmt.Errorf("invalid output: %q (use table, json or yaml)", val)
		}
		s.Output = val
	case "log_level":
		s.LogLevel = val
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return nil
}
