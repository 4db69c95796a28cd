package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	ConfigName = ".agentdex"
	EnvPrefix  = "AGENTDEX"

	DefaultBaseURL         = "https://agentdex.solana-clawd.dev"
	DefaultSlippageBps     = 50
	DefaultTimeout         = 30 * time.Second
	DefaultLogLevel        = "warn"
	DefaultLogFormat       = "console"
	DefaultQuoteToken      = "USDC"
	DefaultQuoteDecimals   = 6
	DefaultPlanStorageFile = "~/.agentdex-plans.json"
)

// Config holds the application configuration
type Config struct {
	APIKey             string
	BaseURL            string
	DefaultSlippageBps int
	Wallet             string
	Timeout            time.Duration
	MaxRetries         int
	LogLevel           string
	LogFormat          string
	PlanStoragePath    string
	MetricsAddr        string
	Rebalance          RebalanceConfig
}

// RebalanceConfig holds the settings of rebalance passes
type RebalanceConfig struct {
	QuoteToken    string
	QuoteDecimals int32
}

// Keys lists the settings that can be written with `config set`
var Keys = []string{
	"api_key",
	"base_url",
	"default_slippage_bps",
	"wallet",
	"timeout",
	"retry.max_retries",
	"log_level",
	"log_format",
	"plan_storage_path",
	"metrics_addr",
	"rebalance.quote_token",
	"rebalance.quote_decimals",
}

var globalConfig *Config

func setDefaults(v *viper.Viper) {
	v.SetDefault("base_url", DefaultBaseURL)
	v.SetDefault("default_slippage_bps", DefaultSlippageBps)
	v.SetDefault("timeout", DefaultTimeout)
	v.SetDefault("retry.max_retries", 0)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("log_format", DefaultLogFormat)
	v.SetDefault("plan_storage_path", DefaultPlanStorageFile)
	v.SetDefault("rebalance.quote_token", DefaultQuoteToken)
	v.SetDefault("rebalance.quote_decimals", DefaultQuoteDecimals)
}

// Load reads configuration from the global viper instance, which the CLI
// binds its flags to. Flags win over AGENTDEX_* environment variables,
// which win over the config file and then the defaults.
func Load(configFile string) (*Config, error) {
	cfg, err := LoadFrom(viper.GetViper(), configFile)
	if err != nil {
		return nil, err
	}
	Set(cfg)
	return cfg, nil
}

// LoadFrom reads configuration from v. An empty configFile searches for
// .agentdex.yaml in $HOME and the working directory.
func LoadFrom(v *viper.Viper, configFile string) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("base_url", EnvPrefix+"_API_URL", EnvPrefix+"_BASE_URL"); err != nil {
		return nil, err
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME")
		v.AddConfigPath(".")

		// Config file is optional
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	return fromViper(v)
}

// fromViper builds and validates a Config from the settings in v
func fromViper(v *viper.Viper) (*Config, error) {
	storagePath, err := expandHome(v.GetString("plan_storage_path"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		APIKey:             v.GetString("api_key"),
		BaseURL:            strings.TrimRight(v.GetString("base_url"), "/"),
		DefaultSlippageBps: v.GetInt("default_slippage_bps"),
		Wallet:             v.GetString("wallet"),
		Timeout:            v.GetDuration("timeout"),
		MaxRetries:         v.GetInt("retry.max_retries"),
		LogLevel:           v.GetString("log_level"),
		LogFormat:          v.GetString("log_format"),
		PlanStoragePath:    storagePath,
		MetricsAddr:        v.GetString("metrics_addr"),
		Rebalance: RebalanceConfig{
			QuoteToken:    strings.ToUpper(v.GetString("rebalance.quote_token")),
			QuoteDecimals: v.GetInt32("rebalance.quote_decimals"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration for values the client cannot work with
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid base_url %q: must be an http(s) URL", c.BaseURL)
	}
	if c.DefaultSlippageBps < 0 || c.DefaultSlippageBps > 10000 {
		return fmt.Errorf("default_slippage_bps must be between 0 and 10000, got %d", c.DefaultSlippageBps)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries cannot be negative")
	}
	if c.LogFormat != "console" && c.LogFormat != "json" {
		return fmt.Errorf("log_format must be 'console' or 'json', got %q", c.LogFormat)
	}
	if c.Rebalance.QuoteToken == "" {
		return fmt.Errorf("rebalance.quote_token is required")
	}
	if c.Rebalance.QuoteDecimals < 0 || c.Rebalance.QuoteDecimals > 18 {
		return fmt.Errorf("rebalance.quote_decimals must be between 0 and 18")
	}
	return nil
}

// DefaultConfigPath returns ~/.agentdex.yaml
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ConfigName+".yaml"), nil
}

// SetValue writes one key to the config file at path, keeping the other
// keys already stored there. Environment and flag values are not written.
func SetValue(path, key, value string) error {
	if !IsKnownKey(key) {
		return fmt.Errorf("unknown config key %q (known keys: %s)", key, strings.Join(Keys, ", "))
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	v.Set(key, value)

	check := viper.New()
	setDefaults(check)
	for _, k := range v.AllKeys() {
		check.Set(k, v.Get(k))
	}
	if _, err := fromViper(check); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// IsKnownKey reports whether key is a recognised setting
func IsKnownKey(key string) bool {
	for _, k := range Keys {
		if k == key {
			return true
		}
	}
	return false
}

// Settings returns the effective settings with the API key masked
func (c *Config) Settings() map[string]string {
	settings := map[string]string{
		"api_key":                  maskSecret(c.APIKey),
		"base_url":                 c.BaseURL,
		"default_slippage_bps":     fmt.Sprint(c.DefaultSlippageBps),
		"wallet":                   c.Wallet,
		"timeout":                  c.Timeout.String(),
		"retry.max_retries":        fmt.Sprint(c.MaxRetries),
		"log_level":                c.LogLevel,
		"log_format":               c.LogFormat,
		"plan_storage_path":        c.PlanStoragePath,
		"metrics_addr":             c.MetricsAddr,
		"rebalance.quote_token":    c.Rebalance.QuoteToken,
		"rebalance.quote_decimals": fmt.Sprint(c.Rebalance.QuoteDecimals),
	}
	return settings
}

// SortedKeys returns the keys of settings in order
func SortedKeys(settings map[string]string) []string {
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the global configuration
func Get() *Config {
	return globalConfig
}

// Set updates the global configuration
func Set(cfg *Config) {
	globalConfig = cfg
}

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
