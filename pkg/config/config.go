package config

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Extraction strategies
const (
	StrategyAuto    = "auto"
	StrategyPattern = "pattern"
	StrategyModel   = "model"
)

// ProviderEnv maps provider names to the environment variable holding their key
var ProviderEnv = map[string]string{
	"gemini":    "GEMINI_API_KEY",
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
}

// ProviderNames returns the known provider names in sorted order
func ProviderNames() []string {
	names := make([]string, 0, len(ProviderEnv))
	for name := range ProviderEnv {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type ProviderConfig struct {
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
}

// ExtractionConfig selects and tunes the covenant extraction strategy
type ExtractionConfig struct {
	Strategy     string        `yaml:"strategy" mapstructure:"strategy"`
	RulesDir     string        `yaml:"rules_dir,omitempty" mapstructure:"rules_dir"`
	DemoFallback bool          `yaml:"demo_fallback" mapstructure:"demo_fallback"`
	MaxChars     int           `yaml:"max_chars" mapstructure:"max_chars"`
	Attempts     int           `yaml:"attempts" mapstructure:"attempts"`
	RetryDelay   time.Duration `yaml:"retry_delay" mapstructure:"retry_delay"`
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

type RatiosConfig struct {
	DemoFallback bool `yaml:"demo_fallback" mapstructure:"demo_fallback"`
}

// CacheConfig configures the extraction result cache (none, memory or redis)
type CacheConfig struct {
	Backend  string        `yaml:"backend" mapstructure:"backend"`
	Addr     string        `yaml:"addr,omitempty" mapstructure:"addr"`
	Password string        `yaml:"password,omitempty" mapstructure:"password"`
	DB       int           `yaml:"db" mapstructure:"db"`
	TTL      time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// StoreConfig configures covenant and report persistence (memory or sqlite)
type StoreConfig struct {
	Backend string `yaml:"backend" mapstructure:"backend"`
	Path    string `yaml:"path,omitempty" mapstructure:"path"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
	Dir   string `yaml:"dir,omitempty" mapstructure:"dir"`
}

type Config struct {
	SelectedProvider string                    `yaml:"selected_provider" mapstructure:"selected_provider"`
	SelectedModel    string                    `yaml:"selected_model" mapstructure:"selected_model"`
	Providers        map[string]ProviderConfig `yaml:"providers" mapstructure:"providers"`
	Extraction       ExtractionConfig          `yaml:"extraction" mapstructure:"extraction"`
	Ratios           RatiosConfig              `yaml:"ratios" mapstructure:"ratios"`
	Cache            CacheConfig               `yaml:"cache" mapstructure:"cache"`
	Store            StoreConfig               `yaml:"store" mapstructure:"store"`
	Server           ServerConfig              `yaml:"server" mapstructure:"server"`
	Log              LogConfig                 `yaml:"log" mapstructure:"log"`
	BatchConcurrency int                       `yaml:"batch_concurrency" mapstructure:"batch_concurrency"`
}

func GetConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	configDir := filepath.Join(home, ".credit-sentinel")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.yaml"), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("selected_provider", "gemini")
	v.SetDefault("selected_model", "gemini-1.5-flash")
	v.SetDefault("extraction.strategy", StrategyAuto)
	v.SetDefault("extraction.demo_fallback", false)
	v.SetDefault("extraction.max_chars", 8000)
	v.SetDefault("extraction.attempts", 3)
	v.SetDefault("extraction.retry_delay", "2s")
	v.SetDefault("extraction.timeout", "60s")
	v.SetDefault("ratios.demo_fallback", false)
	v.SetDefault("cache.backend", "none")
	v.SetDefault("cache.addr", "localhost:6379")
	v.SetDefault("cache.ttl", "24h")
	v.SetDefault("store.backend", "memory")
	v.SetDefault("store.path", "credit-sentinel.db")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("batch_concurrency", 4)
}

// LoadConfig reads the config file at path (or the default location when
// path is empty), then applies SENTINEL_* environment overrides and the
// provider key variables. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path == "" {
		p, err := GetConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("SENTINEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for provider, env := range ProviderEnv {
		_ = v.BindEnv("providers."+provider+".api_key", env)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig)
	}
	return &cfg, nil
}

// SaveConfig writes cfg as YAML to path, or to the default location when
// path is empty.
func SaveConfig(cfg *Config, path string) error {
	if path == "" {
		p, err := GetConfigPath()
		if err != nil {
			return err
		}
		path = p
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// 0600 permissions for security (api keys)
	return os.WriteFile(path, data, 0600)
}

func (c *Config) SetAPIKey(provider, key string) {
	if c.Providers == nil {
		c.Providers = make(map[string]ProviderConfig)
	}
	p := c.Providers[provider]
	p.APIKey = key
	c.Providers[provider] = p
}

func (c *Config) GetAPIKey(provider string) string {
	return c.Providers[provider].APIKey
}

// ExtractionStrategy resolves "auto" (or an empty value) to the model
// strategy when the selected provider has an API key, and to the pattern
// strategy otherwise. Any other value is returned unchanged.
func (c *Config) ExtractionStrategy() string {
	if c.Extraction.Strategy != StrategyAuto && c.Extraction.Strategy != "" {
		return c.Extraction.Strategy
	}
	if c.GetAPIKey(c.SelectedProvider) != "" {
		return StrategyModel
	}
	return StrategyPattern
}
