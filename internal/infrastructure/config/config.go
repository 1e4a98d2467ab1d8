// Package config provides centralized configuration management
// using Viper for configuration loading and validation
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/sommekat/sommelier/pkg/logger"
)

// Config holds all application configuration
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	AI         AIConfig         `mapstructure:"ai"`
	Fetch      FetchConfig      `mapstructure:"fetch"`
	Crawl      CrawlConfig      `mapstructure:"crawl"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`

	v *viper.Viper
}

// AppConfig contains application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// AIConfig contains completion provider configuration
type AIConfig struct {
	Provider         string        `mapstructure:"provider"`
	AnthropicKey     string        `mapstructure:"anthropic_key"`
	AnthropicModel   string        `mapstructure:"anthropic_model"`
	AnthropicBaseURL string        `mapstructure:"anthropic_base_url"`
	OpenAIKey        string        `mapstructure:"openai_key"`
	OpenAIModel      string        `mapstructure:"openai_model"`
	OpenAIBaseURL    string        `mapstructure:"openai_base_url"`
	Temperature      float64       `mapstructure:"temperature"`
	MenuMaxTokens    int           `mapstructure:"menu_max_tokens"`
	RecipeMaxTokens  int           `mapstructure:"recipe_max_tokens"`
	Timeout          time.Duration `mapstructure:"timeout"`
	BreakerFailures  int           `mapstructure:"breaker_failures"`
	BreakerCooldown  time.Duration `mapstructure:"breaker_cooldown"`
}

// FetchConfig contains outbound page fetch configuration
type FetchConfig struct {
	UserAgent         string        `mapstructure:"user_agent"`
	AcceptLanguage    string        `mapstructure:"accept_language"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxBodyBytes      int64         `mapstructure:"max_body_bytes"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
}

// CrawlConfig bounds website discovery and the text sent to the model.
type CrawlConfig struct {
	MaxLevel1        int `mapstructure:"max_level1"`
	MaxTotalSubpages int `mapstructure:"max_total_subpages"`
	MinSubpageChars  int `mapstructure:"min_subpage_chars"`
	MenuTextLimit    int `mapstructure:"menu_text_limit"`
	RecipeTextLimit  int `mapstructure:"recipe_text_limit"`
	RecipeMinChars   int `mapstructure:"recipe_min_chars"`
}

// MonitoringConfig contains monitoring configuration
type MonitoringConfig struct {
	EnableMetrics bool    `mapstructure:"enable_metrics"`
	MetricsPath   string  `mapstructure:"metrics_path"`
	EnableTracing bool    `mapstructure:"enable_tracing"`
	OTLPEndpoint  string  `mapstructure:"otlp_endpoint"`
	SamplingRate  float64 `mapstructure:"sampling_rate"`
}

// RateLimitConfig contains inbound rate limiting configuration
type RateLimitConfig struct {
	Enable         bool `mapstructure:"enable"`
	RequestsPerMin int  `mapstructure:"requests_per_min"`
	BurstSize      int  `mapstructure:"burst_size"`
}

// Load loads configuration from file and environment variables. A .env
// file in the working directory is applied to the environment first.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/sommelier")
	}

	v.SetEnvPrefix("SOMMELIER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// It's okay if config file doesn't exist, we have defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.v = v

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "sommelier")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "json")

	// Server defaults. Pairing a long menu can take well over a minute.
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "180s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.max_upload_bytes", 20<<20)
	v.SetDefault("server.allowed_origins", []string{"*"})

	// AI defaults
	v.SetDefault("ai.provider", "anthropic")
	v.SetDefault("ai.anthropic_key", "")
	v.SetDefault("ai.anthropic_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("ai.anthropic_base_url", "https://api.anthropic.com")
	v.SetDefault("ai.openai_key", "")
	v.SetDefault("ai.openai_model", "")
	v.SetDefault("ai.openai_base_url", "")
	v.SetDefault("ai.temperature", 0.0)
	v.SetDefault("ai.menu_max_tokens", 6500)
	v.SetDefault("ai.recipe_max_tokens", 1500)
	v.SetDefault("ai.timeout", "120s")
	v.SetDefault("ai.breaker_failures", 5)
	v.SetDefault("ai.breaker_cooldown", "30s")

	// Fetch defaults
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("fetch.accept_language", "en-GB,en;q=0.9")
	v.SetDefault("fetch.timeout", "15s")
	v.SetDefault("fetch.max_body_bytes", 10<<20)
	v.SetDefault("fetch.requests_per_second", 5.0)
	v.SetDefault("fetch.burst", 10)

	// Crawl defaults
	v.SetDefault("crawl.max_level1", 8)
	v.SetDefault("crawl.max_total_subpages", 10)
	v.SetDefault("crawl.min_subpage_chars", 100)
	v.SetDefault("crawl.menu_text_limit", 80000)
	v.SetDefault("crawl.recipe_text_limit", 25000)
	v.SetDefault("crawl.recipe_min_chars", 100)

	// Monitoring defaults
	v.SetDefault("monitoring.enable_metrics", true)
	v.SetDefault("monitoring.metrics_path", "/metrics")
	v.SetDefault("monitoring.enable_tracing", false)
	v.SetDefault("monitoring.otlp_endpoint", "")
	v.SetDefault("monitoring.sampling_rate", 0.1)

	// Rate limit defaults
	v.SetDefault("rate_limit.enable", true)
	v.SetDefault("rate_limit.requests_per_min", 30)
	v.SetDefault("rate_limit.burst_size", 5)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app.name is required")
	}

	switch c.AI.Provider {
	case "anthropic":
		if c.AI.AnthropicKey == "" && c.IsProduction() {
			return fmt.Errorf("ai.anthropic_key is required in production")
		}
	case "openai":
		if c.AI.OpenAIKey == "" && c.IsProduction() {
			return fmt.Errorf("ai.openai_key is required in production")
		}
	case "ollama":
	default:
		return fmt.Errorf("ai.provider must be one of anthropic, openai, ollama (got %q)", c.AI.Provider)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("server.max_upload_bytes must be positive")
	}

	if c.AI.MenuMaxTokens <= 0 || c.AI.RecipeMaxTokens <= 0 {
		return fmt.Errorf("ai.menu_max_tokens and ai.recipe_max_tokens must be positive")
	}
	if c.AI.Temperature < 0 || c.AI.Temperature > 1 {
		return fmt.Errorf("ai.temperature must be between 0 and 1")
	}

	if c.Fetch.Timeout <= 0 || c.Fetch.MaxBodyBytes <= 0 {
		return fmt.Errorf("fetch.timeout and fetch.max_body_bytes must be positive")
	}

	cr := c.Crawl
	if cr.MaxLevel1 <= 0 || cr.MaxTotalSubpages <= 0 || cr.MenuTextLimit <= 0 || cr.RecipeTextLimit <= 0 {
		return fmt.Errorf("crawl limits must be positive")
	}
	if cr.MaxTotalSubpages < cr.MaxLevel1 {
		return fmt.Errorf("crawl.max_total_subpages (%d) must be at least crawl.max_level1 (%d)", cr.MaxTotalSubpages, cr.MaxLevel1)
	}

	if c.Monitoring.SamplingRate < 0 || c.Monitoring.SamplingRate > 1 {
		return fmt.Errorf("monitoring.sampling_rate must be between 0 and 1")
	}

	return nil
}

// IsProduction returns true if running in production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment returns true if running in development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// Watch re-applies app.log_level to level whenever the config file changes.
// It is a no-op when no config file was found.
func (c *Config) Watch(level zap.AtomicLevel, log *zap.Logger) {
	if c.v == nil || c.v.ConfigFileUsed() == "" {
		return
	}

	c.v.OnConfigChange(func(e fsnotify.Event) {
		name := c.v.GetString("app.log_level")
		level.SetLevel(logger.ParseLevel(name))
		log.Info("Configuration reloaded",
			zap.String("file", e.Name),
			zap.String("op", e.Op.String()),
			zap.String("log_level", name),
		)
	})
	c.v.WatchConfig()
}

// SafeFields returns log fields describing the config with secrets masked.
func (c *Config) SafeFields() []zap.Field {
	return []zap.Field{
		zap.String("environment", c.App.Environment),
		zap.String("ai_provider", c.AI.Provider),
		zap.String("anthropic_key", mask(c.AI.AnthropicKey)),
		zap.String("openai_key", mask(c.AI.OpenAIKey)),
		zap.Int("port", c.Server.Port),
		zap.Bool("tracing", c.Monitoring.EnableTracing),
	}
}

func mask(secret string) string {
	if len(secret) <= 8 {
		if secret == "" {
			return ""
		}
		return "****"
	}
	return secret[:4] + "****" + secret[len(secret)-4:]
}
