package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the assistant.
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Tools     ToolsConfig     `mapstructure:"tools"`
	Executor  ExecutorConfig  `mapstructure:"executor"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings.
type GeneralConfig struct {
	Debug             bool          `mapstructure:"debug"`
	LogLevel          string        `mapstructure:"log_level"`
	DefaultTimeout    time.Duration `mapstructure:"default_timeout"`
	MaxProcessingTime time.Duration `mapstructure:"max_processing_time"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// LLMConfig contains model backend configurations.
type LLMConfig struct {
	Providers map[string]LLMProviderConfig `mapstructure:"providers"`
	Routing   LLMRoutingConfig             `mapstructure:"routing"`
}

// LLMProviderConfig represents a single model backend.
type LLMProviderConfig struct {
	Type        string        `mapstructure:"type"` // openai, etc.
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// LLMRoutingConfig defines which provider to use for each stage.
type LLMRoutingConfig struct {
	Planning     string `mapstructure:"planning"`
	Verification string `mapstructure:"verification"`
}

// ToolsConfig groups the three data-fetching tool configurations.
type ToolsConfig struct {
	GitHub    GitHubToolConfig    `mapstructure:"github"`
	Weather   WeatherToolConfig   `mapstructure:"weather"`
	Wikipedia WikipediaToolConfig `mapstructure:"wikipedia"`
}

// GitHubToolConfig configures the repository search tool.
type GitHubToolConfig struct {
	Token      string        `mapstructure:"token"`
	Endpoint   string        `mapstructure:"endpoint"`
	MaxResults int           `mapstructure:"max_results"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// WeatherToolConfig configures the weather lookup tool.
type WeatherToolConfig struct {
	APIKey   string        `mapstructure:"api_key"`
	Endpoint string        `mapstructure:"endpoint"`
	Units    string        `mapstructure:"units"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// WikipediaToolConfig configures the article summary tool.
type WikipediaToolConfig struct {
	Endpoint  string        `mapstructure:"endpoint"`
	Sentences int           `mapstructure:"sentences"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// ExecutorConfig tunes step retry and concurrency behaviour.
type ExecutorConfig struct {
	MaxRetries         int           `mapstructure:"max_retries"`
	InitialBackoff     time.Duration `mapstructure:"initial_backoff"`
	BackoffFactor      float64       `mapstructure:"backoff_factor"`
	MaxConcurrentSteps int           `mapstructure:"max_concurrent_steps"`
}

// TelemetryConfig contains monitoring settings.
type TelemetryConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	MetricsPort int  `mapstructure:"metrics_port"`
}

func (t TelemetryConfig) Validate() error {
	if t.Enabled && t.MetricsPort <= 0 {
		return fmt.Errorf("telemetry.metrics_port must be > 0 when telemetry is enabled")
	}
	return nil
}

// Load reads configuration from the given JSON file (or the working
// directory when path is empty) and from ASSISTANT_* environment variables.
// A missing config file is not an error; defaults and environment apply.
func Load(path string) (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("json")

	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("general.default_timeout", 30*time.Second)
	viper.SetDefault("general.max_processing_time", 5*time.Minute)
	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("llm.routing.planning", "default")
	viper.SetDefault("llm.routing.verification", "default")
	viper.SetDefault("tools.github.endpoint", "https://api.github.com")
	viper.SetDefault("tools.github.max_results", 5)
	viper.SetDefault("tools.github.timeout", 15*time.Second)
	viper.SetDefault("tools.weather.endpoint", "https://api.openweathermap.org/data/2.5")
	viper.SetDefault("tools.weather.units", "metric")
	viper.SetDefault("tools.weather.timeout", 15*time.Second)
	viper.SetDefault("tools.wikipedia.endpoint", "https://en.wikipedia.org/api/rest_v1")
	viper.SetDefault("tools.wikipedia.sentences", 3)
	viper.SetDefault("tools.wikipedia.timeout", 15*time.Second)
	viper.SetDefault("executor.max_retries", 3)
	viper.SetDefault("executor.initial_backoff", time.Second)
	viper.SetDefault("executor.backoff_factor", 2.0)
	viper.SetDefault("executor.max_concurrent_steps", 5)
	viper.SetDefault("telemetry.enabled", true)
	viper.SetDefault("telemetry.metrics_port", 9090)

	if path == "" {
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("ASSISTANT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Telemetry.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
