package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the scheduling engine. Shape and
// loading style follow the sibling auth-service's viper-based config
// (nested structs, mapstructure tags, env-var binding, defaults), adapted
// to the environment-configured options this engine actually needs.
type Config struct {
	Environment string         `mapstructure:"environment"`
	Port        int            `mapstructure:"port"`
	LogLevel    string         `mapstructure:"log_level"`
	AppURL      string         `mapstructure:"app_url"`
	CORSOrigins []string       `mapstructure:"cors_origins"`
	Database    Database       `mapstructure:"database"`
	Redis       Redis          `mapstructure:"redis"`
	Bus         Bus            `mapstructure:"bus"`
	Webhook     Webhook        `mapstructure:"webhook"`
	Signing     SigningProvider `mapstructure:"signing_provider"`
	RateLimit   RateLimit      `mapstructure:"rate_limit"`
	Hold        Hold           `mapstructure:"hold"`
}

type Database struct {
	URL string `mapstructure:"url"`
}

type Redis struct {
	URL string `mapstructure:"url"`
}

// Bus configures the durable event bus connection (C4).
type Bus struct {
	URL string `mapstructure:"url"`
}

// Webhook configures the e-signature webhook reactor (C6).
type Webhook struct {
	SharedSecret string `mapstructure:"shared_secret"`
}

// SigningProvider configures the outbound e-signature client used to
// create envelopes; credentials absent => client degrades to a no-op.
type SigningProvider struct {
	BaseURL    string `mapstructure:"base_url"`
	APIKey     string `mapstructure:"api_key"`
	TemplateID string `mapstructure:"template_id"`
}

type RateLimit struct {
	HoldsPerMinute   int `mapstructure:"holds_per_minute"`
	GeneralPerMinute int `mapstructure:"general_per_minute"`
}

// Hold configures C2's tunables.
type Hold struct {
	TTL            time.Duration `mapstructure:"ttl"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
	MinLeadTime    time.Duration `mapstructure:"min_lead_time"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	viper.SetEnvPrefix("")
	viper.AutomaticEnv()

	viper.BindEnv("port", "PORT")
	viper.BindEnv("environment", "ENVIRONMENT")
	viper.BindEnv("log_level", "LOG_LEVEL")
	viper.BindEnv("app_url", "APP_URL")
	viper.BindEnv("database.url", "DATABASE_URL")
	viper.BindEnv("redis.url", "REDIS_URL")
	viper.BindEnv("bus.url", "BUS_URL")
	viper.BindEnv("webhook.shared_secret", "WEBHOOK_SHARED_SECRET")
	viper.BindEnv("signing_provider.base_url", "SIGNING_PROVIDER_BASE_URL")
	viper.BindEnv("signing_provider.api_key", "SIGNING_PROVIDER_API_KEY")
	viper.BindEnv("signing_provider.template_id", "SIGNING_PROVIDER_TEMPLATE_ID")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("environment", "development")
	viper.SetDefault("port", 8080)
	viper.SetDefault("log_level", "info")
	viper.SetDefault("app_url", "http://localhost:3000")
	viper.SetDefault("cors_origins", []string{"http://localhost:3000"})

	viper.SetDefault("database.url", "postgres://localhost:5432/scheduling_core?sslmode=disable")
	viper.SetDefault("redis.url", "redis://localhost:6379")
	viper.SetDefault("bus.url", "nats://localhost:4222")

	viper.SetDefault("webhook.shared_secret", "")
	viper.SetDefault("signing_provider.base_url", "")
	viper.SetDefault("signing_provider.api_key", "")
	viper.SetDefault("signing_provider.template_id", "")

	viper.SetDefault("rate_limit.holds_per_minute", 5)
	viper.SetDefault("rate_limit.general_per_minute", 100)

	viper.SetDefault("hold.ttl", "15m")
	viper.SetDefault("hold.sweep_interval", "20s")
	viper.SetDefault("hold.min_lead_time", "2h")
}
