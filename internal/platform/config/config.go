package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all configuration for the rental bot service.
type Config struct {
	LogLevel string `mapstructure:"LOG_LEVEL" validate:"oneof=debug info warn error"`

	TelegramBotToken    string        `mapstructure:"TELEGRAM_BOT_TOKEN" validate:"required"`
	TelegramAPIURL      string        `mapstructure:"TELEGRAM_API_URL" validate:"required,url"`
	TelegramPollTimeout time.Duration `mapstructure:"TELEGRAM_POLL_TIMEOUT" validate:"gte=0"`
	TelegramHTTPTimeout time.Duration `mapstructure:"TELEGRAM_HTTP_TIMEOUT" validate:"gt=0"`
	PollIdleDelay       time.Duration `mapstructure:"POLL_IDLE_DELAY" validate:"gte=0"`
	SendMaxAttempts     uint          `mapstructure:"SEND_MAX_ATTEMPTS" validate:"gte=1,lte=10"`

	AccessPhrase    string `mapstructure:"ACCESS_PHRASE" validate:"required"`
	FreeListLimit   int    `mapstructure:"FREE_LIST_LIMIT" validate:"gte=1,lte=50"`
	DisplayTimezone string `mapstructure:"DISPLAY_TIMEZONE" validate:"required"`

	OpsHTTPPort    int `mapstructure:"OPS_HTTP_PORT" validate:"gte=0,lte=65535"`
	GRPCHealthPort int `mapstructure:"GRPC_HEALTH_PORT" validate:"gte=0,lte=65535"`
	// Empty OpsJWTSecret leaves the /v1 ops routes unauthenticated.
	OpsJWTSecret string `mapstructure:"OPS_JWT_SECRET" validate:"omitempty,min=16"`

	// Empty NATSURL or PostgresDSN disables the corresponding event sink.
	NATSURL     string `mapstructure:"NATS_URL"`
	PostgresDSN string `mapstructure:"POSTGRES_DSN"`
}

// Location resolves DisplayTimezone; "Local" maps to the process zone.
func (c *Config) Location() (*time.Location, error) {
	if c.DisplayTimezone == "" || strings.EqualFold(c.DisplayTimezone, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(c.DisplayTimezone)
}

// Load reads config.defaults.yaml from configDir (and the usual fallbacks),
// then APP_-prefixed environment variables, then validates the result.
// serviceName is used as an optional overlay file name, e.g. rental_bot_service.yaml.
func Load(serviceName, configDir string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config.defaults")
	v.SetConfigType("yaml")
	if configDir != "" {
		v.AddConfigPath(configDir)
	}
	v.AddConfigPath("./configs")
	v.AddConfigPath("../configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if serviceName != "" {
		v.SetConfigName(serviceName)
		if err := v.MergeInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("merge %s config: %w", serviceName, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.AccessPhrase = strings.TrimSpace(cfg.AccessPhrase)

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if _, err := cfg.Location(); err != nil {
		return nil, fmt.Errorf("invalid config: DISPLAY_TIMEZONE: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Every key needs a default so AutomaticEnv picks it up during Unmarshal.
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("TELEGRAM_BOT_TOKEN", "")
	v.SetDefault("TELEGRAM_API_URL", "https://api.telegram.org")
	v.SetDefault("TELEGRAM_POLL_TIMEOUT", 30*time.Second)
	v.SetDefault("TELEGRAM_HTTP_TIMEOUT", 10*time.Second)
	v.SetDefault("POLL_IDLE_DELAY", 500*time.Millisecond)
	v.SetDefault("SEND_MAX_ATTEMPTS", 3)
	v.SetDefault("ACCESS_PHRASE", "lolpop")
	v.SetDefault("FREE_LIST_LIMIT", 5)
	v.SetDefault("DISPLAY_TIMEZONE", "Local")
	v.SetDefault("OPS_HTTP_PORT", 8090)
	v.SetDefault("GRPC_HEALTH_PORT", 50070)
	v.SetDefault("OPS_JWT_SECRET", "")
	v.SetDefault("NATS_URL", "")
	v.SetDefault("POSTGRES_DSN", "")
}
