package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "SETORA_"

type Config struct {
	Environment        string        `koanf:"environment" validate:"required,oneof=development production"`
	Port               string        `koanf:"port" validate:"required,numeric"`
	DatabasePath       string        `koanf:"database_path" validate:"required"`
	AllowedOrigins     string        `koanf:"allowed_origins"`
	SessionDuration    time.Duration `koanf:"session_duration" validate:"min=1m"`
	LogLevel           string        `koanf:"log_level" validate:"required,oneof=debug info warn error DEBUG INFO WARN ERROR"`
	MailgunDomain      string        `koanf:"mailgun_domain"`
	MailgunAPIKey      string        `koanf:"mailgun_api_key"`
	MailgunSenderEmail string        `koanf:"mailgun_sender_email" validate:"omitempty,email"`
	MailgunSenderName  string        `koanf:"mailgun_sender_name"`
}

func Default() *Config {
	return &Config{
		Environment:       "development",
		Port:              "5000",
		DatabasePath:      "setora.db",
		AllowedOrigins:    "http://localhost:6000,http://127.0.0.1:6000",
		SessionDuration:   30 * 24 * time.Hour,
		LogLevel:          "info",
		MailgunSenderName: "Setora",
	}
}

// Load reads SETORA_* environment variables (and a .env file, if present)
// over the defaults and validates the result.
func Load() (*Config, error) {
	k := koanf.New(".")

	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) EmailEnabled() bool {
	return c.MailgunDomain != "" && c.MailgunAPIKey != ""
}

func (c *Config) Origins() []string {
	var origins []string
	for _, origin := range strings.Split(c.AllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}
