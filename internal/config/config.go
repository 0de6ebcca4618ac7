// Package config loads process settings from defaults, an optional YAML
// file and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/HerbHall/larkwatch/internal/notify"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides: LARKWATCH_LOGGING_LEVEL=debug.
const EnvPrefix = "LARKWATCH"

// ServerConfig holds the relay listener settings.
type ServerConfig struct {
	Host       string  `mapstructure:"host"`
	Port       int     `mapstructure:"port"`
	RateLimit  float64 `mapstructure:"rate_limit"`
	RateBurst  int     `mapstructure:"rate_burst"`
	TrustProxy bool    `mapstructure:"trust_proxy"`
}

// Addr returns the listen address as host:port.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoadConfig reads settings from configPath (optional) and the environment.
// BOT_URL and PORT are honored as-is in addition to the prefixed names.
func LoadConfig(configPath string) (*viper.Viper, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.rate_limit", 20)
	v.SetDefault("server.rate_burst", 40)
	v.SetDefault("server.trust_proxy", false)
	v.SetDefault("bot.type", notify.TypeLark)
	v.SetDefault("bot.url", "")
	v.SetDefault("bot.timeout", notify.DefaultTimeout.String())
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("metrics.addr", "")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("larkwatch")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/larkwatch")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("bot.url", EnvPrefix+"_BOT_URL", "BOT_URL"); err != nil {
		return nil, fmt.Errorf("bind BOT_URL: %w", err)
	}
	if err := v.BindEnv("server.port", EnvPrefix+"_SERVER_PORT", "PORT"); err != nil {
		return nil, fmt.Errorf("bind PORT: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// No settings file in the search path: defaults and env only.
	}

	return v, nil
}

// BotConfig extracts the notification backend settings.
func BotConfig(v *viper.Viper) notify.Config {
	return notify.Config{
		Type:    v.GetString("bot.type"),
		URL:     v.GetString("bot.url"),
		Timeout: v.GetDuration("bot.timeout"),
	}
}

// Server extracts the relay listener settings.
func Server(v *viper.Viper) (ServerConfig, error) {
	cfg := ServerConfig{
		Host:       v.GetString("server.host"),
		Port:       v.GetInt("server.port"),
		RateLimit:  v.GetFloat64("server.rate_limit"),
		RateBurst:  v.GetInt("server.rate_burst"),
		TrustProxy: v.GetBool("server.trust_proxy"),
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return ServerConfig{}, fmt.Errorf("invalid server port %d", cfg.Port)
	}
	return cfg, nil
}
