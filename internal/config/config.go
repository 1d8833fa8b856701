package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	LogLevel  string `mapstructure:"log_level" validate:"oneof=trace debug info warn error fatal"`
	LogFormat string `mapstructure:"log_format" validate:"oneof=json console"`

	PrefsBackend string `mapstructure:"prefs_backend" validate:"oneof=sqlite postgres"`
	PrefsPath    string `mapstructure:"prefs_path" validate:"required_if=PrefsBackend sqlite"`
	DbUrl        string `mapstructure:"db_url" validate:"required_if=PrefsBackend postgres"`

	Provider      string `mapstructure:"provider" validate:"oneof=simplejson nats"`
	DeviceAddress string `mapstructure:"device_address" validate:"required_if=Provider simplejson"`
	NatsUrl       string `mapstructure:"nats_url" validate:"required_if=Provider nats"`
	NatsSubject   string `mapstructure:"nats_subject" validate:"required_if=Provider nats"`

	Permission string `mapstructure:"permission" validate:"oneof=store granted"`

	ChannelAddress   string `mapstructure:"channel_address" validate:"required"`
	ChannelTokenHash string `mapstructure:"channel_token_hash"`
	MonAddress       string `mapstructure:"mon_address"`
}

// New returns a viper instance with defaults and LOCTRACK_ env binding. The
// caller may bind flags and set a config file before calling Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("prefs_backend", "sqlite")
	v.SetDefault("prefs_path", "/var/lib/loctrack/prefs.db")
	v.SetDefault("db_url", "")
	v.SetDefault("provider", "simplejson")
	v.SetDefault("device_address", ":5001")
	v.SetDefault("nats_url", "nats://127.0.0.1:4222")
	v.SetDefault("nats_subject", "loctrack.fix")
	v.SetDefault("permission", "store")
	v.SetDefault("channel_address", ":3333")
	v.SetDefault("channel_token_hash", "")
	v.SetDefault("mon_address", ":3334")
	v.SetEnvPrefix("LOCTRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

func Load(v *viper.Viper) (*Config, error) {
	if v.ConfigFileUsed() != "" {
		err := v.ReadInConfig()
		if err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config %s: %w", v.ConfigFileUsed(), err)
			}
		}
	}
	c := &Config{}
	err := v.Unmarshal(c)
	if err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	err = validator.New().Struct(c)
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return c, nil
}
