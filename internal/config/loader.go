package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/edgard/smartblinds/internal/errs"
)

// EnvPrefix prefixes every environment override, e.g. SMARTBLINDS_HTTP_ADDR.
const EnvPrefix = "SMARTBLINDS"

// LoadConfig reads the YAML file at path over the defaults, applies
// environment overrides and validates the result. A missing file is not an
// error; an empty path skips the file entirely.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if !isNotFound(err) {
				return nil, errs.NewConfigError(fmt.Sprintf("failed to read config file %s", path), err)
			}
			slog.Info("Config file not found, using defaults and environment", "path", path)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errs.NewConfigError("failed to decode configuration", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct tags and cross-field constraints.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return errs.NewConfigError("invalid configuration", err)
	}
	if !cfg.HTTP.Enabled && !cfg.Telegram.Enabled {
		slog.Warn("Neither HTTP nor Telegram is enabled; actions can only be managed offline")
	}
	return nil
}

func isNotFound(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
}
