package config

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	ServerAddr     string   `mapstructure:"server_addr"`
	SigningSecret  string   `mapstructure:"signing_secret"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	// SigningKey is the decoded form of SigningSecret.
	SigningKey []byte `mapstructure:"-"`
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	if base64Secret == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}

	return base64.StdEncoding.DecodeString(base64Secret)
}

// Load reads configuration from an optional file plus RELAY_* environment
// variables. A missing file is fine; a present but unreadable one is not.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("relay")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server_addr", "localhost:8000")
	v.SetDefault("signing_secret", "")
	v.SetDefault("allowed_origins", []string{})

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %q: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.ServerAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}

	signingKey, err := decodeSigningSecret(cfg.SigningSecret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}
	cfg.SigningKey = signingKey

	return &cfg, nil
}
