package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix                = "REVISIONPRO"
	defaultHTTPAddress       = "0.0.0.0:8080"
	defaultDatabasePath      = "revisionpro.db"
	defaultLogLevel          = "info"
	defaultRecommendLimit    = 5
	defaultCORSAllowedOrigin = "*"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress        string
	DatabasePath       string
	LogLevel           string
	CORSAllowedOrigins []string
	RecommendLimit     int
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("cors.allowed_origins", []string{defaultCORSAllowedOrigin})
	configViper.SetDefault("recommend.default_limit", defaultRecommendLimit)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:        configViper.GetString("http.address"),
		DatabasePath:       configViper.GetString("database.path"),
		LogLevel:           configViper.GetString("log.level"),
		CORSAllowedOrigins: configViper.GetStringSlice("cors.allowed_origins"),
		RecommendLimit:     configViper.GetInt("recommend.default_limit"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.HTTPAddress) == "" {
		return fmt.Errorf("http.address is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if len(c.CORSAllowedOrigins) == 0 {
		return fmt.Errorf("cors.allowed_origins is required")
	}
	if c.RecommendLimit <= 0 {
		return fmt.Errorf("recommend.default_limit must be positive")
	}
	return nil
}
