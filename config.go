package main

import (
	"errors"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds the service configuration.
type Config struct {
	DatabaseURL   string        `mapstructure:"database_url"`
	DatabaseName  string        `mapstructure:"database_name"`
	Port          int           `mapstructure:"port"`
	LogLevel      string        `mapstructure:"log_level"`
	LogJSON       bool          `mapstructure:"log_json"`
	CORSOrigins   string        `mapstructure:"cors_origins"`
	SearchTimeout time.Duration `mapstructure:"search_timeout"`
	JikanURL      string        `mapstructure:"jikan_url"`
	TVMazeURL     string        `mapstructure:"tvmaze_url"`
	ITunesURL     string        `mapstructure:"itunes_url"`
}

var configKeys = []string{
	"database_url", "database_name", "port", "log_level", "log_json",
	"cors_origins", "search_timeout", "jikan_url", "tvmaze_url", "itunes_url",
}

// LoadConfig reads configuration from an optional file, environment
// variables (DATABASE_URL, PORT, ...) and flags, over defaults.
func LoadConfig(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	v.SetDefault("database_url", "")
	v.SetDefault("database_name", "nebuladiary")
	v.SetDefault("port", 8000)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
	v.SetDefault("cors_origins", "*")
	v.SetDefault("search_timeout", defaultSearchTimeout)
	v.SetDefault("jikan_url", defaultJikanURL)
	v.SetDefault("tvmaze_url", defaultTVMazeURL)
	v.SetDefault("itunes_url", defaultITunesURL)

	// Unprefixed so the usual DATABASE_URL and PORT variables apply.
	for _, k := range configKeys {
		if err := v.BindEnv(k); err != nil {
			return nil, err
		}
	}

	if flags != nil {
		for flag, key := range map[string]string{"port": "port", "log-level": "log_level"} {
			if f := flags.Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, err
				}
			}
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, errors.New("port must be between 1 and 65535")
	}
	return cfg, nil
}
