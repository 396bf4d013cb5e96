package app

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the process configuration. Every field has a default so the
// server boots with no config file at all; a YAML file and QUICKDRAW_*
// environment variables override.
type Config struct {
	Server struct {
		ListenAddr string `mapstructure:"listen_addr"`
	} `mapstructure:"server"`

	Logging struct {
		Level string   `mapstructure:"level"`
		Sinks []string `mapstructure:"sinks"`
	} `mapstructure:"logging"`

	Ledger struct {
		RedisAddr string `mapstructure:"redis_addr"`
	} `mapstructure:"ledger"`

	Duel struct {
		BestOf      int           `mapstructure:"best_of"`
		Grace       time.Duration `mapstructure:"grace"`
		Countdown   time.Duration `mapstructure:"countdown"`
		TracerAge   time.Duration `mapstructure:"tracer_age"`
		PresenceTTL time.Duration `mapstructure:"presence_ttl"`
	} `mapstructure:"duel"`
}

// LoadConfig reads the YAML file at path, or only defaults and environment
// when path is empty.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.sinks", []string{"console", "zap", "stream"})
	v.SetDefault("ledger.redis_addr", "")
	v.SetDefault("duel.best_of", 3)
	v.SetDefault("duel.grace", 15*time.Second)
	v.SetDefault("duel.countdown", 5*time.Second)
	v.SetDefault("duel.tracer_age", 12*time.Second)
	v.SetDefault("duel.presence_ttl", 30*time.Minute)

	v.AutomaticEnv()
	v.SetEnvPrefix("QUICKDRAW")

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &c, nil
}
