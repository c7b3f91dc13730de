package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type RoomsConfig struct {
	PoolSize       int           `mapstructure:"pool_size" validate:"gte=1"`
	Capacity       int           `mapstructure:"capacity" validate:"gte=1"`
	ReservationTTL time.Duration `mapstructure:"reservation_ttl" validate:"gt=0"`
}

type FeedConfig struct {
	BaseURL         string        `mapstructure:"base_url" validate:"omitempty,url"`
	PollInterval    time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
	BackoffInterval time.Duration `mapstructure:"backoff_interval" validate:"gt=0"`
	InitialDelay    time.Duration `mapstructure:"initial_delay" validate:"gte=0"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" validate:"gt=0"`
}

type ProgressConfig struct {
	Thresholds []int          `mapstructure:"thresholds" validate:"min=1,dive,gt=0"`
	Debounce   time.Duration  `mapstructure:"debounce" validate:"gt=0"`
	Weights    map[string]int `mapstructure:"weights" validate:"dive,gte=0"`
}

type StoreConfig struct {
	Driver    string `mapstructure:"driver" validate:"oneof=badger redis"`
	Path      string `mapstructure:"path"`
	RedisAddr string `mapstructure:"redis_addr" validate:"required_if=Driver redis"`
}

type Config struct {
	Mode       string         `mapstructure:"mode" validate:"oneof=debug release test"`
	Port       int            `mapstructure:"port" validate:"gt=0,lt=65536"`
	LogLevel   string         `mapstructure:"log_level"`
	ReadLimit  int64          `mapstructure:"read_limit" validate:"gt=0"`
	PingPeriod time.Duration  `mapstructure:"ping_period" validate:"gt=0"`
	Secret     string         `mapstructure:"secret" validate:"required,min=16"`
	TokenTTL   time.Duration  `mapstructure:"token_ttl" validate:"gt=0"`
	Rooms      RoomsConfig    `mapstructure:"rooms"`
	Feed       FeedConfig     `mapstructure:"feed"`
	Progress   ProgressConfig `mapstructure:"progress"`
	Store      StoreConfig    `mapstructure:"store"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("token_ttl", "168h")
	v.SetDefault("secret", "")

	v.SetDefault("rooms.pool_size", 3)
	v.SetDefault("rooms.capacity", 14)
	v.SetDefault("rooms.reservation_ttl", "30s")

	v.SetDefault("feed.base_url", "")
	v.SetDefault("feed.poll_interval", "60s")
	v.SetDefault("feed.backoff_interval", "10m")
	v.SetDefault("feed.initial_delay", "2s")
	v.SetDefault("feed.request_timeout", "15s")

	v.SetDefault("progress.thresholds", []int{100, 250, 500, 1000})
	v.SetDefault("progress.debounce", "1s")

	v.SetDefault("store.driver", "badger")
	v.SetDefault("store.path", "./data")
	v.SetDefault("store.redis_addr", "")
}

// Load reads config/config.<CONFIG_ENV>.yaml, applies PRESENCE_* overrides
// and validates the result. A missing file falls back to defaults.
func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	v.SetEnvPrefix("PRESENCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", fileName, err)
		}
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("store", cfg.Store.Driver).Msg("config ready")
	return &cfg, nil
}
