package config

import (
	"errors"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/APasz/Yukibot/internal/env"
)

/**
 * Server configuration parameters
 * @property {string} address - Server listening address (e.g. "127.0.0.1:8998")
 * @property {string} mode - Application mode (debug/release/test)
 */
type ServerConfig struct {
	Address string `mapstructure:"address"`
	Mode    string `mapstructure:"mode"`
}

/**
 * Logging configuration
 * @property {string} level - Log level (debug/info/warn/error)
 * @property {string} path - Log file path
 */
type LogConfig struct {
	Level string `mapstructure:"level"`
	Path  string `mapstructure:"path"`
}

/**
 * Chat platform configuration
 * @property {string} webhook_base - Base URL of the chat platform delivery webhook
 * @property {string} ignore_prefix - Chat messages starting with this prefix are not relayed
 */
type ChatConfig struct {
	WebhookBase  string `mapstructure:"webhook_base"`
	IgnorePrefix string `mapstructure:"ignore_prefix"`
}

/**
 * Metrics configuration
 * @property {string} pushgateway - Pushgateway address for metrics
 */
type MetricsConfig struct {
	Pushgateway string `mapstructure:"pushgateway"`
}

/**
 * Interval configuration, in seconds
 * @property {int} monitoring - Current app health check interval
 * @property {int} players - Player count poll interval
 * @property {int} time - Game time poll interval
 * @property {int} game_stats - Game stats poll interval
 */
type IntervalConfig struct {
	Monitoring int `mapstructure:"monitoring"`
	Players    int `mapstructure:"players"`
	Time       int `mapstructure:"time"`
	GameStats  int `mapstructure:"game_stats"`
}

var ErrAppNotFound = errors.New("app not found")

type AppConfig struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Chat     ChatConfig     `mapstructure:"chat"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Interval IntervalConfig `mapstructure:"interval"`
}

/**
 * Load application configuration from YAML file
 */
func LoadConfig() (*AppConfig, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath(env.YukibotDir)

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg AppConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

var Config AppConfig

func collectConfig(cfg *AppConfig) *AppConfig {
	if cfg.Server.Address == "" {
		cfg.Server.Address = "127.0.0.1:8998"
	}
	if cfg.Log.Path == "" {
		cfg.Log.Path = filepath.Join(env.YukibotDir, "logs", "yukibot.log")
	}
	if cfg.Chat.IgnorePrefix == "" {
		cfg.Chat.IgnorePrefix = "//"
	}
	if cfg.Interval.Monitoring <= 0 {
		cfg.Interval.Monitoring = 60
	}
	if cfg.Interval.Players <= 0 {
		cfg.Interval.Players = 5
	}
	if cfg.Interval.Time <= 0 {
		cfg.Interval.Time = 5
	}
	if cfg.Interval.GameStats <= 0 {
		cfg.Interval.GameStats = 60
	}
	return cfg
}

func init() {
	cfg, err := LoadConfig()
	if err == nil {
		Config = *cfg
	}
	collectConfig(&Config)
}
