package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Market   Market   `mapstructure:"market"`
	Monitor  Monitor  `mapstructure:"monitor"`
	Alerts   Alerts   `mapstructure:"alerts"`
	Notifier Notifier `mapstructure:"notifier"`
	Logger   Logger   `mapstructure:"logger"`
	Server   Server   `mapstructure:"server"`
	Database Database `mapstructure:"database"`
}

// Market holds the configuration for the market data API.
type Market struct {
	BaseURL        string  `mapstructure:"base_url"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
	CandleInterval string  `mapstructure:"candle_interval"`
	CandleLimit    int     `mapstructure:"candle_limit"`
}

// Monitor holds the configuration for the signal monitoring loop.
type Monitor struct {
	Symbols           []string `mapstructure:"symbols"`
	TickInterval      int      `mapstructure:"tick_interval"`  // seconds between ticks
	SymbolTimeout     int      `mapstructure:"symbol_timeout"` // seconds per symbol unit of work
	BaseMinScore      float64  `mapstructure:"base_min_score"`
	BaseATRMultiplier float64  `mapstructure:"base_atr_multiplier"`
	AutoInit          bool     `mapstructure:"auto_init"`
	AutoStart         bool     `mapstructure:"auto_start"`
}

// Alerts holds the configuration for alert thresholds and deduplication.
type Alerts struct {
	WarningThreshold float64 `mapstructure:"warning_threshold"`
	UrgentThreshold  float64 `mapstructure:"urgent_threshold"`
	CooldownMinutes  int     `mapstructure:"cooldown_minutes"`
}

// Notifier holds the configuration for the outbound notification channel.
type Notifier struct {
	TelegramToken string `mapstructure:"telegram_token"`
	ChatID        int64  `mapstructure:"chat_id"`
}

// Server holds the configuration for the HTTP API server.
type Server struct {
	Port int `mapstructure:"port"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yml")

	// Allow environment variables to override config file
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("market.base_url", "https://api.binance.com/api/v3")
	viper.SetDefault("market.rate_limit", 20) // requests per second
	viper.SetDefault("market.rate_limit_burst", 5)
	viper.SetDefault("market.candle_interval", "15m")
	viper.SetDefault("market.candle_limit", 100)
	viper.SetDefault("monitor.tick_interval", 60)
	viper.SetDefault("monitor.symbol_timeout", 20)
	viper.SetDefault("monitor.base_min_score", 50)
	viper.SetDefault("monitor.base_atr_multiplier", 1.5)
	viper.SetDefault("monitor.auto_init", true)
	viper.SetDefault("monitor.auto_start", true)
	viper.SetDefault("alerts.warning_threshold", 60)
	viper.SetDefault("alerts.urgent_threshold", 80)
	viper.SetDefault("alerts.cooldown_minutes", 30)
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("database.dsn", "monitor.db")
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.format", "console")

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
