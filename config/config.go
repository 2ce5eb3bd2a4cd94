package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Log       Logger    `mapstructure:"logger"`
	DB        Database  `mapstructure:"database"`
	API       API       `mapstructure:"api"`
	Scheduler Scheduler `mapstructure:"scheduler"`
	Holiday   Holiday   `mapstructure:"holiday"`
	Cache     Cache     `mapstructure:"cache"`
	Event     Event     `mapstructure:"event"`
	Redis     Redis     `mapstructure:"redis"`
}

type Logger struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

type Database struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"name"`
	SSLMode         string `mapstructure:"ssl_mode"`
	TimeZone        string `mapstructure:"time_zone"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime string `mapstructure:"conn_max_lifetime"`
	LogLevel        string `mapstructure:"log_level"`
}

type API struct {
	Port int `mapstructure:"port"`
	// RateLimit is requests per second per client IP; 0 disables it.
	RateLimit float64 `mapstructure:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst"`
}

type Scheduler struct {
	// Timezone used to turn a run instant into a calendar date.
	Timezone       string        `mapstructure:"timezone"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`
	Cron           string        `mapstructure:"cron"`
	DueWindow      time.Duration `mapstructure:"due_window"`
	// MonthlyDayPolicy is "clamp" or "skip".
	MonthlyDayPolicy string `mapstructure:"monthly_day_policy"`
	// MakeupPolicy is "next_business_day" or "lookahead".
	MakeupPolicy        string `mapstructure:"makeup_policy"`
	MakeupLookaheadDays int    `mapstructure:"makeup_lookahead_days"`
	HistoryLimit        int    `mapstructure:"history_limit"`
}

type Holiday struct {
	// Source is "database" or "api".
	Source              string        `mapstructure:"source"`
	WeekendsAreHolidays bool          `mapstructure:"weekends_are_holidays"`
	BaseURL             string        `mapstructure:"base_url"`
	CountryCode         string        `mapstructure:"country_code"`
	Timeout             time.Duration `mapstructure:"timeout"`
	MaxRequestPerMinute int           `mapstructure:"max_request_per_minute"`
	CacheExpiration     time.Duration `mapstructure:"cache_expiration"`
	// NegativeCacheExpiration bounds how long "not a holiday" is remembered.
	NegativeCacheExpiration time.Duration `mapstructure:"negative_cache_expiration"`
}

type Cache struct {
	DefaultExpiration time.Duration `mapstructure:"default_expiration"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`
}

type Event struct {
	// Driver is "log" or "redis".
	Driver  string `mapstructure:"driver"`
	Channel string `mapstructure:"channel"`
}

type Redis struct {
	URL string `mapstructure:"url"`
}

func setDefaults() {
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.encoding", "json")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("api.port", 8080)
	viper.SetDefault("api.rate_limit", 10)
	viper.SetDefault("api.rate_burst", 30)
	viper.SetDefault("scheduler.timezone", "Asia/Jakarta")
	viper.SetDefault("scheduler.max_concurrency", 4)
	viper.SetDefault("scheduler.cron", "0 * * * *")
	viper.SetDefault("scheduler.due_window", time.Hour)
	viper.SetDefault("scheduler.monthly_day_policy", "clamp")
	viper.SetDefault("scheduler.makeup_policy", "next_business_day")
	viper.SetDefault("scheduler.makeup_lookahead_days", 7)
	viper.SetDefault("scheduler.history_limit", 50)
	viper.SetDefault("holiday.source", "database")
	viper.SetDefault("holiday.base_url", "https://date.nager.at")
	viper.SetDefault("holiday.country_code", "ID")
	viper.SetDefault("holiday.timeout", 10*time.Second)
	viper.SetDefault("holiday.max_request_per_minute", 30)
	viper.SetDefault("holiday.cache_expiration", 12*time.Hour)
	viper.SetDefault("holiday.negative_cache_expiration", time.Minute)
	viper.SetDefault("cache.default_expiration", time.Hour)
	viper.SetDefault("cache.cleanup_interval", 10*time.Minute)
	viper.SetDefault("event.driver", "log")
	viper.SetDefault("event.channel", "scheduled_task.materialized")
}

func Load() (*Config, error) {
	// .env is optional; real environment variables still win over it.
	_ = godotenv.Load()

	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AddConfigPath(".")
	viper.AutomaticEnv()
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		fmt.Println("No config file loaded:", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.Scheduler.MaxConcurrency <= 0 {
		cfg.Scheduler.MaxConcurrency = 1
	}
	if _, err := time.LoadLocation(cfg.Scheduler.Timezone); err != nil {
		return nil, fmt.Errorf("invalid scheduler timezone %q: %w", cfg.Scheduler.Timezone, err)
	}

	return &cfg, nil
}
