package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full runtime configuration, loaded from snag.yaml and
// SNAG_* environment variables.
type Config struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	Download DownloadConfig `mapstructure:"download"`
	Upload   UploadConfig   `mapstructure:"upload"`
	Server   ServerConfig   `mapstructure:"server"`
	Alerts   AlertsConfig   `mapstructure:"alerts"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type TelegramConfig struct {
	Token string `mapstructure:"token"`
	Debug bool   `mapstructure:"debug"`
}

type DownloadConfig struct {
	Dir            string        `mapstructure:"dir"`
	Workers        int           `mapstructure:"workers"`
	JobTimeout     time.Duration `mapstructure:"job_timeout"`
	MaxFileAge     time.Duration `mapstructure:"max_file_age"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
	SessionTTL     time.Duration `mapstructure:"session_ttl"`
	CookiesFile    string        `mapstructure:"cookies_file"`
	Qualities      []int         `mapstructure:"qualities"`
	DefaultQuality int           `mapstructure:"default_quality"`
	MinDiskGB      float64       `mapstructure:"min_disk_gb"`
	LockFile       string        `mapstructure:"lock_file"`
	CobaltAPIs     []string      `mapstructure:"cobalt_apis"`
	CobaltAPIKey   string        `mapstructure:"cobalt_api_key"`
}

type UploadConfig struct {
	GofileAPI string `mapstructure:"gofile_api"`
}

type ServerConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	CORSOrigins []string      `mapstructure:"cors_origins"`
	RateLimit   int           `mapstructure:"rate_limit"`
	RateWindow  time.Duration `mapstructure:"rate_window"`
}

// AlertsConfig points admin notifications at a Telegram chat. Token falls
// back to the bot token when empty; ChatID zero disables alerts.
type AlertsConfig struct {
	Token  string `mapstructure:"token"`
	ChatID int64  `mapstructure:"chat_id"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

const (
	MaxURLLength    = 2048
	ShutdownTimeout = 30 * time.Second
	JobRetention    = 1 * time.Hour
)

// Load reads configuration from the given file (or snag.yaml on the search
// path when empty), layers SNAG_* environment variables on top of the
// defaults, and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("snag")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/snag")
	}

	v.SetEnvPrefix("SNAG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.debug", false)

	v.SetDefault("download.dir", "downloads")
	v.SetDefault("download.workers", 4)
	v.SetDefault("download.job_timeout", "30m")
	v.SetDefault("download.max_file_age", "30m")
	v.SetDefault("download.sweep_interval", "10m")
	v.SetDefault("download.session_ttl", "30m")
	v.SetDefault("download.cookies_file", "cookies.txt")
	v.SetDefault("download.qualities", []int{360, 480, 720})
	v.SetDefault("download.default_quality", 720)
	v.SetDefault("download.min_disk_gb", 5.0)
	v.SetDefault("download.lock_file", "snag.lock")
	v.SetDefault("download.cobalt_apis", []string{
		"https://nuko-c.meowing.de",
		"https://subito-c.meowing.de",
		"https://cessi-c.meowing.de",
	})
	v.SetDefault("download.cobalt_api_key", "")

	v.SetDefault("upload.gofile_api", "https://api.gofile.io")

	v.SetDefault("server.enabled", true)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("server.rate_limit", 60)
	v.SetDefault("server.rate_window", "1m")

	v.SetDefault("alerts.token", "")
	v.SetDefault("alerts.chat_id", 0)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stdout")
}

func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("telegram.token is required (set SNAG_TELEGRAM_TOKEN)")
	}
	if c.Download.Dir == "" {
		return fmt.Errorf("download.dir must not be empty")
	}
	if c.Download.Workers < 1 {
		return fmt.Errorf("download.workers must be at least 1, got %d", c.Download.Workers)
	}
	if c.Download.JobTimeout <= 0 {
		return fmt.Errorf("download.job_timeout must be positive")
	}
	if len(c.Download.Qualities) == 0 {
		return fmt.Errorf("download.qualities must not be empty")
	}
	for _, q := range c.Download.Qualities {
		if q < 144 || q > 4320 {
			return fmt.Errorf("download.qualities: %d is not a sane video height", q)
		}
	}
	if c.Server.Enabled && (c.Server.Port < 1 || c.Server.Port > 65535) {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	return nil
}

// AlertToken resolves the token used for admin alerts, falling back to the
// bot token so a separate alert bot is optional.
func (c *Config) AlertToken() string {
	if c.Alerts.Token != "" {
		return c.Alerts.Token
	}
	return c.Telegram.Token
}

// QualityAllowed reports whether the requested video height is one of the
// configured selectable qualities.
func (c *Config) QualityAllowed(height int) bool {
	for _, q := range c.Download.Qualities {
		if q == height {
			return true
		}
	}
	return false
}
