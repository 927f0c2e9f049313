// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Portal    PortalConfig    `mapstructure:"portal"`
	Robot     RobotConfig     `mapstructure:"robot"`
	Download  DownloadConfig  `mapstructure:"download"`
	DB        DBConfig        `mapstructure:"db"`
	Storage   StorageConfig   `mapstructure:"storage"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// RateLimitConfig throttles API clients by remote address.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// PortalConfig holds the hand-mapped locators of the breach portal.
type PortalConfig struct {
	URL           string `mapstructure:"url"`
	ReadySelector string `mapstructure:"ready_selector"`
	ArchiveTab    string `mapstructure:"archive_tab_xpath"`
	CSVButton     string `mapstructure:"csv_button_xpath"`
}

// RobotConfig configures the browser session.
type RobotConfig struct {
	Headless          bool          `mapstructure:"headless"`
	UserAgent         string        `mapstructure:"user_agent"`
	ChromePath        string        `mapstructure:"chrome_path"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
	LocateTimeout     time.Duration `mapstructure:"locate_timeout"`
	SettleDelay       time.Duration `mapstructure:"settle_delay"`
	DownloadStartWait time.Duration `mapstructure:"download_start_wait"`
	ProcessFamily     []string      `mapstructure:"process_family"`
}

// DownloadConfig controls where reports land and how long to wait for them.
type DownloadConfig struct {
	Dir          string        `mapstructure:"dir"`
	ReportName   string        `mapstructure:"report_name"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	Markers      []string      `mapstructure:"markers"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// StorageConfig selects where raw report snapshots are archived.
type StorageConfig struct {
	GCSBucket    string `mapstructure:"gcs_bucket"`
	LocalBaseDir string `mapstructure:"local_base_dir"`
	Prefix       string `mapstructure:"prefix"`
	ContentType  string `mapstructure:"content_type"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BREACHWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("rate_limit.requests_per_second", 0)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("portal.url", "https://ocrportal.hhs.gov/ocr/breach/breach_report.jsf")
	v.SetDefault("portal.ready_selector", "#ocrForm")
	v.SetDefault("portal.archive_tab_xpath", "/html/body/div[2]/div[2]/div/div[2]/form/div[1]/div/button[2]/span")
	v.SetDefault("portal.csv_button_xpath", `//*[@id="ocrForm:j_idt365"]`)
	v.SetDefault("robot.headless", true)
	v.SetDefault("robot.navigation_timeout", "30s")
	v.SetDefault("robot.locate_timeout", "12s")
	v.SetDefault("robot.settle_delay", "5s")
	v.SetDefault("robot.download_start_wait", "10s")
	v.SetDefault("robot.process_family", []string{"chrome", "chromium", "headless_shell"})
	v.SetDefault("download.dir", "data_downloads")
	v.SetDefault("download.report_name", "breach_report.csv")
	v.SetDefault("download.poll_interval", "20s")
	v.SetDefault("download.timeout", "60s")
	v.SetDefault("download.markers", []string{"part", "crdownload"})
	v.SetDefault("db.table", "breaches")
	v.SetDefault("storage.prefix", "reports")
	v.SetDefault("storage.content_type", "text/csv; charset=utf-8")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.RateLimit.RequestsPerSecond < 0 {
		return fmt.Errorf("rate_limit.requests_per_second must be >= 0")
	}
	if strings.TrimSpace(c.Portal.URL) == "" {
		return fmt.Errorf("portal.url is required")
	}
	if strings.TrimSpace(c.Download.Dir) == "" {
		return fmt.Errorf("download.dir is required")
	}
	if strings.TrimSpace(c.Download.ReportName) == "" {
		return fmt.Errorf("download.report_name is required")
	}
	if c.Download.PollInterval <= 0 {
		return fmt.Errorf("download.poll_interval must be > 0")
	}
	if c.Download.Timeout <= 0 {
		return fmt.Errorf("download.timeout must be > 0")
	}
	if c.Robot.NavigationTimeout <= 0 {
		return fmt.Errorf("robot.navigation_timeout must be > 0")
	}
	if c.Robot.LocateTimeout <= 0 {
		return fmt.Errorf("robot.locate_timeout must be > 0")
	}
	if c.Robot.SettleDelay < 0 || c.Robot.DownloadStartWait < 0 {
		return fmt.Errorf("robot delays must be >= 0")
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	return nil
}
