package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Environment variables consulted after the config file.
const (
	EnvDailyQuota   = "EMAIL_DAILY_QUOTA"
	EnvSMTPPassword = "SMTP_PASSWORD"
)

type Config struct {
	Quota    QuotaConfig    `toml:"quota"`
	Monitor  MonitorConfig  `toml:"monitor"`
	Receiver ReceiverConfig `toml:"receiver"`
	Admin    AdminConfig    `toml:"admin"`
	Alerts   AlertsConfig   `toml:"alerts"`
	Display  DisplayConfig  `toml:"display"`
	Storage  StorageConfig  `toml:"storage"`
	Archive  ArchiveConfig  `toml:"archive"`
	SMTP     SMTPConfig     `toml:"smtp"`
	Log      LogConfig      `toml:"log"`
}

type QuotaConfig struct {
	DailyLimit int `toml:"daily_limit"`
}

type MonitorConfig struct {
	MaxEvents          int `toml:"max_events"`
	AverageWindow      int `toml:"average_window"`
	RetainedOnReset    int `toml:"retained_on_reset"`
	ResetIntervalHours int `toml:"reset_interval_hours"`
}

type ReceiverConfig struct {
	GRPCPort int    `toml:"grpc_port"`
	HTTPPort int    `toml:"http_port"`
	Bind     string `toml:"bind"`
}

type AdminConfig struct {
	Enabled bool   `toml:"enabled"`
	Bind    string `toml:"bind"`
	Port    int    `toml:"port"`
}

type AlertsConfig struct {
	DedupMinutes            int                `toml:"dedup_minutes"`
	EvaluateIntervalSeconds int                `toml:"evaluate_interval_seconds"`
	Notifications           NotificationConfig `toml:"notifications"`
}

type NotificationConfig struct {
	SystemNotify bool `toml:"system_notify"`
}

type DisplayConfig struct {
	RefreshRateMS int `toml:"refresh_rate_ms"`
	RecentEvents  int `toml:"recent_events"`
}

type StorageConfig struct {
	DBPath               string `toml:"db_path"`
	RetentionDays        int    `toml:"retention_days"`
	SummaryRetentionDays int    `toml:"summary_retention_days"`
}

// ArchiveConfig controls upload of closed statistics epochs to S3. An empty
// bucket disables archiving.
type ArchiveConfig struct {
	S3Bucket string `toml:"s3_bucket"`
	S3Prefix string `toml:"s3_prefix"`
	Region   string `toml:"region"`
}

// SMTPConfig configures the outbound mail transport. An empty host selects
// the no-op transport.
type SMTPConfig struct {
	Host           string `toml:"host"`
	Port           int    `toml:"port"`
	Username       string `toml:"username"`
	Password       string `toml:"password"`
	From           string `toml:"from"`
	FromName       string `toml:"from_name"`
	TLS            string `toml:"tls"`
	SkipVerify     bool   `toml:"skip_verify"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	BaseURL        string `toml:"base_url"`
	AppName        string `toml:"app_name"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	File   string `toml:"file"`
}

type LoadResult struct {
	Config   Config
	Warnings []string
}

// DefaultConfig returns the settings used for every key absent from the
// config file.
func DefaultConfig() Config {
	return Config{
		Quota: QuotaConfig{DailyLimit: 100},
		Monitor: MonitorConfig{
			MaxEvents:          1000,
			AverageWindow:      100,
			RetainedOnReset:    100,
			ResetIntervalHours: 24,
		},
		Receiver: ReceiverConfig{
			GRPCPort: 4317,
			HTTPPort: 4318,
			Bind:     "127.0.0.1",
		},
		Admin: AdminConfig{
			Enabled: true,
			Bind:    "127.0.0.1",
			Port:    9464,
		},
		Alerts: AlertsConfig{
			DedupMinutes:            15,
			EvaluateIntervalSeconds: 30,
			Notifications:           NotificationConfig{SystemNotify: true},
		},
		Display: DisplayConfig{
			RefreshRateMS: 1000,
			RecentEvents:  10,
		},
		Storage: StorageConfig{
			DBPath:               defaultDBPath(),
			RetentionDays:        7,
			SummaryRetentionDays: 90,
		},
		Archive: ArchiveConfig{
			S3Prefix: "mailwatch",
		},
		SMTP: SMTPConfig{
			Port:           587,
			From:           "noreply@fancyplanties.app",
			FromName:       "Fancy Planties",
			TLS:            "starttls",
			TimeoutSeconds: 30,
			BaseURL:        "http://localhost:3000",
			AppName:        "Fancy Planties",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// ResetInterval returns the statistics epoch length.
func (c MonitorConfig) ResetInterval() time.Duration {
	return time.Duration(c.ResetIntervalHours) * time.Hour
}

// Timeout returns the SMTP dial and session timeout.
func (c SMTPConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "mailwatch", "config.toml")
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "share", "mailwatch", "mailwatch.db")
}

func Load() (*LoadResult, error) {
	return LoadFrom(defaultConfigPath())
}

// LoadFrom reads the config file at path. A missing file is not an error:
// defaults and environment overrides still apply.
func LoadFrom(path string) (*LoadResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		data = nil
	}
	return load(string(data), os.Getenv)
}

func LoadFromString(data string) (*LoadResult, error) {
	return load(data, os.Getenv)
}

func load(data string, getenv func(string) string) (*LoadResult, error) {
	result := &LoadResult{Config: DefaultConfig()}

	if data != "" {
		// Decoding into the defaulted struct leaves every absent key at its
		// default value.
		md, err := toml.Decode(data, &result.Config)
		if err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
		for _, key := range md.Undecoded() {
			result.Warnings = append(result.Warnings, fmt.Sprintf("unknown config key: %q", key.String()))
		}
	}

	result.Warnings = append(result.Warnings, applyEnv(&result.Config, getenv)...)

	if err := validate(&result.Config); err != nil {
		return nil, err
	}
	return result, nil
}

func applyEnv(cfg *Config, getenv func(string) string) []string {
	var warnings []string

	if v := getenv(EnvDailyQuota); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n < 0 {
			warnings = append(warnings, fmt.Sprintf("ignoring %s=%q: not a non-negative integer", EnvDailyQuota, v))
		} else {
			cfg.Quota.DailyLimit = n
		}
	}
	if v := getenv(EnvSMTPPassword); v != "" {
		cfg.SMTP.Password = v
	}

	return warnings
}

func validPort(p int) bool {
	return p >= 1 && p <= 65535
}

func validate(cfg *Config) error {
	var errs []string

	if cfg.Quota.DailyLimit < 0 {
		errs = append(errs, fmt.Sprintf("quota daily_limit must be non-negative, got %d", cfg.Quota.DailyLimit))
	}

	if cfg.Monitor.MaxEvents < 1 {
		errs = append(errs, fmt.Sprintf("monitor max_events must be positive, got %d", cfg.Monitor.MaxEvents))
	}
	if cfg.Monitor.AverageWindow < 1 {
		errs = append(errs, fmt.Sprintf("monitor average_window must be positive, got %d", cfg.Monitor.AverageWindow))
	}
	if cfg.Monitor.RetainedOnReset < 0 || cfg.Monitor.RetainedOnReset > cfg.Monitor.MaxEvents {
		errs = append(errs, fmt.Sprintf("monitor retained_on_reset must be 0-%d, got %d", cfg.Monitor.MaxEvents, cfg.Monitor.RetainedOnReset))
	}
	if cfg.Monitor.ResetIntervalHours < 1 {
		errs = append(errs, fmt.Sprintf("monitor reset_interval_hours must be positive, got %d", cfg.Monitor.ResetIntervalHours))
	}

	if !validPort(cfg.Receiver.GRPCPort) {
		errs = append(errs, fmt.Sprintf("grpc_port must be 1-65535, got %d", cfg.Receiver.GRPCPort))
	}
	if !validPort(cfg.Receiver.HTTPPort) {
		errs = append(errs, fmt.Sprintf("http_port must be 1-65535, got %d", cfg.Receiver.HTTPPort))
	}
	if cfg.Admin.Enabled && !validPort(cfg.Admin.Port) {
		errs = append(errs, fmt.Sprintf("admin port must be 1-65535, got %d", cfg.Admin.Port))
	}

	if cfg.Alerts.DedupMinutes < 0 {
		errs = append(errs, fmt.Sprintf("alerts dedup_minutes must be non-negative, got %d", cfg.Alerts.DedupMinutes))
	}
	if cfg.Alerts.EvaluateIntervalSeconds < 1 {
		errs = append(errs, fmt.Sprintf("alerts evaluate_interval_seconds must be positive, got %d", cfg.Alerts.EvaluateIntervalSeconds))
	}

	if cfg.Display.RefreshRateMS < 1 {
		errs = append(errs, fmt.Sprintf("refresh_rate_ms must be positive, got %d", cfg.Display.RefreshRateMS))
	}
	if cfg.Display.RecentEvents < 1 {
		errs = append(errs, fmt.Sprintf("recent_events must be positive, got %d", cfg.Display.RecentEvents))
	}

	if cfg.Storage.RetentionDays <= 0 {
		errs = append(errs, fmt.Sprintf("storage retention_days must be positive, got %d", cfg.Storage.RetentionDays))
	}
	if cfg.Storage.SummaryRetentionDays <= 0 {
		errs = append(errs, fmt.Sprintf("storage summary_retention_days must be positive, got %d", cfg.Storage.SummaryRetentionDays))
	}

	if cfg.SMTP.Host != "" {
		if !validPort(cfg.SMTP.Port) {
			errs = append(errs, fmt.Sprintf("smtp port must be 1-65535, got %d", cfg.SMTP.Port))
		}
		switch cfg.SMTP.TLS {
		case "starttls", "implicit", "none":
		default:
			errs = append(errs, fmt.Sprintf("smtp tls must be starttls, implicit or none, got %q", cfg.SMTP.TLS))
		}
		if cfg.SMTP.TimeoutSeconds < 1 {
			errs = append(errs, fmt.Sprintf("smtp timeout_seconds must be positive, got %d", cfg.SMTP.TimeoutSeconds))
		}
		if cfg.SMTP.From == "" {
			errs = append(errs, "smtp from must be set when smtp host is set")
		}
	}

	switch strings.ToLower(cfg.Log.Level) {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled":
	default:
		errs = append(errs, fmt.Sprintf("log level %q is not recognised", cfg.Log.Level))
	}
	switch cfg.Log.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Sprintf("log format must be console or json, got %q", cfg.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation error: %s", strings.Join(errs, "; "))
	}
	return nil
}
