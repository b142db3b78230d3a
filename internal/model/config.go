package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Transport names for forwarding.
const (
	TransportSMTP = "smtp"
	TransportSES  = "ses"
)

// Model providers.
const (
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
)

// DefaultModelName is used when no model has been selected.
const DefaultModelName = "models/gemini-1.5-flash"

// MailboxConfig holds the non-secret mailbox settings. The password is
// resolved separately through the credential package.
type MailboxConfig struct {
	// Username is the account address used for IMAP/SMTP login and as the
	// From address of forwarded mail.
	Username string `mapstructure:"username" yaml:"username"`

	IMAPHost     string `mapstructure:"imap_host" yaml:"imap_host"`
	IMAPPort     int    `mapstructure:"imap_port" yaml:"imap_port"`
	IMAPSecurity string `mapstructure:"imap_security" yaml:"imap_security"`

	SMTPHost     string `mapstructure:"smtp_host" yaml:"smtp_host"`
	SMTPPort     int    `mapstructure:"smtp_port" yaml:"smtp_port"`
	SMTPSecurity string `mapstructure:"smtp_security" yaml:"smtp_security"`

	// Transport selects how forwards are sent ("smtp" or "ses").
	Transport string `mapstructure:"transport" yaml:"transport"`

	// SESRegion is the AWS region used when Transport is "ses".
	SESRegion string `mapstructure:"ses_region" yaml:"ses_region"`

	// SESAccessKeyID pairs with the keyring's AWS secret. Empty means the
	// default AWS credential chain.
	SESAccessKeyID string `mapstructure:"ses_access_key_id" yaml:"ses_access_key_id"`
}

// ModelConfig selects the language model used for classification.
type ModelConfig struct {
	Provider  string `mapstructure:"provider" yaml:"provider"`
	Name      string `mapstructure:"name" yaml:"name"`
	BaseURL   string `mapstructure:"base_url" yaml:"base_url"`
	MaxTokens int    `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// FetchConfig controls mailbox retrieval.
type FetchConfig struct {
	Limit int `mapstructure:"limit" yaml:"limit"`
}

// TimeoutConfig holds network timeouts in seconds.
type TimeoutConfig struct {
	ConnectSec int `mapstructure:"connect_sec" yaml:"connect_sec"`
	ReadSec    int `mapstructure:"read_sec" yaml:"read_sec"`
}

// Connect returns the connect timeout as a duration.
func (t TimeoutConfig) Connect() time.Duration {
	return time.Duration(t.ConnectSec) * time.Second
}

// Read returns the read timeout as a duration.
func (t TimeoutConfig) Read() time.Duration {
	return time.Duration(t.ReadSec) * time.Second
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Development bool   `mapstructure:"development" yaml:"development"`
	File        string `mapstructure:"file" yaml:"file"`
	MaxSizeMB   int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays  int    `mapstructure:"max_age_days" yaml:"max_age_days"`
}

// HistoryConfig controls the local audit log of routing decisions.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Mailbox     MailboxConfig `mapstructure:"mailbox" yaml:"mailbox"`
	Model       ModelConfig   `mapstructure:"model" yaml:"model"`
	Departments Directory     `mapstructure:"departments" yaml:"departments"`
	Fetch       FetchConfig   `mapstructure:"fetch" yaml:"fetch"`
	Timeouts    TimeoutConfig `mapstructure:"timeouts" yaml:"timeouts"`
	Logging     LoggingConfig `mapstructure:"logging" yaml:"logging"`
	History     HistoryConfig `mapstructure:"history" yaml:"history"`
}

// DefaultConfigDir returns ~/.config/mailroute, or "." when the home
// directory cannot be determined.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "mailroute")
}

// DefaultConfigPath returns the default path for the configuration file.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// defaultAppConfig returns a configuration pointed at Gmail with the stock
// departments.
func defaultAppConfig() *AppConfig {
	dir := DefaultConfigDir()
	return &AppConfig{
		Mailbox: MailboxConfig{
			IMAPHost:     "imap.gmail.com",
			IMAPPort:     993,
			IMAPSecurity: "tls",
			SMTPHost:     "smtp.gmail.com",
			SMTPPort:     587,
			SMTPSecurity: "starttls",
			Transport:    TransportSMTP,
		},
		Model: ModelConfig{
			Provider:  ProviderGemini,
			Name:      DefaultModelName,
			MaxTokens: 1024,
		},
		Departments: DefaultDepartments(),
		Fetch:       FetchConfig{Limit: 10},
		Timeouts:    TimeoutConfig{ConnectSec: 15, ReadSec: 30},
		Logging: LoggingConfig{
			Level:      "info",
			File:       filepath.Join(dir, "mailroute.log"),
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    filepath.Join(dir, "history.db"),
		},
	}
}

// newViper returns a viper instance with defaults and MAILROUTE_* env
// overrides registered.
func newViper(path string) *viper.Viper {
	d := defaultAppConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("MAILROUTE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("mailbox.username", d.Mailbox.Username)
	v.SetDefault("mailbox.imap_host", d.Mailbox.IMAPHost)
	v.SetDefault("mailbox.imap_port", d.Mailbox.IMAPPort)
	v.SetDefault("mailbox.imap_security", d.Mailbox.IMAPSecurity)
	v.SetDefault("mailbox.smtp_host", d.Mailbox.SMTPHost)
	v.SetDefault("mailbox.smtp_port", d.Mailbox.SMTPPort)
	v.SetDefault("mailbox.smtp_security", d.Mailbox.SMTPSecurity)
	v.SetDefault("mailbox.transport", d.Mailbox.Transport)
	v.SetDefault("mailbox.ses_region", d.Mailbox.SESRegion)
	v.SetDefault("mailbox.ses_access_key_id", d.Mailbox.SESAccessKeyID)
	v.SetDefault("model.provider", d.Model.Provider)
	v.SetDefault("model.name", d.Model.Name)
	v.SetDefault("model.base_url", d.Model.BaseURL)
	v.SetDefault("model.max_tokens", d.Model.MaxTokens)
	v.SetDefault("fetch.limit", d.Fetch.Limit)
	v.SetDefault("timeouts.connect_sec", d.Timeouts.ConnectSec)
	v.SetDefault("timeouts.read_sec", d.Timeouts.ReadSec)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.development", d.Logging.Development)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.max_size_mb", d.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", d.Logging.MaxBackups)
	v.SetDefault("logging.max_age_days", d.Logging.MaxAgeDays)
	v.SetDefault("history.enabled", d.History.Enabled)
	v.SetDefault("history.path", d.History.Path)

	return v
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, defaults (with env overrides) are returned.
func LoadConfig(path string) (*AppConfig, error) {
	v := newViper(path)

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if len(cfg.Departments) == 0 {
		cfg.Departments = DefaultDepartments()
	}
	if err := cfg.Departments.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if cfg.Model.Name == "" {
		cfg.Model.Name = DefaultModelName
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed. Secrets are never part of
// AppConfig, so nothing sensitive is written.
func SaveConfig(path string, cfg *AppConfig) error {
	if err := cfg.Departments.Validate(); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("mailbox", cfg.Mailbox)
	v.Set("model", cfg.Model)
	v.Set("departments", cfg.Departments)
	v.Set("fetch", cfg.Fetch)
	v.Set("timeouts", cfg.Timeouts)
	v.Set("logging", cfg.Logging)
	v.Set("history", cfg.History)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
