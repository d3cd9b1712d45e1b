package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"barbershop/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Exports    ExportConfig     `yaml:"exports"`
	Google     GoogleConfig     `yaml:"google"`
	Scheduling SchedulingConfig `yaml:"scheduling"`
}

// SchedulingConfig controls how days are resolved and how bookings are guarded.
type SchedulingConfig struct {
	Timezone                  string        `yaml:"timezone"`
	FallbackPolicy            string        `yaml:"fallback_policy"`
	DefaultSlotMinutes        int           `yaml:"default_slot_minutes"`
	DefaultAppointmentMinutes int           `yaml:"default_appointment_minutes"`
	MaxBookingDays            int           `yaml:"max_booking_days"`
	CancelCutoff              time.Duration `yaml:"cancel_cutoff"`
	Reservation               string        `yaml:"reservation"`
	ReservationTTL            time.Duration `yaml:"reservation_ttl"`
	CacheTTL                  time.Duration `yaml:"cache_ttl"`
	ReminderTime              string        `yaml:"reminder_time"`
}

const (
	ReservationNone        = "none"
	ReservationTransaction = "transaction"
	ReservationRedis       = "redis"
)

// Location loads the configured timezone.
func (s SchedulingConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", s.Timezone, err)
	}
	return loc, nil
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	GRPC      APIGRPCConfig      `yaml:"grpc"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIGRPCConfig struct {
	Enabled    bool         `yaml:"enabled"`
	Port       int          `yaml:"port"`
	Reflection bool         `yaml:"reflection"`
	TLS        APITLSConfig `yaml:"tls"`
}

type APITLSConfig struct {
	Enabled           bool   `yaml:"enabled"`
	CertFile          string `yaml:"cert_file"`
	KeyFile           string `yaml:"key_file"`
	ClientCAFile      string `yaml:"client_ca_file"`
	RequireClientCert bool   `yaml:"require_client_cert"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type TelegramConfig struct {
	BotToken          string        `yaml:"bot_token"`
	Debug             bool          `yaml:"debug"`
	AdminIDs          []int64       `yaml:"admin_ids"`
	RateLimitMessages int           `yaml:"rate_limit_messages"`
	RateLimitWindow   time.Duration `yaml:"rate_limit_window"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"`
	FilePath   string `yaml:"file_path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

type GoogleConfig struct {
	GoogleCredentialsFile     string `yaml:"credentials_file"`
	AppointmentsSpreadsheetID string `yaml:"appointments_spreadsheet_id"`
}

// Enabled reports whether sheets sync has everything it needs.
func (g GoogleConfig) Enabled() bool {
	return g.GoogleCredentialsFile != "" && g.AppointmentsSpreadsheetID != ""
}

func Load(configPath string) (*Config, error) {
	// .env необязателен
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Предварительная замена переменных окружения в YAML
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	return c.Scheduling.Validate()
}

func (s SchedulingConfig) Validate() error {
	switch s.FallbackPolicy {
	case "closed", "open":
	default:
		return fmt.Errorf("unknown fallback policy %q", s.FallbackPolicy)
	}
	switch s.Reservation {
	case ReservationNone, ReservationTransaction, ReservationRedis:
	default:
		return fmt.Errorf("unknown reservation mode %q", s.Reservation)
	}
	if s.DefaultSlotMinutes <= 0 || s.DefaultAppointmentMinutes <= 0 {
		return fmt.Errorf("slot and appointment minutes must be positive: %w", models.ErrInvalidDuration)
	}
	if s.MaxBookingDays <= 0 {
		return errors.New("max booking days must be positive")
	}
	if s.CancelCutoff < 0 {
		return errors.New("cancel cutoff must not be negative")
	}
	if _, err := models.ParseClock(s.ReminderTime); err != nil {
		return fmt.Errorf("invalid reminder time: %w", err)
	}
	if _, err := s.Location(); err != nil {
		return err
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.API.GRPC.Port == 0 {
		c.API.GRPC.Port = 8081
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	// auth enabled by default when API is enabled
	if !c.API.Auth.Enabled {
		c.API.Auth.Enabled = true
	}
	if !c.API.HTTP.Enabled && c.API.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}
	if c.Telegram.RateLimitMessages == 0 {
		c.Telegram.RateLimitMessages = 20
	}
	if c.Telegram.RateLimitWindow == 0 {
		c.Telegram.RateLimitWindow = time.Minute
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}

	s := &c.Scheduling
	if s.Timezone == "" {
		s.Timezone = models.DefaultTimezone
	}
	if s.FallbackPolicy == "" {
		s.FallbackPolicy = "closed"
	}
	if s.DefaultSlotMinutes == 0 {
		s.DefaultSlotMinutes = models.DefaultSlotMinutes
	}
	if s.DefaultAppointmentMinutes == 0 {
		s.DefaultAppointmentMinutes = models.DefaultAppointmentMinutes
	}
	if s.MaxBookingDays == 0 {
		s.MaxBookingDays = models.DefaultMaxBookingDays
	}
	if s.CancelCutoff == 0 {
		s.CancelCutoff = models.DefaultCancelCutoff
	}
	if s.Reservation == "" {
		s.Reservation = ReservationNone
	}
	if s.ReservationTTL == 0 {
		s.ReservationTTL = models.DefaultReservationTTL
	}
	if s.CacheTTL == 0 {
		s.CacheTTL = models.DefaultCacheTTL
	}
	if s.ReminderTime == "" {
		s.ReminderTime = fmt.Sprintf("%02d:00", models.ReminderHour)
	}
}
