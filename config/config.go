package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

type Config struct {
	ServiceName   string              `yaml:"service_name"`
	Logger        LoggerConfig        `yaml:"logger"`
	API           APIConfig           `yaml:"api"`
	Auth          AuthConfig          `yaml:"auth"`
	HTTP          HTTPConfig          `yaml:"http"`
	Redis         RedisConfig         `yaml:"redis"`
	Kafka         KafkaConfig         `yaml:"kafka"`
	Database      DatabaseConfig      `yaml:"database"`
	Booking       BookingConfig       `yaml:"booking"`
	Notifications NotificationsConfig `yaml:"notifications"`
}

type LoggerConfig struct {
	Level string `yaml:"level"`
}

type APIConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

func (a APIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

type AuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type HTTPConfig struct {
	Address      string   `yaml:"address"`
	AllowOrigins []string `yaml:"allow_origins"`
}

type RedisConfig struct {
	Addr              string `yaml:"addr"`
	Password          string `yaml:"password"`
	DB                int    `yaml:"db"`
	SessionKey        string `yaml:"session_key"`
	CarsCacheTTLSecs  int    `yaml:"cars_cache_ttl_seconds"`
	SessionTTLMinutes int    `yaml:"session_ttl_minutes"`
}

type KafkaConfig struct {
	Brokers    []string `yaml:"brokers"`
	PhaseTopic string   `yaml:"phase_topic"`
	GroupID    string   `yaml:"group_id"`
}

func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0 && k.PhaseTopic != ""
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// URL is the form golang-migrate expects.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s", d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

type BookingConfig struct {
	GracePeriodSeconds      int  `yaml:"grace_period_seconds"`
	ConfirmGraceSeconds     int  `yaml:"confirm_grace_seconds"`
	TickIntervalMillis      int  `yaml:"tick_interval_millis"`
	PollIntervalSeconds     int  `yaml:"poll_interval_seconds"`
	ListPollIntervalSeconds int  `yaml:"list_poll_interval_seconds"`
	StopOnTerminal          bool `yaml:"stop_on_terminal"`
}

func (b BookingConfig) GracePeriod() time.Duration {
	return time.Duration(b.GracePeriodSeconds) * time.Second
}

func (b BookingConfig) ConfirmGracePeriod() time.Duration {
	return time.Duration(b.ConfirmGraceSeconds) * time.Second
}

func (b BookingConfig) TickInterval() time.Duration {
	return time.Duration(b.TickIntervalMillis) * time.Millisecond
}

func (b BookingConfig) PollInterval() time.Duration {
	return time.Duration(b.PollIntervalSeconds) * time.Second
}

func (b BookingConfig) ListPollInterval() time.Duration {
	return time.Duration(b.ListPollIntervalSeconds) * time.Second
}

type NotificationsConfig struct {
	PollIntervalSeconds int `yaml:"poll_interval_seconds"`
}

func (n NotificationsConfig) PollInterval() time.Duration {
	return time.Duration(n.PollIntervalSeconds) * time.Second
}

func Default() Config {
	return Config{
		ServiceName: "rentalwatch",
		Logger:      LoggerConfig{Level: "info"},
		API:         APIConfig{BaseURL: "http://localhost:5000", TimeoutSeconds: 10},
		HTTP:        HTTPConfig{Address: ":8081", AllowOrigins: []string{"*"}},
		Redis: RedisConfig{
			Addr:              "localhost:6379",
			SessionKey:        "rentalwatch:auth-storage",
			CarsCacheTTLSecs:  60,
			SessionTTLMinutes: 24 * 60,
		},
		Kafka: KafkaConfig{PhaseTopic: "booking_phase_events", GroupID: "rentalwatch-worker"},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			User:    "postgres",
			Name:    "rentalwatch",
			SSLMode: "disable",
		},
		Booking: BookingConfig{
			GracePeriodSeconds:      300,
			ConfirmGraceSeconds:     60,
			TickIntervalMillis:      1000,
			PollIntervalSeconds:     3,
			ListPollIntervalSeconds: 30,
			StopOnTerminal:          true,
		},
		Notifications: NotificationsConfig{PollIntervalSeconds: 30},
	}
}

// LoadConfig reads path over the defaults (a missing file is fine), then
// applies .env and environment overrides.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	_ = godotenv.Load(".env")
	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}
	if c.Booking.PollIntervalSeconds <= 0 || c.Booking.ListPollIntervalSeconds <= 0 || c.Notifications.PollIntervalSeconds <= 0 {
		return errors.New("poll intervals must be positive")
	}
	if c.Booking.TickIntervalMillis <= 0 {
		return errors.New("booking.tick_interval_millis must be positive")
	}
	if c.Booking.GracePeriodSeconds <= 0 || c.Booking.ConfirmGraceSeconds <= 0 {
		return errors.New("grace periods must be positive")
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.ServiceName = cast.ToString(getOrReturnDefault("SERVICE_NAME", cfg.ServiceName))
	cfg.Logger.Level = cast.ToString(getOrReturnDefault("LOGGER_LEVEL", cfg.Logger.Level))

	cfg.API.BaseURL = cast.ToString(getOrReturnDefault("RENTAL_API_BASE_URL", cfg.API.BaseURL))
	cfg.API.TimeoutSeconds = cast.ToInt(getOrReturnDefault("RENTAL_API_TIMEOUT_SECONDS", cfg.API.TimeoutSeconds))
	cfg.Auth.Username = cast.ToString(getOrReturnDefault("RENTAL_USERNAME", cfg.Auth.Username))
	cfg.Auth.Password = cast.ToString(getOrReturnDefault("RENTAL_PASSWORD", cfg.Auth.Password))

	cfg.HTTP.Address = cast.ToString(getOrReturnDefault("HTTP_ADDRESS", cfg.HTTP.Address))

	cfg.Redis.Addr = cast.ToString(getOrReturnDefault("REDIS_ADDR", cfg.Redis.Addr))
	cfg.Redis.Password = cast.ToString(getOrReturnDefault("REDIS_PASSWORD", cfg.Redis.Password))
	cfg.Redis.DB = cast.ToInt(getOrReturnDefault("REDIS_DB", cfg.Redis.DB))

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = splitComma(brokers)
	}
	cfg.Kafka.PhaseTopic = cast.ToString(getOrReturnDefault("KAFKA_PHASE_TOPIC", cfg.Kafka.PhaseTopic))

	cfg.Database.Host = cast.ToString(getOrReturnDefault("POSTGRES_HOST", cfg.Database.Host))
	cfg.Database.Port = cast.ToInt(getOrReturnDefault("POSTGRES_PORT", cfg.Database.Port))
	cfg.Database.User = cast.ToString(getOrReturnDefault("POSTGRES_USER", cfg.Database.User))
	cfg.Database.Password = cast.ToString(getOrReturnDefault("POSTGRES_PASSWORD", cfg.Database.Password))
	cfg.Database.Name = cast.ToString(getOrReturnDefault("POSTGRES_DB", cfg.Database.Name))

	cfg.Booking.GracePeriodSeconds = cast.ToInt(getOrReturnDefault("BOOKING_GRACE_SECONDS", cfg.Booking.GracePeriodSeconds))
	cfg.Booking.PollIntervalSeconds = cast.ToInt(getOrReturnDefault("BOOKING_POLL_SECONDS", cfg.Booking.PollIntervalSeconds))
	cfg.Booking.StopOnTerminal = cast.ToBool(getOrReturnDefault("BOOKING_STOP_ON_TERMINAL", cfg.Booking.StopOnTerminal))
}

func getOrReturnDefault(key string, defaultValue interface{}) interface{} {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return defaultValue
}

func splitComma(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
