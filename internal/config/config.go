// Package config loads taskhub configuration.
// Priority: environment variables > optional YAML file (TASKHUB_CONFIG) > defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Email delivery modes.
const (
	EmailModeLog   = "log"
	EmailModeSMTP  = "smtp"
	EmailModeKafka = "kafka"
)

type ServerConfig struct {
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// SessionConfig controls cookie binding and lifetime of login sessions.
type SessionConfig struct {
	CookieName       string        `yaml:"cookie_name"`
	TTL              time.Duration `yaml:"ttl"`
	ActivityDebounce time.Duration `yaml:"activity_debounce"`
	// Secure marks the cookie Secure. Only switch off for plain-HTTP local development.
	Secure bool `yaml:"secure"`
}

type ReminderConfig struct {
	CronSecret  string        `yaml:"cron_secret"`
	Interval    time.Duration `yaml:"interval"`
	Concurrency int           `yaml:"concurrency"`
	AppURL      string        `yaml:"app_url"`
	LockTTL     time.Duration `yaml:"lock_ttl"`
}

// EmailConfig replaces ad-hoc SMTP globals; it is handed to the sender at construction.
type EmailConfig struct {
	Mode     string `yaml:"mode"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	FromName string `yaml:"from_name"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers       string `yaml:"brokers"`
	Topic         string `yaml:"topic"`
	DLQTopic      string `yaml:"dlq_topic"`
	ConsumerGroup string `yaml:"consumer_group"`
	MaxRetries    int    `yaml:"max_retries"`
}

type ConsulConfig struct {
	Addr        string `yaml:"addr"`
	Token       string `yaml:"token"`
	ServiceHost string `yaml:"service_host"`
}

// Config is the full application configuration shared by all binaries.
type Config struct {
	Env      string         `yaml:"env"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Session  SessionConfig  `yaml:"session"`
	Reminder ReminderConfig `yaml:"reminder"`
	Email    EmailConfig    `yaml:"email"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Consul   ConsulConfig   `yaml:"consul"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Env: "development",
		Server: ServerConfig{
			Port:           8080,
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   60 * time.Second,
			IdleTimeout:    120 * time.Second,
			AllowedOrigins: []string{"http://localhost:5173"},
		},
		Database: DatabaseConfig{MaxOpenConns: 20},
		Session: SessionConfig{
			CookieName:       "session",
			TTL:              7 * 24 * time.Hour,
			ActivityDebounce: 5 * time.Minute,
			Secure:           true,
		},
		Reminder: ReminderConfig{
			Interval:    time.Hour,
			Concurrency: 4,
			AppURL:      "http://localhost:5173",
			LockTTL:     10 * time.Minute,
		},
		Email: EmailConfig{
			Mode:     EmailModeLog,
			From:     "noreply@example.com",
			FromName: "Taskhub",
		},
		Redis: RedisConfig{},
		Kafka: KafkaConfig{
			Topic:         "email-events",
			DLQTopic:      "email-events-dlq",
			ConsumerGroup: "taskhub-mailer",
			MaxRetries:    3,
		},
		Consul: ConsulConfig{ServiceHost: "localhost"},
	}
}

// Load reads defaults, then the YAML file named by TASKHUB_CONFIG (if any), then env overrides.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("TASKHUB_CONFIG"); path != "" {
		if err := loadYAML(path, cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func loadYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	envString("APP_ENV", &cfg.Env)

	envInt("PORT", &cfg.Server.Port)
	envDuration("SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	envDuration("SERVER_IDLE_TIMEOUT", &cfg.Server.IdleTimeout)
	envList("CORS_ALLOWED_ORIGINS", &cfg.Server.AllowedOrigins)

	envString("DATABASE_URL", &cfg.Database.URL)
	envInt("DB_MAX_OPEN_CONNS", &cfg.Database.MaxOpenConns)

	envString("SESSION_COOKIE_NAME", &cfg.Session.CookieName)
	envDuration("SESSION_TTL", &cfg.Session.TTL)
	envDuration("SESSION_ACTIVITY_DEBOUNCE", &cfg.Session.ActivityDebounce)
	envBool("SESSION_COOKIE_SECURE", &cfg.Session.Secure)

	envString("CRON_SECRET", &cfg.Reminder.CronSecret)
	envDuration("REMINDER_INTERVAL", &cfg.Reminder.Interval)
	envInt("REMINDER_CONCURRENCY", &cfg.Reminder.Concurrency)
	envString("APP_URL", &cfg.Reminder.AppURL)
	envDuration("REMINDER_LOCK_TTL", &cfg.Reminder.LockTTL)

	envString("EMAIL_MODE", &cfg.Email.Mode)
	envString("SMTP_HOST", &cfg.Email.Host)
	envInt("SMTP_PORT", &cfg.Email.Port)
	envString("SMTP_USER", &cfg.Email.User)
	envString("SMTP_PASSWORD", &cfg.Email.Password)
	envString("SMTP_FROM", &cfg.Email.From)
	envString("SMTP_FROM_NAME", &cfg.Email.FromName)

	envString("REDIS_ADDR", &cfg.Redis.Addr)
	envString("REDIS_PASSWORD", &cfg.Redis.Password)
	envInt("REDIS_DB", &cfg.Redis.DB)

	envString("KAFKA_BROKERS", &cfg.Kafka.Brokers)
	envString("KAFKA_TOPIC_EMAIL_EVENTS", &cfg.Kafka.Topic)
	envString("KAFKA_TOPIC_EMAIL_DLQ", &cfg.Kafka.DLQTopic)
	envString("KAFKA_CONSUMER_GROUP", &cfg.Kafka.ConsumerGroup)
	envInt("KAFKA_MAX_RETRIES", &cfg.Kafka.MaxRetries)

	envString("CONSUL_HTTP_ADDR", &cfg.Consul.Addr)
	envString("CONSUL_HTTP_TOKEN", &cfg.Consul.Token)
	envString("SERVICE_HOST", &cfg.Consul.ServiceHost)
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
