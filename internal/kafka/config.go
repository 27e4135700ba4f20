// Package kafka wraps the confluent producer used to hand email events to the mailer.
package kafka

import (
	"errors"
	"strings"

	"taskhub/internal/config"
)

// Config holds Kafka producer configuration
type Config struct {
	Brokers           string
	EnableIdempotence bool
	Acks              string
}

// ErrNoBrokers is returned when no broker list is configured.
var ErrNoBrokers = errors.New("kafka: brokers are required")

// NewConfig builds producer settings from the application config.
func NewConfig(cfg config.KafkaConfig) (*Config, error) {
	if strings.TrimSpace(cfg.Brokers) == "" {
		return nil, ErrNoBrokers
	}
	return &Config{
		Brokers:           cfg.Brokers,
		EnableIdempotence: true,
		Acks:              "all",
	}, nil
}

// BrokersList returns brokers as a slice
func (c *Config) BrokersList() []string {
	parts := strings.Split(c.Brokers, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
