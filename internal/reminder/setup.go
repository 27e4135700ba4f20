package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"taskhub/internal/config"
	"taskhub/internal/database"
	"taskhub/internal/email"
	"taskhub/internal/kafka"

	"github.com/redis/go-redis/v9"
)

// FromConfig wires a Dispatcher for cfg: the configured email sender (with a
// Kafka producer in kafka mode) and a Redis lock when Redis is configured.
// The returned cleanup closes whatever was opened.
func FromConfig(ctx context.Context, cfg *config.Config, db database.Service, logger *slog.Logger) (*Dispatcher, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var publisher email.Publisher
	if cfg.Email.Mode == config.EmailModeKafka {
		kcfg, err := kafka.NewConfig(cfg.Kafka)
		if err != nil {
			return nil, nil, err
		}
		producer, err := kafka.NewProducer(kcfg, logger)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, producer.Close)
		publisher = producer
	}

	sender, err := email.NewSender(email.Config{
		Mode:     cfg.Email.Mode,
		Host:     cfg.Email.Host,
		Port:     cfg.Email.Port,
		User:     cfg.Email.User,
		Password: cfg.Email.Password,
		From:     cfg.Email.From,
		FromName: cfg.Email.FromName,
		Topic:    cfg.Kafka.Topic,
	}, publisher, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	var lock Lock
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			client.Close()
			cleanup()
			return nil, nil, fmt.Errorf("connect to redis: %w", err)
		}
		closers = append(closers, func() { client.Close() })
		lock = NewRedisLock(client, cfg.Reminder.LockTTL, logger)
		logger.Info("Reminder runs serialised through Redis", "addr", cfg.Redis.Addr)
	} else {
		lock = NewLocalLock()
	}

	d := NewDispatcher(NewPostgresStore(db), sender, lock, Options{
		Concurrency: cfg.Reminder.Concurrency,
		AppURL:      cfg.Reminder.AppURL,
		Logger:      logger,
	})
	logger.Info("Reminder dispatcher ready", "email_mode", cfg.Email.Mode, "concurrency", cfg.Reminder.Concurrency)
	return d, cleanup, nil
}
