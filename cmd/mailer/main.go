// Command mailer consumes email events from Kafka and delivers them over SMTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"taskhub/internal/config"
	"taskhub/internal/consul"
	"taskhub/internal/email"
	"taskhub/internal/logger"

	"github.com/gin-gonic/gin"
	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"
)

func main() {
	lgr := logger.New("taskhub-mailer")
	lgr.Info("Starting taskhub mailer...")

	if err := config.ValidateEnv([]string{"KAFKA_BROKERS", "REDIS_ADDR"}); err != nil {
		lgr.Error("Missing mailer configuration", "error", err)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		lgr.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	port := mailerPort()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = redisClient.Ping(pingCtx).Err()
	cancel()
	if err != nil {
		lgr.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	lgr.Info("Connected to Redis", "addr", cfg.Redis.Addr)

	idempotencyStore := email.NewIdempotencyStore(redisClient, email.DefaultDedupTTL, lgr)

	// The mailer delivers; publishing again to Kafka would loop.
	mode := cfg.Email.Mode
	if mode == config.EmailModeKafka {
		mode = config.EmailModeSMTP
	}
	sender, err := email.NewSender(email.Config{
		Mode:     mode,
		Host:     cfg.Email.Host,
		Port:     cfg.Email.Port,
		User:     cfg.Email.User,
		Password: cfg.Email.Password,
		From:     cfg.Email.From,
		FromName: cfg.Email.FromName,
	}, nil, lgr)
	if err != nil {
		lgr.Error("Failed to create email sender", "error", err)
		os.Exit(1)
	}
	lgr.Info("Email sender initialized", "mode", mode)

	consumer, err := email.NewConsumer(&email.ConsumerConfig{
		Brokers:       cfg.Kafka.Brokers,
		Topic:         cfg.Kafka.Topic,
		DLQTopic:      cfg.Kafka.DLQTopic,
		ConsumerGroup: cfg.Kafka.ConsumerGroup,
		MaxRetries:    cfg.Kafka.MaxRetries,
	}, sender, idempotencyStore, lgr)
	if err != nil {
		lgr.Error("Failed to create Kafka consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		if err := consumer.Start(ctx); err != nil {
			lgr.Error("Consumer error", "error", err)
			stop()
		}
	}()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	health := email.NewHealthHandler(idempotencyStore, lgr)
	r.GET("/health", health.HealthCheck)
	r.GET("/stats", health.Stats)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	deregister := func() {}
	if client, err := consul.NewClient(cfg.Consul); err == nil {
		svc := consul.HTTPService("taskhub-mailer", cfg.Consul.ServiceHost, port, "email", "kafka-consumer")
		if deregister, err = consul.Announce(client, svc, lgr); err != nil {
			lgr.Error("Failed to register with Consul", "error", err)
			os.Exit(1)
		}
	} else if !errors.Is(err, consul.ErrDisabled) {
		lgr.Error("Failed to create Consul client", "error", err)
		os.Exit(1)
	}

	go func() {
		lgr.Info("HTTP server started", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lgr.Error("HTTP server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	lgr.Info("Shutting down taskhub mailer...")
	deregister()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lgr.Error("Server forced to shutdown", "error", err)
	}
	<-consumerDone

	lgr.Info("taskhub mailer stopped")
}

// mailerPort reads MAILER_PORT, defaulting to 8085.
func mailerPort() int {
	port, err := strconv.Atoi(config.GetEnvOrDefault("MAILER_PORT", "8085"))
	if err != nil || port <= 0 {
		return 8085
	}
	return port
}
