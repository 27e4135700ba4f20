package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskhub/internal/config"
	"taskhub/internal/consul"
	"taskhub/internal/database"
	"taskhub/internal/logger"
	"taskhub/internal/reminder"
	"taskhub/internal/server"
	"taskhub/internal/session"

	"github.com/gin-gonic/gin"
	_ "github.com/joho/godotenv/autoload"
)

func main() {
	lgr := logger.New("taskhub-api")
	lgr.Info("Starting taskhub API...")

	cfg, err := config.Load()
	if err != nil {
		lgr.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := config.Validate(cfg); err != nil {
		lgr.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	db, err := database.New(ctx, database.Options{URL: cfg.Database.URL, MaxOpenConns: cfg.Database.MaxOpenConns})
	if err != nil {
		lgr.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db, lgr); err != nil {
		lgr.Error("Failed to apply migrations", "error", err)
		os.Exit(1)
	}

	sessions := session.NewManager(session.NewPostgresStore(db), session.Options{
		TTL:              cfg.Session.TTL,
		ActivityDebounce: cfg.Session.ActivityDebounce,
		Logger:           lgr,
	})

	dispatcher, closeReminders, err := reminder.FromConfig(ctx, cfg, db, lgr)
	if err != nil {
		lgr.Error("Failed to set up reminders", "error", err)
		os.Exit(1)
	}
	defer closeReminders()

	if cfg.Reminder.CronSecret == "" {
		lgr.Warn("CRON_SECRET is not set; the reminder trigger endpoint will reject every call")
	}

	router := server.NewRouter(server.Deps{
		Config:    cfg,
		DB:        db,
		Sessions:  sessions,
		Reminders: dispatcher,
		Logger:    lgr,
	})
	srv := server.New(cfg.Server, router)

	deregister := func() {}
	if client, err := consul.NewClient(cfg.Consul); err == nil {
		svc := consul.HTTPService("taskhub-api", cfg.Consul.ServiceHost, cfg.Server.Port, "api", "http")
		if deregister, err = consul.Announce(client, svc, lgr); err != nil {
			lgr.Error("Failed to register with Consul", "error", err)
			os.Exit(1)
		}
	} else if !errors.Is(err, consul.ErrDisabled) {
		lgr.Error("Failed to create Consul client", "error", err)
		os.Exit(1)
	}

	go func() {
		lgr.Info("HTTP server listening", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lgr.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	lgr.Info("Shutting down taskhub API...")
	deregister()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lgr.Error("Server forced to shutdown", "error", err)
	}

	lgr.Info("taskhub API stopped")
}
