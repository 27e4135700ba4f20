// Command reminders runs the reminder job in-process, once or on an interval.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskhub/internal/config"
	"taskhub/internal/database"
	"taskhub/internal/logger"
	"taskhub/internal/reminder"
	"taskhub/internal/session"

	_ "github.com/joho/godotenv/autoload"
	flag "github.com/spf13/pflag"
)

func main() {
	lgr := logger.New("taskhub-reminders")

	cfg, err := config.Load()
	if err != nil {
		lgr.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	once := flag.Bool("once", false, "run a single reminder pass and exit")
	interval := flag.Duration("interval", cfg.Reminder.Interval, "time between reminder passes")
	flag.Parse()

	if err := config.Validate(cfg); err != nil {
		lgr.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	if !*once && *interval <= 0 {
		lgr.Error("Interval must be positive", "interval", interval.String())
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	dispatcher, cleanup, err := reminder.FromConfig(ctx, cfg, db, lgr)
	if err != nil {
		lgr.Error("Failed to set up reminders", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	sessions := session.NewPostgresStore(db)

	scheduler := reminder.NewScheduler(dispatcher, lgr)
	if *once {
		purgeSessions(ctx, sessions, lgr)
		if _, err := scheduler.RunOnce(ctx); err != nil {
			os.Exit(1)
		}
		return
	}

	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			purgeSessions(ctx, sessions, lgr)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	scheduler.Start(ctx, *interval)
}

func purgeSessions(ctx context.Context, store session.Store, lgr *slog.Logger) {
	n, err := session.PurgeExpired(ctx, store, time.Now())
	if err != nil {
		lgr.Warn("Failed to purge expired sessions", "error", err)
		return
	}
	if n > 0 {
		lgr.Info("Purged expired sessions", "count", n)
	}
}
