// Package dbtest starts a throwaway Postgres for integration tests.
package dbtest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"taskhub/internal/database"
	"taskhub/internal/logger"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Start launches a Postgres container, migrates it, and returns a connected Service
// plus a teardown func. Intended for TestMain.
func Start(ctx context.Context) (database.Service, func(), error) {
	ctr, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("taskhub"),
		postgres.WithUsername("taskhub"),
		postgres.WithPassword("taskhub"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("start postgres container: %w", err)
	}

	terminate := func() {
		_ = ctr.Terminate(context.Background())
	}

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		terminate()
		return nil, nil, fmt.Errorf("connection string: %w", err)
	}

	db, err := database.New(ctx, database.Options{URL: dsn, MaxOpenConns: 10})
	if err != nil {
		terminate()
		return nil, nil, err
	}

	if err := database.Migrate(ctx, db, logger.Discard()); err != nil {
		db.Close()
		terminate()
		return nil, nil, err
	}

	return db, func() {
		db.Close()
		terminate()
	}, nil
}

// Reset empties every application table so each test starts clean.
func Reset(t testing.TB, db database.Service) {
	t.Helper()
	_, err := db.Exec(context.Background(),
		`TRUNCATE todo_labels, comments, templates, labels, todos, sessions, users, tenants CASCADE`)
	if err != nil {
		t.Fatalf("reset database: %v", err)
	}
}

// Require skips the test when no database was started (for example under -short).
func Require(t testing.TB, db database.Service) database.Service {
	t.Helper()
	if db == nil {
		t.Skip("integration database not available")
	}
	Reset(t, db)
	return db
}

// Seed inserts a tenant with one user and returns their ids.
func Seed(t testing.TB, db database.Service, tenantName, email string, remindersEnabled bool) (tenantID, userID string) {
	t.Helper()
	ctx := context.Background()

	tenantID = uuid.NewString()
	userID = uuid.NewString()

	if _, err := db.Exec(ctx, `INSERT INTO tenants (id, name) VALUES ($1, $2)`, tenantID, tenantName); err != nil {
		t.Fatalf("seed tenant: %v", err)
	}
	_, err := db.Exec(ctx, `
		INSERT INTO users (id, tenant_id, email, name, password_hash, role, email_reminders_enabled)
		VALUES ($1, $2, $3, $4, 'x', 'ADMIN', $5)`,
		userID, tenantID, email, tenantName+" admin", remindersEnabled)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return tenantID, userID
}
