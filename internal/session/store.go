package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"taskhub/internal/database"
)

// Store defines the interface for session storage operations
type Store interface {
	Create(ctx context.Context, s *Session) error
	// Get returns ErrNotFound when no record exists for id.
	Get(ctx context.Context, id string) (*Session, error)
	Touch(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
	DeleteByUser(ctx context.Context, userID string) (int64, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// postgresStore implements Store on the sessions table
type postgresStore struct {
	db database.Service
}

// NewPostgresStore creates a new Postgres-backed session store
func NewPostgresStore(db database.Service) Store {
	return &postgresStore{db: db}
}

func (s *postgresStore) Create(ctx context.Context, sess *Session) error {
	const q = `
		INSERT INTO sessions (id, user_id, tenant_id, created_at, expires_at, last_active_at, user_agent, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.Exec(ctx, q,
		sess.ID, sess.UserID, sess.TenantID,
		sess.CreatedAt, sess.ExpiresAt, sess.LastActiveAt,
		nullString(sess.UserAgent), nullString(sess.IPAddress),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *postgresStore) Get(ctx context.Context, id string) (*Session, error) {
	const q = `
		SELECT id, user_id, tenant_id, created_at, expires_at, last_active_at, user_agent, ip_address
		FROM sessions
		WHERE id = $1
	`
	var (
		sess      Session
		userAgent sql.NullString
		ipAddress sql.NullString
	)
	err := s.db.QueryRow(ctx, q, id).Scan(
		&sess.ID, &sess.UserID, &sess.TenantID,
		&sess.CreatedAt, &sess.ExpiresAt, &sess.LastActiveAt,
		&userAgent, &ipAddress,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select session: %w", err)
	}
	sess.UserAgent = userAgent.String
	sess.IPAddress = ipAddress.String
	return &sess, nil
}

func (s *postgresStore) Touch(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.Exec(ctx, `UPDATE sessions SET last_active_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

func (s *postgresStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *postgresStore) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	res, err := s.db.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete user sessions: %w", err)
	}
	return res.RowsAffected()
}

func (s *postgresStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, before)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return res.RowsAffected()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// PurgeExpired removes every record whose expiry has passed at now.
// Get already treats those records as absent; this only reclaims rows.
func PurgeExpired(ctx context.Context, store Store, now time.Time) (int64, error) {
	n, err := store.DeleteExpired(ctx, now)
	if err != nil {
		return 0, database.StorageErr("purge expired sessions", err)
	}
	return n, nil
}
