// Package session issues, validates and destroys login sessions.
// Records live in the relational store; the token reaches the client through a
// Transport (an HttpOnly cookie in production). Nothing is cached in-process.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"taskhub/internal/clock"
	"taskhub/internal/database"
)

const (
	// DefaultTTL is the fixed lifetime of a session. Activity never extends it.
	DefaultTTL = 7 * 24 * time.Hour
	// DefaultActivityDebounce bounds how often LastActiveAt is rewritten.
	DefaultActivityDebounce = 5 * time.Minute

	tokenBytes = 32
)

var (
	// ErrNotFound is returned by a Store when no record exists for a token
	ErrNotFound = errors.New("session not found")
)

// Manager defines the interface for session management operations
type Manager interface {
	Create(ctx context.Context, t Transport, userID, tenantID string, meta Metadata) (*Session, error)
	// Get returns (nil, nil) for an unauthenticated caller: no token, unknown
	// token and expired token all look the same.
	Get(ctx context.Context, t Transport) (*Identity, error)
	Destroy(ctx context.Context, t Transport) error
	DestroyAllForUser(ctx context.Context, userID string) error
}

// Options tunes a Manager. Zero values fall back to the defaults above.
type Options struct {
	TTL              time.Duration
	ActivityDebounce time.Duration
	Clock            clock.Clock
	Logger           *slog.Logger
}

// manager implements Manager interface
type manager struct {
	store    Store
	ttl      time.Duration
	debounce time.Duration
	clock    clock.Clock
	logger   *slog.Logger
}

// NewManager creates a new session manager
func NewManager(store Store, opts Options) Manager {
	m := &manager{
		store:    store,
		ttl:      opts.TTL,
		debounce: opts.ActivityDebounce,
		clock:    opts.Clock,
		logger:   opts.Logger,
	}
	if m.ttl <= 0 {
		m.ttl = DefaultTTL
	}
	if m.debounce <= 0 {
		m.debounce = DefaultActivityDebounce
	}
	if m.clock == nil {
		m.clock = clock.Real()
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m
}

// Create persists a new session and binds its token to the transport.
// Nothing is bound when the store write fails.
func (m *manager) Create(ctx context.Context, t Transport, userID, tenantID string, meta Metadata) (*Session, error) {
	token, err := newToken()
	if err != nil {
		return nil, fmt.Errorf("generate session token: %w", err)
	}

	now := m.clock.Now()
	sess := &Session{
		ID:           token,
		UserID:       userID,
		TenantID:     tenantID,
		CreatedAt:    now,
		ExpiresAt:    now.Add(m.ttl),
		LastActiveAt: now,
		UserAgent:    meta.UserAgent,
		IPAddress:    meta.IPAddress,
	}

	if err := m.store.Create(ctx, sess); err != nil {
		return nil, database.StorageErr("create session", err)
	}

	t.SetToken(token, sess.ExpiresAt)

	m.logger.Info("Session created",
		"user_id", userID,
		"tenant_id", tenantID,
		"session", MaskToken(token),
		"expires_at", sess.ExpiresAt)

	return sess, nil
}

// Get resolves the caller's identity from the bound token.
func (m *manager) Get(ctx context.Context, t Transport) (*Identity, error) {
	token, ok := t.Token()
	if !ok {
		return nil, nil
	}

	sess, err := m.store.Get(ctx, token)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, database.StorageErr("get session", err)
	}

	now := m.clock.Now()
	if sess.Expired(now) {
		if err := m.store.Delete(ctx, token); err != nil {
			m.logger.Warn("Failed to delete expired session",
				"session", MaskToken(token),
				"error", err)
		}
		return nil, nil
	}

	// Concurrent requests may both pass this check; one extra write is fine.
	if now.Sub(sess.LastActiveAt) > m.debounce {
		if err := m.store.Touch(ctx, token, now); err != nil {
			m.logger.Warn("Failed to record session activity",
				"session", MaskToken(token),
				"error", err)
		}
	}

	return &Identity{UserID: sess.UserID, TenantID: sess.TenantID}, nil
}

// Destroy unbinds the token and removes its record. Safe to call without a session.
func (m *manager) Destroy(ctx context.Context, t Transport) error {
	token, ok := t.Token()
	t.ClearToken()
	if !ok {
		return nil
	}

	if err := m.store.Delete(ctx, token); err != nil {
		return database.StorageErr("delete session", err)
	}
	return nil
}

// DestroyAllForUser removes every session owned by userID.
func (m *manager) DestroyAllForUser(ctx context.Context, userID string) error {
	n, err := m.store.DeleteByUser(ctx, userID)
	if err != nil {
		return database.StorageErr("delete user sessions", err)
	}
	m.logger.Info("Sessions revoked", "user_id", userID, "count", n)
	return nil
}

func newToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
