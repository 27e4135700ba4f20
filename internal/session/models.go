package session

import "time"

// Session is a persisted login. ExpiresAt is fixed at creation; activity only
// advances LastActiveAt.
type Session struct {
	ID           string    `json:"-"`
	UserID       string    `json:"user_id"`
	TenantID     string    `json:"tenant_id"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	LastActiveAt time.Time `json:"last_active_at"`
	UserAgent    string    `json:"user_agent,omitempty"`
	IPAddress    string    `json:"ip_address,omitempty"`
}

// Expired reports whether the session is no longer usable at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Identity is what an authenticated request knows about its caller.
type Identity struct {
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id"`
}

// Metadata is optional request context recorded alongside a new session.
type Metadata struct {
	UserAgent string
	IPAddress string
}
