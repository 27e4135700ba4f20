package session

import (
	"net/http"
	"time"
)

// Transport binds an opaque session token to the caller. The Manager only ever
// talks to this interface, never to a request or response object.
type Transport interface {
	Token() (string, bool)
	SetToken(token string, expires time.Time)
	ClearToken()
}

// CookieOptions configures the session cookie.
type CookieOptions struct {
	Name   string
	Path   string
	Domain string
	// Secure should only be false for plain-HTTP local development.
	Secure bool
}

// DefaultCookieName is the cookie carrying the session token.
const DefaultCookieName = "session"

type cookieTransport struct {
	w    http.ResponseWriter
	r    *http.Request
	opts CookieOptions

	// pending reflects a SetToken/ClearToken made earlier in the same request
	pending    *string
	hasPending bool
}

// NewCookieTransport binds the session token to an HttpOnly, SameSite=Lax cookie.
func NewCookieTransport(w http.ResponseWriter, r *http.Request, opts CookieOptions) Transport {
	if opts.Name == "" {
		opts.Name = DefaultCookieName
	}
	if opts.Path == "" {
		opts.Path = "/"
	}
	return &cookieTransport{w: w, r: r, opts: opts}
}

func (t *cookieTransport) Token() (string, bool) {
	if t.hasPending {
		if t.pending == nil {
			return "", false
		}
		return *t.pending, true
	}
	c, err := t.r.Cookie(t.opts.Name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

func (t *cookieTransport) SetToken(token string, expires time.Time) {
	http.SetCookie(t.w, &http.Cookie{
		Name:     t.opts.Name,
		Value:    token,
		Path:     t.opts.Path,
		Domain:   t.opts.Domain,
		Expires:  expires.UTC(),
		HttpOnly: true,
		Secure:   t.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	t.pending = &token
	t.hasPending = true
}

func (t *cookieTransport) ClearToken() {
	http.SetCookie(t.w, &http.Cookie{
		Name:     t.opts.Name,
		Value:    "",
		Path:     t.opts.Path,
		Domain:   t.opts.Domain,
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   t.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	t.pending = nil
	t.hasPending = true
}

// MaskToken shortens a token for logs.
func MaskToken(token string) string {
	if len(token) <= 6 {
		return "***"
	}
	return token[:6] + "..."
}
