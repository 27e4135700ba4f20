package tenant

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"taskhub/internal/database"
	"taskhub/internal/logger"
	"taskhub/internal/session"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// mockManager lets each test decide what session.Manager.Get returns.
type mockManager struct {
	getFunc func(ctx context.Context, t session.Transport) (*session.Identity, error)
}

func (m *mockManager) Create(ctx context.Context, t session.Transport, userID, tenantID string, meta session.Metadata) (*session.Session, error) {
	return nil, errors.New("not implemented")
}

func (m *mockManager) Get(ctx context.Context, t session.Transport) (*session.Identity, error) {
	return m.getFunc(ctx, t)
}

func (m *mockManager) Destroy(ctx context.Context, t session.Transport) error { return nil }

func (m *mockManager) DestroyAllForUser(ctx context.Context, userID string) error { return nil }

func newGuardedRouter(mgr session.Manager, extra ...gin.HandlerFunc) (*gin.Engine, *bool) {
	reached := false
	r := gin.New()
	handlers := append([]gin.HandlerFunc{RequireSession(mgr, session.CookieOptions{}, logger.Discard())}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		reached = true
		id, err := Require(c.Request.Context())
		if err != nil {
			c.Status(http.StatusTeapot)
			return
		}
		c.JSON(http.StatusOK, id)
	})
	r.GET("/guarded", handlers...)
	return r, &reached
}

func TestRequireSessionRejectsAnonymous(t *testing.T) {
	mgr := &mockManager{getFunc: func(ctx context.Context, tr session.Transport) (*session.Identity, error) {
		if _, ok := tr.Token(); ok {
			t.Error("expected no token on the request")
		}
		return nil, nil
	}}
	r, reached := newGuardedRouter(mgr)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/guarded", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
	if *reached {
		t.Error("handler must not run without a session")
	}
}

func TestRequireSessionStorageFailureIs500(t *testing.T) {
	mgr := &mockManager{getFunc: func(ctx context.Context, tr session.Transport) (*session.Identity, error) {
		return nil, database.StorageErr("get session", errors.New("db down"))
	}}
	r, reached := newGuardedRouter(mgr)

	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	req.AddCookie(&http.Cookie{Name: session.DefaultCookieName, Value: "tok"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
	}
	if *reached {
		t.Error("storage failure must fail closed")
	}
}

func TestRequireSessionInjectsIdentity(t *testing.T) {
	mgr := &mockManager{getFunc: func(ctx context.Context, tr session.Transport) (*session.Identity, error) {
		if tok, _ := tr.Token(); tok != "tok" {
			t.Errorf("expected cookie token, got %q", tok)
		}
		return &session.Identity{UserID: "user-1", TenantID: "tenant-1"}, nil
	}}
	r, reached := newGuardedRouter(mgr)

	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	req.AddCookie(&http.Cookie{Name: session.DefaultCookieName, Value: "tok"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK || !*reached {
		t.Fatalf("expected handler to run, got %d", w.Code)
	}
	if body := w.Body.String(); body != `{"user_id":"user-1","tenant_id":"tenant-1"}` {
		t.Errorf("unexpected body %s", body)
	}
}

func TestRequireRole(t *testing.T) {
	mgr := &mockManager{getFunc: func(ctx context.Context, tr session.Transport) (*session.Identity, error) {
		return &session.Identity{UserID: "user-1", TenantID: "tenant-1"}, nil
	}}

	tests := []struct {
		name     string
		role     Role
		err      error
		expected int
	}{
		{"admin allowed", RoleAdmin, nil, http.StatusOK},
		{"member forbidden", RoleMember, nil, http.StatusForbidden},
		{"user gone", "", ErrNotFound, http.StatusNotFound},
		{"store failure", "", database.StorageErr("role", errors.New("db down")), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lookup := func(ctx context.Context, id Identity) (Role, error) {
				if id.UserID != "user-1" || id.TenantID != "tenant-1" {
					t.Errorf("unexpected identity %+v", id)
				}
				return tt.role, tt.err
			}
			r, _ := newGuardedRouter(mgr, RequireRole(lookup, RoleAdmin))

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/guarded", nil))

			if w.Code != tt.expected {
				t.Errorf("expected status %d, got %d", tt.expected, w.Code)
			}
		})
	}
}

func TestRequireWithoutIdentity(t *testing.T) {
	if _, err := Require(context.Background()); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated, got %v", err)
	}

	ctx := WithIdentity(context.Background(), Identity{UserID: "u", TenantID: "t", Role: RoleMember})
	id, err := Require(ctx)
	if err != nil || id.Role != RoleMember {
		t.Errorf("unexpected %+v %v", id, err)
	}
}
