package auth

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"testing"

	"taskhub/internal/database"
	"taskhub/internal/database/dbtest"
	"taskhub/internal/logger"
	"taskhub/internal/tenant"

	"golang.org/x/crypto/bcrypt"
)

var testDB database.Service

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	db, teardown, err := dbtest.Start(context.Background())
	if err != nil {
		log.Printf("could not start postgres container, integration tests will skip: %v", err)
		os.Exit(m.Run())
	}
	testDB = db

	code := m.Run()
	teardown()
	os.Exit(code)
}

func newTestService(db database.Service) Service {
	return &service{db: db, logger: logger.Discard(), bcryptCost: bcrypt.MinCost}
}

func TestRegisterAndLogin(t *testing.T) {
	db := dbtest.Require(t, testDB)
	ctx := context.Background()
	svc := newTestService(db)

	user, tn, err := svc.Register(ctx, RegisterRequest{
		TenantName: "Acme", Email: "Admin@Acme.test", Name: "Ada", Password: "correct horse",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Role != tenant.RoleAdmin || user.TenantID != tn.ID {
		t.Errorf("unexpected user %+v", user)
	}
	if !user.EmailRemindersEnabled {
		t.Error("reminders should default to enabled")
	}

	got, err := svc.Login(ctx, "admin@acme.test", "correct horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("expected %s, got %s", user.ID, got.ID)
	}

	if _, err := svc.Login(ctx, "admin@acme.test", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for wrong password, got %v", err)
	}
	if _, err := svc.Login(ctx, "nobody@acme.test", "correct horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestRegisterDuplicateEmailRollsBackTenant(t *testing.T) {
	db := dbtest.Require(t, testDB)
	ctx := context.Background()
	svc := newTestService(db)

	if _, _, err := svc.Register(ctx, RegisterRequest{TenantName: "A", Email: "x@acme.test", Password: "password1"}); err != nil {
		t.Fatal(err)
	}
	_, _, err := svc.Register(ctx, RegisterRequest{TenantName: "B", Email: "x@acme.test", Password: "password1"})
	if !errors.Is(err, ErrEmailExists) {
		t.Fatalf("expected ErrEmailExists, got %v", err)
	}

	var n int
	db.QueryRow(ctx, `SELECT COUNT(*) FROM tenants`).Scan(&n)
	if n != 1 {
		t.Errorf("expected the second tenant rolled back, found %d tenants", n)
	}
}

func TestMeIsTenantScoped(t *testing.T) {
	db := dbtest.Require(t, testDB)
	ctx := context.Background()
	svc := newTestService(db)

	tenant1, user1 := dbtest.Seed(t, db, "one", "one@acme.test", true)
	tenant2, _ := dbtest.Seed(t, db, "two", "two@acme.test", true)

	if _, err := svc.Me(ctx, tenant.Identity{UserID: user1, TenantID: tenant1}); err != nil {
		t.Fatalf("own user: %v", err)
	}
	if _, err := svc.Me(ctx, tenant.Identity{UserID: user1, TenantID: tenant2}); !errors.Is(err, tenant.ErrNotFound) {
		t.Errorf("expected ErrNotFound across tenants, got %v", err)
	}
}

func TestUpdatePreferences(t *testing.T) {
	db := dbtest.Require(t, testDB)
	ctx := context.Background()
	svc := newTestService(db)
	tenantID, userID := dbtest.Seed(t, db, "one", "one@acme.test", true)

	u, err := svc.UpdatePreferences(ctx, tenant.Identity{UserID: userID, TenantID: tenantID}, false)
	if err != nil {
		t.Fatal(err)
	}
	if u.EmailRemindersEnabled {
		t.Error("expected reminders disabled")
	}
}

func TestAddMemberJoinsCallerTenant(t *testing.T) {
	db := dbtest.Require(t, testDB)
	ctx := context.Background()
	svc := newTestService(db)
	tenantID, adminID := dbtest.Seed(t, db, "one", "admin@acme.test", true)
	admin := tenant.Identity{UserID: adminID, TenantID: tenantID}

	member, err := svc.AddMember(ctx, admin, AddMemberRequest{Email: "m@acme.test", Password: "password1"})
	if err != nil {
		t.Fatal(err)
	}
	if member.TenantID != tenantID || member.Role != tenant.RoleMember {
		t.Errorf("unexpected member %+v", member)
	}

	role, err := svc.Role(ctx, tenant.Identity{UserID: member.ID, TenantID: tenantID})
	if err != nil || role != tenant.RoleMember {
		t.Errorf("expected MEMBER, got %q %v", role, err)
	}
}

func TestUserTenantIsImmutable(t *testing.T) {
	db := dbtest.Require(t, testDB)
	ctx := context.Background()
	_, userID := dbtest.Seed(t, db, "one", "one@acme.test", true)
	tenant2, _ := dbtest.Seed(t, db, "two", "two@acme.test", true)

	if _, err := db.Exec(ctx, `UPDATE users SET tenant_id = $1 WHERE id = $2`, tenant2, userID); err == nil {
		t.Error("expected tenant change to be rejected")
	}
}

func TestChangePassword(t *testing.T) {
	db := dbtest.Require(t, testDB)
	ctx := context.Background()
	svc := newTestService(db)

	user, _, err := svc.Register(ctx, RegisterRequest{TenantName: "A", Email: "x@acme.test", Password: "password1"})
	if err != nil {
		t.Fatal(err)
	}
	id := tenant.Identity{UserID: user.ID, TenantID: user.TenantID}

	if err := svc.ChangePassword(ctx, id, "wrong", "password2"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
	if err := svc.ChangePassword(ctx, id, "password1", "password2"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Login(ctx, "x@acme.test", "password2"); err != nil {
		t.Errorf("login with new password: %v", err)
	}
}
