// Package auth implements tenant registration, password login and user
// management within a tenant.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"taskhub/internal/database"
	"taskhub/internal/tenant"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials is returned for an unknown email or a wrong password alike
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrEmailExists is returned when email is already registered
	ErrEmailExists = errors.New("email already registered")
)

const uniqueViolation = "23505"

// Service defines the authentication service interface
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*User, *Tenant, error)
	Login(ctx context.Context, email, password string) (*User, error)
	Me(ctx context.Context, id tenant.Identity) (*User, error)
	UpdatePreferences(ctx context.Context, id tenant.Identity, remindersEnabled bool) (*User, error)
	AddMember(ctx context.Context, id tenant.Identity, req AddMemberRequest) (*User, error)
	ChangePassword(ctx context.Context, id tenant.Identity, current, next string) error
	// Role satisfies tenant.RoleFunc.
	Role(ctx context.Context, id tenant.Identity) (tenant.Role, error)
}

// service implements the Service interface
type service struct {
	db         database.Service
	logger     *slog.Logger
	bcryptCost int
}

// NewService creates a new authentication service
func NewService(db database.Service, logger *slog.Logger) Service {
	return &service{db: db, logger: logger, bcryptCost: bcrypt.DefaultCost}
}

const userColumns = `id, tenant_id, email, name, role, email_reminders_enabled, password_hash, created_at`

func scanUser(row interface{ Scan(...any) error }, u *User) error {
	return row.Scan(&u.ID, &u.TenantID, &u.Email, &u.Name, &u.Role, &u.EmailRemindersEnabled, &u.PasswordHash, &u.CreatedAt)
}

// Register creates a tenant and its first admin in one transaction.
func (s *service) Register(ctx context.Context, req RegisterRequest) (*User, *Tenant, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}

	t := &Tenant{ID: uuid.New().String(), Name: strings.TrimSpace(req.TenantName)}
	u := &User{}

	err = s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx,
			`INSERT INTO tenants (id, name) VALUES ($1, $2) RETURNING created_at`,
			t.ID, t.Name).Scan(&t.CreatedAt); err != nil {
			return err
		}
		return scanUser(tx.QueryRowContext(ctx, `
			INSERT INTO users (id, tenant_id, email, name, password_hash, role)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING `+userColumns,
			uuid.New().String(), t.ID, normalizeEmail(req.Email), req.Name, string(hash), tenant.RoleAdmin), u)
	})
	if err != nil {
		if isUniqueViolation(err, "users_email_key") {
			return nil, nil, ErrEmailExists
		}
		return nil, nil, database.StorageErr("register tenant", err)
	}

	s.logger.Info("Tenant registered", "tenant_id", t.ID, "user_id", u.ID)
	return u, t, nil
}

// Login checks email and password. Unknown email and wrong password are indistinguishable.
func (s *service) Login(ctx context.Context, email, password string) (*User, error) {
	u := &User{}
	err := scanUser(s.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, normalizeEmail(email)), u)
	if errors.Is(err, sql.ErrNoRows) {
		// Compare anyway so an unknown email costs the same as a wrong password.
		bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, database.StorageErr("get user by email", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// Me returns the caller, read within its own tenant.
func (s *service) Me(ctx context.Context, id tenant.Identity) (*User, error) {
	u := &User{}
	err := scanUser(s.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1 AND tenant_id = $2`,
		id.UserID, id.TenantID), u)
	if err := tenant.ScopedRow("get user", err); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *service) UpdatePreferences(ctx context.Context, id tenant.Identity, remindersEnabled bool) (*User, error) {
	err := tenant.ScopedExec(ctx, s.db, "update preferences",
		`UPDATE users SET email_reminders_enabled = $1 WHERE id = $2 AND tenant_id = $3`,
		remindersEnabled, id.UserID, id.TenantID)
	if err != nil {
		return nil, err
	}
	return s.Me(ctx, id)
}

// AddMember creates a user inside the caller's tenant. The tenant is never taken from the request.
func (s *service) AddMember(ctx context.Context, id tenant.Identity, req AddMemberRequest) (*User, error) {
	role := req.Role
	if role == "" {
		role = tenant.RoleMember
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &User{}
	err = scanUser(s.db.QueryRow(ctx, `
		INSERT INTO users (id, tenant_id, email, name, password_hash, role)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+userColumns,
		uuid.New().String(), id.TenantID, normalizeEmail(req.Email), req.Name, string(hash), role), u)
	if err != nil {
		if isUniqueViolation(err, "users_email_key") {
			return nil, ErrEmailExists
		}
		return nil, database.StorageErr("add member", err)
	}

	s.logger.Info("Member added", "tenant_id", id.TenantID, "user_id", u.ID, "role", u.Role, "added_by", id.UserID)
	return u, nil
}

func (s *service) ChangePassword(ctx context.Context, id tenant.Identity, current, next string) error {
	u, err := s.Me(ctx, id)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(current)); err != nil {
		return ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return tenant.ScopedExec(ctx, s.db, "change password",
		`UPDATE users SET password_hash = $1 WHERE id = $2 AND tenant_id = $3`,
		string(hash), id.UserID, id.TenantID)
}

func (s *service) Role(ctx context.Context, id tenant.Identity) (tenant.Role, error) {
	var role tenant.Role
	err := s.db.QueryRow(ctx,
		`SELECT role FROM users WHERE id = $1 AND tenant_id = $2`,
		id.UserID, id.TenantID).Scan(&role)
	if err := tenant.ScopedRow("get role", err); err != nil {
		return "", err
	}
	return role, nil
}

// dummyHash is compared against when the email is unknown.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("taskhub-placeholder-password"), bcrypt.DefaultCost)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// isUniqueViolation checks if the error is a unique constraint violation on constraint
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == constraint
}
