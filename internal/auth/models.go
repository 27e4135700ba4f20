package auth

import (
	"time"

	"taskhub/internal/tenant"
)

// Tenant is an organisation that owns users and all of their data.
type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// User represents a user in the system. TenantID never changes after creation.
type User struct {
	ID                    string      `json:"id"`
	TenantID              string      `json:"tenant_id"`
	Email                 string      `json:"email"`
	Name                  string      `json:"name"`
	Role                  tenant.Role `json:"role"`
	EmailRemindersEnabled bool        `json:"email_reminders_enabled"`
	PasswordHash          string      `json:"-"`
	CreatedAt             time.Time   `json:"created_at"`
}

// RegisterRequest creates a tenant together with its first admin.
type RegisterRequest struct {
	TenantName string `json:"tenant_name" binding:"required,max=100"`
	Email      string `json:"email" binding:"required,email"`
	Name       string `json:"name" binding:"max=100"`
	Password   string `json:"password" binding:"required,min=8,max=72"`
}

// LoginRequest is the request payload for password login
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AddMemberRequest adds a user to the caller's tenant.
type AddMemberRequest struct {
	Email    string      `json:"email" binding:"required,email"`
	Name     string      `json:"name" binding:"max=100"`
	Password string      `json:"password" binding:"required,min=8,max=72"`
	Role     tenant.Role `json:"role" binding:"omitempty,oneof=ADMIN MEMBER"`
}

// PreferencesRequest updates the caller's notification settings.
type PreferencesRequest struct {
	EmailRemindersEnabled *bool `json:"email_reminders_enabled" binding:"required"`
}

// ChangePasswordRequest is the request payload for changing a password
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8,max=72"`
}

// AuthResponse is the response after successful authentication
type AuthResponse struct {
	User   *User   `json:"user"`
	Tenant *Tenant `json:"tenant,omitempty"`
}
