package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"taskhub/internal/session"
	"taskhub/internal/tenant"

	"github.com/gin-gonic/gin"
)

// Handler handles authentication-related HTTP requests
type Handler struct {
	service    Service
	sessionMgr session.Manager
	cookie     session.CookieOptions
	logger     *slog.Logger
}

// NewHandler creates a new authentication handler
func NewHandler(service Service, sessionMgr session.Manager, cookie session.CookieOptions, logger *slog.Logger) *Handler {
	return &Handler{
		service:    service,
		sessionMgr: sessionMgr,
		cookie:     cookie,
		logger:     logger,
	}
}

func (h *Handler) transport(c *gin.Context) session.Transport {
	return session.NewCookieTransport(c.Writer, c.Request, h.cookie)
}

func (h *Handler) startSession(c *gin.Context, u *User) bool {
	meta := session.Metadata{UserAgent: c.Request.UserAgent(), IPAddress: c.ClientIP()}
	if _, err := h.sessionMgr.Create(c.Request.Context(), h.transport(c), u.ID, u.TenantID, meta); err != nil {
		h.logger.Error("Failed to create session", "user_id", u.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return false
	}
	return true
}

// Register handles POST /api/auth/register
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, t, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, ErrEmailExists) {
			c.JSON(http.StatusConflict, gin.H{
				"error":   "email_taken",
				"message": "This email is already registered",
				"field":   "email",
			})
			return
		}
		h.logger.Error("Failed to register tenant", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register"})
		return
	}

	if !h.startSession(c, user) {
		return
	}
	c.JSON(http.StatusCreated, AuthResponse{User: user, Tenant: t})
}

// Login handles POST /api/auth/login
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.service.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": ErrInvalidCredentials.Error()})
			return
		}
		h.logger.Error("Login failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to log in"})
		return
	}

	if !h.startSession(c, user) {
		return
	}
	c.JSON(http.StatusOK, AuthResponse{User: user})
}

// Logout handles POST /api/auth/logout. It succeeds without a session too.
// The cookie is cleared even when the record could not be deleted, but the
// caller is told the logout failed.
func (h *Handler) Logout(c *gin.Context) {
	if err := h.sessionMgr.Destroy(c.Request.Context(), h.transport(c)); err != nil {
		h.logger.Error("Failed to delete session on logout", "error", err)
		tenant.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out successfully"})
}

// Me handles GET /api/auth/me
func (h *Handler) Me(c *gin.Context) {
	id, err := tenant.Require(c.Request.Context())
	if err != nil {
		tenant.Error(c, err)
		return
	}

	user, err := h.service.Me(c.Request.Context(), id)
	if err != nil {
		tenant.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// UpdatePreferences handles PATCH /api/auth/me/preferences
func (h *Handler) UpdatePreferences(c *gin.Context) {
	id, err := tenant.Require(c.Request.Context())
	if err != nil {
		tenant.Error(c, err)
		return
	}

	var req PreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.service.UpdatePreferences(c.Request.Context(), id, *req.EmailRemindersEnabled)
	if err != nil {
		tenant.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// ChangePassword handles POST /api/auth/me/password. Every other session of
// the user is revoked and the caller gets a fresh one.
func (h *Handler) ChangePassword(c *gin.Context) {
	id, err := tenant.Require(c.Request.Context())
	if err != nil {
		tenant.Error(c, err)
		return
	}

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.ChangePassword(c.Request.Context(), id, req.CurrentPassword, req.NewPassword); err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "current password is incorrect"})
			return
		}
		tenant.Error(c, err)
		return
	}

	if err := h.sessionMgr.DestroyAllForUser(c.Request.Context(), id.UserID); err != nil {
		tenant.Error(c, err)
		return
	}
	if !h.startSession(c, &User{ID: id.UserID, TenantID: id.TenantID}) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password changed"})
}

// AddMember handles POST /api/auth/members (admin only)
func (h *Handler) AddMember(c *gin.Context) {
	id, err := tenant.Require(c.Request.Context())
	if err != nil {
		tenant.Error(c, err)
		return
	}

	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.service.AddMember(c.Request.Context(), id, req)
	if err != nil {
		if errors.Is(err, ErrEmailExists) {
			c.JSON(http.StatusConflict, gin.H{
				"error":   "email_taken",
				"message": "This email is already registered",
				"field":   "email",
			})
			return
		}
		tenant.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// RegisterRoutes mounts the auth endpoints. guard resolves the session.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, guard gin.HandlerFunc) {
	rg.POST("/register", h.Register)
	rg.POST("/login", h.Login)
	rg.POST("/logout", h.Logout)

	authed := rg.Group("", guard)
	authed.GET("/me", h.Me)
	authed.PATCH("/me/preferences", h.UpdatePreferences)
	authed.POST("/me/password", h.ChangePassword)
	authed.POST("/members", tenant.RequireRole(h.service.Role, tenant.RoleAdmin), h.AddMember)
}
