package todos

import (
	"context"
	"net/http"

	"taskhub/internal/tenant"

	"github.com/gin-gonic/gin"
)

// Store is the tenant-scoped todo persistence the handler needs.
type Store interface {
	Create(ctx context.Context, id tenant.Identity, req CreateTodoRequest) (*Todo, error)
	Get(ctx context.Context, id tenant.Identity, todoID string) (*Todo, error)
	List(ctx context.Context, id tenant.Identity, f ListFilter) ([]Todo, error)
	Update(ctx context.Context, id tenant.Identity, todoID string, req UpdateTodoRequest) (*Todo, error)
	SetStatus(ctx context.Context, id tenant.Identity, todoID string, status Status) (*Todo, error)
	Delete(ctx context.Context, id tenant.Identity, todoID string) error
	AttachLabel(ctx context.Context, id tenant.Identity, todoID, labelID string) error
	DetachLabel(ctx context.Context, id tenant.Identity, todoID, labelID string) error
}

// Handler serves /api/todos
type Handler struct {
	store Store
}

// NewHandler creates a new todos handler
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes mounts the todo endpoints on a session-guarded group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.PATCH("/:id", h.Update)
	rg.POST("/:id/complete", h.Complete)
	rg.POST("/:id/reopen", h.Reopen)
	rg.DELETE("/:id", h.Delete)
	rg.PUT("/:id/labels/:labelId", h.AttachLabel)
	rg.DELETE("/:id/labels/:labelId", h.DetachLabel)
}

// Create handles POST /api/todos
func (h *Handler) Create(c *gin.Context) {
	id, err := tenant.Require(c.Request.Context())
	if err != nil {
		tenant.Error(c, err)
		return
	}

	var req CreateTodoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	todo, err := h.store.Create(c.Request.Context(), id, req)
	if err != nil {
		tenant.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, todo)
}

// List handles GET /api/todos?status=
func (h *Handler) List(c *gin.Context) {
	id, err := tenant.Require(c.Request.Context())
	if err != nil {
		tenant.Error(c, err)
		return
	}

	var f ListFilter
	if err := c.ShouldBindQuery(&f); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	todos, err := h.store.List(c.Request.Context(), id, f)
	if err != nil {
		tenant.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, todos)
}

// Get handles GET /api/todos/:id
func (h *Handler) Get(c *gin.Context) {
	id, err := tenant.Require(c.Request.Context())
	if err != nil {
		tenant.Error(c, err)
		return
	}
	todoID, ok := tenant.ParamID(c, "id")
	if !ok {
		return
	}

	todo, err := h.store.Get(c.Request.Context(), id, todoID)
	if err != nil {
		tenant.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, todo)
}

// Update handles PATCH /api/todos/:id
func (h *Handler) Update(c *gin.Context) {
	id, err := tenant.Require(c.Request.Context())
	if err != nil {
		tenant.Error(c, err)
		return
	}
	todoID, ok := tenant.ParamID(c, "id")
	if !ok {
		return
	}

	var req UpdateTodoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	todo, err := h.store.Update(c.Request.Context(), id, todoID, req)
	if err != nil {
		tenant.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, todo)
}

// Complete handles POST /api/todos/:id/complete
func (h *Handler) Complete(c *gin.Context) {
	h.setStatus(c, StatusCompleted)
}

// Reopen handles POST /api/todos/:id/reopen
func (h *Handler) Reopen(c *gin.Context) {
	h.setStatus(c, StatusPending)
}

func (h *Handler) setStatus(c *gin.Context, status Status) {
	id, err := tenant.Require(c.Request.Context())
	if err != nil {
		tenant.Error(c, err)
		return
	}
	todoID, ok := tenant.ParamID(c, "id")
	if !ok {
		return
	}

	todo, err := h.store.SetStatus(c.Request.Context(), id, todoID, status)
	if err != nil {
		tenant.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, todo)
}

// Delete handles DELETE /api/todos/:id
func (h *Handler) Delete(c *gin.Context) {
	id, err := tenant.Require(c.Request.Context())
	if err != nil {
		tenant.Error(c, err)
		return
	}
	todoID, ok := tenant.ParamID(c, "id")
	if !ok {
		return
	}

	if err := h.store.Delete(c.Request.Context(), id, todoID); err != nil {
		tenant.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

// AttachLabel handles PUT /api/todos/:id/labels/:labelId
func (h *Handler) AttachLabel(c *gin.Context) {
	h.labelLink(c, h.store.AttachLabel)
}

// DetachLabel handles DELETE /api/todos/:id/labels/:labelId
func (h *Handler) DetachLabel(c *gin.Context) {
	h.labelLink(c, h.store.DetachLabel)
}

func (h *Handler) labelLink(c *gin.Context, op func(context.Context, tenant.Identity, string, string) error) {
	id, err := tenant.Require(c.Request.Context())
	if err != nil {
		tenant.Error(c, err)
		return
	}
	todoID, ok := tenant.ParamID(c, "id")
	if !ok {
		return
	}
	labelID, ok := tenant.ParamID(c, "labelId")
	if !ok {
		return
	}

	if err := op(c.Request.Context(), id, todoID, labelID); err != nil {
		tenant.Error(c, err)
		return
	}

	todo, err := h.store.Get(c.Request.Context(), id, todoID)
	if err != nil {
		tenant.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, todo)
}
