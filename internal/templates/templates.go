// Package templates stores reusable todo blueprints for a tenant.
package templates

import (
	"context"
	"net/http"
	"time"

	"taskhub/internal/database"
	"taskhub/internal/tenant"
	"taskhub/internal/todos"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Template is a saved todo shape.
type Template struct {
	ID          string         `json:"id"`
	TenantID    string         `json:"tenant_id"`
	Name        string         `json:"name"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Priority    todos.Priority `json:"priority"`
	CreatedByID string         `json:"created_by_id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

type CreateTemplateRequest struct {
	Name        string         `json:"name" binding:"required,max=100"`
	Title       string         `json:"title" binding:"required,max=200"`
	Description string         `json:"description" binding:"max=5000"`
	Priority    todos.Priority `json:"priority" binding:"omitempty,oneof=LOW MEDIUM HIGH"`
}

type UpdateTemplateRequest struct {
	Name        *string         `json:"name,omitempty" binding:"omitempty,min=1,max=100"`
	Title       *string         `json:"title,omitempty" binding:"omitempty,min=1,max=200"`
	Description *string         `json:"description,omitempty" binding:"omitempty,max=5000"`
	Priority    *todos.Priority `json:"priority,omitempty" binding:"omitempty,oneof=LOW MEDIUM HIGH"`
}

// InstantiateRequest optionally sets a due date on the todo created from a template.
type InstantiateRequest struct {
	DueDate *time.Time `json:"due_date"`
}

type Store interface {
	Create(ctx context.Context, id tenant.Identity, req CreateTemplateRequest) (*Template, error)
	Get(ctx context.Context, id tenant.Identity, templateID string) (*Template, error)
	List(ctx context.Context, id tenant.Identity) ([]Template, error)
	Update(ctx context.Context, id tenant.Identity, templateID string, req UpdateTemplateRequest) (*Template, error)
	Delete(ctx context.Context, id tenant.Identity, templateID string) error
}

// TodoCreator is the part of the todos store a template needs.
type TodoCreator interface {
	Create(ctx context.Context, id tenant.Identity, req todos.CreateTodoRequest) (*todos.Todo, error)
}

type repository struct {
	db database.Service
}

func NewRepository(db database.Service) Store {
	return &repository{db: db}
}

const templateColumns = `id, tenant_id, name, title, description, priority, created_by_id, created_at, updated_at`

func scanTemplate(row interface{ Scan(...any) error }, t *Template) error {
	return row.Scan(&t.ID, &t.TenantID, &t.Name, &t.Title, &t.Description, &t.Priority,
		&t.CreatedByID, &t.CreatedAt, &t.UpdatedAt)
}

func (r *repository) Create(ctx context.Context, id tenant.Identity, req CreateTemplateRequest) (*Template, error) {
	priority := req.Priority
	if priority == "" {
		priority = todos.PriorityMedium
	}

	t := &Template{}
	err := scanTemplate(r.db.QueryRow(ctx, `
		INSERT INTO templates (id, tenant_id, name, title, description, priority, created_by_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+templateColumns,
		uuid.New().String(), id.TenantID, req.Name, req.Title, req.Description, priority, id.UserID), t)
	if err != nil {
		return nil, database.StorageErr("create template", err)
	}
	return t, nil
}

func (r *repository) Get(ctx context.Context, id tenant.Identity, templateID string) (*Template, error) {
	t := &Template{}
	err := scanTemplate(r.db.QueryRow(ctx,
		`SELECT `+templateColumns+` FROM templates WHERE id = $1 AND tenant_id = $2`,
		templateID, id.TenantID), t)
	if err := tenant.ScopedRow("get template", err); err != nil {
		return nil, err
	}
	return t, nil
}

func (r *repository) List(ctx context.Context, id tenant.Identity) ([]Template, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+templateColumns+` FROM templates WHERE tenant_id = $1 ORDER BY name`, id.TenantID)
	if err != nil {
		return nil, database.StorageErr("list templates", err)
	}
	defer rows.Close()

	out := []Template{}
	for rows.Next() {
		var t Template
		if err := scanTemplate(rows, &t); err != nil {
			return nil, database.StorageErr("list templates", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, database.StorageErr("list templates", err)
	}
	return out, nil
}

func (r *repository) Update(ctx context.Context, id tenant.Identity, templateID string, req UpdateTemplateRequest) (*Template, error) {
	t := &Template{}
	err := scanTemplate(r.db.QueryRow(ctx, `
		UPDATE templates
		SET name = COALESCE($1, name),
		    title = COALESCE($2, title),
		    description = COALESCE($3, description),
		    priority = COALESCE($4, priority),
		    updated_at = NOW()
		WHERE id = $5 AND tenant_id = $6
		RETURNING `+templateColumns,
		req.Name, req.Title, req.Description, req.Priority, templateID, id.TenantID), t)
	if err := tenant.ScopedRow("update template", err); err != nil {
		return nil, err
	}
	return t, nil
}

func (r *repository) Delete(ctx context.Context, id tenant.Identity, templateID string) error {
	return tenant.ScopedExec(ctx, r.db, "delete template",
		`DELETE FROM templates WHERE id = $1 AND tenant_id = $2`, templateID, id.TenantID)
}

// Instantiate creates a todo in the caller's tenant from one of its templates.
func Instantiate(ctx context.Context, store Store, creator TodoCreator, id tenant.Identity, templateID string, req InstantiateRequest) (*todos.Todo, error) {
	t, err := store.Get(ctx, id, templateID)
	if err != nil {
		return nil, err
	}
	return creator.Create(ctx, id, todos.CreateTodoRequest{
		Title:       t.Title,
		Description: t.Description,
		Priority:    t.Priority,
		DueDate:     req.DueDate,
	})
}

type Handler struct {
	store Store
	todos TodoCreator
}

func NewHandler(store Store, todos TodoCreator) *Handler {
	return &Handler{store: store, todos: todos}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.PATCH("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
	rg.POST("/:id/instantiate", h.Instantiate)
}

// POST /api/templates
func (h *Handler) Create(c *gin.Context) {
	id, err := tenant.Require(c.Request.Context())
	if err != nil {
		tenant.Error(c, err)
		return
	}
	var req CreateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	t, err := h.store.Create(c.Request.Context(), id, req)
	if err != nil {
		tenant.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

// GET /api/templates
func (h *Handler) List(c *gin.Context) {
	id, err := tenant.Require(c.Request.Context())
	if err != nil {
		tenant.Error(c, err)
		return
	}
	list, err := h.store.List(c.Request.Context(), id)
	if err != nil {
		tenant.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// GET /api/templates/:id
func (h *Handler) Get(c *gin.Context) {
	id, err := tenant.Require(c.Request.Context())
	if err != nil {
		tenant.Error(c, err)
		return
	}
	templateID, ok := tenant.ParamID(c, "id")
	if !ok {
		return
	}
	t, err := h.store.Get(c.Request.Context(), id, templateID)
	if err != nil {
		tenant.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// PATCH /api/templates/:id
func (h *Handler) Update(c *gin.Context) {
	id, err := tenant.Require(c.Request.Context())
	if err != nil {
		tenant.Error(c, err)
		return
	}
	templateID, ok := tenant.ParamID(c, "id")
	if !ok {
		return
	}
	var req UpdateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	t, err := h.store.Update(c.Request.Context(), id, templateID, req)
	if err != nil {
		tenant.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// DELETE /api/templates/:id
func (h *Handler) Delete(c *gin.Context) {
	id, err := tenant.Require(c.Request.Context())
	if err != nil {
		tenant.Error(c, err)
		return
	}
	templateID, ok := tenant.ParamID(c, "id")
	if !ok {
		return
	}
	if err := h.store.Delete(c.Request.Context(), id, templateID); err != nil {
		tenant.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

// POST /api/templates/:id/instantiate
func (h *Handler) Instantiate(c *gin.Context) {
	id, err := tenant.Require(c.Request.Context())
	if err != nil {
		tenant.Error(c, err)
		return
	}
	templateID, ok := tenant.ParamID(c, "id")
	if !ok {
		return
	}
	var req InstantiateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	todo, err := Instantiate(c.Request.Context(), h.store, h.todos, id, templateID, req)
	if err != nil {
		tenant.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, todo)
}
