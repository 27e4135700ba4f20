// Package labels manages the tenant's todo labels.
package labels

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"taskhub/internal/database"
	"taskhub/internal/tenant"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNameTaken is returned when the tenant already has a label with that name.
var ErrNameTaken = errors.New("label name already in use")

type Label struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"created_at"`
}

type CreateLabelRequest struct {
	Name  string `json:"name" binding:"required,max=50"`
	Color string `json:"color" binding:"omitempty,hexcolor"`
}

type UpdateLabelRequest struct {
	Name  *string `json:"name,omitempty" binding:"omitempty,min=1,max=50"`
	Color *string `json:"color,omitempty" binding:"omitempty,hexcolor"`
}

type Store interface {
	Create(ctx context.Context, id tenant.Identity, req CreateLabelRequest) (*Label, error)
	List(ctx context.Context, id tenant.Identity) ([]Label, error)
	Update(ctx context.Context, id tenant.Identity, labelID string, req UpdateLabelRequest) (*Label, error)
	Delete(ctx context.Context, id tenant.Identity, labelID string) error
}

type repository struct {
	db database.Service
}

func NewRepository(db database.Service) Store {
	return &repository{db: db}
}

const labelColumns = `id, tenant_id, name, color, created_at`

func scanLabel(row interface{ Scan(...any) error }, l *Label) error {
	return row.Scan(&l.ID, &l.TenantID, &l.Name, &l.Color, &l.CreatedAt)
}

func (r *repository) Create(ctx context.Context, id tenant.Identity, req CreateLabelRequest) (*Label, error) {
	color := req.Color
	if color == "" {
		color = "#6b7280"
	}

	l := &Label{}
	err := scanLabel(r.db.QueryRow(ctx, `
		INSERT INTO labels (id, tenant_id, name, color)
		VALUES ($1, $2, $3, $4)
		RETURNING `+labelColumns,
		uuid.New().String(), id.TenantID, strings.TrimSpace(req.Name), color), l)
	if err != nil {
		return nil, mapWriteErr("create label", err)
	}
	return l, nil
}

func (r *repository) List(ctx context.Context, id tenant.Identity) ([]Label, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+labelColumns+` FROM labels WHERE tenant_id = $1 ORDER BY name`, id.TenantID)
	if err != nil {
		return nil, database.StorageErr("list labels", err)
	}
	defer rows.Close()

	out := []Label{}
	for rows.Next() {
		var l Label
		if err := scanLabel(rows, &l); err != nil {
			return nil, database.StorageErr("list labels", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, database.StorageErr("list labels", err)
	}
	return out, nil
}

func (r *repository) Update(ctx context.Context, id tenant.Identity, labelID string, req UpdateLabelRequest) (*Label, error) {
	l := &Label{}
	err := scanLabel(r.db.QueryRow(ctx, `
		UPDATE labels
		SET name = COALESCE($1, name), color = COALESCE($2, color)
		WHERE id = $3 AND tenant_id = $4
		RETURNING `+labelColumns,
		req.Name, req.Color, labelID, id.TenantID), l)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tenant.ErrNotFound
	}
	if err != nil {
		return nil, mapWriteErr("update label", err)
	}
	return l, nil
}

func (r *repository) Delete(ctx context.Context, id tenant.Identity, labelID string) error {
	return tenant.ScopedExec(ctx, r.db, "delete label",
		`DELETE FROM labels WHERE id = $1 AND tenant_id = $2`, labelID, id.TenantID)
}

func mapWriteErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.ConstraintName == "labels_tenant_name_key" {
		return ErrNameTaken
	}
	return database.StorageErr(op, err)
}

type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.GET("", h.List)
	rg.PATCH("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
}

// POST /api/labels
func (h *Handler) Create(c *gin.Context) {
	id, err := tenant.Require(c.Request.Context())
	if err != nil {
		tenant.Error(c, err)
		return
	}

	var req CreateLabelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	l, err := h.store.Create(c.Request.Context(), id, req)
	if err != nil {
		respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, l)
}

// GET /api/labels
func (h *Handler) List(c *gin.Context) {
	id, err := tenant.Require(c.Request.Context())
	if err != nil {
		tenant.Error(c, err)
		return
	}

	labels, err := h.store.List(c.Request.Context(), id)
	if err != nil {
		tenant.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, labels)
}

// PATCH /api/labels/:id
func (h *Handler) Update(c *gin.Context) {
	id, err := tenant.Require(c.Request.Context())
	if err != nil {
		tenant.Error(c, err)
		return
	}
	labelID, ok := tenant.ParamID(c, "id")
	if !ok {
		return
	}

	var req UpdateLabelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	l, err := h.store.Update(c.Request.Context(), id, labelID, req)
	if err != nil {
		respond(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

// DELETE /api/labels/:id
func (h *Handler) Delete(c *gin.Context) {
	id, err := tenant.Require(c.Request.Context())
	if err != nil {
		tenant.Error(c, err)
		return
	}
	labelID, ok := tenant.ParamID(c, "id")
	if !ok {
		return
	}

	if err := h.store.Delete(c.Request.Context(), id, labelID); err != nil {
		tenant.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

func respond(c *gin.Context, err error) {
	if errors.Is(err, ErrNameTaken) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "field": "name"})
		return
	}
	tenant.Error(c, err)
}
