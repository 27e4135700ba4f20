package comments

import (
	"net/http"

	"taskhub/internal/tenant"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler { return &Handler{svc: svc} }

// POST /api/todos/:id/comments
func (h *Handler) Create(c *gin.Context) {
	id, err := tenant.Require(c.Request.Context())
	if err != nil {
		tenant.Error(c, err)
		return
	}
	todoID, ok := tenant.ParamID(c, "id")
	if !ok {
		return
	}

	var req CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}

	comment, err := h.svc.Add(c.Request.Context(), id, todoID, req.Body)
	if err != nil {
		tenant.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

// PATCH /api/comments/:id
func (h *Handler) Update(c *gin.Context) {
	id, err := tenant.Require(c.Request.Context())
	if err != nil {
		tenant.Error(c, err)
		return
	}
	commentID, ok := tenant.ParamID(c, "id")
	if !ok {
		return
	}

	var req UpdateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}

	comment, err := h.svc.Update(c.Request.Context(), id, commentID, req.Body)
	if err != nil {
		tenant.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, comment)
}

// DELETE /api/comments/:id
func (h *Handler) Delete(c *gin.Context) {
	id, err := tenant.Require(c.Request.Context())
	if err != nil {
		tenant.Error(c, err)
		return
	}
	commentID, ok := tenant.ParamID(c, "id")
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), id, commentID); err != nil {
		tenant.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

// GET /api/todos/:id/comments
func (h *Handler) List(c *gin.Context) {
	id, err := tenant.Require(c.Request.Context())
	if err != nil {
		tenant.Error(c, err)
		return
	}
	todoID, ok := tenant.ParamID(c, "id")
	if !ok {
		return
	}

	comments, err := h.svc.ListByTodo(c.Request.Context(), id, todoID)
	if err != nil {
		tenant.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, comments)
}
