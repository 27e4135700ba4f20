package comments

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts comment endpoints. todos is the /api/todos group and
// comments the /api/comments group; both must already be session-guarded.
func RegisterRoutes(todos, comments *gin.RouterGroup, svc Service) {
	h := NewHandler(svc)

	todos.POST("/:id/comments", h.Create)
	todos.GET("/:id/comments", h.List)

	comments.PATCH("/:id", h.Update)
	comments.DELETE("/:id", h.Delete)
}
