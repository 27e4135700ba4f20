package comments

import "time"

type Comment struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenant_id"`
	TodoID     string    `json:"todo_id"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}

type CreateCommentRequest struct {
	Body string `json:"body" binding:"required,max=5000"`
}

type UpdateCommentRequest struct {
	Body string `json:"body" binding:"required,max=5000"`
}
