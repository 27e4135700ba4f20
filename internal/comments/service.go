package comments

import (
	"context"
	"strings"

	"taskhub/internal/database"
	"taskhub/internal/tenant"

	"github.com/google/uuid"
)

type Service interface {
	Add(ctx context.Context, id tenant.Identity, todoID string, body string) (*Comment, error)
	Update(ctx context.Context, id tenant.Identity, commentID string, body string) (*Comment, error)
	Delete(ctx context.Context, id tenant.Identity, commentID string) error
	ListByTodo(ctx context.Context, id tenant.Identity, todoID string) ([]Comment, error)
}

type service struct {
	db database.Service
}

func NewService(db database.Service) Service {
	return &service{db: db}
}

// Add attaches a comment to a todo in the caller's tenant. The comment takes
// its tenant from the todo row, never from the request.
func (s *service) Add(ctx context.Context, id tenant.Identity, todoID string, body string) (*Comment, error) {
	const q = `
		INSERT INTO comments (id, tenant_id, todo_id, author_id, body)
		SELECT $1::uuid, t.tenant_id, t.id, $2::uuid, $3
		FROM todos t
		WHERE t.id = $4 AND t.tenant_id = $5
		RETURNING id, tenant_id, todo_id, author_id, body, created_at
	`
	c := &Comment{}
	err := s.db.QueryRow(ctx, q, uuid.New().String(), id.UserID, strings.TrimSpace(body), todoID, id.TenantID).
		Scan(&c.ID, &c.TenantID, &c.TodoID, &c.AuthorID, &c.Body, &c.CreatedAt)
	if err := tenant.ScopedRow("add comment", err); err != nil {
		return nil, err
	}
	return c, nil
}

// Update edits the caller's own comment.
func (s *service) Update(ctx context.Context, id tenant.Identity, commentID string, body string) (*Comment, error) {
	const q = `
		UPDATE comments
		SET body = $1
		WHERE id = $2 AND tenant_id = $3 AND author_id = $4
		RETURNING id, tenant_id, todo_id, author_id, body, created_at
	`
	c := &Comment{}
	err := s.db.QueryRow(ctx, q, strings.TrimSpace(body), commentID, id.TenantID, id.UserID).
		Scan(&c.ID, &c.TenantID, &c.TodoID, &c.AuthorID, &c.Body, &c.CreatedAt)
	if err := tenant.ScopedRow("update comment", err); err != nil {
		return nil, err
	}
	return c, nil
}

// Delete removes a comment written by the caller, or any comment in the
// tenant when the caller is an admin.
func (s *service) Delete(ctx context.Context, id tenant.Identity, commentID string) error {
	const q = `
		DELETE FROM comments c
		WHERE c.id = $1 AND c.tenant_id = $2
		  AND (c.author_id = $3 OR EXISTS (
		        SELECT 1 FROM users u
		        WHERE u.id = $3 AND u.tenant_id = $2 AND u.role = 'ADMIN'))
	`
	return tenant.ScopedExec(ctx, s.db, "delete comment", q, commentID, id.TenantID, id.UserID)
}

// ListByTodo returns the todo's comments oldest first. A todo outside the
// caller's tenant is ErrNotFound rather than an empty list.
func (s *service) ListByTodo(ctx context.Context, id tenant.Identity, todoID string) ([]Comment, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM todos WHERE id = $1 AND tenant_id = $2)`,
		todoID, id.TenantID).Scan(&exists)
	if err != nil {
		return nil, database.StorageErr("list comments", err)
	}
	if !exists {
		return nil, tenant.ErrNotFound
	}

	const q = `
		SELECT c.id, c.tenant_id, c.todo_id, c.author_id, u.name, c.body, c.created_at
		FROM comments c
		JOIN users u ON u.id = c.author_id
		WHERE c.todo_id = $1 AND c.tenant_id = $2
		ORDER BY c.created_at ASC
	`
	rows, err := s.db.Query(ctx, q, todoID, id.TenantID)
	if err != nil {
		return nil, database.StorageErr("list comments", err)
	}
	defer rows.Close()

	out := []Comment{}
	for rows.Next() {
		var c Comment
		if err := rows.Scan(
			&c.ID, &c.TenantID, &c.TodoID, &c.AuthorID, &c.AuthorName, &c.Body, &c.CreatedAt,
		); err != nil {
			return nil, database.StorageErr("list comments", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, database.StorageErr("list comments", err)
	}
	return out, nil
}
