package todos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"taskhub/internal/database"
	"taskhub/internal/tenant"

	"github.com/google/uuid"
)

// Repository handles all database operations for todos. Every statement is
// scoped by the caller's tenant.
type Repository struct {
	db database.Service
}

// NewRepository creates a new todos repository
func NewRepository(db database.Service) *Repository {
	return &Repository{db: db}
}

const todoColumns = `id, tenant_id, title, description, priority, status, due_date,
	due_soon_reminder_sent_at, overdue_reminder_sent_at, created_by_id, created_at, updated_at`

func scanTodo(row interface{ Scan(...any) error }, t *Todo) error {
	var dueDate, dueSoon, overdue sql.NullTime
	err := row.Scan(&t.ID, &t.TenantID, &t.Title, &t.Description, &t.Priority, &t.Status, &dueDate,
		&dueSoon, &overdue, &t.CreatedByID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return err
	}
	t.DueDate = timePtr(dueDate)
	t.DueSoonReminderSentAt = timePtr(dueSoon)
	t.OverdueReminderSentAt = timePtr(overdue)
	t.Labels = []LabelRef{}
	return nil
}

// Create inserts a new todo into the caller's tenant
func (r *Repository) Create(ctx context.Context, id tenant.Identity, req CreateTodoRequest) (*Todo, error) {
	priority := req.Priority
	if priority == "" {
		priority = PriorityMedium
	}

	t := &Todo{}
	err := scanTodo(r.db.QueryRow(ctx, `
		INSERT INTO todos (id, tenant_id, title, description, priority, due_date, created_by_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+todoColumns,
		uuid.New().String(), id.TenantID, req.Title, req.Description, priority, req.DueDate, id.UserID), t)
	if err != nil {
		return nil, database.StorageErr("create todo", err)
	}
	return t, nil
}

// Get retrieves a single todo with its labels
func (r *Repository) Get(ctx context.Context, id tenant.Identity, todoID string) (*Todo, error) {
	t := &Todo{}
	err := scanTodo(r.db.QueryRow(ctx,
		`SELECT `+todoColumns+` FROM todos WHERE id = $1 AND tenant_id = $2`,
		todoID, id.TenantID), t)
	if err := tenant.ScopedRow("get todo", err); err != nil {
		return nil, err
	}

	labels, err := r.labelsFor(ctx, id.TenantID, []string{t.ID})
	if err != nil {
		return nil, err
	}
	if l, ok := labels[t.ID]; ok {
		t.Labels = l
	}
	return t, nil
}

// List returns the tenant's todos, soonest due first, undated last.
func (r *Repository) List(ctx context.Context, id tenant.Identity, f ListFilter) ([]Todo, error) {
	query := `SELECT ` + todoColumns + ` FROM todos WHERE tenant_id = $1`
	args := []any{id.TenantID}
	if f.Status != "" {
		query += ` AND status = $2`
		args = append(args, f.Status)
	}
	query += ` ORDER BY due_date ASC NULLS LAST, created_at DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, database.StorageErr("list todos", err)
	}
	defer rows.Close()

	out := []Todo{}
	ids := []string{}
	for rows.Next() {
		var t Todo
		if err := scanTodo(rows, &t); err != nil {
			return nil, database.StorageErr("list todos", err)
		}
		out = append(out, t)
		ids = append(ids, t.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, database.StorageErr("list todos", err)
	}

	labels, err := r.labelsFor(ctx, id.TenantID, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		if l, ok := labels[out[i].ID]; ok {
			out[i].Labels = l
		}
	}
	return out, nil
}

// Update applies the set fields. Moving or clearing the due date makes the
// todo eligible for both reminders again; re-saving the same date does not.
func (r *Repository) Update(ctx context.Context, id tenant.Identity, todoID string, req UpdateTodoRequest) (*Todo, error) {
	updateFields := []string{}
	args := []any{}

	set := func(column string, value any) {
		args = append(args, value)
		updateFields = append(updateFields, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if req.Title != nil {
		set("title", *req.Title)
	}
	if req.Description != nil {
		set("description", *req.Description)
	}
	if req.Priority != nil {
		set("priority", *req.Priority)
	}
	if req.ClearDueDate || req.DueDate != nil {
		var due any
		if !req.ClearDueDate {
			due = *req.DueDate
		}
		set("due_date", due)
		// SET expressions see the old row, so an unchanged date keeps its markers.
		n := len(args)
		for _, col := range []string{"due_soon_reminder_sent_at", "overdue_reminder_sent_at"} {
			updateFields = append(updateFields, fmt.Sprintf(
				"%[1]s = CASE WHEN due_date IS DISTINCT FROM $%[2]d THEN NULL ELSE %[1]s END", col, n))
		}
	}

	if len(updateFields) == 0 {
		return r.Get(ctx, id, todoID)
	}
	updateFields = append(updateFields, "updated_at = NOW()")

	args = append(args, todoID, id.TenantID)
	query := fmt.Sprintf(`UPDATE todos SET %s WHERE id = $%d AND tenant_id = $%d`,
		strings.Join(updateFields, ", "), len(args)-1, len(args))

	if err := tenant.ScopedExec(ctx, r.db, "update todo", query, args...); err != nil {
		return nil, err
	}
	return r.Get(ctx, id, todoID)
}

// SetStatus marks a todo completed or pending.
func (r *Repository) SetStatus(ctx context.Context, id tenant.Identity, todoID string, status Status) (*Todo, error) {
	err := tenant.ScopedExec(ctx, r.db, "set todo status",
		`UPDATE todos SET status = $1, updated_at = NOW() WHERE id = $2 AND tenant_id = $3`,
		status, todoID, id.TenantID)
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, id, todoID)
}

// Delete removes a todo and, by cascade, its comments and label links.
func (r *Repository) Delete(ctx context.Context, id tenant.Identity, todoID string) error {
	return tenant.ScopedExec(ctx, r.db, "delete todo",
		`DELETE FROM todos WHERE id = $1 AND tenant_id = $2`,
		todoID, id.TenantID)
}

// AttachLabel links a label to a todo. Both must belong to the caller's tenant.
// Attaching twice is a no-op.
func (r *Repository) AttachLabel(ctx context.Context, id tenant.Identity, todoID, labelID string) error {
	return tenant.ScopedExec(ctx, r.db, "attach label", `
		INSERT INTO todo_labels (todo_id, label_id)
		SELECT t.id, l.id
		FROM todos t
		JOIN labels l ON l.tenant_id = t.tenant_id
		WHERE t.id = $1 AND l.id = $2 AND t.tenant_id = $3
		ON CONFLICT (todo_id, label_id) DO UPDATE SET label_id = EXCLUDED.label_id`,
		todoID, labelID, id.TenantID)
}

// DetachLabel unlinks a label from a todo in the caller's tenant.
func (r *Repository) DetachLabel(ctx context.Context, id tenant.Identity, todoID, labelID string) error {
	return tenant.ScopedExec(ctx, r.db, "detach label", `
		DELETE FROM todo_labels tl
		USING todos t
		WHERE tl.todo_id = t.id AND t.id = $1 AND tl.label_id = $2 AND t.tenant_id = $3`,
		todoID, labelID, id.TenantID)
}

func (r *Repository) labelsFor(ctx context.Context, tenantID string, todoIDs []string) (map[string][]LabelRef, error) {
	out := make(map[string][]LabelRef)
	if len(todoIDs) == 0 {
		return out, nil
	}

	rows, err := r.db.Query(ctx, `
		SELECT tl.todo_id, l.id, l.name, l.color
		FROM todo_labels tl
		JOIN labels l ON l.id = tl.label_id
		WHERE l.tenant_id = $1 AND tl.todo_id::text = ANY($2::text[])
		ORDER BY l.name`,
		tenantID, todoIDs)
	if err != nil {
		return nil, database.StorageErr("list todo labels", err)
	}
	defer rows.Close()

	for rows.Next() {
		var todoID string
		var l LabelRef
		if err := rows.Scan(&todoID, &l.ID, &l.Name, &l.Color); err != nil {
			return nil, database.StorageErr("list todo labels", err)
		}
		out[todoID] = append(out[todoID], l)
	}
	if err := rows.Err(); err != nil {
		return nil, database.StorageErr("list todo labels", err)
	}
	return out, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
