package todos

import "time"

// Status of a todo
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
)

// Priority of a todo
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// Todo is a task owned by a tenant. The reminder markers are written only by
// the reminder engine and cleared when the due date moves.
type Todo struct {
	ID                    string     `json:"id"`
	TenantID              string     `json:"tenant_id"`
	Title                 string     `json:"title"`
	Description           string     `json:"description"`
	Priority              Priority   `json:"priority"`
	Status                Status     `json:"status"`
	DueDate               *time.Time `json:"due_date,omitempty"`
	DueSoonReminderSentAt *time.Time `json:"due_soon_reminder_sent_at,omitempty"`
	OverdueReminderSentAt *time.Time `json:"overdue_reminder_sent_at,omitempty"`
	CreatedByID           string     `json:"created_by_id"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
	Labels                []LabelRef `json:"labels"`
}

// LabelRef is a label attached to a todo.
type LabelRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// CreateTodoRequest is the request payload for creating a todo
type CreateTodoRequest struct {
	Title       string     `json:"title" binding:"required,max=200"`
	Description string     `json:"description" binding:"max=5000"`
	Priority    Priority   `json:"priority" binding:"omitempty,oneof=LOW MEDIUM HIGH"`
	DueDate     *time.Time `json:"due_date"`
}

// UpdateTodoRequest changes only the fields that are set. ClearDueDate removes
// the due date; it wins over DueDate.
type UpdateTodoRequest struct {
	Title        *string    `json:"title,omitempty" binding:"omitempty,min=1,max=200"`
	Description  *string    `json:"description,omitempty" binding:"omitempty,max=5000"`
	Priority     *Priority  `json:"priority,omitempty" binding:"omitempty,oneof=LOW MEDIUM HIGH"`
	DueDate      *time.Time `json:"due_date,omitempty"`
	ClearDueDate bool       `json:"clear_due_date,omitempty"`
}

// ListFilter narrows List. Zero value lists everything in the tenant.
type ListFilter struct {
	Status Status `form:"status" binding:"omitempty,oneof=PENDING COMPLETED"`
}
