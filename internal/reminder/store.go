package reminder

import (
	"context"
	"fmt"
	"time"

	"taskhub/internal/database"
)

// Candidate is a todo selected for a reminder, with its owner's address.
type Candidate struct {
	TodoID      string
	TenantID    string
	Title       string
	Description string
	Priority    string
	DueDate     time.Time
	UserID      string
	Email       string
	UserName    string
}

// Store selects and marks reminder candidates.
type Store interface {
	// ListEligible returns pending todos due inside w whose marker for w.Kind
	// is unset and whose owner has reminders enabled.
	ListEligible(ctx context.Context, w Window) ([]Candidate, error)
	// Claim sets the marker to at only if the todo is still eligible for w.
	// false means another run got there first or the todo changed.
	Claim(ctx context.Context, w Window, todoID string, at time.Time) (bool, error)
	// Release clears the marker, but only while it still holds at.
	Release(ctx context.Context, kind Kind, todoID string, at time.Time) error
}

type postgresStore struct {
	db database.Service
}

// NewPostgresStore creates a Store over the todos and users tables.
func NewPostgresStore(db database.Service) Store {
	return &postgresStore{db: db}
}

// Shared by ListEligible and Claim so the two can never disagree on eligibility.
// $1/$2 are the window bounds.
const eligibleWhere = `
	t.status = 'PENDING'
	AND t.due_date >= $1 AND t.due_date < $2
	AND t.%[1]s IS NULL
	AND u.id = t.created_by_id
	AND u.tenant_id = t.tenant_id
	AND u.email_reminders_enabled`

func (s *postgresStore) ListEligible(ctx context.Context, w Window) ([]Candidate, error) {
	query := fmt.Sprintf(`
		SELECT t.id, t.tenant_id, t.title, t.description, t.priority, t.due_date,
		       u.id, u.email, u.name
		FROM todos t, users u
		WHERE `+eligibleWhere+`
		ORDER BY t.due_date, t.id`, w.Kind.markerColumn())

	rows, err := s.db.Query(ctx, query, w.Start, w.End)
	if err != nil {
		return nil, database.StorageErr("list reminder candidates", err)
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.TodoID, &c.TenantID, &c.Title, &c.Description, &c.Priority, &c.DueDate,
			&c.UserID, &c.Email, &c.UserName); err != nil {
			return nil, database.StorageErr("scan reminder candidate", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, database.StorageErr("list reminder candidates", err)
	}
	return out, nil
}

func (s *postgresStore) Claim(ctx context.Context, w Window, todoID string, at time.Time) (bool, error) {
	query := fmt.Sprintf(`
		UPDATE todos t SET %[1]s = $3
		FROM users u
		WHERE t.id = $4 AND `+eligibleWhere, w.Kind.markerColumn())

	res, err := s.db.Exec(ctx, query, w.Start, w.End, at, todoID)
	if err != nil {
		return false, database.StorageErr("claim reminder", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, database.StorageErr("claim reminder", err)
	}
	return n == 1, nil
}

func (s *postgresStore) Release(ctx context.Context, kind Kind, todoID string, at time.Time) error {
	query := fmt.Sprintf(`UPDATE todos SET %[1]s = NULL WHERE id = $1 AND %[1]s = $2`, kind.markerColumn())
	if _, err := s.db.Exec(ctx, query, todoID, at); err != nil {
		return database.StorageErr("release reminder", err)
	}
	return nil
}
