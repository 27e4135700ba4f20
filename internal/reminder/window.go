// Package reminder sends one due-soon and one overdue email per todo.
//
// A run computes two disjoint windows relative to now, lists the pending todos
// in each, and for every candidate claims the window's marker with a single
// conditional update before sending. A failed send releases the claim so the
// next run can retry while the todo is still inside the window.
package reminder

import (
	"time"

	"taskhub/internal/email"
)

// Kind identifies a reminder window.
type Kind string

const (
	KindDueSoon Kind = "due_soon"
	KindOverdue Kind = "overdue"
)

const (
	dueSoonLead = 24 * time.Hour
	windowSpan  = 24 * time.Hour
)

// EmailType maps a kind to the email it produces.
func (k Kind) EmailType() email.EmailEventType {
	if k == KindOverdue {
		return email.EmailTypeReminderOverdue
	}
	return email.EmailTypeReminderDueSoon
}

// markerColumn is the todos column recording that this kind was sent.
func (k Kind) markerColumn() string {
	if k == KindOverdue {
		return "overdue_reminder_sent_at"
	}
	return "due_soon_reminder_sent_at"
}

// Window is the half-open due-date range [Start, End) selected for Kind.
type Window struct {
	Kind  Kind
	Start time.Time
	End   time.Time
}

// Contains reports whether due falls inside the window.
func (w Window) Contains(due time.Time) bool {
	return !due.Before(w.Start) && due.Before(w.End)
}

// Windows returns the due-soon window [now+24h, now+48h) and the overdue
// window [now-24h, now). They never overlap.
func Windows(now time.Time) []Window {
	return []Window{
		{Kind: KindDueSoon, Start: now.Add(dueSoonLead), End: now.Add(dueSoonLead + windowSpan)},
		{Kind: KindOverdue, Start: now.Add(-windowSpan), End: now},
	}
}
