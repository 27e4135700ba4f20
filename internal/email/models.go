package email

import (
	"time"
)

// EmailEventType represents the type of email to be sent
type EmailEventType string

const (
	// EmailTypeReminderDueSoon is sent once when a todo enters the due-soon window
	EmailTypeReminderDueSoon EmailEventType = "reminder_due_soon"
	// EmailTypeReminderOverdue is sent once when a todo enters the overdue window
	EmailTypeReminderOverdue EmailEventType = "reminder_overdue"
)

// Message is a fully rendered email.
type Message struct {
	// ID identifies the message for deduplication downstream. Optional.
	ID      string
	Type    EmailEventType
	To      string
	Subject string
	HTML    string
	Text    string
}

// EmailEvent is the Kafka payload published in kafka mode and consumed by the mailer.
type EmailEvent struct {
	// MessageID is used for deduplication by the mailer
	MessageID string `json:"message_id"`

	// EventType specifies what kind of email this is
	EventType EmailEventType `json:"event_type"`

	// Timestamp when the event was created
	Timestamp time.Time `json:"timestamp"`

	// Recipient is the email address to send to
	Recipient string `json:"recipient"`

	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text"`
}

// Message converts the event back into a deliverable message.
func (e EmailEvent) Message() Message {
	return Message{
		ID:      e.MessageID,
		Type:    e.EventType,
		To:      e.Recipient,
		Subject: e.Subject,
		HTML:    e.HTML,
		Text:    e.Text,
	}
}

// EmailMetadata represents metadata stored in Redis for deduplication
type EmailMetadata struct {
	SentAt    time.Time      `json:"sent_at"`
	Recipient string         `json:"recipient"`
	EventType EmailEventType `json:"event_type"`
}
