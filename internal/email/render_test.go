package email

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func reminderData() ReminderData {
	return ReminderData{
		To:          "ana@acme.test",
		UserName:    "Ana",
		TodoID:      "4b1f0c2e-0000-4000-8000-000000000001",
		TodoTitle:   "Ship release",
		Description: "Cut the tag\nPublish notes",
		Priority:    "HIGH",
		DueDate:     time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
		AppURL:      "https://app.taskhub.test/",
	}
}

func TestRenderReminderDueSoon(t *testing.T) {
	msg, err := RenderReminder(EmailTypeReminderDueSoon, reminderData())
	if err != nil {
		t.Fatalf("RenderReminder: %v", err)
	}

	if msg.Subject != `Reminder: "Ship release" is due soon` {
		t.Errorf("subject = %q", msg.Subject)
	}
	if msg.To != "ana@acme.test" || msg.Type != EmailTypeReminderDueSoon {
		t.Errorf("unexpected addressing: %+v", msg)
	}
	if !strings.Contains(msg.HTML, `<a href="https://app.taskhub.test/todos/4b1f0c2e-0000-4000-8000-000000000001">`) {
		t.Errorf("HTML missing todo link:\n%s", msg.HTML)
	}
	if !strings.Contains(msg.HTML, "<strong>Ship release</strong>") {
		t.Errorf("HTML missing bold title:\n%s", msg.HTML)
	}
	if !strings.Contains(msg.HTML, "<blockquote>") {
		t.Errorf("HTML missing description quote:\n%s", msg.HTML)
	}
	if !strings.Contains(msg.Text, "Tue, 10 Mar 2026 09:00 UTC") {
		t.Errorf("text missing due date:\n%s", msg.Text)
	}
}

func TestRenderReminderOverdue(t *testing.T) {
	msg, err := RenderReminder(EmailTypeReminderOverdue, reminderData())
	if err != nil {
		t.Fatalf("RenderReminder: %v", err)
	}
	if msg.Subject != `Overdue: "Ship release"` {
		t.Errorf("subject = %q", msg.Subject)
	}
	if !strings.Contains(msg.Text, "is still open") {
		t.Errorf("text = %q", msg.Text)
	}
}

func TestRenderReminderEscapesUserText(t *testing.T) {
	data := reminderData()
	data.TodoTitle = "<script>alert(1)</script> *bold*"
	data.Description = "[click](javascript:alert(1))"

	msg, err := RenderReminder(EmailTypeReminderDueSoon, data)
	if err != nil {
		t.Fatalf("RenderReminder: %v", err)
	}

	if strings.Contains(msg.HTML, "<script>") {
		t.Errorf("HTML contains raw script tag:\n%s", msg.HTML)
	}
	if strings.Contains(msg.HTML, `href="javascript:`) {
		t.Errorf("description became a link:\n%s", msg.HTML)
	}
	if strings.Contains(msg.HTML, "<em>bold</em>") {
		t.Errorf("title markup was interpreted:\n%s", msg.HTML)
	}
}

func TestRenderReminderWithoutOptionalFields(t *testing.T) {
	data := reminderData()
	data.UserName = ""
	data.Description = ""
	data.AppURL = ""

	msg, err := RenderReminder(EmailTypeReminderDueSoon, data)
	if err != nil {
		t.Fatalf("RenderReminder: %v", err)
	}
	if !strings.HasPrefix(msg.Text, "Hi there,") {
		t.Errorf("text = %q", msg.Text)
	}
	if strings.Contains(msg.HTML, "<a ") {
		t.Errorf("unexpected link without app URL:\n%s", msg.HTML)
	}
}

func TestRenderReminderUnknownType(t *testing.T) {
	if _, err := RenderReminder("welcome", reminderData()); err == nil {
		t.Fatal("expected error for unsupported type")
	}
}

func TestRenderReminderShortensLongTitleInSubject(t *testing.T) {
	title := strings.Repeat("quarterly report ", 12)
	msg, err := RenderReminder(EmailTypeReminderOverdue, ReminderData{
		To:        "ana@acme.test",
		TodoTitle: title + "\r\nBcc: x@evil.test",
		DueDate:   time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatal(err)
	}
	if n := utf8.RuneCountInString(msg.Subject); n > 80 {
		t.Errorf("subject has %d runes: %q", n, msg.Subject)
	}
	if strings.ContainsAny(msg.Subject, "\r\n") {
		t.Errorf("subject contains a line break: %q", msg.Subject)
	}
	if !strings.Contains(msg.Subject, "…") {
		t.Errorf("expected truncation marker: %q", msg.Subject)
	}
	if !strings.Contains(msg.Text, strings.TrimSpace(title)) {
		t.Error("body should keep the full title")
	}
}

func TestSubjectTitleKeepsShortTitles(t *testing.T) {
	if got := subjectTitle("Ship  release"); got != "Ship release" {
		t.Errorf("subjectTitle = %q", got)
	}
}
