package email

import (
	"bytes"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	htmlrenderer "github.com/yuin/goldmark/renderer/html"
)

// ReminderData is what a reminder email says about a todo.
type ReminderData struct {
	To          string
	UserName    string
	TodoID      string
	TodoTitle   string
	Description string
	Priority    string
	DueDate     time.Time
	// AppURL is the base URL of the web app, used to link to the todo.
	AppURL string
}

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.Linkify),
	goldmark.WithRendererOptions(htmlrenderer.WithHardWraps()),
)

// RenderReminder builds the due-soon or overdue email for a todo. The body is
// written as markdown; Text carries it as is and HTML is its rendering.
func RenderReminder(kind EmailEventType, data ReminderData) (Message, error) {
	var subject, lead string
	title := subjectTitle(data.TodoTitle)
	switch kind {
	case EmailTypeReminderDueSoon:
		subject = fmt.Sprintf(`Reminder: "%s" is due soon`, title)
		lead = "is due **" + data.DueDate.UTC().Format("Mon, 02 Jan 2006 15:04 MST") + "**."
	case EmailTypeReminderOverdue:
		subject = fmt.Sprintf(`Overdue: "%s"`, title)
		lead = "was due **" + data.DueDate.UTC().Format("Mon, 02 Jan 2006 15:04 MST") + "** and is still open."
	default:
		return Message{}, fmt.Errorf("unsupported reminder type: %s", kind)
	}

	name := data.UserName
	if name == "" {
		name = "there"
	}

	var md strings.Builder
	fmt.Fprintf(&md, "Hi %s,\n\n", escapeMarkdown(name))
	fmt.Fprintf(&md, "Your todo **%s** %s\n\n", escapeMarkdown(data.TodoTitle), lead)
	if data.Priority != "" {
		fmt.Fprintf(&md, "Priority: %s\n\n", escapeMarkdown(data.Priority))
	}
	if data.Description != "" {
		for _, line := range strings.Split(data.Description, "\n") {
			fmt.Fprintf(&md, "> %s\n", escapeMarkdown(line))
		}
		md.WriteString("\n")
	}
	if data.AppURL != "" {
		link := strings.TrimRight(data.AppURL, "/") + "/todos/" + data.TodoID
		fmt.Fprintf(&md, "[Open the todo](%s)\n\n", link)
	}
	md.WriteString("You can turn these emails off in your notification preferences.\n")

	var body bytes.Buffer
	if err := markdown.Convert([]byte(md.String()), &body); err != nil {
		return Message{}, fmt.Errorf("render reminder: %w", err)
	}

	return Message{
		Type:    kind,
		To:      data.To,
		Subject: subject,
		HTML:    body.String(),
		Text:    md.String(),
	}, nil
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "*", `\*`, "_", `\_`, "`", "\\`", "[", `\[`, "]", `\]`, "<", `\<`, ">", `\>`, "#", `\#`,
)

// escapeMarkdown keeps user text literal inside the markdown body.
func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// maxSubjectTitle is the number of title runes kept in a subject line.
const maxSubjectTitle = 60

// subjectTitle flattens whitespace and control characters and shortens long
// titles. The body always carries the full title.
func subjectTitle(title string) string {
	title = strings.Join(strings.FieldsFunc(title, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	}), " ")
	runes := []rune(title)
	if len(runes) <= maxSubjectTitle {
		return title
	}
	return strings.TrimSpace(string(runes[:maxSubjectTitle-1])) + "…"
}
