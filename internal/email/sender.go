// Package email renders and delivers taskhub notifications.
// Delivery is pluggable: log (development), direct SMTP, or publish to Kafka
// for the mailer to deliver.
package email

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Sender delivers one message. A nil error means the message was accepted.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Config holds email configuration
type Config struct {
	Mode     string // "log", "smtp" or "kafka"
	Host     string
	Port     int
	User     string
	Password string
	From     string
	FromName string
	// Topic is the Kafka topic used in kafka mode.
	Topic string
}

// Publisher publishes an event and waits for the broker's delivery report.
type Publisher interface {
	PublishSync(ctx context.Context, topic, key string, event any) error
}

// ErrNoPublisher is returned when kafka mode is configured without a producer.
var ErrNoPublisher = errors.New("email: kafka mode requires a publisher")

// NewSender creates a new email sender based on configuration
func NewSender(cfg Config, publisher Publisher, logger *slog.Logger) (Sender, error) {
	switch cfg.Mode {
	case "smtp":
		if cfg.Host == "" {
			return nil, errors.New("email: smtp mode requires a host")
		}
		return &smtpSender{config: cfg, send: sendMail}, nil
	case "kafka":
		if publisher == nil {
			return nil, ErrNoPublisher
		}
		return &kafkaSender{publisher: publisher, topic: cfg.Topic, logger: logger}, nil
	default:
		return &logSender{logger: logger}, nil
	}
}

// logSender logs emails instead of sending them (development mode)
type logSender struct {
	logger *slog.Logger
}

func (s *logSender) Send(ctx context.Context, msg Message) error {
	s.logger.Info("[DEV] Email",
		"to", msg.To,
		"type", msg.Type,
		"subject", msg.Subject,
		"text", msg.Text)
	return nil
}

// smtpSender sends emails via SMTP (production mode)
type smtpSender struct {
	config Config
	send   func(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func (s *smtpSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if s.config.User != "" {
		auth = smtp.PlainAuth("", s.config.User, s.config.Password, s.config.Host)
	}

	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	err := s.send(ctx, addr, auth, s.config.From, []string{msg.To}, buildMIME(s.config, msg))
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// defaultSMTPTimeout bounds a send when the caller's context has no deadline.
const defaultSMTPTimeout = 30 * time.Second

// sendMail is smtp.SendMail bounded by ctx: the dial honours cancellation and
// every read and write on the connection shares the context deadline.
func sendMail(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}

	conn, err := (&net.Dialer{}).DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultSMTPTimeout)
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return err
	}

	// Unblock pending I/O on cancellation without a deadline.
	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Now())
	})
	defer stop()

	c, err := smtp.NewClient(conn, host)
	if err != nil {
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return err
		}
	}
	if a != nil {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(a); err != nil {
				return err
			}
		}
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

const mimeBoundary = "taskhub-alt-boundary"

// buildMIME renders a multipart/alternative message with text and HTML parts.
func buildMIME(cfg Config, msg Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s <%s>\r\n", mime.QEncoding.Encode("utf-8", cfg.FromName), cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	if msg.ID != "" {
		fmt.Fprintf(&b, "Message-ID: <%s@taskhub>\r\n", msg.ID)
	}
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", mimeBoundary)

	fmt.Fprintf(&b, "--%s\r\n", mimeBoundary)
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(msg.Text)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", mimeBoundary)
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
	b.WriteString(msg.HTML)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s--\r\n", mimeBoundary)
	return []byte(b.String())
}

// kafkaSender hands the message to the mailer through Kafka. Success means the
// broker acknowledged the event, not that the mail was delivered.
type kafkaSender struct {
	publisher Publisher
	topic     string
	logger    *slog.Logger
}

func (s *kafkaSender) Send(ctx context.Context, msg Message) error {
	id := msg.ID
	if id == "" {
		id = uuid.New().String()
	}

	event := EmailEvent{
		MessageID: id,
		EventType: msg.Type,
		Timestamp: time.Now().UTC(),
		Recipient: msg.To,
		Subject:   msg.Subject,
		HTML:      msg.HTML,
		Text:      msg.Text,
	}
	if err := s.publisher.PublishSync(ctx, s.topic, id, event); err != nil {
		return fmt.Errorf("publish email event: %w", err)
	}

	s.logger.Debug("Email event published", "message_id", id, "type", msg.Type)
	return nil
}
