// Package mail sends transactional email: verification codes and order
// receipts.
//
//	m, err := mail.FromConfig(storage.Default())
//	err = m.To("a@b.com").Subject("Hello").HTML("<p>Hi</p>").Send(ctx)
//
// Two transports exist: SMTP for real delivery and an outbox that writes
// .eml files to a storage disk for local development.
package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alumbrados-dev/Concessions-Connection-sub000/config"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/storage"
)

// ErrNoRecipients is returned by Send when To was never called.
var ErrNoRecipients = errors.New("mail: no recipients")

// Transport delivers a fully rendered RFC 5322 message.
type Transport interface {
	Deliver(ctx context.Context, from string, to []string, raw []byte) error
}

// ------------------- SMTP -------------------

// SMTP holds connection credentials.
type SMTP struct {
	Host     string
	Port     string
	Username string
	Password string
}

// SMTPTransport delivers over SMTP: implicit TLS on 465, STARTTLS otherwise.
type SMTPTransport struct {
	cfg SMTP
}

func NewSMTPTransport(cfg SMTP) *SMTPTransport { return &SMTPTransport{cfg: cfg} }

func (t *SMTPTransport) Deliver(ctx context.Context, from string, to []string, raw []byte) error {
	addr := net.JoinHostPort(t.cfg.Host, t.cfg.Port)

	dialer := &net.Dialer{Timeout: 10 * time.Second}
	var conn net.Conn
	var err error
	if t.cfg.Port == "465" {
		conn, err = tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{ServerName: t.cfg.Host})
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("mail: dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, t.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("mail: smtp handshake: %w", err)
	}
	defer client.Close()

	if t.cfg.Port != "465" {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: t.cfg.Host}); err != nil {
				return fmt.Errorf("mail: starttls: %w", err)
			}
		}
	}
	if t.cfg.Username != "" {
		if err := client.Auth(smtp.PlainAuth("", t.cfg.Username, t.cfg.Password, t.cfg.Host)); err != nil {
			return fmt.Errorf("mail: auth: %w", err)
		}
	}
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("mail: MAIL FROM: %w", err)
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("mail: RCPT TO: %w", err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("mail: DATA: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		w.Close()
		return fmt.Errorf("mail: write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("mail: write: %w", err)
	}
	return client.Quit()
}

// ------------------- Outbox -------------------

// OutboxTransport writes each message to mail/outbox/ on a disk.
type OutboxTransport struct {
	disk storage.Disk
}

func NewOutboxTransport(disk storage.Disk) *OutboxTransport { return &OutboxTransport{disk: disk} }

func (t *OutboxTransport) Deliver(ctx context.Context, _ string, _ []string, raw []byte) error {
	name := fmt.Sprintf("mail/outbox/%s-%s.eml", time.Now().UTC().Format("20060102T150405"), uuid.NewString()[:8])
	return t.disk.Put(ctx, name, bytes.NewReader(raw), "message/rfc822")
}

// ------------------- Mailer -------------------

// Mailer renders and sends messages through a Transport.
type Mailer struct {
	from      string
	fromName  string
	transport Transport
}

func New(from, fromName string, t Transport) *Mailer {
	return &Mailer{from: from, fromName: fromName, transport: t}
}

// FromConfig picks the transport from MAIL_DRIVER (smtp or outbox). The
// outbox driver is refused in production.
func FromConfig(disk storage.Disk) (*Mailer, error) {
	from := config.Get("MAIL_FROM", "orders@foodtruck.local")
	fromName := config.Get("MAIL_FROM_NAME", "Food Truck")

	switch config.Get("MAIL_DRIVER", "smtp") {
	case "outbox":
		if config.IsProduction() {
			return nil, errors.New("mail: outbox driver is not allowed in production")
		}
		if disk == nil {
			return nil, errors.New("mail: outbox driver needs a storage disk")
		}
		return New(from, fromName, NewOutboxTransport(disk)), nil
	case "smtp":
		host := config.Get("MAIL_HOST", "")
		if host == "" {
			return nil, errors.New("mail: MAIL_HOST not configured")
		}
		return New(from, fromName, NewSMTPTransport(SMTP{
			Host:     host,
			Port:     config.Get("MAIL_PORT", "587"),
			Username: config.Get("MAIL_USERNAME", ""),
			Password: config.Get("MAIL_PASSWORD", ""),
		})), nil
	default:
		return nil, fmt.Errorf("mail: unknown MAIL_DRIVER %q", config.Get("MAIL_DRIVER", ""))
	}
}

// ------------------- Message -------------------

// Message is a fluent builder for one email.
type Message struct {
	mailer  *Mailer
	to      []string
	subject string
	body    string
	isHTML  bool
}

// To starts a message to the given recipients.
func (m *Mailer) To(addresses ...string) *Message {
	return &Message{mailer: m, to: addresses, isHTML: true}
}

func (msg *Message) Subject(s string) *Message {
	msg.subject = s
	return msg
}

// HTML sets an HTML body.
func (msg *Message) HTML(html string) *Message {
	msg.body = html
	msg.isHTML = true
	return msg
}

// Text sets a plain-text body.
func (msg *Message) Text(text string) *Message {
	msg.body = text
	msg.isHTML = false
	return msg
}

// Render executes tmpl with data as the HTML body.
func (msg *Message) Render(tmpl *template.Template, data any) (*Message, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("mail: render %s: %w", tmpl.Name(), err)
	}
	return msg.HTML(buf.String()), nil
}

// Send renders and delivers the message.
func (msg *Message) Send(ctx context.Context) error {
	if len(msg.to) == 0 {
		return ErrNoRecipients
	}
	for _, a := range msg.to {
		if strings.ContainsAny(a, "\r\n") {
			return fmt.Errorf("mail: invalid recipient %q", a)
		}
	}
	return msg.mailer.transport.Deliver(ctx, msg.mailer.from, msg.to, msg.build())
}

func (msg *Message) build() []byte {
	contentType := "text/plain"
	if msg.isHTML {
		contentType = "text/html"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s <%s>\r\n", headerSafe(msg.mailer.fromName), msg.mailer.from)
	b.WriteString("To: " + strings.Join(msg.to, ", ") + "\r\n")
	b.WriteString("Subject: " + headerSafe(msg.subject) + "\r\n")
	b.WriteString("Date: " + time.Now().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: %s; charset=\"UTF-8\"\r\n", contentType)
	b.WriteString("\r\n")
	b.WriteString(msg.body)
	return []byte(b.String())
}

func headerSafe(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
