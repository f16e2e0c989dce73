// Package notification sends one message over several channels.
//
// Define a notification:
//
//	type OrderPaid struct{ Order models.Order }
//	func (n OrderPaid) Via() []string { return []string{"mail", "slack"} }
//	func (n OrderPaid) ToMail() (notification.MailData, error) { ... }
//	func (n OrderPaid) ToSlack() notification.SlackData { ... }
//
// Send:
//
//	notifier.Send(ctx, "user@example.com", OrderPaid{Order: o})
package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	pkghttp "github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/http"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/logger"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/mail"
)

// Channel names.
const (
	ChannelMail  = "mail"
	ChannelSlack = "slack"
)

// ------------------- Channel data structs -------------------

// MailData carries the data needed to send an email notification.
type MailData struct {
	To      string // overrides the notifiable address if set
	Subject string
	HTML    string
}

// SlackData carries a Slack message payload.
type SlackData struct {
	Text        string            `json:"text,omitempty"`
	Attachments []SlackAttachment `json:"attachments,omitempty"`
}

// SlackAttachment is a single Slack message attachment block.
type SlackAttachment struct {
	Color  string `json:"color,omitempty"` // "good" | "warning" | "danger"
	Title  string `json:"title,omitempty"`
	Text   string `json:"text,omitempty"`
	Footer string `json:"footer,omitempty"`
}

// ------------------- Notification interface -------------------

// Notification names the channels it goes out on.
type Notification interface {
	Via() []string
}

// Mailable supports the mail channel.
type Mailable interface {
	ToMail() (MailData, error)
}

// Slackable supports the Slack channel.
type Slackable interface {
	ToSlack() SlackData
}

// ------------------- Notifier -------------------

// Notifier holds the channel backends. A nil mailer or empty webhook turns
// that channel into a logged no-op.
type Notifier struct {
	mailer       *mail.Mailer
	slackWebhook string
}

func New(mailer *mail.Mailer, slackWebhook string) *Notifier {
	return &Notifier{mailer: mailer, slackWebhook: slackWebhook}
}

// Send dispatches n through every channel it names and joins the failures.
func (nt *Notifier) Send(ctx context.Context, address string, n Notification) error {
	var errs []error
	for _, channel := range n.Via() {
		if err := nt.dispatch(ctx, address, channel, n); err != nil {
			logger.WithCtx(ctx).Warn("notification: channel failed", "channel", channel, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", channel, err))
		}
	}
	return errors.Join(errs...)
}

func (nt *Notifier) dispatch(ctx context.Context, address, channel string, n Notification) error {
	switch channel {
	case ChannelMail:
		m, ok := n.(Mailable)
		if !ok {
			return fmt.Errorf("notification: %T does not implement Mailable", n)
		}
		if nt.mailer == nil {
			logger.WithCtx(ctx).Debug("notification: mail channel not configured")
			return nil
		}
		d, err := m.ToMail()
		if err != nil {
			return err
		}
		to := d.To
		if to == "" {
			to = address
		}
		return nt.mailer.To(to).Subject(d.Subject).HTML(d.HTML).Send(ctx)

	case ChannelSlack:
		s, ok := n.(Slackable)
		if !ok {
			return fmt.Errorf("notification: %T does not implement Slackable", n)
		}
		if nt.slackWebhook == "" {
			logger.WithCtx(ctx).Debug("notification: slack channel not configured")
			return nil
		}
		return nt.sendSlack(ctx, s.ToSlack())

	default:
		return fmt.Errorf("notification: unknown channel %q", channel)
	}
}

func (nt *Notifier) sendSlack(ctx context.Context, d SlackData) error {
	resp, err := pkghttp.Post(nt.slackWebhook).
		WithContext(ctx).
		Body(d).
		Timeout(5*time.Second).
		Retry(2, time.Second).
		Send()
	if err != nil {
		return fmt.Errorf("notification: slack post: %w", err)
	}
	return resp.Throw()
}
