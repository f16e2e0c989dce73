// Package jobs holds the background jobs run by the queue workers.
package jobs

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/alumbrados-dev/Concessions-Connection-sub000/app/models"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/app/repositories"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/logger"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/mail"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/notification"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/queue"
)

const ReceiptJobName = "order.receipt"

// Sender delivers a notification.
type Sender interface {
	Send(ctx context.Context, address string, n notification.Notification) error
}

// ReceiptDeps are the collaborators a receipt job needs at run time.
type ReceiptDeps struct {
	Orders   repositories.OrderStore
	Notifier Sender
	Currency string
}

// ReceiptJob mails the customer a receipt and alerts the truck crew.
// Only OrderID and Email travel through the queue.
type ReceiptJob struct {
	OrderID uint   `json:"order_id"`
	Email   string `json:"email"`

	deps *ReceiptDeps
}

func (ReceiptJob) JobName() string { return ReceiptJobName }

// Register installs the receipt job factory on m.
func Register(m *queue.Manager, deps ReceiptDeps) {
	d := deps
	m.Register(ReceiptJobName, func() queue.Job { return &ReceiptJob{deps: &d} })
}

func (j *ReceiptJob) Handle(ctx context.Context) error {
	if j.deps == nil {
		return fmt.Errorf("jobs: receipt job has no dependencies")
	}
	o, err := j.deps.Orders.FindOrder(ctx, j.OrderID)
	if err != nil {
		return fmt.Errorf("jobs: load order %d: %w", j.OrderID, err)
	}
	if o.PaymentStatus != models.PaymentCompleted {
		logger.WithCtx(ctx).Warn("jobs: receipt skipped for unpaid order", "order_id", o.ID)
		return nil
	}
	return j.deps.Notifier.Send(ctx, j.Email, OrderReceipt{Order: o, Currency: j.deps.Currency})
}

// OrderReceipt is the paid-order notification.
type OrderReceipt struct {
	Order    models.Order
	Currency string
}

func (OrderReceipt) Via() []string {
	return []string{notification.ChannelMail, notification.ChannelSlack}
}

func (r OrderReceipt) ToMail() (notification.MailData, error) {
	rc := mail.Receipt{
		OrderID:  r.Order.ID,
		Subtotal: r.Order.Subtotal.StringFixed(2),
		Tax:      r.Order.Tax.StringFixed(2),
		Total:    r.Order.Total.StringFixed(2),
		Currency: r.Currency,
	}
	if r.Order.TransactionID != nil {
		rc.TransactionID = *r.Order.TransactionID
	}
	for _, it := range r.Order.Items {
		rc.Lines = append(rc.Lines, mail.ReceiptLine{
			Name:     it.Name,
			Quantity: it.Quantity,
			Amount:   it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))).StringFixed(2),
		})
	}

	html, err := mail.RenderReceipt(rc)
	if err != nil {
		return notification.MailData{}, err
	}
	return notification.MailData{Subject: fmt.Sprintf("Receipt for order #%d", r.Order.ID), HTML: html}, nil
}

func (r OrderReceipt) ToSlack() notification.SlackData {
	return notification.SlackData{
		Text: fmt.Sprintf("Order #%d paid", r.Order.ID),
		Attachments: []notification.SlackAttachment{{
			Color: "good",
			Title: fmt.Sprintf("%s %s", r.Order.Total.StringFixed(2), r.Currency),
			Text:  fmt.Sprintf("%d item line(s), %s", len(r.Order.Items), r.Order.DeliveryMethod),
		}},
	}
}
