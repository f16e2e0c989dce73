package services

import (
	"context"

	"github.com/alumbrados-dev/Concessions-Connection-sub000/app/jobs"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/app/models"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/app/repositories"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/event"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/logger"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/queue"
)

const EventOrderPaid = "order.paid"

// OrderPaid fires once an order's payment has completed.
type OrderPaid struct {
	Order models.Order
	User  models.User
}

func (OrderPaid) EventName() string { return EventOrderPaid }

// PaidListeners are the side effects of a completed payment. None of them
// can undo the payment; each failure is logged and the rest still run.
type PaidListeners struct {
	Catalog *CatalogService
	Users   repositories.UserStore
	Hub     Publisher
	Jobs    queue.Dispatcher
}

// Register subscribes every listener to bus.
func (l PaidListeners) Register(bus *event.Bus) {
	if l.Hub == nil {
		l.Hub = nopPublisher{}
	}
	bus.Listen(EventOrderPaid, l.adjustStock)
	bus.Listen(EventOrderPaid, l.announce)
	bus.Listen(EventOrderPaid, l.awardPoints)
	bus.Listen(EventOrderPaid, l.queueReceipt)
}

func (l PaidListeners) adjustStock(ctx context.Context, e event.Event) error {
	if l.Catalog == nil {
		return nil
	}
	return l.Catalog.ApplySale(ctx, e.(OrderPaid).Order.Items)
}

func (l PaidListeners) announce(_ context.Context, e event.Event) error {
	o := e.(OrderPaid).Order
	l.Hub.Publish(MsgOrderPaid, map[string]any{
		"id":            o.ID,
		"total":         o.Total,
		"paymentStatus": o.PaymentStatus,
		"status":        o.Status,
	})
	return nil
}

// awardPoints grants one point per whole currency unit when the customer
// has opted in.
func (l PaidListeners) awardPoints(ctx context.Context, e event.Event) error {
	paid := e.(OrderPaid)
	if l.Users == nil || !paid.User.PointsEnabled {
		return nil
	}
	points := int(paid.Order.Total.Floor().IntPart())
	if points <= 0 {
		return nil
	}
	if err := l.Users.AddPoints(ctx, paid.User.ID, points); err != nil {
		return err
	}
	logger.WithCtx(ctx).Info("loyalty: points awarded", "user_id", paid.User.ID, "points", points)
	return nil
}

func (l PaidListeners) queueReceipt(_ context.Context, e event.Event) error {
	if l.Jobs == nil {
		return nil
	}
	paid := e.(OrderPaid)
	return l.Jobs.Dispatch(&jobs.ReceiptJob{OrderID: paid.Order.ID, Email: paid.User.Email})
}
