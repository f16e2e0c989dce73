package services

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alumbrados-dev/Concessions-Connection-sub000/app/models"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/app/repositories"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/apperr"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/logger"
)

// Publisher pushes a {type, data} message to realtime subscribers.
type Publisher interface {
	Publish(msgType string, data any)
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, any) {}

// Realtime message types.
const (
	MsgOrderCreated    = "ORDER_CREATED"
	MsgOrderUpdated    = "ORDER_UPDATED"
	MsgOrderPaid       = "ORDER_PAID"
	MsgStockUpdated    = "STOCK_UPDATED"
	MsgItemCreated     = "ITEM_CREATED"
	MsgItemUpdated     = "ITEM_UPDATED"
	MsgItemDeleted     = "ITEM_DELETED"
	MsgEventCreated    = "EVENT_CREATED"
	MsgEventUpdated    = "EVENT_UPDATED"
	MsgEventDeleted    = "EVENT_DELETED"
	MsgAdCreated       = "AD_CREATED"
	MsgAdUpdated       = "AD_UPDATED"
	MsgAdDeleted       = "AD_DELETED"
	MsgLocationUpdated = "LOCATION_UPDATED"
	MsgSettingsUpdated = "SETTINGS_UPDATED"
)

// Delivery methods.
const (
	DeliveryPickup   = "pickup"
	DeliveryCurbside = "curbside"
	DeliveryDelivery = "delivery"
)

// CreateOrderInput is a checkout request. DisplayTotal is what the client
// showed the customer; it is stored but never charged.
type CreateOrderInput struct {
	Items          []CartLine      `json:"items" validate:"required,min=1,max=50,dive"`
	DisplayTotal   decimal.Decimal `json:"total"`
	DeliveryMethod string          `json:"deliveryMethod" validate:"omitempty,oneof=pickup curbside delivery"`
	DeliveryData   map[string]any  `json:"deliveryData"`
}

// OrderService is the order ledger.
type OrderService struct {
	orders repositories.OrderStore
	pricer Pricer
	hub    Publisher
}

func NewOrderService(orders repositories.OrderStore, pricer Pricer, hub Publisher) *OrderService {
	if hub == nil {
		hub = nopPublisher{}
	}
	return &OrderService{orders: orders, pricer: pricer, hub: hub}
}

// CreateOrder prices the cart from the catalog and stores a pending order.
func (s *OrderService) CreateOrder(ctx context.Context, userID uint, in CreateOrderInput) (models.Order, error) {
	q, err := s.pricer.Quote(ctx, in.Items)
	if err != nil {
		return models.Order{}, err
	}

	method := in.DeliveryMethod
	if method == "" {
		method = DeliveryPickup
	}

	o := models.Order{
		UserID:         userID,
		Items:          q.Items,
		Subtotal:       q.Subtotal,
		Tax:            q.Tax,
		Total:          q.Total,
		DisplayTotal:   in.DisplayTotal.Round(2),
		Status:         models.OrderPending,
		PaymentStatus:  models.PaymentPending,
		DeliveryMethod: method,
		DeliveryData:   in.DeliveryData,
	}
	if err := s.orders.CreateOrder(ctx, &o); err != nil {
		return models.Order{}, apperr.Internal(err)
	}

	log := logger.WithCtx(ctx)
	if !o.DisplayTotal.IsZero() && !o.DisplayTotal.Equal(o.Total) {
		log.Warn("order: client total differs from quote", "order_id", o.ID,
			"display_total", o.DisplayTotal.StringFixed(2), "total", o.Total.StringFixed(2))
	}
	log.Info("order: created", "order_id", o.ID, "total", o.Total.StringFixed(2))

	s.hub.Publish(MsgOrderCreated, map[string]any{"id": o.ID, "total": o.Total, "status": o.Status})
	return o, nil
}

// GetOrder loads any order by id.
func (s *OrderService) GetOrder(ctx context.Context, id uint) (models.Order, error) {
	o, err := s.orders.FindOrder(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return models.Order{}, apperr.ErrOrderNotFound
	}
	if err != nil {
		return models.Order{}, apperr.Internal(err)
	}
	return o, nil
}

// GetOwnedOrder loads an order for its owner. Another user's order looks
// exactly like a missing one.
func (s *OrderService) GetOwnedOrder(ctx context.Context, userID, id uint) (models.Order, error) {
	o, err := s.GetOrder(ctx, id)
	if err != nil {
		return models.Order{}, err
	}
	if o.UserID != userID {
		return models.Order{}, apperr.ErrOrderNotFound
	}
	return o, nil
}

func (s *OrderService) ListForUser(ctx context.Context, userID uint) ([]models.Order, error) {
	out, err := s.orders.ListOrdersByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return out, nil
}

func (s *OrderService) List(ctx context.Context, f repositories.OrderFilter) ([]models.Order, error) {
	out, err := s.orders.ListOrders(ctx, f)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return out, nil
}

// StaleProcessing lists orders left in processing since before cutoff.
func (s *OrderService) StaleProcessing(ctx context.Context, cutoff time.Time) ([]models.Order, error) {
	return s.orders.StaleProcessing(ctx, cutoff)
}

// TransitionPaymentStatus applies a conditional payment-state write. A
// write that finds a different prior state is a Conflict.
func (s *OrderService) TransitionPaymentStatus(ctx context.Context, id uint, t repositories.Transition) (models.Order, error) {
	o, err := s.orders.TransitionPaymentStatus(ctx, id, t)
	switch {
	case err == nil:
		return o, nil
	case errors.Is(err, repositories.ErrNotFound):
		return models.Order{}, apperr.ErrOrderNotFound
	case errors.Is(err, repositories.ErrStaleStatus):
		return models.Order{}, apperr.New(apperr.KindConflict, apperr.CodePaymentInProgress,
			"order payment state changed concurrently").Wrap(err)
	case errors.Is(err, repositories.ErrInvalidTransition):
		return models.Order{}, apperr.New(apperr.KindConflict, apperr.CodeInvalidStatusTransition,
			"illegal payment status change").Wrap(err)
	default:
		return models.Order{}, apperr.Internal(err)
	}
}

// AdvanceFulfillment moves the kitchen status along its flow.
func (s *OrderService) AdvanceFulfillment(ctx context.Context, id uint, to string) (models.Order, error) {
	cur, err := s.GetOrder(ctx, id)
	if err != nil {
		return models.Order{}, err
	}
	if !models.CanAdvance(cur.Status, to) {
		return models.Order{}, apperr.New(apperr.KindConflict, apperr.CodeInvalidStatusTransition,
			"order cannot move to that status").With("from", cur.Status).With("to", to)
	}

	o, err := s.orders.UpdateFulfillmentStatus(ctx, id, cur.Status, to)
	if errors.Is(err, repositories.ErrStaleStatus) {
		return models.Order{}, apperr.New(apperr.KindConflict, apperr.CodeInvalidStatusTransition,
			"order status changed concurrently")
	}
	if err != nil {
		return models.Order{}, apperr.Internal(err)
	}

	logger.WithCtx(ctx).Info("order: status advanced", "order_id", id, "from", cur.Status, "to", to)
	s.hub.Publish(MsgOrderUpdated, map[string]any{"id": o.ID, "status": o.Status})
	return o, nil
}
