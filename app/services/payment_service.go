package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alumbrados-dev/Concessions-Connection-sub000/app/models"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/app/repositories"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/apperr"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/event"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/logger"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/metrics"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/payment"
)

// idempotencyNamespace scopes the UUIDv5 keys sent to the processor.
var idempotencyNamespace = uuid.MustParse("4f6c2a8e-93d1-5b0e-a7c4-1d2e3f405162")

// EventFirer hands domain events to listeners without blocking the caller.
type EventFirer interface {
	FireAsync(ctx context.Context, e event.Event)
}

// PayRequest asks to charge an order. Amounts are never taken from the
// caller; the order's stored total is charged.
type PayRequest struct {
	OrderID           uint
	Method            string
	Nonce             string
	VerificationToken string
	Currency          string
}

// Money is an amount in minor units.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// PaymentReceipt is the processor's view of an accepted charge.
type PaymentReceipt struct {
	ID         string    `json:"id"`
	Status     string    `json:"status"`
	TotalMoney Money     `json:"totalMoney"`
	CreatedAt  time.Time `json:"createdAt"`
}

type PaymentResult struct {
	Payment PaymentReceipt `json:"payment"`
	Order   models.Order   `json:"order"`
}

type PaymentOptions struct {
	// Currency accepted for charges. Default USD.
	Currency string
	// Timeout bounds one processor call. Default 30s.
	Timeout time.Duration
	// StaleAfter is how long an order may sit in processing before another
	// attempt may reclaim it. Default 2m.
	StaleAfter time.Duration
	Now        func() time.Time
}

// PaymentService coordinates a charge against the order ledger. Every
// state change is a conditional write, so two concurrent Pay calls for one
// order cannot both reach the processor.
type PaymentService struct {
	auth      *Authenticator
	orders    *OrderService
	processor payment.Processor
	events    EventFirer
	opts      PaymentOptions
}

// NewPaymentService builds the coordinator. A nil processor means payments
// are not configured for this deployment.
func NewPaymentService(a *Authenticator, orders *OrderService, processor payment.Processor, events EventFirer, opts PaymentOptions) *PaymentService {
	if opts.Currency == "" {
		opts.Currency = "USD"
	}
	opts.Currency = strings.ToUpper(opts.Currency)
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 2 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &PaymentService{auth: a, orders: orders, processor: processor, events: events, opts: opts}
}

// Configured reports whether a processor is wired.
func (s *PaymentService) Configured() bool { return s.processor != nil }

// Pay charges the order for its stored total.
func (s *PaymentService) Pay(ctx context.Context, token string, req PayRequest) (PaymentResult, error) {
	user, err := s.auth.Resolve(ctx, token)
	if err != nil {
		return PaymentResult{}, err
	}
	log := logger.WithCtx(ctx).With("user_id", user.ID, "order_id", req.OrderID)

	if s.processor == nil {
		metrics.RecordPayment("rejected", time.Time{})
		return PaymentResult{}, apperr.New(apperr.KindServiceUnavailable, apperr.CodePaymentUnavailable,
			"payment processing is not configured")
	}

	order, err := s.orders.GetOwnedOrder(ctx, user.ID, req.OrderID)
	if err != nil {
		return PaymentResult{}, err
	}
	if order.PaymentStatus == models.PaymentCompleted {
		return PaymentResult{}, apperr.New(apperr.KindConflict, apperr.CodeAlreadyPaid, "order is already paid")
	}

	method, currency, err := s.checkRequest(req)
	if err != nil {
		return PaymentResult{}, err
	}
	amount, err := MinorUnits(order.Total)
	if err != nil {
		return PaymentResult{}, err
	}

	from := order.PaymentStatus
	if from == models.PaymentProcessing && s.opts.Now().Sub(order.UpdatedAt) < s.opts.StaleAfter {
		return PaymentResult{}, apperr.New(apperr.KindConflict, apperr.CodePaymentInProgress,
			"a payment for this order is already in progress")
	}

	order, err = s.orders.TransitionPaymentStatus(ctx, order.ID, repositories.Transition{
		From:       from,
		To:         models.PaymentProcessing,
		Attempt:    order.PaymentAttempts,
		NewAttempt: true,
	})
	if err != nil {
		return PaymentResult{}, err
	}
	attempt := order.PaymentAttempts
	log = log.With("attempt", attempt)
	log.Info("payment: attempt started", "amount_cents", amount, "method", method)

	chargeCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	start := time.Now()
	res, chargeErr := s.processor.Charge(chargeCtx, payment.ChargeRequest{
		Nonce:             req.Nonce,
		IdempotencyKey:    IdempotencyKey(order.ID, attempt),
		AmountCents:       amount,
		Currency:          currency,
		ReferenceID:       fmt.Sprintf("order-%d", order.ID),
		VerificationToken: req.VerificationToken,
	})
	timedOut := errors.Is(chargeCtx.Err(), context.DeadlineExceeded)
	cancel()

	// The outcome must land even if the client went away mid-charge.
	fctx := context.WithoutCancel(ctx)

	if chargeErr != nil {
		return PaymentResult{}, s.fail(fctx, log, order, attempt, chargeErr, timedOut, start)
	}

	paid, err := s.orders.TransitionPaymentStatus(fctx, order.ID, repositories.Transition{
		From:          models.PaymentProcessing,
		To:            models.PaymentCompleted,
		Attempt:       attempt,
		TransactionID: res.ID,
		PaymentMethod: method,
	})
	if err != nil {
		// Charged but not recorded. Needs manual reconciliation.
		log.Error("payment: charge succeeded but order update failed",
			"transaction_id", res.ID, "error", err)
		metrics.RecordPayment("error", start)
		return PaymentResult{}, apperr.Internal(err)
	}

	metrics.RecordPayment("completed", start)
	log.Info("payment: completed", "transaction_id", res.ID)
	if s.events != nil {
		s.events.FireAsync(fctx, OrderPaid{Order: paid, User: user})
	}

	if res.Currency == "" {
		res.Currency = currency
	}
	if res.AmountCents == 0 {
		res.AmountCents = amount
	}
	if res.CreatedAt.IsZero() {
		res.CreatedAt = s.opts.Now()
	}
	return PaymentResult{
		Payment: PaymentReceipt{
			ID:         res.ID,
			Status:     res.Status,
			TotalMoney: Money{Amount: res.AmountCents, Currency: res.Currency},
			CreatedAt:  res.CreatedAt,
		},
		Order: paid,
	}, nil
}

func (s *PaymentService) checkRequest(req PayRequest) (method, currency string, err error) {
	switch req.Method {
	case models.MethodCard, models.MethodApplePay, models.MethodGooglePay:
		method = req.Method
	case "":
		method = models.MethodCard
	default:
		return "", "", apperr.New(apperr.KindValidation, apperr.CodeValidation, "unsupported payment method").
			With("method", req.Method)
	}
	if strings.TrimSpace(req.Nonce) == "" {
		return "", "", apperr.New(apperr.KindValidation, apperr.CodeValidation, "payment source is required")
	}

	currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = s.opts.Currency
	}
	if currency != s.opts.Currency {
		return "", "", apperr.New(apperr.KindValidation, apperr.CodeUnsupportedCurrency, "unsupported currency").
			With("currency", s.opts.Currency)
	}
	return method, currency, nil
}

func (s *PaymentService) fail(ctx context.Context, log *slog.Logger, order models.Order, attempt int, cause error, timedOut bool, start time.Time) error {
	if _, err := s.orders.TransitionPaymentStatus(ctx, order.ID, repositories.Transition{
		From:    models.PaymentProcessing,
		To:      models.PaymentFailed,
		Attempt: attempt,
	}); err != nil {
		log.Error("payment: could not mark order failed", "error", err)
	}

	var decline *payment.DeclineError
	if errors.As(cause, &decline) {
		log.Info("payment: declined", "reason", decline.Reason.String(), "processor_code", decline.Detail)
		switch decline.Reason {
		case payment.DeclineCard:
			metrics.RecordPayment("declined", start)
			return apperr.New(apperr.KindPaymentDeclined, apperr.CodeCardDeclined, "card was declined")
		case payment.DeclineInsufficientFunds:
			metrics.RecordPayment("declined", start)
			return apperr.New(apperr.KindPaymentDeclined, apperr.CodeInsufficientFunds, "insufficient funds")
		case payment.DeclineVerificationRequired:
			metrics.RecordPayment("verification_required", start)
			return apperr.New(apperr.KindPaymentDeclined, apperr.CodeVerificationRequired,
				"additional verification is required").With("requiresVerification", true)
		default:
			metrics.RecordPayment("declined", start)
			return apperr.New(apperr.KindPaymentDeclined, apperr.CodePaymentFailed, "payment failed")
		}
	}

	outcome := "error"
	if timedOut {
		outcome = "timeout"
	}
	metrics.RecordPayment(outcome, start)
	log.Warn("payment: processor call failed", "error", cause, "timed_out", timedOut)
	return apperr.New(apperr.KindServiceUnavailable, apperr.CodePaymentProcessingFailed,
		"payment processing failed; please try again").Wrap(cause)
}

// SweepStale fails orders stuck in processing past the stale threshold.
func (s *PaymentService) SweepStale(ctx context.Context) error {
	stale, err := s.orders.StaleProcessing(ctx, s.opts.Now().Add(-s.opts.StaleAfter))
	if err != nil {
		return err
	}
	var swept int
	for _, o := range stale {
		_, err := s.orders.TransitionPaymentStatus(ctx, o.ID, repositories.Transition{
			From:    models.PaymentProcessing,
			To:      models.PaymentFailed,
			Attempt: o.PaymentAttempts,
		})
		if errors.Is(err, repositories.ErrStaleStatus) {
			continue
		}
		if err != nil {
			return err
		}
		swept++
	}
	if swept > 0 {
		logger.WithCtx(ctx).Warn("payment: failed stale attempts", "count", swept)
	}
	return nil
}

// MinorUnits converts a decimal amount to cents, rounding half away from
// zero.
func MinorUnits(total decimal.Decimal) (int64, error) {
	cents := total.Shift(2).Round(0)
	if !cents.IsPositive() {
		return 0, apperr.New(apperr.KindValidation, apperr.CodeInvalidAmount, "order total must be positive")
	}
	return cents.IntPart(), nil
}

// IdempotencyKey is stable for one attempt on one order, so retried
// processor calls deduplicate while a new attempt gets a new key.
func IdempotencyKey(orderID uint, attempt int) string {
	return uuid.NewSHA1(idempotencyNamespace, []byte(fmt.Sprintf("order:%d:attempt:%d", orderID, attempt))).String()
}
