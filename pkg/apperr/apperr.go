// Package apperr defines the error taxonomy shared by services and HTTP
// handlers. Services return *Error; handlers map Kind to a status code and
// render Code, Message and Details to the client. The wrapped cause is for
// logs only and is never rendered.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the client-visible error class.
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindConflict
	KindRateLimited
	KindValidation
	KindPaymentDeclined
	KindServiceUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindRateLimited:
		return "rate_limited"
	case KindValidation:
		return "validation"
	case KindPaymentDeclined:
		return "payment_declined"
	case KindServiceUnavailable:
		return "service_unavailable"
	default:
		return "internal"
	}
}

// HTTPStatus maps a Kind onto a response status.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindValidation:
		return http.StatusBadRequest
	case KindPaymentDeclined:
		return http.StatusPaymentRequired
	case KindServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Machine-readable codes.
const (
	CodeUnauthenticated         = "UNAUTHENTICATED"
	CodeInvalidToken            = "INVALID_TOKEN"
	CodeTokenEmailMismatch      = "TOKEN_EMAIL_MISMATCH"
	CodeForbidden               = "FORBIDDEN"
	CodeAdminSelfService        = "ADMIN_SELF_SERVICE_FORBIDDEN"
	CodeNotFound                = "NOT_FOUND"
	CodeOrderNotFound           = "ORDER_NOT_FOUND"
	CodeVerificationNotFound    = "VERIFICATION_NOT_FOUND"
	CodeVerificationPending     = "VERIFICATION_PENDING"
	CodeAlreadyVerified         = "ALREADY_VERIFIED"
	CodeCodeExpired             = "CODE_EXPIRED"
	CodeInvalidCode             = "INVALID_CODE"
	CodeTooManyAttempts         = "TOO_MANY_ATTEMPTS"
	CodeAlreadyPaid             = "ALREADY_PAID"
	CodePaymentInProgress       = "PAYMENT_IN_PROGRESS"
	CodeCardDeclined            = "CARD_DECLINED"
	CodeInsufficientFunds       = "INSUFFICIENT_FUNDS"
	CodeVerificationRequired    = "VERIFICATION_REQUIRED"
	CodePaymentFailed           = "PAYMENT_FAILED"
	CodePaymentProcessingFailed = "PAYMENT_PROCESSING_FAILED"
	CodePaymentUnavailable      = "PAYMENT_SERVICE_UNAVAILABLE"
	CodeEmailDeliveryFailed     = "EMAIL_DELIVERY_FAILED"
	CodeItemUnavailable         = "ITEM_UNAVAILABLE"
	CodeInsufficientStock       = "INSUFFICIENT_STOCK"
	CodeInvalidAmount           = "INVALID_AMOUNT"
	CodeUnsupportedCurrency     = "UNSUPPORTED_CURRENCY"
	CodeInvalidStatusTransition = "INVALID_STATUS_TRANSITION"
	CodeRateLimited             = "RATE_LIMITED"
	CodeValidation              = "VALIDATION_ERROR"
	CodeInternal                = "INTERNAL_ERROR"
)

// Error is a classified, client-safe error.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches another *Error by Code so sentinel values work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// With returns a copy carrying an extra detail.
func (e *Error) With(key string, value any) *Error {
	clone := *e
	clone.Details = make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		clone.Details[k] = v
	}
	clone.Details[key] = value
	return &clone
}

// Wrap returns a copy with cause attached.
func (e *Error) Wrap(cause error) *Error {
	clone := *e
	clone.cause = cause
	return &clone
}

// New builds an Error.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Internal wraps an unexpected failure.
func Internal(cause error) *Error {
	return &Error{Kind: KindInternal, Code: CodeInternal, Message: "internal error", cause: cause}
}

// From classifies any error; unknown errors become Internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}

// KindOf returns the Kind of err, or KindInternal.
func KindOf(err error) Kind {
	return From(err).Kind
}

// Common errors.
var (
	ErrUnauthenticated    = New(KindUnauthenticated, CodeUnauthenticated, "authentication required")
	ErrInvalidToken       = New(KindUnauthenticated, CodeInvalidToken, "invalid or expired token")
	ErrTokenEmailMismatch = New(KindUnauthenticated, CodeTokenEmailMismatch, "invalid or expired token")
	ErrForbidden          = New(KindForbidden, CodeForbidden, "admin access required")
	ErrNotFound           = New(KindNotFound, CodeNotFound, "not found")
	ErrOrderNotFound      = New(KindNotFound, CodeOrderNotFound, "order not found")
	ErrRateLimited        = New(KindRateLimited, CodeRateLimited, "too many requests")
)
