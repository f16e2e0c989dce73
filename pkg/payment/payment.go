// Package payment defines the contract between the payment coordinator and
// an external card processor.
package payment

import (
	"context"
	"fmt"
	"time"
)

// Processor charges a tokenized payment method.
//
// Implementations must return *DeclineError when the processor looked at the
// charge and refused it. Any other error means the outcome is unknown or the
// processor could not be reached.
type Processor interface {
	Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error)
}

// ChargeRequest is one charge attempt. AmountCents is already in minor units.
type ChargeRequest struct {
	Nonce             string
	IdempotencyKey    string
	AmountCents       int64
	Currency          string
	ReferenceID       string
	VerificationToken string
}

// ChargeResult is what the processor echoes back for an accepted charge.
type ChargeResult struct {
	ID          string
	Status      string
	AmountCents int64
	Currency    string
	CreatedAt   time.Time
}

// DeclineReason classifies a processor refusal.
type DeclineReason int

const (
	DeclineGeneric DeclineReason = iota
	DeclineCard
	DeclineInsufficientFunds
	DeclineVerificationRequired
)

func (r DeclineReason) String() string {
	switch r {
	case DeclineCard:
		return "card_declined"
	case DeclineInsufficientFunds:
		return "insufficient_funds"
	case DeclineVerificationRequired:
		return "verification_required"
	default:
		return "generic"
	}
}

// DeclineError is a definite refusal from the processor. Detail is the
// processor's own code, for logs only.
type DeclineError struct {
	Reason DeclineReason
	Detail string
}

func (e *DeclineError) Error() string {
	return fmt.Sprintf("payment declined (%s): %s", e.Reason, e.Detail)
}
