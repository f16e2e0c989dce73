// Package square is a minimal Square Payments API client implementing
// payment.Processor. Only CreatePayment is used.
package square

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alumbrados-dev/Concessions-Connection-sub000/config"
	pkghttp "github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/http"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/payment"
)

const (
	SandboxURL    = "https://connect.squareupsandbox.com"
	ProductionURL = "https://connect.squareup.com"

	// APIVersion pins the request and response shapes.
	APIVersion = "2024-10-17"
)

// ErrNotConfigured is returned by New when credentials are missing.
var ErrNotConfigured = errors.New("square: access token and location id are required")

// Options configures a Client.
type Options struct {
	AccessToken string
	LocationID  string
	// Environment is "production" or anything else for sandbox.
	Environment string
	// BaseURL overrides the environment's host.
	BaseURL string
	// Attempts is the total number of tries on transport failures and 5xx.
	Attempts  int
	RetryWait time.Duration
}

// Client talks to the Square Payments API over pkg/http.
type Client struct {
	token      string
	locationID string
	baseURL    string
	attempts   int
	retryWait  time.Duration
}

var _ payment.Processor = (*Client)(nil)

func New(opts Options) (*Client, error) {
	if opts.AccessToken == "" || opts.LocationID == "" {
		return nil, ErrNotConfigured
	}
	base := opts.BaseURL
	if base == "" {
		base = SandboxURL
		if strings.EqualFold(opts.Environment, "production") {
			base = ProductionURL
		}
	}
	if opts.Attempts <= 0 {
		opts.Attempts = 3
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = 250 * time.Millisecond
	}
	return &Client{
		token:      opts.AccessToken,
		locationID: opts.LocationID,
		baseURL:    strings.TrimRight(base, "/"),
		attempts:   opts.Attempts,
		retryWait:  opts.RetryWait,
	}, nil
}

// FromConfig builds a Client from SQUARE_* settings.
func FromConfig() (*Client, error) {
	return New(Options{
		AccessToken: config.SquareAccessToken(),
		LocationID:  config.SquareLocationID(),
		Environment: config.SquareEnvironment(),
	})
}

// ─── Wire types ───────────────────────────────────────────────────────────────

type money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type createPaymentRequest struct {
	SourceID          string `json:"source_id"`
	IdempotencyKey    string `json:"idempotency_key"`
	AmountMoney       money  `json:"amount_money"`
	LocationID        string `json:"location_id"`
	ReferenceID       string `json:"reference_id,omitempty"`
	VerificationToken string `json:"verification_token,omitempty"`
	Autocomplete      bool   `json:"autocomplete"`
}

type apiError struct {
	Category string `json:"category"`
	Code     string `json:"code"`
	Detail   string `json:"detail"`
}

type createPaymentResponse struct {
	Payment *struct {
		ID          string    `json:"id"`
		Status      string    `json:"status"`
		AmountMoney money     `json:"amount_money"`
		CreatedAt   time.Time `json:"created_at"`
	} `json:"payment"`
	Errors []apiError `json:"errors"`
}

// ─── Charge ───────────────────────────────────────────────────────────────────

// Charge creates an autocompleted payment. Transport failures and 5xx are
// retried with the same idempotency key, which Square deduplicates.
func (c *Client) Charge(ctx context.Context, req payment.ChargeRequest) (payment.ChargeResult, error) {
	body := createPaymentRequest{
		SourceID:          req.Nonce,
		IdempotencyKey:    req.IdempotencyKey,
		AmountMoney:       money{Amount: req.AmountCents, Currency: req.Currency},
		LocationID:        c.locationID,
		ReferenceID:       req.ReferenceID,
		VerificationToken: req.VerificationToken,
		Autocomplete:      true,
	}

	resp, err := pkghttp.Post(c.baseURL+"/v2/payments").
		WithContext(ctx).
		Bearer(c.token).
		Header("Square-Version", APIVersion).
		Body(body).
		Retry(c.attempts, c.retryWait).
		RetryOn(http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout).
		Send()
	if err != nil {
		return payment.ChargeResult{}, fmt.Errorf("square: create payment: %w", err)
	}

	var out createPaymentResponse
	if err := resp.JSON(&out); err != nil {
		return payment.ChargeResult{}, fmt.Errorf("square: status %d: %w", resp.StatusCode, err)
	}

	if !resp.OK() || len(out.Errors) > 0 {
		return payment.ChargeResult{}, classify(resp.StatusCode, out.Errors)
	}
	if out.Payment == nil {
		return payment.ChargeResult{}, errors.New("square: response carried no payment")
	}

	p := out.Payment
	switch p.Status {
	case "COMPLETED", "APPROVED":
	case "FAILED", "CANCELED":
		return payment.ChargeResult{}, &payment.DeclineError{Reason: payment.DeclineGeneric, Detail: "status " + p.Status}
	default:
		return payment.ChargeResult{}, fmt.Errorf("square: unexpected payment status %q", p.Status)
	}

	return payment.ChargeResult{
		ID:          p.ID,
		Status:      p.Status,
		AmountCents: p.AmountMoney.Amount,
		Currency:    p.AmountMoney.Currency,
		CreatedAt:   p.CreatedAt,
	}, nil
}

// declineCodes maps Square error codes onto decline reasons.
var declineCodes = map[string]payment.DeclineReason{
	"CARD_DECLINED":                       payment.DeclineCard,
	"GENERIC_DECLINE":                     payment.DeclineCard,
	"CVV_FAILURE":                         payment.DeclineCard,
	"ADDRESS_VERIFICATION_FAILURE":        payment.DeclineCard,
	"INVALID_EXPIRATION":                  payment.DeclineCard,
	"CARD_EXPIRED":                        payment.DeclineCard,
	"INSUFFICIENT_FUNDS":                  payment.DeclineInsufficientFunds,
	"CARD_DECLINED_VERIFICATION_REQUIRED": payment.DeclineVerificationRequired,
}

// classify turns an error response into a DeclineError when Square made a
// decision about the charge, and a plain error when it could not.
func classify(status int, errs []apiError) error {
	for _, e := range errs {
		if reason, ok := declineCodes[e.Code]; ok {
			return &payment.DeclineError{Reason: reason, Detail: e.Code}
		}
	}

	first := apiError{Code: "UNKNOWN"}
	if len(errs) > 0 {
		first = errs[0]
	}

	switch {
	case first.Category == "PAYMENT_METHOD_ERROR":
		return &payment.DeclineError{Reason: payment.DeclineGeneric, Detail: first.Code}
	case status == http.StatusBadRequest || status == http.StatusPaymentRequired:
		return &payment.DeclineError{Reason: payment.DeclineGeneric, Detail: first.Code}
	default:
		return fmt.Errorf("square: status %d: %s", status, first.Code)
	}
}
