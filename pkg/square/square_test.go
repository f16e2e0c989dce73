package square_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkghttp "github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/http"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/payment"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/square"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/testkit"
)

const paymentsURL = square.SandboxURL + "/v2/payments"

func setup(t *testing.T) (*square.Client, *testkit.MockTransport) {
	t.Helper()
	mt := testkit.NewMockTransport()
	pkghttp.DefaultClient.Transport = mt
	t.Cleanup(pkghttp.ResetTransport)

	c, err := square.New(square.Options{
		AccessToken: "sq-token",
		LocationID:  "LOC1",
		RetryWait:   time.Millisecond,
	})
	require.NoError(t, err)
	return c, mt
}

func chargeReq() payment.ChargeRequest {
	return payment.ChargeRequest{
		Nonce:          "cnon:card-nonce-ok",
		IdempotencyKey: "idem-1",
		AmountCents:    1299,
		Currency:       "USD",
		ReferenceID:    "42",
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := square.New(square.Options{AccessToken: "x"})
	assert.ErrorIs(t, err, square.ErrNotConfigured)
}

func TestChargeSuccess(t *testing.T) {
	c, mt := setup(t)
	mt.On(http.MethodPost, paymentsURL).Reply(200, `{
		"payment": {
			"id": "pay_123",
			"status": "COMPLETED",
			"amount_money": {"amount": 1299, "currency": "USD"},
			"created_at": "2026-03-01T12:00:00Z"
		}
	}`)

	res, err := c.Charge(context.Background(), chargeReq())
	require.NoError(t, err)
	assert.Equal(t, "pay_123", res.ID)
	assert.Equal(t, "COMPLETED", res.Status)
	assert.EqualValues(t, 1299, res.AmountCents)

	reqs := mt.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Bearer sq-token", reqs[0].Header.Get("Authorization"))
	assert.Equal(t, square.APIVersion, reqs[0].Header.Get("Square-Version"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(reqs[0].Body, &body))
	assert.Equal(t, "cnon:card-nonce-ok", body["source_id"])
	assert.Equal(t, "idem-1", body["idempotency_key"])
	assert.Equal(t, "LOC1", body["location_id"])
	assert.Equal(t, "42", body["reference_id"])
	assert.Equal(t, map[string]any{"amount": float64(1299), "currency": "USD"}, body["amount_money"])
	assert.NotContains(t, body, "verification_token")
}

func TestChargePassesVerificationToken(t *testing.T) {
	c, mt := setup(t)
	mt.On(http.MethodPost, paymentsURL).Reply(200, `{"payment":{"id":"p","status":"COMPLETED"}}`)

	req := chargeReq()
	req.VerificationToken = "verf:abc"
	_, err := c.Charge(context.Background(), req)
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(mt.Requests()[0].Body, &body))
	assert.Equal(t, "verf:abc", body["verification_token"])
}

func TestChargeDeclines(t *testing.T) {
	cases := []struct {
		code   string
		reason payment.DeclineReason
	}{
		{"CARD_DECLINED", payment.DeclineCard},
		{"GENERIC_DECLINE", payment.DeclineCard},
		{"INSUFFICIENT_FUNDS", payment.DeclineInsufficientFunds},
		{"CARD_DECLINED_VERIFICATION_REQUIRED", payment.DeclineVerificationRequired},
		{"INVALID_CARD_DATA", payment.DeclineGeneric},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			c, mt := setup(t)
			mt.On(http.MethodPost, paymentsURL).Reply(400,
				`{"errors":[{"category":"PAYMENT_METHOD_ERROR","code":"`+tc.code+`","detail":"nope"}]}`)

			_, err := c.Charge(context.Background(), chargeReq())

			var decline *payment.DeclineError
			require.True(t, errors.As(err, &decline), "got %v", err)
			assert.Equal(t, tc.reason, decline.Reason)
			assert.Len(t, mt.Requests(), 1, "declines are not retried")
		})
	}
}

func TestChargeRetriesServerErrorsWithSameKey(t *testing.T) {
	c, mt := setup(t)
	mt.On(http.MethodPost, paymentsURL).
		Reply(503, `{"errors":[{"category":"API_ERROR","code":"SERVICE_UNAVAILABLE"}]}`).
		Reply(200, `{"payment":{"id":"pay_9","status":"COMPLETED"}}`)

	res, err := c.Charge(context.Background(), chargeReq())
	require.NoError(t, err)
	assert.Equal(t, "pay_9", res.ID)

	reqs := mt.Requests()
	require.Len(t, reqs, 2)
	assert.JSONEq(t, string(reqs[0].Body), string(reqs[1].Body))
}

func TestChargeTransportFailureIsNotADecline(t *testing.T) {
	c, mt := setup(t)
	mt.On(http.MethodPost, paymentsURL).Fail(errors.New("connection refused"))

	_, err := c.Charge(context.Background(), chargeReq())
	require.Error(t, err)

	var decline *payment.DeclineError
	assert.False(t, errors.As(err, &decline))
	assert.Len(t, mt.Requests(), 3)
}

func TestChargeAuthErrorIsNotADecline(t *testing.T) {
	c, mt := setup(t)
	mt.On(http.MethodPost, paymentsURL).Reply(401,
		`{"errors":[{"category":"AUTHENTICATION_ERROR","code":"UNAUTHORIZED"}]}`)

	_, err := c.Charge(context.Background(), chargeReq())
	require.Error(t, err)
	var decline *payment.DeclineError
	assert.False(t, errors.As(err, &decline))
}

func TestProductionBaseURL(t *testing.T) {
	mt := testkit.NewMockTransport()
	pkghttp.DefaultClient.Transport = mt
	t.Cleanup(pkghttp.ResetTransport)
	mt.On(http.MethodPost, square.ProductionURL+"/v2/payments").Reply(200, `{"payment":{"id":"p","status":"COMPLETED"}}`)

	c, err := square.New(square.Options{AccessToken: "t", LocationID: "L", Environment: "production"})
	require.NoError(t, err)
	_, err = c.Charge(context.Background(), chargeReq())
	require.NoError(t, err)
	assert.Empty(t, mt.Uncalled())
}
