package kernel_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/alumbrados-dev/Concessions-Connection-sub000/app/controllers"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/app/models"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/app/repositories"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/app/services"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/database/seeders"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/internal/kernel"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/auth"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/logger"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/payment"
)

const adminEmail = "owner@truck.test"

func init() { logger.Discard() }

type captureMailer struct {
	mu    sync.Mutex
	codes map[string]string
}

func (m *captureMailer) SendVerificationCode(_ context.Context, to, code string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.codes == nil {
		m.codes = map[string]string{}
	}
	m.codes[to] = code
	return nil
}

func (m *captureMailer) code(to string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[to]
}

type stubProcessor struct {
	mu    sync.Mutex
	calls []payment.ChargeRequest
}

func (p *stubProcessor) Charge(_ context.Context, req payment.ChargeRequest) (payment.ChargeResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, req)
	return payment.ChargeResult{ID: fmt.Sprintf("tx-%d", len(p.calls)), Status: "COMPLETED"}, nil
}

type harness struct {
	t      *testing.T
	app    *kernel.App
	store  *repositories.MemoryStore
	tokens *auth.Issuer
	mailer *captureMailer
	proc   *stubProcessor
}

func newHarness(t *testing.T, mutate func(*kernel.Deps)) *harness {
	t.Helper()
	tokens, err := auth.NewIssuer(auth.Options{Secret: "kernel-test-secret", Issuer: "foodtruck", Audience: "foodtruck", TTL: time.Hour})
	require.NoError(t, err)

	h := &harness{t: t, store: repositories.NewMemoryStore(), tokens: tokens, mailer: &captureMailer{}, proc: &stubProcessor{}}
	d := kernel.Deps{
		Store:        h.store,
		Tokens:       tokens,
		Mailer:       h.mailer,
		Processor:    h.proc,
		AdminEmails:  []string{adminEmail},
		Verification: services.VerificationOptions{HashCost: bcrypt.MinCost},
	}
	if mutate != nil {
		mutate(&d)
	}
	h.app, err = kernel.New(d)
	require.NoError(t, err)
	return h
}

type reply struct {
	Code    int             `json:"-"`
	Header  http.Header     `json:"-"`
	Status  int             `json:"status"`
	Message string          `json:"message"`
	ErrCode string          `json:"code"`
	Data    json.RawMessage `json:"data"`
	Details map[string]any  `json:"details"`
}

func (h *harness) do(method, path, token string, body any) reply {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.app.Handler().ServeHTTP(rec, req)

	out := reply{Code: rec.Code, Header: rec.Header()}
	if rec.Body.Len() > 0 {
		require.NoError(h.t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return out
}

func (h *harness) login(email string) string {
	h.t.Helper()
	res := h.do(http.MethodPost, "/api/auth/request-verification", "", map[string]string{"email": email})
	require.Equal(h.t, http.StatusOK, res.Code, res.Message)

	res = h.do(http.MethodPost, "/api/auth/verify-email", "", map[string]string{"email": email, "code": h.mailer.code(email)})
	require.Equal(h.t, http.StatusOK, res.Code, res.Message)
	var data struct {
		Token string `json:"token"`
	}
	require.NoError(h.t, json.Unmarshal(res.Data, &data))
	require.NotEmpty(h.t, data.Token)
	return data.Token
}

// admin seeds the allowlisted owner and mints a token out of band, the
// same way `foodtruck admin:token` does.
func (h *harness) admin() string {
	h.t.Helper()
	admins, err := seeders.EnsureAdmins(context.Background(), h.store, []string{adminEmail})
	require.NoError(h.t, err)
	token, err := h.tokens.Issue(admins[0].ID, admins[0].Email)
	require.NoError(h.t, err)
	return token
}

func (h *harness) menuItem(name, price string, stock int) models.MenuItem {
	h.t.Helper()
	m := models.MenuItem{
		Name:      name,
		Category:  "mains",
		Price:     decimal.RequireFromString(price),
		TaxRate:   decimal.RequireFromString("0.0825"),
		Stock:     stock,
		Available: true,
	}
	require.NoError(h.t, h.store.CreateMenuItem(context.Background(), &m))
	return m
}

func TestCheckoutFlow(t *testing.T) {
	h := newHarness(t, nil)
	taco := h.menuItem("Taco", "3.50", 10)
	token := h.login("guest@truck.test")

	res := h.do(http.MethodPost, "/api/orders", token, map[string]any{
		"items": []map[string]any{{"id": taco.ID, "quantity": 2}},
		"total": "1.00",
	})
	require.Equal(t, http.StatusCreated, res.Code, res.Message)
	var order models.Order
	require.NoError(t, json.Unmarshal(res.Data, &order))
	assert.Equal(t, "7.58", order.Total.StringFixed(2))
	assert.Equal(t, models.PaymentPending, order.PaymentStatus)
	assert.Equal(t, services.DeliveryPickup, order.DeliveryMethod)

	res = h.do(http.MethodPost, "/api/payments", token, map[string]any{
		"orderId":  order.ID,
		"sourceId": "cnon:card-nonce-ok",
		"amount":   1,
	})
	require.Equal(t, http.StatusOK, res.Code, res.Message)
	var paid struct {
		Payment services.PaymentReceipt `json:"payment"`
		Order   models.Order            `json:"order"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &paid))
	assert.Equal(t, "tx-1", paid.Payment.ID)
	assert.EqualValues(t, 758, paid.Payment.TotalMoney.Amount)
	assert.Equal(t, models.PaymentCompleted, paid.Order.PaymentStatus)

	require.Len(t, h.proc.calls, 1)
	assert.EqualValues(t, 758, h.proc.calls[0].AmountCents)

	item, err := h.store.FindMenuItem(context.Background(), taco.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, item.Stock)

	res = h.do(http.MethodPost, "/api/payments", token, map[string]any{"orderId": order.ID, "sourceId": "cnon:again"})
	assert.Equal(t, http.StatusConflict, res.Code)
	assert.Len(t, h.proc.calls, 1)
}

func TestOrdersAreScopedToOwner(t *testing.T) {
	h := newHarness(t, nil)
	taco := h.menuItem("Taco", "3.50", 10)
	alice := h.login("alice@truck.test")
	bob := h.login("bob@truck.test")

	res := h.do(http.MethodPost, "/api/orders", alice, map[string]any{
		"items": []map[string]any{{"id": taco.ID, "quantity": 1}},
	})
	require.Equal(t, http.StatusCreated, res.Code)
	var order models.Order
	require.NoError(t, json.Unmarshal(res.Data, &order))

	path := fmt.Sprintf("/api/orders/%d", order.ID)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, path, alice, nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, path, bob, nil).Code)

	res = h.do(http.MethodPost, "/api/payments", bob, map[string]any{"orderId": order.ID, "sourceId": "cnon:x"})
	assert.Equal(t, http.StatusNotFound, res.Code)
	assert.Empty(t, h.proc.calls)
}

func TestUnauthenticatedRequests(t *testing.T) {
	h := newHarness(t, nil)

	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/api/orders", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/api/orders", "not-a-jwt", nil).Code)
	assert.Equal(t, http.StatusUnauthorized,
		h.do(http.MethodPost, "/api/payments", "", map[string]any{"orderId": 1, "sourceId": "cnon:x"}).Code)
}

func TestPaymentRejectsBadTokenBeforeBody(t *testing.T) {
	h := newHarness(t, nil)

	res := h.do(http.MethodPost, "/api/payments", "", map[string]any{})
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Equal(t, "UNAUTHENTICATED", res.ErrCode)

	res = h.do(http.MethodPost, "/api/payments", "garbage", map[string]any{"orderId": "x"})
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Empty(t, h.proc.calls)
}

func TestAdminRoutesRequireAdminEmail(t *testing.T) {
	h := newHarness(t, nil)
	customer := h.login("guest@truck.test")
	owner := h.admin()

	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/api/admin/users", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, h.do(http.MethodGet, "/api/admin/users", customer, nil).Code)

	res := h.do(http.MethodGet, "/api/admin/users", owner, nil)
	require.Equal(t, http.StatusOK, res.Code)
	var users []models.User
	require.NoError(t, json.Unmarshal(res.Data, &users))
	assert.Len(t, users, 2)

	res = h.do(http.MethodPost, "/api/admin/menu", owner, map[string]any{
		"name": "Elote", "category": "sides", "price": "4.25", "taxRate": "0.0825", "stock": 3,
	})
	require.Equal(t, http.StatusCreated, res.Code, res.Message)
	assert.Equal(t, http.StatusForbidden, h.do(http.MethodPost, "/api/admin/menu", customer, map[string]any{"name": "x"}).Code)
}

func TestAdvanceFulfillment(t *testing.T) {
	h := newHarness(t, nil)
	taco := h.menuItem("Taco", "3.50", 10)
	customer := h.login("guest@truck.test")
	owner := h.admin()

	res := h.do(http.MethodPost, "/api/orders", customer, map[string]any{
		"items": []map[string]any{{"id": taco.ID, "quantity": 1}},
	})
	require.Equal(t, http.StatusCreated, res.Code)
	var order models.Order
	require.NoError(t, json.Unmarshal(res.Data, &order))
	path := fmt.Sprintf("/api/admin/orders/%d/status", order.ID)

	assert.Equal(t, http.StatusOK, h.do(http.MethodPatch, path, owner, map[string]string{"status": "preparing"}).Code)
	assert.Equal(t, http.StatusConflict, h.do(http.MethodPatch, path, owner, map[string]string{"status": "picked_up"}).Code)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPatch, path, owner, map[string]string{"status": "teleported"}).Code)
}

func TestPaymentsUnavailableWithoutProcessor(t *testing.T) {
	h := newHarness(t, func(d *kernel.Deps) { d.Processor = nil })
	taco := h.menuItem("Taco", "3.50", 10)
	token := h.login("guest@truck.test")

	res := h.do(http.MethodPost, "/api/orders", token, map[string]any{
		"items": []map[string]any{{"id": taco.ID, "quantity": 1}},
	})
	require.Equal(t, http.StatusCreated, res.Code)
	var order models.Order
	require.NoError(t, json.Unmarshal(res.Data, &order))

	res = h.do(http.MethodPost, "/api/payments", token, map[string]any{"orderId": order.ID, "sourceId": "cnon:x"})
	assert.Equal(t, http.StatusServiceUnavailable, res.Code)

	// still 401 first for anonymous callers
	assert.Equal(t, http.StatusUnauthorized,
		h.do(http.MethodPost, "/api/payments", "", map[string]any{"orderId": order.ID, "sourceId": "cnon:x"}).Code)
}

func TestAdminAddressCannotRequestCode(t *testing.T) {
	h := newHarness(t, nil)
	res := h.do(http.MethodPost, "/api/auth/request-verification", "", map[string]string{"email": adminEmail})
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Empty(t, h.mailer.code(adminEmail))
}

func TestRequestVerificationIsRateLimited(t *testing.T) {
	h := newHarness(t, nil)

	for i := 0; i < 5; i++ {
		res := h.do(http.MethodPost, "/api/auth/request-verification", "", map[string]string{"email": fmt.Sprintf("guest%d@truck.test", i)})
		require.Equal(t, http.StatusOK, res.Code, res.Message)
	}
	res := h.do(http.MethodPost, "/api/auth/request-verification", "", map[string]string{"email": "late@truck.test"})
	assert.Equal(t, http.StatusTooManyRequests, res.Code)
	assert.NotEmpty(t, res.Header.Get("Retry-After"))
	assert.Empty(t, h.mailer.code("late@truck.test"))
}

func TestPublicStorefront(t *testing.T) {
	h := newHarness(t, nil)
	taco := h.menuItem("Taco", "3.50", 10)
	hidden := h.menuItem("Secret", "9.99", 1)
	hidden.Available = false
	require.NoError(t, h.store.UpdateMenuItem(context.Background(), &hidden))

	res := h.do(http.MethodGet, "/api/menu", "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	var menu []models.MenuItem
	require.NoError(t, json.Unmarshal(res.Data, &menu))
	require.Len(t, menu, 1)
	assert.Equal(t, taco.ID, menu[0].ID)

	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, fmt.Sprintf("/api/menu/%d", hidden.ID), "", nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/api/menu/abc", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/api/nothing-here", "", nil).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, h.do(http.MethodDelete, "/api/menu", "", nil).Code)
}

func TestHealth(t *testing.T) {
	up := newHarness(t, func(d *kernel.Deps) {
		d.Checks = map[string]controllers.Check{"database": func(context.Context) error { return nil }}
	})
	res := up.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, res.Code)

	down := newHarness(t, func(d *kernel.Deps) {
		d.Checks = map[string]controllers.Check{
			"database": func(context.Context) error { return nil },
			"cache":    func(context.Context) error { return errors.New("connection refused") },
		}
	})
	res = down.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, res.Code)
}

func TestNewRequiresCoreDeps(t *testing.T) {
	_, err := kernel.New(kernel.Deps{Store: repositories.NewMemoryStore()})
	assert.Error(t, err)
}
