package services_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/alumbrados-dev/Concessions-Connection-sub000/app/models"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/app/repositories"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/app/services"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/apperr"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/auth"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/logger"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/payment"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/queue"
)

const adminEmail = "owner@truck.test"

func init() { logger.Discard() }

// ─── Clock ────────────────────────────────────────────────────────────────────

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// ─── Fakes ────────────────────────────────────────────────────────────────────

type captureMailer struct {
	mu    sync.Mutex
	codes map[string]string
	err   error
}

func (m *captureMailer) SendVerificationCode(_ context.Context, to, code string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
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

type fakeProcessor struct {
	mu      sync.Mutex
	calls   []payment.ChargeRequest
	errs    []error
	started chan struct{}
	release chan struct{}
	hook    func(ctx context.Context) error
}

func (p *fakeProcessor) Charge(ctx context.Context, req payment.ChargeRequest) (payment.ChargeResult, error) {
	p.mu.Lock()
	p.calls = append(p.calls, req)
	n := len(p.calls)
	var err error
	if len(p.errs) > 0 {
		err, p.errs = p.errs[0], p.errs[1:]
	}
	p.mu.Unlock()

	if p.started != nil {
		p.started <- struct{}{}
	}
	if p.release != nil {
		<-p.release
	}
	if p.hook != nil {
		if herr := p.hook(ctx); herr != nil {
			return payment.ChargeResult{}, herr
		}
	}
	if err != nil {
		return payment.ChargeResult{}, err
	}
	return payment.ChargeResult{
		ID:          fmt.Sprintf("txn-%d", n),
		Status:      "COMPLETED",
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
	}, nil
}

func (p *fakeProcessor) Calls() []payment.ChargeRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]payment.ChargeRequest(nil), p.calls...)
}

type recordingHub struct {
	mu    sync.Mutex
	types []string
	data  []any
}

func (h *recordingHub) Publish(t string, d any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.types = append(h.types, t)
	h.data = append(h.data, d)
}

func (h *recordingHub) Types() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.types...)
}

type captureDispatcher struct {
	mu   sync.Mutex
	jobs []queue.Job
}

func (d *captureDispatcher) Dispatch(j queue.Job) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.jobs = append(d.jobs, j)
	return nil
}

// ─── Environment ──────────────────────────────────────────────────────────────

type env struct {
	clock   *clock
	store   *repositories.MemoryStore
	tokens  *auth.Issuer
	mailer  *captureMailer
	hub     *recordingHub
	proc    *fakeProcessor
	authn   *services.Authenticator
	guard   *services.AdminGuard
	verify  *services.VerificationService
	orders  *services.OrderService
	catalog *services.CatalogService
	users   *services.UserService
	pay     *services.PaymentService
}

type envOption func(*env, *services.PaymentOptions)

func withoutProcessor() envOption {
	return func(e *env, _ *services.PaymentOptions) { e.proc = nil }
}

func withTimeout(d time.Duration) envOption {
	return func(_ *env, o *services.PaymentOptions) { o.Timeout = d }
}

func newEnv(t *testing.T, opts ...envOption) *env {
	t.Helper()
	c := &clock{t: time.Now().UTC().Truncate(time.Second)}
	e := &env{
		clock:  c,
		store:  repositories.NewMemoryStore(repositories.WithClock(c.Now)),
		mailer: &captureMailer{},
		hub:    &recordingHub{},
		proc:   &fakeProcessor{},
	}

	var err error
	e.tokens, err = auth.NewIssuer(auth.Options{Secret: "test-secret", Issuer: "foodtruck-test", Audience: "clients", Now: c.Now})
	require.NoError(t, err)

	popts := services.PaymentOptions{Currency: "USD", Now: c.Now}
	for _, o := range opts {
		o(e, &popts)
	}

	e.authn = services.NewAuthenticator(e.tokens, e.store)
	e.guard = services.NewAdminGuard(e.authn, []string{adminEmail})
	e.verify = services.NewVerificationService(e.store, e.tokens, e.mailer, e.guard, services.VerificationOptions{
		HashCost: 4,
		Now:      c.Now,
	})
	e.catalog = services.NewCatalogService(e.store, e.hub, nil)
	e.orders = services.NewOrderService(e.store, services.NewCatalogPricer(e.store), e.hub)
	e.users = services.NewUserService(e.store)

	var proc payment.Processor
	if e.proc != nil {
		proc = e.proc
	}
	e.pay = services.NewPaymentService(e.authn, e.orders, proc, nil, popts)
	return e
}

func (e *env) user(t *testing.T, email string) (models.User, string) {
	t.Helper()
	u := models.User{Email: email, Role: models.RoleCustomer}
	require.NoError(t, e.store.CreateUser(context.Background(), &u))
	tok, err := e.tokens.Issue(u.ID, u.Email)
	require.NoError(t, err)
	return u, tok
}

func (e *env) menuItem(t *testing.T, name, price, tax string, stock int) models.MenuItem {
	t.Helper()
	m := models.MenuItem{
		Name:      name,
		Price:     decimal.RequireFromString(price),
		TaxRate:   decimal.RequireFromString(tax),
		Stock:     stock,
		Available: true,
	}
	require.NoError(t, e.store.CreateMenuItem(context.Background(), &m))
	return m
}

func (e *env) order(t *testing.T, userID uint, lines ...services.CartLine) models.Order {
	t.Helper()
	o, err := e.orders.CreateOrder(context.Background(), userID, services.CreateOrderInput{Items: lines})
	require.NoError(t, err)
	return o
}

func (e *env) status(t *testing.T, id uint) models.PaymentStatus {
	t.Helper()
	o, err := e.store.FindOrder(context.Background(), id)
	require.NoError(t, err)
	return o.PaymentStatus
}

func card(orderID uint) services.PayRequest {
	return services.PayRequest{OrderID: orderID, Method: models.MethodCard, Nonce: "cnon:card-nonce-ok", Currency: "USD"}
}

// requireCode asserts err is an *apperr.Error with the given kind and code.
func requireCode(t *testing.T, err error, kind apperr.Kind, code string) *apperr.Error {
	t.Helper()
	require.Error(t, err)
	var e *apperr.Error
	require.True(t, errors.As(err, &e), "want *apperr.Error, got %T: %v", err, err)
	require.Equal(t, kind, e.Kind, "kind of %v", err)
	require.Equal(t, code, e.Code)
	return e
}
