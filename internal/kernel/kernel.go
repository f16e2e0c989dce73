// Package kernel assembles the application: services over a Store, the
// event bus and queue behind them, and the HTTP handler in front.
//
// New wires whatever infrastructure it is handed, which is how tests and
// route:list build a kernel on the in-memory store. Boot connects the real
// infrastructure from config first.
package kernel

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alumbrados-dev/Concessions-Connection-sub000/app/controllers"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/app/jobs"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/app/models"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/app/repositories"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/app/routes"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/app/services"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/auth"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/event"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/graphql"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/metrics"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/middleware"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/payment"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/queue"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/rbac"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/reqid"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/response"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/router"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/schedule"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/storage"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/workerpool"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/ws"
)

// Deps is the infrastructure a kernel runs on. Store, Tokens and Mailer are
// required; everything else degrades when absent.
type Deps struct {
	Store  repositories.Store
	Tokens *auth.Issuer
	Mailer services.CodeMailer

	// Processor is nil when payments are not configured.
	Processor payment.Processor
	Disk      storage.Disk
	// Notifier sends receipts. Without it no receipt jobs are queued.
	Notifier jobs.Sender
	// Redis backs the shared rate limiters when set.
	Redis *redis.Client
	// Queue defaults to an in-memory manager.
	Queue *queue.Manager

	AdminEmails  []string
	CORSOrigins  []string
	Payment      services.PaymentOptions
	Verification services.VerificationOptions
	// EventWorkers sizes the pool behind async domain events. Zero runs
	// listeners inline.
	EventWorkers int
	// Checks feed GET /health.
	Checks map[string]controllers.Check
}

// App is an assembled application.
type App struct {
	Store     repositories.Store
	Hub       *ws.Hub
	Bus       *event.Bus
	Queue     *queue.Manager
	Scheduler *schedule.Scheduler
	Router    *router.Router

	Authn        *services.Authenticator
	Guard        *services.AdminGuard
	Verification *services.VerificationService
	Orders       *services.OrderService
	Payments     *services.PaymentService
	Catalog      *services.CatalogService
	Content      *services.ContentService
	Users        *services.UserService

	pool *workerpool.Pool
}

// New wires services, listeners, jobs, schedules and routes over d.
func New(d Deps) (*App, error) {
	if d.Store == nil || d.Tokens == nil || d.Mailer == nil {
		return nil, errors.New("kernel: store, token issuer and mailer are required")
	}
	if d.Payment.Currency == "" {
		d.Payment.Currency = "USD"
	}
	a := &App{Store: d.Store, Queue: d.Queue}
	if a.Queue == nil {
		a.Queue = queue.NewManager(queue.NewMemoryDriver())
	}

	a.Hub = ws.NewHub(originChecker(d.CORSOrigins))
	if d.EventWorkers > 0 {
		a.pool = workerpool.New("events", d.EventWorkers)
	}
	a.Bus = event.NewBus(a.pool)

	a.Authn = services.NewAuthenticator(d.Tokens, d.Store)
	a.Guard = services.NewAdminGuard(a.Authn, d.AdminEmails)
	a.Verification = services.NewVerificationService(d.Store, d.Tokens, d.Mailer, a.Guard, d.Verification)
	a.Catalog = services.NewCatalogService(d.Store, a.Hub, d.Disk)
	a.Content = services.NewContentService(d.Store, a.Hub)
	a.Users = services.NewUserService(d.Store)
	a.Orders = services.NewOrderService(d.Store, services.NewCatalogPricer(d.Store), a.Hub)
	a.Payments = services.NewPaymentService(a.Authn, a.Orders, d.Processor, a.Bus, d.Payment)

	listeners := services.PaidListeners{Catalog: a.Catalog, Users: d.Store, Hub: a.Hub}
	if d.Notifier != nil {
		jobs.Register(a.Queue, jobs.ReceiptDeps{
			Orders:   d.Store,
			Notifier: d.Notifier,
			Currency: d.Payment.Currency,
		})
		listeners.Jobs = a.Queue
	}
	listeners.Register(a.Bus)

	a.Scheduler = schedule.New()
	a.Scheduler.Every(time.Minute).Name("payments:sweep-stale").Timeout(30 * time.Second).Run(a.Payments.SweepStale)
	a.Scheduler.Every(10 * time.Minute).Name("verification:purge-expired").Timeout(time.Minute).Run(a.Verification.PurgeExpired)

	schema, err := graphql.NewSchema(graphql.Resolvers{
		Menu: a.Catalog.Menu,
		Events: func(ctx context.Context) ([]models.Event, error) {
			return a.Content.Events(ctx, true)
		},
		Ads: func(ctx context.Context) ([]models.Ad, error) {
			return a.Content.Ads(ctx, true)
		},
		Location: a.Content.Location,
	})
	if err != nil {
		return nil, err
	}

	limiter := func(name string, max int, window time.Duration) middleware.Limiter {
		return middleware.NewLimiter(d.Redis, name, max, window)
	}

	r := router.New()

	// Outermost first: metrics see total latency, Recovery catches panics
	// before anything logs, and the request id exists before Logger runs.
	r.Use(metrics.Middleware())
	r.Use(middleware.Recovery)
	r.Use(reqid.Middleware())
	r.Use(middleware.Logger)
	r.Use(middleware.CORS(d.CORSOrigins))
	r.Use(middleware.RateLimit(limiter("global", 300, time.Minute)))
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) { response.NotFound(w) })
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	checks := d.Checks
	if checks == nil {
		checks = map[string]controllers.Check{}
	}

	routes.RegisterAPI(r, routes.API{
		Auth:         controllers.NewAuthController(a.Verification, a.Authn, a.Users),
		Orders:       controllers.NewOrderController(a.Orders),
		Payments:     controllers.NewPaymentController(a.Payments),
		Menu:         controllers.NewMenuController(a.Catalog),
		Content:      controllers.NewContentController(a.Content),
		Admin:        controllers.NewAdminController(a.Users, a.Orders),
		Realtime:     controllers.NewRealtimeController(a.Hub),
		Health:       controllers.NewHealthController(checks),
		Authenticate: middleware.Authenticate(a.Authn.Principal),
		RequireAdmin: rbac.RequireAdmin(a.Guard.Principal),
		Limiter:      limiter,
		GraphQL:      graphql.Handler(schema),
		Metrics:      metrics.Handler(),
	})
	a.Router = r
	return a, nil
}

// Handler is the HTTP entry point.
func (a *App) Handler() http.Handler { return a.Router.Handler() }

// Start runs the hub, queue workers and scheduler until ctx is cancelled.
func (a *App) Start(ctx context.Context, queueWorkers int) {
	go a.Hub.Run(ctx)
	if queueWorkers > 0 {
		a.Queue.StartWorkers(ctx, queueWorkers)
	}
	go a.Scheduler.Start(ctx)
}

// Drain waits for in-flight domain events and stops the event pool.
func (a *App) Drain() {
	a.Bus.Wait()
	if a.pool != nil {
		a.pool.Shutdown()
	}
}

// originChecker mirrors the CORS allowlist for websocket upgrades.
func originChecker(origins []string) func(*http.Request) bool {
	if len(origins) == 0 || slices.Contains(origins, "*") {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(origins, origin)
	}
}
